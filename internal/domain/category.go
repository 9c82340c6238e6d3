package domain

import (
	"regexp"
	"strings"
	"time"
)

type CategoryType string

const (
	CategoryIncome   CategoryType = "income"
	CategoryExpense  CategoryType = "expense"
	CategoryTransfer CategoryType = "transfer"
)

func (c CategoryType) Valid() bool {
	switch c {
	case CategoryIncome, CategoryExpense, CategoryTransfer:
		return true
	}
	return false
}

const DefaultColor = "#007bff"

var colorRE = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Category groups transactions. System categories have no owner and are
// visible to every user.
type Category struct {
	ID              int64        `json:"id"`
	Name            string       `json:"name"`
	Type            CategoryType `json:"type"`
	ParentID        *int64       `json:"parent_id,omitempty"`
	Icon            string       `json:"icon"`
	Color           string       `json:"color"`
	Description     string       `json:"description"`
	Keywords        string       `json:"keywords"`
	UserID          *int64       `json:"user_id,omitempty"`
	IsSystemDefault bool         `json:"is_system_default"`
	IsActive        bool         `json:"is_active"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func (c *Category) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" || len([]rune(c.Name)) > 100 {
		return Invalid("name", "must be 1-100 characters")
	}
	if !c.Type.Valid() {
		return Invalid("type", "must be income, expense or transfer")
	}
	if c.Color == "" {
		c.Color = DefaultColor
	}
	if !colorRE.MatchString(c.Color) {
		return Invalid("color", "must be a hex colour like #007bff")
	}
	return nil
}

// KeywordList returns the normalised comma separated keywords.
func (c Category) KeywordList() []string {
	return SplitList(c.Keywords)
}

// OwnedBy reports whether the user may modify the category.
func (c Category) OwnedBy(userID int64) bool {
	return c.UserID != nil && *c.UserID == userID
}

// FullPath renders "Parent > Child" using the given lookup of visible
// categories. Unknown parents end the path.
func FullPath(c Category, byID map[int64]Category) string {
	parts := []string{c.Name}
	seen := map[int64]bool{c.ID: true}
	for cur := c; cur.ParentID != nil; {
		parent, ok := byID[*cur.ParentID]
		if !ok || seen[parent.ID] {
			break
		}
		seen[parent.ID] = true
		parts = append([]string{parent.Name}, parts...)
		cur = parent
	}
	return strings.Join(parts, " > ")
}

// CreatesCycle reports whether giving category id the parent parentID would
// make it its own ancestor.
func CreatesCycle(id, parentID int64, byID map[int64]Category) bool {
	for cur := parentID; ; {
		if cur == id {
			return true
		}
		c, ok := byID[cur]
		if !ok || c.ParentID == nil {
			return false
		}
		cur = *c.ParentID
	}
}

// SplitList splits a comma separated list, trimming, lower-casing and
// dropping empty and duplicate entries.
func SplitList(s string) []string {
	var out []string
	seen := map[string]bool{}
	for _, part := range strings.Split(s, ",") {
		p := strings.ToLower(strings.TrimSpace(part))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// NormalizeTags returns the canonical comma separated form of a tag list.
func NormalizeTags(s string) string {
	return strings.Join(SplitList(s), ",")
}
