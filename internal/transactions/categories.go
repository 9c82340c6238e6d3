package transactions

import (
	"context"
	"fmt"
	"sort"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

// CategoryView is a category with its rendered hierarchy path.
type CategoryView struct {
	domain.Category
	FullPath string `json:"full_path"`
}

// visibleCategories returns the user's own and the system categories keyed by id.
func (s *Service) visibleCategories(ctx context.Context, userID int64) ([]domain.Category, map[int64]domain.Category, error) {
	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[int64]domain.Category, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}
	return cats, byID, nil
}

func (s *Service) ListCategories(ctx context.Context, userID int64) ([]CategoryView, error) {
	cats, byID, err := s.visibleCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(cats, func(i, j int) bool {
		if cats[i].Type != cats[j].Type {
			return cats[i].Type < cats[j].Type
		}
		return cats[i].Name < cats[j].Name
	})
	out := make([]CategoryView, 0, len(cats))
	for _, c := range cats {
		out = append(out, CategoryView{Category: c, FullPath: domain.FullPath(c, byID)})
	}
	return out, nil
}

func (s *Service) GetCategory(ctx context.Context, userID, id int64) (CategoryView, error) {
	_, byID, err := s.visibleCategories(ctx, userID)
	if err != nil {
		return CategoryView{}, err
	}
	c, ok := byID[id]
	if !ok {
		return CategoryView{}, domain.ErrNotFound
	}
	return CategoryView{Category: c, FullPath: domain.FullPath(c, byID)}, nil
}

func (s *Service) CreateCategory(ctx context.Context, userID int64, c domain.Category) (domain.Category, error) {
	if err := c.Validate(); err != nil {
		return domain.Category{}, err
	}
	_, byID, err := s.visibleCategories(ctx, userID)
	if err != nil {
		return domain.Category{}, err
	}
	if c.ParentID != nil {
		if _, ok := byID[*c.ParentID]; !ok {
			return domain.Category{}, domain.Invalid("parent_id", "is not a visible category")
		}
	}
	c.ID = 0
	c.UserID = &userID
	c.IsSystemDefault = false
	c.IsActive = true
	if err := s.store.CreateCategory(ctx, &c); err != nil {
		return domain.Category{}, err
	}
	return c, nil
}

// UpdateCategory replaces the editable fields of one of the user's own
// categories. System categories are read-only.
func (s *Service) UpdateCategory(ctx context.Context, userID, id int64, in domain.Category) (domain.Category, error) {
	_, byID, err := s.visibleCategories(ctx, userID)
	if err != nil {
		return domain.Category{}, err
	}
	cur, ok := byID[id]
	if !ok {
		return domain.Category{}, domain.ErrNotFound
	}
	if !cur.OwnedBy(userID) {
		return domain.Category{}, domain.ErrForbidden
	}
	if in.ParentID != nil {
		if _, ok := byID[*in.ParentID]; !ok {
			return domain.Category{}, domain.Invalid("parent_id", "is not a visible category")
		}
		if domain.CreatesCycle(id, *in.ParentID, byID) {
			return domain.Category{}, domain.Invalid("parent_id", "would make the category its own ancestor")
		}
	}

	cur.Name = in.Name
	cur.Type = in.Type
	cur.ParentID = in.ParentID
	cur.Icon = in.Icon
	cur.Color = in.Color
	cur.Description = in.Description
	cur.Keywords = in.Keywords
	cur.IsActive = in.IsActive
	if err := cur.Validate(); err != nil {
		return domain.Category{}, err
	}
	if err := s.store.UpdateCategory(ctx, &cur); err != nil {
		return domain.Category{}, err
	}
	return cur, nil
}

// categoryByName resolves a visible category case-insensitively, preferring
// the user's own over a system category of the same name.
func categoryByName(cats []domain.Category, userID int64, name string) (domain.Category, error) {
	var found *domain.Category
	for i := range cats {
		c := &cats[i]
		if !equalFold(c.Name, name) {
			continue
		}
		if found == nil || (c.OwnedBy(userID) && !found.OwnedBy(userID)) {
			found = c
		}
	}
	if found == nil {
		return domain.Category{}, fmt.Errorf("%w: category %q", domain.ErrNotFound, name)
	}
	return *found, nil
}
