package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/money"
)

type LedgerType string

const (
	LedgerFamily    LedgerType = "family"
	LedgerRoommates LedgerType = "roommates"
	LedgerFriends   LedgerType = "friends"
	LedgerBusiness  LedgerType = "business"
	LedgerTravel    LedgerType = "travel"
	LedgerProject   LedgerType = "project"
	LedgerOther     LedgerType = "other"
)

func (t LedgerType) Valid() bool {
	switch t {
	case LedgerFamily, LedgerRoommates, LedgerFriends, LedgerBusiness, LedgerTravel, LedgerProject, LedgerOther:
		return true
	}
	return false
}

type LedgerStatus string

const (
	LedgerActive   LedgerStatus = "active"
	LedgerPaused   LedgerStatus = "paused"
	LedgerArchived LedgerStatus = "archived"
	LedgerClosed   LedgerStatus = "closed"
)

func (s LedgerStatus) Valid() bool {
	switch s {
	case LedgerActive, LedgerPaused, LedgerArchived, LedgerClosed:
		return true
	}
	return false
}

const (
	InviteCodeLength = 8
	InviteTTL        = 7 * 24 * time.Hour
)

type SharedLedger struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	LedgerType       LedgerType      `json:"ledger_type"`
	CreatedBy        int64           `json:"created_by"`
	Currency         string          `json:"currency"`
	IsPublic         bool            `json:"is_public"`
	RequireApproval  bool            `json:"require_approval"`
	AllowFileUploads bool            `json:"allow_file_uploads"`
	Status           LedgerStatus    `json:"status"`
	TotalExpenses    decimal.Decimal `json:"total_expenses"`
	TotalMembers     int             `json:"total_members"`
	InviteCode       string          `json:"invite_code,omitempty"`
	InviteExpiresAt  *time.Time      `json:"invite_expires_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (l *SharedLedger) Validate() error {
	l.Name = strings.TrimSpace(l.Name)
	if l.Name == "" || len([]rune(l.Name)) > 200 {
		return Invalid("name", "must be 1-200 characters")
	}
	if l.LedgerType == "" {
		l.LedgerType = LedgerOther
	}
	if !l.LedgerType.Valid() {
		return Invalid("ledger_type", "is not valid")
	}
	if !money.ValidCurrency(l.Currency) {
		return Invalid("currency", "must be a 3 letter code")
	}
	if l.Status == "" {
		l.Status = LedgerActive
	}
	if !l.Status.Valid() {
		return Invalid("status", "is not valid")
	}
	return nil
}

// InviteValid reports whether code joins the ledger at now.
func (l SharedLedger) InviteValid(code string, now time.Time) bool {
	if l.InviteCode == "" || !strings.EqualFold(l.InviteCode, strings.TrimSpace(code)) {
		return false
	}
	return l.InviteExpiresAt == nil || now.Before(*l.InviteExpiresAt)
}

type MemberRole string

const (
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
	RoleViewer MemberRole = "viewer"
)

func (r MemberRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

func (r MemberRole) rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleMember:
		return 2
	case RoleViewer:
		return 1
	}
	return 0
}

// AtLeast reports whether r grants everything min grants.
func (r MemberRole) AtLeast(min MemberRole) bool {
	return r.rank() >= min.rank()
}

type MemberStatus string

const (
	MemberActive   MemberStatus = "active"
	MemberInvited  MemberStatus = "invited"
	MemberInactive MemberStatus = "inactive"
	MemberRemoved  MemberStatus = "removed"
)

func (s MemberStatus) Valid() bool {
	switch s {
	case MemberActive, MemberInvited, MemberInactive, MemberRemoved:
		return true
	}
	return false
}

type LedgerMember struct {
	ID              int64        `json:"id"`
	LedgerID        string       `json:"ledger_id"`
	UserID          int64        `json:"user_id"`
	Role            MemberRole   `json:"role"`
	Status          MemberStatus `json:"status"`
	NotifyOnExpense bool         `json:"notify_on_expense"`
	NotifyOnPayment bool         `json:"notify_on_payment"`
	InvitedBy       *int64       `json:"invited_by,omitempty"`
	InvitedAt       *time.Time   `json:"invited_at,omitempty"`
	JoinedAt        *time.Time   `json:"joined_at,omitempty"`
	DisplayName     string       `json:"display_name"`
	Color           string       `json:"color"`
	Username        string       `json:"username,omitempty"`
	FullName        string       `json:"full_name,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Name is the display name, else the full name, else the username.
func (m LedgerMember) Name() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	if m.FullName != "" {
		return m.FullName
	}
	return m.Username
}

func (m LedgerMember) Can(min MemberRole) bool {
	return m.Status == MemberActive && m.Role.AtLeast(min)
}

type InviteStatus string

const (
	InvitePending   InviteStatus = "pending"
	InviteAccepted  InviteStatus = "accepted"
	InviteDeclined  InviteStatus = "declined"
	InviteExpired   InviteStatus = "expired"
	InviteCancelled InviteStatus = "cancelled"
)

type LedgerInvite struct {
	ID           int64        `json:"id"`
	LedgerID     string       `json:"ledger_id"`
	InvitedBy    int64        `json:"invited_by"`
	Email        string       `json:"email"`
	Message      string       `json:"message"`
	ProposedRole MemberRole   `json:"proposed_role"`
	Status       InviteStatus `json:"status"`
	Token        string       `json:"token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	RespondedAt  *time.Time   `json:"responded_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// EffectiveStatus reports expired for pending invites past their expiry.
func (i LedgerInvite) EffectiveStatus(now time.Time) InviteStatus {
	if i.Status == InvitePending && !now.Before(i.ExpiresAt) {
		return InviteExpired
	}
	return i.Status
}

type SplitMethod string

const (
	SplitEqual      SplitMethod = "equal"
	SplitExact      SplitMethod = "exact"
	SplitPercentage SplitMethod = "percentage"
	SplitShares     SplitMethod = "shares"
)

func (s SplitMethod) Valid() bool {
	switch s {
	case SplitEqual, SplitExact, SplitPercentage, SplitShares:
		return true
	}
	return false
}

type ExpenseStatus string

const (
	ExpensePending  ExpenseStatus = "pending"
	ExpenseApproved ExpenseStatus = "approved"
	ExpenseRejected ExpenseStatus = "rejected"
	ExpenseSettled  ExpenseStatus = "settled"
)

// Counts reports whether the expense takes part in balances.
func (s ExpenseStatus) Counts() bool {
	return s == ExpenseApproved || s == ExpenseSettled
}

type SharedExpense struct {
	ID            int64           `json:"id"`
	LedgerID      string          `json:"ledger_id"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	PaidBy        int64           `json:"paid_by"`
	CategoryID    *int64          `json:"category_id,omitempty"`
	Tags          string          `json:"tags"`
	ExpenseDate   time.Time       `json:"expense_date"`
	SplitMethod   SplitMethod     `json:"split_method"`
	Status        ExpenseStatus   `json:"status"`
	CreatedBy     int64           `json:"created_by"`
	ApprovedBy    *int64          `json:"approved_by,omitempty"`
	ApprovedAt    *time.Time      `json:"approved_at,omitempty"`
	Location      string          `json:"location"`
	Notes         string          `json:"notes"`
	TransactionID *int64          `json:"transaction_id,omitempty"`
	Splits        []ExpenseSplit  `json:"splits,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (e *SharedExpense) Validate() error {
	e.Description = strings.TrimSpace(e.Description)
	if e.Description == "" {
		return Invalid("description", "is required")
	}
	if !money.AtLeastCent(e.Amount) {
		return Invalid("amount", "must be at least 0.01")
	}
	if !money.WholeCents(e.Amount) {
		return Invalid("amount", "must have at most 2 decimal places")
	}
	if e.SplitMethod == "" {
		e.SplitMethod = SplitEqual
	}
	if !e.SplitMethod.Valid() {
		return Invalid("split_method", "is not valid")
	}
	if e.ExpenseDate.IsZero() {
		e.ExpenseDate = DateOnly(time.Now())
	}
	e.Tags = NormalizeTags(e.Tags)
	return nil
}

// ExpenseSplit is one member's share of a shared expense. Member ids refer
// to LedgerMember.ID.
type ExpenseSplit struct {
	ID               int64           `json:"id"`
	ExpenseID        int64           `json:"expense_id"`
	MemberID         int64           `json:"member_id"`
	Amount           decimal.Decimal `json:"amount"`
	Percentage       decimal.Decimal `json:"percentage"`
	Shares           int             `json:"shares"`
	IsSettled        bool            `json:"is_settled"`
	SettledAt        *time.Time      `json:"settled_at,omitempty"`
	SettlementMethod string          `json:"settlement_method"`
}

// SplitRequest carries the caller's input for one member of a split.
type SplitRequest struct {
	MemberID   int64           `json:"member_id"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
	Shares     int             `json:"shares"`
}

// ComputeSplits turns the method and requests into splits adding up exactly
// to amount. For equal splits requests only select the members; members is
// used when requests is empty.
func ComputeSplits(method SplitMethod, amount decimal.Decimal, members []int64, reqs []SplitRequest) ([]ExpenseSplit, error) {
	if !money.WholeCents(amount) {
		return nil, Invalid("amount", "must have at most 2 decimal places")
	}
	hundred := decimal.NewFromInt(100)
	seen := map[int64]bool{}
	for _, r := range reqs {
		if seen[r.MemberID] {
			return nil, Invalid("splits", "member listed twice")
		}
		seen[r.MemberID] = true
	}

	switch method {
	case SplitEqual:
		ids := members
		if len(reqs) > 0 {
			ids = ids[:0:0]
			for _, r := range reqs {
				ids = append(ids, r.MemberID)
			}
		}
		if len(ids) == 0 {
			return nil, Invalid("splits", "no members to split between")
		}
		parts := money.SplitEqual(amount, len(ids))
		pct := hundred.Div(decimal.NewFromInt(int64(len(ids)))).Round(2)
		out := make([]ExpenseSplit, len(ids))
		for i, id := range ids {
			out[i] = ExpenseSplit{MemberID: id, Amount: parts[i], Percentage: pct, Shares: 1}
		}
		return out, nil

	case SplitExact:
		if len(reqs) == 0 {
			return nil, Invalid("splits", "exact split needs amounts")
		}
		total := decimal.Zero
		out := make([]ExpenseSplit, len(reqs))
		for i, r := range reqs {
			if r.Amount.IsNegative() {
				return nil, Invalid("splits", "amount must not be negative")
			}
			if !money.WholeCents(r.Amount) {
				return nil, Invalid("splits", "amount must have at most 2 decimal places")
			}
			out[i] = ExpenseSplit{MemberID: r.MemberID, Amount: r.Amount, Percentage: decimal.NewFromFloat(money.Percent(r.Amount, amount))}
			total = total.Add(out[i].Amount)
		}
		if !total.Equal(amount) {
			return nil, Invalid("splits", "amounts must add up to the expense amount")
		}
		return out, nil

	case SplitPercentage:
		if len(reqs) == 0 {
			return nil, Invalid("splits", "percentage split needs percentages")
		}
		weights := make([]decimal.Decimal, len(reqs))
		total := decimal.Zero
		for i, r := range reqs {
			if r.Percentage.IsNegative() {
				return nil, Invalid("splits", "percentage must not be negative")
			}
			weights[i] = r.Percentage
			total = total.Add(r.Percentage)
		}
		if !total.Equal(hundred) {
			return nil, Invalid("splits", "percentages must add up to 100")
		}
		parts, err := money.SplitWeighted(amount, weights)
		if err != nil {
			return nil, Invalid("splits", err.Error())
		}
		out := make([]ExpenseSplit, len(reqs))
		for i, r := range reqs {
			out[i] = ExpenseSplit{MemberID: r.MemberID, Amount: parts[i], Percentage: r.Percentage}
		}
		return out, nil

	case SplitShares:
		if len(reqs) == 0 {
			return nil, Invalid("splits", "share split needs shares")
		}
		weights := make([]decimal.Decimal, len(reqs))
		for i, r := range reqs {
			if r.Shares <= 0 {
				return nil, Invalid("splits", "shares must be positive")
			}
			weights[i] = decimal.NewFromInt(int64(r.Shares))
		}
		parts, err := money.SplitWeighted(amount, weights)
		if err != nil {
			return nil, Invalid("splits", err.Error())
		}
		out := make([]ExpenseSplit, len(reqs))
		for i, r := range reqs {
			out[i] = ExpenseSplit{MemberID: r.MemberID, Amount: parts[i], Shares: r.Shares,
				Percentage: decimal.NewFromFloat(money.Percent(parts[i], amount))}
		}
		return out, nil
	}
	return nil, Invalid("split_method", "is not valid")
}

type SharedPayment struct {
	ID            int64           `json:"id"`
	LedgerID      string          `json:"ledger_id"`
	FromMemberID  int64           `json:"from_member_id"`
	ToMemberID    int64           `json:"to_member_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Description   string          `json:"description"`
	PaymentDate   time.Time       `json:"payment_date"`
	PaymentMethod string          `json:"payment_method"`
	Reference     string          `json:"reference"`
	IsConfirmed   bool            `json:"is_confirmed"`
	ConfirmedBy   *int64          `json:"confirmed_by,omitempty"`
	ConfirmedAt   *time.Time      `json:"confirmed_at,omitempty"`
	SplitIDs      []int64         `json:"split_ids"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (p *SharedPayment) Validate() error {
	if p.FromMemberID == p.ToMemberID {
		return Invalid("to_member_id", "must differ from the payer")
	}
	if !money.AtLeastCent(p.Amount) {
		return Invalid("amount", "must be at least 0.01")
	}
	if !money.WholeCents(p.Amount) {
		return Invalid("amount", "must have at most 2 decimal places")
	}
	if strings.TrimSpace(p.Description) == "" {
		p.Description = "Settlement payment"
	}
	if p.PaymentDate.IsZero() {
		p.PaymentDate = DateOnly(time.Now())
	}
	if p.PaymentMethod == "" {
		p.PaymentMethod = "cash"
	}
	return nil
}

type ActivityType string

const (
	ActivityMemberJoined       ActivityType = "member_joined"
	ActivityMemberLeft         ActivityType = "member_left"
	ActivityExpenseAdded       ActivityType = "expense_added"
	ActivityExpenseUpdated     ActivityType = "expense_updated"
	ActivityExpenseDeleted     ActivityType = "expense_deleted"
	ActivityPaymentMade        ActivityType = "payment_made"
	ActivityPaymentConfirmed   ActivityType = "payment_confirmed"
	ActivitySettlementComplete ActivityType = "settlement_completed"
	ActivityLedgerUpdated      ActivityType = "ledger_updated"
)

type LedgerActivity struct {
	ID          int64          `json:"id"`
	LedgerID    string         `json:"ledger_id"`
	UserID      int64          `json:"user_id"`
	Type        ActivityType   `json:"activity_type"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// MemberBalance is the net position of one member. Positive means the
// member is owed money.
type MemberBalance struct {
	MemberID      int64           `json:"member_id"`
	Name          string          `json:"name"`
	Paid          decimal.Decimal `json:"paid"`
	Share         decimal.Decimal `json:"share"`
	PaymentsSent  decimal.Decimal `json:"payments_sent"`
	PaymentsRecvd decimal.Decimal `json:"payments_received"`
	Balance       decimal.Decimal `json:"balance"`
}

// Transfer is one step of a settlement plan.
type Transfer struct {
	FromMemberID int64           `json:"from_member_id"`
	ToMemberID   int64           `json:"to_member_id"`
	Amount       decimal.Decimal `json:"amount"`
}
