package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

// LedgerView is a ledger with its members as seen by one of them.
type LedgerView struct {
	domain.SharedLedger
	Members []domain.LedgerMember `json:"members"`
	MyRole  domain.MemberRole     `json:"my_role"`
}

// Create stores a ledger and makes the creator its active admin.
func (s *Service) Create(ctx context.Context, userID int64, l domain.SharedLedger) (LedgerView, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return LedgerView{}, err
	}
	l.ID = ""
	l.CreatedBy = userID
	if l.Currency == "" {
		l.Currency = u.PreferredCurrency
	}
	l.Currency = strings.ToUpper(l.Currency)
	l.TotalExpenses = decimal.Zero
	l.TotalMembers = 1
	if err := l.Validate(); err != nil {
		return LedgerView{}, err
	}
	if err := s.setInviteCode(&l); err != nil {
		return LedgerView{}, err
	}
	now := s.now()
	admin := domain.LedgerMember{
		UserID:          userID,
		Role:            domain.RoleAdmin,
		Status:          domain.MemberActive,
		NotifyOnExpense: true,
		NotifyOnPayment: true,
		JoinedAt:        &now,
		Username:        u.Username,
		FullName:        u.FullName(),
	}
	if err := s.store.CreateLedger(ctx, &l, &admin); err != nil {
		return LedgerView{}, err
	}
	s.activity(ctx, l.ID, userID, domain.ActivityMemberJoined, admin.Name()+" created the ledger", nil)
	return LedgerView{SharedLedger: l, Members: []domain.LedgerMember{admin}, MyRole: domain.RoleAdmin}, nil
}

func (s *Service) setInviteCode(l *domain.SharedLedger) error {
	code, err := newInviteCode()
	if err != nil {
		return err
	}
	exp := s.now().Add(domain.InviteTTL)
	l.InviteCode = code
	l.InviteExpiresAt = &exp
	return nil
}

func (s *Service) List(ctx context.Context, userID int64) ([]domain.SharedLedger, error) {
	return s.store.ListLedgers(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID int64, ledgerID string) (LedgerView, error) {
	l, me, err := s.access(ctx, ledgerID, userID, domain.RoleViewer)
	if err != nil {
		return LedgerView{}, err
	}
	members, err := s.store.ListMembers(ctx, ledgerID)
	if err != nil {
		return LedgerView{}, err
	}
	if !me.Can(domain.RoleAdmin) {
		l.InviteCode, l.InviteExpiresAt = "", nil
	}
	return LedgerView{SharedLedger: l, Members: members, MyRole: me.Role}, nil
}

// Update changes the ledger settings. Admins only.
func (s *Service) Update(ctx context.Context, userID int64, ledgerID string, in domain.SharedLedger) (domain.SharedLedger, error) {
	l, _, err := s.access(ctx, ledgerID, userID, domain.RoleAdmin)
	if err != nil {
		return domain.SharedLedger{}, err
	}
	l.Name = in.Name
	l.Description = in.Description
	if in.LedgerType != "" {
		l.LedgerType = in.LedgerType
	}
	l.IsPublic = in.IsPublic
	l.RequireApproval = in.RequireApproval
	l.AllowFileUploads = in.AllowFileUploads
	if in.Status != "" {
		l.Status = in.Status
	}
	if err := l.Validate(); err != nil {
		return domain.SharedLedger{}, err
	}
	if err := s.store.UpdateLedger(ctx, &l); err != nil {
		return domain.SharedLedger{}, err
	}
	s.activity(ctx, ledgerID, userID, domain.ActivityLedgerUpdated, "Ledger settings updated", nil)
	return l, nil
}

// RegenerateInvite issues a fresh invite code valid for InviteTTL.
func (s *Service) RegenerateInvite(ctx context.Context, userID int64, ledgerID string) (domain.SharedLedger, error) {
	l, _, err := s.access(ctx, ledgerID, userID, domain.RoleAdmin)
	if err != nil {
		return domain.SharedLedger{}, err
	}
	for attempt := 0; ; attempt++ {
		if err := s.setInviteCode(&l); err != nil {
			return domain.SharedLedger{}, err
		}
		err := s.store.UpdateLedger(ctx, &l)
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, domain.ErrConflict) || attempt == 4 {
			return domain.SharedLedger{}, err
		}
	}
}

// Join adds the user as a member through the ledger's invite code.
func (s *Service) Join(ctx context.Context, userID int64, code string) (domain.LedgerMember, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	l, err := s.store.GetLedgerByInviteCode(ctx, code)
	if err != nil {
		return domain.LedgerMember{}, err
	}
	if !l.InviteValid(code, s.now()) {
		return domain.LedgerMember{}, domain.ErrExpired
	}
	if l.Status != domain.LedgerActive {
		return domain.LedgerMember{}, domain.Invalid("ledger", "is not accepting members")
	}
	return s.addMember(ctx, l, userID, domain.RoleMember, nil)
}

// addMember activates the user in the ledger, reusing a former membership.
func (s *Service) addMember(ctx context.Context, l domain.SharedLedger, userID int64, role domain.MemberRole, invitedBy *int64) (domain.LedgerMember, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return domain.LedgerMember{}, err
	}
	now := s.now()
	m, err := s.store.GetMember(ctx, l.ID, userID)
	switch {
	case err == nil && m.Status == domain.MemberActive:
		return domain.LedgerMember{}, domain.ErrConflict
	case err == nil:
		m.Role, m.Status, m.JoinedAt = role, domain.MemberActive, &now
		if invitedBy != nil {
			m.InvitedBy, m.InvitedAt = invitedBy, &now
		}
		err = s.store.UpdateMember(ctx, &m)
	case isNotFound(err):
		m = domain.LedgerMember{
			LedgerID:        l.ID,
			UserID:          userID,
			Role:            role,
			Status:          domain.MemberActive,
			NotifyOnExpense: true,
			NotifyOnPayment: true,
			InvitedBy:       invitedBy,
			JoinedAt:        &now,
			Username:        u.Username,
			FullName:        u.FullName(),
		}
		if invitedBy != nil {
			m.InvitedAt = &now
		}
		err = s.store.CreateMember(ctx, &m)
	}
	if err != nil {
		return domain.LedgerMember{}, err
	}
	s.activity(ctx, l.ID, userID, domain.ActivityMemberJoined, m.Name()+" joined", map[string]any{"role": string(role)})
	s.refreshStats(ctx, l.ID)
	return m, nil
}

func (s *Service) Members(ctx context.Context, userID int64, ledgerID string) ([]domain.LedgerMember, error) {
	if _, _, err := s.access(ctx, ledgerID, userID, domain.RoleViewer); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, ledgerID)
}

// MemberUpdate carries the fields a member may change. Role and Status need
// an admin.
type MemberUpdate struct {
	Role            domain.MemberRole   `json:"role"`
	Status          domain.MemberStatus `json:"status"`
	DisplayName     *string             `json:"display_name"`
	Color           *string             `json:"color"`
	NotifyOnExpense *bool               `json:"notify_on_expense"`
	NotifyOnPayment *bool               `json:"notify_on_payment"`
}

func (s *Service) UpdateMember(ctx context.Context, userID int64, ledgerID string, memberUserID int64, in MemberUpdate) (domain.LedgerMember, error) {
	_, me, err := s.access(ctx, ledgerID, userID, domain.RoleViewer)
	if err != nil {
		return domain.LedgerMember{}, err
	}
	self := memberUserID == userID
	if (in.Role != "" || in.Status != "") && !me.Can(domain.RoleAdmin) {
		return domain.LedgerMember{}, domain.ErrInsufficientRole
	}
	if !self && !me.Can(domain.RoleAdmin) {
		return domain.LedgerMember{}, domain.ErrInsufficientRole
	}
	m, err := s.store.GetMember(ctx, ledgerID, memberUserID)
	if err != nil {
		return domain.LedgerMember{}, err
	}
	if in.Role != "" {
		if !in.Role.Valid() {
			return domain.LedgerMember{}, domain.Invalid("role", "is not valid")
		}
		if m.Role == domain.RoleAdmin && in.Role != domain.RoleAdmin {
			if err := s.keepAnAdmin(ctx, ledgerID, m.UserID); err != nil {
				return domain.LedgerMember{}, err
			}
		}
		m.Role = in.Role
	}
	if in.Status != "" {
		if !in.Status.Valid() {
			return domain.LedgerMember{}, domain.Invalid("status", "is not valid")
		}
		m.Status = in.Status
	}
	if in.DisplayName != nil {
		m.DisplayName = strings.TrimSpace(*in.DisplayName)
	}
	if in.Color != nil {
		m.Color = *in.Color
	}
	if in.NotifyOnExpense != nil {
		m.NotifyOnExpense = *in.NotifyOnExpense
	}
	if in.NotifyOnPayment != nil {
		m.NotifyOnPayment = *in.NotifyOnPayment
	}
	if err := s.store.UpdateMember(ctx, &m); err != nil {
		return domain.LedgerMember{}, err
	}
	if in.Status != "" {
		s.refreshStats(ctx, ledgerID)
	}
	return m, nil
}

// Leave removes the caller from the ledger. The last admin cannot leave.
func (s *Service) Leave(ctx context.Context, userID int64, ledgerID string) error {
	_, me, err := s.access(ctx, ledgerID, userID, domain.RoleViewer)
	if err != nil {
		return err
	}
	if me.Role == domain.RoleAdmin {
		if err := s.keepAnAdmin(ctx, ledgerID, userID); err != nil {
			return err
		}
	}
	me.Status = domain.MemberRemoved
	if err := s.store.UpdateMember(ctx, &me); err != nil {
		return err
	}
	s.activity(ctx, ledgerID, userID, domain.ActivityMemberLeft, me.Name()+" left", nil)
	s.refreshStats(ctx, ledgerID)
	return nil
}

// RemoveMember takes a member out of the ledger. Admins only; callers
// removing themselves go through Leave.
func (s *Service) RemoveMember(ctx context.Context, userID int64, ledgerID string, memberUserID int64) error {
	if memberUserID == userID {
		return s.Leave(ctx, userID, ledgerID)
	}
	if _, _, err := s.access(ctx, ledgerID, userID, domain.RoleAdmin); err != nil {
		return err
	}
	m, err := s.store.GetMember(ctx, ledgerID, memberUserID)
	if err != nil {
		return err
	}
	if m.Status == domain.MemberRemoved {
		return nil
	}
	if m.Role == domain.RoleAdmin {
		if err := s.keepAnAdmin(ctx, ledgerID, memberUserID); err != nil {
			return err
		}
	}
	m.Status = domain.MemberRemoved
	if err := s.store.UpdateMember(ctx, &m); err != nil {
		return err
	}
	s.activity(ctx, ledgerID, userID, domain.ActivityMemberLeft, m.Name()+" was removed", map[string]any{"member_id": m.ID})
	s.refreshStats(ctx, ledgerID)
	return nil
}

func (s *Service) keepAnAdmin(ctx context.Context, ledgerID string, leaving int64) error {
	members, err := s.store.ListMembers(ctx, ledgerID)
	if err != nil {
		return err
	}
	for _, m := range members {
		if m.UserID != leaving && m.Role == domain.RoleAdmin && m.Status == domain.MemberActive {
			return nil
		}
	}
	return domain.Invalid("role", "the ledger needs another active admin first")
}

func (s *Service) Activity(ctx context.Context, userID int64, ledgerID string, limit int) ([]domain.LedgerActivity, error) {
	if _, _, err := s.access(ctx, ledgerID, userID, domain.RoleViewer); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListActivity(ctx, ledgerID, limit)
}
