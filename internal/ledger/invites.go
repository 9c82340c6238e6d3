package ledger

import (
	"context"
	"net/mail"
	"strings"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

// Invite records an e-mail invitation. The invitee accepts it with the
// returned token.
func (s *Service) Invite(ctx context.Context, userID int64, ledgerID string, inv domain.LedgerInvite) (domain.LedgerInvite, error) {
	l, _, err := s.access(ctx, ledgerID, userID, domain.RoleAdmin)
	if err != nil {
		return domain.LedgerInvite{}, err
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(inv.Email))
	if err != nil {
		return domain.LedgerInvite{}, domain.Invalid("email", "is not a valid address")
	}
	if inv.ProposedRole == "" {
		inv.ProposedRole = domain.RoleMember
	}
	if !inv.ProposedRole.Valid() {
		return domain.LedgerInvite{}, domain.Invalid("proposed_role", "is not valid")
	}
	token, err := newToken()
	if err != nil {
		return domain.LedgerInvite{}, err
	}
	now := s.now()
	inv.ID = 0
	inv.LedgerID = l.ID
	inv.InvitedBy = userID
	inv.Email = strings.ToLower(addr.Address)
	inv.Status = domain.InvitePending
	inv.Token = token
	inv.ExpiresAt = now.Add(domain.InviteTTL)
	inv.RespondedAt = nil
	inv.CreatedAt = now
	if err := s.store.CreateInvite(ctx, &inv); err != nil {
		return domain.LedgerInvite{}, err
	}
	return inv, nil
}

// Invites lists the ledger's invitations with expiry applied. Admins only.
func (s *Service) Invites(ctx context.Context, userID int64, ledgerID string) ([]domain.LedgerInvite, error) {
	if _, _, err := s.access(ctx, ledgerID, userID, domain.RoleAdmin); err != nil {
		return nil, err
	}
	invites, err := s.store.ListInvites(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range invites {
		invites[i].Status = invites[i].EffectiveStatus(now)
	}
	return invites, nil
}

// pending loads an invite that can still be answered.
func (s *Service) pending(ctx context.Context, token string) (domain.LedgerInvite, error) {
	inv, err := s.store.GetInviteByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return domain.LedgerInvite{}, err
	}
	switch inv.EffectiveStatus(s.now()) {
	case domain.InvitePending:
		return inv, nil
	case domain.InviteExpired:
		return domain.LedgerInvite{}, domain.ErrExpired
	}
	return domain.LedgerInvite{}, domain.ErrAlreadyProcessed
}

// Accept makes the user a member with the invite's proposed role.
func (s *Service) Accept(ctx context.Context, userID int64, token string) (domain.LedgerMember, error) {
	inv, err := s.pending(ctx, token)
	if err != nil {
		return domain.LedgerMember{}, err
	}
	l, err := s.store.GetLedger(ctx, inv.LedgerID)
	if err != nil {
		return domain.LedgerMember{}, err
	}
	m, err := s.addMember(ctx, l, userID, inv.ProposedRole, &inv.InvitedBy)
	if err != nil {
		return domain.LedgerMember{}, err
	}
	now := s.now()
	inv.Status, inv.RespondedAt = domain.InviteAccepted, &now
	if err := s.store.UpdateInvite(ctx, &inv); err != nil {
		return domain.LedgerMember{}, err
	}
	return m, nil
}

func (s *Service) Decline(ctx context.Context, token string) error {
	inv, err := s.pending(ctx, token)
	if err != nil {
		return err
	}
	now := s.now()
	inv.Status, inv.RespondedAt = domain.InviteDeclined, &now
	return s.store.UpdateInvite(ctx, &inv)
}

// Cancel withdraws a pending invite. Admins only.
func (s *Service) Cancel(ctx context.Context, userID int64, ledgerID string, inviteID int64) error {
	if _, _, err := s.access(ctx, ledgerID, userID, domain.RoleAdmin); err != nil {
		return err
	}
	inv, err := s.store.GetInvite(ctx, ledgerID, inviteID)
	if err != nil {
		return err
	}
	if inv.Status != domain.InvitePending {
		return domain.ErrAlreadyProcessed
	}
	inv.Status = domain.InviteCancelled
	return s.store.UpdateInvite(ctx, &inv)
}
