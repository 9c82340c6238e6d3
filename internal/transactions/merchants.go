package transactions

import (
	"context"
	"errors"
	"strings"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

func (s *Service) ListMerchants(ctx context.Context, userID int64) ([]domain.Merchant, error) {
	return s.store.ListMerchants(ctx, userID)
}

func (s *Service) GetMerchant(ctx context.Context, userID, id int64) (domain.Merchant, error) {
	return s.store.GetMerchant(ctx, userID, id)
}

func (s *Service) CreateMerchant(ctx context.Context, userID int64, m domain.Merchant) (domain.Merchant, error) {
	if err := m.Validate(); err != nil {
		return domain.Merchant{}, err
	}
	if err := s.checkCategory(ctx, userID, m.CategoryID); err != nil {
		return domain.Merchant{}, err
	}
	m.ID = 0
	m.UserID = userID
	m.TotalTransactions = 0
	m.FirstTransactionDate, m.LastTransactionDate = nil, nil
	if err := s.store.CreateMerchant(ctx, &m); err != nil {
		return domain.Merchant{}, err
	}
	return m, nil
}

// UpdateMerchant replaces the descriptive fields; statistics are kept.
func (s *Service) UpdateMerchant(ctx context.Context, userID, id int64, in domain.Merchant) (domain.Merchant, error) {
	cur, err := s.store.GetMerchant(ctx, userID, id)
	if err != nil {
		return domain.Merchant{}, err
	}
	if err := s.checkCategory(ctx, userID, in.CategoryID); err != nil {
		return domain.Merchant{}, err
	}
	in.ID = cur.ID
	in.UserID = cur.UserID
	in.TotalTransactions = cur.TotalTransactions
	in.TotalAmountSpent = cur.TotalAmountSpent
	in.FirstTransactionDate = cur.FirstTransactionDate
	in.LastTransactionDate = cur.LastTransactionDate
	in.CreatedAt = cur.CreatedAt
	if err := in.Validate(); err != nil {
		return domain.Merchant{}, err
	}
	if err := s.store.UpdateMerchant(ctx, &in); err != nil {
		return domain.Merchant{}, err
	}
	return in, nil
}

// FindOrCreateMerchant returns the user's merchant with that name, creating
// it when missing.
func (s *Service) FindOrCreateMerchant(ctx context.Context, userID int64, name string) (domain.Merchant, error) {
	name = strings.TrimSpace(name)
	m, err := s.store.FindMerchantByName(ctx, userID, name)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Merchant{}, err
	}
	m = domain.Merchant{UserID: userID, Name: name}
	if err := m.Validate(); err != nil {
		return domain.Merchant{}, err
	}
	if err := s.store.CreateMerchant(ctx, &m); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return s.store.FindMerchantByName(ctx, userID, name)
		}
		return domain.Merchant{}, err
	}
	return m, nil
}

func (s *Service) checkCategory(ctx context.Context, userID int64, id *int64) error {
	if id == nil {
		return nil
	}
	_, byID, err := s.visibleCategories(ctx, userID)
	if err != nil {
		return err
	}
	if _, ok := byID[*id]; !ok {
		return domain.Invalid("category_id", "is not a visible category")
	}
	return nil
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
