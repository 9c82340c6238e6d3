package transactions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/categorize"
	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

func (s *Service) List(ctx context.Context, f domain.TransactionFilter) (domain.TransactionPage, error) {
	f.Normalize()
	f.Search = strings.TrimSpace(f.Search)
	items, total, err := s.store.ListTransactions(ctx, f)
	if err != nil {
		return domain.TransactionPage{}, err
	}
	if items == nil {
		items = []domain.Transaction{}
	}
	return domain.TransactionPage{Items: items, Total: total, Page: f.Page, PageSize: f.PageSize}, nil
}

func (s *Service) Get(ctx context.Context, userID, id int64) (domain.Transaction, error) {
	return s.store.GetTransaction(ctx, userID, id)
}

// Create validates and stores a transaction for the user. Uncategorised
// transactions go through the categoriser when the user enabled it. Expenses
// update merchant statistics and budget alerts.
func (s *Service) Create(ctx context.Context, userID int64, t domain.Transaction) (domain.Transaction, error) {
	t.ID = 0
	t.UserID = userID
	t.IsAutoCategorized, t.NeedsReview, t.ConfidenceScore = false, false, nil
	if t.Currency == "" {
		t.Currency = s.defaultCurrency(ctx, userID)
	}
	t.Currency = strings.ToUpper(t.Currency)
	if err := t.Validate(); err != nil {
		return domain.Transaction{}, err
	}
	if err := s.checkCategory(ctx, userID, t.CategoryID); err != nil {
		return domain.Transaction{}, err
	}
	if err := s.resolveMerchant(ctx, &t); err != nil {
		return domain.Transaction{}, err
	}

	cfg := s.analyticsConfig(ctx, userID)
	if t.CategoryID == nil && t.Type != domain.TypeTransfer && s.autoCategorize(ctx, userID, cfg) {
		s.applySuggestion(ctx, &t, cfg.CategorizationConfidence)
	}

	if err := s.store.CreateTransaction(ctx, &t); err != nil {
		return domain.Transaction{}, err
	}
	s.afterCreate(ctx, t, cfg)
	return t, nil
}

func (s *Service) defaultCurrency(ctx context.Context, userID int64) string {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil || u.PreferredCurrency == "" {
		return domain.DefaultCurrency
	}
	return u.PreferredCurrency
}

func (s *Service) analyticsConfig(ctx context.Context, userID int64) domain.AnalyticsConfiguration {
	cfg, err := s.store.GetAnalyticsConfig(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.Warn().Err(err).Int64("user_id", userID).Msg("load analytics configuration")
		}
		return domain.DefaultAnalyticsConfiguration(userID)
	}
	return cfg
}

func (s *Service) autoCategorize(ctx context.Context, userID int64, cfg domain.AnalyticsConfiguration) bool {
	if s.categorize == nil || !cfg.EnableAutoCategorization {
		return false
	}
	pref, err := s.store.GetPreference(ctx, userID)
	if err != nil {
		return errors.Is(err, domain.ErrNotFound)
	}
	return pref.AutoCategorizeTransactions
}

// resolveMerchant checks a referenced merchant, or finds or creates one from
// the merchant name.
func (s *Service) resolveMerchant(ctx context.Context, t *domain.Transaction) error {
	if t.MerchantID != nil {
		m, err := s.store.GetMerchant(ctx, t.UserID, *t.MerchantID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Invalid("merchant_id", "is not one of your merchants")
			}
			return err
		}
		t.MerchantName = m.Name
		return nil
	}
	if strings.TrimSpace(t.MerchantName) == "" {
		t.MerchantName = ""
		return nil
	}
	m, err := s.FindOrCreateMerchant(ctx, t.UserID, t.MerchantName)
	if err != nil {
		return err
	}
	id := m.ID
	t.MerchantID = &id
	t.MerchantName = m.Name
	return nil
}

func (s *Service) applySuggestion(ctx context.Context, t *domain.Transaction, threshold float64) {
	if threshold <= 0 {
		threshold = categorize.DefaultThreshold
	}
	sug, err := s.categorize.Suggest(ctx, categorize.Input{
		UserID:       t.UserID,
		Description:  t.Description,
		MerchantName: t.MerchantName,
		MerchantID:   t.MerchantID,
		Amount:       t.Amount,
		Type:         t.Type,
		Threshold:    threshold,
	})
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", t.UserID).Msg("categorisation failed")
		return
	}
	if sug.CategoryID == nil || sug.Confidence <= 0 {
		return
	}
	conf := sug.Confidence
	t.ConfidenceScore = &conf
	if conf >= threshold {
		t.CategoryID = sug.CategoryID
		t.CategoryName = sug.CategoryName
		t.IsAutoCategorized = true
		return
	}
	t.NeedsReview = true
}

func (s *Service) afterCreate(ctx context.Context, t domain.Transaction, cfg domain.AnalyticsConfiguration) {
	if t.Type != domain.TypeExpense || t.Status == domain.StatusCancelled || t.Status == domain.StatusFailed {
		return
	}
	if t.MerchantID != nil {
		if err := s.store.RecordMerchantExpense(ctx, *t.MerchantID, t.Amount, t.TransactionDate); err != nil {
			s.log.Error().Err(err).Int64("merchant_id", *t.MerchantID).Msg("update merchant statistics")
		}
	}
	if s.budgets != nil {
		if err := s.budgets.CheckTransaction(ctx, t); err != nil {
			s.log.Error().Err(err).Int64("transaction_id", t.ID).Msg("budget check failed")
		}
	}
	if s.notifier != nil && cfg.LargeTransactionThreshold.IsPositive() && t.Amount.GreaterThanOrEqual(cfg.LargeTransactionThreshold) {
		id := t.ID
		s.notifier.Emit(ctx, domain.Notification{
			UserID:   t.UserID,
			Type:     domain.NotifyTransaction,
			Title:    "Large transaction recorded",
			Message:  fmt.Sprintf("%s %s spent on %s.", t.Currency, t.Amount.StringFixed(2), t.Description),
			Priority: domain.PriorityMedium,
			Data: map[string]any{
				"amount":    t.Amount.StringFixed(2),
				"currency":  t.Currency,
				"threshold": cfg.LargeTransactionThreshold.StringFixed(2),
			},
			RelatedTransactionID: &id,
		})
	}
}

// Update replaces the editable fields of an owned transaction. Setting a
// category on an auto-categorised or flagged transaction records a training
// sample for the categoriser.
func (s *Service) Update(ctx context.Context, userID, id int64, in domain.Transaction) (domain.Transaction, error) {
	cur, err := s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return domain.Transaction{}, err
	}

	next := cur
	next.Type = in.Type
	next.Amount = in.Amount
	if in.Currency != "" {
		next.Currency = strings.ToUpper(in.Currency)
	}
	next.Description = in.Description
	next.CategoryID = in.CategoryID
	next.MerchantID = in.MerchantID
	next.MerchantName = in.MerchantName
	next.Tags = in.Tags
	next.FromAccountID = in.FromAccountID
	next.ToAccountID = in.ToAccountID
	if !in.TransactionDate.IsZero() {
		next.TransactionDate = in.TransactionDate
	}
	next.ValueDate = in.ValueDate
	if in.Status != "" {
		next.Status = in.Status
	}
	next.Latitude = in.Latitude
	next.Longitude = in.Longitude
	next.LocationName = in.LocationName
	next.ReferenceNumber = in.ReferenceNumber
	next.ReceiptPath = in.ReceiptPath
	next.Notes = in.Notes

	if err := next.Validate(); err != nil {
		return domain.Transaction{}, err
	}
	if err := s.checkCategory(ctx, userID, next.CategoryID); err != nil {
		return domain.Transaction{}, err
	}
	if err := s.resolveMerchant(ctx, &next); err != nil {
		return domain.Transaction{}, err
	}
	if !next.Amount.Equal(cur.Amount) {
		splits, err := s.store.ListSplits(ctx, id)
		if err != nil {
			return domain.Transaction{}, err
		}
		if err := domain.ValidateSplits(next.Amount, splits); err != nil {
			return domain.Transaction{}, err
		}
	}

	corrected := next.CategoryID != nil && (cur.IsAutoCategorized || cur.NeedsReview) && !sameID(cur.CategoryID, next.CategoryID)
	if corrected {
		next.IsAutoCategorized = false
		next.NeedsReview = false
	} else if next.CategoryID != nil && cur.NeedsReview {
		next.NeedsReview = false
	}

	if err := s.store.UpdateTransaction(ctx, &next); err != nil {
		return domain.Transaction{}, err
	}
	if corrected {
		s.recordCorrection(ctx, cur, next)
	}
	return next, nil
}

func (s *Service) recordCorrection(ctx context.Context, before, after domain.Transaction) {
	sample := domain.TrainingSample{
		UserID:              after.UserID,
		Description:         after.Description,
		Amount:              after.Amount,
		MerchantName:        after.MerchantName,
		CategoryID:          *after.CategoryID,
		PredictedCategoryID: before.CategoryID,
		PredictedConfidence: before.ConfidenceScore,
		Features:            categorize.Tokens(after.Description + " " + after.MerchantName),
		IsValidated:         true,
	}
	if err := s.store.CreateTrainingSample(ctx, &sample); err != nil {
		s.log.Error().Err(err).Int64("transaction_id", after.ID).Msg("record training sample")
	}
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	return s.store.DeleteTransaction(ctx, userID, id)
}

func (s *Service) Splits(ctx context.Context, userID, id int64) ([]domain.TransactionSplit, error) {
	if _, err := s.store.GetTransaction(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.store.ListSplits(ctx, id)
}

// ReplaceSplits swaps the split set of a transaction. An empty set removes
// all splits.
func (s *Service) ReplaceSplits(ctx context.Context, userID, id int64, splits []domain.TransactionSplit) ([]domain.TransactionSplit, error) {
	t, err := s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	_, byID, err := s.visibleCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range splits {
		if _, ok := byID[splits[i].CategoryID]; !ok {
			return nil, domain.Invalid("splits", "category is not visible")
		}
		splits[i].ID = 0
		splits[i].TransactionID = id
		splits[i].Description = strings.TrimSpace(splits[i].Description)
	}
	if err := domain.ValidateSplits(t.Amount, splits); err != nil {
		return nil, err
	}
	if err := s.store.ReplaceSplits(ctx, id, splits); err != nil {
		return nil, err
	}
	if splits == nil {
		splits = []domain.TransactionSplit{}
	}
	return splits, nil
}

// Suggest previews the category the categoriser would pick.
func (s *Service) Suggest(ctx context.Context, userID int64, description, merchant string, amount decimal.Decimal) (categorize.Suggestion, error) {
	if strings.TrimSpace(description) == "" {
		return categorize.Suggestion{}, domain.Invalid("description", "is required")
	}
	if s.categorize == nil {
		return categorize.Suggestion{Source: categorize.SourceNone}, nil
	}
	cfg := s.analyticsConfig(ctx, userID)
	return s.categorize.Suggest(ctx, categorize.Input{
		UserID:       userID,
		Description:  description,
		MerchantName: merchant,
		Amount:       amount,
		Type:         domain.TypeExpense,
		Threshold:    cfg.CategorizationConfidence,
	})
}
