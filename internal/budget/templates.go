package budget

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

func (s *Service) Templates(ctx context.Context, userID int64) ([]domain.BudgetTemplate, error) {
	return s.store.ListTemplates(ctx, userID)
}

func (s *Service) CreateTemplate(ctx context.Context, userID int64, t domain.BudgetTemplate) (domain.BudgetTemplate, error) {
	t.ID = 0
	t.CreatedBy = &userID
	t.IsSystemDefault = false
	t.TimesUsed = 0
	if err := t.Validate(); err != nil {
		return domain.BudgetTemplate{}, err
	}
	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return domain.BudgetTemplate{}, err
	}
	visible := make(map[int64]bool, len(cats))
	for _, c := range cats {
		visible[c.ID] = true
	}
	for _, it := range t.Items {
		if !visible[it.CategoryID] {
			return domain.BudgetTemplate{}, domain.Invalid("category_id", "is not a visible category")
		}
	}
	if err := s.store.CreateTemplate(ctx, &t); err != nil {
		return domain.BudgetTemplate{}, err
	}
	return t, nil
}

// FromTemplate creates a budget named "<template> - <period>" whose items get
// the template percentages of total.
func (s *Service) FromTemplate(ctx context.Context, userID, templateID, periodID int64, total decimal.Decimal, currency string) (domain.Budget, error) {
	t, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return domain.Budget{}, err
	}
	if !t.VisibleTo(userID) {
		return domain.Budget{}, domain.ErrNotFound
	}
	p, err := s.period(ctx, periodID)
	if err != nil {
		return domain.Budget{}, err
	}
	b, err := s.Create(ctx, userID, domain.Budget{
		Name:        t.Name + " - " + p.Name,
		Description: strings.TrimSpace(t.Description),
		PeriodID:    p.ID,
		TotalAmount: total,
		Currency:    currency,
		Items:       t.Allocate(total),
	})
	if err != nil {
		return domain.Budget{}, err
	}
	if err := s.store.IncrementTemplateUse(ctx, t.ID); err != nil {
		s.log.Warn().Err(err).Int64("template_id", t.ID).Msg("count template use")
	}
	return b, nil
}
