package budget

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

func (s *Service) List(ctx context.Context, userID int64, status domain.BudgetStatus) ([]domain.Budget, error) {
	if status != "" && !status.Valid() {
		return nil, domain.Invalid("status", "is not valid")
	}
	return s.store.ListBudgets(ctx, userID, status)
}

func (s *Service) Get(ctx context.Context, userID, id int64) (domain.Budget, error) {
	return s.store.GetBudget(ctx, userID, id)
}

// Create stores a budget with its items for an existing period.
func (s *Service) Create(ctx context.Context, userID int64, b domain.Budget) (domain.Budget, error) {
	b.ID = 0
	b.UserID = userID
	b.AlertSentAt, b.LastCalculated = nil, nil
	if b.Currency == "" {
		b.Currency = s.defaultCurrency(ctx, userID)
	}
	b.Currency = strings.ToUpper(b.Currency)
	if b.RolloverLimit == 0 {
		b.RolloverLimit = domain.DefaultRolloverLimit
	}
	if err := b.Validate(); err != nil {
		return domain.Budget{}, err
	}
	p, err := s.period(ctx, b.PeriodID)
	if err != nil {
		return domain.Budget{}, err
	}
	b.Period = &p
	if err := s.checkItems(ctx, userID, b.Items); err != nil {
		return domain.Budget{}, err
	}
	b.Recompute(s.now())
	if err := s.store.CreateBudget(ctx, &b); err != nil {
		return domain.Budget{}, err
	}
	return b, nil
}

func (s *Service) checkItems(ctx context.Context, userID int64, items []domain.BudgetItem) error {
	if len(items) == 0 {
		return nil
	}
	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return err
	}
	visible := make(map[int64]string, len(cats))
	for _, c := range cats {
		visible[c.ID] = c.Name
	}
	seen := map[int64]bool{}
	for i := range items {
		it := &items[i]
		if err := it.Validate(); err != nil {
			return err
		}
		name, ok := visible[it.CategoryID]
		if !ok {
			return domain.Invalid("category_id", "is not a visible category")
		}
		if seen[it.CategoryID] {
			return fmt.Errorf("%w: category %s budgeted twice", domain.ErrConflict, name)
		}
		seen[it.CategoryID] = true
		it.CategoryName = name
		it.SpentAmount = decimal.Zero
	}
	return nil
}

// Update changes the budget settings. Items are managed separately.
func (s *Service) Update(ctx context.Context, userID, id int64, in domain.Budget) (domain.Budget, error) {
	cur, err := s.store.GetBudget(ctx, userID, id)
	if err != nil {
		return domain.Budget{}, err
	}
	cur.Name = in.Name
	cur.Description = in.Description
	cur.TotalAmount = in.TotalAmount
	if in.Status != "" {
		cur.Status = in.Status
	}
	cur.IsShared = in.IsShared
	if in.AlertType != "" {
		cur.AlertType = in.AlertType
	}
	if in.AlertThreshold != 0 {
		if in.AlertThreshold != cur.AlertThreshold {
			cur.AlertSentAt = nil
		}
		cur.AlertThreshold = in.AlertThreshold
	}
	cur.AllowRollover = in.AllowRollover
	cur.RolloverLimit = in.RolloverLimit
	if err := cur.Validate(); err != nil {
		return domain.Budget{}, err
	}
	cur.Recompute(s.now())
	if err := s.store.UpdateBudget(ctx, &cur); err != nil {
		return domain.Budget{}, err
	}
	return cur, nil
}

func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	return s.store.DeleteBudget(ctx, userID, id)
}

func (s *Service) AddItem(ctx context.Context, userID, budgetID int64, it domain.BudgetItem) (domain.BudgetItem, error) {
	b, err := s.store.GetBudget(ctx, userID, budgetID)
	if err != nil {
		return domain.BudgetItem{}, err
	}
	items := []domain.BudgetItem{it}
	if err := s.checkItems(ctx, userID, items); err != nil {
		return domain.BudgetItem{}, err
	}
	it = items[0]
	for _, existing := range b.Items {
		if existing.CategoryID == it.CategoryID {
			return domain.BudgetItem{}, fmt.Errorf("%w: category %s budgeted twice", domain.ErrConflict, it.CategoryName)
		}
	}
	it.ID = 0
	it.BudgetID = budgetID
	it.Recompute()
	if err := s.store.CreateBudgetItem(ctx, &it); err != nil {
		return domain.BudgetItem{}, err
	}
	return it, nil
}

func (s *Service) Item(ctx context.Context, userID, budgetID, itemID int64) (domain.BudgetItem, error) {
	b, err := s.store.GetBudget(ctx, userID, budgetID)
	if err != nil {
		return domain.BudgetItem{}, err
	}
	for _, it := range b.Items {
		if it.ID == itemID {
			return it, nil
		}
	}
	return domain.BudgetItem{}, domain.ErrNotFound
}

func (s *Service) UpdateItem(ctx context.Context, userID, budgetID, itemID int64, in domain.BudgetItem) (domain.BudgetItem, error) {
	b, err := s.store.GetBudget(ctx, userID, budgetID)
	if err != nil {
		return domain.BudgetItem{}, err
	}
	for _, it := range b.Items {
		if it.ID != itemID {
			continue
		}
		it.BudgetedAmount = in.BudgetedAmount
		it.IsFlexible = in.IsFlexible
		it.Notes = in.Notes
		if err := it.Validate(); err != nil {
			return domain.BudgetItem{}, err
		}
		it.Recompute()
		if err := s.store.UpdateBudgetItem(ctx, &it); err != nil {
			return domain.BudgetItem{}, err
		}
		return it, nil
	}
	return domain.BudgetItem{}, domain.ErrNotFound
}

func (s *Service) DeleteItem(ctx context.Context, userID, budgetID, itemID int64) error {
	if _, err := s.store.GetBudget(ctx, userID, budgetID); err != nil {
		return err
	}
	return s.store.DeleteBudgetItem(ctx, budgetID, itemID)
}

// CalculateSpent refreshes the spent amounts of a budget from the user's
// transactions in its period.
func (s *Service) CalculateSpent(ctx context.Context, userID, id int64) (domain.Budget, error) {
	b, err := s.store.GetBudget(ctx, userID, id)
	if err != nil {
		return domain.Budget{}, err
	}
	if err := s.calculate(ctx, &b); err != nil {
		return domain.Budget{}, err
	}
	return b, nil
}

// ActiveOn returns the active budgets whose period contains day, with
// freshly calculated totals.
func (s *Service) ActiveOn(ctx context.Context, userID int64, day time.Time) ([]domain.Budget, error) {
	budgets, err := s.store.ListBudgetsOn(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	for i := range budgets {
		if err := s.calculate(ctx, &budgets[i]); err != nil {
			return nil, err
		}
	}
	return budgets, nil
}

func (s *Service) calculate(ctx context.Context, b *domain.Budget) error {
	p := b.Period
	if p == nil {
		loaded, err := s.store.GetPeriod(ctx, b.PeriodID)
		if err != nil {
			return err
		}
		p = &loaded
		b.Period = p
	}
	from := domain.DateOnly(p.StartDate)
	to := domain.DateOnly(p.EndDate).AddDate(0, 0, 1)
	txs, err := s.store.TransactionsBetween(ctx, b.UserID, from, to)
	if err != nil {
		return err
	}
	splits, err := s.store.SplitsFor(ctx, transactionIDs(txs))
	if err != nil {
		return err
	}
	spent := SpentByCategory(*p, b.Currency, txs, splits)
	for i := range b.Items {
		b.Items[i].SpentAmount = spent[b.Items[i].CategoryID]
	}
	b.Recompute(s.now())
	return s.store.SaveBudgetTotals(ctx, b)
}

// CheckAlert fires the budget alert once, when usage reaches the threshold.
func (s *Service) CheckAlert(ctx context.Context, b *domain.Budget) (bool, error) {
	if b.AlertSentAt != nil || b.AlertType == domain.AlertNone || b.Status != domain.BudgetActive {
		return false, nil
	}
	if b.PercentageUsed < float64(b.AlertThreshold) {
		return false, nil
	}
	now := s.now()
	if err := s.store.MarkBudgetAlertSent(ctx, b.ID, now); err != nil {
		return false, err
	}
	b.AlertSentAt = &now

	priority := domain.PriorityMedium
	title := "Budget nearing its limit"
	if b.PercentageUsed >= 100 {
		priority = domain.PriorityHigh
		title = "Budget exceeded"
	}
	id := b.ID
	s.emit(ctx, domain.Notification{
		UserID:   b.UserID,
		Type:     domain.NotifyBudgetAlert,
		Title:    title,
		Message:  fmt.Sprintf("You have used %.0f%% of %q: %s of %s %s.", b.PercentageUsed, b.Name, b.TotalSpent.StringFixed(2), b.TotalAmount.StringFixed(2), b.Currency),
		Priority: priority,
		Data: map[string]any{
			"percentage_used": b.PercentageUsed,
			"threshold":       b.AlertThreshold,
			"total_spent":     b.TotalSpent.StringFixed(2),
			"total_amount":    b.TotalAmount.StringFixed(2),
		},
		RelatedBudgetID: &id,
	})
	return true, nil
}

// CheckTransaction recalculates the active budgets covering an expense and
// fires any alert that became due.
func (s *Service) CheckTransaction(ctx context.Context, t domain.Transaction) error {
	if t.Type != domain.TypeExpense {
		return nil
	}
	budgets, err := s.store.ListBudgetsOn(ctx, t.UserID, t.TransactionDate)
	if err != nil {
		return err
	}
	for i := range budgets {
		b := &budgets[i]
		if err := s.calculate(ctx, b); err != nil {
			return fmt.Errorf("budget %d: %w", b.ID, err)
		}
		if _, err := s.CheckAlert(ctx, b); err != nil {
			return fmt.Errorf("budget %d alert: %w", b.ID, err)
		}
	}
	return nil
}

// Rollover copies a budget into the following period, adding the unspent
// amount up to the rollover limit, and completes the original. nextPeriodID
// picks the target period; zero means the next calendar period.
func (s *Service) Rollover(ctx context.Context, userID, id, nextPeriodID int64) (domain.Budget, error) {
	prev, err := s.store.GetBudget(ctx, userID, id)
	if err != nil {
		return domain.Budget{}, err
	}
	if !prev.AllowRollover {
		return domain.Budget{}, domain.Invalid("allow_rollover", "is off for this budget")
	}
	if prev.Status == domain.BudgetCompleted {
		return domain.Budget{}, domain.ErrAlreadyProcessed
	}
	if err := s.calculate(ctx, &prev); err != nil {
		return domain.Budget{}, err
	}

	var next domain.BudgetPeriod
	if nextPeriodID != 0 {
		next, err = s.period(ctx, nextPeriodID)
	} else {
		next, err = s.EnsurePeriod(ctx, prev.Period.PeriodType, prev.Period.EndDate.AddDate(0, 0, 1))
	}
	if err != nil {
		return domain.Budget{}, err
	}
	if !next.StartDate.After(prev.Period.EndDate) {
		return domain.Budget{}, domain.Invalid("period_id", "must start after the current period")
	}

	carry := prev.RolloverAmount()
	nb := prev
	nb.ID = 0
	nb.PeriodID = next.ID
	nb.Period = &next
	nb.TotalAmount = prev.TotalAmount.Add(carry)
	nb.Status = domain.BudgetActive
	nb.AlertSentAt = nil
	nb.Items = make([]domain.BudgetItem, len(prev.Items))
	for i, it := range prev.Items {
		it.ID = 0
		it.BudgetID = 0
		it.SpentAmount = decimal.Zero
		nb.Items[i] = it
	}
	nb.Recompute(s.now())

	prev.Status = domain.BudgetCompleted
	if err := s.store.RolloverBudget(ctx, &prev, &nb); err != nil {
		return domain.Budget{}, err
	}
	return nb, nil
}
