package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CategoryTotal struct {
	CategoryID   *int64          `json:"category_id,omitempty"`
	CategoryName string          `json:"category_name"`
	Total        decimal.Decimal `json:"total"`
	Count        int             `json:"count"`
}

type MonthlyFinancialSummary struct {
	ID                       int64           `json:"id"`
	UserID                   int64           `json:"user_id"`
	Year                     int             `json:"year"`
	Month                    int             `json:"month"`
	TotalIncome              decimal.Decimal `json:"total_income"`
	IncomeSourcesCount       int             `json:"income_sources_count"`
	PrimaryIncomeSource      string          `json:"primary_income_source"`
	TotalExpenses            decimal.Decimal `json:"total_expenses"`
	FixedExpenses            decimal.Decimal `json:"fixed_expenses"`
	VariableExpenses         decimal.Decimal `json:"variable_expenses"`
	TopExpenseCategory       string          `json:"top_expense_category"`
	TopExpenseAmount         decimal.Decimal `json:"top_expense_amount"`
	NetIncome                decimal.Decimal `json:"net_income"`
	SavingsRate              float64         `json:"savings_rate"`
	TransactionCount         int             `json:"transaction_count"`
	AverageTransactionAmount decimal.Decimal `json:"average_transaction_amount"`
	MostFrequentMerchant     string          `json:"most_frequent_merchant"`
	TotalBudgeted            decimal.Decimal `json:"total_budgeted"`
	BudgetAdherenceRate      float64         `json:"budget_adherence_rate"`
	OverBudgetCategories     []string        `json:"over_budget_categories"`
	CategoryBreakdown        []CategoryTotal `json:"category_breakdown"`
	IncomeChangePercent      float64         `json:"income_change_percent"`
	ExpenseChangePercent     float64         `json:"expense_change_percent"`
	ActiveGoalsCount         int             `json:"active_goals_count"`
	GoalsOnTrack             int             `json:"goals_on_track"`
	GoalContributions        decimal.Decimal `json:"goal_contributions"`
	InsightsGenerated        int             `json:"insights_generated"`
	HighPriorityInsights     int             `json:"high_priority_insights"`
	GeneratedAt              time.Time       `json:"generated_at"`
}

// MonthRange returns the half-open range [first day, first day of next month).
func MonthRange(year, month int) (time.Time, time.Time) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

type PatternType string

const (
	PatternMonthlyTrend       PatternType = "monthly_trend"
	PatternCategoryPreference PatternType = "category_preference"
	PatternMerchantFrequency  PatternType = "merchant_frequency"
	PatternTimeBased          PatternType = "time_based"
	PatternAnomaly            PatternType = "anomaly"
)

type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

type SpendingPattern struct {
	ID              int64          `json:"id"`
	UserID          int64          `json:"user_id"`
	PatternType     PatternType    `json:"pattern_type"`
	CategoryID      *int64         `json:"category_id,omitempty"`
	CategoryName    string         `json:"category_name,omitempty"`
	Description     string         `json:"description"`
	Trend           TrendDirection `json:"trend,omitempty"`
	Data            map[string]any `json:"data"`
	ConfidenceScore float64        `json:"confidence_score"`
	SampleSize      int            `json:"sample_size"`
	AnalysisFrom    time.Time      `json:"analysis_from"`
	AnalysisTo      time.Time      `json:"analysis_to"`
	CreatedAt       time.Time      `json:"created_at"`
}

// PatternConfidence grows with the sample count towards 1.
func PatternConfidence(n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(n) / float64(n+5)
}

type InsightType string

const (
	InsightSpendingAlert       InsightType = "spending_alert"
	InsightTrendAnalysis       InsightType = "trend_analysis"
	InsightSavingsOpportunity  InsightType = "savings_opportunity"
	InsightCashFlowWarning     InsightType = "cash_flow_warning"
	InsightGoalProgress        InsightType = "goal_progress"
	InsightComparativeAnalysis InsightType = "comparative_analysis"
)

type InsightFeedback string

const (
	FeedbackHelpful    InsightFeedback = "helpful"
	FeedbackNotHelpful InsightFeedback = "not_helpful"
	FeedbackIrrelevant InsightFeedback = "irrelevant"
)

func (f InsightFeedback) Valid() bool {
	switch f {
	case FeedbackHelpful, FeedbackNotHelpful, FeedbackIrrelevant:
		return true
	}
	return false
}

type FinancialInsight struct {
	ID               int64               `json:"id"`
	UserID           int64               `json:"user_id"`
	InsightType      InsightType         `json:"insight_type"`
	Title            string              `json:"title"`
	Description      string              `json:"description"`
	Priority         Priority            `json:"priority"`
	RelevanceScore   float64             `json:"relevance_score"`
	Data             map[string]any      `json:"data,omitempty"`
	CategoryID       *int64              `json:"category_id,omitempty"`
	BudgetID         *int64              `json:"budget_id,omitempty"`
	GoalID           *int64              `json:"goal_id,omitempty"`
	PotentialSavings decimal.NullDecimal `json:"potential_savings"`
	IsRead           bool                `json:"is_read"`
	IsDismissed      bool                `json:"is_dismissed"`
	IsActedUpon      bool                `json:"is_acted_upon"`
	Feedback         InsightFeedback     `json:"feedback,omitempty"`
	GeneratedAt      time.Time           `json:"generated_at"`
	ExpiresAt        *time.Time          `json:"expires_at,omitempty"`
}

type PredictionType string

const (
	PredictExpenseForecast PredictionType = "expense_forecast"
	PredictMonthlyBudget   PredictionType = "monthly_budget"
)

type BudgetPrediction struct {
	ID              int64               `json:"id"`
	UserID          int64               `json:"user_id"`
	PredictionType  PredictionType      `json:"prediction_type"`
	CategoryID      *int64              `json:"category_id,omitempty"`
	CategoryName    string              `json:"category_name,omitempty"`
	PredictionMonth time.Time           `json:"prediction_month"`
	PredictedAmount decimal.Decimal     `json:"predicted_amount"`
	LowerBound      decimal.Decimal     `json:"lower_bound"`
	UpperBound      decimal.Decimal     `json:"upper_bound"`
	ModelAccuracy   float64             `json:"model_accuracy"`
	SampleSize      int                 `json:"sample_size"`
	ActualAmount    decimal.NullDecimal `json:"actual_amount"`
	PredictionError decimal.NullDecimal `json:"prediction_error"`
	CreatedAt       time.Time           `json:"created_at"`
}

// CalculateError records the actual amount and the absolute error.
func (p *BudgetPrediction) CalculateError(actual decimal.Decimal) {
	p.ActualAmount = decimal.NewNullDecimal(actual)
	p.PredictionError = decimal.NewNullDecimal(p.PredictedAmount.Sub(actual).Abs())
}

type InsightFrequency string

const (
	InsightImmediate InsightFrequency = "immediate"
	InsightDaily     InsightFrequency = "daily"
	InsightWeekly    InsightFrequency = "weekly"
	InsightMonthly   InsightFrequency = "monthly"
)

type AnalyticsConfiguration struct {
	UserID                       int64            `json:"user_id"`
	EnableSpendingAlerts         bool             `json:"enable_spending_alerts"`
	EnableTrendAnalysis          bool             `json:"enable_trend_analysis"`
	EnableSavingsSuggestions     bool             `json:"enable_savings_suggestions"`
	EnableGoalTracking           bool             `json:"enable_goal_tracking"`
	EnableCashFlowWarnings       bool             `json:"enable_cash_flow_warnings"`
	EnableComparativeAnalysis    bool             `json:"enable_comparative_analysis"`
	SpendingAlertThreshold       int              `json:"spending_alert_threshold"`
	LargeTransactionThreshold    decimal.Decimal  `json:"large_transaction_threshold"`
	EnableAutoCategorization     bool             `json:"enable_auto_categorization"`
	CategorizationConfidence     float64          `json:"categorization_confidence_threshold"`
	EnablePredictiveBudgeting    bool             `json:"enable_predictive_budgeting"`
	InsightNotificationFrequency InsightFrequency `json:"insight_notification_frequency"`
	KeepInsightsForDays          int              `json:"keep_insights_for_days"`
	KeepPredictionsForDays       int              `json:"keep_predictions_for_days"`
	UpdatedAt                    time.Time        `json:"updated_at"`
}

func DefaultAnalyticsConfiguration(userID int64) AnalyticsConfiguration {
	return AnalyticsConfiguration{
		UserID:                       userID,
		EnableSpendingAlerts:         true,
		EnableTrendAnalysis:          true,
		EnableSavingsSuggestions:     true,
		EnableGoalTracking:           true,
		EnableCashFlowWarnings:       true,
		EnableComparativeAnalysis:    true,
		SpendingAlertThreshold:       80,
		LargeTransactionThreshold:    decimal.NewFromInt(1000),
		EnableAutoCategorization:     true,
		CategorizationConfidence:     0.8,
		EnablePredictiveBudgeting:    true,
		InsightNotificationFrequency: InsightDaily,
		KeepInsightsForDays:          90,
		KeepPredictionsForDays:       365,
	}
}

func (c *AnalyticsConfiguration) Validate() error {
	if c.SpendingAlertThreshold < 1 || c.SpendingAlertThreshold > 100 {
		return Invalid("spending_alert_threshold", "must be between 1 and 100")
	}
	if c.LargeTransactionThreshold.IsNegative() {
		return Invalid("large_transaction_threshold", "must not be negative")
	}
	if c.CategorizationConfidence < 0 || c.CategorizationConfidence > 1 {
		return Invalid("categorization_confidence_threshold", "must be between 0 and 1")
	}
	switch c.InsightNotificationFrequency {
	case InsightImmediate, InsightDaily, InsightWeekly, InsightMonthly:
	default:
		return Invalid("insight_notification_frequency", "is not valid")
	}
	if c.KeepInsightsForDays < 1 || c.KeepPredictionsForDays < 1 {
		return Invalid("retention", "must be at least one day")
	}
	return nil
}

// TrainingSample is a labelled example for the categoriser.
type TrainingSample struct {
	ID                  int64           `json:"id"`
	UserID              int64           `json:"user_id"`
	Description         string          `json:"description"`
	Amount              decimal.Decimal `json:"amount"`
	MerchantName        string          `json:"merchant_name"`
	CategoryID          int64           `json:"category_id"`
	PredictedCategoryID *int64          `json:"predicted_category_id,omitempty"`
	PredictedConfidence *float64        `json:"predicted_confidence,omitempty"`
	Features            []string        `json:"features"`
	IsValidated         bool            `json:"is_validated"`
	CreatedAt           time.Time       `json:"created_at"`
}
