package domain

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type RiskTolerance string

const (
	RiskConservative RiskTolerance = "conservative"
	RiskModerate     RiskTolerance = "moderate"
	RiskAggressive   RiskTolerance = "aggressive"
)

func (r RiskTolerance) Valid() bool {
	switch r {
	case RiskConservative, RiskModerate, RiskAggressive:
		return true
	}
	return false
}

type InvestmentExperience string

const (
	ExperienceBeginner     InvestmentExperience = "beginner"
	ExperienceIntermediate InvestmentExperience = "intermediate"
	ExperienceAdvanced     InvestmentExperience = "advanced"
	ExperienceExpert       InvestmentExperience = "expert"
)

func (e InvestmentExperience) Valid() bool {
	switch e {
	case ExperienceBeginner, ExperienceIntermediate, ExperienceAdvanced, ExperienceExpert:
		return true
	}
	return false
}

// SupportedCurrencies are the currencies a user may pick as preferred.
var SupportedCurrencies = []string{"LKR", "USD", "EUR", "GBP"}

const (
	DefaultCurrency = "LKR"
	DefaultTimezone = "Asia/Colombo"
)

var phoneRE = regexp.MustCompile(`^\+?1?\d{9,15}$`)

type User struct {
	ID                  int64               `json:"id"`
	Username            string              `json:"username"`
	Email               string              `json:"email"`
	FirstName           string              `json:"first_name"`
	LastName            string              `json:"last_name"`
	PasswordHash        string              `json:"-"`
	PhoneNumber         string              `json:"phone_number"`
	DateOfBirth         *time.Time          `json:"date_of_birth,omitempty"`
	PreferredCurrency   string              `json:"preferred_currency"`
	Timezone            string              `json:"timezone"`
	MonthlyIncome       decimal.NullDecimal `json:"monthly_income"`
	FinancialGoals      string              `json:"financial_goals"`
	RiskTolerance       RiskTolerance       `json:"risk_tolerance"`
	IsProfilePublic     bool                `json:"is_profile_public"`
	EnableNotifications bool                `json:"enable_notifications"`
	EnableEmailAlerts   bool                `json:"enable_email_alerts"`
	EnableSMSAlerts     bool                `json:"enable_sms_alerts"`
	IsVerified          bool                `json:"is_verified"`
	VerificationToken   string              `json:"-"`
	TelegramChatID      int64               `json:"telegram_chat_id,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Validate checks the fields a user can edit.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return Invalid("username", "is required")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return Invalid("email", "is not a valid address")
	}
	if u.PhoneNumber != "" && !phoneRE.MatchString(u.PhoneNumber) {
		return Invalid("phone_number", "must be entered in the format '+999999999', up to 15 digits")
	}
	if !supportedCurrency(u.PreferredCurrency) {
		return Invalid("preferred_currency", "is not supported")
	}
	if !u.RiskTolerance.Valid() {
		return Invalid("risk_tolerance", "is not valid")
	}
	if u.MonthlyIncome.Valid && u.MonthlyIncome.Decimal.IsNegative() {
		return Invalid("monthly_income", "must not be negative")
	}
	return nil
}

func supportedCurrency(c string) bool {
	for _, s := range SupportedCurrencies {
		if s == c {
			return true
		}
	}
	return false
}

type UserProfile struct {
	UserID               int64                `json:"user_id"`
	Bio                  string               `json:"bio"`
	Location             string               `json:"location"`
	Website              string               `json:"website"`
	Occupation           string               `json:"occupation"`
	Company              string               `json:"company"`
	InvestmentExperience InvestmentExperience `json:"investment_experience"`
	AllowFriendRequests  bool                 `json:"allow_friend_requests"`
	AllowExpenseSharing  bool                 `json:"allow_expense_sharing"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

func (p *UserProfile) Validate() error {
	if len([]rune(p.Bio)) > 500 {
		return Invalid("bio", "must be at most 500 characters")
	}
	if !p.InvestmentExperience.Valid() {
		return Invalid("investment_experience", "is not valid")
	}
	return nil
}
