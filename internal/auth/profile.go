package auth

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

type Profile struct {
	User    domain.User        `json:"user"`
	Profile domain.UserProfile `json:"profile"`
}

// ProfileUpdate carries the editable fields. Nil pointers leave the field
// unchanged.
type ProfileUpdate struct {
	FirstName            *string                      `json:"first_name"`
	LastName             *string                      `json:"last_name"`
	Email                *string                      `json:"email"`
	PhoneNumber          *string                      `json:"phone_number"`
	DateOfBirth          *time.Time                   `json:"date_of_birth"`
	PreferredCurrency    *string                      `json:"preferred_currency"`
	Timezone             *string                      `json:"timezone"`
	MonthlyIncome        *decimal.Decimal             `json:"monthly_income"`
	FinancialGoals       *string                      `json:"financial_goals"`
	RiskTolerance        *domain.RiskTolerance        `json:"risk_tolerance"`
	IsProfilePublic      *bool                        `json:"is_profile_public"`
	EnableNotifications  *bool                        `json:"enable_notifications"`
	EnableEmailAlerts    *bool                        `json:"enable_email_alerts"`
	EnableSMSAlerts      *bool                        `json:"enable_sms_alerts"`
	TelegramChatID       *int64                       `json:"telegram_chat_id"`
	Bio                  *string                      `json:"bio"`
	Location             *string                      `json:"location"`
	Website              *string                      `json:"website"`
	Occupation           *string                      `json:"occupation"`
	Company              *string                      `json:"company"`
	InvestmentExperience *domain.InvestmentExperience `json:"investment_experience"`
	AllowFriendRequests  *bool                        `json:"allow_friend_requests"`
	AllowExpenseSharing  *bool                        `json:"allow_expense_sharing"`
}

func (s *Service) GetProfile(ctx context.Context, userID int64) (Profile, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{User: u, Profile: p}, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID int64, up ProfileUpdate) (Profile, error) {
	cur, err := s.GetProfile(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	u, p := cur.User, cur.Profile

	setStr(&u.FirstName, up.FirstName)
	setStr(&u.LastName, up.LastName)
	setStr(&u.PhoneNumber, up.PhoneNumber)
	setStr(&u.PreferredCurrency, up.PreferredCurrency)
	setStr(&u.Timezone, up.Timezone)
	setStr(&u.FinancialGoals, up.FinancialGoals)
	if up.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*up.Email))
		if email != u.Email {
			if other, err := s.store.GetUserByEmail(ctx, email); err == nil && other.ID != u.ID {
				return Profile{}, domain.ErrConflict
			}
			u.Email = email
		}
	}
	if up.DateOfBirth != nil {
		dob := domain.DateOnly(*up.DateOfBirth)
		u.DateOfBirth = &dob
	}
	if up.MonthlyIncome != nil {
		u.MonthlyIncome = decimal.NewNullDecimal(*up.MonthlyIncome)
	}
	if up.RiskTolerance != nil {
		u.RiskTolerance = *up.RiskTolerance
	}
	setBool(&u.IsProfilePublic, up.IsProfilePublic)
	setBool(&u.EnableNotifications, up.EnableNotifications)
	setBool(&u.EnableEmailAlerts, up.EnableEmailAlerts)
	setBool(&u.EnableSMSAlerts, up.EnableSMSAlerts)
	if up.TelegramChatID != nil {
		u.TelegramChatID = *up.TelegramChatID
	}
	if up.Timezone != nil {
		if _, err := time.LoadLocation(u.Timezone); err != nil {
			return Profile{}, domain.Invalid("timezone", "is unknown")
		}
	}

	setStr(&p.Bio, up.Bio)
	setStr(&p.Location, up.Location)
	setStr(&p.Website, up.Website)
	setStr(&p.Occupation, up.Occupation)
	setStr(&p.Company, up.Company)
	if up.InvestmentExperience != nil {
		p.InvestmentExperience = *up.InvestmentExperience
	}
	setBool(&p.AllowFriendRequests, up.AllowFriendRequests)
	setBool(&p.AllowExpenseSharing, up.AllowExpenseSharing)

	if err := u.Validate(); err != nil {
		return Profile{}, err
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	if err := s.store.UpdateUser(ctx, &u); err != nil {
		return Profile{}, err
	}
	if err := s.store.UpdateProfile(ctx, &p); err != nil {
		return Profile{}, err
	}
	return Profile{User: u, Profile: p}, nil
}

func (s *Service) Preferences(ctx context.Context, userID int64) (domain.UserPreference, error) {
	return s.store.GetPreference(ctx, userID)
}

// UpdatePreferences replaces the preferences of userID.
func (s *Service) UpdatePreferences(ctx context.Context, userID int64, p domain.UserPreference) (domain.UserPreference, error) {
	if _, err := s.store.GetPreference(ctx, userID); err != nil {
		return domain.UserPreference{}, err
	}
	p.UserID = userID
	if err := p.Validate(); err != nil {
		return domain.UserPreference{}, err
	}
	if err := s.store.UpdatePreference(ctx, &p); err != nil {
		return domain.UserPreference{}, err
	}
	return p, nil
}

func (s *Service) AnalyticsConfig(ctx context.Context, userID int64) (domain.AnalyticsConfiguration, error) {
	return s.store.GetAnalyticsConfig(ctx, userID)
}

func (s *Service) UpdateAnalyticsConfig(ctx context.Context, userID int64, c domain.AnalyticsConfiguration) (domain.AnalyticsConfiguration, error) {
	if _, err := s.store.GetAnalyticsConfig(ctx, userID); err != nil {
		return domain.AnalyticsConfiguration{}, err
	}
	c.UserID = userID
	if err := c.Validate(); err != nil {
		return domain.AnalyticsConfiguration{}, err
	}
	if err := s.store.UpdateAnalyticsConfig(ctx, &c); err != nil {
		return domain.AnalyticsConfiguration{}, err
	}
	return c, nil
}

func setStr(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
