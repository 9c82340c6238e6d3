// Package auth manages user accounts: registration, login, e-mail
// verification, profiles and per-user settings.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/iuliailies/moneytrack-backend/internal/audit"
	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

const MinPasswordLength = 8

type Store interface {
	CreateUser(ctx context.Context, u *domain.User, pref domain.UserPreference, cfg domain.AnalyticsConfiguration) error
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)
	GetUserByVerificationToken(ctx context.Context, token string) (domain.User, error)
	UpdateUser(ctx context.Context, u *domain.User) error

	GetProfile(ctx context.Context, userID int64) (domain.UserProfile, error)
	UpdateProfile(ctx context.Context, p *domain.UserProfile) error

	GetPreference(ctx context.Context, userID int64) (domain.UserPreference, error)
	UpdatePreference(ctx context.Context, p *domain.UserPreference) error

	GetAnalyticsConfig(ctx context.Context, userID int64) (domain.AnalyticsConfiguration, error)
	UpdateAnalyticsConfig(ctx context.Context, c *domain.AnalyticsConfiguration) error
}

type Service struct {
	store    Store
	audit    audit.Sink
	log      zerolog.Logger
	currency string
	timezone string
	now      func() time.Time
}

func NewService(store Store, sink audit.Sink, log zerolog.Logger, defaultCurrency, defaultTimezone string) *Service {
	if sink == nil {
		sink = audit.NopSink{}
	}
	if defaultCurrency == "" {
		defaultCurrency = domain.DefaultCurrency
	}
	if defaultTimezone == "" {
		defaultTimezone = domain.DefaultTimezone
	}
	return &Service{store: store, audit: sink, log: log, currency: defaultCurrency, timezone: defaultTimezone, now: time.Now}
}

type RegisterInput struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	PhoneNumber     string `json:"phone_number"`
}

func (in RegisterInput) validate() error {
	switch {
	case strings.TrimSpace(in.Username) == "":
		return domain.Invalid("username", "is required")
	case strings.TrimSpace(in.Email) == "":
		return domain.Invalid("email", "is required")
	case strings.TrimSpace(in.FirstName) == "":
		return domain.Invalid("first_name", "is required")
	case strings.TrimSpace(in.LastName) == "":
		return domain.Invalid("last_name", "is required")
	case in.Password != in.PasswordConfirm:
		return domain.Invalid("password_confirm", "does not match")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return domain.Invalid("email", "is not a valid address")
	}
	return checkPassword(in.Password)
}

func checkPassword(pw string) error {
	if len(pw) < MinPasswordLength {
		return domain.Invalid("password", "must be at least 8 characters")
	}
	return nil
}

// Register creates the user together with default preferences and
// analytics settings. The account starts unverified.
func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	if err := in.validate(); err != nil {
		return domain.User{}, err
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return domain.User{}, fmt.Errorf("%w: email already registered", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, err
	}
	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return domain.User{}, fmt.Errorf("%w: username taken", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	token, err := newToken()
	if err != nil {
		return domain.User{}, err
	}

	u := domain.User{
		Username:            username,
		Email:               email,
		FirstName:           strings.TrimSpace(in.FirstName),
		LastName:            strings.TrimSpace(in.LastName),
		PasswordHash:        string(hash),
		PhoneNumber:         strings.TrimSpace(in.PhoneNumber),
		PreferredCurrency:   s.currency,
		Timezone:            s.timezone,
		RiskTolerance:       domain.RiskModerate,
		EnableNotifications: true,
		EnableEmailAlerts:   true,
		VerificationToken:   token,
	}
	if err := u.Validate(); err != nil {
		return domain.User{}, err
	}

	if err := s.store.CreateUser(ctx, &u, domain.DefaultPreference(0, s.timezone), domain.DefaultAnalyticsConfiguration(0)); err != nil {
		return domain.User{}, err
	}
	s.record(ctx, audit.EventRegistered, u.ID, nil)
	s.log.Info().Int64("user_id", u.ID).Msg("user registered")
	return u, nil
}

// Login checks the password for an e-mail or username.
func (s *Service) Login(ctx context.Context, login, password string) (domain.User, error) {
	login = strings.TrimSpace(login)
	var (
		u   domain.User
		err error
	)
	if strings.Contains(login, "@") {
		u, err = s.store.GetUserByEmail(ctx, strings.ToLower(login))
	} else {
		u, err = s.store.GetUserByUsername(ctx, login)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
		}
		return domain.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.record(ctx, audit.EventLoginFailure, u.ID, nil)
		return domain.User{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}
	s.record(ctx, audit.EventLoginSuccess, u.ID, nil)
	return u, nil
}

func (s *Service) VerifyEmail(ctx context.Context, token string) (domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return domain.User{}, domain.ErrNotFound
	}
	u, err := s.store.GetUserByVerificationToken(ctx, token)
	if err != nil {
		return domain.User{}, err
	}
	u.IsVerified = true
	u.VerificationToken = ""
	if err := s.store.UpdateUser(ctx, &u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// ResendVerification rotates the token of an unverified account. The
// returned user carries the new token.
func (s *Service) ResendVerification(ctx context.Context, email string) (domain.User, error) {
	u, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return domain.User{}, err
	}
	if u.IsVerified {
		return domain.User{}, fmt.Errorf("%w: account already verified", domain.ErrAlreadyProcessed)
	}
	token, err := newToken()
	if err != nil {
		return domain.User{}, err
	}
	u.VerificationToken = token
	if err := s.store.UpdateUser(ctx, &u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)); err != nil {
		return domain.Invalid("old_password", "is incorrect")
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	if err := s.store.UpdateUser(ctx, &u); err != nil {
		return err
	}
	s.record(ctx, audit.EventPasswordChanged, userID, nil)
	return nil
}

func (s *Service) record(ctx context.Context, kind audit.EventKind, userID int64, detail map[string]any) {
	ev := audit.SecurityEvent{Kind: kind, UserID: userID, Detail: detail, Timestamp: s.now().UTC()}
	if err := s.audit.RecordSecurityEvent(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("kind", string(kind)).Msg("failed to record security event")
	}
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
