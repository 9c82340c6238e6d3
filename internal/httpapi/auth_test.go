package httpapi

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/iuliailies/moneytrack-backend/internal/auth"
	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

type userStore struct {
	auth.Store
	users    map[int64]domain.User
	profiles map[int64]domain.UserProfile
	prefs    map[int64]domain.UserPreference
}

func newUserStore() *userStore {
	return &userStore{
		users:    map[int64]domain.User{},
		profiles: map[int64]domain.UserProfile{},
		prefs:    map[int64]domain.UserPreference{},
	}
}

func (m *userStore) CreateUser(_ context.Context, u *domain.User, pref domain.UserPreference, _ domain.AnalyticsConfiguration) error {
	u.ID = int64(len(m.users) + 1)
	m.users[u.ID] = *u
	m.profiles[u.ID] = domain.UserProfile{UserID: u.ID, InvestmentExperience: domain.ExperienceBeginner}
	pref.UserID = u.ID
	m.prefs[u.ID] = pref
	return nil
}

func (m *userStore) GetUser(_ context.Context, id int64) (domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (m *userStore) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *userStore) GetUserByUsername(_ context.Context, username string) (domain.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *userStore) UpdateUser(_ context.Context, u *domain.User) error {
	m.users[u.ID] = *u
	return nil
}

func (m *userStore) GetProfile(_ context.Context, userID int64) (domain.UserProfile, error) {
	p, ok := m.profiles[userID]
	if !ok {
		return domain.UserProfile{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *userStore) UpdateProfile(_ context.Context, p *domain.UserProfile) error {
	m.profiles[p.UserID] = *p
	return nil
}

func (m *userStore) GetPreference(_ context.Context, userID int64) (domain.UserPreference, error) {
	p, ok := m.prefs[userID]
	if !ok {
		return domain.UserPreference{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *userStore) UpdatePreference(_ context.Context, p *domain.UserPreference) error {
	m.prefs[p.UserID] = *p
	return nil
}

func TestRegisterRoute(t *testing.T) {
	store := newUserStore()
	srv, _ := newTestServer(t, Services{Auth: auth.NewService(store, nil, zerolog.Nop(), "LKR", "UTC")})

	body := `{"username":"nimal","email":"Nimal@Example.com","first_name":"Nimal","last_name":"Perera",
		"password":"s3cret-pass","password_confirm":"s3cret-pass"}`
	resp := do(t, http.MethodPost, srv.URL+"/auth/register", "", strings.NewReader(body))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: status = %d, want 201", resp.StatusCode)
	}
	var u domain.User
	decodeJSON(t, resp, &u)
	if u.Email != "nimal@example.com" || u.PreferredCurrency != "LKR" || u.IsVerified {
		t.Errorf("registered = %+v", u)
	}
	if _, ok := store.prefs[u.ID]; !ok {
		t.Error("default preferences not stored")
	}

	if resp := do(t, http.MethodPost, srv.URL+"/auth/register", "", strings.NewReader(body)); resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate register: status = %d, want 409", resp.StatusCode)
	}
	if resp := do(t, http.MethodPost, srv.URL+"/auth/login", "", strings.NewReader(`{"login":"nimal","password":"wrong-pass"}`)); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad password: status = %d, want 401", resp.StatusCode)
	}
}

func TestProfileRoutes(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	store := newUserStore()
	store.users[1] = domain.User{
		ID: 1, Username: "nimal", Email: "nimal@example.com", FirstName: "Nimal", LastName: "Perera",
		PasswordHash: string(hash), PreferredCurrency: "LKR", Timezone: "UTC", RiskTolerance: domain.RiskModerate,
		EnableNotifications: true,
	}
	store.profiles[1] = domain.UserProfile{UserID: 1, Bio: "saving for a house", InvestmentExperience: domain.ExperienceBeginner}
	store.prefs[1] = domain.DefaultPreference(1, "UTC")
	srv, _ := newTestServer(t, Services{Auth: auth.NewService(store, nil, zerolog.Nop(), "", "")})

	resp := do(t, http.MethodPut, srv.URL+"/api/profile", "1", strings.NewReader(`{"first_name":"Nimal K","occupation":"engineer"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update profile: status = %d, want 200", resp.StatusCode)
	}
	var p auth.Profile
	decodeJSON(t, resp, &p)
	if p.User.FirstName != "Nimal K" || p.User.LastName != "Perera" || !p.User.EnableNotifications {
		t.Errorf("user = %+v", p.User)
	}
	if p.Profile.Occupation != "engineer" || p.Profile.Bio != "saving for a house" {
		t.Errorf("profile = %+v", p.Profile)
	}
	if resp := do(t, http.MethodPut, srv.URL+"/api/profile", "1", strings.NewReader(`{"preferred_currency":"JPY"}`)); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unsupported currency: status = %d, want 400", resp.StatusCode)
	}

	if resp := do(t, http.MethodPut, srv.URL+"/api/profile/password", "1", strings.NewReader(`{"old_password":"nope","new_password":"new-password"}`)); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("wrong old password: status = %d, want 400", resp.StatusCode)
	}
	if resp := do(t, http.MethodPut, srv.URL+"/api/profile/password", "1", strings.NewReader(`{"old_password":"old-password","new_password":"new-password"}`)); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("change password: status = %d, want 204", resp.StatusCode)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(store.users[1].PasswordHash), []byte("new-password")); err != nil {
		t.Errorf("stored hash does not match new password: %v", err)
	}

	resp = do(t, http.MethodPut, srv.URL+"/api/preferences", "1", strings.NewReader(`{"date_format":"YYYY-MM-DD"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update preferences: status = %d, want 200", resp.StatusCode)
	}
	var pref domain.UserPreference
	decodeJSON(t, resp, &pref)
	if pref.DateFormat != "YYYY-MM-DD" || pref.BudgetAlertPercentage != domain.DefaultAlertThreshold || !pref.EmailNotifications {
		t.Errorf("preferences = %+v", pref)
	}

	if resp := do(t, http.MethodPut, srv.URL+"/api/profile", "9", strings.NewReader(`{}`)); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown user: status = %d, want 404", resp.StatusCode)
	}
}
