package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iuliailies/moneytrack-backend/internal/auth"
	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.svc.Auth.Register(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.sendVerification(r.Context(), u.ID, u.VerificationToken)
	writeJSON(w, http.StatusCreated, u)
}

type loginRequest struct {
	Login    string `json:"login"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	login := req.Login
	if login == "" {
		login = req.Email
	}
	if login == "" {
		login = req.Username
	}
	u, err := h.svc.Auth.Login(r.Context(), login, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"user_id": u.ID})
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Auth.VerifyEmail(r.Context(), chi.URLParam(r, "token"))
	h.respond(w, r, http.StatusOK, u, err)
}

func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.svc.Auth.ResendVerification(r.Context(), req.Email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.sendVerification(r.Context(), u.ID, u.VerificationToken)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "verification sent"})
}

// sendVerification delivers the token through the notification channels;
// it never appears in an HTTP response.
func (h *Handler) sendVerification(ctx context.Context, userID int64, token string) {
	if h.svc.Notify == nil || userID == 0 {
		return
	}
	h.svc.Notify.Emit(ctx, domain.Notification{
		UserID:   userID,
		Type:     domain.NotifySecurity,
		Title:    "Verify your e-mail",
		Message:  "Use the verification code to confirm your e-mail address.",
		Priority: domain.PriorityHigh,
		Data:     map[string]any{"verification_token": token},
	})
}

func (h *Handler) profileRoutes(api chi.Router) {
	if h.svc.Auth == nil {
		return
	}
	api.Get("/profile", h.GetProfile)
	api.Put("/profile", h.UpdateProfile)
	api.Put("/profile/password", h.ChangePassword)
	api.Get("/preferences", h.GetPreferences)
	api.Put("/preferences", h.UpdatePreferences)
	api.Get("/analytics/config", h.GetAnalyticsConfig)
	api.Put("/analytics/config", h.UpdateAnalyticsConfig)
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Auth.GetProfile(r.Context(), userID(r))
	h.respond(w, r, http.StatusOK, p, err)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var up auth.ProfileUpdate
	if err := decode(r, &up); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.Auth.UpdateProfile(r.Context(), userID(r), up)
	h.respond(w, r, http.StatusOK, p, err)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	err := h.svc.Auth.ChangePassword(r.Context(), userID(r), req.OldPassword, req.NewPassword)
	h.respond(w, r, http.StatusNoContent, nil, err)
}

func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Auth.Preferences(r.Context(), userID(r))
	h.respond(w, r, http.StatusOK, p, err)
}

// UpdatePreferences applies the request body over the stored preferences, so
// omitted fields keep their values.
func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Auth.Preferences(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := decode(r, &p); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err = h.svc.Auth.UpdatePreferences(r.Context(), userID(r), p)
	h.respond(w, r, http.StatusOK, p, err)
}

func (h *Handler) GetAnalyticsConfig(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Auth.AnalyticsConfig(r.Context(), userID(r))
	h.respond(w, r, http.StatusOK, c, err)
}

func (h *Handler) UpdateAnalyticsConfig(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Auth.AnalyticsConfig(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := decode(r, &c); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err = h.svc.Auth.UpdateAnalyticsConfig(r.Context(), userID(r), c)
	h.respond(w, r, http.StatusOK, c, err)
}
