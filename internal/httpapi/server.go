// Package httpapi exposes the services over a JSON HTTP API. Callers
// identify themselves with the X-User-ID header.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/iuliailies/moneytrack-backend/internal/analytics"
	"github.com/iuliailies/moneytrack-backend/internal/audit"
	"github.com/iuliailies/moneytrack-backend/internal/auth"
	"github.com/iuliailies/moneytrack-backend/internal/bank"
	"github.com/iuliailies/moneytrack-backend/internal/budget"
	"github.com/iuliailies/moneytrack-backend/internal/dashboard"
	"github.com/iuliailies/moneytrack-backend/internal/domain"
	"github.com/iuliailies/moneytrack-backend/internal/ledger"
	"github.com/iuliailies/moneytrack-backend/internal/logger"
	"github.com/iuliailies/moneytrack-backend/internal/notify"
	"github.com/iuliailies/moneytrack-backend/internal/recurring"
	"github.com/iuliailies/moneytrack-backend/internal/transactions"
)

// Services bundles everything the handlers call. Routes of a nil service
// are not mounted.
type Services struct {
	Auth         *auth.Service
	Transactions *transactions.Service
	Recurring    *recurring.Service
	Bank         *bank.Service
	Budgets      *budget.Service
	Ledgers      *ledger.Service
	Dashboard    *dashboard.Service
	Notify       *notify.Service
	Analytics    *analytics.Service
	Audit        audit.Sink
	// Ping reports database health for /health. Optional.
	Ping func(ctx context.Context) error
}

type Handler struct {
	svc Services
	log zerolog.Logger
}

func NewHandler(svc Services, log zerolog.Logger) *Handler {
	if svc.Audit == nil {
		svc.Audit = audit.NopSink{}
	}
	return &Handler{svc: svc, log: log}
}

// Router builds the chi router with the shared middleware and every route.
func (h *Handler) Router(allowedOrigins []string) http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(logger.Middleware(h.log))
	mux.Use(middleware.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-User-ID", "X-Request-ID"},
		MaxAge:         300,
	}))

	mux.Get("/health", h.Health)

	if h.svc.Auth != nil {
		mux.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Get("/verify/{token}", h.VerifyEmail)
			r.Post("/resend-verification", h.ResendVerification)
		})
	}

	mux.Route("/api", func(api chi.Router) {
		api.Use(requireUser)
		h.profileRoutes(api)
		h.transactionRoutes(api)
		h.bankRoutes(api)
		h.budgetRoutes(api)
		h.ledgerRoutes(api)
		h.dashboardRoutes(api)
		h.notificationRoutes(api)
		h.analyticsRoutes(api)
	})
	return mux
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.svc.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.svc.Ping(ctx); err != nil {
			h.log.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ctxKey struct{}

// requireUser reads X-User-ID: missing is 401, malformed is 400.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-User-ID")
		if raw == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{"missing X-User-ID header"})
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{"invalid X-User-ID header"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func userID(r *http.Request) int64 {
	id, _ := r.Context().Value(ctxKey{}).(int64)
	return id
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrCurrencyMismatch):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrAlreadyProcessed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrInsufficientRole):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrExpired):
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

// fail writes err as JSON. Internal errors are logged and hidden.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{msg})
}

// respond writes v with status, or the error when err is set.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, v)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request payload: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Invalid(name, "must be a positive integer")
	}
	return id, nil
}

func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Invalid(name, "must be an integer")
	}
	return n, nil
}

func boolQuery(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// dateQuery parses a YYYY-MM-DD query value. Empty gives nil.
func dateQuery(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, domain.Invalid(name, "must be a YYYY-MM-DD date")
	}
	return &t, nil
}

func int64Query(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, domain.Invalid(name, "must be an integer")
	}
	return &n, nil
}
