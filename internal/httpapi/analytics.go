package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iuliailies/moneytrack-backend/internal/analytics"
	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

func (h *Handler) analyticsRoutes(api chi.Router) {
	if h.svc.Analytics == nil {
		return
	}
	api.Get("/analytics/summaries/{year}/{month}", h.GetSummary)
	api.Post("/analytics/summaries/{year}/{month}", h.GenerateSummary)
	api.Get("/analytics/patterns", h.ListPatterns)
	api.Post("/analytics/patterns", h.GeneratePatterns)
	api.Get("/analytics/export", h.ExportAnalytics)
	api.Route("/insights", func(r chi.Router) {
		r.Get("/", h.ListInsights)
		r.Post("/generate", h.GenerateInsights)
		r.Post("/{id}/read", h.ReadInsight)
		r.Post("/{id}/act", h.ActOnInsight)
		r.Post("/{id}/dismiss", h.DismissInsight)
		r.Post("/{id}/feedback", h.InsightFeedback)
	})
	api.Get("/predictions", h.ListPredictions)
	api.Post("/predictions/generate", h.GeneratePredictions)
}

func yearMonth(r *http.Request) (int, int, error) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		return 0, 0, domain.Invalid("year", "must be an integer")
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		return 0, 0, domain.Invalid("month", "must be an integer")
	}
	return year, month, nil
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	s, err := h.svc.Analytics.MonthlySummary(r.Context(), userID(r), year, month)
	h.respond(w, r, http.StatusOK, s, err)
}

func (h *Handler) GenerateSummary(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	s, err := h.svc.Analytics.GenerateMonthlySummary(r.Context(), userID(r), year, month)
	h.respond(w, r, http.StatusOK, s, err)
}

func (h *Handler) ListPatterns(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.Analytics.Patterns(r.Context(), userID(r))
	h.respond(w, r, http.StatusOK, ps, err)
}

func (h *Handler) GeneratePatterns(w http.ResponseWriter, r *http.Request) {
	months, err := intQuery(r, "months", analytics.DefaultWindowMonths)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ps, err := h.svc.Analytics.GeneratePatterns(r.Context(), userID(r), months)
	h.respond(w, r, http.StatusOK, ps, err)
}

func (h *Handler) ExportAnalytics(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.Analytics.Export(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="financial_data_%s.json"`, time.Now().Format("20060102")))
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) ListInsights(w http.ResponseWriter, r *http.Request) {
	is, err := h.svc.Analytics.Insights(r.Context(), userID(r))
	h.respond(w, r, http.StatusOK, is, err)
}

func (h *Handler) GenerateInsights(w http.ResponseWriter, r *http.Request) {
	is, err := h.svc.Analytics.GenerateInsights(r.Context(), userID(r))
	h.respond(w, r, http.StatusCreated, is, err)
}

func (h *Handler) ReadInsight(w http.ResponseWriter, r *http.Request) {
	h.insightAction(w, r, h.svc.Analytics.MarkInsightRead)
}

func (h *Handler) ActOnInsight(w http.ResponseWriter, r *http.Request) {
	h.insightAction(w, r, h.svc.Analytics.ActOnInsight)
}

func (h *Handler) DismissInsight(w http.ResponseWriter, r *http.Request) {
	h.insightAction(w, r, h.svc.Analytics.DismissInsight)
}

func (h *Handler) InsightFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Feedback domain.InsightFeedback `json:"feedback"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	h.insightAction(w, r, func(ctx context.Context, uid, id int64) (domain.FinancialInsight, error) {
		return h.svc.Analytics.InsightFeedback(ctx, uid, id, req.Feedback)
	})
}

type insightFunc func(ctx context.Context, userID, id int64) (domain.FinancialInsight, error)

func (h *Handler) insightAction(w http.ResponseWriter, r *http.Request, fn insightFunc) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	in, err := fn(r.Context(), userID(r), id)
	h.respond(w, r, http.StatusOK, in, err)
}

func (h *Handler) ListPredictions(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.Analytics.Predictions(r.Context(), userID(r))
	h.respond(w, r, http.StatusOK, ps, err)
}

func (h *Handler) GeneratePredictions(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.Analytics.GeneratePredictions(r.Context(), userID(r))
	h.respond(w, r, http.StatusCreated, ps, err)
}
