package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

func (h *Handler) dashboardRoutes(api chi.Router) {
	if h.svc.Dashboard == nil {
		return
	}
	api.Route("/dashboard", func(r chi.Router) {
		r.Get("/", h.Overview)
		r.Get("/summary", h.DashboardSummary)
		r.Get("/layout", h.GetLayout)
		r.Put("/layout", h.SaveLayout)
		r.Get("/widgets", h.ListWidgets)
		r.Post("/widgets", h.AddWidget)
		r.Put("/widgets/{id}", h.UpdateWidget)
		r.Post("/widgets/{id}/refresh", h.RefreshWidget)
	})
}

func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Dashboard.Overview(r.Context(), userID(r))
	h.respond(w, r, http.StatusOK, o, err)
}

// DashboardSummary accepts optional start_date and end_date; the default is
// the current month.
func (h *Handler) DashboardSummary(w http.ResponseWriter, r *http.Request) {
	start, err := dateQuery(r, "start_date")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	end, err := dateQuery(r, "end_date")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	s, err := h.svc.Dashboard.Summary(r.Context(), userID(r), start, end)
	h.respond(w, r, http.StatusOK, s, err)
}

func (h *Handler) GetLayout(w http.ResponseWriter, r *http.Request) {
	l, err := h.svc.Dashboard.Layout(r.Context(), userID(r))
	h.respond(w, r, http.StatusOK, l, err)
}

func (h *Handler) SaveLayout(w http.ResponseWriter, r *http.Request) {
	l, err := h.svc.Dashboard.Layout(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := decode(r, &l); err != nil {
		h.fail(w, r, err)
		return
	}
	l, err = h.svc.Dashboard.SaveLayout(r.Context(), userID(r), l)
	h.respond(w, r, http.StatusOK, l, err)
}

func (h *Handler) ListWidgets(w http.ResponseWriter, r *http.Request) {
	ws, err := h.svc.Dashboard.Widgets(r.Context(), userID(r))
	h.respond(w, r, http.StatusOK, ws, err)
}

func (h *Handler) AddWidget(w http.ResponseWriter, r *http.Request) {
	var wd domain.DashboardWidget
	if err := decode(r, &wd); err != nil {
		h.fail(w, r, err)
		return
	}
	wd, err := h.svc.Dashboard.AddWidget(r.Context(), userID(r), wd)
	h.respond(w, r, http.StatusCreated, wd, err)
}

func (h *Handler) UpdateWidget(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	wd, err := h.svc.Dashboard.Widget(r.Context(), userID(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := decode(r, &wd); err != nil {
		h.fail(w, r, err)
		return
	}
	wd, err = h.svc.Dashboard.UpdateWidget(r.Context(), userID(r), id, wd)
	h.respond(w, r, http.StatusOK, wd, err)
}

func (h *Handler) RefreshWidget(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	wd, err := h.svc.Dashboard.Refresh(r.Context(), userID(r), id, boolQuery(r, "force"))
	h.respond(w, r, http.StatusOK, wd, err)
}

func (h *Handler) notificationRoutes(api chi.Router) {
	if h.svc.Notify == nil {
		return
	}
	api.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.ListNotifications)
		r.Get("/alerts", h.ListAlerts)
		r.Post("/read-all", h.MarkAllRead)
		r.Post("/{id}/read", h.MarkRead)
		r.Post("/{id}/dismiss", h.Dismiss)
	})
}

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 50)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ns, err := h.svc.Notify.List(r.Context(), userID(r), boolQuery(r, "unread"), limit)
	h.respond(w, r, http.StatusOK, ns, err)
}

// ListAlerts returns undismissed notifications at or above min_priority
// (default high).
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 20)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	floor := domain.Priority(r.URL.Query().Get("min_priority"))
	if floor == "" {
		floor = domain.PriorityHigh
	}
	if floor.Rank() == 0 {
		h.fail(w, r, domain.Invalid("min_priority", "must be low, medium, high or urgent"))
		return
	}
	ns, err := h.svc.Notify.Alerts(r.Context(), userID(r), floor, limit)
	h.respond(w, r, http.StatusOK, ns, err)
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	err = h.svc.Notify.MarkRead(r.Context(), userID(r), id)
	h.respond(w, r, http.StatusNoContent, nil, err)
}

func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Notify.MarkAllRead(r.Context(), userID(r))
	h.respond(w, r, http.StatusOK, map[string]int64{"marked_read": n}, err)
}

func (h *Handler) Dismiss(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	err = h.svc.Notify.Dismiss(r.Context(), userID(r), id)
	h.respond(w, r, http.StatusNoContent, nil, err)
}
