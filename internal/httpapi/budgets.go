package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

func (h *Handler) budgetRoutes(api chi.Router) {
	if h.svc.Budgets == nil {
		return
	}
	api.Route("/budgets", func(r chi.Router) {
		r.Get("/", h.ListBudgets)
		r.Post("/", h.CreateBudget)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetBudget)
			r.Put("/", h.UpdateBudget)
			r.Delete("/", h.DeleteBudget)
			r.Post("/items", h.AddBudgetItem)
			r.Put("/items/{itemID}", h.UpdateBudgetItem)
			r.Delete("/items/{itemID}", h.DeleteBudgetItem)
			r.Post("/recalculate", h.RecalculateBudget)
			r.Post("/rollover", h.RolloverBudget)
		})
	})
	api.Route("/budget-periods", func(r chi.Router) {
		r.Get("/", h.ListPeriods)
		r.Post("/", h.CreatePeriod)
		r.Get("/current", h.CurrentPeriod)
	})
	api.Route("/budget-templates", func(r chi.Router) {
		r.Get("/", h.ListTemplates)
		r.Post("/", h.CreateTemplate)
		r.Post("/{id}/apply", h.ApplyTemplate)
	})
	api.Route("/budget-goals", func(r chi.Router) {
		r.Get("/", h.ListGoals)
		r.Post("/", h.CreateGoal)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetGoal)
			r.Put("/", h.UpdateGoal)
			r.Delete("/", h.DeleteGoal)
			r.Get("/contributions", h.ListContributions)
			r.Post("/contributions", h.Contribute)
		})
	})
}

func (h *Handler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	bs, err := h.svc.Budgets.List(r.Context(), userID(r), domain.BudgetStatus(r.URL.Query().Get("status")))
	h.respond(w, r, http.StatusOK, bs, err)
}

func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.svc.Budgets.Get(r.Context(), userID(r), id)
	h.respond(w, r, http.StatusOK, b, err)
}

func (h *Handler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	var b domain.Budget
	if err := decode(r, &b); err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.svc.Budgets.Create(r.Context(), userID(r), b)
	h.respond(w, r, http.StatusCreated, b, err)
}

func (h *Handler) UpdateBudget(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.svc.Budgets.Get(r.Context(), userID(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := decode(r, &b); err != nil {
		h.fail(w, r, err)
		return
	}
	b, err = h.svc.Budgets.Update(r.Context(), userID(r), id, b)
	h.respond(w, r, http.StatusOK, b, err)
}

func (h *Handler) DeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	err = h.svc.Budgets.Delete(r.Context(), userID(r), id)
	h.respond(w, r, http.StatusNoContent, nil, err)
}

func (h *Handler) AddBudgetItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var it domain.BudgetItem
	if err := decode(r, &it); err != nil {
		h.fail(w, r, err)
		return
	}
	it, err = h.svc.Budgets.AddItem(r.Context(), userID(r), id, it)
	h.respond(w, r, http.StatusCreated, it, err)
}

func (h *Handler) UpdateBudgetItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	itemID, err := idParam(r, "itemID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	it, err := h.svc.Budgets.Item(r.Context(), userID(r), id, itemID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := decode(r, &it); err != nil {
		h.fail(w, r, err)
		return
	}
	it, err = h.svc.Budgets.UpdateItem(r.Context(), userID(r), id, itemID, it)
	h.respond(w, r, http.StatusOK, it, err)
}

func (h *Handler) DeleteBudgetItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	itemID, err := idParam(r, "itemID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	err = h.svc.Budgets.DeleteItem(r.Context(), userID(r), id, itemID)
	h.respond(w, r, http.StatusNoContent, nil, err)
}

func (h *Handler) RecalculateBudget(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.svc.Budgets.CalculateSpent(r.Context(), userID(r), id)
	h.respond(w, r, http.StatusOK, b, err)
}

func (h *Handler) RolloverBudget(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req struct {
		NextPeriodID int64 `json:"next_period_id"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.svc.Budgets.Rollover(r.Context(), userID(r), id, req.NextPeriodID)
	h.respond(w, r, http.StatusCreated, b, err)
}

func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.Budgets.Periods(r.Context(), boolQuery(r, "active"))
	h.respond(w, r, http.StatusOK, ps, err)
}

func (h *Handler) CreatePeriod(w http.ResponseWriter, r *http.Request) {
	var p domain.BudgetPeriod
	if err := decode(r, &p); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.Budgets.CreatePeriod(r.Context(), p)
	h.respond(w, r, http.StatusCreated, p, err)
}

// CurrentPeriod returns the period of the given type containing today,
// creating it when missing. The type defaults to monthly.
func (h *Handler) CurrentPeriod(w http.ResponseWriter, r *http.Request) {
	pt := domain.PeriodType(r.URL.Query().Get("period_type"))
	if pt == "" {
		pt = domain.PeriodMonthly
	}
	p, err := h.svc.Budgets.CurrentPeriod(r.Context(), pt)
	h.respond(w, r, http.StatusOK, p, err)
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	ts, err := h.svc.Budgets.Templates(r.Context(), userID(r))
	h.respond(w, r, http.StatusOK, ts, err)
}

func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var t domain.BudgetTemplate
	if err := decode(r, &t); err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.svc.Budgets.CreateTemplate(r.Context(), userID(r), t)
	h.respond(w, r, http.StatusCreated, t, err)
}

type applyTemplateRequest struct {
	PeriodID    int64           `json:"period_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
}

func (h *Handler) ApplyTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req applyTemplateRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.svc.Budgets.FromTemplate(r.Context(), userID(r), id, req.PeriodID, req.TotalAmount, req.Currency)
	h.respond(w, r, http.StatusCreated, b, err)
}

func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	gs, err := h.svc.Budgets.Goals(r.Context(), userID(r))
	h.respond(w, r, http.StatusOK, gs, err)
}

func (h *Handler) GetGoal(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	g, err := h.svc.Budgets.Goal(r.Context(), userID(r), id)
	h.respond(w, r, http.StatusOK, g, err)
}

func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var g domain.BudgetGoal
	if err := decode(r, &g); err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.svc.Budgets.CreateGoal(r.Context(), userID(r), g)
	h.respond(w, r, http.StatusCreated, v, err)
}

func (h *Handler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cur, err := h.svc.Budgets.Goal(r.Context(), userID(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	g := cur.BudgetGoal
	if err := decode(r, &g); err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.svc.Budgets.UpdateGoal(r.Context(), userID(r), id, g)
	h.respond(w, r, http.StatusOK, v, err)
}

func (h *Handler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	err = h.svc.Budgets.DeleteGoal(r.Context(), userID(r), id)
	h.respond(w, r, http.StatusNoContent, nil, err)
}

func (h *Handler) ListContributions(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cs, err := h.svc.Budgets.Contributions(r.Context(), userID(r), id)
	h.respond(w, r, http.StatusOK, cs, err)
}

type contributionRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	TransactionID *int64          `json:"transaction_id"`
}

func (h *Handler) Contribute(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req contributionRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.svc.Budgets.Contribute(r.Context(), userID(r), id, req.Amount, req.Description, req.TransactionID)
	h.respond(w, r, http.StatusCreated, v, err)
}
