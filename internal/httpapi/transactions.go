package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

const maxImportSize = 10 << 20

func (h *Handler) transactionRoutes(api chi.Router) {
	if h.svc.Transactions != nil {
		api.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Post("/", h.CreateCategory)
			r.Get("/{id}", h.GetCategory)
			r.Put("/{id}", h.UpdateCategory)
		})
		api.Route("/merchants", func(r chi.Router) {
			r.Get("/", h.ListMerchants)
			r.Post("/", h.CreateMerchant)
			r.Get("/{id}", h.GetMerchant)
			r.Put("/{id}", h.UpdateMerchant)
		})
		api.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Post("/", h.CreateTransaction)
			r.Get("/export", h.ExportTransactions)
			r.Post("/import", h.ImportTransactions)
			r.Post("/categorize", h.SuggestCategory)
			r.Get("/{id}", h.GetTransaction)
			r.Put("/{id}", h.UpdateTransaction)
			r.Delete("/{id}", h.DeleteTransaction)
			r.Get("/{id}/splits", h.GetSplits)
			r.Put("/{id}/splits", h.ReplaceSplits)
		})
	}
	if h.svc.Recurring != nil {
		api.Route("/recurring", func(r chi.Router) {
			r.Get("/", h.ListRecurring)
			r.Post("/", h.CreateRecurring)
			r.Get("/{id}", h.GetRecurring)
			r.Put("/{id}", h.UpdateRecurring)
			r.Delete("/{id}", h.DeleteRecurring)
			r.Post("/{id}/run", h.RunRecurring)
		})
	}
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cs, err := h.svc.Transactions.ListCategories(r.Context(), userID(r))
	h.respond(w, r, http.StatusOK, cs, err)
}

func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.svc.Transactions.GetCategory(r.Context(), userID(r), id)
	h.respond(w, r, http.StatusOK, c, err)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var c domain.Category
	if err := decode(r, &c); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.svc.Transactions.CreateCategory(r.Context(), userID(r), c)
	h.respond(w, r, http.StatusCreated, c, err)
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cur, err := h.svc.Transactions.GetCategory(r.Context(), userID(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c := cur.Category
	if err := decode(r, &c); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err = h.svc.Transactions.UpdateCategory(r.Context(), userID(r), id, c)
	h.respond(w, r, http.StatusOK, c, err)
}

func (h *Handler) ListMerchants(w http.ResponseWriter, r *http.Request) {
	ms, err := h.svc.Transactions.ListMerchants(r.Context(), userID(r))
	h.respond(w, r, http.StatusOK, ms, err)
}

func (h *Handler) GetMerchant(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.svc.Transactions.GetMerchant(r.Context(), userID(r), id)
	h.respond(w, r, http.StatusOK, m, err)
}

func (h *Handler) CreateMerchant(w http.ResponseWriter, r *http.Request) {
	var m domain.Merchant
	if err := decode(r, &m); err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.svc.Transactions.CreateMerchant(r.Context(), userID(r), m)
	h.respond(w, r, http.StatusCreated, m, err)
}

func (h *Handler) UpdateMerchant(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.svc.Transactions.GetMerchant(r.Context(), userID(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := decode(r, &m); err != nil {
		h.fail(w, r, err)
		return
	}
	m, err = h.svc.Transactions.UpdateMerchant(r.Context(), userID(r), id, m)
	h.respond(w, r, http.StatusOK, m, err)
}

func transactionFilter(r *http.Request) (domain.TransactionFilter, error) {
	q := r.URL.Query()
	f := domain.TransactionFilter{
		UserID: userID(r),
		Type:   domain.TransactionType(q.Get("type")),
		Status: domain.TransactionStatus(q.Get("status")),
		Search: q.Get("search"),
	}
	var err error
	if f.CategoryID, err = int64Query(r, "category"); err != nil {
		return f, err
	}
	if f.AccountID, err = int64Query(r, "account"); err != nil {
		return f, err
	}
	if f.From, err = dateQuery(r, "date_from"); err != nil {
		return f, err
	}
	if f.To, err = dateQuery(r, "date_to"); err != nil {
		return f, err
	}
	if f.Page, err = intQuery(r, "page", 1); err != nil {
		return f, err
	}
	if f.PageSize, err = intQuery(r, "page_size", domain.DefaultPageSize); err != nil {
		return f, err
	}
	return f, nil
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := transactionFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.svc.Transactions.List(r.Context(), f)
	h.respond(w, r, http.StatusOK, page, err)
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.svc.Transactions.Get(r.Context(), userID(r), id)
	h.respond(w, r, http.StatusOK, t, err)
}

func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var t domain.Transaction
	if err := decode(r, &t); err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.svc.Transactions.Create(r.Context(), userID(r), t)
	h.respond(w, r, http.StatusCreated, t, err)
}

func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.svc.Transactions.Get(r.Context(), userID(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := decode(r, &t); err != nil {
		h.fail(w, r, err)
		return
	}
	t, err = h.svc.Transactions.Update(r.Context(), userID(r), id, t)
	h.respond(w, r, http.StatusOK, t, err)
}

func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	err = h.svc.Transactions.Delete(r.Context(), userID(r), id)
	h.respond(w, r, http.StatusNoContent, nil, err)
}

func (h *Handler) GetSplits(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	splits, err := h.svc.Transactions.Splits(r.Context(), userID(r), id)
	h.respond(w, r, http.StatusOK, splits, err)
}

func (h *Handler) ReplaceSplits(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var splits []domain.TransactionSplit
	if err := decode(r, &splits); err != nil {
		h.fail(w, r, err)
		return
	}
	splits, err = h.svc.Transactions.ReplaceSplits(r.Context(), userID(r), id, splits)
	h.respond(w, r, http.StatusOK, splits, err)
}

func (h *Handler) ExportTransactions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="transactions_%s.csv"`, time.Now().Format("20060102")))
	if err := h.svc.Transactions.Export(r.Context(), userID(r), w); err != nil {
		// Headers may already be flushed, so the error only reaches the log.
		h.log.Error().Err(err).Int64("user_id", userID(r)).Msg("export transactions")
	}
}

// ImportTransactions accepts either a multipart upload in the "file" field
// or a raw CSV body.
func (h *Handler) ImportTransactions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	body := r.Body
	if f, _, err := r.FormFile("file"); err == nil {
		defer f.Close()
		body = f
	}
	res, err := h.svc.Transactions.Import(r.Context(), userID(r), body)
	h.respond(w, r, http.StatusOK, res, err)
}

type suggestRequest struct {
	Description string          `json:"description"`
	Merchant    string          `json:"merchant"`
	Amount      decimal.Decimal `json:"amount"`
}

func (h *Handler) SuggestCategory(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	s, err := h.svc.Transactions.Suggest(r.Context(), userID(r), req.Description, req.Merchant, req.Amount)
	h.respond(w, r, http.StatusOK, s, err)
}

func (h *Handler) ListRecurring(w http.ResponseWriter, r *http.Request) {
	rs, err := h.svc.Recurring.List(r.Context(), userID(r))
	h.respond(w, r, http.StatusOK, rs, err)
}

func (h *Handler) GetRecurring(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rt, err := h.svc.Recurring.Get(r.Context(), userID(r), id)
	h.respond(w, r, http.StatusOK, rt, err)
}

func (h *Handler) CreateRecurring(w http.ResponseWriter, r *http.Request) {
	var rt domain.RecurringTransaction
	if err := decode(r, &rt); err != nil {
		h.fail(w, r, err)
		return
	}
	rt, err := h.svc.Recurring.Create(r.Context(), userID(r), rt)
	h.respond(w, r, http.StatusCreated, rt, err)
}

func (h *Handler) UpdateRecurring(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rt, err := h.svc.Recurring.Get(r.Context(), userID(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := decode(r, &rt); err != nil {
		h.fail(w, r, err)
		return
	}
	rt, err = h.svc.Recurring.Update(r.Context(), userID(r), id, rt)
	h.respond(w, r, http.StatusOK, rt, err)
}

func (h *Handler) DeleteRecurring(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	err = h.svc.Recurring.Delete(r.Context(), userID(r), id)
	h.respond(w, r, http.StatusNoContent, nil, err)
}

func (h *Handler) RunRecurring(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.svc.Recurring.RunNow(r.Context(), userID(r), id)
	h.respond(w, r, http.StatusCreated, t, err)
}
