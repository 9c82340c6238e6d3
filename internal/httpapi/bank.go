package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iuliailies/moneytrack-backend/internal/audit"
	"github.com/iuliailies/moneytrack-backend/internal/bank"
	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

func (h *Handler) bankRoutes(api chi.Router) {
	if h.svc.Bank == nil {
		return
	}
	api.Get("/banks", h.ListBanks)
	api.Get("/api-logs", h.APILogs)
	api.Route("/bank-accounts", func(r chi.Router) {
		r.Get("/", h.ListAccounts)
		r.Post("/", h.CreateAccount)
		r.Post("/sync-all", h.SyncAll)
		r.Get("/sync-status", h.SyncStatus)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetAccount)
			r.Put("/", h.UpdateAccount)
			r.Delete("/", h.DeleteAccount)
			r.Post("/primary", h.SetPrimaryAccount)
			r.Post("/connect", h.ConnectAccount)
			r.Post("/disconnect", h.DisconnectAccount)
			r.Post("/sync", h.SyncAccount)
			r.Post("/sms", h.ImportSMS)
			r.Get("/transactions", h.ListBankTransactions)
		})
	})
}

func (h *Handler) ListBanks(w http.ResponseWriter, r *http.Request) {
	banks, err := h.svc.Bank.Banks(r.Context())
	h.respond(w, r, http.StatusOK, banks, err)
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accts, err := h.svc.Bank.Accounts(r.Context(), userID(r))
	h.respond(w, r, http.StatusOK, accts, err)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.svc.Bank.Account(r.Context(), userID(r), id)
	h.respond(w, r, http.StatusOK, a, err)
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var a domain.BankAccount
	if err := decode(r, &a); err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.svc.Bank.CreateAccount(r.Context(), userID(r), a)
	h.respond(w, r, http.StatusCreated, a, err)
}

func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.svc.Bank.Account(r.Context(), userID(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := decode(r, &a); err != nil {
		h.fail(w, r, err)
		return
	}
	a, err = h.svc.Bank.UpdateAccount(r.Context(), userID(r), id, a)
	h.respond(w, r, http.StatusOK, a, err)
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	err = h.svc.Bank.DeleteAccount(r.Context(), userID(r), id)
	h.respond(w, r, http.StatusNoContent, nil, err)
}

func (h *Handler) SetPrimaryAccount(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.Bank.SetPrimary(r.Context(), userID(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.svc.Bank.Account(r.Context(), userID(r), id)
	h.respond(w, r, http.StatusOK, a, err)
}

func (h *Handler) ConnectAccount(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var creds bank.Credentials
	if err := decode(r, &creds); err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.svc.Bank.Connect(r.Context(), userID(r), id, creds)
	h.respond(w, r, http.StatusOK, a, err)
}

func (h *Handler) DisconnectAccount(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.svc.Bank.Disconnect(r.Context(), userID(r), id)
	h.respond(w, r, http.StatusOK, a, err)
}

func (h *Handler) SyncAccount(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Bank.Sync(r.Context(), userID(r), id)
	h.respond(w, r, http.StatusOK, res, err)
}

func (h *Handler) SyncAll(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Bank.SyncAll(r.Context(), userID(r))
	h.respond(w, r, http.StatusOK, res, err)
}

func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Bank.SyncStatus(r.Context(), userID(r))
	h.respond(w, r, http.StatusOK, st, err)
}

// ImportSMS applies bank balance text messages to a manual account.
func (h *Handler) ImportSMS(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req struct {
		Messages []bank.Message `json:"messages"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Bank.ImportBalances(r.Context(), userID(r), id, req.Messages)
	h.respond(w, r, http.StatusOK, res, err)
}

func (h *Handler) ListBankTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, err := intQuery(r, "limit", 100)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	txs, err := h.svc.Bank.BankTransactions(r.Context(), userID(r), id, limit)
	h.respond(w, r, http.StatusOK, txs, err)
}

// APILogs lists the caller's recent bank API calls from the audit trail.
func (h *Handler) APILogs(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 50)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	f := audit.Filter{
		UserID:   userID(r),
		BankCode: domain.BankCode(r.URL.Query().Get("bank")),
		Status:   domain.APICallStatus(r.URL.Query().Get("status")),
	}
	logs, err := h.svc.Audit.Recent(r.Context(), f, limit)
	h.respond(w, r, http.StatusOK, logs, err)
}
