package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
	"github.com/iuliailies/moneytrack-backend/internal/ledger"
)

func (h *Handler) ledgerRoutes(api chi.Router) {
	if h.svc.Ledgers == nil {
		return
	}
	api.Post("/invites/{token}/accept", h.AcceptInvite)
	api.Post("/invites/{token}/decline", h.DeclineInvite)
	api.Route("/shared-ledgers", func(r chi.Router) {
		r.Get("/", h.ListLedgers)
		r.Post("/", h.CreateLedger)
		r.Post("/join", h.JoinLedger)
		r.Route("/{ledgerID}", func(r chi.Router) {
			r.Get("/", h.GetLedger)
			r.Put("/", h.UpdateLedger)
			r.Post("/invite-code", h.RegenerateInviteCode)
			r.Post("/leave", h.LeaveLedger)
			r.Get("/invites", h.ListInvites)
			r.Post("/invites", h.CreateInvite)
			r.Delete("/invites/{inviteID}", h.CancelInvite)
			r.Get("/members", h.ListMembers)
			r.Put("/members/{memberID}", h.UpdateMember)
			r.Delete("/members/{memberID}", h.RemoveMember)
			r.Get("/expenses", h.ListExpenses)
			r.Post("/expenses", h.AddExpense)
			r.Get("/expenses/{expenseID}", h.GetExpense)
			r.Delete("/expenses/{expenseID}", h.DeleteExpense)
			r.Post("/expenses/{expenseID}/approve", h.ApproveExpense)
			r.Post("/expenses/{expenseID}/reject", h.RejectExpense)
			r.Get("/balances", h.Balances)
			r.Get("/settlement", h.Settlement)
			r.Get("/payments", h.ListPayments)
			r.Post("/payments", h.CreatePayment)
			r.Post("/payments/{paymentID}/confirm", h.ConfirmPayment)
			r.Get("/activity", h.LedgerActivity)
		})
	})
}

func ledgerID(r *http.Request) string {
	return chi.URLParam(r, "ledgerID")
}

func (h *Handler) ListLedgers(w http.ResponseWriter, r *http.Request) {
	ls, err := h.svc.Ledgers.List(r.Context(), userID(r))
	h.respond(w, r, http.StatusOK, ls, err)
}

func (h *Handler) CreateLedger(w http.ResponseWriter, r *http.Request) {
	var l domain.SharedLedger
	if err := decode(r, &l); err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.svc.Ledgers.Create(r.Context(), userID(r), l)
	h.respond(w, r, http.StatusCreated, v, err)
}

func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Ledgers.Get(r.Context(), userID(r), ledgerID(r))
	h.respond(w, r, http.StatusOK, v, err)
}

func (h *Handler) UpdateLedger(w http.ResponseWriter, r *http.Request) {
	cur, err := h.svc.Ledgers.Get(r.Context(), userID(r), ledgerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	l := cur.SharedLedger
	if err := decode(r, &l); err != nil {
		h.fail(w, r, err)
		return
	}
	l, err = h.svc.Ledgers.Update(r.Context(), userID(r), ledgerID(r), l)
	h.respond(w, r, http.StatusOK, l, err)
}

func (h *Handler) RegenerateInviteCode(w http.ResponseWriter, r *http.Request) {
	l, err := h.svc.Ledgers.RegenerateInvite(r.Context(), userID(r), ledgerID(r))
	h.respond(w, r, http.StatusOK, l, err)
}

func (h *Handler) JoinLedger(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InviteCode string `json:"invite_code"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.svc.Ledgers.Join(r.Context(), userID(r), req.InviteCode)
	h.respond(w, r, http.StatusOK, m, err)
}

func (h *Handler) LeaveLedger(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Ledgers.Leave(r.Context(), userID(r), ledgerID(r))
	h.respond(w, r, http.StatusNoContent, nil, err)
}

func (h *Handler) ListInvites(w http.ResponseWriter, r *http.Request) {
	invs, err := h.svc.Ledgers.Invites(r.Context(), userID(r), ledgerID(r))
	h.respond(w, r, http.StatusOK, invs, err)
}

func (h *Handler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	var inv domain.LedgerInvite
	if err := decode(r, &inv); err != nil {
		h.fail(w, r, err)
		return
	}
	inv, err := h.svc.Ledgers.Invite(r.Context(), userID(r), ledgerID(r), inv)
	h.respond(w, r, http.StatusCreated, inv, err)
}

func (h *Handler) CancelInvite(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "inviteID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	err = h.svc.Ledgers.Cancel(r.Context(), userID(r), ledgerID(r), id)
	h.respond(w, r, http.StatusNoContent, nil, err)
}

func (h *Handler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Ledgers.Accept(r.Context(), userID(r), chi.URLParam(r, "token"))
	h.respond(w, r, http.StatusOK, m, err)
}

func (h *Handler) DeclineInvite(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Ledgers.Decline(r.Context(), chi.URLParam(r, "token"))
	h.respond(w, r, http.StatusNoContent, nil, err)
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	ms, err := h.svc.Ledgers.Members(r.Context(), userID(r), ledgerID(r))
	h.respond(w, r, http.StatusOK, ms, err)
}

// UpdateMember and RemoveMember address members by user id.
func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := idParam(r, "memberID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in ledger.MemberUpdate
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.svc.Ledgers.UpdateMember(r.Context(), userID(r), ledgerID(r), memberID, in)
	h.respond(w, r, http.StatusOK, m, err)
}

func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := idParam(r, "memberID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	err = h.svc.Ledgers.RemoveMember(r.Context(), userID(r), ledgerID(r), memberID)
	h.respond(w, r, http.StatusNoContent, nil, err)
}

func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	es, err := h.svc.Ledgers.Expenses(r.Context(), userID(r), ledgerID(r))
	h.respond(w, r, http.StatusOK, es, err)
}

func (h *Handler) GetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "expenseID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	e, err := h.svc.Ledgers.Expense(r.Context(), userID(r), ledgerID(r), id)
	h.respond(w, r, http.StatusOK, e, err)
}

func (h *Handler) AddExpense(w http.ResponseWriter, r *http.Request) {
	var in ledger.ExpenseInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	e, err := h.svc.Ledgers.AddExpense(r.Context(), userID(r), ledgerID(r), in)
	h.respond(w, r, http.StatusCreated, e, err)
}

func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "expenseID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	err = h.svc.Ledgers.DeleteExpense(r.Context(), userID(r), ledgerID(r), id)
	h.respond(w, r, http.StatusNoContent, nil, err)
}

func (h *Handler) ApproveExpense(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "expenseID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	e, err := h.svc.Ledgers.Approve(r.Context(), userID(r), ledgerID(r), id)
	h.respond(w, r, http.StatusOK, e, err)
}

func (h *Handler) RejectExpense(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "expenseID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	e, err := h.svc.Ledgers.Reject(r.Context(), userID(r), ledgerID(r), id)
	h.respond(w, r, http.StatusOK, e, err)
}

func (h *Handler) Balances(w http.ResponseWriter, r *http.Request) {
	bs, err := h.svc.Ledgers.Balances(r.Context(), userID(r), ledgerID(r))
	h.respond(w, r, http.StatusOK, bs, err)
}

func (h *Handler) Settlement(w http.ResponseWriter, r *http.Request) {
	ts, err := h.svc.Ledgers.Settlement(r.Context(), userID(r), ledgerID(r))
	h.respond(w, r, http.StatusOK, ts, err)
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.Ledgers.Payments(r.Context(), userID(r), ledgerID(r))
	h.respond(w, r, http.StatusOK, ps, err)
}

func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var p domain.SharedPayment
	if err := decode(r, &p); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.Ledgers.CreatePayment(r.Context(), userID(r), ledgerID(r), p)
	h.respond(w, r, http.StatusCreated, p, err)
}

func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "paymentID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.Ledgers.ConfirmPayment(r.Context(), userID(r), ledgerID(r), id)
	h.respond(w, r, http.StatusOK, p, err)
}

func (h *Handler) LedgerActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 50)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	as, err := h.svc.Ledgers.Activity(r.Context(), userID(r), ledgerID(r), limit)
	h.respond(w, r, http.StatusOK, as, err)
}
