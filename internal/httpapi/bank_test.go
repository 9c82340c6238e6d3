package httpapi

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/bank"
	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

type accountStore struct {
	bank.Store
	banks    []domain.Bank
	accounts map[int64]domain.BankAccount
	primary  int64
}

func (m *accountStore) GetBankByCode(_ context.Context, code domain.BankCode) (domain.Bank, error) {
	for _, b := range m.banks {
		if b.Code == code {
			return b, nil
		}
	}
	return domain.Bank{}, domain.ErrNotFound
}

func (m *accountStore) CreateAccount(_ context.Context, a *domain.BankAccount) error {
	a.ID = int64(len(m.accounts) + 1)
	m.accounts[a.ID] = *a
	return nil
}

func (m *accountStore) GetAccount(_ context.Context, userID, id int64) (domain.BankAccount, error) {
	a, ok := m.accounts[id]
	if !ok || a.UserID != userID {
		return domain.BankAccount{}, domain.ErrNotFound
	}
	return a, nil
}

func (m *accountStore) UpdateAccount(_ context.Context, a *domain.BankAccount) error {
	m.accounts[a.ID] = *a
	return nil
}

func (m *accountStore) DeleteAccount(_ context.Context, userID, id int64) error {
	if _, err := m.GetAccount(context.Background(), userID, id); err != nil {
		return err
	}
	delete(m.accounts, id)
	return nil
}

func (m *accountStore) SetPrimaryAccount(_ context.Context, _, id int64) error {
	m.primary = id
	return nil
}

func TestBankAccountRoutes(t *testing.T) {
	store := &accountStore{
		banks: []domain.Bank{
			{ID: 3, Name: "Sampath Bank", Code: domain.BankSampath, IsActive: true},
			{ID: 4, Name: "Union Bank", Code: domain.BankUnion},
		},
		accounts: map[int64]domain.BankAccount{},
	}
	svc := bank.NewService(store, nil, nil, nil, nil, 0, zerolog.Nop())
	srv, _ := newTestServer(t, Services{Bank: svc})

	resp := do(t, http.MethodPost, srv.URL+"/api/bank-accounts", "1", strings.NewReader(`{
		"bank_code":"SAMPATH","account_number":"001234567890","account_name":"salary",
		"account_type":"savings","currency":"lkr","current_balance":"1500.00","is_api_connected":true}`))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status = %d, want 201", resp.StatusCode)
	}
	var created domain.BankAccount
	decodeJSON(t, resp, &created)
	if created.BankID != 3 || created.Currency != "LKR" || created.IsAPIConnected || created.Status != domain.AccountActive {
		t.Fatalf("created = %+v", created)
	}

	if resp := do(t, http.MethodPost, srv.URL+"/api/bank-accounts", "1", strings.NewReader(`{
		"bank_code":"UNION","account_number":"1","account_name":"x","account_type":"savings","currency":"LKR"}`)); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("inactive bank: status = %d, want 400", resp.StatusCode)
	}

	resp = do(t, http.MethodPut, srv.URL+"/api/bank-accounts/1", "1", strings.NewReader(`{"current_balance":"1250.50","is_primary":true}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: status = %d, want 200", resp.StatusCode)
	}
	var updated domain.BankAccount
	decodeJSON(t, resp, &updated)
	if !updated.CurrentBalance.Equal(decimal.RequireFromString("1250.5")) || updated.AccountName != "salary" || !updated.IsPrimary {
		t.Errorf("updated = %+v", updated)
	}
	if store.primary != 1 {
		t.Errorf("primary account = %d, want 1", store.primary)
	}

	if resp := do(t, http.MethodDelete, srv.URL+"/api/bank-accounts/1", "2", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("other user's delete: status = %d, want 404", resp.StatusCode)
	}
	if resp := do(t, http.MethodDelete, srv.URL+"/api/bank-accounts/1", "1", nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status = %d, want 204", resp.StatusCode)
	}
	if len(store.accounts) != 0 {
		t.Errorf("%d accounts left after delete", len(store.accounts))
	}
}
