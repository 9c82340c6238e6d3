package bank

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/audit"
	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

func testKey() [32]byte {
	var k [32]byte
	copy(k[:], "0123456789abcdef0123456789abcdef")
	return k
}

func TestVault(t *testing.T) {
	v := NewVault(testKey())
	sealed, err := v.Encrypt(Credentials{Token: "secret"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(sealed, "secret") {
		t.Fatal("credentials not encrypted")
	}
	again, _ := v.Encrypt(Credentials{Token: "secret"})
	if again == sealed {
		t.Error("nonce reused")
	}
	got, err := v.Decrypt(sealed)
	if err != nil || got.Token != "secret" {
		t.Fatalf("decrypt: %+v %v", got, err)
	}

	tampered := []byte(sealed)
	tampered[len(tampered)-3] ^= 1
	if _, err := v.Decrypt(string(tampered)); !errors.Is(err, ErrDecrypt) {
		t.Errorf("tampered box opened: %v", err)
	}
	var other [32]byte
	if _, err := NewVault(other).Decrypt(sealed); !errors.Is(err, ErrDecrypt) {
		t.Errorf("wrong key opened the box: %v", err)
	}

	var none *Vault
	if _, err := none.Encrypt(Credentials{Token: "secret"}); !errors.Is(err, ErrNoKey) {
		t.Errorf("nil vault encrypt: %v", err)
	}
	if _, err := none.Decrypt(sealed); !errors.Is(err, ErrNoKey) {
		t.Errorf("nil vault decrypt: %v", err)
	}
}

func TestHTTPClient(t *testing.T) {
	var auth, since string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/accounts/123/transactions":
			auth = r.Header.Get("Authorization")
			since = r.URL.Query().Get("since")
			json.NewEncoder(w).Encode(map[string]any{
				"balance": "5000.50",
				"transactions": []map[string]any{
					{"transaction_id": "t1", "transaction_type": "debit", "amount": "120.00", "description": "Fuel"},
				},
			})
		case "/accounts/429/transactions":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(time.Second)
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	st, err := c.FetchTransactions(context.Background(), srv.URL+"/", Credentials{Token: "tok"}, "123", at)
	if err != nil {
		t.Fatal(err)
	}
	if auth != "Bearer tok" || since != "2024-05-01T08:00:00Z" {
		t.Errorf("auth=%q since=%q", auth, since)
	}
	if len(st.Transactions) != 1 || !st.Balance.Decimal.Equal(decimal.RequireFromString("5000.5")) {
		t.Errorf("statement = %+v", st)
	}

	_, err = c.FetchTransactions(context.Background(), srv.URL, Credentials{}, "429", at)
	if status, code := classify(err); status != domain.APIRateLimited || code != 429 {
		t.Errorf("429 classified as %s/%d", status, code)
	}
	_, err = c.FetchTransactions(context.Background(), srv.URL, Credentials{}, "500", at)
	if status, _ := classify(err); status != domain.APIError {
		t.Errorf("500 classified as %s", status)
	}
}

func TestHTTPClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewHTTPClient(time.Minute).FetchTransactions(ctx, srv.URL, Credentials{}, "1", time.Now())
	if status, _ := classify(err); status != domain.APITimeout {
		t.Errorf("deadline classified as %s (%v)", status, err)
	}
}

type memStore struct {
	mu       sync.Mutex
	banks    []domain.Bank
	accounts map[int64]domain.BankAccount
	raw      []domain.BankTransaction
}

func newMemStore() *memStore {
	return &memStore{
		banks: []domain.Bank{
			{ID: 1, Name: "Sampath Bank", Code: domain.BankSampath, IsActive: true, SupportsAPIIntegration: true, APIEndpoint: "https://bank.example"},
			{ID: 2, Name: "NSB", Code: domain.BankNSB, IsActive: true},
		},
		accounts: map[int64]domain.BankAccount{},
	}
}

func (m *memStore) ListBanks(context.Context) ([]domain.Bank, error) { return m.banks, nil }

func (m *memStore) GetBank(_ context.Context, id int64) (domain.Bank, error) {
	for _, b := range m.banks {
		if b.ID == id {
			return b, nil
		}
	}
	return domain.Bank{}, domain.ErrNotFound
}

func (m *memStore) GetBankByCode(_ context.Context, code domain.BankCode) (domain.Bank, error) {
	for _, b := range m.banks {
		if b.Code == code {
			return b, nil
		}
	}
	return domain.Bank{}, domain.ErrNotFound
}

func (m *memStore) ListAccounts(_ context.Context, userID int64) ([]domain.BankAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.BankAccount
	for _, a := range m.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) GetAccount(_ context.Context, userID, id int64) (domain.BankAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok || a.UserID != userID {
		return domain.BankAccount{}, domain.ErrNotFound
	}
	return a, nil
}

func (m *memStore) CreateAccount(_ context.Context, a *domain.BankAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = int64(len(m.accounts) + 1)
	m.accounts[a.ID] = *a
	return nil
}

func (m *memStore) UpdateAccount(_ context.Context, a *domain.BankAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.ID] = *a
	return nil
}

func (m *memStore) DeleteAccount(_ context.Context, _, id int64) error {
	delete(m.accounts, id)
	return nil
}

func (m *memStore) SetPrimaryAccount(_ context.Context, userID, id int64) error {
	for k, a := range m.accounts {
		if a.UserID == userID {
			a.IsPrimary = k == id
			m.accounts[k] = a
		}
	}
	return nil
}

func (m *memStore) ListConnectedAccounts(context.Context) ([]domain.BankAccount, error) {
	var out []domain.BankAccount
	for _, a := range m.accounts {
		if a.IsAPIConnected && a.Status == domain.AccountActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) InsertBankTransaction(_ context.Context, bt *domain.BankTransaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.raw {
		if r.AccountID == bt.AccountID && r.TransactionID == bt.TransactionID {
			return false, nil
		}
	}
	bt.ID = int64(len(m.raw) + 1)
	m.raw = append(m.raw, *bt)
	return true, nil
}

func (m *memStore) MarkBankTransactionProcessed(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.raw {
		if m.raw[i].ID == id {
			m.raw[i].IsProcessed = true
			m.raw[i].ProcessedAt = &at
		}
	}
	return nil
}

func (m *memStore) ListBankTransactions(_ context.Context, accountID int64, _ int) ([]domain.BankTransaction, error) {
	var out []domain.BankTransaction
	for _, r := range m.raw {
		if r.AccountID == accountID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeClient struct {
	mu    sync.Mutex
	st    Statement
	err   error
	calls int
}

func (f *fakeClient) FetchTransactions(context.Context, string, Credentials, string, time.Time) (Statement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.st, f.err
}

type txRecorder struct {
	mu      sync.Mutex
	created []domain.Transaction
}

func (r *txRecorder) Create(_ context.Context, userID int64, t domain.Transaction) (domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.UserID = userID
	r.created = append(r.created, t)
	return t, nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func setup(t *testing.T) (*Service, *memStore, *fakeClient, *txRecorder, *audit.MemorySink) {
	t.Helper()
	store := newMemStore()
	client := &fakeClient{}
	txs := &txRecorder{}
	sink := audit.NewMemorySink()
	svc := NewService(store, NewVault(testKey()), client, sink, txs, 2, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) }
	return svc, store, client, txs, sink
}

func account(bankCode domain.BankCode, number string) domain.BankAccount {
	return domain.BankAccount{BankCode: bankCode, AccountNumber: number, AccountName: "Main", AccountType: domain.AccountSavings, Currency: "lkr"}
}

func TestCreateAccountAndPrimary(t *testing.T) {
	svc, store, _, _, _ := setup(t)
	ctx := context.Background()

	a := account(domain.BankSampath, "1002003004")
	a.IsPrimary = true
	first, err := svc.CreateAccount(ctx, 1, a)
	if err != nil {
		t.Fatal(err)
	}
	if first.Display() != "Sampath Bank - ****3004" || first.Currency != "LKR" || first.SyncFrequency != domain.DefaultSyncFrequency {
		t.Errorf("account = %+v", first)
	}
	second, _ := svc.CreateAccount(ctx, 1, account(domain.BankNSB, "99"))
	if err := svc.SetPrimary(ctx, 1, second.ID); err != nil {
		t.Fatal(err)
	}
	if store.accounts[first.ID].IsPrimary || !store.accounts[second.ID].IsPrimary {
		t.Error("primary flag not moved")
	}
	if _, err := svc.CreateAccount(ctx, 1, account("NOPE", "1")); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("unknown bank accepted: %v", err)
	}
}

func TestConnectDisconnect(t *testing.T) {
	svc, _, _, _, sink := setup(t)
	ctx := context.Background()

	nsb, _ := svc.CreateAccount(ctx, 1, account(domain.BankNSB, "55"))
	if _, err := svc.Connect(ctx, 1, nsb.ID, Credentials{Token: "x"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("bank without API connected: %v", err)
	}

	acc, _ := svc.CreateAccount(ctx, 1, account(domain.BankSampath, "77"))
	got, err := svc.Connect(ctx, 1, acc.ID, Credentials{Token: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsAPIConnected || got.EncryptedCredentials == "" {
		t.Errorf("not connected: %+v", got)
	}
	got, _ = svc.Disconnect(ctx, 1, acc.ID)
	if got.IsAPIConnected || got.EncryptedCredentials != "" {
		t.Errorf("not disconnected: %+v", got)
	}
	if n := len(sink.Events()); n != 2 {
		t.Errorf("security events = %d, want 2", n)
	}
}

func TestSyncImportsOnce(t *testing.T) {
	svc, store, client, txs, sink := setup(t)
	ctx := context.Background()
	acc, _ := svc.CreateAccount(ctx, 1, account(domain.BankSampath, "77"))
	svc.Connect(ctx, 1, acc.ID, Credentials{Token: "x"})

	client.st = Statement{
		Balance: decimal.NewNullDecimal(d("9000")),
		Transactions: []domain.BankTransaction{
			{TransactionID: "a", TransactionType: domain.BankDebit, Amount: d("-250"), Description: "Keells", MerchantName: "Keells"},
			{TransactionID: "b", TransactionType: domain.BankCredit, Amount: d("100000"), Description: "Salary"},
		},
	}
	res, err := svc.Sync(ctx, 1, acc.ID)
	if err != nil || res.Error != "" {
		t.Fatalf("sync: %v %+v", err, res)
	}
	if res.Fetched != 2 || res.Imported != 2 || res.Skipped != 0 {
		t.Errorf("result = %+v", res)
	}
	exp, inc := txs.created[0], txs.created[1]
	if exp.Type != domain.TypeExpense || !exp.Amount.Equal(d("250")) || *exp.FromAccountID != acc.ID || exp.MerchantName != "Keells" || exp.IsManualEntry {
		t.Errorf("debit became %+v", exp)
	}
	if inc.Type != domain.TypeIncome || *inc.ToAccountID != acc.ID || inc.BankTransactionID == nil {
		t.Errorf("credit became %+v", inc)
	}
	if !store.raw[0].IsProcessed {
		t.Error("raw record not marked processed")
	}
	if a := store.accounts[acc.ID]; !a.CurrentBalance.Equal(d("9000")) || a.LastSyncAt == nil {
		t.Errorf("account not updated: %+v", a)
	}

	res, _ = svc.Sync(ctx, 1, acc.ID)
	if res.Imported != 0 || res.Skipped != 2 || len(txs.created) != 2 {
		t.Errorf("second sync imported duplicates: %+v", res)
	}

	logs, _ := sink.Recent(ctx, audit.Filter{UserID: 1}, 10)
	if len(logs) != 2 || logs[0].Status != domain.APISuccess {
		t.Errorf("api logs = %+v", logs)
	}
}

func TestSyncFailureIsLogged(t *testing.T) {
	svc, _, client, _, sink := setup(t)
	ctx := context.Background()
	acc, _ := svc.CreateAccount(ctx, 1, account(domain.BankSampath, "77"))
	svc.Connect(ctx, 1, acc.ID, Credentials{Token: "x"})
	client.err = &CallError{StatusCode: 429, Status: domain.APIRateLimited, Err: errors.New("slow down")}

	res, err := svc.Sync(ctx, 1, acc.ID)
	if err != nil || res.Error == "" {
		t.Fatalf("failure not reported: %v %+v", err, res)
	}
	logs, _ := sink.Recent(ctx, audit.Filter{Status: domain.APIRateLimited}, 10)
	if len(logs) != 1 || logs[0].StatusCode != 429 {
		t.Errorf("api logs = %+v", logs)
	}
}

func TestSyncAllAndDue(t *testing.T) {
	svc, store, client, _, _ := setup(t)
	ctx := context.Background()
	for _, n := range []string{"1", "2", "3"} {
		a, _ := svc.CreateAccount(ctx, 1, account(domain.BankSampath, n))
		svc.Connect(ctx, 1, a.ID, Credentials{Token: "x"})
	}
	svc.CreateAccount(ctx, 1, account(domain.BankNSB, "manual"))

	results, err := svc.SyncAll(ctx, 1)
	if err != nil || len(results) != 3 || client.calls != 3 {
		t.Fatalf("sync all: %v results=%d calls=%d", err, len(results), client.calls)
	}

	n, _ := svc.SyncDue(ctx)
	if n != 0 {
		t.Errorf("accounts synced moments ago were due again: %d", n)
	}
	a := store.accounts[1]
	old := a.LastSyncAt.Add(-time.Hour)
	a.LastSyncAt = &old
	store.accounts[1] = a
	if n, _ := svc.SyncDue(ctx); n != 1 {
		t.Errorf("due accounts synced = %d, want 1", n)
	}
}

func TestParseBalance(t *testing.T) {
	v, ok := ParseBalance("Txn LKR 1,250.00 at KEELLS. Balance: 45,300.75 LKR", "LKR")
	if !ok || !v.Equal(d("45300.75")) {
		t.Errorf("got %s %v", v, ok)
	}
	if _, ok := ParseBalance("Balance: 10.00 USD", "LKR"); ok {
		t.Error("other currency matched")
	}
}

func TestImportBalances(t *testing.T) {
	svc, _, _, _, _ := setup(t)
	ctx := context.Background()
	acc, _ := svc.CreateAccount(ctx, 1, account(domain.BankNSB, "55"))

	base := acc.LastUpdated
	res, err := svc.ImportBalances(ctx, 1, acc.ID, []Message{
		{Text: "Balance: 300.00 LKR", ReceivedAt: base.Add(2 * time.Hour)},
		{Text: "Balance: 100.00 LKR", ReceivedAt: base.Add(-time.Hour)},
		{Text: "Balance: 200.00 LKR", ReceivedAt: base.Add(time.Hour)},
		{Text: "Payment received", ReceivedAt: base.Add(3 * time.Hour)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Applied != 2 || res.Ignored != 2 || !res.Account.CurrentBalance.Equal(d("300")) {
		t.Errorf("result = %+v", res)
	}
}
