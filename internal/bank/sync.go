package bank

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

// initialLookback is how far back the first sync of an account reaches.
const initialLookback = 30 * 24 * time.Hour

// Sync pulls new activity for one account of the user.
func (s *Service) Sync(ctx context.Context, userID, accountID int64) (domain.SyncResult, error) {
	acc, err := s.store.GetAccount(ctx, userID, accountID)
	if err != nil {
		return domain.SyncResult{}, err
	}
	if !acc.IsAPIConnected {
		return domain.SyncResult{}, domain.Invalid("account", "is not connected to a bank API")
	}
	res := s.syncAccount(ctx, acc)
	return res, nil
}

// SyncAll syncs every connected active account of the user with bounded
// concurrency. Per account errors are reported in the results.
func (s *Service) SyncAll(ctx context.Context, userID int64) ([]domain.SyncResult, error) {
	accounts, err := s.store.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	var connected []domain.BankAccount
	for _, a := range accounts {
		if a.IsAPIConnected && a.Status == domain.AccountActive {
			connected = append(connected, a)
		}
	}
	return s.syncMany(ctx, connected), nil
}

// SyncDue syncs the accounts of all users whose sync interval elapsed. It is
// run by the background worker.
func (s *Service) SyncDue(ctx context.Context) (int, error) {
	accounts, err := s.store.ListConnectedAccounts(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	var due []domain.BankAccount
	for _, a := range accounts {
		if a.SyncDue(now) {
			due = append(due, a)
		}
	}
	failed := 0
	for _, r := range s.syncMany(ctx, due) {
		if r.Error != "" {
			failed++
			s.log.Warn().Int64("account_id", r.AccountID).Str("error", r.Error).Msg("bank sync failed")
		}
	}
	return len(due) - failed, nil
}

func (s *Service) syncMany(ctx context.Context, accounts []domain.BankAccount) []domain.SyncResult {
	results := make([]domain.SyncResult, len(accounts))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i := range accounts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = domain.SyncResult{AccountID: accounts[i].ID, Error: ctx.Err().Error()}
				return
			}
			defer func() { <-sem }()
			results[i] = s.syncAccount(ctx, accounts[i])
		}(i)
	}
	wg.Wait()
	return results
}

func (s *Service) syncAccount(ctx context.Context, acc domain.BankAccount) domain.SyncResult {
	res := domain.SyncResult{AccountID: acc.ID}
	fail := func(err error) domain.SyncResult {
		res.Error = err.Error()
		return res
	}

	b, err := s.store.GetBank(ctx, acc.BankID)
	if err != nil {
		return fail(err)
	}
	creds, err := s.vault.Decrypt(acc.EncryptedCredentials)
	if err != nil {
		return fail(err)
	}

	now := s.now()
	since := now.Add(-initialLookback)
	if acc.LastSyncAt != nil {
		since = *acc.LastSyncAt
	}

	start := time.Now()
	st, err := s.client.FetchTransactions(ctx, b.APIEndpoint, creds, acc.AccountNumber, since)
	s.recordCall(ctx, b, acc, since, time.Since(start), len(st.Transactions), err)
	if err != nil {
		return fail(err)
	}
	res.Fetched = len(st.Transactions)

	for i := range st.Transactions {
		raw := st.Transactions[i]
		raw.ID = 0
		raw.AccountID = acc.ID
		raw.IsProcessed = false
		raw.ProcessedAt = nil
		if raw.Currency == "" {
			raw.Currency = acc.Currency
		}
		inserted, err := s.store.InsertBankTransaction(ctx, &raw)
		if err != nil {
			return fail(err)
		}
		if !inserted {
			res.Skipped++
			continue
		}
		if err := s.process(ctx, acc, raw); err != nil {
			s.log.Error().Err(err).Int64("account_id", acc.ID).Str("bank_transaction_id", raw.TransactionID).Msg("process bank transaction")
			continue
		}
		res.Imported++
	}

	acc.CurrentBalance = nullOr(st.Balance, acc.CurrentBalance)
	acc.AvailableBalance = nullOr(st.AvailableBalance, acc.AvailableBalance)
	acc.LastUpdated = now
	acc.LastSyncAt = &now
	if err := s.store.UpdateAccount(ctx, &acc); err != nil {
		return fail(err)
	}
	return res
}

// process turns a stored raw record into a transaction: debits become
// expenses from the account and credits income to it.
func (s *Service) process(ctx context.Context, acc domain.BankAccount, raw domain.BankTransaction) error {
	rawID := raw.ID
	t := domain.Transaction{
		Amount:            raw.Amount.Abs(),
		Currency:          raw.Currency,
		Description:       raw.Description,
		MerchantName:      raw.MerchantName,
		TransactionDate:   raw.TransactionDate,
		ReferenceNumber:   raw.ReferenceNumber,
		LocationName:      raw.Location,
		BankTransactionID: &rawID,
		IsManualEntry:     false,
	}
	if !raw.ValueDate.IsZero() {
		vd := raw.ValueDate
		t.ValueDate = &vd
	}
	if t.Description == "" {
		t.Description = "Bank transaction " + raw.TransactionID
	}
	accID := acc.ID
	if raw.TransactionType == domain.BankCredit {
		t.Type = domain.TypeIncome
		t.ToAccountID = &accID
	} else {
		t.Type = domain.TypeExpense
		t.FromAccountID = &accID
	}
	if _, err := s.txs.Create(ctx, acc.UserID, t); err != nil {
		return err
	}
	return s.store.MarkBankTransactionProcessed(ctx, raw.ID, s.now())
}

func (s *Service) recordCall(ctx context.Context, b domain.Bank, acc domain.BankAccount, since time.Time, took time.Duration, n int, callErr error) {
	status, code := classify(callErr)
	entry := domain.APILog{
		BankCode:     b.Code,
		UserID:       acc.UserID,
		Endpoint:     b.APIEndpoint + "/accounts/" + domain.MaskedNumber(acc.AccountNumber) + "/transactions",
		Method:       http.MethodGet,
		StatusCode:   code,
		Status:       status,
		RequestData:  map[string]any{"account_id": acc.ID, "since": since.UTC().Format(time.RFC3339)},
		ResponseTime: took.Seconds(),
		Timestamp:    s.now().UTC(),
	}
	if callErr != nil {
		entry.ErrorMessage = callErr.Error()
	} else {
		entry.ResponseData = map[string]any{"transactions": n}
	}
	if err := s.sink.RecordAPICall(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("bank", string(b.Code)).Msg("record bank api call")
	}
}
