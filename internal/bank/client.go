package bank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

// Statement is what a bank returns for one account.
type Statement struct {
	Transactions     []domain.BankTransaction `json:"transactions"`
	Balance          decimal.NullDecimal      `json:"balance"`
	AvailableBalance decimal.NullDecimal      `json:"available_balance"`
}

// Client fetches account activity from a bank API.
type Client interface {
	FetchTransactions(ctx context.Context, endpoint string, creds Credentials, accountNumber string, since time.Time) (Statement, error)
}

// CallError describes a failed bank call.
type CallError struct {
	StatusCode int
	Status     domain.APICallStatus
	Err        error
}

func (e *CallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("bank api %s (HTTP %d): %v", e.Status, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("bank api %s: %v", e.Status, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// classify maps a client error to the API log status and HTTP code.
func classify(err error) (domain.APICallStatus, int) {
	if err == nil {
		return domain.APISuccess, http.StatusOK
	}
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Status, ce.StatusCode
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.APITimeout, 0
	}
	return domain.APIError, 0
}

// HTTPClient talks to banks exposing
// GET {endpoint}/accounts/{number}/transactions?since=RFC3339.
type HTTPClient struct {
	http *http.Client
}

func NewHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{http: &http.Client{Timeout: timeout}}
}

func (c *HTTPClient) FetchTransactions(ctx context.Context, endpoint string, creds Credentials, accountNumber string, since time.Time) (Statement, error) {
	u := strings.TrimRight(endpoint, "/") + "/accounts/" + url.PathEscape(accountNumber) + "/transactions?" +
		url.Values{"since": {since.UTC().Format(time.RFC3339)}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Statement{}, &CallError{Status: domain.APIError, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return Statement{}, &CallError{Status: domain.APITimeout, Err: err}
		}
		return Statement{}, &CallError{Status: domain.APIError, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Statement{}, &CallError{StatusCode: resp.StatusCode, Status: domain.APIRateLimited, Err: errors.New("rate limited")}
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Statement{}, &CallError{StatusCode: resp.StatusCode, Status: domain.APIError, Err: errors.New(strings.TrimSpace(string(body)))}
	}

	var st Statement
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return Statement{}, &CallError{StatusCode: resp.StatusCode, Status: domain.APIError, Err: fmt.Errorf("decode statement: %w", err)}
	}
	return st, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
