package transactions

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

const csvDate = "2006-01-02"

var csvHeader = []string{"Date", "Type", "Amount", "Description", "Category", "Merchant"}

// Export writes all of the user's transactions as CSV, newest first.
func (s *Service) Export(ctx context.Context, userID int64, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	f := domain.TransactionFilter{UserID: userID, Page: 1, PageSize: domain.MaxPageSize}
	for {
		items, total, err := s.store.ListTransactions(ctx, f)
		if err != nil {
			return err
		}
		for _, t := range items {
			rec := []string{
				t.TransactionDate.Format(csvDate),
				string(t.Type),
				t.Amount.StringFixed(2),
				t.Description,
				t.CategoryName,
				t.MerchantName,
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		if len(items) == 0 || f.Offset()+len(items) >= total {
			break
		}
		f.Page++
	}
	cw.Flush()
	return cw.Error()
}

type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type ImportResult struct {
	Imported int        `json:"imported"`
	Errors   []RowError `json:"errors"`
}

// Import creates one manual transaction per CSV row. Rows that fail are
// reported with their line number and do not stop the import.
func (s *Service) Import(ctx context.Context, userID int64, r io.Reader) (ImportResult, error) {
	res := ImportResult{Errors: []RowError{}}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return res, domain.Invalid("file", "is empty")
		}
		return res, domain.Invalid("file", err.Error())
	}
	cols, err := columns(header)
	if err != nil {
		return res, err
	}

	cats, _, err := s.visibleCategories(ctx, userID)
	if err != nil {
		return res, err
	}

	for row := 2; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			res.Errors = append(res.Errors, RowError{Row: row, Error: err.Error()})
			continue
		}
		t, err := parseRow(rec, cols, cats, userID)
		if err == nil {
			_, err = s.Create(ctx, userID, t)
		}
		if err != nil {
			res.Errors = append(res.Errors, RowError{Row: row, Error: err.Error()})
			continue
		}
		res.Imported++
	}
	return res, nil
}

func columns(header []string) (map[string]int, error) {
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, required := range []string{"date", "type", "amount", "description"} {
		if _, ok := cols[required]; !ok {
			return nil, domain.Invalid("header", fmt.Sprintf("missing %q column", required))
		}
	}
	return cols, nil
}

func field(rec []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func parseRow(rec []string, cols map[string]int, cats []domain.Category, userID int64) (domain.Transaction, error) {
	date, err := time.Parse(csvDate, field(rec, cols, "date"))
	if err != nil {
		return domain.Transaction{}, domain.Invalid("date", "must be YYYY-MM-DD")
	}
	amount, err := decimal.NewFromString(field(rec, cols, "amount"))
	if err != nil {
		return domain.Transaction{}, domain.Invalid("amount", "is not a number")
	}
	t := domain.Transaction{
		Type:            domain.TransactionType(strings.ToLower(field(rec, cols, "type"))),
		Amount:          amount,
		Description:     field(rec, cols, "description"),
		MerchantName:    field(rec, cols, "merchant"),
		TransactionDate: date,
		IsManualEntry:   true,
	}
	if name := field(rec, cols, "category"); name != "" {
		c, err := categoryByName(cats, userID, name)
		if err != nil {
			return domain.Transaction{}, err
		}
		id := c.ID
		t.CategoryID = &id
		t.CategoryName = c.Name
	}
	return t, nil
}
