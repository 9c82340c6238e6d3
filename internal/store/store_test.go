package store

import (
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

func TestWrap(t *testing.T) {
	plain := errors.New("connection reset")
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, domain.ErrNotFound},
		{"unique", &pgconn.PgError{Code: "23505"}, domain.ErrConflict},
		{"foreign key", &pgconn.PgError{Code: "23503", ConstraintName: "budgets_period_id_fkey"}, domain.ErrInvalidInput},
		{"other", plain, plain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrap("op", tt.err)
			if !errors.Is(err, tt.want) {
				t.Fatalf("wrap(%v) = %v, want %v", tt.err, err, tt.want)
			}
			if !strings.HasPrefix(err.Error(), "op: ") {
				t.Errorf("error %q does not name the operation", err)
			}
		})
	}
	if wrap("op", nil) != nil {
		t.Error("wrap(nil) should be nil")
	}
}

func TestAffected(t *testing.T) {
	if err := affected("delete", pgconn.NewCommandTag("DELETE 0"), nil); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("zero rows: got %v, want not found", err)
	}
	if err := affected("delete", pgconn.NewCommandTag("DELETE 1"), nil); err != nil {
		t.Errorf("one row: got %v", err)
	}
}

func TestNullable(t *testing.T) {
	if nullable("") != nil {
		t.Error("empty code should be NULL")
	}
	if got := nullable("AB12CD34"); got == nil || *got != "AB12CD34" {
		t.Errorf("nullable kept %v", got)
	}
}

func TestContainsPattern(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"coffee", `%coffee%`},
		{"50%", `%50\%%`},
		{"a_b", `%a\_b%`},
		{`c:\tmp`, `%c:\\tmp%`},
	}
	for _, tt := range tests {
		if got := containsPattern(tt.in); got != tt.want {
			t.Errorf("containsPattern(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSchemaIsEmbedded(t *testing.T) {
	for _, table := range []string{"users", "transactions", "budgets", "shared_ledgers", "monthly_summaries"} {
		if !strings.Contains(schemaSQL, "CREATE TABLE IF NOT EXISTS "+table+" ") {
			t.Errorf("schema is missing table %s", table)
		}
	}
	if !strings.Contains(seedSQL, "ON CONFLICT") {
		t.Error("seed data must be idempotent")
	}
}
