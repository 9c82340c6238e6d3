package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

const ledgerColumns = `id, name, description, ledger_type, created_by, currency, is_public, require_approval,
	allow_file_uploads, status, total_expenses, total_members, COALESCE(invite_code, ''), invite_expires_at,
	created_at, updated_at`

func scanLedger(r pgx.Row) (domain.SharedLedger, error) {
	var l domain.SharedLedger
	err := r.Scan(&l.ID, &l.Name, &l.Description, &l.LedgerType, &l.CreatedBy, &l.Currency, &l.IsPublic, &l.RequireApproval,
		&l.AllowFileUploads, &l.Status, &l.TotalExpenses, &l.TotalMembers, &l.InviteCode, &l.InviteExpiresAt,
		&l.CreatedAt, &l.UpdatedAt)
	return l, err
}

// nullable stores an empty invite code as NULL so the unique index ignores it.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (p *Postgres) CreateLedger(ctx context.Context, l *domain.SharedLedger, admin *domain.LedgerMember) error {
	return wrap("create ledger", p.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO shared_ledgers (name, description, ledger_type, created_by, currency, is_public,
				require_approval, allow_file_uploads, status, total_expenses, total_members, invite_code,
				invite_expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id, created_at, updated_at`,
			l.Name, l.Description, l.LedgerType, l.CreatedBy, l.Currency, l.IsPublic,
			l.RequireApproval, l.AllowFileUploads, l.Status, l.TotalExpenses, l.TotalMembers, nullable(l.InviteCode),
			l.InviteExpiresAt,
		).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
		if err != nil {
			return err
		}
		admin.LedgerID = l.ID
		return insertMember(ctx, tx, admin)
	}))
}

func (p *Postgres) GetLedger(ctx context.Context, id string) (domain.SharedLedger, error) {
	return one("get ledger", p.pool.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM shared_ledgers WHERE id = $1`, id), scanLedger)
}

func (p *Postgres) GetLedgerByInviteCode(ctx context.Context, code string) (domain.SharedLedger, error) {
	return one("get ledger by invite", p.pool.QueryRow(ctx,
		`SELECT `+ledgerColumns+` FROM shared_ledgers WHERE upper(invite_code) = upper($1)`, code), scanLedger)
}

// ListLedgers returns the ledgers the user is an active member of.
func (p *Postgres) ListLedgers(ctx context.Context, userID int64) ([]domain.SharedLedger, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+ledgerColumns+` FROM shared_ledgers
		WHERE id IN (SELECT ledger_id FROM ledger_members WHERE user_id = $1 AND status = 'active')
		ORDER BY updated_at DESC`, userID)
	return collect("list ledgers", rows, err, scanLedger)
}

func (p *Postgres) UpdateLedger(ctx context.Context, l *domain.SharedLedger) error {
	err := p.pool.QueryRow(ctx, `
		UPDATE shared_ledgers SET name = $2, description = $3, ledger_type = $4, currency = $5,
			is_public = $6, require_approval = $7, allow_file_uploads = $8, status = $9,
			invite_code = $10, invite_expires_at = $11, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		l.ID, l.Name, l.Description, l.LedgerType, l.Currency,
		l.IsPublic, l.RequireApproval, l.AllowFileUploads, l.Status,
		nullable(l.InviteCode), l.InviteExpiresAt,
	).Scan(&l.UpdatedAt)
	return wrap("update ledger", err)
}

func (p *Postgres) UpdateLedgerStats(ctx context.Context, id string, totalExpenses decimal.Decimal, totalMembers int) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE shared_ledgers SET total_expenses = $2, total_members = $3, updated_at = now()
		WHERE id = $1`, id, totalExpenses, totalMembers)
	return affected("update ledger stats", tag, err)
}

const memberSelect = `
	SELECT m.id, m.ledger_id, m.user_id, m.role, m.status, m.notify_on_expense, m.notify_on_payment,
		m.invited_by, m.invited_at, m.joined_at, m.display_name, m.color, u.username,
		TRIM(u.first_name || ' ' || u.last_name), m.created_at, m.updated_at
	FROM ledger_members m JOIN users u ON u.id = m.user_id`

func scanMember(r pgx.Row) (domain.LedgerMember, error) {
	var m domain.LedgerMember
	err := r.Scan(&m.ID, &m.LedgerID, &m.UserID, &m.Role, &m.Status, &m.NotifyOnExpense, &m.NotifyOnPayment,
		&m.InvitedBy, &m.InvitedAt, &m.JoinedAt, &m.DisplayName, &m.Color, &m.Username,
		&m.FullName, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (p *Postgres) ListMembers(ctx context.Context, ledgerID string) ([]domain.LedgerMember, error) {
	rows, err := p.pool.Query(ctx, memberSelect+` WHERE m.ledger_id = $1 ORDER BY m.id`, ledgerID)
	return collect("list members", rows, err, scanMember)
}

func (p *Postgres) GetMember(ctx context.Context, ledgerID string, userID int64) (domain.LedgerMember, error) {
	return one("get member", p.pool.QueryRow(ctx,
		memberSelect+` WHERE m.ledger_id = $1 AND m.user_id = $2`, ledgerID, userID), scanMember)
}

func insertMember(ctx context.Context, q querier, m *domain.LedgerMember) error {
	return q.QueryRow(ctx, `
		INSERT INTO ledger_members (ledger_id, user_id, role, status, notify_on_expense, notify_on_payment,
			invited_by, invited_at, joined_at, display_name, color)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`,
		m.LedgerID, m.UserID, m.Role, m.Status, m.NotifyOnExpense, m.NotifyOnPayment,
		m.InvitedBy, m.InvitedAt, m.JoinedAt, m.DisplayName, m.Color,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

func (p *Postgres) CreateMember(ctx context.Context, m *domain.LedgerMember) error {
	return wrap("create member", insertMember(ctx, p.pool, m))
}

func (p *Postgres) UpdateMember(ctx context.Context, m *domain.LedgerMember) error {
	err := p.pool.QueryRow(ctx, `
		UPDATE ledger_members SET role = $3, status = $4, notify_on_expense = $5, notify_on_payment = $6,
			joined_at = $7, display_name = $8, color = $9, updated_at = now()
		WHERE ledger_id = $1 AND id = $2
		RETURNING updated_at`,
		m.LedgerID, m.ID, m.Role, m.Status, m.NotifyOnExpense, m.NotifyOnPayment,
		m.JoinedAt, m.DisplayName, m.Color,
	).Scan(&m.UpdatedAt)
	return wrap("update member", err)
}

const inviteColumns = `id, ledger_id, invited_by, email, message, proposed_role, status, token, expires_at,
	responded_at, created_at`

func scanInvite(r pgx.Row) (domain.LedgerInvite, error) {
	var inv domain.LedgerInvite
	err := r.Scan(&inv.ID, &inv.LedgerID, &inv.InvitedBy, &inv.Email, &inv.Message, &inv.ProposedRole, &inv.Status, &inv.Token, &inv.ExpiresAt,
		&inv.RespondedAt, &inv.CreatedAt)
	return inv, err
}

func (p *Postgres) CreateInvite(ctx context.Context, inv *domain.LedgerInvite) error {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO ledger_invites (ledger_id, invited_by, email, message, proposed_role, status, token, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		inv.LedgerID, inv.InvitedBy, inv.Email, inv.Message, inv.ProposedRole, inv.Status, inv.Token, inv.ExpiresAt,
	).Scan(&inv.ID, &inv.CreatedAt)
	return wrap("create invite", err)
}

func (p *Postgres) GetInvite(ctx context.Context, ledgerID string, id int64) (domain.LedgerInvite, error) {
	return one("get invite", p.pool.QueryRow(ctx,
		`SELECT `+inviteColumns+` FROM ledger_invites WHERE ledger_id = $1 AND id = $2`, ledgerID, id), scanInvite)
}

func (p *Postgres) GetInviteByToken(ctx context.Context, token string) (domain.LedgerInvite, error) {
	return one("get invite by token", p.pool.QueryRow(ctx,
		`SELECT `+inviteColumns+` FROM ledger_invites WHERE token = $1`, token), scanInvite)
}

func (p *Postgres) ListInvites(ctx context.Context, ledgerID string) ([]domain.LedgerInvite, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+inviteColumns+` FROM ledger_invites WHERE ledger_id = $1
		ORDER BY created_at DESC, id DESC`, ledgerID)
	return collect("list invites", rows, err, scanInvite)
}

func (p *Postgres) UpdateInvite(ctx context.Context, inv *domain.LedgerInvite) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE ledger_invites SET status = $3, responded_at = $4, expires_at = $5
		WHERE ledger_id = $1 AND id = $2`,
		inv.LedgerID, inv.ID, inv.Status, inv.RespondedAt, inv.ExpiresAt)
	return affected("update invite", tag, err)
}

const expenseColumns = `id, ledger_id, description, amount, currency, paid_by, category_id, tags,
	expense_date, split_method, status, created_by, approved_by, approved_at, location, notes,
	transaction_id, created_at, updated_at`

func scanExpense(r pgx.Row) (domain.SharedExpense, error) {
	var e domain.SharedExpense
	err := r.Scan(&e.ID, &e.LedgerID, &e.Description, &e.Amount, &e.Currency, &e.PaidBy, &e.CategoryID, &e.Tags,
		&e.ExpenseDate, &e.SplitMethod, &e.Status, &e.CreatedBy, &e.ApprovedBy, &e.ApprovedAt, &e.Location, &e.Notes,
		&e.TransactionID, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func scanExpenseSplit(r pgx.Row) (domain.ExpenseSplit, error) {
	var s domain.ExpenseSplit
	err := r.Scan(&s.ID, &s.ExpenseID, &s.MemberID, &s.Amount, &s.Percentage, &s.Shares, &s.IsSettled,
		&s.SettledAt, &s.SettlementMethod)
	return s, err
}

func (p *Postgres) withSplits(ctx context.Context, expenses []domain.SharedExpense) ([]domain.SharedExpense, error) {
	if len(expenses) == 0 {
		return expenses, nil
	}
	ids := make([]int64, len(expenses))
	for i, e := range expenses {
		ids[i] = e.ID
	}
	rows, err := p.pool.Query(ctx, `
		SELECT id, expense_id, member_id, amount, percentage, shares, is_settled, settled_at, settlement_method
		FROM expense_splits WHERE expense_id = ANY($1) ORDER BY id`, ids)
	splits, err := collect("list expense splits", rows, err, scanExpenseSplit)
	if err != nil {
		return nil, err
	}
	byExpense := map[int64][]domain.ExpenseSplit{}
	for _, s := range splits {
		byExpense[s.ExpenseID] = append(byExpense[s.ExpenseID], s)
	}
	for i := range expenses {
		expenses[i].Splits = byExpense[expenses[i].ID]
	}
	return expenses, nil
}

func (p *Postgres) CreateExpense(ctx context.Context, e *domain.SharedExpense) error {
	return wrap("create expense", p.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO shared_expenses (ledger_id, description, amount, currency, paid_by, category_id, tags,
				expense_date, split_method, status, created_by, approved_by, approved_at, location, notes,
				transaction_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			RETURNING id, created_at, updated_at`,
			e.LedgerID, e.Description, e.Amount, e.Currency, e.PaidBy, e.CategoryID, e.Tags,
			e.ExpenseDate, e.SplitMethod, e.Status, e.CreatedBy, e.ApprovedBy, e.ApprovedAt, e.Location, e.Notes,
			e.TransactionID,
		).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return err
		}
		for i := range e.Splits {
			s := &e.Splits[i]
			s.ExpenseID = e.ID
			err := tx.QueryRow(ctx, `
				INSERT INTO expense_splits (expense_id, member_id, amount, percentage, shares, is_settled,
					settled_at, settlement_method)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				RETURNING id`,
				s.ExpenseID, s.MemberID, s.Amount, s.Percentage, s.Shares, s.IsSettled,
				s.SettledAt, s.SettlementMethod,
			).Scan(&s.ID)
			if err != nil {
				return err
			}
		}
		return nil
	}))
}

func (p *Postgres) GetExpense(ctx context.Context, ledgerID string, id int64) (domain.SharedExpense, error) {
	e, err := one("get expense", p.pool.QueryRow(ctx,
		`SELECT `+expenseColumns+` FROM shared_expenses WHERE ledger_id = $1 AND id = $2`, ledgerID, id), scanExpense)
	if err != nil {
		return e, err
	}
	out, err := p.withSplits(ctx, []domain.SharedExpense{e})
	if err != nil {
		return domain.SharedExpense{}, err
	}
	return out[0], nil
}

func (p *Postgres) ListExpenses(ctx context.Context, ledgerID string) ([]domain.SharedExpense, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+expenseColumns+` FROM shared_expenses WHERE ledger_id = $1
		ORDER BY expense_date DESC, id DESC`, ledgerID)
	expenses, err := collect("list expenses", rows, err, scanExpense)
	if err != nil {
		return nil, err
	}
	return p.withSplits(ctx, expenses)
}

func (p *Postgres) UpdateExpense(ctx context.Context, e *domain.SharedExpense) error {
	err := p.pool.QueryRow(ctx, `
		UPDATE shared_expenses SET description = $3, amount = $4, currency = $5, category_id = $6,
			tags = $7, expense_date = $8, status = $9, approved_by = $10, approved_at = $11,
			location = $12, notes = $13, transaction_id = $14, updated_at = now()
		WHERE ledger_id = $1 AND id = $2
		RETURNING updated_at`,
		e.LedgerID, e.ID, e.Description, e.Amount, e.Currency, e.CategoryID,
		e.Tags, e.ExpenseDate, e.Status, e.ApprovedBy, e.ApprovedAt,
		e.Location, e.Notes, e.TransactionID,
	).Scan(&e.UpdatedAt)
	return wrap("update expense", err)
}

func (p *Postgres) DeleteExpense(ctx context.Context, ledgerID string, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM shared_expenses WHERE ledger_id = $1 AND id = $2`, ledgerID, id)
	return affected("delete expense", tag, err)
}

const paymentColumns = `id, ledger_id, from_member_id, to_member_id, amount, currency, description,
	payment_date, payment_method, reference, is_confirmed, confirmed_by, confirmed_at, split_ids, created_at`

func scanPayment(r pgx.Row) (domain.SharedPayment, error) {
	var sp domain.SharedPayment
	err := r.Scan(&sp.ID, &sp.LedgerID, &sp.FromMemberID, &sp.ToMemberID, &sp.Amount, &sp.Currency, &sp.Description,
		&sp.PaymentDate, &sp.PaymentMethod, &sp.Reference, &sp.IsConfirmed, &sp.ConfirmedBy, &sp.ConfirmedAt, &sp.SplitIDs, &sp.CreatedAt)
	return sp, err
}

func (p *Postgres) CreatePayment(ctx context.Context, sp *domain.SharedPayment) error {
	if sp.SplitIDs == nil {
		sp.SplitIDs = []int64{}
	}
	err := p.pool.QueryRow(ctx, `
		INSERT INTO shared_payments (ledger_id, from_member_id, to_member_id, amount, currency, description,
			payment_date, payment_method, reference, is_confirmed, confirmed_by, confirmed_at, split_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at`,
		sp.LedgerID, sp.FromMemberID, sp.ToMemberID, sp.Amount, sp.Currency, sp.Description,
		sp.PaymentDate, sp.PaymentMethod, sp.Reference, sp.IsConfirmed, sp.ConfirmedBy, sp.ConfirmedAt, sp.SplitIDs,
	).Scan(&sp.ID, &sp.CreatedAt)
	return wrap("create payment", err)
}

func (p *Postgres) GetPayment(ctx context.Context, ledgerID string, id int64) (domain.SharedPayment, error) {
	return one("get payment", p.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM shared_payments WHERE ledger_id = $1 AND id = $2`, ledgerID, id), scanPayment)
}

func (p *Postgres) ListPayments(ctx context.Context, ledgerID string) ([]domain.SharedPayment, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+paymentColumns+` FROM shared_payments WHERE ledger_id = $1
		ORDER BY payment_date DESC, id DESC`, ledgerID)
	return collect("list payments", rows, err, scanPayment)
}

func (p *Postgres) ConfirmPayment(ctx context.Context, sp *domain.SharedPayment, settledExpenses []int64) error {
	return wrap("confirm payment", p.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE shared_payments SET is_confirmed = $3, confirmed_by = $4, confirmed_at = $5
			WHERE ledger_id = $1 AND id = $2`,
			sp.LedgerID, sp.ID, sp.IsConfirmed, sp.ConfirmedBy, sp.ConfirmedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		if len(sp.SplitIDs) > 0 {
			_, err = tx.Exec(ctx, `
				UPDATE expense_splits SET is_settled = TRUE, settled_at = $2, settlement_method = $3
				WHERE id = ANY($1) AND NOT is_settled`,
				sp.SplitIDs, sp.ConfirmedAt, sp.PaymentMethod)
			if err != nil {
				return err
			}
		}
		if len(settledExpenses) > 0 {
			_, err = tx.Exec(ctx, `
				UPDATE shared_expenses SET status = 'settled', updated_at = now()
				WHERE ledger_id = $1 AND id = ANY($2)`, sp.LedgerID, settledExpenses)
			if err != nil {
				return err
			}
		}
		return nil
	}))
}

func (p *Postgres) AddActivity(ctx context.Context, a *domain.LedgerActivity) error {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO ledger_activities (ledger_id, user_id, activity_type, description, data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		a.LedgerID, a.UserID, a.Type, a.Description, a.Data,
	).Scan(&a.ID, &a.CreatedAt)
	return wrap("add activity", err)
}

func (p *Postgres) ListActivity(ctx context.Context, ledgerID string, limit int) ([]domain.LedgerActivity, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, ledger_id, user_id, activity_type, description, data, created_at
		FROM ledger_activities WHERE ledger_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2`, ledgerID, limit)
	return collect("list activity", rows, err, func(r pgx.Row) (domain.LedgerActivity, error) {
		var a domain.LedgerActivity
		err := r.Scan(&a.ID, &a.LedgerID, &a.UserID, &a.Type, &a.Description, &a.Data, &a.CreatedAt)
		return a, err
	})
}
