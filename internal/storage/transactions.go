package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ports"
)

type transactionRow struct {
	ID           int64  `db:"id"`
	Description  string `db:"description"`
	AmountCents  int64  `db:"amount_cents"`
	Type         string `db:"type"`
	DateUnixNano int64  `db:"date_unix_nano"`
	OwnerID      int64  `db:"owner_id"`
}

func (r transactionRow) toCore() core.Transaction {
	return core.Transaction{
		ID:          r.ID,
		Description: r.Description,
		Amount:      core.Money{Cents: r.AmountCents},
		Type:        core.TransactionType(r.Type),
		Date:        time.Unix(0, r.DateUnixNano).UTC(),
		OwnerID:     r.OwnerID,
	}
}

const selectTransactions = `SELECT id, description, amount_cents, type, date_unix_nano, owner_id FROM transactions`

const orderNewestFirst = ` ORDER BY date_unix_nano DESC, id DESC`

// unixNano converts a query bound to the column representation. UnixNano
// wraps outside core.MinDate..core.MaxDate, so bounds are clamped first.
func unixNano(t time.Time) int64 {
	return core.ClampDate(t.UTC()).UnixNano()
}

func (s *Store) Insert(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := core.CheckDate(t.Date); err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w: %w", core.ErrInvalidArgument, err)
	}

	query := s.rebind(`INSERT INTO transactions (description, amount_cents, type, date_unix_nano, owner_id)
		VALUES (?, ?, ?, ?, ?) RETURNING id`)

	var id int64
	err := s.db.QueryRowxContext(ctx, query,
		t.Description, t.Amount.Cents, string(t.Type), t.Date.UTC().UnixNano(), t.OwnerID,
	).Scan(&id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	t.ID = id
	t.Date = t.Date.UTC()
	slog.DebugContext(ctx, "Transaction saved",
		"id", id,
		"type", t.Type,
		"amount_cents", t.Amount.Cents,
		"owner_id", t.OwnerID)
	return t, nil
}

func (s *Store) FindByID(ctx context.Context, id int64) (core.Transaction, error) {
	var row transactionRow
	err := s.db.GetContext(ctx, &row, s.rebind(selectTransactions+` WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("find transaction %d: %w", id, err)
	}
	return row.toCore(), nil
}

func (s *Store) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, s.rebind(`SELECT EXISTS (SELECT 1 FROM transactions WHERE id = ?)`), id)
	if err != nil {
		return false, fmt.Errorf("check transaction %d: %w", id, err)
	}
	return exists, nil
}

func (s *Store) DeleteByID(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM transactions WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	slog.DebugContext(ctx, "Transaction deleted", "id", id)
	return nil
}

func (s *Store) FindByOwner(ctx context.Context, ownerID int64) ([]core.Transaction, error) {
	return s.selectTransactions(ctx, selectTransactions+` WHERE owner_id = ?`+orderNewestFirst, ownerID)
}

func (s *Store) FindByOwnerAndPeriod(ctx context.Context, ownerID int64, p core.Period) ([]core.Transaction, error) {
	return s.selectTransactions(ctx,
		selectTransactions+` WHERE owner_id = ? AND date_unix_nano BETWEEN ? AND ?`+orderNewestFirst,
		ownerID, unixNano(p.Start), unixNano(p.End))
}

func (s *Store) selectTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	var rows []transactionRow
	if err := s.db.SelectContext(ctx, &rows, s.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCore())
	}
	return out, nil
}

// Sum totals amount_cents for rows matching f. No matching rows sums to zero.
func (s *Store) Sum(ctx context.Context, f ports.SumFilter) (core.Money, error) {
	var (
		where = []string{"type = ?"}
		args  = []any{string(f.Type)}
	)
	if f.OwnerID != nil {
		where = append(where, "owner_id = ?")
		args = append(args, *f.OwnerID)
	}
	if f.Period != nil {
		where = append(where, "date_unix_nano BETWEEN ? AND ?")
		args = append(args, unixNano(f.Period.Start), unixNano(f.Period.End))
	}

	query := `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE ` + strings.Join(where, " AND ")

	var cents int64
	if err := s.db.GetContext(ctx, &cents, s.rebind(query), args...); err != nil {
		return core.Money{}, fmt.Errorf("sum %s transactions: %w", f.Type, err)
	}
	return core.Money{Cents: cents}, nil
}
