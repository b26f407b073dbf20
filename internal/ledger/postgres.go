package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const maxTxAttempts = 3

// PostgresLedger persists accounts, entries, grants and purchase orders in
// PostgreSQL. Balance-moving statements always run in the same transaction as
// the status change that justifies them.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureAccount guarantees an account exists for the provided id.
func (l *PostgresLedger) EnsureAccount(ctx context.Context, id, role string) error {
	_, err := l.db.Exec(ctx, `INSERT INTO accounts (id, role, balance, active, created_at)
        VALUES ($1, $2, 0, TRUE, $3)
        ON CONFLICT (id) DO NOTHING`, id, role, time.Now().UTC())
	return err
}

// Account loads an account with its materialized balance.
func (l *PostgresLedger) Account(ctx context.Context, id string) (Account, error) {
	row := l.db.QueryRow(ctx, `SELECT id, role, balance, active, created_at FROM accounts WHERE id = $1`, id)
	var acc Account
	if err := row.Scan(&acc.ID, &acc.Role, &acc.Balance, &acc.Active, &acc.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	acc.CreatedAt = acc.CreatedAt.UTC()
	return acc, nil
}

// Deactivate soft-deletes an account; its entries stay referenced.
func (l *PostgresLedger) Deactivate(ctx context.Context, id string) error {
	cmd, err := l.db.Exec(ctx, `UPDATE accounts SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Balance returns the materialized balance for the account.
func (l *PostgresLedger) Balance(ctx context.Context, accountID string) (int64, error) {
	var balance int64
	if err := l.db.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return balance, nil
}

// Append inserts an entry. Spends are checked against the locked balance and
// committed together with their grant.
func (l *PostgresLedger) Append(ctx context.Context, in AppendInput) (Entry, error) {
	if err := validateAppend(in); err != nil {
		return Entry{}, err
	}

	var out Entry
	err := l.inTx(ctx, func(tx pgx.Tx) error {
		entry, err := appendTx(ctx, tx, in)
		out = entry
		return err
	})
	return out, err
}

// Complete transitions a pending entry to completed and applies its delta.
func (l *PostgresLedger) Complete(ctx context.Context, entryID string) (Entry, error) {
	var out Entry
	err := l.inTx(ctx, func(tx pgx.Tx) error {
		entry, err := completeTx(ctx, tx, entryID)
		out = entry
		return err
	})
	return out, err
}

// Fail transitions a pending entry to failed without touching the balance.
func (l *PostgresLedger) Fail(ctx context.Context, entryID, reason string) (Entry, error) {
	var out Entry
	err := l.inTx(ctx, func(tx pgx.Tx) error {
		entry, err := failTx(ctx, tx, entryID, reason)
		out = entry
		return err
	})
	return out, err
}

// Entry fetches a single entry.
func (l *PostgresLedger) Entry(ctx context.Context, entryID string) (Entry, error) {
	return scanEntry(l.db.QueryRow(ctx, entrySelect+` WHERE id = $1`, entryID))
}

// Entries lists account entries newest first. A non-positive limit returns all of them.
func (l *PostgresLedger) Entries(ctx context.Context, accountID string, limit int) ([]Entry, error) {
	if _, err := l.Account(ctx, accountID); err != nil {
		return nil, err
	}
	query := entrySelect + ` WHERE account_id = $1 ORDER BY created_at DESC, seq DESC`
	args := []any{accountID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Grant looks up the unlock grant for one target.
func (l *PostgresLedger) Grant(ctx context.Context, accountID, purpose, targetID string) (Grant, error) {
	return grantFor(ctx, l.db, accountID, purpose, targetID)
}

// Grants lists every unlock held by the account.
func (l *PostgresLedger) Grants(ctx context.Context, accountID string) ([]Grant, error) {
	rows, err := l.db.Query(ctx, `SELECT account_id, purpose, target_id, entry_id, granted_at
        FROM unlock_grants WHERE account_id = $1 ORDER BY granted_at`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.AccountID, &g.Purpose, &g.TargetID, &g.EntryID, &g.GrantedAt); err != nil {
			return nil, err
		}
		g.GrantedAt = g.GrantedAt.UTC()
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// CreateOrder stores a pending order and its pending purchase entry.
func (l *PostgresLedger) CreateOrder(ctx context.Context, order Order, in AppendInput) (Order, error) {
	in.Kind = KindPurchase
	if err := validateAppend(in); err != nil {
		return Order{}, err
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}

	var out Order
	err := l.inTx(ctx, func(tx pgx.Tx) error {
		entry, err := appendTx(ctx, tx, in)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		created := order
		created.AccountID = in.AccountID
		created.EntryID = entry.ID
		created.Status = OrderPending
		created.CreatedAt = now
		created.UpdatedAt = now
		_, err = tx.Exec(ctx, `INSERT INTO purchase_orders
            (id, account_id, coins, price, currency, gateway_order_id, payment_id, entry_id, status, reason, created_at, updated_at)
            VALUES ($1, $2, $3, $4::numeric, $5, $6, '', $7, $8, '', $9, $9)`,
			created.ID, created.AccountID, created.Coins, created.Price.String(), created.Currency,
			created.GatewayOrderID, created.EntryID, string(created.Status), now)
		out = created
		return err
	})
	return out, err
}

// Order fetches a purchase order.
func (l *PostgresLedger) Order(ctx context.Context, id string) (Order, error) {
	return scanOrder(l.db.QueryRow(ctx, orderSelect+` WHERE id = $1`, id))
}

// SettleOrder verifies a pending order and credits its entry in one transaction.
func (l *PostgresLedger) SettleOrder(ctx context.Context, id, paymentID string) (Order, int64, error) {
	var (
		out     Order
		balance int64
	)
	err := l.inTx(ctx, func(tx pgx.Tx) error {
		order, err := scanOrder(tx.QueryRow(ctx, orderSelect+` WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		out = order
		switch order.Status {
		case OrderVerified:
			balance, err = balanceTx(ctx, tx, order.AccountID)
			if err != nil {
				return err
			}
			return ErrOrderSettled
		case OrderFailed, OrderExpired:
			return ErrOrderNotPending
		}

		if _, err := completeTx(ctx, tx, order.EntryID); err != nil {
			return err
		}
		now := time.Now().UTC()
		if _, err := tx.Exec(ctx, `UPDATE purchase_orders SET status = $1, payment_id = $2, updated_at = $3 WHERE id = $4`,
			string(OrderVerified), paymentID, now, id); err != nil {
			return err
		}
		out.Status = OrderVerified
		out.PaymentID = paymentID
		out.UpdatedAt = now
		balance, err = balanceTx(ctx, tx, order.AccountID)
		return err
	})
	return out, balance, err
}

// FailOrder marks a pending order failed and fails its entry.
func (l *PostgresLedger) FailOrder(ctx context.Context, id, reason string) (Order, error) {
	var out Order
	err := l.inTx(ctx, func(tx pgx.Tx) error {
		order, err := closeOrderTx(ctx, tx, id, OrderFailed, reason)
		out = order
		return err
	})
	return out, err
}

// ExpireOrders closes pending orders created before cutoff. Rows locked by an
// in-flight verification are skipped and picked up by a later sweep.
func (l *PostgresLedger) ExpireOrders(ctx context.Context, cutoff time.Time) ([]Order, error) {
	var expired []Order
	err := l.inTx(ctx, func(tx pgx.Tx) error {
		expired = expired[:0]
		rows, err := tx.Query(ctx, `SELECT id FROM purchase_orders
            WHERE status = $1 AND created_at < $2
            ORDER BY created_at
            FOR UPDATE SKIP LOCKED`, string(OrderPending), cutoff.UTC())
		if err != nil {
			return err
		}
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, id := range ids {
			order, err := closeOrderTx(ctx, tx, id, OrderExpired, "payment window elapsed")
			if err != nil {
				return err
			}
			expired = append(expired, order)
		}
		return nil
	})
	return expired, err
}

func (l *PostgresLedger) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := l.runTx(ctx, fn)
		if err == nil || !retryable(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %v", ErrConcurrentModification, lastErr)
}

func (l *PostgresLedger) runTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// retryable reports serialization failures, deadlocks and unique violations
// raised by a racing writer; the next attempt observes the winner's row.
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "23505":
		return true
	default:
		return false
	}
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const entrySelect = `SELECT id, account_id, delta, kind, purpose, target_id, status, external_ref, reason, created_at, completed_at
        FROM ledger_entries`

const orderSelect = `SELECT id, account_id, coins, price::text, currency, gateway_order_id, payment_id, entry_id, status, reason, created_at, updated_at
        FROM purchase_orders`

func appendTx(ctx context.Context, tx pgx.Tx, in AppendInput) (Entry, error) {
	var (
		balance int64
		active  bool
	)
	if err := tx.QueryRow(ctx, `SELECT balance, active FROM accounts WHERE id = $1 FOR UPDATE`, in.AccountID).Scan(&balance, &active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrAccountNotFound
		}
		return Entry{}, err
	}
	if !active {
		return Entry{}, ErrAccountInactive
	}

	now := time.Now().UTC()
	entry := Entry{
		ID:          uuid.NewString(),
		AccountID:   in.AccountID,
		Delta:       in.Delta,
		Kind:        in.Kind,
		Purpose:     in.Purpose,
		TargetID:    in.TargetID,
		Status:      StatusPending,
		ExternalRef: in.ExternalRef,
		CreatedAt:   now,
	}

	if in.Kind == KindSpend {
		grant, err := grantFor(ctx, tx, in.AccountID, in.Purpose, in.TargetID)
		if err == nil {
			existing, err := scanEntry(tx.QueryRow(ctx, entrySelect+` WHERE id = $1`, grant.EntryID))
			if err != nil {
				return Entry{}, err
			}
			return existing, ErrAlreadyGranted
		}
		if !errors.Is(err, ErrGrantNotFound) {
			return Entry{}, err
		}
		if balance+in.Delta < 0 {
			return Entry{}, ErrInsufficientCoins
		}
		entry.Status = StatusCompleted
		entry.CompletedAt = now
	}

	if _, err := tx.Exec(ctx, `INSERT INTO ledger_entries
        (id, account_id, delta, kind, purpose, target_id, status, external_ref, reason, created_at, completed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '', $9, $10)`,
		entry.ID, entry.AccountID, entry.Delta, string(entry.Kind), entry.Purpose, entry.TargetID,
		string(entry.Status), entry.ExternalRef, entry.CreatedAt, nullableTime(entry.CompletedAt)); err != nil {
		return Entry{}, err
	}

	if entry.Status == StatusCompleted {
		if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance + $1 WHERE id = $2`, entry.Delta, entry.AccountID); err != nil {
			return Entry{}, err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO unlock_grants (account_id, purpose, target_id, entry_id, granted_at)
            VALUES ($1, $2, $3, $4, $5)`, entry.AccountID, entry.Purpose, entry.TargetID, entry.ID, now); err != nil {
			return Entry{}, err
		}
	}
	return entry, nil
}

func completeTx(ctx context.Context, tx pgx.Tx, entryID string) (Entry, error) {
	entry, err := scanEntry(tx.QueryRow(ctx, entrySelect+` WHERE id = $1 FOR UPDATE`, entryID))
	if err != nil {
		return Entry{}, err
	}
	switch entry.Status {
	case StatusCompleted:
		return entry, nil
	case StatusFailed:
		return entry, ErrEntryNotPending
	}

	balance, err := lockedBalance(ctx, tx, entry.AccountID)
	if err != nil {
		return Entry{}, err
	}
	if balance+entry.Delta < 0 {
		return Entry{}, ErrInsufficientCoins
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE ledger_entries SET status = $1, completed_at = $2 WHERE id = $3`,
		string(StatusCompleted), now, entry.ID); err != nil {
		return Entry{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance + $1 WHERE id = $2`, entry.Delta, entry.AccountID); err != nil {
		return Entry{}, err
	}
	entry.Status = StatusCompleted
	entry.CompletedAt = now
	return entry, nil
}

func failTx(ctx context.Context, tx pgx.Tx, entryID, reason string) (Entry, error) {
	entry, err := scanEntry(tx.QueryRow(ctx, entrySelect+` WHERE id = $1 FOR UPDATE`, entryID))
	if err != nil {
		return Entry{}, err
	}
	switch entry.Status {
	case StatusFailed:
		return entry, nil
	case StatusCompleted:
		return entry, ErrEntryNotPending
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE ledger_entries SET status = $1, reason = $2, completed_at = $3 WHERE id = $4`,
		string(StatusFailed), reason, now, entry.ID); err != nil {
		return Entry{}, err
	}
	entry.Status = StatusFailed
	entry.Reason = reason
	entry.CompletedAt = now
	return entry, nil
}

func closeOrderTx(ctx context.Context, tx pgx.Tx, id string, status OrderStatus, reason string) (Order, error) {
	order, err := scanOrder(tx.QueryRow(ctx, orderSelect+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Order{}, err
	}
	switch order.Status {
	case OrderVerified:
		return order, ErrOrderSettled
	case OrderFailed, OrderExpired:
		return order, nil
	}

	if _, err := failTx(ctx, tx, order.EntryID, reason); err != nil {
		return Order{}, err
	}
	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE purchase_orders SET status = $1, reason = $2, updated_at = $3 WHERE id = $4`,
		string(status), reason, now, id); err != nil {
		return Order{}, err
	}
	order.Status = status
	order.Reason = reason
	order.UpdatedAt = now
	return order, nil
}

func lockedBalance(ctx context.Context, tx pgx.Tx, accountID string) (int64, error) {
	var balance int64
	if err := tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return balance, nil
}

func balanceTx(ctx context.Context, tx pgx.Tx, accountID string) (int64, error) {
	var balance int64
	if err := tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return balance, nil
}

func grantFor(ctx context.Context, q queryer, accountID, purpose, targetID string) (Grant, error) {
	var g Grant
	err := q.QueryRow(ctx, `SELECT account_id, purpose, target_id, entry_id, granted_at
        FROM unlock_grants WHERE account_id = $1 AND purpose = $2 AND target_id = $3`,
		accountID, purpose, targetID).Scan(&g.AccountID, &g.Purpose, &g.TargetID, &g.EntryID, &g.GrantedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Grant{}, ErrGrantNotFound
		}
		return Grant{}, err
	}
	g.GrantedAt = g.GrantedAt.UTC()
	return g, nil
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		e           Entry
		kind        string
		status      string
		completedAt *time.Time
	)
	if err := row.Scan(&e.ID, &e.AccountID, &e.Delta, &kind, &e.Purpose, &e.TargetID, &status,
		&e.ExternalRef, &e.Reason, &e.CreatedAt, &completedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	e.Kind = Kind(kind)
	e.Status = Status(status)
	e.CreatedAt = e.CreatedAt.UTC()
	if completedAt != nil {
		e.CompletedAt = completedAt.UTC()
	}
	return e, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		price  string
		status string
	)
	if err := row.Scan(&o.ID, &o.AccountID, &o.Coins, &price, &o.Currency, &o.GatewayOrderID, &o.PaymentID,
		&o.EntryID, &status, &o.Reason, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	parsed, err := decimal.NewFromString(price)
	if err != nil {
		return Order{}, fmt.Errorf("parse order price: %w", err)
	}
	o.Price = parsed
	o.Status = OrderStatus(status)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return o, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

var _ Store = (*PostgresLedger)(nil)
