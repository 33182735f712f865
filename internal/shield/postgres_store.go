package shield

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore persists frozen transactions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store backed by the given database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the frozen_transactions table if it does not exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS frozen_transactions (
			transaction_id  TEXT PRIMARY KEY,
			amount          DOUBLE PRECISION NOT NULL,
			risk_score      INTEGER NOT NULL,
			frozen_at       TIMESTAMPTZ NOT NULL,
			status          TEXT NOT NULL,
			reasons         TEXT[] NOT NULL DEFAULT '{}',
			guardian_action TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_frozen_transactions_status
			ON frozen_transactions(status, frozen_at);
	`)
	if err != nil {
		return fmt.Errorf("migrate frozen_transactions: %w", err)
	}
	return nil
}

func (p *PostgresStore) Put(ctx context.Context, txn *FrozenTransaction) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO frozen_transactions
			(transaction_id, amount, risk_score, frozen_at, status, reasons, guardian_action)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (transaction_id) DO UPDATE SET
			amount = EXCLUDED.amount,
			risk_score = EXCLUDED.risk_score,
			frozen_at = EXCLUDED.frozen_at,
			status = EXCLUDED.status,
			reasons = EXCLUDED.reasons,
			guardian_action = EXCLUDED.guardian_action
	`, txn.TransactionID, txn.Amount, txn.RiskScore, txn.FrozenAt, txn.Status,
		pq.Array(txn.Reasons), txn.GuardianAction)
	if err != nil {
		return fmt.Errorf("insert frozen transaction: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, transactionID string) (*FrozenTransaction, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT transaction_id, amount, risk_score, frozen_at, status, reasons, guardian_action
		FROM frozen_transactions
		WHERE transaction_id = $1
	`, transactionID)
	return scanTxn(row)
}

func (p *PostgresStore) Update(ctx context.Context, txn *FrozenTransaction) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE frozen_transactions
		SET status = $2, guardian_action = $3
		WHERE transaction_id = $1
	`, txn.TransactionID, txn.Status, txn.GuardianAction)
	if err != nil {
		return fmt.Errorf("update frozen transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (p *PostgresStore) ListFrozenBefore(ctx context.Context, frozenBefore time.Time, limit int) ([]*FrozenTransaction, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT transaction_id, amount, risk_score, frozen_at, status, reasons, guardian_action
		FROM frozen_transactions
		WHERE status = $1 AND frozen_at < $2
		ORDER BY frozen_at
		LIMIT $3
	`, StatusFrozen, frozenBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list frozen transactions: %w", err)
	}
	defer rows.Close()

	var out []*FrozenTransaction
	for rows.Next() {
		txn, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTxn(row rowScanner) (*FrozenTransaction, error) {
	var txn FrozenTransaction
	var reasons pq.StringArray
	err := row.Scan(&txn.TransactionID, &txn.Amount, &txn.RiskScore, &txn.FrozenAt,
		&txn.Status, &reasons, &txn.GuardianAction)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan frozen transaction: %w", err)
	}
	txn.Reasons = reasons
	return &txn, nil
}
