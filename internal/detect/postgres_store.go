package detect

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed analysis store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the analyses table if it doesn't exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS analyses (
			id            VARCHAR(36) PRIMARY KEY,
			source        VARCHAR(20) NOT NULL,
			risk_score    INTEGER NOT NULL,
			threat_level  VARCHAR(10) NOT NULL,
			scam_type     TEXT NOT NULL,
			triggers      TEXT[] NOT NULL DEFAULT '{}',
			reason        TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at DESC);
	`)
	return err
}

func (p *PostgresStore) Record(ctx context.Context, rec *AnalysisRecord) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO analyses (id, source, risk_score, threat_level, scam_type, triggers, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.Source, rec.RiskScore, rec.ThreatLevel, rec.ScamType, pq.Array(rec.Triggers), rec.Reason, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

func (p *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*AnalysisRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, source, risk_score, threat_level, scam_type, triggers, reason, created_at
		FROM analyses
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var records []*AnalysisRecord
	for rows.Next() {
		rec := &AnalysisRecord{}
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.RiskScore, &rec.ThreatLevel,
			&rec.ScamType, pq.Array(&rec.Triggers), &rec.Reason, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
