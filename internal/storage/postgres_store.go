package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const createConfirmationsTable = `CREATE TABLE IF NOT EXISTS booking_confirmations (
	uuid TEXT PRIMARY KEY,
	claimed_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(dsn string) (*PostgresLedger, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresLedger{db: db}, nil
}

func NewPostgresLedgerFromDB(db *sql.DB) *PostgresLedger { return &PostgresLedger{db: db} }

// Migrate creates the confirmations table when missing.
func (p *PostgresLedger) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createConfirmationsTable); err != nil {
		return fmt.Errorf("migrate booking_confirmations: %w", err)
	}
	return nil
}

func (p *PostgresLedger) Claim(ctx context.Context, uuid string) (bool, error) {
	res, err := p.db.ExecContext(ctx, `INSERT INTO booking_confirmations(uuid) VALUES($1) ON CONFLICT (uuid) DO NOTHING`, uuid)
	if err != nil {
		return false, fmt.Errorf("claim confirmation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim confirmation: %w", err)
	}
	return n == 1, nil
}

func (p *PostgresLedger) Release(ctx context.Context, uuid string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM booking_confirmations WHERE uuid = $1`, uuid); err != nil {
		return fmt.Errorf("release confirmation: %w", err)
	}
	return nil
}

func (p *PostgresLedger) Close() error { return p.db.Close() }
