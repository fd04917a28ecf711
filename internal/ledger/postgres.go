package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/bankledger/internal/amount"
)

// PostgresStore persists one ledger's balance table in PostgreSQL. Several
// ledgers share the tables, separated by name.
type PostgresStore struct {
	db     *pgxpool.Pool
	ledger string
}

// NewPostgresStore constructs a Postgres-backed balance table for the named ledger.
func NewPostgresStore(db *pgxpool.Pool, ledgerName string) *PostgresStore {
	return &PostgresStore{db: db, ledger: ledgerName}
}

// Balance returns the stored amount for key, or zero when no entry exists.
func (s *PostgresStore) Balance(ctx context.Context, key Key) (amount.Amount, error) {
	const query = `SELECT amount::text FROM balances
        WHERE ledger = $1 AND counterparty = $2 AND account = $3`
	var raw string
	if err := s.db.QueryRow(ctx, query, s.ledger, key.Counterparty, key.Account).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return amount.Zero(), nil
		}
		return amount.Amount{}, err
	}
	return amount.Parse(raw)
}

// Credit adds value to the entry for key, creating it when absent.
func (s *PostgresStore) Credit(ctx context.Context, key Key, value amount.Amount) (amount.Amount, error) {
	if err := key.validate(); err != nil {
		return amount.Amount{}, err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return amount.Amount{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	current, err := s.lockEntry(ctx, tx, key)
	if err != nil {
		return amount.Amount{}, err
	}

	next, err := current.Add(value)
	if err != nil {
		return amount.Amount{}, err
	}

	if err := s.writeEntry(ctx, tx, key, next); err != nil {
		return amount.Amount{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return amount.Amount{}, err
	}
	return next, nil
}

// Debit subtracts value from the entry for key. The row stays locked between
// the balance check and the write so the check cannot go stale.
func (s *PostgresStore) Debit(ctx context.Context, key Key, value amount.Amount) (amount.Amount, error) {
	if err := key.validate(); err != nil {
		return amount.Amount{}, err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return amount.Amount{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	current, err := s.lockEntry(ctx, tx, key)
	if err != nil {
		return amount.Amount{}, err
	}

	next, err := current.Sub(value)
	if err != nil {
		return amount.Amount{}, &InsufficientBalanceError{Key: key, Balance: current, Requested: value}
	}

	if err := s.writeEntry(ctx, tx, key, next); err != nil {
		return amount.Amount{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return amount.Amount{}, err
	}
	return next, nil
}

// Register records a zero-value placeholder for account.
func (s *PostgresStore) Register(ctx context.Context, account string) error {
	if account == "" {
		return ErrInvalidKey
	}
	_, err := s.db.Exec(ctx, `INSERT INTO ledger_accounts (ledger, account) VALUES ($1, $2)
        ON CONFLICT (ledger, account) DO NOTHING`, s.ledger, account)
	return err
}

// IsRegistered reports whether account was registered on this ledger.
func (s *PostgresStore) IsRegistered(ctx context.Context, account string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ledger_accounts WHERE ledger = $1 AND account = $2)`,
		s.ledger, account).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) lockEntry(ctx context.Context, tx pgx.Tx, key Key) (amount.Amount, error) {
	if _, err := tx.Exec(ctx, `INSERT INTO balances (ledger, counterparty, account, amount) VALUES ($1, $2, $3, 0)
        ON CONFLICT (ledger, counterparty, account) DO NOTHING`, s.ledger, key.Counterparty, key.Account); err != nil {
		return amount.Amount{}, fmt.Errorf("ensure balance entry %s: %w", key, err)
	}

	const query = `SELECT amount::text FROM balances
        WHERE ledger = $1 AND counterparty = $2 AND account = $3 FOR UPDATE`
	var raw string
	if err := tx.QueryRow(ctx, query, s.ledger, key.Counterparty, key.Account).Scan(&raw); err != nil {
		return amount.Amount{}, fmt.Errorf("lock balance entry %s: %w", key, err)
	}
	return amount.Parse(raw)
}

func (s *PostgresStore) writeEntry(ctx context.Context, tx pgx.Tx, key Key, value amount.Amount) error {
	_, err := tx.Exec(ctx, `UPDATE balances SET amount = $4::numeric, updated_at = now()
        WHERE ledger = $1 AND counterparty = $2 AND account = $3`,
		s.ledger, key.Counterparty, key.Account, value.String())
	return err
}
