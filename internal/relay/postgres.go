package relay

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/bankledger/internal/amount"
)

// PostgresStore persists relay records in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed relay store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const relayColumns = `id, origin, counterparty, account, amount::text, status, reason, created_at, updated_at`

// Create inserts a relay record.
func (s *PostgresStore) Create(ctx context.Context, req Request) error {
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `INSERT INTO relays (id, origin, counterparty, account, amount, status, reason, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9)`,
		id, req.Origin, req.Counterparty, req.Account, req.Amount.String(), string(req.Status), req.Reason,
		req.CreatedAt.UTC(), req.UpdatedAt.UTC())
	return err
}

// Get fetches a relay by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (Request, error) {
	relayID, err := uuid.Parse(id)
	if err != nil {
		return Request{}, ErrNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+relayColumns+` FROM relays WHERE id = $1`, relayID)
	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrNotFound
	}
	return req, err
}

// Resolve moves a pending relay to its final status.
func (s *PostgresStore) Resolve(ctx context.Context, id string, status Status, reason string) (Request, error) {
	relayID, err := uuid.Parse(id)
	if err != nil {
		return Request{}, ErrNotFound
	}
	row := s.db.QueryRow(ctx, `UPDATE relays SET status = $2, reason = $3, updated_at = now()
        WHERE id = $1 AND status = $4 RETURNING `+relayColumns,
		relayID, string(status), reason, string(StatusPending))
	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		current, getErr := s.Get(ctx, id)
		if getErr != nil {
			return Request{}, getErr
		}
		return current, ErrAlreadyResolved
	}
	return req, err
}

func scanRequest(row pgx.Row) (Request, error) {
	var (
		req       Request
		id        uuid.UUID
		rawAmount string
		status    string
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&id, &req.Origin, &req.Counterparty, &req.Account, &rawAmount, &status, &req.Reason, &createdAt, &updatedAt); err != nil {
		return Request{}, err
	}
	value, err := amount.Parse(rawAmount)
	if err != nil {
		return Request{}, err
	}
	req.ID = id.String()
	req.Amount = value
	req.Status = Status(status)
	req.CreatedAt = createdAt.UTC()
	req.UpdatedAt = updatedAt.UTC()
	return req, nil
}
