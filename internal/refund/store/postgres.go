package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"pixcore/internal/lifecycle"
	"pixcore/internal/refund/models"
	dErrors "pixcore/pkg/domain-errors"
	"pixcore/pkg/platform/postgres"
)

const kind = "refund"

// Schema is applied by migrations and by integration tests.
const Schema = `
CREATE TABLE IF NOT EXISTS refunds (
	id               TEXT PRIMARY KEY,
	solicitation_ref TEXT NOT NULL,
	status           TEXT NOT NULL,
	amount_cents     BIGINT NOT NULL,
	rejection_reason TEXT NOT NULL DEFAULT '',
	devolution_id    TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL,
	version          BIGINT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS devolutions (
	id           TEXT PRIMARY KEY,
	refund_id    TEXT NOT NULL REFERENCES refunds (id),
	amount_cents BIGINT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS refunds_state_updated_idx
	ON refunds (state, updated_at);
`

// Postgres is the PostgreSQL-backed refund repository.
type Postgres struct {
	db    *sql.DB
	clock func() time.Time
}

type PostgresOption func(*Postgres)

func WithPostgresClock(clock func() time.Time) PostgresOption {
	return func(p *Postgres) { p.clock = clock }
}

func NewPostgres(db *sql.DB, opts ...PostgresOption) *Postgres {
	p := &Postgres{db: db, clock: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

const refundColumns = `id, solicitation_ref, status, amount_cents,
	rejection_reason, devolution_id, state, version, created_at, updated_at`

func (p *Postgres) GetByID(ctx context.Context, id string) (*models.Refund, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+refundColumns+` FROM refunds WHERE id = $1`, id)
	r, err := scanRefund(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "%s %s not found", kind, id)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load refund")
	}
	return r, nil
}

func (p *Postgres) Create(ctx context.Context, r *models.Refund) (*models.Refund, error) {
	stored := r.Clone()
	now := p.clock()
	stored.Version = 1
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO refunds (`+refundColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		refundArgs(stored)...)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "%s %s already exists", kind, stored.ID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "insert refund")
	}
	return stored, nil
}

func (p *Postgres) Update(ctx context.Context, r *models.Refund) (*models.Refund, error) {
	stored := r.Clone()
	readVersion := stored.Version
	stored.Version++
	stored.UpdatedAt = p.clock()

	res, err := p.db.ExecContext(ctx, updateRefundQuery,
		append(refundArgs(stored), readVersion)...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update refund")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update refund")
	}
	if affected == 0 {
		return nil, p.staleOrMissing(ctx, stored.ID, readVersion)
	}
	return stored, nil
}

// CloseWithDevolution commits the refund transition and the devolution row
// in one transaction. The version check applies inside the transaction, so
// a concurrent writer rolls the whole thing back.
func (p *Postgres) CloseWithDevolution(ctx context.Context, r *models.Refund, d *models.Devolution) (*models.Refund, error) {
	if d == nil || d.ID == "" {
		return nil, dErrors.New(dErrors.CodeInternal, "refund close requires a devolution")
	}

	stored := r.Clone()
	readVersion := stored.Version
	stored.Version++
	stored.UpdatedAt = p.clock()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "begin refund close")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, updateRefundQuery,
		append(refundArgs(stored), readVersion)...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update refund")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update refund")
	}
	if affected == 0 {
		return nil, p.staleOrMissing(ctx, stored.ID, readVersion)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO devolutions (id, refund_id, amount_cents, created_at)
		VALUES ($1, $2, $3, $4)`,
		d.ID, d.RefundID, d.Amount, d.CreatedAt)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "insert devolution")
	}

	if err := tx.Commit(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "commit refund close")
	}
	return stored, nil
}

// GetDevolution looks up a devolution by id.
func (p *Postgres) GetDevolution(ctx context.Context, id string) (*models.Devolution, error) {
	var d models.Devolution
	err := p.db.QueryRowContext(ctx, `
		SELECT id, refund_id, amount_cents, created_at
		FROM devolutions WHERE id = $1`, id).
		Scan(&d.ID, &d.RefundID, &d.Amount, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "devolution %s not found", id)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load devolution")
	}
	return &d, nil
}

func (p *Postgres) ListByStateOlderThan(ctx context.Context, states []lifecycle.State, cutoff time.Time) ([]*models.Refund, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+refundColumns+` FROM refunds
		WHERE state = ANY($1) AND updated_at < $2
		ORDER BY updated_at`,
		pq.Array(stateStrings(states)), cutoff)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list refunds")
	}
	defer rows.Close()

	var out []*models.Refund
	for rows.Next() {
		r, err := scanRefund(rows)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "scan refund")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list refunds")
	}
	return out, nil
}

const updateRefundQuery = `
	UPDATE refunds SET
		solicitation_ref = $2, status = $3, amount_cents = $4,
		rejection_reason = $5, devolution_id = $6, state = $7,
		version = $8, created_at = $9, updated_at = $10
	WHERE id = $1 AND version = $11`

func refundArgs(r *models.Refund) []any {
	return []any{
		r.ID, r.SolicitationRef, string(r.Status), r.Amount,
		r.RejectionReason, r.DevolutionID, string(r.State),
		r.Version, r.CreatedAt, r.UpdatedAt,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRefund(row rowScanner) (*models.Refund, error) {
	var r models.Refund
	var status, state string
	err := row.Scan(
		&r.ID, &r.SolicitationRef, &status, &r.Amount,
		&r.RejectionReason, &r.DevolutionID, &state,
		&r.Version, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Status = models.Status(status)
	r.State = lifecycle.State(state)
	return &r, nil
}

func stateStrings(states []lifecycle.State) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}

func (p *Postgres) staleOrMissing(ctx context.Context, id string, version int64) error {
	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM refunds WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "check row existence")
	}
	if !exists {
		return dErrors.Newf(dErrors.CodeNotFound, "%s %s not found", kind, id)
	}
	return dErrors.Newf(dErrors.CodeConflict, "%s %s: version %d is stale", kind, id, version)
}
