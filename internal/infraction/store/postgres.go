package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"pixcore/internal/infraction/models"
	"pixcore/internal/lifecycle"
	dErrors "pixcore/pkg/domain-errors"
)

// Schema is applied by migrations and by integration tests.
const Schema = `
CREATE TABLE IF NOT EXISTS infractions (
	id               TEXT PRIMARY KEY,
	operation_ref    TEXT NOT NULL,
	issue_ref        TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	analysis_result  TEXT NOT NULL DEFAULT '',
	analysis_details TEXT NOT NULL DEFAULT '',
	reason           TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL,
	version          BIGINT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS infractions_state_updated_idx
	ON infractions (state, updated_at);
`

// Postgres is the PostgreSQL-backed infraction repository.
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

const infractionColumns = `id, operation_ref, issue_ref, status,
	analysis_result, analysis_details, reason, state,
	version, created_at, updated_at`

func (p *Postgres) GetByID(ctx context.Context, id string) (*models.Infraction, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+infractionColumns+` FROM infractions WHERE id = $1`, id)
	inf, err := scanInfraction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "%s %s not found", kind, id)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load infraction")
	}
	return inf, nil
}

func (p *Postgres) Create(ctx context.Context, inf *models.Infraction) (*models.Infraction, error) {
	stored := inf.Clone()
	now := p.clock()
	stored.Version = 1
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO infractions (`+infractionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		infractionArgs(stored)...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "insert infraction")
	}
	return stored, nil
}

func (p *Postgres) Update(ctx context.Context, inf *models.Infraction) (*models.Infraction, error) {
	stored := inf.Clone()
	readVersion := stored.Version
	stored.Version++
	stored.UpdatedAt = p.clock()

	res, err := p.db.ExecContext(ctx, `
		UPDATE infractions SET
			operation_ref = $2, issue_ref = $3, status = $4,
			analysis_result = $5, analysis_details = $6, reason = $7,
			state = $8, version = $9, created_at = $10, updated_at = $11
		WHERE id = $1 AND version = $12`,
		append(infractionArgs(stored), readVersion)...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update infraction")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update infraction")
	}
	if affected == 0 {
		return nil, staleOrMissing(ctx, p.db, stored.ID, readVersion)
	}
	return stored, nil
}

func (p *Postgres) ListByStateOlderThan(ctx context.Context, states []lifecycle.State, cutoff time.Time) ([]*models.Infraction, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+infractionColumns+` FROM infractions
		WHERE state = ANY($1) AND updated_at < $2
		ORDER BY updated_at`,
		pq.Array(stateStrings(states)), cutoff)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list infractions")
	}
	defer rows.Close()

	var out []*models.Infraction
	for rows.Next() {
		inf, err := scanInfraction(rows)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "scan infraction")
		}
		out = append(out, inf)
	}
	if err := rows.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list infractions")
	}
	return out, nil
}

func infractionArgs(inf *models.Infraction) []any {
	return []any{
		inf.ID, inf.OperationRef, inf.IssueRef, string(inf.Status),
		inf.AnalysisResult, inf.AnalysisDetails, inf.Reason, string(inf.State),
		inf.Version, inf.CreatedAt, inf.UpdatedAt,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInfraction(row rowScanner) (*models.Infraction, error) {
	var inf models.Infraction
	var status, state string
	err := row.Scan(
		&inf.ID, &inf.OperationRef, &inf.IssueRef, &status,
		&inf.AnalysisResult, &inf.AnalysisDetails, &inf.Reason, &state,
		&inf.Version, &inf.CreatedAt, &inf.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inf.Status = models.Status(status)
	inf.State = lifecycle.State(state)
	return &inf, nil
}

func stateStrings(states []lifecycle.State) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}

func staleOrMissing(ctx context.Context, db *sql.DB, id string, version int64) error {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM infractions WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "check row existence")
	}
	if !exists {
		return dErrors.Newf(dErrors.CodeNotFound, "%s %s not found", kind, id)
	}
	return dErrors.Newf(dErrors.CodeConflict, "%s %s: version %d is stale", kind, id, version)
}
