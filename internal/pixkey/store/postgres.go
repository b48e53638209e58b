// Package store persists Pix keys. The live-key uniqueness rule (at most
// one non-terminal key per value and type) is enforced by a partial unique
// index, not application logic, so concurrent creates race safely.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"pixcore/internal/lifecycle"
	"pixcore/internal/pixkey/models"
	dErrors "pixcore/pkg/domain-errors"
	"pixcore/pkg/platform/postgres"
)

const kind = "pix_key"

// Schema is applied by migrations and by integration tests.
const Schema = `
CREATE TABLE IF NOT EXISTS pix_keys (
	id                 TEXT PRIMARY KEY,
	value              TEXT NOT NULL,
	key_type           TEXT NOT NULL,
	owner_id           TEXT NOT NULL,
	state              TEXT NOT NULL,
	reason             TEXT NOT NULL DEFAULT '',
	claim_kind         TEXT,
	claim_inbound      BOOLEAN,
	claim_requested_at TIMESTAMPTZ,
	claim_expires_at   TIMESTAMPTZ,
	deleted_at         TIMESTAMPTZ,
	version            BIGINT NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS pix_keys_live_value_idx
	ON pix_keys (value, key_type)
	WHERE state NOT IN ('CANCELED', 'DELETED');

CREATE INDEX IF NOT EXISTS pix_keys_state_updated_idx
	ON pix_keys (state, updated_at);
`

// Postgres is the PostgreSQL-backed key repository.
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

const keyColumns = `id, value, key_type, owner_id, state, reason,
	claim_kind, claim_inbound, claim_requested_at, claim_expires_at,
	deleted_at, version, created_at, updated_at`

func (p *Postgres) GetByID(ctx context.Context, id string) (*models.Key, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+keyColumns+` FROM pix_keys WHERE id = $1`, id)
	k, err := scanKey(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "%s %s not found", kind, id)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load pix key")
	}
	return k, nil
}

func (p *Postgres) Create(ctx context.Context, k *models.Key) (*models.Key, error) {
	stored := k.Clone()
	now := p.clock()
	stored.Version = 1
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO pix_keys (`+keyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		keyArgs(stored)...)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, dErrors.Newf(dErrors.CodeConflict,
				"%s %s: a live key already exists for this value", kind, stored.ID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "insert pix key")
	}
	return stored, nil
}

// Update writes k only if its version matches the stored row, bumping the
// version. Zero affected rows means either a stale version or a missing row.
func (p *Postgres) Update(ctx context.Context, k *models.Key) (*models.Key, error) {
	stored := k.Clone()
	readVersion := stored.Version
	stored.Version++
	stored.UpdatedAt = p.clock()

	res, err := p.db.ExecContext(ctx, `
		UPDATE pix_keys SET
			value = $2, key_type = $3, owner_id = $4, state = $5, reason = $6,
			claim_kind = $7, claim_inbound = $8, claim_requested_at = $9,
			claim_expires_at = $10, deleted_at = $11, version = $12,
			created_at = $13, updated_at = $14
		WHERE id = $1 AND version = $15`,
		append(keyArgs(stored), readVersion)...)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, dErrors.Newf(dErrors.CodeConflict,
				"%s %s: a live key already exists for this value", kind, stored.ID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update pix key")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update pix key")
	}
	if affected == 0 {
		return nil, staleOrMissing(ctx, p.db, "pix_keys", kind, stored.ID, readVersion)
	}
	return stored, nil
}

func (p *Postgres) ListByStateOlderThan(ctx context.Context, states []lifecycle.State, cutoff time.Time) ([]*models.Key, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+keyColumns+` FROM pix_keys
		WHERE state = ANY($1) AND updated_at < $2
		ORDER BY updated_at`,
		pq.Array(stateStrings(states)), cutoff)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list pix keys")
	}
	defer rows.Close()

	var out []*models.Key
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "scan pix key")
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list pix keys")
	}
	return out, nil
}

func keyArgs(k *models.Key) []any {
	var claimKind sql.NullString
	var claimInbound sql.NullBool
	var claimRequestedAt, claimExpiresAt sql.NullTime
	if k.Claim != nil {
		claimKind = sql.NullString{String: string(k.Claim.Kind), Valid: true}
		claimInbound = sql.NullBool{Bool: k.Claim.Inbound, Valid: true}
		claimRequestedAt = sql.NullTime{Time: k.Claim.RequestedAt, Valid: !k.Claim.RequestedAt.IsZero()}
		claimExpiresAt = sql.NullTime{Time: k.Claim.ExpiresAt, Valid: !k.Claim.ExpiresAt.IsZero()}
	}
	var deletedAt sql.NullTime
	if k.DeletedAt != nil {
		deletedAt = sql.NullTime{Time: *k.DeletedAt, Valid: true}
	}
	return []any{
		k.ID, k.Value, string(k.Type), k.OwnerID, string(k.State), k.Reason,
		claimKind, claimInbound, claimRequestedAt, claimExpiresAt,
		deletedAt, k.Version, k.CreatedAt, k.UpdatedAt,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKey(row rowScanner) (*models.Key, error) {
	var k models.Key
	var keyType, state string
	var claimKind sql.NullString
	var claimInbound sql.NullBool
	var claimRequestedAt, claimExpiresAt, deletedAt sql.NullTime

	err := row.Scan(
		&k.ID, &k.Value, &keyType, &k.OwnerID, &state, &k.Reason,
		&claimKind, &claimInbound, &claimRequestedAt, &claimExpiresAt,
		&deletedAt, &k.Version, &k.CreatedAt, &k.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	k.Type = models.KeyType(keyType)
	k.State = lifecycle.State(state)
	if claimKind.Valid {
		k.Claim = &models.Claim{
			Kind:    models.ClaimKind(claimKind.String),
			Inbound: claimInbound.Bool,
		}
		if claimRequestedAt.Valid {
			k.Claim.RequestedAt = claimRequestedAt.Time
		}
		if claimExpiresAt.Valid {
			k.Claim.ExpiresAt = claimExpiresAt.Time
		}
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		k.DeletedAt = &t
	}
	return &k, nil
}

func stateStrings(states []lifecycle.State) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}

// staleOrMissing disambiguates a zero-row version-checked update.
func staleOrMissing(ctx context.Context, db *sql.DB, table, kind, id string, version int64) error {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "check row existence")
	}
	if !exists {
		return dErrors.Newf(dErrors.CodeNotFound, "%s %s not found", kind, id)
	}
	return dErrors.Newf(dErrors.CodeConflict, "%s %s: version %d is stale", kind, id, version)
}
