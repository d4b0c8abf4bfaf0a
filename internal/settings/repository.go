// Package settings answers "is this automation enabled for this tenant",
// backed by the automation_settings table with a Redis read-through cache.
package settings

import (
	"context"
	"errors"

	"clinic_automation/platform/apperr"
	"clinic_automation/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opLookup = "settings.repository.lookup"
	opSet    = "settings.repository.set"
)

// Repository reads and writes automation flags.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Lookup returns the most specific flag: the tenant row, then the platform
// row (organization_id NULL). found is false when neither exists.
func (r *Repository) Lookup(ctx context.Context, tenantID *uuid.UUID, key string) (enabled, found bool, err error) {
	if r == nil || r.pool == nil {
		return false, false, apperr.Internal("settings repository not configured").WithOp(opLookup)
	}

	err = r.pool.QueryRow(ctx, `
		SELECT enabled
		FROM automation_settings
		WHERE automation_key = $2
		  AND (organization_id = $1 OR organization_id IS NULL)
		ORDER BY organization_id NULLS LAST
		LIMIT 1
	`, tenantID, key).Scan(&enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, db.Classify(opLookup, "look up automation setting failed", err)
	}
	return enabled, true, nil
}

// Set upserts a flag for the tenant, or for the platform when tenantID is nil.
func (r *Repository) Set(ctx context.Context, tenantID *uuid.UUID, key string, enabled bool) error {
	if r == nil || r.pool == nil {
		return apperr.Internal("settings repository not configured").WithOp(opSet)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO automation_settings (organization_id, automation_key, enabled, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (COALESCE(organization_id, '00000000-0000-0000-0000-000000000000'::uuid), automation_key)
		DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = now()
	`, tenantID, key, enabled)
	if err != nil {
		return db.Classify(opSet, "save automation setting failed", err)
	}
	return nil
}
