// Package repository is the pgx record store behind the automation jobs.
// Every query is scoped by an optional organization id; a nil tenant
// matches the legacy rows that have no organization.
package repository

import (
	"context"
	"fmt"

	"clinic_automation/internal/automation/dispatch"
	"clinic_automation/platform/apperr"
	"clinic_automation/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opListTenants = "clinic.repository.list_tenants"
	opListStaff   = "clinic.repository.list_staff"
)

// Repository implements the job stores on a pgx pool.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ready(op string) error {
	if r == nil || r.pool == nil {
		return apperr.Internal("clinic repository not configured").WithOp(op)
	}
	return nil
}

// Ping is used by the health endpoint.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.ready("clinic.repository.ping"); err != nil {
		return err
	}
	return r.pool.Ping(ctx)
}

// ListTenantIDs returns every organization that is not archived.
func (r *Repository) ListTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	if err := r.ready(opListTenants); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id FROM organizations WHERE archived_at IS NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, db.Classify(opListTenants, "list organizations failed", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, db.Classify(opListTenants, "scan organizations failed", err)
	}
	return ids, nil
}

// ListActiveStaff feeds the escalation roster.
func (r *Repository) ListActiveStaff(ctx context.Context, tenantID *uuid.UUID) ([]dispatch.StaffMember, error) {
	if err := r.ready(opListStaff); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, name, COALESCE(email, ''), COALESCE(phone, ''), role
		FROM staff_members
		WHERE organization_id IS NOT DISTINCT FROM $1 AND active
		ORDER BY name, id
	`, tenantID)
	if err != nil {
		return nil, db.Classify(opListStaff, "list staff failed", err)
	}
	defer rows.Close()

	staff := make([]dispatch.StaffMember, 0)
	for rows.Next() {
		var m dispatch.StaffMember
		if err := rows.Scan(&m.ID, &m.UserID, &m.Name, &m.Email, &m.Phone, &m.RawRole); err != nil {
			return nil, db.Classify(opListStaff, "scan staff failed", err)
		}
		staff = append(staff, m)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(opListStaff, "iterate staff failed", err)
	}
	return staff, nil
}

// exec runs a conditional write and reports whether it touched a row.
func (r *Repository) exec(ctx context.Context, op, query string, args ...any) (bool, error) {
	if err := r.ready(op); err != nil {
		return false, err
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, db.Classify(op, fmt.Sprintf("%s failed", op), err)
	}
	return tag.RowsAffected() > 0, nil
}
