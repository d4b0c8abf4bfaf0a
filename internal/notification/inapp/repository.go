// Package inapp stores in-app notifications for portal users and the audit
// trail of every notification delivery attempt.
package inapp

import (
	"context"
	"time"

	"clinic_automation/platform/apperr"
	"clinic_automation/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opCreate = "notification.inapp.repository.create"
	opPurge  = "notification.inapp.repository.purge"

	errRepoNotConfigured = "in-app notification repository not configured"
)

type Notification struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"userId"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	ResourceID   *uuid.UUID `json:"resourceId,omitempty"`
	ResourceType *string    `json:"resourceType,omitempty"`
	Category     string     `json:"category"`
	ActionURL    *string    `json:"actionUrl,omitempty"`
	IsRead       bool       `json:"isRead"`
	CreatedAt    time.Time  `json:"createdAt"`
}

type CreateParams struct {
	OrganizationID *uuid.UUID
	UserID         uuid.UUID
	Title          string
	Content        string
	ResourceID     *uuid.UUID
	ResourceType   *string
	Category       string
	ActionURL      *string
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (Notification, error) {
	if r == nil || r.pool == nil {
		return Notification{}, apperr.Internal(errRepoNotConfigured).WithOp(opCreate)
	}
	if p.UserID == uuid.Nil {
		return Notification{}, apperr.Validation("userId is required").WithOp(opCreate)
	}
	if p.Title == "" || p.Content == "" {
		return Notification{}, apperr.Validation("title and content are required").WithOp(opCreate)
	}

	category := p.Category
	if category == "" {
		category = "info"
	}

	var n Notification
	err := r.pool.QueryRow(ctx, `
		INSERT INTO in_app_notifications
		(organization_id, user_id, title, content, resource_id, resource_type, category, action_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, user_id, title, content, resource_id, resource_type, category, action_url, is_read, created_at
	`, p.OrganizationID, p.UserID, p.Title, p.Content, p.ResourceID, p.ResourceType, category, p.ActionURL).Scan(
		&n.ID, &n.UserID, &n.Title, &n.Content, &n.ResourceID, &n.ResourceType, &n.Category, &n.ActionURL, &n.IsRead, &n.CreatedAt,
	)
	if err != nil {
		return Notification{}, db.Classify(opCreate, "create in-app notification failed", err)
	}

	return n, nil
}

// PurgeBefore deletes notifications created before cutoff.
func (r *Repository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, apperr.Internal(errRepoNotConfigured).WithOp(opPurge)
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM in_app_notifications WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, db.Classify(opPurge, "purge in-app notifications failed", err)
	}
	return tag.RowsAffected(), nil
}

// Name identifies the table for retention runs.
func (r *Repository) Name() string { return "in_app_notifications" }
