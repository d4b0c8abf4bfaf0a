package inapp

import (
	"context"
	"time"

	"clinic_automation/internal/automation/dispatch"
	"clinic_automation/platform/apperr"
	"clinic_automation/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opRecordDelivery = "notification.deliveries.record"
	opPurgeDelivery  = "notification.deliveries.purge"
)

// DeliveryRepository persists dispatcher attempts.
type DeliveryRepository struct {
	pool *pgxpool.Pool
}

func NewDeliveryRepository(pool *pgxpool.Pool) *DeliveryRepository {
	return &DeliveryRepository{pool: pool}
}

func (r *DeliveryRepository) RecordDelivery(ctx context.Context, rec dispatch.DeliveryRecord) error {
	if r == nil || r.pool == nil {
		return apperr.Internal("delivery repository not configured").WithOp(opRecordDelivery)
	}

	var recipientID *uuid.UUID
	if rec.RecipientID != uuid.Nil {
		recipientID = &rec.RecipientID
	}
	var errText, relatedType *string
	var relatedID *uuid.UUID
	if rec.Error != "" {
		errText = &rec.Error
	}
	if rec.Related != nil {
		relatedType = &rec.Related.Type
		relatedID = &rec.Related.ID
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO notification_deliveries
		(organization_id, recipient_id, recipient_kind, channel, sent, error, related_type, related_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.TenantID, recipientID, string(rec.RecipientKind), string(rec.Channel), rec.Sent, errText, relatedType, relatedID)
	if err != nil {
		return db.Classify(opRecordDelivery, "record notification delivery failed", err)
	}
	return nil
}

// PurgeBefore deletes delivery rows created before cutoff.
func (r *DeliveryRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, apperr.Internal("delivery repository not configured").WithOp(opPurgeDelivery)
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM notification_deliveries WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, db.Classify(opPurgeDelivery, "purge notification deliveries failed", err)
	}
	return tag.RowsAffected(), nil
}

// Name identifies the table for retention runs.
func (r *DeliveryRepository) Name() string { return "notification_deliveries" }
