package inapp

import (
	"context"
	"strings"

	"clinic_automation/internal/automation/dispatch"
	"clinic_automation/platform/apperr"
	"clinic_automation/platform/logger"
)

// Creator is the persistence the service needs.
type Creator interface {
	Create(ctx context.Context, p CreateParams) (Notification, error)
}

// Service is the in-app channel of the dispatcher.
type Service struct {
	repo Creator
	log  *logger.Logger
}

func NewService(repo Creator, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Notify persists the notification for the recipient's portal account.
func (s *Service) Notify(ctx context.Context, msg dispatch.InAppMessage) error {
	if s == nil || s.repo == nil {
		return apperr.Internal("in-app notification service not configured")
	}

	params := CreateParams{
		OrganizationID: msg.TenantID,
		UserID:         msg.UserID,
		Title:          strings.TrimSpace(msg.Title),
		Content:        strings.TrimSpace(msg.Content),
		ResourceID:     msg.ResourceID,
		Category:       msg.Category,
	}
	if msg.ResourceType != "" {
		params.ResourceType = &msg.ResourceType
	}
	if msg.ActionURL != "" {
		params.ActionURL = &msg.ActionURL
	}

	if _, err := s.repo.Create(ctx, params); err != nil {
		if s.log != nil {
			s.log.Error("failed to persist in-app notification", "error", err, "userId", msg.UserID)
		}
		return err
	}
	return nil
}
