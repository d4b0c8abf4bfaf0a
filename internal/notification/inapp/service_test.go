package inapp

import (
	"context"
	"errors"
	"testing"
	"time"

	"clinic_automation/internal/automation/dispatch"
	"clinic_automation/platform/logger"

	"github.com/google/uuid"
)

type testCreator struct {
	got CreateParams
	err error
}

func (c *testCreator) Create(_ context.Context, p CreateParams) (Notification, error) {
	c.got = p
	return Notification{ID: uuid.New(), UserID: p.UserID}, c.err
}

func TestNotifyMapsMessage(t *testing.T) {
	repo := &testCreator{}
	svc := NewService(repo, logger.Nop())
	tenant := uuid.New()
	user := uuid.New()
	resource := uuid.New()

	err := svc.Notify(context.Background(), dispatch.InAppMessage{
		TenantID:     &tenant,
		UserID:       user,
		Title:        " Lab results ready ",
		Content:      "Your HbA1c result is available.",
		Category:     "info",
		ResourceID:   &resource,
		ResourceType: "lab_result",
		ActionURL:    "https://portal.example.com/labs",
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if repo.got.OrganizationID == nil || *repo.got.OrganizationID != tenant || repo.got.UserID != user {
		t.Fatalf("tenant/user not mapped: %+v", repo.got)
	}
	if repo.got.Title != "Lab results ready" {
		t.Fatalf("title not trimmed: %q", repo.got.Title)
	}
	if repo.got.ResourceType == nil || *repo.got.ResourceType != "lab_result" || repo.got.ActionURL == nil {
		t.Fatalf("optional fields not mapped: %+v", repo.got)
	}
}

func TestNotifyPropagatesError(t *testing.T) {
	svc := NewService(&testCreator{err: errors.New("insert failed")}, logger.Nop())
	if err := svc.Notify(context.Background(), dispatch.InAppMessage{UserID: uuid.New(), Title: "t", Content: "c"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRepositoryGuards(t *testing.T) {
	var repo *Repository
	if _, err := repo.Create(context.Background(), CreateParams{}); err == nil {
		t.Fatal("nil repository should refuse to create")
	}
	if _, err := NewRepository(nil).PurgeBefore(context.Background(), time.Now()); err == nil {
		t.Fatal("repository without pool should refuse to purge")
	}
}
