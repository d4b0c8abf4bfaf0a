package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"clinic_automation/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{name: "no rows", err: fmt.Errorf("scan: %w", pgx.ErrNoRows), want: apperr.KindNotFound},
		{name: "server error", err: &pgconn.PgError{Code: "42P01"}, want: apperr.KindInternal},
		{name: "foreign key", err: &pgconn.PgError{Code: CodeForeignKeyViolation}, want: apperr.KindValidation},
		{name: "connection", err: errors.New("dial tcp 10.0.0.1:5432: connect: connection refused"), want: apperr.KindDependencyUnavailable},
		{name: "deadline", err: context.DeadlineExceeded, want: apperr.KindDependencyUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := apperr.GetKind(Classify("op", "msg", tt.err)); got != tt.want {
				t.Fatalf("kind = %s, want %s", got, tt.want)
			}
		})
	}

	if Classify("op", "msg", nil) != nil {
		t.Fatal("nil error should stay nil")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: CodeUniqueViolation})) {
		t.Fatal("expected unique violation")
	}
	if IsUniqueViolation(errors.New("other")) {
		t.Fatal("plain error is not a unique violation")
	}
}
