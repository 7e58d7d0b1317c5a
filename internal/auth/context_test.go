package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestTenantIDFromRequest(t *testing.T) {
	id := uuid.New()

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(TenantHeader, " "+id.String()+" ")
	got, err := TenantIDFromRequest(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != id {
		t.Fatalf("expected %s, got %s", id, got)
	}

	for _, raw := range []string{"", "   ", uuid.Nil.String(), "not-a-uuid"} {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(TenantHeader, raw)
		if _, err := TenantIDFromRequest(req); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestEnforceTenantScope(t *testing.T) {
	id := uuid.New()
	if err := EnforceTenantScope(context.Background(), id); err != nil {
		t.Fatalf("unscoped context should pass: %v", err)
	}

	ctx := ContextWithTenantID(context.Background(), id)
	if got, ok := TenantIDFromContext(ctx); !ok || got != id {
		t.Fatalf("expected scoped tenant %s, got %s (%v)", id, got, ok)
	}
	if err := EnforceTenantScope(ctx, id); err != nil {
		t.Fatalf("matching tenant should pass: %v", err)
	}
	if err := EnforceTenantScope(ctx, uuid.New()); !errors.Is(err, ErrTenantScope) {
		t.Fatalf("expected ErrTenantScope, got %v", err)
	}
	if err := EnforceTenantScope(ctx, uuid.Nil); err == nil {
		t.Fatal("expected error for nil tenant")
	}
}
