package settlement

import (
	"context"
	"testing"

	"wager-exchange/internal/engineerr"
	"wager-exchange/internal/model"
)

type noopStopper struct{ called bool }

func (s *noopStopper) ResolveMarket(ctx context.Context, marketID string) { s.called = true }

func TestResolveRejectsInvalidOutcome(t *testing.T) {
	h := &House{stopper: &noopStopper{}}
	err := h.Resolve(context.Background(), "m1", model.Outcome("MAYBE"), "admin")
	if err == nil {
		t.Fatal("expected error for invalid outcome")
	}
	ee, ok := err.(*engineerr.Error)
	if !ok || ee.Kind != engineerr.KindInvalidInput {
		t.Fatalf("expected KindInvalidInput, got %v", err)
	}
}
