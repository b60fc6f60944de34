package events

import (
	"context"
	"testing"
)

func TestEventKinds(t *testing.T) {
	var evs = []Event{SolveEvent{}, DeliveryEvent{Stage: StageAcked}}
	kinds := map[string]bool{}
	for _, ev := range evs {
		kinds[ev.EventKind()] = true
	}
	if !kinds["solve"] || !kinds["delivery"] {
		t.Fatalf("unexpected kinds %v", kinds)
	}
}

func TestKeyContext(t *testing.T) {
	ctx := context.Background()
	if k := KeyFrom(ctx); k != "" {
		t.Fatalf("expected no key, got %q", k)
	}
	if k := KeyFrom(WithKey(ctx, "abc")); k != "abc" {
		t.Fatalf("expected abc, got %q", k)
	}
}
