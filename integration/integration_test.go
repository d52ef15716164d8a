package integration

import (
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	if err := Validate(Integration{}); err == nil {
		t.Error("Validate accepted an integration without a type")
	}
	if err := Validate(Integration{Type: "google", Status: "sleeping"}); err == nil {
		t.Error("Validate accepted an unknown status")
	}
	if err := Validate(Integration{Type: "google", Status: StatusConnected}); err != nil {
		t.Errorf("Validate rejected a valid integration: %v", err)
	}
}

func TestLastSync(t *testing.T) {
	when := time.Date(2025, 4, 4, 8, 0, 0, 0, time.UTC)
	i := Integration{Config: map[string]any{"last_sync": when.Format(time.RFC3339)}}

	got, ok := i.LastSync()
	if !ok || !got.Equal(when) {
		t.Errorf("LastSync = %v, %v; want %v, true", got, ok, when)
	}

	if _, ok := (Integration{}).LastSync(); ok {
		t.Error("LastSync reported a value for an empty config")
	}
	if _, ok := (Integration{Config: map[string]any{"last_sync": 42}}).LastSync(); ok {
		t.Error("LastSync reported a value for a non-string config entry")
	}
}
