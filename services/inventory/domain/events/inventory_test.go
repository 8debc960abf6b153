package events_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ghuser/inventory/services/inventory/domain/events"
	"github.com/ghuser/inventory/services/inventory/domain/models"
)

func TestNewInventoryChanged_CopiesRecordValues(t *testing.T) {
	inv := models.Inventory{ProductID: "12345", StockRemain: 40, Revision: 7}
	evt := events.NewInventoryChanged(inv)

	if evt != (events.InventoryChanged{ProductID: "12345", StockRemain: 40}) {
		t.Fatalf("unexpected event: %+v", evt)
	}

	inv.StockRemain = 99
	if evt.StockRemain != 40 {
		t.Fatal("event must not observe later record mutation")
	}
}

func TestInventoryChanged_JSONFieldNames(t *testing.T) {
	env := events.NewEnvelope(events.InventoryChanged{ProductID: "67890", StockRemain: 70}, 1, time.Now())
	payload, err := env.Payload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("unmarshal to map failed: %v", err)
	}
	if len(raw) != 2 {
		t.Fatalf("payload must carry exactly productId and stockRemain, got %s", payload)
	}
	if raw["productId"] != "67890" || raw["stockRemain"] != float64(70) {
		t.Fatalf("unexpected payload: %s", payload)
	}
}

func TestEnvelope_MetadataRoundTrip(t *testing.T) {
	occurred := time.Date(2025, 1, 15, 12, 0, 0, 123, time.UTC)
	env := events.NewEnvelope(events.InventoryChanged{ProductID: "12345", StockRemain: 40}, 3, occurred)
	payload, err := env.Payload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}

	md := env.Metadata()
	if md[events.MetaType] != events.TypeInventoryUpdated {
		t.Errorf("type: got %q", md[events.MetaType])
	}
	if md[events.MetaContentType] != events.ContentTypeJSON {
		t.Errorf("content type: got %q", md[events.MetaContentType])
	}

	got, err := events.ParseEnvelope(payload, md)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.EventID != env.EventID || got.Revision != 3 || got.Version != events.SchemaVersion {
		t.Errorf("metadata mismatch: %+v vs %+v", got, env)
	}
	if !got.OccurredAt.Equal(occurred) {
		t.Errorf("occurred_at: got %v, want %v", got.OccurredAt, occurred)
	}
	if got.Event != env.Event {
		t.Errorf("event: got %+v, want %+v", got.Event, env.Event)
	}
}

func TestParseEnvelope_Rejects(t *testing.T) {
	env := events.NewEnvelope(events.InventoryChanged{ProductID: "1", StockRemain: 1}, 1, time.Now())
	payload, _ := env.Payload()

	tests := []struct {
		name    string
		payload []byte
		mutate  func(map[string]string)
		wantErr string
	}{
		{"other event type", payload, func(md map[string]string) { md[events.MetaType] = "OrderPlaced" }, "unexpected event type"},
		{"bad json", []byte("{"), func(map[string]string) {}, "unmarshal"},
		{"bad event id", payload, func(md map[string]string) { md[events.MetaEventID] = "nope" }, events.MetaEventID},
		{"bad revision", payload, func(md map[string]string) { md[events.MetaRevision] = "x" }, events.MetaRevision},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := env.Metadata()
			tt.mutate(md)
			_, err := events.ParseEnvelope(tt.payload, md)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEventID_StablePerWrite(t *testing.T) {
	a := events.NewEnvelope(events.InventoryChanged{ProductID: "12345", StockRemain: 40}, 2, time.Now())
	b := events.NewEnvelope(events.InventoryChanged{ProductID: "12345", StockRemain: 40}, 2, time.Now().Add(time.Hour))
	if a.EventID != b.EventID {
		t.Fatal("envelopes for the same write must share an event ID")
	}
	if a.EventID == events.EventID("12345", 3) {
		t.Fatal("different revisions must not share an event ID")
	}
	if events.EventID("1", 23) == events.EventID("12", 3) {
		t.Fatal("product and revision must not run together")
	}
}

func TestTopicInventoryUpdated_Value(t *testing.T) {
	if events.TopicInventoryUpdated != "inventory.updated" {
		t.Errorf("expected %q, got %q", "inventory.updated", events.TopicInventoryUpdated)
	}
}
