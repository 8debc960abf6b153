package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ghuser/inventory/services/inventory/domain/models"
)

// TopicInventoryUpdated is the topic published after a stock write commits.
// Consumers subscribe via EventBus.Subscribe(ctx, events.TopicInventoryUpdated).
const TopicInventoryUpdated = "inventory.updated"

// TypeInventoryUpdated is the type discriminator carried in message metadata
// so consumers sharing a channel can route on it.
const TypeInventoryUpdated = "InventoryUpdated"

// SchemaVersion of the InventoryChanged payload; increment on breaking changes.
const SchemaVersion = 1

// Metadata keys set on every published message.
const (
	MetaType        = "type"
	MetaEventID     = "event_id"
	MetaVersion     = "event_version"
	MetaRevision    = "revision"
	MetaOccurredAt  = "occurred_at"
	MetaContentType = "content_type"
	MetaProductID   = "product_id"

	ContentTypeJSON = "application/json"
)

// InventoryChanged is the change notification for one committed stock write.
// It is a value type: emitters receive a copy and cannot affect the caller's.
type InventoryChanged struct {
	ProductID   string `json:"productId"`
	StockRemain int64  `json:"stockRemain"`
}

// NewInventoryChanged builds the event for a committed record.
func NewInventoryChanged(inv models.Inventory) InventoryChanged {
	return InventoryChanged{
		ProductID:   inv.ProductID.String(),
		StockRemain: inv.StockRemain,
	}
}

// Envelope carries the transport metadata that travels next to the payload.
type Envelope struct {
	EventID    uuid.UUID
	Type       string
	Version    int
	Revision   int64
	OccurredAt time.Time
	Event      InventoryChanged
}

// eventNamespace seeds name-based event IDs.
var eventNamespace = uuid.MustParse("6f1c7a52-3d2e-4b8a-9c55-0e7d41a9b3f0")

// EventID returns the identifier of the notification for one committed write.
// It is derived from (productID, revision), so the inline publish, the outbox
// row and any relayed retry of the same write share one deduplication key.
func EventID(productID string, revision int64) uuid.UUID {
	return uuid.NewSHA1(eventNamespace, []byte(productID+"/"+strconv.FormatInt(revision, 10)))
}

// NewEnvelope wraps evt for the committed write identified by revision.
// occurredAt is the commit time of the record.
func NewEnvelope(evt InventoryChanged, revision int64, occurredAt time.Time) Envelope {
	return Envelope{
		EventID:    EventID(evt.ProductID, revision),
		Type:       TypeInventoryUpdated,
		Version:    SchemaVersion,
		Revision:   revision,
		OccurredAt: occurredAt.UTC(),
		Event:      evt,
	}
}

// Payload returns the JSON body of the message.
func (e Envelope) Payload() ([]byte, error) {
	b, err := json.Marshal(e.Event)
	if err != nil {
		return nil, fmt.Errorf("marshal inventory changed: %w", err)
	}
	return b, nil
}

// Metadata returns the header set every transport attaches to the message.
func (e Envelope) Metadata() map[string]string {
	return map[string]string{
		MetaType:        e.Type,
		MetaEventID:     e.EventID.String(),
		MetaVersion:     strconv.Itoa(e.Version),
		MetaRevision:    strconv.FormatInt(e.Revision, 10),
		MetaOccurredAt:  e.OccurredAt.Format(time.RFC3339Nano),
		MetaContentType: ContentTypeJSON,
		MetaProductID:   e.Event.ProductID,
	}
}

// ParseEnvelope rebuilds an Envelope from a message payload and its metadata.
// Messages of another type are rejected.
func ParseEnvelope(payload []byte, md map[string]string) (Envelope, error) {
	if t := md[MetaType]; t != TypeInventoryUpdated {
		return Envelope{}, fmt.Errorf("unexpected event type %q", t)
	}

	var env Envelope
	if err := json.Unmarshal(payload, &env.Event); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal inventory changed: %w", err)
	}

	var err error
	env.Type = md[MetaType]
	if env.EventID, err = uuid.Parse(md[MetaEventID]); err != nil {
		return Envelope{}, fmt.Errorf("parse %s: %w", MetaEventID, err)
	}
	if env.Version, err = strconv.Atoi(md[MetaVersion]); err != nil {
		return Envelope{}, fmt.Errorf("parse %s: %w", MetaVersion, err)
	}
	if env.Revision, err = strconv.ParseInt(md[MetaRevision], 10, 64); err != nil {
		return Envelope{}, fmt.Errorf("parse %s: %w", MetaRevision, err)
	}
	if env.OccurredAt, err = time.Parse(time.RFC3339Nano, md[MetaOccurredAt]); err != nil {
		return Envelope{}, fmt.Errorf("parse %s: %w", MetaOccurredAt, err)
	}
	return env, nil
}
