package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a registry notification.
type EventType string

// Notification types emitted by the registry. For a given product the
// registry emits events in operation order: registration produces
// EventProductRegistered then EventSupplyChainStepAdded, a transfer
// produces EventProductTransferred then EventSupplyChainStepAdded.
const (
	EventProductRegistered     EventType = "product_registered"
	EventProductTransferred    EventType = "product_transferred"
	EventSupplyChainStepAdded  EventType = "supply_chain_step_added"
	EventParticipantAuthorized EventType = "participant_authorized"
)

// Event is the envelope delivered to observers. ProductID is zero for
// participant events. Seq orders events within one product (or within the
// participant stream); observers de-duplicate by ID since delivery is
// at-least-once.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	ProductID  uint64    `json:"product_id,omitempty"`
	Seq        uint64    `json:"seq"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// NewEvent assembles an envelope around one of the payload types below.
func NewEvent(t EventType, productID, seq uint64, at time.Time, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		ProductID:  productID,
		Seq:        seq,
		OccurredAt: at,
		Payload:    payload,
	}
}

// ProductRegisteredPayload announces a successful registration.
type ProductRegisteredPayload struct {
	ProductID    uint64 `json:"product_id"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
}

// ProductTransferredPayload announces a custody change.
type ProductTransferredPayload struct {
	ProductID uint64 `json:"product_id"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// SupplyChainStepAddedPayload announces a history append.
type SupplyChainStepAddedPayload struct {
	ProductID uint64 `json:"product_id"`
	Actor     string `json:"actor"`
	Action    string `json:"action"`
}

// ParticipantAuthorizedPayload announces a new authorized participant.
type ParticipantAuthorizedPayload struct {
	Identity string `json:"identity"`
	Role     string `json:"role"`
}

// EventSink receives events synchronously with the state change they
// describe, inside the mutated product's serialization scope. Publish must
// be fast and must not call back into the registry.
type EventSink interface {
	Publish(ctx context.Context, event Event)
}
