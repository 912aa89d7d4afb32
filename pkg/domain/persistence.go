package domain

import "context"

// RegistryStore is the contract between the registry service and a
// storage backend. Implementations serialize mutations per product id,
// keep each product's record and history as one isolation unit, and
// publish events through the configured sink inside that unit. Reads
// return copies; callers can never reach stored state through a returned
// value.
//
// Sanctioned implementations live in internal/infra/persistence
// (memory, sqlite, postgres); a contract test enforces the list.
type RegistryStore interface {
	// RegisterProduct allocates the next id, creates the record owned by
	// caller, and initializes its history with the synthetic first step.
	RegisterProduct(ctx context.Context, caller string, input ProductInput) (Product, Result, error)
	// TransferProduct moves custody and appends the matching step, both or
	// neither.
	TransferProduct(ctx context.Context, caller string, id uint64, input TransferInput) (Product, Result, error)
	// AuthorizeParticipant admits target into the authorized set. Admin only.
	AuthorizeParticipant(ctx context.Context, caller, target, role string) (Participant, Result, error)

	// FindProduct returns a copy of the record for id.
	FindProduct(ctx context.Context, id uint64) (Product, error)
	// ProductHistory returns a snapshot of the step sequence, oldest first.
	ProductHistory(ctx context.Context, id uint64) ([]SupplyChainStep, error)
	// ProductWithHistory returns record and history from one consistent
	// snapshot.
	ProductWithHistory(ctx context.Context, id uint64) (Product, []SupplyChainStep, error)
	// TotalProducts returns the number of products ever registered.
	TotalProducts(ctx context.Context) uint64
	// IsAuthorized reports whether identity is in the authorized set.
	IsAuthorized(ctx context.Context, identity string) bool
	// FindParticipant returns a copy of the participant record.
	FindParticipant(ctx context.Context, identity string) (Participant, bool)
	// Participants returns a copy of the authorized set, admin included,
	// ordered by identity.
	Participants(ctx context.Context) []Participant
	// Admin returns the bootstrap admin identity.
	Admin(ctx context.Context) string
}
