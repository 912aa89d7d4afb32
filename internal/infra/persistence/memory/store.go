// Package memory exposes the in-process registry store as a persistence
// backend and defines the snapshot bucket payloads shared by the
// durable backends.
package memory

import (
	"provcore/internal/core"
	"provcore/pkg/domain"
)

// Store is the volatile backend: the core state machine with no
// durability. The sqlite and postgres stores embed it and add
// snapshotting.
type Store struct {
	*core.Store
}

var _ domain.RegistryStore = (*Store)(nil)

// NewStore builds an empty in-memory registry.
func NewStore(admin string, engine *domain.RulesEngine, opts ...core.StoreOption) *Store {
	return &Store{Store: core.NewStore(admin, engine, opts...)}
}

// ExportState captures the registry for persistence.
func (s *Store) ExportState() core.State {
	return s.SnapshotState()
}

// ImportState validates and loads a previously exported state.
func (s *Store) ImportState(state core.State) error {
	return s.RestoreState(state)
}

// RosterState is the payload of the participants bucket.
type RosterState struct {
	Admin        string               `json:"admin"`
	Participants []domain.Participant `json:"participants"`
	EventSeq     uint64               `json:"event_seq"`
}

// CounterState is the payload of the counter bucket.
type CounterState struct {
	NextID uint64 `json:"next_id"`
}

// Bucket names used by the durable backends.
const (
	BucketRoster   = "roster"
	BucketProducts = "products"
	BucketCounter  = "counter"
)

// Buckets lists the snapshot buckets in persist order.
var Buckets = []string{BucketRoster, BucketProducts, BucketCounter}

// SplitState decomposes a state snapshot into bucket payloads.
func SplitState(state core.State) (RosterState, []core.ProductState, CounterState) {
	roster := RosterState{
		Admin:        state.Admin,
		Participants: state.Participants,
		EventSeq:     state.ParticipantEventSeq,
	}
	return roster, state.Products, CounterState{NextID: state.NextID}
}

// JoinState reassembles a state snapshot from bucket payloads.
func JoinState(roster RosterState, products []core.ProductState, counter CounterState) core.State {
	return core.State{
		Admin:               roster.Admin,
		Participants:        roster.Participants,
		ParticipantEventSeq: roster.EventSeq,
		NextID:              counter.NextID,
		Products:            products,
	}
}
