package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"provcore/pkg/domain"
)

// Actions recorded on the synthesized first step of every product.
const (
	firstStepAction = "Product Manufactured"
	firstStepNotes  = "Initial product registration"
)

// productEntry is the isolation unit. Every read and write of one product
// and its history happens under this lock, so operations on different
// products proceed in parallel while operations on the same product
// serialize.
type productEntry struct {
	mu       sync.RWMutex
	product  domain.Product
	history  []domain.SupplyChainStep
	eventSeq uint64
}

type storeConfig struct {
	nowFn func() time.Time
	sink  domain.EventSink
}

// StoreOption customises store construction.
type StoreOption func(*storeConfig)

// WithNow overrides the timestamp source.
func WithNow(fn func() time.Time) StoreOption {
	return func(c *storeConfig) {
		if fn != nil {
			c.nowFn = fn
		}
	}
}

// WithEventSink installs the sink that receives events synchronously with
// each committed mutation.
func WithEventSink(sink domain.EventSink) StoreOption {
	return func(c *storeConfig) {
		if sink != nil {
			c.sink = sink
		}
	}
}

type noopSink struct{}

func (noopSink) Publish(context.Context, domain.Event) {}

// Store is the in-memory registry state machine. The top-level mutex
// guards only the product map and the id counter; each product carries
// its own lock, and the participant roster serializes independently.
type Store struct {
	mu       sync.RWMutex
	products map[uint64]*productEntry
	nextID   uint64

	participants *participantSet
	engine       *domain.RulesEngine
	nowFn        func() time.Time
	sink         domain.EventSink
}

// NewStore returns an empty registry whose admin is pre-authorized with
// the admin role. The admin identity must not be empty.
func NewStore(admin string, engine *domain.RulesEngine, opts ...StoreOption) *Store {
	if admin == "" {
		panic("core: admin identity must not be empty")
	}
	cfg := storeConfig{
		nowFn: func() time.Time { return time.Now().UTC() },
		sink:  noopSink{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Store{
		products:     make(map[uint64]*productEntry),
		nextID:       1,
		participants: newParticipantSet(admin),
		engine:       engine,
		nowFn:        cfg.nowFn,
		sink:         cfg.sink,
	}
}

var _ domain.RegistryStore = (*Store)(nil)

func newStep(productID, seq uint64, prevHash, participant, role, location, action, notes string, ts time.Time) domain.SupplyChainStep {
	step := domain.SupplyChainStep{
		Participant: participant,
		Role:        role,
		Timestamp:   ts,
		Location:    location,
		Action:      action,
		Notes:       notes,
		Seq:         seq,
		PrevHash:    prevHash,
	}
	step.Hash = domain.ComputeStepHash(productID, step)
	return step
}

// mutationView exposes the post-mutation state of the entities a pending
// change touches. Rules see the mutation's isolation unit plus the
// participant roster; products outside the mutation are not visible.
type mutationView struct {
	store       *Store
	entry       *productEntry
	participant *domain.Participant
	nextID      uint64
}

func (v mutationView) FindProduct(id uint64) (domain.Product, bool) {
	if v.entry != nil && v.entry.product.ID == id {
		return v.entry.product.Clone(), true
	}
	return domain.Product{}, false
}

func (v mutationView) History(id uint64) []domain.SupplyChainStep {
	if v.entry != nil && v.entry.product.ID == id {
		return domain.CloneSteps(v.entry.history)
	}
	return nil
}

func (v mutationView) FindParticipant(identity string) (domain.Participant, bool) {
	if v.participant != nil && v.participant.Identity == identity {
		return *v.participant, true
	}
	return v.store.participants.find(identity)
}

func (v mutationView) NextProductID() uint64 { return v.nextID }

// RegisterProduct creates a product owned by caller and synthesizes its
// manufacturing step, then emits EventProductRegistered followed by
// EventSupplyChainStepAdded. Registration is serialized so ids stay dense
// starting at 1.
func (s *Store) RegisterProduct(ctx context.Context, caller string, input domain.ProductInput) (domain.Product, domain.Result, error) {
	if err := s.participants.require(caller); err != nil {
		return domain.Product{}, domain.Result{}, err
	}
	role := s.participants.roleOf(caller)
	now := s.nowFn().UTC()

	s.mu.Lock()
	id := s.nextID
	if _, exists := s.products[id]; exists {
		s.mu.Unlock()
		return domain.Product{}, domain.Result{}, domain.ErrAlreadyInitialized{ProductID: id}
	}
	product := domain.Product{
		ID:             id,
		Name:           input.Name,
		MaterialType:   input.MaterialType,
		Origin:         input.Origin,
		Manufacturer:   caller,
		CurrentOwner:   caller,
		CreatedAt:      now,
		Certifications: append([]string(nil), input.Certifications...),
		IsAuthentic:    true,
		Price:          input.Price,
	}
	first := newStep(id, 1, "", caller, role, input.Origin, firstStepAction, firstStepNotes, now)
	entry := &productEntry{product: product, history: []domain.SupplyChainStep{first}}

	view := mutationView{store: s, entry: entry, nextID: id + 1}
	changes := []domain.Change{
		{Entity: domain.EntityProduct, Action: domain.ActionCreate, After: product.Clone()},
		{Entity: domain.EntitySupplyChainStep, Action: domain.ActionAppend, After: first},
	}
	res, err := s.engine.Evaluate(ctx, view, changes)
	if err != nil {
		s.mu.Unlock()
		return domain.Product{}, res, err
	}
	if res.HasBlocking() {
		s.mu.Unlock()
		return domain.Product{}, res, domain.RuleViolationError{Result: res}
	}

	entry.mu.Lock()
	s.products[id] = entry
	s.nextID = id + 1
	s.mu.Unlock()

	s.emitLocked(ctx, entry, domain.EventProductRegistered, domain.ProductRegisteredPayload{
		ProductID:    id,
		Name:         product.Name,
		Manufacturer: caller,
	})
	s.emitLocked(ctx, entry, domain.EventSupplyChainStepAdded, domain.SupplyChainStepAddedPayload{
		ProductID: id,
		Actor:     caller,
		Action:    firstStepAction,
	})
	out := entry.product.Clone()
	entry.mu.Unlock()
	return out, res, nil
}

// TransferProduct moves custody of product id from caller to input.To and
// appends the corresponding step, then emits EventProductTransferred
// followed by EventSupplyChainStepAdded. On failure nothing changes.
func (s *Store) TransferProduct(ctx context.Context, caller string, id uint64, input domain.TransferInput) (domain.Product, domain.Result, error) {
	if err := s.participants.require(caller); err != nil {
		return domain.Product{}, domain.Result{}, err
	}
	entry, ok := s.lookup(id)
	if !ok {
		return domain.Product{}, domain.Result{}, domain.ErrNotFound{ProductID: id}
	}
	nextID := s.peekNextID()

	entry.mu.Lock()
	if entry.product.CurrentOwner != caller {
		owner := entry.product.CurrentOwner
		entry.mu.Unlock()
		return domain.Product{}, domain.Result{}, domain.ErrNotOwner{Identity: caller, ProductID: id, Owner: owner}
	}
	if !s.participants.isAuthorized(input.To) {
		entry.mu.Unlock()
		return domain.Product{}, domain.Result{}, domain.ErrRecipientNotAuthorized{Identity: input.To, ProductID: id}
	}
	if input.To == caller {
		entry.mu.Unlock()
		return domain.Product{}, domain.Result{}, domain.ErrSelfTransfer{Identity: caller, ProductID: id}
	}

	now := s.nowFn().UTC()
	if last := entry.history[len(entry.history)-1]; now.Before(last.Timestamp) {
		now = last.Timestamp
	}
	role := s.participants.roleOf(caller)
	prev := entry.product.Clone()
	candidate := entry.product.Clone()
	candidate.CurrentOwner = input.To
	last := entry.history[len(entry.history)-1]
	step := newStep(id, last.Seq+1, last.Hash, caller, role, input.Location, input.Action, input.Notes, now)
	candidateEntry := &productEntry{
		product: candidate,
		history: append(domain.CloneSteps(entry.history), step),
	}

	view := mutationView{store: s, entry: candidateEntry, nextID: nextID}
	changes := []domain.Change{
		{Entity: domain.EntityProduct, Action: domain.ActionUpdate, Before: prev, After: candidate.Clone()},
		{Entity: domain.EntitySupplyChainStep, Action: domain.ActionAppend, After: step},
	}
	res, err := s.engine.Evaluate(ctx, view, changes)
	if err != nil {
		entry.mu.Unlock()
		return domain.Product{}, res, err
	}
	if res.HasBlocking() {
		entry.mu.Unlock()
		return domain.Product{}, res, domain.RuleViolationError{Result: res}
	}

	entry.product = candidateEntry.product
	entry.history = candidateEntry.history
	s.emitLocked(ctx, entry, domain.EventProductTransferred, domain.ProductTransferredPayload{
		ProductID: id,
		From:      prev.CurrentOwner,
		To:        input.To,
	})
	s.emitLocked(ctx, entry, domain.EventSupplyChainStepAdded, domain.SupplyChainStepAddedPayload{
		ProductID: id,
		Actor:     caller,
		Action:    input.Action,
	})
	out := entry.product.Clone()
	entry.mu.Unlock()
	return out, res, nil
}

// AuthorizeParticipant grants target the given role. Only the admin may
// call it; the admin itself and already-authorized identities are
// rejected, as is an empty target.
func (s *Store) AuthorizeParticipant(ctx context.Context, caller, target, role string) (domain.Participant, domain.Result, error) {
	if err := s.precheckGrant(caller, target); err != nil {
		return domain.Participant{}, domain.Result{}, err
	}
	candidate := domain.Participant{Identity: target, Role: role, Authorized: true}
	view := mutationView{store: s, participant: &candidate, nextID: s.peekNextID()}
	changes := []domain.Change{
		{Entity: domain.EntityParticipant, Action: domain.ActionCreate, After: candidate},
	}
	res, err := s.engine.Evaluate(ctx, view, changes)
	if err != nil {
		return domain.Participant{}, res, err
	}
	if res.HasBlocking() {
		return domain.Participant{}, res, domain.RuleViolationError{Result: res}
	}

	granted, err := s.participants.grant(caller, target, role, func(p domain.Participant, seq uint64) {
		s.sink.Publish(ctx, domain.NewEvent(domain.EventParticipantAuthorized, 0, seq, s.nowFn().UTC(), domain.ParticipantAuthorizedPayload{
			Identity: p.Identity,
			Role:     p.Role,
		}))
	})
	if err != nil {
		return domain.Participant{}, res, err
	}
	return granted, res, nil
}

func (s *Store) precheckGrant(caller, target string) error {
	if caller != s.participants.admin {
		return domain.ErrUnauthorized{Identity: caller}
	}
	if target == "" {
		return domain.ErrInvalidTarget{Identity: target}
	}
	if existing, ok := s.participants.find(target); ok && existing.Authorized {
		return domain.ErrAlreadyAuthorized{Identity: target, Role: existing.Role}
	}
	return nil
}

// FindProduct returns a copy of the product record.
func (s *Store) FindProduct(ctx context.Context, id uint64) (domain.Product, error) {
	entry, ok := s.lookup(id)
	if !ok {
		return domain.Product{}, domain.ErrNotFound{ProductID: id}
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return entry.product.Clone(), nil
}

// ProductHistory returns a copy of the step sequence, oldest first.
func (s *Store) ProductHistory(ctx context.Context, id uint64) ([]domain.SupplyChainStep, error) {
	entry, ok := s.lookup(id)
	if !ok {
		return nil, domain.ErrNotFound{ProductID: id}
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return domain.CloneSteps(entry.history), nil
}

// ProductWithHistory returns the product and its history from one
// consistent snapshot: the history always reflects the returned record.
func (s *Store) ProductWithHistory(ctx context.Context, id uint64) (domain.Product, []domain.SupplyChainStep, error) {
	entry, ok := s.lookup(id)
	if !ok {
		return domain.Product{}, nil, domain.ErrNotFound{ProductID: id}
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return entry.product.Clone(), domain.CloneSteps(entry.history), nil
}

// TotalProducts returns the number of products ever registered.
func (s *Store) TotalProducts(ctx context.Context) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextID - 1
}

// IsAuthorized reports whether identity may act on the registry.
func (s *Store) IsAuthorized(ctx context.Context, identity string) bool {
	return s.participants.isAuthorized(identity)
}

// FindParticipant returns the participant record for identity.
func (s *Store) FindParticipant(ctx context.Context, identity string) (domain.Participant, bool) {
	return s.participants.find(identity)
}

// Participants returns the roster sorted by identity.
func (s *Store) Participants(ctx context.Context) []domain.Participant {
	return s.participants.list()
}

// Admin returns the admin identity fixed at construction.
func (s *Store) Admin(ctx context.Context) string {
	return s.participants.admin
}

func (s *Store) lookup(id uint64) (*productEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.products[id]
	return entry, ok
}

func (s *Store) peekNextID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextID
}

// emitLocked publishes a product event. The caller holds entry.mu, which
// is what keeps a product's events ordered.
func (s *Store) emitLocked(ctx context.Context, entry *productEntry, t domain.EventType, payload any) {
	entry.eventSeq++
	s.sink.Publish(ctx, domain.NewEvent(t, entry.product.ID, entry.eventSeq, s.nowFn().UTC(), payload))
}

// ProductState is the serialized form of one product and its history.
type ProductState struct {
	Product  domain.Product           `json:"product"`
	History  []domain.SupplyChainStep `json:"history"`
	EventSeq uint64                   `json:"event_seq"`
}

// State is a serializable snapshot of the whole registry.
type State struct {
	Admin               string               `json:"admin"`
	Participants        []domain.Participant `json:"participants"`
	ParticipantEventSeq uint64               `json:"participant_event_seq"`
	NextID              uint64               `json:"next_id"`
	Products            []ProductState       `json:"products"`
}

// SnapshotState captures the registry for persistence. Products are
// ordered by id.
func (s *Store) SnapshotState() State {
	participants, admin, pseq := s.participants.snapshot()
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{
		Admin:               admin,
		Participants:        participants,
		ParticipantEventSeq: pseq,
		NextID:              s.nextID,
	}
	ids := make([]uint64, 0, len(s.products))
	for id := range s.products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		entry := s.products[id]
		entry.mu.RLock()
		st.Products = append(st.Products, ProductState{
			Product:  entry.product.Clone(),
			History:  domain.CloneSteps(entry.history),
			EventSeq: entry.eventSeq,
		})
		entry.mu.RUnlock()
	}
	return st
}

// RestoreState replaces the registry contents with a previously captured
// snapshot. It validates id density, history presence, and every hash
// chain before touching any state. Callers restore before serving
// traffic, not concurrently with mutations.
func (s *Store) RestoreState(st State) error {
	if st.Admin != "" && st.Admin != s.participants.admin {
		return fmt.Errorf("registry state: snapshot admin %q does not match configured admin %q", st.Admin, s.participants.admin)
	}
	products := make(map[uint64]*productEntry, len(st.Products))
	var maxID uint64
	for _, ps := range st.Products {
		id := ps.Product.ID
		if id == 0 {
			return fmt.Errorf("registry state: product with zero id")
		}
		if _, dup := products[id]; dup {
			return fmt.Errorf("registry state: duplicate product id %d", id)
		}
		if len(ps.History) == 0 {
			return fmt.Errorf("registry state: product %d has no history", id)
		}
		if err := domain.VerifyChain(id, ps.History); err != nil {
			return fmt.Errorf("registry state: %w", err)
		}
		products[id] = &productEntry{
			product:  ps.Product.Clone(),
			history:  domain.CloneSteps(ps.History),
			eventSeq: ps.EventSeq,
		}
		if id > maxID {
			maxID = id
		}
	}
	if uint64(len(products)) != maxID {
		return fmt.Errorf("registry state: product ids not dense, %d products but max id %d", len(products), maxID)
	}
	next := st.NextID
	if next == 0 {
		next = maxID + 1
	}
	if next != maxID+1 {
		return fmt.Errorf("registry state: next id %d does not follow max id %d", next, maxID)
	}
	s.mu.Lock()
	s.products = products
	s.nextID = next
	s.mu.Unlock()
	s.participants.restore(st.Participants, st.ParticipantEventSeq)
	return nil
}
