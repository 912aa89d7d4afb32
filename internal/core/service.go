// Package core implements the registry state machine, its invariant
// rules, the event dispatcher, and the instrumented service facade.
package core

import (
	"context"
	"strconv"
	"time"

	"provcore/pkg/domain"
)

// Audited operation names.
const (
	opRegisterProduct      = "register_product"
	opTransferProduct      = "transfer_product"
	opVerifyProduct        = "verify_product"
	opAuthorizeParticipant = "authorize_participant"
	opGetProduct           = "get_product"
	opGetProductHistory    = "get_product_history"
)

// Service exposes the registry operations and instruments every call
// with the configured clock, logger, audit recorder, metrics recorder,
// and tracer. All domain semantics live in the underlying store; the
// service only orchestrates and observes.
type Service struct {
	store domain.RegistryStore
	opts  serviceOptions
}

// NewService wraps an already constructed store. Event wiring (sink,
// clock) happens at store construction; pass the shared dispatcher with
// WithDispatcher so Subscribe works.
func NewService(store domain.RegistryStore, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{store: store, opts: o}
}

// NewInMemoryService builds a service over a fresh in-memory store with
// the default rules engine and its own dispatcher.
func NewInMemoryService(admin string, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.dispatcher == nil {
		o.dispatcher = NewDispatcher()
	}
	store := NewStore(admin, NewDefaultRulesEngine(),
		WithEventSink(o.dispatcher),
		WithNow(o.clock.Now),
	)
	svc := &Service{store: store, opts: o}
	return svc
}

// Store returns the underlying registry store.
func (s *Service) Store() domain.RegistryStore { return s.store }

// Subscribe registers an event handler on the service dispatcher and
// returns a cancel function. Without a dispatcher it is a no-op.
func (s *Service) Subscribe(handler func(domain.Event)) func() {
	if s.opts.dispatcher == nil {
		return func() {}
	}
	return s.opts.dispatcher.Subscribe(handler)
}

type opRecord struct {
	op       string
	entity   domain.EntityType
	entityID string
	actor    string
	start    time.Time
	err      error
	audit    bool
}

func (s *Service) finish(ctx context.Context, rec opRecord) {
	duration := s.opts.clock.Now().Sub(rec.start)
	s.opts.metrics.Observe(ctx, rec.op, rec.err == nil, duration)
	if rec.audit {
		status := AuditStatusSuccess
		errMsg := ""
		if rec.err != nil {
			status = AuditStatusError
			errMsg = rec.err.Error()
		}
		s.opts.audit.Record(ctx, AuditEntry{
			Operation:  rec.op,
			Status:     status,
			Entity:     rec.entity,
			EntityID:   rec.entityID,
			Actor:      rec.actor,
			Error:      errMsg,
			Duration:   duration,
			OccurredAt: rec.start,
		})
	}
	if rec.err != nil {
		s.opts.logger.Warn("registry operation failed",
			"operation", rec.op, "actor", rec.actor, "entity_id", rec.entityID, "error", rec.err)
		return
	}
	s.opts.logger.Debug("registry operation completed",
		"operation", rec.op, "entity_id", rec.entityID)
}

func formatID(id uint64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatUint(id, 10)
}

// RegisterProduct registers a product owned by caller and returns the
// stored record with its assigned id.
func (s *Service) RegisterProduct(ctx context.Context, caller string, input domain.ProductInput) (domain.Product, domain.Result, error) {
	ctx, span := s.opts.tracer.Start(ctx, opRegisterProduct)
	start := s.opts.clock.Now()
	product, res, err := s.store.RegisterProduct(ctx, caller, input)
	s.finish(ctx, opRecord{
		op:       opRegisterProduct,
		entity:   domain.EntityProduct,
		entityID: formatID(product.ID),
		actor:    caller,
		start:    start,
		err:      err,
		audit:    true,
	})
	span.End(err)
	return product, res, err
}

// TransferProduct moves custody of product id from caller to input.To.
func (s *Service) TransferProduct(ctx context.Context, caller string, id uint64, input domain.TransferInput) (domain.Product, domain.Result, error) {
	ctx, span := s.opts.tracer.Start(ctx, opTransferProduct)
	start := s.opts.clock.Now()
	product, res, err := s.store.TransferProduct(ctx, caller, id, input)
	s.finish(ctx, opRecord{
		op:       opTransferProduct,
		entity:   domain.EntityProduct,
		entityID: formatID(id),
		actor:    caller,
		start:    start,
		err:      err,
		audit:    true,
	})
	span.End(err)
	return product, res, err
}

// VerifyProduct is the public trust anchor: it returns the product, its
// full history, and the hash-chain verdict from one consistent snapshot.
// It requires no authorization.
func (s *Service) VerifyProduct(ctx context.Context, id uint64) (domain.Verification, error) {
	ctx, span := s.opts.tracer.Start(ctx, opVerifyProduct)
	start := s.opts.clock.Now()
	var verification domain.Verification
	product, history, err := s.store.ProductWithHistory(ctx, id)
	if err == nil {
		verification = domain.Verification{
			Product:     product,
			History:     history,
			ChainIntact: domain.VerifyChain(id, history) == nil,
			CapturedAt:  s.opts.clock.Now().UTC(),
		}
	}
	s.finish(ctx, opRecord{
		op:       opVerifyProduct,
		entity:   domain.EntityProduct,
		entityID: formatID(id),
		start:    start,
		err:      err,
		audit:    true,
	})
	span.End(err)
	return verification, err
}

// AuthorizeParticipant grants target a role. Admin only.
func (s *Service) AuthorizeParticipant(ctx context.Context, caller, target, role string) (domain.Participant, domain.Result, error) {
	ctx, span := s.opts.tracer.Start(ctx, opAuthorizeParticipant)
	start := s.opts.clock.Now()
	participant, res, err := s.store.AuthorizeParticipant(ctx, caller, target, role)
	s.finish(ctx, opRecord{
		op:       opAuthorizeParticipant,
		entity:   domain.EntityParticipant,
		entityID: target,
		actor:    caller,
		start:    start,
		err:      err,
		audit:    true,
	})
	span.End(err)
	return participant, res, err
}

// GetProduct returns the product record for id.
func (s *Service) GetProduct(ctx context.Context, id uint64) (domain.Product, error) {
	ctx, span := s.opts.tracer.Start(ctx, opGetProduct)
	start := s.opts.clock.Now()
	product, err := s.store.FindProduct(ctx, id)
	s.finish(ctx, opRecord{op: opGetProduct, entityID: formatID(id), start: start, err: err})
	span.End(err)
	return product, err
}

// GetProductHistory returns the step sequence for id, oldest first.
func (s *Service) GetProductHistory(ctx context.Context, id uint64) ([]domain.SupplyChainStep, error) {
	ctx, span := s.opts.tracer.Start(ctx, opGetProductHistory)
	start := s.opts.clock.Now()
	history, err := s.store.ProductHistory(ctx, id)
	s.finish(ctx, opRecord{op: opGetProductHistory, entityID: formatID(id), start: start, err: err})
	span.End(err)
	return history, err
}

// GetTotalProducts returns how many products have ever been registered.
func (s *Service) GetTotalProducts(ctx context.Context) uint64 {
	return s.store.TotalProducts(ctx)
}

// IsAuthorized reports whether identity may act on the registry.
func (s *Service) IsAuthorized(ctx context.Context, identity string) bool {
	return s.store.IsAuthorized(ctx, identity)
}

// GetParticipant returns the participant record for identity.
func (s *Service) GetParticipant(ctx context.Context, identity string) (domain.Participant, bool) {
	return s.store.FindParticipant(ctx, identity)
}

// ListParticipants returns the roster sorted by identity.
func (s *Service) ListParticipants(ctx context.Context) []domain.Participant {
	return s.store.Participants(ctx)
}

// Admin returns the registry admin identity.
func (s *Service) Admin(ctx context.Context) string {
	return s.store.Admin(ctx)
}
