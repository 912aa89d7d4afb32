package core

import (
	"context"
	"testing"
	"time"

	"provcore/pkg/domain"
)

type fakeView struct {
	products map[uint64]domain.Product
	history  map[uint64][]domain.SupplyChainStep
	roster   map[string]domain.Participant
	nextID   uint64
}

func (v fakeView) FindProduct(id uint64) (domain.Product, bool) {
	p, ok := v.products[id]
	return p, ok
}

func (v fakeView) History(id uint64) []domain.SupplyChainStep { return v.history[id] }

func (v fakeView) FindParticipant(identity string) (domain.Participant, bool) {
	p, ok := v.roster[identity]
	return p, ok
}

func (v fakeView) NextProductID() uint64 { return v.nextID }

func validChain(productID uint64, manufacturer, role, origin string, extra int) []domain.SupplyChainStep {
	ts := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	steps := []domain.SupplyChainStep{newStep(productID, 1, "", manufacturer, role, origin, firstStepAction, firstStepNotes, ts)}
	for i := 0; i < extra; i++ {
		ts = ts.Add(time.Hour)
		last := steps[len(steps)-1]
		steps = append(steps, newStep(productID, last.Seq+1, last.Hash, manufacturer, role, "Depot", "Moved", "", ts))
	}
	return steps
}

func productChange(p domain.Product, action domain.Action) []domain.Change {
	return []domain.Change{{Entity: domain.EntityProduct, Action: action, After: p}}
}

func TestHistoryIntegrityRuleFlagsMissingHistory(t *testing.T) {
	p := domain.Product{ID: 1, Manufacturer: "acme", CurrentOwner: "acme"}
	view := fakeView{history: map[uint64][]domain.SupplyChainStep{}}

	res, err := historyIntegrityRule{}.Evaluate(context.Background(), view, productChange(p, domain.ActionCreate))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !res.HasBlocking() {
		t.Fatal("empty history not blocked")
	}
}

func TestHistoryIntegrityRuleFlagsMalformedFirstStep(t *testing.T) {
	p := domain.Product{ID: 1, Manufacturer: "acme", CurrentOwner: "acme"}
	steps := validChain(1, "intruder", domain.RoleSupplier, "Graz", 0)
	steps[0].Action = "Repackaged"
	steps[0].Hash = domain.ComputeStepHash(1, steps[0])
	view := fakeView{history: map[uint64][]domain.SupplyChainStep{1: steps}}

	res, err := historyIntegrityRule{}.Evaluate(context.Background(), view, productChange(p, domain.ActionCreate))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) < 2 {
		t.Fatalf("violations = %d, want action and participant both flagged", len(res.Violations))
	}
}

func TestHistoryIntegrityRuleFlagsTamperedChain(t *testing.T) {
	p := domain.Product{ID: 1, Manufacturer: "acme", CurrentOwner: "acme"}
	steps := validChain(1, "acme", domain.RoleManufacturer, "Graz", 2)
	steps[1].Location = "Elsewhere"
	view := fakeView{history: map[uint64][]domain.SupplyChainStep{1: steps}}

	res, err := historyIntegrityRule{}.Evaluate(context.Background(), view, productChange(p, domain.ActionUpdate))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !res.HasBlocking() {
		t.Fatal("tampered chain not blocked")
	}
}

func TestHistoryIntegrityRuleAcceptsValidHistory(t *testing.T) {
	p := domain.Product{ID: 1, Manufacturer: "acme", CurrentOwner: "acme"}
	view := fakeView{history: map[uint64][]domain.SupplyChainStep{
		1: validChain(1, "acme", domain.RoleManufacturer, "Graz", 3),
	}}

	res, err := historyIntegrityRule{}.Evaluate(context.Background(), view, productChange(p, domain.ActionUpdate))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("violations on valid history: %+v", res.Violations)
	}
}

func TestOwnerAuthorizedRuleFlagsUnknownOwner(t *testing.T) {
	p := domain.Product{ID: 1, Manufacturer: "acme", CurrentOwner: "ghost"}
	view := fakeView{roster: map[string]domain.Participant{
		"acme": {Identity: "acme", Role: domain.RoleManufacturer, Authorized: true},
	}}

	res, err := ownerAuthorizedRule{}.Evaluate(context.Background(), view, productChange(p, domain.ActionUpdate))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !res.HasBlocking() {
		t.Fatal("unauthorized owner not blocked")
	}
}

func TestOwnerAuthorizedRuleChecksManufacturerOnCreate(t *testing.T) {
	p := domain.Product{ID: 1, Manufacturer: "ghost", CurrentOwner: "acme"}
	view := fakeView{roster: map[string]domain.Participant{
		"acme": {Identity: "acme", Role: domain.RoleManufacturer, Authorized: true},
	}}

	res, err := ownerAuthorizedRule{}.Evaluate(context.Background(), view, productChange(p, domain.ActionCreate))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !res.HasBlocking() {
		t.Fatal("unauthorized manufacturer not blocked at create")
	}

	res, err = ownerAuthorizedRule{}.Evaluate(context.Background(), view, productChange(p, domain.ActionUpdate))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.HasBlocking() {
		t.Fatal("manufacturer check should only apply to creates")
	}
}

func TestDefaultRulesEngineRegistersInvariants(t *testing.T) {
	engine := NewDefaultRulesEngine()
	names := make(map[string]bool)
	for _, rule := range engine.Rules() {
		names[rule.Name()] = true
	}
	if !names[RuleHistoryIntegrity] || !names[RuleOwnerAuthorized] {
		t.Fatalf("default engine rules = %v", names)
	}
}
