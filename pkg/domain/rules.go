package domain

import "context"

// RuleView is the read-only window a rule receives over registry state as
// it would look after the pending mutation commits.
type RuleView interface {
	// FindProduct returns the product record for id.
	FindProduct(id uint64) (Product, bool)
	// History returns the (possibly updated) step sequence for id.
	History(id uint64) []SupplyChainStep
	// FindParticipant returns the participant record for an identity.
	FindParticipant(identity string) (Participant, bool)
	// NextProductID returns the id the next registration would receive.
	NextProductID() uint64
}

// Rule evaluates registry invariants against a pending mutation.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine evaluates registered rules against pending changes.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine returns an empty rules engine.
func NewRulesEngine(rules ...Rule) *RulesEngine {
	engine := &RulesEngine{}
	engine.Register(rules...)
	return engine
}

// Register appends rules to the evaluation order.
func (e *RulesEngine) Register(rules ...Rule) {
	e.rules = append(e.rules, rules...)
}

// Rules returns the registered rules in evaluation order.
func (e *RulesEngine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Evaluate runs every rule and merges their results. A rule returning an
// error aborts evaluation.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var result Result
	if e == nil {
		return result, nil
	}
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return result, err
		}
		result.Merge(res)
	}
	return result, nil
}
