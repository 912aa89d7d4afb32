package core

import (
	"context"
	"fmt"
	"strconv"

	"provcore/pkg/domain"
)

// Rule names reported in violations.
const (
	RuleHistoryIntegrity = "history_integrity"
	RuleOwnerAuthorized  = "owner_authorized"
)

// NewDefaultRulesEngine returns the engine every registry runs with:
// history integrity and owner authorization as blocking invariants.
func NewDefaultRulesEngine() *domain.RulesEngine {
	return domain.NewRulesEngine(historyIntegrityRule{}, ownerAuthorizedRule{})
}

func blockProduct(rule string, productID uint64, msg string) domain.Violation {
	return domain.Violation{
		Rule:     rule,
		Severity: domain.SeverityBlock,
		Message:  msg,
		Entity:   domain.EntityProduct,
		EntityID: strconv.FormatUint(productID, 10),
	}
}

// historyIntegrityRule blocks any mutation that would leave a product
// with an empty, malformed, reordered, or tampered history.
type historyIntegrityRule struct{}

func (historyIntegrityRule) Name() string { return RuleHistoryIntegrity }

func (historyIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, ch := range changes {
		if ch.Entity != domain.EntityProduct {
			continue
		}
		product, ok := ch.After.(domain.Product)
		if !ok {
			continue
		}
		history := view.History(product.ID)
		if len(history) == 0 {
			res.Violations = append(res.Violations, blockProduct(RuleHistoryIntegrity, product.ID, "product has no supply chain history"))
			continue
		}
		first := history[0]
		if first.Action != firstStepAction {
			res.Violations = append(res.Violations, blockProduct(RuleHistoryIntegrity, product.ID,
				fmt.Sprintf("first step action is %q, want %q", first.Action, firstStepAction)))
		}
		if first.Participant != product.Manufacturer {
			res.Violations = append(res.Violations, blockProduct(RuleHistoryIntegrity, product.ID,
				fmt.Sprintf("first step participant %q is not the manufacturer %q", first.Participant, product.Manufacturer)))
		}
		prev := first.Timestamp
		for _, step := range history[1:] {
			if step.Timestamp.Before(prev) {
				res.Violations = append(res.Violations, blockProduct(RuleHistoryIntegrity, product.ID,
					fmt.Sprintf("step %d timestamp precedes step %d", step.Seq, step.Seq-1)))
			}
			prev = step.Timestamp
		}
		if err := domain.VerifyChain(product.ID, history); err != nil {
			res.Violations = append(res.Violations, blockProduct(RuleHistoryIntegrity, product.ID, err.Error()))
		}
	}
	return res, nil
}

// ownerAuthorizedRule blocks any product state whose manufacturer or
// current owner is not an authorized participant.
type ownerAuthorizedRule struct{}

func (ownerAuthorizedRule) Name() string { return RuleOwnerAuthorized }

func (ownerAuthorizedRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, ch := range changes {
		if ch.Entity != domain.EntityProduct {
			continue
		}
		product, ok := ch.After.(domain.Product)
		if !ok {
			continue
		}
		if p, ok := view.FindParticipant(product.CurrentOwner); !ok || !p.Authorized {
			res.Violations = append(res.Violations, blockProduct(RuleOwnerAuthorized, product.ID,
				fmt.Sprintf("current owner %q is not authorized", product.CurrentOwner)))
		}
		if ch.Action == domain.ActionCreate {
			if p, ok := view.FindParticipant(product.Manufacturer); !ok || !p.Authorized {
				res.Violations = append(res.Violations, blockProduct(RuleOwnerAuthorized, product.ID,
					fmt.Sprintf("manufacturer %q is not authorized", product.Manufacturer)))
			}
		}
	}
	return res, nil
}
