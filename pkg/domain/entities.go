// Package domain defines the registry's persistent entities, value types,
// typed failures, and rule evaluation primitives used by provcore.
package domain

import (
	"time"
)

// EntityType identifies the type of record stored in the registry.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityParticipant identifies an authorized participant record.
	EntityParticipant EntityType = "participant"
	// EntityProduct identifies a tracked product record.
	EntityProduct EntityType = "product"
	// EntitySupplyChainStep identifies one custody event in a product history.
	EntitySupplyChainStep EntityType = "supply_chain_step"
)

// Role values are free-text tags carried by participants. The registry
// attaches no behavior to them beyond RoleAdmin, which marks the single
// bootstrap identity.
const (
	RoleManufacturer = "manufacturer"
	RoleSupplier     = "supplier"
	RoleDistributor  = "distributor"
	RoleRetailer     = "retailer"
	RoleAdmin        = "admin"
)

// Participant is an identity authorized to act within the registry.
// Participants are never deleted and their role is immutable once set.
type Participant struct {
	Identity   string `json:"identity"`
	Role       string `json:"role"`
	Authorized bool   `json:"authorized"`
}

// Product is a tracked item. Every field except CurrentOwner is immutable
// after creation; CurrentOwner changes only through a transfer.
type Product struct {
	ID             uint64    `json:"id"`
	Name           string    `json:"name"`
	MaterialType   string    `json:"material_type"`
	Origin         string    `json:"origin"`
	Manufacturer   string    `json:"manufacturer"`
	CurrentOwner   string    `json:"current_owner"`
	CreatedAt      time.Time `json:"created_at"`
	Certifications []string  `json:"certifications,omitempty"`
	IsAuthentic    bool      `json:"is_authentic"`
	Price          float64   `json:"price"`
}

// Clone returns a deep copy safe to hand to callers.
func (p Product) Clone() Product {
	out := p
	if p.Certifications != nil {
		out.Certifications = append([]string(nil), p.Certifications...)
	}
	return out
}

// SupplyChainStep is one immutable custody event in a product's history.
// Role is captured by value at the time of the step; a later role change
// never rewrites past steps. Seq is the 1-based position in the history,
// and Hash/PrevHash chain the steps for tamper evidence.
type SupplyChainStep struct {
	Participant string    `json:"participant"`
	Role        string    `json:"role"`
	Timestamp   time.Time `json:"timestamp"`
	Location    string    `json:"location"`
	Action      string    `json:"action"`
	Notes       string    `json:"notes"`
	Seq         uint64    `json:"seq"`
	PrevHash    string    `json:"prev_hash,omitempty"`
	Hash        string    `json:"hash"`
}

// CloneSteps copies a history snapshot so callers cannot mutate stored state.
func CloneSteps(steps []SupplyChainStep) []SupplyChainStep {
	if steps == nil {
		return nil
	}
	return append([]SupplyChainStep(nil), steps...)
}

// ProductInput carries the caller-supplied fields of a registration.
type ProductInput struct {
	Name           string   `json:"name"`
	MaterialType   string   `json:"material_type"`
	Origin         string   `json:"origin"`
	Price          float64  `json:"price"`
	Certifications []string `json:"certifications,omitempty"`
}

// TransferInput carries the caller-supplied fields of an ownership transfer.
type TransferInput struct {
	To       string `json:"to"`
	Location string `json:"location"`
	Action   string `json:"action"`
	Notes    string `json:"notes"`
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate the mutations captured in rule evaluation and audit.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was mutated in place.
	ActionUpdate Action = "update"
	// ActionAppend indicates an element was appended to an owned sequence.
	ActionAppend Action = "append"
)

// Change captures a single entity mutation inside an atomic unit.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Severity indicates how a rule violation affects a mutation.
type Severity string

// Rule severities.
const (
	// SeverityBlock rejects the mutation.
	SeverityBlock Severity = "block"
	// SeverityWarn records the violation but lets the mutation commit.
	SeverityWarn Severity = "warn"
	// SeverityLog is informational only.
	SeverityLog Severity = "log"
)

// Violation describes a broken invariant detected by a rule.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "mutation blocked by rules"
}
