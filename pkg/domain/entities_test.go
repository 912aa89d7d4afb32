package domain

import (
	"errors"
	"testing"
)

func TestProductCloneIsDeep(t *testing.T) {
	p := Product{ID: 7, Name: "Shirt", Certifications: []string{"organic", "fair-trade"}}
	clone := p.Clone()
	clone.Certifications[0] = "altered"
	clone.Name = "Other"
	if p.Certifications[0] != "organic" {
		t.Fatalf("clone shares certification backing array: %v", p.Certifications)
	}
	if p.Name != "Shirt" {
		t.Fatalf("clone mutated source name: %q", p.Name)
	}
}

func TestProductCloneNilCertifications(t *testing.T) {
	p := Product{ID: 1}
	if got := p.Clone().Certifications; got != nil {
		t.Fatalf("expected nil certifications, got %v", got)
	}
}

func TestCloneStepsIsSnapshot(t *testing.T) {
	steps := []SupplyChainStep{{Seq: 1, Action: "Product Manufactured"}, {Seq: 2, Action: "Shipped"}}
	snap := CloneSteps(steps)
	snap[0].Action = "tampered"
	if steps[0].Action != "Product Manufactured" {
		t.Fatalf("snapshot shares backing array: %q", steps[0].Action)
	}
	if CloneSteps(nil) != nil {
		t.Fatalf("expected nil snapshot for nil history")
	}
}

func TestResultMergeAndBlocking(t *testing.T) {
	var r Result
	if r.HasBlocking() {
		t.Fatalf("empty result must not block")
	}
	r.Merge(Result{})
	if len(r.Violations) != 0 {
		t.Fatalf("merging empty result added violations: %v", r.Violations)
	}
	r.Merge(Result{Violations: []Violation{{Rule: "a", Severity: SeverityWarn}}})
	if r.HasBlocking() {
		t.Fatalf("warn severity must not block")
	}
	r.Merge(Result{Violations: []Violation{{Rule: "b", Severity: SeverityBlock}}})
	if !r.HasBlocking() {
		t.Fatalf("block severity must block")
	}
	if len(r.Violations) != 2 {
		t.Fatalf("expected 2 violations, got %d", len(r.Violations))
	}
}

func TestTypedErrorsCarryContext(t *testing.T) {
	var notFound ErrNotFound
	err := error(ErrNotFound{ProductID: 42})
	if !errors.As(err, &notFound) || notFound.ProductID != 42 {
		t.Fatalf("ErrNotFound lost product id: %v", err)
	}

	cases := []struct {
		err  error
		want string
	}{
		{ErrNotFound{ProductID: 3}, "product 3 not found"},
		{ErrNotAuthorized{Identity: "0xabc"}, `participant "0xabc" is not authorized`},
		{ErrUnauthorized{Identity: "0xabc"}, `identity "0xabc" is not the registry admin`},
		{ErrSelfTransfer{Identity: "0xabc", ProductID: 9}, `participant "0xabc" cannot transfer product 9 to itself`},
		{ErrAlreadyAuthorized{Identity: "0xabc", Role: "supplier"}, `participant "0xabc" is already authorized with role "supplier"`},
		{ErrInvalidTarget{}, "authorization target identity is empty"},
		{ErrAlreadyInitialized{ProductID: 5}, "history for product 5 is already initialized"},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Fatalf("error text %q, want %q", got, tc.want)
		}
	}
}
