package domain

import (
	"context"
	"errors"
	"testing"
)

type stubRule struct {
	name   string
	result Result
	err    error
	calls  int
}

func (r *stubRule) Name() string { return r.name }

func (r *stubRule) Evaluate(context.Context, RuleView, []Change) (Result, error) {
	r.calls++
	return r.result, r.err
}

func TestRulesEngineMergesResults(t *testing.T) {
	warn := &stubRule{name: "warn", result: Result{Violations: []Violation{{Rule: "warn", Severity: SeverityWarn}}}}
	block := &stubRule{name: "block", result: Result{Violations: []Violation{{Rule: "block", Severity: SeverityBlock}}}}
	engine := NewRulesEngine(warn, block)

	res, err := engine.Evaluate(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 2 || !res.HasBlocking() {
		t.Fatalf("unexpected merged result: %+v", res)
	}
	if warn.calls != 1 || block.calls != 1 {
		t.Fatalf("rules not each evaluated once: %d %d", warn.calls, block.calls)
	}
}

func TestRulesEngineStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	failing := &stubRule{name: "failing", err: boom}
	after := &stubRule{name: "after"}
	engine := NewRulesEngine(failing, after)

	if _, err := engine.Evaluate(context.Background(), nil, nil); !errors.Is(err, boom) {
		t.Fatalf("expected rule error to propagate, got %v", err)
	}
	if after.calls != 0 {
		t.Fatalf("later rule evaluated after error")
	}
}

func TestNilEngineEvaluatesEmpty(t *testing.T) {
	var engine *RulesEngine
	res, err := engine.Evaluate(context.Background(), nil, nil)
	if err != nil || len(res.Violations) != 0 {
		t.Fatalf("nil engine should evaluate empty: %+v %v", res, err)
	}
}

func TestRulesReturnsCopy(t *testing.T) {
	engine := NewRulesEngine(&stubRule{name: "only"})
	rules := engine.Rules()
	rules[0] = nil
	if engine.Rules()[0] == nil {
		t.Fatalf("Rules exposed internal slice")
	}
}
