package ecs

import "testing"

func TestRunInStateEvaluatesAgainstProvider(t *testing.T) {
	state := "combat"
	cond := RunInState(func() string { return state }, "combat")

	ok, err := cond.Eval()
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !ok {
		t.Fatalf("expected condition to hold while state == combat")
	}

	state = "menu"
	ok, err = cond.Eval()
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if ok {
		t.Fatalf("expected condition to fail once state changed")
	}
}

func TestRunNotInStateEvaluatesAgainstProvider(t *testing.T) {
	state := "menu"
	cond := RunNotInState(func() string { return state }, "combat")

	ok, err := cond.Eval()
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !ok {
		t.Fatalf("expected condition to hold while state != combat")
	}
}

func TestConditionCacheGateRequiresRefresh(t *testing.T) {
	cache := NewConditionCache()
	cond := RunCondition{Key: "k", Eval: func() (bool, error) { return true, nil }}

	if cache.Gate([]RunCondition{cond}) {
		t.Fatalf("expected gate closed before refresh")
	}

	if err := cache.Refresh([]RunCondition{cond}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !cache.Gate([]RunCondition{cond}) {
		t.Fatalf("expected gate open after refresh")
	}
}

func TestConditionCacheGateIsConjunctive(t *testing.T) {
	cache := NewConditionCache()
	trueCond := RunCondition{Key: "a", Eval: func() (bool, error) { return true, nil }}
	falseCond := RunCondition{Key: "b", Eval: func() (bool, error) { return false, nil }}

	if err := cache.Refresh([]RunCondition{trueCond, falseCond}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if cache.Gate([]RunCondition{trueCond, falseCond}) {
		t.Fatalf("expected gate closed when any condition is false")
	}
	if !cache.Gate([]RunCondition{trueCond}) {
		t.Fatalf("expected gate open when checking only the true condition")
	}
}

func TestConditionCacheRefreshDeduplicatesByKey(t *testing.T) {
	cache := NewConditionCache()
	calls := 0
	cond := RunCondition{Key: "dup", Eval: func() (bool, error) {
		calls++
		return true, nil
	}}

	if err := cache.Refresh([]RunCondition{cond, cond, cond}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 evaluation for duplicate keys, got %d", calls)
	}
}

func TestConditionCacheRefreshWrapsEvalError(t *testing.T) {
	cache := NewConditionCache()
	boom := RunCondition{Key: "boom", Eval: func() (bool, error) { return false, errBoom }}

	err := cache.Refresh([]RunCondition{boom})
	if err == nil {
		t.Fatalf("expected error from failing condition")
	}
}

var errBoom = &conditionTestError{"boom"}

type conditionTestError struct{ msg string }

func (e *conditionTestError) Error() string { return e.msg }
