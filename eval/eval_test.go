package eval_test

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/sonlang/son/bridge"
	"github.com/sonlang/son/eval"
	"github.com/sonlang/son/image"
	"github.com/sonlang/son/value"
)

// newTestEnv builds a fresh root environment with the full base-class
// bootstrap, mirroring what cmd/sonserver wires at startup, so evaluator
// tests exercise real primitive dispatch rather than a hand-rolled stub.
func newTestEnv() (*eval.Evaluator, *value.Environment) {
	ev := eval.New(nil)
	root := image.Bootstrap(ev, nil, &sync.Mutex{}, bridge.Config{})
	return ev, root
}

func mustEval(t *testing.T, ev *eval.Evaluator, program any, env *value.Environment) value.Value {
	t.Helper()
	v, err := ev.Evaluate(program, env)
	if err != nil {
		t.Fatalf("Evaluate(%v) returned error: %v", program, err)
	}
	return v
}

// TestScenarioS1ArithmeticPrecedence covers spec scenario S1: nested
// sends evaluate the inner send before the outer one consumes its result.
func TestScenarioS1ArithmeticPrecedence(t *testing.T) {
	ev, root := newTestEnv()
	program := []any{1.0, "+", []any{2.0, "*", 3.0}}
	got := mustEval(t, ev, program, root)
	if got.Kind != value.KindNumber || got.AsNumber() != 7 {
		t.Errorf("got %v, want 7", got.PrintString())
	}
}

// TestScenarioS2LexicalScopeAndAssignment covers spec scenario S2: a
// variable assigned in a scope is visible to a later read in that scope.
func TestScenarioS2LexicalScopeAndAssignment(t *testing.T) {
	ev, root := newTestEnv()
	child := root.CreateChild(value.ChildOptions{})
	program := []any{
		[]any{"x:", 10.0},
		[]any{"x:", []any{"$x", "+", 5.0}},
		"$x",
	}
	got := mustEval(t, ev, program, child)
	if got.Kind != value.KindNumber || got.AsNumber() != 15 {
		t.Errorf("got %v, want 15", got.PrintString())
	}
}

// TestAssignmentLocality verifies property 2: assigning $x in a child
// scope never mutates $x in the parent.
func TestAssignmentLocality(t *testing.T) {
	ev, root := newTestEnv()
	root.Set("x", value.Number(1))
	child := root.CreateChild(value.ChildOptions{})
	mustEval(t, ev, []any{"x:", 99.0}, child)

	parentX, err := root.Get("x")
	if err != nil {
		t.Fatalf("root.Get(x): %v", err)
	}
	if parentX.AsNumber() != 1 {
		t.Errorf("parent's x changed to %v, want unchanged 1", parentX.PrintString())
	}

	childX, err := child.Get("x")
	if err != nil {
		t.Fatalf("child.Get(x): %v", err)
	}
	if childX.AsNumber() != 99 {
		t.Errorf("child's x = %v, want 99", childX.PrintString())
	}
}

// TestEvaluationOrder verifies property 3 using side-effecting assignment
// sends as a trace: each argument's assignment must take effect before the
// next argument is evaluated.
func TestEvaluationOrder(t *testing.T) {
	ev, root := newTestEnv()
	child := root.CreateChild(value.ChildOptions{})
	program := []any{
		[]any{"order:", ""},
		[]any{
			[]any{"a:", []any{"order:", []any{"$order", ",", "a"}}},
			"+",
			[]any{"b:", []any{"order:", []any{"$order", ",", "b"}}},
		},
	}
	// program is malformed as arithmetic (order holds a string, not a
	// number); what matters is only that both "a:" and "b:" run, and in
	// the right sequence, before the outer send is attempted.
	_, _ = ev.Evaluate(program, child)

	order, err := child.Get("order")
	if err != nil {
		t.Fatalf("child.Get(order): %v", err)
	}
	if order.AsString() != "ab" {
		t.Errorf("evaluation order recorded %q, want \"ab\"", order.AsString())
	}
}

// TestCascadeIdentity exercises property 4 directly: the receiver is
// evaluated exactly once regardless of how many cascaded messages are sent
// to it.
func TestCascadeIdentity(t *testing.T) {
	ev, root := newTestEnv()
	child := root.CreateChild(value.ChildOptions{})
	child.Set("calls", value.Number(0))
	// Build a tiny counter by assigning through a side-effecting read:
	// every evaluation of $calls-returning expression bumps a counter in
	// the enclosing scope, so we can detect how many times the receiver
	// expression itself is (re-)evaluated.
	receiverExpr := []any{"calls:", []any{"$calls", "+", 1.0}}
	program := []any{receiverExpr, "cascade:", []any{"printString", "printString"}}
	mustEval(t, ev, program, child)

	calls, err := child.Get("calls")
	if err != nil {
		t.Fatalf("child.Get(calls): %v", err)
	}
	if calls.AsNumber() != 1 {
		t.Errorf("receiver expression evaluated %v times, want exactly 1", calls.PrintString())
	}
}

// TestScenarioS4IfTrueIfFalse covers spec scenario S4.
func TestScenarioS4IfTrueIfFalse(t *testing.T) {
	ev, root := newTestEnv()
	program := []any{
		true, "ifTrue:ifFalse:",
		[]any{[]any{}, "=>:", []any{"yes"}},
		[]any{[]any{}, "=>:", []any{"no"}},
	}
	got := mustEval(t, ev, program, root)
	if got.Kind != value.KindString || got.AsString() != "yes" {
		t.Errorf("got %v, want \"yes\"", got.PrintString())
	}
}

// TestImplicitSelfReturn verifies property 5: a method body with no ^
// yields its receiver, not its last statement's value.
func TestImplicitSelfReturn(t *testing.T) {
	ev, root := newTestEnv()
	number := mustClass(t, root, "Number")
	number.DefineMethod("noop", nil, []any{42.0})

	got := mustEval(t, ev, []any{7.0, "noop"}, root)
	if got.Kind != value.KindNumber || got.AsNumber() != 7 {
		t.Errorf("got %v, want receiver 7 (implicit self-return)", got.PrintString())
	}
}

// TestScenarioS5DefineAndInvoke covers spec scenario S5.
func TestScenarioS5DefineAndInvoke(t *testing.T) {
	ev, root := newTestEnv()
	number := mustClass(t, root, "Number")
	number.DefineMethod("double:", []string{"x"}, []any{
		[]any{"^", []any{"$x", "*", 2.0}},
	})

	got := mustEval(t, ev, []any{21.0, "double:", 21.0}, root)
	if got.Kind != value.KindNumber || got.AsNumber() != 42 {
		t.Errorf("got %v, want 42", got.PrintString())
	}
}

// TestNonLocalReturnUnwindsToMethod covers spec scenario S6: invoking m
// returns 99, the value passed to ^ inside the nested block, not the
// block's own (never-reached) trailing value.
func TestNonLocalReturnUnwindsToMethod(t *testing.T) {
	ev, root := newTestEnv()
	object := mustClass(t, root, "Object")
	object.DefineMethod("m", nil, []any{
		[]any{
			[]any{[]any{}, "=>:", []any{[]any{"^", 99.0}}},
			"value",
		},
	})

	got := mustEval(t, ev, []any{1.0, "m"}, root)
	if got.Kind != value.KindNumber || got.AsNumber() != 99 {
		t.Errorf("got %v, want 99", got.PrintString())
	}
}

// TestScenarioS7ReturnOutsideMethodIsSonError covers spec scenario S7.
func TestScenarioS7ReturnOutsideMethodIsSonError(t *testing.T) {
	ev, root := newTestEnv()
	_, err := ev.Evaluate([]any{"^", 1.0}, root)
	if err == nil {
		t.Fatal("expected an error for ^ at top level, got nil")
	}
	var sonErr *eval.SonError
	if !asSonError(err, &sonErr) {
		t.Errorf("got error of type %T, want *eval.SonError", err)
	}
}

// TestReturnTargetingUnwindsThroughMultipleFrames verifies property 6 more
// strongly than S6 alone: a non-local return fired from a block nested two
// levels deep (block inside block) still lands exactly on the owning
// method's activation, skipping both intervening block frames.
func TestReturnTargetingUnwindsThroughMultipleFrames(t *testing.T) {
	ev, root := newTestEnv()
	object := mustClass(t, root, "Object")
	object.DefineMethod("m", nil, []any{
		[]any{
			[]any{[]any{}, "=>:", []any{
				[]any{
					[]any{[]any{}, "=>:", []any{[]any{"^", 7.0}}},
					"value",
				},
			}},
			"value",
		},
	})

	got := mustEval(t, ev, []any{1.0, "m"}, root)
	if got.Kind != value.KindNumber || got.AsNumber() != 7 {
		t.Errorf("got %v, want 7", got.PrintString())
	}
}

// TestPrimitiveDivideByZeroRaisesSonError verifies property 7's
// divide-by-zero clause.
func TestPrimitiveDivideByZeroRaisesSonError(t *testing.T) {
	ev, root := newTestEnv()
	_, err := ev.Evaluate([]any{1.0, "/", 0.0}, root)
	if err == nil {
		t.Fatal("expected a division-by-zero error, got nil")
	}
	var sonErr *eval.SonError
	if !asSonError(err, &sonErr) {
		t.Errorf("got error of type %T, want *eval.SonError", err)
	}
}

// TestIfNilIfNotNilRejectsNonBlockNotNilArgument covers §4.5's arity/kind
// check for ifNil:ifNotNil:: the not-nil branch must be a Block too, not
// just the nil branch, so a non-Block second argument raises ArgumentError
// rather than being silently ignored.
func TestIfNilIfNotNilRejectsNonBlockNotNilArgument(t *testing.T) {
	ev, root := newTestEnv()
	program := []any{
		nil,
		"ifNil:ifNotNil:",
		[]any{[]any{}, "=>:", []any{"nil branch"}},
		"not a block",
	}
	_, err := ev.Evaluate(program, root)
	if err == nil {
		t.Fatal("expected an ArgumentError, got nil")
	}
	var argErr *eval.ArgumentError
	if !asArgumentError(err, &argErr) {
		t.Errorf("got error of type %T, want *eval.ArgumentError", err)
	}
}

// TestPrimitiveArithmeticIsDeterministic verifies the rest of property 7:
// evaluating the same arithmetic program twice yields identical results.
func TestPrimitiveArithmeticIsDeterministic(t *testing.T) {
	ev, root := newTestEnv()
	program := []any{3.5, "*", 2.0}
	a := mustEval(t, ev, program, root)
	b := mustEval(t, ev, program, root)
	if a.AsNumber() != b.AsNumber() {
		t.Errorf("got %v and %v, want identical results", a.AsNumber(), b.AsNumber())
	}
}

// TestMethodDefinitionEffect verifies property 8: after define:args:body:
// runs against an environment E, E.LookupMethodLocally reports the new
// method, and further sends against E dispatch to it.
func TestMethodDefinitionEffect(t *testing.T) {
	ev, root := newTestEnv()
	number := mustClass(t, root, "Number")

	if _, ok := number.LookupMethodLocally("triple:"); ok {
		t.Fatal("triple: already defined before the test ran")
	}

	defineProgram := []any{
		"define:args:body:", "triple:", []any{"x"},
		[]any{[]any{"^", []any{"$x", "*", 3.0}}},
	}
	mustEval(t, ev, defineProgram, number)

	if _, ok := number.LookupMethodLocally("triple:"); !ok {
		t.Fatal("triple: not found locally after define:args:body:")
	}

	got := mustEval(t, ev, []any{5.0, "triple:", 5.0}, root)
	if got.AsNumber() != 15 {
		t.Errorf("got %v, want 15", got.PrintString())
	}
}

// TestWhileTrueLoops exercises the resolved-Open-Question whileTrue:
// primitive: it loops while the receiver block evaluates to true,
// running the body block each iteration, and returns nil once the
// receiver evaluates to false. An assignment inside a block binds in that
// block's own fresh scope, so the loop counter lives behind a host Bridge
// object whose count and bump entries read and advance a Go variable.
func TestWhileTrueLoops(t *testing.T) {
	ev, root := newTestEnv()
	child := root.CreateChild(value.ChildOptions{})
	n := 0
	child.Set("counter", value.FromBridge(&value.Bridge{Entries: map[string]value.BridgeFunc{
		"count": func(args []value.Value) (value.Value, error) { return value.Number(float64(n)), nil },
		"bump":  func(args []value.Value) (value.Value, error) { n++; return value.Null(), nil },
	}}))

	program := []any{
		[]any{[]any{}, "=>:", []any{[]any{[]any{"$counter", "count"}, "<", 5.0}}},
		"whileTrue:",
		[]any{[]any{}, "=>:", []any{[]any{"$counter", "bump"}}},
	}
	got := mustEval(t, ev, program, child)

	if !got.IsNull() {
		t.Fatalf("whileTrue: returned %v, want nil", got.PrintString())
	}
	if n != 5 {
		t.Errorf("got n = %v, want 5", n)
	}
}

// TestMessageNotUnderstood checks that an unknown selector against a
// receiver with no matching method, primitive, or fallback surfaces as
// MessageNotUnderstoodError rather than a generic SonError.
func TestMessageNotUnderstood(t *testing.T) {
	ev, root := newTestEnv()
	_, err := ev.Evaluate([]any{1.0, "frobnicate"}, root)
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	var mnu *eval.MessageNotUnderstoodError
	if !asMessageNotUnderstood(err, &mnu) {
		t.Errorf("got error of type %T, want *eval.MessageNotUnderstoodError", err)
	}
	if !strings.Contains(mnu.Error(), "frobnicate") {
		t.Errorf("error message %q does not mention the selector", mnu.Error())
	}
}

// TestDebugLoggingEmitsPerSendRecord covers §4.9: with the logger's level
// at Debug, every message send emits one record carrying the receiver's
// class, the selector, and whether dispatch resolved to a primitive or a
// SON method.
func TestDebugLoggingEmitsPerSendRecord(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ev := eval.New(log)
	root := image.Bootstrap(ev, log, &sync.Mutex{}, bridge.Config{})

	if _, err := ev.Evaluate([]any{1.0, "+", 2.0}, root); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "message send") {
		t.Fatalf("log output %q does not contain a per-send debug record", out)
	}
	if !strings.Contains(out, "class=Number") {
		t.Errorf("log output %q does not mention the receiver class", out)
	}
	if !strings.Contains(out, "selector=+") {
		t.Errorf("log output %q does not mention the selector", out)
	}
	if !strings.Contains(out, "dispatch=primitive") {
		t.Errorf("log output %q does not mention the dispatch kind", out)
	}
}

// TestDebugLoggingSilentBelowDebugLevel verifies the per-send record is
// gated behind the debug flag per §4.9, not emitted unconditionally.
func TestDebugLoggingSilentBelowDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ev := eval.New(log)
	root := image.Bootstrap(ev, log, &sync.Mutex{}, bridge.Config{})

	if _, err := ev.Evaluate([]any{1.0, "+", 2.0}, root); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if strings.Contains(buf.String(), "message send") {
		t.Errorf("per-send debug record was emitted even though the logger's level is Info")
	}
}

// TestEnvDefineMethodPrimitive exercises the $env Open-Question
// resolution: sending defineMethod:args:body: to $env installs a method on
// the current environment that a later ordinary send can dispatch to. The
// program runs in a child of root so that Object, which carries the
// primitive, is reachable from the send's scope chain.
func TestEnvDefineMethodPrimitive(t *testing.T) {
	ev, root := newTestEnv()
	scope := root.CreateChild(value.ChildOptions{})

	// argNames and body must already be runtime Array values, since a bare
	// JSON array in the AST is itself code, not data (§4.1): bind them as
	// pre-built Values and reference them with $ variables rather than
	// writing literal array syntax inline in the program.
	argNames := value.Array([]value.Value{value.String("x")})
	body := value.Array([]value.Value{
		value.Array([]value.Value{
			value.String("^"),
			value.Array([]value.Value{value.String("$x"), value.String("/"), value.Number(2)}),
		}),
	})
	scope.Set("__argNames", argNames)
	scope.Set("__body", body)

	program := []any{
		"$env", "defineMethod:args:body:",
		"half:", "$__argNames", "$__body",
	}
	mustEval(t, ev, program, scope)

	if _, ok := scope.LookupMethodLocally("half:"); !ok {
		t.Fatal("half: not defined via $env defineMethod:args:body:")
	}
	got := mustEval(t, ev, []any{"$env", "half:", 10.0}, scope)
	if got.AsNumber() != 5 {
		t.Errorf("got %v, want 5", got.PrintString())
	}
}

func mustClass(t *testing.T, root *value.Environment, name string) *value.Environment {
	t.Helper()
	v, err := root.Get(name)
	if err != nil {
		t.Fatalf("root.Get(%s): %v", name, err)
	}
	if v.Kind != value.KindClassTable {
		t.Fatalf("%s is not a class table", name)
	}
	return v.AsClassTable()
}

func asSonError(err error, target **eval.SonError) bool {
	if se, ok := err.(*eval.SonError); ok {
		*target = se
		return true
	}
	return false
}

func asMessageNotUnderstood(err error, target **eval.MessageNotUnderstoodError) bool {
	if mnu, ok := err.(*eval.MessageNotUnderstoodError); ok {
		*target = mnu
		return true
	}
	return false
}

func asArgumentError(err error, target **eval.ArgumentError) bool {
	if ae, ok := err.(*eval.ArgumentError); ok {
		*target = ae
		return true
	}
	return false
}
