// Package eval implements the SON tree-walking evaluator: AST
// classification, message dispatch, return-signal propagation, and the
// primitive table. It is the core described in spec §2 components
// C4-C7.
package eval

import (
	"context"
	"log/slog"

	"github.com/sonlang/son/value"
)

// Evaluator holds everything evaluation needs beyond the AST and the
// current Environment: the primitive table and a logger for C10's
// per-send debug tracing. A zero Evaluator is not usable; use New.
type Evaluator struct {
	primitives PrimitiveTable
	log        *slog.Logger
}

// New creates an Evaluator with the full built-in primitive table
// installed and the given logger (nil is replaced with slog.Default()).
func New(log *slog.Logger) *Evaluator {
	if log == nil {
		log = slog.Default()
	}
	return &Evaluator{primitives: NewPrimitiveTable(), log: log}
}

// Evaluate runs node against env and returns its value. This is the one
// entry point callers outside this package use; it is responsible for
// converting an escaping, unmatched return signal into a SonError per
// spec §7 ("An unmatched return signal at the top of an evaluation
// surfaces as SonError") so that no control-signal type ever leaks past
// package eval's boundary.
func (ev *Evaluator) Evaluate(n node, env *value.Environment) (result value.Value, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		switch r.(type) {
		case localReturn, nonLocalReturn:
			result = value.Null()
			err = sonErrorf("^ used outside of any active method context")
		default:
			panic(r)
		}
	}()
	return ev.evaluate(n, env)
}

// logSend emits the per-send debug record §4.9 calls for: receiver class,
// selector, and whether dispatch resolved to a primitive or a SON method.
// Gated on the logger's debug level so it costs nothing when disabled.
func (ev *Evaluator) logSend(receiver value.Value, selector, dispatch string) {
	if !ev.log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	ev.log.Debug("message send", "tag", "eval", "class", value.ClassNameFor(receiver), "selector", selector, "dispatch", dispatch)
}

// evaluate is the internal recursive procedure. It never recovers a
// control signal itself; only sendMessage's method-activation catch
// point, InvokeBlock (for signals a block cannot pass on), and Evaluate's
// top-level guard do.
func (ev *Evaluator) evaluate(n node, env *value.Environment) (value.Value, error) {
	switch x := n.(type) {
	case nil:
		return value.Null(), nil
	case bool:
		return value.Boolean(x), nil
	case float64:
		return value.Number(x), nil
	case string:
		if name, ok := variableName(x); ok {
			if name == "env" {
				return value.FromClassTable(env), nil
			}
			v, err := env.Get(name)
			if err != nil {
				return value.Null(), err
			}
			return v, nil
		}
		return value.String(x), nil
	case []any:
		return ev.evaluateArray(x, env)
	case map[string]any:
		if name, ok := symbolName(x); ok {
			return value.Symbol(name), nil
		}
		return value.Null(), sonErrorf("malformed AST node: unrecognised object literal")
	default:
		return value.Null(), sonErrorf("malformed AST node: unrecognised literal type")
	}
}

func (ev *Evaluator) evaluateArray(arr []any, env *value.Environment) (value.Value, error) {
	if len(arr) == 0 {
		return value.Null(), nil
	}

	// Reserved forms, checked before any user-message interpretation.
	if head, ok := arr[0].(string); ok {
		switch head {
		case "^":
			return ev.evaluateReturn(arr, env)
		case "define:args:body:":
			return ev.evaluateDefine(arr, env)
		}
	}
	if len(arr) == 3 {
		if sel, ok := arr[1].(string); ok && sel == "cascade:" {
			return ev.evaluateCascade(arr, env)
		}
		if sel, ok := arr[1].(string); ok && sel == "=>:" {
			return ev.evaluateBlockLiteral(arr, env)
		}
	}
	if len(arr) == 2 {
		if head, ok := arr[0].(string); ok {
			if name, ok := isAssignmentSelector(head); ok {
				return ev.evaluateAssignment(name, arr[1], env)
			}
		}
	}

	if sel, ok := sendSelector(arr); ok {
		return ev.evaluateSend(arr[0], sel, arr[2:], env)
	}

	return ev.evaluateSequence(arr, env)
}

// sendSelector decides whether arr is a unary, binary, or keyword send and
// returns the selector if so. A keyword selector with a mismatched arity
// is reported by the caller as an ArgumentError, never as a fallback to
// sequence evaluation (spec §4.1: "mismatch is an error, not a fallback").
func sendSelector(arr []any) (string, bool) {
	if len(arr) < 2 {
		return "", false
	}
	sel, ok := arr[1].(string)
	if !ok {
		return "", false
	}
	if colonCount(sel) > 0 {
		return sel, true
	}
	switch len(arr) {
	case 2, 3:
		return sel, true
	default:
		return "", false
	}
}

func (ev *Evaluator) evaluateReturn(arr []any, env *value.Environment) (value.Value, error) {
	if len(arr) != 2 {
		return value.Null(), sonErrorf("malformed ^: expected [\"^\", expr]")
	}
	v, err := ev.evaluate(arr[1], env)
	if err != nil {
		return value.Null(), err
	}
	if env.IsMethodContext() {
		panic(localReturn{Value: v})
	}
	target := env.NearestMethodContext()
	if target == nil {
		return value.Null(), sonErrorf("^ used outside of any method context")
	}
	panic(nonLocalReturn{Value: v, Target: target})
}

func (ev *Evaluator) evaluateDefine(arr []any, env *value.Environment) (value.Value, error) {
	if len(arr) != 4 {
		return value.Null(), sonErrorf("malformed define:args:body:: expected 4 elements")
	}
	selector, ok := arr[1].(string)
	if !ok || selector == "" {
		return value.Null(), sonErrorf("malformed define:args:body:: selector must be a non-empty string")
	}
	argNames, ok := argNamesOf(arr[2])
	if !ok {
		return value.Null(), sonErrorf("malformed define:args:body:: argument names must be an array of strings")
	}
	env.DefineMethod(selector, argNames, arr[3])
	return value.Symbol(selector), nil
}

func (ev *Evaluator) evaluateAssignment(name string, valueNode node, env *value.Environment) (value.Value, error) {
	v, err := ev.evaluate(valueNode, env)
	if err != nil {
		return value.Null(), err
	}
	env.Set(name, v)
	return v, nil
}

func (ev *Evaluator) evaluateCascade(arr []any, env *value.Environment) (value.Value, error) {
	receiver, err := ev.evaluate(arr[0], env)
	if err != nil {
		return value.Null(), err
	}
	messages, ok := arr[2].([]any)
	if !ok {
		return value.Null(), sonErrorf("malformed cascade:: expected an array of messages")
	}
	for _, m := range messages {
		selector, args, err := ev.decodeCascadeMessage(m, env)
		if err != nil {
			return value.Null(), err
		}
		if _, err := ev.sendMessage(receiver, selector, args, env); err != nil {
			return value.Null(), err
		}
	}
	return receiver, nil
}

// decodeCascadeMessage evaluates one cascade entry: either a bare selector
// string (unary, no args) or [selector, arg1, ...argN].
func (ev *Evaluator) decodeCascadeMessage(m node, env *value.Environment) (string, []value.Value, error) {
	if sel, ok := m.(string); ok {
		return sel, nil, nil
	}
	arr, ok := m.([]any)
	if !ok || len(arr) == 0 {
		return "", nil, sonErrorf("malformed cascade message")
	}
	selector, ok := arr[0].(string)
	if !ok {
		return "", nil, sonErrorf("malformed cascade message: selector must be a string")
	}
	args := make([]value.Value, len(arr)-1)
	for i, a := range arr[1:] {
		v, err := ev.evaluate(a, env)
		if err != nil {
			return "", nil, err
		}
		args[i] = v
	}
	return selector, args, nil
}

func (ev *Evaluator) evaluateBlockLiteral(arr []any, env *value.Environment) (value.Value, error) {
	argNames, ok := argNamesOf(arr[0])
	if !ok {
		return value.Null(), sonErrorf("malformed block literal: argument names must be an array of strings")
	}
	block := &value.Block{
		ArgNames:    argNames,
		Body:        arr[2],
		LexicalEnv:  env,
		HomeContext: env.NearestMethodContext(),
	}
	return value.FromBlock(block), nil
}

func (ev *Evaluator) evaluateSend(receiverNode node, selector string, argNodes []any, env *value.Environment) (value.Value, error) {
	if colonCount(selector) > 0 && len(argNodes) != colonCount(selector) {
		return value.Null(), argErrorf("keyword send %q expects %d argument(s), got %d", selector, colonCount(selector), len(argNodes))
	}
	receiver, err := ev.evaluate(receiverNode, env)
	if err != nil {
		return value.Null(), err
	}
	args := make([]value.Value, len(argNodes))
	for i, a := range argNodes {
		v, err := ev.evaluate(a, env)
		if err != nil {
			return value.Null(), err
		}
		args[i] = v
	}
	return ev.sendMessage(receiver, selector, args, env)
}

func (ev *Evaluator) evaluateSequence(arr []any, env *value.Environment) (value.Value, error) {
	var result value.Value
	for _, e := range arr {
		v, err := ev.evaluate(e, env)
		if err != nil {
			return value.Null(), err
		}
		result = v
	}
	return result, nil
}
