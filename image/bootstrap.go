// Package image builds and persists the SON environment: the bootstrap
// base classes, the base-environment loader (§4.8), and the SQLite-backed
// persistent store (§4.12). Grounded on lib/runtime/persistence.go and
// lib/runtime/runtime.go's Config/New/Close lifecycle.
package image

import (
	"log/slog"
	"sync"

	"github.com/sonlang/son/bridge"
	"github.com/sonlang/son/eval"
	"github.com/sonlang/son/value"
)

// Bootstrap builds the closed set of base classes every SON image needs
// (Object, Number, String, Boolean, Symbol, UndefinedObject, BlockClosure)
// and binds the Bridge, returning the fresh root environment. Primitive
// tags are bound exactly once here; SON code can never add to this table
// (§4.5 — "a closed, named set").
//
// mu is the lock the returned Bridge's setTimeout:delay: callbacks take
// before re-entering ev against root; callers that also serve the HTTP
// surface against this same root should reuse the same mutex there.
func Bootstrap(ev *eval.Evaluator, log *slog.Logger, mu *sync.Mutex, fetchCfg bridge.Config) *value.Environment {
	root := value.NewRootEnvironment()

	object := newClass("Object")
	bindPrimitives(object, map[string]string{
		"=":          eval.PrimEquals,
		"~=":         eval.PrimNotEquals,
		"==":         eval.PrimIdentityEquals,
		"~~":         eval.PrimIdentityNotEquals,
		"class":      eval.PrimClassOf,
		"printString": eval.PrimPrintString,
		"defineMethod:args:body:": eval.PrimEnvDefineMethod,
	})
	root.Set("Object", value.FromClassTable(object))

	number := newClass("Number")
	bindPrimitives(number, map[string]string{
		"+":        eval.PrimNumberAdd,
		"-":        eval.PrimNumberSubtract,
		"*":        eval.PrimNumberMultiply,
		"/":        eval.PrimNumberDivide,
		"<":        eval.PrimNumberLess,
		">":        eval.PrimNumberGreater,
		"<=":       eval.PrimNumberLessEqual,
		">=":       eval.PrimNumberGreaterEqual,
		"=":        eval.PrimNumberEquals,
		"toString": eval.PrimNumberToString,
	})
	root.Set("Number", value.FromClassTable(number))

	str := newClass("String")
	bindPrimitives(str, map[string]string{
		",":      eval.PrimStringConcat,
		"length": eval.PrimStringLength,
		"=":      eval.PrimStringEquals,
	})
	root.Set("String", value.FromClassTable(str))

	boolean := newClass("Boolean")
	bindPrimitives(boolean, map[string]string{
		"and:":         eval.PrimBooleanAnd,
		"or:":          eval.PrimBooleanOr,
		"not":          eval.PrimBooleanNot,
		"ifTrue:":      eval.PrimIfTrue,
		"ifFalse:":     eval.PrimIfFalse,
		"ifTrue:ifFalse:": eval.PrimIfTrueIfFalse,
	})
	root.Set("Boolean", value.FromClassTable(boolean))

	symbol := newClass("Symbol")
	bindPrimitives(symbol, map[string]string{
		"toString": eval.PrimSymbolToString,
		"=":        eval.PrimSymbolEquals,
	})
	root.Set("Symbol", value.FromClassTable(symbol))

	undefined := newClass("UndefinedObject")
	bindPrimitives(undefined, map[string]string{
		"ifNil:":         eval.PrimNilIfNil,
		"ifNotNil:":      eval.PrimNilIfNotNil,
		"ifNil:ifNotNil:": eval.PrimNilIfNilIfNotNil,
	})
	root.Set("UndefinedObject", value.FromClassTable(undefined))

	// BlockClosure carries no primitive bindings: value-family sends and
	// whileTrue: are intercepted by sendMessage before class resolution
	// ever runs (eval/dispatch.go), so this table only exists to give
	// #class and #printString on a Block something to resolve to (via
	// the Object fallback, since this table has no local entries).
	root.Set("BlockClosure", value.FromClassTable(newClass("BlockClosure")))

	root.Set("Bridge", value.FromBridge(bridge.New(log, ev, mu, fetchCfg)))

	return root
}

func newClass(name string) *value.Environment {
	c := value.NewRootEnvironment()
	c.SetName(name)
	return c
}

func bindPrimitives(class *value.Environment, selectors map[string]string) {
	for selector, tag := range selectors {
		class.DefinePrimitiveMethod(selector, tag)
	}
}
