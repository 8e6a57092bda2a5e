package eval

import "github.com/sonlang/son/value"

// registerNilPrimitives installs UndefinedObject's ifNil:/ifNotNil:
// family. Only the null receiver ever reaches these; Object's fallback
// method table has no ifNil: entry, so sending ifNil: to a non-null
// receiver is message-not-understood, matching Smalltalk convention
// where ifNil: lives on UndefinedObject and on Object's "not nil" path
// via a separate class-specific binding rather than a shared default.
func registerNilPrimitives(t PrimitiveTable) {
	t[PrimNilIfNil] = func(ev *Evaluator, receiver value.Value, args []value.Value, env *value.Environment) (value.Value, error) {
		block, err := oneBlock("ifNil:", args)
		if err != nil {
			return value.Null(), err
		}
		return ev.InvokeBlock(block, nil)
	}
	t[PrimNilIfNotNil] = func(ev *Evaluator, receiver value.Value, args []value.Value, env *value.Environment) (value.Value, error) {
		if _, err := oneBlock("ifNotNil:", args); err != nil {
			return value.Null(), err
		}
		return value.Null(), nil
	}
	t[PrimNilIfNilIfNotNil] = func(ev *Evaluator, receiver value.Value, args []value.Value, env *value.Environment) (value.Value, error) {
		if len(args) != 2 {
			return value.Null(), argErrorf("ifNil:ifNotNil: expects exactly 2 arguments")
		}
		nilBlock := args[0].AsBlock()
		notNilBlock := args[1].AsBlock()
		if nilBlock == nil || notNilBlock == nil {
			return value.Null(), argErrorf("ifNil:ifNotNil: arguments must be Blocks")
		}
		return ev.InvokeBlock(nilBlock, nil)
	}
}
