package eval

import "github.com/sonlang/son/value"

// registerSymbolPrimitives installs Symbol's primitives: toString and
// name equality, grounded on the same vm/string_primitives.go shape
// Symbol shares with String in the teacher's value model.
func registerSymbolPrimitives(t PrimitiveTable) {
	t[PrimSymbolToString] = func(ev *Evaluator, receiver value.Value, args []value.Value, env *value.Environment) (value.Value, error) {
		if receiver.Kind != value.KindSymbol {
			return value.Null(), argErrorf("toString sent to non-Symbol receiver")
		}
		return value.String(receiver.AsString()), nil
	}
	t[PrimSymbolEquals] = func(ev *Evaluator, receiver value.Value, args []value.Value, env *value.Environment) (value.Value, error) {
		if receiver.Kind != value.KindSymbol {
			return value.Null(), argErrorf("#= sent to non-Symbol receiver")
		}
		if len(args) != 1 {
			return value.Null(), argErrorf("#= expects exactly one argument")
		}
		return value.Boolean(args[0].Kind == value.KindSymbol && receiver.AsString() == args[0].AsString()), nil
	}
}
