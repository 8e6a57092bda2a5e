package eval

import "github.com/sonlang/son/value"

// registerStringPrimitives installs String's primitives, grounded on
// vm/string_primitives.go's concat/length/equals trio.
func registerStringPrimitives(t PrimitiveTable) {
	t[PrimStringConcat] = func(ev *Evaluator, receiver value.Value, args []value.Value, env *value.Environment) (value.Value, error) {
		if receiver.Kind != value.KindString {
			return value.Null(), argErrorf(",: sent to non-String receiver")
		}
		if len(args) != 1 || args[0].Kind != value.KindString {
			return value.Null(), argErrorf(",: expects exactly one String argument")
		}
		return value.String(receiver.AsString() + args[0].AsString()), nil
	}
	t[PrimStringLength] = func(ev *Evaluator, receiver value.Value, args []value.Value, env *value.Environment) (value.Value, error) {
		if receiver.Kind != value.KindString {
			return value.Null(), argErrorf("length sent to non-String receiver")
		}
		return value.Number(float64(len([]rune(receiver.AsString())))), nil
	}
	t[PrimStringEquals] = func(ev *Evaluator, receiver value.Value, args []value.Value, env *value.Environment) (value.Value, error) {
		if receiver.Kind != value.KindString {
			return value.Null(), argErrorf("#= sent to non-String receiver")
		}
		if len(args) != 1 {
			return value.Null(), argErrorf("#= expects exactly one argument")
		}
		return value.Boolean(args[0].Kind == value.KindString && receiver.AsString() == args[0].AsString()), nil
	}
}
