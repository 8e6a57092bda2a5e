package eval

import "github.com/sonlang/son/value"

// registerObjectPrimitives installs the primitives that every object
// understands regardless of kind, grounded on vm/object_primitives.go's
// equals/identityEquals/class/printString quartet.
func registerObjectPrimitives(t PrimitiveTable) {
	t[PrimEquals] = func(ev *Evaluator, receiver value.Value, args []value.Value, env *value.Environment) (value.Value, error) {
		if len(args) != 1 {
			return value.Null(), argErrorf("#= expects exactly one argument")
		}
		return value.Boolean(receiver.Equals(args[0])), nil
	}
	t[PrimNotEquals] = func(ev *Evaluator, receiver value.Value, args []value.Value, env *value.Environment) (value.Value, error) {
		if len(args) != 1 {
			return value.Null(), argErrorf("#~= expects exactly one argument")
		}
		return value.Boolean(!receiver.Equals(args[0])), nil
	}
	t[PrimIdentityEquals] = func(ev *Evaluator, receiver value.Value, args []value.Value, env *value.Environment) (value.Value, error) {
		if len(args) != 1 {
			return value.Null(), argErrorf("#== expects exactly one argument")
		}
		return value.Boolean(receiver.IdentityEquals(args[0])), nil
	}
	t[PrimIdentityNotEquals] = func(ev *Evaluator, receiver value.Value, args []value.Value, env *value.Environment) (value.Value, error) {
		if len(args) != 1 {
			return value.Null(), argErrorf("#~~ expects exactly one argument")
		}
		return value.Boolean(!receiver.IdentityEquals(args[0])), nil
	}
	t[PrimClassOf] = func(ev *Evaluator, receiver value.Value, args []value.Value, env *value.Environment) (value.Value, error) {
		class, err := value.ResolveClass(receiver, env)
		if err != nil {
			return value.Null(), sonErrorf("%v", err)
		}
		return value.FromClassTable(class), nil
	}
	t[PrimPrintString] = func(ev *Evaluator, receiver value.Value, args []value.Value, env *value.Environment) (value.Value, error) {
		return value.String(receiver.PrintString()), nil
	}
}
