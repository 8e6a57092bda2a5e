package eval

import "github.com/sonlang/son/value"

// registerEnvPrimitives installs defineMethod:args:body:, the ordinary-
// message-send counterpart to the reserved define:args:body: form,
// resolving the Open Question on exposing $env as a first-class value
// (SPEC_FULL.md §9). Bound on Object so an Environment reached via $env
// understands it through the normal local-then-Object fallback (an
// Environment resolves to itself as its own class, per ResolveClass, so
// this primitive only fires when Object's table is consulted because the
// environment has no same-named local override). Object is looked up by
// name in the scope chain the send is evaluated in; a parentless class
// table evaluating $env inside itself cannot reach Object, and the send
// is not understood.
//
// The body argument is evaluated like any other send argument, so it must
// already be quoted data (built from String/Array/Symbol constructors)
// rather than a literal executable form; ToASTNode converts it back into
// a storable method body.
func registerEnvPrimitives(t PrimitiveTable) {
	t[PrimEnvDefineMethod] = func(ev *Evaluator, receiver value.Value, args []value.Value, env *value.Environment) (value.Value, error) {
		if receiver.Kind != value.KindClassTable {
			return value.Null(), argErrorf("defineMethod:args:body: sent to a non-Environment receiver")
		}
		if len(args) != 3 {
			return value.Null(), argErrorf("defineMethod:args:body: expects exactly 3 arguments")
		}

		selector := args[0]
		if selector.Kind != value.KindSymbol && selector.Kind != value.KindString {
			return value.Null(), argErrorf("defineMethod:args:body: selector must be a String or Symbol")
		}

		namesArr := args[1].AsArray()
		if namesArr == nil {
			return value.Null(), argErrorf("defineMethod:args:body: argument names must be an Array")
		}
		argNames := make([]string, len(namesArr.Elements))
		for i, e := range namesArr.Elements {
			if e.Kind != value.KindString && e.Kind != value.KindSymbol {
				return value.Null(), argErrorf("defineMethod:args:body: argument names must be Strings or Symbols")
			}
			argNames[i] = e.AsString()
		}

		receiver.AsClassTable().DefineMethod(selector.AsString(), argNames, args[2].ToASTNode())
		return value.Symbol(selector.AsString()), nil
	}
}
