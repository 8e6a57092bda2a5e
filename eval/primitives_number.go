package eval

import "github.com/sonlang/son/value"

// registerNumberPrimitives installs the Number family: arithmetic,
// ordering, equality, and toString. Grounded on vm/integer_primitives.go
// and vm/float_primitives.go's one-tag-per-operation shape, collapsed to
// a single float64-backed Number kind since SON has no separate integer
// representation (spec §3: "Number (IEEE-754 double)").
func registerNumberPrimitives(t PrimitiveTable) {
	arith := func(name string, op func(a, b float64) (float64, error)) PrimitiveFunc {
		return func(ev *Evaluator, receiver value.Value, args []value.Value, env *value.Environment) (value.Value, error) {
			a, b, err := twoNumbers(name, receiver, args)
			if err != nil {
				return value.Null(), err
			}
			result, err := op(a, b)
			if err != nil {
				return value.Null(), err
			}
			return value.Number(result), nil
		}
	}
	compare := func(name string, op func(a, b float64) bool) PrimitiveFunc {
		return func(ev *Evaluator, receiver value.Value, args []value.Value, env *value.Environment) (value.Value, error) {
			a, b, err := twoNumbers(name, receiver, args)
			if err != nil {
				return value.Null(), err
			}
			return value.Boolean(op(a, b)), nil
		}
	}

	t[PrimNumberAdd] = arith("+", func(a, b float64) (float64, error) { return a + b, nil })
	t[PrimNumberSubtract] = arith("-", func(a, b float64) (float64, error) { return a - b, nil })
	t[PrimNumberMultiply] = arith("*", func(a, b float64) (float64, error) { return a * b, nil })
	t[PrimNumberDivide] = arith("/", func(a, b float64) (float64, error) {
		if b == 0 {
			return 0, sonErrorf("division by zero")
		}
		return a / b, nil
	})

	t[PrimNumberLess] = compare("<", func(a, b float64) bool { return a < b })
	t[PrimNumberGreater] = compare(">", func(a, b float64) bool { return a > b })
	t[PrimNumberLessEqual] = compare("<=", func(a, b float64) bool { return a <= b })
	t[PrimNumberGreaterEqual] = compare(">=", func(a, b float64) bool { return a >= b })
	t[PrimNumberEquals] = compare("=", func(a, b float64) bool { return a == b })

	t[PrimNumberToString] = func(ev *Evaluator, receiver value.Value, args []value.Value, env *value.Environment) (value.Value, error) {
		if receiver.Kind != value.KindNumber {
			return value.Null(), argErrorf("toString sent to non-Number receiver")
		}
		return value.String(receiver.PrintString()), nil
	}
}

func twoNumbers(name string, receiver value.Value, args []value.Value) (float64, float64, error) {
	if receiver.Kind != value.KindNumber {
		return 0, 0, argErrorf("#%s sent to non-Number receiver", name)
	}
	if len(args) != 1 || args[0].Kind != value.KindNumber {
		return 0, 0, argErrorf("#%s expects exactly one Number argument", name)
	}
	return receiver.AsNumber(), args[0].AsNumber(), nil
}
