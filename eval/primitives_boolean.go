package eval

import "github.com/sonlang/son/value"

// registerBooleanPrimitives installs Boolean's primitives, grounded on
// vm/boolean_primitives.go. ifTrue:/ifFalse:/ifTrue:ifFalse: take Block
// arguments and re-enter the evaluator via InvokeBlock rather than
// returning the block itself, matching spec §4.5's table.
func registerBooleanPrimitives(t PrimitiveTable) {
	t[PrimBooleanAnd] = func(ev *Evaluator, receiver value.Value, args []value.Value, env *value.Environment) (value.Value, error) {
		other, err := oneBoolean("and:", args)
		if err != nil {
			return value.Null(), err
		}
		return value.Boolean(receiver.AsBool() && other), nil
	}
	t[PrimBooleanOr] = func(ev *Evaluator, receiver value.Value, args []value.Value, env *value.Environment) (value.Value, error) {
		other, err := oneBoolean("or:", args)
		if err != nil {
			return value.Null(), err
		}
		return value.Boolean(receiver.AsBool() || other), nil
	}
	t[PrimBooleanNot] = func(ev *Evaluator, receiver value.Value, args []value.Value, env *value.Environment) (value.Value, error) {
		return value.Boolean(!receiver.AsBool()), nil
	}

	t[PrimIfTrue] = func(ev *Evaluator, receiver value.Value, args []value.Value, env *value.Environment) (value.Value, error) {
		block, err := oneBlock("ifTrue:", args)
		if err != nil {
			return value.Null(), err
		}
		if !receiver.AsBool() {
			return value.Null(), nil
		}
		return ev.InvokeBlock(block, nil)
	}
	t[PrimIfFalse] = func(ev *Evaluator, receiver value.Value, args []value.Value, env *value.Environment) (value.Value, error) {
		block, err := oneBlock("ifFalse:", args)
		if err != nil {
			return value.Null(), err
		}
		if receiver.AsBool() {
			return value.Null(), nil
		}
		return ev.InvokeBlock(block, nil)
	}
	t[PrimIfTrueIfFalse] = func(ev *Evaluator, receiver value.Value, args []value.Value, env *value.Environment) (value.Value, error) {
		if len(args) != 2 {
			return value.Null(), argErrorf("ifTrue:ifFalse: expects exactly 2 arguments")
		}
		thenBlock := args[0].AsBlock()
		elseBlock := args[1].AsBlock()
		if thenBlock == nil || elseBlock == nil {
			return value.Null(), argErrorf("ifTrue:ifFalse: arguments must be Blocks")
		}
		if receiver.AsBool() {
			return ev.InvokeBlock(thenBlock, nil)
		}
		return ev.InvokeBlock(elseBlock, nil)
	}
}

func oneBoolean(name string, args []value.Value) (bool, error) {
	if len(args) != 1 || args[0].Kind != value.KindBoolean {
		return false, argErrorf("%s expects exactly one Boolean argument", name)
	}
	return args[0].AsBool(), nil
}

func oneBlock(name string, args []value.Value) (*value.Block, error) {
	if len(args) != 1 {
		return nil, argErrorf("%s expects exactly one argument", name)
	}
	block := args[0].AsBlock()
	if block == nil {
		return nil, argErrorf("%s argument must be a Block", name)
	}
	return block, nil
}
