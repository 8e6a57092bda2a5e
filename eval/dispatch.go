package eval

import (
	"strings"

	"github.com/sonlang/son/value"
)

// lookupMethod implements spec §4.4: consult class's own method table,
// then (unless class is itself Object) fall back to Object's table.
// lookupEnv is the environment the send was evaluated in, used to resolve
// the Object class table by name.
func lookupMethod(class *value.Environment, selector string, lookupEnv *value.Environment) (*value.MethodImpl, bool) {
	if m, ok := class.LookupMethodLocally(selector); ok {
		return m, true
	}
	if name, _ := class.Name(); name == "Object" {
		return nil, false
	}
	object, ok := value.LookupClass(lookupEnv, "Object")
	if !ok || object == class {
		return nil, false
	}
	return object.LookupMethodLocally(selector)
}

// isValueFamily reports whether selector is one of value, value:,
// value:value:, ... — the block-invocation protocol.
func isValueFamily(selector string) bool {
	if selector == "value" {
		return true
	}
	if !strings.HasPrefix(selector, "value:") {
		return false
	}
	for _, part := range strings.Split(selector, ":") {
		if part != "value" && part != "" {
			return false
		}
	}
	return true
}

// sendMessage implements spec §4.6's sendMessage procedure.
func (ev *Evaluator) sendMessage(receiver value.Value, selector string, args []value.Value, env *value.Environment) (value.Value, error) {
	if receiver.Kind == value.KindBridge {
		if fn, ok := receiver.AsBridge().Entries[selector]; ok {
			v, err := fn(args)
			if err != nil {
				return value.Null(), sonErrorf("bridge error in #%s: %v", selector, err)
			}
			return v, nil
		}
		// Fall through: a Bridge with no matching entry still dispatches
		// like any other Object (e.g. #class, #printString).
	}

	if receiver.Kind == value.KindBlock {
		if isValueFamily(selector) || selector == "whileTrue:" {
			return ev.invokeBlockSend(receiver.AsBlock(), selector, args, env)
		}
	}

	class, err := value.ResolveClass(receiver, env)
	if err != nil {
		return value.Null(), sonErrorf("%v", err)
	}

	method, ok := lookupMethod(class, selector, env)
	if !ok {
		return value.Null(), &MessageNotUnderstoodError{Receiver: receiver, Selector: selector}
	}

	if method.IsPrimitive() {
		fn, ok := ev.primitives[method.Primitive]
		if !ok {
			return value.Null(), sonErrorf("invalid primitive tag: %s", method.Primitive)
		}
		ev.logSend(receiver, selector, "primitive")
		return fn(ev, receiver, args, env)
	}

	ev.logSend(receiver, selector, "method")
	return ev.invokeSonMethod(method, receiver, args, env)
}

// invokeSonMethod implements spec §4.6 step 4.
func (ev *Evaluator) invokeSonMethod(method *value.MethodImpl, receiver value.Value, args []value.Value, env *value.Environment) (result value.Value, err error) {
	if len(method.ArgNames) != len(args) {
		return value.Null(), argErrorf("method #%s expects %d argument(s), got %d", method.Selector, len(method.ArgNames), len(args))
	}

	methodEnv := env.CreateChild(value.ChildOptions{IsMethodContext: true, MethodSelf: receiver})
	for i, name := range method.ArgNames {
		methodEnv.Set(name, args[i])
	}

	result = receiver // implicit self-return if the body never returns explicitly
	defer catchReturn(methodEnv, &result)

	body, ok := method.Body.([]any)
	if !ok {
		// A single-statement body may be stored unwrapped; treat it as a
		// one-element sequence.
		body = []any{method.Body}
	}
	// The sequence's own trailing value is discarded: per §4.6 step 4, a
	// method body that completes without ^ always yields self, not its
	// last statement's value.
	if _, evalErr := ev.evaluateSequence(body, methodEnv); evalErr != nil {
		return value.Null(), evalErr
	}
	return result, nil
}

// invokeBlockSend implements spec §4.6 step 5 (value-family) and the
// whileTrue: addition from §4.5/§9.
func (ev *Evaluator) invokeBlockSend(block *value.Block, selector string, args []value.Value, env *value.Environment) (value.Value, error) {
	if selector == "whileTrue:" {
		return ev.invokeWhileTrue(block, args, env)
	}
	return ev.InvokeBlock(block, args)
}

// InvokeBlock runs block with args bound positionally to its parameter
// names, in a fresh child of the block's lexical scope. It is exported so
// primitives (ifTrue:ifFalse:), the whileTrue: loop, and the host bridge's
// asynchronous callbacks can re-enter the evaluator the same way a
// value-family send does.
func (ev *Evaluator) InvokeBlock(block *value.Block, args []value.Value) (result value.Value, err error) {
	if len(block.ArgNames) != len(args) {
		return value.Null(), argErrorf("block expects %d argument(s), got %d", len(block.ArgNames), len(args))
	}

	blockEnv := block.LexicalEnv.CreateChild(value.ChildOptions{})
	for i, name := range block.ArgNames {
		blockEnv.Set(name, args[i])
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if _, ok := r.(localReturn); ok {
			result = value.Null()
			err = sonErrorf("local return in block")
			return
		}
		if nlr, ok := r.(nonLocalReturn); ok {
			if block.HomeContext == nil {
				result = value.Null()
				err = sonErrorf("^ used in a block with no home method context")
				return
			}
			panic(nlr)
		}
		panic(r)
	}()

	body, ok := block.Body.([]any)
	if !ok {
		body = []any{block.Body}
	}
	return ev.evaluateSequence(body, blockEnv)
}

func (ev *Evaluator) invokeWhileTrue(receiver *value.Block, args []value.Value, env *value.Environment) (value.Value, error) {
	if len(args) != 1 {
		return value.Null(), argErrorf("whileTrue: expects exactly 1 block argument, got %d", len(args))
	}
	body := args[0].AsBlock()
	if body == nil {
		return value.Null(), argErrorf("whileTrue: argument must be a Block")
	}
	for {
		cond, err := ev.InvokeBlock(receiver, nil)
		if err != nil {
			return value.Null(), err
		}
		if cond.Kind != value.KindBoolean {
			return value.Null(), argErrorf("whileTrue: receiver must evaluate to a Boolean, got %s", cond.Kind.String())
		}
		if !cond.AsBool() {
			return value.Null(), nil
		}
		if _, err := ev.InvokeBlock(body, nil); err != nil {
			return value.Null(), err
		}
	}
}
