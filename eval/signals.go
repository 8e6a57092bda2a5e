package eval

import "github.com/sonlang/son/value"

// localReturn and nonLocalReturn are control signals, not errors. They are
// carried by panic/recover, exactly the way the teacher's bytecode
// interpreter propagates its own NonLocalReturn across block-execution
// frames (vm/interpreter.go: Execute/ExecuteBlock catch-if-mine-else-repanic).
// Every frame that is not the designated catcher must re-panic the signal
// completely unchanged; only sendMessage's method-activation catch point
// and, for a method-level ^, the evaluator's own method-body evaluation are
// allowed to observe and consume one.
type localReturn struct {
	Value value.Value
}

type nonLocalReturn struct {
	Value  value.Value
	Target *value.Environment
}

// catchReturn recovers a panic, and if it is a control signal targeting
// home, returns (result, true). If it is a control signal NOT targeting
// home, it re-panics unchanged so an enclosing frame can catch it. Any
// other recovered value (a genuine Go bug) is also re-panicked unchanged —
// the signal mechanism must never mask an unrelated fault.
//
// Call as: defer catchReturn(home, &result)
func catchReturn(home *value.Environment, result *value.Value) {
	r := recover()
	if r == nil {
		return
	}
	switch sig := r.(type) {
	case localReturn:
		// A bare ^ always targets the nearest enclosing method context,
		// which by construction is `home` when this defer fires from that
		// context's own body evaluation.
		*result = sig.Value
		return
	case nonLocalReturn:
		if sig.Target == home {
			*result = sig.Value
			return
		}
		panic(sig)
	default:
		panic(r)
	}
}
