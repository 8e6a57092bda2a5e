package value

// ClassNameFor maps a runtime value to the class name used to dispatch
// against it, per the fixed table in the spec. Bridge values have no entry
// of their own: sendMessage tries the Bridge's entries first, and a
// selector with no entry falls through to the default case, Object.
func ClassNameFor(v Value) string {
	switch v.Kind {
	case KindNull:
		return "UndefinedObject"
	case KindNumber:
		return "Number"
	case KindString:
		return "String"
	case KindBoolean:
		return "Boolean"
	case KindSymbol:
		return "Symbol"
	case KindBlock:
		return "BlockClosure"
	case KindObject:
		return "Object"
	case KindArray:
		return "Object"
	default:
		return "Object"
	}
}

// ErrNoObjectClass is returned by ResolveClass when the root environment
// has no Object class table bound at all; this is fatal per the spec.
type ErrNoObjectClass struct{}

func (ErrNoObjectClass) Error() string { return "root environment has no Object class bound" }

// ResolveClass returns the ClassTable Environment to dispatch v against,
// looked up in lookupEnv's scope chain. An Environment value used as a
// receiver resolves to itself (a class table sending a class-side
// message). Any other value resolves by ClassNameFor, falling back to
// Object if the specific class name is absent.
func ResolveClass(v Value, lookupEnv *Environment) (*Environment, error) {
	if v.Kind == KindClassTable {
		return v.AsClassTable(), nil
	}

	name := ClassNameFor(v)
	if class, ok := lookupClassByName(lookupEnv, name); ok {
		return class, nil
	}
	if object, ok := lookupClassByName(lookupEnv, "Object"); ok {
		return object, nil
	}
	return nil, ErrNoObjectClass{}
}

// LookupClass finds a class table bound to name somewhere in env's scope
// chain. Exported for the evaluator's method-lookup fallback to Object.
func LookupClass(env *Environment, name string) (*Environment, bool) {
	return lookupClassByName(env, name)
}

func lookupClassByName(env *Environment, name string) (*Environment, bool) {
	v, err := env.Get(name)
	if err != nil {
		return nil, false
	}
	if v.Kind != KindClassTable {
		return nil, false
	}
	return v.AsClassTable(), true
}
