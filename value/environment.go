package value

import "fmt"

// MethodImpl is a method body bound to a selector. Exactly one of Body or
// Primitive is meaningful: a zero-value Primitive means "not a primitive".
type MethodImpl struct {
	Selector  string
	ArgNames  []string
	Body      any    // SON AST node; nil if this is a primitive
	Primitive string // primitive tag; "" if this is a SON-defined method
}

// IsPrimitive reports whether this method routes to the primitive table.
func (m *MethodImpl) IsPrimitive() bool { return m.Primitive != "" }

// Environment is one node in the lexical scope chain. A class table is
// simply an Environment with parent == nil, bound under its class name in
// the root scope and addressed by pointer identity.
type Environment struct {
	bindings map[string]Value
	methods  map[string]*MethodImpl
	parent   *Environment

	isMethodContext bool
	methodSelf      Value
	hasMethodSelf   bool

	// className is non-empty when this Environment is used as a ClassTable;
	// it exists purely for diagnostics and printString, never for lookup.
	className string
}

// NewRootEnvironment creates an empty environment with no parent, suitable
// as the root of an image or as a freshly created class table.
func NewRootEnvironment() *Environment {
	return &Environment{
		bindings: make(map[string]Value),
		methods:  make(map[string]*MethodImpl),
	}
}

// ChildOptions configures CreateChild.
type ChildOptions struct {
	IsMethodContext bool
	MethodSelf      Value
}

// CreateChild creates a new Environment whose parent is e. When
// opts.IsMethodContext is set, the child becomes a method activation: self
// is bound in its local bindings and IsMethodContext reports true.
func (e *Environment) CreateChild(opts ChildOptions) *Environment {
	child := &Environment{
		bindings: make(map[string]Value),
		methods:  make(map[string]*MethodImpl),
		parent:   e,
	}
	if opts.IsMethodContext {
		child.isMethodContext = true
		child.methodSelf = opts.MethodSelf
		child.hasMethodSelf = true
		child.bindings["self"] = opts.MethodSelf
	}
	return child
}

// VariableNotFoundError reports that $name resolved to nothing through the
// whole scope chain.
type VariableNotFoundError struct {
	Name string
}

func (e *VariableNotFoundError) Error() string {
	return fmt.Sprintf("variable not found: %s", e.Name)
}

// Get resolves name locally, then walking parents. It never mutates state.
func (e *Environment) Get(name string) (Value, error) {
	for env := e; env != nil; env = env.parent {
		if v, ok := env.bindings[name]; ok {
			return v, nil
		}
	}
	return Value{}, &VariableNotFoundError{Name: name}
}

// Set binds name in e's local bindings only, creating the binding if it
// does not already exist locally. Assignment never walks the parent chain.
func (e *Environment) Set(name string, v Value) {
	e.bindings[name] = v
}

// DefineMethod installs a MethodImpl into e's local method table,
// overwriting any existing entry for the same selector.
func (e *Environment) DefineMethod(selector string, argNames []string, body any) {
	e.methods[selector] = &MethodImpl{
		Selector: selector,
		ArgNames: argNames,
		Body:     body,
	}
}

// DefinePrimitiveMethod installs a primitive-routed MethodImpl. Used only
// by the image loader and the primitive table bootstrap, never reachable
// from SON's define:args:body: form (SON code cannot register primitives).
func (e *Environment) DefinePrimitiveMethod(selector string, tag string) {
	e.methods[selector] = &MethodImpl{Selector: selector, Primitive: tag}
}

// LookupMethodLocally returns the MethodImpl bound to selector in e's own
// method table, without consulting parent or fallback classes.
func (e *Environment) LookupMethodLocally(selector string) (*MethodImpl, bool) {
	m, ok := e.methods[selector]
	return m, ok
}

// IsMethodContext reports whether e is a method activation.
func (e *Environment) IsMethodContext() bool { return e.isMethodContext }

// MethodSelf returns the self bound at this activation, if any.
func (e *Environment) MethodSelf() (Value, bool) { return e.methodSelf, e.hasMethodSelf }

// Parent returns e's enclosing environment, or nil at the root.
func (e *Environment) Parent() *Environment { return e.parent }

// NearestMethodContext walks e and its ancestors to find the closest
// environment with IsMethodContext() true. Returns nil if none exists.
func (e *Environment) NearestMethodContext() *Environment {
	for env := e; env != nil; env = env.parent {
		if env.isMethodContext {
			return env
		}
	}
	return nil
}

// SetName records the class name this Environment is bound under, when it
// is used as a ClassTable. Purely diagnostic.
func (e *Environment) SetName(name string) { e.className = name }

// Name returns the class name set by SetName, if any.
func (e *Environment) Name() (string, bool) {
	if e.className == "" {
		return "", false
	}
	return e.className, true
}

// Bindings returns the local bindings, for introspection of a class's
// state or a scope's locals. The map is owned by e; callers must not
// mutate it.
func (e *Environment) Bindings() map[string]Value { return e.bindings }

// MethodSelectors returns every selector defined locally in e's method
// table, in no particular order. (GET /methods/{className} lists the
// store's selectors, not these.)
func (e *Environment) MethodSelectors() []string {
	out := make([]string, 0, len(e.methods))
	for sel := range e.methods {
		out = append(out, sel)
	}
	return out
}
