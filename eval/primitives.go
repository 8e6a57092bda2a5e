package eval

import "github.com/sonlang/son/value"

// PrimitiveFunc implements one primitive operation. receiver and args are
// already-evaluated Values; env is passed through so primitives that
// accept Block arguments (ifTrue:ifFalse:, ifNil:ifNotNil:) can re-enter the
// evaluator via InvokeBlock.
type PrimitiveFunc func(ev *Evaluator, receiver value.Value, args []value.Value, env *value.Environment) (value.Value, error)

// PrimitiveTable is the fixed, exhaustive tag -> implementation mapping
// described in spec §4.5/§9. SON code can never add to it; only the
// bootstrap image (image.Bootstrap) binds tags to class method tables.
type PrimitiveTable map[string]PrimitiveFunc

// Primitive tags. These are the strings MethodImpl.Primitive carries.
const (
	PrimNumberAdd           = "number.add"
	PrimNumberSubtract      = "number.subtract"
	PrimNumberMultiply      = "number.multiply"
	PrimNumberDivide        = "number.divide"
	PrimNumberLess          = "number.less"
	PrimNumberGreater       = "number.greater"
	PrimNumberLessEqual     = "number.lessEqual"
	PrimNumberGreaterEqual  = "number.greaterEqual"
	PrimNumberEquals        = "number.equals"
	PrimNumberToString      = "number.toString"
	PrimEquals              = "object.equals"
	PrimNotEquals           = "object.notEquals"
	PrimIdentityEquals      = "object.identityEquals"
	PrimIdentityNotEquals   = "object.identityNotEquals"
	PrimClassOf             = "object.class"
	PrimPrintString         = "object.printString"
	PrimBooleanAnd          = "boolean.and"
	PrimBooleanOr           = "boolean.or"
	PrimBooleanNot          = "boolean.not"
	PrimIfTrue              = "boolean.ifTrue"
	PrimIfFalse             = "boolean.ifFalse"
	PrimIfTrueIfFalse       = "boolean.ifTrueIfFalse"
	PrimStringConcat        = "string.concat"
	PrimStringLength        = "string.length"
	PrimStringEquals        = "string.equals"
	PrimSymbolToString      = "symbol.toString"
	PrimSymbolEquals        = "symbol.equals"
	PrimNilIfNil            = "nil.ifNil"
	PrimNilIfNotNil         = "nil.ifNotNil"
	PrimNilIfNilIfNotNil    = "nil.ifNilIfNotNil"
	PrimEnvDefineMethod     = "env.defineMethod"
)

// NewPrimitiveTable builds the closed set of primitives required by
// spec §4.5, plus env.defineMethod for the $env resolution in §9.
// whileTrue: is not in this table: sendMessage intercepts it on Block
// receivers before class resolution (dispatch.go). An unknown tag reached at dispatch time (which can only happen if
// the image loader bootstrap is inconsistent with this table) is a
// SonError, never a panic: see dispatch.go's sendMessage.
func NewPrimitiveTable() PrimitiveTable {
	t := PrimitiveTable{}
	registerNumberPrimitives(t)
	registerObjectPrimitives(t)
	registerBooleanPrimitives(t)
	registerStringPrimitives(t)
	registerSymbolPrimitives(t)
	registerNilPrimitives(t)
	registerEnvPrimitives(t)
	return t
}
