package hir

// Opcode is the closed set of instruction kinds the back end lowers.
type Opcode byte

const (
	OpInvalid Opcode = iota

	// Constants.
	OpIntConstant
	OpLongConstant
	OpFloatConstant
	OpDoubleConstant
	OpNullConstant

	// Arithmetic and bitwise.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpNeg
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpUShr
	OpNot

	// Comparisons. The condition opcodes produce a bool; OpCompare produces
	// the three-way int used for long and floating comparisons.
	OpEqual
	OpNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpCompare

	OpTypeConversion

	// Arrays.
	OpArrayLength
	OpArrayGet
	OpArraySet

	// Fields.
	OpInstanceFieldGet
	OpInstanceFieldSet
	OpStaticFieldGet
	OpStaticFieldSet

	// Invokes.
	OpInvokeStatic
	OpInvokeDirect
	OpInvokeVirtual
	OpInvokeInterface

	// Object creation and resolution.
	OpNewInstance
	OpNewArray
	OpLoadClass
	OpLoadString

	// Type checks.
	OpCheckCast
	OpInstanceOf

	// Explicit runtime checks.
	OpBoundsCheck
	OpNullCheck
	OpDivZeroCheck
	OpSuspendCheck

	// Control flow.
	OpThrow
	OpGoto
	OpIf
	OpReturn
	OpReturnVoid

	// SSA plumbing.
	OpPhi
	OpParameter
	OpCurrentMethod
	OpTemporary
	OpParallelMove

	numOpcodes
)

var opcodeNames = [numOpcodes]string{
	OpInvalid:            "Invalid",
	OpIntConstant:        "IntConstant",
	OpLongConstant:       "LongConstant",
	OpFloatConstant:      "FloatConstant",
	OpDoubleConstant:     "DoubleConstant",
	OpNullConstant:       "NullConstant",
	OpAdd:                "Add",
	OpSub:                "Sub",
	OpMul:                "Mul",
	OpDiv:                "Div",
	OpRem:                "Rem",
	OpNeg:                "Neg",
	OpAnd:                "And",
	OpOr:                 "Or",
	OpXor:                "Xor",
	OpShl:                "Shl",
	OpShr:                "Shr",
	OpUShr:               "UShr",
	OpNot:                "Not",
	OpEqual:              "Equal",
	OpNotEqual:           "NotEqual",
	OpLessThan:           "LessThan",
	OpLessThanOrEqual:    "LessThanOrEqual",
	OpGreaterThan:        "GreaterThan",
	OpGreaterThanOrEqual: "GreaterThanOrEqual",
	OpCompare:            "Compare",
	OpTypeConversion:     "TypeConversion",
	OpArrayLength:        "ArrayLength",
	OpArrayGet:           "ArrayGet",
	OpArraySet:           "ArraySet",
	OpInstanceFieldGet:   "InstanceFieldGet",
	OpInstanceFieldSet:   "InstanceFieldSet",
	OpStaticFieldGet:     "StaticFieldGet",
	OpStaticFieldSet:     "StaticFieldSet",
	OpInvokeStatic:       "InvokeStatic",
	OpInvokeDirect:       "InvokeDirect",
	OpInvokeVirtual:      "InvokeVirtual",
	OpInvokeInterface:    "InvokeInterface",
	OpNewInstance:        "NewInstance",
	OpNewArray:           "NewArray",
	OpLoadClass:          "LoadClass",
	OpLoadString:         "LoadString",
	OpCheckCast:          "CheckCast",
	OpInstanceOf:         "InstanceOf",
	OpBoundsCheck:        "BoundsCheck",
	OpNullCheck:          "NullCheck",
	OpDivZeroCheck:       "DivZeroCheck",
	OpSuspendCheck:       "SuspendCheck",
	OpThrow:              "Throw",
	OpGoto:               "Goto",
	OpIf:                 "If",
	OpReturn:             "Return",
	OpReturnVoid:         "ReturnVoid",
	OpPhi:                "Phi",
	OpParameter:          "Parameter",
	OpCurrentMethod:      "CurrentMethod",
	OpTemporary:          "Temporary",
	OpParallelMove:       "ParallelMove",
}

// String implements fmt.Stringer.
func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return "Opcode(?)"
}

// IsConstant reports whether the opcode is one of the constant kinds.
func (op Opcode) IsConstant() bool {
	return op >= OpIntConstant && op <= OpNullConstant
}

// IsCondition reports whether the opcode is a two-way comparison producing a
// bool.
func (op Opcode) IsCondition() bool {
	return op >= OpEqual && op <= OpGreaterThanOrEqual
}

// IsInvoke reports whether the opcode transfers control to another method.
func (op Opcode) IsInvoke() bool {
	return op >= OpInvokeStatic && op <= OpInvokeInterface
}

// IsControlFlow reports whether the opcode terminates a basic block.
func (op Opcode) IsControlFlow() bool {
	switch op {
	case OpThrow, OpGoto, OpIf, OpReturn, OpReturnVoid:
		return true
	}
	return false
}
