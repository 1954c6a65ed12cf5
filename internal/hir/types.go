package hir

// Type is the primitive type of an instruction's result.
type Type byte

const (
	Void Type = iota
	Bool
	Byte
	Char
	Short
	Int
	Long
	Float
	Double
	Reference
)

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t {
	case Void:
		return "void"
	case Bool:
		return "bool"
	case Byte:
		return "byte"
	case Char:
		return "char"
	case Short:
		return "short"
	case Int:
		return "int"
	case Long:
		return "long"
	case Float:
		return "float"
	case Double:
		return "double"
	case Reference:
		return "reference"
	default:
		return "?"
	}
}

// Is64Bit reports whether values of the type occupy two words on a 32-bit
// target.
func (t Type) Is64Bit() bool { return t == Long || t == Double }

// IsFloatingPoint reports whether values of the type live in the FPU register
// file.
func (t Type) IsFloatingPoint() bool { return t == Float || t == Double }

// IsIntegralOrRef reports whether values of the type live in core registers.
func (t Type) IsIntegralOrRef() bool {
	return t != Void && !t.IsFloatingPoint()
}

// SizeInBytes returns the storage size of the type.
func (t Type) SizeInBytes() int {
	switch t {
	case Void:
		return 0
	case Bool, Byte:
		return 1
	case Char, Short:
		return 2
	case Long, Double:
		return 8
	default:
		return 4
	}
}
