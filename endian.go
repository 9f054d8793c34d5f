package vfields

// Endian is the byte (and bit) order used to decode integers.
type Endian int

const (
	// Use the endian of the enclosing FieldSet.
	EndianInherit Endian = iota
	BigEndian
	LittleEndian

	// PDP style: 16 bit words stored with their bytes swapped.
	MiddleEndian
)

func (self Endian) String() string {
	switch self {
	case BigEndian:
		return "big"
	case LittleEndian:
		return "little"
	case MiddleEndian:
		return "middle"
	default:
		return "inherit"
	}
}

// ParseEndian maps the names used in profiles to an Endian.
func ParseEndian(name string) (Endian, bool) {
	switch name {
	case "big", "be", "BigEndian":
		return BigEndian, true
	case "little", "le", "LittleEndian":
		return LittleEndian, true
	case "middle", "me", "MiddleEndian":
		return MiddleEndian, true
	case "", "inherit":
		return EndianInherit, true
	}
	return EndianInherit, false
}
