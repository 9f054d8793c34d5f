package vfields

import (
	"fmt"
	"math/big"

	"github.com/pkg/errors"
)

const (
	MinIntegerBits = 8
	MaxIntegerBits = 16384
)

// IntegerType describes one fixed instantiation of the generic
// integer codec.
type IntegerType struct {
	Name   string
	Signed bool
	Bits   int64

	// EndianInherit takes the endian of the enclosing FieldSet.
	Endian Endian
}

// New constructs an integer field of this type at the cursor of parent.
func (self IntegerType) New(parent *FieldSet, name string, options ...Option) (*Data, error) {
	return NewInteger(parent, name, self.Signed, self.Endian, self.Bits, options...)
}

var (
	UInt8  = IntegerType{"UInt8", false, 8, EndianInherit}
	UInt16 = IntegerType{"UInt16", false, 16, EndianInherit}
	UInt24 = IntegerType{"UInt24", false, 24, EndianInherit}
	UInt32 = IntegerType{"UInt32", false, 32, EndianInherit}
	UInt64 = IntegerType{"UInt64", false, 64, EndianInherit}

	UInt16BE = IntegerType{"UInt16", false, 16, BigEndian}
	UInt24BE = IntegerType{"UInt24", false, 24, BigEndian}
	UInt32BE = IntegerType{"UInt32", false, 32, BigEndian}
	UInt64BE = IntegerType{"UInt64", false, 64, BigEndian}

	UInt16LE = IntegerType{"UInt16", false, 16, LittleEndian}
	UInt24LE = IntegerType{"UInt24", false, 24, LittleEndian}
	UInt32LE = IntegerType{"UInt32", false, 32, LittleEndian}
	UInt64LE = IntegerType{"UInt64", false, 64, LittleEndian}

	Int8  = IntegerType{"Int8", true, 8, EndianInherit}
	Int16 = IntegerType{"Int16", true, 16, EndianInherit}
	Int24 = IntegerType{"Int24", true, 24, EndianInherit}
	Int32 = IntegerType{"Int32", true, 32, EndianInherit}
	Int64 = IntegerType{"Int64", true, 64, EndianInherit}

	Int16BE = IntegerType{"Int16", true, 16, BigEndian}
	Int24BE = IntegerType{"Int24", true, 24, BigEndian}
	Int32BE = IntegerType{"Int32", true, 32, BigEndian}
	Int64BE = IntegerType{"Int64", true, 64, BigEndian}

	Int16LE = IntegerType{"Int16", true, 16, LittleEndian}
	Int24LE = IntegerType{"Int24", true, 24, LittleEndian}
	Int32LE = IntegerType{"Int32", true, 32, LittleEndian}
	Int64LE = IntegerType{"Int64", true, 64, LittleEndian}
)

// DecodeInteger decodes the nbits wide integer starting offset bits
// into buf. Big endian bits are numbered from the most significant bit
// of each byte, little endian bits from the least significant one.
//
// Values of up to 64 bits are returned as uint64 or int64, wider ones
// as *big.Int.
func DecodeInteger(buf []byte, offset int64, signed bool, nbits int64, endian Endian) interface{} {
	if nbits <= 64 && len(buf) <= 8 {
		value := extractUint64(buf, offset, nbits, endian)
		if !signed {
			return value
		}
		shift := uint(64 - nbits)
		return int64(value<<shift) >> shift
	}

	value := extractBig(buf, offset, nbits, endian)
	if signed && value.Bit(int(nbits-1)) == 1 {
		value.Sub(value, new(big.Int).Lsh(big.NewInt(1), uint(nbits)))
	}

	if nbits <= 64 {
		if signed {
			return value.Int64()
		}
		return value.Uint64()
	}
	return value
}

func extractUint64(buf []byte, offset, nbits int64, endian Endian) uint64 {
	if len(buf) > 8 {
		return extractBig(buf, offset, nbits, endian).Uint64()
	}

	if endian == MiddleEndian {
		buf = swap16(buf)
	}

	var value uint64
	if endian == LittleEndian {
		for i := len(buf) - 1; i >= 0; i-- {
			value = value<<8 | uint64(buf[i])
		}
		value >>= uint(offset)
	} else {
		for _, b := range buf {
			value = value<<8 | uint64(b)
		}
		value >>= uint(int64(len(buf))*8 - offset - nbits)
	}

	if nbits < 64 {
		value &= (uint64(1) << uint(nbits)) - 1
	}
	return value
}

func extractBig(buf []byte, offset, nbits int64, endian Endian) *big.Int {
	value := new(big.Int)
	switch endian {
	case LittleEndian:
		value.SetBytes(reversed(buf))
		value.Rsh(value, uint(offset))

	case MiddleEndian:
		value.SetBytes(swap16(buf))
		value.Rsh(value, uint(int64(len(buf))*8-offset-nbits))

	default:
		value.SetBytes(buf)
		value.Rsh(value, uint(int64(len(buf))*8-offset-nbits))
	}

	mask := new(big.Int).Lsh(big.NewInt(1), uint(nbits))
	mask.Sub(mask, big.NewInt(1))
	return value.And(value, mask)
}

// EncodeInteger is the inverse of DecodeInteger for a field starting
// at bit 0: it returns the (nbits+7)/8 bytes holding value.
func EncodeInteger(value interface{}, signed bool, nbits int64, endian Endian) ([]byte, error) {
	if nbits < 1 || nbits > MaxIntegerBits {
		return nil, errors.Errorf("EncodeInteger: invalid width %v", nbits)
	}

	number, err := toBig(value)
	if err != nil {
		return nil, err
	}

	modulus := new(big.Int).Lsh(big.NewInt(1), uint(nbits))
	if number.Sign() < 0 {
		if !signed {
			return nil, errors.Errorf("EncodeInteger: %v is negative", value)
		}
		number.Add(number, modulus)
	}
	if number.Sign() < 0 || number.Cmp(modulus) >= 0 {
		return nil, errors.Errorf("EncodeInteger: %v does not fit in %v bits",
			value, nbits)
	}

	nbytes := (nbits + 7) / 8
	buf := make([]byte, nbytes)
	switch endian {
	case LittleEndian:
		number.FillBytes(buf)
		return reversed(buf), nil

	case MiddleEndian:
		number.Lsh(number, uint(nbytes*8-nbits))
		number.FillBytes(buf)
		return swap16(buf), nil

	default:
		number.Lsh(number, uint(nbytes*8-nbits))
		number.FillBytes(buf)
		return buf, nil
	}
}

func toBig(value interface{}) (*big.Int, error) {
	switch t := value.(type) {
	case *big.Int:
		return new(big.Int).Set(t), nil
	case uint64:
		return new(big.Int).SetUint64(t), nil
	case uint32, uint16, uint8, uint:
		number, _ := to_int64(t)
		return big.NewInt(number), nil
	default:
		number, ok := to_int64(value)
		if !ok {
			return nil, fmt.Errorf("EncodeInteger: unsupported value %T", value)
		}
		return big.NewInt(number), nil
	}
}

func reversed(buf []byte) []byte {
	result := make([]byte, len(buf))
	for i, b := range buf {
		result[len(buf)-1-i] = b
	}
	return result
}

// Swap the bytes of each 16 bit word. A trailing odd byte stays put.
func swap16(buf []byte) []byte {
	result := make([]byte, len(buf))
	copy(result, buf)
	for i := 0; i+1 < len(result); i += 2 {
		result[i], result[i+1] = result[i+1], result[i]
	}
	return result
}
