package vfields

import (
	"github.com/Velocidex/ordereddict"
	"github.com/pkg/errors"
	"www.velocidex.com/golang/vfilter"
)

// We only support uint64 - max size 64 / 7 = 10 bytes
const maxVarIntBytes = 10

// NewLeb128 is an unsigned LEB128 integer. The encoded length is read
// at construction since it decides the size.
func NewLeb128(parent *FieldSet, name string, options ...Option) (*Data, error) {
	return newVarInt(parent, name, false, options)
}

// NewSleb128 is the signed variant of NewLeb128.
func NewSleb128(parent *FieldSet, name string, options ...Option) (*Data, error) {
	return newVarInt(parent, name, true, options)
}

func newVarInt(parent *FieldSet, name string, signed bool, options []Option) (*Data, error) {
	result := newData(parent, name, KindInteger, 0, options)
	result.signed = signed

	var value uint64
	var shift uint
	for i := int64(0); ; i++ {
		if i == maxVarIntBytes {
			return nil, errors.Wrapf(
				&ConstructionError{Field: name, Msg: "varint is too long"},
				"at bit %v", result.absolute)
		}

		buf, err := result.stream.ReadBytes(result.absolute+i*8, 1)
		if err != nil {
			return nil, err
		}

		value |= uint64(buf[0]&0x7f) << shift
		shift += 7
		if buf[0]&0x80 == 0 {
			result.size = (i + 1) * 8
			if signed && shift < 64 && buf[0]&0x40 != 0 {
				value |= ^uint64(0) << shift
			}
			break
		}
	}

	result.compute = func(self *Data) (interface{}, error) {
		if signed {
			return int64(value), nil
		}
		return value, nil
	}
	return result, nil
}

type Leb128Parser struct{}

func (self *Leb128Parser) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	return &Leb128Parser{}, nil
}

func (self *Leb128Parser) Parse(
	scope vfilter.Scope, parent *FieldSet, name string) (Field, error) {
	return NewLeb128(parent, name)
}

type Sleb128Parser struct{}

func (self *Sleb128Parser) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	return &Sleb128Parser{}, nil
}

func (self *Sleb128Parser) Parse(
	scope vfilter.Scope, parent *FieldSet, name string) (Field, error) {
	return NewSleb128(parent, name)
}
