package vfields

import (
	"fmt"
	"math"

	"github.com/Velocidex/ordereddict"
	"www.velocidex.com/golang/vfilter"
)

// Parse various sizes of ints.
type IntParser struct {
	type_name string
	integer   IntegerType
}

// IntParser does not take options
func (self *IntParser) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	return self, nil
}

func (self *IntParser) Size() int {
	return int(self.integer.Bits / 8)
}

func (self *IntParser) Parse(
	scope vfilter.Scope, parent *FieldSet, name string) (Field, error) {
	return self.integer.New(parent, name)
}

func NewIntParser(type_name string, integer IntegerType) *IntParser {
	return &IntParser{
		type_name: type_name,
		integer:   integer,
	}
}

// Floats are read as unsigned integers of the same width and converted.
type FloatParser struct {
	type_name string
	integer   IntegerType
}

func (self *FloatParser) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	return self, nil
}

func (self *FloatParser) Size() int {
	return int(self.integer.Bits / 8)
}

func (self *FloatParser) Parse(
	scope vfilter.Scope, parent *FieldSet, name string) (Field, error) {
	result, err := self.integer.New(parent, name)
	if err != nil {
		return nil, err
	}

	bits := self.integer.Bits
	result.convert = func(value interface{}) (interface{}, error) {
		number, ok := value.(uint64)
		if !ok {
			return nil, fmt.Errorf("%v: unexpected %T", self.type_name, value)
		}
		if bits == 32 {
			return float64(math.Float32frombits(uint32(number))), nil
		}
		return math.Float64frombits(number), nil
	}
	return result, nil
}

func NewFloatParser(type_name string, integer IntegerType) *FloatParser {
	return &FloatParser{
		type_name: type_name,
		integer:   integer,
	}
}
