package vfields

import (
	"context"
	"fmt"

	"github.com/Velocidex/ordereddict"
	"www.velocidex.com/golang/vfilter"
)

// BitField extracts the bits [start_bit, end_bit) of an integer type.
type BitField struct {
	StartBit int64  `json:"start_bit"`
	EndBit   int64  `json:"end_bit"`
	Type     string `json:"type"`

	parser Parser
}

func (self *BitField) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	if options == nil {
		return nil, fmt.Errorf("BitField parser requires a type in the options")
	}

	parser_type, pres := options.GetString("type")
	if !pres {
		return nil, fmt.Errorf("BitField parser requires a type in the options")
	}

	parser, err := profile.GetParser(parser_type, ordereddict.NewDict())
	if err != nil {
		return nil, fmt.Errorf("BitField parser requires a type in the options: %w", err)
	}

	start_bit, pres := options.GetInt64("start_bit")
	if !pres || start_bit < 0 {
		start_bit = 0
	}

	end_bit, pres := options.GetInt64("end_bit")
	if !pres || end_bit > 64 {
		end_bit = 64
	}

	return &BitField{
		StartBit: start_bit,
		EndBit:   end_bit,
		Type:     parser_type,
		parser:   parser,
	}, nil
}

func (self *BitField) Parse(
	scope vfilter.Scope, parent *FieldSet, name string) (Field, error) {
	field, err := self.parser.Parse(scope, parent, name)
	if err != nil {
		return nil, err
	}

	data, ok := field.(*Data)
	if !ok {
		return nil, fmt.Errorf("BitField: %v is not an integer type", self.Type)
	}

	data.convert = func(value interface{}) (interface{}, error) {
		number, ok := to_int64(value)
		if !ok {
			return int64(0), nil
		}

		result := int64(0)
		for i := self.StartBit; i < self.EndBit; i++ {
			result |= number & (1 << uint8(i))
		}
		return result >> self.StartBit, nil
	}
	return data, nil
}

type BitsParserOptions struct {
	Bits   int64  `vfilter:"required,field=bits,doc=The number of bits"`
	Endian Endian `vfilter:"optional,field=endian,doc=Bit order, taken from the struct if not given"`
}

// BitsParser reads a run of bits. The struct must lay out whole bytes
// in the end.
type BitsParser struct {
	options BitsParserOptions
}

func (self *BitsParser) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	if options == nil {
		return nil, fmt.Errorf("Bits parser requires the number of bits")
	}

	result := &BitsParser{}
	err := ParseOptions(context.Background(), options, &result.options)
	if err != nil {
		return nil, fmt.Errorf("BitsParser: %v", err)
	}

	if result.options.Bits < 1 {
		return nil, fmt.Errorf("Bits parser requires a positive number of bits")
	}
	return result, nil
}

func (self *BitsParser) Parse(
	scope vfilter.Scope, parent *FieldSet, name string) (Field, error) {
	return NewBits(parent, name, self.options.Bits, WithEndian(self.options.Endian))
}

type BitParser struct{}

func (self BitParser) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	return BitParser{}, nil
}

func (self BitParser) Parse(
	scope vfilter.Scope, parent *FieldSet, name string) (Field, error) {
	return NewBit(parent, name)
}
