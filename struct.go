package vfields

import (
	"github.com/Velocidex/ordereddict"
	"www.velocidex.com/golang/vfilter"
)

// StructParser produces a set holding the fields of a struct
// definition, in order.
type StructParser struct {
	type_name string
	size      int
	endian    Endian

	size_expression *vfilter.Lambda

	// Maintain the order of the fields.
	fields []*ParseAtOffset
}

// StructParser does not take options
func (self *StructParser) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	return self, nil
}

func (self *StructParser) Size() int {
	return self.size
}

func (self *StructParser) AddField(parser *ParseAtOffset) {
	self.fields = append(self.fields, parser)
}

func (self *StructParser) FieldNames() []string {
	result := make([]string, 0, len(self.fields))
	for _, field := range self.fields {
		result = append(result, field.name)
	}
	return result
}

func (self *StructParser) Parse(
	scope vfilter.Scope, parent *FieldSet, name string) (Field, error) {

	ScopeDebug(scope, "Instantiating struct %v at %v\n", self.type_name, parent.Cursor())

	// All dependencies will use this as the current struct
	subscope := scope.Copy()

	var options []Option
	if self.size > 0 {
		options = append(options, WithSize(int64(self.size)*8))
	}
	if self.endian != EndianInherit {
		options = append(options, WithEndian(self.endian))
	}

	obj, err := NewFieldSet(parent, name, func(s *FieldSet, yield Yield) error {
		return self.generate(subscope, s, yield)
	}, options...)
	if err != nil {
		return nil, err
	}

	subscope.AppendVars(ordereddict.NewDict().Set("this", obj))
	return obj, nil
}

func (self *StructParser) generate(
	scope vfilter.Scope, s *FieldSet, yield Yield) error {
	for _, field := range self.fields {
		if field.has_offset {
			err := seek(s, yield, field.getOffset(scope)*8)
			if err != nil {
				return err
			}
		}

		err := yield(field.Parse(scope, s))
		if err != nil {
			return err
		}
	}

	// Get the size of the struct - it can either be fixed, or derived
	// using a lambda expression.
	if self.size_expression != nil {
		size := EvalLambdaAsInt64(self.size_expression, scope) * 8
		err := s.FixSize(size)
		if err != nil {
			return err
		}
	}

	size, err := s.Size()
	if err != nil {
		// The size is the extent of the fields.
		return nil
	}
	return seek(s, yield, size)
}

// Pads the struct up to the relative bit address.
func seek(s *FieldSet, yield Yield, address int64) error {
	padding, err := s.SeekBit(address, "__padding[]")
	if padding == nil && err == nil {
		return nil
	}
	return yield(padding, err)
}

func NewStructParser(type_name string, size int) *StructParser {
	return &StructParser{
		type_name: type_name,
		size:      size,
	}
}

// A parser that parses its delegate at a particular offset
type ParseAtOffset struct {
	name string

	// Field offset within the struct.
	offset            int64
	offset_expression *vfilter.Lambda
	has_offset        bool

	type_name string

	// Delegate parser
	parser Parser
}

func (self *ParseAtOffset) getOffset(scope vfilter.Scope) int64 {
	if self.offset_expression == nil {
		return self.offset
	}

	return EvalLambdaAsInt64(self.offset_expression, scope)
}

func (self *ParseAtOffset) Parse(scope vfilter.Scope, parent *FieldSet) (Field, error) {
	if IsNil(self.parser) {
		return NullParser{}.Parse(scope, parent, self.name)
	}
	return self.parser.Parse(scope, parent, self.name)
}
