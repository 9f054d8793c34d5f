package vfields

import (
	"fmt"

	"github.com/Velocidex/ordereddict"
	"github.com/Velocidex/yaml"
	"github.com/pkg/errors"

	"www.velocidex.com/golang/vfilter"
)

type FieldDefinition struct {
	Name string

	// Optional offset of the field from the start of the struct in
	// bytes. Fields follow each other when it is not given.
	Offset    int64
	HasOffset bool

	// Alternatively offset may be given as an expression.
	OffsetExpression string

	// Name of the type of parser in this field.
	Type string

	// Options to the type
	Options *ordereddict.Dict
}

type StructDefinition struct {
	Name           string
	Size           int
	SizeExpression string
	Fields         []*FieldDefinition

	// Endian of the integers of the struct, inherited if empty.
	Endian string
}

type Profile struct {
	types map[string]Parser
}

func NewProfile() *Profile {
	result := Profile{
		types: make(map[string]Parser),
	}

	return &result
}

func (self *Profile) AddParser(type_name string, parser Parser) {
	self.types[type_name] = parser
}

func (self *Profile) GetParser(name string, options *ordereddict.Dict) (Parser, error) {
	parser, pres := self.types[name]
	if !pres {
		return nil, errors.Wrapf(NotFoundError, "type %v", name)
	}
	return parser.New(self, options)
}

// ObjectSize returns the size in bytes of a fixed size type, 0 when the
// size depends on the data.
func (self *Profile) ObjectSize(name string) int {
	parser, pres := self.types[name]
	if pres {
		sizer, ok := parser.(Sizer)
		if ok {
			return sizer.Size()
		}
	}

	return 0
}

// Build the profile from definitions given in the vtypes language.
func (self *Profile) ParseStructDefinitions(definitions string) (err error) {
	var profile_definitions []*StructDefinition

	err = yaml.Unmarshal([]byte(definitions), &profile_definitions)
	if err != nil {
		return err
	}

	for _, struct_def := range profile_definitions {
		struct_parser := NewStructParser(struct_def.Name, struct_def.Size)
		self.types[struct_def.Name] = struct_parser

		if struct_def.Endian != "" {
			endian, ok := ParseEndian(struct_def.Endian)
			if !ok {
				return fmt.Errorf("struct definition %v: unknown endian %v",
					struct_def.Name, struct_def.Endian)
			}
			struct_parser.endian = endian
		}

		// Try to parse it as a VQL Lambda
		if struct_def.SizeExpression != "" {
			struct_parser.size_expression, err = vfilter.ParseLambda(
				struct_def.SizeExpression)
			if err != nil {
				return fmt.Errorf("struct definition %v size expression '%v': %w",
					struct_def.Name, struct_def.SizeExpression, err)
			}
		}

		for _, field_def := range struct_def.Fields {
			// Install a parser now to maintain
			// field ordering but do not include
			// delegate parser yet
			temp_parser := &ParseAtOffset{
				name:       field_def.Name,
				offset:     field_def.Offset,
				has_offset: field_def.HasOffset,
				type_name:  field_def.Type,
			}
			struct_parser.AddField(temp_parser)

			if field_def.OffsetExpression != "" {
				temp_parser.has_offset = true
				temp_parser.offset_expression, err = vfilter.ParseLambda(
					field_def.OffsetExpression)
				if err != nil {
					return fmt.Errorf("struct %v field offset '%v': %w",
						struct_def.Name, field_def.OffsetExpression, err)
				}
			}

			// Get the parser by name
			parser, pres := self.types[field_def.Type]
			if pres {
				temp_parser.parser, err = parser.New(self, field_def.Options)
				if err != nil {
					return fmt.Errorf("struct %v field '%v': %w",
						struct_def.Name, field_def.Name, err)
				}
			} else {

				// Delay the creation of the parser until we
				// have added all the structs in case the
				// parser name refers to a struct which has
				// not been defined yet.
				defer func(struct_name string, field_def *FieldDefinition,
					temp_parser *ParseAtOffset) {
					if err != nil {
						return
					}

					parser, pres := self.types[field_def.Type]
					if !pres {
						err = fmt.Errorf(
							"Reference to undefined type %v in %v.%v",
							field_def.Type, struct_name,
							field_def.Name)
						return
					}
					temp_parser.parser, err = parser.New(self, field_def.Options)
				}(struct_def.Name, field_def, temp_parser)
			}
		}

	}
	return nil
}

// Parse instantiates the named type at the byte offset of stream and
// returns the resulting field. The field lives in a tree of its own
// whose root covers the whole stream.
func (self *Profile) Parse(scope vfilter.Scope, type_name string,
	stream *InputStream, offset int64) (Field, error) {
	parser, pres := self.types[type_name]
	if !pres {
		return nil, fmt.Errorf("Type name %s is not known: %w",
			type_name, NotFoundError)
	}

	return self.parseWith(scope, parser, type_name, stream, offset)
}

func (self *Profile) parseWith(scope vfilter.Scope, parser Parser,
	type_name string, stream *InputStream, offset int64) (Field, error) {
	if offset < 0 {
		return nil, &StreamBoundsError{
			Source:  stream.Source(),
			Address: offset * 8,
		}
	}

	root := NewRoot(stream, "", func(s *FieldSet, yield Yield) error {
		padding, err := s.SeekByte(offset, "__padding[]")
		if padding != nil || err != nil {
			err = yield(padding, err)
			if err != nil {
				return err
			}
		}

		return yield(parser.Parse(scope, s, type_name))
	}, WithScope(scope), WithEndian(LittleEndian))

	target, err := root.Child(type_name)
	if err != nil {
		return nil, err
	}

	// The root is dropped here, so a struct keeps the tree alive
	// through a handle of its own.
	set, ok := target.(*FieldSet)
	if ok {
		return newHandle(set.fieldSet), nil
	}
	return target, nil
}
