package vfields

import (
	"context"

	"github.com/Velocidex/ordereddict"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
	"www.velocidex.com/golang/vfilter"
)

// Accepts option bitmap: name (string) -> bit number
type FlagsOptions struct {
	Type        string            `vfilter:"required,field=type,doc=The underlying type of the choice"`
	TypeOptions *ordereddict.Dict `vfilter:"optional,field=type_options,doc=Any additional options required to parse the type"`
	Bitmap      *ordereddict.Dict `vfilter:"required,field=bitmap,doc=A mapping between names and the bit number"`
}

type flagBit struct {
	name string
	mask int64
}

// Flags replaces the value of an integer with the sorted names of its
// set bits.
type Flags struct {
	options FlagsOptions
	parser  Parser

	// Sorted by name.
	bits []flagBit
}

func (self *Flags) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	if options == nil {
		return nil, errors.New("Flags parser requires a type in the options")
	}

	result := &Flags{}
	err := ParseOptions(context.Background(), options, &result.options)
	if err != nil {
		return nil, errors.Wrap(err, "FlagsParser")
	}

	for _, name := range result.options.Bitmap.Keys() {
		value, _ := result.options.Bitmap.Get(name)
		bit, ok := to_int64(value)
		if !ok || bit < 0 || bit >= 64 {
			return nil, errors.Errorf(
				"Flags parser: bit number of %v must be between 0 and 63", name)
		}
		result.bits = append(result.bits, flagBit{name: name, mask: int64(1) << bit})
	}

	slices.SortFunc(result.bits, func(a, b flagBit) bool {
		return a.name < b.name
	})

	// Flags only apply to integers, which are always defined.
	result.parser, err = profile.GetParser(
		result.options.Type, result.options.TypeOptions)
	return result, err
}

func (self *Flags) names(number int64) []string {
	result := []string{}
	for _, bit := range self.bits {
		if bit.mask&number != 0 {
			result = append(result, bit.name)
		}
	}
	return result
}

func (self *Flags) Parse(
	scope vfilter.Scope, parent *FieldSet, name string) (Field, error) {
	field, err := self.parser.Parse(scope, parent, name)
	if err != nil {
		return nil, err
	}

	data, ok := field.(*Data)
	if !ok {
		return nil, errors.Errorf("Flags: %v is not an integer type", self.options.Type)
	}

	data.convert = func(value interface{}) (interface{}, error) {
		number, ok := to_int64(value)
		if !ok {
			return []string{}, nil
		}
		return self.names(number), nil
	}
	return data, nil
}
