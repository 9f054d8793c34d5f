package vfields

import (
	"context"
	"fmt"

	"github.com/Velocidex/ordereddict"
	"www.velocidex.com/golang/vfilter"
)

type PointerParserOptions struct {
	Type        string            `vfilter:"required,field=type,doc=The type of the target"`
	TypeOptions *ordereddict.Dict `vfilter:"optional,field=type_options,doc=Any additional options required to parse the type"`
	PointerType string            `vfilter:"optional,field=pointer_type,doc=The integer type holding the address (default uint64)"`
}

// PointerParser reads an absolute byte address. Its value is the
// target, parsed in a tree of its own over the same stream.
type PointerParser struct {
	options PointerParserOptions
	profile *Profile
	target  *lazyParser
	pointer Parser
}

func (self *PointerParser) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	if options == nil {
		return nil, fmt.Errorf("Pointer parser requires a type in the options")
	}

	result := &PointerParser{profile: profile}
	ctx := context.Background()
	err := ParseOptions(ctx, options, &result.options)
	if err != nil {
		return nil, fmt.Errorf("PointerParser: %v", err)
	}

	if result.options.PointerType == "" {
		result.options.PointerType = "uint64"
	}

	result.pointer, err = profile.GetParser(result.options.PointerType, nil)
	if err != nil {
		return nil, fmt.Errorf("PointerParser: %w", err)
	}

	// Targets defined later in the profile are resolved on first use.
	result.target = &lazyParser{
		owner:   "Pointer",
		profile: profile,
		type_:   result.options.Type,
		options: result.options.TypeOptions,
	}
	result.target.resolved, err = maybeGetParser(profile,
		result.options.Type, result.options.TypeOptions)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (self *PointerParser) Parse(
	scope vfilter.Scope, parent *FieldSet, name string) (Field, error) {
	target := self.target.Get(scope)

	field, err := self.pointer.Parse(scope, parent, name)
	if err != nil {
		return nil, err
	}

	data, ok := field.(*Data)
	if !ok {
		return nil, fmt.Errorf("PointerParser: %v is not an integer type",
			self.options.PointerType)
	}

	stream := data.Stream()
	data.convert = func(value interface{}) (interface{}, error) {
		address, ok := to_int64(value)
		if !ok {
			return vfilter.Null{}, nil
		}

		target, err := self.profile.parseWith(
			scope, target, self.options.Type, stream, address)
		if err != nil {
			return nil, err
		}
		return elementValue(target), nil
	}
	data.display = Hexadecimal
	return data, nil
}
