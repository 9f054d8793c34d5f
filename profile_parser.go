package vfields

import (
	"github.com/Velocidex/ordereddict"
	"github.com/pkg/errors"
	"www.velocidex.com/golang/vfilter"
)

// ProfileParser parses a type at an absolute byte offset given by an
// expression. It occupies no space in the struct; the target lives in
// a tree of its own.
type ProfileParser struct {
	target *lazyParser
	offset *vfilter.Lambda
	owner  *Profile
}

func (self *ProfileParser) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	if options == nil {
		return nil, errors.New("Profile parser requires a type in the options")
	}

	target, err := newLazyParser(profile, "Profile", options)
	if err != nil {
		return nil, err
	}

	offset, err := parseLambdaOption(options, "offset")
	if err != nil {
		return nil, errors.Wrap(err, "Profile parser")
	}
	if offset == nil {
		return nil, errors.New("Profile parser requires an offset expression")
	}

	return &ProfileParser{target: target, offset: offset, owner: profile}, nil
}

func (self *ProfileParser) Parse(
	scope vfilter.Scope, parent *FieldSet, name string) (Field, error) {
	stream := parent.Stream()

	// The offset is taken from the enclosing struct when the value is
	// first asked for.
	return NewValue(parent, name, func(field *Data) (interface{}, error) {
		parser, err := self.target.Resolve()
		if err != nil {
			return nil, err
		}

		offset := EvalLambdaAsInt64(self.offset, scope)
		target, err := self.owner.parseWith(
			scope, parser, self.target.type_, stream, offset)
		if err != nil {
			return nil, err
		}
		return elementValue(target), nil
	})
}
