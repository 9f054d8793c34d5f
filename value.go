package vfields

import (
	"strings"

	"github.com/Velocidex/ordereddict"
	"github.com/pkg/errors"
	"www.velocidex.com/golang/vfilter"
)

// ValueParser is a constant or an expression over the enclosing
// struct. It occupies no space.
type ValueParser struct {
	expression *vfilter.Lambda
	constant   interface{}
}

func (self *ValueParser) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	var value interface{}
	if options != nil {
		value, _ = options.Get("value")
	}
	if IsNil(value) {
		return nil, errors.New("Value parser must specify a value")
	}

	// Strings with an arrow are lambdas. Parsing them now reports
	// syntax errors with the profile.
	text, ok := value.(string)
	if !ok || !strings.Contains(text, "=>") {
		return &ValueParser{constant: value}, nil
	}

	expression, err := vfilter.ParseLambda(text)
	if err != nil {
		return nil, errors.Wrapf(err, "Value parser expression '%v'", text)
	}
	return &ValueParser{expression: expression}, nil
}

func (self *ValueParser) Parse(
	scope vfilter.Scope, parent *FieldSet, name string) (Field, error) {
	return NewValue(parent, name, func(field *Data) (interface{}, error) {
		if self.expression != nil {
			return EvalLambda(self.expression, scope), nil
		}
		return self.constant, nil
	})
}
