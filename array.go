package vfields

import (
	"context"

	"github.com/Velocidex/ordereddict"
	"github.com/pkg/errors"
	"www.velocidex.com/golang/vfilter"
)

type ArrayParserOptions struct {
	Count              int64
	MaxCount           int64
	CountExpression    *vfilter.Lambda
	SentinelExpression *vfilter.Lambda
}

// ArrayParser produces a set of consecutive elements of one type,
// named item[0], item[1]...
type ArrayParser struct {
	options ArrayParserOptions
	element *lazyParser
}

func parseLambdaOption(options *ordereddict.Dict, name string) (*vfilter.Lambda, error) {
	expression, _ := options.GetString(name)
	if expression == "" {
		return nil, nil
	}

	result, err := vfilter.ParseLambda(expression)
	if err != nil {
		return nil, errors.Wrapf(err, "%v expression '%v'", name, expression)
	}
	return result, nil
}

func (self *ArrayParser) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	if options == nil {
		return nil, errors.New("Array parser requires a type in the options")
	}

	element, err := newLazyParser(profile, "Array", options)
	if err != nil {
		return nil, err
	}

	result := &ArrayParser{element: element}

	// A missing count is an empty array.
	result.options.Count, _ = options.GetInt64("count")
	result.options.MaxCount, _ = options.GetInt64("max_count")
	if result.options.MaxCount == 0 {
		result.options.MaxCount = 1000
	}

	result.options.CountExpression, err = parseLambdaOption(options, "count")
	if err != nil {
		return nil, errors.Wrap(err, "Array parser")
	}

	result.options.SentinelExpression, err = parseLambdaOption(options, "sentinel")
	if err != nil {
		return nil, errors.Wrap(err, "Array parser")
	}

	return result, nil
}

func (self *ArrayParser) getCount(scope vfilter.Scope) int64 {
	result := self.options.Count
	if self.options.CountExpression != nil {
		result = EvalLambdaAsInt64(self.options.CountExpression, scope)
	}

	switch {
	case result > self.options.MaxCount:
		return self.options.MaxCount
	case result < 0:
		return 0
	}
	return result
}

func (self *ArrayParser) Parse(
	scope vfilter.Scope, parent *FieldSet, name string) (Field, error) {
	parser, err := self.element.Resolve()
	if err != nil {
		return nil, err
	}

	// The count depends on the enclosing struct so it is taken now.
	count := self.getCount(scope)

	return NewFieldSet(parent, name, func(s *FieldSet, yield Yield) error {
		for i := int64(0); i < count && !s.EOF(); i++ {
			element, err := parser.Parse(scope, s, "item[]")
			err = yield(element, err)
			if err != nil {
				return err
			}

			// Check for a sentinel value. The sentinel element is
			// kept in the array.
			if self.options.SentinelExpression != nil {
				sentinel := self.options.SentinelExpression.Reduce(
					context.Background(), scope,
					[]vfilter.Any{elementValue(element)})
				if scope.Bool(sentinel) {
					break
				}
			}
		}
		return nil
	}, asArray(), WithValue(arrayContents))
}

// Sets stand for themselves in expressions, other fields for their
// value.
func elementValue(field Field) interface{} {
	set, ok := field.(*FieldSet)
	if ok {
		return set
	}

	value, err := field.Value()
	if err != nil || IsNil(value) {
		return vfilter.Null{}
	}
	return value
}

func arrayContents(self *FieldSet) (interface{}, error) {
	fields, err := self.Fields()
	if err != nil {
		return nil, err
	}

	result := make([]interface{}, 0, len(fields))
	for _, field := range fields {
		result = append(result, elementValue(field))
	}
	return result, nil
}
