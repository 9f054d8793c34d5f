package vfields

import (
	"context"
	"fmt"

	"github.com/Velocidex/ordereddict"
	"www.velocidex.com/golang/vfilter"
)

type RawBytesParserOptions struct {
	Length           int64 `vfilter:"optional,lambda=LengthExpression,field=length,doc=Number of bytes (Can be a lambda)"`
	LengthExpression *vfilter.Lambda
}

// RawBytesParser keeps a run of bytes uninterpreted. With null set
// the bytes are padding.
type RawBytesParser struct {
	options RawBytesParserOptions
	null    bool
}

func (self *RawBytesParser) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	result := &RawBytesParser{null: self.null}
	if options == nil {
		options = ordereddict.NewDict()
	}

	ctx := context.Background()
	err := ParseOptions(ctx, options, &result.options)
	if err != nil {
		return nil, fmt.Errorf("RawBytesParser: %v", err)
	}
	return result, nil
}

func (self *RawBytesParser) getCount(scope vfilter.Scope) int64 {
	if self.options.LengthExpression != nil {
		return EvalLambdaAsInt64(self.options.LengthExpression, scope)
	}
	return self.options.Length
}

func (self *RawBytesParser) Parse(
	scope vfilter.Scope, parent *FieldSet, name string) (Field, error) {
	length := self.getCount(scope)
	if self.null {
		return NewNullBytes(parent, name, length)
	}
	return NewRawBytes(parent, name, length)
}
