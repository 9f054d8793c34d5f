package vfields

import (
	"github.com/Velocidex/ordereddict"
	"www.velocidex.com/golang/vfilter"
)

// A parser that always produces an empty field with a NULL value
type NullParser struct{}

func (self NullParser) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	return NullParser{}, nil
}

func (self NullParser) Parse(
	scope vfilter.Scope, parent *FieldSet, name string) (Field, error) {
	return NewValue(parent, name, func(self *Data) (interface{}, error) {
		return vfilter.Null{}, nil
	})
}
