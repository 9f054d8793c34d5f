// Implements a declarative binary parsing system.
package vfields

import (
	"github.com/Velocidex/ordereddict"
	"www.velocidex.com/golang/vfilter"
)

// Parsers are objects which know how to construct the field of a
// particular type. Parsers are instantiated once and reused many
// times.
type Parser interface {
	// Parse constructs a field called name at the cursor of parent.
	// Expressions are evaluated in scope, where "this" is the struct
	// being generated.
	Parse(scope vfilter.Scope, parent *FieldSet, name string) (Field, error)

	// Given options, this returns a new configured parser
	New(profile *Profile, options *ordereddict.Dict) (Parser, error)
}

// Parsers of fixed size types report their size in bytes.
type Sizer interface {
	Size() int
}
