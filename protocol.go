package vfields

import (
	"context"

	"github.com/Velocidex/ordereddict"
	"www.velocidex.com/golang/vfilter"
)

// FieldSetAssociative lets expressions reach into sets: x.Field is the
// value of a child (sets stand for themselves) and SizeOf, StartOf,
// EndOf and ParentOf are in bytes.
type FieldSetAssociative struct{}

func (self FieldSetAssociative) Applicable(a vfilter.Any, b vfilter.Any) bool {
	switch a.(type) {
	case *FieldSet:
		_, ok := b.(string)
		if ok {
			return true
		}
	}
	return false
}

func (self FieldSetAssociative) Associative(scope vfilter.Scope,
	a vfilter.Any, b vfilter.Any) (vfilter.Any, bool) {
	lhs, ok := a.(*FieldSet)
	if !ok {
		return vfilter.Null{}, false
	}

	rhs, ok := b.(string)
	if !ok {
		return vfilter.Null{}, false
	}

	switch rhs {
	case "SizeOf":
		return int64(SizeOf(lhs)), true

	case "StartOf":
		return StartOf(lhs), true

	case "EndOf":
		return EndOf(lhs), true

	case "ParentOf":
		parent := lhs.Parent()
		if parent == nil {
			return vfilter.Null{}, true
		}
		return parent, true
	}

	if lhs.array {
		contents, err := lhs.Value()
		if err != nil {
			return vfilter.Null{}, false
		}

		switch rhs {
		// Provide a way to access the raw array
		case "Value", "ContentsOf":
			return contents, true

		default:
			// Fallback to associative on the underlying array.
			return scope.Associative(contents, b)
		}
	}

	child, err := lhs.Child(rhs)
	if err != nil {
		ScopeDebug(scope, "vfields: %v: %v", lhs.Path(), err)
		return vfilter.Null{}, false
	}
	return elementValue(child), true
}

func (self FieldSetAssociative) GetMembers(scope vfilter.Scope, a vfilter.Any) []string {
	lhs, ok := a.(*FieldSet)
	if !ok || lhs.array {
		return nil
	}

	fields, _ := lhs.Fields()
	result := make([]string, 0, len(fields))
	for _, field := range fields {
		result = append(result, field.Name())
	}
	return result
}

// Arrays also participate in the iterator protocol
type FieldSetIterator struct{}

func (self FieldSetIterator) Applicable(a vfilter.Any) bool {
	set, ok := a.(*FieldSet)
	return ok && set.array
}

func (self FieldSetIterator) Iterate(
	ctx context.Context, scope vfilter.Scope, a vfilter.Any) <-chan vfilter.Row {
	output_chan := make(chan vfilter.Row)

	obj, ok := a.(*FieldSet)
	var fields []Field
	if ok {
		// Generate here: sets are not safe for concurrent population.
		fields, _ = obj.Fields()
	}

	go func() {
		defer close(output_chan)

		for _, field := range fields {
			item := elementValue(field)
			switch item.(type) {

			// We must emit objects with a valid Associative protocol
			// because this will form the basis for the columns in
			// foreach. These objects are ok to emit directly.
			case *ordereddict.Dict, *FieldSet:
			default:
				// Anything else place inside a dict.
				item = ordereddict.NewDict().Set("_value", item)
			}

			select {
			case <-ctx.Done():
				return

			case output_chan <- item:
			}
		}
	}()

	return output_chan
}
