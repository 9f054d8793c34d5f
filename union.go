package vfields

import (
	"context"
	"fmt"
	"sync"

	"github.com/Velocidex/ordereddict"
	"github.com/pkg/errors"
	"www.velocidex.com/golang/vfilter"
)

// Union picks the type of a field from the value of a selector
// expression evaluated on the enclosing struct. Selector values
// without a choice fall back to the "default" choice, then to an empty
// field.
type Union struct {
	Selector *vfilter.Lambda

	// selector value -> type name
	types   *ordereddict.Dict
	profile *Profile

	mu      sync.Mutex
	parsers map[string]Parser
}

func (self *Union) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	if options == nil {
		return nil, errors.New("Union parser requires options")
	}

	expression, pres := options.GetString("selector")
	if !pres {
		return nil, errors.New("Union parser requires a lambda selector")
	}

	selector, err := vfilter.ParseLambda(expression)
	if err != nil {
		return nil, errors.Wrapf(err, "Union parser selector expression '%v'",
			expression)
	}

	types := ordereddict.NewDict()
	if choices, pres := options.Get("choices"); pres {
		dict, ok := choices.(*ordereddict.Dict)
		if !ok {
			return nil, errors.New("Union parser requires choices to map values to type names")
		}
		types = dict
	}

	return &Union{
		Selector: selector,
		types:    types,
		profile:  profile,
		parsers:  make(map[string]Parser),
	}, nil
}

func (self *Union) selectorValue(scope vfilter.Scope) (string, bool) {
	this_obj, pres := scope.Resolve("this")
	if !pres {
		return "", false
	}

	value := self.Selector.Reduce(
		context.Background(), scope, []vfilter.Any{this_obj})
	if IsNil(value) {
		return "", false
	}
	return fmt.Sprintf("%v", value), true
}

// choice returns the parser for a selector value, or nil when neither
// the value nor the default has a choice.
func (self *Union) choice(key string) (Parser, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	type_name, pres := self.types.GetString(key)
	if !pres {
		key = "default"
		type_name, pres = self.types.GetString(key)
		if !pres {
			return nil, nil
		}
	}

	if parser, pres := self.parsers[key]; pres {
		return parser, nil
	}

	parser, err := self.profile.GetParser(type_name, ordereddict.NewDict())
	if err != nil {
		return nil, errors.Wrapf(err, "Union choice %v", key)
	}
	self.parsers[key] = parser
	return parser, nil
}

func (self *Union) Parse(
	scope vfilter.Scope, parent *FieldSet, name string) (Field, error) {
	key, ok := self.selectorValue(scope)
	if !ok {
		return NullParser{}.Parse(scope, parent, name)
	}

	parser, err := self.choice(key)
	if err != nil {
		return nil, err
	}
	if parser == nil {
		return NullParser{}.Parse(scope, parent, name)
	}
	return parser.Parse(scope, parent, name)
}
