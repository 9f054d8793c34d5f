package vfields

import (
	"fmt"
	"strconv"

	"github.com/Velocidex/ordereddict"
	"github.com/pkg/errors"
	"www.velocidex.com/golang/vfilter"
)

// EnumerationParser replaces the value of an integer with its name.
// Values without a name are shown in hex.
type EnumerationParser struct {
	underlying *lazyParser
	names      map[int64]string
}

func (self *EnumerationParser) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	if options == nil {
		return nil, errors.New("Enumeration parser requires an options dict")
	}

	underlying, err := newLazyParser(profile, "Enumeration", options)
	if err != nil {
		return nil, err
	}

	result := &EnumerationParser{
		underlying: underlying,
		names:      make(map[int64]string),
	}

	// choices are keyed by number, map is keyed by name.
	if choices, pres := options.Get("choices"); pres {
		err := result.addChoices(choices)
		if err != nil {
			return nil, err
		}
	}

	if mapping, pres := options.Get("map"); pres {
		err := result.addMap(mapping)
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (self *EnumerationParser) addChoices(choices interface{}) error {
	dict, ok := choices.(*ordereddict.Dict)
	if !ok {
		return errors.New("Enumeration choices must map numbers to names")
	}

	for _, key := range dict.Keys() {
		number, err := strconv.ParseInt(key, 0, 64)
		if err != nil {
			return errors.Errorf("Enumeration choice %q is not a number", key)
		}

		value, _ := dict.Get(key)
		name, ok := value.(string)
		if !ok {
			return errors.Errorf("Enumeration choice %v must be a string", key)
		}
		self.names[number] = name
	}
	return nil
}

func (self *EnumerationParser) addMap(mapping interface{}) error {
	dict, ok := mapping.(*ordereddict.Dict)
	if !ok {
		return errors.New("Enumeration map must map names to numbers")
	}

	for _, name := range dict.Keys() {
		value, _ := dict.Get(name)
		number, ok := to_int64(value)
		if !ok {
			return errors.Errorf("Enumeration map entry %v must be a number", name)
		}
		self.names[number] = name
	}
	return nil
}

func (self *EnumerationParser) Name(number int64) string {
	name, pres := self.names[number]
	if !pres {
		return fmt.Sprintf("%#x", number)
	}
	return name
}

func (self *EnumerationParser) Parse(
	scope vfilter.Scope, parent *FieldSet, name string) (Field, error) {
	field, err := self.underlying.Get(scope).Parse(scope, parent, name)
	if err != nil {
		return nil, err
	}

	data, ok := field.(*Data)
	if !ok {
		return field, nil
	}

	data.convert = func(value interface{}) (interface{}, error) {
		number, ok := to_int64(value)
		if !ok {
			return vfilter.Null{}, nil
		}
		return self.Name(number), nil
	}
	return data, nil
}

// lazyParser resolves the "type" option of a wrapping parser on first
// use, so profiles may refer to types defined later.
type lazyParser struct {
	owner    string
	profile  *Profile
	type_    string
	options  *ordereddict.Dict
	resolved Parser
}

func newLazyParser(profile *Profile, owner string,
	options *ordereddict.Dict) (*lazyParser, error) {
	type_name, pres := options.GetString("type")
	if !pres {
		return nil, errors.Errorf("%v parser requires a type in the options", owner)
	}

	result := &lazyParser{owner: owner, profile: profile, type_: type_name}
	if type_options, pres := options.Get("type_options"); pres {
		dict, ok := type_options.(*ordereddict.Dict)
		if !ok {
			return nil, errors.Errorf("%v parser type_options should be a dict", owner)
		}
		result.options = dict
	}
	return result, nil
}

// Resolve looks the type up in the profile, once.
func (self *lazyParser) Resolve() (Parser, error) {
	if self.resolved != nil {
		return self.resolved, nil
	}

	parser, err := self.profile.GetParser(self.type_, self.options)
	if err != nil {
		return nil, errors.Wrapf(err, "%v", self.owner)
	}
	self.resolved = parser
	return parser, nil
}

// Get is Resolve for wrappers that tolerate unknown types. The error is
// logged and the field parses as empty.
func (self *lazyParser) Get(scope vfilter.Scope) Parser {
	parser, err := self.Resolve()
	if err != nil {
		scope.Log("ERROR:binary_parser: %v", err)
		parser = NullParser{}
		self.resolved = parser
	}
	return parser
}
