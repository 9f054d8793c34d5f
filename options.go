package vfields

import (
	"context"
	"reflect"
	"regexp"
	"strings"

	"github.com/Velocidex/ordereddict"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"www.velocidex.com/golang/vfilter"
	"www.velocidex.com/golang/vfilter/types"
)

// Option structs describe each field with a tag like
// `vfilter:"required,field=length,lambda=LengthExpression,doc=..."`.
const tagName = "vfilter"

// optionTag is the parsed tag of one option struct field.
type optionTag struct {
	// The option name in the profile.
	name     string
	required bool

	// Another struct field receiving the option when it is a lambda.
	lambda string
}

// parseOptionTag returns false for untagged fields. The doc directive
// runs to the end of the tag, so it may hold commas.
func parseOptionTag(field reflect.StructField) (optionTag, bool) {
	result := optionTag{name: field.Name}

	tag := field.Tag.Get(tagName)
	if tag == "" || tag == "-" {
		return result, false
	}

	if idx := strings.Index(tag, "doc="); idx >= 0 {
		tag = tag[:idx]
	}

	for _, directive := range strings.Split(tag, ",") {
		key, value, _ := strings.Cut(strings.TrimSpace(directive), "=")
		switch key {
		case "required":
			result.required = true
		case "field":
			if value != "" {
				result.name = value
			}
		case "lambda":
			result.lambda = value
		}
	}
	return result, true
}

// ParseOptions fills the tagged fields of the struct target points to
// from a parser's options. Options the struct does not declare are an
// error, so typos in profiles are caught early.
func ParseOptions(ctx context.Context, args *ordereddict.Dict, target interface{}) error {
	value := reflect.ValueOf(target)
	if value.Kind() == reflect.Ptr {
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return errors.Errorf("ParseOptions: %T is not a struct", target)
	}

	unused := make(map[string]bool)
	for _, key := range args.Keys() {
		unused[key] = true
	}

	struct_type := value.Type()
	for i := 0; i < struct_type.NumField(); i++ {
		tag, ok := parseOptionTag(struct_type.Field(i))
		if !ok {
			continue
		}

		data, pres := args.Get(tag.name)
		if !pres {
			if tag.required {
				return errors.Errorf("option %v is required in %T", tag.name, target)
			}
			continue
		}
		delete(unused, tag.name)

		if lazy, ok := data.(types.LazyExpr); ok {
			data = lazy.Reduce(ctx)
		}

		err := setOption(value, i, tag, data)
		if err != nil {
			return errors.Wrapf(err, "option %v", tag.name)
		}
	}

	if len(unused) > 0 {
		names := maps.Keys(unused)
		slices.Sort(names)
		return errors.Errorf("unexpected options provided: %v",
			strings.Join(names, ", "))
	}
	return nil
}

// setOption stores data in field number idx of the struct, or in its
// lambda field when data is a lambda and the tag allows one.
func setOption(value reflect.Value, idx int, tag optionTag, data interface{}) error {
	if tag.lambda != "" && isFieldLambda(data) {
		lambda, err := vfilter.ParseLambda(data.(string))
		if err != nil {
			return errors.Wrap(err, "parsing lambda")
		}

		target := value.FieldByName(tag.lambda)
		if !target.IsValid() || !target.CanSet() {
			return errors.Errorf("no settable field %v for the lambda", tag.lambda)
		}
		target.Set(reflect.ValueOf(lambda))
		return nil
	}

	field := value.Field(idx)
	if !field.CanSet() {
		return errors.New("field is unsettable")
	}

	type_name := field.Type().String()
	setter, pres := optionSetters[type_name]
	if !pres {
		return errors.Errorf("unable to handle field type %v", type_name)
	}

	converted, err := setter.convert(data)
	if err != nil {
		return err
	}
	if converted == nil {
		return errors.Errorf("expecting %v not %T", setter.expecting, data)
	}
	field.Set(reflect.ValueOf(converted))
	return nil
}

var (
	lambdaRegex = regexp.MustCompile("^[a-zA-Z0-9]+ *=>")
)

// An optionSetter converts an option to the type of a struct field. A
// nil result means the option has the wrong type.
type optionSetter struct {
	expecting string
	convert   func(data interface{}) (interface{}, error)
}

var optionSetters = map[string]optionSetter{
	"string": {"a string", func(data interface{}) (interface{}, error) {
		str, ok := data.(string)
		if !ok {
			return nil, nil
		}
		return str, nil
	}},

	"int64": {"an integer", func(data interface{}) (interface{}, error) {
		number, ok := to_int64(data)
		if !ok {
			return nil, nil
		}
		return number, nil
	}},

	"uint64": {"an integer", func(data interface{}) (interface{}, error) {
		number, ok := to_int64(data)
		if !ok {
			return nil, nil
		}
		return uint64(number), nil
	}},

	"bool": {"a bool", func(data interface{}) (interface{}, error) {
		flag, ok := data.(bool)
		if ok {
			return flag, nil
		}
		number, ok := to_int64(data)
		if !ok {
			return nil, nil
		}
		return number > 0, nil
	}},

	"*string": {"a string", func(data interface{}) (interface{}, error) {
		str, ok := data.(string)
		if !ok {
			return nil, nil
		}
		return &str, nil
	}},

	"*int64": {"an integer", func(data interface{}) (interface{}, error) {
		number, ok := to_int64(data)
		if !ok {
			return nil, nil
		}
		return &number, nil
	}},

	"*ordereddict.Dict": {"a mapping", func(data interface{}) (interface{}, error) {
		switch t := data.(type) {
		case *ordereddict.Dict:
			return t, nil
		case map[string]interface{}:
			result := ordereddict.NewDict()
			for k, v := range t {
				result.Set(k, v)
			}
			return result, nil
		case map[interface{}]interface{}:
			return to_ordereddict(t)
		}
		return nil, nil
	}},

	"*vfilter.Lambda": {"a vql lambda", func(data interface{}) (interface{}, error) {
		str, ok := data.(string)
		if !ok {
			return nil, nil
		}
		lambda, err := vfilter.ParseLambda(str)
		if err != nil {
			return nil, errors.Wrap(err, "parsing lambda")
		}
		return lambda, nil
	}},

	"vfields.Endian": {"big, little or middle", func(data interface{}) (interface{}, error) {
		name, ok := data.(string)
		if !ok {
			return nil, nil
		}
		endian, ok := ParseEndian(name)
		if !ok {
			return nil, errors.Errorf("unknown endian %v", name)
		}
		return endian, nil
	}},
}

func isFieldLambda(value interface{}) bool {
	str, ok := value.(string)
	if !ok {
		return false
	}

	return lambdaRegex.MatchString(str)
}

func maybeGetParser(
	profile *Profile,
	type_name string,
	options *ordereddict.Dict) (Parser, error) {
	// Get the parser now so we can catch errors in sub parser
	// definitions
	parser, err := profile.GetParser(type_name, options)

	// It is fine if the underlying type is not known yet. It may be
	// defined later.
	if err != nil && !errors.Is(err, NotFoundError) {
		return nil, err
	}

	return parser, nil
}
