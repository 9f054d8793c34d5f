package vfields

import (
	"fmt"
	"time"

	"github.com/Velocidex/ordereddict"
	"www.velocidex.com/golang/vfilter"
)

// Builds an integer field of the given type and converts its value.
func convertedInteger(parser Parser, scope vfilter.Scope, parent *FieldSet,
	name string, convert func(value int64) interface{}) (Field, error) {
	field, err := parser.Parse(scope, parent, name)
	if err != nil {
		return nil, err
	}

	data, ok := field.(*Data)
	if !ok {
		return nil, fmt.Errorf("%v: timestamps need an integer type", name)
	}

	data.convert = func(value interface{}) (interface{}, error) {
		number, ok := to_int64(value)
		if !ok {
			return vfilter.Null{}, nil
		}
		return convert(number), nil
	}
	return data, nil
}

func timestampOptions(profile *Profile, options *ordereddict.Dict,
	default_type string) (Parser, int64, error) {
	parser_type := default_type
	factor := int64(1)
	pres := false
	if options != nil {
		parser_type, pres = options.GetString("type")
		if !pres {
			parser_type = default_type
		}

		factor, pres = options.GetInt64("factor")
		if !pres || factor == 0 {
			factor = 1
		}
	}

	parser, err := profile.GetParser(parser_type, ordereddict.NewDict())
	if err != nil {
		return nil, 0, fmt.Errorf("timestamp parser type %v: %w", parser_type, err)
	}
	return parser, factor, nil
}

type EpochTimestamp struct {
	parser Parser
	factor int64
}

func (self *EpochTimestamp) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	parser, factor, err := timestampOptions(profile, options, "uint32")
	if err != nil {
		return nil, fmt.Errorf("EpochTimestamp: %w", err)
	}

	return &EpochTimestamp{
		parser: parser,
		factor: factor,
	}, nil
}

func (self *EpochTimestamp) Parse(
	scope vfilter.Scope, parent *FieldSet, name string) (Field, error) {
	return convertedInteger(self.parser, scope, parent, name,
		func(value int64) interface{} {
			return time.Unix(value/self.factor, value%self.factor).UTC()
		})
}

type WinFileTime struct {
	parser Parser
	factor int64
}

func (self *WinFileTime) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	parser, factor, err := timestampOptions(profile, options, "uint64")
	if err != nil {
		return nil, fmt.Errorf("WinFileTime: %w", err)
	}

	return &WinFileTime{
		parser: parser,
		factor: factor,
	}, nil
}

func (self *WinFileTime) Parse(
	scope vfilter.Scope, parent *FieldSet, name string) (Field, error) {
	return convertedInteger(self.parser, scope, parent, name,
		func(value int64) interface{} {
			return time.Unix((value/self.factor/10000000)-11644473600, 0).UTC()
		})
}

type FatTimestamp struct {
	parser Parser
}

func (self *FatTimestamp) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	parser, err := profile.GetParser("uint32", nil)
	if err != nil {
		return nil, err
	}
	return &FatTimestamp{parser: parser}, nil
}

func (self *FatTimestamp) Parse(
	scope vfilter.Scope, parent *FieldSet, name string) (Field, error) {
	return convertedInteger(self.parser, scope, parent, name,
		func(date_int int64) interface{} {
			// Dos times are stored as 2 uint16 numbers - first the date
			// then the time so swap them.
			date_int = ((date_int & 0xFFFF) << 16) + (date_int >> 16)

			year := 1980 + (date_int >> 25)
			month := (date_int >> 21) & ((1 << 4) - 1)
			day := (date_int >> 16) & ((1 << 6) - 1)
			hour := (date_int >> 11) & ((1 << 6) - 1)
			min := (date_int >> 5) & ((1 << 7) - 1)
			sec := (date_int) & ((1 << 6) - 1)

			return time.Date(int(year), time.Month(month), int(day),
				int(hour), int(min), int(sec), 0, time.UTC)
		})
}
