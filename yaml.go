package vfields

import (
	"errors"
	"fmt"

	"github.com/Velocidex/ordereddict"
)

func (self *StructDefinition) UnmarshalYAML(unmarshal func(v interface{}) error) error {
	var values []interface{}
	err := unmarshal(&values)
	if err != nil {
		return err
	}
	ok := false

	if len(values) != 3 && len(values) != 4 {
		return errors.New("Struct Definition should be [name, size, fields, options?]")
	}

	self.Name, ok = values[0].(string)
	if !ok {
		return errors.New("Name should be a string")
	}

	size, ok := to_int64(values[1])
	if ok {
		self.Size = int(size)

	} else {
		self.SizeExpression, ok = values[1].(string)
		if !ok {
			return errors.New("Size should be a string or integer")
		}
	}

	fields, ok := values[2].([]interface{})
	if !ok {
		return errors.New("Fields should be a list of field definitions")
	}

	for _, field_def := range fields {
		field, ok := field_def.([]interface{})
		if !ok {
			return fmt.Errorf("%v: Field Definition should be [name, offset?, type, options?]",
				self.Name)
		}

		new_field, err := parseFieldDefinition(self.Name, field)
		if err != nil {
			return err
		}
		self.Fields = append(self.Fields, new_field)
	}

	if len(values) == 4 {
		option_map, ok := values[3].(map[interface{}]interface{})
		if !ok {
			return fmt.Errorf("%v: struct options should be a map", self.Name)
		}
		options, err := to_ordereddict(option_map)
		if err != nil {
			return fmt.Errorf("%v: struct options %v", self.Name, err)
		}
		self.Endian, _ = options.GetString("endian")
	}

	return nil
}

// Fields are [name, type], [name, type, options], [name, offset, type]
// or [name, offset, type, options].
func parseFieldDefinition(struct_name string, field []interface{}) (*FieldDefinition, error) {
	if len(field) < 2 || len(field) > 4 {
		return nil, fmt.Errorf("%v: Field Definition should be [name, offset?, type, options?]",
			struct_name)
	}

	new_field := &FieldDefinition{}
	var ok bool
	new_field.Name, ok = field[0].(string)
	if !ok {
		return nil, fmt.Errorf("%v: field name should be a string", struct_name)
	}

	rest := field[1:]
	has_offset := len(rest) == 3
	if len(rest) == 2 {
		_, is_map := rest[1].(map[interface{}]interface{})
		has_offset = !is_map
	}

	if has_offset {
		offset, ok := to_int64(rest[0])
		if ok {
			new_field.Offset = offset
		} else {
			new_field.OffsetExpression, ok = rest[0].(string)
			if !ok {
				return nil, fmt.Errorf("%v: field %v offset should be a string or int",
					struct_name, new_field.Name)
			}
		}
		new_field.HasOffset = true
		rest = rest[1:]
	}

	new_field.Type, ok = rest[0].(string)
	if !ok {
		return nil, fmt.Errorf("%v: field %v type should be a string",
			struct_name, new_field.Name)
	}

	if len(rest) == 2 {
		option_map, ok := rest[1].(map[interface{}]interface{})
		if !ok {
			return nil, fmt.Errorf("%v: field %v options should be a map",
				struct_name, new_field.Name)
		}
		options, err := to_ordereddict(option_map)
		if err != nil {
			return nil, fmt.Errorf("%v: field %v options %v",
				struct_name, new_field.Name, err)
		}
		new_field.Options = options
	}

	return new_field, nil
}

func to_ordereddict(dict map[interface{}]interface{}) (*ordereddict.Dict, error) {
	var err error
	result := ordereddict.NewDict()
	for k, v := range dict {
		opt_name, ok := k.(string)
		if !ok {
			// Enumeration choices are keyed by numbers.
			opt_name = fmt.Sprintf("%v", k)
		}
		v_dict, ok := v.(map[interface{}]interface{})
		if ok {
			v, err = to_ordereddict(v_dict)
			if err != nil {
				return nil, err
			}
		}
		result.Set(opt_name, v)
	}

	return result, nil
}
