// Support JSON marshalling of objects.

package vfields

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Velocidex/ordereddict"
)

func (self *StructDefinition) UnmarshalJSON(p []byte) error {
	var tmp []json.RawMessage
	if err := json.Unmarshal(p, &tmp); err != nil {
		return err
	}

	if len(tmp) != 3 && len(tmp) != 4 {
		return errors.New("Struct Definition should be [name, size, fields, options?]")
	}

	if err := json.Unmarshal(tmp[0], &self.Name); err != nil {
		return err
	}

	if err := json.Unmarshal(tmp[1], &self.Size); err != nil {
		if err := json.Unmarshal(tmp[1], &self.SizeExpression); err != nil {
			return err
		}
	}

	if err := json.Unmarshal(tmp[2], &self.Fields); err != nil {
		return fmt.Errorf("Decoding struct %v: %v", self.Name, err)
	}

	if len(tmp) == 4 {
		options := ordereddict.NewDict()
		if err := json.Unmarshal(tmp[3], options); err != nil {
			return fmt.Errorf("Decoding struct %v options: %v", self.Name, err)
		}
		self.Endian, _ = options.GetString("endian")
	}

	return nil
}

func (self *FieldDefinition) UnmarshalJSON(p []byte) error {
	var tmp []json.RawMessage
	if err := json.Unmarshal(p, &tmp); err != nil {
		return err
	}

	if len(tmp) < 2 || len(tmp) > 4 {
		return errors.New("Field Definition should be [name, offset?, type, options?]")
	}

	if err := json.Unmarshal(tmp[0], &self.Name); err != nil {
		return err
	}

	rest := tmp[1:]
	has_offset := len(rest) == 3
	if len(rest) == 2 {
		has_offset = !strings.HasPrefix(strings.TrimSpace(string(rest[1])), "{")
	}

	if has_offset {
		if err := json.Unmarshal(rest[0], &self.Offset); err != nil {
			if err := json.Unmarshal(rest[0], &self.OffsetExpression); err != nil {
				return err
			}
		}
		self.HasOffset = true
		rest = rest[1:]
	}

	if err := json.Unmarshal(rest[0], &self.Type); err != nil {
		return err
	}

	if len(rest) == 2 {
		self.Options = ordereddict.NewDict()
		if err := json.Unmarshal(rest[1], &self.Options); err != nil {
			return err
		}
	}

	return nil
}

// MarshalJSON renders a set as an object of its children. Arrays
// render as a list and fields whose name starts with __ are hidden.
func (self *FieldSet) MarshalJSON() ([]byte, error) {
	fields, err := self.Fields()
	if err != nil {
		return nil, err
	}

	if self.array {
		result := make([]interface{}, 0, len(fields))
		for _, field := range fields {
			result = append(result, jsonValue(field))
		}
		return json.Marshal(result)
	}

	result := ordereddict.NewDict()
	for _, field := range fields {
		if strings.HasPrefix(field.Name(), "__") {
			continue
		}
		result.Set(field.Name(), jsonValue(field))
	}
	return result.MarshalJSON()
}

func jsonValue(field Field) interface{} {
	switch t := field.(type) {
	case *FieldSet:
		return t
	case *SubFile:
		size, _ := t.Size()
		return fmt.Sprintf("<%v bytes>", size/8)
	}

	value, err := field.Value()
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return value
}
