package vfields

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Field resolves a slash separated path relative to this set. ".."
// refers to the parent and a leading "/" starts at the root. Sets along
// the path are generated only as far as needed.
func (self *FieldSet) Field(path string) (Field, error) {
	var current Field = self
	if strings.HasPrefix(path, "/") {
		current = self.Root()
	}

	for _, component := range strings.Split(path, "/") {
		switch component {
		case "", ".":
			continue

		case "..":
			parent := current.Parent()
			if parent == nil {
				return nil, &MissingFieldError{Path: current.Path(), Name: ".."}
			}
			current = parent
			continue
		}

		set, ok := current.(*FieldSet)
		if !ok {
			return nil, &MissingFieldError{Path: current.Path(), Name: component}
		}

		child, err := set.Child(component)
		if err != nil {
			return nil, err
		}
		current = child
	}

	return current, nil
}

// ValueOf returns the value of the field at path.
func (self *FieldSet) ValueOf(path string) (interface{}, error) {
	field, err := self.Field(path)
	if err != nil {
		return nil, err
	}
	return field.Value()
}

func (self *FieldSet) UintOf(path string) (uint64, error) {
	value, err := self.ValueOf(path)
	if err != nil {
		return 0, err
	}

	switch t := value.(type) {
	case uint64:
		return t, nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	}

	number, ok := to_int64(value)
	if !ok || number < 0 {
		return 0, errors.Errorf("%v: %v is not an unsigned integer", path, value)
	}
	return uint64(number), nil
}

func (self *FieldSet) IntOf(path string) (int64, error) {
	value, err := self.ValueOf(path)
	if err != nil {
		return 0, err
	}

	number, ok := to_int64(value)
	if !ok {
		return 0, errors.Errorf("%v: %v is not an integer", path, value)
	}
	return number, nil
}

func (self *FieldSet) StringOf(path string) (string, error) {
	value, err := self.ValueOf(path)
	if err != nil {
		return "", err
	}

	switch t := value.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	}
	return fmt.Sprintf("%v", value), nil
}
