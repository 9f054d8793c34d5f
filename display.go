package vfields

import (
	"encoding/hex"
	"fmt"
	"math/big"
)

func describeField(self Field, common *field) string {
	if common.describe != nil {
		return common.describe(self)
	}
	return common.description
}

func displayField(self Field, common *field) string {
	if common.display != nil {
		return common.display(self)
	}

	value, err := self.Value()
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}

	switch t := value.(type) {
	case nil:
		if set, ok := self.(*FieldSet); ok {
			return set.Description()
		}
		return ""
	case string:
		return fmt.Sprintf("%q", t)
	case []byte:
		if len(t) > 32 {
			return fmt.Sprintf("%q...", t[:32])
		}
		return fmt.Sprintf("%q", t)
	}
	return fmt.Sprintf("%v", value)
}

// Hexadecimal displays an integer zero padded to the field width.
func Hexadecimal(self Field) string {
	value, err := self.Value()
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	size, _ := self.Size()
	width := int((size + 3) / 4)

	switch t := value.(type) {
	case *big.Int:
		return fmt.Sprintf("0x%0*X", width, t)
	case []byte:
		return "0x" + hex.EncodeToString(t)
	}

	number, ok := to_int64(value)
	if !ok {
		return fmt.Sprintf("%v", value)
	}
	if number < 0 {
		return fmt.Sprintf("-0x%0*X", width, -number)
	}
	return fmt.Sprintf("0x%0*X", width, number)
}

// Filesize displays an integer as a human readable number of bytes.
func Filesize(self Field) string {
	value, err := self.Value()
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	number, _ := to_int64(value)
	return HumanFilesize(number)
}

// Frequency displays an integer as a human readable frequency.
func Frequency(self Field) string {
	value, err := self.Value()
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	number, _ := to_int64(value)
	return HumanFrequency(number)
}

// Enum displays an integer through a table of names, falling back to
// the number itself.
func Enum(names map[int64]string) func(Field) string {
	return func(self Field) string {
		value, err := self.Value()
		if err != nil {
			return fmt.Sprintf("<%v>", err)
		}
		number, ok := to_int64(value)
		if ok {
			name, pres := names[number]
			if pres {
				return name
			}
		}
		return fmt.Sprintf("%v", value)
	}
}

func HumanFilesize(size int64) string {
	if size < 10000 {
		if size == 1 {
			return "1 byte"
		}
		return fmt.Sprintf("%d bytes", size)
	}

	value := float64(size)
	unit := ""
	for _, unit = range []string{"KB", "MB", "GB", "TB"} {
		value /= 1024
		if value < 1024 {
			return fmt.Sprintf("%.1f %s", value, unit)
		}
	}
	return fmt.Sprintf("%d %s", int64(value), unit)
}

func HumanFrequency(hertz int64) string {
	if hertz < 1000 {
		return fmt.Sprintf("%d Hz", hertz)
	}

	value := float64(hertz)
	unit := ""
	for _, unit = range []string{"kHz", "MHz", "GHz", "THz"} {
		value /= 1000
		if value < 1000 {
			return fmt.Sprintf("%.1f %s", value, unit)
		}
	}
	return fmt.Sprintf("%d %s", int64(value), unit)
}
