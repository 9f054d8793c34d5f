package vfields

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// A TagParser generates the payload of a tag record. size is the
// payload size in bytes declared by the record header.
type TagParser func(record *FieldSet, yield Yield, size int64) error

// TagInfo describes how to interpret the payload of one tag code. A
// nil Parse keeps the payload as raw bytes.
type TagInfo struct {
	Name        string
	Description string
	Parse       TagParser
}

// TagTable maps a tag code to its interpretation.
type TagTable map[int64]TagInfo

// Lookup returns a copy of the entry for code. Unknown codes are not
// an error: they get a generic name and no parser.
func (self TagTable) Lookup(code int64, fallback string) TagInfo {
	info, pres := self[code]
	if !pres {
		return TagInfo{
			Name:        fallback,
			Description: "Unknown tag",
		}
	}
	return info
}

// Codes returns the known codes in ascending order.
func (self TagTable) Codes() []int64 {
	result := maps.Keys(self)
	slices.Sort(result)
	return result
}

// EmitPayload yields the size bytes of payload of a record, either
// through the parser of info or as one raw field.
func EmitPayload(record *FieldSet, yield Yield, info TagInfo,
	raw_name string, size int64) error {
	if size <= 0 {
		return nil
	}

	if info.Parse == nil {
		return yield(NewRawBytes(record, raw_name, size))
	}

	start := record.CurrentSize()
	err := info.Parse(record, yield, size)
	if err != nil {
		return err
	}

	// Anything the parser left is kept as raw content.
	left := size*8 - (record.CurrentSize() - start)
	if left > 0 {
		return yield(createRawField(record, raw_name, left))
	}
	if left < 0 {
		return parserErrorf(record.Path(),
			"tag parser consumed %v bits more than the %v bytes declared",
			-left, size)
	}
	return nil
}
