package vfields

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// Returned by the profile when a type name is not registered.
	NotFoundError = errors.New("Parser not found")

	// Yielded back into a generator when its consumer went away.
	errStopped = errors.New("generation stopped")
)

// A ConstructionError is returned when a field declaration is invalid
// regardless of the data, e.g. an integer width outside 8..16384.
type ConstructionError struct {
	Field string
	Msg   string
}

func (self *ConstructionError) Error() string {
	return fmt.Sprintf("vfields: invalid field %v: %v", self.Field, self.Msg)
}

// A FormatValidationError is returned by Open when the format rejects
// the stream before the tree is handed out.
type FormatValidationError struct {
	Format string
	Reason string
	Err    error
}

func (self *FormatValidationError) Error() string {
	return fmt.Sprintf("vfields: %v validation failed: %v",
		self.Format, self.Reason)
}

func (self *FormatValidationError) Unwrap() error {
	return self.Err
}

// A StreamBoundsError is returned when a read or a field extends past
// the end of its stream. Address and Size are in bits.
type StreamBoundsError struct {
	Source  string
	Address int64
	Size    int64
}

func (self *StreamBoundsError) Error() string {
	return fmt.Sprintf("vfields: read of %v bits at bit %v is out of bounds of %v",
		self.Size, self.Address, self.Source)
}

// A DecodeLimitError is returned by streams whose decoded content
// grows past Config.MaxDecompressedSize. Max is in bytes.
type DecodeLimitError struct {
	Max int64
}

func (self *DecodeLimitError) Error() string {
	return fmt.Sprintf("vfields: decoded data exceeds the limit of %v bytes", self.Max)
}

// A ParserError reports inconsistent data found while generating
// fields.
type ParserError struct {
	Path string
	Msg  string
}

func (self *ParserError) Error() string {
	return fmt.Sprintf("vfields: %v: %v", self.Path, self.Msg)
}

// A MissingFieldError is returned when a FieldSet was fully generated
// and does not contain the requested name.
type MissingFieldError struct {
	Path string
	Name string
}

func (self *MissingFieldError) Error() string {
	return fmt.Sprintf("vfields: %v has no field %v", self.Path, self.Name)
}

func constructionErrorf(field string, format string, args ...interface{}) error {
	return &ConstructionError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

func parserErrorf(path string, format string, args ...interface{}) error {
	return &ParserError{Path: path, Msg: fmt.Sprintf(format, args...)}
}

// IsMissing reports whether err only says that a field does not exist.
func IsMissing(err error) bool {
	var missing *MissingFieldError
	return errors.As(err, &missing)
}
