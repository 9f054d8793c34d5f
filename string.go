package vfields

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Velocidex/ordereddict"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"www.velocidex.com/golang/vfilter"
)

// NewString is a fixed length string of nbytes.
func NewString(parent *FieldSet, name string, nbytes int64, options ...Option) (*Data, error) {
	if nbytes < 0 {
		return nil, constructionErrorf(name, "invalid string length %v", nbytes)
	}
	return newData(parent, name, KindString, nbytes*8, options), nil
}

// NewCString is a string terminated by a nul character (two bytes for
// UTF-16). The terminator is part of the field but not of the value.
func NewCString(parent *FieldSet, name string, options ...Option) (*Data, error) {
	result := newData(parent, name, KindString, 0, options)
	term, step := terminatorOf(result.charset)
	return result, result.terminate(term, step, parent.Config().MaxStringLength)
}

func newTerminated(parent *FieldSet, name string, term []byte,
	max int64, options ...Option) (*Data, error) {
	result := newData(parent, name, KindString, 0, options)
	_, step := terminatorOf(result.charset)
	return result, result.terminate(term, step, max)
}

func (self *Data) terminate(term []byte, step int64, max int64) error {
	if self.absolute%8 != 0 {
		return constructionErrorf(self.name, "terminated strings must be byte aligned")
	}

	length, err := self.stream.IndexBytes(self.absolute, term, step, max)
	if err != nil {
		return errors.Wrapf(err, "%v: no terminator within %v bytes", self.name, max)
	}

	self.suffix = int64(len(term))
	self.size = (length + self.suffix) * 8
	return nil
}

// NewPascalString8 is a string prefixed by its length in bytes.
func NewPascalString8(parent *FieldSet, name string, options ...Option) (*Data, error) {
	return newPascalString(parent, name, 8, options)
}

func NewPascalString16(parent *FieldSet, name string, options ...Option) (*Data, error) {
	return newPascalString(parent, name, 16, options)
}

func NewPascalString32(parent *FieldSet, name string, options ...Option) (*Data, error) {
	return newPascalString(parent, name, 32, options)
}

// The length prefix is read at construction since it decides the size.
func newPascalString(parent *FieldSet, name string, prefix int64,
	options []Option) (*Data, error) {
	result := newData(parent, name, KindString, prefix, options)
	length, err := result.stream.ReadBits(result.absolute, prefix, result.endian)
	if err != nil {
		return nil, errors.Wrapf(err, "%v: length prefix", name)
	}
	result.prefix = prefix
	result.size = prefix + int64(length)*8
	return result, nil
}

func (self *Data) decodeString() (interface{}, error) {
	nbytes := (self.size-self.prefix)/8 - self.suffix
	raw, err := self.stream.ReadBytes(self.absolute+self.prefix, nbytes)
	if err != nil {
		return nil, err
	}

	if len(self.truncate) > 0 {
		step := int(self.step)
		if step < 1 {
			step = 1
		}
		for i := 0; i+len(self.truncate) <= len(raw); i += step {
			if string(raw[i:i+len(self.truncate)]) == string(self.truncate) {
				raw = raw[:i]
				break
			}
		}
	}

	result, err := decodeCharset(self.charset, self.endian, raw)
	if err != nil {
		return nil, errors.Wrapf(err, "%v: charset %v", self.name, self.charset)
	}

	if self.strip != "" {
		result = strings.Trim(result, self.strip)
	}
	return result, nil
}

func normalizeCharset(charset string) string {
	return strings.ReplaceAll(strings.ToUpper(charset), "_", "-")
}

func terminatorOf(charset string) ([]byte, int64) {
	if strings.HasPrefix(normalizeCharset(charset), "UTF-16") {
		return []byte{0, 0}, 2
	}
	return []byte{0}, 1
}

func charsetEncoding(charset string, endian Endian) (encoding.Encoding, error) {
	switch normalizeCharset(charset) {
	case "", "ASCII", "UTF-8", "UTF8":
		return nil, nil
	case "ISO-8859-1", "LATIN1", "LATIN-1":
		return charmap.ISO8859_1, nil
	case "WINDOWS-1252", "CP1252":
		return charmap.Windows1252, nil
	case "UTF-16-LE", "UTF-16LE":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), nil
	case "UTF-16-BE", "UTF-16BE":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), nil
	case "UTF-16", "UTF16":
		if endian == LittleEndian {
			return unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), nil
		}
		return unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), nil
	}
	return nil, fmt.Errorf("unsupported charset %v", charset)
}

func decodeCharset(charset string, endian Endian, raw []byte) (string, error) {
	enc, err := charsetEncoding(charset, endian)
	if err != nil {
		return "", err
	}
	if enc == nil {
		return string(raw), nil
	}

	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

var defaultTerm = "\x00"

type StringParserOptions struct {
	Length           *int64 `vfilter:"optional,lambda=LengthExpression,field=length,doc=Length of the string to read in bytes (Can be a lambda)"`
	LengthExpression *vfilter.Lambda
	MaxLength        int64   `vfilter:"optional,field=max_length,doc=Maximum length that is enforced on the string size"`
	Term             *string `vfilter:"optional,field=term,doc=Terminating string"`
	TermHex          *string `vfilter:"optional,field=term_hex,doc=A Terminator in hex encoding"`
	Encoding         string  `vfilter:"optional,field=encoding,doc=The charset of the string, e.g. utf8, utf16, latin1"`
	Strip            string  `vfilter:"optional,field=strip,doc=Characters removed from both ends"`
	Bytes            bool    `vfilter:"optional,field=byte_string,doc=Produce raw bytes instead of a string"`

	term []byte
}

type StringParser struct {
	options StringParserOptions
}

func (self *StringParser) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	result := &StringParser{}
	if options == nil {
		options = ordereddict.NewDict()
	}

	ctx := context.Background()
	err := ParseOptions(ctx, options, &result.options)
	if err != nil {
		return nil, fmt.Errorf("StringParser: %v", err)
	}

	if result.options.MaxLength == 0 {
		result.options.MaxLength = 1024
	}

	switch strings.ToLower(result.options.Encoding) {
	case "utf8", "":
		result.options.Encoding = ""
	case "utf16":
		result.options.Encoding = "UTF-16-LE"
	default:
		_, err := charsetEncoding(result.options.Encoding, LittleEndian)
		if err != nil {
			return nil, fmt.Errorf("StringParser: %v", err)
		}
	}

	term := defaultTerm
	if result.options.Term != nil {
		term = *result.options.Term
	}
	if result.options.TermHex != nil {
		decoded, err := hex.DecodeString(*result.options.TermHex)
		if err != nil {
			return nil, fmt.Errorf("StringParser: term_hex: %v", err)
		}
		term = string(decoded)
	}

	result.options.term = []byte(term)
	if len(result.options.term) == 1 && term == defaultTerm {
		result.options.term, _ = terminatorOf(result.options.Encoding)
	}

	return result, nil
}

func (self *StringParser) getCount(scope vfilter.Scope) (int64, bool) {
	if self.options.LengthExpression != nil {
		return EvalLambdaAsInt64(self.options.LengthExpression, scope), true
	}
	if self.options.Length != nil {
		return *self.options.Length, true
	}
	return 0, false
}

func (self *StringParser) fieldOptions() []Option {
	result := []Option{WithCharset(self.options.Encoding)}
	if self.options.Strip != "" {
		result = append(result, WithStrip(self.options.Strip))
	}
	return result
}

// Parse produces a fixed length string when a length is given, and a
// string running up to the terminator otherwise.
func (self *StringParser) Parse(
	scope vfilter.Scope, parent *FieldSet, name string) (Field, error) {
	length, fixed := self.getCount(scope)
	if !fixed && len(self.options.term) == 0 {
		length, fixed = self.options.MaxLength, true
	}
	if !fixed {
		return newTerminated(parent, name, self.options.term,
			self.options.MaxLength, self.fieldOptions()...)
	}

	if length > self.options.MaxLength {
		length = self.options.MaxLength
	}
	if length < 0 {
		length = 0
	}

	if self.options.Bytes {
		return NewBytes(parent, name, length)
	}

	result, err := NewString(parent, name, length, self.fieldOptions()...)
	if err != nil {
		return nil, err
	}
	result.truncate = self.options.term
	_, result.step = terminatorOf(self.options.Encoding)
	return result, nil
}

type PascalStringParser struct {
	bits     int64
	encoding string
}

func (self *PascalStringParser) New(profile *Profile, options *ordereddict.Dict) (Parser, error) {
	result := &PascalStringParser{bits: self.bits}
	if options != nil {
		result.encoding, _ = options.GetString("encoding")
		_, err := charsetEncoding(result.encoding, LittleEndian)
		if err != nil {
			return nil, fmt.Errorf("PascalStringParser: %v", err)
		}
	}
	return result, nil
}

func (self *PascalStringParser) Parse(
	scope vfilter.Scope, parent *FieldSet, name string) (Field, error) {
	return newPascalString(parent, name, self.bits,
		[]Option{WithCharset(self.encoding)})
}
