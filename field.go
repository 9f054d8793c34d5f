package vfields

import (
	"www.velocidex.com/golang/vfilter"
)

// Kind selects how a field decodes its value.
type Kind int

const (
	KindInteger Kind = iota
	KindBits
	KindBit
	KindBytes
	KindString

	// A computed field occupying no bits.
	KindValue

	KindSet
)

func (self Kind) String() string {
	switch self {
	case KindInteger:
		return "integer"
	case KindBits:
		return "bits"
	case KindBit:
		return "bit"
	case KindBytes:
		return "bytes"
	case KindString:
		return "string"
	case KindValue:
		return "value"
	case KindSet:
		return "set"
	}
	return "unknown"
}

// Field is a named, addressed, sized and lazily valued node of the
// parse tree. Addresses and sizes are in bits.
type Field interface {
	Name() string
	Kind() Kind
	Parent() *FieldSet

	// Address relative to the parent.
	Address() int64

	// Address from the start of the stream.
	AbsoluteAddress() int64

	Size() (int64, error)
	Value() (interface{}, error)
	Description() string
	Display() string
	Path() string
	Stream() *InputStream

	common() *field
}

// Bookkeeping shared by every field.
type field struct {
	name     string
	parent   *FieldSet
	address  int64
	absolute int64
	stream   *InputStream
	endian   Endian

	description string
	describe    func(Field) string
	display     func(Field) string

	// Set once the parent accepted the field.
	registered bool
}

func (self *field) common() *field {
	return self
}

func (self *field) Name() string {
	return self.name
}

func (self *field) Parent() *FieldSet {
	return self.parent
}

func (self *field) Address() int64 {
	return self.address
}

func (self *field) AbsoluteAddress() int64 {
	return self.absolute
}

func (self *field) Stream() *InputStream {
	return self.stream
}

func (self *field) Endian() Endian {
	return self.endian
}

func (self *field) Path() string {
	if self.parent == nil {
		return "/"
	}
	parent := self.parent.Path()
	if parent == "/" {
		return "/" + self.name
	}
	return parent + "/" + self.name
}

// Place the field at the cursor of parent.
func (self *field) init(parent *FieldSet, name string, settings *settings) {
	self.name = name
	self.parent = parent.tree
	self.address = parent.current
	self.absolute = parent.absolute + parent.current
	self.stream = parent.stream
	self.endian = settings.endian
	if self.endian == EndianInherit {
		self.endian = parent.endian
	}
	self.description = settings.description
	self.describe = settings.describe
	self.display = settings.display
}

type Option func(*settings)

type settings struct {
	description string
	describe    func(Field) string
	display     func(Field) string
	endian      Endian

	// Sets only.
	size  int64
	value func(*FieldSet) (interface{}, error)
	array bool

	// Strings only.
	charset string
	strip   string

	// Roots only.
	scope  vfilter.Scope
	config *Config
	depth  int
}

func newSettings(options []Option) *settings {
	result := &settings{size: -1}
	for _, option := range options {
		option(result)
	}
	return result
}

func WithDescription(description string) Option {
	return func(self *settings) {
		self.description = description
	}
}

// WithDescriber computes the description from the field, typically
// from its value.
func WithDescriber(describe func(Field) string) Option {
	return func(self *settings) {
		self.describe = describe
	}
}

// WithDisplay replaces the default rendering of the value.
func WithDisplay(display func(Field) string) Option {
	return func(self *settings) {
		self.display = display
	}
}

// WithEndian pins the endian of a set, or of an integer or bit field.
func WithEndian(endian Endian) Option {
	return func(self *settings) {
		self.endian = endian
	}
}

// WithSize fixes the size of a FieldSet in bits.
func WithSize(size int64) Option {
	return func(self *settings) {
		self.size = size
	}
}

// WithValue gives a FieldSet a value derived from its children.
func WithValue(value func(*FieldSet) (interface{}, error)) Option {
	return func(self *settings) {
		self.value = value
	}
}

func WithCharset(charset string) Option {
	return func(self *settings) {
		self.charset = charset
	}
}

// WithStrip removes these characters from both ends of a string.
func WithStrip(strip string) Option {
	return func(self *settings) {
		self.strip = strip
	}
}

// WithScope attaches a vfilter scope to a root, used for logging and
// profile expressions.
func WithScope(scope vfilter.Scope) Option {
	return func(self *settings) {
		self.scope = scope
	}
}

func WithConfig(config *Config) Option {
	return func(self *settings) {
		self.config = config
	}
}

func asArray() Option {
	return func(self *settings) {
		self.array = true
	}
}

func withDepth(depth int) Option {
	return func(self *settings) {
		self.depth = depth
	}
}
