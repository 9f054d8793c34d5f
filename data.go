package vfields

// Data is a leaf field. The kind decides how the value is decoded;
// address and size are fixed at construction.
type Data struct {
	field

	kind   Kind
	size   int64
	signed bool

	// Strings.
	charset string
	strip   string
	prefix  int64
	suffix  int64

	// Cut a fixed length string at the first terminator, searched
	// every step bytes.
	truncate []byte
	step     int64

	// Overrides the kind based decoding.
	compute func(*Data) (interface{}, error)

	// Applied to the decoded value.
	convert func(interface{}) (interface{}, error)

	evaluated bool
	value     interface{}
	err       error
}

func newData(parent *FieldSet, name string, kind Kind, size int64, options []Option) *Data {
	settings := newSettings(options)
	result := &Data{
		kind:    kind,
		size:    size,
		charset: settings.charset,
		strip:   settings.strip,
	}
	result.init(parent, name, settings)
	return result
}

func (self *Data) Kind() Kind {
	return self.kind
}

func (self *Data) Size() (int64, error) {
	return self.size, nil
}

// Value decodes the field on first use and caches the result, errors
// included.
func (self *Data) Value() (interface{}, error) {
	if !self.evaluated {
		self.value, self.err = self.createValue()
		if self.err == nil && self.convert != nil {
			self.value, self.err = self.convert(self.value)
		}
		self.evaluated = true
	}
	return self.value, self.err
}

func (self *Data) createValue() (interface{}, error) {
	if self.compute != nil {
		return self.compute(self)
	}

	switch self.kind {
	case KindInteger:
		return self.stream.ReadInteger(
			self.absolute, self.signed, self.size, self.endian)

	case KindBits:
		if self.size <= 64 {
			return self.stream.ReadBits(self.absolute, self.size, self.endian)
		}
		return self.stream.ReadInteger(self.absolute, false, self.size, self.endian)

	case KindBit:
		value, err := self.stream.ReadBits(self.absolute, 1, self.endian)
		return value == 1, err

	case KindBytes:
		return self.stream.ReadBytes(self.absolute, self.size/8)

	case KindString:
		return self.decodeString()
	}

	return nil, nil
}

func (self *Data) Description() string {
	return describeField(self, &self.field)
}

func (self *Data) Display() string {
	return displayField(self, &self.field)
}

// NewInteger is the generic integer constructor behind IntegerType.
func NewInteger(parent *FieldSet, name string, signed bool, endian Endian,
	nbits int64, options ...Option) (*Data, error) {
	if nbits < MinIntegerBits || nbits > MaxIntegerBits {
		return nil, constructionErrorf(name,
			"invalid integer size (%v): have to be in %v..%v",
			nbits, MinIntegerBits, MaxIntegerBits)
	}
	if endian != EndianInherit {
		options = append(options, WithEndian(endian))
	}
	result := newData(parent, name, KindInteger, nbits, options)
	result.signed = signed
	return result, nil
}

// NewBits is an unsigned value of any bit width, decoded in the
// endian of the parent.
func NewBits(parent *FieldSet, name string, nbits int64, options ...Option) (*Data, error) {
	if nbits < 1 {
		return nil, constructionErrorf(name, "invalid bit size %v", nbits)
	}
	return newData(parent, name, KindBits, nbits, options), nil
}

// NullBits are padding bits expected to be zero.
func NewNullBits(parent *FieldSet, name string, nbits int64, options ...Option) (*Data, error) {
	if len(options) == 0 {
		options = []Option{WithDescription("Padding")}
	}
	return NewBits(parent, name, nbits, options...)
}

func NewRawBits(parent *FieldSet, name string, nbits int64, options ...Option) (*Data, error) {
	return NewBits(parent, name, nbits, options...)
}

func NewBit(parent *FieldSet, name string, options ...Option) (*Data, error) {
	return newData(parent, name, KindBit, 1, options), nil
}

func NewBytes(parent *FieldSet, name string, nbytes int64, options ...Option) (*Data, error) {
	if nbytes < 0 {
		return nil, constructionErrorf(name, "invalid byte count %v", nbytes)
	}
	return newData(parent, name, KindBytes, nbytes*8, options), nil
}

// RawBytes hold content the parser does not interpret.
func NewRawBytes(parent *FieldSet, name string, nbytes int64, options ...Option) (*Data, error) {
	return NewBytes(parent, name, nbytes, options...)
}

func NewNullBytes(parent *FieldSet, name string, nbytes int64, options ...Option) (*Data, error) {
	if len(options) == 0 {
		options = []Option{WithDescription("Padding")}
	}
	return NewBytes(parent, name, nbytes, options...)
}

// NewValue is a zero sized field whose value is computed, e.g. from
// its siblings.
func NewValue(parent *FieldSet, name string,
	compute func(*Data) (interface{}, error), options ...Option) (*Data, error) {
	result := newData(parent, name, KindValue, 0, options)
	result.compute = compute
	return result, nil
}
