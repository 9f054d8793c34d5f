package vfields

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/Velocidex/ordereddict"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Magic is a signature expected at a bit offset.
type Magic struct {
	Value  []byte
	Offset int64
}

// Metadata is only used to select a format for a stream.
type Metadata struct {
	ID          string
	Category    string
	FileExt     []string
	Mime        []string
	Description string

	// In bits.
	MinSize int64
	Magic   []Magic
}

// A Format module describes how to parse one file format.
type Format interface {
	Metadata() Metadata

	// The endian of the root set.
	Endian() Endian

	Generator() Generator

	// Validate rejects streams that are obviously not of this format
	// or are corrupt, before the tree is handed out. It may traverse
	// the first fields of root.
	Validate(root *FieldSet) error
}

// Formats implementing Describer give the root a description.
type Describer interface {
	Describe(root *FieldSet) string
}

// Formats implementing ContentSizer read the size of their content
// from its header. It may be smaller than the stream, e.g. for an
// embedded file followed by other data.
type ContentSizer interface {
	ContentSize(root *FieldSet) (int64, error)
}

// ContentSize returns the size in bits declared by the format of root,
// or -1 when the format does not declare one.
func ContentSize(format Format, root *FieldSet) (int64, error) {
	sizer, ok := format.(ContentSizer)
	if !ok {
		return -1, nil
	}
	return sizer.ContentSize(root)
}

// NewParser builds the root of format over stream without validating.
func NewParser(format Format, stream *InputStream, options ...Option) *FieldSet {
	metadata := format.Metadata()
	options = append([]Option{WithEndian(format.Endian())}, options...)

	describer, ok := format.(Describer)
	if ok {
		options = append(options, WithDescriber(func(self Field) string {
			return describer.Describe(self.(*FieldSet))
		}))
	} else if metadata.Description != "" {
		options = append(options, WithDescription(metadata.Description))
	}

	return NewRoot(stream, metadata.ID, format.Generator(), options...)
}

// Open builds and validates the root of format over stream.
func Open(format Format, stream *InputStream, options ...Option) (*FieldSet, error) {
	metadata := format.Metadata()

	size := stream.Size()
	if metadata.MinSize > 0 && !stream.SizeGE(metadata.MinSize) {
		return nil, &FormatValidationError{
			Format: metadata.ID,
			Reason: fmt.Sprintf("stream of %v bits is smaller than %v bits",
				size, metadata.MinSize),
		}
	}

	root := NewParser(format, stream, options...)
	if root.Config().Debug {
		root.root.scope = root.Scope().Copy()
		root.root.scope.AppendVars(
			ordereddict.NewDict().Set("DEBUG_VFIELDS", true))
	}

	err := format.Validate(root)
	if err != nil {
		root.Close()
		return nil, &FormatValidationError{
			Format: metadata.ID,
			Reason: err.Error(),
			Err:    err,
		}
	}

	ScopeDebug(root.Scope(), "vfields: %v is a valid %v", stream.Source(), metadata.ID)
	return root, nil
}

// Registry holds the known formats.
type Registry struct {
	mu      sync.Mutex
	formats map[string]Format
}

func NewRegistry() *Registry {
	return &Registry{formats: make(map[string]Format)}
}

func (self *Registry) Register(format Format) {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.formats[format.Metadata().ID] = format
}

func (self *Registry) Get(id string) (Format, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	format, pres := self.formats[id]
	if !pres {
		return nil, errors.Wrapf(NotFoundError, "format %v", id)
	}
	return format, nil
}

// IDs lists the registered formats in sorted order.
func (self *Registry) IDs() []string {
	self.mu.Lock()
	defer self.mu.Unlock()
	result := maps.Keys(self.formats)
	slices.Sort(result)
	return result
}

// Match returns the formats whose magic is found in stream, in ID
// order.
func (self *Registry) Match(stream *InputStream) []Format {
	var result []Format
	for _, id := range self.IDs() {
		format, err := self.Get(id)
		if err != nil {
			continue
		}
		if matchMagic(format.Metadata(), stream) {
			result = append(result, format)
		}
	}
	return result
}

func matchMagic(metadata Metadata, stream *InputStream) bool {
	for _, magic := range metadata.Magic {
		data, err := stream.ReadBytes(magic.Offset, int64(len(magic.Value)))
		if err == nil && bytes.Equal(data, magic.Value) {
			return true
		}
	}
	return false
}

// Open tries the matching formats in turn and returns the first tree
// which validates.
func (self *Registry) Open(stream *InputStream, options ...Option) (*FieldSet, error) {
	var last error = errors.Wrapf(NotFoundError, "no format matches %v", stream.Source())
	for _, format := range self.Match(stream) {
		root, err := Open(format, stream, options...)
		if err == nil {
			return root, nil
		}
		last = err
	}
	return nil, last
}
