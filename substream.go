package vfields

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

type SubStreamOptions struct {
	// Decode the section through this filter.
	Filter Filter

	// Bytes served in front of the (decoded) section.
	Header []byte

	// Limit of the decoded size in bytes, 0 for no limit.
	MaxSize int64

	// Name used in errors, derived from the parent if empty.
	Source string
}

// NewSubStream returns a stream over length bytes of parent starting
// at byte offset. Without a filter reads are translated to the parent.
// With a filter the section is pulled sequentially through it and the
// decoded bytes become the content of the new stream, whose size is
// unknown until the decoder is exhausted.
func NewSubStream(parent *InputStream, offset, length int64,
	options SubStreamOptions) (*InputStream, error) {
	if offset < 0 || length < 0 {
		return nil, errors.Errorf("NewSubStream: invalid range %v+%v", offset, length)
	}

	source := options.Source
	if source == "" {
		source = fmt.Sprintf("%v[%v:%v]", parent.Source(), offset, offset+length)
	}

	// Never claim more than the parent holds.
	if size := parent.Size(); size >= 0 && offset+length > size/8 {
		length = size/8 - offset
		if length < 0 {
			length = 0
		}
	}

	section := io.NewSectionReader(parent, offset, length)

	var body *InputStream
	if options.Filter == nil {
		body = NewInputStream(section, length, source)

	} else {
		decoder, err := options.Filter.NewReader(section)
		if err != nil {
			return nil, errors.Wrapf(err, "%v filter on %v",
				options.Filter.Name(), source)
		}
		source = fmt.Sprintf("%v(%v)", options.Filter.Name(), source)
		body = newLazyStream(&filterSource{
			decoder: decoder,
			max:     options.MaxSize,
		}, source)
	}

	if len(options.Header) == 0 {
		return body, nil
	}

	return newLazyStream(&concatSource{
		header: options.Header,
		body:   body,
	}, source), nil
}

// concatSource serves a synthetic header followed by a body stream.
type concatSource struct {
	header []byte
	body   *InputStream
}

func (self *concatSource) ReadAt(p []byte, off int64) (int, error) {
	n := 0
	header_len := int64(len(self.header))
	if off < header_len {
		n = copy(p, self.header[off:])
		if n == len(p) {
			return n, nil
		}
	}

	body_offset := off + int64(n) - header_len
	m, err := self.body.ReadAt(p[n:], body_offset)
	return n + m, err
}

func (self *concatSource) Err() error {
	if self.body.lazy == nil {
		return nil
	}
	return self.body.lazy.Err()
}

func (self *concatSource) Known() (int64, bool) {
	size := self.body.Size()
	if size < 0 {
		return 0, false
	}
	return int64(len(self.header)) + size/8, true
}
