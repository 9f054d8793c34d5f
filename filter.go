package vfields

import (
	"io"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// A Filter decodes a byte stream incrementally. All the decoder state
// lives in the reader returned by NewReader: every Read asks for more
// output and the decoder pulls more input from r when it needs it.
type Filter interface {
	// Name is the name of the algorithm.
	Name() string

	NewReader(r io.Reader) (io.ReadCloser, error)
}

type filterFunc struct {
	name string
	open func(r io.Reader) (io.ReadCloser, error)
}

func (self *filterFunc) Name() string {
	return self.name
}

func (self *filterFunc) NewReader(r io.Reader) (io.ReadCloser, error) {
	return self.open(r)
}

// NewFilter adapts a decoder constructor to the Filter interface.
func NewFilter(name string, open func(r io.Reader) (io.ReadCloser, error)) Filter {
	return &filterFunc{name: name, open: open}
}

var (
	Zlib = NewFilter("zlib", func(r io.Reader) (io.ReadCloser, error) {
		return zlib.NewReader(r)
	})

	Deflate = NewFilter("deflate", func(r io.Reader) (io.ReadCloser, error) {
		return flate.NewReader(r), nil
	})

	Gzip = NewFilter("gzip", func(r io.Reader) (io.ReadCloser, error) {
		return gzip.NewReader(r)
	})

	Zstd = NewFilter("zstd", func(r io.Reader) (io.ReadCloser, error) {
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return decoder.IOReadCloser(), nil
	})

	S2 = NewFilter("s2", func(r io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(s2.NewReader(r)), nil
	})

	// The snappy framing format, not raw snappy blocks.
	Snappy = NewFilter("snappy", func(r io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(snappy.NewReader(r)), nil
	})
)

var (
	filters   = map[string]Filter{}
	filtersMu sync.RWMutex
)

// RegisterFilter adds or replaces a filter in the registry.
func RegisterFilter(filter Filter) {
	filtersMu.Lock()
	defer filtersMu.Unlock()
	filters[filter.Name()] = filter
}

func GetFilter(name string) (Filter, error) {
	filtersMu.RLock()
	defer filtersMu.RUnlock()
	filter, pres := filters[name]
	if !pres {
		return nil, errors.Wrapf(NotFoundError, "filter %v", name)
	}
	return filter, nil
}

// FilterNames lists the registered filters in sorted order.
func FilterNames() []string {
	filtersMu.RLock()
	defer filtersMu.RUnlock()
	names := maps.Keys(filters)
	slices.Sort(names)
	return names
}

func init() {
	for _, filter := range []Filter{Zlib, Deflate, Gzip, Zstd, S2, Snappy} {
		RegisterFilter(filter)
	}
}

const filterChunk = 32 * 1024

// filterSource buffers the output of a decoder so it can be read at
// random offsets. It is owned by exactly one InputStream.
type filterSource struct {
	decoder io.ReadCloser

	// Decoded output so far.
	buf []byte

	// Maximum number of decoded bytes, 0 for no limit.
	max int64

	done bool
	err  error
}

// fill decodes until at least want bytes are buffered or the decoder
// is exhausted.
func (self *filterSource) fill(want int64) error {
	for !self.done && int64(len(self.buf)) < want {
		chunk := make([]byte, filterChunk)
		n, err := self.decoder.Read(chunk)
		self.buf = append(self.buf, chunk[:n]...)

		if self.max > 0 && int64(len(self.buf)) > self.max {
			self.buf = self.buf[:self.max]
			self.finish(&DecodeLimitError{Max: self.max})
			break
		}

		if errors.Is(err, io.EOF) {
			self.finish(nil)
		} else if err != nil {
			self.finish(err)
		}
	}
	return self.err
}

func (self *filterSource) finish(err error) {
	self.done = true
	self.err = err
	self.decoder.Close()
}

func (self *filterSource) ReadAt(p []byte, off int64) (int, error) {
	err := self.fill(off + int64(len(p)))
	if off >= int64(len(self.buf)) {
		if err != nil {
			return 0, err
		}
		return 0, io.EOF
	}

	n := copy(p, self.buf[off:])
	if n < len(p) {
		if err != nil {
			return n, err
		}
		return n, io.EOF
	}
	return n, nil
}

// Known is false after a failure: the buffered output is a prefix of
// the content, not all of it.
func (self *filterSource) Known() (int64, bool) {
	return int64(len(self.buf)), self.done && self.err == nil
}

func (self *filterSource) Err() error {
	return self.err
}
