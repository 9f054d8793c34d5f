package vfields

import (
	"bytes"
	"io"
	"math"

	"github.com/pkg/errors"
)

const searchChunk = 256

// A source whose total length is only discovered by reading it,
// e.g. the output of a decompressor.
type lazySource interface {
	io.ReaderAt

	// Known returns the total length in bytes once the end of the
	// source has been reached cleanly.
	Known() (int64, bool)

	// Err is the reason the source stopped before its end, e.g. a
	// corrupt input or the decoded size limit.
	Err() error
}

// InputStream is a bit addressable view over a byte source. All
// addresses and sizes taken and returned by its methods are in bits
// unless the name says otherwise.
type InputStream struct {
	reader io.ReaderAt
	lazy   lazySource

	// In bytes, -1 while unknown.
	size   int64
	source string
}

// NewInputStream wraps reader which holds size bytes.
func NewInputStream(reader io.ReaderAt, size int64, source string) *InputStream {
	return &InputStream{
		reader: reader,
		size:   size,
		source: source,
	}
}

func NewBytesStream(data []byte, source string) *InputStream {
	return NewInputStream(bytes.NewReader(data), int64(len(data)), source)
}

func newLazyStream(src lazySource, source string) *InputStream {
	return &InputStream{
		reader: src,
		lazy:   src,
		size:   -1,
		source: source,
	}
}

func (self *InputStream) Source() string {
	return self.source
}

// Size returns the stream size in bits or -1 if it is not known yet.
func (self *InputStream) Size() int64 {
	if self.size < 0 && self.lazy != nil {
		n, ok := self.lazy.Known()
		if ok {
			self.size = n
		}
	}
	if self.size < 0 {
		return -1
	}
	return self.size * 8
}

// SizeGE reports whether the stream holds at least size bits. On a
// stream of unknown size this pulls enough of the source to decide.
func (self *InputStream) SizeGE(size int64) bool {
	if size <= 0 {
		return true
	}
	known := self.Size()
	if known >= 0 {
		return size <= known
	}

	buf := make([]byte, 1)
	n, _ := self.reader.ReadAt(buf, (size-1)/8)
	return n == 1
}

// Length returns the stream size in bits. A lazy source is decoded to
// its end to find out.
func (self *InputStream) Length() int64 {
	size := self.Size()
	if size >= 0 || self.lazy == nil {
		return size
	}

	buf := make([]byte, 1)
	self.reader.ReadAt(buf, math.MaxInt64/8-1)
	return self.Size()
}

// Failure returns the error which keeps the bit at address from being
// read, when the source stopped early. It is nil for addresses that
// were decoded and for streams which simply end.
func (self *InputStream) Failure(address int64) error {
	if self.lazy == nil || self.lazy.Err() == nil {
		return nil
	}

	buf := make([]byte, 1)
	n, _ := self.reader.ReadAt(buf, address/8)
	if n == 1 {
		return nil
	}
	return self.lazy.Err()
}

// ReadAt lets a stream act as the parent of a section reader.
func (self *InputStream) ReadAt(p []byte, off int64) (int, error) {
	return self.reader.ReadAt(p, off)
}

func (self *InputStream) readRaw(offset, length int64) ([]byte, error) {
	buf := make([]byte, length)
	if length == 0 {
		return buf, nil
	}

	n, err := self.reader.ReadAt(buf, offset)
	if int64(n) == length {
		return buf, nil
	}

	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrapf(err, "reading %v bytes at %v of %v",
			length, offset, self.source)
	}

	return nil, &StreamBoundsError{
		Source:  self.source,
		Address: offset * 8,
		Size:    length * 8,
	}
}

// ReadBytes reads nbytes starting at bit address, which does not need
// to be byte aligned.
func (self *InputStream) ReadBytes(address int64, nbytes int64) ([]byte, error) {
	shift := address % 8
	if shift == 0 {
		return self.readRaw(address/8, nbytes)
	}

	raw, err := self.readRaw(address/8, nbytes+1)
	if err != nil {
		return nil, err
	}

	result := make([]byte, nbytes)
	for i := range result {
		result[i] = raw[i]<<uint(shift) | raw[i+1]>>uint(8-shift)
	}
	return result, nil
}

// ReadBits reads an unsigned value of at most 64 bits.
func (self *InputStream) ReadBits(address int64, nbits int64, endian Endian) (uint64, error) {
	if nbits < 0 || nbits > 64 {
		return 0, errors.Errorf("ReadBits: can not read %v bits into an uint64", nbits)
	}
	buf, offset, err := self.cover(address, nbits)
	if err != nil {
		return 0, err
	}
	return extractUint64(buf, offset, nbits, endian), nil
}

// ReadInteger decodes an integer of any width. See DecodeInteger for
// the returned types.
func (self *InputStream) ReadInteger(
	address int64, signed bool, nbits int64, endian Endian) (interface{}, error) {
	buf, offset, err := self.cover(address, nbits)
	if err != nil {
		return nil, err
	}
	return DecodeInteger(buf, offset, signed, nbits, endian), nil
}

// cover reads all the bytes holding the bit range and returns the
// offset of the first bit inside them.
func (self *InputStream) cover(address, nbits int64) ([]byte, int64, error) {
	offset := address % 8
	nbytes := (offset + nbits + 7) / 8
	buf, err := self.readRaw(address/8, nbytes)
	if err != nil {
		return nil, 0, err
	}
	return buf, offset, nil
}

// IndexBytes searches for term starting at the byte aligned bit
// address. It returns the byte distance of the first match, only
// considering positions that are multiples of step, and scans at most
// max bytes.
func (self *InputStream) IndexBytes(
	address int64, term []byte, step int64, max int64) (int64, error) {
	if len(term) == 0 {
		return 0, nil
	}
	if step < 1 {
		step = 1
	}

	var window []byte
	for offset := int64(0); offset < max; offset += searchChunk {
		chunk := make([]byte, searchChunk)
		n, err := self.reader.ReadAt(chunk, address/8+offset)
		window = append(window, chunk[:n]...)

		for i := int64(0); i+int64(len(term)) <= int64(len(window)) && i < max; i += step {
			if bytes.HasPrefix(window[i:], term) {
				return i, nil
			}
		}

		if n < searchChunk {
			if err != nil && !errors.Is(err, io.EOF) {
				return 0, errors.Wrapf(err, "searching %v", self.source)
			}
			break
		}
	}

	return 0, &StreamBoundsError{
		Source:  self.source,
		Address: address,
		Size:    int64(len(window)) * 8,
	}
}
