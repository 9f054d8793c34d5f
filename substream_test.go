package vfields

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	assert "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compressWith(t *testing.T, name string, data []byte) []byte {
	var buf bytes.Buffer
	var writer io.WriteCloser
	var err error

	switch name {
	case "zlib":
		writer = zlib.NewWriter(&buf)
	case "gzip":
		writer = gzip.NewWriter(&buf)
	case "deflate":
		writer, err = flate.NewWriter(&buf, flate.BestCompression)
	case "zstd":
		writer, err = zstd.NewWriter(&buf)
	case "s2":
		writer = s2.NewWriter(&buf)
	case "snappy":
		writer = snappy.NewBufferedWriter(&buf)
	default:
		t.Fatalf("no writer for %v", name)
	}
	require.NoError(t, err)

	_, err = writer.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return buf.Bytes()
}

func TestSubStreamTranslation(t *testing.T) {
	parent := NewBytesStream(sample, "sample")

	stream, err := NewSubStream(parent, 4, 8, SubStreamOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(64), stream.Size())

	data, err := stream.ReadBytes(0, 8)
	require.NoError(t, err)
	assert.Equal(t, sample[4:12], data)

	value, err := stream.ReadBits(4, 8, BigEndian)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x50), value)

	_, err = stream.ReadBytes(4*8, 8)
	var bounds *StreamBoundsError
	assert.True(t, errors.As(err, &bounds))

	// A section never extends past its parent.
	stream, err = NewSubStream(parent, 40, 100, SubStreamOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(3*8), stream.Size())
}

func TestSubStreamHeader(t *testing.T) {
	parent := NewBytesStream(sample, "sample")

	stream, err := NewSubStream(parent, 2, 4, SubStreamOptions{
		Header: []byte("HDR"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7*8), stream.Size())

	data, err := stream.ReadBytes(0, 7)
	require.NoError(t, err)
	assert.Equal(t, []byte("HDR\x03\x04\x05\x06"), data)

	// Reads straddling the header and the body.
	data, err = stream.ReadBytes(2*8, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("R\x03\x04"), data)

	_, err = stream.ReadBytes(5*8, 3)
	assert.Error(t, err)
}

func TestFilters(t *testing.T) {
	content := bytes.Repeat([]byte("vfields filters "), 1000)

	for _, name := range []string{"zlib", "gzip", "deflate", "zstd", "s2", "snappy"} {
		filter, err := GetFilter(name)
		require.NoError(t, err, name)

		compressed := compressWith(t, name, content)
		framed := append(append([]byte("junk"), compressed...), []byte("tail")...)
		parent := NewBytesStream(framed, name)

		stream, err := NewSubStream(parent, 4, int64(len(compressed)),
			SubStreamOptions{Filter: filter, Header: []byte("H")})
		require.NoError(t, err, name)

		// Nothing is known before the decoder reached its end.
		assert.Equal(t, int64(-1), stream.Size(), name)
		assert.True(t, stream.SizeGE(100*8), name)

		data, err := stream.ReadBytes(1*8, 16)
		require.NoError(t, err, name)
		assert.Equal(t, content[:16], data, name)

		assert.Equal(t, int64(len(content)+1)*8, stream.Length(), name)
		assert.False(t, stream.SizeGE(int64(len(content)+2)*8), name)

		data, err = stream.ReadBytes(0, int64(len(content)+1))
		require.NoError(t, err, name)
		assert.Equal(t, content, data[1:], name)
	}

	_, err := GetFilter("lzma")
	assert.True(t, errors.Is(err, NotFoundError))
	assert.Equal(t, []string{"deflate", "gzip", "s2", "snappy", "zlib", "zstd"},
		FilterNames())
}

func TestFilterMaxSize(t *testing.T) {
	content := make([]byte, 100000)
	compressed := compressWith(t, "zstd", content)

	stream, err := NewSubStream(NewBytesStream(compressed, "bomb"), 0,
		int64(len(compressed)), SubStreamOptions{Filter: Zstd, MaxSize: 1000})
	require.NoError(t, err)

	data, err := stream.ReadBytes(0, 1000)
	require.NoError(t, err)
	assert.Equal(t, content[:1000], data)

	_, err = stream.ReadBytes(900*8, 200)
	var limit *DecodeLimitError
	require.True(t, errors.As(err, &limit))
	assert.Equal(t, int64(1000), limit.Max)

	// The truncated output is not taken for the whole content.
	assert.Equal(t, int64(-1), stream.Size())
	assert.Equal(t, int64(-1), stream.Length())
	assert.False(t, stream.SizeGE(1001*8))

	assert.NoError(t, stream.Failure(999*8))
	assert.True(t, errors.As(stream.Failure(1000*8), &limit))
}

func TestFilterMaxSizeFailsTheTree(t *testing.T) {
	content := make([]byte, 100000)
	compressed := compressWith(t, "zstd", content)

	stream, err := NewSubStream(NewBytesStream(compressed, "bomb"), 0,
		int64(len(compressed)), SubStreamOptions{Filter: Zstd, MaxSize: 1000})
	require.NoError(t, err)

	root := NewRoot(stream, "bomb", func(s *FieldSet, yield Yield) error {
		for !s.EOF() {
			err := yield(UInt8.New(s, "b[]"))
			if err != nil {
				return err
			}
		}
		return nil
	})
	defer root.Close()

	_, err = root.Len()
	var limit *DecodeLimitError
	assert.True(t, errors.As(err, &limit))
	assert.Equal(t, 1000, root.Generated())

	_, err = root.Size()
	assert.True(t, errors.As(err, &limit))

	_, err = root.Fields()
	assert.Error(t, err)

	// A set ending before the limit is complete.
	stream, err = NewSubStream(NewBytesStream(compressed, "bomb"), 0,
		int64(len(compressed)), SubStreamOptions{Filter: Zstd, MaxSize: 1000})
	require.NoError(t, err)

	head := NewRoot(stream, "head", func(s *FieldSet, yield Yield) error {
		return yield(NewFieldSet(s, "header", func(s *FieldSet, yield Yield) error {
			return yield(UInt32.New(s, "magic"))
		}))
	})
	defer head.Close()

	header, err := head.Field("header")
	require.NoError(t, err)

	size, err := header.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(32), size)
}

func TestSubFileStreams(t *testing.T) {
	content := []byte("the embedded content")
	compressed := compressWith(t, "zlib", content)
	data := append([]byte{byte(len(compressed))}, compressed...)

	var subfile *SubFile
	root := NewRoot(NewBytesStream(data, "outer"), "root",
		func(s *FieldSet, yield Yield) error {
			err := yield(UInt8.New(s, "size"))
			if err != nil {
				return err
			}

			size, err := s.UintOf("size")
			if err != nil {
				return err
			}

			subfile, err = NewSubFile(s, "body", int64(size), nil)
			if err != nil {
				return err
			}
			subfile.SetHeader(func() ([]byte, error) {
				return []byte(">>"), nil
			})
			return yield(Compress(subfile, Zlib), nil)
		})

	field, err := root.Field("body")
	require.NoError(t, err)
	assert.Equal(t, "zlib compressed data", field.Description())

	size, err := field.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(len(compressed)*8), size)

	// Every stream decodes from the start on its own.
	first, err := subfile.InputStream()
	require.NoError(t, err)
	second, err := subfile.InputStream()
	require.NoError(t, err)

	tail, err := first.ReadBytes(10*8, 5)
	require.NoError(t, err)
	assert.Equal(t, content[8:13], tail)

	head, err := second.ReadBytes(0, 6)
	require.NoError(t, err)
	assert.Equal(t, []byte(">>the "), head)

	assert.Equal(t, int64(len(content)+2)*8, first.Length())
	assert.Equal(t, int64(len(content)+2)*8, second.Length())

	// Without a format there is nothing to open.
	_, err = subfile.Open()
	assert.Error(t, err)
}
