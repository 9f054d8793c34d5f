package jpeg

import (
	"errors"
	"testing"

	assert "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"www.velocidex.com/golang/vfields"
)

var picture = []byte{
	0xFF, TAG_SOI,
	0xFF, TAG_APP0, 0x00, 0x06, 'J', 'F', 'I', 'F',
	0xFF, TAG_SOS, 0x00, 0x02,
	0x01, 0x02, 0x03,
	0xFF, TAG_EOI,
}

func fieldNames(t *testing.T, set *vfields.FieldSet) []string {
	fields, err := set.Fields()
	require.NoError(t, err)

	result := []string{}
	for _, field := range fields {
		result = append(result, field.Name())
	}
	return result
}

func TestJPEGChunks(t *testing.T) {
	root, err := vfields.Open(Format{}, vfields.NewBytesStream(picture, "test.jpg"))
	require.NoError(t, err)
	defer root.Close()

	assert.Equal(t, []string{"chunk[0]", "chunk[1]", "chunk[2]", "data", "chunk[3]"},
		fieldNames(t, root))

	// Markers standing alone have no size.
	soi, err := root.Field("chunk[0]")
	require.NoError(t, err)
	assert.Equal(t, []string{"header", "type"}, fieldNames(t, soi.(*vfields.FieldSet)))
	assert.Equal(t, "Chunk: Start of image (SOI)", soi.Description())

	app0, err := root.Field("chunk[1]")
	require.NoError(t, err)
	assert.Equal(t, []string{"header", "type", "size", "content"},
		fieldNames(t, app0.(*vfields.FieldSet)))

	content, err := root.StringOf("chunk[1]/content")
	require.NoError(t, err)
	assert.Equal(t, "JFIF", content)

	kind, err := root.Field("chunk[1]/type")
	require.NoError(t, err)
	assert.Equal(t, "APP0", kind.Display())

	data, err := root.ValueOf("data")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, data)

	size, err := root.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(len(picture)*8), size)
}

func TestJPEGTruncatedScan(t *testing.T) {
	// Without an EOI marker the scan data runs to the end.
	truncated := picture[:len(picture)-2]

	root, err := vfields.Open(Format{}, vfields.NewBytesStream(truncated, "test.jpg"))
	require.NoError(t, err)
	defer root.Close()

	assert.Equal(t, []string{"chunk[0]", "chunk[1]", "chunk[2]", "data"},
		fieldNames(t, root))

	data, err := root.ValueOf("data")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, data)
}

func TestJPEGInvalidChunk(t *testing.T) {
	broken := append([]byte{}, picture...)
	broken[2] = 0x00

	root, err := vfields.Open(Format{}, vfields.NewBytesStream(broken, "test.jpg"))
	require.NoError(t, err)
	defer root.Close()

	_, err = root.Fields()
	var parser_error *vfields.ParserError
	assert.True(t, errors.As(err, &parser_error))

	// The fields before the error are still there.
	assert.Equal(t, 1, root.Generated())

	_, err = vfields.Open(Format{}, vfields.NewBytesStream([]byte("GIF89a"), "test.gif"))
	var validation *vfields.FormatValidationError
	assert.True(t, errors.As(err, &validation))
}

func TestJPEGHeader(t *testing.T) {
	data := []byte{
		0xFF, TAG_DQT, 0x00, 0x03, 0x00,
		0xFF, TAG_SOI,
		0xFF, TAG_EOI,
	}

	root := vfields.NewRoot(vfields.NewBytesStream(data, "tables"), "tables",
		func(s *vfields.FieldSet, yield vfields.Yield) error {
			return yield(NewHeader(s, "jpeg_header"))
		})
	defer root.Close()

	header, err := root.Field("jpeg_header")
	require.NoError(t, err)

	// The header stops at the SOI marker following the tables.
	assert.Equal(t, []string{"jpeg_chunk[0]", "jpeg_chunk[1]"},
		fieldNames(t, header.(*vfields.FieldSet)))

	size, err := header.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(7*8), size)

	// The rest of the root is padded.
	assert.Equal(t, []string{"jpeg_header", "raw[0]"}, fieldNames(t, root))
}
