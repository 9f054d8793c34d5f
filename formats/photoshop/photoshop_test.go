package photoshop

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	assert "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"www.velocidex.com/golang/vfields"
)

func resources() []byte {
	result := []byte(SIGNATURE + "\x00")

	// IPTC record with a pascal name and an odd size.
	result = append(result, "8BIM"...)
	result = append(result, 0x04, 0x04)
	result = append(result, 0x03, 'a', 'b', 'c', 0x00, 0x00)
	result = append(result, 0x00, 0x09)
	result = append(result, 0x1C, 0x02, 0x78, 0x00, 0x04, 't', 'e', 's', 't', 0x00)

	// Unknown record without a name.
	result = append(result, "8BIM"...)
	result = append(result, 0x12, 0x34)
	result = append(result, 0x00, 0x00, 0x00, 0x00)
	result = append(result, 0x00, 0x03)
	result = append(result, 'x', 'y', 'z', 0x00)

	return result
}

func fieldNames(t *testing.T, field vfields.Field) []string {
	set, ok := field.(*vfields.FieldSet)
	require.True(t, ok)

	fields, err := set.Fields()
	require.NoError(t, err)

	result := []string{}
	for _, field := range fields {
		result = append(result, field.Name())
	}
	return result
}

func TestResources(t *testing.T) {
	data := resources()
	root, err := vfields.Open(Format{}, vfields.NewBytesStream(data, "resources"))
	require.NoError(t, err)
	defer root.Close()

	if diff := cmp.Diff([]string{"signature", "iptc", "item[0]"},
		fieldNames(t, root)); diff != "" {
		t.Fatalf("unexpected records (-want +got):\n%s", diff)
	}

	iptc, err := root.Field("iptc")
	require.NoError(t, err)
	assert.Equal(t, "IPTC/NAA", iptc.Description())
	assert.Equal(t,
		[]string{"signature", "tag", "name", "name_padding", "size", "content"},
		fieldNames(t, iptc))

	// The content is aligned to an even size.
	size, err := iptc.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(24*8), size)

	name, err := root.StringOf("iptc/name")
	require.NoError(t, err)
	assert.Equal(t, "abc", name)

	tag, err := root.Field("iptc/tag")
	require.NoError(t, err)
	assert.Equal(t, "0x0404", tag.Display())

	content, err := root.Field("iptc/content")
	require.NoError(t, err)
	assert.Equal(t, []string{"chunk[0]", "raw[0]"}, fieldNames(t, content))

	chunk, err := root.Field("iptc/content/chunk[0]")
	require.NoError(t, err)
	assert.Equal(t, "IPTC dataset: caption", chunk.Description())

	caption, err := root.StringOf("iptc/content/chunk[0]/content")
	require.NoError(t, err)
	assert.Equal(t, "test", caption)

	item, err := root.Field("item[0]")
	require.NoError(t, err)
	assert.Equal(t, []string{"signature", "tag", "name", "size", "content"},
		fieldNames(t, item))

	name, err = root.StringOf("item[0]/name")
	require.NoError(t, err)
	assert.Equal(t, "", name)

	raw, err := root.ValueOf("item[0]/content")
	require.NoError(t, err)
	assert.Equal(t, []byte("xyz\x00"), raw)

	size, err = root.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)*8), size)
}

func TestBadRecordSignature(t *testing.T) {
	data := resources()
	copy(data[14:18], "XXXX")

	_, err := vfields.Open(Format{}, vfields.NewBytesStream(data, "resources"))
	var validation *vfields.FormatValidationError
	require.True(t, errors.As(err, &validation))

	var parser_error *vfields.ParserError
	assert.True(t, errors.As(err, &parser_error))
}

func TestEmbeddedMetadata(t *testing.T) {
	// Other signatures keep the section raw.
	data := []byte("Adobe_CM\x00\x01\x02\x03")

	root := vfields.NewRoot(vfields.NewBytesStream(data, "app13"), "app13",
		func(s *vfields.FieldSet, yield vfields.Yield) error {
			return yield(NewMetadata(s, "photoshop"))
		})
	defer root.Close()

	metadata, err := root.Field("photoshop")
	require.NoError(t, err)
	assert.Equal(t, []string{"signature", "rawdata"}, fieldNames(t, metadata))

	raw, err := root.ValueOf("photoshop/rawdata")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, raw)

	_, err = vfields.Open(Format{}, vfields.NewBytesStream(data, "app13"))
	assert.Error(t, err)
}
