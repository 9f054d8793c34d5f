package swf

import (
	"errors"
	"testing"

	assert "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"www.velocidex.com/golang/vfields"
	"www.velocidex.com/golang/vfields/formats/jpeg"
	"www.velocidex.com/golang/vfields/formats/photoshop"
)

func registry() *vfields.Registry {
	result := vfields.NewRegistry()
	result.Register(Format{})
	result.Register(jpeg.Format{})
	result.Register(photoshop.Format{})
	return result
}

func formatIDs(formats []vfields.Format) []string {
	result := []string{}
	for _, format := range formats {
		result = append(result, format.Metadata().ID)
	}
	return result
}

func TestRegistryMatch(t *testing.T) {
	registry := registry()
	assert.Equal(t, []string{"jpeg", "photoshop_metadata", "swf"}, registry.IDs())

	assert.Equal(t, []string{"swf"},
		formatIDs(registry.Match(vfields.NewBytesStream(movie, "movie.swf"))))

	picture := []byte{0xFF, jpeg.TAG_SOI, 0xFF, jpeg.TAG_EOI}
	assert.Equal(t, []string{"jpeg"},
		formatIDs(registry.Match(vfields.NewBytesStream(picture, "image.jpg"))))

	assert.Equal(t, []string{},
		formatIDs(registry.Match(vfields.NewBytesStream([]byte("GIF89a"), "image.gif"))))

	_, err := registry.Get("gif")
	assert.True(t, errors.Is(err, vfields.NotFoundError))
}

func TestRegistryOpen(t *testing.T) {
	registry := registry()

	root, err := registry.Open(vfields.NewBytesStream(movie, "movie.swf"))
	require.NoError(t, err)
	defer root.Close()
	assert.Equal(t, "swf", root.Name())

	// A matching signature which does not validate.
	broken := append([]byte{}, movie...)
	broken[8] = 0x00
	_, err = registry.Open(vfields.NewBytesStream(broken, "broken.swf"))
	var validation *vfields.FormatValidationError
	require.True(t, errors.As(err, &validation))
	assert.Equal(t, "swf", validation.Format)

	_, err = registry.Open(vfields.NewBytesStream([]byte("GIF89a"), "image.gif"))
	assert.True(t, errors.Is(err, vfields.NotFoundError))
}
