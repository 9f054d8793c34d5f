package vfields

import (
	"testing"

	assert "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	config, err := ParseConfig([]byte(`
max_depth: 2
max_string_length: 16
debug: true
`))
	require.NoError(t, err)

	assert.Equal(t, 2, config.MaxDepth)
	assert.Equal(t, int64(16), config.MaxStringLength)
	assert.True(t, config.Debug)

	// Unset values keep their defaults.
	assert.Equal(t, DefaultConfig().MaxDecompressedSize, config.MaxDecompressedSize)

	_, err = ParseConfig([]byte("max_depth: 0"))
	assert.Error(t, err)

	_, err = ParseConfig([]byte("max_depth: [1, 2]"))
	assert.Error(t, err)
}

// Strings without a terminator in reach are an error, not a scan of
// the whole stream.
func TestConfigBoundsStrings(t *testing.T) {
	config := DefaultConfig()
	config.MaxStringLength = 4

	root := NewRoot(NewBytesStream([]byte("no terminator here\x00"), "text"), "root",
		func(s *FieldSet, yield Yield) error {
			return yield(NewCString(s, "name"))
		}, WithConfig(config))

	_, err := root.Field("name")
	assert.Error(t, err)

	config.MaxStringLength = 100
	root = NewRoot(NewBytesStream([]byte("no terminator here\x00"), "text"), "root",
		func(s *FieldSet, yield Yield) error {
			return yield(NewCString(s, "name"))
		}, WithConfig(config))

	value, err := root.StringOf("name")
	require.NoError(t, err)
	assert.Equal(t, "no terminator here", value)
}
