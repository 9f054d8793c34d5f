package vfields

import (
	"github.com/Velocidex/yaml"
	"github.com/pkg/errors"
)

// Config holds the sanity bounds applied while parsing untrusted data.
type Config struct {
	// Maximum nesting of sub files opened from one another.
	MaxDepth int `yaml:"max_depth" json:"max_depth"`

	// Maximum decoded size of a filtered sub stream in bytes.
	MaxDecompressedSize int64 `yaml:"max_decompressed_size" json:"max_decompressed_size"`

	// Maximum number of bytes scanned for a string terminator.
	MaxStringLength int64 `yaml:"max_string_length" json:"max_string_length"`

	// Sets DEBUG_VFIELDS in the scope of trees created by Open.
	Debug bool `yaml:"debug" json:"debug"`
}

func DefaultConfig() *Config {
	return &Config{
		MaxDepth:            8,
		MaxDecompressedSize: 256 * 1024 * 1024,
		MaxStringLength:     64 * 1024,
	}
}

// ParseConfig reads a yaml document over the defaults.
func ParseConfig(data []byte) (*Config, error) {
	result := DefaultConfig()
	err := yaml.Unmarshal(data, result)
	if err != nil {
		return nil, errors.Wrap(err, "ParseConfig")
	}

	if result.MaxDepth < 1 {
		return nil, errors.Errorf("ParseConfig: max_depth must be positive, not %v",
			result.MaxDepth)
	}
	return result, nil
}
