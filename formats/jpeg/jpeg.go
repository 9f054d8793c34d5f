// Package jpeg reads the marker segments of a JPEG picture. Only the
// chunk framing is decoded, the content of the segments is kept raw.
package jpeg

import (
	"fmt"

	"github.com/pkg/errors"
	"www.velocidex.com/golang/vfields"
)

const (
	TAG_SOI  = 0xD8
	TAG_EOI  = 0xD9
	TAG_SOS  = 0xDA
	TAG_DQT  = 0xDB
	TAG_DRI  = 0xDD
	TAG_APP0 = 0xE0
	TAG_TEM  = 0x01
)

var chunkNames = map[int64]string{
	0xC0: "Start Of Frame 0 (Baseline DCT)",
	0xC1: "Start Of Frame 1 (Extended Sequential DCT)",
	0xC2: "Start Of Frame 2 (Progressive DCT)",
	0xC4: "Define Huffman Table (DHT)",
	TAG_SOI:  "Start of image (SOI)",
	TAG_EOI:  "End of image (EOI)",
	TAG_SOS:  "Start Of Scan (SOS)",
	TAG_DQT:  "Define Quantization Table (DQT)",
	TAG_DRI:  "Define Restart Interval (DRI)",
	TAG_APP0: "APP0",
	0xE1:     "APP1",
	0xED:     "APP13",
	0xEE:     "APP14",
	0xFE:     "Comment",
}

// Markers standing alone, without a size and a payload.
func isStandalone(code uint64) bool {
	switch {
	case code == TAG_SOI, code == TAG_EOI, code == TAG_TEM:
		return true
	case 0xD0 <= code && code <= 0xD7:
		// RST0..RST7
		return true
	}
	return false
}

// NewChunk is one marker segment: 0xFF, the marker type and, unless the
// marker stands alone, a big endian size counting itself followed by
// the content.
func NewChunk(parent *vfields.FieldSet, name string) (*vfields.FieldSet, error) {
	return vfields.NewFieldSet(parent, name, generateChunk,
		vfields.WithEndian(vfields.BigEndian),
		vfields.WithDescriber(describeChunk))
}

func generateChunk(s *vfields.FieldSet, yield vfields.Yield) error {
	err := yield(vfields.UInt8.New(s, "header", vfields.WithDisplay(vfields.Hexadecimal)))
	if err != nil {
		return err
	}

	header, err := s.UintOf("header")
	if err != nil {
		return err
	}
	if header != 0xFF {
		return &vfields.ParserError{
			Path: s.Path(),
			Msg:  fmt.Sprintf("JPEG: invalid chunk header 0x%02X", header),
		}
	}

	err = yield(vfields.UInt8.New(s, "type", vfields.WithDisplay(vfields.Enum(chunkNames))))
	if err != nil {
		return err
	}

	code, err := s.UintOf("type")
	if err != nil || isStandalone(code) {
		return err
	}

	err = yield(vfields.UInt16.New(s, "size", vfields.WithDisplay(vfields.Filesize)))
	if err != nil {
		return err
	}

	size, err := s.UintOf("size")
	if err != nil {
		return err
	}
	if size < 2 {
		return &vfields.ParserError{
			Path: s.Path(),
			Msg:  fmt.Sprintf("JPEG: chunk size %v is too small", size),
		}
	}

	if size > 2 {
		return yield(vfields.NewRawBytes(s, "content", int64(size)-2))
	}
	return nil
}

func describeChunk(self vfields.Field) string {
	set, ok := self.(*vfields.FieldSet)
	if !ok {
		return ""
	}

	code, err := set.IntOf("type")
	if err != nil {
		return "Chunk"
	}
	name, pres := chunkNames[code]
	if !pres {
		name = fmt.Sprintf("0x%02X", code)
	}
	return "Chunk: " + name
}

// NewHeader is the run of chunks some containers put before the
// picture: it stops at the first SOI or EOI marker after the first
// chunk.
func NewHeader(parent *vfields.FieldSet, name string) (*vfields.FieldSet, error) {
	return vfields.NewFieldSet(parent, name,
		func(s *vfields.FieldSet, yield vfields.Yield) error {
			for count := 1; !s.EOF(); count++ {
				chunk, err := NewChunk(s, "jpeg_chunk[]")
				err = yield(chunk, err)
				if err != nil {
					return err
				}

				code, err := chunk.UintOf("type")
				if err != nil {
					return err
				}
				if count > 1 && (code == TAG_SOI || code == TAG_EOI) {
					return nil
				}
			}
			return nil
		}, vfields.WithEndian(vfields.BigEndian))
}

// The entropy coded data after a SOS segment runs up to the EOI
// marker, or to the end of the stream.
func scanData(s *vfields.FieldSet) (int64, error) {
	budget := s.Remaining() / 8
	length, err := s.Stream().IndexBytes(s.Cursor(), []byte{0xFF, TAG_EOI}, 1, budget)
	if err == nil {
		return length, nil
	}

	var bounds *vfields.StreamBoundsError
	if errors.As(err, &bounds) {
		return budget, nil
	}
	return 0, err
}

func generate(s *vfields.FieldSet, yield vfields.Yield) error {
	for !s.EOF() {
		chunk, err := NewChunk(s, "chunk[]")
		err = yield(chunk, err)
		if err != nil {
			return err
		}

		code, err := chunk.UintOf("type")
		if err != nil {
			return err
		}

		switch code {
		case TAG_EOI:
			return nil

		case TAG_SOS:
			length, err := scanData(s)
			if err != nil {
				return err
			}
			if length > 0 {
				err = yield(vfields.NewRawBytes(s, "data", length,
					vfields.WithDescription("JPEG data")))
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

type Format struct{}

func (self Format) Metadata() vfields.Metadata {
	return vfields.Metadata{
		ID:          "jpeg",
		Category:    "image",
		FileExt:     []string{"jpg", "jpeg"},
		Mime:        []string{"image/jpeg"},
		Description: "JPEG picture",
		MinSize:     4 * 8,
		Magic: []vfields.Magic{
			{Value: []byte{0xFF, TAG_SOI, 0xFF}},
		},
	}
}

func (self Format) Endian() vfields.Endian {
	return vfields.BigEndian
}

func (self Format) Generator() vfields.Generator {
	return generate
}

func (self Format) Validate(root *vfields.FieldSet) error {
	signature, err := root.Stream().ReadBytes(0, 2)
	if err != nil {
		return err
	}
	if signature[0] != 0xFF || signature[1] != TAG_SOI {
		return errors.New("Invalid file signature")
	}

	// The first chunk must at least be well formed.
	_, err = root.Field("chunk[0]/type")
	return err
}
