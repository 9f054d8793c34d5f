// Package swf parses Macromedia/Adobe Flash files.
//
// Documentation:
//
//   - Alexis' SWF Reference: http://sswf.sourceforge.net/SWFalexref.html
//   - http://www.half-serious.com/swf/format/
package swf

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
	"www.velocidex.com/golang/vfields"
)

// Maximum file size (50 MB)
const MAX_FILE_SIZE = 50 * 1024 * 1024

const TWIPS = 20

var (
	signatureFWS = []byte("FWS")
	signatureCWS = []byte("CWS")
)

// NewRect is a rectangle in twips. All the coordinates share a width
// given by the first 5 bits.
func NewRect(parent *vfields.FieldSet, name string) (*vfields.FieldSet, error) {
	return vfields.NewFieldSet(parent, name, generateRect,
		vfields.WithEndian(vfields.BigEndian),
		vfields.WithDescriber(describeRect))
}

func generateRect(s *vfields.FieldSet, yield vfields.Yield) error {
	err := yield(vfields.NewBits(s, "nbits", 5))
	if err != nil {
		return err
	}

	nbits, err := s.UintOf("nbits")
	if err != nil {
		return err
	}
	if nbits == 0 {
		return &vfields.ConstructionError{
			Field: s.Path(),
			Msg:   "SWF parser: Invalid RECT field size (0)",
		}
	}

	for _, coordinate := range []struct{ name, description string }{
		{"xmin", "X minimum in twips"},
		{"xmax", "X maximum in twips"},
		{"ymin", "Y minimum in twips"},
		{"ymax", "Y maximum in twips"},
	} {
		err := yield(vfields.NewBits(s, coordinate.name, int64(nbits),
			vfields.WithDescription(coordinate.description)))
		if err != nil {
			return err
		}
	}

	padding := (8 - s.CurrentSize()%8) % 8
	if padding > 0 {
		return yield(vfields.NewNullBits(s, "padding", padding))
	}
	return nil
}

func twipsToPixels(s *vfields.FieldSet, name string) uint64 {
	value, _ := s.UintOf(name)
	return uint64(math.Ceil(float64(value) / TWIPS))
}

func describeRect(self vfields.Field) string {
	set := self.(*vfields.FieldSet)
	return fmt.Sprintf("Rectangle: %vx%v",
		twipsToPixels(set, "xmax"), twipsToPixels(set, "ymax"))
}

// NewFixedFloat16 is an 8.8 fixed point number, fraction first.
func NewFixedFloat16(parent *vfields.FieldSet, name string) (*vfields.FieldSet, error) {
	return vfields.NewFieldSet(parent, name,
		func(s *vfields.FieldSet, yield vfields.Yield) error {
			err := yield(vfields.UInt8.New(s, "float_part"))
			if err != nil {
				return err
			}
			return yield(vfields.UInt8.New(s, "int_part"))
		},
		vfields.WithValue(func(s *vfields.FieldSet) (interface{}, error) {
			float_part, err := s.UintOf("float_part")
			if err != nil {
				return nil, err
			}
			int_part, err := s.UintOf("int_part")
			if err != nil {
				return nil, err
			}
			return float64(int_part) + float64(float_part)/256, nil
		}))
}

// NewRGB is a 24 bit colour. Its value is the #RRGGBB notation.
func NewRGB(parent *vfields.FieldSet, name string) (*vfields.FieldSet, error) {
	return vfields.NewFieldSet(parent, name,
		func(s *vfields.FieldSet, yield vfields.Yield) error {
			for _, component := range []string{"red", "green", "blue"} {
				err := yield(vfields.UInt8.New(s, component))
				if err != nil {
					return err
				}
			}
			return nil
		},
		vfields.WithValue(func(s *vfields.FieldSet) (interface{}, error) {
			result := "#"
			for _, component := range []string{"red", "green", "blue"} {
				value, err := s.UintOf(component)
				if err != nil {
					return nil, err
				}
				result += fmt.Sprintf("%02X", value)
			}
			return result, nil
		}),
		vfields.WithDescriber(func(self vfields.Field) string {
			value, err := self.Value()
			if err != nil {
				return "RGB color"
			}
			return fmt.Sprintf("RGB color: %v", value)
		}))
}

type Format struct{}

func (self Format) Metadata() vfields.Metadata {
	result := vfields.Metadata{
		ID:          "swf",
		Category:    "container",
		FileExt:     []string{"swf"},
		Mime:        []string{"application/x-shockwave-flash"},
		Description: "Macromedia Flash data",
		MinSize:     64,
	}

	for version := byte(1); version <= 8; version++ {
		for _, signature := range [][]byte{signatureFWS, signatureCWS} {
			magic := append(append([]byte{}, signature...), version)
			result.Magic = append(result.Magic, vfields.Magic{Value: magic})
		}
	}
	return result
}

func (self Format) Endian() vfields.Endian {
	return vfields.LittleEndian
}

func (self Format) Generator() vfields.Generator {
	return generate
}

func (self Format) Validate(root *vfields.FieldSet) error {
	signature, err := root.Stream().ReadBytes(0, 3)
	if err != nil {
		return err
	}
	if !bytes.Equal(signature, signatureFWS) && !bytes.Equal(signature, signatureCWS) {
		return errors.New("Wrong file signature")
	}

	version, err := root.UintOf("version")
	if err != nil {
		return err
	}
	if version < 1 || version > 8 {
		return errors.New("Unknown version")
	}

	filesize, err := root.UintOf("filesize")
	if err != nil {
		return err
	}
	if filesize > MAX_FILE_SIZE {
		return errors.Errorf("File too big (%v)", filesize)
	}

	if bytes.Equal(signature, signatureFWS) {
		padding, err := root.UintOf("rect/padding")
		if err != nil && !vfields.IsMissing(err) {
			return err
		}
		if err == nil && padding != 0 {
			return errors.New("Unknown rectangle padding value")
		}
	}
	return nil
}

// ContentSize is the file size declared by uncompressed movies. The
// header of a compressed movie gives the decompressed size, not the
// size of the content.
func (self Format) ContentSize(root *vfields.FieldSet) (int64, error) {
	signature, err := root.StringOf("signature")
	if err != nil {
		return 0, err
	}
	if signature != "FWS" {
		return -1, nil
	}

	filesize, err := root.UintOf("filesize")
	if err != nil {
		return 0, err
	}
	return int64(filesize) * 8, nil
}

func (self Format) Describe(root *vfields.FieldSet) string {
	version, err := root.UintOf("version")
	if err != nil {
		return "Macromedia Flash data"
	}

	desc := []string{fmt.Sprintf("version %v", version)}
	signature, _ := root.StringOf("signature")
	if signature == "CWS" {
		desc = append(desc, "compressed")
	}
	return "Macromedia Flash data: " + strings.Join(desc, ", ")
}

func generate(s *vfields.FieldSet, yield vfields.Yield) error {
	err := yield(vfields.NewString(s, "signature", 3,
		vfields.WithDescription("SWF format signature"),
		vfields.WithCharset("ASCII")))
	if err != nil {
		return err
	}

	err = yield(vfields.UInt8.New(s, "version"))
	if err != nil {
		return err
	}

	err = yield(vfields.UInt32.New(s, "filesize", vfields.WithDisplay(vfields.Filesize)))
	if err != nil {
		return err
	}

	signature, err := s.StringOf("signature")
	if err != nil {
		return err
	}

	if signature == "CWS" {
		return yield(newCompressedBody(s))
	}

	err = yield(NewRect(s, "rect"))
	if err != nil {
		return err
	}

	err = yield(NewFixedFloat16(s, "frame_rate"))
	if err != nil {
		return err
	}

	err = yield(vfields.UInt16.New(s, "frame_count"))
	if err != nil {
		return err
	}

	for !s.EOF() {
		err = yield(NewTag(s, Tags))
		if err != nil {
			return err
		}
	}
	return nil
}

// The rest of a CWS file is zlib compressed. Once decompressed and
// given back an uncompressed header it is a FWS file.
func newCompressedBody(s *vfields.FieldSet) (*vfields.SubFile, error) {
	subfile, err := vfields.NewSubFile(s, "compressed_data", s.Remaining()/8, Format{})
	if err != nil {
		return nil, err
	}

	stream := s.Stream()
	subfile.SetHeader(func() ([]byte, error) {
		rest, err := stream.ReadBytes(3*8, 5)
		if err != nil {
			return nil, err
		}
		return append(append([]byte{}, signatureFWS...), rest...), nil
	})
	return vfields.Compress(subfile, vfields.Zlib), nil
}
