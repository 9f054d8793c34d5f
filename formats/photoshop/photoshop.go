// Package photoshop parses the image resource blocks (8BIM records)
// Photoshop stores in its own files and in the APP13 segment of JPEG
// pictures.
package photoshop

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
	"www.velocidex.com/golang/vfields"
)

const SIGNATURE = "Photoshop 3.0"

var Tags = vfields.TagTable{
	0x03ed: {Name: "res_info", Description: "Resolution information"},
	0x03f3: {Name: "print_flg", Description: "Print flags: labels, crop marks, colour bars, etc."},
	0x03f5: {Name: "col_half_info", Description: "Colour half-toning information"},
	0x03f8: {Name: "color_trans_func", Description: "Colour transfer function"},
	0x0404: {Name: "iptc", Description: "IPTC/NAA", Parse: parseIPTC},
	0x0406: {Name: "jpeg_qual", Description: "JPEG quality"},
	0x0408: {Name: "grid_guide", Description: "Grid guides informations"},
	0x040a: {Name: "copyright_flg", Description: "Copyright flag"},
	0x040c: {Name: "thumb_res2", Description: "Thumbnail resource (2)"},
	0x040d: {Name: "glob_angle", Description: "Global lighting angle for effects"},
	0x0411: {Name: "icc_tagged", Description: "ICC untagged (1 means intentionally untagged)"},
	0x0414: {Name: "base_layer_id", Description: "Base value for new layers ID's"},
	0x0419: {Name: "glob_altitude", Description: "Global altitude"},
	0x041a: {Name: "slices", Description: "Slices"},
	0x041e: {Name: "url_list", Description: "Unicode URL's"},
	0x0421: {Name: "version", Description: "Version information"},
	0x2710: {Name: "print_flg2", Description: "Print flags (2)"},
}

func alignValue(value, align uint64) uint64 {
	if value%align != 0 {
		value += align - value%align
	}
	return value
}

// NewResource is one 8BIM record. The name comes from the tag, which is
// read ahead, and the size is known once the size field is read. The
// content is padded to an even number of bytes.
func NewResource(parent *vfields.FieldSet, name string,
	table vfields.TagTable) (*vfields.FieldSet, error) {
	tag, err := parent.Stream().ReadBits(parent.Cursor()+4*8, 16, vfields.BigEndian)
	if err != nil {
		return nil, err
	}

	var options []vfields.Option
	info, known := table[int64(tag)]
	if known {
		name = info.Name
		options = append(options, vfields.WithDescription(info.Description))
	}
	options = append(options, vfields.WithEndian(vfields.BigEndian))

	return vfields.NewFieldSet(parent, name,
		func(s *vfields.FieldSet, yield vfields.Yield) error {
			return generateResource(s, yield, tag, info)
		}, options...)
}

func generateResource(s *vfields.FieldSet, yield vfields.Yield,
	tag uint64, info vfields.TagInfo) error {
	err := yield(vfields.NewString(s, "signature", 4,
		vfields.WithDescription("8BIM signature"),
		vfields.WithCharset("ASCII")))
	if err != nil {
		return err
	}

	signature, err := s.StringOf("signature")
	if err != nil {
		return err
	}
	if signature != "8BIM" {
		return &vfields.ParserError{
			Path: s.Path(),
			Msg:  "Stream doesn't look like 8BIM item (wrong signature)!",
		}
	}

	err = yield(vfields.UInt16.New(s, "tag", vfields.WithDisplay(vfields.Hexadecimal)))
	if err != nil {
		return err
	}

	value, err := s.UintOf("tag")
	if err != nil {
		return err
	}
	if value != tag {
		return &vfields.ParserError{
			Path: s.Path(),
			Msg:  fmt.Sprintf("tag changed from 0x%04x to 0x%04x", tag, value),
		}
	}

	marker, err := s.Stream().ReadBytes(s.Cursor(), 4)
	if err != nil {
		return err
	}

	if !bytes.Equal(marker, []byte{0, 0, 0, 0}) {
		name, err := vfields.NewPascalString8(s, "name")
		err = yield(name, err)
		if err != nil {
			return err
		}
		name_size, _ := name.Size()
		err = yield(vfields.NewNullBytes(s, "name_padding", 2+(name_size/8)%2))
		if err != nil {
			return err
		}

	} else {
		err = yield(vfields.NewString(s, "name", 4, vfields.WithStrip("\x00")))
		if err != nil {
			return err
		}
	}

	err = yield(vfields.UInt16.New(s, "size"))
	if err != nil {
		return err
	}

	size, err := s.UintOf("size")
	if err != nil {
		return err
	}

	aligned := alignValue(size, 2)
	err = s.FixSize(s.CurrentSize() + int64(aligned)*8)
	if err != nil {
		return err
	}

	return vfields.EmitPayload(s, yield, info, "content", int64(aligned))
}

// generateMetadata is the content of a resource section: a signature
// string followed by 8BIM records.
func generateMetadata(s *vfields.FieldSet, yield vfields.Yield) error {
	err := yield(vfields.NewCString(s, "signature",
		vfields.WithDescription("Photoshop version")))
	if err != nil {
		return err
	}

	signature, err := s.StringOf("signature")
	if err != nil {
		return err
	}

	if signature == SIGNATURE {
		for !s.EOF() {
			err := yield(NewResource(s, "item[]", Tags))
			if err != nil {
				return err
			}
		}
		return nil
	}

	size := s.Remaining() / 8
	if size > 0 {
		return yield(vfields.NewRawBytes(s, "rawdata", size))
	}
	return nil
}

// NewMetadata is a resource section embedded in another format, e.g.
// the APP13 segment of a JPEG picture.
func NewMetadata(parent *vfields.FieldSet, name string, options ...vfields.Option) (*vfields.FieldSet, error) {
	return vfields.NewFieldSet(parent, name, generateMetadata, options...)
}

// Format parses a stand alone resource section.
type Format struct{}

func (self Format) Metadata() vfields.Metadata {
	return vfields.Metadata{
		ID:          "photoshop_metadata",
		Category:    "image",
		FileExt:     []string{"8bim"},
		Description: "Photoshop metadata",
		MinSize:     int64(len(SIGNATURE)+1) * 8,
		Magic: []vfields.Magic{
			{Value: []byte(SIGNATURE + "\x00")},
		},
	}
}

func (self Format) Endian() vfields.Endian {
	return vfields.BigEndian
}

func (self Format) Generator() vfields.Generator {
	return generateMetadata
}

func (self Format) Validate(root *vfields.FieldSet) error {
	signature, err := root.StringOf("signature")
	if err != nil {
		return err
	}
	if signature != SIGNATURE {
		return errors.Errorf("Unknown signature %q", signature)
	}

	// The first record, if any, must be sane.
	_, err = root.Index(1)
	if err != nil && !vfields.IsMissing(err) {
		return err
	}
	return nil
}
