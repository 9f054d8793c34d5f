package photoshop

import (
	"fmt"

	"www.velocidex.com/golang/vfields"
)

// IPTC datasets of the application record (2).
var datasetNames = map[int64]string{
	0:   "record_version",
	5:   "object_name",
	15:  "category",
	20:  "supplemental_category",
	25:  "keyword",
	40:  "special_instructions",
	55:  "date_created",
	60:  "time_created",
	80:  "author",
	85:  "author_title",
	90:  "city",
	95:  "state",
	101: "country",
	103: "reference",
	105: "headline",
	110: "credit",
	115: "source",
	116: "copyright",
	120: "caption",
	122: "caption_writer",
}

const iptcMarker = 0x1C

// NewIPTCChunk is one dataset: marker, record and dataset numbers, then
// a big endian size and the text.
func NewIPTCChunk(parent *vfields.FieldSet, name string) (*vfields.FieldSet, error) {
	return vfields.NewFieldSet(parent, name,
		func(s *vfields.FieldSet, yield vfields.Yield) error {
			err := yield(vfields.UInt8.New(s, "signature", vfields.WithDisplay(vfields.Hexadecimal)))
			if err != nil {
				return err
			}

			signature, err := s.UintOf("signature")
			if err != nil {
				return err
			}
			if signature != iptcMarker {
				return &vfields.ParserError{
					Path: s.Path(),
					Msg:  fmt.Sprintf("IPTC: invalid chunk signature 0x%02x", signature),
				}
			}

			err = yield(vfields.UInt8.New(s, "dataset_nb"))
			if err != nil {
				return err
			}
			err = yield(vfields.UInt8.New(s, "tag", vfields.WithDisplay(vfields.Enum(datasetNames))))
			if err != nil {
				return err
			}
			err = yield(vfields.UInt16.New(s, "size"))
			if err != nil {
				return err
			}

			size, err := s.UintOf("size")
			if err != nil {
				return err
			}

			// Sizes with the high bit set announce a longer size field.
			if size&0x8000 != 0 {
				return &vfields.ParserError{
					Path: s.Path(),
					Msg:  "IPTC: extended dataset sizes are not supported",
				}
			}

			if size > 0 {
				return yield(vfields.NewString(s, "content", int64(size),
					vfields.WithCharset("ISO-8859-1")))
			}
			return nil
		},
		vfields.WithEndian(vfields.BigEndian),
		vfields.WithDescriber(func(self vfields.Field) string {
			set := self.(*vfields.FieldSet)
			tag, err := set.Field("tag")
			if err != nil {
				return "IPTC dataset"
			}
			return "IPTC dataset: " + tag.Display()
		}))
}

// parseIPTC fills the content of an IPTC/NAA resource with datasets.
// The padding byte of an odd sized resource ends the content as raw.
func parseIPTC(record *vfields.FieldSet, yield vfields.Yield, size int64) error {
	content, err := vfields.NewFieldSet(record, "content",
		func(s *vfields.FieldSet, yield vfields.Yield) error {
			for s.Remaining() >= 5*8 {
				err := yield(NewIPTCChunk(s, "chunk[]"))
				if err != nil {
					return err
				}
			}
			return nil
		}, vfields.WithSize(size*8))
	return yield(content, err)
}
