package swf

import (
	"fmt"
	"math"

	"www.velocidex.com/golang/vfields"
	"www.velocidex.com/golang/vfields/formats/jpeg"
)

const SOUND_CODEC_MP3 = 2

var SOUND_CODEC = map[int64]string{
	0:               "RAW",
	1:               "ADPCM",
	SOUND_CODEC_MP3: "MP3",
	3:               "Uncompressed",
	6:               "Nellymoser",
}

// Sampling rates are 5512.5 Hz times a power of two.
func bit2hertz(self vfields.Field) string {
	value, err := self.Value()
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	exponent, _ := value.(uint64)
	return vfields.HumanFrequency(int64(5512.5 * math.Pow(2, float64(exponent))))
}

// Yields the fields built by the constructors in order, stopping at
// the first error.
func yieldAll(yield vfields.Yield, fields ...func() (vfields.Field, error)) error {
	for _, field := range fields {
		err := yield(field())
		if err != nil {
			return err
		}
	}
	return nil
}

func uint16Field(s *vfields.FieldSet, name string, options ...vfields.Option) func() (vfields.Field, error) {
	return func() (vfields.Field, error) {
		return vfields.UInt16.New(s, name, options...)
	}
}

func uint32Field(s *vfields.FieldSet, name string, options ...vfields.Option) func() (vfields.Field, error) {
	return func() (vfields.Field, error) {
		return vfields.UInt32.New(s, name, options...)
	}
}

func bitField(s *vfields.FieldSet, name string) func() (vfields.Field, error) {
	return func() (vfields.Field, error) {
		return vfields.NewBit(s, name)
	}
}

func bitsField(s *vfields.FieldSet, name string, nbits int64,
	options ...vfields.Option) func() (vfields.Field, error) {
	return func() (vfields.Field, error) {
		return vfields.NewBits(s, name, nbits, options...)
	}
}

// The bytes left in the record are kept raw under name.
func yieldRest(s *vfields.FieldSet, yield vfields.Yield, name string,
	options ...vfields.Option) error {
	size := s.Remaining() / 8
	if size > 0 {
		return yield(vfields.NewRawBytes(s, name, size, options...))
	}
	return nil
}

func parseBackgroundColor(record *vfields.FieldSet, yield vfields.Yield, size int64) error {
	return yield(NewRGB(record, "color"))
}

// NewSoundEnvelope is a list of volume control points.
func NewSoundEnvelope(parent *vfields.FieldSet, name string) (*vfields.FieldSet, error) {
	return vfields.NewFieldSet(parent, name,
		func(s *vfields.FieldSet, yield vfields.Yield) error {
			err := yield(vfields.UInt8.New(s, "count"))
			if err != nil {
				return err
			}

			count, err := s.UintOf("count")
			if err != nil {
				return err
			}

			for i := uint64(0); i < count; i++ {
				err := yieldAll(yield,
					uint32Field(s, "mark44[]"),
					uint16Field(s, "level0[]"),
					uint16Field(s, "level1[]"))
				if err != nil {
					return err
				}
			}
			return nil
		})
}

func parseSoundBlock(record *vfields.FieldSet, yield vfields.Yield, size int64) error {
	// The codec is declared by an earlier sound header which is not
	// tracked, so the MP3 layout is assumed.
	err := yieldAll(yield,
		uint16Field(record, "samples"),
		uint16Field(record, "left"))
	if err != nil {
		return err
	}
	return yieldRest(record, yield, "music_data")
}

func parseStartSound(record *vfields.FieldSet, yield vfields.Yield, size int64) error {
	err := yieldAll(yield,
		uint16Field(record, "sound_id"),
		bitField(record, "has_in_point"),
		bitField(record, "has_out_point"),
		bitField(record, "has_loops"),
		bitField(record, "has_envelope"),
		bitField(record, "no_multiple"),
		bitField(record, "stop_playback"),
		func() (vfields.Field, error) {
			return vfields.NewNullBits(record, "reserved", 2)
		})
	if err != nil {
		return err
	}

	for _, optional := range []struct {
		flag  string
		field func() (vfields.Field, error)
	}{
		{"has_in_point", uint32Field(record, "in_point")},
		{"has_out_point", uint32Field(record, "out_point")},
		{"has_loops", uint16Field(record, "loop_count")},
		{"has_envelope", func() (vfields.Field, error) {
			return NewSoundEnvelope(record, "envelope")
		}},
	} {
		present, err := record.ValueOf(optional.flag)
		if err != nil {
			return err
		}
		flag, _ := present.(bool)
		if flag {
			err := yield(optional.field())
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func parseDefineSound(record *vfields.FieldSet, yield vfields.Yield, size int64) error {
	err := yieldAll(yield,
		uint16Field(record, "sound_id"),
		bitField(record, "is_stereo"),
		bitField(record, "is_16bit"),
		bitsField(record, "rate", 2, vfields.WithDisplay(bit2hertz)),
		bitsField(record, "codec", 4, vfields.WithDisplay(vfields.Enum(SOUND_CODEC))),
		uint32Field(record, "sample_count"))
	if err != nil {
		return err
	}

	codec, err := record.UintOf("codec")
	if err != nil {
		return err
	}
	if codec == SOUND_CODEC_MP3 {
		err := yield(vfields.UInt16.New(record, "len"))
		if err != nil {
			return err
		}
	}

	return yieldRest(record, yield, "music_data")
}

func parseSoundHeader(record *vfields.FieldSet, yield vfields.Yield, size int64) error {
	err := yieldAll(yield,
		bitField(record, "playback_is_stereo"),
		bitField(record, "playback_is_16bit"),
		bitsField(record, "playback_rate", 2, vfields.WithDisplay(bit2hertz)),
		func() (vfields.Field, error) {
			return vfields.NewNullBits(record, "reserved", 4)
		},
		bitField(record, "sound_is_stereo"),
		bitField(record, "sound_is_16bit"),
		bitsField(record, "sound_rate", 2, vfields.WithDisplay(bit2hertz)),
		bitsField(record, "codec", 4, vfields.WithDisplay(vfields.Enum(SOUND_CODEC))),
		uint16Field(record, "sample_count"))
	if err != nil {
		return err
	}

	codec, err := record.UintOf("codec")
	if err != nil {
		return err
	}
	if codec == SOUND_CODEC_MP3 {
		return yield(vfields.UInt16.New(record, "latency_seek"))
	}
	return nil
}

// JPEG tags hold a picture, in version 3 followed by an alpha
// channel. Some encoders put an extra run of chunks before the picture.
func parseJpeg(record *vfields.FieldSet, yield vfields.Yield, size int64) error {
	err := yield(vfields.UInt16.New(record, "char_id",
		vfields.WithDescription("Character identifier")))
	if err != nil {
		return err
	}
	size -= 2

	code, err := record.UintOf("code")
	if err != nil {
		return err
	}

	img_size := size
	if code != TAG_BITS {
		if code == TAG_BITS_JPEG3 {
			err := yield(vfields.UInt32.New(record, "alpha_offset",
				vfields.WithDescription("Size of the picture")))
			if err != nil {
				return err
			}
			size -= 4
		}

		hdr_size := int64(0)
		marker, err := record.Stream().ReadBytes(record.Cursor()+16, 2)
		if err == nil && marker[0] == 0xFF &&
			(marker[1] == jpeg.TAG_DQT || marker[1] == jpeg.TAG_SOI) {
			header, err := jpeg.NewHeader(record, "jpeg_header")
			err = yield(header, err)
			if err != nil {
				return err
			}

			header_bits, err := header.Size()
			if err != nil {
				return err
			}
			hdr_size = header_bits / 8
			size -= hdr_size
		}

		img_size = size
		if code == TAG_BITS_JPEG3 {
			alpha_offset, err := record.UintOf("alpha_offset")
			if err != nil {
				return err
			}
			img_size = int64(alpha_offset) - hdr_size
		}
	}

	if img_size < 0 || img_size*8 > record.Remaining() {
		return &vfields.ParserError{
			Path: record.Path(),
			Msg:  fmt.Sprintf("invalid picture size %v", img_size),
		}
	}

	err = yield(vfields.NewSubFile(record, "image", img_size, jpeg.Format{},
		vfields.WithDescription("JPEG picture")))
	if err != nil {
		return err
	}

	if code == TAG_BITS_JPEG3 {
		return yieldRest(record, yield, "alpha", vfields.WithDescription("Image data"))
	}
	return nil
}

func parseVideoFrame(record *vfields.FieldSet, yield vfields.Yield, size int64) error {
	err := yieldAll(yield,
		uint16Field(record, "stream_id"),
		uint16Field(record, "frame_num"))
	if err != nil {
		return err
	}
	if size > 4 {
		return yield(vfields.NewRawBytes(record, "video_data", size-4))
	}
	return nil
}

// NewExport names an exported character.
func NewExport(parent *vfields.FieldSet, name string) (*vfields.FieldSet, error) {
	return vfields.NewFieldSet(parent, name,
		func(s *vfields.FieldSet, yield vfields.Yield) error {
			err := yield(vfields.UInt16.New(s, "object_id"))
			if err != nil {
				return err
			}
			return yield(vfields.NewCString(s, "name"))
		})
}

func parseExport(record *vfields.FieldSet, yield vfields.Yield, size int64) error {
	err := yield(vfields.UInt16.New(record, "count"))
	if err != nil {
		return err
	}

	count, err := record.UintOf("count")
	if err != nil {
		return err
	}

	for i := uint64(0); i < count; i++ {
		err := yield(NewExport(record, "export[]"))
		if err != nil {
			return err
		}
	}
	return nil
}
