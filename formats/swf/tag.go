package swf

import (
	"fmt"

	"www.velocidex.com/golang/vfields"
)

const (
	TAG_BITS       = 6
	TAG_BITS_JPEG2 = 21
	TAG_BITS_JPEG3 = 35

	// A short length holding this value announces the long header.
	LONG_LENGTH = 63
)

var Tags = vfields.TagTable{
	// SWF version 1.0
	0:  {Name: "end[]", Description: "End"},
	1:  {Name: "show_frame[]", Description: "Show frame"},
	2:  {Name: "def_shape[]", Description: "Define shape"},
	3:  {Name: "free_char[]", Description: "Free character"},
	4:  {Name: "place_obj[]", Description: "Place object"},
	5:  {Name: "remove_obj[]", Description: "Remove object"},
	6:  {Name: "def_bits[]", Description: "Define bits", Parse: parseJpeg},
	7:  {Name: "def_but[]", Description: "Define button"},
	8:  {Name: "jpg_table", Description: "JPEG tables"},
	9:  {Name: "bkgd_color[]", Description: "Set background color", Parse: parseBackgroundColor},
	10: {Name: "def_font[]", Description: "Define font"},
	11: {Name: "def_text[]", Description: "Define text"},
	12: {Name: "do_action[]", Description: "Do action"},
	13: {Name: "def_font_info[]", Description: "Define font info"},

	// SWF version 2.0
	14: {Name: "def_sound[]", Description: "Define sound", Parse: parseDefineSound},
	15: {Name: "start_sound[]", Description: "Start sound", Parse: parseStartSound},
	16: {Name: "stop_sound[]", Description: "Stop sound"},
	17: {Name: "def_but_sound[]", Description: "Define button sound"},
	18: {Name: "sound_hdr", Description: "Sound stream header", Parse: parseSoundHeader},
	19: {Name: "sound_blk[]", Description: "Sound stream block", Parse: parseSoundBlock},
	20: {Name: "def_bits_lossless[]", Description: "Define bits lossless"},
	21: {Name: "def_bits_jpeg2[]", Description: "Define bits JPEG 2", Parse: parseJpeg},
	22: {Name: "def_shape2[]", Description: "Define shape 2"},
	23: {Name: "def_but_cxform[]", Description: "Define button CXFORM"},
	24: {Name: "protect", Description: "File is protected"},

	// SWF version 3.0
	25: {Name: "path_are_ps[]", Description: "Paths are Postscript"},
	26: {Name: "place_obj2[]", Description: "Place object 2"},
	28: {Name: "remove_obj2[]", Description: "Remove object 2"},
	29: {Name: "sync_frame[]", Description: "Synchronize frame"},
	31: {Name: "free_all[]", Description: "Free all"},
	32: {Name: "def_shape3[]", Description: "Define shape 3"},
	33: {Name: "def_text2[]", Description: "Define text 2"},
	34: {Name: "def_but2[]", Description: "Define button2"},
	35: {Name: "def_bits_jpeg3[]", Description: "Define bits JPEG 3", Parse: parseJpeg},
	36: {Name: "def_bits_lossless2[]", Description: "Define bits lossless 2"},
	39: {Name: "def_sprite[]", Description: "Define sprite"},
	40: {Name: "name_character[]", Description: "Name character"},
	41: {Name: "serial_number", Description: "Serial number"},
	42: {Name: "generator_text[]", Description: "Generator text"},
	43: {Name: "frame_label[]", Description: "Frame label"},
	45: {Name: "sound_hdr2[]", Description: "Sound stream header2", Parse: parseSoundHeader},
	46: {Name: "def_morph_shape[]", Description: "Define morph shape"},
	47: {Name: "gen_frame[]", Description: "Generate frame"},
	48: {Name: "def_font2[]", Description: "Define font 2"},
	49: {Name: "tpl_command[]", Description: "Template command"},

	// SWF version 4.0
	37: {Name: "def_text_field[]", Description: "Define text field"},
	38: {Name: "def_quicktime_movie[]", Description: "Define QuickTime movie"},

	// SWF version 5.0
	50: {Name: "def_cmd_obj[]", Description: "Define command object"},
	51: {Name: "flash_generator", Description: "Flash generator"},
	52: {Name: "gen_ext_font[]", Description: "Gen external font"},
	56: {Name: "export[]", Description: "Export", Parse: parseExport},
	57: {Name: "import[]", Description: "Import"},
	58: {Name: "enable_debug", Description: "Enable debug"},

	// SWF version 6.0
	59: {Name: "do_init_action[]", Description: "Do init action"},
	60: {Name: "video_str[]", Description: "Video stream"},
	61: {Name: "video_frame[]", Description: "Video frame", Parse: parseVideoFrame},
	62: {Name: "def_font_info2[]", Description: "Define font info 2"},
	63: {Name: "mx4[]", Description: "MX4"},
	64: {Name: "enable_debug2", Description: "Enable debugger 2"},

	// SWF version 7.0
	65: {Name: "script_limits[]", Description: "Script limits"},
	66: {Name: "tab_index[]", Description: "Set tab index"},

	// SWF version 8.0
	69: {Name: "file_attr[]", Description: "File attributes"},
	70: {Name: "place_obj3[]", Description: "Place object 3"},
	71: {Name: "import2[]", Description: "Import a list of definition from another movie"},
	73: {Name: "def_font_align[]", Description: "Define font alignement zones"},
	74: {Name: "csm_txt_set[]", Description: "CSM text settings"},
	75: {Name: "def_font3[]", Description: "Define font text 3"},
	77: {Name: "metadata[]", Description: "XML code describing the movie"},
	78: {Name: "def_scale_grid[]", Description: "Define scaling factors"},
	83: {Name: "def_shape4[]", Description: "Define shape 4"},
	84: {Name: "def_morph2[]", Description: "Define a morphing shape 2"},
}

// A tag record as seen from its first bytes, before any field exists.
type tagHeader struct {
	long   bool
	code   uint64
	length uint64
}

func peekTagHeader(parent *vfields.FieldSet) (*tagHeader, error) {
	stream := parent.Stream()
	address := parent.Cursor()

	length, err := stream.ReadBits(address, 6, vfields.LittleEndian)
	if err != nil {
		return nil, err
	}

	code, err := stream.ReadBits(address+6, 10, vfields.LittleEndian)
	if err != nil {
		return nil, err
	}

	result := &tagHeader{code: code, length: length}
	if length == LONG_LENGTH {
		result.long = true
		result.length, err = stream.ReadBits(address+16, 32, vfields.LittleEndian)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Size in bits of the whole record.
func (self *tagHeader) size() int64 {
	if self.long {
		return int64(6+self.length) * 8
	}
	return int64(2+self.length) * 8
}

// NewTag reads the header of the record at the cursor of parent to
// decide its name and size, then leaves the payload to the parser the
// table has for the code. The table entry is copied: changing the
// table later does not affect the record.
func NewTag(parent *vfields.FieldSet, table vfields.TagTable) (*vfields.FieldSet, error) {
	header, err := peekTagHeader(parent)
	if err != nil {
		return nil, err
	}

	info := table.Lookup(int64(header.code), "tag[]")
	describe := vfields.WithDescription(info.Description)
	_, known := table[int64(header.code)]
	if !known {
		describe = vfields.WithDescriber(describeTag)
	}

	return vfields.NewFieldSet(parent, info.Name,
		func(s *vfields.FieldSet, yield vfields.Yield) error {
			return generateTag(s, yield, header, info)
		},
		vfields.WithSize(header.size()), describe)
}

func describeTag(self vfields.Field) string {
	set := self.(*vfields.FieldSet)
	code, err := set.Field("code")
	if err != nil {
		return "Tag"
	}
	length, err := set.Field("length")
	if err != nil {
		return "Tag"
	}
	return fmt.Sprintf("Tag: %v (%v)", code.Display(), length.Display())
}

func generateTag(s *vfields.FieldSet, yield vfields.Yield,
	header *tagHeader, info vfields.TagInfo) error {
	if header.long {
		err := yield(vfields.NewBits(s, "length_ext", 6))
		if err != nil {
			return err
		}
		err = yield(vfields.NewBits(s, "code", 10))
		if err != nil {
			return err
		}
		err = yield(vfields.UInt32.New(s, "length", vfields.WithDisplay(vfields.Filesize)))
		if err != nil {
			return err
		}

	} else {
		err := yield(vfields.NewBits(s, "length", 6, vfields.WithDisplay(vfields.Filesize)))
		if err != nil {
			return err
		}
		err = yield(vfields.NewBits(s, "code", 10))
		if err != nil {
			return err
		}
	}

	code, err := s.UintOf("code")
	if err != nil {
		return err
	}
	length, err := s.UintOf("length")
	if err != nil {
		return err
	}
	if code != header.code || length != header.length {
		return &vfields.ParserError{
			Path: s.Path(),
			Msg: fmt.Sprintf("tag header changed: code %v length %v, expected code %v length %v",
				code, length, header.code, header.length),
		}
	}

	return vfields.EmitPayload(s, yield, info, "data", int64(length))
}
