//  Every profile contains some basic built in types that make it
//  easier to parse common structs. The model is a mapping between the
//  generic names of types and the corresponding parsers.

package vfields

import "strings"

func AddModel(profile *Profile) {
	// Plain names take the endian of the struct (little by default),
	// the be/b and le suffixes pin it.
	for _, integer := range []IntegerType{
		UInt8, UInt16, UInt24, UInt32, UInt64,
		Int8, Int16, Int24, Int32, Int64,
	} {
		name := strings.ToLower(integer.Name)
		profile.types[name] = NewIntParser(name, integer)

		for _, suffix := range []string{"be", "b"} {
			pinned := integer
			pinned.Endian = BigEndian
			profile.types[name+suffix] = NewIntParser(name+suffix, pinned)
		}

		pinned := integer
		pinned.Endian = LittleEndian
		profile.types[name+"le"] = NewIntParser(name+"le", pinned)
	}

	profile.types["float32"] = NewFloatParser("float32", UInt32LE)
	profile.types["float32be"] = NewFloatParser("float32be", UInt32BE)
	profile.types["float64"] = NewFloatParser("float64", UInt64LE)
	profile.types["float64be"] = NewFloatParser("float64be", UInt64BE)

	profile.types["Array"] = &ArrayParser{}
	profile.types["String"] = &StringParser{}
	profile.types["CString"] = &StringParser{}
	profile.types["PascalString8"] = &PascalStringParser{bits: 8}
	profile.types["PascalString16"] = &PascalStringParser{bits: 16}
	profile.types["PascalString32"] = &PascalStringParser{bits: 32}
	profile.types["RawBytes"] = &RawBytesParser{}
	profile.types["NullBytes"] = &RawBytesParser{null: true}
	profile.types["Bits"] = &BitsParser{}
	profile.types["Bit"] = BitParser{}
	profile.types["Value"] = &ValueParser{}
	profile.types["Enumeration"] = &EnumerationParser{}
	profile.types["BitField"] = &BitField{}
	profile.types["Flags"] = &Flags{}
	profile.types["WinFileTime"] = &WinFileTime{}
	profile.types["Timestamp"] = &EpochTimestamp{}
	profile.types["FatTimestamp"] = &FatTimestamp{}
	profile.types["Leb128"] = &Leb128Parser{}
	profile.types["Sleb128"] = &Sleb128Parser{}
	profile.types["Union"] = &Union{}
	profile.types["Pointer"] = &PointerParser{}
	profile.types["Profile"] = &ProfileParser{}
	profile.types["Null"] = NullParser{}

	// Aliases
	profile.types["int"] = profile.types["int32"]
	profile.types["char"] = profile.types["int8"]
	profile.types["byte"] = profile.types["uint8"]
	profile.types["short int"] = profile.types["int16"]
	profile.types["unsigned char"] = profile.types["uint8"]
	profile.types["unsigned int"] = profile.types["uint32"]
	profile.types["unsigned long"] = profile.types["uint32"]
	profile.types["unsigned long long"] = profile.types["uint64"]
	profile.types["unsigned short"] = profile.types["uint16"]
}
