package vfields

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"testing"
	"time"

	"github.com/sebdah/goldie"
	assert "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"www.velocidex.com/golang/vfilter"
)

func TestIntegerParser(t *testing.T) {
	profile := NewProfile()
	AddModel(profile)

	scope := MakeScope()
	obj, err := profile.Parse(scope, "unsigned long long", NewBytesStream(sample, "sample"), 0)
	require.NoError(t, err)

	value, err := obj.Value()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0807060504030201), value)

	obj, err = profile.Parse(scope, "uint32be", NewBytesStream(sample, "sample"), 4)
	require.NoError(t, err)

	value, err = obj.Value()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x05060708), value)
}

func TestStructParser(t *testing.T) {
	profile := NewProfile()
	AddModel(profile)

	scope := MakeScope()
	scope.SetLogger(log.New(os.Stderr, " ", 0))

	definition := `
[
  ["TestStruct", "x => x.Field1 + 7", [
     ["Field1", 2, "uint8"],
     ["Field2", 4, "Second"],
     ["X", 9, "Value", {"value": "x=>x.Field1"}],
     ["Field4", "x => x.Field1 + 6", "uint8"]
  ]],

  ["Second", 5, [
      ["SecondField1", 2, "uint8"]
  ]]
]
`

	err := profile.ParseStructDefinitions(definition)
	require.NoError(t, err)

	obj, err := profile.Parse(scope, "TestStruct", NewBytesStream(sample, "sample"), 0)
	require.NoError(t, err)

	// Field1 is at offset 2 has value 0x03
	assert.Equal(t, uint64(3), Associative(scope, obj, "Field1"))

	// Object size is calculated as x.Field1 + 7 ... 10
	assert.Equal(t, 10, SizeOf(obj))

	// Second starts at 4, SecondField1 is 2 bytes into it.
	assert.Equal(t, uint64(7), Associative(scope, obj, "Field2.SecondField1"))
	assert.Equal(t, int64(4), Associative(scope, obj, "Field2.StartOf"))
	assert.Equal(t, int64(5), Associative(scope, obj, "Field2.SizeOf"))

	assert.Equal(t, uint64(3), Associative(scope, obj, "X"))

	// Field4's offset is calculated as x=>x.Field1 + 6
	assert.Equal(t, uint64(0x0a), Associative(scope, obj, "Field4"))

	// Unknown members are Null.
	assert.Equal(t, vfilter.Null{}, Associative(scope, obj, "Field5"))

	set, ok := obj.(*FieldSet)
	require.True(t, ok)
	checkContiguous(t, set)
}

func TestProfileParser(t *testing.T) {
	profile := NewProfile()
	AddModel(profile)

	scope := MakeScope()
	scope.SetLogger(log.New(os.Stderr, " ", 0))

	definition := `
- - Header
  - 0
  - - [Magic, 0, String, {length: 4}]
    - [Count, 4, uint16]
    - [Items, 6, Array, {count: "x=>x.Count", type: uint8}]
`
	err := profile.ParseStructDefinitions(definition)
	require.NoError(t, err)

	data := []byte("VFLD\x03\x00\x0a\x0b\x0c\xff")
	obj, err := profile.Parse(scope, "Header", NewBytesStream(data, "header"), 0)
	require.NoError(t, err)

	assert.Equal(t, uint64(3), Associative(scope, obj, "Count"))
	assert.Equal(t, []interface{}{uint64(10), uint64(11), uint64(12)},
		Associative(scope, obj, "Items.Value"))

	// The struct ends with its last field.
	assert.Equal(t, 9, SizeOf(obj))

	serialized, err := json.MarshalIndent(obj, "", " ")
	require.NoError(t, err)

	goldie.Assert(t, "TestProfileParser", serialized)
}

func TestArrayParser(t *testing.T) {
	profile := NewProfile()
	AddModel(profile)

	scope := MakeScope()

	definition := `
[
  ["TestStruct", 0, [
     ["Length", 1, "uint8"],
     ["Field1", 2, "Array", {
        "count": "x=>x.Length",
        "type": "uint8"
     }],
     ["Field2", "Array", {
        "count": 2,
        "type": "Second"
     }],
     ["Field3", "Array", {
        "count": 100,
        "type": "uint8",
        "sentinel": "x=>x = 13"
     }]
  ]],

  ["Second", 3, [
      ["SecondField1", 2, "uint8"]
  ]]
]
`

	err := profile.ParseStructDefinitions(definition)
	require.NoError(t, err)

	obj, err := profile.Parse(scope, "TestStruct", NewBytesStream(sample, "sample"), 0)
	require.NoError(t, err)

	// Length is at offset 1 value 2
	assert.Equal(t, uint64(2), Associative(scope, obj, "Length"))

	// Field1 has a length of 2 and starts at offset 2
	assert.Equal(t, []interface{}{uint64(3), uint64(4)},
		Associative(scope, obj, "Field1.Value"))

	// Field2 is an array of structs (each 3 bytes) starting at offset 4.
	assert.Equal(t, []vfilter.Any{uint64(7), uint64(0x0a)},
		Associative(scope, obj, "Field2.SecondField1"))

	// Field3 starts at 10 and stops after the sentinel, which is kept.
	assert.Equal(t, []interface{}{uint64(0x0b), uint64(0x0c), uint64(0x0d)},
		Associative(scope, obj, "Field3.Value"))

	// Arrays can be iterated.
	rows := []vfilter.Row{}
	for row := range scope.Iterate(context.Background(), Associative(scope, obj, "Field2")) {
		rows = append(rows, row)
	}
	assert.Equal(t, 2, len(rows))
}

func TestStringParser(t *testing.T) {
	profile := NewProfile()
	AddModel(profile)

	scope := MakeScope()

	definition := `
[
  ["Strings", 0, [
     ["Terminated", 19, "String"],
     ["Fixed", 25, "String", {"length": 4}],
     ["Wide", 31, "String", {"encoding": "utf16"}],
     ["Raw", 43, "String", {"term": "", "length": 2, "byte_string": true}]
  ]]
]
`
	err := profile.ParseStructDefinitions(definition)
	require.NoError(t, err)

	data := append(append([]byte{}, sample...), 0xfe, 0xff)
	obj, err := profile.Parse(scope, "Strings", NewBytesStream(data, "sample"), 0)
	require.NoError(t, err)

	assert.Equal(t, "hello", Associative(scope, obj, "Terminated"))
	assert.Equal(t, "worl", Associative(scope, obj, "Fixed"))
	assert.Equal(t, "hello", Associative(scope, obj, "Wide"))
	assert.Equal(t, []byte{0xfe, 0xff}, Associative(scope, obj, "Raw"))
}

func TestUndefinedType(t *testing.T) {
	profile := NewProfile()
	AddModel(profile)

	err := profile.ParseStructDefinitions(`[["Broken", 0, [["Field", "Missing"]]]]`)
	assert.Error(t, err)

	_, err = profile.Parse(MakeScope(), "Missing", NewBytesStream(sample, "sample"), 0)
	assert.Error(t, err)
}

func TestModelTypes(t *testing.T) {
	profile := NewProfile()
	AddModel(profile)

	scope := MakeScope()

	definition := `
[
  ["Model", 0, [
    ["Kind", 0, "Enumeration", {"type": "uint8", "choices": {"1": "ONE", "2": "TWO"}}],
    ["Flags", 1, "Flags", {"type": "uint8", "bitmap": {"A": 0, "B": 1, "C": 2}}],
    ["Varint", 2, "Leb128"],
    ["Signed", 5, "Sleb128"],
    ["Stamp", 6, "Timestamp"],
    ["Body", 10, "Union", {
       "selector": "x=>x.Kind",
       "choices": {"ONE": "uint8", "TWO": "uint16"}
    }],
    ["Target", 12, "Pointer", {"type": "uint8", "pointer_type": "uint8"}],
    ["Remote", "Profile", {"type": "uint16", "offset": "x=>10"}],
    ["End", 13, "uint8"]
  ]]
]
`
	err := profile.ParseStructDefinitions(definition)
	require.NoError(t, err)

	data := []byte{
		0x02, 0x05,
		0xE5, 0x8E, 0x26,
		0x7F,
		0x00, 0x10, 0x5E, 0x5F,
		0x34, 0x12,
		0x0D,
		0x99,
	}
	obj, err := profile.Parse(scope, "Model", NewBytesStream(data, "model"), 0)
	require.NoError(t, err)

	assert.Equal(t, "TWO", Associative(scope, obj, "Kind"))
	assert.Equal(t, []string{"A", "C"}, Associative(scope, obj, "Flags"))
	assert.Equal(t, uint64(624485), Associative(scope, obj, "Varint"))
	assert.Equal(t, int64(-1), Associative(scope, obj, "Signed"))
	assert.Equal(t, time.Unix(1600000000, 0).UTC(), Associative(scope, obj, "Stamp"))

	// The union picks uint16 from the converted Kind.
	assert.Equal(t, uint64(0x1234), Associative(scope, obj, "Body"))

	// Pointer and Profile targets are parsed in trees of their own.
	assert.Equal(t, uint64(0x99), Associative(scope, obj, "Target"))
	assert.Equal(t, uint64(0x1234), Associative(scope, obj, "Remote"))
	assert.Equal(t, uint64(0x99), Associative(scope, obj, "End"))

	assert.Equal(t, len(data), SizeOf(obj))
	set, ok := obj.(*FieldSet)
	require.True(t, ok)
	checkContiguous(t, set)
}
