package vfields

import (
	"bytes"
	"errors"
	"io"
	"runtime"
	"testing"
	"time"

	assert "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sample = []byte{
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10,
		0x11, 0x12, 0x13,

		// Offset 19 - "hello\x00world\x00"
		0x68, 0x65, 0x6c, 0x6c, 0x6f, 0x00, 0x77, 0x6f, 0x72, 0x6c, 0x64, 0x00,

		// Offset 31 - utf16
		0x68, 0x00, 0x65, 0x00, 0x6c, 0x00, 0x6c, 0x00, 0x6f, 0x00, 0x00, 0x00,
	}
)

func mixedGenerator(s *FieldSet, yield Yield) error {
	err := yield(UInt8.New(s, "byte"))
	if err != nil {
		return err
	}
	err = yield(NewBits(s, "three", 3))
	if err != nil {
		return err
	}
	err = yield(NewBits(s, "five", 5))
	if err != nil {
		return err
	}
	err = yield(UInt16.New(s, "word"))
	if err != nil {
		return err
	}

	nested, err := NewFieldSet(s, "nested", func(s *FieldSet, yield Yield) error {
		for i := 0; i < 3; i++ {
			err := yield(UInt8.New(s, "item[]"))
			if err != nil {
				return err
			}
		}
		return nil
	})
	err = yield(nested, err)
	if err != nil {
		return err
	}

	return yield(NewString(s, "text", 4))
}

// Every child starts where its previous sibling ends and the sizes of
// the children add up to the size of the set.
func checkContiguous(t *testing.T, set *FieldSet) {
	fields, err := set.Fields()
	require.NoError(t, err)

	address := set.AbsoluteAddress()
	for _, field := range fields {
		assert.Equal(t, address, field.AbsoluteAddress(), field.Path())
		size, err := field.Size()
		require.NoError(t, err)
		address += size

		nested, ok := field.(*FieldSet)
		if ok {
			checkContiguous(t, nested)
		}
	}

	size, err := set.Size()
	require.NoError(t, err)
	assert.Equal(t, set.AbsoluteAddress()+size, address, set.Path())
}

func TestFieldSetAddresses(t *testing.T) {
	root := NewRoot(NewBytesStream(sample, "sample"), "root", mixedGenerator)
	checkContiguous(t, root)

	size, err := root.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(len(sample)*8), size)

	// The tail not claimed by the generator is kept as raw bytes.
	raw, err := root.Field("raw[0]")
	require.NoError(t, err)
	assert.Equal(t, int64(11*8), raw.AbsoluteAddress())

	nested, err := root.Field("nested")
	require.NoError(t, err)
	nested_size, err := nested.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(24), nested_size)

	value, err := root.ValueOf("nested/item[2]")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x07), value)

	text, err := root.StringOf("text")
	require.NoError(t, err)
	assert.Equal(t, "\x08\x09\x0a\x0b", text)
}

func TestFieldSetLazyGeneration(t *testing.T) {
	constructed := 0
	root := NewRoot(NewBytesStream(sample, "sample"), "root",
		func(s *FieldSet, yield Yield) error {
			for !s.EOF() {
				constructed++
				err := yield(UInt8.New(s, "byte[]"))
				if err != nil {
					return err
				}
			}
			return nil
		})

	assert.Equal(t, 0, constructed)

	field, err := root.Index(1)
	require.NoError(t, err)
	assert.Equal(t, "byte[1]", field.Name())
	assert.Equal(t, 2, constructed)
	assert.Equal(t, 2, root.Generated())
	assert.False(t, root.Done())

	// Already generated fields are served from the cache.
	_, err = root.Child("byte[0]")
	require.NoError(t, err)
	assert.Equal(t, 2, constructed)

	count, err := root.Len()
	require.NoError(t, err)
	assert.Equal(t, len(sample), count)
	assert.True(t, root.Done())
}

func TestFieldSetPaths(t *testing.T) {
	root := NewRoot(NewBytesStream(sample, "sample"), "root", mixedGenerator)

	item, err := root.Field("nested/item[1]")
	require.NoError(t, err)
	assert.Equal(t, "/nested/item[1]", item.Path())

	nested := item.Parent()
	word, err := nested.Field("../word")
	require.NoError(t, err)
	assert.Equal(t, "word", word.Name())

	word, err = nested.Field("/word")
	require.NoError(t, err)
	assert.Equal(t, int64(16), word.Address())

	_, err = root.Field("nested/item[7]")
	assert.True(t, IsMissing(err))

	// Leaves have no children.
	_, err = root.Field("word/low")
	assert.True(t, IsMissing(err))
}

// A failed generator keeps what it produced; looking past it returns
// its error rather than a missing field.
func TestFieldSetGeneratorError(t *testing.T) {
	failure := errors.New("corrupt record")
	root := NewRoot(NewBytesStream(sample, "sample"), "root",
		func(s *FieldSet, yield Yield) error {
			err := yield(UInt8.New(s, "first"))
			if err != nil {
				return err
			}
			return failure
		})

	_, err := root.Child("second")
	assert.True(t, errors.Is(err, failure))
	assert.False(t, IsMissing(err))

	first, err := root.Child("first")
	require.NoError(t, err)
	value, err := first.Value()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), value)

	_, err = root.Size()
	require.NoError(t, err)
	assert.Equal(t, failure, root.Err())
}

func TestFieldSetRejectsBadChildren(t *testing.T) {
	var parser_error *ParserError

	// Two fields constructed at the same cursor.
	root := NewRoot(NewBytesStream(sample, "sample"), "root",
		func(s *FieldSet, yield Yield) error {
			first, _ := UInt8.New(s, "first")
			second, _ := UInt8.New(s, "second")
			err := yield(first, nil)
			if err != nil {
				return err
			}
			return yield(second, nil)
		})
	_, err := root.Fields()
	assert.True(t, errors.As(err, &parser_error))
	assert.Equal(t, 1, root.Generated())

	// Duplicate names.
	root = NewRoot(NewBytesStream(sample, "sample"), "root",
		func(s *FieldSet, yield Yield) error {
			err := yield(UInt8.New(s, "name"))
			if err != nil {
				return err
			}
			return yield(UInt8.New(s, "name"))
		})
	_, err = root.Fields()
	assert.True(t, errors.As(err, &parser_error))

	// Children may not outgrow a fixed size.
	root = NewRoot(NewBytesStream(sample, "sample"), "root",
		func(s *FieldSet, yield Yield) error {
			small, err := NewFieldSet(s, "small", func(s *FieldSet, yield Yield) error {
				return yield(UInt16.New(s, "word"))
			}, WithSize(8))
			return yield(small, err)
		})
	_, err = root.Field("small/word")
	assert.True(t, errors.As(err, &parser_error))

	// Nor the end of the stream.
	root = NewRoot(NewBytesStream(sample[:3], "short"), "root",
		func(s *FieldSet, yield Yield) error {
			return yield(UInt32.New(s, "long"))
		})
	_, err = root.Fields()
	assert.True(t, errors.As(err, &parser_error))
}

func TestFieldSetFixSize(t *testing.T) {
	var fix_errors []error

	root := NewRoot(NewBytesStream(sample, "sample"), "root",
		func(s *FieldSet, yield Yield) error {
			record, err := NewFieldSet(s, "record", func(s *FieldSet, yield Yield) error {
				err := yield(UInt8.New(s, "length"))
				if err != nil {
					return err
				}

				length, err := s.UintOf("length")
				if err != nil {
					return err
				}

				// The size is 1 + length bytes, fixed once.
				err = s.FixSize(int64(length+1) * 8)
				if err != nil {
					return err
				}
				fix_errors = append(fix_errors, s.FixSize(64))
				return nil
			})
			err = yield(record, err)
			if err != nil {
				return err
			}
			return yield(UInt8.New(s, "after"))
		})

	after, err := root.Field("after")
	require.NoError(t, err)
	assert.Equal(t, int64(16), after.AbsoluteAddress())

	padding, err := root.Field("record/raw[0]")
	require.NoError(t, err)
	value, err := padding.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02}, value)

	require.Equal(t, 1, len(fix_errors))
	assert.Error(t, fix_errors[0])
}

// Inside a generator only the fields yielded so far are visible.
func TestFieldSetLookupDuringGeneration(t *testing.T) {
	var seen, unseen error

	root := NewRoot(NewBytesStream(sample, "sample"), "root",
		func(s *FieldSet, yield Yield) error {
			err := yield(UInt8.New(s, "first"))
			if err != nil {
				return err
			}

			_, seen = s.Child("first")
			_, unseen = s.Child("second")
			return yield(UInt8.New(s, "second"))
		})

	_, err := root.Child("second")
	require.NoError(t, err)
	assert.NoError(t, seen)

	var parser_error *ParserError
	assert.True(t, errors.As(unseen, &parser_error))
	assert.False(t, IsMissing(unseen))
}

func TestFieldSetClose(t *testing.T) {
	stream := newLazyStream(&filterSource{
		decoder: io.NopCloser(bytes.NewReader(sample)),
	}, "lazy")

	root := NewRoot(stream, "root", func(s *FieldSet, yield Yield) error {
		for !s.EOF() {
			err := yield(UInt8.New(s, "byte[]"))
			if err != nil {
				return err
			}
		}
		return nil
	})

	_, err := root.Index(3)
	require.NoError(t, err)

	root.Close()
	assert.True(t, root.Done())
	assert.Equal(t, 4, root.Generated())

	// Generated fields stay usable.
	value, err := root.ValueOf("byte[3]")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), value)

	_, err = root.Size()
	assert.Error(t, err)
}

func readFirstField(t *testing.T) {
	root := NewRoot(NewBytesStream(sample, "sample"), "root", mixedGenerator)

	value, err := root.UintOf("byte")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), value)
	assert.False(t, root.Done())
}

// Roots dropped half way do not leave their generators suspended.
func TestDroppedRootsStopGenerators(t *testing.T) {
	base := runtime.NumGoroutine()

	for i := 0; i < 20; i++ {
		readFirstField(t)
	}

	deadline := time.Now().Add(10 * time.Second)
	for runtime.NumGoroutine() > base && time.Now().Before(deadline) {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
	assert.True(t, runtime.NumGoroutine() <= base,
		"%v goroutines running, %v before", runtime.NumGoroutine(), base)
}

// A struct handed out by a profile outlives its temporary root.
func TestProfileStructOutlivesRoot(t *testing.T) {
	profile := NewProfile()
	AddModel(profile)
	err := profile.ParseStructDefinitions(`
[
  ["Pair", 0, [
    ["First", 0, "uint8"],
    ["Second", 1, "uint8"],
    ["Third", 2, "uint8"]
  ]]
]`)
	require.NoError(t, err)

	field, err := profile.Parse(MakeScope(), "Pair", NewBytesStream(sample, "sample"), 0)
	require.NoError(t, err)
	pair := field.(*FieldSet)

	first, err := pair.UintOf("First")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first)

	runtime.GC()
	runtime.GC()
	time.Sleep(10 * time.Millisecond)

	third, err := pair.UintOf("Third")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), third)
}

func TestSeekPadding(t *testing.T) {
	root := NewRoot(NewBytesStream(sample, "sample"), "root",
		func(s *FieldSet, yield Yield) error {
			padding, err := s.SeekBit(3, "gap[]")
			err = yield(padding, err)
			if err != nil {
				return err
			}

			padding, err = s.SeekBit(16, "gap[]")
			err = yield(padding, err)
			if err != nil {
				return err
			}

			padding, err = s.SeekByte(4, "gap[]")
			err = yield(padding, err)
			if err != nil {
				return err
			}

			_, err = s.SeekBit(8, "back")
			return err
		}, WithSize(6*8))

	_, err := root.Fields()
	var parser_error *ParserError
	assert.True(t, errors.As(err, &parser_error))

	for name, size := range map[string]int64{
		"gap[0]": 3, "gap[1]": 13, "gap[2]": 16,
	} {
		field, err := root.Field(name)
		require.NoError(t, err, name)
		got, err := field.Size()
		require.NoError(t, err, name)
		assert.Equal(t, size, got, name)
	}
}

type countingReader struct {
	reader io.ReaderAt
	reads  int
}

func (self *countingReader) ReadAt(p []byte, off int64) (int, error) {
	self.reads++
	return self.reader.ReadAt(p, off)
}

func TestValueIsMemoised(t *testing.T) {
	reader := &countingReader{reader: bytes.NewReader(sample)}
	stream := NewInputStream(reader, int64(len(sample)), "counting")

	root := NewRoot(stream, "root", mixedGenerator)
	field, err := root.Field("word")
	require.NoError(t, err)
	assert.Equal(t, 0, reader.reads)

	first, err := field.Value()
	require.NoError(t, err)
	reads := reader.reads
	assert.Equal(t, 1, reads)

	second, err := field.Value()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, reads, reader.reads)

	// Errors are memoised too.
	reader.reads = 0
	lying := NewInputStream(reader, 100, "lying")
	short := NewRoot(lying, "root", func(s *FieldSet, yield Yield) error {
		err := yield(s.SeekByte(64, "gap"))
		if err != nil {
			return err
		}
		return yield(UInt64.New(s, "past_the_end"))
	})
	field, err = short.Field("past_the_end")
	require.NoError(t, err)

	_, err = field.Value()
	var bounds *StreamBoundsError
	assert.True(t, errors.As(err, &bounds))
	assert.Equal(t, 1, reader.reads)

	_, again := field.Value()
	assert.Equal(t, err, again)
	assert.Equal(t, 1, reader.reads)
}

func TestDebugTree(t *testing.T) {
	root := NewRoot(NewBytesStream(sample[:11], "sample"), "root", mixedGenerator)
	_, err := root.Fields()
	require.NoError(t, err)

	expected := "byte @0 +8 1\n" +
		"three @8 +3 0\n" +
		"five @11 +5 2\n" +
		"word @16 +16 772\n" +
		"nested @32 +24 \n" +
		"  item[0] @32 +8 5\n" +
		"  item[1] @40 +8 6\n" +
		"  item[2] @48 +8 7\n" +
		"text @56 +32 \"\\b\\t\\n\\v\"\n"
	assert.Equal(t, expected, DebugTree(root))
}
