package vfields

import (
	"fmt"

	"github.com/pkg/errors"
)

// SubFile is a byte run holding an embedded file. Its content can be
// opened as a stream of its own and parsed by another (or the same)
// format.
type SubFile struct {
	*Data

	format Format
	filter Filter
	header func() ([]byte, error)
}

func NewSubFile(parent *FieldSet, name string, nbytes int64, format Format,
	options ...Option) (*SubFile, error) {
	if parent.Cursor()%8 != 0 {
		return nil, constructionErrorf(name, "sub files must be byte aligned")
	}

	data, err := NewBytes(parent, name, nbytes, options...)
	if err != nil {
		return nil, err
	}
	if data.description == "" && data.describe == nil {
		data.description = fmt.Sprintf("Sub file (%v)", HumanFilesize(nbytes))
	}

	return &SubFile{Data: data, format: format}, nil
}

// Compress makes the content of subfile the output of filter run over
// its bytes.
func Compress(subfile *SubFile, filter Filter) *SubFile {
	subfile.filter = filter
	if subfile.describe == nil {
		subfile.describe = func(self Field) string {
			return fmt.Sprintf("%v compressed data", filter.Name())
		}
	}
	return subfile
}

// SetHeader prepends the bytes returned by header to the content,
// e.g. to restore a signature the container stripped.
func (self *SubFile) SetHeader(header func() ([]byte, error)) {
	self.header = header
}

func (self *SubFile) Format() Format {
	return self.format
}

func (self *SubFile) Filter() Filter {
	return self.filter
}

// InputStream returns a new, independent stream over the content. A
// filtered content is decoded again from the start for every stream.
func (self *SubFile) InputStream() (*InputStream, error) {
	var header []byte
	if self.header != nil {
		var err error
		header, err = self.header()
		if err != nil {
			return nil, errors.Wrapf(err, "%v: header", self.Path())
		}
	}

	return NewSubStream(self.stream, self.absolute/8, self.size/8,
		SubStreamOptions{
			Filter:  self.filter,
			Header:  header,
			MaxSize: self.parent.Config().MaxDecompressedSize,
			Source:  fmt.Sprintf("%v:%v", self.stream.Source(), self.Path()),
		})
}

// Open parses the content with the format of the sub file.
func (self *SubFile) Open() (*FieldSet, error) {
	if self.format == nil {
		return nil, errors.Errorf("%v: no format for sub file", self.Path())
	}
	return self.OpenAs(self.format)
}

// OpenAs parses the content with format. The new tree shares the scope
// and configuration of this one.
func (self *SubFile) OpenAs(format Format) (*FieldSet, error) {
	config := self.parent.Config()
	depth := self.parent.Depth() + 1
	if depth > config.MaxDepth {
		return nil, errors.Errorf("%v: sub files nested deeper than %v",
			self.Path(), config.MaxDepth)
	}

	stream, err := self.InputStream()
	if err != nil {
		return nil, err
	}

	ScopeDebug(self.parent.Scope(), "vfields: opening %v as %v",
		stream.Source(), format.Metadata().ID)

	return Open(format, stream,
		WithScope(self.parent.Scope()), WithConfig(config), withDepth(depth))
}
