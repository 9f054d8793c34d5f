package vfields

import (
	"fmt"
	"iter"
	"runtime"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"www.velocidex.com/golang/vfilter"
)

// Yield hands a newly constructed field to its parent. The error of the
// constructor is passed along so generators can write
//
//	if err := yield(UInt8.New(s, "version")); err != nil {
//	    return err
//	}
//
// A non nil error is returned when the field was rejected, when the
// constructor failed or when the consumer is no longer interested in
// more fields. The generator must return it.
type Yield func(Field, error) error

// A Generator produces the children of a FieldSet in order. Every
// field must be constructed at the cursor of s (the constructors do
// that) and yielded before the next one is constructed.
type Generator func(s *FieldSet, yield Yield) error

// State shared by all the sets of one tree.
type rootInfo struct {
	scope  vfilter.Scope
	config *Config
	depth  int

	mu sync.Mutex

	// Live handles given to callers.
	handles int

	// Sets whose generator is suspended.
	pending map[*fieldSet]struct{}
}

func (self *rootInfo) track(set *fieldSet) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.pending == nil {
		self.pending = make(map[*fieldSet]struct{})
	}
	self.pending[set] = struct{}{}
}

func (self *rootInfo) untrack(set *fieldSet) {
	self.mu.Lock()
	defer self.mu.Unlock()
	delete(self.pending, set)
}

func (self *rootInfo) acquire() {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.handles++
}

// release runs once a handle is garbage collected. When no handle is
// left nobody can ask the tree for more fields, so the suspended
// generators are stopped and their goroutines exit.
func (self *rootInfo) release() {
	self.mu.Lock()
	self.handles--
	if self.handles > 0 {
		self.mu.Unlock()
		return
	}
	pending := maps.Keys(self.pending)
	self.pending = nil
	self.mu.Unlock()

	for _, set := range pending {
		set.abandon()
	}
}

// FieldSet is a field whose children are produced lazily by a
// Generator. Children are only ever appended and are cached, so any
// structural query generates just enough of them to be answered.
//
// Roots are returned as handles. A tree stays alive while a handle on
// it is referenced. Once the last one is dropped the generators which
// are still suspended are stopped, so fields taken from the tree
// should not outlive its handles.
type FieldSet struct {
	*fieldSet
}

type fieldSet struct {
	field

	// The wrapper seen by the generator and the children. It differs
	// from the handles, which nothing in the tree may reference.
	tree *FieldSet

	generator Generator
	root      *rootInfo

	// Size in bits, -1 until known.
	size  int64
	fixed bool

	// Bound of a set of unknown size: the remaining budget of the
	// enclosing set when this one was constructed. -1 for none.
	limit int64

	value     func(*FieldSet) (interface{}, error)
	evaluated bool
	result    interface{}
	value_err error

	// Sets created by the Array profile type.
	array bool

	children []Field
	names    map[string]Field
	arrays   map[string]int

	// Bits consumed by the children so far.
	current int64

	next       func() (Field, bool)
	stop       func()
	gen_err    error
	generating bool
	done       bool
	err        error
}

// NewRoot creates the top level set over stream. The root owns the
// scope and the configuration used by the whole tree.
func NewRoot(stream *InputStream, name string, generator Generator,
	options ...Option) *FieldSet {
	settings := newSettings(options)
	endian := settings.endian
	if endian == EndianInherit {
		endian = BigEndian
	}

	scope := settings.scope
	if scope == nil {
		scope = MakeScope()
	}

	config := settings.config
	if config == nil {
		config = DefaultConfig()
	}

	result := &fieldSet{
		field: field{
			name:        name,
			stream:      stream,
			endian:      endian,
			description: settings.description,
			describe:    settings.describe,
			display:     settings.display,
			registered:  true,
		},
		generator: generator,
		root: &rootInfo{
			scope:  scope,
			config: config,
			depth:  settings.depth,
		},
		size:  settings.size,
		limit: -1,
		value: settings.value,
		array: settings.array,
	}

	if result.size < 0 {
		result.size = stream.Size()
	}
	result.fixed = result.size >= 0
	result.tree = &FieldSet{result}
	return newHandle(result)
}

// newHandle returns a wrapper of set which is not referenced from its
// tree and is tracked by the garbage collector.
func newHandle(set *fieldSet) *FieldSet {
	result := &FieldSet{set}
	set.root.acquire()
	runtime.AddCleanup(result, (*rootInfo).release, set.root)
	return result
}

// NewFieldSet constructs a child set at the cursor of parent. Nothing
// is read until the set is traversed.
func NewFieldSet(parent *FieldSet, name string, generator Generator,
	options ...Option) (*FieldSet, error) {
	settings := newSettings(options)

	result := &FieldSet{&fieldSet{
		generator: generator,
		root:      parent.root,
		size:      settings.size,
		fixed:     settings.size >= 0,
		limit:     parent.remaining(),
		value:     settings.value,
		array:     settings.array,
	}}
	result.tree = result
	result.init(parent, name, settings)

	if result.fixed && result.limit >= 0 && result.size > result.limit {
		return nil, parserErrorf(result.Path(),
			"size %v exceeds the %v bits left in the parent",
			result.size, result.limit)
	}
	return result, nil
}

func (self *FieldSet) Kind() Kind {
	return KindSet
}

func (self *FieldSet) Root() *FieldSet {
	result := self
	for result.parent != nil {
		result = result.parent
	}
	return result
}

func (self *FieldSet) Scope() vfilter.Scope {
	return self.root.scope
}

func (self *FieldSet) Config() *Config {
	return self.root.config
}

// Depth counts the sub files between the outermost stream and this
// tree.
func (self *FieldSet) Depth() int {
	return self.root.depth
}

// The number of bits children may still occupy, -1 if unbounded.
func (self *FieldSet) remaining() int64 {
	if self.size >= 0 {
		return self.size - self.current
	}
	if self.limit >= 0 {
		return self.limit - self.current
	}
	return -1
}

// start runs the generator as a coroutine. Only the tree wrapper is
// handed to it, so a suspended generator does not keep the handles
// alive.
func (self *FieldSet) start() {
	set := self.tree
	seq := func(push func(Field) bool) {
		set.gen_err = set.generator(set, func(child Field, err error) error {
			if err != nil {
				return err
			}
			err = set.add(child)
			if err != nil {
				return err
			}
			if !push(child) {
				return errStopped
			}
			return nil
		})
	}
	self.next, self.stop = iter.Pull(seq)
	self.root.track(self.fieldSet)
}

// feedOne resumes the generator until it yields one more field or
// returns. It must not be called while the generator is running.
func (self *FieldSet) feedOne() {
	if self.done || self.generating {
		return
	}
	if self.next == nil {
		if self.generator == nil {
			self.finish(nil)
			return
		}
		self.start()
	}

	self.generating = true
	_, ok := self.next()
	self.generating = false

	if !ok {
		self.finish(self.gen_err)
	}
}

func (self *FieldSet) feedAll() {
	for !self.done && !self.generating {
		self.feedOne()
	}
}

func (self *FieldSet) finish(err error) {
	self.done = true
	if self.stop != nil {
		self.stop()
		self.root.untrack(self.fieldSet)
	}

	// A set running to the end of a stream which failed to decode
	// further is incomplete.
	if err == nil && self.size < 0 {
		err = self.stream.Failure(self.absolute + self.current)
	}

	if err != nil {
		self.err = err
		ScopeDebug(self.Scope(), "vfields: %v: generation failed: %v",
			self.Path(), err)
		return
	}

	if self.size < 0 {
		self.size = self.current
		return
	}

	if self.current < self.size {
		padding, err := createRawField(self, "raw[]", self.size-self.current)
		if err == nil {
			err = self.add(padding)
		}
		self.err = err
	}
}

// add registers a freshly constructed child and moves the cursor past
// it.
func (self *FieldSet) add(child Field) error {
	common := child.common()
	if common.parent == nil || common.parent.fieldSet != self.fieldSet {
		return parserErrorf(self.Path(),
			"field %v was constructed for another set", common.name)
	}
	if common.registered {
		return parserErrorf(self.Path(),
			"field %v was already added", common.name)
	}
	if common.address != self.current {
		return parserErrorf(self.Path(),
			"field %v is at bit %v but the cursor is at bit %v",
			common.name, common.address, self.current)
	}

	if strings.HasSuffix(common.name, "[]") {
		if self.arrays == nil {
			self.arrays = make(map[string]int)
		}
		base := strings.TrimSuffix(common.name, "[]")
		common.name = fmt.Sprintf("%v[%d]", base, self.arrays[base])
		self.arrays[base]++
	}

	if self.names == nil {
		self.names = make(map[string]Field)
	}
	_, pres := self.names[common.name]
	if pres {
		return parserErrorf(self.Path(), "duplicate field name %v", common.name)
	}

	size, err := child.Size()
	if err != nil {
		return errors.Wrapf(err, "%v/%v", self.Path(), common.name)
	}

	end := self.current + size
	if self.size >= 0 && end > self.size {
		return parserErrorf(self.Path(),
			"field %v of %v bits ends at bit %v past the set size of %v bits",
			common.name, size, end, self.size)
	}

	if self.size < 0 {
		if self.limit >= 0 && end > self.limit {
			return parserErrorf(self.Path(),
				"field %v of %v bits ends at bit %v past the limit of %v bits",
				common.name, size, end, self.limit)
		}
		if !self.stream.SizeGE(self.absolute + end) {
			err := self.stream.Failure(self.absolute + end - 1)
			if err != nil {
				return errors.Wrapf(err, "%v/%v", self.Path(), common.name)
			}
			return &StreamBoundsError{
				Source:  self.stream.Source(),
				Address: common.absolute,
				Size:    size,
			}
		}
	}

	common.registered = true
	self.children = append(self.children, child)
	self.names[common.name] = child
	self.current = end

	ScopeDebug(self.Scope(), "vfields: %v: %v at bit %v (%v bits)",
		self.Path(), common.name, common.address, size)

	return nil
}

// Index returns the i'th child, generating up to it.
func (self *FieldSet) Index(i int) (Field, error) {
	for len(self.children) <= i && !self.done && !self.generating {
		self.feedOne()
	}

	if i >= 0 && i < len(self.children) {
		return self.children[i], nil
	}
	if self.err != nil {
		return nil, self.err
	}
	if self.generating {
		return nil, parserErrorf(self.Path(), "field %d is not generated yet", i)
	}
	return nil, &MissingFieldError{Path: self.Path(), Name: fmt.Sprintf("%d", i)}
}

// Child returns the direct child called name.
func (self *FieldSet) Child(name string) (Field, error) {
	for {
		child, pres := self.names[name]
		if pres {
			return child, nil
		}
		if self.done || self.generating {
			break
		}
		self.feedOne()
	}

	if self.err != nil {
		return nil, self.err
	}
	if self.generating {
		return nil, parserErrorf(self.Path(), "field %v is not generated yet", name)
	}
	return nil, &MissingFieldError{Path: self.Path(), Name: name}
}

// Len generates all the children and returns their number.
func (self *FieldSet) Len() (int, error) {
	self.feedAll()
	return len(self.children), self.err
}

// Fields generates all the children.
func (self *FieldSet) Fields() ([]Field, error) {
	self.feedAll()
	result := make([]Field, len(self.children))
	copy(result, self.children)
	return result, self.err
}

// Remaining returns the number of bits between the cursor and the end
// of the set. Without a size or a bound this is the end of the stream.
func (self *FieldSet) Remaining() int64 {
	result := self.remaining()
	if result >= 0 {
		return result
	}

	length := self.stream.Length()
	if length < 0 {
		return 0
	}
	return length - self.absolute - self.current
}

// Generated returns the number of children produced so far.
func (self *FieldSet) Generated() int {
	return len(self.children)
}

// CurrentSize is the number of bits consumed by the children produced
// so far.
func (self *FieldSet) CurrentSize() int64 {
	return self.current
}

// Cursor is the absolute address of the next child.
func (self *FieldSet) Cursor() int64 {
	return self.absolute + self.current
}

func (self *FieldSet) Done() bool {
	return self.done
}

func (self *FieldSet) Err() error {
	return self.err
}

// EOF reports whether there is no room left for another child: the
// fixed size is reached, the budget inherited from the parent is
// spent, or the stream ends.
func (self *FieldSet) EOF() bool {
	if self.size >= 0 {
		return self.current >= self.size
	}
	if self.limit >= 0 && self.current >= self.limit {
		return true
	}
	return !self.stream.SizeGE(self.absolute + self.current + 1)
}

// Size returns the set size in bits. A set without a fixed size is
// generated until it has one.
func (self *FieldSet) Size() (int64, error) {
	for self.size < 0 && !self.done && !self.generating {
		self.feedOne()
	}

	if self.size >= 0 {
		return self.size, nil
	}
	if self.err != nil {
		return 0, self.err
	}
	return 0, parserErrorf(self.Path(), "size requested while generating")
}

// FixSize sets the size of a set from inside its generator, typically
// from a length field it just yielded. It may only be called once,
// before the set is registered in its parent.
func (self *FieldSet) FixSize(size int64) error {
	if self.fixed {
		return parserErrorf(self.Path(), "size is already fixed to %v", self.size)
	}
	if self.registered {
		return parserErrorf(self.Path(), "can not fix the size of a registered set")
	}
	if size < self.current {
		return parserErrorf(self.Path(),
			"size %v is smaller than the %v bits already generated",
			size, self.current)
	}
	if self.limit >= 0 && size > self.limit {
		return parserErrorf(self.Path(),
			"size %v exceeds the %v bits left in the parent", size, self.limit)
	}

	self.size = size
	self.fixed = true
	return nil
}

func (self *FieldSet) Value() (interface{}, error) {
	if self.value == nil {
		return nil, nil
	}
	if !self.evaluated {
		self.result, self.value_err = self.value(self)
		self.evaluated = true
	}
	return self.result, self.value_err
}

func (self *FieldSet) Description() string {
	return describeField(self, &self.field)
}

func (self *FieldSet) Display() string {
	return displayField(self, &self.field)
}

// Close abandons the generation of this set and of all its children
// sets. The fields generated so far remain valid.
func (self *FieldSet) Close() {
	for _, child := range self.children {
		set, ok := child.(*FieldSet)
		if ok {
			set.Close()
		}
	}

	if !self.done && !self.generating {
		self.abandon()
		self.root.untrack(self.fieldSet)
		if self.size < 0 {
			self.err = errStopped
		}
	}
}

func (self *fieldSet) abandon() {
	self.done = true
	if self.stop != nil {
		self.stop()
	}
}

// SeekBit returns a padding field moving the cursor to the relative
// bit address, or nil when the cursor is already there.
func (self *FieldSet) SeekBit(address int64, name string) (Field, error) {
	if address == self.current {
		return nil, nil
	}
	if address < self.current {
		return nil, parserErrorf(self.Path(),
			"can not seek back to bit %v from bit %v", address, self.current)
	}
	return createPaddingField(self, name, address-self.current)
}

func (self *FieldSet) SeekByte(address int64, name string) (Field, error) {
	return self.SeekBit(address*8, name)
}

func createRawField(parent *FieldSet, name string, nbits int64) (Field, error) {
	if nbits%8 == 0 && parent.current%8 == 0 {
		return NewRawBytes(parent, name, nbits/8)
	}
	return NewRawBits(parent, name, nbits)
}

func createPaddingField(parent *FieldSet, name string, nbits int64) (Field, error) {
	if nbits%8 == 0 && parent.current%8 == 0 {
		return NewNullBytes(parent, name, nbits/8)
	}
	return NewNullBits(parent, name, nbits)
}
