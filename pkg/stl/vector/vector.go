// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vector

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/matrixorigin/mostl/pkg/common/malloc"
	"github.com/matrixorigin/mostl/pkg/common/moerr"
	"github.com/matrixorigin/mostl/pkg/logutil"
)

// Vector is a growable contiguous sequence whose storage and element
// lifetimes go through an allocator.
//
// Slots [0, Len()) hold live elements, slots [Len(), Cap()) are
// allocated but unconstructed. The vector owns both; Close destroys the
// elements and releases the block. A Vector is not safe for concurrent
// use.
//
// Every operation that can fail leaves the vector exactly as it was
// before the call when it returns an error.
type Vector[T any] struct {
	alloc  malloc.Allocator[T]
	block  []T
	length int

	debug  bool
	logger *zap.Logger
	inv    invalidations
}

func newVector[T any](opt *Options[T]) *Vector[T] {
	return &Vector[T]{
		alloc:  opt.allocator(),
		debug:  opt.Debug || debugByDefault,
		logger: opt.Logger,
	}
}

// New returns an empty vector. A Capacity option is reserved up front
// and New panics when that reservation fails. With a bounded allocator
// use NewSized(0, opts), which returns the failure instead.
func New[T any](opts ...*Options[T]) *Vector[T] {
	opt := getOptions(opts)
	vec := newVector(opt)
	if opt.Capacity > 0 {
		if err := vec.Reserve(opt.Capacity); err != nil {
			panic(err)
		}
	}
	return vec
}

// NewSized returns a vector of n default constructed elements.
func NewSized[T any](n int, opts ...*Options[T]) (*Vector[T], error) {
	ctor := DefaultCtor[T]()
	return newFilled(n, func(int) Ctor[T] { return ctor }, opts)
}

// NewFilled returns a vector of n copies of value.
func NewFilled[T any](n int, value T, opts ...*Options[T]) (*Vector[T], error) {
	return newFilled(n, func(int) Ctor[T] { return CopyCtor(value) }, opts)
}

// NewFrom returns a vector holding copies of values, in order.
func NewFrom[T any](values []T, opts ...*Options[T]) (*Vector[T], error) {
	return newFilled(len(values), func(i int) Ctor[T] { return CopyCtor(values[i]) }, opts)
}

func newFilled[T any](n int, mk func(int) Ctor[T], opts []*Options[T]) (*Vector[T], error) {
	if n < 0 {
		return nil, moerr.NewInvalidArgNoCtx("vector size", n)
	}
	opt := getOptions(opts)
	vec := newVector(opt)
	capacity := max(n, opt.Capacity)
	if capacity == 0 {
		return vec, nil
	}
	block, err := vec.alloc.Allocate(capacity)
	if err != nil {
		return nil, err
	}
	if err = vec.constructRange(block, 0, n, mk); err != nil {
		vec.alloc.Deallocate(block, capacity)
		return nil, err
	}
	vec.block = block
	vec.length = n
	return vec, nil
}

func (vec *Vector[T]) allocator() malloc.Allocator[T] {
	if vec.alloc == nil {
		vec.alloc = malloc.NewHeapAllocator[T](0)
	}
	return vec.alloc
}

func (vec *Vector[T]) log() *zap.Logger {
	if vec.logger != nil {
		return vec.logger
	}
	return logutil.GetGlobalLogger()
}

// GetAllocator returns the allocator backing the vector.
func (vec *Vector[T]) GetAllocator() malloc.Allocator[T] {
	return vec.allocator()
}

func (vec *Vector[T]) Len() int { return vec.length }
func (vec *Vector[T]) Cap() int { return len(vec.block) }
func (vec *Vector[T]) Empty() bool { return vec.length == 0 }
func (vec *Vector[T]) MaxSize() int { return vec.allocator().MaxSize() }
func (vec *Vector[T]) IsDebug() bool { return vec.debug }

// Get returns the element at i. The index is not checked against Len()
// unless the vector is in debug mode, where an out of range index
// panics with ErrOutOfRange.
func (vec *Vector[T]) Get(i int) T {
	if vec.debug {
		vec.assertIndex(i)
	}
	return vec.block[i]
}

// Ptr returns a reference to the element at i, unchecked like Get. It
// is invalidated like an iterator at i.
func (vec *Vector[T]) Ptr(i int) *T {
	if vec.debug {
		vec.assertIndex(i)
	}
	return &vec.block[i]
}

// Set assigns the element at i, unchecked like Get.
func (vec *Vector[T]) Set(i int, v T) {
	if vec.debug {
		vec.assertIndex(i)
	}
	vec.block[i] = v
}

// At returns the element at i, or ErrOutOfRange when i is not in
// [0, Len()).
func (vec *Vector[T]) At(i int) (T, error) {
	if i < 0 || i >= vec.length {
		var zero T
		return zero, vec.outOfRange(i)
	}
	return vec.block[i], nil
}

// AtPtr is the checked form of Ptr.
func (vec *Vector[T]) AtPtr(i int) (*T, error) {
	if i < 0 || i >= vec.length {
		return nil, vec.outOfRange(i)
	}
	return &vec.block[i], nil
}

// Front returns the first element. Undefined on an empty vector; in
// debug mode it panics with ErrEmptyVector.
func (vec *Vector[T]) Front() T {
	if vec.debug {
		vec.assertNotEmpty()
	}
	return vec.block[0]
}

// Back returns the last element. Undefined on an empty vector; in debug
// mode it panics with ErrEmptyVector.
func (vec *Vector[T]) Back() T {
	if vec.debug {
		vec.assertNotEmpty()
	}
	return vec.block[vec.length-1]
}

// Range calls fn on every element in order until fn returns false.
func (vec *Vector[T]) Range(fn func(i int, v T) bool) {
	for i := 0; i < vec.length; i++ {
		if !fn(i, vec.block[i]) {
			return
		}
	}
}

// Values returns a copy of the live elements.
func (vec *Vector[T]) Values() []T {
	ret := make([]T, vec.length)
	copy(ret, vec.block[:vec.length])
	return ret
}

func (vec *Vector[T]) Allocated() int {
	return malloc.SizeOfMany[T](len(vec.block))
}

func (vec *Vector[T]) Desc() string {
	return fmt.Sprintf("Vector:Len=%d[Rows];Cap=%d[Rows];Allocted:%d[Bytes]",
		vec.Len(),
		vec.Cap(),
		vec.Allocated())
}

func (vec *Vector[T]) String() string {
	s := vec.Desc()
	end := min(100, vec.length)
	if end == 0 {
		return s
	}
	var b strings.Builder
	b.WriteString(s)
	for i := 0; i < end; i++ {
		fmt.Fprintf(&b, " %v", vec.block[i])
	}
	if end < vec.length {
		b.WriteString(" ...")
	}
	return b.String()
}

// Close destroys every element and releases the block. The vector is
// empty with zero capacity afterwards and may be reused.
func (vec *Vector[T]) Close() {
	vec.destroyRange(vec.block, 0, vec.length)
	if len(vec.block) > 0 {
		vec.allocator().Deallocate(vec.block, len(vec.block))
	}
	vec.block = nil
	vec.length = 0
	vec.invalidate(0)
}

// Take moves the elements and the block into a new vector, which shares
// the allocator and options. vec is left empty with zero capacity.
func (vec *Vector[T]) Take() *Vector[T] {
	ret := &Vector[T]{
		alloc:  vec.allocator(),
		block:  vec.block,
		length: vec.length,
		debug:  vec.debug,
		logger: vec.logger,
	}
	vec.block = nil
	vec.length = 0
	vec.invalidate(0)
	return ret
}

// Clone returns a deep copy on the same allocator with capacity Len().
func (vec *Vector[T]) Clone() (*Vector[T], error) {
	return newFilled(vec.length, func(i int) Ctor[T] { return CopyCtor(vec.block[i]) }, []*Options[T]{{
		Allocator: vec.allocator(),
		Debug:     vec.debug,
		Logger:    vec.logger,
	}})
}

func (vec *Vector[T]) outOfRange(i int) error {
	return moerr.NewOutOfRangeNoCtx("vector", "index %d, length %d", i, vec.length)
}

func (vec *Vector[T]) assertIndex(i int) {
	if i < 0 || i >= vec.length {
		panic(vec.outOfRange(i))
	}
}

func (vec *Vector[T]) assertNotEmpty() {
	if vec.length == 0 {
		panic(moerr.NewEmptyVectorNoCtx())
	}
}
