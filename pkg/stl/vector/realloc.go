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
	"go.uber.org/zap"

	"github.com/matrixorigin/mostl/pkg/common/moerr"
)

// Every reallocation builds a complete new block and only then touches
// the vector: on any failure the new block is torn down and the vector
// is left as it was.

func (vec *Vector[T]) construct(slot *T, ctor Ctor[T]) error {
	if err := vec.allocator().Construct(slot, ctor); err != nil {
		return moerr.NewElemConstructNoCtx(err)
	}
	return nil
}

// constructRange builds block[from:to], slot i from mk(i). On failure
// the slots built so far are destroyed.
func (vec *Vector[T]) constructRange(block []T, from, to int, mk func(int) Ctor[T]) error {
	for i := from; i < to; i++ {
		if err := vec.construct(&block[i], mk(i)); err != nil {
			vec.destroyRange(block, from, i)
			return err
		}
	}
	return nil
}

// relocateRange builds dst[at:] from src[from:to]. The source slots stay
// live. On failure the slots built so far are destroyed.
func (vec *Vector[T]) relocateRange(dst []T, at int, src []T, from, to int) error {
	for i := from; i < to; i++ {
		if err := vec.construct(&dst[at+i-from], ValueCtor(src[i])); err != nil {
			vec.destroyRange(dst, at, at+i-from)
			return err
		}
	}
	return nil
}

func (vec *Vector[T]) destroyRange(block []T, from, to int) {
	alloc := vec.allocator()
	for i := from; i < to; i++ {
		alloc.Destroy(&block[i])
	}
}

// swapBlock retires the current block and installs block holding length
// live elements. It cannot fail.
func (vec *Vector[T]) swapBlock(block []T, length int) {
	oldCap := len(vec.block)
	vec.destroyRange(vec.block, 0, vec.length)
	if oldCap > 0 {
		vec.allocator().Deallocate(vec.block, oldCap)
	}
	vec.block = block
	vec.length = length
	vec.invalidate(0)

	if ce := vec.log().Check(zap.DebugLevel, "vector reallocated"); ce != nil {
		ce.Write(
			zap.Int("old capacity", oldCap),
			zap.Int("new capacity", len(block)),
			zap.Int("length", length),
		)
	}
}

// emplaceReallocate inserts the element built by ctor at pos into a
// grown copy of the vector.
func (vec *Vector[T]) emplaceReallocate(pos int, ctor Ctor[T]) error {
	alloc := vec.allocator()
	newCap, err := Grow(len(vec.block), vec.length+1, alloc.MaxSize())
	if err != nil {
		return err
	}
	block, err := alloc.Allocate(newCap)
	if err != nil {
		return err
	}

	// the new element goes to its final slot first
	if err = vec.construct(&block[pos], ctor); err != nil {
		alloc.Deallocate(block, newCap)
		return err
	}
	if err = vec.relocateRange(block, 0, vec.block, 0, pos); err != nil {
		alloc.Destroy(&block[pos])
		alloc.Deallocate(block, newCap)
		return err
	}
	if err = vec.relocateRange(block, pos+1, vec.block, pos, vec.length); err != nil {
		vec.destroyRange(block, 0, pos+1)
		alloc.Deallocate(block, newCap)
		return err
	}

	vec.swapBlock(block, vec.length+1)
	return nil
}

// reallocateExactly moves the elements into a block of exactly n slots.
func (vec *Vector[T]) reallocateExactly(n int) error {
	alloc := vec.allocator()
	if maxSize := alloc.MaxSize(); n > maxSize {
		return moerr.NewLengthExceededNoCtx(n, maxSize)
	}
	block, err := alloc.Allocate(n)
	if err != nil {
		return err
	}
	if err = vec.relocateRange(block, 0, vec.block, 0, vec.length); err != nil {
		alloc.Deallocate(block, n)
		return err
	}
	vec.swapBlock(block, vec.length)
	return nil
}

// resizeReallocate grows the vector to n elements in a new block, the
// new slots built by fill.
func (vec *Vector[T]) resizeReallocate(n int, fill Ctor[T]) error {
	alloc := vec.allocator()
	newCap, err := Grow(len(vec.block), n, alloc.MaxSize())
	if err != nil {
		return err
	}
	block, err := alloc.Allocate(newCap)
	if err != nil {
		return err
	}

	old := vec.length
	if err = vec.constructRange(block, old, n, func(int) Ctor[T] { return fill }); err != nil {
		alloc.Deallocate(block, newCap)
		return err
	}
	if err = vec.relocateRange(block, 0, vec.block, 0, old); err != nil {
		vec.destroyRange(block, old, n)
		alloc.Deallocate(block, newCap)
		return err
	}

	vec.swapBlock(block, n)
	return nil
}
