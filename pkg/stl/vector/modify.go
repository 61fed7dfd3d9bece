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
	"github.com/matrixorigin/mostl/pkg/common/moerr"
)

// PushBack appends a copy of v. On error, which may come from the
// allocator or from v's Clone, the vector is unchanged.
func (vec *Vector[T]) PushBack(v T) error {
	_, err := vec.EmplaceBack(CopyCtor(v))
	return err
}

// EmplaceBack appends the element built by ctor and returns a reference
// to it. On error the vector is unchanged.
func (vec *Vector[T]) EmplaceBack(ctor Ctor[T]) (*T, error) {
	if vec.length < len(vec.block) {
		if err := vec.construct(&vec.block[vec.length], ctor); err != nil {
			return nil, err
		}
		vec.length++
		vec.invalidate(vec.length - 1)
		return &vec.block[vec.length-1], nil
	}
	if err := vec.emplaceReallocate(vec.length, ctor); err != nil {
		return nil, err
	}
	return &vec.block[vec.length-1], nil
}

// Insert inserts a copy of v before pos and returns an iterator to it.
// On error the vector is unchanged.
func (vec *Vector[T]) Insert(pos Position[T], v T) (Iterator[T], error) {
	return vec.Emplace(pos, CopyCtor(v))
}

// Emplace inserts the element built by ctor before pos and returns an
// iterator to it.
//
// With spare capacity the value is built before any live slot is
// touched, the remaining steps cannot fail. Without, the vector is
// reallocated. Either way an error leaves the vector unchanged.
func (vec *Vector[T]) Emplace(pos Position[T], ctor Ctor[T]) (Iterator[T], error) {
	p := vec.position(pos)
	if p == vec.length {
		if _, err := vec.EmplaceBack(ctor); err != nil {
			return Iterator[T]{}, err
		}
		return vec.iterator(p), nil
	}
	if vec.length < len(vec.block) {
		if err := vec.insertShift(p, ctor); err != nil {
			return Iterator[T]{}, err
		}
		return vec.iterator(p), nil
	}
	if err := vec.emplaceReallocate(p, ctor); err != nil {
		return Iterator[T]{}, err
	}
	return vec.iterator(p), nil
}

// insertShift opens a hole at p inside the current block.
func (vec *Vector[T]) insertShift(p int, ctor Ctor[T]) error {
	v, err := ctor()
	if err != nil {
		return moerr.NewElemConstructNoCtx(err)
	}
	last := vec.length - 1
	if err = vec.construct(&vec.block[vec.length], ValueCtor(vec.block[last])); err != nil {
		return err
	}
	copy(vec.block[p+1:vec.length], vec.block[p:last])
	vec.block[p] = v
	vec.length++
	vec.invalidate(p)
	return nil
}

// Reserve makes room for n elements. It reallocates to exactly n slots
// when n > Cap() and does nothing otherwise. On error the vector is
// unchanged.
func (vec *Vector[T]) Reserve(n int) error {
	if n <= len(vec.block) {
		return nil
	}
	return vec.reallocateExactly(n)
}

// Resize sets the length to n. New elements are copies of one default
// constructed value, removed elements are destroyed. On error the
// vector is unchanged.
func (vec *Vector[T]) Resize(n int) error {
	if n <= vec.length {
		return vec.resize(n, nil)
	}
	v, err := DefaultCtor[T]()()
	if err != nil {
		return moerr.NewElemConstructNoCtx(err)
	}
	return vec.resize(n, CopyCtor(v))
}

// ResizeWith sets the length to n, new elements are copies of v.
func (vec *Vector[T]) ResizeWith(n int, v T) error {
	return vec.resize(n, CopyCtor(v))
}

func (vec *Vector[T]) resize(n int, fill Ctor[T]) error {
	if n < 0 {
		return moerr.NewInvalidArgNoCtx("vector size", n)
	}
	switch {
	case n < vec.length:
		vec.destroyRange(vec.block, n, vec.length)
		vec.length = n
		vec.invalidate(n)
	case n > len(vec.block):
		return vec.resizeReallocate(n, fill)
	case n > vec.length:
		if err := vec.constructRange(vec.block, vec.length, n, func(int) Ctor[T] { return fill }); err != nil {
			return err
		}
		old := vec.length
		vec.length = n
		vec.invalidate(old)
	}
	return nil
}

// PopBack destroys the last element. Undefined on an empty vector; in
// debug mode it panics with ErrEmptyVector.
func (vec *Vector[T]) PopBack() {
	if vec.debug {
		vec.assertNotEmpty()
	}
	vec.length--
	vec.allocator().Destroy(&vec.block[vec.length])
	vec.invalidate(vec.length)
}

// Erase removes the element at pos and returns an iterator to the
// element that followed it.
func (vec *Vector[T]) Erase(pos Position[T]) Iterator[T] {
	p := vec.position(pos)
	return vec.erase(p, p+1)
}

// EraseRange removes [first, last) and returns an iterator at first.
func (vec *Vector[T]) EraseRange(first, last Position[T]) Iterator[T] {
	return vec.erase(vec.position(first), vec.position(last))
}

func (vec *Vector[T]) erase(first, last int) Iterator[T] {
	if vec.debug && (first > last || last > vec.length) {
		panic(moerr.NewOutOfRangeNoCtx("vector", "erase [%d, %d), length %d", first, last, vec.length))
	}
	if first == last {
		return vec.iterator(first)
	}
	n := copy(vec.block[first:vec.length], vec.block[last:vec.length])
	vec.destroyRange(vec.block, first+n, vec.length)
	vec.length = first + n
	vec.invalidate(first)
	return vec.iterator(first)
}

// Clear destroys every element. The block is kept.
func (vec *Vector[T]) Clear() {
	vec.destroyRange(vec.block, 0, vec.length)
	vec.length = 0
	vec.invalidate(0)
}

// invalidate records that iterators at from or beyond are stale.
func (vec *Vector[T]) invalidate(from int) {
	if vec.debug {
		vec.inv.record(from, true)
	}
}

func (vec *Vector[T]) position(pos Position[T]) int {
	it := pos.Const()
	if vec.debug {
		if it.seq != sequence[T](vec) {
			panic(moerr.NewInvalidStateNoCtx("iterator of another vector"))
		}
		if it.pos < 0 || it.pos > vec.length {
			panic(moerr.NewOutOfRangeNoCtx("vector", "position %d, length %d", it.pos, vec.length))
		}
		vec.validate(it.pos, it.gen)
	}
	return it.pos
}
