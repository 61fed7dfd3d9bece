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

// sequence is what an iterator needs from its vector.
type sequence[T any] interface {
	slot(i int) *T
	// check panics in debug mode when an iterator created at gen can no
	// longer be dereferenced at pos.
	check(pos int, gen uint64)
	debugging() bool
}

func (vec *Vector[T]) slot(i int) *T { return &vec.block[i] }
func (vec *Vector[T]) debugging() bool { return vec.debug }
func (vec *Vector[T]) check(pos int, gen uint64) {
	if !vec.debug {
		return
	}
	vec.validate(pos, gen)
	if pos < 0 || pos >= vec.length {
		panic(moerr.NewOutOfRangeNoCtx("iterator", "position %d, length %d", pos, vec.length))
	}
}

func (vec *Vector[T]) validate(pos int, gen uint64) {
	from, ev := vec.inv.since(gen)
	if from > pos {
		return
	}
	where := "stack not recorded"
	if ev.callers != nil {
		where = ev.callers.String()
	}
	panic(moerr.NewInvalidStateNoCtx("stale iterator at %d, positions from %d invalidated at:\n%s", pos, from, where))
}

func (vec *Vector[T]) constIterator(pos int) ConstIterator[T] {
	return ConstIterator[T]{seq: vec, pos: pos, gen: vec.inv.gen}
}

func (vec *Vector[T]) iterator(pos int) Iterator[T] {
	return Iterator[T]{vec.constIterator(pos)}
}

func (vec *Vector[T]) Begin() Iterator[T] { return vec.iterator(0) }
func (vec *Vector[T]) End() Iterator[T] { return vec.iterator(vec.length) }
func (vec *Vector[T]) CBegin() ConstIterator[T] { return vec.constIterator(0) }
func (vec *Vector[T]) CEnd() ConstIterator[T] { return vec.constIterator(vec.length) }
func (vec *Vector[T]) RBegin() ReverseIterator[T] { return ReverseIterator[T]{vec.End()} }
func (vec *Vector[T]) REnd() ReverseIterator[T] { return ReverseIterator[T]{vec.Begin()} }
func (vec *Vector[T]) CRBegin() ConstReverseIterator[T] { return ConstReverseIterator[T]{vec.CEnd()} }
func (vec *Vector[T]) CREnd() ConstReverseIterator[T] { return ConstReverseIterator[T]{vec.CBegin()} }

// Position is an insertion or erasure point, any iterator of the vector.
type Position[T any] interface {
	Const() ConstIterator[T]
}

// ConstIterator is a read only random access position in a Vector.
//
// Iterators are plain values. They are invalidated by reallocation and
// by any insert, erase, shrink or clear at or before their position;
// using a stale iterator is undefined, and panics with ErrInvalidState
// in debug mode. No operation checks bounds except in debug mode.
type ConstIterator[T any] struct {
	seq sequence[T]
	pos int
	gen uint64
}

func (it ConstIterator[T]) Const() ConstIterator[T] { return it }

// Pos is the index the iterator points at.
func (it ConstIterator[T]) Pos() int { return it.pos }

// Get dereferences the iterator.
func (it ConstIterator[T]) Get() T {
	it.seq.check(it.pos, it.gen)
	return *it.seq.slot(it.pos)
}

// Index returns the element off positions away, it[off].
func (it ConstIterator[T]) Index(off int) T {
	it.seq.check(it.pos+off, it.gen)
	return *it.seq.slot(it.pos + off)
}

// Inc moves to the next position and returns the result, ++it.
func (it *ConstIterator[T]) Inc() ConstIterator[T] {
	it.pos++
	return *it
}

// PostInc moves to the next position and returns the previous one, it++.
func (it *ConstIterator[T]) PostInc() ConstIterator[T] {
	old := *it
	it.pos++
	return old
}

func (it *ConstIterator[T]) Dec() ConstIterator[T] {
	it.pos--
	return *it
}

func (it *ConstIterator[T]) PostDec() ConstIterator[T] {
	old := *it
	it.pos--
	return old
}

// Advance is it += off.
func (it *ConstIterator[T]) Advance(off int) ConstIterator[T] {
	it.pos += off
	return *it
}

// Retreat is it -= off.
func (it *ConstIterator[T]) Retreat(off int) ConstIterator[T] {
	it.pos -= off
	return *it
}

// Add is it + off.
func (it ConstIterator[T]) Add(off int) ConstIterator[T] {
	it.pos += off
	return it
}

// Sub is it - off.
func (it ConstIterator[T]) Sub(off int) ConstIterator[T] {
	it.pos -= off
	return it
}

// Distance is the number of increments from it to last, last - it.
func (it ConstIterator[T]) Distance(last ConstIterator[T]) int {
	it.sameSequence(last)
	return last.pos - it.pos
}

func (it ConstIterator[T]) Equal(o ConstIterator[T]) bool {
	it.sameSequence(o)
	return it.pos == o.pos
}

func (it ConstIterator[T]) NotEqual(o ConstIterator[T]) bool { return !it.Equal(o) }
func (it ConstIterator[T]) Less(o ConstIterator[T]) bool { it.sameSequence(o); return it.pos < o.pos }
func (it ConstIterator[T]) Greater(o ConstIterator[T]) bool { return o.Less(it) }
func (it ConstIterator[T]) LessEqual(o ConstIterator[T]) bool { return !o.Less(it) }
func (it ConstIterator[T]) GreaterEqual(o ConstIterator[T]) bool { return !it.Less(o) }

func (it ConstIterator[T]) sameSequence(o ConstIterator[T]) {
	if it.seq != nil && it.seq.debugging() && it.seq != o.seq {
		panic(moerr.NewInvalidStateNoCtx("comparing iterators of different vectors"))
	}
}

// Iterator is a ConstIterator that also gives write access.
type Iterator[T any] struct {
	ConstIterator[T]
}

// Const narrows the iterator to read only access.
func (it Iterator[T]) Const() ConstIterator[T] { return it.ConstIterator }

// Ptr returns a reference to the element, valid as long as the iterator.
func (it Iterator[T]) Ptr() *T {
	it.seq.check(it.pos, it.gen)
	return it.seq.slot(it.pos)
}

// Set assigns the element, *it = v.
func (it Iterator[T]) Set(v T) {
	*it.Ptr() = v
}

// IndexPtr returns a reference to it[off].
func (it Iterator[T]) IndexPtr(off int) *T {
	it.seq.check(it.pos+off, it.gen)
	return it.seq.slot(it.pos + off)
}

func (it *Iterator[T]) Inc() Iterator[T] {
	it.pos++
	return *it
}

func (it *Iterator[T]) PostInc() Iterator[T] {
	old := *it
	it.pos++
	return old
}

func (it *Iterator[T]) Dec() Iterator[T] {
	it.pos--
	return *it
}

func (it *Iterator[T]) PostDec() Iterator[T] {
	old := *it
	it.pos--
	return old
}

func (it *Iterator[T]) Advance(off int) Iterator[T] {
	it.pos += off
	return *it
}

func (it *Iterator[T]) Retreat(off int) Iterator[T] {
	it.pos -= off
	return *it
}

func (it Iterator[T]) Add(off int) Iterator[T] {
	it.pos += off
	return it
}

func (it Iterator[T]) Sub(off int) Iterator[T] {
	it.pos -= off
	return it
}

func (it Iterator[T]) Distance(last Iterator[T]) int { return it.ConstIterator.Distance(last.ConstIterator) }
func (it Iterator[T]) Equal(o Iterator[T]) bool { return it.ConstIterator.Equal(o.ConstIterator) }
func (it Iterator[T]) NotEqual(o Iterator[T]) bool { return !it.Equal(o) }
func (it Iterator[T]) Less(o Iterator[T]) bool { return it.ConstIterator.Less(o.ConstIterator) }
func (it Iterator[T]) Greater(o Iterator[T]) bool { return o.Less(it) }
func (it Iterator[T]) LessEqual(o Iterator[T]) bool { return !o.Less(it) }
func (it Iterator[T]) GreaterEqual(o Iterator[T]) bool { return !it.Less(o) }

// ReverseIterator walks a vector backwards. It wraps the forward
// iterator one past the element it refers to.
type ReverseIterator[T any] struct {
	base Iterator[T]
}

// Base returns the underlying forward iterator.
func (it ReverseIterator[T]) Base() Iterator[T] { return it.base }

func (it ReverseIterator[T]) Get() T { return it.base.Index(-1) }
func (it ReverseIterator[T]) Ptr() *T { return it.base.IndexPtr(-1) }
func (it ReverseIterator[T]) Set(v T) { *it.Ptr() = v }
func (it ReverseIterator[T]) Index(off int) T { return it.base.Index(-1 - off) }
func (it ReverseIterator[T]) IndexPtr(off int) *T {
	return it.base.IndexPtr(-1 - off)
}

func (it *ReverseIterator[T]) Inc() ReverseIterator[T] {
	it.base.pos--
	return *it
}

func (it *ReverseIterator[T]) PostInc() ReverseIterator[T] {
	old := *it
	it.base.pos--
	return old
}

func (it *ReverseIterator[T]) Dec() ReverseIterator[T] {
	it.base.pos++
	return *it
}

func (it *ReverseIterator[T]) PostDec() ReverseIterator[T] {
	old := *it
	it.base.pos++
	return old
}

func (it *ReverseIterator[T]) Advance(off int) ReverseIterator[T] {
	it.base.pos -= off
	return *it
}

func (it *ReverseIterator[T]) Retreat(off int) ReverseIterator[T] {
	it.base.pos += off
	return *it
}

func (it ReverseIterator[T]) Add(off int) ReverseIterator[T] {
	return ReverseIterator[T]{it.base.Sub(off)}
}

func (it ReverseIterator[T]) Sub(off int) ReverseIterator[T] {
	return ReverseIterator[T]{it.base.Add(off)}
}

func (it ReverseIterator[T]) Distance(last ReverseIterator[T]) int {
	return last.base.Distance(it.base)
}

func (it ReverseIterator[T]) Equal(o ReverseIterator[T]) bool { return it.base.Equal(o.base) }
func (it ReverseIterator[T]) NotEqual(o ReverseIterator[T]) bool { return !it.Equal(o) }
func (it ReverseIterator[T]) Less(o ReverseIterator[T]) bool { return o.base.Less(it.base) }
func (it ReverseIterator[T]) Greater(o ReverseIterator[T]) bool { return o.Less(it) }
func (it ReverseIterator[T]) LessEqual(o ReverseIterator[T]) bool { return !o.Less(it) }
func (it ReverseIterator[T]) GreaterEqual(o ReverseIterator[T]) bool { return !it.Less(o) }

// Const narrows the iterator to read only access.
func (it ReverseIterator[T]) Const() ConstReverseIterator[T] {
	return ConstReverseIterator[T]{it.base.Const()}
}

// ConstReverseIterator is the read only ReverseIterator.
type ConstReverseIterator[T any] struct {
	base ConstIterator[T]
}

func (it ConstReverseIterator[T]) Base() ConstIterator[T] { return it.base }
func (it ConstReverseIterator[T]) Get() T { return it.base.Index(-1) }
func (it ConstReverseIterator[T]) Index(off int) T { return it.base.Index(-1 - off) }

func (it *ConstReverseIterator[T]) Inc() ConstReverseIterator[T] {
	it.base.pos--
	return *it
}

func (it *ConstReverseIterator[T]) PostInc() ConstReverseIterator[T] {
	old := *it
	it.base.pos--
	return old
}

func (it *ConstReverseIterator[T]) Dec() ConstReverseIterator[T] {
	it.base.pos++
	return *it
}

func (it *ConstReverseIterator[T]) PostDec() ConstReverseIterator[T] {
	old := *it
	it.base.pos++
	return old
}

func (it *ConstReverseIterator[T]) Advance(off int) ConstReverseIterator[T] {
	it.base.pos -= off
	return *it
}

func (it *ConstReverseIterator[T]) Retreat(off int) ConstReverseIterator[T] {
	it.base.pos += off
	return *it
}

func (it ConstReverseIterator[T]) Add(off int) ConstReverseIterator[T] {
	return ConstReverseIterator[T]{it.base.Sub(off)}
}

func (it ConstReverseIterator[T]) Sub(off int) ConstReverseIterator[T] {
	return ConstReverseIterator[T]{it.base.Add(off)}
}

func (it ConstReverseIterator[T]) Distance(last ConstReverseIterator[T]) int {
	return last.base.Distance(it.base)
}

func (it ConstReverseIterator[T]) Equal(o ConstReverseIterator[T]) bool { return it.base.Equal(o.base) }
func (it ConstReverseIterator[T]) NotEqual(o ConstReverseIterator[T]) bool { return !it.Equal(o) }
func (it ConstReverseIterator[T]) Less(o ConstReverseIterator[T]) bool { return o.base.Less(it.base) }
func (it ConstReverseIterator[T]) Greater(o ConstReverseIterator[T]) bool { return o.Less(it) }
func (it ConstReverseIterator[T]) LessEqual(o ConstReverseIterator[T]) bool {
	return !o.Less(it)
}
func (it ConstReverseIterator[T]) GreaterEqual(o ConstReverseIterator[T]) bool {
	return !it.Less(o)
}
