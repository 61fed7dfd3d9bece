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

package malloc

import (
	"sync"

	"github.com/google/btree"

	"github.com/matrixorigin/mostl/pkg/common/moerr"
	"github.com/matrixorigin/mostl/pkg/util/fault"
)

const FaultArenaAllocate = "malloc.arena.allocate"

// ArenaAllocator carves blocks out of one preallocated buffer. Space is
// bumped from the tail; released spans are merged with free neighbours,
// indexed by size and reused best fit. A request that fits neither
// fails with ErrOOM.
//
// Element types of zero size share one address, so their blocks are
// only counted against the capacity.
type ArenaAllocator[T any] struct {
	objectLifecycle[T]

	sync.Mutex
	buf  []T
	tail int
	// free spans ordered by (length, offset)
	free *btree.BTree
	// the same spans by start and by end offset
	freeByStart map[int]arenaSpan
	freeByEnd   map[int]arenaSpan
	// block start -> offset in buf
	offsets map[*T]int
	inuse   int
	peak    int
}

type arenaSpan struct {
	offset int
	length int
}

func (s arenaSpan) Less(than btree.Item) bool {
	o := than.(arenaSpan)
	if s.length != o.length {
		return s.length < o.length
	}
	return s.offset < o.offset
}

func (s arenaSpan) end() int {
	return s.offset + s.length
}

var _ Allocator[int] = new(ArenaAllocator[int])

// NewArenaAllocator creates an arena holding capacity elements.
func NewArenaAllocator[T any](capacity int) *ArenaAllocator[T] {
	return &ArenaAllocator[T]{
		buf:         make([]T, capacity),
		free:        btree.New(8),
		freeByStart: make(map[int]arenaSpan),
		freeByEnd:   make(map[int]arenaSpan),
		offsets:     make(map[*T]int),
	}
}

func (a *ArenaAllocator[T]) Allocate(n int) ([]T, error) {
	if err := checkRequest(n, len(a.buf)); err != nil {
		return nil, err
	}
	if _, _, ok := fault.TriggerFault(FaultArenaAllocate); ok {
		return nil, moerr.NewOOMNoCtx()
	}
	if n == 0 {
		return nil, nil
	}

	a.Lock()
	defer a.Unlock()

	if Sizeof[T]() == 0 {
		if a.inuse+n > len(a.buf) {
			return nil, moerr.NewOOMNoCtx()
		}
		a.charge(n)
		return a.buf[:n:n], nil
	}

	offset := -1
	var fit arenaSpan
	a.free.AscendGreaterOrEqual(arenaSpan{offset: -1, length: n}, func(i btree.Item) bool {
		fit = i.(arenaSpan)
		offset = fit.offset
		return false
	})
	if offset >= 0 {
		a.removeFree(fit)
		if fit.length > n {
			a.insertFree(arenaSpan{offset: fit.offset + n, length: fit.length - n})
		}
	} else {
		if a.tail+n > len(a.buf) {
			return nil, moerr.NewOOMNoCtx()
		}
		offset = a.tail
		a.tail += n
	}

	block := a.buf[offset : offset+n : offset+n]
	a.offsets[&block[0]] = offset
	a.charge(n)
	return block, nil
}

func (a *ArenaAllocator[T]) charge(n int) {
	a.inuse += n
	if a.inuse > a.peak {
		a.peak = a.inuse
	}
}

func (a *ArenaAllocator[T]) Deallocate(block []T, n int) {
	if n == 0 {
		return
	}

	a.Lock()
	defer a.Unlock()

	if Sizeof[T]() == 0 {
		if n > a.inuse {
			panic(moerr.NewInvalidStateNoCtx("deallocate %d elements, %d handed out", n, a.inuse))
		}
		a.inuse -= n
		return
	}

	offset, ok := a.offsets[&block[0]]
	if !ok {
		panic(moerr.NewInvalidStateNoCtx("deallocate a block not owned by the arena"))
	}
	delete(a.offsets, &block[0])
	clear(block[:n])
	a.inuse -= n

	// free spans never touch each other or the tail
	span := arenaSpan{offset: offset, length: n}
	if prev, ok := a.freeByEnd[span.offset]; ok {
		a.removeFree(prev)
		span = arenaSpan{offset: prev.offset, length: prev.length + span.length}
	}
	if next, ok := a.freeByStart[span.end()]; ok {
		a.removeFree(next)
		span.length += next.length
	}
	if span.end() == a.tail {
		a.tail = span.offset
		return
	}
	a.insertFree(span)
}

func (a *ArenaAllocator[T]) insertFree(span arenaSpan) {
	a.free.ReplaceOrInsert(span)
	a.freeByStart[span.offset] = span
	a.freeByEnd[span.end()] = span
}

func (a *ArenaAllocator[T]) removeFree(span arenaSpan) {
	a.free.Delete(span)
	delete(a.freeByStart, span.offset)
	delete(a.freeByEnd, span.end())
}

func (a *ArenaAllocator[T]) MaxSize() int {
	return len(a.buf)
}

// Reset forgets every block. Blocks handed out before are invalid after.
func (a *ArenaAllocator[T]) Reset() {
	a.Lock()
	defer a.Unlock()
	clear(a.buf[:a.tail])
	a.tail = 0
	a.inuse = 0
	a.free.Clear(false)
	a.freeByStart = make(map[int]arenaSpan)
	a.freeByEnd = make(map[int]arenaSpan)
	a.offsets = make(map[*T]int)
}

// Len is the number of elements handed out.
func (a *ArenaAllocator[T]) Len() int {
	a.Lock()
	defer a.Unlock()
	return a.inuse
}

func (a *ArenaAllocator[T]) Cap() int {
	return len(a.buf)
}

// Peak is the high water mark of Len.
func (a *ArenaAllocator[T]) Peak() int {
	a.Lock()
	defer a.Unlock()
	return a.peak
}

// Tail is the bump offset, spans below it are handed out or free.
func (a *ArenaAllocator[T]) Tail() int {
	a.Lock()
	defer a.Unlock()
	return a.tail
}
