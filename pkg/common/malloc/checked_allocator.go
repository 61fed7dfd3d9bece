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
	"unsafe"

	"github.com/RoaringBitmap/roaring"

	"github.com/matrixorigin/mostl/pkg/common/moerr"
)

// CheckedAllocator tracks the lifetime of every slot it hands out and
// panics with ErrInvalidState on misuse:
//
//   - constructing a live slot or destroying a dead one
//   - touching a slot outside any allocated block
//   - deallocating a block that is unknown or still holds live elements
//
// Element types of zero size are only counted.
type CheckedAllocator[T any] struct {
	upstream Allocator[T]

	mu          sync.Mutex
	blocks      map[uintptr]*checkedBlock
	constructed uint64
	destroyed   uint64
}

type checkedBlock struct {
	n    int
	live *roaring.Bitmap
}

var _ Allocator[int] = new(CheckedAllocator[int])

func NewCheckedAllocator[T any](upstream Allocator[T]) *CheckedAllocator[T] {
	return &CheckedAllocator[T]{
		upstream: upstream,
		blocks:   make(map[uintptr]*checkedBlock),
	}
}

func (c *CheckedAllocator[T]) Allocate(n int) ([]T, error) {
	block, err := c.upstream.Allocate(n)
	if err != nil || n == 0 || Sizeof[T]() == 0 {
		return block, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks[addrOf(&block[0])] = &checkedBlock{
		n:    n,
		live: roaring.New(),
	}
	return block, nil
}

func (c *CheckedAllocator[T]) Deallocate(block []T, n int) {
	if n > 0 && Sizeof[T]() > 0 {
		c.mu.Lock()
		base := addrOf(&block[0])
		b, ok := c.blocks[base]
		if !ok || b.n != n {
			c.mu.Unlock()
			panic(moerr.NewInvalidStateNoCtx("deallocate unknown block of %d elements", n))
		}
		if live := b.live.GetCardinality(); live > 0 {
			c.mu.Unlock()
			panic(moerr.NewInvalidStateNoCtx("deallocate block with %d live elements", live))
		}
		delete(c.blocks, base)
		c.mu.Unlock()
	}
	c.upstream.Deallocate(block, n)
}

// Construct runs ctor without holding the lock, so ctor may use the
// allocator itself.
func (c *CheckedAllocator[T]) Construct(slot *T, ctor func() (T, error)) error {
	b, idx := c.lookupDead(slot)
	if err := c.upstream.Construct(slot, ctor); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if b != nil {
		if b.live.Contains(idx) {
			panic(moerr.NewInvalidStateNoCtx("construct a live slot %d", idx))
		}
		b.live.Add(idx)
	}
	c.constructed++
	return nil
}

func (c *CheckedAllocator[T]) lookupDead(slot *T) (*checkedBlock, uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, idx := c.locate(slot)
	if b != nil && b.live.Contains(idx) {
		panic(moerr.NewInvalidStateNoCtx("construct a live slot %d", idx))
	}
	return b, idx
}

func (c *CheckedAllocator[T]) Destroy(slot *T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, idx := c.locate(slot)
	if b != nil {
		if !b.live.Contains(idx) {
			panic(moerr.NewInvalidStateNoCtx("destroy a dead slot %d", idx))
		}
		b.live.Remove(idx)
	}
	c.upstream.Destroy(slot)
	c.destroyed++
}

func (c *CheckedAllocator[T]) MaxSize() int {
	return c.upstream.MaxSize()
}

// locate returns the block holding slot and the slot index in it.
func (c *CheckedAllocator[T]) locate(slot *T) (*checkedBlock, uint32) {
	size := uintptr(Sizeof[T]())
	if size == 0 {
		return nil, 0
	}
	p := addrOf(slot)
	for base, b := range c.blocks {
		if p >= base && p < base+uintptr(b.n)*size {
			return b, uint32((p - base) / size)
		}
	}
	panic(moerr.NewInvalidStateNoCtx("slot outside allocated blocks"))
}

// Live is the number of constructed and not destroyed elements.
func (c *CheckedAllocator[T]) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if Sizeof[T]() == 0 {
		return int(c.constructed - c.destroyed)
	}
	var n uint64
	for _, b := range c.blocks {
		n += b.live.GetCardinality()
	}
	return int(n)
}

// Blocks is the number of allocated and not released blocks.
func (c *CheckedAllocator[T]) Blocks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.blocks)
}

func (c *CheckedAllocator[T]) Constructed() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.constructed
}

func (c *CheckedAllocator[T]) Destroyed() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

func addrOf[T any](p *T) uintptr {
	return uintptr(unsafe.Pointer(p))
}
