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
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/matrixorigin/mostl/pkg/common/moerr"
	"github.com/matrixorigin/mostl/pkg/logutil"
	"github.com/matrixorigin/mostl/pkg/util/fault"
)

const FaultClassAllocate = "malloc.class.allocate"

const (
	minClassSize    = 16
	maxClassSize    = 1 << 16
	classSizeFactor = 1.5
)

// ClassAllocator rounds requests up to a size class and keeps released
// blocks in per class pools. Requests above the largest class go to the
// heap directly.
type ClassAllocator[T any] struct {
	objectLifecycle[T]
	classSizes []int
	pools      []classAllocatorPool[T]
	maxSize    int
}

type classAllocatorPool[T any] struct {
	numAlloc atomic.Int64
	numFree  atomic.Int64
	numMiss  atomic.Int64
	ch       chan []T
}

type ClassAllocatorStats struct {
	// Hits counts requests served from a pool.
	Hits int64
	// Misses counts class requests that went to the heap.
	Misses int64
	// Parked counts blocks returned into a pool.
	Parked int64
}

var _ Allocator[int] = new(ClassAllocator[int])

// NewClassAllocator creates an allocator that buffers at most about
// maxBufferSize bytes of released blocks.
func NewClassAllocator[T any](maxBufferSize uint64) *ClassAllocator[T] {
	classSizes := func() (ret []int) {
		for size := minClassSize; size <= maxClassSize; size = int(float64(size) * classSizeFactor) {
			ret = append(ret, size)
		}
		return
	}()

	classSumSize := func() (ret uint64) {
		for _, size := range classSizes {
			ret += uint64(SizeOfMany[T](size))
		}
		return
	}()

	bufferedObjectsPerClass := func() int {
		var n uint64
		if classSumSize > 0 {
			n = maxBufferSize / classSumSize
		}
		logutil.Debug("malloc class allocator",
			zap.Uint64("max buffer size", maxBufferSize),
			zap.Int("classes", len(classSizes)),
			zap.Int("min class size", minClassSize),
			zap.Int("max class size", classSizes[len(classSizes)-1]),
			zap.Uint64("buffer objects per class", n),
		)
		return int(n)
	}()

	pools := make([]classAllocatorPool[T], len(classSizes))
	for i := range pools {
		pools[i].ch = make(chan []T, bufferedObjectsPerClass)
	}

	return &ClassAllocator[T]{
		classSizes: classSizes,
		pools:      pools,
		maxSize:    maxElements[T](maxAllocBytes),
	}
}

func (c *ClassAllocator[T]) requestSizeToClass(size int) int {
	for class, classSize := range c.classSizes {
		if classSize >= size {
			return class
		}
	}
	return -1
}

func (c *ClassAllocator[T]) classAllocate(class int) []T {
	pool := &c.pools[class]
	select {
	case block := <-pool.ch:
		pool.numAlloc.Add(1)
		return block
	default:
		pool.numMiss.Add(1)
		return make([]T, c.classSizes[class])
	}
}

func (c *ClassAllocator[T]) Allocate(n int) ([]T, error) {
	if err := checkRequest(n, c.maxSize); err != nil {
		return nil, err
	}
	if _, _, ok := fault.TriggerFault(FaultClassAllocate); ok {
		return nil, moerr.NewOOMNoCtx()
	}
	if n == 0 {
		return nil, nil
	}
	class := c.requestSizeToClass(n)
	if class == -1 {
		return make([]T, n), nil
	}
	return c.classAllocate(class)[:n], nil
}

func (c *ClassAllocator[T]) Deallocate(block []T, n int) {
	if n == 0 {
		return
	}
	size := cap(block)
	class := c.requestSizeToClass(size)
	if class < 0 || c.classSizes[class] != size {
		return
	}
	block = block[:size]
	// pooled blocks must not pin released values
	clear(block)
	pool := &c.pools[class]
	select {
	case pool.ch <- block:
		pool.numFree.Add(1)
	default:
	}
}

func (c *ClassAllocator[T]) MaxSize() int {
	return c.maxSize
}

// ClassSize returns the class capacity serving a request of n elements,
// or -1 when n is above the largest class.
func (c *ClassAllocator[T]) ClassSize(n int) int {
	if class := c.requestSizeToClass(n); class >= 0 {
		return c.classSizes[class]
	}
	return -1
}

func (c *ClassAllocator[T]) Stats() (ret ClassAllocatorStats) {
	for i := range c.pools {
		ret.Hits += c.pools[i].numAlloc.Load()
		ret.Misses += c.pools[i].numMiss.Load()
		ret.Parked += c.pools[i].numFree.Load()
	}
	return
}
