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

	"github.com/matrixorigin/mostl/pkg/common/moerr"
	"github.com/matrixorigin/mostl/pkg/util/fault"
)

const FaultHeapAllocate = "malloc.heap.allocate"

// HeapAllocator takes blocks from the Go heap. A positive limit caps the
// bytes in use, requests beyond it fail with ErrOOM.
type HeapAllocator[T any] struct {
	objectLifecycle[T]
	limit   int64
	inuse   atomic.Int64
	maxSize int
}

var _ Allocator[int] = new(HeapAllocator[int])

func NewHeapAllocator[T any](limit int64) *HeapAllocator[T] {
	return &HeapAllocator[T]{
		limit:   limit,
		maxSize: maxElements[T](maxAllocBytes),
	}
}

func (h *HeapAllocator[T]) Allocate(n int) ([]T, error) {
	if err := checkRequest(n, h.maxSize); err != nil {
		return nil, err
	}
	if _, _, ok := fault.TriggerFault(FaultHeapAllocate); ok {
		return nil, moerr.NewOOMNoCtx()
	}
	if n == 0 {
		return nil, nil
	}
	size := int64(SizeOfMany[T](n))
	if inuse := h.inuse.Add(size); h.limit > 0 && inuse > h.limit {
		h.inuse.Add(-size)
		return nil, moerr.NewOOMNoCtx()
	}
	return make([]T, n), nil
}

func (h *HeapAllocator[T]) Deallocate(block []T, n int) {
	if n == 0 {
		return
	}
	h.inuse.Add(-int64(SizeOfMany[T](n)))
}

func (h *HeapAllocator[T]) MaxSize() int {
	return h.maxSize
}

// InUse is the number of bytes handed out and not yet deallocated.
func (h *HeapAllocator[T]) InUse() int64 {
	return h.inuse.Load()
}
