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

//go:build linux || darwin

package malloc

import (
	"sync"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/matrixorigin/mostl/pkg/common/moerr"
	"github.com/matrixorigin/mostl/pkg/logutil"
)

// Scalar is the set of element types that may live outside the Go heap.
// They hold no pointers, so the collector never needs to scan them.
type Scalar interface {
	~bool |
		~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr |
		~float32 | ~float64
}

// MmapAllocator maps every block as anonymous memory and unmaps it on
// Deallocate.
type MmapAllocator[T Scalar] struct {
	objectLifecycle[T]

	mu      sync.Mutex
	mapped  map[*T][]byte
	maxSize int
}

var _ Allocator[int64] = new(MmapAllocator[int64])

func NewMmapAllocator[T Scalar]() *MmapAllocator[T] {
	return &MmapAllocator[T]{
		mapped:  make(map[*T][]byte),
		maxSize: maxElements[T](maxAllocBytes),
	}
}

func (m *MmapAllocator[T]) Allocate(n int) ([]T, error) {
	if err := checkRequest(n, m.maxSize); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	// fresh anonymous pages are zero filled
	data, err := unix.Mmap(
		-1, 0,
		SizeOfMany[T](n),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON,
	)
	if err != nil {
		logutil.Warn("mmap failed", zap.Int("elements", n), zap.Error(err))
		return nil, moerr.NewOOMNoCtx()
	}

	block := unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(data))), n)
	m.mu.Lock()
	m.mapped[&block[0]] = data
	m.mu.Unlock()
	return block, nil
}

func (m *MmapAllocator[T]) Deallocate(block []T, n int) {
	if n == 0 {
		return
	}
	m.mu.Lock()
	data, ok := m.mapped[&block[0]]
	delete(m.mapped, &block[0])
	m.mu.Unlock()
	if !ok {
		panic(moerr.NewInvalidStateNoCtx("deallocate a block not mapped by this allocator"))
	}
	if err := unix.Munmap(data); err != nil {
		panic(err)
	}
}

func (m *MmapAllocator[T]) MaxSize() int {
	return m.maxSize
}

// Mapped is the number of live mappings.
func (m *MmapAllocator[T]) Mapped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.mapped)
}
