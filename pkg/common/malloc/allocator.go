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
	"math"
	"unsafe"

	"github.com/matrixorigin/mostl/pkg/common/moerr"
)

// Allocator is the storage backend of a container.
//
// A block returned by Allocate has exactly n slots, all holding the zero
// value; they are unconstructed until Construct is called on them. The
// container never writes a slot without going through Construct or
// Destroy, except for plain assignment between slots that are already live.
type Allocator[T any] interface {
	// Allocate returns a block of exactly n slots. It fails with
	// ErrLengthExceeded when n > MaxSize() and with ErrOOM when the
	// backend cannot satisfy the request.
	Allocate(n int) ([]T, error)
	// Deallocate releases a block previously returned by Allocate(n).
	// Every slot of the block must have been destroyed.
	Deallocate(block []T, n int)
	// Construct builds a value in place. On error the slot is untouched.
	Construct(slot *T, ctor func() (T, error)) error
	// Destroy ends the lifetime of the value in slot. The memory stays
	// allocated.
	Destroy(slot *T)
	// MaxSize is the largest element count a single block can hold.
	MaxSize() int
}

const (
	KB = 1 << 10
	MB = 1 << 20
	GB = 1 << 30

	// maxAllocBytes bounds a single block, it is far below what the
	// runtime accepts for make on 64 bit platforms.
	maxAllocBytes = 1 << 40
)

func Sizeof[T any]() int {
	var v T
	return int(unsafe.Sizeof(v))
}

func SizeOfMany[T any](cnt int) int {
	var v T
	return int(unsafe.Sizeof(v)) * cnt
}

// maxElements is the number of T addressable within limit bytes.
func maxElements[T any](limit int) int {
	size := Sizeof[T]()
	if size == 0 {
		return math.MaxInt
	}
	return limit / size
}

func checkRequest(n, maxSize int) error {
	if n < 0 {
		return moerr.NewInvalidArgNoCtx("allocate size", n)
	}
	if n > maxSize {
		return moerr.NewLengthExceededNoCtx(n, maxSize)
	}
	return nil
}

// objectLifecycle implements Construct and Destroy for backends whose
// slots are ordinary Go memory.
type objectLifecycle[T any] struct{}

func (objectLifecycle[T]) Construct(slot *T, ctor func() (T, error)) error {
	v, err := ctor()
	if err != nil {
		return err
	}
	*slot = v
	return nil
}

func (objectLifecycle[T]) Destroy(slot *T) {
	// reset so anything the value referenced becomes collectable
	var zero T
	*slot = zero
}
