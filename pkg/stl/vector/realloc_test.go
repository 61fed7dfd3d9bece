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
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/matrixorigin/mostl/pkg/common/malloc"
	"github.com/matrixorigin/mostl/pkg/common/malloc/mock_malloc"
	"github.com/matrixorigin/mostl/pkg/common/moerr"
	"github.com/matrixorigin/mostl/pkg/util/fault"
)

func TestReallocatingInsertFailure(t *testing.T) {
	checked, opts := newChecked[payload]()
	vec, err := NewFrom([]payload{
		newPayload(nil, 1),
		newPayload(nil, 2),
		newPayload(nil, 3),
	}, opts)
	require.NoError(t, err)
	require.Equal(t, vec.Len(), vec.Cap())

	for _, pos := range []int{0, 1, 3} {
		before := takeSnapshot(vec)
		_, err = vec.Emplace(vec.Begin().Add(pos), failing[payload]())
		require.True(t, moerr.IsMoErrCode(err, moerr.ErrElemConstruct))
		require.ErrorIs(t, err, errBoom)
		requireUnchanged(t, before, vec)
		require.Equal(t, 3, checked.Live())
		require.Equal(t, 1, checked.Blocks())
	}

	// a failing copy behaves the same
	budget := 0
	before := takeSnapshot(vec)
	err = vec.PushBack(newPayload(&budget, 4))
	require.ErrorIs(t, err, errBoom)
	requireUnchanged(t, before, vec)

	vec.Close()
	require.Equal(t, checked.Constructed(), checked.Destroyed())
}

func TestResizeReallocateFailure(t *testing.T) {
	checked, opts := newChecked[payload]()
	vec, err := NewFrom([]payload{newPayload(nil, 1)}, opts)
	require.NoError(t, err)

	budget := 3
	before := takeSnapshot(vec)
	err = vec.ResizeWith(10, newPayload(&budget, 0))
	require.ErrorIs(t, err, errBoom)
	requireUnchanged(t, before, vec)
	require.Equal(t, 1, checked.Live())
	require.Equal(t, 1, checked.Blocks())

	// in place growth rolls back too
	require.NoError(t, vec.Reserve(10))
	budget = 3
	before = takeSnapshot(vec)
	err = vec.ResizeWith(10, newPayload(&budget, 0))
	require.ErrorIs(t, err, errBoom)
	requireUnchanged(t, before, vec)
	require.Equal(t, 1, checked.Live())

	vec.Close()
	require.Equal(t, checked.Constructed(), checked.Destroyed())
}

func TestAllocationFailure(t *testing.T) {
	fault.Enable()
	defer fault.Disable()

	vec, err := NewFrom([]int{1, 2, 3})
	require.NoError(t, err)
	defer vec.Close()

	require.NoError(t, fault.AddFaultPoint(malloc.FaultHeapAllocate, ":::", "return", 0, ""))
	before := takeSnapshot(vec)
	require.True(t, moerr.IsMoErrCode(vec.PushBack(4), moerr.ErrOOM))
	_, err = vec.Insert(vec.Begin(), 0)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrOOM))
	require.True(t, moerr.IsMoErrCode(vec.Reserve(100), moerr.ErrOOM))
	require.True(t, moerr.IsMoErrCode(vec.ResizeWith(20, 7), moerr.ErrOOM))
	requireUnchanged(t, before, vec)

	require.NoError(t, fault.RemoveFaultPoint(malloc.FaultHeapAllocate))
	require.NoError(t, vec.PushBack(4))
	require.Equal(t, []int{1, 2, 3, 4}, vec.Values())
}

func TestArenaExhaustion(t *testing.T) {
	arena := malloc.NewArenaAllocator[int64](16)
	vec := New[int64](&Options[int64]{Allocator: arena})
	for i := int64(0); i < 6; i++ {
		require.NoError(t, vec.PushBack(i))
	}
	// released blocks merge, the 6 slot block reuses the front of the arena
	require.Equal(t, 6, vec.Cap())
	require.Equal(t, 6, arena.Tail())

	require.NoError(t, vec.PushBack(6))
	require.Equal(t, 9, vec.Cap())
	require.Equal(t, 15, arena.Tail())

	before := takeSnapshot(vec)
	err := vec.Reserve(16)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrOOM))
	requireUnchanged(t, before, vec)

	err = vec.Reserve(17)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrLengthExceeded))
	requireUnchanged(t, before, vec)

	vec.Close()
	require.Equal(t, 0, arena.Len())
	require.Equal(t, 0, arena.Tail())
}

func TestArenaZeroSizeElements(t *testing.T) {
	arena := malloc.NewArenaAllocator[struct{}](16)
	opts := &Options[struct{}]{Allocator: arena}
	a, b := New[struct{}](opts), New[struct{}](opts)
	for i := 0; i < 3; i++ {
		require.NoError(t, a.PushBack(struct{}{}))
		require.NoError(t, b.PushBack(struct{}{}))
	}
	require.Equal(t, a.Cap()+b.Cap(), arena.Len())

	require.NotPanics(t, a.Close)
	require.Equal(t, b.Cap(), arena.Len())
	require.NotPanics(t, b.Close)
	require.Equal(t, 0, arena.Len())

	// zero size blocks still count against the capacity
	c, err := NewSized[struct{}](10, opts)
	require.NoError(t, err)
	err = c.Reserve(16)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrOOM))
	require.Equal(t, 10, c.Cap())
	c.Close()
	require.Equal(t, 0, arena.Len())
}

func TestNewCapacityOnBoundedArena(t *testing.T) {
	arena := malloc.NewArenaAllocator[int64](16)
	held, err := NewSized(8, &Options[int64]{Allocator: arena})
	require.NoError(t, err)
	defer held.Close()

	opts := &Options[int64]{Allocator: arena, Capacity: 10}
	requirePanicCode(t, moerr.ErrOOM, func() { New[int64](opts) })

	// the error returning form reports the same failure
	_, err = NewSized(0, opts)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrOOM))
	require.Equal(t, 8, arena.Len())

	opts.Capacity = 8
	vec, err := NewSized(0, opts)
	require.NoError(t, err)
	require.Equal(t, 8, vec.Cap())
	vec.Close()
}

func TestAllocatorCalls(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	heap := malloc.NewHeapAllocator[int64](0)
	alloc := mock_malloc.NewMockAllocator(ctrl)
	alloc.EXPECT().MaxSize().Return(1000).AnyTimes()
	alloc.EXPECT().Construct(gomock.Any(), gomock.Any()).DoAndReturn(heap.Construct).Times(10 + 10 + 1)
	alloc.EXPECT().Destroy(gomock.Any()).Do(heap.Destroy).Times(10 + 11)
	gomock.InOrder(
		alloc.EXPECT().Allocate(10).DoAndReturn(heap.Allocate),
		alloc.EXPECT().Allocate(15).DoAndReturn(heap.Allocate),
		alloc.EXPECT().Deallocate(gomock.Any(), 10),
		alloc.EXPECT().Deallocate(gomock.Any(), 15),
	)

	vec := New[int64](&Options[int64]{Allocator: alloc})
	require.NoError(t, vec.Reserve(10))
	for i := int64(0); i < 11; i++ {
		require.NoError(t, vec.PushBack(i))
	}
	require.Equal(t, 15, vec.Cap())
	vec.Close()
}

func TestRelocationFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	heap := malloc.NewHeapAllocator[int64](0)
	alloc := mock_malloc.NewMockAllocator(ctrl)
	alloc.EXPECT().MaxSize().Return(1000).AnyTimes()
	alloc.EXPECT().Allocate(gomock.Any()).DoAndReturn(heap.Allocate).AnyTimes()
	alloc.EXPECT().Deallocate(gomock.Any(), gomock.Any()).AnyTimes()
	alloc.EXPECT().Destroy(gomock.Any()).Do(heap.Destroy).AnyTimes()

	var (
		calls  int
		failAt int
	)
	alloc.EXPECT().Construct(gomock.Any(), gomock.Any()).DoAndReturn(
		func(slot *int64, ctor func() (int64, error)) error {
			calls++
			if calls == failAt {
				return errBoom
			}
			return heap.Construct(slot, ctor)
		},
	).AnyTimes()

	vec, err := NewFrom([]int64{1, 2, 3, 4}, &Options[int64]{Allocator: alloc})
	require.NoError(t, err)

	// the new element, then the prefix, then the suffix
	for step := 1; step <= 5; step++ {
		calls, failAt = 0, step
		before := takeSnapshot(vec)
		_, err = vec.Insert(vec.Begin().Add(2), 9)
		require.ErrorIs(t, err, errBoom, "step %d", step)
		requireUnchanged(t, before, vec)
	}

	calls, failAt = 0, 3
	before := takeSnapshot(vec)
	require.ErrorIs(t, vec.Reserve(8), errBoom)
	requireUnchanged(t, before, vec)

	failAt = -1
	_, err = vec.Insert(vec.Begin().Add(2), 9)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 9, 3, 4}, vec.Values())
	vec.Close()
}

func TestReallocationLog(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	vec := New[int](&Options[int]{Logger: zap.New(core)})
	defer vec.Close()
	for i := 0; i < 5; i++ {
		require.NoError(t, vec.PushBack(i))
	}
	entries := logs.FilterMessage("vector reallocated").All()
	// 0->1->2->3->4->6
	require.Len(t, entries, 5)
	last := entries[len(entries)-1].ContextMap()
	require.Equal(t, int64(4), last["old capacity"])
	require.Equal(t, int64(6), last["new capacity"])
}
