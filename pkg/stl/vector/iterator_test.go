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
	"math"
	"strings"
	"testing"

	"github.com/prashantv/gostub"
	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/mostl/pkg/common/moerr"
)

func requirePanicCode(t *testing.T, code uint16, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		require.True(t, moerr.IsMoErrCode(err, code), err.Error())
	}()
	fn()
}

func TestIteratorArithmetic(t *testing.T) {
	vec, err := NewFrom([]int{0, 1, 2, 3, 4})
	require.NoError(t, err)
	defer vec.Close()

	it := vec.Begin()
	require.Equal(t, 0, it.Get())
	require.Equal(t, 1, it.Inc().Get())
	require.Equal(t, 1, it.Pos())

	old := it.PostInc()
	require.Equal(t, 1, old.Pos())
	require.Equal(t, 2, it.Pos())

	require.Equal(t, 1, it.Dec().Pos())
	old = it.PostDec()
	require.Equal(t, 1, old.Pos())
	require.Equal(t, 0, it.Pos())

	require.Equal(t, 4, it.Advance(4).Get())
	require.Equal(t, 2, it.Retreat(2).Get())
	require.Equal(t, 4, it.Add(2).Get())
	require.Equal(t, 0, it.Sub(2).Get())
	require.Equal(t, 3, it.Index(1))
	require.Equal(t, 0, it.Index(-2))

	require.Equal(t, 5, vec.Begin().Distance(vec.End()))
	require.Equal(t, -5, vec.End().Distance(vec.Begin()))
	require.Equal(t, 2, vec.Begin().Distance(it))

	require.True(t, it.Equal(vec.Begin().Add(2)))
	require.True(t, it.NotEqual(vec.Begin()))
	require.True(t, vec.Begin().Less(it))
	require.True(t, it.Greater(vec.Begin()))
	require.True(t, it.LessEqual(it))
	require.True(t, it.GreaterEqual(it))
	require.False(t, it.Less(it))

	it.Set(20)
	*it.IndexPtr(1) = 30
	*it.Ptr() += 1
	require.Equal(t, []int{0, 1, 21, 30, 4}, vec.Values())

	// an iterator narrows to its const form at the same position
	c := it.Const()
	require.Equal(t, 21, c.Get())
	require.True(t, c.Equal(vec.CBegin().Add(2)))
}

func TestConstIteratorWalk(t *testing.T) {
	vec, err := NewFrom([]string{"a", "b", "c"})
	require.NoError(t, err)
	defer vec.Close()

	var got []string
	for c := vec.CBegin(); c.NotEqual(vec.CEnd()); c.Inc() {
		got = append(got, c.Get())
	}
	require.Equal(t, []string{"a", "b", "c"}, got)

	got = got[:0]
	for c := vec.CEnd(); c.Greater(vec.CBegin()); {
		c.Dec()
		got = append(got, c.Get())
	}
	require.Equal(t, []string{"c", "b", "a"}, got)

	empty := New[string]()
	require.True(t, empty.CBegin().Equal(empty.CEnd()))
	require.True(t, empty.Begin().Equal(empty.End()))
	require.True(t, empty.RBegin().Equal(empty.REnd()))
}

func TestReverseIterator(t *testing.T) {
	vec, err := NewFrom([]int{0, 1, 2, 3, 4})
	require.NoError(t, err)
	defer vec.Close()

	var got []int
	for r := vec.RBegin(); r.NotEqual(vec.REnd()); r.Inc() {
		got = append(got, r.Get())
	}
	require.Equal(t, []int{4, 3, 2, 1, 0}, got)

	r := vec.RBegin()
	require.True(t, r.Base().Equal(vec.End()))
	require.Equal(t, 3, r.Index(1))
	require.Equal(t, 5, r.Distance(vec.REnd()))
	require.True(t, r.Less(vec.REnd()))
	require.True(t, vec.REnd().Greater(r))

	old := r.PostInc()
	require.Equal(t, 4, old.Get())
	require.Equal(t, 3, r.Get())
	require.Equal(t, 1, r.Advance(2).Get())
	require.Equal(t, 3, r.Retreat(2).Get())
	require.Equal(t, 4, r.Dec().Get())
	require.Equal(t, 0, r.Add(4).Get())
	require.Equal(t, 4, r.Add(4).Sub(4).Get())

	r.Add(1).Set(30)
	*r.IndexPtr(4) = 10
	require.Equal(t, []int{10, 1, 2, 30, 4}, vec.Values())

	got = got[:0]
	for c := vec.CRBegin(); c.NotEqual(vec.CREnd()); c.Inc() {
		got = append(got, c.Get())
	}
	require.Equal(t, []int{4, 30, 2, 1, 10}, got)
	require.True(t, vec.RBegin().Const().Equal(vec.CRBegin()))
	require.Equal(t, 0, vec.CRBegin().Base().Distance(vec.CEnd()))
}

func TestInvalidations(t *testing.T) {
	var iv invalidations
	from, ev := iv.since(0)
	require.Equal(t, math.MaxInt, from)
	require.Nil(t, ev)

	iv.record(5, false)
	iv.record(3, false)
	iv.record(7, false)
	require.Len(t, iv.events, 2)

	from, _ = iv.since(0)
	require.Equal(t, 3, from)
	from, _ = iv.since(1)
	require.Equal(t, 3, from)
	from, _ = iv.since(2)
	require.Equal(t, 7, from)
	from, _ = iv.since(3)
	require.Equal(t, math.MaxInt, from)

	iv.record(0, true)
	require.Len(t, iv.events, 1)
	from, ev = iv.since(0)
	require.Equal(t, 0, from)
	require.NotNil(t, ev.callers)
}

func TestInvalidationTraces(t *testing.T) {
	var iv invalidations
	countTraced := func() int {
		n := 0
		for _, e := range iv.events {
			if e.callers != nil {
				n++
			}
		}
		return n
	}

	// appends only capture the bottom event
	for i := 1; i <= 1000; i++ {
		iv.record(i, true)
	}
	require.Len(t, iv.events, 1000)
	require.Equal(t, 1, iv.traced)
	require.Equal(t, 1, countTraced())

	// each second event shadows the first, up to the cap
	for i := 0; i < 100; i++ {
		iv.record(2000+2*i+1, true)
		iv.record(2000+2*i, true)
	}
	require.Equal(t, maxTraces, iv.traced)
	require.Equal(t, maxTraces, countTraced())

	iv.record(0, true)
	require.Len(t, iv.events, 1)
	require.Equal(t, 1, iv.traced)
	require.Equal(t, 1, countTraced())
}

func TestStaleIterator(t *testing.T) {
	vec, err := NewFrom([]int{0, 1, 2, 3, 4}, &Options[int]{Debug: true})
	require.NoError(t, err)
	defer vec.Close()

	// reallocation invalidates everything
	it := vec.Begin().Add(3)
	require.NoError(t, vec.PushBack(5))
	requirePanicCode(t, moerr.ErrInvalidState, func() { _ = it.Get() })
	require.Equal(t, 7, vec.Cap())

	// erase leaves the positions before it alone
	first := vec.Begin().Add(1)
	third := vec.Begin().Add(3)
	next := vec.Erase(vec.Begin().Add(3))
	require.Equal(t, 1, first.Get())
	require.Equal(t, 4, next.Get())
	requirePanicCode(t, moerr.ErrInvalidState, func() { _ = third.Get() })

	// so does an in place insert
	front := vec.Begin()
	second := vec.Begin().Add(2)
	_, err = vec.Insert(vec.Begin().Add(1), 9)
	require.NoError(t, err)
	require.Equal(t, 0, front.Get())
	requirePanicCode(t, moerr.ErrInvalidState, func() { second.Set(1) })
	require.Equal(t, []int{0, 9, 1, 2, 4, 5}, vec.Values())

	// a stale position can not be erased either
	b := vec.Begin()
	vec.EraseRange(vec.Begin(), vec.Begin().Add(1))
	requirePanicCode(t, moerr.ErrInvalidState, func() { vec.Erase(b) })

	defer func() {
		r := recover()
		require.NotNil(t, r)
		require.True(t, strings.Contains(r.(error).Error(), "stale iterator"))
	}()
	_ = front.Get()
}

func TestDebugAssertions(t *testing.T) {
	stubs := gostub.Stub(&debugByDefault, true)
	defer stubs.Reset()

	vec, err := NewFrom([]int{1, 2, 3})
	require.NoError(t, err)
	defer vec.Close()
	require.True(t, vec.IsDebug())

	requirePanicCode(t, moerr.ErrOutOfRange, func() { _ = vec.Get(3) })
	requirePanicCode(t, moerr.ErrOutOfRange, func() { _ = vec.Ptr(-1) })
	requirePanicCode(t, moerr.ErrOutOfRange, func() { vec.Set(5, 0) })
	requirePanicCode(t, moerr.ErrOutOfRange, func() { _ = vec.End().Get() })
	requirePanicCode(t, moerr.ErrOutOfRange, func() { vec.EraseRange(vec.Begin().Add(2), vec.Begin().Add(1)) })

	empty := New[int]()
	requirePanicCode(t, moerr.ErrEmptyVector, func() { _ = empty.Front() })
	requirePanicCode(t, moerr.ErrEmptyVector, func() { _ = empty.Back() })
	requirePanicCode(t, moerr.ErrEmptyVector, func() { empty.PopBack() })

	// iterators of another vector
	other, err := NewFrom([]int{1, 2, 3})
	require.NoError(t, err)
	defer other.Close()
	requirePanicCode(t, moerr.ErrInvalidState, func() { vec.Erase(other.Begin()) })
	requirePanicCode(t, moerr.ErrInvalidState, func() { _, _ = vec.Insert(other.End(), 4) })
	requirePanicCode(t, moerr.ErrInvalidState, func() { _ = vec.Begin().Equal(other.Begin()) })

	stubs.Reset()
	require.False(t, New[int]().IsDebug())
}

func TestSort(t *testing.T) {
	vec, err := NewFrom([]int{5, 2, 4, 1, 3})
	require.NoError(t, err)
	defer vec.Close()

	less := func(a, b int) bool { return a < b }
	Sort(vec.Begin().Add(1), vec.End(), less)
	require.Equal(t, []int{5, 1, 2, 3, 4}, vec.Values())

	// empty and single element ranges are left alone
	Sort(vec.Begin(), vec.Begin(), less)
	Sort(vec.Begin(), vec.Begin().Add(1), less)
	require.Equal(t, []int{5, 1, 2, 3, 4}, vec.Values())

	SortFunc(vec, func(a, b int) bool { return a > b })
	require.Equal(t, []int{5, 4, 3, 2, 1}, vec.Values())
}
