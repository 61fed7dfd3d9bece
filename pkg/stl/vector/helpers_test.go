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
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/mostl/pkg/common/malloc"
)

var errBoom = errors.New("boom")

// payload owns a slice, Clone copies it and fails once budget runs out.
type payload struct {
	data   []int
	budget *int
}

func newPayload(budget *int, data ...int) payload {
	return payload{data: data, budget: budget}
}

func (p *payload) Clone() (payload, error) {
	if p.budget != nil {
		if *p.budget == 0 {
			return payload{}, errBoom
		}
		*p.budget--
	}
	return payload{data: append([]int(nil), p.data...), budget: p.budget}, nil
}

// seeded is default constructed to 7.
type seeded struct {
	v int
}

func (s *seeded) Init() error {
	s.v = 7
	return nil
}

// broken can not be default constructed.
type broken struct{}

func (*broken) Init() error {
	return errBoom
}

func failing[T any]() Ctor[T] {
	return func() (T, error) {
		var zero T
		return zero, errBoom
	}
}

func newChecked[T any]() (*malloc.CheckedAllocator[T], *Options[T]) {
	checked := malloc.NewCheckedAllocator[T](malloc.NewHeapAllocator[T](0))
	return checked, &Options[T]{Allocator: checked}
}

// snapshot records what must not change across a failed operation.
type snapshot[T any] struct {
	length   int
	capacity int
	values   []T
	first    *T
}

func takeSnapshot[T any](vec *Vector[T]) snapshot[T] {
	s := snapshot[T]{
		length:   vec.Len(),
		capacity: vec.Cap(),
		values:   vec.Values(),
	}
	if vec.Cap() > 0 {
		s.first = &vec.block[0]
	}
	return s
}

func requireUnchanged[T any](t *testing.T, before snapshot[T], vec *Vector[T]) {
	t.Helper()
	after := takeSnapshot(vec)
	require.Equal(t, before.length, after.length)
	require.Equal(t, before.capacity, after.capacity)
	require.Equal(t, before.values, after.values)
	require.True(t, before.first == after.first, "block replaced")
}
