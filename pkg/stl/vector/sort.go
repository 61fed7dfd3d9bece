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
	"sort"
)

type iteratorRange[T any] struct {
	first Iterator[T]
	n     int
	less  func(a, b T) bool
}

func (r *iteratorRange[T]) Len() int { return r.n }

func (r *iteratorRange[T]) Less(i, j int) bool {
	return r.less(r.first.Index(i), r.first.Index(j))
}

func (r *iteratorRange[T]) Swap(i, j int) {
	a, b := r.first.IndexPtr(i), r.first.IndexPtr(j)
	*a, *b = *b, *a
}

// Sort sorts [first, last) in place. It is not stable.
func Sort[T any](first, last Iterator[T], less func(a, b T) bool) {
	n := first.Distance(last)
	if n < 2 {
		return
	}
	sort.Sort(&iteratorRange[T]{first: first, n: n, less: less})
}

// SortFunc sorts the whole vector.
func SortFunc[T any](vec *Vector[T], less func(a, b T) bool) {
	Sort(vec.Begin(), vec.End(), less)
}
