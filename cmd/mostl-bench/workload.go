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

package main

import (
	"math/rand"
	"slices"

	"github.com/pkg/errors"

	"github.com/matrixorigin/mostl/pkg/common/moerr"
	"github.com/matrixorigin/mostl/pkg/config"
	"github.com/matrixorigin/mostl/pkg/stl/vector"
)

type opKind int

const (
	opPush opKind = iota
	opInsert
	opErase
	opEraseRange
	opResize
	opReserve
	opPop
	opClear
	opSet
	opSort
	opClone
	numOps
)

var opNames = [numOps]string{
	"push", "insert", "erase", "erase range", "resize", "reserve",
	"pop", "clear", "set", "sort", "clone",
}

// opWeights is the relative frequency of each op.
var opWeights = [numOps]int{30, 15, 10, 3, 5, 3, 15, 1, 15, 1, 2}

func (k opKind) String() string { return opNames[k] }

// fullCheckInterval is how many ops pass between full comparisons
// against the shadow slice. Failed ops are always followed by one.
const fullCheckInterval = 64

type taskStats struct {
	ops [numOps]int64
	// failed counts ops rejected by the allocator.
	failed int64
}

func (s *taskStats) merge(o taskStats) {
	for i := range s.ops {
		s.ops[i] += o.ops[i]
	}
	s.failed += o.failed
}

// task drives one vector and a plain slice through the same ops.
type task struct {
	rnd    *rand.Rand
	maxLen int

	vec    *vector.Vector[int64]
	shadow []int64
	stats  taskStats
}

func runTask(id int, bench *config.BenchConfig, capacity int, opts *vector.Options[int64]) (taskStats, error) {
	t := &task{
		rnd:    rand.New(rand.NewSource(bench.Seed + int64(id))),
		maxLen: bench.MaxLen,
		vec:    vector.New[int64](opts),
	}
	defer t.vec.Close()

	if err := t.tolerate(t.vec.Reserve(capacity)); err != nil {
		return t.stats, err
	}
	for i := 0; i < bench.Ops; i++ {
		kind := t.pick()
		failed, err := t.step(kind)
		if err != nil {
			return t.stats, errors.Wrapf(err, "task %d op %d %s", id, i, kind)
		}
		if failed || i%fullCheckInterval == 0 {
			err = t.verify()
		} else if t.vec.Len() != len(t.shadow) {
			err = diverged("length %d, want %d", t.vec.Len(), len(t.shadow))
		}
		if err != nil {
			return t.stats, errors.Wrapf(err, "task %d op %d %s", id, i, kind)
		}
	}
	return t.stats, t.verify()
}

func (t *task) pick() opKind {
	total := 0
	for _, w := range opWeights {
		total += w
	}
	r := t.rnd.Intn(total)
	for k, w := range opWeights {
		if r < w {
			return opKind(k)
		}
		r -= w
	}
	return opPush
}

// step applies kind to both sides. failed reports a tolerated
// failure, after which the vector must be unchanged.
func (t *task) step(kind opKind) (failed bool, err error) {
	n := len(t.shadow)
	if n >= t.maxLen && (kind == opPush || kind == opInsert) {
		kind = opPop
	}
	t.stats.ops[kind]++

	switch kind {
	case opPush:
		v := t.rnd.Int63()
		if err = t.vec.PushBack(v); err == nil {
			t.shadow = append(t.shadow, v)
		}

	case opInsert:
		p, v := t.rnd.Intn(n+1), t.rnd.Int63()
		var it vector.Iterator[int64]
		if it, err = t.vec.Insert(t.vec.Begin().Add(p), v); err == nil {
			if it.Pos() != p || it.Get() != v {
				return false, diverged("insert at %d returned %d", p, it.Pos())
			}
			t.shadow = slices.Insert(t.shadow, p, v)
		}

	case opErase:
		if n == 0 {
			return false, nil
		}
		p := t.rnd.Intn(n)
		if it := t.vec.Erase(t.vec.Begin().Add(p)); it.Pos() != p {
			return false, diverged("erase at %d returned %d", p, it.Pos())
		}
		t.shadow = slices.Delete(t.shadow, p, p+1)

	case opEraseRange:
		first := t.rnd.Intn(n + 1)
		last := first + t.rnd.Intn(n-first+1)
		t.vec.EraseRange(t.vec.Begin().Add(first), t.vec.Begin().Add(last))
		t.shadow = slices.Delete(t.shadow, first, last)

	case opResize:
		m, v := t.rnd.Intn(t.maxLen+1), t.rnd.Int63()
		if err = t.vec.ResizeWith(m, v); err == nil {
			if m <= n {
				t.shadow = t.shadow[:m]
			} else {
				for len(t.shadow) < m {
					t.shadow = append(t.shadow, v)
				}
			}
		}

	case opReserve:
		m := t.rnd.Intn(2*t.maxLen) + 1
		if err = t.vec.Reserve(m); err == nil && t.vec.Cap() < m {
			return false, diverged("capacity %d after reserving %d", t.vec.Cap(), m)
		}

	case opPop:
		if n == 0 {
			return false, nil
		}
		t.vec.PopBack()
		t.shadow = t.shadow[:n-1]

	case opClear:
		t.vec.Clear()
		t.shadow = t.shadow[:0]

	case opSet:
		if n == 0 {
			return false, nil
		}
		p, v := t.rnd.Intn(n), t.rnd.Int63()
		t.vec.Begin().Add(p).Set(v)
		t.shadow[p] = v

	case opSort:
		vector.SortFunc(t.vec, func(a, b int64) bool { return a < b })
		slices.Sort(t.shadow)

	case opClone:
		var c *vector.Vector[int64]
		if c, err = t.vec.Clone(); err == nil {
			same := slices.Equal(c.Values(), t.shadow)
			c.Close()
			if !same {
				return false, diverged("clone differs")
			}
		}
	}

	if err != nil {
		if e := t.tolerate(err); e != nil {
			return false, e
		}
		return true, nil
	}
	return false, nil
}

// tolerate swallows the failures a bounded backend reports under load:
// running out of memory and requests above its max size.
func (t *task) tolerate(err error) error {
	if err == nil {
		return nil
	}
	if moerr.IsMoErrCode(err, moerr.ErrOOM) || moerr.IsMoErrCode(err, moerr.ErrLengthExceeded) {
		t.stats.failed++
		return nil
	}
	return err
}

func (t *task) verify() error {
	if t.vec.Len() != len(t.shadow) {
		return diverged("length %d, want %d", t.vec.Len(), len(t.shadow))
	}
	if t.vec.Cap() < t.vec.Len() {
		return diverged("capacity %d below length %d", t.vec.Cap(), t.vec.Len())
	}
	for i := 0; i < len(t.shadow); i++ {
		if got := t.vec.Get(i); got != t.shadow[i] {
			return diverged("element %d is %d, want %d", i, got, t.shadow[i])
		}
	}
	return nil
}

func diverged(msg string, args ...any) error {
	return moerr.NewInternalErrorNoCtx("vector diverged: "+msg, args...)
}
