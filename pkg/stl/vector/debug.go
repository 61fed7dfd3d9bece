// Copyright 2022 Matrix Origin
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
	"bytes"
	"math"
	"runtime"
	"sort"
	"strconv"
	"sync"
)

var (
	_callersPool = sync.Pool{
		New: func() interface{} {
			return newCallers(32)
		},
	}
)

// GetCallers captures the stack of the caller, skipping skip frames.
func GetCallers(skip int) *Callers {
	c := _callersPool.Get()
	cc := c.(*Callers)
	var n int
	for {
		n = runtime.Callers(skip+2, cc.storage)
		if n < len(cc.storage) {
			break
		}
		size := len(cc.storage)
		cc.Close()
		cc = newCallers(size * 2)
	}
	cc.num = n
	return cc
}

type Callers struct {
	storage []uintptr
	num     int
}

func newCallers(size int) *Callers {
	return &Callers{
		storage: make([]uintptr, size),
	}
}

func (c *Callers) Close() {
	c.num = 0
	_callersPool.Put(c)
}

func (c *Callers) String() string {
	var buffer bytes.Buffer
	i := 0
	frames := runtime.CallersFrames(c.storage[:c.num])
	for frame, more := frames.Next(); more; frame, more = frames.Next() {
		if i != 0 {
			buffer.WriteByte('\n')
		}
		i++
		buffer.WriteString(frame.File)
		buffer.WriteByte(':')
		buffer.WriteString(strconv.Itoa(frame.Line))
	}
	return buffer.String()
}

// invalidation is an event after which every iterator at position from
// or beyond must not be dereferenced.
type invalidation struct {
	gen     uint64
	from    int
	callers *Callers
}

// invalidations keeps, for every generation, the lowest position
// invalidated since. Entries are ordered by gen and by from, both
// strictly increasing; an event dominates every older entry whose from
// is not below its own.
//
// A call stack is captured only for events that end up at the bottom of
// the ledger or dominate an older entry, and at most maxTraces are held
// at once. A run of appends grows the ledger without capturing stacks.
type invalidations struct {
	gen    uint64
	events []invalidation
	traced int
}

const maxTraces = 16

func (iv *invalidations) record(from int, trace bool) {
	iv.gen++
	shadowed := false
	for n := len(iv.events); n > 0 && iv.events[n-1].from >= from; n-- {
		if c := iv.events[n-1].callers; c != nil {
			c.Close()
			iv.traced--
		}
		iv.events = iv.events[:n-1]
		shadowed = true
	}
	e := invalidation{gen: iv.gen, from: from}
	if trace && iv.traced < maxTraces && (shadowed || len(iv.events) == 0) {
		e.callers = GetCallers(2)
		iv.traced++
	}
	iv.events = append(iv.events, e)
}

// since returns the lowest position invalidated after gen and the
// event that did it, or math.MaxInt when nothing was.
func (iv *invalidations) since(gen uint64) (int, *invalidation) {
	i := sort.Search(len(iv.events), func(i int) bool {
		return iv.events[i].gen > gen
	})
	if i == len(iv.events) {
		return math.MaxInt, nil
	}
	return iv.events[i].from, &iv.events[i]
}
