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

// A very simple fault injection tool.
//
// Storage backends call TriggerFault at the points where a real system
// could fail (allocation, element construction). Tests enable the
// registry, add a point with a frequency and an action, and observe
// how the caller copes.
package fault

import (
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matrixorigin/mostl/pkg/common/moerr"
)

const (
	RETURN = iota
	GETCOUNT
	SLEEP
	PANIC
	ECHO
)

// faultEntry describes how we shall fail
type faultEntry struct {
	name             string  // name of the fault
	cnt              int     // count how many times we run into this
	start, end, skip int     // start, end, skip
	prob             float64 // probability of failure
	action           int
	iarg             int64  // int arg
	sarg             string // string arg
}

type faultMap struct {
	mu          sync.Mutex
	faultPoints map[string]*faultEntry
}

var enabled atomic.Pointer[faultMap]

func (fm *faultMap) trigger(name string) *faultEntry {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	v, ok := fm.faultPoints[name]
	if !ok {
		return nil
	}
	v.cnt += 1
	if v.cnt >= v.start && v.cnt <= v.end && (v.cnt-v.start)%v.skip == 0 {
		if v.prob == 1 || rand.Float64() < v.prob {
			e := *v
			return &e
		}
	}
	return nil
}

func (fm *faultMap) lookup(name string) *faultEntry {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if v, ok := fm.faultPoints[name]; ok {
		e := *v
		return &e
	}
	return nil
}

func (e *faultEntry) do() (int64, string) {
	switch e.action {
	case RETURN: // no op
	case SLEEP:
		time.Sleep(time.Duration(e.iarg) * time.Millisecond)
	case GETCOUNT:
		if ee := lookup(e.sarg); ee != nil {
			return int64(ee.cnt), ""
		}
	case PANIC:
		panic(e.sarg)
	case ECHO:
		return e.iarg, e.sarg
	}
	return 0, ""
}

// Enable fault injection
func Enable() {
	enabled.CompareAndSwap(nil, &faultMap{
		faultPoints: make(map[string]*faultEntry),
	})
}

// Disable fault injection, all fault points are dropped.
func Disable() {
	enabled.Store(nil)
}

func IsEnabled() bool {
	return enabled.Load() != nil
}

// TriggerFault is called at a fault point. exist reports whether the
// point fired this time.
func TriggerFault(name string) (iret int64, sret string, exist bool) {
	fm := enabled.Load()
	if fm == nil {
		return
	}
	out := fm.trigger(name)
	if out == nil {
		return
	}
	exist = true
	iret, sret = out.do()
	return
}

// AddFaultPoint registers a fault point.
// freq is start:end:skip:prob, empty parts take the defaults
// 1:MaxInt:1:1.
func AddFaultPoint(name string, freq string, action string, iarg int64, sarg string) error {
	fm := enabled.Load()
	if fm == nil {
		return moerr.NewInternalErrorNoCtx("add fault point not enabled")
	}

	var err error

	e := &faultEntry{name: name}

	sesp := strings.Split(freq, ":")
	if len(sesp) != 4 {
		return moerr.NewInvalidArgNoCtx("fault point freq", freq)
	}

	if sesp[0] == "" {
		e.start = 1
	} else {
		e.start, err = strconv.Atoi(sesp[0])
		if err != nil {
			return moerr.NewInvalidArgNoCtx("fault point freq", freq)
		}
	}
	if sesp[1] == "" {
		e.end = math.MaxInt
	} else {
		e.end, err = strconv.Atoi(sesp[1])
		if err != nil || e.end < e.start {
			return moerr.NewInvalidArgNoCtx("fault point freq", freq)
		}
	}
	if sesp[2] == "" {
		e.skip = 1
	} else {
		e.skip, err = strconv.Atoi(sesp[2])
		if err != nil || e.skip <= 0 {
			return moerr.NewInvalidArgNoCtx("fault point freq", freq)
		}
	}
	if sesp[3] == "" {
		e.prob = 1.0
	} else {
		e.prob, err = strconv.ParseFloat(sesp[3], 64)
		if err != nil || e.prob <= 0 || e.prob >= 1 {
			return moerr.NewInvalidArgNoCtx("fault point freq", freq)
		}
	}

	switch strings.ToUpper(action) {
	case "RETURN":
		e.action = RETURN
	case "GETCOUNT":
		e.action = GETCOUNT
	case "SLEEP":
		e.action = SLEEP
	case "PANIC":
		e.action = PANIC
	case "ECHO":
		e.action = ECHO
	default:
		return moerr.NewInvalidArgNoCtx("fault action", action)
	}

	e.iarg = iarg
	e.sarg = sarg

	fm.mu.Lock()
	defer fm.mu.Unlock()
	if _, ok := fm.faultPoints[name]; ok {
		return moerr.NewInternalErrorNoCtx("fault point %s already exists", name)
	}
	fm.faultPoints[name] = e
	return nil
}

func RemoveFaultPoint(name string) error {
	fm := enabled.Load()
	if fm == nil {
		return moerr.NewInternalErrorNoCtx("remove fault point not enabled")
	}

	fm.mu.Lock()
	defer fm.mu.Unlock()
	if _, ok := fm.faultPoints[name]; !ok {
		return moerr.NewInvalidInputNoCtx("invalid injection point %s", name)
	}
	delete(fm.faultPoints, name)
	return nil
}

func lookup(name string) *faultEntry {
	fm := enabled.Load()
	if fm == nil {
		return nil
	}
	return fm.lookup(name)
}
