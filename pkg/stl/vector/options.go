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
	"go.uber.org/zap"

	"github.com/matrixorigin/mostl/pkg/common/malloc"
)

// Options configures a new Vector. A nil *Options and the zero value
// both mean a heap allocator, no reservation and no debug checks.
type Options[T any] struct {
	// Allocator backs the element storage. Defaults to a heap allocator.
	Allocator malloc.Allocator[T]
	// Capacity is reserved up front.
	Capacity int
	// Debug enables bounds assertions on unchecked access and stale
	// iterator detection.
	Debug bool
	// Logger receives reallocation events at debug level. Defaults to
	// the global logger.
	Logger *zap.Logger
}

// debugByDefault turns on debug checks for vectors whose options do not.
var debugByDefault = false

func getOptions[T any](opts []*Options[T]) *Options[T] {
	if len(opts) > 0 && opts[0] != nil {
		return opts[0]
	}
	return &Options[T]{}
}

func (opt *Options[T]) allocator() malloc.Allocator[T] {
	if opt.Allocator != nil {
		return opt.Allocator
	}
	return malloc.NewHeapAllocator[T](0)
}
