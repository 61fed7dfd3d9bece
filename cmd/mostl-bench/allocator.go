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
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/matrixorigin/mostl/pkg/common/malloc"
	"github.com/matrixorigin/mostl/pkg/common/moerr"
	"github.com/matrixorigin/mostl/pkg/config"
	"github.com/matrixorigin/mostl/pkg/logutil"
)

// backends builds the base allocator named by [vector].allocator.
// Platform specific files add to it.
var backends = map[string]func(cfg *config.VectorConfig) malloc.Allocator[int64]{
	config.AllocatorHeap: func(cfg *config.VectorConfig) malloc.Allocator[int64] {
		return malloc.NewHeapAllocator[int64](cfg.HeapLimit)
	},
	config.AllocatorClass: func(cfg *config.VectorConfig) malloc.Allocator[int64] {
		return malloc.NewClassAllocator[int64](cfg.ClassBufferSize)
	},
	config.AllocatorArena: func(cfg *config.VectorConfig) malloc.Allocator[int64] {
		return malloc.NewArenaAllocator[int64](cfg.ArenaCapacity)
	},
}

// allocatorStack is the allocator shared by every task, from the outside
// in: metrics, optional lifetime checks, the configured backend.
type allocatorStack struct {
	malloc.Allocator[int64]

	base     malloc.Allocator[int64]
	checked  *malloc.CheckedAllocator[int64]
	metrics  *malloc.AllocatorMetrics
	registry *prometheus.Registry
}

func newAllocatorStack(cfg *config.VectorConfig) (*allocatorStack, error) {
	build, ok := backends[cfg.Allocator]
	if !ok {
		return nil, moerr.NewNotSupportedNoCtx("allocator %s on this platform", cfg.Allocator)
	}
	s := &allocatorStack{
		base:     build(cfg),
		metrics:  malloc.NewAllocatorMetrics("mostl", "bench"),
		registry: prometheus.NewRegistry(),
	}
	if err := s.metrics.Register(s.registry); err != nil {
		return nil, err
	}

	upstream := s.base
	if cfg.Debug {
		s.checked = malloc.NewCheckedAllocator[int64](upstream)
		upstream = s.checked
	}
	s.Allocator = malloc.NewMetricsAllocator[int64](upstream, s.metrics)
	logutil.Info("allocator ready",
		zap.String("backend", cfg.Allocator),
		zap.Bool("checked", cfg.Debug),
		zap.Int("max size", s.MaxSize()))
	return s, nil
}

// verifyReleased fails when elements or blocks outlive every vector.
func (s *allocatorStack) verifyReleased() error {
	if s.checked != nil {
		if live, blocks := s.checked.Live(), s.checked.Blocks(); live != 0 || blocks != 0 {
			return moerr.NewInvalidStateNoCtx("%d elements in %d blocks still live", live, blocks)
		}
		if c, d := s.checked.Constructed(), s.checked.Destroyed(); c != d {
			return moerr.NewInvalidStateNoCtx("constructed %d elements, destroyed %d", c, d)
		}
	}
	if arena, ok := s.base.(*malloc.ArenaAllocator[int64]); ok && arena.Len() != 0 {
		return moerr.NewInvalidStateNoCtx("arena still holds %d elements", arena.Len())
	}
	return nil
}
