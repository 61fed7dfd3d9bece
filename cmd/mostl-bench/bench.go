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
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"

	"github.com/matrixorigin/mostl/pkg/common/moerr"
	"github.com/matrixorigin/mostl/pkg/config"
	"github.com/matrixorigin/mostl/pkg/logutil"
	"github.com/matrixorigin/mostl/pkg/stl/vector"
)

type report struct {
	backend string
	workers int
	tasks   int
	stats   taskStats
	elapsed time.Duration
	metrics map[string]float64
}

// runBench runs [bench].tasks independent tasks on a pool of
// [bench].workers goroutines, all sharing one allocator. It returns the
// first task error, including panics raised by debug checks.
func runBench(ctx context.Context, cfg *config.Config) (*report, error) {
	stack, err := newAllocatorStack(&cfg.Vector)
	if err != nil {
		return nil, err
	}
	opts := &vector.Options[int64]{
		Allocator: stack,
		Debug:     cfg.Vector.Debug,
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		rep      = &report{
			backend: cfg.Vector.Allocator,
			workers: cfg.Bench.Workers,
			tasks:   cfg.Bench.Tasks,
		}
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	pool, err := ants.NewPool(cfg.Bench.Workers, ants.WithPanicHandler(func(p interface{}) {
		fail(moerr.ConvertPanicError(ctx, p))
	}))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer pool.Release()

	start := time.Now()
	for i := 0; i < cfg.Bench.Tasks; i++ {
		if err := ctx.Err(); err != nil {
			fail(err)
			break
		}
		id := i
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			stats, err := runTask(id, &cfg.Bench, cfg.Vector.Capacity, opts)
			mu.Lock()
			rep.stats.merge(stats)
			mu.Unlock()
			if err != nil {
				fail(err)
			}
		})
		if err != nil {
			wg.Done()
			fail(errors.Wrapf(err, "submit task %d", id))
			break
		}
	}
	wg.Wait()
	rep.elapsed = time.Since(start)

	if firstErr != nil {
		return nil, firstErr
	}
	if err := stack.verifyReleased(); err != nil {
		return nil, err
	}
	if rep.metrics, err = gatherMetrics(stack.registry); err != nil {
		return nil, err
	}

	logutil.Info("bench done",
		zap.String("backend", rep.backend),
		zap.Int("tasks", rep.tasks),
		zap.Int64("ops", rep.totalOps()),
		zap.Int64("rejected", rep.stats.failed),
		zap.Duration("elapsed", rep.elapsed))
	return rep, nil
}

func gatherMetrics(g prometheus.Gatherer) (map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, errors.Wrap(err, "gather allocator metrics")
	}
	ret := make(map[string]float64, len(families))
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			ret[mf.GetName()] = metricValue(mf.GetType(), m)
		}
	}
	return ret, nil
}

func metricValue(typ dto.MetricType, m *dto.Metric) float64 {
	switch typ {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	default:
		return math.NaN()
	}
}

func (r *report) totalOps() int64 {
	var n int64
	for _, c := range r.stats.ops {
		n += c
	}
	return n
}

func (r *report) print(w io.Writer) {
	fmt.Fprintf(w, "backend %s, %d tasks on %d workers, %d ops in %s, %d rejected\n",
		r.backend, r.tasks, r.workers, r.totalOps(), r.elapsed, r.stats.failed)
	for k := opKind(0); k < numOps; k++ {
		fmt.Fprintf(w, "  %-12s %d\n", k, r.stats.ops[k])
	}
	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s %g\n", name, r.metrics[name])
	}
}
