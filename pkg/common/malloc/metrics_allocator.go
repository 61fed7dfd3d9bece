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

package malloc

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AllocatorMetrics is the set of collectors a MetricsAllocator feeds.
// Any of them may be nil.
type AllocatorMetrics struct {
	AllocateBytesCounter   prometheus.Counter
	InuseBytesGauge        prometheus.Gauge
	AllocateObjectsCounter prometheus.Counter
	InuseObjectsGauge      prometheus.Gauge
	LiveElementsGauge      prometheus.Gauge
	FailedAllocateCounter  prometheus.Counter
}

// NewAllocatorMetrics creates collectors named
// <namespace>_<subsystem>_<metric>.
func NewAllocatorMetrics(namespace, subsystem string) *AllocatorMetrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		})
	}
	return &AllocatorMetrics{
		AllocateBytesCounter:   counter("allocate_bytes_total", "Bytes allocated."),
		InuseBytesGauge:        gauge("inuse_bytes", "Bytes allocated and not released."),
		AllocateObjectsCounter: counter("allocate_objects_total", "Blocks allocated."),
		InuseObjectsGauge:      gauge("inuse_objects", "Blocks allocated and not released."),
		LiveElementsGauge:      gauge("live_elements", "Elements constructed and not destroyed."),
		FailedAllocateCounter:  counter("allocate_failed_total", "Failed allocations."),
	}
}

// Register registers every non nil collector.
func (a *AllocatorMetrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		a.AllocateBytesCounter,
		a.InuseBytesGauge,
		a.AllocateObjectsCounter,
		a.InuseObjectsGauge,
		a.LiveElementsGauge,
		a.FailedAllocateCounter,
	} {
		if c == nil {
			continue
		}
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// MetricsAllocator forwards to upstream and reports block and element
// counts.
type MetricsAllocator[T any] struct {
	upstream Allocator[T]
	metrics  *AllocatorMetrics
}

var _ Allocator[int] = new(MetricsAllocator[int])

func NewMetricsAllocator[T any](upstream Allocator[T], metrics *AllocatorMetrics) *MetricsAllocator[T] {
	if metrics == nil {
		metrics = &AllocatorMetrics{}
	}
	return &MetricsAllocator[T]{
		upstream: upstream,
		metrics:  metrics,
	}
}

func (m *MetricsAllocator[T]) Allocate(n int) ([]T, error) {
	block, err := m.upstream.Allocate(n)
	if err != nil {
		if m.metrics.FailedAllocateCounter != nil {
			m.metrics.FailedAllocateCounter.Inc()
		}
		return nil, err
	}
	if n == 0 {
		return block, nil
	}
	size := float64(SizeOfMany[T](n))
	if m.metrics.AllocateBytesCounter != nil {
		m.metrics.AllocateBytesCounter.Add(size)
	}
	if m.metrics.InuseBytesGauge != nil {
		m.metrics.InuseBytesGauge.Add(size)
	}
	if m.metrics.AllocateObjectsCounter != nil {
		m.metrics.AllocateObjectsCounter.Inc()
	}
	if m.metrics.InuseObjectsGauge != nil {
		m.metrics.InuseObjectsGauge.Inc()
	}
	return block, nil
}

func (m *MetricsAllocator[T]) Deallocate(block []T, n int) {
	m.upstream.Deallocate(block, n)
	if n == 0 {
		return
	}
	if m.metrics.InuseBytesGauge != nil {
		m.metrics.InuseBytesGauge.Sub(float64(SizeOfMany[T](n)))
	}
	if m.metrics.InuseObjectsGauge != nil {
		m.metrics.InuseObjectsGauge.Dec()
	}
}

func (m *MetricsAllocator[T]) Construct(slot *T, ctor func() (T, error)) error {
	if err := m.upstream.Construct(slot, ctor); err != nil {
		return err
	}
	if m.metrics.LiveElementsGauge != nil {
		m.metrics.LiveElementsGauge.Inc()
	}
	return nil
}

func (m *MetricsAllocator[T]) Destroy(slot *T) {
	m.upstream.Destroy(slot)
	if m.metrics.LiveElementsGauge != nil {
		m.metrics.LiveElementsGauge.Dec()
	}
}

func (m *MetricsAllocator[T]) MaxSize() int {
	return m.upstream.MaxSize()
}
