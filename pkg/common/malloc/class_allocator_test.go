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
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestClassAllocatorPooling(t *testing.T) {
	convey.Convey("class allocator reuses released blocks", t, func() {
		allocator := NewClassAllocator[int64](64 * MB)

		convey.So(allocator.ClassSize(1), convey.ShouldEqual, minClassSize)
		convey.So(allocator.ClassSize(17), convey.ShouldEqual, 24)
		convey.So(allocator.ClassSize(maxClassSize+1), convey.ShouldEqual, -1)

		block, err := allocator.Allocate(10)
		convey.So(err, convey.ShouldBeNil)
		convey.So(len(block), convey.ShouldEqual, 10)
		convey.So(cap(block), convey.ShouldEqual, minClassSize)
		for i := range block {
			block[i] = int64(i + 1)
		}
		allocator.Deallocate(block, 10)
		convey.So(allocator.Stats().Parked, convey.ShouldEqual, int64(1))

		reused, err := allocator.Allocate(12)
		convey.So(err, convey.ShouldBeNil)
		convey.So(len(reused), convey.ShouldEqual, 12)
		convey.So(&reused[0], convey.ShouldPointTo, &block[0])
		for _, v := range reused {
			convey.So(v, convey.ShouldEqual, int64(0))
		}
		stats := allocator.Stats()
		convey.So(stats.Hits, convey.ShouldEqual, int64(1))
		convey.So(stats.Misses, convey.ShouldEqual, int64(1))
		allocator.Deallocate(reused, 12)
	})

	convey.Convey("large requests bypass the pools", t, func() {
		allocator := NewClassAllocator[int64](64 * MB)
		block, err := allocator.Allocate(maxClassSize + 1)
		convey.So(err, convey.ShouldBeNil)
		convey.So(len(block), convey.ShouldEqual, maxClassSize+1)
		allocator.Deallocate(block, maxClassSize+1)
		convey.So(allocator.Stats(), convey.ShouldResemble, ClassAllocatorStats{})
	})

	convey.Convey("tiny buffer disables pooling", t, func() {
		allocator := NewClassAllocator[int64](0)
		block, _ := allocator.Allocate(3)
		allocator.Deallocate(block, 3)
		_, _ = allocator.Allocate(3)
		convey.So(allocator.Stats().Hits, convey.ShouldEqual, int64(0))
		convey.So(allocator.Stats().Misses, convey.ShouldEqual, int64(2))
	})
}
