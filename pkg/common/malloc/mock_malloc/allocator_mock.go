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

// Package mock_malloc holds gomock mocks of the malloc interfaces,
// instantiated for int64 elements.
package mock_malloc

import (
	reflect "reflect"

	gomock "github.com/golang/mock/gomock"

	malloc "github.com/matrixorigin/mostl/pkg/common/malloc"
)

// MockAllocator is a mock of Allocator[int64].
type MockAllocator struct {
	ctrl     *gomock.Controller
	recorder *MockAllocatorMockRecorder
}

// MockAllocatorMockRecorder is the mock recorder for MockAllocator.
type MockAllocatorMockRecorder struct {
	mock *MockAllocator
}

var _ malloc.Allocator[int64] = new(MockAllocator)

// NewMockAllocator creates a new mock instance.
func NewMockAllocator(ctrl *gomock.Controller) *MockAllocator {
	mock := &MockAllocator{ctrl: ctrl}
	mock.recorder = &MockAllocatorMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockAllocator) EXPECT() *MockAllocatorMockRecorder {
	return m.recorder
}

// Allocate mocks base method.
func (m *MockAllocator) Allocate(n int) ([]int64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Allocate", n)
	ret0, _ := ret[0].([]int64)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Allocate indicates an expected call of Allocate.
func (mr *MockAllocatorMockRecorder) Allocate(n interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Allocate", reflect.TypeOf((*MockAllocator)(nil).Allocate), n)
}

// Deallocate mocks base method.
func (m *MockAllocator) Deallocate(block []int64, n int) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "Deallocate", block, n)
}

// Deallocate indicates an expected call of Deallocate.
func (mr *MockAllocatorMockRecorder) Deallocate(block, n interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Deallocate", reflect.TypeOf((*MockAllocator)(nil).Deallocate), block, n)
}

// Construct mocks base method.
func (m *MockAllocator) Construct(slot *int64, ctor func() (int64, error)) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Construct", slot, ctor)
	ret0, _ := ret[0].(error)
	return ret0
}

// Construct indicates an expected call of Construct.
func (mr *MockAllocatorMockRecorder) Construct(slot, ctor interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Construct", reflect.TypeOf((*MockAllocator)(nil).Construct), slot, ctor)
}

// Destroy mocks base method.
func (m *MockAllocator) Destroy(slot *int64) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "Destroy", slot)
}

// Destroy indicates an expected call of Destroy.
func (mr *MockAllocatorMockRecorder) Destroy(slot interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Destroy", reflect.TypeOf((*MockAllocator)(nil).Destroy), slot)
}

// MaxSize mocks base method.
func (m *MockAllocator) MaxSize() int {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "MaxSize")
	ret0, _ := ret[0].(int)
	return ret0
}

// MaxSize indicates an expected call of MaxSize.
func (mr *MockAllocatorMockRecorder) MaxSize() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "MaxSize", reflect.TypeOf((*MockAllocator)(nil).MaxSize))
}
