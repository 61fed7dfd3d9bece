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

// Initializer is implemented by element types (on the pointer) whose
// default construction does more than produce the zero value, and may
// fail.
type Initializer interface {
	Init() error
}

// Cloner is implemented by element types (on the pointer) whose copies
// must not share state with the original.
type Cloner[T any] interface {
	Clone() (T, error)
}

// Ctor builds one element value.
type Ctor[T any] func() (T, error)

// DefaultCtor builds the zero value, then runs Init when *T is an
// Initializer.
func DefaultCtor[T any]() Ctor[T] {
	return func() (T, error) {
		var v T
		if in, ok := any(&v).(Initializer); ok {
			if err := in.Init(); err != nil {
				var zero T
				return zero, err
			}
		}
		return v, nil
	}
}

// CopyCtor builds a copy of src, through Clone when *T is a Cloner.
func CopyCtor[T any](src T) Ctor[T] {
	return func() (T, error) {
		if c, ok := any(&src).(Cloner[T]); ok {
			return c.Clone()
		}
		return src, nil
	}
}

// ValueCtor hands v over as is.
func ValueCtor[T any](v T) Ctor[T] {
	return func() (T, error) {
		return v, nil
	}
}
