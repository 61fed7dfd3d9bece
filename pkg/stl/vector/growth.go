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
	"github.com/matrixorigin/mostl/pkg/common/moerr"
)

// Grow returns the capacity to reallocate to when oldCap slots are not
// enough for required elements. Capacity grows by half of itself, or to
// exactly required when that is larger. The result never exceeds
// maxSize; a required count above maxSize is ErrLengthExceeded.
func Grow(oldCap, required, maxSize int) (int, error) {
	if required > maxSize {
		return 0, moerr.NewLengthExceededNoCtx(required, maxSize)
	}
	if oldCap > maxSize-oldCap/2 {
		// geometric growth would overflow the bound
		return required, nil
	}
	return max(oldCap+oldCap/2, required), nil
}
