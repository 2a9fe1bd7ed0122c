//  Copyright (c) 2023 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ppt

import (
	"go.uber.org/dyninv/valuetuple"
)

// ValueSet summarizes the non-missing values of one variable: how many distinct values there
// were, up to a limit, and their range or total size.
type ValueSet struct {
	limit    int
	keys     map[string]struct{}
	overflow bool
	nan      bool

	numeric  bool
	min, max float64
	// elems and maxLen describe array values.
	elems  int
	maxLen int
	count  int
}

// NewValueSet returns a set that tracks up to limit distinct values exactly.
func NewValueSet(limit int) *ValueSet {
	return &ValueSet{limit: limit, keys: make(map[string]struct{})}
}

// Add records a value, which must not be nil.
func (s *ValueSet) Add(v any) {
	s.count++
	if n := valuetuple.Len(v); n >= 0 {
		s.elems += n
		s.maxLen = max(s.maxLen, n)
	} else if f, ok := valuetuple.AsFloat(v); ok {
		if !s.numeric {
			s.min, s.max = f, f
			s.numeric = true
		} else {
			s.min = min(s.min, f)
			s.max = max(s.max, f)
		}
	}
	if s.overflow {
		return
	}
	key, ok := valuetuple.Key(v)
	if !ok {
		s.nan = true
		return
	}
	if _, seen := s.keys[key]; seen {
		return
	}
	if len(s.keys) == s.limit {
		s.overflow = true
		s.keys = nil
		return
	}
	s.keys[key] = struct{}{}
}

// Size returns the number of distinct values and whether it is exact. Values containing NaN
// count as one value.
func (s *ValueSet) Size() (int, bool) {
	if s.overflow {
		return s.limit, false
	}
	n := len(s.keys)
	if s.nan {
		n++
	}
	return n, true
}

// Count returns the number of values added.
func (s *ValueSet) Count() int {
	return s.count
}

// Range returns the smallest and largest numeric scalar values seen.
func (s *ValueSet) Range() (lo, hi float64, ok bool) {
	return s.min, s.max, s.numeric
}

// Elements returns the total and the largest number of elements over all array values.
func (s *ValueSet) Elements() (total, longest int) {
	return s.elems, s.maxLen
}
