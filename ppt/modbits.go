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
	"golang.org/x/tools/container/intsets"
)

// ModBitTracker records, for every variable of a point, in which samples it had a value.
// Variables with identical histories share one bit set; a set is split the first time its
// members disagree.
type ModBitTracker struct {
	samples int
	// index maps a variable to its bit set.
	index []int
	// bits[i] holds the sample numbers in which the variables of set i were present.
	bits []*intsets.Sparse
	// reps[i] is a variable of set i.
	reps []int
}

// NewModBitTracker returns a tracker for n variables, all sharing an empty history.
func NewModBitTracker(n int) *ModBitTracker {
	t := &ModBitTracker{index: make([]int, n)}
	if n > 0 {
		t.bits = []*intsets.Sparse{new(intsets.Sparse)}
		t.reps = []int{0}
	}
	return t
}

// Add records count samples with the presence pattern of vt.
func (t *ModBitTracker) Add(vt valuetuple.ValueTuple, count int) {
	if vt.Len() != len(t.index) {
		panic("mod bit tracker: value tuple length does not match variable count")
	}
	// A set can only split two ways per sample: the members agreeing with its representative
	// and the rest, which move together to one new set.
	splitTo := make(map[int]int)
	for v, set := range t.index {
		if vt.IsMissing(v) == vt.IsMissing(t.reps[set]) {
			continue
		}
		to, ok := splitTo[set]
		if !ok {
			to = len(t.bits)
			nb := new(intsets.Sparse)
			nb.Copy(t.bits[set])
			t.bits = append(t.bits, nb)
			t.reps = append(t.reps, v)
			splitTo[set] = to
		}
		t.index[v] = to
	}
	for set, rep := range t.reps {
		if vt.IsMissing(rep) {
			continue
		}
		for i := 0; i < count; i++ {
			t.bits[set].Insert(t.samples + i)
		}
	}
	t.samples += count
}

// NumSets returns the number of distinct presence histories.
func (t *ModBitTracker) NumSets() int {
	return len(t.bits)
}

// NumSamples returns the number of samples recorded.
func (t *ModBitTracker) NumSamples() int {
	return t.samples
}

// Present reports whether variable v had a value in the given sample.
func (t *ModBitTracker) Present(v, sample int) bool {
	return t.bits[t.index[v]].Has(sample)
}

// SameHistory reports whether two variables have been present in exactly the same samples.
func (t *ModBitTracker) SameHistory(v1, v2 int) bool {
	return t.index[v1] == t.index[v2] || t.bits[t.index[v1]].Equals(t.bits[t.index[v2]])
}
