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
	"cmp"
	"slices"
	"strings"

	"go.uber.org/dyninv/diagnostic"
	"go.uber.org/dyninv/invariant"
	"go.uber.org/dyninv/valuetuple"
	"go.uber.org/dyninv/varinfo"
)

// sliceKey identifies a slice by the indices of its variables, padded with -1.
type sliceKey [3]int

func keyOf(vars []*varinfo.VarInfo) sliceKey {
	k := sliceKey{-1, -1, -1}
	for i, v := range vars {
		k[i] = v.Index
	}
	return k
}

// compareKeys orders keys by arity, then lexicographically by index.
func compareKeys(a, b sliceKey) int {
	if n := cmp.Compare(a.arity(), b.arity()); n != 0 {
		return n
	}
	return slices.Compare(a[:], b[:])
}

func (k sliceKey) arity() int {
	n := 0
	for _, i := range k {
		if i >= 0 {
			n++
		}
	}
	return n
}

// Slice holds the candidate invariants over one to three variables of a point. The variables are
// sorted by index; the same variable may appear more than once.
type Slice struct {
	ppt  string
	vars []*varinfo.VarInfo
	invs []invariant.Invariant
}

func newSlice(ppt string, vars []*varinfo.VarInfo) *Slice {
	if len(vars) < 1 || len(vars) > 3 {
		panic(diagnostic.Fatalf(ppt, "", "slice over %d variables", len(vars)))
	}
	for i := 1; i < len(vars); i++ {
		if vars[i-1].Index > vars[i].Index {
			panic(diagnostic.Fatalf(ppt, vars[i].Name, "slice variables %s are not sorted", sliceNames(vars)))
		}
	}
	return &Slice{ppt: ppt, vars: slices.Clone(vars)}
}

// Arity returns the number of variables.
func (s *Slice) Arity() int {
	return len(s.vars)
}

// Vars returns the variables in index order.
func (s *Slice) Vars() []*varinfo.VarInfo {
	return slices.Clone(s.vars)
}

// Invariants returns the surviving invariants.
func (s *Slice) Invariants() []invariant.Invariant {
	return slices.Clone(s.invs)
}

// Len returns the number of surviving invariants.
func (s *Slice) Len() int {
	return len(s.invs)
}

// IsReflexive reports whether some variable appears more than once.
func (s *Slice) IsReflexive() bool {
	for i := 1; i < len(s.vars); i++ {
		if s.vars[i-1] == s.vars[i] {
			return true
		}
	}
	return false
}

func (s *Slice) key() sliceKey {
	return keyOf(s.vars)
}

func (s *Slice) contains(v *varinfo.VarInfo) bool {
	return slices.Contains(s.vars, v)
}

func (s *Slice) String() string {
	return s.ppt + " " + sliceNames(s.vars)
}

func sliceNames(vars []*varinfo.VarInfo) string {
	return "(" + strings.Join(varinfo.Names(vars), ", ") + ")"
}

// addInvariants attaches invariants, which must match the arity of the slice.
func (s *Slice) addInvariants(invs ...invariant.Invariant) {
	for _, inv := range invs {
		if inv.Arity() != len(s.vars) {
			panic(diagnostic.Fatalf(s.ppt, "", "invariant %s of arity %d added to slice %s", inv.Kind(), inv.Arity(), sliceNames(s.vars)))
		}
		s.invs = append(s.invs, inv)
	}
}

// seed applies count samples of the given values to every invariant, as if they had been
// observed before the slice existed, and drops the invariants they falsify. It returns the
// number dropped.
func (s *Slice) seed(vals []any, count int) int {
	for _, inv := range s.invs {
		inv.Add(vals, count)
	}
	return s.removeFalsified()
}

// add applies a sample. If any variable is out of bounds, every invariant is discarded for good;
// if any is missing, the sample does not apply. It returns the number of invariants discarded.
func (s *Slice) add(vt valuetuple.ValueTuple, count int) int {
	for _, v := range s.vars {
		if v.MissingOutOfBounds() {
			n := len(s.invs)
			s.invs = nil
			return n
		}
	}
	vals := make([]any, len(s.vars))
	for i, v := range s.vars {
		if vt.IsMissing(v.Index) {
			return 0
		}
		vals[i] = vt.Value(v.Index)
		if vals[i] == nil {
			panic(diagnostic.Fatalf(s.ppt, v.Name, "nil value for a variable that is not missing"))
		}
	}
	for _, inv := range s.invs {
		inv.Add(vals, count)
	}
	return s.removeFalsified()
}

func (s *Slice) removeFalsified() int {
	n := len(s.invs)
	s.invs = slices.DeleteFunc(s.invs, invariant.Invariant.IsFalse)
	return n - len(s.invs)
}

// cloneAndPivot returns a copy of the slice over vars, where vars[i] takes the place of the
// slice's i-th variable. The variables are sorted and the cloned invariants permuted to match.
func (s *Slice) cloneAndPivot(vars []*varinfo.VarInfo) *Slice {
	order := make([]int, len(vars))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(vars[a].Index, vars[b].Index)
	})
	// order[j] is the old position of the variable that lands at j; perm is its inverse.
	perm := make([]int, len(vars))
	sorted := make([]*varinfo.VarInfo, len(vars))
	for j, old := range order {
		perm[old] = j
		sorted[j] = vars[old]
	}

	c := newSlice(s.ppt, sorted)
	identity := slices.IsSorted(order)
	for _, inv := range s.invs {
		inv = inv.Clone()
		if !identity {
			inv = inv.Permute(perm)
		}
		c.addInvariants(inv)
	}
	return c
}
