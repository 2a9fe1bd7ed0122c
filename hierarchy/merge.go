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

package hierarchy

import (
	"cmp"
	"log/slog"
	"slices"

	"go.uber.org/dyninv/diagnostic"
	"go.uber.org/dyninv/ppt"
	"go.uber.org/dyninv/varinfo"
	"golang.org/x/tools/container/intsets"
)

// pairKey is an ordered pair of parent variable indices.
type pairKey [2]int

// ChildEqualitiesAsParent expresses the equality sets of the child of r as pairs of parent
// variables, each with the number of samples of its set. Sets without samples and members
// without a parent counterpart are left out.
func ChildEqualitiesAsParent(r *Relation) []ppt.Pair {
	m := childEqualities(r)
	pairs := make([]ppt.Pair, 0, len(m))
	for k, n := range m {
		pairs = append(pairs, ppt.Pair{V1: k[0], V2: k[1], Samples: n})
	}
	sortPairs(pairs)
	return pairs
}

func childEqualities(r *Relation) map[pairKey]int {
	out := make(map[pairKey]int)
	eq := r.Child.Equality()
	if eq == nil {
		return out
	}
	for _, s := range eq.Sets() {
		if s.Size() < 2 || s.Samples == 0 {
			continue
		}
		var mapped []int
		for _, m := range s.Members {
			if pv, ok := r.ParentVar(m); ok {
				mapped = append(mapped, pv.Index)
			}
		}
		slices.Sort(mapped)
		for i, a := range mapped {
			for _, b := range mapped[i+1:] {
				if a != b {
					out[pairKey{a, b}] = s.Samples
				}
			}
		}
	}
	return out
}

func sortPairs(pairs []ppt.Pair) {
	slices.SortFunc(pairs, func(a, b ppt.Pair) int {
		if n := cmp.Compare(a.V1, b.V1); n != 0 {
			return n
		}
		return cmp.Compare(a.V2, b.V2)
	})
}

// MergeEqualities pushes equality facts up the graph, children before parents. A parent with
// no samples of its own whose children have samples (or have themselves been merged) gets the
// equalities that hold in every such child, with the sample counts summed, and its variables
// never seen in any child are marked always missing. Parents with samples keep their own
// partition.
func (g *Graph) MergeEqualities() (err error) {
	var current string
	defer func() {
		if r := recover(); r != nil {
			err = diagnostic.AsError(current, r)
		}
	}()

	// present[name] holds the indices of the variables of a point that have had a value, for
	// points with samples or merged ones.
	present := make(map[string]*intsets.Sparse)
	state := make(map[string]int)
	const (
		visiting = 1
		done     = 2
	)
	var visit func(p *ppt.Point)
	visit = func(p *ppt.Point) {
		if state[p.Name] != 0 {
			return
		}
		state[p.Name] = visiting
		for _, r := range g.children[p.Name] {
			visit(r.Child)
		}
		state[p.Name] = done
		current = p.Name
		if p.NumSamples() > 0 {
			present[p.Name] = presentVars(p)
			return
		}
		if s, ok := g.merge(p, present); ok {
			present[p.Name] = s
		}
	}
	g.points.OrderedRange(func(_ string, p *ppt.Point) bool {
		visit(p)
		return true
	})
	return nil
}

// merge merges the equalities of the contributing children into p. It reports false if no
// child contributes.
func (g *Graph) merge(p *ppt.Point, present map[string]*intsets.Sparse) (*intsets.Sparse, bool) {
	if p.Equality() == nil {
		return nil, false
	}
	var (
		common      map[pairKey]int
		contributed int
		seen        intsets.Sparse
	)
	for _, r := range g.children[p.Name] {
		childPresent, ok := present[r.Child.Name]
		if !ok {
			continue
		}
		contributed++
		for _, c := range childPresent.AppendTo(nil) {
			if pv, ok := r.ParentVar(r.Child.Vars()[c]); ok {
				seen.Insert(pv.Index)
			}
		}
		pairs := childEqualities(r)
		if common == nil {
			common = pairs
			continue
		}
		for k, n := range common {
			if m, ok := pairs[k]; ok {
				common[k] = n + m
			} else {
				delete(common, k)
			}
		}
	}
	if contributed == 0 {
		return nil, false
	}

	pairs := make([]ppt.Pair, 0, len(common))
	for k, n := range common {
		pairs = append(pairs, ppt.Pair{V1: k[0], V2: k[1], Samples: n})
	}
	sortPairs(pairs)
	p.MergeMissing(func(v *varinfo.VarInfo) bool { return seen.Has(v.Index) })
	p.InstantiateFromPairs(pairs)
	g.rc.Logger.Debug("merged child equalities", slog.String("ppt", p.Name),
		slog.Int("children", contributed), slog.Int("pairs", len(pairs)))
	return &seen, true
}

func presentVars(p *ppt.Point) *intsets.Sparse {
	var s intsets.Sparse
	for _, v := range p.Vars() {
		if p.ValueSet(v.Index).Count() > 0 {
			s.Insert(v.Index)
		}
	}
	return &s
}
