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

	"go.uber.org/dyninv/invariant"
	"go.uber.org/dyninv/valuetuple"
	"go.uber.org/dyninv/varinfo"
)

// Fact is one reported invariant of a point.
type Fact struct {
	Kind invariant.Kind
	// Vars and Indices identify the variables, in slice order.
	Vars    []string
	Indices []int
	// Text is the formatted invariant.
	Text string
	// Samples is the number of samples that support the invariant.
	Samples int
}

// ConstantFact is a variable that had a single value in every sample.
type ConstantFact struct {
	Var     string
	Index   int
	Value   any
	Samples int
}

func (c ConstantFact) String() string {
	return c.Var + " == " + valuetuple.Format(c.Value)
}

// EqualityGroup is an equality set with more than one member.
type EqualityGroup struct {
	Leader  string
	Members []string
	Samples int
}

// Invariants returns the surviving invariants of the point: one equality per non-leader member
// of every equality set, and every invariant of every non-reflexive slice whose variables have
// all been present at least once. Facts are sorted by
// arity, then variable indices, then text.
func (p *Point) Invariants() []Fact {
	var facts []Fact
	for _, g := range p.equalitySets() {
		l := g.Leader()
		for _, m := range g.Members[1:] {
			inv := invariant.NewEquality(g.Samples)
			names := []string{l.Name, m.Name}
			facts = append(facts, Fact{
				Kind:    inv.Kind(),
				Vars:    names,
				Indices: []int{l.Index, m.Index},
				Text:    inv.Format(names),
				Samples: g.Samples,
			})
		}
	}
	for _, s := range p.Slices() {
		if s.IsReflexive() || slices.ContainsFunc(s.vars, p.neverPresent) {
			continue
		}
		names := varinfo.Names(s.vars)
		indices := make([]int, len(s.vars))
		for i, v := range s.vars {
			indices[i] = v.Index
		}
		for _, inv := range s.invs {
			facts = append(facts, Fact{
				Kind:    inv.Kind(),
				Vars:    names,
				Indices: indices,
				Text:    inv.Format(names),
				Samples: inv.Samples(),
			})
		}
	}
	slices.SortStableFunc(facts, func(a, b Fact) int {
		if n := cmp.Compare(len(a.Indices), len(b.Indices)); n != 0 {
			return n
		}
		if n := slices.Compare(a.Indices, b.Indices); n != 0 {
			return n
		}
		return cmp.Compare(a.Text, b.Text)
	})
	return facts
}

// EqualityGroups returns the reportable equality sets ordered by leader index.
func (p *Point) EqualityGroups() []EqualityGroup {
	var groups []EqualityGroup
	for _, s := range p.equalitySets() {
		groups = append(groups, EqualityGroup{
			Leader:  s.Leader().Name,
			Members: varinfo.Names(s.Members),
			Samples: s.Samples,
		})
	}
	return groups
}

// neverPresent reports whether v has had no value in any sample applied to the point. Slices
// over such a variable only hold state cloned from other variables.
func (p *Point) neverPresent(v *varinfo.VarInfo) bool {
	return p.isMissing(v) || (p.numSamples > 0 && p.valueSets[v.Index].Count() == 0)
}

// equalitySets returns the sets worth reporting: more than one member, at least one sample,
// and a leader that has been present.
func (p *Point) equalitySets() []*EqualitySet {
	if p.equality == nil {
		return nil
	}
	var out []*EqualitySet
	for _, s := range p.equality.Sets() {
		if s.Size() < 2 || s.Samples == 0 || p.neverPresent(s.Leader()) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// ConstantFacts returns the variables that were constant when the point was post-processed.
func (p *Point) ConstantFacts() []ConstantFact {
	return slices.Clone(p.finalConstants)
}

// Stats counts the live slices and invariants of a point, indexed by arity.
type Stats struct {
	Slices        [4]int
	Invariants    [4]int
	EqualitySets  int
	Constants     int
	PresenceSets  int
	AlwaysMissing int
}

// Stats returns the current counts.
func (p *Point) Stats() Stats {
	var st Stats
	p.slices.OrderedRange(func(_ sliceKey, s *Slice) bool {
		st.Slices[s.Arity()]++
		st.Invariants[s.Arity()] += s.Len()
		return true
	})
	if p.equality != nil {
		st.EqualitySets = p.equality.Len()
	}
	if p.constants != nil {
		st.Constants = len(p.constants.cons)
		st.AlwaysMissing = len(p.constants.missing)
	}
	st.PresenceSets = p.modBits.NumSets()
	return st
}
