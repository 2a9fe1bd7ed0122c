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

	"go.uber.org/dyninv/diagnostic"
	"go.uber.org/dyninv/valuetuple"
	"go.uber.org/dyninv/varinfo"
)

// EqualitySet is a group of variables that have been equal in every sample since the set was
// created. Members are kept sorted by variable index, so the leader is always Members[0].
type EqualitySet struct {
	// ID is the position of the set in its partition's arena. Variables refer to their set by
	// this id.
	ID int
	// Members are the variables of the set in index order.
	Members []*varinfo.VarInfo
	// Samples is the number of samples in which the set has been observed.
	Samples int
}

// Leader returns the canonical member of the set.
func (s *EqualitySet) Leader() *varinfo.VarInfo {
	return s.Members[0]
}

// Size returns the number of members.
func (s *EqualitySet) Size() int {
	return len(s.Members)
}

// add applies a sample to the set, removing and returning every member that no longer equals
// the leader. A member stays iff it carries exactly the leader's modification code, neither it
// nor the leader is out of bounds, and its value equals the leader's value. Two members that
// are missing with the same code are equal.
func (s *EqualitySet) add(vt valuetuple.ValueTuple, count int) []*varinfo.VarInfo {
	leader := s.Leader()
	leaderVal := vt.Value(leader.Index)
	leaderMod := vt.Mod(leader.Index)
	leaderOOB := leader.MissingOutOfBounds()
	if !leaderMod.IsMissing() {
		s.Samples += count
	}

	var removed []*varinfo.VarInfo
	kept := s.Members[:1]
	for _, v := range s.Members[1:] {
		if vt.Mod(v.Index) == leaderMod && !leaderOOB && !v.MissingOutOfBounds() &&
			valuetuple.Equal(leaderVal, vt.Value(v.Index)) {
			kept = append(kept, v)
			continue
		}
		removed = append(removed, v)
	}
	// kept aliases Members, so clear the tail to release the removed pointers.
	clear(s.Members[len(kept):])
	s.Members = kept
	return removed
}

// EqualityPartition is the arena of the equality sets of one program point. Sets are never
// removed: a split shrinks the old set and appends the split-off variables as new sets, so an id
// stays valid for the lifetime of the point.
type EqualityPartition struct {
	ppt  string
	sets []*EqualitySet
}

// newPartition groups vars into initial sets. Unless perVar is set, variables with the same
// file rep and comparable comparability share a set; a variable joins the first earlier set
// whose leader it is comparable with.
func newPartition(ppt string, vars []*varinfo.VarInfo, perVar, ignoreComparability bool) *EqualityPartition {
	p := &EqualityPartition{ppt: ppt}
	for _, v := range vars {
		if !perVar {
			if s := p.findInitialSet(v, ignoreComparability); s != nil {
				s.Members = append(s.Members, v)
				v.EqualitySet = s.ID
				continue
			}
		}
		p.newSet([]*varinfo.VarInfo{v}, 0)
	}
	return p
}

func (p *EqualityPartition) findInitialSet(v *varinfo.VarInfo, ignoreComparability bool) *EqualitySet {
	for _, s := range p.sets {
		l := s.Leader()
		if l.FileRep == v.FileRep && (ignoreComparability || l.Comparability.Comparable(v.Comparability)) {
			return s
		}
	}
	return nil
}

// newSet appends a set over members, which must be sorted by index, and points the members at
// it.
func (p *EqualityPartition) newSet(members []*varinfo.VarInfo, samples int) *EqualitySet {
	s := &EqualitySet{ID: len(p.sets), Members: members, Samples: samples}
	p.sets = append(p.sets, s)
	for _, v := range members {
		v.EqualitySet = s.ID
	}
	return s
}

// Set returns the set with the given id.
func (p *EqualityPartition) Set(id int) *EqualitySet {
	return p.sets[id]
}

// Len returns the number of sets.
func (p *EqualityPartition) Len() int {
	return len(p.sets)
}

// Sets returns all sets ordered by leader index.
func (p *EqualityPartition) Sets() []*EqualitySet {
	sets := slices.Clone(p.sets)
	slices.SortFunc(sets, func(a, b *EqualitySet) int {
		return cmp.Compare(a.Leader().Index, b.Leader().Index)
	})
	return sets
}

// SetOf returns the set the variable belongs to.
func (p *EqualityPartition) SetOf(v *varinfo.VarInfo) *EqualitySet {
	return p.sets[v.EqualitySet]
}

// IsLeader reports whether v leads its set.
func (p *EqualityPartition) IsLeader(v *varinfo.VarInfo) bool {
	return p.sets[v.EqualitySet].Leader() == v
}

// split describes one set that lost members in a sample.
type split struct {
	// old is the set after removal of the diverging members.
	old *EqualitySet
	// oldLeader is its leader, which never changes across a split.
	oldLeader *varinfo.VarInfo
	// created holds the sets formed from the removed members, ordered by leader index.
	created []*EqualitySet
}

// add applies a sample to every set that existed before the sample and returns the splits in
// order of the sets' ids.
func (p *EqualityPartition) add(vt valuetuple.ValueTuple, count int) []split {
	var splits []split
	n := len(p.sets)
	for i := 0; i < n; i++ {
		s := p.sets[i]
		removed := s.add(vt, count)
		if len(removed) == 0 {
			continue
		}
		splits = append(splits, split{
			old:       s,
			oldLeader: s.Leader(),
			created:   p.regroup(removed, vt, s, count),
		})
	}
	return splits
}

// regroup forms new sets from the members removed from old. Out-of-bounds members become
// singletons with no samples, members missing in this sample share one set, and the rest are
// grouped by value. A value with no key (NaN) forms a singleton.
func (p *EqualityPartition) regroup(removed []*varinfo.VarInfo, vt valuetuple.ValueTuple, old *EqualitySet, count int) []*EqualitySet {
	type bucket struct {
		members []*varinfo.VarInfo
		samples int
	}
	var buckets []*bucket
	byValue := make(map[string]*bucket)
	var missing *bucket
	for _, v := range removed {
		switch {
		case v.MissingOutOfBounds():
			buckets = append(buckets, &bucket{members: []*varinfo.VarInfo{v}})
		case vt.IsMissing(v.Index):
			if missing == nil {
				missing = &bucket{samples: max(old.Samples-count, 0)}
				buckets = append(buckets, missing)
			}
			missing.members = append(missing.members, v)
		default:
			val := vt.Value(v.Index)
			if val == nil {
				panic(diagnostic.Fatalf(p.ppt, v.Name, "nil value for a variable that is neither missing nor out of bounds"))
			}
			key, ok := valuetuple.Key(val)
			if !ok {
				buckets = append(buckets, &bucket{members: []*varinfo.VarInfo{v}, samples: old.Samples})
				continue
			}
			b, ok := byValue[key]
			if !ok {
				b = &bucket{samples: old.Samples}
				byValue[key] = b
				buckets = append(buckets, b)
			}
			b.members = append(b.members, v)
		}
	}

	// Members arrive in index order, so every bucket is sorted and buckets[i].members[0] is
	// its leader.
	slices.SortFunc(buckets, func(a, b *bucket) int {
		return cmp.Compare(a.members[0].Index, b.members[0].Index)
	})
	created := make([]*EqualitySet, len(buckets))
	for i, b := range buckets {
		created[i] = p.newSet(b.members, b.samples)
	}
	return created
}

// Pair is an equality between two variables of a point, with the number of samples that
// support it. V1 < V2 always holds.
type Pair struct {
	V1, V2  int
	Samples int
}

// fromPairs builds a partition in which every connected group of paired variables forms one
// set and every other variable forms a singleton. The sample count of a set is the smallest
// count among the pairs it was built from.
func fromPairs(ppt string, vars []*varinfo.VarInfo, pairs []Pair) *EqualityPartition {
	parent := make([]int, len(vars))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	samples := make(map[int]int)
	for _, pr := range pairs {
		a, b := find(pr.V1), find(pr.V2)
		if a != b {
			// The smaller index is always the root, so roots are leaders.
			if b < a {
				a, b = b, a
			}
			parent[b] = a
			if sb, ok := samples[b]; ok {
				if sa, ok := samples[a]; !ok || sb < sa {
					samples[a] = sb
				}
				delete(samples, b)
			}
		}
		if s, ok := samples[a]; !ok || pr.Samples < s {
			samples[a] = pr.Samples
		}
	}

	p := &EqualityPartition{ppt: ppt}
	groups := make(map[int][]*varinfo.VarInfo)
	var roots []int
	for _, v := range vars {
		r := find(v.Index)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], v)
	}
	for _, r := range roots {
		p.newSet(groups[r], samples[r])
	}
	return p
}

// check panics unless the sets form a partition of vars with every variable pointing at the set
// that holds it.
func (p *EqualityPartition) check(vars []*varinfo.VarInfo) {
	seen := make([]bool, len(vars))
	for _, s := range p.sets {
		if len(s.Members) == 0 {
			panic(diagnostic.Fatalf(p.ppt, "", "equality set %d is empty", s.ID))
		}
		for i, v := range s.Members {
			if i > 0 && s.Members[i-1].Index >= v.Index {
				panic(diagnostic.Fatalf(p.ppt, v.Name, "equality set %d is not sorted", s.ID))
			}
			if seen[v.Index] || v.EqualitySet != s.ID {
				panic(diagnostic.Fatalf(p.ppt, v.Name, "variable is not in exactly one equality set"))
			}
			seen[v.Index] = true
		}
	}
	for i, ok := range seen {
		if !ok {
			panic(diagnostic.Fatalf(p.ppt, vars[i].Name, "variable is in no equality set"))
		}
	}
}
