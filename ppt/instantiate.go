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
	"log/slog"

	"go.uber.org/dyninv/invariant"
	"go.uber.org/dyninv/varinfo"
)

// isLeader reports whether v leads its equality set. Without an equality partition every
// variable is its own leader.
func (p *Point) isLeader(v *varinfo.VarInfo) bool {
	return p.equality == nil || p.equality.IsLeader(v)
}

func (p *Point) isConstant(v *varinfo.VarInfo) bool {
	return p.constants != nil && p.constants.IsConstant(v)
}

func (p *Point) isMissing(v *varinfo.VarInfo) bool {
	return p.constants != nil && p.constants.IsMissing(v)
}

// constantsPending reports whether dynamic constants are enabled but have not seen a sample, in
// which case no variable is eligible yet.
func (p *Point) constantsPending() bool {
	return p.rc.Config.DynamicConstants && p.constants == nil
}

func (p *Point) isVarOKUnary(v *varinfo.VarInfo) bool {
	return !p.constantsPending() && !p.isConstant(v) && !p.isMissing(v) && p.isLeader(v)
}

func (p *Point) isVarOKBinary(v *varinfo.VarInfo) bool {
	return !p.constantsPending() && !p.isMissing(v) && p.isLeader(v)
}

func (p *Point) isVarOKTernary(v *varinfo.VarInfo) bool {
	return p.isVarOKBinary(v) && !v.Rep().IsArray() && (v.FileRep.IsIntegral() || v.FileRep.IsFloat())
}

func (p *Point) compatible(v1, v2 *varinfo.VarInfo) bool {
	return v1.Compatible(v2, p.rc.Config.IgnoreComparability)
}

func (p *Point) isSliceOK1(v *varinfo.VarInfo) bool {
	return p.isVarOKUnary(v)
}

func (p *Point) isSliceOK2(v1, v2 *varinfo.VarInfo) bool {
	if !p.isVarOKBinary(v1) || !p.isVarOKBinary(v2) {
		return false
	}
	if p.isConstant(v1) && p.isConstant(v2) {
		return false
	}
	return p.compatible(v1, v2)
}

func (p *Point) isSliceOK3(v1, v2, v3 *varinfo.VarInfo) bool {
	if !p.isVarOKTernary(v1) || !p.isVarOKTernary(v2) || !p.isVarOKTernary(v3) {
		return false
	}
	if p.isConstant(v1) && p.isConstant(v2) && p.isConstant(v3) {
		return false
	}
	if !p.compatible(v1, v2) || !p.compatible(v1, v3) || !p.compatible(v2, v3) {
		return false
	}
	// A fully reflexive slice can only pay off if its set can split three ways.
	if v1 == v2 && v2 == v3 && p.equality != nil && p.equality.SetOf(v1).Size() <= 2 {
		return false
	}
	return true
}

func (p *Point) isSliceOK(vars []*varinfo.VarInfo) bool {
	switch len(vars) {
	case 1:
		return p.isSliceOK1(vars[0])
	case 2:
		return p.isSliceOK2(vars[0], vars[1])
	case 3:
		return p.isSliceOK3(vars[0], vars[1], vars[2])
	}
	return false
}

// instantiateSlice returns a new slice over vars with fresh candidates from the factory.
func (p *Point) instantiateSlice(vars []*varinfo.VarInfo) *Slice {
	s := newSlice(p.Name, vars)
	s.addInvariants(p.rc.Factory.Instantiate(vars)...)
	p.rc.Stats.AddInstantiated(len(vars), s.Len())
	return s
}

// addViews attaches the non-empty slices. A slice whose variables already have one is dropped.
func (p *Point) addViews(views []*Slice) {
	for _, s := range views {
		if s.Len() == 0 {
			continue
		}
		if _, loaded := p.slices.LoadOrStore(s.key(), func() *Slice { return s }); loaded {
			p.log.Debug("slice already present", slog.String("vars", sliceNames(s.vars)))
		}
	}
}

// instantiateViewsAndInvariants creates every unary, binary and ternary slice over the eligible
// variables, with binary and ternary variables in non-decreasing index order.
func (p *Point) instantiateViewsAndInvariants() {
	var views []*Slice
	for _, v := range p.vars {
		if p.isSliceOK1(v) {
			views = append(views, p.instantiateSlice([]*varinfo.VarInfo{v}))
		}
	}
	for i1, v1 := range p.vars {
		if !p.isVarOKBinary(v1) {
			continue
		}
		for _, v2 := range p.vars[i1:] {
			if p.isSliceOK2(v1, v2) {
				views = append(views, p.instantiateSlice([]*varinfo.VarInfo{v1, v2}))
			}
		}
	}
	for i1, v1 := range p.vars {
		if !p.isVarOKTernary(v1) {
			continue
		}
		for i2 := i1; i2 < len(p.vars); i2++ {
			v2 := p.vars[i2]
			if !p.isVarOKTernary(v2) {
				continue
			}
			for _, v3 := range p.vars[i2:] {
				if p.isSliceOK3(v1, v2, v3) {
					views = append(views, p.instantiateSlice([]*varinfo.VarInfo{v1, v2, v3}))
				}
			}
		}
	}
	p.addViews(views)
	p.log.Debug("instantiated views", slog.Int("slices", p.slices.Len()))
}

// instantiateSimple is the unoptimized variant: every variable takes part regardless of
// equality or constancy, subject only to type compatibility.
func (p *Point) instantiateSimple() {
	var views []*Slice
	for _, v := range p.vars {
		views = append(views, p.instantiateSlice([]*varinfo.VarInfo{v}))
	}
	for i1, v1 := range p.vars {
		for _, v2 := range p.vars[i1:] {
			if p.compatible(v1, v2) {
				views = append(views, p.instantiateSlice([]*varinfo.VarInfo{v1, v2}))
			}
		}
	}
	numeric := func(v *varinfo.VarInfo) bool {
		return !v.Rep().IsArray() && (v.FileRep.IsIntegral() || v.FileRep.IsFloat())
	}
	for i1, v1 := range p.vars {
		if !numeric(v1) {
			continue
		}
		for i2 := i1; i2 < len(p.vars); i2++ {
			v2 := p.vars[i2]
			if !numeric(v2) || !p.compatible(v1, v2) {
				continue
			}
			for _, v3 := range p.vars[i2:] {
				if numeric(v3) && p.compatible(v1, v3) && p.compatible(v2, v3) {
					views = append(views, p.instantiateSlice([]*varinfo.VarInfo{v1, v2, v3}))
				}
			}
		}
	}
	p.addViews(views)
}

// copyInvsFromLeader gives the leaders split off from oldLeader's set the invariants of
// oldLeader: every slice over oldLeader is cloned with any subset of its oldLeader positions
// replaced by new leaders, unless a slice over those variables exists already.
func (p *Point) copyInvsFromLeader(oldLeader *varinfo.VarInfo, newLeaders []*varinfo.VarInfo) {
	var created []*Slice
	for _, key := range p.slices.Keys() {
		s := p.slices.Value(key)
		if !s.contains(oldLeader) {
			continue
		}
		soFar := make([]*varinfo.VarInfo, s.Arity())
		p.copyInvsHelper(oldLeader, newLeaders, s, 0, -1, soFar, &created)
	}
	for _, s := range created {
		p.slices.Store(s.key(), s)
	}
	if len(created) > 0 {
		p.log.Debug("copied invariants to new leaders",
			slog.String("leader", oldLeader.Name),
			slog.Int("slices", len(created)))
	}
}

// copyInvsHelper fills soFar position by position. At a position holding the old leader it tries
// the leader itself (loop == -1) and each new leader from loop onwards, so that new leaders are
// assigned in non-decreasing order and every combination is produced once.
func (p *Point) copyInvsHelper(oldLeader *varinfo.VarInfo, newLeaders []*varinfo.VarInfo, s *Slice, pos, loop int, soFar []*varinfo.VarInfo, created *[]*Slice) {
	if pos == len(soFar) {
		if _, ok := p.findSliceUnordered(soFar); ok {
			return
		}
		if !p.isSliceOK(soFar) {
			return
		}
		c := s.cloneAndPivot(soFar)
		if c.Len() == 0 {
			return
		}
		for _, other := range *created {
			if other.key() == c.key() {
				return
			}
		}
		p.rc.Stats.AddInstantiated(c.Arity(), c.Len())
		*created = append(*created, c)
		return
	}
	if s.vars[pos] != oldLeader {
		soFar[pos] = s.vars[pos]
		p.copyInvsHelper(oldLeader, newLeaders, s, pos+1, loop, soFar, created)
		return
	}
	for next := loop; next < len(newLeaders); next++ {
		if next == -1 {
			soFar[pos] = oldLeader
		} else {
			soFar[pos] = newLeaders[next]
		}
		p.copyInvsHelper(oldLeader, newLeaders, s, pos+1, next, soFar, created)
	}
}

// findSliceUnordered returns the slice over vars in any order.
func (p *Point) findSliceUnordered(vars []*varinfo.VarInfo) (*Slice, bool) {
	sorted := sortVars(vars)
	return p.slices.Load(keyOf(sorted))
}

// FindSlice returns the slice over the given variables, which may be in any order.
func (p *Point) FindSlice(vars ...*varinfo.VarInfo) (*Slice, bool) {
	return p.findSliceUnordered(vars)
}

// instantiateOneOf creates, or reuses, the unary slice over v and gives it a OneOf seeded with
// count samples of val.
func (p *Point) instantiateOneOf(v *varinfo.VarInfo, val any, count int) {
	s, _ := p.slices.LoadOrStore(keyOf([]*varinfo.VarInfo{v}), func() *Slice {
		return newSlice(p.Name, []*varinfo.VarInfo{v})
	})
	for _, inv := range s.invs {
		if inv.Kind() == invariant.OneOf {
			return
		}
	}
	inv := invariant.NewOneOf(p.rc.Config.Invariants.OneOfLimit)
	inv.Add([]any{val}, count)
	s.addInvariants(inv)
	p.rc.Stats.AddInstantiated(1, 1)
}

func sortVars(vars []*varinfo.VarInfo) []*varinfo.VarInfo {
	sorted := make([]*varinfo.VarInfo, len(vars))
	copy(sorted, vars)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1].Index > sorted[j].Index; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	return sorted
}
