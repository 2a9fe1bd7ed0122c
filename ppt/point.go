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

// Package ppt implements program points: the variables, equality partition, dynamic constants
// and slices of candidate invariants of one location in the monitored program, and the
// per-sample algorithm that keeps them up to date.
package ppt

import (
	"log/slog"
	"slices"

	"go.uber.org/dyninv/config"
	"go.uber.org/dyninv/diagnostic"
	"go.uber.org/dyninv/runctx"
	"go.uber.org/dyninv/util/orderedmap"
	"go.uber.org/dyninv/valuetuple"
	"go.uber.org/dyninv/varinfo"
)

// Point is one program point. It is not safe for concurrent use: all samples of a point, and of
// the numbered exits that feed its combined exit, must be applied from one goroutine in trace
// order.
type Point struct {
	Name string

	rc   *runctx.Context
	log  *slog.Logger
	vars []*varinfo.VarInfo

	numSamples int
	// equality is nil in simple mode.
	equality *EqualityPartition
	// constants is created by the first sample when dynamic constants are enabled.
	constants *DynamicConstants
	slices    *orderedmap.OrderedMap[sliceKey, *Slice]

	// combinedExit, set on numbered exits, receives every sample of this point first.
	combinedExit *Point

	modBits   *ModBitTracker
	valueSets []*ValueSet

	postProcessed bool
	// finalConstants are the variables still constant when the point was post-processed.
	finalConstants []ConstantFact
}

// New creates a point over vars, whose indices must be 0 to len(vars)-1 in order. The point
// takes ownership of the variables and sets their equality-set ids.
func New(rc *runctx.Context, name string, vars []*varinfo.VarInfo) *Point {
	for i, v := range vars {
		if v.Index != i {
			panic(diagnostic.Fatalf(name, v.Name, "variable has index %d at position %d", v.Index, i))
		}
	}
	p := &Point{
		Name:      name,
		rc:        rc,
		log:       rc.PointLogger(name),
		vars:      vars,
		slices:    orderedmap.New[sliceKey, *Slice](),
		modBits:   NewModBitTracker(len(vars)),
		valueSets: make([]*ValueSet, len(vars)),
	}
	for i := range p.valueSets {
		p.valueSets[i] = NewValueSet(config.ValueSetLimit)
	}
	if rc.Config.Optimized() {
		p.equality = newPartition(name, vars, rc.Config.Equality.SetPerVar, rc.Config.IgnoreComparability)
	}
	return p
}

// SetCombinedExit makes parent the combined exit of this numbered exit. Both points must have
// the same variables.
func (p *Point) SetCombinedExit(parent *Point) {
	if len(parent.vars) != len(p.vars) {
		panic(diagnostic.Fatalf(p.Name, "", "combined exit %s has %d variables, numbered exit has %d",
			parent.Name, len(parent.vars), len(p.vars)))
	}
	for i, v := range p.vars {
		if parent.vars[i].Name != v.Name {
			panic(diagnostic.Fatalf(p.Name, v.Name, "combined exit %s has %s at the same position",
				parent.Name, parent.vars[i].Name))
		}
	}
	p.combinedExit = parent
}

// CombinedExit returns the combined exit this point feeds, or nil.
func (p *Point) CombinedExit() *Point {
	return p.combinedExit
}

// Vars returns the variables of the point, in index order.
func (p *Point) Vars() []*varinfo.VarInfo {
	return p.vars
}

// Var returns the variable with the given name.
func (p *Point) Var(name string) (*varinfo.VarInfo, bool) {
	for _, v := range p.vars {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

// NumSamples returns the number of samples applied to the point.
func (p *Point) NumSamples() int {
	return p.numSamples
}

// Equality returns the equality partition, nil in simple mode.
func (p *Point) Equality() *EqualityPartition {
	return p.equality
}

// Constants returns the dynamic constants tracker, nil before the first sample or when the
// optimization is off.
func (p *Point) Constants() *DynamicConstants {
	return p.constants
}

// ModBits returns the presence history of the variables.
func (p *Point) ModBits() *ModBitTracker {
	return p.modBits
}

// ValueSet returns the value summary of variable i.
func (p *Point) ValueSet(i int) *ValueSet {
	return p.valueSets[i]
}

// Slices returns the live slices ordered by arity and variable indices.
func (p *Point) Slices() []*Slice {
	keys := p.slices.Keys()
	slices.SortFunc(keys, compareKeys)
	out := make([]*Slice, len(keys))
	for i, key := range keys {
		out[i] = p.slices.Value(key)
	}
	return out
}

// IsLeader reports whether v leads its equality set.
func (p *Point) IsLeader(v *varinfo.VarInfo) bool {
	return p.isLeader(v)
}

// Add applies count occurrences of a sample. The tuple must hold a slot for every variable,
// with derived, prestate and static constant slots already filled in.
func (p *Point) Add(vt valuetuple.ValueTuple, count int) {
	if vt.Len() != len(p.vars) {
		panic(diagnostic.Fatalf(p.Name, "", "sample has %d values, point has %d variables", vt.Len(), len(p.vars)))
	}
	if len(p.vars) == 0 {
		return
	}

	if p.combinedExit != nil {
		p.combinedExit.propagateOutOfBounds(p, vt)
		p.combinedExit.Add(vt, count)
	}

	cfg := p.rc.Config
	if p.numSamples == 0 {
		switch {
		case !cfg.Optimized():
			p.instantiateSimple()
		case !cfg.DynamicConstants:
			p.instantiateViewsAndInvariants()
		}
	}

	if p.equality != nil {
		for _, sp := range p.equality.add(vt, count) {
			p.rc.Stats.EqualitySplits.Inc()
			var newLeaders []*varinfo.VarInfo
			for _, s := range sp.created {
				if !p.isMissing(s.Leader()) {
					newLeaders = append(newLeaders, s.Leader())
				}
			}
			p.log.Debug("equality set split",
				slog.String("leader", sp.oldLeader.Name),
				slog.Int("sets", len(sp.created)))
			if len(newLeaders) > 0 {
				p.copyInvsFromLeader(sp.oldLeader, newLeaders)
			}
		}
	}

	if cfg.Optimized() && cfg.DynamicConstants {
		if p.constants == nil {
			p.constants = newDynamicConstants(p)
		}
		p.constants.add(vt, count)
	}

	p.numSamples += count
	p.modBits.Add(vt, count)
	for i, vs := range p.valueSets {
		if vt.IsMissing(i) {
			p.vars[i].CanBeMissing = true
			continue
		}
		vs.Add(vt.Value(i))
	}

	var dead []sliceKey
	p.slices.OrderedRange(func(key sliceKey, s *Slice) bool {
		if s.Len() > 0 {
			if n := s.add(vt, count); n > 0 {
				p.rc.Stats.AddFalsified(s.Arity(), n)
			}
		}
		if s.Len() == 0 {
			dead = append(dead, key)
		}
		return true
	})
	for _, key := range dead {
		p.slices.Delete(key)
	}
}

// propagateOutOfBounds marks the variables of this combined exit out of bounds where the numbered
// exit child has found them out of bounds in this sample.
func (p *Point) propagateOutOfBounds(child *Point, vt valuetuple.ValueTuple) {
	for i, cv := range child.vars {
		if !cv.MissingOutOfBounds() || vt.Mod(i) != valuetuple.MissingNonsensical {
			continue
		}
		if pv := p.vars[i]; pv.Derived != nil && !pv.Derived.MissingOutOfBounds() {
			pv.Derived.MarkOutOfBounds()
			p.log.Debug("out of bounds from numbered exit",
				slog.String("var", pv.Name), slog.String("child", child.Name))
		}
	}
}

// PostProcess runs once the trace is exhausted. It records the variables still constant and,
// unless configured to skip, instantiates invariants over them.
func (p *Point) PostProcess() {
	if p.postProcessed {
		return
	}
	p.postProcessed = true
	if p.constants == nil {
		return
	}
	for _, v := range p.constants.Constants() {
		c := p.constants.all[v.Index]
		p.finalConstants = append(p.finalConstants, ConstantFact{
			Var:     v.Name,
			Index:   v.Index,
			Value:   c.val,
			Samples: c.count,
		})
	}
	if p.rc.Config.PostProcess.Skip {
		return
	}
	p.constants.postProcess(p.rc.Config.PostProcess.OneOfOnly)
}

// InstantiateFromPairs replaces the equality partition of a point without samples by the one
// implied by pairs, each an equality observed at the point's children expressed over this
// point's variables.
func (p *Point) InstantiateFromPairs(pairs []Pair) {
	if p.numSamples > 0 {
		panic(diagnostic.Fatalf(p.Name, "", "cannot merge equalities into a point with %d samples", p.numSamples))
	}
	if p.equality == nil {
		return
	}
	for _, pr := range pairs {
		if pr.V1 >= pr.V2 || pr.V2 >= len(p.vars) {
			panic(diagnostic.Fatalf(p.Name, "", "invalid equality pair (%d, %d)", pr.V1, pr.V2))
		}
	}
	p.equality = fromPairs(p.Name, p.vars, pairs)
}

// MergeMissing marks as always missing every variable for which present returns false. It is
// used on a parent without samples before equalities are merged into it.
func (p *Point) MergeMissing(present func(v *varinfo.VarInfo) bool) {
	if p.constants == nil {
		p.constants = newDynamicConstants(p)
	}
	p.constants.merge(present)
}

// CheckPartition panics unless the equality sets partition the variables.
func (p *Point) CheckPartition() {
	if p.equality != nil {
		p.equality.check(p.vars)
	}
}
