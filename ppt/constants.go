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
	"go.uber.org/dyninv/varinfo"
	"golang.org/x/tools/container/intsets"
)

// constant is the record kept for one variable.
type constant struct {
	v *varinfo.VarInfo
	// val and count are the single value seen so far and how often. They are kept after the
	// variable stops being constant, to seed the invariants created at that point.
	val           any
	count         int
	alwaysMissing bool
	constant      bool
	// prevConstant and prevMissing hold for the duration of the sample in which the variable
	// left the corresponding state.
	prevConstant bool
	prevMissing  bool
}

// DynamicConstants tracks, for one point, which variables have only ever had one value and
// which have never had a value. Invariants over such variables are deferred until the variable
// changes, at which point they are created and seeded with the constant's history.
type DynamicConstants struct {
	p       *Point
	all     []*constant
	cons    []*constant
	missing []*constant
	samples int
}

func newDynamicConstants(p *Point) *DynamicConstants {
	dc := &DynamicConstants{p: p, all: make([]*constant, len(p.vars))}
	for i, v := range p.vars {
		c := &constant{v: v, alwaysMissing: true}
		dc.all[i] = c
		dc.missing = append(dc.missing, c)
	}
	return dc
}

// add applies a sample and instantiates the slices that the transitions of this sample make
// relevant.
func (dc *DynamicConstants) add(vt valuetuple.ValueTuple, count int) {
	var nonCons, nonMissing []*constant

	cons := dc.cons[:0]
	for _, c := range dc.cons {
		if vt.IsMissing(c.v.Index) || !valuetuple.Equal(c.val, vt.Value(c.v.Index)) {
			c.constant = false
			c.prevConstant = true
			nonCons = append(nonCons, c)
			continue
		}
		c.count += count
		cons = append(cons, c)
	}
	dc.cons = cons

	missing := dc.missing[:0]
	for _, c := range dc.missing {
		// An out-of-bounds variable stays missing for good.
		if c.v.MissingOutOfBounds() || vt.IsMissing(c.v.Index) {
			missing = append(missing, c)
			continue
		}
		c.alwaysMissing = false
		if dc.samples == 0 {
			c.val = vt.Value(c.v.Index)
			c.count = count
			c.constant = true
			dc.cons = append(dc.cons, c)
		} else {
			c.prevMissing = true
			nonMissing = append(nonMissing, c)
		}
	}
	dc.missing = missing
	dc.samples += count

	if len(nonCons) > 0 {
		dc.p.rc.Stats.ConstantsPromoted.Add(float64(len(nonCons)))
	}
	dc.instantiateNewViews(nonCons, nonMissing)

	for _, c := range nonCons {
		c.prevConstant = false
	}
	for _, c := range nonMissing {
		c.prevMissing = false
	}
}

// instantiateNewViews creates slices between the newly non-constant variables and every
// constant or newly non-constant one, and between the newly present variables and every
// variable.
func (dc *DynamicConstants) instantiateNewViews(nonCons, nonMissing []*constant) {
	if len(nonCons) > 0 {
		list2 := make([]*constant, 0, len(dc.cons)+len(nonCons))
		list2 = append(list2, dc.cons...)
		list2 = append(list2, nonCons...)
		dc.instantiateViews(nonCons, list2)
	}
	if len(nonMissing) > 0 {
		dc.instantiateViews(nonMissing, dc.all)
	}
}

// instantiateViews creates every slice over leaders drawn once from list1 and otherwise from
// list2, seeded with the constant values where all of them are known. A combination reachable
// in more than one order is only built with its variables in ascending index order.
func (dc *DynamicConstants) instantiateViews(list1, list2 []*constant) {
	p := dc.p
	var leaders1, leaders2 []*constant
	var in1 intsets.Sparse
	for _, c := range list1 {
		if p.isLeader(c.v) && !in1.Has(c.v.Index) {
			in1.Insert(c.v.Index)
			leaders1 = append(leaders1, c)
		}
	}
	var in2 intsets.Sparse
	for _, c := range list2 {
		if p.isLeader(c.v) && !in2.Has(c.v.Index) {
			in2.Insert(c.v.Index)
			leaders2 = append(leaders2, c)
		}
	}

	var views []*Slice
	for _, c := range leaders1 {
		if !p.isSliceOK1(c.v) {
			continue
		}
		views = append(views, dc.view(c))
	}

	for _, c1 := range leaders1 {
		for _, c2 := range leaders2 {
			a, b := c1, c2
			if c2.v.Index < c1.v.Index {
				if in1.Has(c2.v.Index) {
					continue
				}
				a, b = c2, c1
			}
			if !p.isSliceOK2(a.v, b.v) {
				continue
			}
			views = append(views, dc.view(a, b))
		}
	}

	for _, c1 := range leaders1 {
		for _, c2 := range leaders2 {
			if c2.v.Index < c1.v.Index && in1.Has(c2.v.Index) {
				continue
			}
			for _, c3 := range leaders2 {
				if c3.v.Index < c2.v.Index || (c3.v.Index < c1.v.Index && in1.Has(c3.v.Index)) {
					continue
				}
				trio := sortConstants(c1, c2, c3)
				if !p.isSliceOK3(trio[0].v, trio[1].v, trio[2].v) {
					continue
				}
				views = append(views, dc.view(trio[:]...))
			}
		}
	}

	p.addViews(views)
}

// view creates a slice over the variables of cs, which are in index order, and seeds it with
// their values when every one of them has a recorded value. Variables that are still constant
// have already counted the current sample, so the seed uses the smallest count: the number of
// samples before this one in which all the values held together.
func (dc *DynamicConstants) view(cs ...*constant) *Slice {
	vars := make([]*varinfo.VarInfo, len(cs))
	vals := make([]any, len(cs))
	count := cs[0].count
	for i, c := range cs {
		vars[i] = c.v
		vals[i] = c.val
		count = min(count, c.count)
	}
	s := dc.p.instantiateSlice(vars)
	if count > 0 {
		dc.p.rc.Stats.AddFalsified(len(cs), s.seed(vals, count))
	}
	return s
}

func sortConstants(c1, c2, c3 *constant) [3]*constant {
	t := [3]*constant{c1, c2, c3}
	if t[0].v.Index > t[1].v.Index {
		t[0], t[1] = t[1], t[0]
	}
	if t[1].v.Index > t[2].v.Index {
		t[1], t[2] = t[2], t[1]
	}
	if t[0].v.Index > t[1].v.Index {
		t[0], t[1] = t[1], t[0]
	}
	return t
}

// IsConstant reports whether v has had a single value in every sample so far.
func (dc *DynamicConstants) IsConstant(v *varinfo.VarInfo) bool {
	return dc.all[v.Index].constant
}

// IsPrevConstant reports whether v is constant or stopped being constant during the current
// sample.
func (dc *DynamicConstants) IsPrevConstant(v *varinfo.VarInfo) bool {
	c := dc.all[v.Index]
	return c.constant || c.prevConstant
}

// IsMissing reports whether v has been missing in every sample so far.
func (dc *DynamicConstants) IsMissing(v *varinfo.VarInfo) bool {
	return dc.all[v.Index].alwaysMissing
}

// IsPrevMissing reports whether v is always missing or became present during the current
// sample.
func (dc *DynamicConstants) IsPrevMissing(v *varinfo.VarInfo) bool {
	c := dc.all[v.Index]
	return c.alwaysMissing || c.prevMissing
}

// Value returns the constant value of v, if v is or just was constant.
func (dc *DynamicConstants) Value(v *varinfo.VarInfo) (any, bool) {
	c := dc.all[v.Index]
	if c.constant || c.prevConstant {
		return c.val, true
	}
	return nil, false
}

// Constants returns the variables that are still constant, in the order they became so.
func (dc *DynamicConstants) Constants() []*varinfo.VarInfo {
	vars := make([]*varinfo.VarInfo, len(dc.cons))
	for i, c := range dc.cons {
		vars[i] = c.v
	}
	return vars
}

// LeaderCount returns the number of constants that lead their equality set.
func (dc *DynamicConstants) LeaderCount() int {
	n := 0
	for _, c := range dc.cons {
		if dc.p.isLeader(c.v) {
			n++
		}
	}
	return n
}

// postProcess handles the variables still constant at the end of the run. By default every one
// becomes non-constant and the slices between them are created, so their relations are
// reported. With oneOfOnly only a seeded OneOf is created per constant leader.
func (dc *DynamicConstants) postProcess(oneOfOnly bool) {
	if oneOfOnly {
		for _, c := range dc.cons {
			if dc.p.isLeader(c.v) {
				dc.p.instantiateOneOf(c.v, c.val, c.count)
			}
		}
		return
	}
	nonCons := dc.cons
	for _, c := range nonCons {
		c.constant = false
		c.prevConstant = true
	}
	dc.cons = nil
	dc.instantiateNewViews(nonCons, nil)
}

// merge recomputes the always-missing records of a parent that has no samples of its own: a
// parent variable is always missing iff no child has ever seen its counterpart.
func (dc *DynamicConstants) merge(presentInChild func(v *varinfo.VarInfo) bool) {
	dc.cons = nil
	dc.missing = dc.missing[:0]
	for _, c := range dc.all {
		c.constant = false
		c.alwaysMissing = !presentInChild(c.v)
		if c.alwaysMissing {
			dc.missing = append(dc.missing, c)
		}
	}
}
