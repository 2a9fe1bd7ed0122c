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
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/dyninv/config"
	"go.uber.org/dyninv/dyninvtest"
	"go.uber.org/dyninv/invariant"
	"go.uber.org/dyninv/runctx"
	"go.uber.org/dyninv/varinfo"
	"go.uber.org/goleak"
)

func newPoint(cfg *config.Config, vars []*varinfo.VarInfo) *Point {
	return New(runctx.ForTest(cfg), "C.m(int):::EXIT1", vars)
}

func factTexts(p *Point) []string {
	var texts []string
	for _, f := range p.Invariants() {
		texts = append(texts, f.Text)
	}
	return texts
}

func findKind(t *testing.T, s *Slice, k invariant.Kind) invariant.Invariant {
	t.Helper()
	for _, inv := range s.Invariants() {
		if inv.Kind() == k {
			return inv
		}
	}
	require.FailNowf(t, "invariant not found", "no %s in slice %s", k, s)
	return nil
}

func TestScenarioA_EqualitySplit(t *testing.T) {
	t.Parallel()

	vars := dyninvtest.Vars("a", "b")
	p := newPoint(nil, vars)
	for _, s := range [][2]int{{1, 1}, {2, 2}, {3, 3}} {
		p.Add(dyninvtest.Ints(s[0], s[1]), 1)
	}
	require.Equal(t, []EqualityGroup{{Leader: "a", Members: []string{"a", "b"}, Samples: 3}}, p.EqualityGroups())
	require.Contains(t, factTexts(p), "a == b")
	require.False(t, p.IsLeader(vars[1]))

	p.Add(dyninvtest.Ints(2, 5), 1)
	require.Empty(t, p.EqualityGroups())
	require.True(t, p.IsLeader(vars[1]))
	require.NotEqual(t, vars[0].EqualitySet, vars[1].EqualitySet)

	p.Add(dyninvtest.Ints(5, 5), 1)
	texts := factTexts(p)
	require.NotContains(t, texts, "a == b")
	require.Contains(t, texts, "a <= b")
	require.NotContains(t, texts, "a >= b")
	require.Equal(t, 5, p.NumSamples())
	p.CheckPartition()
}

func TestScenarioB_ConstantDeferred(t *testing.T) {
	t.Parallel()

	vars := dyninvtest.Vars("x", "y", "z")
	x, y, z := vars[0], vars[1], vars[2]
	p := newPoint(nil, vars)
	for i := 1; i <= 10; i++ {
		p.Add(dyninvtest.Ints(7, i, 3), 1)
		if i == 2 {
			// y stopped being constant and was paired with every constant.
			_, ok := p.FindSlice(x, y)
			require.True(t, ok)
		}
	}
	require.True(t, p.Constants().IsConstant(x))
	require.True(t, p.Constants().IsConstant(z))
	require.False(t, p.Constants().IsConstant(y))
	_, ok := p.FindSlice(x)
	require.False(t, ok, "no unary slice over a constant")
	_, ok = p.FindSlice(x, z)
	require.False(t, ok, "no slice between two constants")

	p.Add(dyninvtest.Ints(8, 11, 3), 1)
	require.False(t, p.Constants().IsConstant(x))

	unary, ok := p.FindSlice(x)
	require.True(t, ok)
	got := findKind(t, unary, invariant.OneOf)

	// The seeded candidate is in the same state as one that saw all eleven samples.
	want := invariant.NewOneOf(config.DefaultOneOfLimit)
	for i := 0; i < 10; i++ {
		want.Add([]any{int64(7)}, 1)
	}
	want.Add([]any{int64(8)}, 1)
	require.Equal(t, want, got)
	require.Equal(t, 11, got.Samples())

	pair, ok := p.FindSlice(z, x)
	require.True(t, ok)
	require.Equal(t, []*varinfo.VarInfo{x, z}, pair.Vars())
	require.Equal(t, 11, findKind(t, pair, invariant.GreaterThan).Samples())

	texts := factTexts(p)
	require.NotContains(t, texts, "x == 7")
	require.Contains(t, texts, "x one of { 7, 8 }")
	require.Contains(t, texts, "x > z")

	p.Add(dyninvtest.Ints(7, 12, 3), 1)
	require.False(t, p.Constants().IsConstant(x))
}

func TestScenarioC_AlwaysMissing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		dynamicConstants bool
	}{
		{name: "dynamic constants", dynamicConstants: true},
		{name: "no dynamic constants", dynamicConstants: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Default()
			cfg.DynamicConstants = tt.dynamicConstants
			vars := dyninvtest.Vars("x", "y")
			p := newPoint(cfg, vars)
			for i := 1; i <= 5; i++ {
				p.Add(dyninvtest.Tuple(i, nil), 1)
				p.CheckPartition()
				if tt.dynamicConstants {
					require.True(t, p.Constants().IsMissing(vars[1]))
					for _, s := range p.Slices() {
						require.NotContains(t, s.Vars(), vars[1], "slice %s", s)
					}
				}
			}
			for _, f := range p.Invariants() {
				require.NotContains(t, f.Vars, "y", f.Text)
			}
			require.NotEmpty(t, p.Invariants())
			if tt.dynamicConstants {
				require.Equal(t, 1, p.Stats().AlwaysMissing)
			}
		})
	}
}

func TestScenarioD_OutOfBounds(t *testing.T) {
	t.Parallel()

	vars := dyninvtest.Subscript(dyninvtest.Vars("a:int[]", "i"), "a", "i")
	elem := vars[2]
	p := newPoint(nil, vars)
	hasElem := func() bool {
		for _, s := range p.Slices() {
			for _, v := range s.Vars() {
				if v == elem {
					return true
				}
			}
		}
		return false
	}

	for k, i := range []int{0, 1, 2, 0, 1, 5, 0, 1, 2, 0} {
		p.Add(dyninvtest.WithDerived(vars, dyninvtest.Tuple([]int{10, 20, 30}, i, nil)), 1)
		p.CheckPartition()
		if k < 5 {
			require.False(t, elem.MissingOutOfBounds())
			require.True(t, k == 0 || hasElem(), "sample %d", k+1)
			continue
		}
		require.True(t, elem.MissingOutOfBounds())
		require.False(t, hasElem(), "sample %d", k+1)
		if k == 5 {
			continue
		}
		for _, f := range p.Invariants() {
			require.NotContains(t, f.Vars, "a[i]", f.Text)
		}
	}
	require.Equal(t, 10, p.NumSamples())
}

func TestScenarioD_MemberBeforeOutOfBounds(t *testing.T) {
	t.Parallel()

	vars := dyninvtest.Subscript(dyninvtest.Vars("a:int[]", "i"), "a", "i")
	p := newPoint(nil, vars)
	for _, i := range []int{0, 1, 2, 0, 1} {
		p.Add(dyninvtest.WithDerived(vars, dyninvtest.Tuple([]int{10, 20, 30}, i, nil)), 1)
	}
	require.Contains(t, factTexts(p), "a[i] in a")
}

// samples returns a reproducible sequence of samples over n int variables with values in
// [0, 3) and roughly one missing value in eight.
func samples(seed uint64, n, count int, missing bool) [][]any {
	r := rand.New(rand.NewPCG(seed, seed+1))
	out := make([][]any, count)
	for i := range out {
		row := make([]any, n)
		for j := range row {
			if missing && r.IntN(8) == 0 {
				continue
			}
			row[j] = r.IntN(3)
			// Keep some variables equal for a while so sets split late.
			if j > 0 && i < count/2 && r.IntN(2) == 0 {
				row[j] = row[j-1]
			}
		}
		out[i] = row
	}
	return out
}

func TestPartitionInvariant(t *testing.T) {
	t.Parallel()

	for _, setPerVar := range []bool{false, true} {
		cfg := config.Default()
		cfg.Equality.SetPerVar = setPerVar
		vars := dyninvtest.Vars("a", "b", "c", "d:double", "e", "f::1")
		p := newPoint(cfg, vars)
		for _, row := range samples(7, len(vars), 200, true) {
			if row[3] != nil {
				row[3] = float64(row[3].(int))
			}
			p.Add(dyninvtest.Tuple(row...), 1)
			require.NotPanics(t, p.CheckPartition)
			for _, s := range p.Equality().Sets() {
				for _, m := range s.Members {
					require.LessOrEqual(t, s.Leader().Index, m.Index)
				}
			}
		}
	}
}

func TestLeaderDeterminism(t *testing.T) {
	t.Parallel()

	run := func() *Point {
		vars := dyninvtest.Vars("a", "b", "c", "d", "e")
		p := newPoint(nil, vars)
		for _, row := range samples(42, len(vars), 100, true) {
			p.Add(dyninvtest.Tuple(row...), 1)
		}
		p.PostProcess()
		return p
	}
	p1, p2 := run(), run()
	require.Empty(t, cmp.Diff(p1.EqualityGroups(), p2.EqualityGroups()))
	require.Empty(t, cmp.Diff(p1.Invariants(), p2.Invariants()))
	require.Empty(t, cmp.Diff(p1.ConstantFacts(), p2.ConstantFacts()))
}

func TestFalsificationMonotonicity(t *testing.T) {
	t.Parallel()

	vars := dyninvtest.Vars("a", "b", "c", "d")
	p := newPoint(nil, vars)
	live := make(map[invariant.Invariant]bool)
	removed := make(map[invariant.Invariant]bool)
	for _, row := range samples(3, len(vars), 150, false) {
		p.Add(dyninvtest.Tuple(row...), 1)
		now := make(map[invariant.Invariant]bool)
		for _, s := range p.Slices() {
			for _, inv := range s.Invariants() {
				require.False(t, removed[inv], "falsified invariant reappeared")
				require.False(t, inv.IsFalse())
				now[inv] = true
			}
		}
		for inv := range live {
			if !now[inv] {
				require.True(t, inv.IsFalse())
				removed[inv] = true
			}
		}
		live = now
	}
	require.NotEmpty(t, removed)
}

func TestConstantMonotonicity(t *testing.T) {
	t.Parallel()

	vars := dyninvtest.Vars("a", "b", "c", "d")
	p := newPoint(nil, vars)
	varied := make([]bool, len(vars))
	for i := 0; i < 20; i++ {
		// Variable k changes value at sample 4k and returns to its old value afterwards.
		row := make([]int, len(vars))
		for k := range row {
			row[k] = 10 * (k + 1)
			if i == 4*(k+1) {
				row[k]++
			}
		}
		p.Add(dyninvtest.Ints(row...), 1)
		for k, v := range vars {
			if varied[k] {
				require.False(t, p.Constants().IsConstant(v), "variable %s at sample %d", v.Name, i+1)
			}
			varied[k] = varied[k] || !p.Constants().IsConstant(v)
		}
	}
	for k, v := range vars {
		require.Equal(t, 4*(k+1) < 20, varied[k], v.Name)
	}
}

func TestPostProcess(t *testing.T) {
	t.Parallel()

	feed := func(cfg *config.Config) (*Point, []*varinfo.VarInfo) {
		vars := dyninvtest.Vars("x", "y", "z")
		p := newPoint(cfg, vars)
		for i := 1; i <= 3; i++ {
			p.Add(dyninvtest.Ints(5, i, 3), 1)
		}
		p.PostProcess()
		return p, vars
	}
	wantConstants := []ConstantFact{
		{Var: "x", Index: 0, Value: int64(5), Samples: 3},
		{Var: "z", Index: 2, Value: int64(3), Samples: 3},
	}

	t.Run("default", func(t *testing.T) {
		t.Parallel()

		p, vars := feed(nil)
		require.Equal(t, wantConstants, p.ConstantFacts())
		_, ok := p.FindSlice(vars[0])
		require.True(t, ok)
		pair, ok := p.FindSlice(vars[0], vars[2])
		require.True(t, ok)
		require.Equal(t, 3, findKind(t, pair, invariant.GreaterThan).Samples())
		require.Contains(t, factTexts(p), "x == 5")
		require.Contains(t, factTexts(p), "x > z")

		// A second call changes nothing.
		before := p.Stats()
		p.PostProcess()
		require.Equal(t, before, p.Stats())
	})

	t.Run("one of only", func(t *testing.T) {
		t.Parallel()

		cfg := config.Default()
		cfg.PostProcess.OneOfOnly = true
		p, vars := feed(cfg)
		unary, ok := p.FindSlice(vars[0])
		require.True(t, ok)
		require.Equal(t, 1, unary.Len())
		require.Equal(t, 3, findKind(t, unary, invariant.OneOf).Samples())
		_, ok = p.FindSlice(vars[0], vars[2])
		require.False(t, ok)
	})

	t.Run("skip", func(t *testing.T) {
		t.Parallel()

		cfg := config.Default()
		cfg.PostProcess.Skip = true
		p, vars := feed(cfg)
		require.Equal(t, wantConstants, p.ConstantFacts())
		_, ok := p.FindSlice(vars[0])
		require.False(t, ok)
		require.Equal(t, "x == 5", p.ConstantFacts()[0].String())
	})
}

func TestSimpleMode(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Mode = config.ModeSimple
	vars := dyninvtest.Vars("a", "b")
	p := newPoint(cfg, vars)
	p.Add(dyninvtest.Ints(1, 1), 1)
	p.Add(dyninvtest.Ints(2, 2), 1)

	require.Nil(t, p.Equality())
	require.Nil(t, p.Constants())
	require.Empty(t, p.EqualityGroups())
	texts := factTexts(p)
	require.Contains(t, texts, "a == b")
	require.Contains(t, texts, "a <= b")
	require.Contains(t, texts, "a >= b")
	// The reflexive slices exist but are not reported.
	_, ok := p.FindSlice(vars[0], vars[0])
	require.True(t, ok)
	for _, f := range p.Invariants() {
		if len(f.Indices) > 1 {
			require.NotEqual(t, f.Indices[0], f.Indices[1], f.Text)
		}
	}
}

func TestSetPerVar(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Equality.SetPerVar = true
	cfg.DynamicConstants = false
	vars := dyninvtest.Vars("a", "b")
	p := newPoint(cfg, vars)
	require.Equal(t, 2, p.Equality().Len())
	p.Add(dyninvtest.Ints(1, 1), 1)
	p.Add(dyninvtest.Ints(2, 2), 1)
	require.Empty(t, p.EqualityGroups())
	require.Contains(t, factTexts(p), "a == b")
	st := p.Stats()
	require.Equal(t, 2, st.Slices[1])
	require.Zero(t, st.Slices[3], "sums over (1, 1, 1) and (2, 2, 2) are falsified")
}

func TestEqualitySet_Split(t *testing.T) {
	t.Parallel()

	vars := dyninvtest.Vars("a:double", "b:double", "c:double", "d:double")
	part := newPartition("P", vars, false, false)
	require.Equal(t, 1, part.Len())

	splits := part.add(dyninvtest.Tuple(1.0, 1.0, math.NaN(), nil), 1)
	require.Len(t, splits, 1)
	require.Equal(t, vars[0], splits[0].oldLeader)
	require.Len(t, splits[0].created, 2)
	nan, missing := splits[0].created[0], splits[0].created[1]
	require.Equal(t, []*varinfo.VarInfo{vars[2]}, nan.Members)
	require.Equal(t, 1, nan.Samples)
	require.Equal(t, []*varinfo.VarInfo{vars[3]}, missing.Members)
	require.Equal(t, 0, missing.Samples)
	require.Equal(t, []*varinfo.VarInfo{vars[0], vars[1]}, part.SetOf(vars[1]).Members)
	part.check(vars)

	// A missing leader does not count the sample.
	part.add(dyninvtest.Tuple(2.0, 3.0, 2.0, nil), 1)
	require.Equal(t, 4, part.Len())
	require.Equal(t, 2, part.SetOf(vars[0]).Samples)
	require.Equal(t, 2, part.SetOf(vars[1]).Samples)
	require.Equal(t, 0, part.SetOf(vars[3]).Samples)
	part.check(vars)
}

func TestEqualitySet_OutOfBoundsSingleton(t *testing.T) {
	t.Parallel()

	vars := dyninvtest.Vars("a", "b", "c")
	vars[2].Derived = &varinfo.Derivation{Kind: varinfo.SequenceLength, Bases: []int{0}}
	vars[2].Derived.MarkOutOfBounds()
	part := newPartition("P", vars, false, false)

	splits := part.add(dyninvtest.Ints(4, 4, 4), 1)
	require.Len(t, splits, 1)
	require.Len(t, splits[0].created, 1)
	require.Equal(t, []*varinfo.VarInfo{vars[2]}, splits[0].created[0].Members)
	require.Zero(t, splits[0].created[0].Samples)
	require.True(t, part.IsLeader(vars[0]))
	require.False(t, part.IsLeader(vars[1]))
}

func TestInitialPartition_Comparability(t *testing.T) {
	t.Parallel()

	vars := dyninvtest.Vars("a::1", "b::2", "c::1", "s:string", "d:double")
	part := newPartition("P", vars, false, false)
	require.Equal(t, 4, part.Len())
	require.Equal(t, part.SetOf(vars[0]), part.SetOf(vars[2]))
	require.NotEqual(t, part.SetOf(vars[0]), part.SetOf(vars[1]))

	part = newPartition("P", dyninvtest.Vars("a::1", "b::2"), false, true)
	require.Equal(t, 1, part.Len())
}

func TestInstantiateFromPairs(t *testing.T) {
	t.Parallel()

	vars := dyninvtest.Vars("p0", "p1", "p2", "p3")
	p := newPoint(nil, vars)
	p.InstantiateFromPairs([]Pair{{V1: 0, V2: 1, Samples: 5}, {V1: 1, V2: 2, Samples: 3}})
	p.CheckPartition()
	require.Equal(t, []EqualityGroup{{Leader: "p0", Members: []string{"p0", "p1", "p2"}, Samples: 3}}, p.EqualityGroups())

	require.Panics(t, func() { p.InstantiateFromPairs([]Pair{{V1: 2, V2: 1}}) })
	p.Add(dyninvtest.Ints(1, 1, 1, 1), 1)
	require.Panics(t, func() { p.InstantiateFromPairs(nil) })
}

func TestCombinedExit_OutOfBounds(t *testing.T) {
	t.Parallel()

	rc := runctx.ForTest(nil)
	childVars := dyninvtest.Subscript(dyninvtest.Vars("a:int[]", "i"), "a", "i")
	parentVars := make([]*varinfo.VarInfo, len(childVars))
	for i, v := range childVars {
		parentVars[i] = v.Clone()
	}
	parent := New(rc, "C.m():::EXIT", parentVars)
	child := New(rc, "C.m():::EXIT7", childVars)
	child.SetCombinedExit(parent)
	require.Same(t, parent, child.CombinedExit())

	child.Add(dyninvtest.WithDerived(childVars, dyninvtest.Tuple([]int{1, 2}, 0, nil)), 1)
	require.False(t, parentVars[2].MissingOutOfBounds())
	child.Add(dyninvtest.WithDerived(childVars, dyninvtest.Tuple([]int{1, 2}, 4, nil)), 1)
	require.True(t, childVars[2].MissingOutOfBounds())
	require.True(t, parentVars[2].MissingOutOfBounds())
	require.Equal(t, 2, parent.NumSamples())
	require.Equal(t, 2, child.NumSamples())

	require.Panics(t, func() { child.SetCombinedExit(New(rc, "X", dyninvtest.Vars("a"))) })
}

func TestAdd_Fatal(t *testing.T) {
	t.Parallel()

	p := newPoint(nil, dyninvtest.Vars("a", "b"))
	require.Panics(t, func() { p.Add(dyninvtest.Ints(1), 1) })
	require.Panics(t, func() { New(runctx.ForTest(nil), "P", []*varinfo.VarInfo{varinfo.New("a", 3, varinfo.Int, nil)}) })
}

func TestSlice_CloneAndPivot(t *testing.T) {
	t.Parallel()

	vars := dyninvtest.Vars("a", "b", "c")
	s := newSlice("P", []*varinfo.VarInfo{vars[1], vars[2]})
	s.addInvariants(invariant.NewOrdering(invariant.LessThan))
	// a takes the place of b and c stays: no reorder.
	c := s.cloneAndPivot([]*varinfo.VarInfo{vars[0], vars[2]})
	require.Equal(t, invariant.LessThan, c.Invariants()[0].Kind())

	// c at position 0 and a at position 1 sort to (a, c): the ordering flips.
	s2 := newSlice("P", []*varinfo.VarInfo{vars[1], vars[2]})
	s2.addInvariants(invariant.NewOrdering(invariant.LessThan))
	c2 := s2.cloneAndPivot([]*varinfo.VarInfo{vars[2], vars[0]})
	require.Equal(t, []*varinfo.VarInfo{vars[0], vars[2]}, c2.Vars())
	require.Equal(t, invariant.GreaterThan, c2.Invariants()[0].Kind())
	// The original is untouched.
	require.Equal(t, invariant.LessThan, s2.Invariants()[0].Kind())

	require.Panics(t, func() { s.addInvariants(invariant.NewOneOf(1)) })
	require.Panics(t, func() { newSlice("P", []*varinfo.VarInfo{vars[2], vars[0]}) })
}

func TestSlices_Order(t *testing.T) {
	t.Parallel()

	p := newPoint(nil, dyninvtest.Vars("x", "y", "z"))
	for i := 1; i <= 4; i++ {
		p.Add(dyninvtest.Ints(i, i*i, 10-i), 1)
	}
	keys := p.slices.Keys()
	require.Greater(t, len(keys), 1)
	// Move the first slice to the end of the stored order.
	first := p.slices.Value(keys[0])
	p.slices.Delete(keys[0])
	p.slices.Store(keys[0], first)
	stored := p.slices.Keys()

	got := p.Slices()
	require.Len(t, got, len(keys))
	require.True(t, slices.IsSortedFunc(got, func(a, b *Slice) int { return compareKeys(a.key(), b.key()) }))
	require.Equal(t, stored, p.slices.Keys())
}

func TestModBitTracker(t *testing.T) {
	t.Parallel()

	mb := NewModBitTracker(3)
	mb.Add(dyninvtest.Ints(1, 2, 3), 1)
	require.Equal(t, 1, mb.NumSets())
	mb.Add(dyninvtest.Tuple(1, nil, 3), 1)
	require.Equal(t, 2, mb.NumSets())
	mb.Add(dyninvtest.Tuple(nil, nil, 3), 1)
	require.Equal(t, 3, mb.NumSets())
	require.Equal(t, 3, mb.NumSamples())

	require.True(t, mb.Present(0, 0))
	require.False(t, mb.Present(1, 1))
	require.False(t, mb.Present(0, 2))
	require.True(t, mb.Present(2, 2))
	require.False(t, mb.SameHistory(0, 2))
	require.False(t, mb.SameHistory(0, 1))

	mb.Add(dyninvtest.Ints(1, 2, 3), 2)
	require.True(t, mb.Present(1, 4))
	require.Equal(t, 5, mb.NumSamples())
}

func TestValueSet(t *testing.T) {
	t.Parallel()

	vs := NewValueSet(2)
	vs.Add(int64(1))
	vs.Add(int64(1))
	vs.Add(int64(3))
	n, exact := vs.Size()
	require.Equal(t, 2, n)
	require.True(t, exact)
	vs.Add(int64(2))
	_, exact = vs.Size()
	require.False(t, exact)
	lo, hi, ok := vs.Range()
	require.True(t, ok)
	require.Equal(t, 1.0, lo)
	require.Equal(t, 3.0, hi)
	require.Equal(t, 4, vs.Count())

	arrays := NewValueSet(10)
	arrays.Add([]int64{1, 2})
	arrays.Add([]int64{})
	arrays.Add([]int64{1, 2, 3})
	total, longest := arrays.Elements()
	require.Equal(t, 5, total)
	require.Equal(t, 3, longest)
	_, _, ok = arrays.Range()
	require.False(t, ok)

	nan := NewValueSet(10)
	nan.Add(math.NaN())
	nan.Add(math.NaN())
	n, _ = nan.Size()
	require.Equal(t, 1, n)
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
