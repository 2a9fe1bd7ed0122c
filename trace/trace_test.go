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

package trace

import (
	"io"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/dyninv/valuetuple"
	"go.uber.org/dyninv/varinfo"
	"go.uber.org/goleak"
	"gopkg.in/yaml.v3"
)

const _decls = `
points:
  - name: pkg.Stack:::OBJECT
    vars:
      - {name: this, rep: hashcode, type: pkg.Stack}
      - {name: this.items, rep: "int[]", comparability: "1[2]"}
  - name: pkg.Stack.get(int):::ENTER
    parents:
      - {kind: parent, ppt: "pkg.Stack:::OBJECT", id: 1}
    vars:
      - name: this
        rep: hashcode
        parents: [{ppt: "pkg.Stack:::OBJECT", id: 1}]
      - {name: this.items, rep: "int[]"}
      - {name: i}
      - {name: "size(this.items)", derived: {kind: length, bases: [this.items]}}
      - {name: "this.items[i-1]", derived: {kind: subscript, bases: [this.items, i], shift: -1}}
      - {name: LIMIT, static_value: 10}
  - name: pkg.Stack.get(int):::EXIT1
    vars:
      - {name: i}
      - {name: orig(i)}
      - {name: return, rep: double}
`

func TestReadDecls(t *testing.T) {
	t.Parallel()

	d, err := ReadDecls(strings.NewReader(_decls))
	require.NoError(t, err)
	require.Len(t, d.Points, 3)
	require.Equal(t, []ParentDecl{{Kind: "parent", Ppt: "pkg.Stack:::OBJECT", ID: 1}}, d.Points[1].Parents)

	object, err := d.Points[0].Build()
	require.NoError(t, err)
	require.Equal(t, "pkg.Stack", object[0].Type)
	require.Equal(t, varinfo.Hashcode, object[0].FileRep)
	require.Equal(t, varinfo.Implicit{Base: 1, Indices: []int{2}}, object[1].Comparability)

	enter, err := d.Points[1].Build()
	require.NoError(t, err)
	require.Len(t, enter, 6)
	require.Equal(t, []varinfo.ParentRef{{Ppt: "pkg.Stack:::OBJECT", ID: 1}}, enter[0].Parents)
	require.Equal(t, varinfo.Int, enter[2].FileRep)
	require.Equal(t, &varinfo.Derivation{Kind: varinfo.SequenceLength, Bases: []int{1}}, enter[3].Derived)
	require.Equal(t, &varinfo.Derivation{Kind: varinfo.SequenceSubscript, Bases: []int{1, 2}, Shift: -1}, enter[4].Derived)
	require.True(t, enter[5].IsStaticConstant)
	require.Equal(t, int64(10), enter[5].StaticValue)
	require.Equal(t, []int{0, 1, 2}, TraceVars(enter))

	exit, err := d.Points[2].Build()
	require.NoError(t, err)
	require.Equal(t, "i", exit[1].PrestateOf)
	require.False(t, exit[0].IsPrestate())
	require.Equal(t, []int{0, 2}, TraceVars(exit))
}

func TestReadDecls_Empty(t *testing.T) {
	t.Parallel()

	d, err := ReadDecls(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, d.Points)
}

func TestReadDecls_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		decls string
	}{
		{name: "unknown field", decls: "points: [{name: a, colour: red}]"},
		{name: "duplicate point", decls: "points: [{name: a}, {name: a}]"},
		{name: "unnamed point", decls: "points: [{vars: []}]"},
		{name: "not yaml", decls: "points: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ReadDecls(strings.NewReader(tt.decls))
			require.Error(t, err)
		})
	}
}

func TestBuild_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		vars string
		want string
	}{
		{name: "duplicate", vars: "[{name: x}, {name: x}]", want: "declared twice"},
		{name: "unknown rep", vars: "[{name: x, rep: complex}]", want: "unknown rep type"},
		{name: "bad comparability", vars: "[{name: x, comparability: abc}]", want: "comparability"},
		{name: "later base", vars: "[{name: n, derived: {kind: length, bases: [a]}}, {name: a, rep: 'int[]'}]", want: "not an earlier variable"},
		{name: "scalar base", vars: "[{name: a}, {name: n, derived: {kind: length, bases: [a]}}]", want: "not an array"},
		{name: "array index", vars: "[{name: a, rep: 'int[]'}, {name: e, derived: {kind: subscript, bases: [a, a]}}]", want: "not an integer"},
		{name: "wrong arity", vars: "[{name: a, rep: 'int[]'}, {name: n, derived: {kind: length, bases: [a, a]}}]", want: "takes 1 bases"},
		{name: "unknown derivation", vars: "[{name: a, rep: 'int[]'}, {name: n, derived: {kind: sum, bases: [a]}}]", want: "unknown derivation kind"},
		{name: "bad static value", vars: "[{name: x, static_value: abc}]", want: "static value"},
		{name: "missing static value", vars: "[{name: x, static_value: null}]", want: "static value is missing"},
		{name: "derived and static", vars: "[{name: a, rep: 'int[]'}, {name: n, static_value: 1, derived: {kind: length, bases: [a]}}]", want: "both derived and static"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d, err := ReadDecls(strings.NewReader("points: [{name: P, vars: " + tt.vars + "}]"))
			require.NoError(t, err)
			_, err = d.Points[0].Build()
			require.ErrorContains(t, err, tt.want)
		})
	}
}

const _samples = `
ppt: pkg.Stack.get(int):::ENTER
nonce: 1
values: [7, [1, 2, 3], 2]
---
ppt: pkg.Stack.get(int):::EXIT1
nonce: 1
count: 3
values: [2, 2.5]
---
ppt: pkg.Stack:::OBJECT
values: [7, null]
`

func TestSampleReader(t *testing.T) {
	t.Parallel()

	r := NewSampleReader(strings.NewReader(_samples))
	s, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, 1, s.Seq)
	require.Equal(t, "pkg.Stack.get(int):::ENTER", s.Ppt)
	require.True(t, s.HasNonce)
	require.Equal(t, int64(1), s.Nonce)
	require.Equal(t, 1, s.Count)
	vals, mods, bad, err := s.Decode([]varinfo.RepType{varinfo.Hashcode, varinfo.IntArray, varinfo.Int})
	require.NoError(t, err)
	require.Empty(t, bad)
	require.Equal(t, []any{int64(7), []int64{1, 2, 3}, int64(2)}, vals)
	require.Equal(t, []valuetuple.ModCode{valuetuple.Modified, valuetuple.Modified, valuetuple.Modified}, mods)

	s, err = r.Next()
	require.NoError(t, err)
	require.Equal(t, 3, s.Count)
	_, _, _, err = s.Decode([]varinfo.RepType{varinfo.Int})
	require.ErrorContains(t, err, "2 values, 1 expected")
	vals, mods, bad, err = s.Decode([]varinfo.RepType{varinfo.Int, varinfo.Int})
	require.NoError(t, err)
	require.Len(t, bad, 1)
	require.Equal(t, 1, bad[0].Index)
	require.ErrorContains(t, bad[0], "invalid int")
	require.Equal(t, []any{int64(2), nil}, vals)
	require.Equal(t, []valuetuple.ModCode{valuetuple.Modified, valuetuple.MissingNonsensical}, mods)

	s, err = r.Next()
	require.NoError(t, err)
	require.False(t, s.HasNonce)
	vals, mods, bad, err = s.Decode([]varinfo.RepType{varinfo.Hashcode, varinfo.IntArray})
	require.NoError(t, err)
	require.Empty(t, bad)
	require.Nil(t, vals[1])
	require.Equal(t, valuetuple.MissingNonsensical, mods[1])

	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestSampleReader_Errors(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		"values: [1]",
		"ppt: P\ncount: -1",
		"ppt: P\nextra: 1",
		"ppt: [",
	} {
		_, err := NewSampleReader(strings.NewReader(in)).Next()
		require.Error(t, err, in)
		require.NotErrorIs(t, err, io.EOF)
	}
}

func node(t *testing.T, s string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(s), &doc))
	return doc.Content[0]
}

func TestDecodeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		rep  varinfo.RepType
		want any
		mod  valuetuple.ModCode
	}{
		{in: "42", rep: varinfo.Int, want: int64(42), mod: valuetuple.Modified},
		{in: "0x1f", rep: varinfo.Int, want: int64(31), mod: valuetuple.Modified},
		{in: "-3", rep: varinfo.Hashcode, want: int64(-3), mod: valuetuple.Modified},
		{in: "true", rep: varinfo.Boolean, want: int64(1), mod: valuetuple.Modified},
		{in: "0", rep: varinfo.Boolean, want: int64(0), mod: valuetuple.Modified},
		{in: "1.5", rep: varinfo.Double, want: 1.5, mod: valuetuple.Modified},
		{in: "3", rep: varinfo.Double, want: 3.0, mod: valuetuple.Modified},
		{in: "-.inf", rep: varinfo.Double, want: math.Inf(-1), mod: valuetuple.Modified},
		{in: "Infinity", rep: varinfo.Double, want: math.Inf(1), mod: valuetuple.Modified},
		{in: "hello", rep: varinfo.String, want: "hello", mod: valuetuple.Modified},
		{in: "'null'", rep: varinfo.String, want: "null", mod: valuetuple.Modified},
		{in: "[1.5, 2]", rep: varinfo.DoubleArray, want: []float64{1.5, 2}, mod: valuetuple.Modified},
		{in: "[a, b]", rep: varinfo.StringArray, want: []string{"a", "b"}, mod: valuetuple.Modified},
		{in: "[true, false]", rep: varinfo.BooleanArray, want: []int64{1, 0}, mod: valuetuple.Modified},
		{in: "[]", rep: varinfo.IntArray, want: []int64{}, mod: valuetuple.Modified},
		{in: "null", rep: varinfo.Int, mod: valuetuple.MissingNonsensical},
		{in: "~", rep: varinfo.IntArray, mod: valuetuple.MissingNonsensical},
		{in: "!nonsensical", rep: varinfo.Int, mod: valuetuple.MissingNonsensical},
		{in: "!flow", rep: varinfo.Double, mod: valuetuple.MissingFlow},
	}
	for _, tt := range tests {
		v, mod, err := DecodeValue(node(t, tt.in), tt.rep)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.mod, mod, tt.in)
		require.Equal(t, tt.want, v, tt.in)
	}

	v, _, err := DecodeValue(node(t, ".nan"), varinfo.Double)
	require.NoError(t, err)
	require.True(t, math.IsNaN(v.(float64)))
	v, _, err = DecodeValue(node(t, "NaN"), varinfo.Double)
	require.NoError(t, err)
	require.True(t, math.IsNaN(v.(float64)))
}

func TestDecodeValue_Errors(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		in  string
		rep varinfo.RepType
	}{
		{in: "abc", rep: varinfo.Int},
		{in: "1.5", rep: varinfo.Int},
		{in: "2.5", rep: varinfo.Hashcode},
		{in: "'5'", rep: varinfo.Int},
		{in: "[1, 2.9]", rep: varinfo.IntArray},
		{in: "2", rep: varinfo.Boolean},
		{in: "x", rep: varinfo.Double},
		{in: "[1, 2]", rep: varinfo.Int},
		{in: "5", rep: varinfo.IntArray},
		{in: "[1, x]", rep: varinfo.IntArray},
		{in: "[[1]]", rep: varinfo.IntArray},
	} {
		_, _, err := DecodeValue(node(t, tt.in), tt.rep)
		require.Error(t, err, tt.in)
	}
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
