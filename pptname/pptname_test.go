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

package pptname

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		full      string
		class     string
		method    string
		point     string
		enter     bool
		combined  bool
		exitNN    int
		numbered  bool
		object    bool
		classPpt  bool
		family    string
		shortName string
	}{
		{
			name: "enter", full: "pkg.Stack.push(int):::ENTER",
			class: "pkg.Stack", method: "push(int)", point: "ENTER", enter: true,
			family: "pkg.Stack.push(int)", shortName: "Stack",
		},
		{
			name: "combined exit", full: "pkg.Stack.push(int):::EXIT",
			class: "pkg.Stack", method: "push(int)", point: "EXIT", combined: true,
			family: "pkg.Stack.push(int)", shortName: "Stack",
		},
		{
			name: "numbered exit", full: "pkg.Stack.pop():::EXIT22",
			class: "pkg.Stack", method: "pop()", point: "EXIT22", exitNN: 22, numbered: true,
			family: "pkg.Stack.pop()", shortName: "Stack",
		},
		{
			name: "object", full: "pkg.Stack:::OBJECT",
			class: "pkg.Stack", point: "OBJECT", object: true, family: "pkg.Stack", shortName: "Stack",
		},
		{
			name: "class", full: "Stack:::CLASS",
			class: "Stack", point: "CLASS", classPpt: true, family: "Stack", shortName: "Stack",
		},
		{
			name: "no class", full: "main(java.lang.String[]):::ENTER",
			method: "main(java.lang.String[])", point: "ENTER", enter: true, family: "main(java.lang.String[])",
		},
		{
			name: "nested parens in args", full: "a.B.f(a.C, int):::EXIT3",
			class: "a.B", method: "f(a.C, int)", point: "EXIT3", exitNN: 3, numbered: true,
			family: "a.B.f(a.C, int)", shortName: "B",
		},
		{
			name: "no tag", full: "a.B",
			class: "a.B", family: "a.B", shortName: "B",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			n, err := Parse(tt.full)
			require.NoError(t, err)
			require.Equal(t, tt.full, n.String())
			require.Equal(t, tt.class, n.Class())
			require.Equal(t, tt.method, n.Method())
			require.Equal(t, tt.point, n.Point())
			require.Equal(t, tt.enter, n.IsEnter())
			require.Equal(t, tt.combined, n.IsCombinedExit())
			require.Equal(t, tt.numbered, n.IsNumberedExit())
			require.Equal(t, tt.combined || tt.numbered, n.IsExit())
			require.Equal(t, tt.object, n.IsObject())
			require.Equal(t, tt.classPpt, n.IsClass())
			require.Equal(t, tt.family, n.Family())
			require.Equal(t, tt.shortName, n.ShortClass())
			nn, ok := n.ExitNumber()
			require.Equal(t, tt.numbered, ok)
			require.Equal(t, tt.exitNN, nn)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	for _, full := range []string{"", "   ", "a.B.f(int:::ENTER"} {
		_, err := Parse(full)
		require.Error(t, err, full)
	}
	require.Panics(t, func() { MustParse("") })
}

func TestMake(t *testing.T) {
	t.Parallel()

	n := MustParse("pkg.Stack.pop():::EXIT22")
	require.Equal(t, "pkg.Stack.pop():::ENTER", n.MakeEnter().String())
	require.Equal(t, "pkg.Stack.pop():::EXIT", n.MakeExit().String())
	require.Equal(t, "pkg.Stack.pop():::EXIT7", n.MakeExitNN(7).String())
	require.Equal(t, "pkg.Stack:::OBJECT", n.MakeObject().String())
	require.Equal(t, "pkg.Stack:::CLASS", n.MakeClass().String())
	require.True(t, n.MakeObject().IsObject())
	require.Equal(t, n.Family(), n.MakeEnter().Family())

	// Rebuilt names parse back to the same parts.
	back := MustParse(n.MakeEnter().String())
	require.Equal(t, n.MakeEnter(), back)

	noClass := MustParse("f():::EXIT1")
	require.Equal(t, "f():::ENTER", noClass.MakeEnter().String())
}

func TestIsConstructor(t *testing.T) {
	t.Parallel()

	require.True(t, MustParse("pkg.Stack.Stack(int):::ENTER").IsConstructor())
	require.True(t, MustParse("pkg.Stack.<init>():::EXIT").IsConstructor())
	require.False(t, MustParse("pkg.Stack.push(int):::ENTER").IsConstructor())
	require.False(t, MustParse("pkg.Stack:::OBJECT").IsConstructor())
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
