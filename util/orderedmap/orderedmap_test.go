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

package orderedmap_test

import (
	"cmp"
	"encoding/gob"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/dyninv/util/orderedmap"
	"go.uber.org/goleak"
)

func TestLoadStore(t *testing.T) {
	t.Parallel()

	pairs := [][2]int{{1, 2}, {2, 3}, {3, 4}}
	m := orderedmap.New[int, int]()
	for _, p := range pairs {
		k, v := p[0], p[1]
		m.Store(k, v)
		loadedV, ok := m.Load(k)
		require.True(t, ok)
		require.Equal(t, v, loadedV)
		require.Equal(t, v, m.Value(k))
	}

	v, ok := m.Load(-1)
	require.False(t, ok)
	require.Empty(t, v)
	require.Empty(t, m.Value(-1))

	// Overwriting keeps the original position.
	m.Store(1, 10)
	require.Equal(t, []int{1, 2, 3}, m.Keys())
	require.Equal(t, len(pairs), m.Len())
}

func TestLoadOrStore(t *testing.T) {
	t.Parallel()

	m := orderedmap.New[string, int]()
	calls := 0
	create := func() int { calls++; return 7 }

	v, loaded := m.LoadOrStore("a", create)
	require.False(t, loaded)
	require.Equal(t, 7, v)

	v, loaded = m.LoadOrStore("a", create)
	require.True(t, loaded)
	require.Equal(t, 7, v)
	require.Equal(t, 1, calls)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	m := orderedmap.New[int, string]()
	for i := 0; i < 6; i++ {
		m.Store(i, fmt.Sprint(i))
	}

	m.Delete(2)
	m.Delete(42)
	require.Equal(t, []int{0, 1, 3, 4, 5}, m.Keys())
	_, ok := m.Load(2)
	require.False(t, ok)

	m.DeleteFunc(func(k int, _ string) bool { return k%2 == 1 })
	require.Equal(t, []int{0, 4}, m.Keys())
	require.Equal(t, 2, m.Len())

	// A deleted key that is stored again goes to the end.
	m.Store(1, "one")
	require.Equal(t, []int{0, 4, 1}, m.Keys())
}

func TestSortKeys(t *testing.T) {
	t.Parallel()

	m := orderedmap.New[string, int]()
	for _, k := range []string{"c", "a", "b"} {
		m.Store(k, len(k))
	}
	m.SortKeys(cmp.Compare[string])
	require.Equal(t, []string{"a", "b", "c"}, m.Keys())
}

func TestOrderedRange(t *testing.T) {
	t.Parallel()

	// Create a map with 100 <i, i+1> pairs to have better chance of breaking ordered range.
	pairs := make([][2]int, 0, 100)
	for i := 0; i < 100; i++ {
		pairs = append(pairs, [2]int{i, i + 1})
	}

	m := orderedmap.New[int, int]()
	for _, p := range pairs {
		m.Store(p[0], p[1])
	}

	expectedKeys := make([]int, 0, len(pairs))
	for _, p := range pairs {
		expectedKeys = append(expectedKeys, p[0])
	}

	// Run 5 concurrent subtests to ensure that the order is always the same.
	for i := 0; i < 5; i++ {
		t.Run(fmt.Sprintf("Run%d", i), func(t *testing.T) {
			t.Parallel()

			keys := make([]int, 0, len(pairs))
			m.OrderedRange(func(key int, value int) bool {
				keys = append(keys, key)
				return true
			})
			require.Equal(t, expectedKeys, keys)
		})
	}

	// Early termination.
	count := 0
	m.OrderedRange(func(int, int) bool {
		count++
		return count < 10
	})
	require.Equal(t, 10, count)
}

type I interface {
	Foo()
}

type A struct{ Number int }

func (a *A) Foo() {}

type B struct{}

func (b *B) Foo() {}

func TestGobEncoding(t *testing.T) {
	t.Parallel()

	m := orderedmap.New[A, I]()
	m.Store(A{Number: 2}, &B{})
	m.Store(A{Number: 1}, &A{Number: 5})

	b, err := m.GobEncode()
	require.NoError(t, err)
	require.NotEmpty(t, b)

	decodedMap := orderedmap.New[A, I]()
	err = decodedMap.GobDecode(b)
	require.NoError(t, err)

	require.Equal(t, m.Keys(), decodedMap.Keys())
	v, ok := decodedMap.Load(A{Number: 1})
	require.True(t, ok)
	require.IsType(t, &A{}, v)
	require.Equal(t, 5, v.(*A).Number)
	v, ok = decodedMap.Load(A{Number: 2})
	require.True(t, ok)
	require.IsType(t, &B{}, v)
}

func TestGobEncoding_Deterministic(t *testing.T) {
	t.Parallel()

	m := orderedmap.New[A, I]()
	m.Store(A{Number: 1}, &A{})
	m.Store(A{Number: 2}, &B{})

	var encoded []byte
	for i := 0; i < 5; i++ {
		b, err := m.GobEncode()
		require.NoError(t, err)
		require.NotEmpty(t, b)
		if len(encoded) == 0 {
			encoded = b
			continue
		}
		require.Equal(t, encoded, b)
	}
}

func TestGobEncode_Empty(t *testing.T) {
	t.Parallel()

	m := orderedmap.New[int, int]()
	b, err := m.GobEncode()
	require.NoError(t, err)
	require.Empty(t, b)
}

func TestMain(m *testing.M) {
	// Register structs that implement the interface I for gob encoding/decoding.
	gob.Register(&A{})
	gob.Register(&B{})

	goleak.VerifyTestMain(m)
}
