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

package invariant

// Addition holds when the integer at position Result is always the sum of the other two. The
// sum wraps on overflow like the traced integers do.
type Addition struct {
	state
	Result int
}

func (*Addition) Kind() Kind { return Sum }

func (*Addition) Arity() int { return 3 }

func (inv *Addition) Add(vals []any, count int) Status {
	checkArity(inv, len(vals))
	var ints [3]int64
	for i, v := range vals {
		n, ok := v.(int64)
		if !ok {
			return inv.observe(false, count)
		}
		ints[i] = n
	}
	a, b := inv.operands()
	return inv.observe(ints[inv.Result] == ints[a]+ints[b], count)
}

// operands returns the two positions other than Result, in ascending order.
func (inv *Addition) operands() (int, int) {
	switch inv.Result {
	case 0:
		return 1, 2
	case 1:
		return 0, 2
	}
	return 0, 1
}

func (inv *Addition) Clone() Invariant {
	c := *inv
	return &c
}

func (inv *Addition) Permute(perm []int) Invariant {
	checkPerm(perm, 3)
	inv.Result = perm[inv.Result]
	return inv
}

func (inv *Addition) Format(names []string) string {
	a, b := inv.operands()
	return names[inv.Result] + " == " + names[a] + " + " + names[b]
}

func (*Addition) isInvariant() {}
