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

import (
	"fmt"

	"go.uber.org/dyninv/valuetuple"
)

// Equality holds when both variables always have equal values. It applies to scalars and
// arrays of the same representation.
type Equality struct {
	state
}

// NewEquality returns an equality invariant that has already observed samples samples, as
// used when reporting the members of an equality set.
func NewEquality(samples int) *Equality {
	return &Equality{state: state{samples: samples}}
}

func (*Equality) Kind() Kind { return Equal }

func (*Equality) Arity() int { return 2 }

func (inv *Equality) Add(vals []any, count int) Status {
	checkArity(inv, len(vals))
	return inv.observe(valuetuple.Equal(vals[0], vals[1]), count)
}

func (inv *Equality) Clone() Invariant {
	c := *inv
	return &c
}

func (inv *Equality) Permute(perm []int) Invariant {
	checkPerm(perm, 2)
	return inv
}

func (inv *Equality) Format(names []string) string {
	return names[0] + " == " + names[1]
}

func (*Equality) isInvariant() {}

// Inequality holds when the two scalars never have equal values.
type Inequality struct {
	state
}

func (*Inequality) Kind() Kind { return NotEqual }

func (*Inequality) Arity() int { return 2 }

func (inv *Inequality) Add(vals []any, count int) Status {
	checkArity(inv, len(vals))
	return inv.observe(!valuetuple.Equal(vals[0], vals[1]), count)
}

func (inv *Inequality) Clone() Invariant {
	c := *inv
	return &c
}

func (inv *Inequality) Permute(perm []int) Invariant {
	checkPerm(perm, 2)
	return inv
}

func (inv *Inequality) Format(names []string) string {
	return names[0] + " != " + names[1]
}

func (*Inequality) isInvariant() {}

// Ordering holds when the first numeric scalar always relates to the second by Op, which is one
// of LessThan, LessEqual, GreaterThan and GreaterEqual.
type Ordering struct {
	state
	Op Kind
}

// NewOrdering returns an ordering candidate for op. It panics if op is not an ordering kind.
func NewOrdering(op Kind) *Ordering {
	switch op {
	case LessThan, LessEqual, GreaterThan, GreaterEqual:
		return &Ordering{Op: op}
	}
	panic(fmt.Sprintf("%s is not an ordering", op))
}

func (inv *Ordering) Kind() Kind { return inv.Op }

func (*Ordering) Arity() int { return 2 }

func (inv *Ordering) Add(vals []any, count int) Status {
	checkArity(inv, len(vals))
	c, ok := valuetuple.Compare(vals[0], vals[1])
	if ok {
		switch inv.Op {
		case LessThan:
			ok = c < 0
		case LessEqual:
			ok = c <= 0
		case GreaterThan:
			ok = c > 0
		case GreaterEqual:
			ok = c >= 0
		}
	}
	return inv.observe(ok, count)
}

func (inv *Ordering) Clone() Invariant {
	c := *inv
	return &c
}

// Permute flips the operator when the two variables trade places.
func (inv *Ordering) Permute(perm []int) Invariant {
	checkPerm(perm, 2)
	if perm[0] == 0 {
		return inv
	}
	switch inv.Op {
	case LessThan:
		inv.Op = GreaterThan
	case LessEqual:
		inv.Op = GreaterEqual
	case GreaterThan:
		inv.Op = LessThan
	case GreaterEqual:
		inv.Op = LessEqual
	}
	return inv
}

func (inv *Ordering) Format(names []string) string {
	op := map[Kind]string{LessThan: " < ", LessEqual: " <= ", GreaterThan: " > ", GreaterEqual: " >= "}[inv.Op]
	return names[0] + op + names[1]
}

func (*Ordering) isInvariant() {}

// Membership holds when the scalar is always an element of the array. SeqPos is the position
// of the array variable in the slice.
type Membership struct {
	state
	SeqPos int
}

func (*Membership) Kind() Kind { return Member }

func (*Membership) Arity() int { return 2 }

func (inv *Membership) Add(vals []any, count int) Status {
	checkArity(inv, len(vals))
	return inv.observe(valuetuple.Contains(vals[inv.SeqPos], vals[1-inv.SeqPos]), count)
}

func (inv *Membership) Clone() Invariant {
	c := *inv
	return &c
}

func (inv *Membership) Permute(perm []int) Invariant {
	checkPerm(perm, 2)
	inv.SeqPos = perm[inv.SeqPos]
	return inv
}

func (inv *Membership) Format(names []string) string {
	return names[1-inv.SeqPos] + " in " + names[inv.SeqPos]
}

func (*Membership) isInvariant() {}
