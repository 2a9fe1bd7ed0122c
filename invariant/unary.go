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
	"strings"

	"go.uber.org/dyninv/valuetuple"
)

// OneOfValues holds when the variable takes at most Limit distinct values.
type OneOfValues struct {
	state
	Limit  int
	values []any
}

// NewOneOf returns a OneOf candidate that tolerates up to limit distinct values.
func NewOneOf(limit int) *OneOfValues {
	return &OneOfValues{Limit: limit}
}

func (*OneOfValues) Kind() Kind { return OneOf }

func (*OneOfValues) Arity() int { return 1 }

func (inv *OneOfValues) Add(vals []any, count int) Status {
	checkArity(inv, len(vals))
	if inv.falsified {
		return Falsified
	}
	v := vals[0]
	seen := false
	for _, e := range inv.values {
		if valuetuple.Equal(e, v) {
			seen = true
			break
		}
	}
	if !seen {
		if len(inv.values) >= inv.Limit {
			return inv.observe(false, count)
		}
		inv.values = append(inv.values, v)
	}
	return inv.observe(true, count)
}

// Values returns the distinct values seen so far, in order of first appearance.
func (inv *OneOfValues) Values() []any {
	return append([]any(nil), inv.values...)
}

func (inv *OneOfValues) Clone() Invariant {
	c := *inv
	c.values = append([]any(nil), inv.values...)
	return &c
}

func (inv *OneOfValues) Permute(perm []int) Invariant {
	checkPerm(perm, 1)
	return inv
}

func (inv *OneOfValues) Format(names []string) string {
	if len(inv.values) == 1 {
		return names[0] + " == " + valuetuple.Format(inv.values[0])
	}
	parts := make([]string, len(inv.values))
	for i, v := range inv.values {
		parts[i] = valuetuple.Format(v)
	}
	return names[0] + " one of { " + strings.Join(parts, ", ") + " }"
}

func (*OneOfValues) isInvariant() {}

// Bound tracks the minimum (Lower) or maximum (Upper) value of a numeric variable. A bound only
// widens; the one value that falsifies it is NaN, which has no order.
type Bound struct {
	state
	Upper bool
	value any
}

func (inv *Bound) Kind() Kind {
	if inv.Upper {
		return UpperBound
	}
	return LowerBound
}

func (*Bound) Arity() int { return 1 }

func (inv *Bound) Add(vals []any, count int) Status {
	checkArity(inv, len(vals))
	v := vals[0]
	c, ok := valuetuple.Compare(v, v)
	if !ok || c != 0 {
		// NaN does not order.
		return inv.observe(false, count)
	}
	if inv.value == nil {
		inv.value = v
	} else if c, _ := valuetuple.Compare(v, inv.value); (inv.Upper && c > 0) || (!inv.Upper && c < 0) {
		inv.value = v
	}
	return inv.observe(true, count)
}

// Value returns the current bound, nil before the first sample.
func (inv *Bound) Value() any { return inv.value }

func (inv *Bound) Clone() Invariant {
	c := *inv
	return &c
}

func (inv *Bound) Permute(perm []int) Invariant {
	checkPerm(perm, 1)
	return inv
}

func (inv *Bound) Format(names []string) string {
	op := " >= "
	if inv.Upper {
		op = " <= "
	}
	return names[0] + op + valuetuple.Format(inv.value)
}

func (*Bound) isInvariant() {}

// NonZeroValue holds when a scalar is never zero. For hashcodes this means never null.
type NonZeroValue struct {
	state
	Pointer bool
}

func (*NonZeroValue) Kind() Kind { return NonZero }

func (*NonZeroValue) Arity() int { return 1 }

func (inv *NonZeroValue) Add(vals []any, count int) Status {
	checkArity(inv, len(vals))
	f, ok := valuetuple.AsFloat(vals[0])
	return inv.observe(ok && f != 0, count)
}

func (inv *NonZeroValue) Clone() Invariant {
	c := *inv
	return &c
}

func (inv *NonZeroValue) Permute(perm []int) Invariant {
	checkPerm(perm, 1)
	return inv
}

func (inv *NonZeroValue) Format(names []string) string {
	if inv.Pointer {
		return names[0] + " != null"
	}
	return names[0] + " != 0"
}

func (*NonZeroValue) isInvariant() {}

// NonEmpty holds when an array always has at least one element.
type NonEmpty struct {
	state
}

func (*NonEmpty) Kind() Kind { return SeqNonEmpty }

func (*NonEmpty) Arity() int { return 1 }

func (inv *NonEmpty) Add(vals []any, count int) Status {
	checkArity(inv, len(vals))
	return inv.observe(valuetuple.Len(vals[0]) > 0, count)
}

func (inv *NonEmpty) Clone() Invariant {
	c := *inv
	return &c
}

func (inv *NonEmpty) Permute(perm []int) Invariant {
	checkPerm(perm, 1)
	return inv
}

func (inv *NonEmpty) Format(names []string) string {
	return "size(" + names[0] + ") >= 1"
}

func (*NonEmpty) isInvariant() {}
