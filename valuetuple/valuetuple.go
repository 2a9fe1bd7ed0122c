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

// Package valuetuple defines the immutable snapshot of all variable values observed at a program
// point for one sample, together with the per-variable modification codes.
package valuetuple

import (
	"fmt"
	"strings"
)

// ModCode records how a variable's value relates to the previous sample and whether it is
// present at all.
type ModCode int

const (
	// Unmodified means the value is present and equal to the one seen at the previous sample.
	Unmodified ModCode = iota
	// Modified means the value is present and may differ from the previous sample.
	Modified
	// MissingNonsensical means the value does not exist for this sample, e.g., a field of a
	// null reference or an array element at an invalid index.
	MissingNonsensical
	// MissingFlow means the value was not captured for this sample.
	MissingFlow
)

// IsMissing reports whether the code denotes an absent value.
func (m ModCode) IsMissing() bool {
	return m == MissingNonsensical || m == MissingFlow
}

// Valid reports whether m is one of the defined codes.
func (m ModCode) Valid() bool {
	return m >= Unmodified && m <= MissingFlow
}

func (m ModCode) String() string {
	switch m {
	case Unmodified:
		return "unmodified"
	case Modified:
		return "modified"
	case MissingNonsensical:
		return "missing-nonsensical"
	case MissingFlow:
		return "missing-flow"
	default:
		return fmt.Sprintf("ModCode(%d)", int(m))
	}
}

// ValueTuple is one sample: a value and a modification code for every variable of a program
// point, in variable index order. A ValueTuple is never mutated after construction, so copies
// of it may share storage.
type ValueTuple struct {
	vals []any
	mods []ModCode
}

// New builds a ValueTuple from parallel value and modification code slices. The slices are
// copied, and the value of every missing variable is normalized to nil. It panics if the two
// slices differ in length or a code is undefined.
func New(vals []any, mods []ModCode) ValueTuple {
	if len(vals) != len(mods) {
		panic(fmt.Sprintf("value tuple has %d values but %d modification codes", len(vals), len(mods)))
	}
	vt := ValueTuple{vals: make([]any, len(vals)), mods: make([]ModCode, len(mods))}
	copy(vt.mods, mods)
	for i, v := range vals {
		if !mods[i].Valid() {
			panic(fmt.Sprintf("value tuple index %d has undefined modification code %d", i, mods[i]))
		}
		if mods[i].IsMissing() {
			continue
		}
		vt.vals[i] = v
	}
	return vt
}

// Len returns the number of variables in the tuple.
func (vt ValueTuple) Len() int {
	return len(vt.vals)
}

// Value returns the value of the i-th variable, nil if it is missing.
func (vt ValueTuple) Value(i int) any {
	return vt.vals[i]
}

// Mod returns the modification code of the i-th variable.
func (vt ValueTuple) Mod(i int) ModCode {
	return vt.mods[i]
}

// IsMissing reports whether the i-th variable has no value in this sample.
func (vt ValueTuple) IsMissing(i int) bool {
	return vt.mods[i].IsMissing()
}

// Values returns a copy of the values.
func (vt ValueTuple) Values() []any {
	out := make([]any, len(vt.vals))
	copy(out, vt.vals)
	return out
}

// Mods returns a copy of the modification codes.
func (vt ValueTuple) Mods() []ModCode {
	out := make([]ModCode, len(vt.mods))
	copy(out, vt.mods)
	return out
}

// Extend returns a new tuple with the given values and codes appended.
func (vt ValueTuple) Extend(vals []any, mods []ModCode) ValueTuple {
	return New(append(vt.Values(), vals...), append(vt.Mods(), mods...))
}

// Equal reports whether two tuples hold the same codes and structurally identical values.
// Floating point values are compared bit for bit, so a NaN equals an identical NaN here.
func (vt ValueTuple) Equal(o ValueTuple) bool {
	if len(vt.vals) != len(o.vals) {
		return false
	}
	for i := range vt.vals {
		if vt.mods[i] != o.mods[i] || !identical(vt.vals[i], o.vals[i]) {
			return false
		}
	}
	return true
}

// Key returns a string that is equal for two tuples iff Equal holds for them.
func (vt ValueTuple) Key() string {
	var sb strings.Builder
	for i, v := range vt.vals {
		sb.WriteByte(byte('0' + vt.mods[i]))
		writeKey(&sb, v, false)
		sb.WriteByte(';')
	}
	return sb.String()
}

func (vt ValueTuple) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range vt.vals {
		if i > 0 {
			sb.WriteString(", ")
		}
		if vt.mods[i].IsMissing() {
			sb.WriteString("<missing>")
			continue
		}
		sb.WriteString(Format(v))
	}
	sb.WriteByte(']')
	return sb.String()
}
