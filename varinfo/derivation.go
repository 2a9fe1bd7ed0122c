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

package varinfo

import (
	"fmt"

	"go.uber.org/dyninv/valuetuple"
)

// DerivationKind enumerates the supported derived variables.
type DerivationKind int

const (
	// SequenceLength is size(a) for an array variable a.
	SequenceLength DerivationKind = iota
	// SequenceSubscript is a[i] (or a[i+shift]) for an array a and an integer i.
	SequenceSubscript
)

func (k DerivationKind) String() string {
	switch k {
	case SequenceLength:
		return "length"
	case SequenceSubscript:
		return "subscript"
	}
	return fmt.Sprintf("DerivationKind(%d)", int(k))
}

// Derivation records how a derived variable is computed from its base variables.
type Derivation struct {
	Kind DerivationKind
	// Bases are the variable indices of the operands: the array for SequenceLength, the array
	// and the index for SequenceSubscript.
	Bases []int
	// Shift is added to the index of a SequenceSubscript.
	Shift int64

	// missingOutOfBounds is set the first time a subscript is out of range and never cleared.
	missingOutOfBounds bool
}

// MissingOutOfBounds reports whether the derivation has ever been evaluated with an index out
// of range.
func (d *Derivation) MissingOutOfBounds() bool {
	return d.missingOutOfBounds
}

// MarkOutOfBounds sets the sticky out-of-bounds flag.
func (d *Derivation) MarkOutOfBounds() {
	d.missingOutOfBounds = true
}

// SameFormula reports whether two derivations compute the same function of their bases.
func (d *Derivation) SameFormula(o *Derivation) bool {
	return d.Kind == o.Kind && d.Shift == o.Shift && len(d.Bases) == len(o.Bases)
}

// Clone returns a copy that has not observed any out-of-bounds access yet.
func (d *Derivation) Clone() *Derivation {
	return &Derivation{Kind: d.Kind, Bases: append([]int(nil), d.Bases...), Shift: d.Shift}
}

// Compute evaluates the derivation over already-filled base values.
func (d *Derivation) Compute(vals []any, mods []valuetuple.ModCode) (any, valuetuple.ModCode) {
	mod := valuetuple.Unmodified
	for _, b := range d.Bases {
		if mods[b].IsMissing() {
			return nil, valuetuple.MissingNonsensical
		}
		if mods[b] == valuetuple.Modified {
			mod = valuetuple.Modified
		}
	}

	switch d.Kind {
	case SequenceLength:
		n := valuetuple.Len(vals[d.Bases[0]])
		if n < 0 {
			panic(fmt.Sprintf("size() applied to non-array value %v", vals[d.Bases[0]]))
		}
		return int64(n), mod
	case SequenceSubscript:
		idx, ok := vals[d.Bases[1]].(int64)
		if !ok {
			panic(fmt.Sprintf("subscript index is not an integer: %v", vals[d.Bases[1]]))
		}
		v, ok := valuetuple.Index(vals[d.Bases[0]], idx+d.Shift)
		if !ok {
			d.missingOutOfBounds = true
			return nil, valuetuple.MissingNonsensical
		}
		return v, mod
	}
	panic(fmt.Sprintf("unknown derivation kind %s", d.Kind))
}

// ComputeDerived fills the slots of all derived variables in vals and mods, in variable order,
// so a derivation may use an earlier derived variable as a base.
func ComputeDerived(vars []*VarInfo, vals []any, mods []valuetuple.ModCode) {
	for _, v := range vars {
		if v.Derived == nil {
			continue
		}
		vals[v.Index], mods[v.Index] = v.Derived.Compute(vals, mods)
	}
}
