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

	"go.uber.org/dyninv/varinfo"
)

// Factory creates the candidate invariants for a slice from the representation types of its
// variables.
type Factory struct {
	disabled   map[Kind]bool
	oneOfLimit int
}

// NewFactory returns a factory that never creates the disabled kinds and whose OneOf
// candidates keep up to oneOfLimit values.
func NewFactory(disabled []Kind, oneOfLimit int) *Factory {
	f := &Factory{disabled: make(map[Kind]bool, len(disabled)), oneOfLimit: oneOfLimit}
	for _, k := range disabled {
		f.disabled[k] = true
	}
	return f
}

// Instantiate returns fresh candidates over vars, which must hold one to three variables in
// slice order.
func (f *Factory) Instantiate(vars []*varinfo.VarInfo) []Invariant {
	var invs []Invariant
	switch len(vars) {
	case 1:
		invs = f.unary(vars[0])
	case 2:
		invs = f.binary(vars[0], vars[1])
	case 3:
		invs = f.ternary(vars[0], vars[1], vars[2])
	default:
		panic(fmt.Sprintf("cannot instantiate invariants over %d variables", len(vars)))
	}
	enabled := invs[:0]
	for _, inv := range invs {
		if !f.disabled[inv.Kind()] {
			enabled = append(enabled, inv)
		}
	}
	return enabled
}

func (f *Factory) unary(v *varinfo.VarInfo) []Invariant {
	invs := []Invariant{NewOneOf(f.oneOfLimit)}
	switch {
	case v.FileRep.IsArray():
		invs = append(invs, &NonEmpty{})
	case v.FileRep == varinfo.Hashcode:
		invs = append(invs, &NonZeroValue{Pointer: true})
	case v.FileRep.IsNumeric():
		invs = append(invs, &Bound{}, &Bound{Upper: true}, &NonZeroValue{})
	}
	return invs
}

func (f *Factory) binary(v1, v2 *varinfo.VarInfo) []Invariant {
	switch {
	case v1.FileRep.IsArray() && v2.FileRep.IsArray():
		if v1.FileRep != v2.FileRep {
			return nil
		}
		return []Invariant{&Equality{}}
	case v1.FileRep.IsArray():
		return []Invariant{&Membership{SeqPos: 0}}
	case v2.FileRep.IsArray():
		return []Invariant{&Membership{SeqPos: 1}}
	case v1.FileRep != v2.FileRep:
		return nil
	}
	invs := []Invariant{&Equality{}, &Inequality{}}
	if v1.FileRep.IsNumeric() {
		invs = append(invs,
			NewOrdering(LessThan), NewOrdering(LessEqual),
			NewOrdering(GreaterThan), NewOrdering(GreaterEqual))
	}
	return invs
}

func (f *Factory) ternary(v1, v2, v3 *varinfo.VarInfo) []Invariant {
	for _, v := range []*varinfo.VarInfo{v1, v2, v3} {
		if v.FileRep != varinfo.Int {
			return nil
		}
	}
	return []Invariant{&Addition{Result: 0}, &Addition{Result: 1}, &Addition{Result: 2}}
}
