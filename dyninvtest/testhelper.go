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

// Package dyninvtest implements utility functions for tests.
package dyninvtest

import (
	"fmt"
	"strings"

	"go.uber.org/dyninv/valuetuple"
	"go.uber.org/dyninv/varinfo"
)

// Vars builds variables from "name:rep" or "name:rep:comparability" descriptors, indexed in order.
// The rep defaults to int. It panics on a malformed descriptor.
func Vars(descs ...string) []*varinfo.VarInfo {
	vars := make([]*varinfo.VarInfo, len(descs))
	for i, desc := range descs {
		parts := strings.Split(desc, ":")
		rep := varinfo.Int
		if len(parts) > 1 && parts[1] != "" {
			r, err := varinfo.ParseRepType(parts[1])
			if err != nil {
				panic(err)
			}
			rep = r
		}
		var cmp varinfo.Comparability
		if len(parts) > 2 {
			c, err := varinfo.ParseComparability(parts[2])
			if err != nil {
				panic(err)
			}
			cmp = c
		}
		vars[i] = varinfo.New(parts[0], i, rep, cmp)
	}
	return vars
}

// Length appends size(array) to vars, derived from the variable named array.
func Length(vars []*varinfo.VarInfo, array string) []*varinfo.VarInfo {
	a := mustFind(vars, array)
	v := varinfo.New("size("+array+")", len(vars), varinfo.Int, nil)
	v.Derived = &varinfo.Derivation{Kind: varinfo.SequenceLength, Bases: []int{a.Index}}
	return append(vars, v)
}

// Subscript appends array[index] to vars, derived from the two named variables.
func Subscript(vars []*varinfo.VarInfo, array, index string) []*varinfo.VarInfo {
	a, i := mustFind(vars, array), mustFind(vars, index)
	v := varinfo.New(array+"["+index+"]", len(vars), a.FileRep.Elem(), a.Comparability.ElementType())
	v.Derived = &varinfo.Derivation{Kind: varinfo.SequenceSubscript, Bases: []int{a.Index, i.Index}}
	return append(vars, v)
}

func mustFind(vars []*varinfo.VarInfo, name string) *varinfo.VarInfo {
	for _, v := range vars {
		if v.Name == name {
			return v
		}
	}
	panic(fmt.Sprintf("no variable %q", name))
}

// Missing marks a value position of Tuple as missing with the given code.
type Missing valuetuple.ModCode

// Nonsensical and Flow are the two missing markers accepted by Tuple. A plain nil is the same as
// Nonsensical.
const (
	Nonsensical = Missing(valuetuple.MissingNonsensical)
	Flow        = Missing(valuetuple.MissingFlow)
)

// Tuple builds a sample. Go ints become int64, []int becomes []int64, nil and Missing values
// are missing, everything else is passed through and marked modified.
func Tuple(vals ...any) valuetuple.ValueTuple {
	out := make([]any, len(vals))
	mods := make([]valuetuple.ModCode, len(vals))
	for i, v := range vals {
		mods[i] = valuetuple.Modified
		switch x := v.(type) {
		case nil:
			mods[i] = valuetuple.MissingNonsensical
		case Missing:
			mods[i] = valuetuple.ModCode(x)
		case int:
			out[i] = int64(x)
		case bool:
			out[i] = int64(0)
			if x {
				out[i] = int64(1)
			}
		case []int:
			arr := make([]int64, len(x))
			for j, e := range x {
				arr[j] = int64(e)
			}
			out[i] = arr
		default:
			out[i] = v
		}
	}
	return valuetuple.New(out, mods)
}

// WithDerived returns a copy of vt with the slots of the derived variables among vars computed,
// as the engine does before applying a sample.
func WithDerived(vars []*varinfo.VarInfo, vt valuetuple.ValueTuple) valuetuple.ValueTuple {
	vals, mods := vt.Values(), vt.Mods()
	varinfo.ComputeDerived(vars, vals, mods)
	return valuetuple.New(vals, mods)
}

// Ints builds a sample of int64 values, one per argument.
func Ints(vals ...int) valuetuple.ValueTuple {
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	return Tuple(args...)
}
