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

// Package varinfo describes the variables of a program point: their names, representation
// types, comparability, derivation lineage and current equality-set membership.
package varinfo

import (
	"fmt"
	"strings"
)

// NoEqualitySet is the equality-set id of a variable that has not been placed in a set yet.
const NoEqualitySet = -1

// ParentRef names the variable of a parent program point that corresponds to this one under a
// declared parent relation.
type ParentRef struct {
	// Ppt is the name of the parent program point.
	Ppt string
	// ID identifies the relation among the parent relations declared for the child point.
	ID int
	// Var is the name of the parent variable. Empty means the same name as the child variable.
	Var string
}

// VarInfo is the descriptor of one variable of a program point.
type VarInfo struct {
	// Name is the variable name as declared, e.g. "this.size", "orig(x)" or "a[i]".
	Name string
	// Index is the position of the variable within its program point, and thus within every
	// value tuple of that point.
	Index int
	// Type is the declared program type, used to locate the OBJECT point of a variable.
	Type string
	// FileRep is the rep type as written in the trace.
	FileRep RepType
	// Comparability is the comparability tag of the variable.
	Comparability Comparability
	// EqualitySet is the arena id of the equality set the variable currently belongs to, or
	// NoEqualitySet. It is owned and maintained by the program point.
	EqualitySet int
	// Derived describes how the value is computed from other variables of the same point. Nil
	// for variables that are read from the trace.
	Derived *Derivation
	// IsStaticConstant marks a variable whose value is StaticValue in every sample.
	IsStaticConstant bool
	StaticValue      any
	// PrestateOf is the name of the ENTER variable whose value this orig(...) variable takes.
	// Empty for non-prestate variables.
	PrestateOf string
	// Parents lists the declared parent relations this variable takes part in.
	Parents []ParentRef
	// CanBeMissing is set once the variable has been observed missing.
	CanBeMissing bool
}

// New returns a plain trace variable.
func New(name string, index int, rep RepType, comparability Comparability) *VarInfo {
	if comparability == nil {
		comparability = None{}
	}
	return &VarInfo{
		Name:          name,
		Index:         index,
		Type:          rep.String(),
		FileRep:       rep,
		Comparability: comparability,
		EqualitySet:   NoEqualitySet,
	}
}

// Rep returns the storage representation of the variable.
func (v *VarInfo) Rep() RepType {
	return v.FileRep.Internal()
}

// Clone returns a copy of the variable that belongs to no equality set and whose derivation has
// not observed any value yet.
func (v *VarInfo) Clone() *VarInfo {
	c := *v
	c.EqualitySet = NoEqualitySet
	c.CanBeMissing = false
	if v.Derived != nil {
		c.Derived = v.Derived.Clone()
	}
	c.Parents = append([]ParentRef(nil), v.Parents...)
	return &c
}

// MissingOutOfBounds reports whether the variable is derived and its derivation has ever hit an
// invalid index. Such a variable is nonsensical for the rest of the run.
func (v *VarInfo) MissingOutOfBounds() bool {
	return v.Derived != nil && v.Derived.MissingOutOfBounds()
}

// IsPrestate reports whether the variable holds the value of another variable at ENTER.
func (v *VarInfo) IsPrestate() bool {
	return v.PrestateOf != ""
}

// IsThis reports whether the variable is the receiver itself.
func (v *VarInfo) IsThis() bool {
	return v.Name == "this"
}

// ComparableByType reports whether the representation types allow the two variables to be
// related, ignoring comparability tags. A scalar is comparable to an array whose elements have
// its type.
func (v *VarInfo) ComparableByType(o *VarInfo) bool {
	if v.FileRep.IsArray() != o.FileRep.IsArray() {
		seq, scl := v, o
		if o.FileRep.IsArray() {
			seq, scl = o, v
		}
		return seq.FileRep.Elem() == scl.FileRep
	}
	return v.FileRep == o.FileRep
}

// Compatible reports whether the two variables may appear together in a slice: their types must
// be comparable and, unless ignoreComparability is set, so must their comparability tags.
func (v *VarInfo) Compatible(o *VarInfo, ignoreComparability bool) bool {
	if !v.ComparableByType(o) {
		return false
	}
	if v.FileRep.IsArray() != o.FileRep.IsArray() {
		if v.FileRep.IsArray() {
			return v.EltsCompatible(o, ignoreComparability)
		}
		return o.EltsCompatible(v, ignoreComparability)
	}
	return ignoreComparability || v.Comparability.Comparable(o.Comparability)
}

// EltsCompatible reports whether the elements of the array variable v are compatible with the
// scalar variable scl.
func (v *VarInfo) EltsCompatible(scl *VarInfo, ignoreComparability bool) bool {
	if !v.FileRep.IsArray() || scl.FileRep.IsArray() {
		return false
	}
	if v.FileRep.Elem() != scl.FileRep {
		return false
	}
	return ignoreComparability || v.Comparability.ElementType().Comparable(scl.Comparability)
}

func (v *VarInfo) String() string {
	return fmt.Sprintf("%s[%d]", v.Name, v.Index)
}

// PrestateName returns the name of the orig variable that holds name's value at ENTER.
func PrestateName(name string) string {
	return "orig(" + name + ")"
}

// PoststateName strips an orig(...) wrapper, returning the name unchanged if it has none.
func PoststateName(name string) string {
	if strings.HasPrefix(name, "orig(") && strings.HasSuffix(name, ")") {
		return name[len("orig(") : len(name)-1]
	}
	return name
}

// ReplaceThis substitutes arg for a leading "this" in name, so "this.f" becomes "arg.f" and
// "this" becomes "arg". Names not rooted at "this" are returned unchanged.
func ReplaceThis(name, arg string) string {
	switch {
	case name == "this":
		return arg
	case strings.HasPrefix(name, "this."):
		return arg + name[len("this"):]
	}
	return name
}

// Names returns the names of the variables.
func Names(vars []*VarInfo) []string {
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = v.Name
	}
	return names
}
