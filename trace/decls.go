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

// Package trace reads the two inputs of a run: a YAML declaration file listing the program
// points and their variables, and a stream of YAML documents holding one sample each.
package trace

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/dyninv/varinfo"
	"gopkg.in/yaml.v3"
)

// Decls is the content of a declaration file.
type Decls struct {
	Points []PointDecl `yaml:"points"`
}

// PointDecl declares one program point.
type PointDecl struct {
	Name string `yaml:"name"`
	// Parents are the declared parent relations of the point.
	Parents []ParentDecl `yaml:"parents,omitempty"`
	Vars    []VarDecl    `yaml:"vars"`
}

// ParentDecl is one declared parent relation.
type ParentDecl struct {
	// Kind is a relation kind name such as "parent" or "user".
	Kind string `yaml:"kind"`
	Ppt  string `yaml:"ppt"`
	ID   int    `yaml:"id"`
}

// VarDecl declares one variable.
type VarDecl struct {
	Name string `yaml:"name"`
	// Type is the declared program type. It defaults to the rep type.
	Type string `yaml:"type,omitempty"`
	// Rep is the representation type, e.g. "int" or "double[]". It defaults to int.
	Rep           string          `yaml:"rep,omitempty"`
	Comparability string          `yaml:"comparability,omitempty"`
	Parents       []VarParentDecl `yaml:"parents,omitempty"`
	Derived       *DerivedDecl    `yaml:"derived,omitempty"`
	// StaticValue makes the variable a static constant with this value. A zero Kind means the
	// field is absent.
	StaticValue yaml.Node `yaml:"static_value,omitempty"`
}

// VarParentDecl names the parent variable of a variable under a declared relation.
type VarParentDecl struct {
	Ppt string `yaml:"ppt"`
	ID  int    `yaml:"id"`
	Var string `yaml:"var,omitempty"`
}

// DerivedDecl declares how a variable is computed from earlier variables of its point.
type DerivedDecl struct {
	// Kind is "length" or "subscript".
	Kind  string   `yaml:"kind"`
	Bases []string `yaml:"bases"`
	Shift int64    `yaml:"shift,omitempty"`
}

// ReadDecls decodes a declaration file. Unknown fields are rejected.
func ReadDecls(r io.Reader) (*Decls, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var d Decls
	if err := dec.Decode(&d); err != nil {
		if errors.Is(err, io.EOF) {
			return &Decls{}, nil
		}
		return nil, fmt.Errorf("decode declarations: %w", err)
	}
	seen := make(map[string]bool, len(d.Points))
	for _, p := range d.Points {
		if p.Name == "" {
			return nil, errors.New("decode declarations: program point without a name")
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("decode declarations: program point %q declared twice", p.Name)
		}
		seen[p.Name] = true
	}
	return &d, nil
}

// LoadDecls reads the declaration file at path.
func LoadDecls(path string) (*Decls, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open declarations: %w", err)
	}
	defer f.Close()
	return ReadDecls(f)
}

// Build returns the variable descriptors of the point, indexed in declaration order. A derived
// variable must name earlier variables as its bases. A variable named orig(x) at an exit is the
// prestate of x.
func (d *PointDecl) Build() ([]*varinfo.VarInfo, error) {
	vars := make([]*varinfo.VarInfo, len(d.Vars))
	byName := make(map[string]int, len(d.Vars))
	for i, vd := range d.Vars {
		if _, dup := byName[vd.Name]; dup {
			return nil, fmt.Errorf("point %s: variable %q declared twice", d.Name, vd.Name)
		}
		v, err := vd.build(i, byName, vars)
		if err != nil {
			return nil, fmt.Errorf("point %s: variable %q: %w", d.Name, vd.Name, err)
		}
		byName[vd.Name] = i
		vars[i] = v
	}
	return vars, nil
}

func (vd *VarDecl) build(index int, earlier map[string]int, vars []*varinfo.VarInfo) (*varinfo.VarInfo, error) {
	if vd.Name == "" {
		return nil, errors.New("empty name")
	}
	rep := varinfo.Int
	if vd.Rep != "" {
		r, err := varinfo.ParseRepType(vd.Rep)
		if err != nil {
			return nil, err
		}
		rep = r
	}
	cmp, err := varinfo.ParseComparability(vd.Comparability)
	if err != nil {
		return nil, err
	}
	v := varinfo.New(vd.Name, index, rep, cmp)
	if vd.Type != "" {
		v.Type = vd.Type
	}
	for _, p := range vd.Parents {
		v.Parents = append(v.Parents, varinfo.ParentRef{Ppt: p.Ppt, ID: p.ID, Var: p.Var})
	}
	if post := varinfo.PoststateName(vd.Name); post != vd.Name && vd.Derived == nil {
		v.PrestateOf = post
	}

	switch {
	case vd.Derived != nil && vd.hasStaticValue():
		return nil, errors.New("a variable cannot be both derived and static")
	case vd.Derived != nil:
		der, err := vd.Derived.build(earlier, vars)
		if err != nil {
			return nil, err
		}
		v.Derived = der
		v.PrestateOf = ""
	case vd.hasStaticValue():
		val, mod, err := DecodeValue(&vd.StaticValue, rep)
		if err != nil {
			return nil, fmt.Errorf("static value: %w", err)
		}
		if mod.IsMissing() {
			return nil, errors.New("static value is missing")
		}
		v.IsStaticConstant = true
		v.StaticValue = val
	}
	return v, nil
}

func (vd *VarDecl) hasStaticValue() bool {
	return vd.StaticValue.Kind != 0
}

func (dd *DerivedDecl) build(earlier map[string]int, vars []*varinfo.VarInfo) (*varinfo.Derivation, error) {
	var kind varinfo.DerivationKind
	var arity int
	switch dd.Kind {
	case "length":
		kind, arity = varinfo.SequenceLength, 1
	case "subscript":
		kind, arity = varinfo.SequenceSubscript, 2
	default:
		return nil, fmt.Errorf("unknown derivation kind %q", dd.Kind)
	}
	if len(dd.Bases) != arity {
		return nil, fmt.Errorf("%s derivation takes %d bases, got %d", dd.Kind, arity, len(dd.Bases))
	}
	bases := make([]int, arity)
	for i, name := range dd.Bases {
		idx, ok := earlier[name]
		if !ok {
			return nil, fmt.Errorf("base %q is not an earlier variable", name)
		}
		bases[i] = idx
	}
	if !vars[bases[0]].FileRep.IsArray() {
		return nil, fmt.Errorf("base %q is not an array", dd.Bases[0])
	}
	if kind == varinfo.SequenceSubscript {
		if rep := vars[bases[1]].FileRep; rep.IsArray() || !rep.IsIntegral() {
			return nil, fmt.Errorf("index %q is not an integer", dd.Bases[1])
		}
	}
	return &varinfo.Derivation{Kind: kind, Bases: bases, Shift: dd.Shift}, nil
}

// TraceVars returns the indices of the variables whose values are read from the trace, in
// order: every variable that is not derived, static or a prestate.
func TraceVars(vars []*varinfo.VarInfo) []int {
	var idx []int
	for _, v := range vars {
		if v.Derived == nil && !v.IsStaticConstant && !v.IsPrestate() {
			idx = append(idx, v.Index)
		}
	}
	return idx
}
