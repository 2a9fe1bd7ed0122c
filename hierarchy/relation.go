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

package hierarchy

import (
	"fmt"
	"slices"
	"strings"

	"go.uber.org/dyninv/diagnostic"
	"go.uber.org/dyninv/ppt"
	"go.uber.org/dyninv/varinfo"
)

// RelationKind is the kind of an edge of the program point graph.
type RelationKind int

const (
	// Parent is a declared structural relation.
	Parent RelationKind = iota
	// User links the object point of a class to a point with a variable of that class.
	User
	// EnterExit links a method entry to its combined exit, x at the entry to orig(x) at the exit.
	EnterExit
	// ExitExitNN links a combined exit to one of its numbered exits.
	ExitExitNN
	// MergeChild links a point to a point with the same variables whose samples it aggregates.
	MergeChild
	// PptPptCond links a point to one of its conditional points.
	PptPptCond
)

var _kindNames = [...]string{
	Parent:     "parent",
	User:       "user",
	EnterExit:  "enter-exit",
	ExitExitNN: "exit-exitnn",
	MergeChild: "merge-child",
	PptPptCond: "ppt-pptcond",
}

func (k RelationKind) String() string {
	if k >= 0 && int(k) < len(_kindNames) {
		return _kindNames[k]
	}
	return fmt.Sprintf("RelationKind(%d)", int(k))
}

// ParseRelationKind parses the name of a kind as returned by RelationKind.String.
func ParseRelationKind(s string) (RelationKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range _kindNames {
		if n == name {
			return RelationKind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown relation kind %q", s)
}

// Relation is an edge from a parent point to a child point with a two-way map between the
// variables that correspond.
type Relation struct {
	Kind   RelationKind
	Parent *ppt.Point
	Child  *ppt.Point

	// parentToChild[i] is the index of the child variable for parent variable i, or -1.
	parentToChild []int
	childToParent []int
}

func newRelation(kind RelationKind, parent, child *ppt.Point) *Relation {
	r := &Relation{
		Kind:          kind,
		Parent:        parent,
		Child:         child,
		parentToChild: make([]int, len(parent.Vars())),
		childToParent: make([]int, len(child.Vars())),
	}
	for i := range r.parentToChild {
		r.parentToChild[i] = -1
	}
	for i := range r.childToParent {
		r.childToParent[i] = -1
	}
	return r
}

// addVar maps a parent variable to a child variable. A variable that is already mapped keeps its
// first counterpart.
func (r *Relation) addVar(parentVar, childVar *varinfo.VarInfo) {
	if r.parentToChild[parentVar.Index] >= 0 || r.childToParent[childVar.Index] >= 0 {
		return
	}
	r.parentToChild[parentVar.Index] = childVar.Index
	r.childToParent[childVar.Index] = parentVar.Index
}

// ChildVar returns the child variable corresponding to a parent variable.
func (r *Relation) ChildVar(parentVar *varinfo.VarInfo) (*varinfo.VarInfo, bool) {
	i := r.parentToChild[parentVar.Index]
	if i < 0 {
		return nil, false
	}
	return r.Child.Vars()[i], true
}

// ParentVar returns the parent variable corresponding to a child variable.
func (r *Relation) ParentVar(childVar *varinfo.VarInfo) (*varinfo.VarInfo, bool) {
	i := r.childToParent[childVar.Index]
	if i < 0 {
		return nil, false
	}
	return r.Parent.Vars()[i], true
}

// Size returns the number of mapped variable pairs.
func (r *Relation) Size() int {
	n := 0
	for _, c := range r.parentToChild {
		if c >= 0 {
			n++
		}
	}
	return n
}

func (r *Relation) String() string {
	return fmt.Sprintf("%s -> %s (%s, %d vars)", r.Parent.Name, r.Child.Name, r.Kind, r.Size())
}

// newClassObject relates the static point of a class to its object point by variable name.
func newClassObject(class, object *ppt.Point) *Relation {
	return byName(Parent, class, object)
}

// newObjectMethod relates an object or class point to a method entry or combined exit by
// variable name.
func newObjectMethod(object, method *ppt.Point) *Relation {
	return byName(Parent, object, method)
}

// byName maps every parent variable to the child variable of the same name, skipping those
// the child lacks.
func byName(kind RelationKind, parent, child *ppt.Point) *Relation {
	r := newRelation(kind, parent, child)
	for _, pv := range parent.Vars() {
		if cv, ok := child.Var(pv.Name); ok {
			r.addVar(pv, cv)
		}
	}
	return r
}

// newCombinedExitExitNN relates a combined exit to a numbered exit. Every variable of the
// combined exit must exist at the numbered exit.
func newCombinedExitExitNN(exit, exitNN *ppt.Point) *Relation {
	r := newRelation(ExitExitNN, exit, exitNN)
	for _, pv := range exit.Vars() {
		cv, ok := exitNN.Var(pv.Name)
		if !ok {
			panic(diagnostic.Fatalf(exitNN.Name, pv.Name, "variable of combined exit %s missing", exit.Name))
		}
		r.addVar(pv, cv)
	}
	return r
}

// newEnterExit relates a method entry to its exit: entry variable x corresponds to orig(x) at
// the exit. A plain variable without an orig counterpart is fatal. A static constant has no
// prestate and maps to the exit variable of the same name if there is one. A derived variable is
// matched by name or else by formula over the mapped bases, and skipped if neither matches.
func newEnterExit(enter, exit *ppt.Point) *Relation {
	r := newRelation(EnterExit, enter, exit)
	for _, pv := range enter.Vars() {
		if pv.IsStaticConstant {
			if cv, ok := exit.Var(pv.Name); ok {
				r.addVar(pv, cv)
			}
			continue
		}
		if cv, ok := exit.Var(varinfo.PrestateName(pv.Name)); ok {
			r.addVar(pv, cv)
			continue
		}
		if pv.Derived == nil {
			panic(diagnostic.Fatalf(exit.Name, varinfo.PrestateName(pv.Name), "no prestate of entry variable %s", pv.Name))
		}
		if cv, ok := r.matchDerived(pv); ok {
			r.addVar(pv, cv)
		}
	}
	return r
}

// matchDerived finds the child variable derived by the same formula from the child counterparts
// of pv's bases.
func (r *Relation) matchDerived(pv *varinfo.VarInfo) (*varinfo.VarInfo, bool) {
	bases := make([]int, len(pv.Derived.Bases))
	for i, b := range pv.Derived.Bases {
		bases[i] = r.parentToChild[b]
		if bases[i] < 0 {
			return nil, false
		}
	}
	for _, cv := range r.Child.Vars() {
		if cv.Derived != nil && cv.Derived.SameFormula(pv.Derived) && slices.Equal(cv.Derived.Bases, bases) {
			return cv, true
		}
	}
	return nil, false
}

// newObjectUser relates the object point of a class to a point holding a variable arg of that
// class: parent variable this.f corresponds to arg.f.
func newObjectUser(object, user *ppt.Point, arg *varinfo.VarInfo) *Relation {
	r := newRelation(User, object, user)
	for _, pv := range object.Vars() {
		if cv, ok := user.Var(varinfo.ReplaceThis(pv.Name, arg.Name)); ok {
			r.addVar(pv, cv)
		}
	}
	return r
}

// newParentRelation builds a declared relation: every child variable that refers to the parent
// under id is mapped to the named parent variable, which must exist.
func newParentRelation(kind RelationKind, id int, parent, child *ppt.Point) *Relation {
	r := newRelation(kind, parent, child)
	for _, cv := range child.Vars() {
		for _, ref := range cv.Parents {
			if ref.Ppt != parent.Name || ref.ID != id {
				continue
			}
			name := ref.Var
			if name == "" {
				name = cv.Name
			}
			pv, ok := parent.Var(name)
			if !ok {
				panic(diagnostic.Fatalf(child.Name, cv.Name, "parent variable %s missing at %s", name, parent.Name))
			}
			r.addVar(pv, cv)
		}
	}
	return r
}

// NewConditional relates a point to a conditional point over the same variables.
func NewConditional(parent, cond *ppt.Point) *Relation {
	return positional(PptPptCond, parent, cond)
}

// NewMergeChild relates a point to a child point over the same variables whose samples it
// aggregates.
func NewMergeChild(parent, child *ppt.Point) *Relation {
	return positional(MergeChild, parent, child)
}

// positional maps variables by position. The two points must have the same variable names in
// the same order.
func positional(kind RelationKind, parent, child *ppt.Point) *Relation {
	pvars, cvars := parent.Vars(), child.Vars()
	if len(pvars) != len(cvars) {
		panic(diagnostic.Fatalf(child.Name, "", "%s relation to %s: %d variables, parent has %d",
			kind, parent.Name, len(cvars), len(pvars)))
	}
	r := newRelation(kind, parent, child)
	for i, pv := range pvars {
		if cvars[i].Name != pv.Name {
			panic(diagnostic.Fatalf(child.Name, cvars[i].Name, "%s relation to %s: parent has %s at the same position",
				kind, parent.Name, pv.Name))
		}
		r.addVar(pv, cvars[i])
	}
	return r
}
