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

// Package hierarchy builds the graph of relations between program points: class to object,
// object to method, entry to exit, combined exit to numbered exit and declared parents, each
// edge with a two-way variable map. The graph is used to merge equality facts of children into
// parents that have no samples of their own.
package hierarchy

import (
	"log/slog"

	"go.uber.org/dyninv/diagnostic"
	"go.uber.org/dyninv/ppt"
	"go.uber.org/dyninv/pptname"
	"go.uber.org/dyninv/runctx"
	"go.uber.org/dyninv/util/orderedmap"
)

// Declared is a parent relation listed in the declaration of a point.
type Declared struct {
	Kind RelationKind
	Ppt  string
	ID   int
}

// Graph is the program point graph. Points are added first with AddPoint; Build then creates
// the relations in one pass, after which the graph is read-only apart from AddRelation.
type Graph struct {
	rc       *runctx.Context
	points   *orderedmap.OrderedMap[string, *ppt.Point]
	declared map[string][]Declared
	built    bool

	relations []*Relation
	// parents and children index the relations by child and by parent name.
	parents  map[string][]*Relation
	children map[string][]*Relation
}

// New returns an empty graph.
func New(rc *runctx.Context) *Graph {
	return &Graph{
		rc:       rc,
		points:   orderedmap.New[string, *ppt.Point](),
		declared: make(map[string][]Declared),
		parents:  make(map[string][]*Relation),
		children: make(map[string][]*Relation),
	}
}

// AddPoint registers a point and the parent relations declared for it. A point with declared
// parents gets exactly those; the others are related by their names.
func (g *Graph) AddPoint(p *ppt.Point, declared ...Declared) {
	if g.built {
		panic(diagnostic.Fatalf(p.Name, "", "point added after the graph was built"))
	}
	g.points.Store(p.Name, p)
	if len(declared) > 0 {
		g.declared[p.Name] = append(g.declared[p.Name], declared...)
	}
}

// Point returns the point with the given name.
func (g *Graph) Point(name string) (*ppt.Point, bool) {
	return g.points.Load(name)
}

// Relations returns every relation in creation order.
func (g *Graph) Relations() []*Relation {
	return g.relations
}

// Parents returns the relations in which the named point is the child.
func (g *Graph) Parents(child string) []*Relation {
	return g.parents[child]
}

// Children returns the relations in which the named point is the parent.
func (g *Graph) Children(parent string) []*Relation {
	return g.children[parent]
}

// AddRelation adds a relation built outside the graph, such as a conditional or merge relation.
func (g *Graph) AddRelation(r *Relation) {
	g.relations = append(g.relations, r)
	g.parents[r.Child.Name] = append(g.parents[r.Child.Name], r)
	g.children[r.Parent.Name] = append(g.children[r.Parent.Name], r)
	g.rc.Logger.Debug("relation", slog.String("kind", r.Kind.String()),
		slog.String("parent", r.Parent.Name), slog.String("child", r.Child.Name), slog.Int("vars", r.Size()))
}

// Build creates the relations. A required variable correspondence that does not exist fails the
// build.
func (g *Graph) Build() (err error) {
	if g.built {
		return nil
	}
	g.built = true
	var current string
	defer func() {
		if r := recover(); r != nil {
			err = diagnostic.AsError(current, r)
		}
	}()

	g.points.OrderedRange(func(name string, p *ppt.Point) bool {
		current = name
		declared, ok := g.declared[name]
		if ok {
			g.relateDeclared(p, declared)
		}
		g.relateByName(p, !ok)
		return true
	})
	if g.rc.Config.Hierarchy.EnableObjectUser {
		g.points.OrderedRange(func(name string, p *ppt.Point) bool {
			current = name
			g.relateUsers(p)
			return true
		})
	}
	g.rc.Logger.Debug("program point graph built", slog.Int("points", g.points.Len()), slog.Int("relations", len(g.relations)))
	return nil
}

func (g *Graph) relateDeclared(child *ppt.Point, declared []Declared) {
	for _, d := range declared {
		if d.Kind == User && !g.rc.Config.Hierarchy.EnableObjectUser {
			continue
		}
		parent, ok := g.points.Load(d.Ppt)
		if !ok {
			panic(diagnostic.Fatalf(child.Name, "", "declared parent %s does not exist", d.Ppt))
		}
		g.AddRelation(newParentRelation(d.Kind, d.ID, parent, child))
	}
}

// relateByName adds the structural relations in which p is the child. The class and object
// parents are only looked up when classParents is set; declared parents replace them.
func (g *Graph) relateByName(p *ppt.Point, classParents bool) {
	n, err := pptname.Parse(p.Name)
	if err != nil {
		panic(diagnostic.Fatalf(p.Name, "", "%v", err))
	}
	switch {
	case n.IsObject() && classParents:
		if class, ok := g.points.Load(n.MakeClass().String()); ok {
			g.AddRelation(newClassObject(class, p))
		}
	case n.IsNumberedExit():
		exit, ok := g.points.Load(n.MakeExit().String())
		if !ok {
			panic(diagnostic.Fatalf(p.Name, "", "numbered exit without combined exit %s", n.MakeExit()))
		}
		g.AddRelation(newCombinedExitExitNN(exit, p))
	case n.IsEnter() || n.IsCombinedExit():
		if parent, ok := g.objectOrClass(n, p); ok && classParents {
			g.AddRelation(newObjectMethod(parent, p))
		}
		if n.IsCombinedExit() {
			if enter, ok := g.points.Load(n.MakeEnter().String()); ok {
				g.AddRelation(newEnterExit(enter, p))
			}
		}
	}
}

// objectOrClass returns the object point of the class of a method if the method has the
// object's receiver variable, and the class point otherwise. A constructor entry has no
// receiver yet.
func (g *Graph) objectOrClass(n pptname.Name, method *ppt.Point) (*ppt.Point, bool) {
	if object, ok := g.points.Load(n.MakeObject().String()); ok && !(n.IsEnter() && n.IsConstructor()) {
		if vars := object.Vars(); len(vars) > 0 {
			if _, ok := method.Var(vars[0].Name); ok {
				return object, true
			}
		}
	}
	return g.points.Load(n.MakeClass().String())
}

// relateUsers adds a user relation from the object point of every class that p has a variable
// of, other than its own receiver.
func (g *Graph) relateUsers(p *ppt.Point) {
	for _, v := range p.Vars() {
		if v.IsThis() || v.Derived != nil || v.IsPrestate() || v.Type == "" {
			continue
		}
		object, ok := g.points.Load(v.Type + pptname.Separator + pptname.Object)
		if !ok || object == p {
			continue
		}
		g.AddRelation(newObjectUser(object, p, v))
	}
}
