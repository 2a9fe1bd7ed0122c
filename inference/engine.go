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

// Package inference drives one run: it indexes the declared program points, relates them in a
// graph, feeds every sample of a trace to its point and collects what survives.
package inference

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"time"

	"go.uber.org/dyninv/config"
	"go.uber.org/dyninv/diagnostic"
	"go.uber.org/dyninv/hierarchy"
	"go.uber.org/dyninv/ppt"
	"go.uber.org/dyninv/pptname"
	"go.uber.org/dyninv/runctx"
	"go.uber.org/dyninv/trace"
	"go.uber.org/dyninv/util/orderedmap"
	"go.uber.org/dyninv/valuetuple"
	"go.uber.org/dyninv/varinfo"
	"golang.org/x/sync/errgroup"
)

// Engine runs inference over the samples of one trace. Points are indexed when the engine is
// created; Run may only be called once.
type Engine struct {
	rc     *runctx.Context
	points *orderedmap.OrderedMap[string, *point]
	graph  *hierarchy.Graph
	// interner is nil unless samples are interned.
	interner *valuetuple.Interner
	workers  int
	ran      bool
}

// point is a program point together with what the engine needs to turn a sample addressed to
// it into a full value tuple.
type point struct {
	*ppt.Point
	name pptname.Name
	// kind labels the samples metric.
	kind string
	// shard is the worker that handles every sample of the method family of the point.
	shard int
	// traceVars are the indices of the variables read from the sample, reps their rep types.
	traceVars []int
	reps      []varinfo.RepType
	// entry is the ENTER point of an exit, if declared.
	entry    *point
	prestate []prestate
}

// prestate maps an orig(x) variable of an exit to x at the entry.
type prestate struct {
	exit, entry int
}

// NewEngine indexes the declared points in two phases. The first creates every declared point,
// adds the orig variables an exit leaves out and synthesizes the combined exit of any method
// that only declares numbered exits. The second resolves what refers to other points: prestate
// variables, combined exits and the relation graph.
func NewEngine(rc *runctx.Context, decls *trace.Decls) (e *Engine, err error) {
	var current string
	defer func() {
		if r := recover(); r != nil {
			e, err = nil, diagnostic.AsError(current, r)
		}
	}()

	e = &Engine{
		rc:      rc,
		points:  orderedmap.New[string, *point](),
		graph:   hierarchy.New(rc),
		workers: rc.Config.Workers,
	}
	if rc.Config.InternSamples {
		e.interner = valuetuple.NewInterner()
	}

	type built struct {
		name pptname.Name
		vars []*varinfo.VarInfo
	}
	all := make([]built, 0, len(decls.Points))
	entries := make(map[string][]*varinfo.VarInfo)
	declared := make(map[string][]hierarchy.Declared, len(decls.Points))
	for i := range decls.Points {
		pd := &decls.Points[i]
		current = pd.Name
		name, err := pptname.Parse(pd.Name)
		if err != nil {
			return nil, err
		}
		vars, err := pd.Build()
		if err != nil {
			return nil, err
		}
		for _, parent := range pd.Parents {
			kind, err := hierarchy.ParseRelationKind(parent.Kind)
			if err != nil {
				return nil, diagnostic.Fatalf(pd.Name, "", "declared parent %s: %v", parent.Ppt, err)
			}
			declared[pd.Name] = append(declared[pd.Name], hierarchy.Declared{Kind: kind, Ppt: parent.Ppt, ID: parent.ID})
		}
		if name.IsEnter() {
			entries[name.String()] = vars
		}
		all = append(all, built{name: name, vars: vars})
	}
	for _, b := range all {
		vars := b.vars
		if b.name.IsExit() {
			if entry, ok := entries[b.name.MakeEnter().String()]; ok {
				vars = addPrestate(vars, entry)
			}
		}
		e.add(b.name, vars)
	}

	current = ""
	e.synthesizeCombinedExits()

	for _, name := range e.points.Keys() {
		current = name
		p := e.points.Value(name)
		e.resolve(p)
		e.graph.AddPoint(p.Point, declared[name]...)
	}
	if err := e.graph.Build(); err != nil {
		return nil, err
	}
	rc.Logger.Debug("points indexed", slog.Int("points", e.points.Len()), slog.Int("relations", len(e.graph.Relations())))
	return e, nil
}

func (e *Engine) add(name pptname.Name, vars []*varinfo.VarInfo) *point {
	p := &point{
		Point:     ppt.New(e.rc, name.String(), vars),
		name:      name,
		kind:      kindLabel(name),
		shard:     shard(name.Family(), e.workers),
		traceVars: trace.TraceVars(vars),
	}
	p.reps = make([]varinfo.RepType, len(p.traceVars))
	for i, idx := range p.traceVars {
		p.reps[i] = vars[idx].FileRep
	}
	e.points.Store(name.String(), p)
	return p
}

// addPrestate appends orig(x) to the variables of an exit for every plain entry variable x whose
// prestate the exit does not declare. Static constants are the same at both points and derived
// variables are recomputed, so neither gets one.
func addPrestate(vars, entry []*varinfo.VarInfo) []*varinfo.VarInfo {
	names := make(map[string]bool, len(vars))
	for _, v := range vars {
		names[v.Name] = true
	}
	for _, ev := range entry {
		if ev.Derived != nil || ev.IsStaticConstant || ev.IsPrestate() {
			continue
		}
		name := varinfo.PrestateName(ev.Name)
		if names[name] {
			continue
		}
		v := varinfo.New(name, len(vars), ev.FileRep, ev.Comparability)
		v.Type = ev.Type
		v.PrestateOf = ev.Name
		vars = append(vars, v)
	}
	return vars
}

// synthesizeCombinedExits creates the combined exit of every method whose numbered exits are
// declared without one, and attaches each numbered exit to its combined exit. All numbered
// exits of a method must declare the same variables.
func (e *Engine) synthesizeCombinedExits() {
	numbered := orderedmap.New[string, []*point]()
	e.points.OrderedRange(func(_ string, p *point) bool {
		if p.name.IsNumberedExit() {
			exit := p.name.MakeExit().String()
			exits, _ := numbered.Load(exit)
			numbered.Store(exit, append(exits, p))
		}
		return true
	})

	numbered.OrderedRange(func(exit string, exits []*point) bool {
		first := exits[0]
		for _, other := range exits[1:] {
			if !sameVars(first.Vars(), other.Vars()) {
				panic(diagnostic.Fatalf(other.Name, "", "variables differ from those of %s", first.Name))
			}
		}
		combined, ok := e.points.Load(exit)
		if !ok {
			vars := make([]*varinfo.VarInfo, len(first.Vars()))
			for i, v := range first.Vars() {
				vars[i] = v.Clone()
			}
			combined = e.add(first.name.MakeExit(), vars)
			e.rc.Logger.Debug("combined exit synthesized", slog.String("ppt", exit), slog.Int("exits", len(exits)))
		}
		for _, p := range exits {
			p.SetCombinedExit(combined.Point)
		}
		return true
	})
}

// resolve links an exit to its entry and maps its prestate variables.
func (e *Engine) resolve(p *point) {
	if !p.name.IsExit() {
		return
	}
	if entry, ok := e.points.Load(p.name.MakeEnter().String()); ok {
		p.entry = entry
	}
	for _, v := range p.Vars() {
		if !v.IsPrestate() {
			continue
		}
		if p.entry == nil {
			panic(diagnostic.Fatalf(p.Name, v.Name, "prestate variable without a declared entry"))
		}
		ev, ok := p.entry.Var(v.PrestateOf)
		if !ok {
			panic(diagnostic.Fatalf(p.Name, v.Name, "entry %s has no variable %s", p.entry.Name, v.PrestateOf))
		}
		p.prestate = append(p.prestate, prestate{exit: v.Index, entry: ev.Index})
	}
}

func sameVars(a, b []*varinfo.VarInfo) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].FileRep != b[i].FileRep {
			return false
		}
	}
	return true
}

// shard routes a method family to a worker. Every point of a family shares the worker, which
// keeps entries ahead of their exits and numbered exits in order with their combined exit.
func shard(family string, workers int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(family))
	return int(h.Sum32() % uint32(workers))
}

func kindLabel(n pptname.Name) string {
	switch {
	case n.IsEnter():
		return "enter"
	case n.IsExit():
		return "exit"
	}
	return "other"
}

// Point returns the program point with the given name.
func (e *Engine) Point(name string) (*ppt.Point, bool) {
	p, ok := e.points.Load(name)
	if !ok {
		return nil, false
	}
	return p.Point, true
}

// Graph returns the relation graph of the declared points.
func (e *Engine) Graph() *hierarchy.Graph {
	return e.graph
}

type job struct {
	p *point
	s *trace.Sample
}

// Run applies every sample of r, post-processes the points, merges child equalities into their
// parents if configured and returns the results. Samples of one method family are applied in
// trace order by a single worker; families run concurrently. The first fatal condition stops
// the run.
func (e *Engine) Run(ctx context.Context, r *trace.SampleReader) (*ResultMap, error) {
	if e.ran {
		return nil, errors.New("engine has already run")
	}
	e.ran = true
	start := time.Now()
	e.rc.Logger.Info("run started", slog.Int("points", e.points.Len()), slog.Int("workers", e.workers))

	g, gctx := errgroup.WithContext(ctx)
	queues := make([]chan job, e.workers)
	for i := range queues {
		queues[i] = make(chan job, config.SampleQueueSize)
	}
	g.Go(func() error {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		return e.dispatch(gctx, r, queues)
	})
	for _, q := range queues {
		w := &worker{e: e, pending: make(map[pendingKey]pendingEnter)}
		g.Go(func() error {
			for j := range q {
				if err := w.process(j.p, j.s); err != nil {
					return err
				}
			}
			w.flush()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := e.postProcess(); err != nil {
		return nil, err
	}
	if e.rc.Config.Hierarchy.MergeEqualities {
		if err := e.graph.MergeEqualities(); err != nil {
			return nil, err
		}
	}

	res := e.results()
	e.rc.Stats.Points.Set(float64(res.Len()))
	if e.interner != nil {
		size, hits := e.interner.Stats()
		e.rc.Logger.Debug("samples interned", slog.Int("distinct", size), slog.Int("hits", hits))
	}
	e.rc.Logger.Info("run finished",
		slog.Int("points", res.Len()),
		slog.Int("warnings", len(res.Warnings)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// dispatch reads the trace and hands every sample of a declared point to the worker of its
// family. Samples of undeclared points are dropped with a warning.
func (e *Engine) dispatch(ctx context.Context, r *trace.SampleReader, queues []chan job) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read trace: %w", err)
		}
		p, ok := e.points.Load(s.Ppt)
		if !ok {
			e.rc.Warn(diagnostic.Warning{
				Kind: diagnostic.UndeclaredPoint,
				Ppt:  s.Ppt,
				Seq:  s.Seq,
				Msg:  "sample for an undeclared program point",
			})
			continue
		}
		select {
		case queues[p.shard] <- job{p: p, s: s}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (e *Engine) postProcess() error {
	var g errgroup.Group
	g.SetLimit(e.workers)
	e.points.OrderedRange(func(name string, p *point) bool {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = diagnostic.AsError(name, r)
				}
			}()
			p.PostProcess()
			return nil
		})
		return true
	})
	return g.Wait()
}
