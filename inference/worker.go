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

package inference

import (
	"cmp"
	"slices"

	"go.uber.org/dyninv/diagnostic"
	"go.uber.org/dyninv/trace"
	"go.uber.org/dyninv/valuetuple"
	"go.uber.org/dyninv/varinfo"
)

// worker applies the samples of the method families routed to it. Entries waiting for their
// exit are keyed by nonce, not kept on a stack: a method may be re-entered before it returns.
type worker struct {
	e       *Engine
	pending map[pendingKey]pendingEnter
}

type pendingKey struct {
	entry string
	nonce int64
}

type pendingEnter struct {
	seq  int
	vals []any
	mods []valuetuple.ModCode
}

// process turns a sample into a full value tuple of its point and applies it. A fatal
// condition raised by the point is returned as an error.
func (w *worker) process(p *point, s *trace.Sample) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = diagnostic.AsError(p.Name, r)
		}
	}()

	traced, tracedMods, bad, err := s.Decode(p.reps)
	if err != nil {
		return diagnostic.Fatalf(p.Name, "", "%v", err)
	}
	vars := p.Vars()
	for _, b := range bad {
		w.e.rc.Warn(diagnostic.Warning{
			Kind: diagnostic.BadValue,
			Ppt:  p.Name,
			Var:  vars[p.traceVars[b.Index]].Name,
			Seq:  s.Seq,
			Msg:  b.Err.Error(),
		})
	}

	vals := make([]any, len(vars))
	mods := make([]valuetuple.ModCode, len(vars))
	for i, idx := range p.traceVars {
		vals[idx], mods[idx] = traced[i], tracedMods[i]
	}
	for _, v := range vars {
		if v.IsStaticConstant {
			vals[v.Index], mods[v.Index] = v.StaticValue, valuetuple.Modified
		}
	}
	if p.name.IsExit() {
		w.fillPrestate(p, s, vals, mods)
	}
	varinfo.ComputeDerived(vars, vals, mods)
	if p.name.IsEnter() {
		w.storeEnter(p, s, vals, mods)
	}

	vt := valuetuple.New(vals, mods)
	if w.e.interner != nil {
		vt = w.e.interner.Intern(vt)
	}
	p.Add(vt, s.Count)
	w.e.rc.Stats.Samples.WithLabelValues(p.kind).Add(float64(s.Count))
	return nil
}

// storeEnter keeps the values of an entry until the exit with the same nonce arrives.
func (w *worker) storeEnter(p *point, s *trace.Sample, vals []any, mods []valuetuple.ModCode) {
	if !s.HasNonce {
		return
	}
	key := pendingKey{entry: p.Name, nonce: s.Nonce}
	if prev, ok := w.pending[key]; ok {
		panic(diagnostic.Fatalf(p.Name, "", "sample %d reuses nonce %d still pending since sample %d",
			s.Seq, s.Nonce, prev.seq))
	}
	w.pending[key] = pendingEnter{seq: s.Seq, vals: vals, mods: mods}
}

// fillPrestate copies the entry values of the matching entry into the orig variables of an
// exit. Without a match the orig variables are MissingFlow.
func (w *worker) fillPrestate(p *point, s *trace.Sample, vals []any, mods []valuetuple.ModCode) {
	var (
		enter   pendingEnter
		matched bool
	)
	if p.entry != nil && s.HasNonce {
		key := pendingKey{entry: p.entry.Name, nonce: s.Nonce}
		if enter, matched = w.pending[key]; matched {
			delete(w.pending, key)
		}
	}
	if matched {
		for _, ps := range p.prestate {
			vals[ps.exit], mods[ps.exit] = enter.vals[ps.entry], enter.mods[ps.entry]
		}
		return
	}

	for _, ps := range p.prestate {
		vals[ps.exit], mods[ps.exit] = nil, valuetuple.MissingFlow
	}
	if p.entry != nil && (s.HasNonce || len(p.prestate) > 0) {
		w.e.rc.Warn(diagnostic.Warning{
			Kind: diagnostic.UnmatchedExit,
			Ppt:  p.Name,
			Seq:  s.Seq,
			Msg:  "no pending entry for this exit",
		})
	}
}

// flush reports the entries that never saw their exit.
func (w *worker) flush() {
	keys := make([]pendingKey, 0, len(w.pending))
	for k := range w.pending {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b pendingKey) int {
		return cmp.Compare(w.pending[a].seq, w.pending[b].seq)
	})
	for _, k := range keys {
		w.e.rc.Warn(diagnostic.Warning{
			Kind: diagnostic.UnusedEnter,
			Ppt:  k.entry,
			Seq:  w.pending[k].seq,
			Msg:  "entry never exited",
		})
	}
	clear(w.pending)
}
