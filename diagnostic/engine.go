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

// Package diagnostic hosts the diagnostic engine, which collects the recoverable conditions met
// while processing a trace and reports them in a deterministic order, and the Fatal type used for
// structural violations that abort a run.
package diagnostic

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// WarningKind classifies recoverable conditions.
type WarningKind int

const (
	// UnmatchedExit is an EXIT sample whose nonce has no pending ENTER. Its prestate variables
	// are treated as missing.
	UnmatchedExit WarningKind = iota
	// UndeclaredPoint is a sample for a program point that has no declaration. It is dropped.
	UndeclaredPoint
	// BadValue is a value that cannot be decoded for the rep type of its variable. The variable
	// is treated as missing in that sample.
	BadValue
	// UnusedEnter is an ENTER sample that never saw its EXIT by the end of the trace.
	UnusedEnter
)

var _warningKindNames = [...]string{
	UnmatchedExit:   "unmatched-exit",
	UndeclaredPoint: "undeclared-point",
	BadValue:        "bad-value",
	UnusedEnter:     "unused-enter",
}

func (k WarningKind) String() string {
	if int(k) < len(_warningKindNames) {
		return _warningKindNames[k]
	}
	return fmt.Sprintf("WarningKind(%d)", int(k))
}

// Warning is one recoverable condition.
type Warning struct {
	Kind WarningKind
	// Ppt is the program point the sample was addressed to.
	Ppt string
	// Var is the variable concerned, if any.
	Var string
	// Seq is the position of the sample in the trace, starting at 1.
	Seq int
	// Msg is a human readable description.
	Msg string
}

func (w Warning) String() string {
	s := fmt.Sprintf("%s: sample %d at %s", w.Kind, w.Seq, w.Ppt)
	if w.Var != "" {
		s += " variable " + w.Var
	}
	if w.Msg != "" {
		s += ": " + w.Msg
	}
	return s
}

// Engine collects warnings. It is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	warnings []Warning
}

// NewEngine creates a new diagnostic engine.
func NewEngine() *Engine {
	return &Engine{}
}

// AddWarning records a warning.
func (e *Engine) AddWarning(w Warning) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.warnings = append(e.warnings, w)
}

// Len returns the number of warnings recorded so far.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.warnings)
}

// Warnings returns the recorded warnings sorted by sample position, then point, kind and
// variable. Workers record warnings in a nondeterministic order, the sort undoes that.
func (e *Engine) Warnings() []Warning {
	e.mu.Lock()
	ws := slices.Clone(e.warnings)
	e.mu.Unlock()

	slices.SortStableFunc(ws, func(a, b Warning) int {
		if n := cmp.Compare(a.Seq, b.Seq); n != 0 {
			return n
		}
		if n := cmp.Compare(a.Ppt, b.Ppt); n != 0 {
			return n
		}
		if n := cmp.Compare(a.Kind, b.Kind); n != 0 {
			return n
		}
		return cmp.Compare(a.Var, b.Var)
	})
	return ws
}
