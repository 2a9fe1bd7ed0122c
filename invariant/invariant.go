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

// Package invariant defines the candidate invariants hypothesized over the variables of a
// slice. The set of invariant kinds is closed: every kind is one of the concrete types of this
// package, grouped into unary, binary and ternary families, and all of them share the
// lifecycle contract of the Invariant interface.
package invariant

import (
	"fmt"
	"strings"
)

// Status is the outcome of applying a sample to an invariant.
type Status int

const (
	// NoChange means the sample is consistent with the invariant.
	NoChange Status = iota
	// Falsified means the sample contradicts the invariant. A falsified invariant stays false.
	Falsified
)

func (s Status) String() string {
	if s == Falsified {
		return "falsified"
	}
	return "no-change"
}

// Kind enumerates the invariant kinds.
type Kind int

// Unary kinds come first, then binary kinds, then ternary kinds; Kind.Arity relies on it.
const (
	OneOf Kind = iota
	LowerBound
	UpperBound
	NonZero
	SeqNonEmpty

	Equal
	NotEqual
	LessThan
	LessEqual
	GreaterThan
	GreaterEqual
	Member

	Sum
)

var _kindNames = [...]string{
	OneOf:        "one-of",
	LowerBound:   "lower-bound",
	UpperBound:   "upper-bound",
	NonZero:      "non-zero",
	SeqNonEmpty:  "seq-non-empty",
	Equal:        "equal",
	NotEqual:     "not-equal",
	LessThan:     "less-than",
	LessEqual:    "less-equal",
	GreaterThan:  "greater-than",
	GreaterEqual: "greater-equal",
	Member:       "member",
	Sum:          "sum",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(_kindNames) {
		return _kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Arity returns the number of variables an invariant of kind k relates.
func (k Kind) Arity() int {
	switch {
	case k <= SeqNonEmpty:
		return 1
	case k <= Member:
		return 2
	}
	return 3
}

// ParseKind parses the name of a kind as returned by Kind.String.
func ParseKind(s string) (Kind, error) {
	name := strings.TrimSpace(s)
	for k, n := range _kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown invariant kind %q", s)
}

// Invariant is a candidate invariant over the variables of one slice. Values are passed in the
// order of the slice's variables.
type Invariant interface {
	// Kind returns the kind of the invariant.
	Kind() Kind
	// Arity returns the number of variables the invariant relates.
	Arity() int
	// Add applies count identical samples with the given values. It returns Falsified if the
	// values contradict the invariant, in which case the invariant must be discarded.
	Add(vals []any, count int) Status
	// IsFalse reports whether the invariant has been falsified.
	IsFalse() bool
	// Samples returns the number of samples applied so far.
	Samples() int
	// Clone returns an independent copy in the same state.
	Clone() Invariant
	// Permute rewrites the invariant in place for a reordering of its variables, where perm[i]
	// is the new position of the variable at position i. It returns the rewritten invariant,
	// which may be of a different kind (a < b over (a, b) becomes b > a over (b, a)).
	Permute(perm []int) Invariant
	// Format renders the invariant over the given variable names.
	Format(names []string) string

	// isInvariant is a marker method that closes the set of implementations to this package.
	isInvariant()
}

// state is the bookkeeping shared by all kinds.
type state struct {
	falsified bool
	samples   int
}

func (s *state) IsFalse() bool { return s.falsified }

func (s *state) Samples() int { return s.samples }

// observe records count samples and the verdict for them.
func (s *state) observe(ok bool, count int) Status {
	if s.falsified {
		return Falsified
	}
	if !ok {
		s.falsified = true
		return Falsified
	}
	s.samples += count
	return NoChange
}

func checkArity(inv Invariant, n int) {
	if n != inv.Arity() {
		panic(fmt.Sprintf("invariant %s of arity %d applied to %d values", inv.Kind(), inv.Arity(), n))
	}
}

func checkPerm(perm []int, arity int) {
	if len(perm) != arity {
		panic(fmt.Sprintf("permutation %v does not match arity %d", perm, arity))
	}
}
