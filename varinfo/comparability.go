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

package varinfo

import (
	"fmt"
	"strconv"
	"strings"
)

// Comparability is an opaque tag that restricts which variables may be related by an
// invariant. Two variables are only grouped into an equality set or placed in a common slice if
// their tags are comparable.
type Comparability interface {
	// AlwaysComparable reports whether the tag is comparable to every other tag.
	AlwaysComparable() bool
	// Comparable reports whether the tag is comparable to other. It must be reflexive and
	// symmetric.
	Comparable(other Comparability) bool
	// ElementType returns the tag of the elements of an array variable.
	ElementType() Comparability
	String() string
}

// None is the comparability of a variable without comparability information: it is comparable
// to everything.
type None struct{}

// AlwaysComparable implements Comparability.
func (None) AlwaysComparable() bool { return true }

// Comparable implements Comparability.
func (None) Comparable(Comparability) bool { return true }

// ElementType implements Comparability.
func (None) ElementType() Comparability { return None{} }

func (None) String() string { return "none" }

// Implicit is a numeric comparability tag in the style of "22" for a scalar or "22[5]" for an
// array whose elements carry tag 22 and whose indices carry tag 5. A negative base means the
// variable is comparable to everything.
type Implicit struct {
	Base    int
	Indices []int
}

// AlwaysComparable implements Comparability.
func (c Implicit) AlwaysComparable() bool { return c.Base < 0 }

// Comparable implements Comparability.
func (c Implicit) Comparable(other Comparability) bool {
	if c.AlwaysComparable() || other.AlwaysComparable() {
		return true
	}
	o, ok := other.(Implicit)
	if !ok {
		return false
	}
	if len(c.Indices) != len(o.Indices) {
		return false
	}
	for i := range c.Indices {
		if c.Indices[i] >= 0 && o.Indices[i] >= 0 && c.Indices[i] != o.Indices[i] {
			return false
		}
	}
	return c.Base == o.Base
}

// ElementType implements Comparability.
func (c Implicit) ElementType() Comparability {
	if len(c.Indices) == 0 {
		return c
	}
	return Implicit{Base: c.Base, Indices: c.Indices[:len(c.Indices)-1]}
}

func (c Implicit) String() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(c.Base))
	for _, i := range c.Indices {
		sb.WriteString("[" + strconv.Itoa(i) + "]")
	}
	return sb.String()
}

// ParseComparability parses a comparability tag. The empty string and "none" yield None,
// otherwise the tag must have the Implicit form "base" or "base[index]...".
func ParseComparability(s string) (Comparability, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "none" {
		return None{}, nil
	}
	head, rest, _ := strings.Cut(s, "[")
	base, err := strconv.Atoi(head)
	if err != nil {
		return nil, fmt.Errorf("parse comparability %q: %w", s, err)
	}
	c := Implicit{Base: base}
	for rest != "" {
		idx, tail, ok := strings.Cut(rest, "]")
		if !ok {
			return nil, fmt.Errorf("parse comparability %q: unbalanced brackets", s)
		}
		n, err := strconv.Atoi(idx)
		if err != nil {
			return nil, fmt.Errorf("parse comparability %q: %w", s, err)
		}
		c.Indices = append(c.Indices, n)
		rest = strings.TrimPrefix(tail, "[")
	}
	return c, nil
}
