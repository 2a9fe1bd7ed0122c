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

// Package pptname parses and rewrites program point names of the form
// "pkg.Class.method(args):::POINT", where POINT is ENTER, EXIT, EXITnn, OBJECT or CLASS.
package pptname

import (
	"errors"
	"strconv"
	"strings"
)

// Separator divides the qualified method or class name from the point tag.
const Separator = ":::"

// Point tags.
const (
	Enter  = "ENTER"
	Exit   = "EXIT"
	Object = "OBJECT"
	Class  = "CLASS"
)

// Name is a parsed program point name. The zero value is not a valid name.
type Name struct {
	full string
	// class is the fully qualified class name, possibly empty.
	class string
	// method is the method name with its argument list, empty for class-level points.
	method string
	point  string
}

// Parse splits a program point name into its parts. A name without a separator is accepted and
// has an empty point tag.
func Parse(full string) (Name, error) {
	if strings.TrimSpace(full) == "" {
		return Name{}, errors.New("empty program point name")
	}
	n := Name{full: full}
	qualified, point, found := strings.Cut(full, Separator)
	if found {
		n.point = point
	}
	paren := strings.IndexByte(qualified, '(')
	if paren < 0 {
		n.class = qualified
		return n, nil
	}
	if !strings.HasSuffix(qualified, ")") {
		return Name{}, errors.New("unbalanced argument list in program point name " + strconv.Quote(full))
	}
	dot := strings.LastIndexByte(qualified[:paren], '.')
	n.class = qualified[:max(dot, 0)]
	n.method = qualified[dot+1:]
	return n, nil
}

// MustParse is like Parse but panics on error.
func MustParse(full string) Name {
	n, err := Parse(full)
	if err != nil {
		panic(err)
	}
	return n
}

// String returns the full name.
func (n Name) String() string { return n.full }

// Class returns the fully qualified class name.
func (n Name) Class() string { return n.class }

// ShortClass returns the class name without its package.
func (n Name) ShortClass() string {
	return n.class[strings.LastIndexByte(n.class, '.')+1:]
}

// Method returns the method name with its argument list, e.g. "push(int)".
func (n Name) Method() string { return n.method }

// MethodName returns the method name without arguments.
func (n Name) MethodName() string {
	name, _, _ := strings.Cut(n.method, "(")
	return name
}

// Point returns the point tag, e.g. "EXIT22".
func (n Name) Point() string { return n.point }

// IsEnter reports whether n is a method entry.
func (n Name) IsEnter() bool { return n.point == Enter }

// IsExit reports whether n is a combined or numbered method exit.
func (n Name) IsExit() bool {
	return n.method != "" && strings.HasPrefix(n.point, Exit)
}

// IsCombinedExit reports whether n is the exit that aggregates all numbered exits.
func (n Name) IsCombinedExit() bool { return n.method != "" && n.point == Exit }

// IsNumberedExit reports whether n is the exit at one return site.
func (n Name) IsNumberedExit() bool {
	_, ok := n.ExitNumber()
	return ok
}

// ExitNumber returns nn for an EXITnn point.
func (n Name) ExitNumber() (int, bool) {
	if n.method == "" || !strings.HasPrefix(n.point, Exit) || n.point == Exit {
		return 0, false
	}
	nn, err := strconv.Atoi(n.point[len(Exit):])
	if err != nil || nn < 0 {
		return 0, false
	}
	return nn, true
}

// IsObject reports whether n holds the object invariants of a class.
func (n Name) IsObject() bool { return n.method == "" && n.point == Object }

// IsClass reports whether n holds the static invariants of a class.
func (n Name) IsClass() bool { return n.method == "" && n.point == Class }

// IsConstructor reports whether the method is a constructor of its class.
func (n Name) IsConstructor() bool {
	name := n.MethodName()
	return name != "" && (name == "<init>" || name == n.ShortClass())
}

// Family returns the key shared by the entry and all exits of a method, or the class name for
// class-level points.
func (n Name) Family() string {
	if n.method == "" {
		return n.class
	}
	if n.class == "" {
		return n.method
	}
	return n.class + "." + n.method
}

// MakeEnter returns the entry of the method of n.
func (n Name) MakeEnter() Name { return n.withPoint(Enter) }

// MakeExit returns the combined exit of the method of n.
func (n Name) MakeExit() Name { return n.withPoint(Exit) }

// MakeExitNN returns the numbered exit nn of the method of n.
func (n Name) MakeExitNN(nn int) Name { return n.withPoint(Exit + strconv.Itoa(nn)) }

// MakeObject returns the object point of the class of n.
func (n Name) MakeObject() Name { return Name{class: n.class, point: Object}.build() }

// MakeClass returns the class-static point of the class of n.
func (n Name) MakeClass() Name { return Name{class: n.class, point: Class}.build() }

func (n Name) withPoint(point string) Name {
	return Name{class: n.class, method: n.method, point: point}.build()
}

func (n Name) build() Name {
	var sb strings.Builder
	sb.WriteString(n.class)
	if n.method != "" {
		if n.class != "" {
			sb.WriteByte('.')
		}
		sb.WriteString(n.method)
	}
	sb.WriteString(Separator)
	sb.WriteString(n.point)
	n.full = sb.String()
	return n
}
