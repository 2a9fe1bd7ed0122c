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
	"strings"
)

// RepType is the representation type of a variable as written in a trace. Booleans and
// hashcodes are stored as integers but keep their own rep type so that invariants that make no
// sense for them (orderings, sums) are never instantiated.
type RepType int

const (
	// Int is a signed 64-bit integer.
	Int RepType = iota
	// Boolean is stored as 0 or 1.
	Boolean
	// Hashcode is an opaque object identity stored as an integer.
	Hashcode
	// Double is a 64-bit float.
	Double
	// String is a string.
	String
	// IntArray is an array of Int.
	IntArray
	// BooleanArray is an array of Boolean.
	BooleanArray
	// HashcodeArray is an array of Hashcode.
	HashcodeArray
	// DoubleArray is an array of Double.
	DoubleArray
	// StringArray is an array of String.
	StringArray
)

var _repTypeNames = map[RepType]string{
	Int:           "int",
	Boolean:       "boolean",
	Hashcode:      "hashcode",
	Double:        "double",
	String:        "string",
	IntArray:      "int[]",
	BooleanArray:  "boolean[]",
	HashcodeArray: "hashcode[]",
	DoubleArray:   "double[]",
	StringArray:   "string[]",
}

func (r RepType) String() string {
	if s, ok := _repTypeNames[r]; ok {
		return s
	}
	return fmt.Sprintf("RepType(%d)", int(r))
}

// ParseRepType parses a rep type name such as "int", "double[]" or "java.lang.String".
func ParseRepType(s string) (RepType, error) {
	name := strings.TrimSpace(s)
	if name == "java.lang.String" {
		name = "string"
	} else if name == "java.lang.String[]" {
		name = "string[]"
	}
	for r, n := range _repTypeNames {
		if n == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown rep type %q", s)
}

// IsArray reports whether r is one of the array types.
func (r RepType) IsArray() bool {
	return r >= IntArray
}

// IsIntegral reports whether values of r (or its elements) are stored as integers.
func (r RepType) IsIntegral() bool {
	switch r.Elem() {
	case Int, Boolean, Hashcode:
		return true
	}
	return false
}

// IsFloat reports whether values of r (or its elements) are floats.
func (r RepType) IsFloat() bool {
	return r.Elem() == Double
}

// IsString reports whether values of r (or its elements) are strings.
func (r RepType) IsString() bool {
	return r.Elem() == String
}

// IsNumeric reports whether r (or its element type) supports arithmetic and ordering, which
// excludes booleans and hashcodes.
func (r RepType) IsNumeric() bool {
	switch r.Elem() {
	case Int, Double:
		return true
	}
	return false
}

// Elem returns the element type of an array type, or r itself for a scalar.
func (r RepType) Elem() RepType {
	switch r {
	case IntArray:
		return Int
	case BooleanArray:
		return Boolean
	case HashcodeArray:
		return Hashcode
	case DoubleArray:
		return Double
	case StringArray:
		return String
	}
	return r
}

// ArrayOf returns the array type whose elements have type r.
func (r RepType) ArrayOf() RepType {
	switch r {
	case Int:
		return IntArray
	case Boolean:
		return BooleanArray
	case Hashcode:
		return HashcodeArray
	case Double:
		return DoubleArray
	case String:
		return StringArray
	}
	panic(fmt.Sprintf("no array type of %s", r))
}

// Internal returns the storage type of r: booleans and hashcodes are stored as integers.
func (r RepType) Internal() RepType {
	switch r {
	case Boolean, Hashcode:
		return Int
	case BooleanArray, HashcodeArray:
		return IntArray
	}
	return r
}
