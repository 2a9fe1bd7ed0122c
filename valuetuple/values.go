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

package valuetuple

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Values carried by a tuple are one of int64, float64, string, []int64, []float64 or []string,
// or nil for a missing value. Booleans and hashcodes are represented as int64.

// Equal reports whether two values are equal for invariant purposes. NaN is never equal to
// anything, including another NaN, and arrays are equal iff they have the same length and
// pairwise equal elements.
func Equal(a, b any) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case int64:
		y, ok := b.(int64)
		return ok && x == y
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case []int64:
		y, ok := b.([]int64)
		return ok && slices.Equal(x, y)
	case []float64:
		y, ok := b.([]float64)
		// slices.Equal uses ==, hence NaN elements never compare equal.
		return ok && slices.Equal(x, y)
	case []string:
		y, ok := b.([]string)
		return ok && slices.Equal(x, y)
	default:
		panic(fmt.Sprintf("unsupported value type %T", a))
	}
}

// identical is like Equal but compares floats by their bit patterns.
func identical(a, b any) bool {
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		return ok && math.Float64bits(x) == math.Float64bits(y)
	case []float64:
		y, ok := b.([]float64)
		return ok && slices.EqualFunc(x, y, func(p, q float64) bool {
			return math.Float64bits(p) == math.Float64bits(q)
		})
	default:
		return Equal(a, b)
	}
}

// HasNaN reports whether the value is or contains a floating point NaN.
func HasNaN(v any) bool {
	switch x := v.(type) {
	case float64:
		return math.IsNaN(x)
	case []float64:
		return slices.ContainsFunc(x, math.IsNaN)
	}
	return false
}

// Key returns a string such that Key(a) == Key(b) iff Equal(a, b). It returns false for values
// containing NaN, which are equal to nothing and therefore have no key.
func Key(v any) (string, bool) {
	if HasNaN(v) {
		return "", false
	}
	var sb strings.Builder
	writeKey(&sb, v, true)
	return sb.String(), true
}

func writeKey(sb *strings.Builder, v any, normalizeZero bool) {
	writeFloat := func(f float64) {
		if normalizeZero && f == 0 {
			// -0 == +0 under Equal.
			f = 0
		}
		sb.WriteString(strconv.FormatUint(math.Float64bits(f), 16))
	}
	switch x := v.(type) {
	case nil:
		sb.WriteString("n")
	case int64:
		sb.WriteString("i")
		sb.WriteString(strconv.FormatInt(x, 10))
	case float64:
		sb.WriteString("f")
		writeFloat(x)
	case string:
		sb.WriteString("s")
		sb.WriteString(strconv.Quote(x))
	case []int64:
		sb.WriteString("I")
		for _, e := range x {
			sb.WriteByte(',')
			sb.WriteString(strconv.FormatInt(e, 10))
		}
	case []float64:
		sb.WriteString("F")
		for _, e := range x {
			sb.WriteByte(',')
			writeFloat(e)
		}
	case []string:
		sb.WriteString("S")
		for _, e := range x {
			sb.WriteByte(',')
			sb.WriteString(strconv.Quote(e))
		}
	default:
		panic(fmt.Sprintf("unsupported value type %T", v))
	}
}

// Format renders a value for human consumption.
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return strconv.Quote(x)
	case []int64:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = strconv.FormatInt(e, 10)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []float64:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = strconv.FormatFloat(e, 'g', -1, 64)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []string:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = strconv.Quote(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// AsFloat converts a numeric scalar to float64.
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// Compare orders two numeric scalars. Integers are compared exactly, mixed or float operands
// as float64. The boolean is false if either operand is not numeric or is NaN.
func Compare(a, b any) (int, bool) {
	if x, ok := a.(int64); ok {
		if y, ok := b.(int64); ok {
			switch {
			case x < y:
				return -1, true
			case x > y:
				return 1, true
			}
			return 0, true
		}
	}
	x, ok1 := AsFloat(a)
	y, ok2 := AsFloat(b)
	if !ok1 || !ok2 || math.IsNaN(x) || math.IsNaN(y) {
		return 0, false
	}
	switch {
	case x < y:
		return -1, true
	case x > y:
		return 1, true
	}
	return 0, true
}

// Len returns the number of elements of an array value, or -1 for a scalar.
func Len(v any) int {
	switch x := v.(type) {
	case []int64:
		return len(x)
	case []float64:
		return len(x)
	case []string:
		return len(x)
	}
	return -1
}

// Index returns the i-th element of an array value. The boolean is false when v is not an
// array or i is out of range.
func Index(v any, i int64) (any, bool) {
	if i < 0 || i >= int64(Len(v)) {
		return nil, false
	}
	switch x := v.(type) {
	case []int64:
		return x[i], true
	case []float64:
		return x[i], true
	case []string:
		return x[i], true
	}
	return nil, false
}

// Contains reports whether the array value contains an element equal to the scalar.
func Contains(array, scalar any) bool {
	n := Len(array)
	for i := 0; i < n; i++ {
		e, _ := Index(array, int64(i))
		if Equal(e, scalar) {
			return true
		}
	}
	return false
}
