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

package diagnostic

import (
	"errors"
	"fmt"
	"strings"
)

// Fatal is a structural violation that aborts the whole run: a length or arity mismatch, a
// required parent variable that does not exist, a reused ENTER nonce. The core panics with a
// *Fatal and the engine recovers it into an error.
type Fatal struct {
	// Ppt names the offending program point, if known.
	Ppt string
	// Var names the offending variable, if known.
	Var string
	// Msg describes the violation.
	Msg string
}

// Fatalf returns a Fatal for ppt and variable v. Either may be empty.
func Fatalf(ppt, v string, format string, args ...any) *Fatal {
	return &Fatal{Ppt: ppt, Var: v, Msg: fmt.Sprintf(format, args...)}
}

func (f *Fatal) Error() string {
	var sb strings.Builder
	sb.WriteString("fatal")
	if f.Ppt != "" {
		sb.WriteString(" at ")
		sb.WriteString(f.Ppt)
	}
	if f.Var != "" {
		sb.WriteString(" variable ")
		sb.WriteString(f.Var)
	}
	sb.WriteString(": ")
	sb.WriteString(f.Msg)
	return sb.String()
}

// AsError turns a value recovered from a panic into an error. A *Fatal is returned as is; any
// other value is wrapped in a Fatal attributed to ppt, since it also means the state of the
// point can no longer be trusted.
func AsError(ppt string, recovered any) error {
	switch r := recovered.(type) {
	case *Fatal:
		if r.Ppt == "" {
			r.Ppt = ppt
		}
		return r
	case error:
		var f *Fatal
		if errors.As(r, &f) {
			return r
		}
		return &Fatal{Ppt: ppt, Msg: r.Error()}
	default:
		return &Fatal{Ppt: ppt, Msg: fmt.Sprint(r)}
	}
}
