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

package trace

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/dyninv/valuetuple"
	"go.uber.org/dyninv/varinfo"
	"gopkg.in/yaml.v3"
)

// Tags that mark a value as missing. A plain null is nonsensical.
const (
	FlowTag        = "!flow"
	NonsensicalTag = "!nonsensical"
)

// Sample is one record of the sample stream. Values are kept undecoded until the rep types of
// the point are known.
type Sample struct {
	// Seq is the 1-based position of the record in the stream.
	Seq   int
	Ppt   string
	Nonce int64
	// HasNonce is false for points that are not method entries or exits.
	HasNonce bool
	// Count is the number of identical samples the record stands for.
	Count  int
	Values []yaml.Node
}

type rawSample struct {
	Ppt    string      `yaml:"ppt"`
	Nonce  *int64      `yaml:"nonce"`
	Count  int         `yaml:"count"`
	Values []yaml.Node `yaml:"values"`
}

// SampleReader reads a stream of YAML documents, one sample each:
//
//	ppt: pkg.Stack.push(int):::ENTER
//	nonce: 17
//	values: [3, [1, 2], null, !flow]
type SampleReader struct {
	dec *yaml.Decoder
	seq int
}

// NewSampleReader returns a reader over r.
func NewSampleReader(r io.Reader) *SampleReader {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	return &SampleReader{dec: dec}
}

// Next returns the next sample, or io.EOF at the end of the stream.
func (r *SampleReader) Next() (*Sample, error) {
	var raw rawSample
	if err := r.dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("decode sample %d: %w", r.seq+1, err)
	}
	r.seq++
	if raw.Ppt == "" {
		return nil, fmt.Errorf("decode sample %d: no program point", r.seq)
	}
	if raw.Count < 0 {
		return nil, fmt.Errorf("decode sample %d: negative count %d", r.seq, raw.Count)
	}
	s := &Sample{Seq: r.seq, Ppt: raw.Ppt, Count: max(raw.Count, 1), Values: raw.Values}
	if raw.Nonce != nil {
		s.Nonce, s.HasNonce = *raw.Nonce, true
	}
	return s, nil
}

// ValueError is a value of a sample that cannot be decoded for the rep type of its variable.
type ValueError struct {
	// Index is the position of the value in the sample.
	Index int
	Err   error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("value %d: %v", e.Index, e.Err)
}

func (e *ValueError) Unwrap() error { return e.Err }

// Decode decodes the values of the sample, which must be one per rep type. A value that cannot
// be decoded is MissingNonsensical in the result and reported in bad; err is only set when the
// number of values is wrong.
func (s *Sample) Decode(reps []varinfo.RepType) (vals []any, mods []valuetuple.ModCode, bad []*ValueError, err error) {
	if len(s.Values) != len(reps) {
		return nil, nil, nil, fmt.Errorf("sample %d at %s: %d values, %d expected", s.Seq, s.Ppt, len(s.Values), len(reps))
	}
	vals = make([]any, len(reps))
	mods = make([]valuetuple.ModCode, len(reps))
	for i, rep := range reps {
		v, mod, derr := DecodeValue(&s.Values[i], rep)
		if derr != nil {
			bad = append(bad, &ValueError{Index: i, Err: derr})
			v, mod = nil, valuetuple.MissingNonsensical
		}
		vals[i], mods[i] = v, mod
	}
	return vals, mods, bad, nil
}

// DecodeValue decodes one value of the given rep type. Null and the missing tags yield a nil
// value with a missing mod code; other values are Modified.
func DecodeValue(node *yaml.Node, rep varinfo.RepType) (any, valuetuple.ModCode, error) {
	switch node.ShortTag() {
	case "!!null":
		return nil, valuetuple.MissingNonsensical, nil
	case NonsensicalTag:
		return nil, valuetuple.MissingNonsensical, nil
	case FlowTag:
		return nil, valuetuple.MissingFlow, nil
	}
	var (
		v   any
		err error
	)
	if rep.IsArray() {
		v, err = decodeArray(node, rep.Elem())
	} else {
		v, err = decodeScalar(node, rep)
	}
	if err != nil {
		return nil, 0, err
	}
	return v, valuetuple.Modified, nil
}

func decodeArray(node *yaml.Node, elem varinfo.RepType) (any, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%s[] value must be a sequence, got %q", elem, node.Value)
	}
	switch elem.Internal() {
	case varinfo.Int:
		return decodeElems[int64](node, elem)
	case varinfo.Double:
		return decodeElems[float64](node, elem)
	default:
		return decodeElems[string](node, elem)
	}
}

func decodeElems[T int64 | float64 | string](node *yaml.Node, elem varinfo.RepType) ([]T, error) {
	out := make([]T, len(node.Content))
	for i, n := range node.Content {
		v, err := decodeScalar(n, elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v.(T)
	}
	return out, nil
}

func decodeScalar(node *yaml.Node, rep varinfo.RepType) (any, error) {
	if node.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("%s value must be a scalar", rep)
	}
	switch rep {
	case varinfo.Boolean:
		var b bool
		if err := node.Decode(&b); err == nil {
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
		n, err := strconv.ParseInt(node.Value, 10, 64)
		if err != nil || (n != 0 && n != 1) {
			return nil, fmt.Errorf("invalid boolean %q", node.Value)
		}
		return n, nil
	case varinfo.Int, varinfo.Hashcode:
		// Decoding a float into an int64 truncates it.
		var n int64
		if node.ShortTag() != "!!int" {
			return nil, fmt.Errorf("invalid %s %q", rep, node.Value)
		}
		if err := node.Decode(&n); err != nil {
			return nil, fmt.Errorf("invalid %s %q", rep, node.Value)
		}
		return n, nil
	case varinfo.Double:
		var f float64
		if err := node.Decode(&f); err == nil {
			return f, nil
		}
		// Accepts NaN and Inf spelled the way strconv does.
		f, err := strconv.ParseFloat(strings.TrimSpace(node.Value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid double %q", node.Value)
		}
		return f, nil
	case varinfo.String:
		return node.Value, nil
	}
	return nil, fmt.Errorf("cannot decode values of rep %s", rep)
}
