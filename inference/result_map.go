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
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/klauspost/compress/s2"
	"go.uber.org/dyninv/config"
	"go.uber.org/dyninv/diagnostic"
	"go.uber.org/dyninv/ppt"
	"go.uber.org/dyninv/util/orderedmap"
)

// PointResult is what a run found at one program point.
type PointResult struct {
	Name    string
	Samples int
	// Invariants are the surviving invariants, equalities included, in report order.
	Invariants []ppt.Fact
	// Constants are the variables that kept a single value over the whole run.
	Constants  []ppt.ConstantFact
	Equalities []ppt.EqualityGroup
	Stats      ppt.Stats
}

// ResultMap holds the results of a run keyed by program point name, in name order. It is
// encoded with gob and compressed with s2.
type ResultMap struct {
	RunID    string
	Warnings []diagnostic.Warning
	points   *orderedmap.OrderedMap[string, *PointResult]
}

// NewResultMap returns an empty result map.
func NewResultMap(runID string) *ResultMap {
	return &ResultMap{RunID: runID, points: orderedmap.New[string, *PointResult]()}
}

// results collects every point that received samples or had equalities merged into it.
func (e *Engine) results() *ResultMap {
	m := NewResultMap(e.rc.ID.String())
	e.points.OrderedRange(func(name string, p *point) bool {
		groups := p.EqualityGroups()
		if p.NumSamples() == 0 && len(groups) == 0 {
			return true
		}
		m.Store(&PointResult{
			Name:       name,
			Samples:    p.NumSamples(),
			Invariants: p.Invariants(),
			Constants:  p.ConstantFacts(),
			Equalities: groups,
			Stats:      p.Stats(),
		})
		return true
	})
	m.points.SortKeys(strings.Compare)
	m.Warnings = e.rc.Diagnostics.Warnings()
	return m
}

// Store adds or replaces the result of a point. The point keeps its position if present.
func (m *ResultMap) Store(r *PointResult) {
	m.points.Store(r.Name, r)
}

// Load returns the result of the named point.
func (m *ResultMap) Load(name string) (*PointResult, bool) {
	return m.points.Load(name)
}

// Len returns the number of points with results.
func (m *ResultMap) Len() int {
	return m.points.Len()
}

// Names returns the point names in order.
func (m *ResultMap) Names() []string {
	return m.points.Keys()
}

// OrderedRange calls f for every point result in order until f returns false.
func (m *ResultMap) OrderedRange(f func(*PointResult) bool) {
	m.points.OrderedRange(func(_ string, r *PointResult) bool {
		return f(r)
	})
}

type encodedResults struct {
	Version  int
	RunID    string
	Warnings []diagnostic.Warning
	Points   *orderedmap.OrderedMap[string, *PointResult]
}

// GobEncode encodes the result map via gob encoding, compressed with s2.
func (m *ResultMap) GobEncode() (b []byte, err error) {
	var buf bytes.Buffer
	writer := s2.NewWriter(&buf)
	defer func() {
		if cerr := writer.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	enc := encodedResults{
		Version:  config.ResultFormatVersion,
		RunID:    m.RunID,
		Warnings: m.Warnings,
		Points:   m.points,
	}
	if err := gob.NewEncoder(writer).Encode(&enc); err != nil {
		return nil, err
	}

	// Close the s2 writer before getting the bytes such that we have complete information.
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode decodes the result map from buffer.
func (m *ResultMap) GobDecode(input []byte) error {
	var dec encodedResults
	if err := gob.NewDecoder(s2.NewReader(bytes.NewReader(input))).Decode(&dec); err != nil {
		return err
	}
	if dec.Version != config.ResultFormatVersion {
		return fmt.Errorf("result format version %d, want %d", dec.Version, config.ResultFormatVersion)
	}
	m.RunID, m.Warnings, m.points = dec.RunID, dec.Warnings, dec.Points
	if m.points == nil {
		// An empty map encodes to nothing and is skipped by gob.
		m.points = orderedmap.New[string, *PointResult]()
	}
	return nil
}

// Write encodes the result map to w.
func (m *ResultMap) Write(w io.Writer) error {
	return gob.NewEncoder(w).Encode(m)
}

// ReadResults decodes a result map written by Write.
func ReadResults(r io.Reader) (*ResultMap, error) {
	var m ResultMap
	if err := gob.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	return &m, nil
}

// WriteFile writes the encoded result map to path.
func (m *ResultMap) WriteFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	return m.Write(f)
}

// ReadResultsFile reads a result map written by WriteFile.
func ReadResultsFile(path string) (*ResultMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadResults(f)
}

const _rule = "==========================================================================="

// Print writes the invariants of every point, then the warnings, in the usual text layout. Point
// names and warnings are highlighted when colored is set.
func (m *ResultMap) Print(w io.Writer, colored bool) error {
	header := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.Faint)
	warn := color.New(color.FgYellow)
	for _, c := range []*color.Color{header, dim, warn} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	var sb strings.Builder
	m.OrderedRange(func(r *PointResult) bool {
		sb.WriteString(_rule + "\n")
		sb.WriteString(header.Sprint(r.Name))
		sb.WriteString(dim.Sprintf("  (%d samples)", r.Samples))
		sb.WriteString("\n")
		for _, c := range r.Constants {
			sb.WriteString(c.String() + dim.Sprint("  (constant)") + "\n")
		}
		for _, f := range r.Invariants {
			sb.WriteString(f.Text + "\n")
		}
		return true
	})
	if len(m.Warnings) > 0 {
		sb.WriteString(_rule + "\n")
		for _, wn := range m.Warnings {
			sb.WriteString(warn.Sprint("warning: "+wn.String()) + "\n")
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
