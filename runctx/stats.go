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

package runctx

import (
	"fmt"
	"io"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Stats holds the counters of one run on a registry of its own.
type Stats struct {
	Registry *prometheus.Registry

	// Samples counts samples processed, by point kind (enter, exit, other).
	Samples *prometheus.CounterVec
	// Instantiated counts candidate invariants created, by arity.
	Instantiated *prometheus.CounterVec
	// Falsified counts candidate invariants discarded, by arity.
	Falsified *prometheus.CounterVec
	// EqualitySplits counts equality sets split by a sample.
	EqualitySplits prometheus.Counter
	// ConstantsPromoted counts variables that stopped being dynamic constants.
	ConstantsPromoted prometheus.Counter
	// Warnings counts recoverable conditions by kind.
	Warnings *prometheus.CounterVec
	// Points is the number of program points with results.
	Points prometheus.Gauge
}

// NewStats returns zeroed counters registered on a fresh registry.
func NewStats() *Stats {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Stats{
		Registry: reg,
		Samples: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dyninv_samples_total",
			Help: "Samples processed by point kind",
		}, []string{"kind"}),
		Instantiated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dyninv_invariants_instantiated_total",
			Help: "Candidate invariants created by arity",
		}, []string{"arity"}),
		Falsified: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dyninv_invariants_falsified_total",
			Help: "Candidate invariants falsified by arity",
		}, []string{"arity"}),
		EqualitySplits: f.NewCounter(prometheus.CounterOpts{
			Name: "dyninv_equality_splits_total",
			Help: "Equality sets split by a sample",
		}),
		ConstantsPromoted: f.NewCounter(prometheus.CounterOpts{
			Name: "dyninv_constants_promoted_total",
			Help: "Variables that stopped being dynamic constants",
		}),
		Warnings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dyninv_warnings_total",
			Help: "Recoverable conditions by kind",
		}, []string{"kind"}),
		Points: f.NewGauge(prometheus.GaugeOpts{
			Name: "dyninv_points",
			Help: "Program points with results",
		}),
	}
}

// AddInstantiated counts n invariants created over slices of the given arity.
func (s *Stats) AddInstantiated(arity, n int) {
	if n > 0 {
		s.Instantiated.WithLabelValues(strconv.Itoa(arity)).Add(float64(n))
	}
}

// AddFalsified counts n invariants discarded from slices of the given arity.
func (s *Stats) AddFalsified(arity, n int) {
	if n > 0 {
		s.Falsified.WithLabelValues(strconv.Itoa(arity)).Add(float64(n))
	}
}

// WriteText writes every gathered metric in the Prometheus text exposition format.
func (s *Stats) WriteText(w io.Writer) error {
	mfs, err := s.Registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
