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

// Package runctx holds the explicit per-run context of an inference run: its id, configuration,
// logger, metrics and invariant factory. Nothing in the engine reads ambient globals; everything
// a point needs beyond its own state comes from a *Context.
package runctx

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"go.uber.org/dyninv/config"
	"go.uber.org/dyninv/diagnostic"
	"go.uber.org/dyninv/invariant"
)

// Context is shared read-only by every program point of a run. Its Stats and Diagnostics are safe
// for concurrent use.
type Context struct {
	ID          uuid.UUID
	Config      *config.Config
	Logger      *slog.Logger
	Stats       *Stats
	Factory     *invariant.Factory
	Diagnostics *diagnostic.Engine
}

// New creates the context of one run. Logs go to logOut; a nil logOut discards them.
func New(cfg *config.Config, logOut io.Writer) (*Context, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	disabled := make([]invariant.Kind, 0, len(cfg.Invariants.Disabled))
	for _, name := range cfg.Invariants.Disabled {
		k, err := invariant.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("invariants.disabled: %w", err)
		}
		disabled = append(disabled, k)
	}

	id := uuid.New()
	logger, err := newLogger(cfg.Log, logOut)
	if err != nil {
		return nil, err
	}
	return &Context{
		ID:          id,
		Config:      cfg,
		Logger:      logger.With(slog.String("run_id", id.String())),
		Stats:       NewStats(),
		Factory:     invariant.NewFactory(disabled, cfg.Invariants.OneOfLimit),
		Diagnostics: diagnostic.NewEngine(),
	}, nil
}

// ForTest returns a context with the given configuration, or the defaults when cfg is nil, and
// a discarding logger. It panics on an invalid configuration.
func ForTest(cfg *config.Config) *Context {
	rc, err := New(cfg, nil)
	if err != nil {
		panic(err)
	}
	return rc
}

// PointLogger returns the run logger annotated with a program point name.
func (rc *Context) PointLogger(ppt string) *slog.Logger {
	return rc.Logger.With(slog.String("ppt", ppt))
}

// Warn records a recoverable condition in the diagnostics, the metrics and the log.
func (rc *Context) Warn(w diagnostic.Warning) {
	rc.Diagnostics.AddWarning(w)
	rc.Stats.Warnings.WithLabelValues(w.Kind.String()).Inc()
	rc.Logger.Warn(w.Msg,
		slog.String("kind", w.Kind.String()),
		slog.String("ppt", w.Ppt),
		slog.String("var", w.Var),
		slog.Int("seq", w.Seq),
	)
}

func newLogger(cfg config.LogConfig, out io.Writer) (*slog.Logger, error) {
	if out == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	text := cfg.Format == "text"
	if cfg.Format == "auto" {
		text = IsTerminal(out)
	}
	if text {
		return slog.New(slog.NewTextHandler(out, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(out, opts)), nil
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
