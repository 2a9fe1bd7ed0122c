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

// main package builds the dyninv command, which infers invariants from a trace and prints or
// saves them.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/dyninv"
	"go.uber.org/dyninv/config"
	"go.uber.org/dyninv/inference"
	"go.uber.org/dyninv/runctx"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dyninv",
		Short:         "Infer likely invariants from sampled program variables",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newPrintCmd())
	return root
}

type runOptions struct {
	config  string
	decls   string
	trace   string
	out     string
	metrics string
	color   string
	quiet   bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run --decls FILE --trace FILE",
		Short: "Infer the invariants of the declared program points from a trace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.config, "config", "", "YAML configuration file")
	f.StringVar(&opts.decls, "decls", "", "YAML declaration file")
	f.StringVar(&opts.trace, "trace", "", "YAML sample stream, optionally compressed (.gz, .zst, .s2)")
	f.StringVar(&opts.out, "out", "", "write the encoded results to this file")
	f.StringVar(&opts.metrics, "metrics", "", "write the run metrics in Prometheus text format to this file, - for stdout")
	f.StringVar(&opts.color, "color", "auto", "color the printed results: auto, always or never")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "do not print the results")
	_ = cmd.MarkFlagRequired("decls")
	_ = cmd.MarkFlagRequired("trace")
	return cmd
}

func (o *runOptions) run(ctx context.Context, stdout, stderr io.Writer) error {
	colored, err := useColor(o.color, stdout)
	if err != nil {
		return err
	}
	cfg := config.Default()
	if o.config != "" {
		if cfg, err = config.Load(o.config); err != nil {
			return err
		}
	}
	rc, err := runctx.New(cfg, stderr)
	if err != nil {
		return err
	}

	res, err := dyninv.RunFiles(ctx, rc, o.decls, o.trace)
	if err != nil {
		return err
	}
	if o.out != "" {
		if err := res.WriteFile(o.out); err != nil {
			return fmt.Errorf("write results: %w", err)
		}
	}
	if !o.quiet {
		if err := res.Print(stdout, colored); err != nil {
			return err
		}
	}
	return writeMetrics(rc, o.metrics, stdout)
}

func writeMetrics(rc *runctx.Context, path string, stdout io.Writer) (err error) {
	switch path {
	case "":
		return nil
	case "-":
		return rc.Stats.WriteText(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return rc.Stats.WriteText(f)
}

func newPrintCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "print FILE",
		Short: "Print results saved by run --out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			colored, err := useColor(mode, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			res, err := inference.ReadResultsFile(args[0])
			if err != nil {
				return err
			}
			return res.Print(cmd.OutOrStdout(), colored)
		},
	}
	cmd.Flags().StringVar(&mode, "color", "auto", "color the printed results: auto, always or never")
	return cmd
}

func useColor(mode string, w io.Writer) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto":
		return !color.NoColor && runctx.IsTerminal(w), nil
	}
	return false, fmt.Errorf("--color: unknown value %q", mode)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "dyninv:", err)
		os.Exit(1)
	}
}
