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

// Package dyninv infers likely invariants of a program from samples of its variables taken at
// program points: method entries and exits, and object and class level points. It reads the
// declared points and a trace of samples, and reports the properties no sample contradicted.
package dyninv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/dyninv/inference"
	"go.uber.org/dyninv/runctx"
	"go.uber.org/dyninv/trace"
)

// Run infers the invariants of the points declared in decls from the samples in samples.
func Run(ctx context.Context, rc *runctx.Context, decls, samples io.Reader) (*inference.ResultMap, error) {
	d, err := trace.ReadDecls(decls)
	if err != nil {
		return nil, err
	}
	e, err := inference.NewEngine(rc, d)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, trace.NewSampleReader(samples))
}

// RunFiles is Run over files. A trace file ending in .gz, .zst or .s2 is decompressed.
func RunFiles(ctx context.Context, rc *runctx.Context, declsPath, tracePath string) (res *inference.ResultMap, err error) {
	decls, err := os.Open(declsPath)
	if err != nil {
		return nil, fmt.Errorf("open declarations: %w", err)
	}
	defer decls.Close()

	samples, err := OpenTrace(tracePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := samples.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	return Run(ctx, rc, decls, samples)
}

// OpenTrace opens a trace file, decompressing it according to its extension.
func OpenTrace(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	r, err := decompress(f, filepath.Ext(path))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open trace %s: %w", path, err)
	}
	return r, nil
}

type readCloser struct {
	io.Reader
	close func() error
}

func (rc readCloser) Close() error { return rc.close() }

func decompress(f *os.File, ext string) (io.ReadCloser, error) {
	switch ext {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		return readCloser{Reader: zr, close: func() error { return errors.Join(zr.Close(), f.Close()) }}, nil
	case ".zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, err
		}
		return readCloser{Reader: zr, close: func() error {
			zr.Close()
			return f.Close()
		}}, nil
	case ".s2":
		return readCloser{Reader: s2.NewReader(f), close: f.Close}, nil
	}
	return f, nil
}
