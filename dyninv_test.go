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

package dyninv

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
	"go.uber.org/dyninv/config"
	"go.uber.org/dyninv/inference"
	"go.uber.org/dyninv/runctx"
	"go.uber.org/goleak"
)

const (
	_stackDecls = "testdata/stack.decls.yaml"
	_stackTrace = "testdata/stack.trace.yaml"
)

func invariants(t *testing.T, res *inference.ResultMap, name string) []string {
	t.Helper()
	r, ok := res.Load(name)
	require.True(t, ok, "no result for %s", name)
	out := make([]string, len(r.Invariants))
	for i, f := range r.Invariants {
		out[i] = f.Text
	}
	return out
}

func TestRunFiles(t *testing.T) {
	t.Parallel()

	res, err := RunFiles(context.Background(), runctx.ForTest(nil), _stackDecls, _stackTrace)
	require.NoError(t, err)
	require.Empty(t, res.Warnings)

	push := invariants(t, res, "Stack.push(int):::EXIT")
	require.Contains(t, push, "x == orig(x)")
	require.Contains(t, push, "this.size > orig(this.size)")
	require.Contains(t, push, "this == orig(this)")
	require.Contains(t, push, "this.cap == orig(this.cap)")
	require.Equal(t, push, invariants(t, res, "Stack.push(int):::EXIT1"))

	size := invariants(t, res, "Stack.size():::EXIT")
	require.Contains(t, size, "this.size == return")
	require.Contains(t, size, "this.size == orig(this.size)")

	r, _ := res.Load("Stack.push(int):::ENTER")
	require.Equal(t, 6, r.Samples)
	var constants []string
	for _, c := range r.Constants {
		constants = append(constants, c.String())
	}
	require.Contains(t, constants, "this.cap == 8")

	var out bytes.Buffer
	require.NoError(t, res.Print(&out, false))
	require.Contains(t, out.String(), "Stack.size():::EXIT  (6 samples)\n")
	require.Contains(t, out.String(), "this.cap == 8  (constant)\n")
}

func TestRunFiles_Compressed(t *testing.T) {
	t.Parallel()

	plain, err := RunFiles(context.Background(), runctx.ForTest(nil), _stackDecls, _stackTrace)
	require.NoError(t, err)
	data, err := os.ReadFile(_stackTrace)
	require.NoError(t, err)

	tests := []struct {
		ext      string
		compress func(t *testing.T, w io.Writer) io.WriteCloser
	}{
		{ext: ".gz", compress: func(_ *testing.T, w io.Writer) io.WriteCloser { return gzip.NewWriter(w) }},
		{ext: ".zst", compress: func(t *testing.T, w io.Writer) io.WriteCloser {
			zw, err := zstd.NewWriter(w)
			require.NoError(t, err)
			return zw
		}},
		{ext: ".s2", compress: func(_ *testing.T, w io.Writer) io.WriteCloser { return s2.NewWriter(w) }},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			w := tt.compress(t, &buf)
			_, err := w.Write(data)
			require.NoError(t, err)
			require.NoError(t, w.Close())
			path := filepath.Join(t.TempDir(), "stack.trace.yaml"+tt.ext)
			require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

			res, err := RunFiles(context.Background(), runctx.ForTest(nil), _stackDecls, path)
			require.NoError(t, err)
			require.Equal(t, plain.Names(), res.Names())
			for _, name := range plain.Names() {
				require.Equal(t, invariants(t, plain, name), invariants(t, res, name), name)
			}
		})
	}

	t.Run("corrupt", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "trace.yaml.gz")
		require.NoError(t, os.WriteFile(path, []byte("not gzip"), 0o600))
		_, err := RunFiles(context.Background(), runctx.ForTest(nil), _stackDecls, path)
		require.ErrorContains(t, err, "open trace")
	})
}

func TestRunFiles_Missing(t *testing.T) {
	t.Parallel()

	_, err := RunFiles(context.Background(), runctx.ForTest(nil), "testdata/none.yaml", _stackTrace)
	require.ErrorContains(t, err, "open declarations")
	_, err = RunFiles(context.Background(), runctx.ForTest(nil), _stackDecls, "testdata/none.yaml")
	require.ErrorContains(t, err, "open trace")
}

func TestRun_ConfigAndLogs(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("testdata/stack.config.yaml")
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Workers)

	var logs bytes.Buffer
	rc, err := runctx.New(cfg, &logs)
	require.NoError(t, err)
	decls, err := os.Open(_stackDecls)
	require.NoError(t, err)
	defer decls.Close()
	samples, err := os.Open(_stackTrace)
	require.NoError(t, err)
	defer samples.Close()
	_, err = Run(context.Background(), rc, decls, samples)
	require.NoError(t, err)

	var finished bool
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		require.Equal(t, rc.ID.String(), entry["run_id"])
		if entry["msg"] == "run finished" {
			finished = true
			require.EqualValues(t, 6, entry["points"])
		}
	}
	require.True(t, finished)
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
