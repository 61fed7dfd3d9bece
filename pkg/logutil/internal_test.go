// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logutil

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/lni/goutils/leaktest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/matrixorigin/mostl/pkg/common/moerr"
)

// useLogger installs a logger writing to a fresh file and restores the
// previous global logger when the test ends.
func useLogger(t *testing.T, conf *LogConfig) string {
	prev := GetGlobalLogger()
	t.Cleanup(func() { replaceGlobalLogger(prev) })
	conf.Filename = filepath.Join(t.TempDir(), "mostl.log")
	SetupLogger(conf)
	return conf.Filename
}

func readJSONLines(t *testing.T, path string) []map[string]any {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []map[string]any
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)
	for scanner.Scan() {
		entry := map[string]any{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry), scanner.Text())
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func TestLevelFilter(t *testing.T) {
	path := useLogger(t, &LogConfig{Level: "warn", Format: "json"})

	Debug("arena reset")
	Info("allocator ready", zap.String("backend", "arena"))
	Warn("mmap failed", zap.Int("elements", 4))
	Error("bench failed", zap.String("task", "3"))

	entries := readJSONLines(t, path)
	require.Len(t, entries, 2)
	require.Equal(t, "WARN", entries[0]["level"])
	require.Equal(t, "mmap failed", entries[0]["msg"])
	require.Equal(t, float64(4), entries[0]["elements"])
	require.Equal(t, "ERROR", entries[1]["level"])
	require.Equal(t, "3", entries[1]["task"])

	// the helpers skip their own frame
	require.Regexp(t, `logutil/internal_test\.go:\d+$`, entries[0]["caller"])
}

func TestStacktraceLevel(t *testing.T) {
	cases := []struct {
		level     string
		withStack map[string]bool
	}{
		{"", map[string]bool{"warn": false, "error": false}},
		{"error", map[string]bool{"warn": false, "error": true}},
		{"warn", map[string]bool{"warn": true, "error": true}},
	}
	for _, c := range cases {
		t.Run("stacktrace "+c.level, func(t *testing.T) {
			path := useLogger(t, &LogConfig{
				Level:           "debug",
				Format:          "json",
				StacktraceLevel: c.level,
			})
			Warn("warn")
			Error("error")

			entries := readJSONLines(t, path)
			require.Len(t, entries, 2)
			for _, entry := range entries {
				_, has := entry["stacktrace"]
				require.Equal(t, c.withStack[entry["msg"].(string)], has, entry["msg"])
			}
		})
	}
}

func TestConsoleFormat(t *testing.T) {
	path := useLogger(t, &LogConfig{Level: "info", Format: "console"})
	Info("bench done", zap.Int("tasks", 8))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// like: 2024/05/01 10:00:00.000000 +0800 INFO logutil/internal_test.go:112 bench done {"tasks": 8}
	line := regexp.MustCompile(`^\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}\.\d{6} [+-]\d{4} INFO \S+ bench done \{"tasks": 8\}\n$`)
	require.Regexp(t, line, string(data))
}

func TestFileDefaults(t *testing.T) {
	conf := &LogConfig{Level: "info", Format: "json", Filename: filepath.Join(t.TempDir(), "a.log")}
	require.NotNil(t, conf.getSyncer())
	require.Equal(t, defaultMaxSize, conf.MaxSize)

	conf = &LogConfig{Level: "info", Format: "json"}
	require.Equal(t, getConsoleSyncer(), conf.getSyncer())
	require.Zero(t, conf.MaxSize)
}

func TestSetupLoggerRejects(t *testing.T) {
	defer leaktest.AfterTest(t)()
	prev := GetGlobalLogger()
	defer replaceGlobalLogger(prev)

	cases := []struct {
		name string
		conf LogConfig
		want any
	}{
		{
			name: "format",
			conf: LogConfig{Level: "info", Format: "xml"},
			want: moerr.NewInternalErrorNoCtx("unsupported log format: %s", "xml"),
		},
		{
			name: "directory",
			conf: LogConfig{Level: "info", Format: "json", Filename: t.TempDir()},
			want: "log file can't be a directory",
		},
		{name: "level", conf: LogConfig{Level: "loud", Format: "json"}},
		{name: "stacktrace level", conf: LogConfig{Level: "info", Format: "json", StacktraceLevel: "sometimes"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			defer func() {
				r := recover()
				require.NotNil(t, r)
				if c.want != nil {
					require.Equal(t, c.want, r)
				}
			}()
			SetupLogger(&c.conf)
		})
	}
	// a rejected config leaves the global logger alone
	require.Same(t, prev, GetGlobalLogger())
}

func TestGlobalLoggerEnabled(t *testing.T) {
	prev := GetGlobalLogger()
	defer replaceGlobalLogger(prev)

	SetupLogger(&LogConfig{Level: "error", Format: "console"})
	require.False(t, GetGlobalLogger().Core().Enabled(zapcore.WarnLevel))
	require.True(t, GetGlobalLogger().Core().Enabled(zapcore.ErrorLevel))
}
