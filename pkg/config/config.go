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

package config

import (
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"

	"github.com/matrixorigin/mostl/pkg/common/moerr"
	"github.com/matrixorigin/mostl/pkg/logutil"
)

const (
	AllocatorHeap  = "heap"
	AllocatorClass = "class"
	AllocatorArena = "arena"
	AllocatorMmap  = "mmap"
)

var (
	defaultArenaCapacity   = 1 << 20
	defaultClassBufferSize = uint64(1 << 30)
	defaultWorkers         = 8
	defaultTasks           = 64
	defaultOps             = 10000
	defaultMaxLen          = 4096
)

// Config is the mostl-bench configuration.
type Config struct {
	Log    logutil.LogConfig `toml:"log"`
	Vector VectorConfig      `toml:"vector"`
	Bench  BenchConfig       `toml:"bench"`
}

// VectorConfig selects the storage backend of the benchmarked vectors.
type VectorConfig struct {
	// Allocator is one of heap, class, arena or mmap.
	Allocator string `toml:"allocator"`
	// Debug turns on vector debug checks and element lifetime tracking.
	Debug bool `toml:"debug"`
	// Capacity is reserved by every vector up front.
	Capacity int `toml:"capacity"`
	// HeapLimit caps the heap allocator in bytes, 0 is unlimited.
	HeapLimit int64 `toml:"heap-limit"`
	// ClassBufferSize bounds the bytes parked by the class allocator.
	ClassBufferSize uint64 `toml:"class-buffer-size"`
	// ArenaCapacity is the arena size in elements.
	ArenaCapacity int `toml:"arena-capacity"`
}

// BenchConfig shapes the randomized workload.
type BenchConfig struct {
	Workers int `toml:"workers"`
	// Tasks is the number of independent vectors exercised.
	Tasks int `toml:"tasks"`
	// Ops is the number of operations per task.
	Ops int `toml:"ops"`
	// MaxLen bounds the length a task grows its vector to.
	MaxLen int `toml:"max-len"`
	// Seed of the first task, task i uses Seed+i.
	Seed int64 `toml:"seed"`
}

// Default returns a configuration that passes Validate.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaultValues()
	return cfg
}

// SetDefaultValues fills every unset field.
func (cfg *Config) SetDefaultValues() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = zapcore.InfoLevel.String()
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Vector.Allocator == "" {
		cfg.Vector.Allocator = AllocatorHeap
	}
	if cfg.Vector.ClassBufferSize == 0 {
		cfg.Vector.ClassBufferSize = defaultClassBufferSize
	}
	if cfg.Vector.ArenaCapacity == 0 {
		cfg.Vector.ArenaCapacity = defaultArenaCapacity
	}
	if cfg.Bench.Workers == 0 {
		cfg.Bench.Workers = defaultWorkers
	}
	if cfg.Bench.Tasks == 0 {
		cfg.Bench.Tasks = defaultTasks
	}
	if cfg.Bench.Ops == 0 {
		cfg.Bench.Ops = defaultOps
	}
	if cfg.Bench.MaxLen == 0 {
		cfg.Bench.MaxLen = defaultMaxLen
	}
}

// Load decodes the toml file at path over the defaults and validates
// the result. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load config %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, moerr.NewBadConfigNoCtx("unknown keys %s in %s", strings.Join(keys, ", "), path)
	}
	cfg.SetDefaultValues()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

// Validate returns ErrBadConfig for the first invalid field.
func (cfg *Config) Validate() error {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return moerr.NewBadConfigNoCtx("log level %q", cfg.Log.Level)
	}
	if cfg.Log.StacktraceLevel != "" {
		if err := level.UnmarshalText([]byte(cfg.Log.StacktraceLevel)); err != nil {
			return moerr.NewBadConfigNoCtx("log stacktrace level %q", cfg.Log.StacktraceLevel)
		}
	}
	switch cfg.Log.Format {
	case "console", "json":
	default:
		return moerr.NewBadConfigNoCtx("log format %q", cfg.Log.Format)
	}

	switch cfg.Vector.Allocator {
	case AllocatorHeap, AllocatorClass, AllocatorArena, AllocatorMmap:
	default:
		return moerr.NewBadConfigNoCtx("allocator %q, want one of heap, class, arena, mmap", cfg.Vector.Allocator)
	}
	if cfg.Vector.Capacity < 0 {
		return moerr.NewBadConfigNoCtx("vector capacity %d", cfg.Vector.Capacity)
	}
	if cfg.Vector.HeapLimit < 0 {
		return moerr.NewBadConfigNoCtx("heap limit %d", cfg.Vector.HeapLimit)
	}
	if cfg.Vector.ArenaCapacity <= 0 {
		return moerr.NewBadConfigNoCtx("arena capacity %d", cfg.Vector.ArenaCapacity)
	}

	if cfg.Bench.Workers <= 0 {
		return moerr.NewBadConfigNoCtx("workers %d", cfg.Bench.Workers)
	}
	if cfg.Bench.Tasks <= 0 {
		return moerr.NewBadConfigNoCtx("tasks %d", cfg.Bench.Tasks)
	}
	if cfg.Bench.Ops < 0 {
		return moerr.NewBadConfigNoCtx("ops %d", cfg.Bench.Ops)
	}
	if cfg.Bench.MaxLen <= 0 {
		return moerr.NewBadConfigNoCtx("max len %d", cfg.Bench.MaxLen)
	}
	return nil
}

// Encode writes cfg as toml.
func (cfg *Config) Encode(w io.Writer) error {
	return errors.WithStack(toml.NewEncoder(w).Encode(cfg))
}
