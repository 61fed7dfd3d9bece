// Copyright 2021 Matrix Origin
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
	"context"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/matrixorigin/mostl/pkg/common/moerr"
)

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "console"
	defaultMaxSize   = 512

	timeLayout = "2006/01/02 15:04:05.000000 -0700"
)

var _globalLogger atomic.Value

func init() {
	SetupLogger(&LogConfig{
		Level:  defaultLogLevel,
		Format: defaultLogFormat,
	})
}

// LogConfig serializes log related config in toml/json.
type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	Filename   string `toml:"filename"`
	MaxSize    int    `toml:"max-size"`
	MaxDays    int    `toml:"max-days"`
	MaxBackups int    `toml:"max-backups"`
	// StacktraceLevel is the lowest level that records a stack trace.
	// Default is fatal.
	StacktraceLevel string `toml:"stacktrace-level"`
}

// ZapSink pairs an encoder with the syncer it writes to.
type ZapSink struct {
	enc zapcore.Encoder
	out zapcore.WriteSyncer
}

// SetupLogger replaces the global logger with one built from conf.
// It panics on an unknown format or a directory as the log file.
func SetupLogger(conf *LogConfig) {
	replaceGlobalLogger(conf.build())
}

// GetGlobalLogger returns the current global logger.
func GetGlobalLogger() *zap.Logger {
	return _globalLogger.Load().(*zap.Logger)
}

func replaceGlobalLogger(logger *zap.Logger) {
	_globalLogger.Store(logger)
}

func (cfg *LogConfig) build() *zap.Logger {
	sinks := cfg.getSinks()
	cores := make([]zapcore.Core, 0, len(sinks))
	level := cfg.getLevel()
	for _, sink := range sinks {
		cores = append(cores, zapcore.NewCore(sink.enc, sink.out, level))
	}
	return zap.New(zapcore.NewTee(cores...), cfg.getOptions()...)
}

func (cfg *LogConfig) getSyncer() zapcore.WriteSyncer {
	if cfg.Filename == "" {
		return getConsoleSyncer()
	}

	if stat, err := os.Stat(cfg.Filename); err == nil {
		if stat.IsDir() {
			panic("log file can't be a directory")
		}
	}

	if cfg.MaxSize == 0 {
		cfg.MaxSize = defaultMaxSize
	}

	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSize,
		MaxAge:     cfg.MaxDays,
		MaxBackups: cfg.MaxBackups,
		LocalTime:  true,
		Compress:   false,
	})
}

func (cfg *LogConfig) getEncoder() zapcore.Encoder {
	return getLoggerEncoder(cfg.Format)
}

func (cfg *LogConfig) getLevel() zap.AtomicLevel {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		panic(err)
	}
	return level
}

func (cfg *LogConfig) getSinks() (sinks []ZapSink) {
	return []ZapSink{{cfg.getEncoder(), cfg.getSyncer()}}
}

func (cfg *LogConfig) getOptions() []zap.Option {
	stackLevel := zap.NewAtomicLevelAt(zapcore.FatalLevel)
	if cfg.StacktraceLevel != "" {
		if err := stackLevel.UnmarshalText([]byte(cfg.StacktraceLevel)); err != nil {
			panic(err)
		}
	}
	return []zap.Option{zap.AddStacktrace(stackLevel), zap.AddCaller()}
}

var consoleSyncer = zapcore.Lock(os.Stdout)

func getConsoleSyncer() zapcore.WriteSyncer {
	return consoleSyncer
}

func getLoggerEncoder(format string) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "name",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(timeLayout),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,

		ConsoleSeparator: " ",
	}

	switch format {
	case "json", "":
		return zapcore.NewJSONEncoder(encoderConfig)
	case "console":
		return zapcore.NewConsoleEncoder(encoderConfig)
	default:
		panic(moerr.NewInternalError(context.Background(), "unsupported log format: %s", format))
	}
}
