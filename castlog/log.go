// Copyright 2025 The Cast Authors
// This file is part of Cast.
//
// Cast is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Cast is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Cast. If not, see <http://www.gnu.org/licenses/>.

// Package castlog is the leveled logger shared by every component. It is
// called the way erigon-lib/log/v3 is: a message plus alternating
// key/value pairs, never a printf-style format string for the fields.
package castlog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a thin call-through to zap's SugaredLogger, keeping the
// public surface small and independent of zap's API.
type Logger struct {
	s *zap.SugaredLogger
}

// New builds a console logger at the given level ("debug", "info", "warn",
// "error"). Unknown levels fall back to "info".
func New(level string) *Logger {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.TimeKey = "ts"
	enc := zapcore.NewConsoleEncoder(cfg)
	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), parseLevel(level))
	return &Logger{s: zap.New(core).Sugar()}
}

// NewRotating builds a logger that writes to a rotating file via
// lumberjack, for long-running invocations (cascade mode) where a console
// sink isn't attached.
func NewRotating(path string, maxSizeMB, maxBackups, maxAgeDays int) *Logger {
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	enc := zapcore.NewJSONEncoder(cfg)
	core := zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.InfoLevel)
	return &Logger{s: zap.New(core).Sugar()}
}

// Noop returns a logger that discards everything, for tests that don't
// want console noise.
func Noop() *Logger {
	return &Logger{s: zap.NewNop().Sugar()}
}

func parseLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.Set(level); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

func (l *Logger) Debug(msg string, kv ...any) { l.s.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...any)   { l.s.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...any)   { l.s.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...any)  { l.s.Errorw(msg, kv...) }

// Sync flushes any buffered log entries; call before process exit.
func (l *Logger) Sync() error { return l.s.Sync() }

var root = New("info")

// Root returns the process-wide default logger, the way erigon-lib/log/v3
// exposes package-level Info/Warn/Error calls against a root logger.
func Root() *Logger { return root }

// SetRoot replaces the process-wide default logger (e.g. cmd/hsync wiring
// in a --log-level flag).
func SetRoot(l *Logger) { root = l }

func Debug(msg string, kv ...any) { root.Debug(msg, kv...) }
func Info(msg string, kv ...any)  { root.Info(msg, kv...) }
func Warn(msg string, kv ...any)  { root.Warn(msg, kv...) }
func Error(msg string, kv ...any) { root.Error(msg, kv...) }
