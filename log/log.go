// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package log defines the structured logging interface used by every
// package in this module: a small With/Debug/Info/Warn/Error surface
// taking variadic key-value pairs, so call sites never reach for
// fmt.Printf-style logging.
package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logging surface every subsystem is handed at
// construction. Implementations must be safe for concurrent use.
type Logger interface {
	// With returns a child logger with the given key-value pairs
	// attached to every subsequent log line.
	With(kv ...interface{}) Logger

	Debug(msg string, kv ...interface{})
	Info(msg string, kv ...interface{})
	Warn(msg string, kv ...interface{})
	Error(msg string, kv ...interface{})
}

// NoOp returns a Logger that discards everything. Used as the default in
// unit tests so assertions aren't drowned in log noise.
func NoOp() Logger { return noop{} }

type noop struct{}

func (noop) With(kv ...interface{}) Logger       { return noop{} }
func (noop) Debug(msg string, kv ...interface{}) {}
func (noop) Info(msg string, kv ...interface{})  {}
func (noop) Warn(msg string, kv ...interface{})  {}
func (noop) Error(msg string, kv ...interface{}) {}

// zapLogger adapts a *zap.SugaredLogger to the Logger interface.
type zapLogger struct {
	s *zap.SugaredLogger
}

// NewProduction returns a Logger backed by zap's production encoder
// (JSON, ISO8601 timestamps) writing to stderr.
func NewProduction() (Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &zapLogger{s: base.Sugar()}, nil
}

// NewDevelopment returns a Logger backed by zap's human-readable console
// encoder, for local runs of cmd/indra.
func NewDevelopment() (Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &zapLogger{s: base.Sugar()}, nil
}

func (z *zapLogger) With(kv ...interface{}) Logger {
	return &zapLogger{s: z.s.With(kv...)}
}

func (z *zapLogger) Debug(msg string, kv ...interface{}) { z.s.Debugw(msg, kv...) }
func (z *zapLogger) Info(msg string, kv ...interface{})  { z.s.Infow(msg, kv...) }
func (z *zapLogger) Warn(msg string, kv ...interface{})  { z.s.Warnw(msg, kv...) }
func (z *zapLogger) Error(msg string, kv ...interface{}) { z.s.Errorw(msg, kv...) }
