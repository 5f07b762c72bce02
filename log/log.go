// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package log is the logging facade used across hoptrace. It writes through
// the standard logger by default and can be redirected with SetLogger.
package log

import (
	"fmt"
	"log"
	"sync/atomic"
)

// LogLevel orders messages by verbosity, LevelError being the quietest
type LogLevel int

const (
	LevelError LogLevel = iota + 1
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

var levelNames = map[string]LogLevel{
	"error": LevelError,
	"warn":  LevelWarn,
	"info":  LevelInfo,
	"debug": LevelDebug,
	"trace": LevelTrace,
}

func (l LogLevel) String() string {
	for name, lvl := range levelNames {
		if lvl == l {
			return name
		}
	}
	return fmt.Sprintf("LogLevel(%d)", int(l))
}

// ParseLogLevel converts a lowercase level name into a LogLevel
func ParseLogLevel(s string) (LogLevel, error) {
	lvl, ok := levelNames[s]
	if !ok {
		return 0, fmt.Errorf("invalid log level %q (valid: error, warn, info, debug, trace)", s)
	}
	return lvl, nil
}

var (
	enabled atomic.Bool
	level   atomic.Int32
)

func init() {
	enabled.Store(true)
	level.Store(int32(LevelWarn))
}

// SetVerbose turns on every level up to trace when v is true, and silences
// all output otherwise
func SetVerbose(v bool) {
	enabled.Store(v)
	if v {
		SetLogLevel(LevelTrace)
	}
}

// SetLogLevel sets the most verbose level that is written
func SetLogLevel(l LogLevel) {
	level.Store(int32(l))
}

// GetLogLevel returns the current level
func GetLogLevel() LogLevel {
	return LogLevel(level.Load())
}

func shouldLog(l LogLevel) bool {
	return enabled.Load() && LogLevel(level.Load()) >= l
}

type Logger struct {
	Tracef    func(format string, args ...interface{})
	Trace     func(format string)
	Infof     func(format string, args ...interface{})
	Debugf    func(format string, args ...interface{})
	Warnf     func(format string, args ...interface{}) error
	Errorf    func(format string, args ...interface{}) error
	TraceFunc func(func() string)
}

var logger = Logger{
	Tracef:    defaultTracef,
	Trace:     defaultTrace,
	Infof:     defaultInfof,
	Debugf:    defaultDebugf,
	Warnf:     defaultWarnf,
	Errorf:    defaultErrorf,
	TraceFunc: defaultTraceFunc,
}

// SetLogger replaces the sinks used by the package level functions
func SetLogger(l Logger) {
	logger = l
}

func Tracef(format string, args ...interface{}) {
	if logger.Tracef != nil {
		logger.Tracef(format, args...)
	}
}

func Trace(format string) {
	if logger.Trace != nil {
		logger.Trace(format)
	}
}

func Infof(format string, args ...interface{}) {
	if logger.Infof != nil {
		logger.Infof(format, args...)
	}
}

func Debugf(format string, args ...interface{}) {
	if logger.Debugf != nil {
		logger.Debugf(format, args...)
	}
}

func Warnf(format string, args ...interface{}) error {
	if logger.Warnf != nil {
		return logger.Warnf(format, args...)
	}
	return nil
}

func Errorf(format string, args ...interface{}) error {
	if logger.Errorf != nil {
		return logger.Errorf(format, args...)
	}
	return nil
}

// TraceFunc defers building expensive messages until trace level is known to be on
func TraceFunc(logFunc func() string) {
	if logger.TraceFunc != nil {
		logger.TraceFunc(logFunc)
	}
}

var (
	defaultTracef = func(format string, args ...interface{}) {
		if shouldLog(LevelTrace) {
			log.Printf("[TRACE] "+format, args...)
		}
	}

	defaultTrace = func(format string) {
		if shouldLog(LevelTrace) {
			log.Print("[TRACE] " + format)
		}
	}

	defaultInfof = func(format string, args ...interface{}) {
		if shouldLog(LevelInfo) {
			log.Printf("[INFO] "+format, args...)
		}
	}

	defaultDebugf = func(format string, args ...interface{}) {
		if shouldLog(LevelDebug) {
			log.Printf("[DEBUG] "+format, args...)
		}
	}

	defaultErrorf = func(format string, args ...interface{}) error {
		msg := fmt.Sprintf(format, args...)
		if shouldLog(LevelError) {
			log.Print("[ERROR] " + msg)
		}
		return fmt.Errorf("%s", msg)
	}

	defaultWarnf = func(format string, args ...interface{}) error {
		msg := fmt.Sprintf(format, args...)
		if shouldLog(LevelWarn) {
			log.Print("[WARN] " + msg)
		}
		return fmt.Errorf("%s", msg)
	}

	defaultTraceFunc = func(logFunc func() string) {
		if shouldLog(LevelTrace) {
			log.Print("[TRACEFUNC] " + logFunc())
		}
	}
)
