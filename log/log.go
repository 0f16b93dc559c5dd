// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package log is a small leveled logger whose sinks can be replaced by the
// embedding application.
package log

import (
	"fmt"
	"log"
)

// LogLevel orders log verbosity, from the least to the most verbose
type LogLevel int

const (
	LevelError LogLevel = iota + 1
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

var (
	enabled = true
	level   = LevelInfo
)

// ParseLogLevel converts a lowercase level name into a LogLevel
func ParseLogLevel(s string) (LogLevel, error) {
	switch s {
	case "error":
		return LevelError, nil
	case "warn":
		return LevelWarn, nil
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "trace":
		return LevelTrace, nil
	default:
		return 0, fmt.Errorf("invalid log level %q (want error, warn, info, debug or trace)", s)
	}
}

// String returns the name accepted by ParseLogLevel
func (l LogLevel) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	case LevelTrace:
		return "trace"
	default:
		return fmt.Sprintf("LogLevel(%d)", int(l))
	}
}

// SetLogLevel sets the most verbose level the default sinks print
func SetLogLevel(l LogLevel) {
	level = l
}

// SetVerbose turns the default sinks on or off. Verbose mode also raises the
// level to trace.
func SetVerbose(v bool) {
	enabled = v
	if v {
		level = LevelTrace
	}
}

// EnabledLogging turns the default sinks on or off without touching the level
func EnabledLogging(v bool) {
	enabled = v
}

type Logger struct {
	Tracef    func(format string, args ...interface{})
	Infof     func(format string, args ...interface{})
	Debugf    func(format string, args ...interface{})
	Warnf     func(format string, args ...interface{}) error
	Errorf    func(format string, args ...interface{}) error
	TraceFunc func(func() string)
}

var logger = Logger{
	Tracef:    defaultTracef,
	Infof:     defaultInfof,
	Debugf:    defaultDebugf,
	Warnf:     defaultWarnf,
	Errorf:    defaultErrorf,
	TraceFunc: defaultTraceFunc,
}

// SetLogger replaces the sinks. Nil members silence that level.
func SetLogger(l Logger) {
	logger = l
}

func Tracef(format string, args ...interface{}) {
	if logger.Tracef != nil {
		logger.Tracef(format, args...)
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

// TraceFunc only builds the message when trace output is going to be printed
func TraceFunc(logFunc func() string) {
	if logger.TraceFunc != nil {
		logger.TraceFunc(logFunc)
	}
}

func shouldLog(l LogLevel) bool {
	return enabled && l <= level
}

var (
	defaultTracef = func(format string, args ...interface{}) {
		if shouldLog(LevelTrace) {
			log.Printf("[TRACE] "+format, args...)
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
		err := fmt.Errorf(format, args...)
		if shouldLog(LevelError) {
			log.Print("[ERROR] " + err.Error())
		}
		return err
	}

	defaultWarnf = func(format string, args ...interface{}) error {
		err := fmt.Errorf(format, args...)
		if shouldLog(LevelWarn) {
			log.Print("[WARN] " + err.Error())
		}
		return err
	}

	defaultTraceFunc = func(logFunc func() string) {
		if shouldLog(LevelTrace) {
			log.Print("[TRACE] " + logFunc())
		}
	}
)
