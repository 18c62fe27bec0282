package clog

import (
	"io"
	"os"
	"sync"

	"github.com/apex/log"
)

// Logging contexts used across the service. Each can be given its own level
// and output; contexts without their own logger fall back to the global one.
const (
	Global = "global"
	Upload = "upload"
	HTTP   = "http"
	SSH    = "ssh"
	Tus    = "tus"
)

type ContextLogger struct {
	global  *log.Logger
	loggers sync.Map
}

func NewContextLogger(w io.WriteCloser) *ContextLogger {
	return &ContextLogger{global: newLogger(w)}
}

func newLogger(w io.WriteCloser) *log.Logger {
	return &log.Logger{Handler: NewHandler(w), Level: log.InfoLevel}
}

// AddLoggingContext gives ctx a dedicated logger writing to w.
func (l *ContextLogger) AddLoggingContext(ctx string, w io.WriteCloser) {
	if old, loaded := l.loggers.Swap(ctx, newLogger(w)); loaded {
		handlerOf(old.(*log.Logger)).Close()
	}
}

func (l *ContextLogger) RemoveLoggingContext(ctx string) {
	if logger, ok := l.loggers.LoadAndDelete(ctx); ok {
		handlerOf(logger.(*log.Logger)).Close()
	}
}

func (l *ContextLogger) SetLevelFromString(ctx, level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}

	l.loggerFor(ctx).Level = lvl
	return nil
}

func (l *ContextLogger) SetOutput(ctx string, w io.WriteCloser) {
	if h := handlerOf(l.loggerFor(ctx)); h != nil {
		h.SetOutput(w)
	}
}

func (l *ContextLogger) Level(ctx string) log.Level {
	return l.loggerFor(ctx).Level
}

func (l *ContextLogger) UsingCtx(ctx string) *log.Entry {
	return l.loggerFor(ctx).WithField("ctx", ctx)
}

func (l *ContextLogger) loggerFor(ctx string) *log.Logger {
	if ctx == Global {
		return l.global
	}

	if logger, ok := l.loggers.Load(ctx); ok {
		return logger.(*log.Logger)
	}

	return l.global
}

func handlerOf(logger *log.Logger) *Handler {
	if h, ok := logger.Handler.(*Handler); ok {
		return h
	}

	return nil
}

// HasContext reports whether ctx has a dedicated logger.
func (l *ContextLogger) HasContext(ctx string) bool {
	_, ok := l.loggers.Load(ctx)
	return ok
}

// The package level context logger shares its global logger with apex's
// package level functions, so log.Infof and UsingCtx(Global) obey the same
// level and output.
var clogger = newDefaultContextLogger()

func newDefaultContextLogger() *ContextLogger {
	global, ok := log.Log.(*log.Logger)
	if !ok {
		global = newLogger(os.Stdout)
		log.Log = global
	}

	global.Handler = NewHandler(os.Stdout)
	return &ContextLogger{global: global}
}

func HasContext(ctx string) bool {
	return clogger.HasContext(ctx)
}

func AddLoggingContext(ctx string, w io.WriteCloser) {
	clogger.AddLoggingContext(ctx, w)
}

func RemoveLoggingContext(ctx string) {
	clogger.RemoveLoggingContext(ctx)
}

func SetLevelFromString(ctx, level string) error {
	return clogger.SetLevelFromString(ctx, level)
}

func SetOutput(ctx string, w io.WriteCloser) {
	clogger.SetOutput(ctx, w)
}

func Level(ctx string) log.Level {
	return clogger.Level(ctx)
}

func UsingCtx(ctx string) *log.Entry {
	return clogger.UsingCtx(ctx)
}
