package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

type Logger struct {
	name  string
	level Level
	out   *log.Logger
}

func NewLogger(name, level string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stdout
	}
	return &Logger{
		name:  name,
		level: ParseLevel(level),
		out:   log.New(w, "", log.LstdFlags),
	}
}

func (l *Logger) logf(level Level, tag, format string, v ...any) {
	if level < l.level {
		return
	}
	l.out.Printf("[%s] [%s] %s", l.name, tag, fmt.Sprintf(format, v...))
}

func (l *Logger) Debugf(format string, v ...any) {
	l.logf(LevelDebug, "DEBUG", format, v...)
}

func (l *Logger) Infof(format string, v ...any) {
	l.logf(LevelInfo, "INFO", format, v...)
}

func (l *Logger) Warnf(format string, v ...any) {
	l.logf(LevelWarn, "WARN", format, v...)
}

func (l *Logger) Errorf(format string, v ...any) {
	l.logf(LevelError, "ERROR", format, v...)
}

var defaultLogger = NewLogger("Registry", "INFO", os.Stdout)

func Debugf(format string, v ...any) {
	defaultLogger.Debugf(format, v...)
}

func Infof(format string, v ...any) {
	defaultLogger.Infof(format, v...)
}

func Warnf(format string, v ...any) {
	defaultLogger.Warnf(format, v...)
}

func Errorf(format string, v ...any) {
	defaultLogger.Errorf(format, v...)
}
