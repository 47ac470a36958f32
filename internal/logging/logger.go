// Package logging builds the logrus logger shared by client and server mode.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// Level is the verbosity selected on the command line.
type Level string

const (
	LevelOff   Level = "off"
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
	LevelTrace Level = "trace"
)

// DefaultLevel keeps the eventcmd client quiet unless something fails.
const DefaultLevel = LevelWarn

// Levels lists the accepted values in increasing verbosity.
func Levels() []Level {
	return []Level{LevelOff, LevelError, LevelWarn, LevelInfo, LevelDebug, LevelTrace}
}

// ParseLevel accepts exactly one of Levels.
func ParseLevel(s string) (Level, error) {
	for _, l := range Levels() {
		if string(l) == s {
			return l, nil
		}
	}
	names := make([]string, 0, len(Levels()))
	for _, l := range Levels() {
		names = append(names, string(l))
	}
	return "", fmt.Errorf("invalid log level %q (want one of %s)", s, strings.Join(names, ", "))
}

func (l Level) logrusLevel() logrus.Level {
	switch l {
	case LevelError:
		return logrus.ErrorLevel
	case LevelInfo:
		return logrus.InfoLevel
	case LevelDebug:
		return logrus.DebugLevel
	case LevelTrace:
		return logrus.TraceLevel
	case LevelOff:
		return logrus.PanicLevel
	default:
		return logrus.WarnLevel
	}
}

// NewLogger creates a logger writing to out. Terminals get the text
// formatter, anything else (pianobar's pipes, journald) gets JSON.
func NewLogger(level Level, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(level.logrusLevel())

	if level == LevelOff {
		logger.SetOutput(io.Discard)
		return logger
	}

	logger.SetOutput(out)
	if isTerminal(out) {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
