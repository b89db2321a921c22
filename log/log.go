// Package log provides the logging backend of the routing table and its
// harness, based around the go-logging package.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/op/go-logging.v1"
)

const logFormat = "%{time:15:04:05.000} %{level:.4s} %{module}: %{message}"

// Backend is a log backend.
type Backend struct {
	w       io.Writer
	backend logging.LeveledBackend
}

// GetLogger returns a per-module logger that writes to the backend.
func (b *Backend) GetLogger(module string) *logging.Logger {
	l := logging.MustGetLogger(module)
	l.SetBackend(b.backend)
	return l
}

// Close closes the log file, if the backend writes to one.
func (b *Backend) Close() error {
	if f, ok := b.w.(*os.File); ok && f != os.Stdout && f != os.Stderr {
		return f.Close()
	}
	return nil
}

// New initializes a logging backend writing to file f, or to stdout when
// f is empty.  level is one of DEBUG, INFO, NOTICE, WARNING, ERROR.
func New(f string, level string, disable bool) (*Backend, error) {
	b := new(Backend)

	lvl, err := logLevelFromString(level)
	if err != nil {
		return nil, err
	}

	if disable {
		b.w = io.Discard
	} else if f == "" {
		b.w = os.Stdout
	} else {
		const fileMode = 0600

		flags := os.O_CREATE | os.O_APPEND | os.O_WRONLY
		b.w, err = os.OpenFile(f, flags, fileMode)
		if err != nil {
			return nil, fmt.Errorf("log: failed to create log file: %v", err)
		}
	}

	b.backend = newLeveled(b.w, lvl)
	return b, nil
}

// NewWriter initializes a backend writing to w, used by tests to capture output.
func NewWriter(w io.Writer, level string) (*Backend, error) {
	lvl, err := logLevelFromString(level)
	if err != nil {
		return nil, err
	}
	return &Backend{w: w, backend: newLeveled(w, lvl)}, nil
}

// Discard returns a logger whose records go nowhere.
func Discard(module string) *logging.Logger {
	b := &Backend{w: io.Discard, backend: newLeveled(io.Discard, logging.CRITICAL)}
	return b.GetLogger(module)
}

func newLeveled(w io.Writer, lvl logging.Level) logging.LeveledBackend {
	logFmt := logging.MustStringFormatter(logFormat)
	base := logging.NewLogBackend(w, "", 0)
	formatted := logging.NewBackendFormatter(base, logFmt)
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(lvl, "")
	return leveled
}

func logLevelFromString(l string) (logging.Level, error) {
	switch strings.ToUpper(l) {
	case "ERROR":
		return logging.ERROR, nil
	case "WARNING":
		return logging.WARNING, nil
	case "NOTICE":
		return logging.NOTICE, nil
	case "INFO":
		return logging.INFO, nil
	case "DEBUG":
		return logging.DEBUG, nil
	default:
		return logging.CRITICAL, fmt.Errorf("log: invalid level: '%v'", l)
	}
}
