// Package logging provides structured logging for the release pipeline.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options configures a root logger
type Options struct {
	Out     io.Writer
	Format  string // "text" (default) or "json"
	Verbose bool
}

// New creates a root logger
func New(opts Options) *logrus.Logger {
	log := logrus.New()
	if opts.Out != nil {
		log.SetOutput(opts.Out)
	} else {
		log.SetOutput(os.Stderr)
	}

	if strings.EqualFold(opts.Format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if opts.Verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}

// Discard returns a logger that drops everything. Used by tests and library callers
// that don't care about log output.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// ContextLogger wraps a logrus entry and records which package and
// function a log line came from
type ContextLogger struct {
	*logrus.Entry
}

// NewContextLogger returns a ContextLogger for the given package
func NewContextLogger(base *logrus.Logger, pkg string) ContextLogger {
	if base == nil {
		base = Discard()
	}
	return ContextLogger{base.WithField("package", pkg)}
}

// InFunc sets the func field
func (c ContextLogger) InFunc(function string) ContextLogger {
	c.Entry = c.WithField("func", function)
	return c
}

// InStruct sets the struct field
func (c ContextLogger) InStruct(s string) ContextLogger {
	c.Entry = c.WithField("struct", s)
	return c
}

// WithRun tags log lines with the pipeline run id
func (c ContextLogger) WithRun(runID string) ContextLogger {
	c.Entry = c.WithField("run_id", runID)
	return c
}

// WithPlatform tags log lines with a build platform
func (c ContextLogger) WithPlatform(platformID string) ContextLogger {
	c.Entry = c.WithField("platform", platformID)
	return c
}
