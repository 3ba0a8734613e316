package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Copy(source, dest string)
	Delete(target string)
	Info(message string)
	Warn(message string)
	Error(operation, path string, err error)
	Debug(message string)
}

// SyncLogger writes progress lines the way `aws s3 sync` does, through logrus.
type SyncLogger struct {
	IsDryRun  bool
	IsQuiet   bool
	IsVerbose bool

	log *logrus.Logger
}

func NewSyncLogger(out io.Writer, dryRun, quiet, verbose bool) *SyncLogger {
	if out == nil {
		out = os.Stderr
	}

	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableQuote:     true,
	})

	switch {
	case quiet:
		l.SetLevel(logrus.ErrorLevel)
	case verbose:
		l.SetLevel(logrus.DebugLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}

	return &SyncLogger{
		IsDryRun:  dryRun,
		IsQuiet:   quiet,
		IsVerbose: verbose,
		log:       l,
	}
}

func (l *SyncLogger) prefix() string {
	if l.IsDryRun {
		return "(dryrun) "
	}
	return ""
}

func (l *SyncLogger) Copy(source, dest string) {
	l.log.WithField("action", "copy").Info(fmt.Sprintf("%scopy: %s to %s", l.prefix(), source, dest))
}

func (l *SyncLogger) Delete(target string) {
	l.log.WithField("action", "delete").Info(fmt.Sprintf("%sdelete: %s", l.prefix(), target))
}

func (l *SyncLogger) Info(message string) {
	l.log.Info(message)
}

func (l *SyncLogger) Warn(message string) {
	l.log.Warn(message)
}

func (l *SyncLogger) Error(operation, path string, err error) {
	l.log.WithFields(logrus.Fields{
		"operation": operation,
		"path":      path,
	}).WithError(err).Error(fmt.Sprintf("%s failed", operation))
}

func (l *SyncLogger) Debug(message string) {
	l.log.Debug(message)
}

type NullLogger struct{}

func (l *NullLogger) Copy(source, dest string) {}

func (l *NullLogger) Delete(target string) {}

func (l *NullLogger) Info(message string) {}

func (l *NullLogger) Warn(message string) {}

func (l *NullLogger) Error(operation, path string, err error) {}

func (l *NullLogger) Debug(message string) {}
