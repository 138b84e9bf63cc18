// Package seslog provides the append-only session logs written by the
// network ports and the file tools: plain text, one event per line, an
// ISO-8601 timestamp prefix, then a channel tag and free-form message.
// Files are named <name>-YYYYMMDD-HHMMSS<ext> in a configured directory.
package seslog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultDir = "."
	DefaultExt = ".log"

	timestampFormat = "2006-01-02T15:04:05.000Z07:00"
	sessionFormat   = "20060102-150405"
)

// lineFormatter renders one event per line:
//
//	2019-07-09T18:21:03.221Z [chan] message
type lineFormatter struct{}

func (f *lineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	ch := ""
	if v, ok := e.Data["chan"]; ok {
		ch = fmt.Sprintf(" [%v]", v)
	}
	return []byte(fmt.Sprintf("%s%s %s\n", e.Time.UTC().Format(timestampFormat), ch, e.Message)), nil
}

// Log is one session log file.
type Log struct {
	Path      string
	SessionID string

	logger *logrus.Logger
	file   *os.File
}

// SessionStamp returns the YYYYMMDD-HHMMSS session time string used in log
// file names.
func SessionStamp(t time.Time) string {
	return t.UTC().Format(sessionFormat)
}

// Open creates (or appends to) the session log <dir>/<name>-<stamp><ext>.
func Open(dir, name, ext string) (*Log, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if ext == "" {
		ext = DefaultExt
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s%s", name, SessionStamp(time.Now()), ext))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o664)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(f)
	logger.SetFormatter(&lineFormatter{})
	logger.SetLevel(logrus.InfoLevel)
	return &Log{
		Path:      path,
		SessionID: xid.New().String(),
		logger:    logger,
		file:      f,
	}, nil
}

// Tprintf appends one timestamped event line.
func (l *Log) Tprintf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.logger.Infof(format, args...)
}

// Cprintf appends one timestamped event line tagged with a channel.
func (l *Log) Cprintf(channel, format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.logger.WithField("chan", channel).Infof(format, args...)
}

// Close flushes and closes the log file.
func (l *Log) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
