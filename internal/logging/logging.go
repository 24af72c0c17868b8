// Package logging provides the process-wide structured logger. The
// teacher logs through the standard library's log package; the rest of
// the retrieved corpus (evalgo-org-eve, erigon) reaches for
// github.com/sirupsen/logrus for leveled, field-based logging, which is
// what every SPEC_FULL ambient component (kv, dict, events, cmd) logs
// through here instead.
package logging

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu   sync.Mutex
	root = newDefault()
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// L returns the process-wide logger. Safe for concurrent use.
func L() *logrus.Entry {
	mu.Lock()
	defer mu.Unlock()
	return logrus.NewEntry(root)
}

// SetLevel parses level ("debug", "info", "warn", "error") and applies
// it to the root logger, falling back to info on an unrecognized name.
func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	root.SetLevel(lvl)
}

// SetJSON switches the root logger's formatter between logrus's text
// and JSON formatters. The CLI does not call it.
func SetJSON(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	if enabled {
		root.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	root.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
