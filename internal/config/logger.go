package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// AppName names log files written under log.dir.
const AppName = "MEMBER-API"

// NewLogger builds the process logger. Output goes to w; outside debug mode
// a timestamped file under s.Log.Dir receives a copy. The returned closer
// releases that file and is never nil.
func NewLogger(s *Settings, w io.Writer) (*slog.Logger, io.Closer, error) {
	level := slog.LevelInfo
	if s.Debug() {
		level = slog.LevelDebug
	}

	var closer io.Closer = nopCloser{}
	if s.Log.Dir != "" && !s.Debug() {
		f, err := openLogFile(s.Log.Dir, time.Now())
		if err != nil {
			return nil, nil, err
		}
		w = io.MultiWriter(w, f)
		closer = f
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if s.Log.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), closer, nil
}

// LogFileName returns the file name used for a log started at t.
func LogFileName(t time.Time) string {
	return fmt.Sprintf("%s-%s.log", t.Format("20060102-150405"), AppName)
}

func openLogFile(dir string, t time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, LogFileName(t)), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
