// Package logging builds the process logger: slog with a text handler on
// an interactive terminal, JSON otherwise, and optional rotating file
// output.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects level, format and sinks.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // auto, text, json
	Source bool   // include file:line

	// File enables rotating file output in addition to stderr.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// ParseLevel parses a level name. An empty name is info.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("logging: %w", err)
	}
	return l, nil
}

// New returns a logger writing to stderr and, when opts.File is set, to a
// rotating file. The returned closer releases the file.
func New(opts Options, stderr *os.File) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	var (
		w      io.Writer = stderr
		closer io.Closer = nopCloser{}
	)
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		w = io.MultiWriter(stderr, lj)
		closer = lj
	}

	ho := &slog.HandlerOptions{Level: level, AddSource: opts.Source}
	var h slog.Handler = slog.NewJSONHandler(w, ho)
	if useText(opts.Format, stderr) {
		h = slog.NewTextHandler(w, ho)
	}
	return slog.New(h), closer, nil
}

// Setup is New followed by slog.SetDefault, so the standard log package
// routes through the same handler.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	l, c, err := New(opts, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(l)
	return l, c, nil
}

func useText(format string, f *os.File) bool {
	switch strings.ToLower(format) {
	case "text":
		return true
	case "json":
		return false
	}
	return f != nil && term.IsTerminal(int(f.Fd()))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
