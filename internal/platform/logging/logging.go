package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level       string
	Development bool
	// File enables a rotating JSON log file next to stdout.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds the root logger. Development mode writes human-readable console
// output; otherwise stdout carries JSON. The optional file always gets JSON.
func New(opts Options) zerolog.Logger {
	var stdout io.Writer = os.Stdout
	if opts.Development {
		stdout = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	out := stdout
	if opts.File != "" {
		out = zerolog.MultiLevelWriter(stdout, fileWriter(opts))
	}

	return zerolog.New(out).
		Level(ParseLevel(opts.Level)).
		With().
		Timestamp().
		Str("service", "frontdesk").
		Logger()
}

func fileWriter(opts Options) *lumberjack.Logger {
	size, backups, age := opts.MaxSizeMB, opts.MaxBackups, opts.MaxAgeDays
	if size <= 0 {
		size = 100
	}
	if backups <= 0 {
		backups = 5
	}
	if age <= 0 {
		age = 30
	}
	return &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    size,
		MaxBackups: backups,
		MaxAge:     age,
		Compress:   true,
	}
}

// ParseLevel maps a config string to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
