// Package logger builds the process logger from config.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ewilliams-labs/cadence/internal/config"
)

// New returns a logrus logger writing to stdout and, when cfg.File is set,
// to a size-rotated file as well. The returned closer releases the file.
func New(cfg config.LogConfig) (*logrus.Logger, io.Closer, error) {
	return NewWithOutput(cfg, os.Stdout)
}

// NewWithOutput is New with an explicit console writer.
func NewWithOutput(cfg config.LogConfig, console io.Writer) (*logrus.Logger, io.Closer, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}

	log := logrus.New()
	log.SetLevel(level)

	switch cfg.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var closer io.Closer = nopCloser{}
	out := console
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		out = io.MultiWriter(console, file)
		closer = file
	}
	log.SetOutput(out)

	return log, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
