package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/binaryphile/nvme-logs/internal/config"
)

// New builds a logger writing to w. Logs go to stderr in the commands so
// stdout carries only decoded output.
func New(cfg config.LoggingConfig, w io.Writer) (*logrus.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{
			DisableTimestamp: true,
		})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return logger, nil
}

// ParseLevel accepts logrus level names plus "none", which silences
// everything below panic.
func ParseLevel(s string) (logrus.Level, error) {
	switch strings.ToLower(s) {
	case "none":
		return logrus.PanicLevel, nil
	case "":
		return logrus.InfoLevel, nil
	default:
		return logrus.ParseLevel(s)
	}
}
