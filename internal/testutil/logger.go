// Package testutil holds helpers shared by package tests.
package testutil

import (
	"bytes"
	"io"
	"log/slog"

	"github.com/dtroode/townsquare-auth/internal/logger"
)

// MakeNoopLogger returns a logger that discards everything.
func MakeNoopLogger() *logger.Logger {
	return logger.NewWithFormat(int(slog.LevelError), "text", io.Discard)
}

// MakeBufferLogger returns a debug-level JSON logger writing into buf, one
// record per line.
func MakeBufferLogger(buf *bytes.Buffer) *logger.Logger {
	return logger.NewWithFormat(int(slog.LevelDebug), logger.FormatJSON, buf)
}
