// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package log is the logging facade of the module, backed by go-ethereum's slog based logger.
package log

import (
	"context"
	"io"
	"log/slog"

	ethlog "github.com/ethereum/go-ethereum/log"
)

// Legacy verbosity levels.
const (
	LegacyLevelCrit = iota
	LegacyLevelError
	LegacyLevelWarn
	LegacyLevelInfo
	LegacyLevelDebug
	LegacyLevelTrace
)

// Logger writes key/value pair records.
type Logger interface {
	Trace(msg string, ctx ...any)
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Warn(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	Crit(msg string, ctx ...any)
	Enabled(lvl slog.Level) bool
}

// WithContext returns a logger carrying the given key/value pairs.
// The root handler is resolved on every call, so package level loggers
// follow later SetDefault calls.
func WithContext(ctx ...any) Logger {
	return &logger{ctx}
}

// SetDefault installs the handler of the root logger.
func SetDefault(h slog.Handler) {
	ethlog.SetDefault(ethlog.NewLogger(h))
}

// NewTerminalHandler creates a human readable handler which drops records
// below the verbosity. Verbosity follows the legacy 0 (crit) - 5 (trace) scale.
func NewTerminalHandler(wr io.Writer, verbosity int, useColor bool) slog.Handler {
	return ethlog.NewTerminalHandlerWithLevel(wr, ethlog.FromLegacyLevel(verbosity), useColor)
}

// DiscardHandler returns a handler dropping all records.
func DiscardHandler() slog.Handler {
	return ethlog.DiscardHandler()
}

type logger struct {
	ctx []any
}

func (l *logger) with(ctx []any) []any {
	if len(l.ctx) == 0 {
		return ctx
	}
	merged := make([]any, 0, len(l.ctx)+len(ctx))
	return append(append(merged, l.ctx...), ctx...)
}

func (l *logger) Trace(msg string, ctx ...any) { ethlog.Root().Trace(msg, l.with(ctx)...) }
func (l *logger) Debug(msg string, ctx ...any) { ethlog.Root().Debug(msg, l.with(ctx)...) }
func (l *logger) Info(msg string, ctx ...any)  { ethlog.Root().Info(msg, l.with(ctx)...) }
func (l *logger) Warn(msg string, ctx ...any)  { ethlog.Root().Warn(msg, l.with(ctx)...) }
func (l *logger) Error(msg string, ctx ...any) { ethlog.Root().Error(msg, l.with(ctx)...) }
func (l *logger) Crit(msg string, ctx ...any)  { ethlog.Root().Crit(msg, l.with(ctx)...) }

func (l *logger) Enabled(lvl slog.Level) bool {
	return ethlog.Root().Enabled(context.Background(), lvl)
}
