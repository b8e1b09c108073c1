// Package config carries the explicit, per-run options threaded through
// the parser, rewriter, weeify pass and interpreter (the disassembler
// takes its output writer and color choice as plain arguments instead),
// replacing the original C sources' process-wide g_trace/g_disassemble
// globals with a value passed by the caller.
package config

import "go.uber.org/zap"

// Config is constructed once per CLI invocation and passed by value into
// every pipeline stage. Nothing in this module reads a package-level
// mutable flag.
type Config struct {
	Trace       bool
	Disassemble bool
	Logger      *zap.Logger
}

// Default returns a Config with tracing and disassembly off and a no-op
// logger, suitable when a caller (a test, a library consumer) has no
// opinion on diagnostics.
func Default() Config {
	return Config{Logger: zap.NewNop()}
}

// New builds a Config for a CLI invocation, selecting a development
// logger when trace is requested so -trace output is human-readable on
// stderr, and a no-op logger otherwise so call sites never branch on
// whether tracing is enabled.
func New(trace, disassemble bool) Config {
	logger := zap.NewNop()
	if trace {
		l, err := zap.NewDevelopment()
		if err == nil {
			logger = l
		}
	}
	return Config{Trace: trace, Disassemble: disassemble, Logger: logger}
}
