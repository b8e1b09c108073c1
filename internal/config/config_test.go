package config

import (
	"testing"

	"go.uber.org/zap"
)

func TestDefaultHasNopLogger(t *testing.T) {
	cfg := Default()
	if cfg.Trace || cfg.Disassemble {
		t.Fatal("Default() must not enable trace or disassemble")
	}
	if cfg.Logger == nil {
		t.Fatal("Default() must provide a non-nil logger")
	}
	if cfg.Logger.Core().Enabled(zap.DebugLevel) {
		t.Fatal("Default() logger should discard debug output")
	}
}

func TestNewCarriesFlagsThrough(t *testing.T) {
	cfg := New(true, true)
	if !cfg.Trace || !cfg.Disassemble {
		t.Fatal("New(true, true) should carry both flags")
	}
	if cfg.Logger == nil {
		t.Fatal("New must always provide a usable logger")
	}
}

func TestNewWithoutTraceIsNop(t *testing.T) {
	cfg := New(false, false)
	if cfg.Trace {
		t.Fatal("Trace should be false")
	}
	if cfg.Logger == nil {
		t.Fatal("logger must still be non-nil")
	}
	if cfg.Logger.Core().Enabled(zap.DebugLevel) {
		t.Fatal("logger without trace should discard debug output")
	}
}
