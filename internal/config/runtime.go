package config

import (
	"log/slog"
	"sync/atomic"
)

// Runtime holds settings that may change while the process runs. It is created
// once at startup; test mode changes only through SetTestMode.
type Runtime struct {
	testMode atomic.Bool
}

// NewRuntime seeds runtime settings from cfg.
func NewRuntime(cfg *Config) *Runtime {
	r := &Runtime{}
	if cfg != nil {
		r.testMode.Store(cfg.TestMode)
	}
	return r
}

// TestMode reports whether inbound traffic is logged verbosely.
func (r *Runtime) TestMode() bool { return r.testMode.Load() }

// SetTestMode switches test mode.
func (r *Runtime) SetTestMode(on bool) {
	if r.testMode.Swap(on) != on {
		slog.Info("Test mode changed", slog.Bool("enabled", on))
	}
}
