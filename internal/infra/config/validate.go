package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateStore(cfg, ve)
	validateScript(cfg, ve)
	validateWindow(cfg, ve)
	validateHistory(cfg, ve)
	validateGateway(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateStore(cfg *Config, ve *ValidationError) {
	if cfg.Store.Dir == "" {
		ve.Add("store.dir must not be empty")
	}
	if cfg.Store.File == "" {
		ve.Add("store.file must not be empty")
		return
	}
	// The document name is joined onto store.dir, so it must not carry
	// path elements of its own.
	if filepath.Base(cfg.Store.File) != cfg.Store.File {
		ve.Add("store.file %q must be a bare file name", cfg.Store.File)
	}
}

func validateScript(cfg *Config, ve *ValidationError) {
	if cfg.Script.Timeout <= 0 {
		ve.Add("script.timeout must be > 0")
	}
}

func validateWindow(cfg *Config, ve *ValidationError) {
	if cfg.Window.TickInterval <= 0 {
		ve.Add("window.tick_interval must be > 0")
	}
}

func validateHistory(cfg *Config, ve *ValidationError) {
	if !cfg.History.Enabled {
		return
	}
	if cfg.History.File == "" {
		ve.Add("history.file is required when history is enabled")
	}
	if cfg.History.Keep <= 0 {
		ve.Add("history.keep must be > 0 when history is enabled")
	}
	if cfg.History.PruneInterval <= 0 {
		ve.Add("history.prune_interval must be > 0 when history is enabled")
	}
}

func validateGateway(cfg *Config, ve *ValidationError) {
	if !cfg.Gateway.Enabled {
		return
	}
	if cfg.Gateway.Addr == "" {
		ve.Add("gateway.addr is required when gateway is enabled")
		return
	}
	if _, _, err := net.SplitHostPort(cfg.Gateway.Addr); err != nil {
		ve.Add("gateway.addr %q is not a valid host:port", cfg.Gateway.Addr)
	}

	if cfg.Gateway.Auth.Type != "token" {
		ve.Add("gateway.auth.type %q is invalid (want: token)", cfg.Gateway.Auth.Type)
	}
	if len(cfg.Gateway.Auth.Tokens) == 0 {
		ve.Add("gateway.auth.tokens must not be empty when gateway is enabled (set via FLOATSHELF_GATEWAY_TOKEN)")
	}
	seen := make(map[string]bool)
	for i, tok := range cfg.Gateway.Auth.Tokens {
		if tok.Token == "" {
			ve.Add("gateway.auth.tokens[%d].token must not be empty", i)
			continue
		}
		if seen[tok.Token] {
			ve.Add("gateway.auth.tokens[%d]: duplicate token value", i)
		}
		seen[tok.Token] = true
	}

	if cfg.Gateway.RatePerMinute < 0 {
		ve.Add("gateway.rate_per_minute must be >= 0")
	}
	if cfg.Gateway.RatePerMinute > 0 && cfg.Gateway.Burst <= 0 {
		ve.Add("gateway.burst must be > 0 when rate limiting is enabled")
	}
}
