package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"floatshelf/internal/adapter/icon"
	"floatshelf/internal/adapter/script"
	"floatshelf/internal/domain"
	"floatshelf/internal/infra/config"
	"floatshelf/internal/usecase/history"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

// runDoctor executes all health checks and reports results.
func runDoctor() error {
	cfgPath := configPath()

	// Try to load config. Most checks degrade gracefully without it.
	cfg, cfgErr := config.Load(cfgPath)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "Data directory", Fn: checkDataDir},
		{Name: "Shelf document", Fn: checkShelfDocument},
		{Name: "Script runners", Fn: checkRunners},
		{Name: "Icon search path", Fn: checkIconPaths},
		{Name: "Run history", Fn: checkHistory},
		{Name: "Gateway", Fn: checkGateway},
	}

	fmt.Println("floatshelf doctor")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name

		fmt.Printf("  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Printf("      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		fmt.Println("\nFix the FAIL issues above to ensure floatshelf runs correctly.")
		return fmt.Errorf("%d check(s) failed", fail)
	}
	if warn > 0 {
		fmt.Println("\nfloatshelf should work, but consider addressing the warnings.")
	} else {
		fmt.Println("\nAll checks passed! floatshelf is ready to run.")
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

// checkConfigFile returns a check that verifies the config file parses. A
// missing file passes because floatshelf runs fine on defaults.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusPass,
				Message: fmt.Sprintf("no config file at %s, defaults in effect", cfgPath),
			}
		}

		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config file error: %v", cfgErr),
				Fix:     "Check the YAML syntax and file permissions (0600 or 0644)",
			}
		}

		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

// checkDataDir verifies the shelf data directory exists and is writable.
func checkDataDir(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{
			Status:  StatusFail,
			Message: "cannot check, config not loaded",
		}
	}

	absDir, _ := filepath.Abs(cfg.Store.Dir)

	info, err := os.Stat(absDir)
	if os.IsNotExist(err) {
		if mkErr := os.MkdirAll(absDir, 0o700); mkErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("data directory %s does not exist and cannot be created: %v", absDir, mkErr),
				Fix:     fmt.Sprintf("Create the directory: mkdir -p %s", absDir),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("data directory created at %s", absDir),
		}
	}
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot stat data directory: %v", err),
		}
	}
	if !info.IsDir() {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("%s exists but is not a directory", absDir),
		}
	}

	testFile := filepath.Join(absDir, ".doctor-check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("data directory %s is not writable: %v", absDir, err),
			Fix:     fmt.Sprintf("Fix permissions: chmod 700 %s", absDir),
		}
	}
	os.Remove(testFile)

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("data directory %s writable", absDir),
	}
}

// checkShelfDocument verifies the persisted shelf document is readable JSON.
// A malformed document is a warning, not a failure: the service replaces it
// with a fresh collection, losing whatever it held.
func checkShelfDocument(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{
			Status:  StatusFail,
			Message: "cannot check, config not loaded",
		}
	}

	path := filepath.Join(cfg.Store.Dir, cfg.Store.File)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("no shelf document yet at %s, a fresh collection is created on first save", path),
		}
	}
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot read shelf document: %v", err),
		}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("shelf document is not valid JSON: %v", err),
			Fix:     fmt.Sprintf("Back up %s if the shelves matter; the next save replaces it with a fresh collection", path),
		}
	}

	shelves := len(raw)
	if _, ok := raw[domain.DefaultKey]; ok {
		shelves--
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("shelf document parses (%d shelves)", shelves),
	}
}

// checkRunners verifies both script runners construct and register.
func checkRunners(cfg *config.Config) CheckResult {
	if cfg == nil {
		cfg = config.Defaults()
	}

	log := slogDiscard()
	runners := script.NewRegistry()
	if err := runners.Register(script.NewJSRunner(cfg.Script.Timeout, log)); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("js runner: %v", err),
		}
	}
	if err := runners.Register(script.NewLuaRunner(cfg.Script.Timeout, log)); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("lua runner: %v", err),
		}
	}

	kinds := runners.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	sort.Strings(names)

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%d runner(s): %s (timeout %s)", len(names), strings.Join(names, ", "), cfg.Script.Timeout),
	}
}

// checkIconPaths reports how many icon directories exist and how many icons
// they hold.
func checkIconPaths(cfg *config.Config) CheckResult {
	var extra []string
	if cfg != nil {
		extra = cfg.Icons.Paths
	}

	dirs := append(append([]string{}, extra...), icon.SearchDirs()...)
	existing := 0
	for _, dir := range dirs {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			existing++
		}
	}

	if existing == 0 {
		return CheckResult{
			Status:  StatusWarn,
			Message: "no icon directories found on the search path",
			Fix:     "Set FLOATSHELF_ICON_PATH or list directories under icons.paths",
		}
	}

	cat := icon.NewCatalog(slogDiscard(), extra...)
	n := cat.Scan()
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%d director(ies), %d icon(s) indexed", existing, n),
	}
}

// checkHistory verifies the run history database opens.
func checkHistory(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{
			Status:  StatusFail,
			Message: "cannot check, config not loaded",
		}
	}

	if !cfg.History.Enabled {
		return CheckResult{
			Status:  StatusPass,
			Message: "run history disabled",
		}
	}

	hs, err := history.NewSQLiteStore(cfg.History.File)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot open history database: %v", err),
			Fix:     fmt.Sprintf("Check permissions on %s", cfg.History.File),
		}
	}
	hs.Close()

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("history database at %s (keep %d)", cfg.History.File, cfg.History.Keep),
	}
}

// checkGateway validates the gateway listen address and token setup.
func checkGateway(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{
			Status:  StatusFail,
			Message: "cannot check, config not loaded",
		}
	}

	if !cfg.Gateway.Enabled {
		return CheckResult{
			Status:  StatusPass,
			Message: "gateway disabled",
		}
	}

	host, _, err := net.SplitHostPort(cfg.Gateway.Addr)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("invalid gateway address %q: %v", cfg.Gateway.Addr, err),
		}
	}

	tokens := len(cfg.Gateway.Auth.Tokens)
	if tokens == 0 {
		return CheckResult{
			Status:  StatusFail,
			Message: "gateway enabled but no auth tokens configured",
			Fix:     "Add tokens under gateway.auth.tokens or set FLOATSHELF_GATEWAY_TOKEN",
		}
	}

	if !isLoopbackHost(host) {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("gateway bound to non-loopback address %s", cfg.Gateway.Addr),
			Fix:     "Bind 127.0.0.1 unless remote control is intended",
		}
	}

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("listening on %s with %d token(s)", cfg.Gateway.Addr, tokens),
	}
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
