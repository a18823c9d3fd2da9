package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Script  ScriptConfig  `yaml:"script"`
	Window  WindowConfig  `yaml:"window"`
	Icons   IconsConfig   `yaml:"icons"`
	History HistoryConfig `yaml:"history"`
	Gateway GatewayConfig `yaml:"gateway"`
	Logger  LoggerConfig  `yaml:"logger"`
	Tracer  TracerConfig  `yaml:"tracer"`
}

// StoreConfig locates the shelf preferences document on disk.
type StoreConfig struct {
	Dir  string `yaml:"dir"`  // preferences directory (default: ~/.floatshelf)
	File string `yaml:"file"` // document name inside dir, no path separators
}

// ScriptConfig holds script runner settings.
type ScriptConfig struct {
	Timeout time.Duration `yaml:"timeout"` // per-run deadline for button commands
}

// WindowConfig holds shelf window settings.
type WindowConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"` // deferred-task drain period
}

// IconsConfig holds icon catalog settings. Paths listed here are searched
// before the FLOATSHELF_ICON_PATH and FLOATSHELF_PIXMAP_PATH directories.
type IconsConfig struct {
	Paths []string `yaml:"paths,omitempty"`
}

// HistoryConfig holds run history settings.
type HistoryConfig struct {
	Enabled       bool          `yaml:"enabled"`
	File          string        `yaml:"file"` // sqlite database path
	Keep          int           `yaml:"keep"` // newest records retained by pruning
	PruneInterval time.Duration `yaml:"prune_interval"`
}

// GatewayConfig holds settings for the local WebSocket/REST gateway.
type GatewayConfig struct {
	Enabled       bool       `yaml:"enabled"`
	Addr          string     `yaml:"addr"`
	Auth          AuthConfig `yaml:"auth"`
	RatePerMinute int        `yaml:"rate_per_minute"` // 0 disables rate limiting
	Burst         int        `yaml:"burst"`
}

// AuthConfig holds gateway authentication settings.
type AuthConfig struct {
	Type   string        `yaml:"type"` // "token"
	Tokens []TokenConfig `yaml:"tokens,omitempty"`
}

// TokenConfig is a single static auth token. Values may be stored encrypted
// with an "enc:" prefix (see EncryptValue) and are decrypted at load time
// when FLOATSHELF_CONFIG_KEY is set.
type TokenConfig struct {
	Token string `yaml:"token"`
	Name  string `yaml:"name"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// defaultPrefsDir returns the preferences directory under $HOME/.floatshelf.
// Falls back to "./.floatshelf" if $HOME cannot be determined.
func defaultPrefsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".floatshelf"
	}
	return filepath.Join(home, ".floatshelf")
}

// DefaultPath returns the config file location used when neither the
// --config flag nor FLOATSHELF_CONFIG is set.
func DefaultPath() string {
	return filepath.Join(defaultPrefsDir(), "config.yaml")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	prefsDir := defaultPrefsDir()
	return &Config{
		Store: StoreConfig{
			Dir:  prefsDir,
			File: "floating_shelves.json",
		},
		Script: ScriptConfig{
			Timeout: 10 * time.Second,
		},
		Window: WindowConfig{
			TickInterval: 100 * time.Millisecond,
		},
		History: HistoryConfig{
			Enabled:       true,
			File:          filepath.Join(prefsDir, "history.db"),
			Keep:          500,
			PruneInterval: time.Hour,
		},
		Gateway: GatewayConfig{
			Enabled:       false,
			Addr:          "127.0.0.1:7481",
			Auth:          AuthConfig{Type: "token"},
			RatePerMinute: 120,
			Burst:         20,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts
// secrets. A missing file is not an error: defaults plus env overrides are
// returned so the tool works with no config at all.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	passphrase := os.Getenv("FLOATSHELF_CONFIG_KEY")
	if passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvOverrides maps FLOATSHELF_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FLOATSHELF_STORE_DIR"); v != "" {
		cfg.Store.Dir = v
	}
	if v := os.Getenv("FLOATSHELF_STORE_FILE"); v != "" {
		cfg.Store.File = v
	}
	if v := os.Getenv("FLOATSHELF_SCRIPT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Script.Timeout = d
		}
	}
	if v := os.Getenv("FLOATSHELF_WINDOW_TICK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Window.TickInterval = d
		}
	}
	if v := os.Getenv("FLOATSHELF_HISTORY_ENABLED"); v == "false" {
		cfg.History.Enabled = false
	}
	if v := os.Getenv("FLOATSHELF_HISTORY_FILE"); v != "" {
		cfg.History.File = v
	}
	if v := os.Getenv("FLOATSHELF_HISTORY_KEEP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.History.Keep = n
		}
	}
	if v := os.Getenv("FLOATSHELF_HISTORY_PRUNE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.History.PruneInterval = d
		}
	}
	if v := os.Getenv("FLOATSHELF_GATEWAY_ENABLED"); v == "true" {
		cfg.Gateway.Enabled = true
	}
	if v := os.Getenv("FLOATSHELF_GATEWAY_ADDR"); v != "" {
		cfg.Gateway.Addr = v
	}
	if v := os.Getenv("FLOATSHELF_GATEWAY_TOKEN"); v != "" {
		cfg.Gateway.Auth.Tokens = append(cfg.Gateway.Auth.Tokens, TokenConfig{
			Token: v,
			Name:  "env",
		})
	}
	if v := os.Getenv("FLOATSHELF_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("FLOATSHELF_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("FLOATSHELF_LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("FLOATSHELF_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("FLOATSHELF_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
}

// decryptSecrets finds "enc:..." gateway auth tokens and decrypts them.
func decryptSecrets(cfg *Config, passphrase string) error {
	for i := range cfg.Gateway.Auth.Tokens {
		tok := cfg.Gateway.Auth.Tokens[i].Token
		if strings.HasPrefix(tok, "enc:") {
			decrypted, err := DecryptValue(strings.TrimPrefix(tok, "enc:"), passphrase)
			if err != nil {
				return fmt.Errorf("gateway auth token %s: %w", cfg.Gateway.Auth.Tokens[i].Name, err)
			}
			cfg.Gateway.Auth.Tokens[i].Token = decrypted
		}
	}
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := deriveKey(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	// Format: hex(salt) + ":" + hex(nonce+ciphertext)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue decrypts an AES-256-GCM encrypted value.
func DecryptValue(encrypted, passphrase string) (string, error) {
	parts := strings.SplitN(encrypted, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid encrypted format")
	}

	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}

	data, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	key := deriveKey(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}

	return string(plaintext), nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// validatePermissions checks the config file has restrictive permissions.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
