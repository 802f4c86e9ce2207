package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// Config holds all configuration options for the fifolog CLI.
type Config struct {
	File             string  `json:"file"`
	WindowSize       int     `json:"window_size,omitempty"`       //nolint:tagliatelle // snake_case for config file
	ReadBufferSize   int     `json:"read_buffer_size,omitempty"`  //nolint:tagliatelle // snake_case for config file
	CompactThreshold float64 `json:"compact_threshold,omitempty"` //nolint:tagliatelle // snake_case for config file
}

// ConfigFileName is the default config file name, looked up in the working
// directory. The file is JSONC: comments and trailing commas are allowed.
const ConfigFileName = ".fifolog.json"

// Config errors.
var (
	errConfigFileNotFound = errors.New("config file not found")
	errConfigInvalid      = errors.New("invalid config file")
	errFileEmpty          = errors.New("file cannot be empty")
)

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		File: "fifo.log",
	}
}

// LoadConfig loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Project config file at default location (.fifolog.json, if exists)
// 3. Explicit config file via configPath (if non-empty)
// 4. FIFOLOG_FILE environment variable
//
// Returns the config and the path of the config file actually loaded
// (empty when none was).
func LoadConfig(workDir, configPath string, env map[string]string) (Config, string, error) {
	cfg := DefaultConfig()

	cfgFile := filepath.Join(workDir, ConfigFileName)
	mustExist := false

	if configPath != "" {
		cfgFile = configPath
		if !filepath.IsAbs(cfgFile) {
			cfgFile = filepath.Join(workDir, cfgFile)
		}

		mustExist = true
	}

	fileCfg, loaded, err := loadConfigFile(cfgFile, mustExist)
	if err != nil {
		return Config{}, "", err
	}

	source := ""
	if loaded {
		source = cfgFile
		cfg = mergeConfig(cfg, fileCfg)
	}

	if file, ok := env["FIFOLOG_FILE"]; ok && file != "" {
		cfg.File = file
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, "", err
	}

	return cfg, source, nil
}

// loadConfigFile loads a config file. If mustExist is false, missing files
// return zero config. Returns the config and whether a file was loaded.
func loadConfigFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}

		if mustExist {
			return Config{}, false, fmt.Errorf("%w: %s", errConfigFileNotFound, path)
		}

		return Config{}, false, nil
	}

	cfg, parseErr := parseConfig(data)
	if parseErr != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", errConfigInvalid, path, parseErr)
	}

	return cfg, true, nil
}

func parseConfig(data []byte) (Config, error) {
	// Standardize JSONC to JSON.
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func mergeConfig(base, overlay Config) Config {
	if overlay.File != "" {
		base.File = overlay.File
	}

	if overlay.WindowSize != 0 {
		base.WindowSize = overlay.WindowSize
	}

	if overlay.ReadBufferSize != 0 {
		base.ReadBufferSize = overlay.ReadBufferSize
	}

	if overlay.CompactThreshold != 0 {
		base.CompactThreshold = overlay.CompactThreshold
	}

	return base
}

func validateConfig(cfg Config) error {
	if cfg.File == "" {
		return errFileEmpty
	}

	if cfg.WindowSize < 0 {
		return fmt.Errorf("%w: window_size cannot be negative", errConfigInvalid)
	}

	if cfg.ReadBufferSize < 0 {
		return fmt.Errorf("%w: read_buffer_size cannot be negative", errConfigInvalid)
	}

	if cfg.CompactThreshold < 0 || cfg.CompactThreshold > 1 {
		return fmt.Errorf("%w: compact_threshold must be in [0, 1]", errConfigInvalid)
	}

	return nil
}

// FormatConfig returns the config as formatted JSON.
func FormatConfig(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format config: %w", err)
	}

	return string(data), nil
}
