package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a file. Missing fields fall back
// to Defaults. If a .checksums manifest exists alongside the file, the file's
// BLAKE3 hash is verified against it before the config is accepted.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	if _, err := os.Stat(absPath); err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// Apply environment variable interpolation
	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(&cfg)

	if err := verifyConfigHash(absPath); err != nil {
		return nil, err
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// verifyConfigHash checks the config file against the .checksums manifest in
// its directory. A missing manifest skips verification.
func verifyConfigHash(absPath string) error {
	dir := filepath.Dir(absPath)
	checksums, err := LoadChecksums(dir)
	if err != nil {
		// No .checksums in this directory; integrity locking is opt-in.
		return nil
	}

	basename := filepath.Base(absPath)
	expectedHash, ok := checksums.Hashes[basename]
	if !ok {
		return fmt.Errorf("config file %s has no hash in checksums at %s\n"+
			"Run: hookecho config lock --config %s", basename, dir, absPath)
	}

	if err := VerifyFileHash(absPath, expectedHash); err != nil {
		return fmt.Errorf("config verification failed for %s: %w\n"+
			"This indicates tampering or unauthorized modification.\n"+
			"If you edited this file intentionally, run: hookecho config lock --config %s", absPath, err, absPath)
	}

	return nil
}

// applyDefaults merges default values into cfg where not explicitly set.
func applyDefaults(cfg *Config) {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.Listen == "" {
		cfg.Service.Listen = defaults.Service.Listen
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}

	if cfg.History.Capacity == 0 {
		cfg.History.Capacity = defaults.History.Capacity
	}

	if cfg.Ingest.MaxBodySize == "" {
		cfg.Ingest.MaxBodySize = defaults.Ingest.MaxBodySize
	}

	if cfg.Verify.SignatureHeader == "" {
		cfg.Verify.SignatureHeader = defaults.Verify.SignatureHeader
	}
	if cfg.Verify.IDHeader == "" {
		cfg.Verify.IDHeader = defaults.Verify.IDHeader
	}
	if cfg.Verify.TimestampHeader == "" {
		cfg.Verify.TimestampHeader = defaults.Verify.TimestampHeader
	}
	if cfg.Verify.ToleranceSeconds == 0 {
		cfg.Verify.ToleranceSeconds = defaults.Verify.ToleranceSeconds
	}
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}

		// If not found, leave the placeholder (will fail validation if required)
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	if cfg.Service.Listen == "" {
		return fmt.Errorf("service.listen is required")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	if cfg.History.Capacity < 0 {
		return fmt.Errorf("history.capacity must be positive")
	}

	if _, err := ParseMaxBodySize(cfg.Ingest.MaxBodySize); err != nil {
		return fmt.Errorf("ingest.max_body_size: %w", err)
	}

	if cfg.Verify.ToleranceSeconds < 0 {
		return fmt.Errorf("verify.tolerance_seconds must be positive")
	}

	// Security: an unresolved ${VAR} anywhere in verify headers points at a
	// missing environment variable rather than a literal header name.
	for _, h := range []string{cfg.Verify.SignatureHeader, cfg.Verify.IDHeader, cfg.Verify.TimestampHeader} {
		if envVarPattern.MatchString(h) {
			matches := envVarPattern.FindStringSubmatch(h)
			return fmt.Errorf("verify: environment variable ${%s} is not set", matches[1])
		}
	}

	return nil
}
