// Package config loads and validates the hookecho YAML configuration.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Default values applied when the config file leaves fields unset.
const (
	DefaultListen           = "127.0.0.1:8080"
	DefaultMaxBodySize      = 1048576 // 1 MB
	DefaultHistoryCapacity  = 1000
	DefaultToleranceSeconds = 300
)

// Config is the root configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	History HistoryConfig `yaml:"history"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Verify  VerifyConfig  `yaml:"verify"`
}

// ServiceConfig holds process-level settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	Listen   string `yaml:"listen"`
	LogLevel string `yaml:"log_level"`
}

// HistoryConfig bounds the in-memory store.
type HistoryConfig struct {
	Capacity int `yaml:"capacity"`
}

// IngestConfig controls webhook intake.
type IngestConfig struct {
	// MaxBodySize accepts plain byte counts or KB/MB/GB suffixes (e.g. "1MB").
	MaxBodySize string `yaml:"max_body_size"`
}

// VerifyConfig names the entry headers the verifier reads and sets the
// replay tolerance.
type VerifyConfig struct {
	SignatureHeader  string `yaml:"signature_header"`
	IDHeader         string `yaml:"id_header"`
	TimestampHeader  string `yaml:"timestamp_header"`
	ToleranceSeconds int    `yaml:"tolerance_seconds"`
}

// Tolerance returns the freshness window as a duration.
func (v VerifyConfig) Tolerance() time.Duration {
	return time.Duration(v.ToleranceSeconds) * time.Second
}

// Defaults returns a fully populated default configuration.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "hookecho",
			Listen:   DefaultListen,
			LogLevel: "info",
		},
		History: HistoryConfig{
			Capacity: DefaultHistoryCapacity,
		},
		Ingest: IngestConfig{
			MaxBodySize: "1MB",
		},
		Verify: VerifyConfig{
			SignatureHeader:  "Webhook-Signature",
			IDHeader:         "Webhook-Id",
			TimestampHeader:  "Webhook-Timestamp",
			ToleranceSeconds: DefaultToleranceSeconds,
		},
	}
}

// MaxBodyBytes parses the configured ingest limit.
func (c *Config) MaxBodyBytes() (int64, error) {
	return ParseMaxBodySize(c.Ingest.MaxBodySize)
}

// ParseMaxBodySize parses size strings like "1MB", "512KB", "2048576" to bytes.
// Returns DefaultMaxBodySize if empty.
func ParseMaxBodySize(size string) (int64, error) {
	if size == "" {
		return DefaultMaxBodySize, nil
	}

	// Handle unit suffixes (KB, MB, GB)
	upper := strings.ToUpper(size)
	multiplier := int64(1)

	if strings.HasSuffix(upper, "KB") {
		multiplier = 1024
		size = strings.TrimSuffix(upper, "KB")
	} else if strings.HasSuffix(upper, "MB") {
		multiplier = 1024 * 1024
		size = strings.TrimSuffix(upper, "MB")
	} else if strings.HasSuffix(upper, "GB") {
		multiplier = 1024 * 1024 * 1024
		size = strings.TrimSuffix(upper, "GB")
	}

	// Parse numeric value
	value, err := strconv.ParseInt(strings.TrimSpace(size), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}

	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}

	result := value * multiplier
	if result < 0 { // Check for overflow
		return 0, fmt.Errorf("size too large")
	}

	return result, nil
}
