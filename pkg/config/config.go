// Package config loads registry configuration from the environment, with
// an optional YAML file overlay.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds trust-core configuration.
type Config struct {
	DatabasePath string `yaml:"database_path"`
	AuditLogPath string `yaml:"audit_log_path"`
	LogLevel     string `yaml:"log_level"`
	IssuerName   string `yaml:"issuer_name"`
	LegalNotice  string `yaml:"legal_notice"`
}

// Load builds configuration from defaults and environment variables.
func Load() *Config {
	cfg := &Config{
		DatabasePath: "registrum.db",
		AuditLogPath: "",
		LogLevel:     "INFO",
		IssuerName:   "Registrum Civil Registry",
		LegalNotice:  "This document is sealed under applicable civil-status regulations.",
	}

	if v := os.Getenv("REGISTRUM_DB_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("REGISTRUM_AUDIT_LOG"); v != "" {
		cfg.AuditLogPath = v
	}
	if v := os.Getenv("REGISTRUM_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("REGISTRUM_ISSUER"); v != "" {
		cfg.IssuerName = v
	}
	if v := os.Getenv("REGISTRUM_LEGAL_NOTICE"); v != "" {
		cfg.LegalNotice = v
	}
	return cfg
}

// LoadFile loads configuration from a YAML file on top of Load().
// Values present in the file win over environment and defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
