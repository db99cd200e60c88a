// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package guard

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianGuard/services/guard/policy"
)

// Config holds all configuration for the screening service.
//
// Description:
//
//	Loaded from environment variables at startup via LoadConfig(). All
//	fields have safe defaults; the zero data directory runs the audit
//	trail and client registry in memory.
//
// Thread Safety: Config is a value type. Safe to copy and share after
// loading.
type Config struct {
	// ListenAddr is the HTTP bind address.
	// Env: GUARD_LISTEN_ADDR (default: ":8080")
	ListenAddr string `validate:"required"`

	// DataDir is the BadgerDB directory for the audit trail and client
	// registry. Empty runs both in memory.
	// Env: GUARD_DATA_DIR (default: "")
	DataDir string

	// RateLimitCapacity is the default per-client request allowance per
	// window. Zero disables rate limiting.
	// Env: GUARD_RATE_LIMIT_CAPACITY (default: 60)
	RateLimitCapacity int `validate:"min=0"`

	// RateLimitWindow is the sliding window width.
	// Env: GUARD_RATE_LIMIT_WINDOW_SECONDS (default: 60)
	RateLimitWindow time.Duration `validate:"gt=0"`

	// ClassifierTimeout bounds one classification call, retries included.
	// Env: GUARD_CLASSIFIER_TIMEOUT_SECONDS (default: 15)
	ClassifierTimeout time.Duration `validate:"gt=0"`

	// GeneratorTimeout bounds one generation call.
	// Env: GUARD_GENERATOR_TIMEOUT_SECONDS (default: 30)
	GeneratorTimeout time.Duration `validate:"gt=0"`

	// GeneratorMaxTokens caps generated reply length.
	// Env: GUARD_GENERATOR_MAX_TOKENS (default: 1024)
	GeneratorMaxTokens int `validate:"gt=0"`

	// ThresholdsPath points at a YAML enforcement table. Empty uses the
	// built-in defaults.
	// Env: GUARD_THRESHOLDS_PATH (default: "")
	ThresholdsPath string

	// AdminToken is the bearer token for the client administration
	// endpoints. Empty leaves those endpoints unregistered.
	// Env: GUARD_ADMIN_TOKEN (default: "")
	AdminToken string

	// Thresholds is the loaded enforcement table. Populated by
	// LoadConfig from ThresholdsPath or the defaults.
	Thresholds policy.Thresholds `validate:"required"`
}

// LoadConfig reads service configuration from environment variables.
//
// Outputs:
//   - Config: Fully populated and validated configuration.
//   - error: Non-nil when a value fails validation or the thresholds
//     file cannot be loaded.
func LoadConfig() (Config, error) {
	cfg := Config{
		ListenAddr:         envStr("GUARD_LISTEN_ADDR", ":8080"),
		DataDir:            envStr("GUARD_DATA_DIR", ""),
		RateLimitCapacity:  envInt("GUARD_RATE_LIMIT_CAPACITY", 60),
		RateLimitWindow:    time.Duration(envInt("GUARD_RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		ClassifierTimeout:  time.Duration(envInt("GUARD_CLASSIFIER_TIMEOUT_SECONDS", 15)) * time.Second,
		GeneratorTimeout:   time.Duration(envInt("GUARD_GENERATOR_TIMEOUT_SECONDS", 30)) * time.Second,
		GeneratorMaxTokens: envInt("GUARD_GENERATOR_MAX_TOKENS", 1024),
		ThresholdsPath:     envStr("GUARD_THRESHOLDS_PATH", ""),
		AdminToken:         envStr("GUARD_ADMIN_TOKEN", ""),
	}

	if cfg.ThresholdsPath != "" {
		t, err := policy.LoadThresholds(cfg.ThresholdsPath)
		if err != nil {
			return Config{}, err
		}
		cfg.Thresholds = t
	} else {
		cfg.Thresholds = policy.DefaultThresholds()
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("guard: invalid configuration: %w", err)
	}
	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
