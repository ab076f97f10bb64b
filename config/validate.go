// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"strings"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

const (
	maxLateFeePercent = 100
	maxLateFeeCap     = 10_000
)

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if cfg.Network != "mainnet" && cfg.Network != "testnet" && cfg.Network != "regtest" {
		return ErrInvalidNetwork
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if cfg.TotalShares == 0 {
		return ErrInvalidShares
	}
	if cfg.BaseAmount == 0 {
		return ErrInvalidAmount
	}
	if cfg.PeriodDays == 0 {
		return ErrInvalidPeriod
	}
	if cfg.LateFeePercent > maxLateFeePercent {
		return fmt.Errorf("%w: %d%% per day exceeds %d%%", ErrInvalidFee, cfg.LateFeePercent, maxLateFeePercent)
	}
	if cfg.LateFeeCapPercent > maxLateFeeCap {
		return fmt.Errorf("%w: cap %d%% exceeds %d%%", ErrInvalidFee, cfg.LateFeeCapPercent, maxLateFeeCap)
	}

	return nil
}
