// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidNetwork indicates the network name is not recognized.
	ErrInvalidNetwork = errors.New("config: invalid network (must be \"mainnet\", \"testnet\", or \"regtest\")")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigLine indicates a line or value in the config file is malformed.
	ErrInvalidConfigLine = errors.New("config: invalid configuration line")

	// ErrInvalidShares indicates a zero share supply.
	ErrInvalidShares = errors.New("config: total shares must be positive")

	// ErrInvalidAmount indicates a zero base payment amount.
	ErrInvalidAmount = errors.New("config: base amount must be positive")

	// ErrInvalidPeriod indicates a zero payment period.
	ErrInvalidPeriod = errors.New("config: period must be at least one day")

	// ErrInvalidFee indicates a late fee rate or cap out of range.
	ErrInvalidFee = errors.New("config: late fee out of range")
)
