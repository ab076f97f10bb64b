// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads and saves the rentshare configuration file.
//
// The file is a flat list of "key = value" lines with "#" comments. Every
// key can be overridden from the environment as RENTSHARE_<KEY>.
package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bitfsorg/rentshare-go/schedule"
)

// Config holds the settings of a rentshare installation.
type Config struct {
	DataDir  string // directory holding the config file and lease database
	Network  string // "mainnet", "testnet" or "regtest"
	LogLevel string // "debug", "info", "warn" or "error"
	LogFile  string // optional log file; empty logs to stderr

	CurrencyCode      string // label of the payment currency, display only
	TotalShares       uint64
	BaseAmount        uint64 // amount due per period in the currency's smallest unit
	PeriodDays        uint64
	LateFeePercent    uint64 // percent of BaseAmount added per whole day late
	LateFeeCapPercent uint64 // 0 disables the cap
}

// Config file keys.
const (
	keyDataDir    = "datadir"
	keyNetwork    = "network"
	keyLogLevel   = "loglevel"
	keyLogFile    = "logfile"
	keyCurrency   = "currency"
	keyShares     = "totalshares"
	keyBaseAmount = "baseamount"
	keyPeriodDays = "perioddays"
	keyLateFee    = "latefeepercent"
	keyLateFeeCap = "latefeecap"
)

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "RENTSHARE"

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		DataDir:        DefaultDataDir(),
		Network:        "mainnet",
		LogLevel:       "info",
		CurrencyCode:   "USDC",
		TotalShares:    100,
		BaseAmount:     100_000_000,
		PeriodDays:     30,
		LateFeePercent: 5,
	}
}

// DefaultDataDir returns ~/.rentshare, or .rentshare in the working
// directory when the home directory cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rentshare"
	}
	return filepath.Join(home, ".rentshare")
}

// ConfigPath returns the config file path inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config")
}

// LeaseTerms converts the payment settings to schedule terms.
func (c Config) LeaseTerms() schedule.Terms {
	return schedule.Terms{
		BaseAmount:           c.BaseAmount,
		Period:               time.Duration(c.PeriodDays) * schedule.Day,
		LateFeePercentPerDay: c.LateFeePercent,
		LateFeeCapPercent:    c.LateFeeCapPercent,
	}
}

// LoadConfig reads the config file at path. Keys missing from the file keep
// their DefaultConfig values; unknown keys are ignored.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	normalized, err := normalize(data)
	if err != nil {
		return Config{}, err
	}

	v := newViper()
	if err := v.ReadConfig(bytes.NewReader(normalized)); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfigLine, err)
	}
	return fromViper(v)
}

// SaveConfig writes cfg to path, creating parent directories as needed.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# RentShare Configuration\n\n")
	for _, kv := range [][2]string{
		{keyDataDir, cfg.DataDir},
		{keyNetwork, cfg.Network},
		{keyLogLevel, cfg.LogLevel},
		{keyLogFile, cfg.LogFile},
		{keyCurrency, cfg.CurrencyCode},
		{keyShares, strconv.FormatUint(cfg.TotalShares, 10)},
		{keyBaseAmount, strconv.FormatUint(cfg.BaseAmount, 10)},
		{keyPeriodDays, strconv.FormatUint(cfg.PeriodDays, 10)},
		{keyLateFee, strconv.FormatUint(cfg.LateFeePercent, 10)},
		{keyLateFeeCap, strconv.FormatUint(cfg.LateFeeCapPercent, 10)},
	} {
		fmt.Fprintf(&b, "%s = %s\n", kv[0], kv[1])
	}

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("properties")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault(keyDataDir, def.DataDir)
	v.SetDefault(keyNetwork, def.Network)
	v.SetDefault(keyLogLevel, def.LogLevel)
	v.SetDefault(keyLogFile, def.LogFile)
	v.SetDefault(keyCurrency, def.CurrencyCode)
	v.SetDefault(keyShares, strconv.FormatUint(def.TotalShares, 10))
	v.SetDefault(keyBaseAmount, strconv.FormatUint(def.BaseAmount, 10))
	v.SetDefault(keyPeriodDays, strconv.FormatUint(def.PeriodDays, 10))
	v.SetDefault(keyLateFee, strconv.FormatUint(def.LateFeePercent, 10))
	v.SetDefault(keyLateFeeCap, strconv.FormatUint(def.LateFeeCapPercent, 10))
	return v
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		DataDir:      v.GetString(keyDataDir),
		Network:      v.GetString(keyNetwork),
		LogLevel:     v.GetString(keyLogLevel),
		LogFile:      v.GetString(keyLogFile),
		CurrencyCode: v.GetString(keyCurrency),
	}
	for _, f := range []struct {
		key string
		dst *uint64
	}{
		{keyShares, &cfg.TotalShares},
		{keyBaseAmount, &cfg.BaseAmount},
		{keyPeriodDays, &cfg.PeriodDays},
		{keyLateFee, &cfg.LateFeePercent},
		{keyLateFeeCap, &cfg.LateFeeCapPercent},
	} {
		raw := strings.TrimSpace(v.GetString(f.key))
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s = %q: not an unsigned integer", ErrInvalidConfigLine, f.key, raw)
		}
		*f.dst = n
	}
	return cfg, nil
}

// normalize checks every line for the key = value form and rewrites the
// file as trimmed key=value pairs with backslashes escaped, so values such
// as paths reach viper unchanged.
func normalize(data []byte) ([]byte, error) {
	var out bytes.Buffer
	sc := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		value = strings.ReplaceAll(strings.TrimSpace(value), `\`, `\\`)
		fmt.Fprintf(&out, "%s=%s\n", strings.ToLower(key), value)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("config: scan: %w", err)
	}
	return out.Bytes(), nil
}
