package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	klogv2 "k8s.io/klog/v2"

	"github.com/bitfsorg/rentshare-go/config"
	"github.com/bitfsorg/rentshare-go/journal"
	"github.com/bitfsorg/rentshare-go/replay"
	"github.com/bitfsorg/rentshare-go/shares"
	"github.com/bitfsorg/rentshare-go/store"
)

const dbFile = "lease.db"

type options struct {
	dataDir  string
	force    bool
	scenario string
	fresh    bool
}

// loadConfig reads the config in the data directory, falling back to
// defaults when none was written yet, and sets up logging from it.
func loadConfig(opts *options) (config.Config, error) {
	cfg, err := config.LoadConfig(config.ConfigPath(opts.dataDir))
	switch {
	case errors.Is(err, config.ErrConfigNotFound):
		cfg = config.DefaultConfig()
	case err != nil:
		return config.Config{}, err
	}
	cfg.DataDir = opts.dataDir
	if err := config.ValidateConfig(cfg); err != nil {
		return config.Config{}, err
	}
	if err := initLogging(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func initLogging(cfg config.Config) error {
	flags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klogv2.InitFlags(flags)

	verbosity := "0"
	threshold := "INFO"
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		verbosity = "2"
	case "warn":
		threshold = "WARNING"
	case "error":
		threshold = "ERROR"
	}
	settings := map[string]string{"v": verbosity, "stderrthreshold": threshold, "logtostderr": "true"}
	if cfg.LogFile != "" {
		settings["logtostderr"] = "false"
		settings["log_file"] = cfg.LogFile
	}
	for k, v := range settings {
		if err := flags.Set(k, v); err != nil {
			return fmt.Errorf("logging: set %s: %w", k, err)
		}
	}
	return nil
}

func runInit(opts *options) error {
	path := config.ConfigPath(opts.dataDir)
	if _, err := os.Stat(path); err == nil && !opts.force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}
	cfg := config.DefaultConfig()
	cfg.DataDir = opts.dataDir
	if err := config.SaveConfig(path, cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func runReplay(opts *options) error {
	if opts.scenario == "" {
		return fmt.Errorf("--scenario is required")
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	sc, err := replay.LoadFile(opts.scenario)
	if err != nil {
		return err
	}

	dbPath := filepath.Join(cfg.DataDir, dbFile)
	if opts.fresh {
		if err := os.Remove(dbPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", dbPath, err)
		}
	}
	st, err := store.OpenBoltStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.LoadSnapshot(); err == nil {
		return fmt.Errorf("%s already holds a lease, use --fresh to replace it", dbPath)
	} else if !errors.Is(err, store.ErrSnapshotNotFound) {
		return err
	}

	klogv2.Infof("replaying %s into %s", opts.scenario, dbPath)
	rep, err := replay.Run(context.Background(), sc, st)
	if err != nil {
		return err
	}
	return rep.Print(os.Stdout)
}

func runStatus(opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	dbPath := filepath.Join(cfg.DataDir, dbFile)
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("no lease database at %s: %w", dbPath, err)
	}
	st, err := store.OpenBoltStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	snap, err := st.LoadSnapshot()
	if err != nil {
		return err
	}
	entries, err := st.ListEntries()
	if err != nil {
		return err
	}
	if err := journal.Verify(entries); err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	var holders shares.Ledger
	if err := holders.UnmarshalBinary(snap.Holders); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "asset:\t%d\n", snap.AssetID)
	fmt.Fprintf(tw, "payer:\t%s\n", snap.Payer)
	fmt.Fprintf(tw, "lease account:\t%s\n", snap.Self)
	fmt.Fprintf(tw, "version:\t%d\n", snap.Version)
	fmt.Fprintf(tw, "activated:\t%t\n", snap.Activated)
	if snap.Activated {
		fmt.Fprintf(tw, "next due:\t%s\n", time.Unix(0, snap.NextDue).UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(tw, "collected:\t%d %s\n", snap.Collected, cfg.CurrencyCode)
	fmt.Fprintf(tw, "claimed:\t%d %s\n", snap.Claimed, cfg.CurrencyCode)
	fmt.Fprintf(tw, "dust:\t%d\n", snap.Dust)
	if n := len(entries); n > 0 {
		head := entries[n-1]
		fmt.Fprintf(tw, "journal:\t%d entries, head %s (%s)\n", n, hex.EncodeToString(head.Hash[:]), head.ID)
	} else {
		fmt.Fprintf(tw, "journal:\tempty\n")
	}
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "HOLDER\tSHARES\n")
	for _, h := range holders.Holders() {
		fmt.Fprintf(tw, "%s\t%d/%d\n", h.Account, h.Shares, snap.TotalShares)
	}
	return tw.Flush()
}
