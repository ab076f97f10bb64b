package main

import (
	"fmt"
	"os"

	klogv2 "k8s.io/klog/v2"

	"github.com/urfave/cli"

	"github.com/bitfsorg/rentshare-go/config"
)

// version mgmt, set via -ldflags
var Version string
var Buildtime string

func main() {
	opts := &options{}

	app := cli.NewApp()
	app.Name = "rentshare"
	app.Usage = "fractional ownership of a leased asset with pro-rata rent distribution"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "datadir",
			Usage:       "directory holding the config file and lease database",
			Value:       config.DefaultDataDir(),
			Destination: &opts.dataDir,
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "init",
			Usage: "writes a default config file to the data directory",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:        "force",
					Usage:       "overwrite an existing config file",
					Destination: &opts.force,
				},
			},
			Action: func(c *cli.Context) error {
				return runInit(opts)
			},
		},
		{
			Name:  "replay",
			Usage: "runs a scenario file and persists the resulting lease",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "scenario",
					Usage:       "path to the scenario YAML file",
					Destination: &opts.scenario,
				},
				cli.BoolFlag{
					Name:        "fresh",
					Usage:       "discard an existing lease database first",
					Destination: &opts.fresh,
				},
			},
			Action: func(c *cli.Context) error {
				return runReplay(opts)
			},
		},
		{
			Name:  "status",
			Usage: "prints the persisted lease snapshot and journal head",
			Action: func(c *cli.Context) error {
				return runStatus(opts)
			},
		},
		{
			Name:  "version",
			Usage: "prints version and build time of this binary",
			Action: func(c *cli.Context) error {
				fmt.Printf("Version: %s\n", Version)
				fmt.Printf("BuildTime: %s\n", Buildtime)
				return nil
			},
		},
	}

	err := app.Run(os.Args)
	klogv2.Flush()
	if err != nil {
		fmt.Fprintf(os.Stderr, "rentshare: %v\n", err)
		os.Exit(1)
	}
}
