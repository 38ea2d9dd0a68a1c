// Command livecount runs the reference counter server and terminal clients.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/HMasataka/livecount/internal/config"
	"github.com/HMasataka/livecount/internal/logging"
)

func main() {
	app := &cli.App{
		Name:  "livecount",
		Usage: "Shared counters kept live over a websocket",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a .yaml, .yml or .json config file",
				EnvVars: []string{config.EnvPrefix + "CONFIG"},
			},
			&cli.StringFlag{
				Name:  "url",
				Usage: "Websocket endpoint of the counter server",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "text, json or pretty",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			watchCommand(),
			shellCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration, applies global flags and builds the logger.
func setup(c *cli.Context) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(config.LoadOptions{Path: c.String("config")})
	if err != nil {
		return nil, nil, cli.Exit(err, 1)
	}

	if c.IsSet("url") {
		cfg.Client.URL = c.String("url")
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Logging.Format = c.String("log-format")
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, cli.Exit(err, 1)
	}

	return cfg, logging.New(cfg.Logging), nil
}
