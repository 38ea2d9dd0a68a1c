package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/HMasataka/livecount/internal/config"
	"github.com/HMasataka/livecount/internal/eventbus"
	"github.com/HMasataka/livecount/internal/logging"
	"github.com/HMasataka/livecount/pkg/server"
	"github.com/HMasataka/livecount/pkg/store"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the reference counter server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Counter store: memory or redis",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}

			if c.IsSet("port") {
				cfg.Server.Port = c.Int("port")
			}
			if c.IsSet("store") {
				cfg.Store.Driver = c.String("store")
			}
			if err := cfg.Validate(); err != nil {
				return cli.Exit(err, 1)
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := serve(ctx, cfg, logger); err != nil {
				return cli.Exit(err, 1)
			}
			return nil
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	bus := eventbus.NewInMemoryBus(256)
	bus.Start(ctx)
	defer bus.Stop()

	bus.Subscribe(eventbus.EventClientConnected, func(e *eventbus.Event) {
		logger.Debug("client connected event", "data", e.Data)
	})
	bus.Subscribe(eventbus.EventClientDisconnected, func(e *eventbus.Event) {
		logger.Debug("client disconnected event", "data", e.Data)
	})

	hub := server.NewHub(logger)
	if err := hub.Start(ctx); err != nil {
		return err
	}
	defer hub.Stop()

	srv := server.New(st, hub,
		server.WithLogger(logger),
		server.WithEventBus(bus),
		server.WithConnOptions(cfg.Client.ConnOptions()),
	)

	return server.ListenAndServe(ctx, srv.Handler(), server.HTTPOptions{
		Addr:            cfg.Server.Addr(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	if !strings.EqualFold(cfg.Driver, config.DriverRedis) {
		return store.NewMemory(), nil
	}

	r, err := store.NewRedis(ctx, store.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Key:      cfg.Redis.Key,
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}
