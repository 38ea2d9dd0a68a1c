package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/urfave/cli/v2"

	"github.com/HMasataka/livecount/internal/config"
	"github.com/HMasataka/livecount/internal/eventbus"
	"github.com/HMasataka/livecount/internal/logging"
	"github.com/HMasataka/livecount/pkg/counter"
	"github.com/HMasataka/livecount/pkg/domain"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Log every counter change, reconnecting when the server goes away",
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := watch(ctx, cfg, logger); err != nil {
				return cli.Exit(err, 1)
			}
			return nil
		},
	}
}

func watch(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	bus := eventbus.NewInMemoryBus(64)

	bus.Subscribe(eventbus.EventCounterUpdated, func(e *eventbus.Event) {
		ev := e.Data.(domain.CounterUpdated)
		logger.Info("counter", "name", string(ev.Name), "value", ev.Value)
	})
	bus.Subscribe(eventbus.EventCounterDeleted, func(e *eventbus.Event) {
		ev := e.Data.(domain.CounterDeleted)
		logger.Info("deleted", "name", string(ev.Name))
	})

	lost := make(chan error, 1)
	bus.Subscribe(eventbus.EventStateChanged, func(e *eventbus.Event) {
		change := e.Data.(domain.StateChange)
		if change.Old == domain.StateConnected && change.New != domain.StateConnected {
			select {
			case lost <- change.Err:
			default:
			}
		}
	})

	client := counter.NewClient(
		counter.WithLogger(logger),
		counter.WithEventBus(bus),
		counter.WithConnOptions(cfg.Client.ConnOptions()),
	)
	defer client.Close()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.Reconnect.InitialInterval
	b.MaxInterval = cfg.Reconnect.MaxInterval
	b.MaxElapsedTime = cfg.Reconnect.MaxElapsedTime

	notify := func(err error, next time.Duration) {
		logger.Warn("connect failed, retrying", "error", err, "retry_in", next)
	}

	for {
		connect := func() error {
			return client.Connect(ctx, cfg.Client.URL)
		}
		if err := backoff.RetryNotify(connect, backoff.WithContext(b, ctx), notify); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		b.Reset()

		select {
		case <-ctx.Done():
			return nil
		case err := <-lost:
			logger.Warn("connection lost", "error", err)
		}
	}
}
