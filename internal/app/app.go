// Package app wires the broker dispatcher, listeners, and identity
// provider together and manages their lifecycle, the same role the donor
// repo's app package plays for the CatLocator services.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ratelmq/ratelmq/internal/auth"
	"github.com/ratelmq/ratelmq/internal/config"
	"github.com/ratelmq/ratelmq/internal/mqtt/broker"
)

// App wires together the broker's dispatcher and listeners and manages
// their lifecycle.
type App struct {
	cfg    config.Config
	logger *slog.Logger
}

// New constructs an application instance.
func New(cfg config.Config, logger *slog.Logger) *App {
	return &App{cfg: cfg, logger: logger}
}

// Run loads the identity provider, starts the dispatcher and every
// configured listener, and blocks until ctx is cancelled or a listener
// fails fatally.
func (a *App) Run(ctx context.Context) error {
	identity, err := auth.NewFileIdentityManager(a.cfg.Authentication.PasswordFile)
	if err != nil {
		return fmt.Errorf("load identity provider: %w", err)
	}

	dispatcherCtx, cancelDispatcher := context.WithCancel(ctx)
	defer cancelDispatcher()

	d := broker.New(a.logger, identity, a.cfg.MQTT.EgressSendTimeout())
	go d.Run(dispatcherCtx)

	listener := broker.NewListener(a.logger, d, a.cfg.MQTT.EgressCapacity)

	if len(a.cfg.MQTT.ListenersTCP) == 0 {
		return errors.New("app: no mqtt listeners configured")
	}

	errCh := make(chan error, len(a.cfg.MQTT.ListenersTCP))
	for _, addr := range a.cfg.MQTT.ListenersTCP {
		addr := addr
		go func() {
			errCh <- listener.Serve(ctx, addr)
		}()
	}

	for range a.cfg.MQTT.ListenersTCP {
		if err := <-errCh; err != nil {
			return err
		}
	}

	a.logger.Info("all mqtt listeners stopped")
	return nil
}
