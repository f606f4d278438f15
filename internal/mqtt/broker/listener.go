package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/ratelmq/ratelmq/internal/mqtt/broker/event"
)

// Listener accepts TCP connections and feeds each one's packets into a
// Dispatcher's inbox via serveConnection. One Listener can be asked to
// Serve more than one address concurrently, grounded on the reference
// listener binding each configured address the same way.
type Listener struct {
	logger         *slog.Logger
	inbox          chan<- event.ClientEvent
	egressCapacity int
}

// NewListener constructs a Listener feeding d's inbox.
func NewListener(logger *slog.Logger, d *Dispatcher, egressCapacity int) *Listener {
	return &Listener{logger: logger, inbox: d.Inbox(), egressCapacity: egressCapacity}
}

// Serve binds addr and accepts connections until ctx is cancelled, at
// which point it closes the listener and waits for every in-flight
// connection's tasks to exit before returning.
func (l *Listener) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("mqtt: listen %s: %w", addr, err)
	}

	l.logger.Info("mqtt listener started", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info("mqtt listener stopped", "addr", addr)
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Temporary() {
				l.logger.Warn("temporary accept error", "addr", addr, "error", err)
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return fmt.Errorf("mqtt: accept on %s: %w", addr, err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			serveConnection(ctx, conn, l.inbox, l.egressCapacity, l.logger)
		}()
	}
}
