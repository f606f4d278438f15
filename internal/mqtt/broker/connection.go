package broker

import (
	"bufio"
	"context"
	"log/slog"
	"net"

	"github.com/google/uuid"

	"github.com/ratelmq/ratelmq/internal/mqtt/broker/event"
	"github.com/ratelmq/ratelmq/internal/mqtt/packets"
)

// connection owns one accepted socket for its whole lifetime: a reader
// goroutine that enforces the CONNECT-first state machine and turns wire
// packets into ClientEvents, and a writer goroutine that drains the
// per-connection egress channel the dispatcher replies on. Grounded on the
// reference listener's paired read/write connection tasks.
type connection struct {
	conn     net.Conn
	reader   *bufio.Reader
	logger   *slog.Logger
	inbox    chan<- event.ClientEvent
	egress   chan event.ServerEvent
	clientID string
}

// serveConnection runs conn's reader and writer loops and blocks until
// both have exited. It never closes egress: the dispatcher is the only
// other goroutine that holds a reference to it, and a channel must never
// be closed by a party that isn't its sole owner. Instead the writer loop
// exits on an explicit Disconnect event or a stop signal from the reader,
// and closing conn is what unblocks a reader parked in a blocking read.
func serveConnection(ctx context.Context, conn net.Conn, inbox chan<- event.ClientEvent, egressCapacity int, logger *slog.Logger) {
	c := &connection{
		conn:   conn,
		reader: bufio.NewReader(conn),
		logger: logger.With("remote_addr", conn.RemoteAddr().String()),
		inbox:  inbox,
		egress: make(chan event.ServerEvent, egressCapacity),
	}
	defer conn.Close()

	// On shutdown, close the socket so a reader parked in ReadPacket
	// observes the closure and exits.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	stopCh := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop(stopCh)
	}()

	c.readLoop(ctx, stopCh)
	<-writerDone
}

// writeLoop drains egress until it observes a Disconnect event (forced or
// policy-driven close, so it also closes the socket to wake the reader) or
// stopCh is closed by the reader (clean or error-driven close the reader
// already detected).
func (c *connection) writeLoop(stopCh <-chan struct{}) {
	for {
		select {
		case evt := <-c.egress:
			switch evt.Kind {
			case event.SendPacket:
				if _, err := evt.ControlPacket.WriteTo(c.conn); err != nil {
					c.logger.Debug("write failed", "error", err)
					return
				}
			case event.Disconnect:
				c.conn.Close()
				return
			}
		case <-stopCh:
			return
		}
	}
}

// readLoop enforces that CONNECT is the first packet on the connection,
// emits Connected, then forwards every subsequent packet to the dispatcher
// until the client disconnects, sends a malformed packet, or the socket
// errors. It always reports the connection's departure exactly once.
func (c *connection) readLoop(ctx context.Context, stopCh chan<- struct{}) {
	defer close(stopCh)

	first, err := packets.ReadPacket(c.reader)
	if err != nil {
		c.logger.Debug("failed to read first packet", "error", err)
		return
	}
	connectPkt, ok := first.(*packets.Connect)
	if !ok {
		c.logger.Debug("first packet was not CONNECT, closing connection")
		return
	}

	c.clientID = connectPkt.ClientID
	if c.clientID == "" {
		c.clientID = uuid.NewString()
	}

	if !c.emit(ctx, event.ClientEvent{
		Kind:       event.Connected,
		ClientID:   c.clientID,
		Connect:    connectPkt,
		RemoteAddr: c.conn.RemoteAddr(),
		Egress:     c.egress,
	}) {
		return
	}

	for {
		pkt, err := packets.ReadPacket(c.reader)
		if err != nil {
			c.logger.Debug("read failed, treating as connection loss", "client_id", c.clientID, "error", err)
			c.emit(ctx, event.ClientEvent{Kind: event.ConnectionLost, ClientID: c.clientID})
			return
		}

		if _, ok := pkt.(packets.Disconnect); ok {
			c.emit(ctx, event.ClientEvent{Kind: event.Disconnected, ClientID: c.clientID})
			return
		}

		if !c.emit(ctx, event.ClientEvent{
			Kind:          event.Packet,
			ClientID:      c.clientID,
			ControlPacket: pkt,
			Egress:        c.egress,
		}) {
			return
		}
	}
}

// emit delivers evt to the dispatcher inbox, giving up only if ctx is
// cancelled (shutdown). Returns false when the caller should stop reading.
func (c *connection) emit(ctx context.Context, evt event.ClientEvent) bool {
	select {
	case c.inbox <- evt:
		return true
	case <-ctx.Done():
		return false
	}
}
