// Package broker implements the broker dispatcher (the single-owner actor
// holding all session and subscription state), the per-connection
// reader/writer tasks, and the listener/accept loop.
package broker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ratelmq/ratelmq/internal/auth"
	"github.com/ratelmq/ratelmq/internal/mqtt/broker/event"
	"github.com/ratelmq/ratelmq/internal/mqtt/packets"
	"github.com/ratelmq/ratelmq/internal/mqtt/session"
	"github.com/ratelmq/ratelmq/internal/mqtt/subscription"
)

// inboxCapacity is the dispatcher's single consumer channel depth.
const inboxCapacity = 32

// keepAliveSweepInterval is how often the dispatcher checks for expired
// sessions; see SPEC_FULL.md section 9.
const keepAliveSweepInterval = 1 * time.Second

// defaultEgressSendTimeout is used when the dispatcher is constructed
// without an explicit timeout (tests, mainly); production wiring always
// supplies config.MQTT.EgressSendTimeout().
const defaultEgressSendTimeout = 5 * time.Second

// Dispatcher is the single owner of the session store and subscription
// trie. It is the only goroutine that ever mutates either, so neither
// needs a lock; see SPEC_FULL.md section 5.
type Dispatcher struct {
	logger   *slog.Logger
	identity auth.IdentityProvider

	sessions *session.Store
	trie     *subscription.Trie

	inbox       chan event.ClientEvent
	sendTimeout time.Duration
}

// New constructs a dispatcher. identity may be nil, in which case every
// CONNECT carrying a username is rejected. A zero sendTimeout uses
// defaultEgressSendTimeout.
func New(logger *slog.Logger, identity auth.IdentityProvider, sendTimeout time.Duration) *Dispatcher {
	if sendTimeout <= 0 {
		sendTimeout = defaultEgressSendTimeout
	}
	return &Dispatcher{
		logger:      logger,
		identity:    identity,
		sessions:    session.NewStore(),
		trie:        subscription.New(),
		inbox:       make(chan event.ClientEvent, inboxCapacity),
		sendTimeout: sendTimeout,
	}
}

// Inbox returns the channel connection reader tasks send ClientEvents on.
func (d *Dispatcher) Inbox() chan<- event.ClientEvent {
	return d.inbox
}

// Run processes events serially until ctx is cancelled. Per SPEC_FULL.md
// section 5, shutdown drains the inbox and exits rather than aborting
// mid-event; any event already queued in the inbox when ctx is cancelled
// is processed before Run returns.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(keepAliveSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case evt := <-d.inbox:
					d.handle(ctx, evt)
				default:
					d.logger.Debug("dispatcher stopping")
					return
				}
			}
		case evt := <-d.inbox:
			d.handle(ctx, evt)
		case now := <-ticker.C:
			d.sweepKeepAlive(ctx, now)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, evt event.ClientEvent) {
	switch evt.Kind {
	case event.Connected:
		d.onConnected(ctx, evt)
	case event.Packet:
		d.onPacket(ctx, evt)
	case event.ConnectionLost:
		d.onDeparture(evt.ClientID, false)
	case event.Disconnected:
		d.onDeparture(evt.ClientID, true)
	}
}

func (d *Dispatcher) onConnected(ctx context.Context, evt event.ClientEvent) {
	cp := evt.Connect
	// The connection task has already resolved an empty client_id to a
	// generated identifier; evt.ClientID is authoritative from here on.
	clientID := evt.ClientID

	if cp.HasUsername {
		if err := d.authenticate(cp.Username, string(cp.Password)); err != nil {
			if errors.Is(err, auth.ErrProvider) {
				d.logger.Warn("identity provider failure", "username", cp.Username, "error", err)
			} else {
				d.logger.Info("authentication failed", "username", cp.Username, "error", err)
			}
			d.send(ctx, clientID, evt.Egress, &packets.ConnAck{ReturnCode: packets.ConnAckNotAuthorized})
			trySend(evt.Egress, event.ServerEvent{Kind: event.Disconnect})
			return
		}
	}

	existing := d.sessions.Get(clientID)
	sessionPresent := false

	switch {
	case existing != nil && cp.CleanSession:
		d.trie.RemoveClient(clientID)
		d.sessions.Delete(clientID)
		existing = nil
	case existing != nil:
		sessionPresent = true
	}

	if existing == nil {
		sess := &session.Session{
			ClientID:     clientID,
			RemoteAddr:   evt.RemoteAddr,
			Persistent:   !cp.CleanSession,
			KeepAlive:    time.Duration(cp.KeepAlive) * time.Second,
			LastActivity: time.Now(),
			Egress:       evt.Egress,
		}
		d.sessions.Put(sess)
	} else {
		// Resuming a persistent session: rebind its egress to the new
		// connection and refresh its activity clock. Its subscriptions in
		// the trie are untouched, per the persistent-session retention
		// decision in SPEC_FULL.md section 9.
		existing.Egress = evt.Egress
		existing.LastActivity = time.Now()
		existing.RemoteAddr = evt.RemoteAddr
	}

	d.logger.Debug("client connected", "client_id", clientID, "session_present", sessionPresent)
	d.send(ctx, clientID, evt.Egress, &packets.ConnAck{SessionPresent: sessionPresent, ReturnCode: packets.ConnAckAccepted})
}

func (d *Dispatcher) authenticate(username, password string) error {
	if d.identity == nil {
		return auth.ErrProvider
	}
	return d.identity.Authenticate(username, password)
}

func (d *Dispatcher) onPacket(ctx context.Context, evt event.ClientEvent) {
	sess := d.sessions.Get(evt.ClientID)
	if sess != nil {
		sess.Touch(time.Now())
	}

	switch p := evt.ControlPacket.(type) {
	case *packets.Publish:
		d.onPublish(ctx, evt.ClientID, p)
	case *packets.Subscribe:
		d.onSubscribe(ctx, evt.ClientID, evt.Egress, p)
	case *packets.Unsubscribe:
		d.onUnsubscribe(ctx, evt.ClientID, evt.Egress, p)
	case packets.PingReq:
		d.onPingReq(ctx, evt.ClientID, evt.Egress)
	case packets.Disconnect:
		d.onDeparture(evt.ClientID, true)
	case *packets.PacketIDAck:
		d.logger.Debug("ignoring QoS 1/2 acknowledgement", "client_id", evt.ClientID, "type", p.Type())
	default:
		d.logger.Debug("unexpected packet from client", "client_id", evt.ClientID)
	}
}

func (d *Dispatcher) onPublish(ctx context.Context, from string, p *packets.Publish) {
	d.logger.Debug("publish received", "client_id", from, "topic", p.Topic)

	for _, clientID := range d.trie.SubscribedClients(p.Topic) {
		sess := d.sessions.Get(clientID)
		if sess == nil {
			continue
		}
		delivery := &packets.Publish{Topic: p.Topic, Payload: p.Payload}
		d.send(ctx, clientID, sess.Egress, delivery)
	}
}

func (d *Dispatcher) onSubscribe(ctx context.Context, clientID string, egress chan<- event.ServerEvent, s *packets.Subscribe) {
	codes := make([]byte, 0, len(s.Filters))
	for _, f := range s.Filters {
		d.trie.Subscribe(clientID, f.Filter)
		codes = append(codes, grantedQoS(f.QoS))
	}
	d.send(ctx, clientID, egress, &packets.SubAck{PacketID: s.PacketID, ReturnCodes: codes})
}

func grantedQoS(requested byte) byte {
	switch requested {
	case 1:
		return packets.SubAckQoS1
	case 2:
		return packets.SubAckQoS2
	default:
		return packets.SubAckQoS0
	}
}

func (d *Dispatcher) onUnsubscribe(ctx context.Context, clientID string, egress chan<- event.ServerEvent, u *packets.Unsubscribe) {
	for _, filter := range u.Filters {
		d.trie.Unsubscribe(clientID, filter)
	}
	d.send(ctx, clientID, egress, packets.NewUnsubAck(u.PacketID))
}

func (d *Dispatcher) onPingReq(ctx context.Context, clientID string, egress chan<- event.ServerEvent) {
	if d.sessions.Get(clientID) == nil {
		// Normally unreachable: a packet event implies an established
		// session. Guard it anyway rather than sending PINGRESP into the
		// void.
		d.logger.Debug("PINGREQ from unknown session", "client_id", clientID)
		trySend(egress, event.ServerEvent{Kind: event.Disconnect})
		return
	}
	d.send(ctx, clientID, egress, packets.PingResp{})
}

func (d *Dispatcher) onDeparture(clientID string, explicit bool) {
	sess := d.sessions.Get(clientID)
	if sess == nil {
		return
	}

	if explicit || !sess.Persistent {
		d.sessions.Delete(clientID)
	}
	if !sess.Persistent {
		d.trie.RemoveClient(clientID)
	}

	if explicit {
		d.logger.Debug("client disconnected", "client_id", clientID)
	} else {
		d.logger.Info("client connection lost", "client_id", clientID)
	}
}

func (d *Dispatcher) sweepKeepAlive(ctx context.Context, now time.Time) {
	for _, sess := range d.sessions.All() {
		if sess.KeepAliveExpired(now) {
			d.logger.Info("keep-alive expired, disconnecting", "client_id", sess.ClientID)
			trySend(sess.Egress, event.ServerEvent{Kind: event.Disconnect})
			d.onDeparture(sess.ClientID, false)
		}
	}
}

// send delivers p to egress, enforcing the back-pressure policy required
// by SPEC_FULL.md section 4.3: a blocking send bounded by d.sendTimeout.
// If the subscriber's writer hasn't drained its egress within that
// window, the session is force-disconnected and treated exactly like a
// ConnectionLost arrival - the dispatcher is the one serializing this, so
// no other event for any client can be processed while a slow send is in
// flight, but the bound bounds how long that stall can last.
func (d *Dispatcher) send(ctx context.Context, clientID string, egress chan<- event.ServerEvent, p packets.Packet) {
	evt := event.ServerEvent{Kind: event.SendPacket, ControlPacket: p}

	timer := time.NewTimer(d.sendTimeout)
	defer timer.Stop()

	select {
	case egress <- evt:
		return
	case <-ctx.Done():
		return
	case <-timer.C:
		d.logger.Warn("egress send timed out, forcing disconnect", "client_id", clientID)
		trySend(egress, event.ServerEvent{Kind: event.Disconnect})
		d.onDeparture(clientID, false)
	}
}

// trySend is a non-blocking best-effort send, used only for the
// Disconnect signal that accompanies a forced or authentication-failure
// close: the writer may already be gone, and Disconnect has no reply to
// wait for.
func trySend(egress chan<- event.ServerEvent, evt event.ServerEvent) {
	select {
	case egress <- evt:
	default:
	}
}
