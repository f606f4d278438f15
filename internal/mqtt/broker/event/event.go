// Package event defines the two message shapes that flow between
// connection tasks and the broker dispatcher: ClientEvent (reader ->
// dispatcher) and ServerEvent (dispatcher -> writer). Keeping them in
// their own package lets both internal/mqtt/session and
// internal/mqtt/broker depend on the event vocabulary without a cycle.
package event

import (
	"net"

	"github.com/ratelmq/ratelmq/internal/mqtt/packets"
)

// ClientKind distinguishes the four ClientEvent shapes.
type ClientKind int

const (
	Connected ClientKind = iota
	Packet
	ConnectionLost
	Disconnected
)

// ClientEvent is emitted by a connection's reader task onto the
// dispatcher's inbox. ClientID is always set: the connection task resolves
// an empty CONNECT client_id to a generated identifier before emitting
// Connected, and tags every later event for that connection with the same
// value.
type ClientEvent struct {
	Kind     ClientKind
	ClientID string

	// Connected fields.
	Connect    *packets.Connect
	RemoteAddr net.Addr

	// Packet fields (also used to carry Egress on Connected).
	ControlPacket packets.Packet
	Egress        chan<- ServerEvent
}

// ServerKind distinguishes the two ServerEvent shapes.
type ServerKind int

const (
	SendPacket ServerKind = iota
	Disconnect
)

// ServerEvent is pushed by the dispatcher onto a session's egress channel
// and consumed by that connection's writer task.
type ServerEvent struct {
	Kind          ServerKind
	ControlPacket packets.Packet // only set when Kind == SendPacket
}
