package packets

import "io"

// Packet is implemented by every decoded MQTT control packet.
type Packet interface {
	// Type returns the MQTT control packet type code.
	Type() uint8
	// WriteTo encodes the packet, fixed header included, to w.
	WriteTo(w io.Writer) (int64, error)
}
