package packets

import "io"

// PacketIDAck covers the five acknowledgement shapes whose entire variable
// header is a 2-byte packet identifier with no payload: PUBACK, PUBREC,
// PUBREL, PUBCOMP, and UNSUBACK. The QoS 1/2 flows these belong to are out
// of scope for delivery, but decode/encode support is kept so a peer that
// sends one is not treated as protocol-malformed.
type PacketIDAck struct {
	packetType uint8
	flags      uint8
	PacketID   uint16
}

func (a *PacketIDAck) Type() uint8 { return a.packetType }

func decodePacketIDAck(packetType, flags uint8, payload []byte) (*PacketIDAck, error) {
	rd := bytesReader(payload)
	packetID, err := rd.readUint16()
	if err != nil {
		return nil, ErrMalformedPayload
	}
	if rd.remaining() != 0 {
		return nil, ErrMalformedPayload
	}
	return &PacketIDAck{packetType: packetType, flags: flags, PacketID: packetID}, nil
}

func (a *PacketIDAck) WriteTo(w io.Writer) (int64, error) {
	body := appendUint16(make([]byte, 0, 2), a.PacketID)
	return writeFramed(w, a.packetType, a.flags, body)
}

// NewPubAck, NewPubRec, NewPubComp construct the corresponding ack packet.
// PUBREL additionally carries the mandatory 0b0010 flag nibble.
func NewPubAck(packetID uint16) *PacketIDAck { return &PacketIDAck{packetType: TypePubAck, PacketID: packetID} }
func NewPubRec(packetID uint16) *PacketIDAck { return &PacketIDAck{packetType: TypePubRec, PacketID: packetID} }
func NewPubRel(packetID uint16) *PacketIDAck {
	return &PacketIDAck{packetType: TypePubRel, flags: 0b0010, PacketID: packetID}
}
func NewPubComp(packetID uint16) *PacketIDAck { return &PacketIDAck{packetType: TypePubComp, PacketID: packetID} }
func NewUnsubAck(packetID uint16) *PacketIDAck {
	return &PacketIDAck{packetType: TypeUnsubAck, PacketID: packetID}
}
