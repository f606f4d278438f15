package packets

import "io"

// SubAck is the server's per-filter reply to SUBSCRIBE.
type SubAck struct {
	PacketID    uint16
	ReturnCodes []byte
}

func (s *SubAck) Type() uint8 { return TypeSubAck }

func decodeSubAck(payload []byte) (*SubAck, error) {
	rd := bytesReader(payload)
	packetID, err := rd.readUint16()
	if err != nil {
		return nil, ErrMalformedPayload
	}
	codes := rd.rest()
	if len(codes) == 0 {
		return nil, ErrMalformedPayload
	}
	return &SubAck{PacketID: packetID, ReturnCodes: codes}, nil
}

func (s *SubAck) WriteTo(w io.Writer) (int64, error) {
	body := make([]byte, 0, 2+len(s.ReturnCodes))
	body = appendUint16(body, s.PacketID)
	body = append(body, s.ReturnCodes...)
	return writeFramed(w, TypeSubAck, 0, body)
}
