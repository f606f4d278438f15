package packets

import "io"

// Publish carries an application message in either direction.
type Publish struct {
	Dup      bool
	QoS      byte
	Retain   bool
	Topic    string
	PacketID uint16 // only meaningful when QoS > 0
	Payload  []byte
}

func (p *Publish) Type() uint8 { return TypePublish }

func decodePublish(flags uint8, payload []byte) (*Publish, error) {
	p := &Publish{
		Dup:    flags&PublishFlagDup != 0,
		QoS:    (flags & PublishFlagQoSMask) >> PublishFlagQoSShift,
		Retain: flags&PublishFlagRetain != 0,
	}

	rd := bytesReader(payload)
	topic, err := rd.readString()
	if err != nil {
		return nil, ErrMalformedPayload
	}
	p.Topic = topic

	if p.QoS > 0 {
		packetID, err := rd.readUint16()
		if err != nil {
			return nil, ErrMalformedPayload
		}
		p.PacketID = packetID
	}

	p.Payload = rd.rest()
	return p, nil
}

func (p *Publish) WriteTo(w io.Writer) (int64, error) {
	var flags uint8
	if p.Dup {
		flags |= PublishFlagDup
	}
	flags |= (p.QoS << PublishFlagQoSShift) & PublishFlagQoSMask
	if p.Retain {
		flags |= PublishFlagRetain
	}

	body := make([]byte, 0, 2+len(p.Topic)+2+len(p.Payload))
	body = appendString(body, p.Topic)
	if p.QoS > 0 {
		body = appendUint16(body, p.PacketID)
	}
	body = append(body, p.Payload...)

	return writeFramed(w, TypePublish, flags, body)
}
