package packets

import "io"

// Connect is the CONNECT control packet (client -> server, first packet on
// every connection).
type Connect struct {
	ProtocolName  string
	ProtocolLevel byte
	CleanSession  bool
	KeepAlive     uint16
	ClientID      string

	HasWill     bool
	WillQoS     byte
	WillRetain  bool
	WillTopic   string
	WillPayload []byte

	HasUsername bool
	Username    string
	HasPassword bool
	Password    []byte
}

func (c *Connect) Type() uint8 { return TypeConnect }

func decodeConnect(payload []byte) (*Connect, error) {
	rd := bytesReader(payload)

	protoName, err := rd.readString()
	if err != nil {
		return nil, ErrMalformedPayload
	}

	level, err := rd.readByte()
	if err != nil {
		return nil, ErrMalformedPayload
	}

	flags, err := rd.readByte()
	if err != nil {
		return nil, ErrMalformedPayload
	}
	if flags&0x01 != 0 {
		return nil, ErrMalformedPayload
	}

	keepAlive, err := rd.readUint16()
	if err != nil {
		return nil, ErrMalformedPayload
	}

	clientID, err := rd.readString()
	if err != nil {
		return nil, ErrMalformedPayload
	}

	c := &Connect{
		ProtocolName:  protoName,
		ProtocolLevel: level,
		CleanSession:  flags&connectFlagCleanSession != 0,
		KeepAlive:     keepAlive,
		ClientID:      clientID,
		HasWill:       flags&connectFlagWill != 0,
		WillQoS:       (flags & connectFlagWillQoSMask) >> connectFlagWillQoSShift,
		WillRetain:    flags&connectFlagWillRetain != 0,
		HasUsername:  flags&connectFlagUsername != 0,
		HasPassword:  flags&connectFlagPassword != 0,
	}

	if c.HasPassword && !c.HasUsername {
		return nil, ErrMalformedPayload
	}

	if c.HasWill {
		willTopic, err := rd.readString()
		if err != nil {
			return nil, ErrMalformedPayload
		}
		willPayloadLen, err := rd.readUint16()
		if err != nil {
			return nil, ErrMalformedPayload
		}
		willPayload, err := rd.readBytes(int(willPayloadLen))
		if err != nil {
			return nil, ErrMalformedPayload
		}
		c.WillTopic = willTopic
		c.WillPayload = willPayload
	}

	if c.HasUsername {
		username, err := rd.readString()
		if err != nil {
			return nil, ErrMalformedPayload
		}
		c.Username = username
	}

	if c.HasPassword {
		passwordLen, err := rd.readUint16()
		if err != nil {
			return nil, ErrMalformedPayload
		}
		password, err := rd.readBytes(int(passwordLen))
		if err != nil {
			return nil, ErrMalformedPayload
		}
		c.Password = password
	}

	if rd.remaining() != 0 {
		return nil, ErrMalformedPayload
	}

	return c, nil
}

func (c *Connect) WriteTo(w io.Writer) (int64, error) {
	body := make([]byte, 0, 32)
	body = appendString(body, c.ProtocolName)
	body = append(body, c.ProtocolLevel)

	var flags byte
	if c.CleanSession {
		flags |= connectFlagCleanSession
	}
	if c.HasWill {
		flags |= connectFlagWill
		flags |= (c.WillQoS << connectFlagWillQoSShift) & connectFlagWillQoSMask
		if c.WillRetain {
			flags |= connectFlagWillRetain
		}
	}
	if c.HasUsername {
		flags |= connectFlagUsername
	}
	if c.HasPassword {
		flags |= connectFlagPassword
	}
	body = append(body, flags)
	body = appendUint16(body, c.KeepAlive)
	body = appendString(body, c.ClientID)

	if c.HasWill {
		body = appendString(body, c.WillTopic)
		body = appendUint16(body, uint16(len(c.WillPayload)))
		body = append(body, c.WillPayload...)
	}
	if c.HasUsername {
		body = appendString(body, c.Username)
	}
	if c.HasPassword {
		body = appendUint16(body, uint16(len(c.Password)))
		body = append(body, c.Password...)
	}

	return writeFramed(w, TypeConnect, 0, body)
}
