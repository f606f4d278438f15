package packets

import "io"

// PingReq is the keep-alive ping sent by a client.
type PingReq struct{}

func (PingReq) Type() uint8 { return TypePingReq }

func (p PingReq) WriteTo(w io.Writer) (int64, error) {
	return writeFramed(w, TypePingReq, 0, nil)
}

// PingResp is the server's reply to PINGREQ.
type PingResp struct{}

func (PingResp) Type() uint8 { return TypePingResp }

func (p PingResp) WriteTo(w io.Writer) (int64, error) {
	return writeFramed(w, TypePingResp, 0, nil)
}

// Disconnect is sent by a client to close the connection cleanly.
type Disconnect struct{}

func (Disconnect) Type() uint8 { return TypeDisconnect }

func (d Disconnect) WriteTo(w io.Writer) (int64, error) {
	return writeFramed(w, TypeDisconnect, 0, nil)
}
