// Package packets implements the MQTT 3.1.1 control-packet wire format:
// fixed header, Remaining Length variable byte integer, and the per-type
// variable header/payload shapes for all fourteen packet types.
package packets

import "errors"

// Protocol errors. The connection is terminated on any of these; no CONNACK
// is sent except for the authentication-failure path, which lives above
// this package.
var (
	ErrMalformedHeader  = errors.New("packets: malformed fixed header")
	ErrMalformedLength  = errors.New("packets: malformed remaining length")
	ErrMalformedUTF8    = errors.New("packets: malformed utf-8 string")
	ErrMalformedPayload = errors.New("packets: malformed payload")
	ErrUnsupportedType  = errors.New("packets: unsupported packet type")
	ErrInvalidFirst     = errors.New("packets: first packet on a connection was not CONNECT")
)

// Transport errors, surfaced by the byte stream and connection tasks.
var (
	ErrConnectionClosed      = errors.New("packets: connection closed")
	ErrConnectionInterrupted = errors.New("packets: connection interrupted mid-frame")
)
