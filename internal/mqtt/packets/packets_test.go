package packets

import (
	"bufio"
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func roundTrip(t *testing.T, p Packet) Packet {
	t.Helper()
	var buf bytes.Buffer
	if _, err := p.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	got, err := ReadPacket(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	return got
}

func TestConnectRoundTrip(t *testing.T) {
	in := &Connect{
		ProtocolName:  "MQTT",
		ProtocolLevel: 4,
		CleanSession:  true,
		KeepAlive:     60,
		ClientID:      "client-1",
		HasWill:       true,
		WillQoS:       1,
		WillRetain:    true,
		WillTopic:     "will/topic",
		WillPayload:   []byte("bye"),
		HasUsername:   true,
		Username:      "alice",
		HasPassword:   true,
		Password:      []byte("secret"),
	}
	out, ok := roundTrip(t, in).(*Connect)
	if !ok {
		t.Fatalf("expected *Connect, got %T", out)
	}
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("round trip mismatch: got %+v want %+v", out, in)
	}
}

func TestConnectRoundTripNoWillNoAuth(t *testing.T) {
	in := &Connect{
		ProtocolName:  "MQTT",
		ProtocolLevel: 4,
		CleanSession:  false,
		KeepAlive:     0,
		ClientID:      "",
	}
	out, ok := roundTrip(t, in).(*Connect)
	if !ok {
		t.Fatalf("expected *Connect, got %T", out)
	}
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("round trip mismatch: got %+v want %+v", out, in)
	}
}

func TestConnAckRoundTrip(t *testing.T) {
	in := &ConnAck{SessionPresent: true, ReturnCode: ConnAckAccepted}
	out, ok := roundTrip(t, in).(*ConnAck)
	if !ok || *out != *in {
		t.Fatalf("round trip mismatch: got %+v want %+v", out, in)
	}
}

func TestPublishRoundTripQoS0(t *testing.T) {
	in := &Publish{Topic: "a/b/c", Payload: []byte("test body")}
	out, ok := roundTrip(t, in).(*Publish)
	if !ok {
		t.Fatalf("expected *Publish, got %T", out)
	}
	if out.Topic != in.Topic || !bytes.Equal(out.Payload, in.Payload) || out.QoS != 0 {
		t.Fatalf("round trip mismatch: got %+v want %+v", out, in)
	}
}

func TestPublishRoundTripQoS1(t *testing.T) {
	in := &Publish{Dup: true, QoS: 1, Retain: true, Topic: "a/b", PacketID: 42, Payload: []byte{1, 2, 3}}
	out, ok := roundTrip(t, in).(*Publish)
	if !ok {
		t.Fatalf("expected *Publish, got %T", out)
	}
	if out.Dup != in.Dup || out.QoS != in.QoS || out.Retain != in.Retain ||
		out.Topic != in.Topic || out.PacketID != in.PacketID || !bytes.Equal(out.Payload, in.Payload) {
		t.Fatalf("round trip mismatch: got %+v want %+v", out, in)
	}
}

func TestSubscribeRoundTrip(t *testing.T) {
	in := &Subscribe{PacketID: 1, Filters: []SubscribeFilter{
		{Filter: "a/b/c", QoS: 0},
		{Filter: "x/+/y", QoS: 1},
	}}
	out, ok := roundTrip(t, in).(*Subscribe)
	if !ok || out.PacketID != in.PacketID || len(out.Filters) != len(in.Filters) {
		t.Fatalf("round trip mismatch: got %+v want %+v", out, in)
	}
	for i := range in.Filters {
		if out.Filters[i] != in.Filters[i] {
			t.Fatalf("filter %d mismatch: got %+v want %+v", i, out.Filters[i], in.Filters[i])
		}
	}
}

func TestSubAckRoundTrip(t *testing.T) {
	in := &SubAck{PacketID: 1, ReturnCodes: []byte{SubAckQoS0, SubAckFailure}}
	out, ok := roundTrip(t, in).(*SubAck)
	if !ok || out.PacketID != in.PacketID || !bytes.Equal(out.ReturnCodes, in.ReturnCodes) {
		t.Fatalf("round trip mismatch: got %+v want %+v", out, in)
	}
}

func TestUnsubscribeRoundTrip(t *testing.T) {
	in := &Unsubscribe{PacketID: 7, Filters: []string{"a/b", "c/#"}}
	out, ok := roundTrip(t, in).(*Unsubscribe)
	if !ok || out.PacketID != in.PacketID || len(out.Filters) != 2 ||
		out.Filters[0] != in.Filters[0] || out.Filters[1] != in.Filters[1] {
		t.Fatalf("round trip mismatch: got %+v want %+v", out, in)
	}
}

func TestPacketIDAckRoundTrip(t *testing.T) {
	for _, in := range []*PacketIDAck{
		NewPubAck(1), NewPubRec(2), NewPubRel(3), NewPubComp(4), NewUnsubAck(5),
	} {
		out, ok := roundTrip(t, in).(*PacketIDAck)
		if !ok || out.Type() != in.Type() || out.PacketID != in.PacketID {
			t.Fatalf("round trip mismatch for type %d: got %+v want %+v", in.packetType, out, in)
		}
	}
}

func TestPingPongDisconnectRoundTrip(t *testing.T) {
	if _, ok := roundTrip(t, PingReq{}).(PingReq); !ok {
		t.Fatal("expected PingReq")
	}
	if _, ok := roundTrip(t, PingResp{}).(PingResp); !ok {
		t.Fatal("expected PingResp")
	}
	if _, ok := roundTrip(t, Disconnect{}).(Disconnect); !ok {
		t.Fatal("expected Disconnect")
	}
}

func TestRemainingLengthBoundaries(t *testing.T) {
	cases := []struct {
		n         int
		wantBytes int
	}{
		{0, 1},
		{127, 1},
		{128, 2},
		{16383, 2},
		{16384, 3},
		{2097151, 3},
		{2097152, 4},
		{268435455, 4},
	}
	for _, c := range cases {
		encoded := encodeRemainingLength(c.n)
		if len(encoded) != c.wantBytes {
			t.Errorf("encodeRemainingLength(%d): got %d bytes, want %d", c.n, len(encoded), c.wantBytes)
		}
		got, err := readRemainingLength(bufReader(encoded))
		if err != nil {
			t.Errorf("readRemainingLength(%d): %v", c.n, err)
		}
		if got != c.n {
			t.Errorf("readRemainingLength round trip: got %d want %d", got, c.n)
		}
	}
}

func TestRemainingLengthTooLong(t *testing.T) {
	// Four continuation bytes followed by a fifth: the fifth byte is never
	// reached by a conforming decoder because the fourth must terminate.
	malformed := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x01}
	_, err := readRemainingLength(bufReader(malformed))
	if !errors.Is(err, ErrMalformedLength) {
		t.Fatalf("expected ErrMalformedLength, got %v", err)
	}
}

func TestFixedHeaderFlagValidation(t *testing.T) {
	if err := validateFlags(TypePublish, 0x02); err != nil {
		t.Fatalf("PUBLISH QoS=1 flags should validate; got %v", err)
	}
	if err := validateFlags(TypePublish, 0x06); err == nil {
		t.Fatal("expected ErrMalformedHeader for PUBLISH QoS=3")
	}
	if err := validateFlags(TypeSubscribe, 0b0010); err != nil {
		t.Fatalf("SUBSCRIBE with correct flags: %v", err)
	}
	if err := validateFlags(TypeSubscribe, 0); err == nil {
		t.Fatal("expected ErrMalformedHeader for SUBSCRIBE with flags=0")
	}
	if err := validateFlags(TypePingReq, 1); err == nil {
		t.Fatal("expected ErrMalformedHeader for PINGREQ with nonzero flags")
	}
}

// bufReader adapts a byte slice to io.ByteReader for direct varint tests.
type simpleByteReader struct {
	buf []byte
	pos int
}

func (r *simpleByteReader) ReadByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, errEOF
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

var errEOF = errors.New("eof")

func bufReader(b []byte) *simpleByteReader {
	return &simpleByteReader{buf: b}
}
