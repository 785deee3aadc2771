package flyPacket

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/gopacket/gopacket"
)

// HeaderLen is the clear text frame header preceding the encrypted payload.
const HeaderLen = 9

type Direction uint8

const (
	DirUnknown Direction = iota
	DirClientToServer
	DirServerToClient
)

func (d Direction) String() string {
	switch d {
	case DirClientToServer:
		return "ClientToServer"
	case DirServerToClient:
		return "ServerToClient"
	}

	return "Unknown"
}

// ParseDirection maps the hook's SEND/RECV labels.
func ParseDirection(s string) Direction {
	switch strings.ToUpper(s) {
	case "SEND":
		return DirClientToServer
	case "RECV":
		return DirServerToClient
	}

	return DirUnknown
}

// HookLabel is the inverse of ParseDirection.
func (d Direction) HookLabel() string {
	switch d {
	case DirClientToServer:
		return "SEND"
	case DirServerToClient:
		return "RECV"
	}

	return ""
}

// RawFrame is one captured websocket message, still encrypted, header removed.
type RawFrame struct {
	Direction  Direction
	Header     []byte
	Payload    []byte
	ObservedAt time.Time
	URL        string
	Seq        uint64
}

// FlyFrame is the outer websocket frame layer.
type FlyFrame struct {
	Header  []byte
	Payload []byte
}

var FlyFrameType = gopacket.RegisterLayerType(
	2110,
	gopacket.LayerTypeMetadata{
		Name:    "FlyFrameType",
		Decoder: gopacket.DecodeFunc(DecodeFlyFrame),
	},
)

func (l *FlyFrame) LayerType() gopacket.LayerType {
	return FlyFrameType
}

// LayerContents returns the clear header.
func (l *FlyFrame) LayerContents() []byte {
	return l.Header
}

// LayerPayload returns the encrypted body.
func (l *FlyFrame) LayerPayload() []byte {
	return l.Payload
}

// Dumper is a basic string outputter for the frame for debugging.
func (l *FlyFrame) Dumper() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Header: %s ", spaced(l.Header))
	fmt.Fprintf(&b, "DataLength: %d ", len(l.Payload))
	fmt.Fprintf(&b, "First 32 Bytes: %s", spaced(l.Payload[:min(32, len(l.Payload))]))
	return b.String()
}

func spaced(b []byte) string {
	h := strings.ToUpper(hex.EncodeToString(b))
	var s strings.Builder
	for i := 0; i < len(h); i += 2 {
		if i > 0 {
			s.WriteByte(' ')
		}
		s.WriteString(h[i : i+2])
	}
	return s.String()
}

func decodeFlyFrame(data []byte) (*FlyFrame, error) {
	if len(data) < HeaderLen {
		return nil, fmt.Errorf("frame too short, got %d, want >= %d", len(data), HeaderLen)
	}

	return &FlyFrame{
		Header:  data[:HeaderLen],
		Payload: data[HeaderLen:],
	}, nil
}

// DecodeFlyFrame splits a websocket message into header and encrypted payload.
func DecodeFlyFrame(data []byte, p gopacket.PacketBuilder) error {
	l, err := decodeFlyFrame(data)
	if err != nil {
		return err
	}

	p.AddLayer(l)

	return p.NextDecoder(gopacket.LayerTypePayload)
}

// SplitFrame runs the layer decoder over one websocket message.
func SplitFrame(data []byte) (*FlyFrame, error) {
	pkt := gopacket.NewPacket(data, FlyFrameType, gopacket.NoCopy)
	if el := pkt.ErrorLayer(); el != nil {
		return nil, el.Error()
	}

	l, ok := pkt.Layer(FlyFrameType).(*FlyFrame)
	if !ok {
		return nil, fmt.Errorf("no frame layer in %d bytes", len(data))
	}

	return l, nil
}
