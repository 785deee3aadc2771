package flyStruct

import (
	"fmt"
	"time"

	"github.com/nomoresecretz/flymap/common/decoder"
	"github.com/nomoresecretz/flymap/common/flyPacket"
)

type PacketType uint32

const (
	PT_Unknown PacketType = iota
	PT_Known              // registered tag we deliberately do not parse
	PT_UserMove
	PT_MonsterMove
	PT_MonsterSpawn
	PT_PlayerSpawn
	PT_ChatMessage
	PT_Welcome
)

var typeNames = map[string]PacketType{
	"OP_UserMove":     PT_UserMove,
	"OP_MonsterMove":  PT_MonsterMove,
	"OP_MonsterSpawn": PT_MonsterSpawn,
	"OP_PlayerSpawn":  PT_PlayerSpawn,
	"OP_ChatMessage":  PT_ChatMessage,
	"OP_Welcome":      PT_Welcome,
}

func (t PacketType) String() string {
	switch t {
	case PT_Known:
		return "Known"
	case PT_UserMove:
		return "UserMove"
	case PT_MonsterMove:
		return "MonsterMove"
	case PT_MonsterSpawn:
		return "MonsterSpawn"
	case PT_PlayerSpawn:
		return "PlayerSpawn"
	case PT_ChatMessage:
		return "ChatMessage"
	case PT_Welcome:
		return "Welcome"
	}
	return "Unknown"
}

// FlyStruct is one decodable packet shape.
type FlyStruct interface {
	FlyType() PacketType
	Unmarshal(c *Cursor) error
}

// emitter is implemented by shapes that produce events.
type emitter interface {
	events(p *Packet)
}

// fielder copies decoded values into the packet field map.
type fielder interface {
	fields(p *Packet)
}

type Anomaly uint8

const (
	AnomalyNone Anomaly = iota
	AnomalyTruncatedRead
	AnomalyUnrecognizedTag
	AnomalyPatternNotFound
	AnomalyInsufficientPrecedingBytes
	AnomalyUnexpectedLength
	AnomalyChunkOverrun
)

func (a Anomaly) String() string {
	switch a {
	case AnomalyTruncatedRead:
		return "TruncatedRead"
	case AnomalyUnrecognizedTag:
		return "UnrecognizedTag"
	case AnomalyPatternNotFound:
		return "PatternNotFound"
	case AnomalyInsufficientPrecedingBytes:
		return "InsufficientPrecedingBytes"
	case AnomalyUnexpectedLength:
		return "UnexpectedLength"
	case AnomalyChunkOverrun:
		return "ChunkOverrun"
	}
	return "None"
}

// Diagnostic is a recoverable decode anomaly. It satisfies error so shapes can return it.
type Diagnostic struct {
	Kind   Anomaly
	Tag    decoder.Tag
	Offset int
	Want   int
	Have   int
	Dump   string
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s at %d (want %d, have %d)", d.Kind, d.Offset, d.Want, d.Have)
}

type EntityKind uint8

const (
	EntityUnknown EntityKind = iota
	EntityPlayer
	EntityUser
	EntityMonster
)

func (k EntityKind) String() string {
	switch k {
	case EntityPlayer:
		return "Player"
	case EntityUser:
		return "User"
	case EntityMonster:
		return "Monster"
	}
	return "Unknown"
}

// PositionEvent is an entity position read off the wire. Rotation is in game degrees.
type PositionEvent struct {
	Kind       EntityKind
	ID         string
	X, Y, Z    float64
	Rotation   float64
	IsSpawn    bool
	ObservedAt time.Time
}

type ChatEvent struct {
	Direction  flyPacket.Direction
	Message    string
	ObservedAt time.Time
}

// Packet is the result of decoding one buffer.
type Packet struct {
	Tag        decoder.Tag
	Name       string
	Type       PacketType
	Direction  flyPacket.Direction
	ObservedAt time.Time
	Len        int
	Consumed   int
	Fields     map[string]any
	Obj        FlyStruct

	Positions   []PositionEvent
	Chats       []ChatEvent
	Diagnostics []Diagnostic
}

// Set records a decoded field for inspection.
func (p *Packet) Set(key string, value any) {
	p.Fields[key] = value
}

func (p *Packet) position(e PositionEvent) {
	e.ObservedAt = p.ObservedAt
	p.Positions = append(p.Positions, e)
}

func (p *Packet) chat(msg string) {
	p.Chats = append(p.Chats, ChatEvent{
		Direction:  p.Direction,
		Message:    msg,
		ObservedAt: p.ObservedAt,
	})
}

// Events reports how many structured events the packet carries.
func (p *Packet) Events() int {
	return len(p.Positions) + len(p.Chats)
}
