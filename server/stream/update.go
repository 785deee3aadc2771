package stream

import (
	"encoding/hex"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nomoresecretz/flymap/common/flyStruct"
)

type UpdateType uint8

const (
	UT_Unknown UpdateType = iota
	UT_UserPosition
	UT_MonsterPosition
	UT_PlayerPosition
	UT_ChatMessage
	UT_InitialPacket
)

func (t UpdateType) String() string {
	switch t {
	case UT_UserPosition:
		return "user-position"
	case UT_MonsterPosition:
		return "monster-position"
	case UT_PlayerPosition:
		return "player-position"
	case UT_ChatMessage:
		return "chat-message"
	case UT_InitialPacket:
		return "initial-packet"
	}

	return "unknown"
}

// Update is one event relayed to clients.
type Update struct {
	Seq      uint64
	Type     UpdateType
	Origin   time.Time
	Position *flyStruct.PositionEvent
	Chat     *flyStruct.ChatEvent
	Data     []byte
}

// Proto renders the update as a protobuf struct for the relay.
func (u *Update) Proto() (*structpb.Struct, error) {
	m := map[string]any{
		"seq":        u.Seq,
		"type":       u.Type.String(),
		"observedAt": u.Origin.UTC().Format(time.RFC3339Nano),
	}

	if p := u.Position; p != nil {
		m["kind"] = p.Kind.String()
		m["x"] = p.X
		m["y"] = p.Y
		m["z"] = p.Z
		m["rotation"] = p.Rotation
		m["isSpawn"] = p.IsSpawn

		if p.ID != "" {
			m["id"] = p.ID
		}
	}

	if c := u.Chat; c != nil {
		m["direction"] = c.Direction.String()
		m["message"] = c.Message
	}

	if u.Data != nil {
		m["data"] = hex.EncodeToString(u.Data)
	}

	return structpb.NewStruct(m)
}
