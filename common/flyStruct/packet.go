package flyStruct

import (
	"errors"
	"time"

	"github.com/nomoresecretz/flymap/common/decoder"
	"github.com/nomoresecretz/flymap/common/flyPacket"
)

const tagLen = 4

// TagTable resolves wire tags to registered names.
type TagTable interface {
	GetOp(t decoder.Tag) string
	Tags() map[string]decoder.Tag
}

var shapes = map[PacketType]func() FlyStruct{
	PT_UserMove:     func() FlyStruct { return &UserMove{} },
	PT_MonsterMove:  func() FlyStruct { return &MonsterMove{} },
	PT_MonsterSpawn: func() FlyStruct { return &MonsterSpawns{} },
	PT_PlayerSpawn:  func() FlyStruct { return &PlayerSpawn{} },
	PT_ChatMessage:  func() FlyStruct { return &ChatMessage{} },
	PT_Welcome:      func() FlyStruct { return &Welcome{} },
}

// Decoder dispatches decrypted buffers to their packet shape. It is immutable once
// built and safe for concurrent use.
type Decoder struct {
	names TagTable
	types map[decoder.Tag]PacketType
	spawn decoder.Tag
}

// NewDecoder snapshots the tag table. Registered names without a shape are known but unparsed.
func NewDecoder(t TagTable) *Decoder {
	d := &Decoder{
		names: t,
		types: make(map[decoder.Tag]PacketType),
	}

	for name, tag := range t.Tags() {
		pt, ok := typeNames[name]
		if !ok {
			pt = PT_Known
		}
		d.types[tag] = pt

		if pt == PT_MonsterSpawn {
			d.spawn = tag
		}
	}

	return d
}

// TypeOf returns the packet type bound to a tag.
func (d *Decoder) TypeOf(t decoder.Tag) PacketType {
	return d.types[t]
}

// Decode reads the tag, runs the matching shape, and drains what it left behind.
// It never panics and never returns an error; problems become diagnostics.
func (d *Decoder) Decode(buf []byte, dir flyPacket.Direction, at time.Time) *Packet {
	c := NewCursor(buf)
	tag := decoder.TagFromBytes(c.ReadBytes(tagLen))

	p := &Packet{
		Tag:        tag,
		Name:       d.names.GetOp(tag),
		Type:       d.types[tag],
		Direction:  dir,
		ObservedAt: at,
		Len:        len(buf),
		Fields:     make(map[string]any),
	}

	switch p.Type {
	case PT_Unknown:
		p.anomalies(c)
		p.Diagnostics = append(p.Diagnostics, Diagnostic{
			Kind: AnomalyUnrecognizedTag,
			Tag:  tag,
			Have: len(buf),
			Dump: HexDump(buf),
		})
	case PT_Known:
		p.anomalies(c)
	default:
		d.run(c, p)
	}

	c.Drain()
	p.Consumed = min(c.Pos(), len(buf))

	return p
}

func (d *Decoder) run(c *Cursor, p *Packet) {
	s := shapes[p.Type]()
	if ms, ok := s.(*MonsterSpawns); ok {
		ms.tag = d.spawn
	}

	err := s.Unmarshal(c)
	p.Obj = s
	p.anomalies(c)

	if f, ok := s.(fielder); ok {
		f.fields(p)
	}

	if err != nil {
		var diag *Diagnostic
		if errors.As(err, &diag) {
			diag.Tag = p.Tag
			p.Diagnostics = append(p.Diagnostics, *diag)
		}

		return
	}

	if len(p.Diagnostics) > 0 {
		return
	}

	if e, ok := s.(emitter); ok {
		e.events(p)
	}
}

func (p *Packet) anomalies(c *Cursor) {
	for _, a := range c.Anomalies() {
		a.Tag = p.Tag
		p.Diagnostics = append(p.Diagnostics, a)
	}
}
