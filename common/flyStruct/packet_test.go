package flyStruct

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/nomoresecretz/flymap/common/decoder"
	"github.com/nomoresecretz/flymap/common/flyPacket"
)

var (
	tagChat         = []byte{0x1f, 0x14, 0x00, 0x00}
	tagUserMove     = []byte{0x00, 0xf1, 0x00, 0x00}
	tagMonsterMove  = []byte{0x00, 0xf2, 0x00, 0x00}
	tagMonsterSpawn = []byte{0x00, 0xf3, 0x00, 0x00}
	tagPlayerSpawn  = []byte{0x00, 0xf4, 0x00, 0x00}
	tagWelcome      = []byte{0x00, 0xff, 0x00, 0x00}
	tagPing         = []byte{0x00, 0x11, 0x00, 0x00}

	testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func testDecoder(t *testing.T) *Decoder {
	t.Helper()
	return NewDecoder(decoder.NewDefaultDecoder())
}

func le(f float32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(f))
	return b
}

func u32le(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func cat(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

func pad(n int) []byte {
	return make([]byte, n)
}

func monsterMove(x, y, z float32, id []byte) []byte {
	return cat(tagMonsterMove, pad(12), pad(6), le(x), pad(4), le(y), pad(4), le(z), pad(4), id)
}

func spawnChunk(id []byte, unused, x, z, y float32) []byte {
	return cat(tagMonsterSpawn, id, pad(20), le(unused), le(x), le(z), le(y))
}

func TestDecodeEvents(t *testing.T) {
	id := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	tests := []struct {
		name      string
		buf       []byte
		dir       flyPacket.Direction
		wantType  PacketType
		wantPos   []PositionEvent
		wantChats []ChatEvent
	}{
		{
			name: "monster move",
			buf:  monsterMove(100.5, 20, -7, id),
			dir:  flyPacket.DirServerToClient,
			wantPos: []PositionEvent{
				{Kind: EntityMonster, ID: "0102030405060708", X: 100.5, Y: 20, Z: -7, ObservedAt: testTime},
			},
			wantType: PT_MonsterMove,
		},
		{
			name: "monster spawns in buffer order",
			buf: cat(
				spawnChunk(bytes.Repeat([]byte{1}, 8), 9, 1, 2, 3),
				[]byte{0x11, 0x22, 0x33},
				spawnChunk(bytes.Repeat([]byte{2}, 8), 9, 4, 5, 6),
			),
			dir:      flyPacket.DirServerToClient,
			wantType: PT_MonsterSpawn,
			wantPos: []PositionEvent{
				{Kind: EntityMonster, ID: "0101010101010101", X: 1, Y: 3, Z: 2, ObservedAt: testTime},
				{Kind: EntityMonster, ID: "0202020202020202", X: 4, Y: 6, Z: 5, ObservedAt: testTime},
			},
		},
		{
			name:     "monster spawn short tail ignored",
			buf:      cat(spawnChunk(bytes.Repeat([]byte{3}, 8), 0, 7, 8, 9), tagMonsterSpawn, pad(40)),
			dir:      flyPacket.DirServerToClient,
			wantType: PT_MonsterSpawn,
			wantPos: []PositionEvent{
				{Kind: EntityMonster, ID: "0303030303030303", X: 7, Y: 9, Z: 8, ObservedAt: testTime},
			},
		},
		{
			name:     "player spawn",
			buf:      cat(tagPlayerSpawn, le(10), le(5), le(-3), le(90), SpawnSignature(), []byte{9, 9}),
			dir:      flyPacket.DirServerToClient,
			wantType: PT_PlayerSpawn,
			wantPos: []PositionEvent{
				{Kind: EntityPlayer, X: 10, Y: 5, Z: -3, Rotation: 90, IsSpawn: true, ObservedAt: testTime},
			},
		},
		{
			name:     "user move keyboard",
			buf:      cat(tagUserMove, le(1), le(2), le(3), []byte{0x5a, 0x01}, pad(4), le(45), pad(4), []byte{0xff, 0xff}),
			dir:      flyPacket.DirClientToServer,
			wantType: PT_UserMove,
			wantPos: []PositionEvent{
				{Kind: EntityUser, X: 1, Y: 2, Z: 3, Rotation: 45, ObservedAt: testTime},
			},
		},
		{
			name: "user move click",
			buf: cat(tagUserMove, le(0), le(0), le(0), []byte{0x5a, 0x07}, pad(4),
				le(1), pad(4), le(0), pad(4), le(0), pad(4)),
			dir:      flyPacket.DirClientToServer,
			wantType: PT_UserMove,
			wantPos: []PositionEvent{
				{Kind: EntityUser, Rotation: 90, ObservedAt: testTime},
			},
		},
		{
			name:     "user move other subtype",
			buf:      cat(tagUserMove, le(4), le(5), le(6), []byte{0x5a, 0x02}, pad(4)),
			dir:      flyPacket.DirClientToServer,
			wantType: PT_UserMove,
			wantPos: []PositionEvent{
				{Kind: EntityUser, X: 4, Y: 5, Z: 6, ObservedAt: testTime},
			},
		},
		{
			name:     "chat with trailing bytes",
			buf:      cat(tagChat, u32le(5), []byte("hello"), []byte{0xde, 0xad}),
			dir:      flyPacket.DirClientToServer,
			wantType: PT_ChatMessage,
			wantChats: []ChatEvent{
				{Direction: flyPacket.DirClientToServer, Message: "hello", ObservedAt: testTime},
			},
		},
		{
			name:     "chat utf8",
			buf:      cat(tagChat, u32le(6), []byte("héllo")),
			dir:      flyPacket.DirServerToClient,
			wantType: PT_ChatMessage,
			wantChats: []ChatEvent{
				{Direction: flyPacket.DirServerToClient, Message: "héllo", ObservedAt: testTime},
			},
		},
	}

	d := testDecoder(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := d.Decode(tc.buf, tc.dir, testTime)

			if p.Type != tc.wantType {
				t.Errorf("Type = %s, want %s", p.Type, tc.wantType)
			}
			if len(p.Diagnostics) != 0 {
				t.Errorf("unexpected diagnostics: %v", p.Diagnostics)
			}
			if diff := cmp.Diff(tc.wantPos, p.Positions); diff != "" {
				t.Errorf("func diff(-want,+got):%v", diff)
			}
			if diff := cmp.Diff(tc.wantChats, p.Chats); diff != "" {
				t.Errorf("func diff(-want,+got):%v", diff)
			}
			if p.Consumed != len(tc.buf) {
				t.Errorf("Consumed = %d, want %d", p.Consumed, len(tc.buf))
			}
		})
	}
}

func TestDecodeDiagnostics(t *testing.T) {
	tests := []struct {
		name     string
		buf      []byte
		wantType PacketType
		wantKind []Anomaly
	}{
		{
			name:     "unknown tag",
			buf:      []byte{0xde, 0xad, 0xbe, 0xef, 1, 2, 3},
			wantType: PT_Unknown,
			wantKind: []Anomaly{AnomalyUnrecognizedTag},
		},
		{
			name:     "known but unparsed",
			buf:      cat(tagPing, []byte{1, 2, 3}),
			wantType: PT_Known,
		},
		{
			name:     "monster move one short",
			buf:      monsterMove(1, 2, 3, pad(8))[:53],
			wantType: PT_MonsterMove,
			wantKind: []Anomaly{AnomalyUnexpectedLength},
		},
		{
			name:     "monster move one long",
			buf:      cat(monsterMove(1, 2, 3, pad(8)), []byte{0}),
			wantType: PT_MonsterMove,
			wantKind: []Anomaly{AnomalyUnexpectedLength},
		},
		{
			name:     "player spawn without signature",
			buf:      cat(tagPlayerSpawn, le(10), le(5), le(-3), le(90)),
			wantType: PT_PlayerSpawn,
			wantKind: []Anomaly{AnomalyPatternNotFound},
		},
		{
			name:     "player spawn signature too early",
			buf:      cat(tagPlayerSpawn, []byte{1, 2, 3, 4}, SpawnSignature()),
			wantType: PT_PlayerSpawn,
			wantKind: []Anomaly{AnomalyInsufficientPrecedingBytes},
		},
		{
			name:     "chat length past end",
			buf:      cat(tagChat, u32le(50), []byte("hi")),
			wantType: PT_ChatMessage,
			wantKind: []Anomaly{AnomalyTruncatedRead},
		},
		{
			name:     "user move truncated",
			buf:      cat(tagUserMove, le(1), le(2)),
			wantType: PT_UserMove,
			wantKind: []Anomaly{AnomalyTruncatedRead, AnomalyTruncatedRead, AnomalyTruncatedRead},
		},
		{
			name: "welcome chunk overrun",
			buf: cat(tagWelcome,
				[]byte{0x00, 0x01, 0x00, 0x03}, pad(6), []byte{0xaa, 0xbb, 0xcc},
				[]byte{0x00, 0x02, 0x00, 0x64}, pad(6), []byte{0x01},
			),
			wantType: PT_Welcome,
			wantKind: []Anomaly{AnomalyChunkOverrun},
		},
		{
			name: "welcome partial chunk header",
			buf: cat(tagWelcome,
				[]byte{0x00, 0x01, 0x00, 0x02}, pad(6), []byte{0xaa, 0xbb},
				[]byte{0x00, 0x02, 0x00, 0x01, 0x00},
			),
			wantType: PT_Welcome,
			wantKind: []Anomaly{AnomalyChunkOverrun},
		},
	}

	d := testDecoder(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := d.Decode(tc.buf, flyPacket.DirServerToClient, testTime)

			if p.Type != tc.wantType {
				t.Errorf("Type = %s, want %s", p.Type, tc.wantType)
			}
			if p.Events() != 0 {
				t.Errorf("Events() = %d, want 0", p.Events())
			}

			var kinds []Anomaly
			for _, dg := range p.Diagnostics {
				kinds = append(kinds, dg.Kind)
				if dg.Tag != p.Tag {
					t.Errorf("diagnostic tag = %s, want %s", dg.Tag, p.Tag)
				}
			}
			if diff := cmp.Diff(tc.wantKind, kinds); diff != "" {
				t.Errorf("func diff(-want,+got):%v", diff)
			}
			if p.Consumed != len(tc.buf) {
				t.Errorf("Consumed = %d, want %d", p.Consumed, len(tc.buf))
			}
		})
	}
}

func TestWelcomeTrailingHeader(t *testing.T) {
	buf := cat(tagWelcome, []byte{0x00, 0x01, 0x00, 0x02}, pad(6), []byte{0xaa, 0xbb}, pad(5))
	p := testDecoder(t).Decode(buf, flyPacket.DirServerToClient, testTime)

	wl, ok := p.Obj.(*Welcome)
	if !ok {
		t.Fatalf("Obj = %T, want *Welcome", p.Obj)
	}
	if len(wl.Chunks) != 1 {
		t.Errorf("chunks = %d, want 1", len(wl.Chunks))
	}

	want := []Diagnostic{{
		Kind:   AnomalyChunkOverrun,
		Tag:    decoder.TagFromBytes(tagWelcome),
		Offset: 16,
		Want:   lenChunkHeader,
		Have:   5,
	}}
	if diff := cmp.Diff(want, p.Diagnostics); diff != "" {
		t.Errorf("func diff(-want,+got):%v", diff)
	}
}

func TestDecodeUnknownDump(t *testing.T) {
	buf := []byte{0xde, 0xad, 0xbe, 0xef, 0x01}
	p := testDecoder(t).Decode(buf, flyPacket.DirServerToClient, testTime)

	if len(p.Diagnostics) != 1 {
		t.Fatalf("Diagnostics = %v, want exactly one", p.Diagnostics)
	}
	if got, want := p.Diagnostics[0].Dump, HexDump(buf); got != want {
		t.Errorf("Dump = %q, want %q", got, want)
	}
	if p.Name != "" {
		t.Errorf("Name = %q, want empty", p.Name)
	}
}

func TestDecodeFields(t *testing.T) {
	d := testDecoder(t)

	p := d.Decode(monsterMove(1, 2, 3, []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x00, 0x11}), flyPacket.DirServerToClient, testTime)
	mm, ok := p.Obj.(*MonsterMove)
	if !ok {
		t.Fatalf("Obj = %T, want *MonsterMove", p.Obj)
	}
	if mm.ActionID != "00f20000" {
		t.Errorf("ActionID = %q", mm.ActionID)
	}
	if got := p.Fields["monsterIdentificationId"]; got != "aabbccddeeff0011" {
		t.Errorf("monsterIdentificationId = %v", got)
	}

	w := d.Decode(cat(tagWelcome, []byte{0x00, 0x01, 0x00, 0x02}, pad(6), []byte{7, 8}), flyPacket.DirServerToClient, testTime)
	wl, ok := w.Obj.(*Welcome)
	if !ok {
		t.Fatalf("Obj = %T, want *Welcome", w.Obj)
	}
	want := []WelcomeChunk{{Offset: 4, Unknown: 1, Length: 2, Data: []byte{7, 8}}}
	if diff := cmp.Diff(want, wl.Chunks); diff != "" {
		t.Errorf("func diff(-want,+got):%v", diff)
	}
	if len(w.Diagnostics) != 0 {
		t.Errorf("unexpected diagnostics: %v", w.Diagnostics)
	}
}

// Every registered shape must survive every prefix of a noisy buffer.
func TestDecodeNeverPanics(t *testing.T) {
	d := testDecoder(t)
	noise := make([]byte, 120)
	for i := range noise {
		noise[i] = byte(i*37 + 11)
	}

	for name, tag := range decoder.NewDefaultDecoder().Tags() {
		full := cat(tag[:], noise)
		for n := 0; n <= len(full); n++ {
			p := d.Decode(full[:n], flyPacket.DirServerToClient, testTime)
			if p.Consumed > n {
				t.Fatalf("%s[:%d]: Consumed = %d", name, n, p.Consumed)
			}
			if p.Events() > 0 && len(p.Diagnostics) > 0 {
				t.Fatalf("%s[:%d]: events emitted alongside diagnostics", name, n)
			}
		}
	}
}

type recorder struct {
	calls []string
}

func (r *recorder) OnUserPosition(e PositionEvent)    { r.calls = append(r.calls, "user") }
func (r *recorder) OnMonsterPosition(e PositionEvent) { r.calls = append(r.calls, "monster:"+e.ID) }
func (r *recorder) OnPlayerPosition(e PositionEvent)  { r.calls = append(r.calls, "player") }
func (r *recorder) OnChatMessage(e ChatEvent)         { r.calls = append(r.calls, "chat:"+e.Message) }

func (r *recorder) Record(p *Packet, d Diagnostic) {
	r.calls = append(r.calls, "diag:"+d.Kind.String())
}

func TestPublish(t *testing.T) {
	p := &Packet{
		Positions: []PositionEvent{
			{Kind: EntityMonster, ID: "a"},
			{Kind: EntityUser},
			{Kind: EntityPlayer},
			{Kind: EntityMonster, ID: "b"},
		},
		Chats:       []ChatEvent{{Message: "hi"}},
		Diagnostics: []Diagnostic{{Kind: AnomalyTruncatedRead}},
	}

	a, b := &recorder{}, &recorder{}
	Publish(p, Emitters{a, b}, a)

	want := []string{"diag:TruncatedRead", "monster:a", "user", "player", "monster:b", "chat:hi"}
	if diff := cmp.Diff(want, a.calls); diff != "" {
		t.Errorf("func diff(-want,+got):%v", diff)
	}
	if diff := cmp.Diff(want[1:], b.calls); diff != "" {
		t.Errorf("func diff(-want,+got):%v", diff)
	}

	// nil listeners are allowed.
	Publish(p, nil, nil)
}
