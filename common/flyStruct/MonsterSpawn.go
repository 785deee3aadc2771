package flyStruct

import (
	"bytes"
	"encoding/hex"

	"github.com/nomoresecretz/flymap/common/decoder"
)

// spawn chunk: tag(4) id(8) unknown(20) coords(16)
const (
	lenSpawnID      = 8
	lenSpawnUnknown = 20
	lenSpawnCoords  = 16
	lenSpawnChunk   = tagLen + lenSpawnID + lenSpawnUnknown + lenSpawnCoords
)

// MonsterSpawn is one spawn chunk. The first coordinate float is not trusted; the
// remaining three are the world X, height and depth, in that order.
type MonsterSpawn struct {
	Offset    int
	MonsterID string
	Unused    float32
	PosX      float32
	PosZ      float32
	PosY      float32
}

// MonsterSpawns collects every spawn chunk found anywhere in the buffer.
type MonsterSpawns struct {
	Spawns []MonsterSpawn

	tag decoder.Tag
}

func (p *MonsterSpawns) FlyType() PacketType { return PT_MonsterSpawn }

func (p *MonsterSpawns) Unmarshal(c *Cursor) error {
	c.Seek(0)

	for c.Pos()+lenSpawnChunk <= c.Len() {
		start := c.Pos()
		if !bytes.Equal(c.Peek(tagLen), p.tag[:]) {
			c.Seek(start + 1)
			continue
		}

		c.Skip(tagLen)
		s := MonsterSpawn{
			Offset:    start,
			MonsterID: hex.EncodeToString(c.ReadBytes(lenSpawnID)),
		}
		c.Skip(lenSpawnUnknown)
		s.Unused = c.ReadFloatLE()
		s.PosX = c.ReadFloatLE()
		s.PosZ = c.ReadFloatLE()
		s.PosY = c.ReadFloatLE()

		p.Spawns = append(p.Spawns, s)
	}

	return nil
}

func (p *MonsterSpawns) fields(pk *Packet) {
	pk.Set("spawnCount", len(p.Spawns))
}

func (p *MonsterSpawns) events(pk *Packet) {
	for _, s := range p.Spawns {
		pk.position(PositionEvent{
			Kind: EntityMonster,
			ID:   s.MonsterID[:min(16, len(s.MonsterID))],
			X:    float64(s.PosX),
			Y:    float64(s.PosY),
			Z:    float64(s.PosZ),
		})
	}
}
