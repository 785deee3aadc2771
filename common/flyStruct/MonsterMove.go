package flyStruct

import "encoding/hex"

// lenMonsterMove is the only size at which the tag carries a monster position.
const lenMonsterMove = 54

// MonsterMove is a single monster position update.
type MonsterMove struct {
	ActionID         string
	Unknown4         []byte
	Unknown16        []byte
	PosX, PosY, PosZ float32
	IdentificationID string
}

func (p *MonsterMove) FlyType() PacketType { return PT_MonsterMove }

func (p *MonsterMove) Unmarshal(c *Cursor) error {
	if c.Len() != lenMonsterMove {
		return &Diagnostic{
			Kind: AnomalyUnexpectedLength,
			Want: lenMonsterMove,
			Have: c.Len(),
		}
	}

	// the action id overlaps the tag.
	c.Seek(0)
	p.ActionID = hex.EncodeToString(c.ReadBytes(4))
	p.Unknown4 = c.ReadBytes(12)
	p.Unknown16 = c.ReadBytes(6)
	p.PosX = c.ReadFloatLE()
	c.Skip(4)
	p.PosY = c.ReadFloatLE()
	c.Skip(4)
	p.PosZ = c.ReadFloatLE()
	c.Skip(4)
	p.IdentificationID = hex.EncodeToString(c.ReadBytes(8))

	return nil
}

// ID is the map key for the monster.
func (p *MonsterMove) ID() string {
	return p.IdentificationID[:min(16, len(p.IdentificationID))]
}

func (p *MonsterMove) fields(pk *Packet) {
	if p.IdentificationID == "" {
		return
	}
	pk.Set("actionId", p.ActionID)
	pk.Set("posX", p.PosX)
	pk.Set("posY", p.PosY)
	pk.Set("posZ", p.PosZ)
	pk.Set("monsterIdentificationId", p.IdentificationID)
}

func (p *MonsterMove) events(pk *Packet) {
	pk.position(PositionEvent{
		Kind: EntityMonster,
		ID:   p.ID(),
		X:    float64(p.PosX),
		Y:    float64(p.PosY),
		Z:    float64(p.PosZ),
	})
}
