package flyStruct

import "encoding/hex"

const (
	moveKeyboard = "5a01"
	moveClick    = "5a07"
)

// UserMove is the local character movement packet.
type UserMove struct {
	PosX, PosY, PosZ          float32
	MovementType              string // hex of the 2 byte subtype
	SessionTime               []byte
	TargetX, TargetY, TargetZ float32
	Rotation                  float64
	HasRotation               bool
	HasTarget                 bool
}

func (p *UserMove) FlyType() PacketType { return PT_UserMove }

func (p *UserMove) Unmarshal(c *Cursor) error {
	p.PosX = c.ReadFloatLE()
	p.PosY = c.ReadFloatLE()
	p.PosZ = c.ReadFloatLE()
	p.MovementType = hex.EncodeToString(c.ReadBytes(2))
	p.SessionTime = c.ReadBytes(4)

	switch p.MovementType {
	case moveKeyboard:
		p.Rotation = float64(c.ReadFloatLE())
		p.HasRotation = true
		c.Skip(4)
	case moveClick:
		p.TargetX = c.ReadFloatLE()
		c.Skip(4)
		p.TargetY = c.ReadFloatLE()
		c.Skip(4)
		p.TargetZ = c.ReadFloatLE()
		c.Skip(4)
		p.HasTarget = true
		p.Rotation = HeadingDegrees(p.pos(), Vec3{
			X: float64(p.TargetX),
			Y: float64(p.TargetY),
			Z: float64(p.TargetZ),
		})
		p.HasRotation = true
	}

	return nil
}

func (p *UserMove) pos() Vec3 {
	return Vec3{X: float64(p.PosX), Y: float64(p.PosY), Z: float64(p.PosZ)}
}

func (p *UserMove) fields(pk *Packet) {
	pk.Set("posX", p.PosX)
	pk.Set("posY", p.PosY)
	pk.Set("posZ", p.PosZ)
	pk.Set("movementType", p.MovementType)
	pk.Set("sessionTime", p.SessionTime)
	if p.HasTarget {
		pk.Set("targetX", p.TargetX)
		pk.Set("targetY", p.TargetY)
		pk.Set("targetZ", p.TargetZ)
	}
	if p.HasRotation {
		pk.Set("rotation", p.Rotation)
	}
}

func (p *UserMove) events(pk *Packet) {
	pk.position(PositionEvent{
		Kind:     EntityUser,
		X:        float64(p.PosX),
		Y:        float64(p.PosY),
		Z:        float64(p.PosZ),
		Rotation: p.Rotation,
	})
}
