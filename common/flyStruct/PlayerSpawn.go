package flyStruct

// spawnSignature follows the player's spawn coordinates.
var spawnSignature = []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x04, 0x00, 0x01, 0x00, 0x00}

const lenSpawnPosition = 16

// PlayerSpawn is the player's own spawn position, located by signature.
type PlayerSpawn struct {
	Offset           int
	PosX, PosY, PosZ float32
	Heading          float32
}

func (p *PlayerSpawn) FlyType() PacketType { return PT_PlayerSpawn }

func (p *PlayerSpawn) Unmarshal(c *Cursor) error {
	idx := FindPattern(c.Bytes(), spawnSignature)
	if idx < 0 {
		return &Diagnostic{
			Kind: AnomalyPatternNotFound,
			Want: len(spawnSignature),
			Have: c.Len(),
		}
	}

	if idx < lenSpawnPosition {
		return &Diagnostic{
			Kind:   AnomalyInsufficientPrecedingBytes,
			Offset: idx,
			Want:   lenSpawnPosition,
			Have:   idx,
		}
	}

	p.Offset = idx - lenSpawnPosition
	c.Seek(p.Offset)
	p.PosX = c.ReadFloatLE()
	p.PosY = c.ReadFloatLE()
	p.PosZ = c.ReadFloatLE()
	p.Heading = c.ReadFloatLE()
	c.Skip(len(spawnSignature))

	return nil
}

func (p *PlayerSpawn) fields(pk *Packet) {
	pk.Set("spawnOffset", p.Offset)
	pk.Set("posX", p.PosX)
	pk.Set("posY", p.PosY)
	pk.Set("posZ", p.PosZ)
	pk.Set("rotation", p.Heading)
}

func (p *PlayerSpawn) events(pk *Packet) {
	pk.position(PositionEvent{
		Kind:     EntityPlayer,
		X:        float64(p.PosX),
		Y:        float64(p.PosY),
		Z:        float64(p.PosZ),
		Rotation: float64(p.Heading),
		IsSpawn:  true,
	})
}

// SpawnSignature returns a copy of the player spawn marker.
func SpawnSignature() []byte {
	return append([]byte(nil), spawnSignature...)
}
