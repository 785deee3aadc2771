package flyStruct

// chunk header: unknown(2) length(2) skip(6)
const lenChunkHeader = 10

// WelcomeChunk is one opaque chunk of the welcome packet.
type WelcomeChunk struct {
	Offset  int
	Unknown uint16
	Length  uint16
	Data    []byte
}

// Welcome is not understood yet; it is only split into chunks for inspection.
type Welcome struct {
	Chunks []WelcomeChunk
}

func (p *Welcome) FlyType() PacketType { return PT_Welcome }

// Unmarshal walks chunk headers while a full header remains. A chunk that claims
// more bytes than are left is cut short and reported, as is a trailing partial header.
func (p *Welcome) Unmarshal(c *Cursor) error {
	for c.Remaining() >= lenChunkHeader {
		ch := WelcomeChunk{Offset: c.Pos()}
		ch.Unknown = c.ReadUint16BE()
		ch.Length = c.ReadUint16BE()
		c.Skip(6)

		if int(ch.Length) > c.Remaining() {
			have := c.Remaining()
			ch.Data = c.Drain()
			p.Chunks = append(p.Chunks, ch)

			return &Diagnostic{
				Kind:   AnomalyChunkOverrun,
				Offset: ch.Offset,
				Want:   int(ch.Length),
				Have:   have,
			}
		}

		ch.Data = c.ReadBytes(int(ch.Length))
		p.Chunks = append(p.Chunks, ch)
	}

	if rem := c.Remaining(); rem > 0 {
		return &Diagnostic{
			Kind:   AnomalyChunkOverrun,
			Offset: c.Pos(),
			Want:   lenChunkHeader,
			Have:   rem,
		}
	}

	return nil
}

func (p *Welcome) fields(pk *Packet) {
	pk.Set("chunks", len(p.Chunks))
}
