package flyStruct

import "golang.org/x/text/encoding/unicode"

// ChatMessage is a length prefixed chat line. The text always starts at offset 8.
type ChatMessage struct {
	Length  uint32
	Message string
}

func (p *ChatMessage) FlyType() PacketType { return PT_ChatMessage }

func (p *ChatMessage) Unmarshal(c *Cursor) error {
	p.Length = c.ReadUint32LE()

	if int64(p.Length) > int64(c.Remaining()) {
		return &Diagnostic{
			Kind:   AnomalyTruncatedRead,
			Offset: c.Pos(),
			Want:   int(p.Length),
			Have:   c.Remaining(),
		}
	}

	p.Message = decodeText(c.ReadBytes(int(p.Length)))

	return nil
}

// decodeText decodes UTF-8, replacing invalid sequences.
func decodeText(b []byte) string {
	out, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

func (p *ChatMessage) fields(pk *Packet) {
	pk.Set("length", p.Length)
	pk.Set("message", p.Message)
}

func (p *ChatMessage) events(pk *Packet) {
	pk.chat(p.Message)
}
