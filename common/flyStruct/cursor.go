package flyStruct

import (
	"encoding/binary"
	"math"
)

// Cursor is a bounds checked sequential reader over one decrypted buffer.
// Short reads never fail: they yield zeroes, still advance, and are recorded.
type Cursor struct {
	b         []byte
	pos       int
	anomalies []Diagnostic
}

func NewCursor(b []byte) *Cursor {
	return &Cursor{b: b}
}

func (c *Cursor) Pos() int { return c.pos }
func (c *Cursor) Len() int { return len(c.b) }

// Remaining is the number of unread bytes, never negative.
func (c *Cursor) Remaining() int {
	return max(0, len(c.b)-c.pos)
}

// Bytes returns the whole underlying buffer.
func (c *Cursor) Bytes() []byte { return c.b }

// Anomalies returns the truncated reads seen so far.
func (c *Cursor) Anomalies() []Diagnostic { return c.anomalies }

// Seek moves the cursor for an explicit re-scan of the same buffer.
func (c *Cursor) Seek(pos int) {
	c.pos = min(max(0, pos), len(c.b))
}

// Peek returns the next n bytes without advancing, nil if they are not all there.
func (c *Cursor) Peek(n int) []byte {
	if n < 0 || n > c.Remaining() {
		return nil
	}
	return c.b[c.pos : c.pos+n : c.pos+n]
}

// ReadBytes returns the next n bytes. Past the end it returns n zero bytes.
func (c *Cursor) ReadBytes(n int) []byte {
	if n < 0 {
		c.truncated(n)
		return nil
	}

	if n > c.Remaining() {
		c.truncated(n)
		c.pos += n
		return make([]byte, n)
	}

	b := c.b[c.pos : c.pos+n : c.pos+n]
	c.pos += n
	return b
}

func (c *Cursor) truncated(n int) {
	c.anomalies = append(c.anomalies, Diagnostic{
		Kind:   AnomalyTruncatedRead,
		Offset: c.pos,
		Want:   n,
		Have:   c.Remaining(),
	})
}

// Skip discards n bytes.
func (c *Cursor) Skip(n int) {
	c.ReadBytes(n)
}

func (c *Cursor) ReadFloatLE() float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(c.ReadBytes(4)))
}

func (c *Cursor) ReadUint32BE() uint32 {
	return binary.BigEndian.Uint32(c.ReadBytes(4))
}

func (c *Cursor) ReadUint32LE() uint32 {
	return binary.LittleEndian.Uint32(c.ReadBytes(4))
}

func (c *Cursor) ReadUint16BE() uint16 {
	return binary.BigEndian.Uint16(c.ReadBytes(2))
}

// Drain reads and returns whatever is left.
func (c *Cursor) Drain() []byte {
	if c.Remaining() == 0 {
		return nil
	}
	return c.ReadBytes(c.Remaining())
}
