package flyStruct

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCursorReads(t *testing.T) {
	c := NewCursor([]byte{
		0x00, 0x00, 0x20, 0x41, // 10.0 LE
		0x01, 0x02, 0x03, 0x04,
		0x05, 0x06,
		0x07, 0x00, 0x00, 0x00,
	})

	if got := c.ReadFloatLE(); got != 10.0 {
		t.Errorf("ReadFloatLE() = %v, want 10", got)
	}
	if got := c.ReadUint32BE(); got != 0x01020304 {
		t.Errorf("ReadUint32BE() = %#x", got)
	}
	if got := c.ReadUint16BE(); got != 0x0506 {
		t.Errorf("ReadUint16BE() = %#x", got)
	}
	if got := c.ReadUint32LE(); got != 7 {
		t.Errorf("ReadUint32LE() = %d", got)
	}
	if got := c.Remaining(); got != 0 {
		t.Errorf("Remaining() = %d, want 0", got)
	}
	if len(c.Anomalies()) != 0 {
		t.Errorf("unexpected anomalies: %v", c.Anomalies())
	}
}

func TestCursorTruncation(t *testing.T) {
	tests := []struct {
		name    string
		buf     []byte
		read    func(c *Cursor) any
		want    any
		wantPos int
	}{
		{
			name:    "float with 3 bytes left",
			buf:     []byte{1, 2, 3},
			read:    func(c *Cursor) any { return c.ReadFloatLE() },
			want:    float32(0),
			wantPos: 4,
		},
		{
			name:    "uint32 on empty",
			buf:     nil,
			read:    func(c *Cursor) any { return c.ReadUint32BE() },
			want:    uint32(0),
			wantPos: 4,
		},
		{
			name:    "uint16 with 1 byte left",
			buf:     []byte{0xff},
			read:    func(c *Cursor) any { return c.ReadUint16BE() },
			want:    uint16(0),
			wantPos: 2,
		},
		{
			name:    "bytes zero filled",
			buf:     []byte{9, 9},
			read:    func(c *Cursor) any { return c.ReadBytes(5) },
			want:    []byte{0, 0, 0, 0, 0},
			wantPos: 5,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCursor(tc.buf)
			got := tc.read(c)

			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("func diff(-want,+got):%v", diff)
			}
			if c.Pos() != tc.wantPos {
				t.Errorf("Pos() = %d, want %d", c.Pos(), tc.wantPos)
			}
			if len(c.Anomalies()) != 1 || c.Anomalies()[0].Kind != AnomalyTruncatedRead {
				t.Errorf("Anomalies() = %v, want one TruncatedRead", c.Anomalies())
			}
			if c.Remaining() != 0 {
				t.Errorf("Remaining() = %d, want 0", c.Remaining())
			}
		})
	}
}

func TestCursorMonotonic(t *testing.T) {
	c := NewCursor(make([]byte, 10))
	sizes := []int{3, 0, 4, 2, 6, 1}

	last := c.Pos()
	for _, n := range sizes {
		c.ReadBytes(n)
		if c.Pos()-last != n {
			t.Errorf("read of %d advanced by %d", n, c.Pos()-last)
		}
		last = c.Pos()
	}

	if got := len(c.Anomalies()); got != 2 {
		t.Errorf("anomalies = %d, want 2", got)
	}
}

func TestCursorPeekSeekDrain(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3, 4, 5})

	if diff := cmp.Diff([]byte{1, 2}, c.Peek(2)); diff != "" {
		t.Errorf("Peek diff(-want,+got):%v", diff)
	}
	if c.Pos() != 0 {
		t.Errorf("Peek advanced to %d", c.Pos())
	}
	if c.Peek(6) != nil {
		t.Errorf("Peek past end returned data")
	}

	c.Seek(3)
	if diff := cmp.Diff([]byte{4, 5}, c.Drain()); diff != "" {
		t.Errorf("Drain diff(-want,+got):%v", diff)
	}
	if c.Drain() != nil {
		t.Errorf("second Drain returned data")
	}

	c.Seek(100)
	if c.Pos() != 5 {
		t.Errorf("Seek clamp = %d, want 5", c.Pos())
	}
	c.Seek(-1)
	if c.Pos() != 0 {
		t.Errorf("Seek clamp = %d, want 0", c.Pos())
	}
}

func TestCursorNegativeRead(t *testing.T) {
	c := NewCursor([]byte{1})
	if got := c.ReadBytes(-1); got != nil {
		t.Errorf("ReadBytes(-1) = %v", got)
	}
	if c.Pos() != 0 {
		t.Errorf("Pos() = %d, want 0", c.Pos())
	}
	if len(c.Anomalies()) != 1 {
		t.Errorf("Anomalies() = %v", c.Anomalies())
	}
}
