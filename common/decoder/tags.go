package decoder

import (
	"bufio"
	_ "embed"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

//go:embed tags.txt
var defaultTags string

// Tag is the 4 byte packet type marker at the start of a decrypted buffer.
type Tag [4]byte

func (t Tag) String() string {
	return hex.EncodeToString(t[:])
}

// TagFromBytes copies the first 4 bytes of b, zero padding short input.
func TagFromBytes(b []byte) Tag {
	var t Tag
	copy(t[:], b)
	return t
}

type decoder struct {
	mu sync.RWMutex
	om map[Tag]string
	nm map[string]Tag
}

// GetOp returns the registered name for a tag, empty if unknown.
func (d *decoder) GetOp(t Tag) string {
	d.mu.RLock()
	s := d.om[t]
	d.mu.RUnlock()
	return s
}

// GetOpByName returns the tag registered for a name.
func (d *decoder) GetOpByName(name string) (Tag, bool) {
	d.mu.RLock()
	t, ok := d.nm[name]
	d.mu.RUnlock()
	return t, ok
}

// Tags returns a copy of the name to tag table.
func (d *decoder) Tags() map[string]Tag {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]Tag, len(d.nm))
	for k, v := range d.nm {
		out[k] = v
	}
	return out
}

// NewDecoder returns a tag to name decoder.
func NewDecoder() *decoder {
	return &decoder{
		om: make(map[Tag]string),
		nm: make(map[string]Tag),
	}
}

// NewDefaultDecoder returns a decoder loaded with the built in tag table.
func NewDefaultDecoder() *decoder {
	d := NewDecoder()
	if err := d.Load(strings.NewReader(defaultTags)); err != nil {
		panic(fmt.Sprintf("bad embedded tag table: %s", err))
	}
	return d
}

// Add registers a tag name, replacing any previous binding of either side.
func (d *decoder) Add(name string, t Tag) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.add(name, t)
}

func (d *decoder) add(name string, t Tag) {
	if old, ok := d.nm[name]; ok {
		delete(d.om, old)
	}
	d.om[t] = name
	d.nm[name] = t
}

// LoadMap takes a map file containing Name=0x00000000 representations of current tag mappings for processing.
func (d *decoder) LoadMap(file string) error {
	r, err := os.OpenFile(file, os.O_RDONLY, 0o755)
	if err != nil {
		return err
	}
	defer r.Close()

	return d.Load(r)
}

var tagLine = regexp.MustCompile(`^([a-zA-Z_0-9]+)=([a-fA-F0-9x]+)`)

// Load reads Name=0x00000000 lines; other lines are ignored.
func (d *decoder) Load(r io.Reader) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := bufio.NewScanner(r)
	for s.Scan() {
		sl := tagLine.FindStringSubmatch(strings.TrimSpace(s.Text()))
		if len(sl) == 0 {
			continue
		}
		t, err := hextotag(sl[2])
		if err != nil {
			return fmt.Errorf("tag %s: %w", sl[1], err)
		}
		d.add(sl[1], t)
	}
	return s.Err()
}

// hextotag reads the tag as written on the wire, first byte first.
func hextotag(s string) (Tag, error) {
	clean := strings.Replace(s, "0x", "", -1)
	v, err := strconv.ParseUint(clean, 16, 32)
	if err != nil {
		return Tag{}, err
	}
	var t Tag
	binary.BigEndian.PutUint32(t[:], uint32(v))
	return t, nil
}
