package server

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nomoresecretz/flymap/common/flyStruct"
)

const defaultDiagRing = 100 // entries

// DiagEntry is one recorded decode anomaly.
type DiagEntry struct {
	At        time.Time `json:"at"`
	Direction string    `json:"direction"`
	Tag       string    `json:"tag"`
	Name      string    `json:"name,omitempty"`
	Kind      string    `json:"kind"`
	Offset    int       `json:"offset"`
	Want      int       `json:"want"`
	Have      int       `json:"have"`
	Dump      string    `json:"dump,omitempty"`
}

// diagRing logs diagnostics and keeps the most recent ones for review.
type diagRing struct {
	mu      sync.RWMutex
	max     int
	total   uint64
	entries []DiagEntry
	log     zerolog.Logger
}

func newDiagRing(max int) *diagRing {
	return &diagRing{
		max: max,
		log: ComponentLogger("diagnostics"),
	}
}

func (r *diagRing) Record(p *flyStruct.Packet, d flyStruct.Diagnostic) {
	e := DiagEntry{
		At:        p.ObservedAt,
		Direction: p.Direction.String(),
		Tag:       d.Tag.String(),
		Name:      p.Name,
		Kind:      d.Kind.String(),
		Offset:    d.Offset,
		Want:      d.Want,
		Have:      d.Have,
		Dump:      d.Dump,
	}

	ev := r.log.Warn()
	if d.Kind == flyStruct.AnomalyUnrecognizedTag {
		ev = r.log.Debug().Str("dump", "\n"+d.Dump)
	}
	ev.Str("tag", e.Tag).
		Str("name", e.Name).
		Str("kind", e.Kind).
		Int("offset", e.Offset).
		Int("want", e.Want).
		Int("have", e.Have).
		Msg("decode anomaly")

	r.mu.Lock()
	r.total++
	r.entries = append(r.entries, e)
	if len(r.entries) > r.max {
		r.entries = r.entries[len(r.entries)-r.max:]
	}
	r.mu.Unlock()
}

// Recent returns the retained diagnostics, oldest first.
func (r *diagRing) Recent() []DiagEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]DiagEntry(nil), r.entries...)
}

func (r *diagRing) Total() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.total
}
