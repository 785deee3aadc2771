package server

import (
	"sync"
	"time"

	"github.com/nomoresecretz/flymap/common/flyPacket"
)

// sequencer numbers frames per direction and keeps their timestamps from going backwards.
type sequencer struct {
	mu   sync.Mutex
	seq  map[flyPacket.Direction]uint64
	last map[flyPacket.Direction]time.Time
}

func newSequencer() *sequencer {
	return &sequencer{
		seq:  make(map[flyPacket.Direction]uint64),
		last: make(map[flyPacket.Direction]time.Time),
	}
}

// Next returns the frame's sequence number and its clamped observation time.
func (s *sequencer) Next(dir flyPacket.Direction, at time.Time) (uint64, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq[dir]++

	if last := s.last[dir]; at.Before(last) {
		at = last
	}
	s.last[dir] = at

	return s.seq[dir], at
}
