package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nomoresecretz/flymap/common/flyPacket"
	"github.com/nomoresecretz/flymap/common/flyStruct"
	"github.com/nomoresecretz/flymap/server/common"
)

type sessionHandle interface {
	Close() error
}

// pipeline is the shared decode path every session feeds.
type pipeline struct {
	crypt   *crypter
	decoder *flyStruct.Decoder
	emit    flyStruct.Emitter
	sink    flyStruct.DiagnosticSink
	stats   *stats
}

type stats struct {
	frames  atomic.Uint64
	packets atomic.Uint64
	events  atomic.Uint64
	dropped atomic.Uint64
}

type session struct {
	id      uuid.UUID
	source  string
	handle  sessionHandle
	started time.Time
	seq     *sequencer

	in     chan flyPacket.RawFrame
	done   chan struct{}
	finish sync.Once

	frames atomic.Uint64
	log    zerolog.Logger
}

func NewSession(id uuid.UUID, src string, h sessionHandle) *session {
	return &session{
		id:      id,
		source:  src,
		handle:  h,
		started: time.Now(),
		seq:     newSequencer(),
		in:      make(chan flyPacket.RawFrame, common.FrameBuffer),
		done:    make(chan struct{}),
		log:     ComponentLogger("session").With().Str("session", id.String()).Logger(),
	}
}

// Run does the actual session work, decoding frames in arrival order until the input is
// finished or the context ends.
func (s *session) Run(ctx context.Context, p *pipeline) error {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-s.in:
			if !ok {
				return nil
			}

			s.processFrame(p, f)
		}
	}
}

// Submit queues a frame. Only the session owner may call it, and never after Finish.
func (s *session) Submit(f flyPacket.RawFrame) error {
	select {
	case s.in <- f:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// Finish marks the end of input; queued frames are still processed.
func (s *session) Finish() {
	s.finish.Do(func() { close(s.in) })
}

// Close closes the underlying source, causing the owner to finish the session. Non Blocking.
func (s *session) Close() {
	if s.handle == nil {
		return
	}

	if err := s.handle.Close(); err != nil {
		s.log.Debug().Err(err).Msg("closing session source")
	}
}

func (s *session) processFrame(p *pipeline, f flyPacket.RawFrame) {
	f.Seq, f.ObservedAt = s.seq.Next(f.Direction, f.ObservedAt)
	s.frames.Add(1)
	p.stats.frames.Add(1)

	if e := s.log.Debug(); e.Enabled() {
		fl := &flyPacket.FlyFrame{Header: f.Header, Payload: f.Payload}
		e.Str("direction", f.Direction.String()).
			Uint64("seq", f.Seq).
			Str("url", f.URL).
			Str("frame", fl.Dumper()).
			Msg("frame")
	}

	plain, err := p.crypt.Decrypt(f.Direction, f.Payload)
	if err != nil {
		p.stats.dropped.Add(1)
		s.log.Warn().Err(err).Uint64("seq", f.Seq).Msg("dropping frame")

		return
	}

	pkt := p.decoder.Decode(plain, f.Direction, f.ObservedAt)
	p.stats.packets.Add(1)
	p.stats.events.Add(uint64(pkt.Events()))

	if e := s.log.Debug(); e.Enabled() && pkt.Type > flyStruct.PT_Known {
		e.Str("tag", pkt.Tag.String()).
			Str("name", pkt.Name).
			Int("len", pkt.Len).
			Str("fields", spew.Sdump(pkt.Fields)).
			Msg("packet")
	}

	flyStruct.Publish(pkt, p.emit, p.sink)
}
