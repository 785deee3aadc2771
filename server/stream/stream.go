package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/peer"

	"github.com/nomoresecretz/flymap/common/flyStruct"
	"github.com/nomoresecretz/flymap/server/common"
)

var now = func() time.Time {
	return time.Now()
}

var ErrStreamClosed = errors.New("stream closed")

const (
	updateBufferSize  = 256
	defaultReplaySize = 20 // updates
)

// Stream fans decoded updates out to every attached client. It implements flyStruct.Emitter.
type Stream struct {
	mu         sync.RWMutex
	Clients    map[uuid.UUID]*StreamClient
	Created    time.Time
	LastClient time.Time

	fanMu  sync.Mutex
	seq    uint64
	closed bool
	ch     chan Update
	replay []Update
}

func New() *Stream {
	return &Stream{
		Clients: make(map[uuid.UUID]*StreamClient),
		Created: now(),
		ch:      make(chan Update, updateBufferSize),
	}
}

// Run holds the fanout loop until the stream is closed or the context ends.
func (s *Stream) Run(ctx context.Context) error {
	return s.handleClients(ctx, s.ch)
}

// Close stops accepting updates. Attached clients see their channel close once the
// backlog drains.
func (s *Stream) Close() {
	s.fanMu.Lock()
	defer s.fanMu.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	close(s.ch)
}

// FanOut numbers the update and queues it for the clients. It never blocks.
func (s *Stream) FanOut(u Update) {
	s.fanMu.Lock()
	defer s.fanMu.Unlock()

	if s.closed {
		return
	}

	s.seq++
	u.Seq = s.seq

	s.replay = append(s.replay, u)
	if len(s.replay) > defaultReplaySize {
		s.replay = s.replay[len(s.replay)-defaultReplaySize:]
	}

	select {
	case s.ch <- u:
	default:
		logger().Error().Uint64("seq", u.Seq).Str("type", u.Type.String()).Msg("failed to queue update")
	}
}

func (s *Stream) OnUserPosition(e flyStruct.PositionEvent) {
	s.FanOut(Update{Type: UT_UserPosition, Origin: e.ObservedAt, Position: &e})
}

func (s *Stream) OnMonsterPosition(e flyStruct.PositionEvent) {
	s.FanOut(Update{Type: UT_MonsterPosition, Origin: e.ObservedAt, Position: &e})
}

// OnPlayerPosition relays the player and, on spawn, the initial packet marker ahead of it.
func (s *Stream) OnPlayerPosition(e flyStruct.PositionEvent) {
	if e.IsSpawn {
		s.FanOut(Update{Type: UT_InitialPacket, Origin: e.ObservedAt, Data: flyStruct.SpawnSignature()})
	}

	s.FanOut(Update{Type: UT_PlayerPosition, Origin: e.ObservedAt, Position: &e})
}

func (s *Stream) OnChatMessage(e flyStruct.ChatEvent) {
	s.FanOut(Update{Type: UT_ChatMessage, Origin: e.ObservedAt, Chat: &e})
}

// AttachToStream registers a new client. With replay set, the recent backlog is queued first.
// The backlog snapshot and registration happen under the fanout lock, so the client
// only takes live updates numbered past what it was already given.
func (s *Stream) AttachToStream(ctx context.Context, replay bool) (*StreamClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fanMu.Lock()
	defer s.fanMu.Unlock()

	if s.closed {
		return nil, ErrStreamClosed
	}

	ch := make(chan Update, common.ClientBuffer+defaultReplaySize)
	cinfo, ok := peer.FromContext(ctx)

	var clientTag string
	if ok {
		clientTag = cinfo.Addr.String()
	}

	logger().Info().Str("client", clientTag).Msg("stream adding client")

	id := uuid.New()
	c := &StreamClient{
		Handle: ch,
		info:   clientTag,
		Parent: s,
		ID:     id,
		after:  s.seq,
	}

	if replay {
		for _, u := range s.replay {
			ch <- u
		}
	}

	s.Clients[id] = c
	s.LastClient = now()

	return c, nil
}

func (s *Stream) DeleteClient(id uuid.UUID) {
	s.mu.Lock()
	delete(s.Clients, id)
	s.mu.Unlock()
}

// ClientCount reports the attached clients.
func (s *Stream) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.Clients)
}

// handleClients runs the fanout loop for client sessions.
func (s *Stream) handleClients(ctx context.Context, in <-chan Update) error {
	for {
		select {
		case <-ctx.Done():
			s.Close()
			s.handleClientClose()

			return nil
		case u, ok := <-in:
			if !ok {
				s.handleClientClose()

				return nil
			}

			s.handleClientSend(ctx, u)
		}
	}
}

func (s *Stream) handleClientSend(ctx context.Context, u Update) {
	s.mu.RLock()
	for _, c := range s.Clients {
		c.Send(ctx, u)
	}
	s.mu.RUnlock()
}

func (s *Stream) handleClientClose() {
	s.mu.RLock()
	for _, sc := range s.Clients {
		sc.closeHandle()
	}
	s.mu.RUnlock()
}

// logger is resolved per call so it follows later changes to the global logger.
func logger() *zerolog.Logger {
	l := log.With().Str("component", "stream").Logger()
	return &l
}
