package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUnknownSession = errors.New("unknown session")
	ErrSessionClosed  = errors.New("session closed")
	errStopped        = errors.New("session manager stopped")
)

type sessionRequest struct {
	replyChan chan<- replyStruct
	src       string
	handle    sessionHandle
}

type replyStruct struct {
	reply *session
	err   error
}

type sessionMgr struct {
	muSessions sync.RWMutex
	ctrlChan   chan *sessionRequest
	stopped    chan struct{}
	sessions   map[uuid.UUID]*session
	pipe       *pipeline
	log        zerolog.Logger
}

func NewSessionManager(p *pipeline) *sessionMgr {
	return &sessionMgr{
		ctrlChan: make(chan *sessionRequest),
		stopped:  make(chan struct{}),
		sessions: make(map[uuid.UUID]*session),
		pipe:     p,
		log:      ComponentLogger("sessions"),
	}
}

func (s *sessionMgr) genSessionID() uuid.UUID {
	return uuid.New()
}

// Run manages goroutine lifetime for the sessions.
func (sm *sessionMgr) Run(ctx context.Context) error {
	defer close(sm.stopped)

	return sm.requestHandler(ctx)
}

// requestHandler runs the handler loop to manage sessions.
func (s *sessionMgr) requestHandler(ctx context.Context) error {
	g, wctx := errgroup.WithContext(ctx)

	var done bool

	for !done {
		select {
		case <-wctx.Done():
			done = true
		case r := <-s.ctrlChan:
			s.handleRequest(wctx, r, g)
		}
	}

	s.GracefulStop()

	return g.Wait()
}

func (sm *sessionMgr) handleRequest(ctx context.Context, r *sessionRequest, g *errgroup.Group) {
	g.Go(func() error {
		return sm.runSession(ctx, r)
	})
}

// runSession registers the session and holds its goroutine.
func (sm *sessionMgr) runSession(ctx context.Context, r *sessionRequest) error {
	sm.muSessions.Lock()
	index := sm.genSessionID()
	s := NewSession(index, r.src, r.handle)
	sm.sessions[index] = s
	sm.muSessions.Unlock()

	defer sm.cleanSession(index)

	r.replyChan <- replyStruct{
		reply: s,
	}
	close(r.replyChan)

	sm.log.Info().Str("session", index.String()).Str("source", r.src).Msg("starting session")

	return s.Run(ctx, sm.pipe)
}

// StartSession asks the manager for a new session fed from src.
func (sm *sessionMgr) StartSession(ctx context.Context, src string, h sessionHandle) (*session, error) {
	rc := make(chan replyStruct, 1)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-sm.stopped:
		return nil, errStopped
	case sm.ctrlChan <- &sessionRequest{
		replyChan: rc,
		src:       src,
		handle:    h,
	}:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-rc:
		return r.reply, r.err
	}
}

// cleanSession removes the session from tracking.
func (s *sessionMgr) cleanSession(i uuid.UUID) {
	s.muSessions.Lock()
	ses := s.sessions[i]
	delete(s.sessions, i)
	s.muSessions.Unlock()

	if ses == nil {
		return
	}

	s.log.Info().
		Str("session", i.String()).
		Uint64("frames", ses.frames.Load()).
		Dur("duration", time.Since(ses.started)).
		Msg("session ended")
}

func (sm *sessionMgr) GracefulStop() {
	sm.muSessions.RLock()
	defer sm.muSessions.RUnlock()

	for _, ses := range sm.sessions {
		ses.Close()
	}
}

func (sm *sessionMgr) SessionById(sId uuid.UUID) (*session, error) {
	sm.muSessions.RLock()
	defer sm.muSessions.RUnlock()

	ses, ok := sm.sessions[sId]
	if !ok {
		return nil, fmt.Errorf("%s: %w", sId.String(), ErrUnknownSession)
	}

	return ses, nil
}

// SessionInfo describes a live session.
type SessionInfo struct {
	ID      string    `json:"id"`
	Source  string    `json:"source"`
	Started time.Time `json:"started"`
	Frames  uint64    `json:"frames"`
}

func (sm *sessionMgr) Sessions() []SessionInfo {
	sm.muSessions.RLock()
	defer sm.muSessions.RUnlock()

	out := make([]SessionInfo, 0, len(sm.sessions))
	for _, ses := range sm.sessions {
		out = append(out, ses.Info())
	}

	return out
}

func (s *session) Info() SessionInfo {
	return SessionInfo{
		ID:      s.id.String(),
		Source:  s.source,
		Started: s.started,
		Frames:  s.frames.Load(),
	}
}
