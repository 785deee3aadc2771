package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nomoresecretz/flymap/common/flyPacket"
	"github.com/nomoresecretz/flymap/common/flyStruct"
	"github.com/nomoresecretz/flymap/common/relay"
	"github.com/nomoresecretz/flymap/server/common"
	"github.com/nomoresecretz/flymap/server/cypher"
	"github.com/nomoresecretz/flymap/server/game_client"
	"github.com/nomoresecretz/flymap/server/replay"
	"github.com/nomoresecretz/flymap/server/stream"
)

const (
	defaultPruneAge   = 5 * time.Minute
	pruneInterval     = 30 * time.Second
	httpShutdownGrace = 5 * time.Second
)

// Config holds everything the server needs from the command line.
type Config struct {
	Tags       common.TagDecoder
	Keys       cypher.Keys
	HTTPAddr   string // hook websocket and state API, empty disables
	MQTTBroker string // empty disables telemetry
	RecordPath string // empty disables recording
	Capture    string // append raw hook frames here
	Replay     string // feed a capture file through the pipeline
	PruneAge   time.Duration
}

type flymapServer struct {
	cfg     Config
	started time.Time

	crypt  *crypter
	dec    *flyStruct.Decoder
	watch  *game_client.GameClientWatch
	stream *stream.Stream
	diag   *diagRing
	mqtt   *telemetry
	rec    *recorder
	cap    *replay.Writer
	stats  *stats

	sMgr *sessionMgr
	log  zerolog.Logger
	relay.UnimplementedRelayServer
}

func New(ctx context.Context, cfg Config) (*flymapServer, error) {
	if cfg.PruneAge == 0 {
		cfg.PruneAge = defaultPruneAge
	}

	watch, err := game_client.NewClientWatch()
	if err != nil {
		return nil, err
	}

	s := &flymapServer{
		cfg:     cfg,
		started: time.Now(),
		crypt:   NewCrypter(cfg.Keys),
		dec:     flyStruct.NewDecoder(cfg.Tags),
		watch:   watch,
		stream:  stream.New(),
		diag:    newDiagRing(defaultDiagRing),
		stats:   &stats{},
		log:     ComponentLogger("server"),
	}

	emit := flyStruct.Emitters{s.watch, s.stream}
	sinks := flyStruct.DiagnosticSinks{s.diag}

	if cfg.MQTTBroker != "" {
		s.mqtt = NewTelemetry(cfg.MQTTBroker)
		emit = append(emit, s.mqtt)
	}

	if cfg.RecordPath != "" {
		rec, err := openRecorder(cfg.RecordPath)
		if err != nil {
			return nil, err
		}
		s.rec = rec
		emit = append(emit, rec)
		sinks = append(sinks, rec)
	}

	if cfg.Capture != "" {
		w, err := replay.Create(cfg.Capture)
		if err != nil {
			return nil, err
		}
		s.cap = w
	}

	for _, d := range []flyPacket.Direction{flyPacket.DirClientToServer, flyPacket.DirServerToClient} {
		s.log.Info().
			Str("direction", d.String()).
			Bool("encrypted", s.crypt.IsCrypted(d)).
			Int("keyLen", cfg.Keys.Key(d).Len()).
			Msg("keystream")
	}

	s.sMgr = NewSessionManager(&pipeline{
		crypt:   s.crypt,
		decoder: s.dec,
		emit:    emit,
		sink:    sinks,
		stats:   s.stats,
	})

	return s, nil
}

// Run runs the server components until the context ends or one of them fails.
func (s *flymapServer) Run(ctx context.Context) error {
	g, wctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.sMgr.Run(wctx)
	})

	g.Go(func() error {
		return s.stream.Run(wctx)
	})

	g.Go(func() error {
		s.pruneLoop(wctx)
		return nil
	})

	if s.mqtt != nil {
		g.Go(func() error {
			if err := s.mqtt.Start(wctx); err != nil {
				s.log.Error().Err(err).Msg("telemetry disabled")
			}

			return nil
		})
	}

	if s.cfg.HTTPAddr != "" {
		g.Go(func() error {
			return s.serveHTTP(wctx)
		})
	}

	if s.cfg.Replay != "" {
		g.Go(func() error {
			return s.runReplay(wctx, s.cfg.Replay)
		})
	}

	err := g.Wait()

	if s.cap != nil {
		if cerr := s.cap.Close(); cerr != nil {
			s.log.Warn().Err(cerr).Msg("closing capture")
		}
	}

	if s.rec != nil {
		if cerr := s.rec.Close(); cerr != nil {
			s.log.Warn().Err(cerr).Msg("closing recording")
		}
	}

	return err
}

func (s *flymapServer) pruneLoop(ctx context.Context) {
	t := time.NewTicker(pruneInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.watch.Prune(s.cfg.PruneAge)
		}
	}
}

func (s *flymapServer) serveHTTP(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), httpShutdownGrace)
		defer cancel()
		srv.Shutdown(sctx)
	}()

	s.log.Info().Str("addr", s.cfg.HTTPAddr).Msg("hook and API listening")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Follow streams every decoded update, starting with the recent backlog.
func (s *flymapServer) Follow(_ *emptypb.Empty, srv relay.Relay_FollowServer) error {
	ctx := srv.Context()

	c, err := s.stream.AttachToStream(ctx, true)
	if err != nil {
		return status.Error(codes.Unavailable, err.Error())
	}

	defer c.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-c.Handle:
			if !ok {
				return nil
			}

			m, err := u.Proto()
			if err != nil {
				s.log.Warn().Err(err).Uint64("seq", u.Seq).Msg("unencodable update")
				continue
			}

			if err := srv.Send(m); err != nil {
				return err
			}
		}
	}
}

// Snapshot returns the current entity state.
func (s *flymapServer) Snapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snap, err := s.watch.Snapshot()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	var m map[string]interface{}
	if err := viaJSON(snap, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return structpb.NewStruct(m)
}

// Diagnostics returns the retained decode diagnostics, oldest first.
func (s *flymapServer) Diagnostics(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	l := []interface{}{}
	if err := viaJSON(s.diag.Recent(), &l); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return structpb.NewList(l)
}

// viaJSON converts v into the generic shapes structpb accepts.
func viaJSON(v, out interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, out)
}

// GracefulStop cleanly shuts down the server closing out all operations as possible.
func (s *flymapServer) GracefulStop() {
	s.log.Info().Msg("server shutdown requested")
	s.sMgr.GracefulStop()
	s.stream.Close()
}
