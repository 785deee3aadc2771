package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/nomoresecretz/flymap/common/flyPacket"
	"github.com/nomoresecretz/flymap/server/replay"
)

var errBadFrameData = errors.New("unsupported frame data")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 16,
	WriteBufferSize: 1024,
	// The hook runs inside the game page, so its origin is the game's.
	CheckOrigin: func(*http.Request) bool { return true },
}

// hookFrame is one captured message as the browser hook reports it.
type hookFrame struct {
	URL       string    `json:"url"`
	Direction string    `json:"direction"`
	Data      frameData `json:"data"`
}

// frameData accepts a base64 string, a byte array, or a serialized Node Buffer.
type frameData []byte

func (f *frameData) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = nil
		return nil
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}

		d, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("base64 frame data: %w", err)
		}
		*f = d

		return nil
	case '[':
		return f.fromInts(b)
	case '{':
		var nb struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(b, &nb); err != nil {
			return err
		}

		if nb.Type != "Buffer" {
			return fmt.Errorf("%q: %w", nb.Type, errBadFrameData)
		}

		return f.fromInts(nb.Data)
	}

	return errBadFrameData
}

func (f *frameData) fromInts(b []byte) error {
	var v []int
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	out := make([]byte, len(v))
	for i, n := range v {
		if n < 0 || n > 0xff {
			return fmt.Errorf("byte %d out of range: %d: %w", i, n, errBadFrameData)
		}
		out[i] = byte(n)
	}
	*f = out

	return nil
}

// parseBatch turns one hook message into raw frames. A message is either a single
// frame object or an array of them. Frames that cannot be used are skipped.
func parseBatch(msg []byte, at time.Time, log zerolog.Logger) ([]flyPacket.RawFrame, error) {
	var batch []hookFrame

	msg = bytes.TrimSpace(msg)
	if len(msg) > 0 && msg[0] == '{' {
		var one hookFrame
		if err := json.Unmarshal(msg, &one); err != nil {
			return nil, err
		}
		batch = append(batch, one)
	} else if err := json.Unmarshal(msg, &batch); err != nil {
		return nil, err
	}

	out := make([]flyPacket.RawFrame, 0, len(batch))
	for i, h := range batch {
		dir := flyPacket.ParseDirection(h.Direction)
		if dir == flyPacket.DirUnknown {
			log.Warn().Int("index", i).Str("direction", h.Direction).Msg("skipping frame with unknown direction")
			continue
		}

		fr, err := flyPacket.SplitFrame(h.Data)
		if err != nil {
			log.Warn().Err(err).Int("index", i).Str("url", h.URL).Msg("skipping short frame")
			continue
		}

		out = append(out, flyPacket.RawFrame{
			Direction:  dir,
			Header:     fr.Header,
			Payload:    fr.Payload,
			ObservedAt: at,
			URL:        h.URL,
		})
	}

	return out, nil
}

// handleHook upgrades the hook connection and feeds its frames to a new session.
func (s *flymapServer) handleHook(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("hook upgrade failed")
		return
	}

	ses, err := s.sMgr.StartSession(r.Context(), r.RemoteAddr, conn)
	if err != nil {
		s.log.Error().Err(err).Str("remote", r.RemoteAddr).Msg("failed to start session")
		conn.Close()

		return
	}
	defer ses.Finish()

	s.readHook(conn, ses)
}

func (s *flymapServer) readHook(conn *websocket.Conn, ses *session) {
	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ses.log.Warn().Err(err).Msg("hook connection lost")
			}

			return
		}

		if mt != websocket.TextMessage {
			ses.log.Warn().Int("type", mt).Msg("ignoring non text hook message")
			continue
		}

		frames, err := parseBatch(msg, time.Now(), ses.log)
		if err != nil {
			ses.log.Warn().Err(err).Int("len", len(msg)).Msg("bad hook batch")
			continue
		}

		for _, f := range frames {
			s.capture(f)

			if err := ses.Submit(f); err != nil {
				return
			}
		}
	}
}

func (s *flymapServer) capture(f flyPacket.RawFrame) {
	if s.cap == nil {
		return
	}

	err := s.cap.Write(replay.Frame{
		At:        f.ObservedAt,
		URL:       f.URL,
		Direction: f.Direction.HookLabel(),
		Data:      append(append([]byte{}, f.Header...), f.Payload...),
	})
	if err != nil {
		s.log.Error().Err(err).Msg("capture write failed")
	}
}

// runReplay feeds a capture file through its own session, paced as captured.
func (s *flymapServer) runReplay(ctx context.Context, file string) error {
	r, err := replay.Open(file, true)
	if err != nil {
		return err
	}

	ses, err := s.sMgr.StartSession(ctx, "replay:"+file, r)
	if err != nil {
		r.Close()
		return err
	}
	defer ses.Finish()

	var n int

	for {
		rf, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			ses.log.Info().Int("frames", n).Str("file", file).Msg("replay finished")
			return nil
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("replay %s: %w", file, err)
		}

		dir := flyPacket.ParseDirection(rf.Direction)
		fr, err := flyPacket.SplitFrame(rf.Data)
		if dir == flyPacket.DirUnknown || err != nil {
			ses.log.Warn().Err(err).Str("direction", rf.Direction).Msg("skipping replay frame")
			continue
		}

		f := flyPacket.RawFrame{
			Direction:  dir,
			Header:     fr.Header,
			Payload:    fr.Payload,
			ObservedAt: rf.At,
			URL:        rf.URL,
		}

		if f.ObservedAt.IsZero() {
			f.ObservedAt = time.Now()
		}

		if err := ses.Submit(f); err != nil {
			return nil
		}
		n++
	}
}
