package stream

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/nomoresecretz/flymap/common/flyStruct"
	"github.com/nomoresecretz/flymap/server/common"
)

func recv(t *testing.T, c *StreamClient) (Update, bool) {
	t.Helper()

	select {
	case u, ok := <-c.Handle:
		return u, ok
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for update")
	}

	return Update{}, false
}

func TestStreamOrder(t *testing.T) {
	ctx, cf := context.WithCancel(context.Background())
	defer cf()

	s := New()
	eg, wctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return s.Run(wctx) })

	c, err := s.AttachToStream(ctx, false)
	if err != nil {
		t.Fatalf("AttachToStream() err = %v", err)
	}

	s.OnMonsterPosition(flyStruct.PositionEvent{Kind: flyStruct.EntityMonster, ID: "m1"})
	s.OnPlayerPosition(flyStruct.PositionEvent{Kind: flyStruct.EntityPlayer, IsSpawn: true})
	s.OnUserPosition(flyStruct.PositionEvent{Kind: flyStruct.EntityUser})
	s.OnChatMessage(flyStruct.ChatEvent{Message: "hi"})

	want := []UpdateType{UT_MonsterPosition, UT_InitialPacket, UT_PlayerPosition, UT_UserPosition, UT_ChatMessage}

	var got []UpdateType
	for i := range want {
		u, ok := recv(t, c)
		if !ok {
			t.Fatalf("client closed early")
		}
		if u.Seq != uint64(i+1) {
			t.Errorf("update %d seq = %d", i, u.Seq)
		}
		got = append(got, u.Type)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("func diff(-want,+got):%v", diff)
	}

	s.Close()
	if _, ok := recv(t, c); ok {
		t.Errorf("client still open after stream close")
	}

	if err := eg.Wait(); err != nil {
		t.Errorf("Run() err = %v", err)
	}

	if _, err := s.AttachToStream(ctx, false); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("AttachToStream() after close err = %v", err)
	}
}

func TestStreamReplay(t *testing.T) {
	s := New()
	for i := 0; i < defaultReplaySize+5; i++ {
		s.OnMonsterPosition(flyStruct.PositionEvent{ID: "m"})
	}

	c, err := s.AttachToStream(context.Background(), true)
	if err != nil {
		t.Fatalf("AttachToStream() err = %v", err)
	}

	if got := len(c.Handle); got != defaultReplaySize {
		t.Fatalf("replayed %d updates, want %d", got, defaultReplaySize)
	}

	u := <-c.Handle
	if u.Seq != 6 {
		t.Errorf("first replayed seq = %d, want 6", u.Seq)
	}
}

func TestStreamReplayNoDuplicates(t *testing.T) {
	tests := []struct {
		name   string
		replay bool
		want   []uint64
	}{
		{name: "with replay", replay: true, want: []uint64{1, 2, 3}},
		{name: "live only", want: []uint64{3}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cf := context.WithCancel(context.Background())
			defer cf()

			s := New()
			s.OnChatMessage(flyStruct.ChatEvent{Message: "one"})
			s.OnChatMessage(flyStruct.ChatEvent{Message: "two"})

			c, err := s.AttachToStream(ctx, tc.replay)
			if err != nil {
				t.Fatalf("AttachToStream() err = %v", err)
			}

			eg, wctx := errgroup.WithContext(ctx)
			eg.Go(func() error { return s.Run(wctx) })

			s.OnChatMessage(flyStruct.ChatEvent{Message: "three"})
			s.Close()

			var got []uint64
			for {
				u, ok := recv(t, c)
				if !ok {
					break
				}
				got = append(got, u.Seq)
			}

			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("func diff(-want,+got):%v", diff)
			}
			if err := eg.Wait(); err != nil {
				t.Errorf("Run() err = %v", err)
			}
		})
	}
}

func TestStreamClientDrops(t *testing.T) {
	s := New()
	c, err := s.AttachToStream(context.Background(), false)
	if err != nil {
		t.Fatalf("AttachToStream() err = %v", err)
	}

	capacity := cap(c.Handle)
	for i := 0; i < capacity+3; i++ {
		c.Send(context.Background(), Update{Seq: uint64(i + 1)})
	}

	if c.dropped != 3 {
		t.Errorf("dropped = %d, want 3", c.dropped)
	}
	if capacity < common.ClientBuffer {
		t.Errorf("client buffer = %d, want >= %d", capacity, common.ClientBuffer)
	}

	c.Close()
	if s.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d after close", s.ClientCount())
	}
	c.Close()
}

func TestUpdateProto(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	u := Update{
		Seq:      7,
		Type:     UT_MonsterPosition,
		Origin:   at,
		Position: &flyStruct.PositionEvent{Kind: flyStruct.EntityMonster, ID: "abc", X: 1.5, Y: 2, Z: -3},
	}

	pb, err := u.Proto()
	if err != nil {
		t.Fatalf("Proto() err = %v", err)
	}

	want := map[string]any{
		"seq":        float64(7),
		"type":       "monster-position",
		"observedAt": "2024-03-01T12:00:00Z",
		"kind":       "Monster",
		"id":         "abc",
		"x":          1.5,
		"y":          float64(2),
		"z":          float64(-3),
		"rotation":   float64(0),
		"isSpawn":    false,
	}
	if diff := cmp.Diff(want, pb.AsMap()); diff != "" {
		t.Errorf("func diff(-want,+got):%v", diff)
	}

	ip := Update{Type: UT_InitialPacket, Origin: at, Data: flyStruct.SpawnSignature()}
	pb, err = ip.Proto()
	if err != nil {
		t.Fatalf("Proto() err = %v", err)
	}
	if got := pb.AsMap()["data"]; got != "000000000000000400010000" {
		t.Errorf("data = %v", got)
	}
}

func TestStreamLoggerFollowsGlobal(t *testing.T) {
	s := New()

	var buf bytes.Buffer
	defer func(l zerolog.Logger) { log.Logger = l }(log.Logger)
	log.Logger = zerolog.New(&buf)

	if _, err := s.AttachToStream(context.Background(), false); err != nil {
		t.Fatalf("AttachToStream() err = %v", err)
	}

	if got := buf.String(); !strings.Contains(got, `"component":"stream"`) {
		t.Errorf("log output = %q, want stream component line", got)
	}
}
