package replay

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestRoundTripFile(t *testing.T) {
	for _, name := range []string{"capture.jsonl", "capture.jsonl.zst"} {
		t.Run(name, func(t *testing.T) {
			roundTrip(t, filepath.Join(t.TempDir(), name))
		})
	}
}

func roundTrip(t *testing.T, path string) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	frames := []Frame{
		{At: base, URL: "wss://game.example/ws", Direction: "SEND", Data: []byte{0, 1, 2}},
		{At: base.Add(10 * time.Millisecond), Direction: "RECV", Data: []byte{0xff}},
	}

	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create() err = %v", err)
	}

	for _, f := range frames {
		if err := w.Write(f); err != nil {
			t.Fatalf("Write() err = %v", err)
		}
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close() err = %v", err)
	}

	r, err := Open(path, true)
	if err != nil {
		t.Fatalf("Open() err = %v", err)
	}
	defer r.Close()

	ctx := context.Background()
	start := time.Now()

	var got []Frame
	for {
		f, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			t.Fatalf("Next() err = %v", err)
		}

		got = append(got, f)
	}

	if diff := cmp.Diff(frames, got); diff != "" {
		t.Errorf("func diff(-want,+got):%v", diff)
	}

	if el := time.Since(start); el < 10*time.Millisecond {
		t.Errorf("paced replay took %v, want at least 10ms", el)
	}
}

func TestPacingCapped(t *testing.T) {
	old := maxFakeWait
	maxFakeWait = 5 * time.Millisecond
	defer func() { maxFakeWait = old }()

	var b bytes.Buffer
	w := NewWriter(&b)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	w.Write(Frame{At: base, Direction: "SEND"})
	w.Write(Frame{At: base.Add(time.Hour), Direction: "SEND"})

	r := NewReader(&b, true)
	start := time.Now()

	for i := 0; i < 2; i++ {
		if _, err := r.Next(context.Background()); err != nil {
			t.Fatalf("Next() err = %v", err)
		}
	}

	if el := time.Since(start); el > time.Second {
		t.Errorf("capped replay took %v", el)
	}
}

func TestNextCancelled(t *testing.T) {
	var b bytes.Buffer
	w := NewWriter(&b)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	w.Write(Frame{At: base, Direction: "SEND"})
	w.Write(Frame{At: base.Add(time.Minute), Direction: "SEND"})

	r := NewReader(&b, true)
	ctx, cancel := context.WithCancel(context.Background())

	if _, err := r.Next(ctx); err != nil {
		t.Fatalf("Next() err = %v", err)
	}

	cancel()

	if _, err := r.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Next() err = %v, want context.Canceled", err)
	}
}
