// Package replay stores captured hook frames as JSON lines and plays them back at the
// pace they were captured. Files ending in .zst are zstd compressed.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const zstdExt = ".zst"

var maxFakeWait = 1 * time.Second

// Frame is one websocket message as the hook saw it, header included.
type Frame struct {
	At        time.Time `json:"at"`
	URL       string    `json:"url,omitempty"`
	Direction string    `json:"direction"`
	Data      []byte    `json:"data"`
}

type Reader struct {
	close func() error
	dec   *json.Decoder
	paced bool
	start time.Time
	diff  time.Duration
}

// Open reads a capture file. Paced readers wait between frames the way they were captured,
// never more than a second at a time.
func Open(f string, paced bool) (*Reader, error) {
	fh, err := os.Open(f)
	if err != nil {
		return nil, fmt.Errorf("failed to open file handle: %w", err)
	}

	if !strings.HasSuffix(f, zstdExt) {
		r := NewReader(bufio.NewReader(fh), paced)
		r.close = fh.Close

		return r, nil
	}

	zr, err := zstd.NewReader(fh)
	if err != nil {
		fh.Close()
		return nil, fmt.Errorf("failed to open zstd stream: %w", err)
	}

	r := NewReader(zr, paced)
	r.close = func() error {
		zr.Close()
		return fh.Close()
	}

	return r, nil
}

func NewReader(r io.Reader, paced bool) *Reader {
	return &Reader{
		dec:   json.NewDecoder(r),
		paced: paced,
	}
}

func (p *Reader) Close() error {
	if p.close == nil {
		return nil
	}

	return p.close()
}

// Next returns the next frame, io.EOF at the end of the capture.
func (p *Reader) Next(ctx context.Context) (Frame, error) {
	var f Frame
	if err := p.dec.Decode(&f); err != nil {
		return Frame{}, err
	}

	if !p.paced || f.At.IsZero() {
		return f, nil
	}

	if p.start.IsZero() {
		p.start = time.Now()
		p.diff = p.start.Sub(f.At)
	}

	delta := time.Until(f.At.Add(p.diff))
	if delta > maxFakeWait {
		delta = maxFakeWait
	}

	if delta <= 0 {
		return f, nil
	}

	t := time.NewTimer(delta)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-t.C:
	}

	return f, nil
}

// Writer appends frames to a capture. Safe for concurrent use.
type Writer struct {
	mu    sync.Mutex
	close func() error
	zw    *zstd.Encoder
	buf   *bufio.Writer
	enc   *json.Encoder
}

// Create appends to the capture file, creating it if needed.
func Create(f string) (*Writer, error) {
	fh, err := os.OpenFile(f, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture: %w", err)
	}

	if !strings.HasSuffix(f, zstdExt) {
		w := NewWriter(fh)
		w.close = fh.Close

		return w, nil
	}

	zw, err := zstd.NewWriter(fh)
	if err != nil {
		fh.Close()
		return nil, fmt.Errorf("failed to open zstd stream: %w", err)
	}

	w := NewWriter(zw)
	w.zw = zw
	w.close = func() error {
		if err := zw.Close(); err != nil {
			fh.Close()
			return err
		}

		return fh.Close()
	}

	return w, nil
}

func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriter(w)

	return &Writer{
		buf: buf,
		enc: json.NewEncoder(buf),
	}
}

// Write stores a frame and flushes it.
func (w *Writer) Write(f Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.enc.Encode(f); err != nil {
		return err
	}

	if err := w.buf.Flush(); err != nil {
		return err
	}

	if w.zw != nil {
		return w.zw.Flush()
	}

	return nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.buf.Flush(); err != nil {
		return err
	}

	if w.close == nil {
		return nil
	}

	return w.close()
}
