package stream

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type clientParent interface {
	DeleteClient(id uuid.UUID)
}

type StreamClient struct {
	ID     uuid.UUID
	Handle chan Update
	info   string
	Parent clientParent

	// updates up to this seq were queued before the client went live
	after uint64

	once    sync.Once
	dropped uint64
}

// Send relays the update to the attached client, dropping it if the client is behind.
func (c *StreamClient) Send(ctx context.Context, u Update) {
	if u.Seq <= c.after {
		return
	}

	select {
	case c.Handle <- u:
	case <-ctx.Done():
	default:
		c.dropped++
		log.Error().Str("client", c.info).Uint64("seq", u.Seq).Uint64("dropped", c.dropped).Msg("failed to send to client")
	}
}

func (c *StreamClient) String() string {
	return c.info
}

func (c *StreamClient) closeHandle() {
	c.once.Do(func() { close(c.Handle) })
}

func (sc *StreamClient) Close() {
	log.Info().Str("client", sc.info).Msg("client disconnecting")

	sc.Parent.DeleteClient(sc.ID)
	sc.closeHandle()
}
