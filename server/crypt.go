package server

import (
	"errors"
	"fmt"

	"github.com/nomoresecretz/flymap/common/flyPacket"
	"github.com/nomoresecretz/flymap/server/cypher"
)

var ErrNoKey = errors.New("no key for direction")

type crypter struct {
	keys cypher.Keys
}

// NewCrypter returns an object capable of decoding payloads in either direction.
func NewCrypter(k cypher.Keys) *crypter {
	return &crypter{keys: k}
}

// IsCrypted reports whether a non null key is configured for the direction.
func (c *crypter) IsCrypted(dir flyPacket.Direction) bool {
	return c.keys.Key(dir).Len() > 0
}

// Decrypt returns a decrypted copy of the payload.
func (c *crypter) Decrypt(dir flyPacket.Direction, payload []byte) ([]byte, error) {
	if dir != flyPacket.DirClientToServer && dir != flyPacket.DirServerToClient {
		return nil, fmt.Errorf("%s : %w", dir, ErrNoKey)
	}

	return cypher.Decrypt(payload, c.keys.Key(dir)), nil
}
