package cypher

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/nomoresecretz/flymap/common/flyPacket"
)

// ErrConfiguration is returned when key samples cannot produce a key.
var ErrConfiguration = errors.New("inconsistent key samples")

// ConfigurationError describes which sample broke key derivation.
type ConfigurationError struct {
	Direction flyPacket.Direction
	Pair      int
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s pair %d: %s", ErrConfiguration, e.Direction, e.Pair, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// Sample is a known ciphertext and the plaintext it encodes.
type Sample struct {
	Cipher []byte
	Plain  []byte
}

// XorKey is the repeating key for one traffic direction. The zero value is the null cypher.
type XorKey struct {
	b []byte
}

// NewKey copies k into a key.
func NewKey(k []byte) XorKey {
	return XorKey{b: bytes.Clone(k)}
}

func (k XorKey) Len() int {
	return len(k.b)
}

// Bytes returns a copy of the key material.
func (k XorKey) Bytes() []byte {
	return bytes.Clone(k.b)
}

func (k XorKey) String() string {
	return hex.EncodeToString(k.b)
}

func (k XorKey) Equal(o XorKey) bool {
	return bytes.Equal(k.b, o.b)
}

// Derive recovers the repeating key from known samples. Each sample yields a keystream
// fragment (cipher ^ plain); fragments are ANDed together and the result is reduced to
// its shortest repeating period.
func Derive(dir flyPacket.Direction, samples []Sample) (XorKey, error) {
	if len(samples) == 0 {
		return XorKey{}, &ConfigurationError{Direction: dir, Pair: -1, Reason: "no samples"}
	}

	var frag []byte

	for i, s := range samples {
		if len(s.Cipher) != len(s.Plain) {
			return XorKey{}, &ConfigurationError{
				Direction: dir,
				Pair:      i,
				Reason:    fmt.Sprintf("cipher length %d != plain length %d", len(s.Cipher), len(s.Plain)),
			}
		}

		if len(s.Cipher) == 0 {
			return XorKey{}, &ConfigurationError{Direction: dir, Pair: i, Reason: "empty sample"}
		}

		if frag == nil {
			frag = make([]byte, len(s.Cipher))
			for j := range frag {
				frag[j] = s.Cipher[j] ^ s.Plain[j]
			}

			continue
		}

		if len(s.Cipher) != len(frag) {
			return XorKey{}, &ConfigurationError{
				Direction: dir,
				Pair:      i,
				Reason:    fmt.Sprintf("sample length %d != first sample length %d", len(s.Cipher), len(frag)),
			}
		}

		for j := range frag {
			frag[j] &= s.Cipher[j] ^ s.Plain[j]
		}
	}

	return XorKey{b: frag[:period(frag)]}, nil
}

// period returns the length of the shortest prefix that regenerates b by repetition.
func period(b []byte) int {
	n := len(b)
	for p := 1; p < n; p++ {
		if n%p != 0 {
			continue
		}

		if bytes.Equal(b[p:], b[:n-p]) {
			return p
		}
	}

	return n
}

// Keystream repeats the key end to end out to n bytes.
func Keystream(k XorKey, n int) []byte {
	ks := make([]byte, n)
	if k.Len() == 0 {
		return ks
	}

	for off := 0; off < n; off += k.Len() {
		copy(ks[off:], k.b)
	}

	return ks
}

// Decrypt XORs payload with the repeated key. It is its own inverse.
func Decrypt(payload []byte, k XorKey) []byte {
	out := make([]byte, len(payload))
	if k.Len() == 0 {
		copy(out, payload)
		return out
	}

	kl := k.Len()
	for i, b := range payload {
		out[i] = b ^ k.b[i%kl]
	}

	return out
}
