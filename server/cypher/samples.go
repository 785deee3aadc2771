package cypher

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/nomoresecretz/flymap/common/flyPacket"
)

type hexSample struct {
	Cipher string `json:"cipher"`
	Plain  string `json:"plain"`
}

// SampleSet holds the known plaintext samples for both directions.
type SampleSet struct {
	Send []Sample
	Recv []Sample
}

type sampleFile struct {
	Send []hexSample `json:"send"`
	Recv []hexSample `json:"recv"`
}

// Keys is the pair of per direction keys. Immutable after DeriveKeys.
type Keys struct {
	Send XorKey
	Recv XorKey
}

// Key returns the key for a traffic direction, the null key if unknown.
func (k Keys) Key(dir flyPacket.Direction) XorKey {
	switch dir {
	case flyPacket.DirClientToServer:
		return k.Send
	case flyPacket.DirServerToClient:
		return k.Recv
	}

	return XorKey{}
}

// LoadSamples reads a json sample file of hex encoded cipher/plain pairs.
func LoadSamples(file string) (SampleSet, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return SampleSet{}, err
	}

	return ParseSamples(data)
}

// ParseSamples decodes the json sample format.
func ParseSamples(data []byte) (SampleSet, error) {
	var sf sampleFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return SampleSet{}, fmt.Errorf("bad sample file: %w", err)
	}

	send, err := decodeSamples(flyPacket.DirClientToServer, sf.Send)
	if err != nil {
		return SampleSet{}, err
	}

	recv, err := decodeSamples(flyPacket.DirServerToClient, sf.Recv)
	if err != nil {
		return SampleSet{}, err
	}

	return SampleSet{Send: send, Recv: recv}, nil
}

func decodeSamples(dir flyPacket.Direction, hs []hexSample) ([]Sample, error) {
	out := make([]Sample, 0, len(hs))

	for i, h := range hs {
		c, err := hex.DecodeString(h.Cipher)
		if err != nil {
			return nil, &ConfigurationError{Direction: dir, Pair: i, Reason: "cipher: " + err.Error()}
		}

		p, err := hex.DecodeString(h.Plain)
		if err != nil {
			return nil, &ConfigurationError{Direction: dir, Pair: i, Reason: "plain: " + err.Error()}
		}

		out = append(out, Sample{Cipher: c, Plain: p})
	}

	return out, nil
}

// Merge appends the samples of o to s.
func (s SampleSet) Merge(o SampleSet) SampleSet {
	return SampleSet{
		Send: append(append([]Sample{}, s.Send...), o.Send...),
		Recv: append(append([]Sample{}, s.Recv...), o.Recv...),
	}
}

// DeriveKeys derives both direction keys. A direction with no samples gets the null key.
func DeriveKeys(set SampleSet) (Keys, error) {
	var (
		k   Keys
		err error
	)

	if len(set.Send) > 0 {
		if k.Send, err = Derive(flyPacket.DirClientToServer, set.Send); err != nil {
			return Keys{}, err
		}
	}

	if len(set.Recv) > 0 {
		if k.Recv, err = Derive(flyPacket.DirServerToClient, set.Recv); err != nil {
			return Keys{}, err
		}
	}

	return k, nil
}
