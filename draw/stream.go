// Package draw turns oracle randomness into game outcomes: keno draws,
// bingo ball order, card layouts and winner evaluation. Everything here is
// a pure function of its inputs so any party can recompute a result.
package draw

import (
	"encoding/binary"
	"hash"
	"math"

	"golang.org/x/crypto/sha3"
)

// Stream is a Keccak-256 hash chain. Each value re-hashes the previous
// digest, starting from the hash of the seed.
type Stream struct {
	state  [32]byte
	hasher hash.Hash
}

// NewStream seeds a stream.
func NewStream(seed []byte) *Stream {
	s := &Stream{hasher: sha3.NewLegacyKeccak256()}
	s.hasher.Write(seed)
	copy(s.state[:], s.hasher.Sum(nil))
	return s
}

// Uint64 advances the chain and returns the leading 8 bytes of the digest.
func (s *Stream) Uint64() uint64 {
	s.hasher.Reset()
	s.hasher.Write(s.state[:])
	copy(s.state[:], s.hasher.Sum(nil))
	return binary.BigEndian.Uint64(s.state[:8])
}

// Intn returns a uniform value in [0, n). Values from the biased tail of
// the uint64 range are rejected and redrawn.
func (s *Stream) Intn(n int) int {
	if n <= 0 {
		panic("draw: Intn with non-positive bound")
	}
	bound := uint64(n)
	limit := (math.MaxUint64 / bound) * bound
	for {
		if v := s.Uint64(); v < limit {
			return int(v % bound)
		}
	}
}
