package usecase

import (
	"encoding/binary"
	"strconv"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
)

const maxCandidateIDAttempts = 16

type timeCandidateIDGenerator struct {
	clock Clock
	seed  uint64
}

// NewCandidateIDGenerator returns a generator producing numeric ids close to
// the current unix millisecond, so they fit the contract's uint candidate ids.
func NewCandidateIDGenerator(clock Clock) CandidateIDGenerator {
	seed := uuid.New()
	return &timeCandidateIDGenerator{
		clock: clock,
		seed:  binary.BigEndian.Uint64(seed[:8]),
	}
}

func (g *timeCandidateIDGenerator) Generate(attempt int) string {
	now := g.clock.Now().UnixMilli()

	var buf [24]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(now))
	binary.BigEndian.PutUint64(buf[8:16], uint64(attempt))
	binary.BigEndian.PutUint64(buf[16:24], g.seed)
	jitter := int64(xxh3.Hash(buf[:]) % 1000)

	return strconv.FormatInt(now-jitter, 10)
}
