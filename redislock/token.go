package redislock

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/google/uuid"

	"github.com/joomcode/sentinelpool/rediserror"
)

// TokenSize is a length of encoded Token.
const TokenSize = 24

// Token is a value stored under lock key: owner identity and lease expiry.
//
// Encoding is big-endian:
//
//	bytes 0..7   owner high bits
//	bytes 8..15  owner low bits
//	bytes 16..23 expiry, milliseconds since unix epoch
type Token struct {
	OwnerHigh uint64
	OwnerLow  uint64
	Expiry    int64
}

// NewToken creates token with random 128-bit owner and given expiry.
// All 128 bits are random: owner is not a version 4 uuid.
func NewToken(expiry time.Time) Token {
	var id [16]byte
	_, _ = rand.Read(id[:]) // crashes the program instead of returning an error
	return Token{
		OwnerHigh: binary.BigEndian.Uint64(id[:8]),
		OwnerLow:  binary.BigEndian.Uint64(id[8:]),
		Expiry:    expiry.UnixMilli(),
	}
}

// Encode returns 24-byte representation.
func (t Token) Encode() []byte {
	b := make([]byte, TokenSize)
	binary.BigEndian.PutUint64(b[0:8], t.OwnerHigh)
	binary.BigEndian.PutUint64(b[8:16], t.OwnerLow)
	binary.BigEndian.PutUint64(b[16:24], uint64(t.Expiry))
	return b
}

// ParseToken decodes token. Value of wrong length is ErrMalformedToken.
func ParseToken(b []byte) (Token, error) {
	if len(b) != TokenSize {
		return Token{}, rediserror.ErrMalformedToken.New("token must be %d bytes, got %d", TokenSize, len(b))
	}
	return Token{
		OwnerHigh: binary.BigEndian.Uint64(b[0:8]),
		OwnerLow:  binary.BigEndian.Uint64(b[8:16]),
		Expiry:    int64(binary.BigEndian.Uint64(b[16:24])),
	}, nil
}

// ExpiresAt returns lease expiry.
func (t Token) ExpiresAt() time.Time {
	return time.UnixMilli(t.Expiry)
}

// Expired reports whether lease lapsed at now. Lease is valid while now <= expiry.
func (t Token) Expired(now time.Time) bool {
	return now.UnixMilli() > t.Expiry
}

// Owner returns owner identity as uuid.
func (t Token) Owner() uuid.UUID {
	var id uuid.UUID
	binary.BigEndian.PutUint64(id[:8], t.OwnerHigh)
	binary.BigEndian.PutUint64(id[8:], t.OwnerLow)
	return id
}
