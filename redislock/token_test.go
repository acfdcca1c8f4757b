package redislock_test

import (
	"encoding/binary"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/require"

	"github.com/joomcode/sentinelpool/rediserror"
	. "github.com/joomcode/sentinelpool/redislock"
)

func TestTokenRoundTrip(t *testing.T) {
	tokens := []Token{
		{},
		{OwnerHigh: math.MaxUint64, OwnerLow: math.MaxUint64, Expiry: math.MaxInt64},
		{OwnerHigh: 1, OwnerLow: 2, Expiry: math.MinInt64},
		{OwnerHigh: 0x0102030405060708, OwnerLow: 0x090a0b0c0d0e0f10, Expiry: -1},
	}
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		tokens = append(tokens, Token{OwnerHigh: rnd.Uint64(), OwnerLow: rnd.Uint64(), Expiry: int64(rnd.Uint64())})
	}
	for _, tok := range tokens {
		b := tok.Encode()
		require.Len(t, b, TokenSize)
		back, err := ParseToken(b)
		require.NoError(t, err)
		require.Equal(t, tok, back)
	}
}

func TestTokenLayout(t *testing.T) {
	tok := Token{OwnerHigh: 0x0102030405060708, OwnerLow: 0x090a0b0c0d0e0f10, Expiry: 1_700_000_000_123}
	b := tok.Encode()
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, b[0:8])
	require.Equal(t, []byte{9, 10, 11, 12, 13, 14, 15, 16}, b[8:16])
	require.Equal(t, uint64(1_700_000_000_123), binary.BigEndian.Uint64(b[16:24]))
}

func TestNewToken(t *testing.T) {
	expiry := time.UnixMilli(1_700_000_000_123)
	a := NewToken(expiry)
	b := NewToken(expiry)
	require.NotEqual(t, a.Owner(), b.Owner())
	require.Equal(t, expiry, a.ExpiresAt())

	back, err := ParseToken(a.Encode())
	require.NoError(t, err)
	require.Equal(t, a.Owner(), back.Owner())
	id := a.Owner()
	require.Equal(t, a.OwnerHigh, binary.BigEndian.Uint64(id[:8]))
	require.Equal(t, a.OwnerLow, binary.BigEndian.Uint64(id[8:]))
}

func TestNewTokenOwnerIsFullyRandom(t *testing.T) {
	versions := map[byte]bool{}
	variants := map[byte]bool{}
	for i := 0; i < 64; i++ {
		id := NewToken(time.Now()).Owner()
		versions[id[6]>>4] = true
		variants[id[8]>>6] = true
	}
	require.Greater(t, len(versions), 1)
	require.Greater(t, len(variants), 1)
}

func TestTokenExpired(t *testing.T) {
	now := time.UnixMilli(1000)
	tok := Token{Expiry: 1000}
	require.False(t, tok.Expired(now))
	require.False(t, tok.Expired(now.Add(-time.Millisecond)))
	require.True(t, tok.Expired(now.Add(time.Millisecond)))
}

func TestParseTokenMalformed(t *testing.T) {
	for _, b := range [][]byte{nil, {1, 2, 3}, make([]byte, TokenSize-1), make([]byte, TokenSize+1)} {
		_, err := ParseToken(b)
		require.True(t, errorx.IsOfType(err, rediserror.ErrMalformedToken))
		require.True(t, errorx.IsOfType(err, rediserror.ErrProtocol))
	}
}
