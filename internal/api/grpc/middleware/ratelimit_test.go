package middleware

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/peer"
)

func peerContext(addr string) context.Context {
	tcp, _ := net.ResolveTCPAddr("tcp", addr)
	return peer.NewContext(context.Background(), &peer.Peer{Addr: tcp})
}

func TestPeerLimiter_Limit(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewPeerLimiter(60, 2, time.Minute)
	l.now = func() time.Time { return now }

	alice := peerContext("10.0.0.1:5000")
	aliceOtherPort := peerContext("10.0.0.1:6000")
	bob := peerContext("10.0.0.2:5000")

	require.NoError(t, l.Limit(alice))
	require.NoError(t, l.Limit(aliceOtherPort))
	require.ErrorIs(t, l.Limit(alice), errRateLimited)

	// other peers have their own bucket
	require.NoError(t, l.Limit(bob))

	// one token per second refills
	now = now.Add(time.Second)
	require.NoError(t, l.Limit(alice))
	require.ErrorIs(t, l.Limit(alice), errRateLimited)
}

func TestPeerLimiter_SweepsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewPeerLimiter(60, 1, time.Minute)
	l.now = func() time.Time { return now }

	require.NoError(t, l.Limit(peerContext("10.0.0.1:1")))
	require.NoError(t, l.Limit(peerContext("10.0.0.2:1")))
	assert.Len(t, l.buckets, 2)

	now = now.Add(2 * time.Minute)
	require.NoError(t, l.Limit(peerContext("10.0.0.3:1")))
	assert.Len(t, l.buckets, 1)
}

func TestPeerLimiter_NoPeer(t *testing.T) {
	l := NewPeerLimiter(60, 1, 0)

	require.NoError(t, l.Limit(context.Background()))
	require.ErrorIs(t, l.Limit(context.Background()), errRateLimited)
	assert.Equal(t, 10*time.Minute, l.idle)
}
