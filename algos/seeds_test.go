package algos

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSeedCacheGetAndBump(t *testing.T) {
	c := NewSeedCache()

	require.Equal(t, int64(0), c.Get("did:plc:nobody"))

	require.Equal(t, int64(1), c.Bump("did:plc:alice"))
	require.Equal(t, int64(2), c.Bump("did:plc:alice"))
	require.Equal(t, int64(2), c.Get("did:plc:alice"))

	// Seeds are per requester.
	require.Equal(t, int64(1), c.Bump("did:plc:bob"))
	require.Equal(t, int64(2), c.Get("did:plc:alice"))
}

func TestSeedCacheSweep(t *testing.T) {
	c := NewSeedCache()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	now := base
	c.now = func() time.Time { return now }

	c.Bump("did:plc:stale")

	now = base.Add(11 * time.Hour)
	c.Bump("did:plc:fresh")

	now = base.Add(13 * time.Hour)
	c.Sweep()

	require.Equal(t, int64(0), c.Get("did:plc:stale"))
	require.Equal(t, int64(1), c.Get("did:plc:fresh"))
}

func TestSeedCacheSweepRefreshedByBump(t *testing.T) {
	c := NewSeedCache()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	now := base
	c.now = func() time.Time { return now }

	c.Bump("did:plc:alice")

	// A later bump refreshes the expiry from the new timestamp.
	now = base.Add(10 * time.Hour)
	c.Bump("did:plc:alice")

	now = base.Add(20 * time.Hour)
	c.Sweep()
	require.Equal(t, int64(2), c.Get("did:plc:alice"))
}
