package dedupe_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ltourillon/boamp-scraper/internal/dedupe"
)

func TestCacheRemembersRecordID(t *testing.T) {
	cache := dedupe.NewCache(10, time.Minute)
	require.False(t, cache.Seen("24-123456:acme"))
	cache.Remember("24-123456:acme")
	require.True(t, cache.Seen("24-123456:acme"))
}

func TestCacheTTLExpiry(t *testing.T) {
	cache := dedupe.NewCache(10, 20*time.Millisecond)
	cache.Remember("24-123456:acme")
	time.Sleep(25 * time.Millisecond)
	require.False(t, cache.Seen("24-123456:acme"))
}

func TestCacheCapacityEvictsOldest(t *testing.T) {
	cache := dedupe.NewCache(1, time.Minute)
	cache.Remember("first")
	cache.Remember("second")

	require.False(t, cache.Seen("first"))
	require.True(t, cache.Seen("second"))
}

func TestCacheRememberRefreshesWindow(t *testing.T) {
	cache := dedupe.NewCache(10, 40*time.Millisecond)
	cache.Remember("gamma")
	time.Sleep(25 * time.Millisecond)
	cache.Remember("gamma")
	time.Sleep(25 * time.Millisecond)
	require.True(t, cache.Seen("gamma"))
}
