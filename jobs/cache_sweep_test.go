package jobs

import (
	"context"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Ruokavalitys/rv-update-backend/internal/shared"
)

func newSweepClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestCacheSweepDropsStaleGenerations(t *testing.T) {
	client, _ := newSweepClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "rv:history:gen", "3", 0).Err())
	require.NoError(t, client.Set(ctx, "rv:history:1:purchases:u0:b", "old", 0).Err())
	require.NoError(t, client.Set(ctx, "rv:history:2:deposits:u7", "old", 0).Err())
	require.NoError(t, client.Set(ctx, "rv:history:3:purchases:u0:b", "current", 0).Err())

	handler := NewCacheSweepHandler(client, slog.Default())
	require.NoError(t, handler(ctx, NewCacheSweepTask()))

	require.Equal(t, int64(0), client.Exists(ctx, "rv:history:1:purchases:u0:b").Val())
	require.Equal(t, int64(0), client.Exists(ctx, "rv:history:2:deposits:u7").Val())
	require.Equal(t, int64(1), client.Exists(ctx, "rv:history:3:purchases:u0:b").Val())
	require.Equal(t, "3", client.Get(ctx, "rv:history:gen").Val())
}

func TestCacheSweepNoGenerationIsNoop(t *testing.T) {
	client, _ := newSweepClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "rv:history:1:purchases:u0:b", "old", 0).Err())

	handler := NewCacheSweepHandler(client, slog.Default())
	require.NoError(t, handler(ctx, NewCacheSweepTask()))

	// generation 0 means nothing is stale yet
	require.Equal(t, int64(1), client.Exists(ctx, "rv:history:1:purchases:u0:b").Val())
}

func TestCacheSweepSkipsWhenLockHeld(t *testing.T) {
	client, _ := newSweepClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, shared.JobLockKey("cache-sweep"), "1", 0).Err())
	require.NoError(t, client.Set(ctx, "rv:history:gen", "2", 0).Err())
	require.NoError(t, client.Set(ctx, "rv:history:1:purchases:u0:b", "old", 0).Err())

	handler := NewCacheSweepHandler(client, slog.Default())
	require.NoError(t, handler(ctx, NewCacheSweepTask()))

	require.Equal(t, int64(1), client.Exists(ctx, "rv:history:1:purchases:u0:b").Val())
}

func TestCacheSweepReleasesLock(t *testing.T) {
	client, _ := newSweepClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "rv:history:gen", "1", 0).Err())

	handler := NewCacheSweepHandler(client, slog.Default())
	require.NoError(t, handler(ctx, NewCacheSweepTask()))

	require.Equal(t, int64(0), client.Exists(ctx, shared.JobLockKey("cache-sweep")).Val())
}
