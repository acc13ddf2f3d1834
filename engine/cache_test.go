package engine

import (
	"context"
	"testing"

	"github.com/aisgo/ais-modelcode/cache/redis"
	"github.com/aisgo/ais-modelcode/database/sqlite"
	"github.com/aisgo/ais-modelcode/logger"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newCachedEngine(t *testing.T) (*Engine, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	rdb := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db, err := sqlite.NewDB(sqlite.Params{})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	cache := NewRedisStructureCache(redis.NewClientFromRaw(rdb, logger.NewNop()), 0, nil)
	return New(Deps{DB: db, Cache: cache}), server
}

func TestStructureCacheFillsAndInvalidates(t *testing.T) {
	e, server := newCachedEngine(t)
	ctx := context.Background()
	mc := seedModel(t, e, "SLU", true)

	s, err := e.Catalog.ResolveStructure(ctx, "SLU")
	require.NoError(t, err)
	require.Equal(t, ThreeLayer, s.Kind)
	require.True(t, server.Exists("modelcode:structure:SLU"))
	require.Equal(t, DefaultStructureTTL, server.TTL("modelcode:structure:SLU"))

	cached, err := e.Catalog.ResolveStructure(ctx, "SLU")
	require.NoError(t, err)
	require.Equal(t, mc.ID, cached.ModelClassification.ID)
	require.Equal(t, ThreeLayer, cached.Kind)

	flat := false
	_, err = e.Catalog.UpdateModelClassification(ctx, mc.ID, ModelClassificationPatch{HasCodeClassification: &flat})
	require.NoError(t, err)
	require.False(t, server.Exists("modelcode:structure:SLU"))

	s, err = e.Catalog.ResolveStructure(ctx, "SLU")
	require.NoError(t, err)
	require.Equal(t, TwoLayer, s.Kind)
}

func TestStructureCacheDegradesWhenRedisIsDown(t *testing.T) {
	e, server := newCachedEngine(t)
	ctx := context.Background()
	seedModel(t, e, "AC", false)

	server.Close()
	s, err := e.Catalog.ResolveStructure(ctx, "AC")
	require.NoError(t, err)
	require.Equal(t, TwoLayer, s.Kind)
}
