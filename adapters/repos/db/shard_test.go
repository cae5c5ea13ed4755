//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2025 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package db

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaviate/bulkshard/entities/bulk"
	enterrors "github.com/weaviate/bulkshard/entities/errors"
	bulkuc "github.com/weaviate/bulkshard/usecases/bulk"
)

func newTestShard(t *testing.T, dir string, onMapping MappingListener) *Shard {
	t.Helper()
	logger, _ := test.NewNullLogger()
	metrics, err := NewMetrics(logger, nil)
	require.NoError(t, err)
	s, err := NewShard("books", 0, dir, ShardConfig{TranslogGenerationSize: 1 << 20}, logger, metrics, onMapping)
	require.NoError(t, err)
	return s
}

func indexOp(id, source string) *bulk.IndexOp {
	return bulk.NewIndexOp("books", "book", id, []byte(source))
}

func TestShardIndexAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestShard(t, t.TempDir(), nil)
	defer s.Close()

	res, err := s.Index(ctx, indexOp("1", `{"title":"dune"}`), bulkuc.OriginPrimary)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Version)
	assert.True(t, res.Created)
	assert.True(t, res.Location.IsSet())

	res2, err := s.Index(ctx, indexOp("1", `{"title":"dune messiah"}`), bulkuc.OriginPrimary)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res2.Version)
	assert.False(t, res2.Created)
	assert.True(t, res.Location.Less(res2.Location))

	doc, err := s.Get(ctx, "book", "1")
	require.NoError(t, err)
	assert.True(t, doc.Found)
	assert.Equal(t, int64(2), doc.Version)
	assert.JSONEq(t, `{"title":"dune messiah"}`, string(doc.Source))

	missing, err := s.Get(ctx, "book", "2")
	require.NoError(t, err)
	assert.False(t, missing.Found)
	assert.Equal(t, bulk.NotFound, missing.Version)
}

func TestShardVersionRules(t *testing.T) {
	ctx := context.Background()
	s := newTestShard(t, t.TempDir(), nil)
	defer s.Close()

	_, err := s.Index(ctx, indexOp("1", `{"a":1}`), bulkuc.OriginPrimary)
	require.NoError(t, err)

	t.Run("internal version mismatch", func(t *testing.T) {
		op := indexOp("1", `{"a":2}`)
		op.Version = 7
		_, err := s.Index(ctx, op, bulkuc.OriginPrimary)
		require.Error(t, err)
		assert.True(t, enterrors.IsVersionConflict(err))
	})

	t.Run("create on existing document", func(t *testing.T) {
		op := indexOp("1", `{"a":2}`)
		op.Create = true
		_, err := s.Index(ctx, op, bulkuc.OriginPrimary)
		require.Error(t, err)
		assert.True(t, enterrors.IsDocumentAlreadyExists(err))
	})

	t.Run("external version must grow", func(t *testing.T) {
		op := indexOp("2", `{"a":1}`)
		op.Version, op.VersionType = 10, bulk.VersionExternal
		res, err := s.Index(ctx, op, bulkuc.OriginPrimary)
		require.NoError(t, err)
		assert.Equal(t, int64(10), res.Version)

		op.Version = 10
		_, err = s.Index(ctx, op, bulkuc.OriginPrimary)
		assert.True(t, enterrors.IsVersionConflict(err))
	})
}

func TestShardDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestShard(t, t.TempDir(), nil)
	defer s.Close()

	_, err := s.Index(ctx, indexOp("1", `{"a":1}`), bulkuc.OriginPrimary)
	require.NoError(t, err)
	require.NoError(t, s.Refresh(ctx))
	assert.Equal(t, int64(1), s.Count())

	res, err := s.Delete(ctx, bulk.NewDeleteOp("books", "book", "1"), bulkuc.OriginPrimary)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, int64(2), res.Version)
	assert.Equal(t, int64(1), s.Count(), "count changes on refresh only")
	require.NoError(t, s.Refresh(ctx))
	assert.Equal(t, int64(0), s.Count())

	again, err := s.Delete(ctx, bulk.NewDeleteOp("books", "book", "1"), bulkuc.OriginPrimary)
	require.NoError(t, err)
	assert.False(t, again.Found)
	assert.Equal(t, int64(3), again.Version, "tombstones keep the version counting")

	op := indexOp("1", `{"a":1}`)
	op.Create = true
	created, err := s.Index(ctx, op, bulkuc.OriginPrimary)
	require.NoError(t, err, "create over a tombstone")
	assert.True(t, created.Created)
	assert.Equal(t, int64(4), created.Version)
}

func TestShardDynamicMapping(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	var published [][]string
	s := newTestShard(t, t.TempDir(), func(_ int, typ string, fields []string) {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, fields)
	})
	defer s.Close()

	t.Run("replica refuses unknown fields", func(t *testing.T) {
		op := indexOp("1", `{"title":"x","year":1965}`)
		op.Version, op.VersionType = 1, bulk.VersionExternal
		_, err := s.Index(ctx, op, bulkuc.OriginReplica)
		require.Error(t, err)
		var rr *enterrors.RetryOnReplicaError
		require.ErrorAs(t, err, &rr)
		assert.Equal(t, []string{"title", "year"}, rr.Fields)
	})

	t.Run("primary adds them", func(t *testing.T) {
		_, err := s.Index(ctx, indexOp("1", `{"title":"x","year":1965}`), bulkuc.OriginPrimary)
		require.NoError(t, err)
		assert.Equal(t, []string{"title", "year"}, s.Fields("book"))
		assert.Equal(t, [][]string{{"title", "year"}}, published)
	})

	t.Run("replica accepts once merged", func(t *testing.T) {
		require.NoError(t, s.MergeMapping("book", []string{"pages"}))
		op := indexOp("2", `{"title":"y","pages":3}`)
		op.Version, op.VersionType = 1, bulk.VersionExternal
		_, err := s.Index(ctx, op, bulkuc.OriginReplica)
		require.NoError(t, err)
	})

	t.Run("source must be an object", func(t *testing.T) {
		_, err := s.Index(ctx, indexOp("3", `[1,2]`), bulkuc.OriginPrimary)
		require.Error(t, err)
		assert.True(t, enterrors.IsValidation(err))
	})
}

func TestShardRecoversFromTranslog(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := newTestShard(t, dir, nil)

	_, err := s.Index(ctx, indexOp("1", `{"a":1}`), bulkuc.OriginPrimary)
	require.NoError(t, err)
	res, err := s.Index(ctx, indexOp("2", `{"a":2}`), bulkuc.OriginPrimary)
	require.NoError(t, err)
	_, err = s.Delete(ctx, bulk.NewDeleteOp("books", "book", "1"), bulkuc.OriginPrimary)
	require.NoError(t, err)
	require.NoError(t, s.Sync(ctx, res.Location))
	require.NoError(t, s.Close())

	// simulate a store that lost its unsynced pages
	require.NoError(t, removeFile(filepath.Join(dir, "docs.db")))

	s = newTestShard(t, dir, nil)
	defer s.Close()

	doc, err := s.Get(ctx, "book", "2")
	require.NoError(t, err)
	assert.True(t, doc.Found)
	assert.Equal(t, int64(1), doc.Version)

	gone, err := s.Get(ctx, "book", "1")
	require.NoError(t, err)
	assert.False(t, gone.Found)
	assert.Equal(t, int64(1), s.Count())
	assert.Equal(t, []string{"a"}, s.Fields("book"))
}

func TestShardClosed(t *testing.T) {
	ctx := context.Background()
	s := newTestShard(t, t.TempDir(), nil)
	require.NoError(t, s.Close())

	_, err := s.Index(ctx, indexOp("1", `{"a":1}`), bulkuc.OriginPrimary)
	assert.True(t, enterrors.IsShardNotAvailable(err))
	_, err = s.Get(ctx, "book", "1")
	assert.True(t, enterrors.IsShardNotAvailable(err))
}

func TestShardHonorsContext(t *testing.T) {
	s := newTestShard(t, t.TempDir(), nil)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Index(ctx, indexOp("1", `{"a":1}`), bulkuc.OriginPrimary)
	assert.ErrorIs(t, err, context.Canceled)
}
