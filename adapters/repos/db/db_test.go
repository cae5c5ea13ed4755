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
	"os"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaviate/bulkshard/entities/bulk"
	enterrors "github.com/weaviate/bulkshard/entities/errors"
	bulkuc "github.com/weaviate/bulkshard/usecases/bulk"
)

func removeFile(path string) error {
	return os.Remove(path)
}

type fakePublisher struct {
	mu      sync.Mutex
	updates []string
	done    chan struct{}
}

func (f *fakePublisher) PublishMapping(_ context.Context, index, typ string, fields []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, field := range fields {
		f.updates = append(f.updates, index+"/"+typ+"/"+field)
	}
	close(f.done)
}

func newTestDB(t *testing.T) *DB {
	logger, _ := test.NewNullLogger()
	return New(logger, Config{RootPath: t.TempDir(), TranslogGenerationSize: 1 << 20}, nil)
}

func TestDBEngineLookup(t *testing.T) {
	db := newTestDB(t)
	defer db.Shutdown(context.Background())

	_, err := db.OpenIndex("books", []int{0, 2})
	require.NoError(t, err)

	e, err := db.Engine(bulk.ShardID{Index: "books", Shard: 2})
	require.NoError(t, err)
	assert.NotNil(t, e)

	_, err = db.Engine(bulk.ShardID{Index: "books", Shard: 1})
	assert.True(t, enterrors.IsShardNotAvailable(err))
	_, err = db.Engine(bulk.ShardID{Index: "films", Shard: 0})
	assert.True(t, enterrors.IsShardNotAvailable(err))
	assert.Equal(t, []string{"books"}, db.IndexNames())
}

func TestDBMappingSpreadsToSiblingsAndPeers(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	defer db.Shutdown(ctx)
	pub := &fakePublisher{done: make(chan struct{})}
	db.SetMappingPublisher(pub)

	idx, err := db.OpenIndex("books", []int{0, 1})
	require.NoError(t, err)
	s0, err := idx.Shard(0)
	require.NoError(t, err)
	s1, err := idx.Shard(1)
	require.NoError(t, err)

	_, err = s0.Index(ctx, bulk.NewIndexOp("books", "book", "1", []byte(`{"title":"x"}`)), bulkuc.OriginPrimary)
	require.NoError(t, err)
	assert.Equal(t, []string{"title"}, s1.Fields("book"))

	select {
	case <-pub.done:
	case <-time.After(5 * time.Second):
		t.Fatal("mapping update was not published")
	}
	assert.Equal(t, []string{"books/book/title"}, pub.updates)

	require.NoError(t, db.MergeMapping("books", "book", []string{"year"}))
	assert.Equal(t, []string{"title", "year"}, s0.Fields("book"))
	assert.Equal(t, []string{"title", "year"}, s1.Fields("book"))
}

func TestIndexCountAndRefresh(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	defer db.Shutdown(ctx)

	idx, err := db.OpenIndex("books", []int{0, 1})
	require.NoError(t, err)
	for n, id := range []string{"a", "b"} {
		s, err := idx.Shard(n)
		require.NoError(t, err)
		_, err = s.Index(ctx, bulk.NewIndexOp("books", "book", id, []byte(`{"x":1}`)), bulkuc.OriginPrimary)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(0), idx.Count())
	require.NoError(t, idx.Refresh(ctx))
	assert.Equal(t, int64(2), idx.Count())
}
