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

package clusterapi

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaviate/bulkshard/entities/bulk"
	enterrors "github.com/weaviate/bulkshard/entities/errors"
	"github.com/weaviate/bulkshard/usecases/monitoring"
)

type fakeShards struct {
	got *bulk.ReplicaRequest
	err error
}

func (f *fakeShards) ApplyOnReplica(_ context.Context, req *bulk.ReplicaRequest) error {
	f.got = req
	return f.err
}

type fakeMappings struct {
	index, typ string
	fields     []string
	err        error
}

func (f *fakeMappings) MergeMapping(index, typ string, fields []string) error {
	f.index, f.typ, f.fields = index, typ, fields
	return f.err
}

func replicaRequest() *bulk.ReplicaRequest {
	idx := bulk.NewIndexOp("books", "book", "1", []byte(`{"a":1}`))
	idx.Version, idx.VersionType = 3, bulk.VersionExternal
	del := bulk.NewDeleteOp("books", "book", "2")
	del.Version, del.VersionType = 5, bulk.VersionExternal
	return &bulk.ReplicaRequest{
		ShardID: bulk.ShardID{Index: "books", Shard: 1},
		Refresh: true,
		Items: []bulk.ResolvedItem{
			{Position: 0, Operation: idx},
			{Position: 1, Operation: bulk.NewIndexOp("books", "book", "x", []byte(`{}`)), IgnoreOnReplica: true},
			{Position: 2, Operation: del},
		},
	}
}

func newTestServer(t *testing.T, shards *fakeShards, mappings *fakeMappings) *httptest.Server {
	logger, _ := test.NewNullLogger()
	h, err := NewHandler(shards, mappings, logger, monitoring.NewPrometheusMetrics())
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func postBulk(t *testing.T, url string, req *bulk.ReplicaRequest) *http.Response {
	body, err := IndicesPayloads.ReplicaBulk.Marshal(req)
	require.NoError(t, err)
	r, err := http.NewRequest(http.MethodPost,
		fmt.Sprintf("%s/replicas/indices/%s/shards/%d/bulk", url, req.ShardID.Index, req.ShardID.Shard),
		bytes.NewReader(body))
	require.NoError(t, err)
	IndicesPayloads.ReplicaBulk.SetContentTypeHeaderReq(r)
	res, err := http.DefaultClient.Do(r)
	require.NoError(t, err)
	return res
}

func TestReplicaBulkPayloadSkipsIgnoredItems(t *testing.T) {
	body, err := IndicesPayloads.ReplicaBulk.Marshal(replicaRequest())
	require.NoError(t, err)
	got, err := IndicesPayloads.ReplicaBulk.Unmarshal(body)
	require.NoError(t, err)

	assert.Equal(t, bulk.ShardID{Index: "books", Shard: 1}, got.ShardID)
	assert.True(t, got.Refresh)
	require.Len(t, got.Items, 2)
	assert.Equal(t, 0, got.Items[0].Position)
	assert.Equal(t, 2, got.Items[1].Position)

	idx, ok := got.Items[0].Operation.(*bulk.IndexOp)
	require.True(t, ok)
	assert.Equal(t, int64(3), idx.Version)
	assert.Equal(t, bulk.VersionExternal, idx.VersionType)
	_, ok = got.Items[1].Operation.(*bulk.DeleteOp)
	assert.True(t, ok)
}

func TestReplicaBulkPayloadRejectsUpdates(t *testing.T) {
	req := &bulk.ReplicaRequest{Items: []bulk.ResolvedItem{{Operation: bulk.NewUpdateOp("b", "t", "1")}}}
	_, err := IndicesPayloads.ReplicaBulk.Marshal(req)
	assert.Error(t, err)
}

func TestPostBulk(t *testing.T) {
	shards := &fakeShards{}
	srv := newTestServer(t, shards, &fakeMappings{})

	res := postBulk(t, srv.URL, replicaRequest())
	defer res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	require.NotNil(t, shards.got)
	assert.Len(t, shards.got.Items, 2)
}

func TestPostBulkErrorsKeepTheirClass(t *testing.T) {
	shards := &fakeShards{err: &enterrors.RetryOnReplicaError{Index: "books", Shard: 1, Fields: []string{"a"}}}
	srv := newTestServer(t, shards, &fakeMappings{})

	res := postBulk(t, srv.URL, replicaRequest())
	defer res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	err := IndicesPayloads.Error.Read("books", 1, res.StatusCode, res.Body)
	assert.True(t, enterrors.IsRetryOnReplica(err))
}

func TestPostBulkRejectsMismatchedShard(t *testing.T) {
	srv := newTestServer(t, &fakeShards{}, &fakeMappings{})
	req := replicaRequest()
	body, err := IndicesPayloads.ReplicaBulk.Marshal(req)
	require.NoError(t, err)

	r, err := http.NewRequest(http.MethodPost, srv.URL+"/replicas/indices/books/shards/7/bulk", bytes.NewReader(body))
	require.NoError(t, err)
	IndicesPayloads.ReplicaBulk.SetContentTypeHeaderReq(r)
	res, err := http.DefaultClient.Do(r)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestPostBulkWrongContentType(t *testing.T) {
	srv := newTestServer(t, &fakeShards{}, &fakeMappings{})
	res, err := http.Post(srv.URL+"/replicas/indices/books/shards/1/bulk", "application/json", bytes.NewReader(nil))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, res.StatusCode)
}

func TestPutMapping(t *testing.T) {
	mappings := &fakeMappings{}
	srv := newTestServer(t, &fakeShards{}, mappings)

	body, err := IndicesPayloads.Mapping.Marshal(MappingUpdate{Type: "book", Fields: []string{"title"}})
	require.NoError(t, err)
	r, err := http.NewRequest(http.MethodPut, srv.URL+"/replicas/indices/books/mapping", bytes.NewReader(body))
	require.NoError(t, err)
	IndicesPayloads.Mapping.SetContentTypeHeaderReq(r)
	res, err := http.DefaultClient.Do(r)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Equal(t, "books", mappings.index)
	assert.Equal(t, "book", mappings.typ)
	assert.Equal(t, []string{"title"}, mappings.fields)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &fakeShards{}, &fakeMappings{})
	res, err := http.Get(srv.URL + "/replicas/indices/books/shards/1/bulk")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func Test_staticRoute(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/replicas/indices/", func(http.ResponseWriter, *http.Request) {})

	for _, tc := range []struct{ path, expected string }{
		{"/foo", "/foo"},
		{"/replicas/indices/books/shards/1/bulk", "/replicas/indices/"},
	} {
		r, err := http.NewRequest(http.MethodGet, tc.path, nil)
		require.NoError(t, err)
		_, got := staticRoute(mux)(r)
		assert.Equal(t, tc.expected, got)
	}
}
