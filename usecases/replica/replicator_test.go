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

package replica

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaviate/bulkshard/entities/bulk"
	enterrors "github.com/weaviate/bulkshard/entities/errors"
	"github.com/weaviate/bulkshard/usecases/sharding"
)

var shard = bulk.ShardID{Index: "books", Shard: 0}

type fakeClient struct {
	mu    sync.Mutex
	errs  map[string][]error
	calls map[string]int
}

func newFakeClient() *fakeClient {
	return &fakeClient{errs: map[string][]error{}, calls: map[string]int{}}
}

func (f *fakeClient) ApplyBulk(ctx context.Context, host string, req *bulk.ReplicaRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[host]++
	if len(f.errs[host]) == 0 {
		return nil
	}
	err := f.errs[host][0]
	f.errs[host] = f.errs[host][1:]
	return err
}

type fakeTopology struct {
	nodes []sharding.Node
	err   error
}

func (f *fakeTopology) Replicas(bulk.ShardID) ([]sharding.Node, error) {
	return f.nodes, f.err
}

func (f *fakeTopology) Copies(context.Context, bulk.ShardID) (int, int, error) {
	return len(f.nodes) + 1, len(f.nodes) + 1, nil
}

type fakeFailer struct {
	mu     sync.Mutex
	failed []string
}

func (f *fakeFailer) FailShard(_ bulk.ShardID, node string, _ error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, node)
}

func nodes(names ...string) []sharding.Node {
	out := make([]sharding.Node, len(names))
	for i, n := range names {
		out[i] = sharding.Node{Name: n, Host: n + ":7101"}
	}
	return out
}

func newTestReplicator(client Client, topo Topology, failer ShardFailer) *Replicator {
	logger, _ := test.NewNullLogger()
	return NewReplicator(client, topo, failer, Config{
		MappingRetryInitial: time.Millisecond,
		MappingWait:         time.Second,
	}, logger, nil)
}

func request() *bulk.ReplicaRequest {
	return &bulk.ReplicaRequest{
		ShardID: shard,
		Items: []bulk.ResolvedItem{{
			Position:  0,
			Operation: bulk.NewIndexOp("books", "book", "1", []byte(`{"a":1}`)),
		}},
	}
}

func TestReplicateAllCopies(t *testing.T) {
	client := newFakeClient()
	failer := &fakeFailer{}
	r := newTestReplicator(client, &fakeTopology{nodes: nodes("n2", "n3")}, failer)

	info := r.Replicate(context.Background(), request())

	assert.Equal(t, 3, info.Total)
	assert.Equal(t, 3, info.Successful)
	assert.Empty(t, info.Failures)
	assert.Empty(t, failer.failed)
	assert.Equal(t, 1, client.calls["n2:7101"])
	assert.Equal(t, 1, client.calls["n3:7101"])
}

func TestReplicateFailedCopyIsReported(t *testing.T) {
	client := newFakeClient()
	client.errs["n3:7101"] = []error{errors.New("disk full")}
	failer := &fakeFailer{}
	r := newTestReplicator(client, &fakeTopology{nodes: nodes("n2", "n3")}, failer)

	info := r.Replicate(context.Background(), request())

	assert.Equal(t, 3, info.Total)
	assert.Equal(t, 2, info.Successful)
	require.Len(t, info.Failures, 1)
	assert.Equal(t, "n3", info.Failures[0].Node)
	assert.Equal(t, 500, info.Failures[0].Status)
	assert.Equal(t, []string{"n3"}, failer.failed)
	assert.Equal(t, 1, client.calls["n3:7101"], "permanent errors are not retried")
}

func TestReplicateUnavailableCopyIsSkipped(t *testing.T) {
	client := newFakeClient()
	client.errs["n2:7101"] = []error{&enterrors.ShardNotAvailableError{Index: "books", Reason: "closed"}}
	failer := &fakeFailer{}
	r := newTestReplicator(client, &fakeTopology{nodes: nodes("n2")}, failer)

	info := r.Replicate(context.Background(), request())

	assert.Equal(t, 2, info.Total)
	assert.Equal(t, 1, info.Successful)
	assert.Empty(t, info.Failures)
	assert.Empty(t, failer.failed)
}

func TestReplicateRetriesPendingMapping(t *testing.T) {
	client := newFakeClient()
	pending := &enterrors.RetryOnReplicaError{Index: "books", Fields: []string{"title"}}
	client.errs["n2:7101"] = []error{pending, pending}
	failer := &fakeFailer{}
	r := newTestReplicator(client, &fakeTopology{nodes: nodes("n2")}, failer)

	info := r.Replicate(context.Background(), request())

	assert.Equal(t, 2, info.Successful)
	assert.Empty(t, failer.failed)
	assert.Equal(t, 3, client.calls["n2:7101"])
}

func TestReplicatePendingMappingGivesUp(t *testing.T) {
	client := newFakeClient()
	pending := &enterrors.RetryOnReplicaError{Index: "books", Fields: []string{"title"}}
	for i := 0; i < 1000; i++ {
		client.errs["n2:7101"] = append(client.errs["n2:7101"], pending)
	}
	failer := &fakeFailer{}
	logger, _ := test.NewNullLogger()
	r := NewReplicator(client, &fakeTopology{nodes: nodes("n2")}, failer, Config{
		MappingRetryInitial: time.Millisecond,
		MappingWait:         20 * time.Millisecond,
	}, logger, nil)

	info := r.Replicate(context.Background(), request())

	assert.Equal(t, 1, info.Successful)
	require.Len(t, info.Failures, 1)
	assert.True(t, enterrors.IsRetryOnReplica(info.Failures[0].Err))
	assert.Equal(t, []string{"n2"}, failer.failed)
}

func TestReplicateWithoutReplicas(t *testing.T) {
	client := newFakeClient()
	r := newTestReplicator(client, &fakeTopology{}, nil)

	info := r.Replicate(context.Background(), request())

	assert.Equal(t, bulk.ShardInfo{Total: 1, Successful: 1}, info)
	assert.Empty(t, client.calls)
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}.WithDefaults()
	assert.Equal(t, DefaultMappingRetryInitial, c.MappingRetryInitial)
	assert.Equal(t, DefaultMappingWait, c.MappingWait)
	assert.Equal(t, DefaultParallelism, c.Parallelism)
	require.NoError(t, c.Validate())

	c.MappingWait = time.Millisecond
	assert.Error(t, c.Validate())
}
