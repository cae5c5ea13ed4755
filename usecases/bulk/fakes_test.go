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

package bulk

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/weaviate/bulkshard/entities/bulk"
	"github.com/weaviate/bulkshard/entities/errors"
	"github.com/weaviate/bulkshard/entities/translog"
)

type engineCall struct {
	op     bulk.Operation
	origin Origin
}

// fakeEngine keeps documents in memory and applies the version rules.
// Errors queued for an id are returned by the next writes of that id.
type fakeEngine struct {
	mu        sync.Mutex
	docs      map[string]*Document
	errs      map[string][]error
	calls     []engineCall
	offset    int64
	locations map[string]translog.Location
	refreshed int
	synced    []translog.Location
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		docs:      map[string]*Document{},
		errs:      map[string][]error{},
		locations: map[string]translog.Location{},
	}
}

func (f *fakeEngine) put(id string, version int64, source string) {
	f.docs[id] = &Document{ID: id, Type: "book", Version: version, Found: true, Source: []byte(source)}
}

func (f *fakeEngine) failNext(id string, errs ...error) {
	f.errs[id] = append(f.errs[id], errs...)
}

func (f *fakeEngine) pop(id string) error {
	if len(f.errs[id]) == 0 {
		return nil
	}
	err := f.errs[id][0]
	f.errs[id] = f.errs[id][1:]
	return err
}

func (f *fakeEngine) nextLocation(id string) translog.Location {
	if loc, ok := f.locations[id]; ok {
		return loc
	}
	f.offset += 10
	return translog.Location{Generation: 1, Offset: f.offset, Size: 10}
}

func (f *fakeEngine) current(id string) int64 {
	if doc, ok := f.docs[id]; ok && doc.Found {
		return doc.Version
	}
	return bulk.NotFound
}

func (f *fakeEngine) Get(ctx context.Context, typ, id string) (*Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc, ok := f.docs[id]; ok {
		c := *doc
		return &c, nil
	}
	return &Document{ID: id, Type: typ, Version: bulk.NotFound}, nil
}

func (f *fakeEngine) Index(ctx context.Context, op *bulk.IndexOp, origin Origin) (IndexResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, engineCall{op: op.Clone(), origin: origin})
	if err := f.pop(op.ID); err != nil {
		return IndexResult{}, err
	}
	current := f.current(op.ID)
	if op.Create && current != bulk.NotFound {
		return IndexResult{}, &errors.DocumentAlreadyExistsError{Index: op.Index, Type: op.Type, ID: op.ID}
	}
	if op.VersionType.IsVersionConflictForWrites(current, op.Version) {
		return IndexResult{}, &errors.VersionConflictError{
			Index: op.Index, Type: op.Type, ID: op.ID, Current: current, Provided: op.Version,
		}
	}
	version := op.VersionType.UpdateVersion(current, op.Version)
	f.docs[op.ID] = &Document{ID: op.ID, Type: op.Type, Version: version, Found: true, Source: op.Source}
	return IndexResult{Version: version, Created: current == bulk.NotFound, Location: f.nextLocation(op.ID)}, nil
}

func (f *fakeEngine) Delete(ctx context.Context, op *bulk.DeleteOp, origin Origin) (DeleteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, engineCall{op: op.Clone(), origin: origin})
	if err := f.pop(op.ID); err != nil {
		return DeleteResult{}, err
	}
	current := f.current(op.ID)
	if op.VersionType.IsVersionConflictForWrites(current, op.Version) {
		return DeleteResult{}, &errors.VersionConflictError{
			Index: op.Index, Type: op.Type, ID: op.ID, Current: current, Provided: op.Version,
		}
	}
	version := op.VersionType.UpdateVersion(current, op.Version)
	found := current != bulk.NotFound
	f.docs[op.ID] = &Document{ID: op.ID, Type: op.Type, Version: version}
	return DeleteResult{Version: version, Found: found, Location: f.nextLocation(op.ID)}, nil
}

func (f *fakeEngine) Refresh(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed++
	return nil
}

func (f *fakeEngine) Sync(ctx context.Context, loc translog.Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced = append(f.synced, loc)
	return nil
}

func (f *fakeEngine) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, len(f.calls))
	for i, c := range f.calls {
		_, _, ids[i] = c.op.Target()
	}
	return ids
}

func engines(eng Engine) Engines {
	return EngineFunc(func(bulk.ShardID) (Engine, error) { return eng, nil })
}

type mockTranslator struct {
	mock.Mock
}

func (m *mockTranslator) Translate(ctx context.Context, op *bulk.UpdateOp, docs Getter) (*Translation, error) {
	args := m.Called(op.ID)
	t, _ := args.Get(0).(*Translation)
	return t, args.Error(1)
}

func (m *mockTranslator) GetResult(op *bulk.UpdateOp, version int64, source []byte) *bulk.GetResult {
	if len(op.Fields) == 0 {
		return nil
	}
	return &bulk.GetResult{Found: true, Version: version, Source: source}
}

type mockPrimary struct {
	mock.Mock
}

func (m *mockPrimary) ApplyOnPrimary(ctx context.Context, batch *bulk.Batch) (bulk.PrimaryResult, error) {
	args := m.Called(batch)
	r, _ := args.Get(0).(bulk.PrimaryResult)
	return r, args.Error(1)
}

type fakeReplicas struct {
	mu         sync.Mutex
	active     int
	total      int
	err        error
	replicated []*bulk.ReplicaRequest
	// bounded is set when Replicate ran under a deadline
	bounded bool
}

func (f *fakeReplicas) Copies(ctx context.Context, shard bulk.ShardID) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, f.total, f.err
}

func (f *fakeReplicas) Replicate(ctx context.Context, req *bulk.ReplicaRequest) bulk.ShardInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replicated = append(f.replicated, req)
	_, f.bounded = ctx.Deadline()
	return bulk.ShardInfo{Total: f.total, Successful: f.total}
}

var testShard = bulk.ShardID{Index: "books", Shard: 0}

func indexOp(id, source string) *bulk.IndexOp {
	return bulk.NewIndexOp("books", "book", id, []byte(source))
}

func deleteOp(id string) *bulk.DeleteOp {
	return bulk.NewDeleteOp("books", "book", id)
}

func updateOp(id string, retries int) *bulk.UpdateOp {
	op := bulk.NewUpdateOp("books", "book", id)
	op.Doc = []byte(`{"b":2}`)
	op.RetryOnConflict = retries
	return op
}
