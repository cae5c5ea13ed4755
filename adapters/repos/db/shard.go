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
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"github.com/weaviate/bulkshard/adapters/repos/db/translog"
	"github.com/weaviate/bulkshard/entities/bulk"
	enterrors "github.com/weaviate/bulkshard/entities/errors"
	enttranslog "github.com/weaviate/bulkshard/entities/translog"
	bulkuc "github.com/weaviate/bulkshard/usecases/bulk"
)

var (
	docsBucket    = []byte("docs")
	mappingBucket = []byte("mapping")
)

// docRecord is the stored state of a document. Deletes leave a tombstone
// behind so that the version of a deleted document keeps counting.
type docRecord struct {
	Type      string `msgpack:"type"`
	ID        string `msgpack:"id"`
	Version   int64  `msgpack:"version"`
	Deleted   bool   `msgpack:"deleted,omitempty"`
	Source    []byte `msgpack:"source,omitempty"`
	Routing   string `msgpack:"routing,omitempty"`
	Parent    string `msgpack:"parent,omitempty"`
	Timestamp string `msgpack:"timestamp,omitempty"`
	TTL       int64  `msgpack:"ttl,omitempty"`
}

func docKey(typ, id string) []byte {
	key := make([]byte, 0, len(typ)+1+len(id))
	key = append(key, typ...)
	key = append(key, 0)
	return append(key, id...)
}

// MappingListener is told about fields a primary write added to the
// mapping of a type
type MappingListener func(shard int, typ string, fields []string)

// Shard is a single copy of a shard. Documents live in a bbolt file that
// is written without fsync; the translog makes writes durable and is
// replayed into the store when the shard is opened again.
type Shard struct {
	index  string
	id     int
	path   string
	logger logrus.FieldLogger

	store *bolt.DB
	tlog  *translog.Log
	locks stripedLocks

	mappingLock sync.RWMutex
	mapping     mapping
	onMapping   MappingListener

	liveDocs   atomic.Int64
	searchable atomic.Int64
	closed     atomic.Bool

	metrics *shardMetrics
}

type ShardConfig struct {
	TranslogGenerationSize int64
}

func NewShard(index string, id int, path string, config ShardConfig,
	logger logrus.FieldLogger, metrics *Metrics, onMapping MappingListener,
) (*Shard, error) {
	before := time.Now()
	s := &Shard{
		index:     index,
		id:        id,
		path:      path,
		logger:    logger.WithFields(logrus.Fields{"index": index, "shard": id}),
		onMapping: onMapping,
		metrics:   metrics.forShard(index, id),
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create shard dir %q", path)
	}

	storePath := filepath.Join(path, "docs.db")
	store, err := bolt.Open(storePath, 0o600, &bolt.Options{NoSync: true, Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open %q", storePath)
	}
	s.store = store

	if err := s.initStore(); err != nil {
		store.Close()
		return nil, err
	}

	tlogPath := filepath.Join(path, "translog")
	if err := s.recover(tlogPath); err != nil {
		store.Close()
		return nil, err
	}
	tlog, err := translog.Open(tlogPath, config.TranslogGenerationSize, s.logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	// everything before the new generation is in the synced store now
	if err := tlog.TrimBefore(tlog.Current()); err != nil {
		tlog.Close()
		store.Close()
		return nil, err
	}
	s.tlog = tlog
	s.searchable.Store(s.liveDocs.Load())

	s.logger.WithField("action", "init_shard").
		WithField("took", time.Since(before)).
		WithField("docs", s.liveDocs.Load()).
		Debug("shard opened")
	return s, nil
}

func (s *Shard) initStore() error {
	return s.store.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(docsBucket); err != nil {
			return errors.Wrap(err, "create docs bucket")
		}
		if _, err := tx.CreateBucketIfNotExists(mappingBucket); err != nil {
			return errors.Wrap(err, "create mapping bucket")
		}
		m, err := loadMapping(tx)
		if err != nil {
			return err
		}
		s.mapping = m

		var live int64
		err = tx.Bucket(docsBucket).ForEach(func(_, v []byte) error {
			var rec docRecord
			if err := msgpack.Unmarshal(v, &rec); err != nil {
				return errors.Wrap(err, "decode document")
			}
			if !rec.Deleted {
				live++
			}
			return nil
		})
		s.liveDocs.Store(live)
		return err
	})
}

// recover replays the translog into the store. A record is applied only
// if it is newer than the stored document, which makes replaying the same
// generation twice harmless.
func (s *Shard) recover(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	gens, err := translog.Generations(dir)
	if err != nil {
		return err
	}
	replayed := 0
	for _, gen := range gens {
		err := s.store.Update(func(tx *bolt.Tx) error {
			return translog.ReadGeneration(dir, gen, func(_ enttranslog.Location, rec *translog.Record) error {
				applied, err := s.replayRecord(tx, rec)
				if applied {
					replayed++
				}
				return err
			})
		})
		if err != nil {
			return errors.Wrapf(err, "replay translog generation %d", gen)
		}
	}
	if err := s.store.Sync(); err != nil {
		return errors.Wrap(err, "sync store after recovery")
	}
	if replayed > 0 {
		s.logger.WithField("action", "recover_shard").
			WithField("operations", replayed).
			Info("replayed translog")
	}
	return nil
}

func (s *Shard) replayRecord(tx *bolt.Tx, rec *translog.Record) (bool, error) {
	key := docKey(rec.Type, rec.ID)
	current, err := readRecord(tx, key)
	if err != nil {
		return false, err
	}
	if current != nil && current.Version >= rec.Version {
		return false, nil
	}
	wasLive := current != nil && !current.Deleted

	next := &docRecord{
		Type:      rec.Type,
		ID:        rec.ID,
		Version:   rec.Version,
		Deleted:   rec.Op == translog.OpDelete,
		Source:    rec.Source,
		Routing:   rec.Routing,
		Parent:    rec.Parent,
		Timestamp: rec.Timestamp,
		TTL:       rec.TTL,
	}
	if !next.Deleted {
		fields, err := topLevelFields(rec.Source)
		if err != nil {
			return false, err
		}
		if added := s.mapping.merge(rec.Type, fields); len(added) > 0 {
			if err := putMapping(tx, s.mapping, rec.Type); err != nil {
				return false, err
			}
		}
	}
	if err := writeRecord(tx, key, next); err != nil {
		return false, err
	}
	switch {
	case wasLive && next.Deleted:
		s.liveDocs.Add(-1)
	case !wasLive && !next.Deleted:
		s.liveDocs.Add(1)
	}
	return true, nil
}

func readRecord(tx *bolt.Tx, key []byte) (*docRecord, error) {
	v := tx.Bucket(docsBucket).Get(key)
	if v == nil {
		return nil, nil
	}
	var rec docRecord
	if err := msgpack.Unmarshal(v, &rec); err != nil {
		return nil, errors.Wrapf(err, "decode document %q", key)
	}
	return &rec, nil
}

func writeRecord(tx *bolt.Tx, key []byte, rec *docRecord) error {
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "encode document")
	}
	return tx.Bucket(docsBucket).Put(key, data)
}

func (s *Shard) notAvailable(reason string) error {
	return &enterrors.ShardNotAvailableError{Index: s.index, Shard: s.id, Reason: reason}
}

func (s *Shard) current(key []byte) (*docRecord, error) {
	var rec *docRecord
	err := s.store.View(func(tx *bolt.Tx) error {
		var err error
		rec, err = readRecord(tx, key)
		return err
	})
	return rec, err
}

func versionOf(rec *docRecord) (int64, bool) {
	if rec == nil {
		return bulk.NotFound, false
	}
	return rec.Version, !rec.Deleted
}

func (s *Shard) Get(ctx context.Context, typ, id string) (*bulkuc.Document, error) {
	if s.closed.Load() {
		return nil, s.notAvailable("shard is closed")
	}
	defer s.metrics.operation("get", time.Now())

	rec, err := s.current(docKey(typ, id))
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.Deleted {
		return &bulkuc.Document{ID: id, Type: typ, Version: bulk.NotFound}, nil
	}
	return &bulkuc.Document{
		ID:        rec.ID,
		Type:      rec.Type,
		Version:   rec.Version,
		Found:     true,
		Source:    rec.Source,
		Routing:   rec.Routing,
		Parent:    rec.Parent,
		Timestamp: rec.Timestamp,
		TTL:       time.Duration(rec.TTL),
	}, nil
}

// Index writes op. Replicas refuse documents with fields their mapping
// does not know yet, the primary adds them.
func (s *Shard) Index(ctx context.Context, op *bulk.IndexOp, origin bulkuc.Origin) (bulkuc.IndexResult, error) {
	if s.closed.Load() {
		return bulkuc.IndexResult{}, s.notAvailable("shard is closed")
	}
	if err := ctx.Err(); err != nil {
		return bulkuc.IndexResult{}, err
	}
	defer s.metrics.operation("index", time.Now())

	fields, err := topLevelFields(op.Source)
	if err != nil {
		return bulkuc.IndexResult{}, err
	}
	s.mappingLock.RLock()
	unknown := s.mapping.unknown(op.Type, fields)
	s.mappingLock.RUnlock()
	if len(unknown) > 0 && origin == bulkuc.OriginReplica {
		return bulkuc.IndexResult{}, &enterrors.RetryOnReplicaError{
			Index: s.index, Shard: s.id, Fields: unknown,
		}
	}

	key := docKey(op.Type, op.ID)
	unlock := s.locks.lock(key)
	defer unlock()

	rec, err := s.current(key)
	if err != nil {
		return bulkuc.IndexResult{}, err
	}
	currentVersion, exists := versionOf(rec)
	if op.VersionType.IsVersionConflictForWrites(currentVersion, op.Version) {
		return bulkuc.IndexResult{}, &enterrors.VersionConflictError{
			Index: s.index, Type: op.Type, ID: op.ID,
			Current: currentVersion, Provided: op.Version,
		}
	}
	if op.Create && exists {
		return bulkuc.IndexResult{}, &enterrors.DocumentAlreadyExistsError{
			Index: s.index, Type: op.Type, ID: op.ID,
		}
	}
	version := op.VersionType.UpdateVersion(currentVersion, op.Version)

	next := &docRecord{
		Type:      op.Type,
		ID:        op.ID,
		Version:   version,
		Source:    op.Source,
		Routing:   op.Routing,
		Parent:    op.Parent,
		Timestamp: op.Timestamp,
		TTL:       int64(op.TTL),
	}
	loc, err := s.tlog.Add(&translog.Record{
		Op:        translog.OpIndex,
		Type:      next.Type,
		ID:        next.ID,
		Version:   next.Version,
		Source:    next.Source,
		Routing:   next.Routing,
		Parent:    next.Parent,
		Timestamp: next.Timestamp,
		TTL:       next.TTL,
	})
	if err != nil {
		return bulkuc.IndexResult{}, errors.Wrap(err, "append to translog")
	}

	var added []string
	err = s.store.Update(func(tx *bolt.Tx) error {
		if len(unknown) > 0 {
			s.mappingLock.Lock()
			added = s.mapping.merge(op.Type, unknown)
			var err error
			if len(added) > 0 {
				err = putMapping(tx, s.mapping, op.Type)
			}
			s.mappingLock.Unlock()
			if err != nil {
				return err
			}
		}
		return writeRecord(tx, key, next)
	})
	if err != nil {
		return bulkuc.IndexResult{}, errors.Wrapf(err, "store document %q", op.ID)
	}
	if !exists {
		s.liveDocs.Add(1)
	}
	if len(added) > 0 {
		s.metrics.mappingUpdate()
		s.logger.WithField("action", "mapping_update").
			WithField("type", op.Type).
			WithField("fields", added).
			Debug("mapping updated")
		if s.onMapping != nil {
			s.onMapping(s.id, op.Type, added)
		}
	}
	return bulkuc.IndexResult{Version: version, Created: !exists, Location: loc}, nil
}

func (s *Shard) Delete(ctx context.Context, op *bulk.DeleteOp, origin bulkuc.Origin) (bulkuc.DeleteResult, error) {
	if s.closed.Load() {
		return bulkuc.DeleteResult{}, s.notAvailable("shard is closed")
	}
	if err := ctx.Err(); err != nil {
		return bulkuc.DeleteResult{}, err
	}
	defer s.metrics.operation("delete", time.Now())

	key := docKey(op.Type, op.ID)
	unlock := s.locks.lock(key)
	defer unlock()

	rec, err := s.current(key)
	if err != nil {
		return bulkuc.DeleteResult{}, err
	}
	currentVersion, exists := versionOf(rec)
	if op.VersionType.IsVersionConflictForWrites(currentVersion, op.Version) {
		return bulkuc.DeleteResult{}, &enterrors.VersionConflictError{
			Index: s.index, Type: op.Type, ID: op.ID,
			Current: currentVersion, Provided: op.Version,
		}
	}
	version := op.VersionType.UpdateVersion(currentVersion, op.Version)

	loc, err := s.tlog.Add(&translog.Record{
		Op:      translog.OpDelete,
		Type:    op.Type,
		ID:      op.ID,
		Version: version,
	})
	if err != nil {
		return bulkuc.DeleteResult{}, errors.Wrap(err, "append to translog")
	}
	err = s.store.Update(func(tx *bolt.Tx) error {
		return writeRecord(tx, key, &docRecord{
			Type:    op.Type,
			ID:      op.ID,
			Version: version,
			Deleted: true,
		})
	})
	if err != nil {
		return bulkuc.DeleteResult{}, errors.Wrapf(err, "delete document %q", op.ID)
	}
	if exists {
		s.liveDocs.Add(-1)
	}
	return bulkuc.DeleteResult{Version: version, Found: exists, Location: loc}, nil
}

// Refresh publishes the current document count to readers
func (s *Shard) Refresh(ctx context.Context) error {
	if s.closed.Load() {
		return s.notAvailable("shard is closed")
	}
	s.searchable.Store(s.liveDocs.Load())
	return nil
}

func (s *Shard) Sync(ctx context.Context, loc enttranslog.Location) error {
	if s.closed.Load() {
		return s.notAvailable("shard is closed")
	}
	if !s.tlog.NeedsSync(loc) {
		return nil
	}
	defer s.metrics.operation("sync", time.Now())
	if err := s.tlog.Sync(loc); err != nil {
		return err
	}
	s.metrics.translogSync()
	return nil
}

// Count is the number of live documents as of the last refresh
func (s *Shard) Count() int64 {
	return s.searchable.Load()
}

// MergeMapping adds fields learned from the primary
func (s *Shard) MergeMapping(typ string, fields []string) error {
	if s.closed.Load() {
		return s.notAvailable("shard is closed")
	}
	return s.store.Update(func(tx *bolt.Tx) error {
		s.mappingLock.Lock()
		defer s.mappingLock.Unlock()
		if added := s.mapping.merge(typ, fields); len(added) == 0 {
			return nil
		}
		return putMapping(tx, s.mapping, typ)
	})
}

func (s *Shard) Fields(typ string) []string {
	s.mappingLock.RLock()
	defer s.mappingLock.RUnlock()
	return s.mapping.fields(typ)
}

// Close syncs the store and the translog. The translog is kept: it is
// trimmed once the store is known to hold its records on the next open.
func (s *Shard) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	var err error
	if s.tlog != nil {
		err = s.tlog.Close()
	}
	if serr := s.store.Sync(); serr != nil && err == nil {
		err = errors.Wrap(serr, "sync store")
	}
	if cerr := s.store.Close(); cerr != nil && err == nil {
		err = errors.Wrap(cerr, "close store")
	}
	return err
}
