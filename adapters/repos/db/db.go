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

// Package db is the reference storage engine: a bbolt document store plus
// a translog per shard copy.
package db

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/bulkshard/entities/bulk"
	enterrors "github.com/weaviate/bulkshard/entities/errors"
	bulkuc "github.com/weaviate/bulkshard/usecases/bulk"
)

type Config struct {
	RootPath               string
	TranslogGenerationSize int64
}

// MappingPublisher ships mapping updates to the other nodes of the cluster
type MappingPublisher interface {
	PublishMapping(ctx context.Context, index, typ string, fields []string)
}

type DB struct {
	config  Config
	logger  logrus.FieldLogger
	metrics *Metrics

	indexLock sync.RWMutex
	indices   map[string]*Index

	publisherLock sync.RWMutex
	publisher     MappingPublisher
}

func New(logger logrus.FieldLogger, config Config, metrics *Metrics) *DB {
	if metrics == nil {
		metrics = &Metrics{logger: logger}
	}
	return &DB{
		config:  config,
		logger:  logger.WithField("action", "db"),
		metrics: metrics,
		indices: map[string]*Index{},
	}
}

func (db *DB) SetMappingPublisher(p MappingPublisher) {
	db.publisherLock.Lock()
	defer db.publisherLock.Unlock()
	db.publisher = p
}

func (db *DB) mappingPublisher() MappingPublisher {
	db.publisherLock.RLock()
	defer db.publisherLock.RUnlock()
	return db.publisher
}

// OpenIndex opens the local copies of shards of index, creating the index
// if it does not exist yet
func (db *DB) OpenIndex(name string, shards []int) (*Index, error) {
	db.indexLock.Lock()
	idx, ok := db.indices[name]
	if !ok {
		idx = &Index{
			name:   name,
			path:   filepath.Join(db.config.RootPath, name),
			config: ShardConfig{TranslogGenerationSize: db.config.TranslogGenerationSize},
			logger: db.logger.WithField("index", name),
			db:     db,
			shards: map[int]*Shard{},
		}
		db.indices[name] = idx
	}
	db.indexLock.Unlock()

	for _, n := range shards {
		if err := idx.openShard(n); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func (db *DB) GetIndex(name string) (*Index, bool) {
	db.indexLock.RLock()
	defer db.indexLock.RUnlock()
	idx, ok := db.indices[name]
	return idx, ok
}

func (db *DB) IndexNames() []string {
	db.indexLock.RLock()
	defer db.indexLock.RUnlock()
	out := make([]string, 0, len(db.indices))
	for name := range db.indices {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Engine resolves the local copy of shard
func (db *DB) Engine(shard bulk.ShardID) (bulkuc.Engine, error) {
	idx, ok := db.GetIndex(shard.Index)
	if !ok {
		return nil, &enterrors.ShardNotAvailableError{
			Index: shard.Index, Shard: shard.Shard, Reason: "no such index",
		}
	}
	s, err := idx.Shard(shard.Shard)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// MergeMapping applies a mapping update received from another node
func (db *DB) MergeMapping(index, typ string, fields []string) error {
	idx, ok := db.GetIndex(index)
	if !ok {
		return &enterrors.ShardNotAvailableError{Index: index, Shard: -1, Reason: "no such index"}
	}
	return idx.MergeMapping(typ, fields)
}

func (db *DB) Shutdown(ctx context.Context) error {
	db.indexLock.Lock()
	defer db.indexLock.Unlock()
	var merr *multierror.Error
	for name, idx := range db.indices {
		if err := idx.Close(); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("index %q: %w", name, err))
		}
	}
	return merr.ErrorOrNil()
}
