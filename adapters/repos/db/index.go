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
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	enterrors "github.com/weaviate/bulkshard/entities/errors"
)

// Index holds the local copies of the shards of one index
type Index struct {
	name   string
	path   string
	config ShardConfig
	logger logrus.FieldLogger
	db     *DB

	shardsLock sync.RWMutex
	shards     map[int]*Shard
}

func (i *Index) shardPath(n int) string {
	return filepath.Join(i.path, fmt.Sprintf("shard-%d", n))
}

func (i *Index) openShard(n int) error {
	i.shardsLock.Lock()
	defer i.shardsLock.Unlock()
	if _, ok := i.shards[n]; ok {
		return nil
	}
	s, err := NewShard(i.name, n, i.shardPath(n), i.config, i.logger, i.db.metrics, i.mappingChanged)
	if err != nil {
		return fmt.Errorf("open shard %d of index %q: %w", n, i.name, err)
	}
	i.shards[n] = s
	return nil
}

func (i *Index) Shard(n int) (*Shard, error) {
	i.shardsLock.RLock()
	defer i.shardsLock.RUnlock()
	s, ok := i.shards[n]
	if !ok {
		return nil, &enterrors.ShardNotAvailableError{
			Index: i.name, Shard: n, Reason: "no local copy",
		}
	}
	return s, nil
}

// ShardNumbers lists the local shards in ascending order
func (i *Index) ShardNumbers() []int {
	i.shardsLock.RLock()
	defer i.shardsLock.RUnlock()
	out := make([]int, 0, len(i.shards))
	for n := range i.shards {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// mappingChanged spreads fields a primary write added to the other local
// shards and to the rest of the cluster
func (i *Index) mappingChanged(origin int, typ string, fields []string) {
	for _, n := range i.ShardNumbers() {
		if n == origin {
			continue
		}
		s, err := i.Shard(n)
		if err != nil {
			continue
		}
		if err := s.MergeMapping(typ, fields); err != nil {
			i.logger.WithError(err).WithField("shard", n).
				Warn("failed to merge mapping into local shard")
		}
	}

	publisher := i.db.mappingPublisher()
	if publisher == nil {
		return
	}
	enterrors.GoWrapper(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		publisher.PublishMapping(ctx, i.name, typ, fields)
	}, i.logger)
}

// MergeMapping adds fields to every local shard
func (i *Index) MergeMapping(typ string, fields []string) error {
	var merr *multierror.Error
	for _, n := range i.ShardNumbers() {
		s, err := i.Shard(n)
		if err != nil {
			continue
		}
		if err := s.MergeMapping(typ, fields); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}

// Count is the number of searchable documents over all local shards
func (i *Index) Count() int64 {
	var total int64
	for _, n := range i.ShardNumbers() {
		if s, err := i.Shard(n); err == nil {
			total += s.Count()
		}
	}
	return total
}

func (i *Index) Refresh(ctx context.Context) error {
	for _, n := range i.ShardNumbers() {
		s, err := i.Shard(n)
		if err != nil {
			continue
		}
		if err := s.Refresh(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (i *Index) Close() error {
	i.shardsLock.Lock()
	defer i.shardsLock.Unlock()
	var merr *multierror.Error
	for n, s := range i.shards {
		if err := s.Close(); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("shard %d: %w", n, err))
		}
	}
	return merr.ErrorOrNil()
}
