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

package state

import (
	"github.com/sirupsen/logrus"

	"github.com/weaviate/bulkshard/adapters/repos/db"
	"github.com/weaviate/bulkshard/entities/bulk"
	bulkuc "github.com/weaviate/bulkshard/usecases/bulk"
	"github.com/weaviate/bulkshard/usecases/config"
	"github.com/weaviate/bulkshard/usecases/monitoring"
	"github.com/weaviate/bulkshard/usecases/replica"
	"github.com/weaviate/bulkshard/usecases/sharding"
)

// State is the only source of application-wide state
type State struct {
	ServerConfig *config.BulkShardConfig
	Logger       *logrus.Logger
	Metrics      *monitoring.PrometheusMetrics

	Cluster     *sharding.Cluster
	DB          *db.DB
	Executor    *bulkuc.Executor
	Replicator  *replica.Replicator
	ShardAction *bulkuc.ShardAction
}

// CreateIndex places a new index with the default layout and opens the
// shard copies this node holds
func (s *State) CreateIndex(name string) (*sharding.State, error) {
	st, err := s.Cluster.AddIndex(name, sharding.Config{
		Shards:   sharding.DefaultShards,
		Replicas: sharding.DefaultReplicas,
	})
	if err != nil {
		return nil, err
	}
	if err := s.OpenLocalShards(name); err != nil {
		return nil, err
	}
	return st, nil
}

// OpenLocalShards opens the local copies of the shards of index
func (s *State) OpenLocalShards(index string) error {
	var shards []int
	for _, sid := range s.Cluster.LocalShards() {
		if sid.Index == index {
			shards = append(shards, sid.Shard)
		}
	}
	_, err := s.DB.OpenIndex(index, shards)
	return err
}

// Count returns the searchable documents of the local copies of index
func (s *State) Count(index string) (int64, bool) {
	idx, ok := s.DB.GetIndex(index)
	if !ok {
		return 0, false
	}
	return idx.Count(), true
}

// IsLocalPrimary reports whether this node holds the primary of shard
func (s *State) IsLocalPrimary(shard bulk.ShardID) bool {
	return s.Cluster.IsLocalPrimary(shard)
}

// Index returns the layout of the named index
func (s *State) Index(name string) (*sharding.State, bool) {
	return s.Cluster.Index(name)
}
