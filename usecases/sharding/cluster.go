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

package sharding

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/bulkshard/entities/bulk"
	enterrors "github.com/weaviate/bulkshard/entities/errors"
)

// Node is a member of the cluster
type Node struct {
	Name string `json:"name" yaml:"name"`
	Host string `json:"host" yaml:"host"`
}

type copyKey struct {
	shard bulk.ShardID
	node  string
}

// Cluster is the static topology of the node: the members, the indices
// and where their shard copies live. Copies reported as failed stop
// counting as active and stop receiving replicated writes.
type Cluster struct {
	mu      sync.RWMutex
	local   string
	nodes   map[string]Node
	names   []string
	indices map[string]*State
	failed  map[copyKey]error
	logger  logrus.FieldLogger
}

func NewCluster(local string, nodes []Node, logger logrus.FieldLogger) (*Cluster, error) {
	c := &Cluster{
		local:   local,
		nodes:   map[string]Node{},
		indices: map[string]*State{},
		failed:  map[copyKey]error{},
		logger:  logger.WithField("action", "cluster_topology"),
	}
	for _, n := range nodes {
		if _, ok := c.nodes[n.Name]; ok {
			return nil, errors.Errorf("duplicate node %q", n.Name)
		}
		c.nodes[n.Name] = n
		c.names = append(c.names, n.Name)
	}
	if _, ok := c.nodes[local]; !ok {
		return nil, errors.Errorf("local node %q is not a cluster member", local)
	}
	return c, nil
}

func (c *Cluster) LocalName() string {
	return c.local
}

// AddIndex places the shards of a new index. Adding an existing index
// returns its state unchanged.
func (c *Cluster) AddIndex(name string, config Config) (*State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.indices[name]; ok {
		return s, nil
	}
	s, err := InitState(name, config, c.names)
	if err != nil {
		return nil, err
	}
	c.indices[name] = s
	return s, nil
}

func (c *Cluster) Index(name string) (*State, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.indices[name]
	return s, ok
}

func (c *Cluster) IndexNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.indices))
	for name := range c.indices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Cluster) physical(shard bulk.ShardID) (Physical, error) {
	s, ok := c.indices[shard.Index]
	if !ok {
		return Physical{}, &enterrors.ShardNotAvailableError{
			Index: shard.Index, Shard: shard.Shard, Reason: "no such index",
		}
	}
	p, err := s.Shard(shard.Shard)
	if err != nil {
		return Physical{}, &enterrors.ShardNotAvailableError{
			Index: shard.Index, Shard: shard.Shard, Reason: err.Error(),
		}
	}
	return p, nil
}

// Primary returns the node holding the primary copy of shard
func (c *Cluster) Primary(shard bulk.ShardID) (Node, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, err := c.physical(shard)
	if err != nil {
		return Node{}, err
	}
	return c.nodes[p.Primary()], nil
}

// IsLocalPrimary reports whether this node holds the primary of shard
func (c *Cluster) IsLocalPrimary(shard bulk.ShardID) bool {
	n, err := c.Primary(shard)
	return err == nil && n.Name == c.local
}

// Replicas returns the active replica copies of shard
func (c *Cluster) Replicas(shard bulk.ShardID) ([]Node, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, err := c.physical(shard)
	if err != nil {
		return nil, err
	}
	var out []Node
	for _, name := range p.Replicas() {
		if _, failed := c.failed[copyKey{shard, name}]; failed {
			continue
		}
		out = append(out, c.nodes[name])
	}
	return out, nil
}

// Copies returns the number of active and configured copies of shard
func (c *Cluster) Copies(ctx context.Context, shard bulk.ShardID) (int, int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, err := c.physical(shard)
	if err != nil {
		return 0, 0, err
	}
	active := 0
	for _, name := range p.BelongsToNodes {
		if _, failed := c.failed[copyKey{shard, name}]; !failed {
			active++
		}
	}
	return active, len(p.BelongsToNodes), nil
}

// LocalShards returns every shard this node holds a copy of
func (c *Cluster) LocalShards() []bulk.ShardID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []bulk.ShardID
	for _, s := range c.indices {
		for _, p := range s.Physical {
			for _, name := range p.BelongsToNodes {
				if name == c.local {
					out = append(out, bulk.ShardID{Index: s.Index, Shard: p.Shard})
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Index != out[j].Index {
			return out[i].Index < out[j].Index
		}
		return out[i].Shard < out[j].Shard
	})
	return out
}

// FailShard takes the copy of shard on node out of replication until it is
// restored
func (c *Cluster) FailShard(shard bulk.ShardID, node string, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed[copyKey{shard, node}] = cause
	c.logger.WithError(cause).WithFields(logrus.Fields{
		"shard": shard.String(),
		"node":  node,
	}).Warn("marking shard copy as failed")
}

// RestoreShard puts a failed copy back into replication
func (c *Cluster) RestoreShard(shard bulk.ShardID, node string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.failed, copyKey{shard, node})
}

// RemoteNodes returns every member but the local node
func (c *Cluster) RemoteNodes() []Node {
	out := make([]Node, 0, len(c.names))
	for _, name := range c.names {
		if name != c.local {
			out = append(out, c.nodes[name])
		}
	}
	return out
}
