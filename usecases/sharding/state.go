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

// Package sharding assigns documents to shards and shard copies to nodes
package sharding

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/pkg/errors"
	"github.com/spaolacci/murmur3"
)

const (
	DefaultShards   = 5
	DefaultReplicas = 1
)

// Config is the layout of an index
type Config struct {
	Shards   int `json:"shards" yaml:"shards"`
	Replicas int `json:"replicas" yaml:"replicas"`
}

func (c Config) WithDefaults() Config {
	if c.Shards <= 0 {
		c.Shards = DefaultShards
	}
	if c.Replicas < 0 {
		c.Replicas = 0
	}
	return c
}

// Physical is one shard and the nodes holding a copy of it. The first node
// holds the primary.
type Physical struct {
	Shard          int      `json:"shard"`
	BelongsToNodes []string `json:"belongsToNodes"`
}

// Primary returns the node holding the primary copy
func (p Physical) Primary() string {
	return p.BelongsToNodes[0]
}

// Replicas returns the nodes holding replica copies
func (p Physical) Replicas() []string {
	return p.BelongsToNodes[1:]
}

type State struct {
	Index    string     `json:"index"`
	Config   Config     `json:"config"`
	Physical []Physical `json:"physical"`
}

// InitState spreads the copies of every shard over nodes. Copies of the
// same shard never share a node, so replicas are capped at len(nodes)-1.
func InitState(index string, config Config, nodes []string) (*State, error) {
	if len(nodes) == 0 {
		return nil, errors.Errorf("index %q: no nodes to place shards on", index)
	}
	config = config.WithDefaults()
	if max := len(nodes) - 1; config.Replicas > max {
		config.Replicas = max
	}

	s := &State{Index: index, Config: config, Physical: make([]Physical, config.Shards)}
	for i := range s.Physical {
		owners := make([]string, config.Replicas+1)
		for r := range owners {
			owners[r] = nodes[(i+r)%len(nodes)]
		}
		s.Physical[i] = Physical{Shard: i, BelongsToNodes: owners}
	}
	return s, nil
}

// ShardFor returns the shard a routing value belongs to
func (s *State) ShardFor(routing string) int {
	return floorMod(int(int32(hashRouting(routing))), len(s.Physical))
}

func (s *State) Shard(shard int) (Physical, error) {
	if shard < 0 || shard >= len(s.Physical) {
		return Physical{}, fmt.Errorf("index %q has no shard %d", s.Index, shard)
	}
	return s.Physical[shard], nil
}

// hashRouting is murmur3 over the UTF-16 code units of routing, little
// endian, so that placement does not depend on the string encoding
func hashRouting(routing string) uint32 {
	units := utf16.Encode([]rune(routing))
	buf := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[2*i:], u)
	}
	return murmur3.Sum32(buf)
}

func floorMod(x, n int) int {
	m := x % n
	if m < 0 {
		m += n
	}
	return m
}
