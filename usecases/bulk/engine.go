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
	"fmt"
	"time"

	"github.com/weaviate/bulkshard/entities/bulk"
	"github.com/weaviate/bulkshard/entities/translog"
)

// Origin tells the engine whether it applies a decision (primary) or
// replays one (replica)
type Origin int

const (
	OriginPrimary Origin = iota
	OriginReplica
)

func (o Origin) String() string {
	if o == OriginReplica {
		return "replica"
	}
	return "primary"
}

type IndexResult struct {
	Version  int64
	Created  bool
	Location translog.Location
}

type DeleteResult struct {
	Version  int64
	Found    bool
	Location translog.Location
}

// Document is the stored state of a document as seen by updates
type Document struct {
	ID        string
	Type      string
	Version   int64
	Found     bool
	Source    []byte
	Routing   string
	Parent    string
	Timestamp string
	TTL       time.Duration
}

// Getter reads the current state of a document. Missing documents are
// returned with Found set to false and a nil error.
type Getter interface {
	Get(ctx context.Context, typ, id string) (*Document, error)
}

// Engine is one shard copy. It serializes writes to the same document and
// applies the version rules of the operation's version type.
type Engine interface {
	Getter
	Index(ctx context.Context, op *bulk.IndexOp, origin Origin) (IndexResult, error)
	Delete(ctx context.Context, op *bulk.DeleteOp, origin Origin) (DeleteResult, error)
	// Refresh makes all writes so far visible to readers
	Refresh(ctx context.Context) error
	// Sync makes the translog durable up to and including loc
	Sync(ctx context.Context, loc translog.Location) error
}

// Engines resolves the local copy of a shard
type Engines interface {
	Engine(shard bulk.ShardID) (Engine, error)
}

type EngineFunc func(shard bulk.ShardID) (Engine, error)

func (f EngineFunc) Engine(shard bulk.ShardID) (Engine, error) {
	return f(shard)
}

// Durability controls whether a batch fsyncs the translog before it
// returns
type Durability string

const (
	DurabilityRequest Durability = "request"
	DurabilityAsync   Durability = "async"
)

func ParseDurability(s string) (Durability, error) {
	switch d := Durability(s); d {
	case DurabilityRequest, DurabilityAsync:
		return d, nil
	default:
		return "", fmt.Errorf("unknown translog durability %q", s)
	}
}
