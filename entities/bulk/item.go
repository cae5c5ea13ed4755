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
	"fmt"
	"time"

	"github.com/weaviate/bulkshard/entities/errors"
)

// ItemState tracks an item through one primary execution of its batch
type ItemState int

const (
	StatePending ItemState = iota
	StateExecuting
	StateRetrying
	StateSucceeded
	StateFailed
)

func (s ItemState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateExecuting:
		return "executing"
	case StateRetrying:
		return "retrying"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether s ends the item's current execution
func (s ItemState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// BatchItem is one operation of a shard batch. The primary may replace
// Operation with the index or delete an update translated into.
type BatchItem struct {
	Position        int
	Operation       Operation
	PrimaryResponse *ItemResponse
	IgnoreOnReplica bool
	State           ItemState
}

// SetPrimaryResponse records the primary's decision for the item. Failed
// and no-op items are not replayed on replicas.
func (i *BatchItem) SetPrimaryResponse(r *ItemResponse) {
	i.PrimaryResponse = r
	i.IgnoreOnReplica = r.IsFailed() || r.IsNoop()
	if r.IsFailed() {
		i.State = StateFailed
	} else {
		i.State = StateSucceeded
	}
}

// ShardID names one shard of an index
type ShardID struct {
	Index string `msgpack:"index" json:"index"`
	Shard int    `msgpack:"shard" json:"shard"`
}

func (s ShardID) String() string {
	return fmt.Sprintf("[%s][%d]", s.Index, s.Shard)
}

// Batch is the part of a bulk request targeting one shard. It is owned by
// a single shard action and lives as long as the client call.
type Batch struct {
	ShardID     ShardID
	Items       []*BatchItem
	Consistency ConsistencyLevel
	Refresh     bool
	Timeout     time.Duration
}

// NewBatch wraps ops in items. Positions are the index of each op in ops
// unless positions is given, in which case it maps ops to their position
// in the originating bulk request.
func NewBatch(shard ShardID, ops []Operation, positions ...int) *Batch {
	b := &Batch{ShardID: shard, Items: make([]*BatchItem, len(ops))}
	for i, op := range ops {
		pos := i
		if len(positions) == len(ops) {
			pos = positions[i]
		}
		b.Items[i] = &BatchItem{Position: pos, Operation: op}
	}
	return b
}

// Validate runs before the batch is dispatched. Every invalid item is
// reported, prefixed with its position.
func (b *Batch) Validate() error {
	if b == nil || len(b.Items) == 0 {
		return errors.NewValidationError("no requests added")
	}
	var ve *errors.ValidationError
	for _, item := range b.Items {
		if item.Operation == nil {
			ve = errors.AddValidationError(ve, fmt.Sprintf("item [%d]: operation is missing", item.Position))
			continue
		}
		if err := item.Operation.Validate(); err != nil {
			ve = errors.AddValidationError(ve, fmt.Sprintf("item [%d]: %v", item.Position, err))
		}
	}
	if ve != nil {
		return ve
	}
	return nil
}

// Operations returns the current operation of every item
func (b *Batch) Operations() []Operation {
	ops := make([]Operation, len(b.Items))
	for i, item := range b.Items {
		ops[i] = item.Operation
	}
	return ops
}
