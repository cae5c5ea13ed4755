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
	"github.com/weaviate/bulkshard/entities/translog"
)

// ShardResponse is the ordered answer of a primary for its batch
type ShardResponse struct {
	ShardID   ShardID
	Items     []*ItemResponse
	Location  translog.Location
	ShardInfo ShardInfo
}

// HasFailures reports whether any item failed
func (r *ShardResponse) HasFailures() bool {
	for _, item := range r.Items {
		if item.IsFailed() {
			return true
		}
	}
	return false
}

// ResolvedItem is the primary's final decision for an item as shipped to
// replicas. Operation is a private copy and never an *UpdateOp.
type ResolvedItem struct {
	Position        int
	Operation       Operation
	IgnoreOnReplica bool
}

// ReplicaRequest is what replica copies replay
type ReplicaRequest struct {
	ShardID ShardID
	Items   []ResolvedItem
	Refresh bool
}

// PrimaryResult is returned by the primary executor. It is either
// *Completed or *Retriable.
type PrimaryResult interface {
	primaryResult()
}

// Completed means every item has an outcome and the batch can be
// replicated
type Completed struct {
	Response *ShardResponse
	Replica  *ReplicaRequest
}

// Retriable means the primary could not keep serving the batch. Version
// changes made by the aborted run are rolled back, so Batch can be resent
// as is.
type Retriable struct {
	Batch *Batch
	Cause error
}

func (*Completed) primaryResult() {}
func (*Retriable) primaryResult() {}
