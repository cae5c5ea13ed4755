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
	"github.com/weaviate/bulkshard/entities/bulk"
	"github.com/weaviate/bulkshard/entities/errors"
)

// ReplicaAction is what a replica does with a failed item
type ReplicaAction int

const (
	// ReplicaFail fails the replica copy
	ReplicaFail ReplicaAction = iota
	// ReplicaIgnore skips the item. The replica already reflects the
	// primary's decision or will receive it through recovery.
	ReplicaIgnore
	// ReplicaRetry asks the sender to wait for the mapping and resend
	ReplicaRetry
)

func (a ReplicaAction) String() string {
	switch a {
	case ReplicaIgnore:
		return "ignore"
	case ReplicaRetry:
		return "retry"
	default:
		return "fail"
	}
}

type tolerance struct {
	name   string
	match  func(err error, op bulk.Operation) bool
	action ReplicaAction
}

// replicaTolerance is checked top to bottom, the first match wins.
// Anything unmatched fails the copy.
var replicaTolerance = []tolerance{
	{
		name:   "mapping not yet visible",
		match:  func(err error, _ bulk.Operation) bool { return errors.IsRetryOnReplica(err) },
		action: ReplicaRetry,
	},
	{
		name:   "shard copy not available",
		match:  func(err error, _ bulk.Operation) bool { return errors.IsShardNotAvailable(err) },
		action: ReplicaIgnore,
	},
	{
		name:   "newer version already applied",
		match:  func(err error, _ bulk.Operation) bool { return errors.IsVersionConflict(err) },
		action: ReplicaIgnore,
	},
	{
		name:   "document already exists",
		match:  func(err error, _ bulk.Operation) bool { return errors.IsDocumentAlreadyExists(err) },
		action: ReplicaIgnore,
	},
	{
		name: "document already absent",
		match: func(err error, op bulk.Operation) bool {
			_, isDelete := op.(*bulk.DeleteOp)
			return isDelete && errors.IsDocumentMissing(err)
		},
		action: ReplicaIgnore,
	},
}

// classifyReplicaFailure returns the action for err raised while replaying
// op, and the name of the matching rule
func classifyReplicaFailure(err error, op bulk.Operation) (ReplicaAction, string) {
	for _, t := range replicaTolerance {
		if t.match(err, op) {
			return t.action, t.name
		}
	}
	return ReplicaFail, ""
}
