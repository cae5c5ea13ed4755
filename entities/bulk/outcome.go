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
	"net/http"

	"github.com/weaviate/bulkshard/entities/errors"
)

// Result describes what a successful item did to the document
type Result string

const (
	ResultCreated  Result = "created"
	ResultUpdated  Result = "updated"
	ResultDeleted  Result = "deleted"
	ResultNotFound Result = "not_found"
	ResultNoop     Result = "noop"
)

// Outcome of one item on the primary. It is either a Success or a Failure.
type Outcome interface {
	Failed() bool

	outcome()
}

// GetResult is the document view returned by updates that asked for fields
type GetResult struct {
	Found   bool                   `json:"found"`
	Version int64                  `json:"_version,omitempty"`
	Source  []byte                 `json:"-"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

type Success struct {
	Result  Result
	Version int64
	// Created is set by index operations that wrote a new document
	Created bool
	// Found is set by deletes that removed an existing document
	Found bool
	Get   *GetResult
}

func (Success) Failed() bool { return false }
func (Success) outcome()     {}

type Failure struct {
	Kind   errors.Kind
	Status int
	Cause  error
}

// NewFailure classifies err
func NewFailure(err error) Failure {
	return Failure{Kind: errors.KindOf(err), Status: errors.HTTPStatus(err), Cause: err}
}

func (Failure) Failed() bool { return true }
func (Failure) outcome()     {}

func (f Failure) Message() string {
	if f.Cause == nil {
		return http.StatusText(f.Status)
	}
	return f.Cause.Error()
}

// ItemResponse is the primary's answer for one item. It keeps the identity
// of the request line so failed items can be correlated by the caller.
type ItemResponse struct {
	Position int
	OpType   OpType
	Index    string
	Type     string
	ID       string
	Outcome  Outcome
}

func NewItemResponse(position int, opType OpType, op Operation, outcome Outcome) *ItemResponse {
	index, typ, id := op.Target()
	return &ItemResponse{
		Position: position,
		OpType:   opType,
		Index:    index,
		Type:     typ,
		ID:       id,
		Outcome:  outcome,
	}
}

func (r *ItemResponse) IsFailed() bool {
	return r != nil && r.Outcome != nil && r.Outcome.Failed()
}

func (r *ItemResponse) IsNoop() bool {
	if r == nil {
		return false
	}
	s, ok := r.Outcome.(Success)
	return ok && s.Result == ResultNoop
}

// Failure returns the failure outcome, if any
func (r *ItemResponse) Failure() (Failure, bool) {
	if r == nil {
		return Failure{}, false
	}
	f, ok := r.Outcome.(Failure)
	return f, ok
}

// ReplicaFailure is a shard copy that could not apply a batch
type ReplicaFailure struct {
	Node   string
	Status int
	Err    error
}

// ShardInfo counts the copies a batch was written to
type ShardInfo struct {
	Total      int
	Successful int
	Failures   []ReplicaFailure
}
