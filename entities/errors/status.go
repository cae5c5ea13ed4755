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

package errors

import (
	"errors"
	"fmt"
)

// StatusCode communicates the cause of a failure between shard copies
type StatusCode int

const (
	StatusOK            StatusCode = 0
	StatusIndexNotFound StatusCode = iota + 200
	StatusShardNotFound
	StatusShardNotAvailable
	StatusMappingPending
	StatusRelocated
	StatusConflict StatusCode = iota + 300
	StatusAlreadyExists
	StatusDocumentMissing
	StatusInvalid
	StatusInternal
)

// StatusText returns a text for the status code. It returns the empty
// string if the code is unknown.
func StatusText(code StatusCode) string {
	switch code {
	case StatusOK:
		return "ok"
	case StatusIndexNotFound:
		return "index not found"
	case StatusShardNotFound:
		return "shard not found"
	case StatusShardNotAvailable:
		return "shard not available"
	case StatusMappingPending:
		return "mapping not yet available"
	case StatusRelocated:
		return "shard relocated"
	case StatusConflict:
		return "conflict"
	case StatusAlreadyExists:
		return "already exists"
	case StatusDocumentMissing:
		return "document missing"
	case StatusInvalid:
		return "invalid request"
	case StatusInternal:
		return "internal error"
	default:
		return ""
	}
}

// Error is the wire representation of a failure reported by a shard copy
type Error struct {
	Code StatusCode `json:"code"`
	Msg  string     `json:"msg,omitempty"`
	Err  error      `json:"-"`
}

// Empty checks whether e is an empty error which equivalent to e == nil
func (e *Error) Empty() bool {
	return e.Code == StatusOK && e.Msg == "" && e.Err == nil
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", StatusText(e.Code), e.Msg)
	}
	return fmt.Sprintf("%s %q: %v", StatusText(e.Code), e.Msg, e.Err)
}

func (e *Error) IsStatusCode(sc StatusCode) bool {
	return e.Code == sc
}

// ToStatus converts err into its wire representation. Typed bulk errors
// keep their class, everything else becomes StatusInternal.
func ToStatus(err error) *Error {
	if err == nil {
		return &Error{}
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	code := StatusInternal
	switch {
	case IsRetryOnReplica(err):
		code = StatusMappingPending
	case IsTransient(err):
		code = StatusRelocated
	case IsShardNotAvailable(err):
		code = StatusShardNotAvailable
	case IsDocumentAlreadyExists(err):
		code = StatusAlreadyExists
	case IsConflict(err):
		code = StatusConflict
	case IsDocumentMissing(err):
		code = StatusDocumentMissing
	case IsValidation(err), IsParse(err):
		code = StatusInvalid
	case IsIndexNotFound(err):
		code = StatusIndexNotFound
	}
	return &Error{Code: code, Msg: err.Error(), Err: err}
}

// FromStatus restores a typed error from its wire representation so that
// callers can keep using the Is* predicates across the network boundary.
func FromStatus(index string, shard int, se *Error) error {
	if se == nil || se.Empty() {
		return nil
	}
	switch se.Code {
	case StatusMappingPending:
		return &RetryOnReplicaError{Index: index, Shard: shard, Reason: se.Msg}
	case StatusRelocated:
		return &ShardRelocatedError{Index: index, Shard: shard, Reason: se.Msg}
	case StatusShardNotAvailable, StatusShardNotFound, StatusIndexNotFound:
		return &ShardNotAvailableError{Index: index, Shard: shard, Reason: se.Msg}
	case StatusConflict:
		return &VersionConflictError{Index: index, Reason: se.Msg}
	case StatusAlreadyExists:
		return &DocumentAlreadyExistsError{Index: index, Reason: se.Msg}
	case StatusDocumentMissing:
		return &DocumentMissingError{Index: index, Reason: se.Msg}
	default:
		return se
	}
}
