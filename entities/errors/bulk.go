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
	"strings"
)

// ValidationError is returned before a batch is dispatched
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

// AddValidationError appends msg to err, creating it if needed
func AddValidationError(err *ValidationError, msg string) *ValidationError {
	if err == nil {
		err = &ValidationError{}
	}
	err.Errors = append(err.Errors, msg)
	return err
}

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Errors: []string{fmt.Sprintf(format, args...)}}
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// ParseError reports a malformed bulk body. Line is 1-based.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed bulk body at line [%d]: %s", e.Line, e.Reason)
}

func NewParseError(line int, format string, args ...interface{}) *ParseError {
	return &ParseError{Line: line, Reason: fmt.Sprintf(format, args...)}
}

func IsParse(err error) bool {
	var e *ParseError
	return errors.As(err, &e)
}

// VersionConflictError is an optimistic concurrency mismatch
type VersionConflictError struct {
	Index    string
	Type     string
	ID       string
	Current  int64
	Provided int64
	Reason   string
}

func (e *VersionConflictError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("[%s][%s]: version conflict, %s", e.Type, e.ID, e.Reason)
	}
	return fmt.Sprintf("[%s][%s]: version conflict, current [%d], provided [%d]",
		e.Type, e.ID, e.Current, e.Provided)
}

// DocumentAlreadyExistsError is returned for create operations on an
// existing document. It belongs to the conflict class.
type DocumentAlreadyExistsError struct {
	Index  string
	Type   string
	ID     string
	Reason string
}

func (e *DocumentAlreadyExistsError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("[%s][%s]: document already exists", e.Type, e.ID)
}

func IsDocumentAlreadyExists(err error) bool {
	var e *DocumentAlreadyExistsError
	return errors.As(err, &e)
}

// IsConflict reports whether err is of the optimistic concurrency class
func IsConflict(err error) bool {
	var e *VersionConflictError
	return errors.As(err, &e) || IsDocumentAlreadyExists(err)
}

// IsVersionConflict is narrower than IsConflict: only version mismatches
// qualify. Updates are retried on these alone; an upsert that races a
// create fails with the already-exists error.
func IsVersionConflict(err error) bool {
	var e *VersionConflictError
	return errors.As(err, &e)
}

// DocumentMissingError is returned by updates of absent documents that
// carry no upsert
type DocumentMissingError struct {
	Index  string
	Type   string
	ID     string
	Reason string
}

func (e *DocumentMissingError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("[%s][%s]: document missing", e.Type, e.ID)
}

func IsDocumentMissing(err error) bool {
	var e *DocumentMissingError
	return errors.As(err, &e)
}

// ShardRelocatedError means the primary can no longer serve writes, e.g.
// because it is being handed off to another node. The whole batch has to
// be resent.
type ShardRelocatedError struct {
	Index  string
	Shard  int
	Reason string
}

func (e *ShardRelocatedError) Error() string {
	return fmt.Sprintf("[%s][%d] shard relocated: %s", e.Index, e.Shard, e.Reason)
}

// ShardNotAvailableError is returned when a shard copy is closed or missing
type ShardNotAvailableError struct {
	Index  string
	Shard  int
	Reason string
}

func (e *ShardNotAvailableError) Error() string {
	return fmt.Sprintf("[%s][%d] shard not available: %s", e.Index, e.Shard, e.Reason)
}

func IsShardNotAvailable(err error) bool {
	var e *ShardNotAvailableError
	return errors.As(err, &e)
}

// UnavailableShardsError is returned when not enough copies are active to
// satisfy the requested write consistency
type UnavailableShardsError struct {
	Index  string
	Shard  int
	Reason string
}

func (e *UnavailableShardsError) Error() string {
	return fmt.Sprintf("[%s][%d] unavailable shards: %s", e.Index, e.Shard, e.Reason)
}

func IsUnavailableShards(err error) bool {
	var e *UnavailableShardsError
	return errors.As(err, &e)
}

// RetryOnReplicaError signals that a replica copy cannot apply an
// operation yet, because the mapping it needs has not reached it
type RetryOnReplicaError struct {
	Index  string
	Shard  int
	Fields []string
	Reason string
}

func (e *RetryOnReplicaError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("[%s][%d] mappings are not available on the replica yet, triggered update: %v",
			e.Index, e.Shard, e.Fields)
	}
	return fmt.Sprintf("[%s][%d] retry on replica: %s", e.Index, e.Shard, e.Reason)
}

func IsRetryOnReplica(err error) bool {
	var e *RetryOnReplicaError
	return errors.As(err, &e)
}

// RejectedError is returned when a node is already working on as many
// requests as it admits
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "rejected execution: " + e.Reason
}

func IsRejected(err error) bool {
	var e *RejectedError
	return errors.As(err, &e)
}

// IndexNotFoundError is returned for writes to an index that does not
// exist and may not be created implicitly
type IndexNotFoundError struct {
	Index string
}

func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("no such index [%s]", e.Index)
}

func IsIndexNotFound(err error) bool {
	var e *IndexNotFoundError
	return errors.As(err, &e)
}
