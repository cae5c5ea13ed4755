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
	"context"
	"errors"
	"net/http"
)

// Kind is the error type name reported to clients for a failed item
type Kind string

const (
	KindVersionConflict   Kind = "version_conflict_engine_exception"
	KindAlreadyExists     Kind = "document_already_exists_exception"
	KindDocumentMissing   Kind = "document_missing_exception"
	KindShardNotAvailable Kind = "shard_not_available_exception"
	KindUnavailableShards Kind = "unavailable_shards_exception"
	KindRetryOnPrimary    Kind = "retry_on_primary_exception"
	KindRetryOnReplica    Kind = "retry_on_replica_exception"
	KindIllegalArgument   Kind = "illegal_argument_exception"
	KindParse             Kind = "parse_exception"
	KindTimeout           Kind = "timeout_exception"
	KindEngine            Kind = "engine_exception"
	KindIndexNotFound     Kind = "index_not_found_exception"
	KindRejected          Kind = "rejected_execution_exception"
)

// KindOf classifies err for the per-item failure outcome
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case IsVersionConflict(err):
		return KindVersionConflict
	case IsDocumentAlreadyExists(err):
		return KindAlreadyExists
	case IsDocumentMissing(err):
		return KindDocumentMissing
	case IsTransient(err):
		return KindRetryOnPrimary
	case IsRetryOnReplica(err):
		return KindRetryOnReplica
	case IsUnavailableShards(err):
		return KindUnavailableShards
	case IsShardNotAvailable(err):
		return KindShardNotAvailable
	case IsValidation(err):
		return KindIllegalArgument
	case IsParse(err):
		return KindParse
	case IsIndexNotFound(err):
		return KindIndexNotFound
	case IsRejected(err):
		return KindRejected
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindEngine
	}
}

// HTTPStatus maps err to the status reported for a failed item or call
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsConflict(err):
		return http.StatusConflict
	case IsDocumentMissing(err), IsIndexNotFound(err):
		return http.StatusNotFound
	case IsValidation(err), IsParse(err):
		return http.StatusBadRequest
	case IsRejected(err):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	case IsTransient(err), IsShardNotAvailable(err), IsUnavailableShards(err),
		IsRetryOnReplica(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
