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
	"fmt"
	"net/http"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		code  StatusCode
		check func(error) bool
	}{
		{"mapping pending", &RetryOnReplicaError{Index: "books", Fields: []string{"title"}}, StatusMappingPending, IsRetryOnReplica},
		{"relocated", &ShardRelocatedError{Index: "books", Reason: "handoff"}, StatusRelocated, IsTransient},
		{"not available", &ShardNotAvailableError{Index: "books"}, StatusShardNotAvailable, IsShardNotAvailable},
		{"version conflict", &VersionConflictError{ID: "1", Current: 2, Provided: 1}, StatusConflict, IsVersionConflict},
		{"already exists", &DocumentAlreadyExistsError{ID: "1"}, StatusAlreadyExists, IsDocumentAlreadyExists},
		{"missing", &DocumentMissingError{ID: "1"}, StatusDocumentMissing, IsDocumentMissing},
		{"wrapped conflict", fmt.Errorf("apply: %w", &VersionConflictError{ID: "1"}), StatusConflict, IsConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := ToStatus(tt.err)
			assert.Equal(t, tt.code, se.Code)
			assert.Equal(t, tt.err.Error(), se.Msg)

			restored := FromStatus("books", 0, &Error{Code: se.Code, Msg: se.Msg})
			require.Error(t, restored)
			assert.True(t, tt.check(restored))
		})
	}

	t.Run("nil is empty", func(t *testing.T) {
		assert.True(t, ToStatus(nil).Empty())
		assert.NoError(t, FromStatus("books", 0, &Error{}))
	})

	t.Run("unknown errors are internal", func(t *testing.T) {
		se := ToStatus(errors.New("disk full"))
		assert.True(t, se.IsStatusCode(StatusInternal))
		assert.Equal(t, se, FromStatus("books", 0, se))
	})
}

func TestKindAndHTTPStatus(t *testing.T) {
	tests := []struct {
		err    error
		kind   Kind
		status int
	}{
		{&VersionConflictError{ID: "1"}, KindVersionConflict, http.StatusConflict},
		{&DocumentAlreadyExistsError{ID: "1"}, KindAlreadyExists, http.StatusConflict},
		{&DocumentMissingError{ID: "1"}, KindDocumentMissing, http.StatusNotFound},
		{NewNotPrimary("books", 1), KindRetryOnPrimary, http.StatusServiceUnavailable},
		{&UnavailableShardsError{Index: "books"}, KindUnavailableShards, http.StatusServiceUnavailable},
		{NewValidationError("no requests added"), KindIllegalArgument, http.StatusBadRequest},
		{NewParseError(3, "unexpected token"), KindParse, http.StatusBadRequest},
		{fmt.Errorf("index: %w", context.DeadlineExceeded), KindTimeout, http.StatusRequestTimeout},
		{errors.New("boom"), KindEngine, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestParseErrorNamesLine(t *testing.T) {
	err := NewParseError(7, "unknown parameter [foo]")
	assert.Equal(t, "malformed bulk body at line [7]: unknown parameter [foo]", err.Error())
}

func TestErrorGroupWrapperRecoversPanics(t *testing.T) {
	logger, hook := test.NewNullLogger()
	eg := NewErrorGroupWrapper(logger, "shard", 3)

	eg.Go(func() error { return nil })
	eg.Go(func() error { panic("replica exploded") })

	err := eg.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replica exploded")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "error_group", hook.LastEntry().Data["action"])
}

func TestErrorGroupWrapperReturnsFirstError(t *testing.T) {
	logger, _ := test.NewNullLogger()
	eg := NewErrorGroupWrapper(logger)
	eg.Go(func() error { return errors.New("copy failed") })
	assert.EqualError(t, eg.Wait(), "copy failed")
}
