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

package clients

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helper to create a retryer with large backoff to detect immediate return
func newTestRetryer() *retryer {
	return &retryer{
		minBackOff:  time.Second,
		maxBackOff:  time.Second,
		timeoutUnit: time.Millisecond,
	}
}

func TestRetryerImmediateReturnOnContextErrors(t *testing.T) {
	for _, ctxErr := range []error{context.Canceled, context.DeadlineExceeded} {
		t.Run(ctxErr.Error(), func(t *testing.T) {
			r := newTestRetryer()
			calls := 0
			start := time.Now()
			err := r.retry(context.Background(), 9, func(ctx context.Context) (bool, error) {
				calls++
				return true, ctxErr
			})

			assert.ErrorIs(t, err, ctxErr)
			assert.Equal(t, 1, calls)
			assert.Less(t, time.Since(start), 200*time.Millisecond)
		})
	}
}

func TestRetryerStopsWhenWorkSaysSo(t *testing.T) {
	r := newTestRetryer()
	calls := 0
	err := r.retry(context.Background(), 9, func(ctx context.Context) (bool, error) {
		calls++
		return false, errors.New("conflict")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryerRetriesUntilSuccess(t *testing.T) {
	r := &retryer{minBackOff: time.Millisecond, maxBackOff: 2 * time.Millisecond}
	calls := 0
	err := r.retry(context.Background(), 9, func(ctx context.Context) (bool, error) {
		calls++
		if calls < 3 {
			return true, errors.New("busy")
		}
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryerGivesUp(t *testing.T) {
	r := &retryer{minBackOff: time.Millisecond, maxBackOff: 2 * time.Millisecond}
	calls := 0
	err := r.retry(context.Background(), 2, func(ctx context.Context) (bool, error) {
		calls++
		return true, errors.New("busy")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}
