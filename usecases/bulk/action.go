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

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/bulkshard/entities/bulk"
	"github.com/weaviate/bulkshard/entities/errors"
)

// Primary runs a batch on the primary copy of its shard
type Primary interface {
	ApplyOnPrimary(ctx context.Context, batch *bulk.Batch) (bulk.PrimaryResult, error)
}

// Replicas knows the copies of a shard and ships finished batches to them
type Replicas interface {
	// Copies returns the number of active copies of shard and the number of
	// copies it is configured with, both including the primary
	Copies(ctx context.Context, shard bulk.ShardID) (active, total int, err error)
	// Replicate applies req on every replica copy. It never fails: copies
	// that could not apply req are reported in the returned info.
	Replicate(ctx context.Context, req *bulk.ReplicaRequest) bulk.ShardInfo
}

// ShardAction drives a batch through the write consistency check, the
// primary and the replicas
type ShardAction struct {
	primary  Primary
	replicas Replicas
	config   Config
	logger   logrus.FieldLogger
	metrics  *Metrics
}

func NewShardAction(primary Primary, replicas Replicas, config Config,
	logger logrus.FieldLogger, metrics *Metrics,
) *ShardAction {
	if metrics == nil {
		metrics = &Metrics{}
	}
	return &ShardAction{
		primary:  primary,
		replicas: replicas,
		config:   config.WithDefaults(),
		logger:   logger.WithField("action", "bulk_shard_action"),
		metrics:  metrics,
	}
}

// Execute runs batch to completion. Item failures are part of the
// response; an error means the batch as a whole could not be applied.
func (a *ShardAction) Execute(ctx context.Context, batch *bulk.Batch) (*bulk.ShardResponse, error) {
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	batchCtx, cancel := context.WithTimeout(ctx, a.config.timeout(batch))
	defer cancel()

	if err := a.waitForCopies(batchCtx, batch); err != nil {
		return nil, err
	}
	done, err := a.runPrimary(batchCtx, batch)
	if err != nil {
		return nil, err
	}

	resp := done.Response
	resp.ShardInfo = a.replicas.Replicate(batchCtx, done.Replica)
	return resp, nil
}

// waitForCopies blocks until enough copies are active to satisfy the
// write consistency of batch
func (a *ShardAction) waitForCopies(ctx context.Context, batch *bulk.Batch) error {
	level := a.config.consistency(batch)
	var last error
	check := func() error {
		active, total, err := a.replicas.Copies(ctx, batch.ShardID)
		if err != nil {
			last = err
			if errors.IsShardNotAvailable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if required := level.Required(total); active < required {
			last = &errors.UnavailableShardsError{
				Index: batch.ShardID.Index,
				Shard: batch.ShardID.Shard,
				Reason: fmt.Sprintf("not enough active copies to meet write consistency of [%s] (have %d, needed %d)",
					level, active, required),
			}
			return last
		}
		return nil
	}

	err := backoff.Retry(check, backoff.WithContext(a.newBackOff(), ctx))
	if err != nil && last != nil {
		return last
	}
	return err
}

// runPrimary resends batch while the primary reports it as retriable and
// the batch deadline has not passed
func (a *ShardAction) runPrimary(ctx context.Context, batch *bulk.Batch) (*bulk.Completed, error) {
	b := a.newBackOff()
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			a.metrics.IncPrimaryResends()
		}
		result, err := a.primary.ApplyOnPrimary(ctx, batch)
		if err != nil {
			return nil, err
		}

		var cause error
		switch r := result.(type) {
		case *bulk.Completed:
			return r, nil
		case *bulk.Retriable:
			batch, cause = r.Batch, r.Cause
		default:
			return nil, fmt.Errorf("unexpected primary result %T", result)
		}

		next := b.NextBackOff()
		a.logger.WithError(cause).WithFields(logrus.Fields{
			"shard":   batch.ShardID.String(),
			"attempt": attempt,
			"wait":    next,
		}).Debug("resending batch to primary")
		if next == backoff.Stop {
			return nil, cause
		}
		t := time.NewTimer(next)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, cause
		case <-t.C:
		}
	}
}

func (a *ShardAction) newBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = a.config.RetryInitial
	eb.MaxInterval = a.config.RetryMaxInterval
	eb.MaxElapsedTime = 0
	eb.Reset()
	return eb
}
