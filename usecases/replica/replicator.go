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

// Package replica ships the primary's decisions for a batch to the
// replica copies of its shard
package replica

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/bulkshard/entities/bulk"
	enterrors "github.com/weaviate/bulkshard/entities/errors"
	"github.com/weaviate/bulkshard/usecases/sharding"
)

// Client applies a replica request on the copy held by host
type Client interface {
	ApplyBulk(ctx context.Context, host string, req *bulk.ReplicaRequest) error
}

// Topology knows where the copies of a shard live
type Topology interface {
	Replicas(shard bulk.ShardID) ([]sharding.Node, error)
	Copies(ctx context.Context, shard bulk.ShardID) (active, total int, err error)
}

// ShardFailer is told about copies that diverged from the primary
type ShardFailer interface {
	FailShard(shard bulk.ShardID, node string, cause error)
}

type Replicator struct {
	client   Client
	topology Topology
	failer   ShardFailer
	config   Config
	logger   logrus.FieldLogger
	metrics  *Metrics
}

func NewReplicator(client Client, topology Topology, failer ShardFailer, config Config,
	logger logrus.FieldLogger, metrics *Metrics,
) *Replicator {
	if metrics == nil {
		metrics = &Metrics{}
	}
	return &Replicator{
		client:   client,
		topology: topology,
		failer:   failer,
		config:   config.WithDefaults(),
		logger:   logger.WithField("action", "replicate_bulk"),
		metrics:  metrics,
	}
}

func (r *Replicator) Copies(ctx context.Context, shard bulk.ShardID) (int, int, error) {
	return r.topology.Copies(ctx, shard)
}

// Replicate writes req to every active replica copy concurrently. A copy
// that fails is reported to the shard failer; it never fails the batch.
// Copies that are not available are skipped, they recover from the
// primary when they come back.
func (r *Replicator) Replicate(ctx context.Context, req *bulk.ReplicaRequest) bulk.ShardInfo {
	start := time.Now()
	defer func() { r.metrics.ObserveWriteDuration(time.Since(start)) }()

	info := bulk.ShardInfo{Total: 1, Successful: 1}
	nodes, err := r.topology.Replicas(req.ShardID)
	if err != nil {
		r.logger.WithError(err).WithField("shard", req.ShardID.String()).
			Warn("cannot resolve replicas")
		return info
	}
	info.Total += len(nodes)
	if len(nodes) == 0 {
		return info
	}

	var (
		mu   sync.Mutex
		merr *multierror.Error
	)
	eg := enterrors.NewErrorGroupWrapper(r.logger, "shard", req.ShardID.String())
	eg.SetLimit(r.config.Parallelism)
	for _, node := range nodes {
		node := node
		eg.Go(func() error {
			err := r.replicateTo(ctx, node, req)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				info.Successful++
			case enterrors.IsShardNotAvailable(err):
				r.logger.WithError(err).WithField("node", node.Name).
					Debug("replica copy not available, skipping")
			default:
				merr = multierror.Append(merr, err)
				info.Failures = append(info.Failures, bulk.ReplicaFailure{
					Node:   node.Name,
					Status: enterrors.HTTPStatus(err),
					Err:    err,
				})
			}
			return nil
		}, node.Name)
	}
	if err := eg.Wait(); err != nil {
		r.logger.WithError(err).WithField("shard", req.ShardID.String()).
			Error("replication goroutine failed")
	}

	sort.Slice(info.Failures, func(i, j int) bool {
		return info.Failures[i].Node < info.Failures[j].Node
	})
	for _, f := range info.Failures {
		r.metrics.IncCopiesFailed()
		if r.failer != nil {
			r.failer.FailShard(req.ShardID, f.Node, f.Err)
		}
	}
	if merr.ErrorOrNil() != nil {
		r.metrics.IncWritesSucceedSome()
		r.logger.WithError(merr).WithField("shard", req.ShardID.String()).
			Warn("failed to replicate bulk to some copies")
	} else {
		r.metrics.IncWritesSucceedAll()
	}
	return info
}

// replicateTo applies req on one copy. A copy that has not seen the
// mapping the batch needs yet is asked again until the mapping wait runs
// out.
func (r *Replicator) replicateTo(ctx context.Context, node sharding.Node, req *bulk.ReplicaRequest) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.config.MappingRetryInitial
	eb.MaxElapsedTime = r.config.MappingWait

	op := func() error {
		err := r.client.ApplyBulk(ctx, node.Host, req)
		if err == nil || enterrors.IsRetryOnReplica(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		r.metrics.IncMappingRetries()
		r.logger.WithError(err).WithFields(logrus.Fields{
			"node": node.Name,
			"wait": wait,
		}).Debug("replica is waiting for a mapping update")
	}
	return backoff.RetryNotify(op, backoff.WithContext(eb, ctx), notify)
}
