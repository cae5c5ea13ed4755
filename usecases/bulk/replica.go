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

	"github.com/sirupsen/logrus"

	"github.com/weaviate/bulkshard/entities/bulk"
	"github.com/weaviate/bulkshard/entities/translog"
)

// ApplyOnReplica replays the primary's decisions on the local replica copy
// of req.ShardID. Items are applied with the version the primary
// assigned. Tolerated failures are skipped; any other failure is returned
// and means this copy has diverged.
func (e *Executor) ApplyOnReplica(ctx context.Context, req *bulk.ReplicaRequest) error {
	defer e.metrics.ObserveReplica(time.Now())

	eng, err := e.engines.Engine(req.ShardID)
	if err != nil {
		return fmt.Errorf("%s: resolve replica: %w", req.ShardID, err)
	}
	logger := e.logger.WithFields(logrus.Fields{
		"shard":  req.ShardID.String(),
		"origin": OriginReplica.String(),
	})

	var location translog.Location
	for _, item := range req.Items {
		if item.IgnoreOnReplica {
			continue
		}
		loc, err := replay(ctx, eng, item.Operation)
		if err != nil {
			action, rule := classifyReplicaFailure(err, item.Operation)
			if action != ReplicaIgnore {
				return err
			}
			e.metrics.IncReplicaIgnored()
			logger.WithError(err).WithFields(logrus.Fields{
				"position": item.Position,
				"rule":     rule,
			}).Trace("ignoring replica failure")
			continue
		}
		if location, err = translog.LocationToSync(location, loc); err != nil {
			return fmt.Errorf("%s: item [%d]: %w", req.ShardID, item.Position, err)
		}
	}

	e.processAfter(ctx, eng, req.Refresh, location)
	return nil
}

func replay(ctx context.Context, eng Engine, op bulk.Operation) (translog.Location, error) {
	switch op := op.(type) {
	case *bulk.IndexOp:
		replayed := *op
		replayed.Create = false
		res, err := eng.Index(ctx, &replayed, OriginReplica)
		return res.Location, err
	case *bulk.DeleteOp:
		res, err := eng.Delete(ctx, op, OriginReplica)
		return res.Location, err
	default:
		return translog.Location{}, fmt.Errorf("unexpected operation %T on replica", op)
	}
}
