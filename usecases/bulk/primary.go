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
	"github.com/weaviate/bulkshard/entities/errors"
	"github.com/weaviate/bulkshard/entities/translog"
)

type requestedVersion struct {
	version     int64
	versionType bulk.VersionType
}

// primaryRun is one execution of a batch on the primary
type primaryRun struct {
	*Executor
	engine   Engine
	batch    *bulk.Batch
	logger   logrus.FieldLogger
	location translog.Location
}

// ApplyOnPrimary executes the items of batch in order. Index and delete
// operations are stamped with the version the engine assigned, updates are
// replaced by the write they translated into. A failing item never stops
// the batch. If the shard stops being primary, version stamps are rolled
// back and a *bulk.Retriable is returned so the same batch can be resent.
//
// The error is reserved for faults of the executor itself.
func (e *Executor) ApplyOnPrimary(ctx context.Context, batch *bulk.Batch) (bulk.PrimaryResult, error) {
	defer e.metrics.ObservePrimary(time.Now())

	eng, err := e.engines.Engine(batch.ShardID)
	if err != nil {
		if errors.IsShardNotAvailable(err) || errors.IsTransient(err) {
			return &bulk.Retriable{Batch: batch, Cause: err}, nil
		}
		return nil, fmt.Errorf("%s: resolve primary: %w", batch.ShardID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.timeout(batch))
	defer cancel()

	run := &primaryRun{
		Executor: e,
		engine:   eng,
		batch:    batch,
		logger:   e.logger.WithField("shard", batch.ShardID.String()),
	}
	requested := make([]requestedVersion, len(batch.Items))
	for i, item := range batch.Items {
		requested[i].version, requested[i].versionType = item.Operation.Versioning()
		item.State = bulk.StatePending
	}

	for k, item := range batch.Items {
		item.State = bulk.StateExecuting
		loc, err := run.execute(ctx, item)
		if err != nil {
			run.rollback(k, requested)
			run.logger.WithError(err).WithField("position", item.Position).
				Debug("primary can no longer serve the batch")
			return &bulk.Retriable{Batch: batch, Cause: err}, nil
		}
		if loc.IsSet() {
			if run.location, err = translog.LocationToSync(run.location, loc); err != nil {
				return nil, fmt.Errorf("%s: item [%d]: %w", batch.ShardID, item.Position, err)
			}
		}
		e.metrics.ObserveItem(item.PrimaryResponse)
	}

	e.processAfter(ctx, eng, batch.Refresh, run.location)
	return run.completed(), nil
}

// execute runs one item. The returned error is always transient; every
// other failure is recorded on the item.
func (r *primaryRun) execute(ctx context.Context, item *bulk.BatchItem) (translog.Location, error) {
	switch op := item.Operation.(type) {
	case *bulk.IndexOp:
		res, err := r.applyIndex(ctx, op)
		if err != nil {
			return translog.Location{}, r.fail(item, op.OpType(), op, err)
		}
		item.SetPrimaryResponse(bulk.NewItemResponse(item.Position, op.OpType(), op, indexSuccess(res, nil)))
		return res.Location, nil
	case *bulk.DeleteOp:
		res, err := r.applyDelete(ctx, op)
		if err != nil {
			return translog.Location{}, r.fail(item, bulk.OpDelete, op, err)
		}
		item.SetPrimaryResponse(bulk.NewItemResponse(item.Position, bulk.OpDelete, op, deleteSuccess(res, nil)))
		return res.Location, nil
	case *bulk.UpdateOp:
		return r.update(ctx, item, op)
	default:
		err := fmt.Errorf("unexpected operation %T", op)
		item.SetPrimaryResponse(&bulk.ItemResponse{Position: item.Position, Outcome: bulk.NewFailure(err)})
		return translog.Location{}, nil
	}
}

func (r *primaryRun) applyIndex(ctx context.Context, op *bulk.IndexOp) (IndexResult, error) {
	if err := ctx.Err(); err != nil {
		return IndexResult{}, err
	}
	res, err := r.engine.Index(ctx, op, OriginPrimary)
	if err != nil {
		return res, err
	}
	op.SetVersioning(res.Version, op.VersionType.ForReplication())
	return res, nil
}

func (r *primaryRun) applyDelete(ctx context.Context, op *bulk.DeleteOp) (DeleteResult, error) {
	if err := ctx.Err(); err != nil {
		return DeleteResult{}, err
	}
	res, err := r.engine.Delete(ctx, op, OriginPrimary)
	if err != nil {
		return res, err
	}
	op.SetVersioning(res.Version, op.VersionType.ForReplication())
	return res, nil
}

// fail records err on item unless it is transient, in which case it is
// returned. A conflict on an item that already carries a response from an
// earlier run of this batch keeps that response: the item was applied
// before the primary went away.
func (r *primaryRun) fail(item *bulk.BatchItem, opType bulk.OpType, op bulk.Operation, err error) error {
	if errors.IsTransient(err) {
		return err
	}

	log := r.logger.WithError(err).WithFields(logrus.Fields{
		"position": item.Position,
		"op_type":  opType,
	})
	if errors.IsConflict(err) {
		log.Trace("failed to execute bulk item")
	} else {
		log.Debug("failed to execute bulk item")
	}

	if prev := item.PrimaryResponse; prev != nil && errors.IsConflict(err) {
		if _, isUpdate := item.Operation.(*bulk.UpdateOp); !isUpdate {
			s, _ := prev.Outcome.(bulk.Success)
			_, vt := item.Operation.Versioning()
			if s.Version > 0 {
				item.Operation.SetVersioning(s.Version, vt.ForReplication())
			}
		}
		item.SetPrimaryResponse(prev)
		return nil
	}
	item.SetPrimaryResponse(bulk.NewItemResponse(item.Position, opType, op, bulk.NewFailure(err)))
	return nil
}

// rollback restores the requested versions of the items before position k
// and resets every item touched by this run
func (r *primaryRun) rollback(k int, requested []requestedVersion) {
	for j, item := range r.batch.Items {
		if j > k {
			break
		}
		if j < k {
			item.Operation.SetVersioning(requested[j].version, requested[j].versionType)
		}
		item.State = bulk.StatePending
	}
}

func (r *primaryRun) completed() *bulk.Completed {
	resp := &bulk.ShardResponse{
		ShardID:  r.batch.ShardID,
		Items:    make([]*bulk.ItemResponse, len(r.batch.Items)),
		Location: r.location,
	}
	replica := &bulk.ReplicaRequest{
		ShardID: r.batch.ShardID,
		Items:   make([]bulk.ResolvedItem, len(r.batch.Items)),
		Refresh: r.batch.Refresh,
	}
	for i, item := range r.batch.Items {
		resp.Items[i] = item.PrimaryResponse
		replica.Items[i] = bulk.ResolvedItem{
			Position:        item.Position,
			Operation:       item.Operation.Clone(),
			IgnoreOnReplica: item.IgnoreOnReplica,
		}
	}
	return &bulk.Completed{Response: resp, Replica: replica}
}

func indexSuccess(res IndexResult, get *bulk.GetResult) bulk.Success {
	result := bulk.ResultUpdated
	if res.Created {
		result = bulk.ResultCreated
	}
	return bulk.Success{Result: result, Version: res.Version, Created: res.Created, Get: get}
}

func deleteSuccess(res DeleteResult, get *bulk.GetResult) bulk.Success {
	result := bulk.ResultNotFound
	if res.Found {
		result = bulk.ResultDeleted
	}
	return bulk.Success{Result: result, Version: res.Version, Found: res.Found, Get: get}
}
