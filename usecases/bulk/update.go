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

	"github.com/sirupsen/logrus"

	"github.com/weaviate/bulkshard/entities/bulk"
	"github.com/weaviate/bulkshard/entities/errors"
	"github.com/weaviate/bulkshard/entities/translog"
)

// updateAttempt is the result of translating and applying an update once
type updateAttempt struct {
	translation *Translation
	index       IndexResult
	delete      DeleteResult
	err         error
	// retry is set for version conflicts: the document changed between
	// the read of the translator and the write
	retry bool
}

// update tries op up to RetryOnConflict+1 times. On success the item's
// operation is replaced by the translated write.
func (r *primaryRun) update(ctx context.Context, item *bulk.BatchItem, op *bulk.UpdateOp) (translog.Location, error) {
	if op.RetryOnConflict < 0 {
		return translog.Location{}, r.fail(item, bulk.OpUpdate, op,
			errors.NewValidationError("retry_on_conflict must be >= 0"))
	}
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			item.State = bulk.StateRetrying
			r.metrics.IncUpdateRetries()
			r.logger.WithFields(logrus.Fields{
				"position": item.Position,
				"attempt":  attempt,
			}).Trace("retrying update after version conflict")
			item.State = bulk.StateExecuting
		}

		res := r.tryUpdate(ctx, op)
		if res.err == nil {
			return r.updated(item, op, res), nil
		}
		if res.retry && attempt < op.RetryOnConflict {
			continue
		}
		return translog.Location{}, r.fail(item, bulk.OpUpdate, op, res.err)
	}
}

func (r *primaryRun) tryUpdate(ctx context.Context, op *bulk.UpdateOp) updateAttempt {
	if err := ctx.Err(); err != nil {
		return updateAttempt{err: err}
	}
	t, err := r.translator.Translate(ctx, op, r.engine)
	if err != nil {
		return updateAttempt{err: err, retry: errors.IsVersionConflict(err)}
	}

	res := updateAttempt{translation: t}
	switch t.Kind {
	case TranslateUpsert, TranslateIndex:
		if t.Index == nil {
			res.err = fmt.Errorf("update translated to %s without an index operation", t.Kind)
			return res
		}
		res.index, res.err = r.applyIndex(ctx, t.Index)
	case TranslateDelete:
		if t.Delete == nil {
			res.err = fmt.Errorf("update translated to delete without a delete operation")
			return res
		}
		res.delete, res.err = r.applyDelete(ctx, t.Delete)
	case TranslateNoop:
		if t.Noop == nil {
			t.Noop = &bulk.Success{}
		}
	default:
		res.err = fmt.Errorf("illegal update operation %s", t.Kind)
		return res
	}
	res.retry = errors.IsVersionConflict(res.err)
	return res
}

// updated records a successful update attempt on item
func (r *primaryRun) updated(item *bulk.BatchItem, op *bulk.UpdateOp, res updateAttempt) translog.Location {
	t := res.translation
	switch t.Kind {
	case TranslateUpsert, TranslateIndex:
		get := r.translator.GetResult(op, res.index.Version, t.Index.Source)
		item.Operation = t.Index
		item.SetPrimaryResponse(bulk.NewItemResponse(item.Position, bulk.OpUpdate, t.Index,
			indexSuccess(res.index, get)))
		return res.index.Location
	case TranslateDelete:
		get := r.translator.GetResult(op, res.delete.Version, t.Source)
		item.Operation = t.Delete
		item.SetPrimaryResponse(bulk.NewItemResponse(item.Position, bulk.OpUpdate, t.Delete,
			deleteSuccess(res.delete, get)))
		return res.delete.Location
	default:
		r.metrics.IncNoopUpdates()
		noop := *t.Noop
		noop.Result = bulk.ResultNoop
		item.SetPrimaryResponse(bulk.NewItemResponse(item.Position, bulk.OpUpdate, op, noop))
		return translog.Location{}
	}
}
