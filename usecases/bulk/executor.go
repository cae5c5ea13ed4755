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

// Package bulk applies shard batches of index, delete and update
// operations to the primary copy of a shard and replays the primary's
// decisions on replica copies.
package bulk

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/weaviate/bulkshard/entities/translog"
)

// Executor applies batches to the local copies of shards. One executor
// serves every shard of the node; a batch is only ever run by one call at
// a time.
type Executor struct {
	engines    Engines
	translator Translator
	config     Config
	logger     logrus.FieldLogger
	metrics    *Metrics
}

func NewExecutor(engines Engines, translator Translator, config Config,
	logger logrus.FieldLogger, metrics *Metrics,
) *Executor {
	if metrics == nil {
		metrics = &Metrics{}
	}
	return &Executor{
		engines:    engines,
		translator: translator,
		config:     config.WithDefaults(),
		logger:     logger.WithField("action", "bulk_shard"),
		metrics:    metrics,
	}
}

// processAfter makes the batch visible and durable. Failures are logged
// only: every item has been applied at this point.
func (e *Executor) processAfter(ctx context.Context, eng Engine, refresh bool, loc translog.Location) {
	ctx = context.WithoutCancel(ctx)
	if refresh {
		if err := eng.Refresh(ctx); err != nil {
			e.logger.WithError(err).Warn("failed to refresh after bulk")
		}
	}
	if e.config.Durability == DurabilityRequest && loc.IsSet() {
		if err := eng.Sync(ctx, loc); err != nil {
			e.logger.WithError(err).WithField("location", loc.String()).
				Warn("failed to sync translog")
		}
	}
}
