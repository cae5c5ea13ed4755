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

package db

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/bulkshard/usecases/monitoring"
)

type Metrics struct {
	logger         logrus.FieldLogger
	monitoring     bool
	operationTime  *prometheus.HistogramVec
	translogSyncs  prometheus.Counter
	mappingUpdates prometheus.Counter
}

func NewMetrics(logger logrus.FieldLogger, prom *monitoring.PrometheusMetrics) (*Metrics, error) {
	m := &Metrics{logger: logger}
	if prom == nil {
		return m, nil
	}
	m.monitoring = true

	var err error
	m.operationTime, err = monitoring.NewHistogramVec(prom.Registerer,
		"shard_operation_duration_seconds", "Duration of single document operations on a shard",
		prometheus.DefBuckets, "index", "shard", "operation")
	if err != nil {
		return nil, err
	}
	m.translogSyncs, err = monitoring.NewCounter(prom.Registerer,
		"translog_syncs_total", "Count of translog fsyncs")
	if err != nil {
		return nil, err
	}
	m.mappingUpdates, err = monitoring.NewCounter(prom.Registerer,
		"mapping_updates_total", "Count of mapping updates introduced by primary writes")
	if err != nil {
		return nil, err
	}
	return m, nil
}

// shardMetrics are the metrics of one shard with its labels bound
type shardMetrics struct {
	parent        *Metrics
	operationTime prometheus.ObserverVec
}

func (m *Metrics) forShard(index string, shard int) *shardMetrics {
	sm := &shardMetrics{parent: m}
	if m.monitoring {
		sm.operationTime = m.operationTime.MustCurryWith(prometheus.Labels{
			"index": index,
			"shard": strconv.Itoa(shard),
		})
	}
	return sm
}

func (m *shardMetrics) operation(op string, start time.Time) {
	if m.operationTime == nil {
		return
	}
	m.operationTime.With(prometheus.Labels{"operation": op}).
		Observe(time.Since(start).Seconds())
}

func (m *shardMetrics) translogSync() {
	if m.parent.monitoring {
		m.parent.translogSyncs.Inc()
	}
}

func (m *shardMetrics) mappingUpdate() {
	if m.parent.monitoring {
		m.parent.mappingUpdates.Inc()
	}
}
