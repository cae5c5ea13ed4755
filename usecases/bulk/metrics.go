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
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/weaviate/bulkshard/entities/bulk"
	"github.com/weaviate/bulkshard/usecases/monitoring"
)

var batchDurationBuckets = prometheus.ExponentialBuckets(0.0005, 2, 16) // ~0.5ms to 16s

type Metrics struct {
	monitoring bool

	items           *prometheus.CounterVec
	updateRetries   prometheus.Counter
	noopUpdates     prometheus.Counter
	primaryResends  prometheus.Counter
	replicaIgnored  prometheus.Counter
	primaryDuration prometheus.Histogram
	replicaDuration prometheus.Histogram
}

// NewMetrics registers the bulk metrics on prom. A nil prom disables them.
func NewMetrics(prom *monitoring.PrometheusMetrics) (*Metrics, error) {
	m := &Metrics{}
	if prom == nil {
		return m, nil
	}
	m.monitoring = true

	if prom.Registerer == nil {
		prom.Registerer = prometheus.DefaultRegisterer
	}

	var err error
	m.items, err = monitoring.NewCounterVec(prom.Registerer,
		"bulk_items_total", "Count of bulk items executed on a primary", "op_type", "status")
	if err != nil {
		return nil, err
	}
	m.updateRetries, err = monitoring.NewCounter(prom.Registerer,
		"bulk_update_conflict_retries_total", "Count of update attempts repeated after a version conflict")
	if err != nil {
		return nil, err
	}
	m.noopUpdates, err = monitoring.NewCounter(prom.Registerer,
		"bulk_noop_updates_total", "Count of updates that did not change the document")
	if err != nil {
		return nil, err
	}
	m.primaryResends, err = monitoring.NewCounter(prom.Registerer,
		"bulk_primary_resends_total", "Count of batches resent to the primary after a transient failure")
	if err != nil {
		return nil, err
	}
	m.replicaIgnored, err = monitoring.NewCounter(prom.Registerer,
		"bulk_replica_ignored_failures_total", "Count of replica item failures tolerated as expected divergence")
	if err != nil {
		return nil, err
	}
	m.primaryDuration, err = monitoring.NewHistogram(prom.Registerer,
		"bulk_primary_duration_seconds", "Duration of a batch on the primary", batchDurationBuckets)
	if err != nil {
		return nil, err
	}
	m.replicaDuration, err = monitoring.NewHistogram(prom.Registerer,
		"bulk_replica_duration_seconds", "Duration of a batch on a replica", batchDurationBuckets)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) ObserveItem(r *bulk.ItemResponse) {
	if !m.monitoring || r == nil {
		return
	}
	status := "success"
	if r.IsFailed() {
		status = "failure"
	}
	m.items.WithLabelValues(string(r.OpType), status).Inc()
}

func (m *Metrics) IncUpdateRetries() {
	if m.monitoring {
		m.updateRetries.Inc()
	}
}

func (m *Metrics) IncNoopUpdates() {
	if m.monitoring {
		m.noopUpdates.Inc()
	}
}

func (m *Metrics) IncPrimaryResends() {
	if m.monitoring {
		m.primaryResends.Inc()
	}
}

func (m *Metrics) IncReplicaIgnored() {
	if m.monitoring {
		m.replicaIgnored.Inc()
	}
}

func (m *Metrics) ObservePrimary(start time.Time) {
	if m.monitoring {
		m.primaryDuration.Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) ObserveReplica(start time.Time) {
	if m.monitoring {
		m.replicaDuration.Observe(time.Since(start).Seconds())
	}
}
