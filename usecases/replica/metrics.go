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

package replica

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/weaviate/bulkshard/usecases/monitoring"
)

var writeDurationBuckets = prometheus.ExponentialBuckets(0.001, 2, 18) // ~1ms to 136s

type Metrics struct {
	monitoring bool

	writesSucceedAll  prometheus.Counter
	writesSucceedSome prometheus.Counter
	copiesFailed      prometheus.Counter
	mappingRetries    prometheus.Counter
	writeDuration     prometheus.Histogram
}

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
	m.writesSucceedAll, err = monitoring.NewCounter(prom.Registerer,
		"replication_writes_succeed_all", "Count of batches applied on every replica copy")
	if err != nil {
		return nil, err
	}
	m.writesSucceedSome, err = monitoring.NewCounter(prom.Registerer,
		"replication_writes_succeed_some", "Count of batches at least one replica copy failed to apply")
	if err != nil {
		return nil, err
	}
	m.copiesFailed, err = monitoring.NewCounter(prom.Registerer,
		"replication_copies_failed", "Count of replica copies failed by a batch")
	if err != nil {
		return nil, err
	}
	m.mappingRetries, err = monitoring.NewCounter(prom.Registerer,
		"replication_mapping_retries", "Count of batches resent to a copy waiting for a mapping")
	if err != nil {
		return nil, err
	}
	m.writeDuration, err = monitoring.NewHistogram(prom.Registerer,
		"replication_writes_duration", "Duration of replicating a batch to all copies", writeDurationBuckets)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) IncWritesSucceedAll() {
	if m.monitoring {
		m.writesSucceedAll.Inc()
	}
}

func (m *Metrics) IncWritesSucceedSome() {
	if m.monitoring {
		m.writesSucceedSome.Inc()
	}
}

func (m *Metrics) IncCopiesFailed() {
	if m.monitoring {
		m.copiesFailed.Inc()
	}
}

func (m *Metrics) IncMappingRetries() {
	if m.monitoring {
		m.mappingRetries.Inc()
	}
}

func (m *Metrics) ObserveWriteDuration(d time.Duration) {
	if m.monitoring {
		m.writeDuration.Observe(d.Seconds())
	}
}
