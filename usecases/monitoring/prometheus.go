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

// Package monitoring holds the Prometheus registry shared by all
// components and helpers to register collectors on it.
package monitoring

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "bulkshard"

type PrometheusMetrics struct {
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	OpenConnections prometheus.Gauge
}

// NewPrometheusMetrics creates a registry with the Go runtime and process
// collectors registered
func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	conns := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "open_connections",
		Help:      "Number of currently open client connections",
	})
	reg.MustRegister(conns)
	return &PrometheusMetrics{Registerer: reg, Gatherer: reg, OpenConnections: conns}
}

func NewCounter(reg prometheus.Registerer, name, help string) (prometheus.Counter, error) {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
	if err := reg.Register(c); err != nil {
		var e prometheus.AlreadyRegisteredError
		if errors.As(err, &e) {
			if counter, ok := e.ExistingCollector.(prometheus.Counter); ok {
				return counter, nil
			}
			return nil, fmt.Errorf("metric %s already registered but not as a Counter", name)
		}
		return nil, err
	}
	return c, nil
}

func NewCounterVec(reg prometheus.Registerer, name, help string, labels ...string) (*prometheus.CounterVec, error) {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, labels)
	if err := reg.Register(c); err != nil {
		var e prometheus.AlreadyRegisteredError
		if errors.As(err, &e) {
			if vec, ok := e.ExistingCollector.(*prometheus.CounterVec); ok {
				return vec, nil
			}
			return nil, fmt.Errorf("metric %s already registered but not as a CounterVec", name)
		}
		return nil, err
	}
	return c, nil
}

func NewHistogram(reg prometheus.Registerer, name, help string, buckets []float64) (prometheus.Histogram, error) {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	})
	if err := reg.Register(h); err != nil {
		var e prometheus.AlreadyRegisteredError
		if errors.As(err, &e) {
			return e.ExistingCollector.(prometheus.Histogram), nil
		}
		return nil, err
	}
	return h, nil
}

func NewHistogramVec(reg prometheus.Registerer, name, help string, buckets []float64,
	labels ...string,
) (*prometheus.HistogramVec, error) {
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
	if err := reg.Register(h); err != nil {
		var e prometheus.AlreadyRegisteredError
		if errors.As(err, &e) {
			if vec, ok := e.ExistingCollector.(*prometheus.HistogramVec); ok {
				return vec, nil
			}
			return nil, fmt.Errorf("metric %s already registered but not as a HistogramVec", name)
		}
		return nil, err
	}
	return h, nil
}

func NewGauge(reg prometheus.Registerer, name, help string) (prometheus.Gauge, error) {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
	if err := reg.Register(g); err != nil {
		var e prometheus.AlreadyRegisteredError
		if errors.As(err, &e) {
			if gauge, ok := e.ExistingCollector.(prometheus.Gauge); ok {
				return gauge, nil
			}
			return nil, fmt.Errorf("metric %s already registered but not as a Gauge", name)
		}
		return nil, err
	}
	return g, nil
}
