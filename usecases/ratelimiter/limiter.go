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

package ratelimiter

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Limiter caps the number of bulk requests a node works on at the same
// time. Requests above the cap are rejected, not queued.
type Limiter struct {
	max      int64
	inFlight atomic.Int64
	gauge    prometheus.Gauge
	rejected prometheus.Counter
}

// New creates a Limiter admitting up to maxRequests. A value <= 0 admits
// everything. gauge and rejected may be nil.
func New(maxRequests int, gauge prometheus.Gauge, rejected prometheus.Counter) *Limiter {
	return &Limiter{max: int64(maxRequests), gauge: gauge, rejected: rejected}
}

// TryAcquire takes a slot if one is free. Every successful call must be
// paired with Release.
func (l *Limiter) TryAcquire() bool {
	if l.max <= 0 {
		return true
	}
	if n := l.inFlight.Add(1); n > l.max {
		l.inFlight.Add(-1)
		if l.rejected != nil {
			l.rejected.Inc()
		}
		return false
	}
	if l.gauge != nil {
		l.gauge.Inc()
	}
	return true
}

func (l *Limiter) Release() {
	if l.max <= 0 {
		return
	}
	if n := l.inFlight.Add(-1); n < 0 {
		// released more often than acquired
		l.inFlight.CompareAndSwap(n, 0)
		return
	}
	if l.gauge != nil {
		l.gauge.Dec()
	}
}

// InFlight returns the number of admitted requests not yet released
func (l *Limiter) InFlight() int64 {
	return l.inFlight.Load()
}
