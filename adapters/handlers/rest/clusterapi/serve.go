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

package clusterapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/bulkshard/usecases/monitoring"
)

// NewHandler builds the cluster-internal API of a node
func NewHandler(shards replicator, mappings mappings, logger logrus.FieldLogger,
	prom *monitoring.PrometheusMetrics,
) (http.Handler, error) {
	replicated := NewReplicatedIndices(shards, mappings, logger)

	mux := http.NewServeMux()
	mux.Handle("/replicas/indices/", replicated.Indices())
	mux.Handle("/", index())

	if prom == nil {
		return mux, nil
	}
	durations, err := monitoring.NewHistogramVec(prom.Registerer,
		"cluster_api_request_duration_seconds", "Duration of cluster API requests",
		prometheus.DefBuckets, "route", "method")
	if err != nil {
		return nil, err
	}
	return instrument(mux, durations), nil
}

// staticRoute maps a request to the pattern that serves it, so that paths
// carrying index names do not blow up label cardinality
func staticRoute(mux *http.ServeMux) func(r *http.Request) (*http.Request, string) {
	return func(r *http.Request) (*http.Request, string) {
		route := r.URL.String()
		_, pattern := mux.Handler(r)
		if pattern != "" {
			route = pattern
		}
		return r, route
	}
}

func instrument(mux *http.ServeMux, durations *prometheus.HistogramVec) http.Handler {
	route := staticRoute(mux)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		r, pattern := route(r)
		mux.ServeHTTP(w, r)
		durations.WithLabelValues(pattern, r.Method).Observe(time.Since(start).Seconds())
	})
}

func index() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.String() != "" && r.URL.String() != "/" {
			http.NotFound(w, r)
			return
		}

		payload := map[string]string{
			"description": "cluster-internal API for cross-node communication",
		}

		json.NewEncoder(w).Encode(payload)
	})
}
