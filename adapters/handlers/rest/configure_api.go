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

// Package rest wires the node together and serves its HTTP APIs
package rest

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/bulkshard/adapters/clients"
	"github.com/weaviate/bulkshard/adapters/handlers/rest/bulkapi"
	"github.com/weaviate/bulkshard/adapters/handlers/rest/clusterapi"
	"github.com/weaviate/bulkshard/adapters/handlers/rest/state"
	"github.com/weaviate/bulkshard/adapters/repos/db"
	enterrors "github.com/weaviate/bulkshard/entities/errors"
	bulkuc "github.com/weaviate/bulkshard/usecases/bulk"
	"github.com/weaviate/bulkshard/usecases/config"
	"github.com/weaviate/bulkshard/usecases/monitoring"
	"github.com/weaviate/bulkshard/usecases/replica"
	"github.com/weaviate/bulkshard/usecases/sharding"
	"github.com/weaviate/bulkshard/usecases/update"
)

const shutdownTimeout = 30 * time.Second

// MakeAppState builds every component of the node from the loaded config
// and opens the local shard copies of the configured indices
func MakeAppState(ctx context.Context, serverConfig *config.BulkShardConfig,
	logger *logrus.Logger,
) (*state.State, error) {
	cfg := serverConfig.Config
	appState := &state.State{
		ServerConfig: serverConfig,
		Logger:       logger,
		Metrics:      monitoring.NewPrometheusMetrics(),
	}
	var prom *monitoring.PrometheusMetrics
	if cfg.Monitoring.Enabled {
		prom = appState.Metrics
	}

	cluster, err := sharding.NewCluster(cfg.Name, cfg.ClusterNodes(), logger)
	if err != nil {
		return nil, fmt.Errorf("init cluster state: %w", err)
	}
	appState.Cluster = cluster
	for _, idx := range cfg.Indices {
		if _, err := cluster.AddIndex(idx.Name, sharding.Config{
			Shards:   idx.Shards,
			Replicas: idx.Replicas,
		}); err != nil {
			return nil, fmt.Errorf("place index %q: %w", idx.Name, err)
		}
	}
	logger.WithField("action", "startup").WithField("startup_time_left", timeTillDeadline(ctx)).
		Debug("cluster state initialized")

	dbMetrics, err := db.NewMetrics(logger, prom)
	if err != nil {
		return nil, err
	}
	appState.DB = db.New(logger, db.Config{
		RootPath:               cfg.Persistence.DataPath,
		TranslogGenerationSize: cfg.Persistence.TranslogGenerationSize,
	}, dbMetrics)
	for _, name := range cluster.IndexNames() {
		if err := appState.OpenLocalShards(name); err != nil {
			return nil, fmt.Errorf("open index %q: %w", name, err)
		}
	}
	logger.WithField("action", "startup").WithField("startup_time_left", timeTillDeadline(ctx)).
		Debug("local shards opened")

	httpClient := &http.Client{Timeout: cfg.ReplicaConfig().MappingWait}
	replicationClient := clients.NewReplicationClient(httpClient)
	appState.DB.SetMappingPublisher(replica.NewMappingPublisher(replicationClient, cluster, logger))

	bulkConfig, err := cfg.BulkConfig()
	if err != nil {
		return nil, err
	}
	bulkMetrics, err := bulkuc.NewMetrics(prom)
	if err != nil {
		return nil, err
	}
	replicaMetrics, err := replica.NewMetrics(prom)
	if err != nil {
		return nil, err
	}

	appState.Executor = bulkuc.NewExecutor(appState.DB,
		update.NewTranslator(update.NewScripts(), logger), bulkConfig, logger, bulkMetrics)
	appState.Replicator = replica.NewReplicator(replicationClient, cluster, cluster,
		cfg.ReplicaConfig(), logger, replicaMetrics)
	appState.ShardAction = bulkuc.NewShardAction(appState.Executor, appState.Replicator,
		bulkConfig, logger, bulkMetrics)

	return appState, nil
}

// Serve runs the bulk API, the cluster API and, if enabled, the metrics
// endpoint until ctx is done. The DB is shut down on the way out.
func Serve(ctx context.Context, appState *state.State) error {
	cfg := appState.ServerConfig.Config
	logger := appState.Logger
	var prom *monitoring.PrometheusMetrics
	if cfg.Monitoring.Enabled {
		prom = appState.Metrics
	}

	bulkHandler, err := bulkapi.NewHandler(appState, appState, appState.ShardAction, appState,
		bulkapi.Config{
			AllowExplicitIndex: cfg.BulkAPI.AllowExplicitIndex,
			AutoCreateIndex:    cfg.BulkAPI.AutoCreateIndex,
			AllowIDGeneration:  cfg.BulkAPI.AllowIDGeneration,

			MaxConcurrentRequests: cfg.BulkAPI.MaxConcurrentRequests,
		}, logger, prom)
	if err != nil {
		return err
	}
	clusterHandler, err := clusterapi.NewHandler(appState.Executor, appState.DB, logger, prom)
	if err != nil {
		return err
	}

	servers := []*http.Server{
		{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: setupGlobalMiddleware(bulkHandler, logger)},
		{Addr: fmt.Sprintf(":%d", cfg.ClusterPort), Handler: setupGlobalMiddleware(clusterHandler, logger)},
	}
	if cfg.Monitoring.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(appState.Metrics.Gatherer, promhttp.HandlerOpts{}))
		servers = append(servers, &http.Server{Addr: fmt.Sprintf(":%d", cfg.Monitoring.Port), Handler: mux})
	}

	errs := make(chan error, len(servers))
	for i, srv := range servers {
		lis, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			shutdown(servers[:i], logger)
			return fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
		if i == 0 {
			lis = monitoring.CountingListener(lis, appState.Metrics.OpenConnections)
		}
		srv := srv
		enterrors.GoWrapper(func() {
			logger.WithField("action", "startup").WithField("addr", srv.Addr).Info("serving")
			if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
				errs <- err
			}
		}, logger)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.WithField("action", "shutdown").Info("shutting down")
	case serveErr = <-errs:
		logger.WithField("action", "shutdown").WithError(serveErr).Error("server failed")
	}

	shutdown(servers, logger)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := appState.DB.Shutdown(shutdownCtx); err != nil {
		logger.WithField("action", "shutdown").WithError(err).Error("close shards")
		if serveErr == nil {
			serveErr = err
		}
	}
	return serveErr
}

func shutdown(servers []*http.Server, logger logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			logger.WithField("action", "shutdown").WithField("addr", srv.Addr).
				WithError(err).Warn("server did not shut down cleanly")
		}
	}
}

func timeTillDeadline(ctx context.Context) string {
	dl, _ := ctx.Deadline()
	return time.Until(dl).String()
}
