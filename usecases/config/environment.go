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

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// FromEnv takes a *Config as it will respect initial config that has been
// provided by other means (e.g. a config file) and will only extend those that
// are set
func FromEnv(config *Config) error {
	if v := os.Getenv("CLUSTER_HOSTNAME"); v != "" {
		config.Name = v
	}

	if enabled(os.Getenv("DEBUG")) {
		config.Debug = true
	}

	if err := parsePositiveInt("PORT", func(v int) { config.Port = v }); err != nil {
		return err
	}
	if err := parsePositiveInt("CLUSTER_PORT", func(v int) { config.ClusterPort = v }); err != nil {
		return err
	}

	// CLUSTER_NODES=node1=host1:7101,node2=host2:7101
	if v := os.Getenv("CLUSTER_NODES"); v != "" {
		nodes, err := parseNodes(v)
		if err != nil {
			return errors.Wrap(err, "parse CLUSTER_NODES")
		}
		config.Cluster.Nodes = nodes
	}

	if v := os.Getenv("PERSISTENCE_DATA_PATH"); v != "" {
		config.Persistence.DataPath = v
	}
	if v := os.Getenv("TRANSLOG_GENERATION_SIZE"); v != "" {
		asInt, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "parse TRANSLOG_GENERATION_SIZE as int")
		}
		config.Persistence.TranslogGenerationSize = asInt
	}

	if v := os.Getenv("BULK_ALLOW_EXPLICIT_INDEX"); v != "" {
		config.BulkAPI.AllowExplicitIndex = enabled(v)
	}
	if v := os.Getenv("AUTO_CREATE_INDEX"); v != "" {
		config.BulkAPI.AutoCreateIndex = enabled(v)
	}
	if err := parsePositiveInt("BULK_MAX_CONCURRENT_REQUESTS", func(v int) {
		config.BulkAPI.MaxConcurrentRequests = v
	}); err != nil {
		return err
	}

	if err := parseDuration("BULK_TIMEOUT", func(d time.Duration) { config.Bulk.Timeout = d }); err != nil {
		return err
	}
	if v := os.Getenv("TRANSLOG_DURABILITY"); v != "" {
		config.Bulk.Durability = v
	}
	if v := os.Getenv("WRITE_CONSISTENCY"); v != "" {
		config.Bulk.Consistency = v
	}
	if err := parseDuration("REPLICATION_MAPPING_WAIT", func(d time.Duration) {
		config.Replication.MappingWait = d
	}); err != nil {
		return err
	}

	if enabled(os.Getenv("PROMETHEUS_MONITORING_ENABLED")) {
		config.Monitoring.Enabled = true
	}
	if err := parsePositiveInt("PROMETHEUS_MONITORING_PORT", func(v int) { config.Monitoring.Port = v }); err != nil {
		return err
	}

	return nil
}

func parsePositiveInt(varName string, cb func(val int)) error {
	if v := os.Getenv(varName); v != "" {
		asInt, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "parse %s as int", varName)
		}
		if asInt <= 0 {
			return errors.Errorf("%s must be an integer greater than 0. Got: %v", varName, asInt)
		}
		cb(asInt)
	}
	return nil
}

func parseDuration(varName string, cb func(d time.Duration)) error {
	if v := os.Getenv(varName); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "parse %s as duration", varName)
		}
		cb(d)
	}
	return nil
}

func parseNodes(v string) ([]Node, error) {
	var nodes []Node
	for _, part := range strings.Split(v, ",") {
		name, host, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" || host == "" {
			return nil, errors.Errorf("expected name=host, got %q", part)
		}
		nodes = append(nodes, Node{Name: name, Host: host})
	}
	return nodes, nil
}

func enabled(value string) bool {
	switch strings.ToLower(value) {
	case "on", "enabled", "1", "true":
		return true
	default:
		return false
	}
}
