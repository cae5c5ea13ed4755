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

	"github.com/pkg/errors"
)

const (
	DefaultMappingRetryInitial = 50 * time.Millisecond
	DefaultMappingWait         = 30 * time.Second
	DefaultParallelism         = 8
)

// Config of the replicator
type Config struct {
	// MappingRetryInitial is the first wait before a copy that lacks a
	// mapping is asked again
	MappingRetryInitial time.Duration `json:"mapping_retry_initial" yaml:"mapping_retry_initial"`
	// MappingWait bounds the total wait for a mapping to reach a copy
	MappingWait time.Duration `json:"mapping_wait" yaml:"mapping_wait"`
	// Parallelism is the number of copies written to at the same time
	Parallelism int `json:"parallelism" yaml:"parallelism"`
}

func (c Config) WithDefaults() Config {
	if c.MappingRetryInitial <= 0 {
		c.MappingRetryInitial = DefaultMappingRetryInitial
	}
	if c.MappingWait <= 0 {
		c.MappingWait = DefaultMappingWait
	}
	if c.Parallelism <= 0 {
		c.Parallelism = DefaultParallelism
	}
	return c
}

func (c Config) Validate() error {
	if c.MappingWait < c.MappingRetryInitial {
		return errors.Errorf("replication: mapping_wait (%s) must not be shorter than mapping_retry_initial (%s)",
			c.MappingWait, c.MappingRetryInitial)
	}
	return nil
}
