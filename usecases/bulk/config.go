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

	"github.com/weaviate/bulkshard/entities/bulk"
)

const (
	DefaultTimeout          = time.Minute
	DefaultRetryInitial     = 50 * time.Millisecond
	DefaultRetryMaxInterval = 2 * time.Second
)

// Config holds the settings of the bulk executors and the shard action
type Config struct {
	// Timeout bounds a batch that does not carry its own
	Timeout          time.Duration
	Durability       Durability
	Consistency      bulk.ConsistencyLevel
	RetryInitial     time.Duration
	RetryMaxInterval time.Duration
}

// WithDefaults fills unset fields
func (c Config) WithDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Durability == "" {
		c.Durability = DurabilityRequest
	}
	if c.Consistency == bulk.ConsistencyDefault {
		c.Consistency = bulk.ConsistencyQuorum
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = DefaultRetryInitial
	}
	if c.RetryMaxInterval <= 0 {
		c.RetryMaxInterval = DefaultRetryMaxInterval
	}
	return c
}

func (c Config) timeout(b *bulk.Batch) time.Duration {
	if b.Timeout > 0 {
		return b.Timeout
	}
	return c.Timeout
}

func (c Config) consistency(b *bulk.Batch) bulk.ConsistencyLevel {
	if b.Consistency != bulk.ConsistencyDefault {
		return b.Consistency
	}
	return c.Consistency
}
