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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironmentClusterNodes(t *testing.T) {
	factors := []struct {
		name        string
		value       []string
		expected    []Node
		expectedErr bool
	}{
		{"not given", []string{}, nil, false},
		{"single", []string{"n1=h1:7101"}, []Node{{Name: "n1", Host: "h1:7101"}}, false},
		{"several", []string{"n1=h1:7101, n2=h2:7101"}, []Node{
			{Name: "n1", Host: "h1:7101"},
			{Name: "n2", Host: "h2:7101"},
		}, false},
		{"missing host", []string{"n1="}, nil, true},
		{"no separator", []string{"n1"}, nil, true},
	}
	for _, tt := range factors {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if len(tt.value) == 1 {
				t.Setenv("CLUSTER_NODES", tt.value[0])
			}
			conf := Config{}
			err := FromEnv(&conf)

			if tt.expectedErr {
				require.NotNil(t, err)
			} else {
				require.Nil(t, err)
				require.Equal(t, tt.expected, conf.Cluster.Nodes)
			}
		})
	}
}

func TestEnvironmentPorts(t *testing.T) {
	factors := []struct {
		name        string
		value       []string
		expected    int
		expectedErr bool
	}{
		{"valid", []string{"9201"}, 9201, false},
		{"not given", []string{}, DefaultPort, false},
		{"zero", []string{"0"}, -1, true},
		{"not parsable", []string{"high"}, -1, true},
	}
	for _, tt := range factors {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if len(tt.value) == 1 {
				t.Setenv("PORT", tt.value[0])
			}
			conf := Default()
			err := FromEnv(&conf)

			if tt.expectedErr {
				require.NotNil(t, err)
			} else {
				require.Equal(t, tt.expected, conf.Port)
			}
		})
	}
}

func TestEnvironmentBulkSettings(t *testing.T) {
	os.Clearenv()
	t.Setenv("BULK_TIMEOUT", "5s")
	t.Setenv("TRANSLOG_DURABILITY", "async")
	t.Setenv("WRITE_CONSISTENCY", "one")
	t.Setenv("BULK_ALLOW_EXPLICIT_INDEX", "false")
	t.Setenv("PROMETHEUS_MONITORING_ENABLED", "true")
	t.Setenv("TRANSLOG_GENERATION_SIZE", "1024")

	conf := Default()
	require.NoError(t, FromEnv(&conf))
	assert.Equal(t, 5*time.Second, conf.Bulk.Timeout)
	assert.Equal(t, "async", conf.Bulk.Durability)
	assert.Equal(t, "one", conf.Bulk.Consistency)
	assert.False(t, conf.BulkAPI.AllowExplicitIndex)
	assert.True(t, conf.Monitoring.Enabled)
	assert.Equal(t, int64(1024), conf.Persistence.TranslogGenerationSize)

	t.Setenv("BULK_TIMEOUT", "soon")
	assert.Error(t, FromEnv(&conf))
}

func TestEnabled(t *testing.T) {
	for _, v := range []string{"on", "enabled", "1", "true", "TRUE"} {
		assert.True(t, enabled(v), v)
	}
	for _, v := range []string{"", "off", "0", "false", "yes please"} {
		assert.False(t, enabled(v), v)
	}
}
