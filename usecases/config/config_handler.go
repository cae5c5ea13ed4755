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
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/weaviate/bulkshard/entities/bulk"
	bulkuc "github.com/weaviate/bulkshard/usecases/bulk"
	"github.com/weaviate/bulkshard/usecases/replica"
	"github.com/weaviate/bulkshard/usecases/sharding"
)

// DefaultConfigFile is the default file when no config file is provided
const DefaultConfigFile string = "./bulkshard.conf.yaml"

const (
	DefaultPort                   = 9200
	DefaultClusterPort            = 7101
	DefaultMonitoringPort         = 2112
	DefaultDataPath               = "./data"
	DefaultTranslogGenerationSize = int64(64 * 1024 * 1024)
)

// Flags are input options
type Flags struct {
	ConfigFile  string `long:"config-file" description:"path to config file (default: ./bulkshard.conf.yaml)"`
	NodeName    string `long:"node-name" description:"name of this node, must be one of the cluster nodes"`
	Port        int    `long:"port" description:"port the bulk API listens on"`
	ClusterPort int    `long:"cluster-port" description:"port the internal cluster API listens on"`
	DataPath    string `long:"data-path" description:"directory holding shard stores and translogs"`
	Debug       bool   `long:"debug" description:"log at debug level"`
}

// Config outline of the config file
type Config struct {
	Name        string      `json:"name" yaml:"name"`
	Debug       bool        `json:"debug" yaml:"debug"`
	Port        int         `json:"port" yaml:"port"`
	ClusterPort int         `json:"cluster_port" yaml:"cluster_port"`
	Cluster     Cluster     `json:"cluster" yaml:"cluster"`
	Indices     []Index     `json:"indices" yaml:"indices"`
	BulkAPI     BulkAPI     `json:"bulk_api" yaml:"bulk_api"`
	Bulk        Bulk        `json:"bulk" yaml:"bulk"`
	Replication Replication `json:"replication" yaml:"replication"`
	Persistence Persistence `json:"persistence" yaml:"persistence"`
	Monitoring  Monitoring  `json:"monitoring" yaml:"monitoring"`
}

type Cluster struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
}

// Node is a cluster member. Host is the address of its cluster API.
type Node struct {
	Name string `json:"name" yaml:"name"`
	Host string `json:"host" yaml:"host"`
}

type Index struct {
	Name     string `json:"name" yaml:"name"`
	Shards   int    `json:"shards" yaml:"shards"`
	Replicas int    `json:"replicas" yaml:"replicas"`
}

type BulkAPI struct {
	AllowExplicitIndex bool `json:"allow_explicit_index" yaml:"allow_explicit_index"`
	AutoCreateIndex    bool `json:"auto_create_index" yaml:"auto_create_index"`
	AllowIDGeneration  bool `json:"allow_id_generation" yaml:"allow_id_generation"`
	// MaxConcurrentRequests rejects bulk calls above this many in flight
	MaxConcurrentRequests int `json:"max_concurrent_requests" yaml:"max_concurrent_requests"`
}

type Bulk struct {
	Timeout          time.Duration `json:"timeout" yaml:"timeout"`
	Durability       string        `json:"durability" yaml:"durability"`
	Consistency      string        `json:"consistency" yaml:"consistency"`
	RetryInitial     time.Duration `json:"retry_initial" yaml:"retry_initial"`
	RetryMaxInterval time.Duration `json:"retry_max_interval" yaml:"retry_max_interval"`
}

type Replication struct {
	MappingRetryInitial time.Duration `json:"mapping_retry_initial" yaml:"mapping_retry_initial"`
	MappingWait         time.Duration `json:"mapping_wait" yaml:"mapping_wait"`
	Parallelism         int           `json:"parallelism" yaml:"parallelism"`
}

type Persistence struct {
	DataPath               string `json:"dataPath" yaml:"dataPath"`
	TranslogGenerationSize int64  `json:"translog_generation_size" yaml:"translog_generation_size"`
}

type Monitoring struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Port    int  `json:"port" yaml:"port"`
}

// Default returns a single node configuration that accepts explicit
// indices and creates them on first use
func Default() Config {
	return Config{
		Name:        "node1",
		Port:        DefaultPort,
		ClusterPort: DefaultClusterPort,
		BulkAPI: BulkAPI{
			AllowExplicitIndex: true,
			AutoCreateIndex:    true,
			AllowIDGeneration:  true,
		},
		Bulk: Bulk{
			Durability:  string(bulkuc.DurabilityRequest),
			Consistency: string(bulk.ConsistencyQuorum),
		},
		Persistence: Persistence{
			DataPath:               DefaultDataPath,
			TranslogGenerationSize: DefaultTranslogGenerationSize,
		},
		Monitoring: Monitoring{Port: DefaultMonitoringPort},
	}
}

func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.New("node name is required")
	}
	if c.Persistence.DataPath == "" {
		return errors.New("persistence.dataPath is required")
	}
	if c.Persistence.TranslogGenerationSize <= 0 {
		return errors.Errorf("persistence.translog_generation_size must be > 0, got %d",
			c.Persistence.TranslogGenerationSize)
	}
	if _, err := c.BulkConfig(); err != nil {
		return err
	}
	if err := c.ReplicaConfig().Validate(); err != nil {
		return err
	}

	seen := map[string]bool{}
	local := false
	for _, n := range c.Cluster.Nodes {
		if n.Name == "" || n.Host == "" {
			return errors.Errorf("cluster node %q needs both name and host", n.Name)
		}
		if seen[n.Name] {
			return errors.Errorf("cluster node %q is listed twice", n.Name)
		}
		seen[n.Name] = true
		local = local || n.Name == c.Name
	}
	if len(c.Cluster.Nodes) > 0 && !local {
		return errors.Errorf("node %q is not a member of the cluster", c.Name)
	}

	indices := map[string]bool{}
	for _, idx := range c.Indices {
		if idx.Name == "" {
			return errors.New("index name is required")
		}
		if indices[idx.Name] {
			return errors.Errorf("index %q is listed twice", idx.Name)
		}
		indices[idx.Name] = true
		if idx.Shards < 0 || idx.Replicas < 0 {
			return errors.Errorf("index %q: shards and replicas must not be negative", idx.Name)
		}
	}
	return nil
}

// BulkConfig is the executor configuration described by the bulk section
func (c *Config) BulkConfig() (bulkuc.Config, error) {
	var out bulkuc.Config
	if c.Bulk.Durability != "" {
		d, err := bulkuc.ParseDurability(c.Bulk.Durability)
		if err != nil {
			return out, errors.Wrap(err, "bulk.durability")
		}
		out.Durability = d
	}
	if c.Bulk.Consistency != "" {
		cl, err := bulk.ParseConsistencyLevel(c.Bulk.Consistency)
		if err != nil {
			return out, errors.Wrap(err, "bulk.consistency")
		}
		out.Consistency = cl
	}
	out.Timeout = c.Bulk.Timeout
	out.RetryInitial = c.Bulk.RetryInitial
	out.RetryMaxInterval = c.Bulk.RetryMaxInterval
	return out.WithDefaults(), nil
}

func (c *Config) ReplicaConfig() replica.Config {
	return replica.Config{
		MappingRetryInitial: c.Replication.MappingRetryInitial,
		MappingWait:         c.Replication.MappingWait,
		Parallelism:         c.Replication.Parallelism,
	}.WithDefaults()
}

// ClusterNodes returns the configured members. Without any, the local node
// forms a cluster of one reachable on the cluster port.
func (c *Config) ClusterNodes() []sharding.Node {
	if len(c.Cluster.Nodes) == 0 {
		return []sharding.Node{{Name: c.Name, Host: fmt.Sprintf("localhost:%d", c.ClusterPort)}}
	}
	out := make([]sharding.Node, len(c.Cluster.Nodes))
	for i, n := range c.Cluster.Nodes {
		out[i] = sharding.Node{Name: n.Name, Host: n.Host}
	}
	return out
}

// BulkShardConfig bundles the config together with the flags it was
// loaded with
type BulkShardConfig struct {
	Config Config
}

// LoadConfig reads the config file, then applies the environment and
// finally the command line flags on top
func (f *BulkShardConfig) LoadConfig(flags *Flags, logger logrus.FieldLogger) error {
	configFileName := flags.ConfigFile
	if configFileName == "" {
		configFileName = DefaultConfigFile
	}

	f.Config = Default()
	file, err := os.ReadFile(configFileName)
	switch {
	case err == nil:
		logger.WithField("action", "config_load").WithField("config_file_path", configFileName).
			Info("loading config file")
		if err := f.parseConfigFile(file, configFileName); err != nil {
			return configErr(err)
		}
	case flags.ConfigFile != "":
		// an explicitly requested file has to exist
		return configErr(err)
	}

	if err := FromEnv(&f.Config); err != nil {
		return configErr(err)
	}

	f.fromFlags(flags)

	if err := f.Config.Validate(); err != nil {
		return configErr(err)
	}
	return nil
}

// parseConfigFile decodes file on top of the current config
func (f *BulkShardConfig) parseConfigFile(file []byte, name string) error {
	m := regexp.MustCompile(`.*\.(\w+)$`).FindStringSubmatch(name)
	if len(m) < 2 {
		return fmt.Errorf("config file does not have a file ending, got '%s'", name)
	}

	switch m[1] {
	case "json":
		if err := json.Unmarshal(file, &f.Config); err != nil {
			return fmt.Errorf("error unmarshalling the json config file: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(file, &f.Config); err != nil {
			return fmt.Errorf("error unmarshalling the yaml config file: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file extension '%s', use .yaml or .json", m[1])
	}
	return nil
}

func (f *BulkShardConfig) fromFlags(flags *Flags) {
	if flags.NodeName != "" {
		f.Config.Name = flags.NodeName
	}
	if flags.Port > 0 {
		f.Config.Port = flags.Port
	}
	if flags.ClusterPort > 0 {
		f.Config.ClusterPort = flags.ClusterPort
	}
	if flags.DataPath != "" {
		f.Config.Persistence.DataPath = flags.DataPath
	}
	if flags.Debug {
		f.Config.Debug = true
	}
}

func configErr(err error) error {
	return fmt.Errorf("invalid config: %w", err)
}
