// Package config loads the credcache HCL configuration file.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"
	log "github.com/stephnangue/credcache/logger"
)

// DefaultStorageGroup is used when the cache block does not name one.
const DefaultStorageGroup = "default"

// Config is the configuration for the credcache CLI.
type Config struct {
	LogLevel           string `hcl:"log_level,optional"`
	LogFormat          string `hcl:"log_format,optional"`
	LogFile            string `hcl:"log_file,optional"`
	LogRotateMegabytes int    `hcl:"log_rotate_megabytes,optional"`
	LogRotateMaxFiles  int    `hcl:"log_rotate_max_files,optional"`

	Cache   *CacheBlock   `hcl:"cache,block"`
	Storage *StorageBlock `hcl:"storage,block"`
}

// CacheBlock configures the token cache itself.
type CacheBlock struct {
	Group            string `hcl:"group,optional"`
	EnableEntryCache bool   `hcl:"enable_entry_cache,optional"`
	CacheNumCounters int64  `hcl:"cache_num_counters,optional"`
	CacheMaxCost     int64  `hcl:"cache_max_cost,optional"`
}

// StorageBlock configures the secure store backend.
type StorageBlock struct {
	Type string `hcl:"type,label"` // "inmem", "file", or "postgres"

	// File storage specific config
	Path string `hcl:"path,optional"`

	// PostgreSQL storage specific config
	ConnectionURL      string `hcl:"connection_url,optional"`
	Table              string `hcl:"table,optional"`
	MaxIdleConnections int    `hcl:"max_idle_connections,optional"`

	// Upper bound on a single record's value size, in bytes. Zero means
	// unlimited.
	MaxValueSize int `hcl:"max_value_size,optional"`
}

// Config returns the storage configuration as a map, the shape the backend
// factories consume.
func (s *StorageBlock) Config() map[string]string {
	config := make(map[string]string)

	config["type"] = s.Type

	if s.Path != "" {
		config["path"] = s.Path
	}
	if s.ConnectionURL != "" {
		config["connection_url"] = s.ConnectionURL
	}
	if s.Table != "" {
		config["table"] = s.Table
	}
	if s.MaxIdleConnections != 0 {
		config["max_idle_connections"] = fmt.Sprintf("%d", s.MaxIdleConnections)
	}
	if s.MaxValueSize != 0 {
		config["max_value_size"] = fmt.Sprintf("%d", s.MaxValueSize)
	}

	return config
}

// Group returns the configured storage group, defaulted when absent.
func (c *Config) Group() string {
	if c.Cache == nil || c.Cache.Group == "" {
		return DefaultStorageGroup
	}
	return c.Cache.Group
}

// LoggerConfig maps the log settings onto a logger configuration.
func (c *Config) LoggerConfig() *log.Config {
	conf := log.DefaultConfig()
	if c.LogLevel != "" {
		conf.Level = log.ParseLogLevel(c.LogLevel)
	}
	if c.LogFormat != "" {
		conf.Format = log.ParseOutputFormat(c.LogFormat)
	}
	if c.LogFile != "" {
		fileConf := log.DefaultFileConfig(c.LogFile)
		if c.LogRotateMegabytes != 0 {
			fileConf.MaxSize = c.LogRotateMegabytes
		}
		if c.LogRotateMaxFiles != 0 {
			fileConf.MaxBackups = c.LogRotateMaxFiles
		}
		conf.FileConfig = fileConf
		conf.Outputs = []io.Writer{os.Stderr}
	}
	return conf
}

// LoadConfig reads and decodes an HCL configuration file.
func LoadConfig(configFile string) (*Config, error) {
	var config Config

	err := hclsimple.DecodeFile(configFile, nil, &config)
	if err != nil {
		return nil, err
	}
	if config.Storage == nil {
		return nil, fmt.Errorf("config file %q has no storage block", configFile)
	}
	return &config, nil
}
