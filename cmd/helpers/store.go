package helpers

import (
	"fmt"
	"os"

	"github.com/stephnangue/credcache/cache"
	"github.com/stephnangue/credcache/config"
	log "github.com/stephnangue/credcache/logger"
	"github.com/stephnangue/credcache/securestore"
	"github.com/stephnangue/credcache/securestore/file"
	"github.com/stephnangue/credcache/securestore/inmem"
	"github.com/stephnangue/credcache/securestore/postgres"
)

const defaultConfigPath = "credcache.hcl"

// backendFactories maps the storage block type label to its constructor.
var backendFactories = map[string]securestore.Factory{
	"inmem":    inmem.NewInmem,
	"file":     file.NewFileStorage,
	"postgres": postgres.NewPostgreSQLStorage,
}

// ConfigPath resolves the configuration file path for the current command.
func ConfigPath() string {
	if path := os.Getenv("CREDCACHE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// OpenStore loads the configuration and builds the token cache store over
// the configured backend. The caller owns the returned closers.
func OpenStore() (*cache.TokenCacheStore, log.Logger, error) {
	conf, err := config.LoadConfig(ConfigPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := log.NewZerologLogger(conf.LoggerConfig())

	factory, ok := backendFactories[conf.Storage.Type]
	if !ok {
		logger.Close()
		return nil, nil, fmt.Errorf("unknown storage type %q", conf.Storage.Type)
	}
	backend, err := factory(conf.Storage.Config(), logger)
	if err != nil {
		logger.Close()
		return nil, nil, fmt.Errorf("failed to build %s storage: %w", conf.Storage.Type, err)
	}

	storeConf := cache.StoreConfig{Group: conf.Group()}
	if conf.Cache != nil {
		storeConf.EnableEntryCache = conf.Cache.EnableEntryCache
		storeConf.CacheNumCounters = conf.Cache.CacheNumCounters
		storeConf.CacheMaxCost = conf.Cache.CacheMaxCost
	}
	store, err := cache.NewTokenCacheStore(backend, storeConf, logger)
	if err != nil {
		logger.Close()
		return nil, nil, fmt.Errorf("failed to build token cache: %w", err)
	}

	return store, logger, nil
}
