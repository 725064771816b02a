package securestore

import (
	log "github.com/stephnangue/credcache/logger"
)

// Factory is the function signature for backend constructors.
type Factory func(conf map[string]string, logger log.Logger) (Storage, error)
