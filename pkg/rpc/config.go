package rpc

import (
	"time"

	"github.com/librescoot/linkrpc/pkg/transport"
	"github.com/librescoot/linkrpc/pkg/worker"
)

// Config collects the stack's tunables. Construct with NewConfig, which
// fills in the defaults; override only the fields a particular
// deployment needs, the way an Options struct with a constructor is used
// elsewhere in the ecosystem (e.g. redis.NewClient(&redis.Options{...})).
type Config struct {
	// WorkerCount is the number of worker pool goroutines (default 1).
	WorkerCount int

	// ReqTimeout is used by Request when a caller passes 0.
	ReqTimeout time.Duration
}

// NewConfig returns a Config populated with the stack's defaults.
func NewConfig() Config {
	return Config{
		WorkerCount: worker.WorkerCountDefault,
		ReqTimeout:  transport.ReqTimeoutDefault,
	}
}

func (c Config) withDefaults() Config {
	if c.WorkerCount <= 0 {
		c.WorkerCount = worker.WorkerCountDefault
	}
	if c.ReqTimeout <= 0 {
		c.ReqTimeout = transport.ReqTimeoutDefault
	}
	return c
}
