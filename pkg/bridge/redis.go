package bridge

import (
	"log"
	"strings"
	"time"

	"github.com/librescoot/linkrpc/pkg/transport"
)

// Invoker is the subset of Endpoint a bridge needs: enough to relay a
// Redis-originated command to the peer. Kept as a small interface rather
// than a concrete *rpc.Endpoint so bridge has no dependency on the rpc
// package and is trivially testable against a fake.
type Invoker interface {
	Stream(name string, args []byte) error
	Request(name string, args []byte, out []byte, timeout time.Duration) (int, error)
}

// CommandListKey is the Redis list RedisBridge.WatchCommands drains with
// BRPOP.
const CommandListKey = "linkrpc:commands"

// Store is the Redis surface RedisBridge needs: *Client satisfies it, and
// tests substitute a fake to exercise WatchCommands/ReportHandler without
// a live server.
type Store interface {
	BRPop(timeout time.Duration, key string) ([]string, error)
	WriteAndPublishString(key, field, value string) error
}

// RedisBridge relays Redis list commands to an RPC peer as STREAM calls,
// and gives handlers a way to publish their inbound args back to Redis.
type RedisBridge struct {
	store   Store
	invoker Invoker
}

// NewRedisBridge pairs a Redis store with the Invoker it drives.
func NewRedisBridge(store Store, invoker Invoker) *RedisBridge {
	return &RedisBridge{store: store, invoker: invoker}
}

// WatchCommands blocks draining CommandListKey with BRPOP until stop is
// closed, relaying each popped command as a STREAM call. A command is
// "name" or "name:arg"; arg (if present) is passed verbatim as the
// STREAM's args. Errors from BRPOP itself (not a timeout) back off for a
// second before retrying.
func (b *RedisBridge) WatchCommands(stop <-chan struct{}) {
	log.Printf("bridge: watching %s for commands", CommandListKey)
	for {
		select {
		case <-stop:
			return
		default:
		}

		result, err := b.store.BRPop(0, CommandListKey)
		if err != nil {
			log.Printf("bridge: brpop %s: %v", CommandListKey, err)
			time.Sleep(time.Second)
			continue
		}
		if result == nil {
			continue
		}

		command := result[1]
		name, arg := splitCommand(command)
		var args []byte
		if arg != "" {
			args = []byte(arg)
		}

		if err := b.invoker.Stream(name, args); err != nil {
			log.Printf("bridge: relay command %q: %v", command, err)
		} else {
			log.Printf("bridge: relayed command %q", command)
		}
	}
}

// ReportHandler returns a transport.Handler that publishes every inbound
// REQ/STREAM's args, treated as a UTF-8 string, to key/field via
// WriteAndPublishString, then acknowledges with an empty successful
// response. Register it under whatever function name the peer calls to
// report state changes (e.g. "telemetry").
func (b *RedisBridge) ReportHandler(key, field string) transport.Handler {
	return func(args []byte, out []byte, timeoutMs int) (int, int) {
		if err := b.store.WriteAndPublishString(key, field, string(args)); err != nil {
			log.Printf("bridge: publish %s.%s: %v", key, field, err)
			return 0, -1
		}
		return 0, 0
	}
}

// PublishReport writes value to key/field and publishes it, the same way
// ReportHandler does, for callers that already have a value in hand
// rather than raw inbound args (e.g. a handler that decodes its args
// before republishing a derived summary).
func (b *RedisBridge) PublishReport(key, field, value string) error {
	return b.store.WriteAndPublishString(key, field, value)
}

// splitCommand separates a Redis command string into its function name
// and an optional ":"-delimited argument.
func splitCommand(command string) (name, arg string) {
	name, arg, _ = strings.Cut(command, ":")
	return name, arg
}
