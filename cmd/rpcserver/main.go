package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/librescoot/linkrpc/pkg/bridge"
	"github.com/librescoot/linkrpc/pkg/codec"
	"github.com/librescoot/linkrpc/pkg/phy"
	"github.com/librescoot/linkrpc/pkg/rpc"
)

var (
	serialDevice = flag.String("serial", "", "Serial device path (mutually exclusive with -pipe-in/-pipe-out)")
	baudRate     = flag.Int("baud", 115200, "Serial baud rate")
	pipeIn       = flag.String("pipe-in", "", "Named pipe to receive on")
	pipeOut      = flag.String("pipe-out", "", "Named pipe to send on")

	redisAddr = flag.String("redis-addr", "", "Redis server address (enables the command/telemetry bridge)")
	redisPass = flag.String("redis-pass", "", "Redis password")
	redisDB   = flag.Int("redis-db", 0, "Redis database number")
)

func openPHY() phy.PHY {
	switch {
	case *serialDevice != "":
		p, err := phy.OpenSerial(*serialDevice, *baudRate)
		if err != nil {
			log.Fatalf("open serial %s: %v", *serialDevice, err)
		}
		return p
	case *pipeIn != "" && *pipeOut != "":
		p, err := phy.OpenPipes(*pipeIn, *pipeOut)
		if err != nil {
			log.Fatalf("open pipes in=%s out=%s: %v", *pipeIn, *pipeOut, err)
		}
		return p
	default:
		log.Fatal("one of -serial or -pipe-in/-pipe-out is required")
		return nil
	}
}

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	p := openPHY()
	ep := rpc.New(p, rpc.NewConfig())

	if err := ep.Register("ping", pingHandler); err != nil {
		log.Fatalf("register ping: %v", err)
	}
	if err := ep.Register("echo", echoHandler); err != nil {
		log.Fatalf("register echo: %v", err)
	}

	var rb *bridge.RedisBridge
	if *redisAddr != "" {
		client, err := bridge.NewClient(*redisAddr, *redisPass, *redisDB)
		if err != nil {
			log.Fatalf("connect redis: %v", err)
		}
		defer client.Close()
		log.Printf("Connected to Redis at %s", *redisAddr)

		rb = bridge.NewRedisBridge(client, ep)
		stopCommands := make(chan struct{})
		defer close(stopCommands)
		go rb.WatchCommands(stopCommands)
	}

	if err := ep.Register("telemetry", telemetryHandler(rb)); err != nil {
		log.Fatalf("register telemetry: %v", err)
	}

	ep.Start()
	defer ep.Stop()
	log.Printf("rpcserver listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutting down")
}

// pingHandler echoes args back unchanged, the smallest possible handler
// that exercises a full REQ/RESP round trip end to end.
func pingHandler(args []byte, out []byte, timeoutMs int) (int, int) {
	return copy(out, args), 0
}

// echoHandler logs whatever it receives before echoing it back, useful
// for exercising STREAM (no reply expected) as well as REQ against the
// same handler.
func echoHandler(args []byte, out []byte, timeoutMs int) (int, int) {
	log.Printf("echo: %q", args)
	return copy(out, args), 0
}

// telemetryHandler decodes a CBOR-encoded codec.TelemetryReport from a
// STREAM's args and logs it; when rb is non-nil the decoded summary is
// also republished to Redis.
func telemetryHandler(rb *bridge.RedisBridge) func([]byte, []byte, int) (int, int) {
	return func(args []byte, out []byte, timeoutMs int) (int, int) {
		var report codec.TelemetryReport
		if err := codec.Decode(args, &report); err != nil {
			log.Printf("telemetry: decode: %v", err)
			return 0, -2
		}
		summary := fmt.Sprintf("seq=%d battery_mv=%d temp_c=%.1f label=%s",
			report.Sequence, report.BatteryMV, report.TempC, report.Label)
		log.Printf("telemetry: %s", summary)
		if rb != nil {
			if err := rb.PublishReport("rpc:telemetry", "report", summary); err != nil {
				log.Printf("telemetry: republish: %v", err)
			}
		}
		return 0, 0
	}
}
