package main

import (
	"flag"
	"log"

	"github.com/librescoot/linkrpc/pkg/phy"
	"github.com/librescoot/linkrpc/pkg/rpc"
)

var (
	serialDevice = flag.String("serial", "", "Serial device path (mutually exclusive with -pipe-in/-pipe-out)")
	baudRate     = flag.Int("baud", 115200, "Serial baud rate")
	pipeIn       = flag.String("pipe-in", "", "Named pipe to receive on")
	pipeOut      = flag.String("pipe-out", "", "Named pipe to send on")

	name    = flag.String("name", "ping", "Function name to call")
	args    = flag.String("args", "", "Argument bytes, sent verbatim as a string")
	stream  = flag.Bool("stream", false, "Send as STREAM (fire-and-forget) instead of REQ")
	timeout = flag.Duration("timeout", 0, "Request timeout (0 uses the endpoint default)")
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
	ep.Start()
	defer ep.Stop()

	if *stream {
		if err := ep.Stream(*name, []byte(*args)); err != nil {
			log.Fatalf("stream %s: %v", *name, err)
		}
		log.Printf("sent STREAM %s(%q)", *name, *args)
		return
	}

	var out [256]byte
	n, err := ep.Request(*name, []byte(*args), out[:], *timeout)
	if err != nil {
		log.Fatalf("request %s: %v", *name, err)
	}
	log.Printf("%s(%q) -> %q", *name, *args, out[:n])
}
