package phy

import (
	"fmt"
	"os"
	"syscall"
)

// PipePHY binds the PHY contract to a pair of named pipes (FIFOs): one
// path is used for send, the other for receive, and the two endpoints
// cross-wire the paths so that one side's send path is the other's
// receive path. Both paths must already exist (created with mkfifo)
// before OpenPipes is called.
type PipePHY struct {
	in  *os.File
	out *os.File
}

// OpenPipes opens inPath for receiving and outPath for sending. The
// receive end is opened first without waiting for a writer; opening the
// send end then blocks until the peer has opened that FIFO for reading.
// Two endpoints with cross-wired paths can therefore open concurrently,
// typically from separate processes, without waiting on each other.
func OpenPipes(inPath, outPath string) (*PipePHY, error) {
	in, err := os.OpenFile(inPath, os.O_RDONLY|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("phy: open receive pipe %s: %w", inPath, err)
	}
	out, err := os.OpenFile(outPath, os.O_WRONLY, 0)
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("phy: open send pipe %s: %w", outPath, err)
	}
	return &PipePHY{in: in, out: out}, nil
}

// Send writes p to the outbound pipe.
func (p *PipePHY) Send(b []byte) (int, error) {
	n, err := p.out.Write(b)
	if err != nil {
		return n, fmt.Errorf("phy: pipe write: %w", err)
	}
	return n, nil
}

// Receive reads whatever is available from the inbound pipe, blocking
// until at least one byte arrives.
func (p *PipePHY) Receive(b []byte) (int, error) {
	n, err := p.in.Read(b)
	if err != nil {
		return n, fmt.Errorf("phy: pipe read: %w", err)
	}
	return n, nil
}

// Close releases both pipe ends.
func (p *PipePHY) Close() error {
	errOut := p.out.Close()
	errIn := p.in.Close()
	if errOut != nil {
		return errOut
	}
	return errIn
}

var _ PHY = (*PipePHY)(nil)
