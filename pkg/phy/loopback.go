package phy

import "io"

// loopback is an in-process PHY built on top of an io.Reader/io.Writer
// pair, used to connect two Endpoints in the same process (demos, tests)
// without a real UART or named pipe.
type loopback struct {
	r io.ReadCloser
	w io.WriteCloser
}

// NewLoopbackPair returns two PHYs such that a's Send bytes arrive at b's
// Receive, and b's Send bytes arrive at a's Receive.
func NewLoopbackPair() (PHY, PHY) {
	aToB_r, aToB_w := io.Pipe()
	bToA_r, bToA_w := io.Pipe()
	a := &loopback{r: bToA_r, w: aToB_w}
	b := &loopback{r: aToB_r, w: bToA_w}
	return a, b
}

func (l *loopback) Send(p []byte) (int, error) {
	return l.w.Write(p)
}

func (l *loopback) Receive(p []byte) (int, error) {
	return l.r.Read(p)
}

func (l *loopback) Close() error {
	errW := l.w.Close()
	errR := l.r.Close()
	if errW != nil {
		return errW
	}
	return errR
}

var _ PHY = (*loopback)(nil)
