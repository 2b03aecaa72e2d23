package phy

import (
	"fmt"

	"go.bug.st/serial"
)

// SerialPHY binds the PHY contract to a UART: 8 data bits, no parity, one
// stop bit, blocking reads, built on go.bug.st/serial.
type SerialPHY struct {
	port serial.Port
}

// OpenSerial opens devicePath at baud and returns a ready-to-use PHY.
func OpenSerial(devicePath string, baud int) (*SerialPHY, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(devicePath, mode)
	if err != nil {
		return nil, fmt.Errorf("phy: open serial port %s: %w", devicePath, err)
	}
	return &SerialPHY{port: port}, nil
}

// Send writes p to the serial port.
func (s *SerialPHY) Send(p []byte) (int, error) {
	n, err := s.port.Write(p)
	if err != nil {
		return n, fmt.Errorf("phy: serial write: %w", err)
	}
	return n, nil
}

// Receive reads whatever is available into p, blocking until at least one
// byte arrives (the port has no read timeout configured).
func (s *SerialPHY) Receive(p []byte) (int, error) {
	n, err := s.port.Read(p)
	if err != nil {
		return n, fmt.Errorf("phy: serial read: %w", err)
	}
	return n, nil
}

// Close releases the serial port.
func (s *SerialPHY) Close() error {
	return s.port.Close()
}

var _ PHY = (*SerialPHY)(nil)
