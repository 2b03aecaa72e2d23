// Package transport implements the typed message codec, the function
// registry, the waiter table, and the inbound dispatcher that together
// demultiplex the single link-layer byte stream into many logical callers
// and handler invocations.
package transport

import (
	"bytes"
	"fmt"
)

// MessageType identifies a typed message's role on the wire.
type MessageType byte

const (
	TypeREQ    MessageType = 0x0B
	TypeSTREAM MessageType = 0x0C
	TypeRESP   MessageType = 0x16
	TypeERR    MessageType = 0x21
)

func (t MessageType) String() string {
	switch t {
	case TypeREQ:
		return "REQ"
	case TypeSTREAM:
		return "STREAM"
	case TypeRESP:
		return "RESP"
	case TypeERR:
		return "ERR"
	default:
		return fmt.Sprintf("MessageType(0x%02X)", byte(t))
	}
}

// Name and argument bounds.
const (
	MinName = 1
	MaxName = 32
	ArgsMax = 64
)

// Message is the parsed, in-memory form of a typed message: type | seq |
// name | NUL | args.
type Message struct {
	Type MessageType
	Seq  byte
	Name string
	Args []byte
}

func isKnownType(t MessageType) bool {
	switch t {
	case TypeREQ, TypeSTREAM, TypeRESP, TypeERR:
		return true
	default:
		return false
	}
}

// Build encodes m into a fresh byte slice: the typed message's wire form.
// It fails if name's length is outside [MinName, MaxName], if args exceeds
// ArgsMax, or if the resulting size would be outside the link layer's
// payload bounds.
func Build(m Message) ([]byte, error) {
	if len(m.Name) < MinName || len(m.Name) > MaxName {
		return nil, fmt.Errorf("transport: name length %d out of [%d,%d]", len(m.Name), MinName, MaxName)
	}
	if bytes.IndexByte([]byte(m.Name), 0) != -1 {
		return nil, fmt.Errorf("transport: name must not contain NUL")
	}
	if len(m.Args) > ArgsMax {
		return nil, fmt.Errorf("transport: args length %d exceeds ArgsMax %d", len(m.Args), ArgsMax)
	}
	if !isKnownType(m.Type) {
		return nil, fmt.Errorf("transport: unknown message type 0x%02X", byte(m.Type))
	}

	size := 1 + 1 + len(m.Name) + 1 + len(m.Args)
	buf := make([]byte, 0, size)
	buf = append(buf, byte(m.Type), m.Seq)
	buf = append(buf, m.Name...)
	buf = append(buf, 0)
	buf = append(buf, m.Args...)
	return buf, nil
}

// Parse decodes buf into a Message. It validates the type byte, locates the
// NUL-terminated name, and bounds-checks both name and args; it never
// returns a partial Message on error.
func Parse(buf []byte) (Message, error) {
	if len(buf) < 3 {
		return Message{}, fmt.Errorf("transport: payload too short (%d bytes)", len(buf))
	}
	typ := MessageType(buf[0])
	if !isKnownType(typ) {
		return Message{}, fmt.Errorf("transport: unknown message type 0x%02X", buf[0])
	}
	seq := buf[1]

	nameStart := 2
	nulIdx := bytes.IndexByte(buf[nameStart:], 0)
	if nulIdx == -1 {
		return Message{}, fmt.Errorf("transport: missing NUL terminator after name")
	}
	name := buf[nameStart : nameStart+nulIdx]
	if len(name) < MinName || len(name) > MaxName {
		return Message{}, fmt.Errorf("transport: name length %d out of [%d,%d]", len(name), MinName, MaxName)
	}

	argsStart := nameStart + nulIdx + 1
	args := buf[argsStart:]
	if len(args) > ArgsMax {
		return Message{}, fmt.Errorf("transport: args length %d exceeds ArgsMax %d", len(args), ArgsMax)
	}

	return Message{
		Type: typ,
		Seq:  seq,
		Name: string(name),
		Args: append([]byte(nil), args...),
	}, nil
}
