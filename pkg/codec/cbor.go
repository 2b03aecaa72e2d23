// Package codec gives RPC handler args/out byte slices structure. The
// transport layer treats args and out as opaque bytes; CBOR is how a
// handler on either end agrees on what those bytes mean, carrying this
// module's own message shapes.
package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Encode marshals v into a CBOR byte slice. It does not bound the result;
// the caller is responsible for checking it against ArgsMax/OutCap before
// handing it to the transport layer.
func Encode(v interface{}) ([]byte, error) {
	buf, err := cbor.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: cbor marshal: %w", err)
	}
	return buf, nil
}

// Decode unmarshals a CBOR byte slice produced by Encode into v.
func Decode(data []byte, v interface{}) error {
	if err := cbor.Unmarshal(data, v); err != nil {
		return fmt.Errorf("codec: cbor unmarshal: %w", err)
	}
	return nil
}

// TelemetryReport is the example structured payload the reference "telemetry"
// handler (cmd/rpcserver) exchanges, demonstrating a typed args/response
// shape layered over the RPC byte transport.
type TelemetryReport struct {
	Sequence  uint32  `cbor:"1,keyasint"`
	BatteryMV uint16  `cbor:"2,keyasint"`
	TempC     float32 `cbor:"3,keyasint"`
	Label     string  `cbor:"4,keyasint"`
}
