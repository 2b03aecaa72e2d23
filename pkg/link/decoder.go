package link

// state is the link-layer byte-stream decoder's parser state.
type state int

const (
	stateWaitSOF state = iota
	stateReadLen1
	stateReadLen2
	stateReadHdrCRC
	stateWaitSOD
	stateReadPayload
	stateReadPktCRC
	stateWaitEOF
)

// NoiseReporter is notified of bytes or frames the decoder discarded —
// dropped sync noise, header/packet CRC mismatches, bad length fields, or a
// missing EOF. It exists purely for diagnostics; the decoder's
// resynchronization behavior never depends on it.
type NoiseReporter func(reason string, b byte)

// Decoder is a single-threaded byte-stream parser: exactly one goroutine
// (the RX thread) may call ProcessByte, and the decoder holds no state
// across a successful or failed frame beyond the current partial frame.
type Decoder struct {
	state state

	lenLo, lenHi byte
	segLen       int // byte count of [SOD] payload [pkt_crc] [EOF]

	payload    []byte
	payloadCap int

	onFrame func(payload []byte)
	onNoise NoiseReporter
}

// NewDecoder constructs a decoder that calls onFrame with a fresh copy of
// each successfully parsed payload. onNoise may be nil.
func NewDecoder(onFrame func(payload []byte), onNoise NoiseReporter) *Decoder {
	return &Decoder{
		state:   stateWaitSOF,
		onFrame: onFrame,
		onNoise: onNoise,
	}
}

func (d *Decoder) reset() {
	d.state = stateWaitSOF
	d.payload = nil
	d.payloadCap = 0
}

func (d *Decoder) noise(reason string, b byte) {
	if d.onNoise != nil {
		d.onNoise(reason, b)
	}
}

// ProcessByte feeds one received byte through the state machine. On
// completing a valid frame it invokes onFrame with the decoded payload
// before resetting to stateWaitSOF; on any violation it resets to
// stateWaitSOF without calling onFrame.
func (d *Decoder) ProcessByte(b byte) {
	switch d.state {
	case stateWaitSOF:
		if b == SOF {
			d.lenLo, d.lenHi = 0, 0
			d.state = stateReadLen1
		} else {
			d.noise("unexpected byte while waiting for SOF", b)
		}

	case stateReadLen1:
		d.lenLo = b
		d.state = stateReadLen2

	case stateReadLen2:
		d.lenHi = b
		segLen := int(d.lenHi)<<8 | int(d.lenLo)
		if !validPktLen(segLen) {
			d.noise("invalid frame length", b)
			d.reset()
			return
		}
		d.segLen = segLen
		d.payloadCap = segLen - 3 // exclude SOD, pkt_crc, EOF
		d.state = stateReadHdrCRC

	case stateReadHdrCRC:
		if b != headerCRC(d.lenLo, d.lenHi) {
			d.noise("header CRC mismatch", b)
			d.reset()
			return
		}
		d.state = stateWaitSOD

	case stateWaitSOD:
		if b != SOD {
			d.noise("expected SOD", b)
			d.reset()
			return
		}
		d.payload = make([]byte, 0, d.payloadCap)
		d.state = stateReadPayload

	case stateReadPayload:
		d.payload = append(d.payload, b)
		if len(d.payload) >= d.payloadCap {
			d.state = stateReadPktCRC
		}

	case stateReadPktCRC:
		if b != packetCRC(d.payload) {
			d.noise("packet CRC mismatch", b)
			d.reset()
			return
		}
		d.state = stateWaitEOF

	case stateWaitEOF:
		if b != EOF {
			d.noise("expected EOF", b)
			d.reset()
			return
		}
		payload := d.payload
		d.reset()
		if d.onFrame != nil {
			d.onFrame(payload)
		}

	default:
		d.reset()
	}
}

// Feed processes every byte in buf in order.
func (d *Decoder) Feed(buf []byte) {
	for _, b := range buf {
		d.ProcessByte(b)
	}
}
