package protocol

// CommandHandler is a function type for handling decoded commands
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the device side of the link. It validates inbound frames,
// dispatches the commands they carry, ACKs every frame and encodes outbound
// response frames.
//
// Transport is not internally synchronized; Receive and SendCommand must be
// called from the single loop that pumps the link.
type Transport struct {
	scanner      frameScanner
	nextSequence uint8
	output       OutputBuffer
	handler      CommandHandler

	// resetCallback fires when the host restarts the sequence space.
	resetCallback func()

	// flushCallback pushes buffered output to the link immediately. The
	// host's queueing layer needs the ACK on the wire before any response.
	flushCallback func()
}

// NewTransport creates a device-side transport writing frames to output and
// dispatching commands to handler.
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	t := &Transport{
		nextSequence: MessageDest,
		output:       output,
		handler:      handler,
	}
	t.scanner.synced = true
	t.scanner.onFrame = t.handleFrame
	t.scanner.onResync = t.sendAck
	return t
}

// Receive drains complete frames from the input buffer. Partial frames stay
// buffered for the next call.
func (t *Transport) Receive(input InputBuffer) {
	consumed := t.scanner.scan(input.Data())
	if consumed > 0 {
		input.Pop(consumed)
	}
}

// handleFrame services one validated frame from the scanner.
func (t *Transport) handleFrame(seq uint8, payload []byte) {
	if seq == MessageDest && t.nextSequence != MessageDest {
		// Host restarted; fall back to the initial sequence
		t.nextSequence = MessageDest
		if t.resetCallback != nil {
			t.resetCallback()
		}
	}

	if seq == t.nextSequence {
		t.nextSequence = ((seq + 1) & MessageSeqMask) | MessageDest
		_ = t.parseFrame(payload)
	}

	// ACK regardless. A mismatched frame still gets one carrying the
	// expected sequence, which is how the host learns to retransmit.
	t.sendAck()
}

// parseFrame dispatches each command packed in a frame payload.
func (t *Transport) parseFrame(frame []byte) (err error) {
	// A handler panic must not take the firmware down; desync and let the
	// host retransmit.
	defer func() {
		if r := recover(); r != nil {
			t.scanner.synced = false
		}
	}()

	for len(frame) > 0 {
		cmdID, err := DecodeVLQUint(&frame)
		if err != nil {
			t.scanner.synced = false
			return err
		}

		if t.handler != nil {
			if err := t.handler(uint16(cmdID), &frame); err != nil {
				// Handler errors don't desync; remaining commands in the
				// frame are dropped
				return err
			}
		}
	}
	return nil
}

// sendAck emits a minimal frame carrying only the expected sequence.
func (t *Transport) sendAck() {
	crc := CRC16([]byte{MessageLengthMin, t.nextSequence})

	t.output.Output([]byte{
		MessageLengthMin,
		t.nextSequence,
		uint8(crc >> 8),
		uint8(crc & 0xFF),
		MessageValueSync,
	})

	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// EncodeFrame encodes and buffers one outbound frame. Responses reuse the
// current sequence; only inbound frames advance it.
func (t *Transport) EncodeFrame(frameData func(output OutputBuffer)) {
	cursor := t.output.CurPosition()

	// Length is patched in once the payload size is known
	t.output.Output([]byte{0, t.nextSequence})

	frameData(t.output)

	written := len(t.output.DataSince(cursor))
	t.output.Update(cursor, uint8(written+MessageTrailerSize))

	crc := CRC16(t.output.DataSince(cursor))
	t.output.Output([]byte{
		uint8(crc >> 8),
		uint8(crc & 0xFF),
		MessageValueSync,
	})
}

// SendCommand encodes a response frame carrying one command and its
// arguments.
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	t.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Reset restores the transport to its post-boot state.
func (t *Transport) Reset() {
	t.scanner.synced = true
	t.nextSequence = MessageDest
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback sets a callback fired when a host restart is detected.
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback sets the callback that pushes a buffered ACK to the link.
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}
