package protocol

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// ResponseHandler is a function type for handling responses from the device
type ResponseHandler func(cmdID uint16, data *[]byte) error

// Message is one parsed frame as seen by the host: the sequence byte and
// the payload between header and trailer.
type Message struct {
	Sequence uint8
	Payload  []byte
}

// HostTransport is the host side of the link: it sends command frames,
// waits for their ACKs and collects response frames from a background read
// loop.
type HostTransport struct {
	port io.ReadWriteCloser

	currentSeq uint32 // atomic uint8

	scanner     frameScanner
	inputBuffer *FifoBuffer
	sendBuf     *bytes.Buffer

	ackChan      chan *Message
	responseChan chan *Message

	responseHandler ResponseHandler

	writeMutex sync.Mutex

	stopChan chan struct{}
	doneChan chan struct{}
}

// NewHostTransport creates a host-side transport on port and starts its
// read loop.
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:         port,
		currentSeq:   MessageDest,
		inputBuffer:  NewFifoBuffer(512),
		sendBuf:      bytes.NewBuffer(make([]byte, 0, MessageLengthMax)),
		ackChan:      make(chan *Message, 1),
		responseChan: make(chan *Message, 16),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}

	t.scanner.synced = true
	t.scanner.onFrame = t.handleFrame

	go t.readLoop()

	return t
}

// SendCommand sends a command to the device and waits for its ACK.
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmdID, args, 2*time.Second)
}

// SendCommandWithTimeout sends a command with a custom ACK timeout.
func (t *HostTransport) SendCommandWithTimeout(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	msg, err := t.buildCommandMessage(cmdID, args)
	if err != nil {
		return fmt.Errorf("build command: %w", err)
	}

	if err := t.writeMessage(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	if err := t.waitForAck(timeout); err != nil {
		return fmt.Errorf("ack: %w", err)
	}

	return nil
}

// buildCommandMessage assembles a complete frame around the encoded command.
func (t *HostTransport) buildCommandMessage(cmdID uint16, args func(output OutputBuffer)) ([]byte, error) {
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	scratch := NewScratchOutput()
	EncodeVLQUint(scratch, uint32(cmdID))
	if args != nil {
		args(scratch)
	}
	payload := scratch.Result()

	msgLen := MessageHeaderSize + len(payload) + MessageTrailerSize
	if msgLen > MessageLengthMax {
		return nil, fmt.Errorf("message too long: %d bytes (max %d)", msgLen, MessageLengthMax)
	}

	t.sendBuf.Reset()
	seq := uint8(atomic.LoadUint32(&t.currentSeq))
	t.sendBuf.Write([]byte{uint8(msgLen), seq})
	t.sendBuf.Write(payload)

	crc := CRC16(t.sendBuf.Bytes())
	t.sendBuf.Write([]byte{uint8(crc >> 8), uint8(crc & 0xFF), MessageValueSync})

	msg := make([]byte, t.sendBuf.Len())
	copy(msg, t.sendBuf.Bytes())

	return msg, nil
}

// writeMessage pushes a complete frame out the port.
func (t *HostTransport) writeMessage(msg []byte) error {
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	n, err := t.port.Write(msg)
	if err != nil {
		return err
	}
	if n != len(msg) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(msg))
	}

	return nil
}

// waitForAck blocks until the device ACKs the in-flight command. A
// successful ACK carries the next expected sequence; anything else is the
// device asking for a retransmit.
func (t *HostTransport) waitForAck(timeout time.Duration) error {
	select {
	case ack := <-t.ackChan:
		sentSeq := uint8(atomic.LoadUint32(&t.currentSeq))
		nextSeq := ((sentSeq + 1) & MessageSeqMask) | MessageDest
		if ack.Sequence != nextSeq {
			return fmt.Errorf("nak: device expects 0x%02x, sent 0x%02x", ack.Sequence, sentSeq)
		}

		atomic.StoreUint32(&t.currentSeq, uint32(nextSeq))
		return nil

	case <-time.After(timeout):
		return fmt.Errorf("ack timeout after %v", timeout)

	case <-t.stopChan:
		return fmt.Errorf("transport stopped")
	}
}

// ReceiveResponse returns the next response frame, blocking up to timeout.
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (*Message, error) {
	select {
	case resp := <-t.responseChan:
		return resp, nil

	case <-time.After(timeout):
		return nil, fmt.Errorf("response timeout after %v", timeout)

	case <-t.stopChan:
		return nil, fmt.Errorf("transport stopped")
	}
}

// SetResponseHandler sets a callback invoked from the read loop for every
// response frame.
func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.responseHandler = handler
}

// readLoop continuously reads from the port and scans for frames.
func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buffer := make([]byte, 256)

	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		n, err := t.port.Read(buffer)
		if err != nil {
			if err == io.EOF {
				return
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if n > 0 {
			t.inputBuffer.Write(buffer[:n])
			consumed := t.scanner.scan(t.inputBuffer.Data())
			if consumed > 0 {
				t.inputBuffer.Pop(consumed)
			}
		}
	}
}

// handleFrame routes one validated frame to the ACK or response channel.
// ACKs arrive as empty frames carrying only the device's expected sequence.
func (t *HostTransport) handleFrame(seq uint8, payload []byte) {
	msg := &Message{
		Sequence: seq,
		Payload:  append([]byte(nil), payload...),
	}

	if len(msg.Payload) == 0 {
		select {
		case t.ackChan <- msg:
		default:
		}
		return
	}

	if t.responseHandler != nil {
		data := append([]byte(nil), msg.Payload...)
		cmdID, err := DecodeVLQUint(&data)
		if err == nil {
			_ = t.responseHandler(uint16(cmdID), &data)
		}
	}

	select {
	case t.responseChan <- msg:
	default:
		// Channel full; drop the oldest response to make room
		select {
		case <-t.responseChan:
		default:
		}
		t.responseChan <- msg
	}
}

// Close stops the read loop and closes the port.
func (t *HostTransport) Close() error {
	close(t.stopChan)

	// Close the port before waiting so a Read blocked on a port without a
	// read timeout (e.g. net.Pipe) unblocks and the loop can exit.
	var err error
	if t.port != nil {
		err = t.port.Close()
	}
	<-t.doneChan

	return err
}

// Reset restores the transport to its initial state after an error.
func (t *HostTransport) Reset() {
	atomic.StoreUint32(&t.currentSeq, MessageDest)
	t.scanner.synced = true

	for len(t.ackChan) > 0 {
		<-t.ackChan
	}
	for len(t.responseChan) > 0 {
		<-t.responseChan
	}

	if t.inputBuffer.Available() > 0 {
		t.inputBuffer.Pop(t.inputBuffer.Available())
	}
}

// CurrentSequence returns the sequence number of the next command frame.
func (t *HostTransport) CurrentSequence() uint8 {
	return uint8(atomic.LoadUint32(&t.currentSeq))
}
