// Package protocol implements the framed wire protocol spoken between the
// indicator firmware and its host. Frames carry a length byte, a sequence
// byte, VLQ-encoded command payloads, a CRC16 and a trailing sync byte.
package protocol

import "bytes"

// Wire framing constants
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
	MessageSeqMask     = 0x0F

	// MessageMax sizes output scratch buffers; responses can batch several
	// frames before a flush.
	MessageMax = 512
)

// frameScanner incrementally extracts validated frames from a byte stream.
// Both sides of the link parse the same framing, so they share this.
type frameScanner struct {
	synced bool

	// onFrame receives each validated frame. The payload slice aliases the
	// scanned data and is only valid for the duration of the call.
	onFrame func(seq uint8, payload []byte)

	// onResync, if set, fires after garbage is skipped and a sync byte
	// restores framing.
	onResync func()
}

// scan walks data, emitting every complete valid frame, and returns the
// number of bytes consumed. Bytes of a trailing partial frame are left
// unconsumed. Any framing violation drops sync; scanning then discards
// input up to the next sync byte.
func (s *frameScanner) scan(data []byte) int {
	total := len(data)

	for len(data) > 0 {
		if !s.synced {
			i := bytes.IndexByte(data, MessageValueSync)
			if i < 0 {
				data = nil
				break
			}
			data = data[i+1:]
			s.synced = true
			if s.onResync != nil {
				s.onResync()
			}
			continue
		}

		// Sync bytes between frames are padding
		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePositionLen])
		if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
			s.synced = false
			continue
		}

		seq := data[MessagePositionSeq]
		if seq&^uint8(MessageSeqMask) != MessageDest {
			s.synced = false
			continue
		}

		// Partial frame; wait for more input
		if len(data) < msgLen {
			break
		}

		if data[msgLen-MessageTrailerSync] != MessageValueSync {
			s.synced = false
			continue
		}

		wireCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
			uint16(data[msgLen-MessageTrailerCRC+1])
		if wireCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
			s.synced = false
			continue
		}

		s.onFrame(seq, data[MessageHeaderSize:msgLen-MessageTrailerSize])
		data = data[msgLen:]
	}

	return total - len(data)
}
