// Package indicator is the host-side client for the RGB indicator firmware.
// It speaks the framed wire protocol over a serial link, retrieves the
// firmware's command dictionary and exposes the indicator operations as
// typed methods.
package indicator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"rgbind/host/serial"
	"rgbind/protocol"
)

// Bootstrap command IDs baked into every firmware build
const (
	identifyResponseID = 0
	identifyID         = 1
)

// Dictionary is the parsed firmware dictionary
type Dictionary struct {
	Version       string            `json:"version"`
	BuildVersions string            `json:"build_versions"`
	Config        map[string]string `json:"config"`
	Commands      map[string]int    `json:"commands"`
	Responses     map[string]int    `json:"responses"`
}

// Client is a connection to one indicator firmware instance.
type Client struct {
	transport *protocol.HostTransport

	dictionary     *Dictionary
	dictionaryData []byte

	// commandIDs maps bare command names to wire IDs, resolved from the
	// dictionary's "name format" keys.
	commandIDs  map[string]uint16
	responseIDs map[string]uint16

	connected bool
}

// Connect opens the serial device and returns a connected client. The
// dictionary is not yet retrieved; call RetrieveDictionary before issuing
// named commands.
func Connect(device string) (*Client, error) {
	return ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig connects with a custom serial configuration.
func ConnectWithConfig(cfg *serial.Config) (*Client, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open serial port: %w", err)
	}

	// Give the firmware time to settle if it just powered on
	time.Sleep(100 * time.Millisecond)

	return ConnectPort(port), nil
}

// ConnectPort builds a client over an already open link. Tests use this
// with an in-memory pipe.
func ConnectPort(port io.ReadWriteCloser) *Client {
	return &Client{
		transport: protocol.NewHostTransport(port),
		connected: true,
	}
}

// Close shuts down the connection.
func (c *Client) Close() error {
	c.connected = false
	if c.transport != nil {
		return c.transport.Close()
	}
	return nil
}

// RetrieveDictionary pulls the firmware dictionary over the link in chunks
// and indexes its commands.
func (c *Client) RetrieveDictionary() error {
	if !c.connected {
		return fmt.Errorf("not connected")
	}

	var dictBuffer bytes.Buffer
	offset := uint32(0)
	chunkSize := uint8(40)
	maxIterations := 1000

	for i := 0; i < maxIterations; i++ {
		chunk, err := c.sendIdentify(offset, chunkSize)
		if err != nil {
			return fmt.Errorf("dictionary chunk at offset %d: %w", offset, err)
		}

		if len(chunk) == 0 {
			break
		}

		dictBuffer.Write(chunk)
		offset += uint32(len(chunk))

		if len(chunk) < int(chunkSize) {
			break
		}
	}

	c.dictionaryData = dictBuffer.Bytes()

	dict := &Dictionary{}
	if err := json.Unmarshal(c.dictionaryData, dict); err != nil {
		return fmt.Errorf("parse dictionary: %w", err)
	}
	c.dictionary = dict

	c.commandIDs = indexByName(dict.Commands)
	c.responseIDs = indexByName(dict.Responses)

	return nil
}

// indexByName strips the argument format from dictionary keys, leaving the
// bare command name.
func indexByName(entries map[string]int) map[string]uint16 {
	out := make(map[string]uint16, len(entries))
	for format, id := range entries {
		name := format
		if i := strings.IndexByte(format, ' '); i >= 0 {
			name = format[:i]
		}
		out[name] = uint16(id)
	}
	return out
}

// sendIdentify requests one dictionary chunk.
func (c *Client) sendIdentify(offset uint32, count uint8) ([]byte, error) {
	err := c.transport.SendCommand(identifyID, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQUint(output, uint32(count))
	})
	if err != nil {
		return nil, fmt.Errorf("send identify: %w", err)
	}

	resp, err := c.transport.ReceiveResponse(1 * time.Second)
	if err != nil {
		return nil, fmt.Errorf("identify response: %w", err)
	}

	payload := resp.Payload

	cmdID, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return nil, fmt.Errorf("decode response ID: %w", err)
	}
	if cmdID != identifyResponseID {
		return nil, fmt.Errorf("unexpected response ID %d", cmdID)
	}

	respOffset, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return nil, fmt.Errorf("decode response offset: %w", err)
	}
	if respOffset != offset {
		return nil, fmt.Errorf("offset mismatch: asked %d, got %d", offset, respOffset)
	}

	data, err := protocol.DecodeVLQBytes(&payload)
	if err != nil {
		return nil, fmt.Errorf("decode chunk: %w", err)
	}

	return data, nil
}

// Dictionary returns the parsed dictionary, nil before RetrieveDictionary.
func (c *Client) Dictionary() *Dictionary {
	return c.dictionary
}

// DictionaryRaw returns the raw dictionary bytes.
func (c *Client) DictionaryRaw() []byte {
	return c.dictionaryData
}

// send resolves a command name and sends it with the given arguments.
func (c *Client) send(name string, args ...uint32) error {
	if !c.connected {
		return fmt.Errorf("not connected")
	}
	if c.commandIDs == nil {
		return fmt.Errorf("dictionary not loaded")
	}

	cmdID, ok := c.commandIDs[name]
	if !ok {
		return fmt.Errorf("unknown command: %s", name)
	}

	return c.transport.SendCommand(cmdID, func(output protocol.OutputBuffer) {
		for _, arg := range args {
			protocol.EncodeVLQUint(output, arg)
		}
	})
}

// ConfigureIndicator allocates an indicator on the firmware and brings up
// the controller behind it.
func (c *Client) ConfigureIndicator(oid uint8, bus uint8, rateHz uint32, address uint8) error {
	return c.send("config_rgb_indicator", uint32(oid), uint32(bus), rateHz, uint32(address))
}

// SetColor displays a solid color on the indicator.
func (c *Client) SetColor(oid, red, green, blue uint8) error {
	return c.send("rgb_set_color", uint32(oid), uint32(red), uint32(green), uint32(blue))
}

// Off darkens the indicator. The firmware refuses this while a flash
// sequence is running.
func (c *Client) Off(oid uint8) error {
	return c.send("rgb_off", uint32(oid))
}

// Flash starts a flash sequence. count 0 flashes until Cancel.
func (c *Client) Flash(oid, red, green, blue uint8, onTicks, offTicks uint32, count uint8) error {
	return c.send("rgb_flash", uint32(oid), uint32(red), uint32(green), uint32(blue),
		onTicks, offTicks, uint32(count))
}

// Cancel stops a running flash sequence.
func (c *Client) Cancel(oid uint8) error {
	return c.send("rgb_cancel", uint32(oid))
}

// Busy queries whether a flash sequence is underway on the indicator.
func (c *Client) Busy(oid uint8) (bool, error) {
	stateID, ok := c.responseIDs["rgb_state"]
	if !ok {
		return false, fmt.Errorf("firmware has no rgb_state response")
	}

	if err := c.send("rgb_query_state", uint32(oid)); err != nil {
		return false, err
	}

	deadline := time.Now().Add(1 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := c.transport.ReceiveResponse(time.Until(deadline))
		if err != nil {
			return false, fmt.Errorf("rgb_state response: %w", err)
		}

		payload := resp.Payload
		cmdID, err := protocol.DecodeVLQUint(&payload)
		if err != nil || uint16(cmdID) != stateID {
			// Some other response slipped in; keep waiting
			continue
		}

		respOID, err := protocol.DecodeVLQUint(&payload)
		if err != nil || respOID != uint32(oid) {
			continue
		}

		busy, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return false, fmt.Errorf("decode busy flag: %w", err)
		}
		return busy != 0, nil
	}

	return false, fmt.Errorf("rgb_state response timeout")
}

// Uptime queries the firmware's 64-bit tick count since boot.
func (c *Client) Uptime() (uint64, error) {
	uptimeID, ok := c.responseIDs["uptime"]
	if !ok {
		return 0, fmt.Errorf("firmware has no uptime response")
	}

	if err := c.send("get_uptime"); err != nil {
		return 0, err
	}

	deadline := time.Now().Add(1 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := c.transport.ReceiveResponse(time.Until(deadline))
		if err != nil {
			return 0, fmt.Errorf("uptime response: %w", err)
		}

		payload := resp.Payload
		cmdID, err := protocol.DecodeVLQUint(&payload)
		if err != nil || uint16(cmdID) != uptimeID {
			continue
		}

		high, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return 0, err
		}
		low, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return 0, err
		}
		return uint64(high)<<32 | uint64(low), nil
	}

	return 0, fmt.Errorf("uptime response timeout")
}
