// RGB indicator command surface
// Exposes the LP5817 flash sequencer over the wire protocol
package core

import (
	"image/color"

	"rgbind/lp5817"
	"rgbind/protocol"
)

// Global registry of configured indicators
var rgbIndicators = make(map[uint8]*Indicator)

// InitRGBCommands registers the RGB indicator commands with the command
// registry
func InitRGBCommands() {
	// Command to allocate and bring up an indicator on an I2C bus
	RegisterCommand("config_rgb_indicator", "oid=%c i2c_bus=%u rate=%u address=%u", handleConfigRGBIndicator)

	// Immediate display commands
	RegisterCommand("rgb_set_color", "oid=%c red=%c green=%c blue=%c", handleRGBSetColor)
	RegisterCommand("rgb_off", "oid=%c", handleRGBOff)

	// Flash sequence commands
	RegisterCommand("rgb_flash", "oid=%c red=%c green=%c blue=%c on_ticks=%u off_ticks=%u count=%c", handleRGBFlash)
	RegisterCommand("rgb_cancel", "oid=%c", handleRGBCancel)

	// State query
	RegisterCommand("rgb_query_state", "oid=%c", handleRGBQueryState)

	// Response message: indicator state (device to host)
	RegisterResponse("rgb_state", "oid=%c busy=%c")
}

// handleConfigRGBIndicator allocates an indicator object and brings up the
// controller behind it
// Format: config_rgb_indicator oid=%c i2c_bus=%u rate=%u address=%u
func handleConfigRGBIndicator(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	bus, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	rate, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	address, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	if err := MustI2C().ConfigureBus(I2CBusID(bus), rate); err != nil {
		return err
	}

	handle, err := MustI2C().Bus(I2CBusID(bus))
	if err != nil {
		return err
	}

	// Mask address to 7 bits
	dev := lp5817.New(handle, uint16(address&0x7F))
	ind, err := NewIndicator(dev)
	if err != nil {
		return err
	}

	rgbIndicators[uint8(oid)] = ind

	return nil
}

// handleRGBSetColor displays a solid color
// Format: rgb_set_color oid=%c red=%c green=%c blue=%c
func handleRGBSetColor(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	red, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	green, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	blue, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	ind, exists := rgbIndicators[uint8(oid)]
	if !exists {
		return nil // Invalid OID
	}

	return ind.SetColorRGB(uint8(red), uint8(green), uint8(blue))
}

// handleRGBOff darkens the display (refused while a sequence runs)
// Format: rgb_off oid=%c
func handleRGBOff(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	ind, exists := rgbIndicators[uint8(oid)]
	if !exists {
		return nil
	}

	return ind.Off()
}

// handleRGBFlash starts a flash sequence
// Format: rgb_flash oid=%c red=%c green=%c blue=%c on_ticks=%u off_ticks=%u count=%c
func handleRGBFlash(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	red, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	green, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	blue, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	onTicks, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	offTicks, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	ind, exists := rgbIndicators[uint8(oid)]
	if !exists {
		return nil
	}

	c := color.RGBA{R: uint8(red), G: uint8(green), B: uint8(blue)}
	ind.FlashTicks(c, onTicks, offTicks, uint8(count))

	return nil
}

// handleRGBCancel stops a running flash sequence
// Format: rgb_cancel oid=%c
func handleRGBCancel(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	ind, exists := rgbIndicators[uint8(oid)]
	if !exists {
		return nil
	}

	ind.Cancel()

	return nil
}

// handleRGBQueryState reports whether a flash sequence is underway
// Format: rgb_query_state oid=%c
// Response: rgb_state oid=%c busy=%c
func handleRGBQueryState(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	ind, exists := rgbIndicators[uint8(oid)]
	if !exists {
		return nil
	}

	busy := uint32(0)
	if ind.IsBusy() {
		busy = 1
	}

	SendResponse("rgb_state", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, oid)
		protocol.EncodeVLQUint(output, busy)
	})

	return nil
}
