// Package lp5817 drives the TI LP5817 three-channel LED controller.
//
// The LP5817 exposes one 8-bit intensity register per output channel plus a
// small configuration block (chip enable, current limits, output enable,
// update latch). Every access is a 2-byte register write on the I2C bus.
package lp5817

import (
	"errors"
	"fmt"
	"image/color"

	"tinygo.org/x/drivers"
)

// DefaultAddress is the LP5817's 7-bit I2C address.
const DefaultAddress uint16 = 0x33

// Register map.
const (
	RegChipEnable  = 0x00
	RegMaxCurrent  = 0x01
	RegOutEnable   = 0x02
	RegUpdate      = 0x0F
	RegDotCurrent0 = 0x14
	RegDotCurrent1 = 0x15
	RegDotCurrent2 = 0x16
	RegIntensity0  = 0x18
	RegIntensity1  = 0x19
	RegIntensity2  = 0x1A
)

// Command values written to the registers above.
const (
	cmdChipEnable = 0x01
	cmdMaxCurrent = 0x01
	cmdOutEnable  = 0x07
	cmdUpdate     = 0x55
)

// ErrBusNotReady is returned by Configure when no usable bus was supplied.
var ErrBusNotReady = errors.New("lp5817: i2c bus not ready")

// Config holds per-device current calibration. It is carried on the Device
// rather than as package constants so controllers with different calibration
// can coexist in one program.
type Config struct {
	// MaxCurrent is the chip-level maximum current setting.
	MaxCurrent uint8
	// DotCurrent sets the relative brightness of each output channel.
	DotCurrent [3]uint8
}

// DefaultConfig returns the calibration used on the reference board.
func DefaultConfig() Config {
	return Config{
		MaxCurrent: cmdMaxCurrent,
		DotCurrent: [3]uint8{128, 128, 128},
	}
}

// Device represents a single LP5817 on a bus. The bus handle is borrowed
// from the caller; the device never closes or reconfigures it.
type Device struct {
	bus  drivers.I2C
	addr uint16
	cfg  Config
}

// New creates a Device on bus at addr with the default calibration.
func New(bus drivers.I2C, addr uint16) *Device {
	return NewWithConfig(bus, addr, DefaultConfig())
}

// NewWithConfig creates a Device with explicit current calibration.
func NewWithConfig(bus drivers.I2C, addr uint16, cfg Config) *Device {
	return &Device{bus: bus, addr: addr, cfg: cfg}
}

// Configure enables the chip, programs the current limits, enables the
// outputs, zeroes all channels and latches the configuration.
//
// Bring-up is best effort: a failed write does not stop the remaining steps,
// and the accumulated failures are reported as one error at the end. Any
// non-nil return means the controller may be in an undefined state.
func (d *Device) Configure() error {
	if d.bus == nil {
		return ErrBusNotReady
	}

	var errs []error
	step := func(reg, val uint8, what string) {
		if err := d.write(reg, val); err != nil {
			errs = append(errs, fmt.Errorf("lp5817: %s: %w", what, err))
		}
	}

	step(RegChipEnable, cmdChipEnable, "chip enable")
	step(RegMaxCurrent, d.cfg.MaxCurrent, "max current")
	for i := range d.cfg.DotCurrent {
		step(RegDotCurrent0+uint8(i), d.cfg.DotCurrent[i], "dot current")
	}
	step(RegOutEnable, cmdOutEnable, "output enable")

	if err := d.SetColor(color.RGBA{}); err != nil {
		errs = append(errs, err)
	}

	step(RegUpdate, cmdUpdate, "update")

	return errors.Join(errs...)
}

// SetColor writes all three intensity registers.
//
// Out-0/1/2 drive green/blue/red on this board rather than the datasheet's
// red/green/blue order, so red lands on INTENSITY2, green on INTENSITY0 and
// blue on INTENSITY1. The alpha channel is ignored.
//
// All three writes are attempted even when an earlier one fails; the
// failures are reported as one aggregate error.
func (d *Device) SetColor(c color.RGBA) error {
	errR := d.write(RegIntensity2, c.R)
	errG := d.write(RegIntensity0, c.G)
	errB := d.write(RegIntensity1, c.B)
	if errR != nil || errG != nil || errB != nil {
		return fmt.Errorf("lp5817: set color: %w", errors.Join(errR, errG, errB))
	}
	return nil
}

// Off forces all channels to zero intensity.
func (d *Device) Off() error {
	return d.SetColor(color.RGBA{})
}

func (d *Device) write(reg, val uint8) error {
	return d.bus.Tx(d.addr, []byte{reg, val}, nil)
}
