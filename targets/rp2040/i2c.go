//go:build rp2040 || rp2350

package main

import (
	"errors"
	"machine"
	"sync"

	"tinygo.org/x/drivers"

	"rgbind/core"
)

// RPI2CDriver implements core.I2CDriver on machine.I2C. The RP2040 and
// RP2350 both carry I2C0 and I2C1.
type RPI2CDriver struct {
	mu         sync.Mutex
	buses      map[core.I2CBusID]*machine.I2C
	configured map[core.I2CBusID]bool
}

// NewRPI2CDriver constructs the driver
func NewRPI2CDriver() *RPI2CDriver {
	return &RPI2CDriver{
		buses:      make(map[core.I2CBusID]*machine.I2C),
		configured: make(map[core.I2CBusID]bool),
	}
}

// ConfigureBus initializes an I2C bus with the given frequency. A bus that
// is already up only has its baud rate adjusted.
func (d *RPI2CDriver) ConfigureBus(bus core.I2CBusID, frequencyHz uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.configured[bus] {
		return d.buses[bus].SetBaudRate(frequencyHz)
	}

	var i2c *machine.I2C
	switch bus {
	case 0:
		// Default pins SDA=GP4, SCL=GP5
		i2c = machine.I2C0
	case 1:
		// Default pins SDA=GP6, SCL=GP7
		i2c = machine.I2C1
	default:
		return errors.New("unsupported I2C bus ID")
	}

	if err := i2c.Configure(machine.I2CConfig{Frequency: frequencyHz}); err != nil {
		return err
	}

	d.buses[bus] = i2c
	d.configured[bus] = true
	return nil
}

// Bus returns the configured bus as a drivers.I2C handle.
func (d *RPI2CDriver) Bus(bus core.I2CBusID) (drivers.I2C, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	i2c, exists := d.buses[bus]
	if !exists {
		return nil, errors.New("I2C bus not configured")
	}
	return i2c, nil
}
