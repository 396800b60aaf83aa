// Package periphbus adapts periph.io I2C buses to the bus handle the
// lp5817 driver expects, so the indicator stack runs unchanged on Linux
// boards with /dev/i2c devices.
package periphbus

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"rgbind/core"
	"tinygo.org/x/drivers"
)

var initOnce sync.Once
var initErr error

// hostInit loads the periph host drivers once per process.
func hostInit() error {
	initOnce.Do(func() {
		_, initErr = host.Init()
	})
	return initErr
}

// Bus wraps one open periph.io I2C bus.
type Bus struct {
	bus i2c.BusCloser
}

// Open opens an I2C bus by periph name ("/dev/i2c-1", "1", or "" for the
// first available bus).
func Open(name string) (*Bus, error) {
	if err := hostInit(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", name, err)
	}
	return &Bus{bus: bus}, nil
}

// Tx performs one I2C transaction. The signature matches the handle the
// chip driver takes, so a *Bus plugs in directly.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	return b.bus.Tx(addr, w, r)
}

// SetSpeed sets the bus frequency where the platform supports it.
func (b *Bus) SetSpeed(frequencyHz uint32) error {
	return b.bus.SetSpeed(physic.Frequency(frequencyHz) * physic.Hertz)
}

// Close releases the bus.
func (b *Bus) Close() error {
	return b.bus.Close()
}

// Driver implements core.I2CDriver over periph buses, mapping bus IDs to
// /dev/i2c device numbers.
type Driver struct {
	mu    sync.Mutex
	buses map[core.I2CBusID]*Bus
}

// NewDriver constructs the driver
func NewDriver() *Driver {
	return &Driver{buses: make(map[core.I2CBusID]*Bus)}
}

// ConfigureBus opens /dev/i2c-<bus> and applies the requested frequency.
// Platforms that cannot change the bus speed keep their default.
func (d *Driver) ConfigureBus(bus core.I2CBusID, frequencyHz uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.buses[bus]; exists {
		return nil
	}

	b, err := Open(fmt.Sprintf("/dev/i2c-%d", bus))
	if err != nil {
		return err
	}

	if frequencyHz != 0 {
		// Linux i2c-dev buses usually reject SetSpeed; the bus itself
		// still works at the kernel-configured rate
		_ = b.SetSpeed(frequencyHz)
	}

	d.buses[bus] = b
	return nil
}

// Bus returns the configured bus as a drivers.I2C handle.
func (d *Driver) Bus(bus core.I2CBusID) (drivers.I2C, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, exists := d.buses[bus]
	if !exists {
		return nil, errors.New("i2c bus not configured")
	}
	return b, nil
}

// Close releases every open bus.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for id, b := range d.buses {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(d.buses, id)
	}
	return errors.Join(errs...)
}
