package core

import "tinygo.org/x/drivers"

// I2CBusID identifies a specific I2C bus (e.g., I2C0, I2C1).
type I2CBusID uint8

// I2CDriver is the abstract I2C interface that core code uses. Targets
// register a machine-backed implementation; Linux hosts register a
// periph.io-backed one; tests register mocks.
type I2CDriver interface {
	// ConfigureBus initializes a specific I2C bus with the given frequency.
	ConfigureBus(bus I2CBusID, frequencyHz uint32) error

	// Bus returns the configured bus as a drivers.I2C handle so chip
	// drivers can address devices on it directly.
	Bus(bus I2CBusID) (drivers.I2C, error)
}

// Global singleton used by core code.
var i2cDriver I2CDriver

// SetI2CDriver is called by target-specific code to register its driver.
func SetI2CDriver(d I2CDriver) {
	i2cDriver = d
}

// MustI2C returns the configured driver or panics if missing.
func MustI2C() I2CDriver {
	if i2cDriver == nil {
		panic("I2C driver not configured")
	}
	return i2cDriver
}
