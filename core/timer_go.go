//go:build !tinygo

package core

var systemTicks uint32

// getSystemTicks returns the current system ticks.
func getSystemTicks() uint32 {
	return systemTicks
}

// setSystemTicks sets the system ticks.
func setSystemTicks(ticks uint32) {
	systemTicks = ticks
}
