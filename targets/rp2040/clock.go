//go:build rp2040 || rp2350

package main

import (
	"runtime/volatile"
	"unsafe"

	"rgbind/core"
)

// RP2040/RP2350 timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x08 // Raw timer high word
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// InitClock registers the clock constants. The RP2040 hardware timer is a
// 64-bit microsecond counter running at 1MHz, matching core.TimerFreq.
func InitClock() {
	core.RegisterConstant("MCU", "rp2040")
	core.RegisterConstant("CLOCK_FREQ", uint32(core.TimerFreq))
}

// GetHardwareTime reads the low 32 bits of the microsecond counter
func GetHardwareTime() uint32 {
	return timerRAWL.Get()
}

// UpdateSystemTime feeds the hardware counter into the core clock. Called
// once per main loop iteration.
func UpdateSystemTime() {
	core.SetTime(GetHardwareTime())
}
