//go:build rp2040 || rp2350

package main

import (
	"image/color"
	"machine"
	"time"

	"rgbind/core"
	"rgbind/lp5817"
	"rgbind/protocol"
)

var (
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	msgerrors uint32
)

func main() {
	// Clear any watchdog state left over from a previous reset
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()
	InitClock()

	core.InitCoreCommands()
	core.InitRGBCommands()

	i2cDriver := NewRPI2CDriver()
	core.SetI2CDriver(i2cDriver)

	// Build and cache the dictionary after all commands are registered
	core.GetGlobalDictionary().BuildDictionary()

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	transport = protocol.NewTransport(outputBuffer, handleCommand)
	transport.SetResetCallback(func() {
		inputBuffer.Reset()
		outputBuffer.Reset()
	})
	// ACKs must hit the wire before any buffered response
	transport.SetFlushCallback(writeUSB)
	core.SetGlobalTransport(transport)

	go usbReaderLoop()

	powerOnDemo(i2cDriver)

	heartbeat := machine.LED
	heartbeat.Configure(machine.PinConfig{Mode: machine.PinOutput})
	heartbeatOn := false
	lastBeat := time.Now()

	for {
		// Recover from panics in the main loop to keep the firmware alive
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			UpdateSystemTime()

			if inputBuffer.Available() > 0 {
				transport.Receive(inputBuffer)
			}

			if len(outputBuffer.Result()) > 0 {
				writeUSB()
			}

			core.ProcessTimers()
			core.ProcessWork()

			if time.Since(lastBeat) >= 500*time.Millisecond {
				heartbeatOn = !heartbeatOn
				heartbeat.Set(heartbeatOn)
				lastBeat = time.Now()
			}
		}()

		time.Sleep(10 * time.Microsecond)
	}
}

// powerOnDemo cycles the primary colors and then double-flashes green on the
// default bus as a boot indication. A missing or unresponsive controller is
// not fatal; the board still serves the host link.
func powerOnDemo(driver *RPI2CDriver) {
	if err := driver.ConfigureBus(0, 100000); err != nil {
		return
	}
	bus, err := driver.Bus(0)
	if err != nil {
		return
	}

	ind, err := core.NewIndicator(lp5817.New(bus, lp5817.DefaultAddress))
	if err != nil {
		return
	}

	cycle := []color.RGBA{{R: 0x40}, {G: 0x40}, {B: 0x40}}
	for _, c := range cycle {
		ind.SetColor(c)
		time.Sleep(250 * time.Millisecond)
	}
	ind.Off()

	green := color.RGBA{G: 0x40}
	ind.Flash(green, 100*time.Millisecond, 100*time.Millisecond, 2)
}

// usbReaderLoop drains USB into the input FIFO from its own goroutine
func usbReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		if USBAvailable() > 0 {
			data, err := USBRead()
			if err != nil {
				msgerrors++
				time.Sleep(1 * time.Millisecond)
				continue
			}

			if inputBuffer.Write([]byte{data}) == 0 {
				// FIFO full; back off and let the main loop drain it
				msgerrors++
				time.Sleep(10 * time.Millisecond)
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// handleCommand dispatches received commands to the command registry
func handleCommand(cmdID uint16, data *[]byte) error {
	return core.DispatchCommand(cmdID, data)
}

// writeUSB pushes buffered output to USB, handling partial writes
func writeUSB() {
	result := outputBuffer.Result()
	if len(result) == 0 {
		return
	}

	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			msgerrors++
			return
		}
		written += n
	}
	outputBuffer.Reset()
}
