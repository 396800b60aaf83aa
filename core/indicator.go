package core

import (
	"fmt"
	"image/color"
	"time"

	"rgbind/lp5817"
)

// Indicator turns an LP5817 into a higher-level status light: solid colors
// plus timed flash sequences, either a fixed pulse count or continuous.
//
// One Indicator drives one controller. The flash state machine runs off a
// scheduler timer whose expiry only submits deferred work; the work handler
// performs the phase transition and the bus writes. Control-surface calls
// must be issued from the context pumping ProcessWork or be externally
// synchronized by the caller.
type Indicator struct {
	dev *lp5817.Device

	// pixels is the color re-issued on every flash ON phase.
	pixels color.RGBA

	// onDuration in ticks; zero means no flash sequence is active.
	onDuration  uint32
	offDuration uint32

	flashesAsked     uint8 // requested ON pulses, 0 = continuous
	flashesPerformed uint8
	flashState       uint8 // 1 while the ON phase is displayed

	flashTimer Timer
	flashWork  Work
}

// NewIndicator brings up the controller and returns an idle Indicator bound
// to it. The device's bus handle stays owned by the caller. A bring-up
// failure leaves no Indicator constructed; retrying is the caller's call.
func NewIndicator(dev *lp5817.Device) (*Indicator, error) {
	if err := dev.Configure(); err != nil {
		return nil, fmt.Errorf("rgb indicator init: %w", err)
	}

	ind := &Indicator{dev: dev}
	ind.flashTimer.Handler = ind.flashTimerExpiry
	ind.flashWork.Handler = ind.flashStep
	return ind, nil
}

// SetColor displays c immediately.
//
// This bypasses the flash-sequence guard that Off enforces: calling it while
// a sequence runs glitches the visible output without disturbing the
// sequence's counters. Use Cancel first to take the display back cleanly.
func (ind *Indicator) SetColor(c color.RGBA) error {
	return ind.dev.SetColor(c)
}

// SetColorRGB displays the given channel intensities immediately.
func (ind *Indicator) SetColorRGB(red, green, blue uint8) error {
	return ind.SetColor(color.RGBA{R: red, G: green, B: blue})
}

// Off darkens the display. While a flash sequence is underway the sequencer
// owns the display and Off does nothing.
func (ind *Indicator) Off() error {
	if ind.isFlashing() {
		return nil
	}
	return ind.dev.Off()
}

// Flash starts a flash sequence: count ON pulses of c lasting on each,
// separated by off. count 0 flashes until Cancel. A sequence already in
// progress is discarded, progress and all.
func (ind *Indicator) Flash(c color.RGBA, on, off time.Duration, count uint8) {
	ind.FlashTicks(c, DurationToTicks(on), DurationToTicks(off), count)
}

// FlashContinuous flashes c until Cancel is called.
func (ind *Indicator) FlashContinuous(c color.RGBA, on, off time.Duration) {
	ind.Flash(c, on, off, 0)
}

// FlashTicks is Flash with durations in timer ticks, as used on the wire.
func (ind *Indicator) FlashTicks(c color.RGBA, onTicks, offTicks uint32, count uint8) {
	ind.onDuration = onTicks
	ind.offDuration = offTicks
	ind.flashesAsked = count
	ind.flashesPerformed = 0
	ind.pixels = c

	// First ON phase happens right away; the expiry handler takes it from
	// here.
	if err := ind.dev.SetColor(c); err != nil {
		DebugPrintln("indicator: flash on write failed: " + err.Error())
	}
	ind.armTimer(ind.onDuration)
	ind.flashState = 1
}

// IsBusy reports whether a flash sequence (counted or continuous) is
// underway. The indicator may be in either phase; callers needing the ON
// color must track it themselves.
func (ind *Indicator) IsBusy() bool {
	return ind.isFlashing()
}

// Cancel stops a running flash sequence and darkens the display. Required
// to end a continuous sequence; cuts a counted one short. Canceling an idle
// indicator does nothing.
func (ind *Indicator) Cancel() {
	if !ind.isFlashing() {
		return
	}
	CancelTimer(&ind.flashTimer)
	ind.onDuration = 0
	if err := ind.Off(); err != nil {
		DebugPrintln("indicator: cancel off write failed: " + err.Error())
	}
}

// flashTimerExpiry services the end of a flash phase. It runs in the timer
// dispatch context, so it only hands off to the worker.
func (ind *Indicator) flashTimerExpiry(t *Timer) uint8 {
	SubmitWork(&ind.flashWork)
	return SF_DONE
}

// flashStep advances the flash sequence one phase. Runs on the worker
// context. The onDuration guard makes a stale expiry queued before a Cancel
// a no-op.
func (ind *Indicator) flashStep() {
	if ind.onDuration == 0 {
		return
	}

	if ind.flashState != 0 {
		// ON phase ended. Off must not be used here, its guard would
		// refuse while the sequence is active.
		if err := ind.dev.Off(); err != nil {
			DebugPrintln("indicator: flash off write failed: " + err.Error())
		}
		ind.flashState = 0
		ind.flashesPerformed++

		if ind.flashesPerformed < ind.flashesAsked || ind.flashesAsked == 0 {
			ind.armTimer(ind.offDuration)
		} else {
			// Sequence complete; display stays off.
			ind.flashesAsked = 0
			ind.flashesPerformed = 0
			ind.onDuration = 0
		}
	} else {
		// OFF phase ended.
		ind.flashState = 1
		if ind.flashesPerformed < ind.flashesAsked {
			if err := ind.dev.SetColor(ind.pixels); err != nil {
				DebugPrintln("indicator: flash on write failed: " + err.Error())
			}
			ind.armTimer(ind.onDuration)
		}
	}
}

func (ind *Indicator) armTimer(ticks uint32) {
	ind.flashTimer.WakeTime = GetTime() + ticks
	ScheduleTimer(&ind.flashTimer)
}

func (ind *Indicator) isFlashing() bool {
	return ind.onDuration != 0
}
