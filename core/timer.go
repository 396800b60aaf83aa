package core

import "time"

// TimerFreq is the system tick rate. All targets feed the tick counter from
// a 1MHz hardware timer, so one tick is one microsecond.
const TimerFreq = 1000000

// GetTime returns the current system time in timer ticks.
func GetTime() uint32 {
	return getSystemTicks()
}

// timerHigh counts 32-bit tick counter wraparounds so uptime stays monotonic.
var timerHigh uint32

// SetTime sets the current system time. Targets call this from their main
// loop with the hardware timer value; tests drive it directly.
func SetTime(ticks uint32) {
	if ticks < getSystemTicks() {
		timerHigh++
	}
	setSystemTicks(ticks)
}

// GetUptime returns the 64-bit tick count since boot.
func GetUptime() uint64 {
	return uint64(timerHigh)<<32 | uint64(getSystemTicks())
}

// TimerFromUS converts microseconds to timer ticks.
func TimerFromUS(us uint32) uint32 {
	return us * (TimerFreq / 1000000)
}

// TimerToUS converts timer ticks to microseconds.
func TimerToUS(ticks uint32) uint32 {
	return ticks / (TimerFreq / 1000000)
}

// DurationToTicks converts a duration to timer ticks.
func DurationToTicks(d time.Duration) uint32 {
	return TimerFromUS(uint32(d.Microseconds()))
}

// ProcessTimers advances the scheduler to the current time and fires due
// timers. Call from the main loop after SetTime.
func ProcessTimers() {
	currentTime = GetTime()
	TimerDispatch()
}
