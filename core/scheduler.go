package core

// Timer is a scheduled one-shot event. Handlers run in the timer dispatch
// context with interrupts disabled and must not perform blocking I/O; they
// hand real work off via SubmitWork. A handler may return SF_RESCHEDULE
// after updating WakeTime to rearm itself.
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer
	pending  bool
}

// Timer handler results.
const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

var (
	timerList   *Timer
	currentTime uint32
)

// ScheduleTimer arms t to fire at t.WakeTime. An already pending timer is
// moved to its new wake time; it never appears in the list twice.
func ScheduleTimer(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if t.pending {
		unlinkTimer(t)
	}
	insertTimer(t)
}

// CancelTimer removes t from the pending list. After CancelTimer returns an
// armed expiry can no longer fire; an expiry that already dispatched may
// still have work queued, which callers guard against at the state level.
func CancelTimer(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if t.pending {
		unlinkTimer(t)
	}
}

// TimerPending reports whether t is armed.
func TimerPending(t *Timer) bool {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return t.pending
}

// insertTimer inserts t in wake-time order. Must be called with interrupts
// disabled.
func insertTimer(t *Timer) {
	t.pending = true
	if timerList == nil || t.WakeTime < timerList.WakeTime {
		t.Next = timerList
		timerList = t
		return
	}

	current := timerList
	for current.Next != nil && current.Next.WakeTime < t.WakeTime {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// unlinkTimer removes t from the list. Must be called with interrupts
// disabled.
func unlinkTimer(t *Timer) {
	if timerList == t {
		timerList = t.Next
	} else {
		for current := timerList; current != nil; current = current.Next {
			if current.Next == t {
				current.Next = t.Next
				break
			}
		}
	}
	t.Next = nil
	t.pending = false
}

// TimerDispatch fires every timer whose wake time has passed.
func TimerDispatch() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for timerList != nil && timerList.WakeTime <= currentTime {
		timer := timerList
		timerList = timer.Next
		timer.Next = nil
		timer.pending = false

		result := timer.Handler(timer)

		if result == SF_RESCHEDULE {
			insertTimer(timer)
		}
	}
}
