package core

import "testing"

func TestTimerOrdering(t *testing.T) {
	resetCoreState()

	var fired []int
	mk := func(id int, wake uint32) *Timer {
		tm := &Timer{WakeTime: wake}
		tm.Handler = func(*Timer) uint8 {
			fired = append(fired, id)
			return SF_DONE
		}
		return tm
	}

	// Insert out of order.
	ScheduleTimer(mk(3, 300))
	ScheduleTimer(mk(1, 100))
	ScheduleTimer(mk(2, 200))

	SetTime(250)
	ProcessTimers()

	if len(fired) != 2 || fired[0] != 1 || fired[1] != 2 {
		t.Errorf("expected timers 1,2 in order, got %v", fired)
	}

	SetTime(300)
	ProcessTimers()
	if len(fired) != 3 || fired[2] != 3 {
		t.Errorf("expected timer 3 last, got %v", fired)
	}
}

func TestTimerReschedule(t *testing.T) {
	resetCoreState()

	count := 0
	tm := &Timer{WakeTime: 10}
	tm.Handler = func(tm *Timer) uint8 {
		count++
		if count < 3 {
			tm.WakeTime += 10
			return SF_RESCHEDULE
		}
		return SF_DONE
	}
	ScheduleTimer(tm)

	SetTime(100)
	ProcessTimers()

	if count != 3 {
		t.Errorf("expected 3 firings, got %d", count)
	}
	if TimerPending(tm) {
		t.Error("timer still pending after SF_DONE")
	}
}

func TestCancelTimerPreventsExpiry(t *testing.T) {
	resetCoreState()

	fired := false
	tm := &Timer{WakeTime: 50}
	tm.Handler = func(*Timer) uint8 {
		fired = true
		return SF_DONE
	}
	ScheduleTimer(tm)
	CancelTimer(tm)

	SetTime(100)
	ProcessTimers()

	if fired {
		t.Error("canceled timer fired")
	}
	if TimerPending(tm) {
		t.Error("canceled timer still pending")
	}
}

func TestCancelTimerMidList(t *testing.T) {
	resetCoreState()

	var fired []int
	mk := func(id int, wake uint32) *Timer {
		tm := &Timer{WakeTime: wake}
		tm.Handler = func(*Timer) uint8 {
			fired = append(fired, id)
			return SF_DONE
		}
		return tm
	}

	t1 := mk(1, 100)
	t2 := mk(2, 200)
	t3 := mk(3, 300)
	ScheduleTimer(t1)
	ScheduleTimer(t2)
	ScheduleTimer(t3)

	CancelTimer(t2)

	SetTime(400)
	ProcessTimers()

	if len(fired) != 2 || fired[0] != 1 || fired[1] != 3 {
		t.Errorf("expected 1,3 after canceling 2, got %v", fired)
	}
}

func TestRescheduleMovesPendingTimer(t *testing.T) {
	resetCoreState()

	count := 0
	tm := &Timer{WakeTime: 100}
	tm.Handler = func(*Timer) uint8 {
		count++
		return SF_DONE
	}

	ScheduleTimer(tm)
	// Rearm to a later wake time while still pending; the timer must fire
	// once, at the new time.
	tm.WakeTime = 300
	ScheduleTimer(tm)

	SetTime(200)
	ProcessTimers()
	if count != 0 {
		t.Error("timer fired at the superseded wake time")
	}

	SetTime(300)
	ProcessTimers()
	if count != 1 {
		t.Errorf("expected exactly one firing, got %d", count)
	}
}
