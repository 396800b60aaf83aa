package core

// Work is a deferred unit of execution. Timer expiry handlers run in an
// interrupt-like context and must not touch the bus; they submit Work and
// the main loop executes it via ProcessWork. All stateful transitions
// therefore run serialized on whichever context pumps ProcessWork.
type Work struct {
	Handler func()
}

// workQueue is a single-slot hand-off between the expiry context and the
// worker. Submitting work that is already queued coalesces into one run.
var workQueue = make(chan *Work, 1)

// SubmitWork queues w for execution. Non-blocking: if the slot is occupied
// the submission is dropped and SubmitWork reports false. Safe to call from
// timer handlers.
func SubmitWork(w *Work) bool {
	select {
	case workQueue <- w:
		return true
	default:
		return false
	}
}

// ProcessWork runs all queued work on the caller's context and returns.
func ProcessWork() {
	for {
		select {
		case w := <-workQueue:
			if w.Handler != nil {
				w.Handler()
			}
		default:
			return
		}
	}
}
