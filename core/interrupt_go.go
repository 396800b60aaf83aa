//go:build !tinygo

package core

// State is a placeholder for interrupt state on regular Go.
type State uintptr

// disableInterrupts is a no-op on regular Go (for testing and host demos).
func disableInterrupts() State {
	return 0
}

// restoreInterrupts restores the interrupt state.
func restoreInterrupts(state State) {
}
