package lp5817

import (
	"errors"
	"image/color"
	"testing"
)

// recordingBus captures every register write and can be told to fail
// specific registers.
type recordingBus struct {
	writes   [][2]byte
	failRegs map[uint8]error
}

func newRecordingBus() *recordingBus {
	return &recordingBus{failRegs: make(map[uint8]error)}
}

func (b *recordingBus) Tx(addr uint16, w, r []byte) error {
	if len(w) != 2 {
		return errors.New("unexpected transaction size")
	}
	if err, ok := b.failRegs[w[0]]; ok {
		return err
	}
	b.writes = append(b.writes, [2]byte{w[0], w[1]})
	return nil
}

func TestConfigureSequence(t *testing.T) {
	bus := newRecordingBus()
	dev := New(bus, DefaultAddress)

	if err := dev.Configure(); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	expected := [][2]byte{
		{RegChipEnable, cmdChipEnable},
		{RegMaxCurrent, cmdMaxCurrent},
		{RegDotCurrent0, 128},
		{RegDotCurrent1, 128},
		{RegDotCurrent2, 128},
		{RegOutEnable, cmdOutEnable},
		{RegIntensity2, 0},
		{RegIntensity0, 0},
		{RegIntensity1, 0},
		{RegUpdate, cmdUpdate},
	}

	if len(bus.writes) != len(expected) {
		t.Fatalf("expected %d writes, got %d: %v", len(expected), len(bus.writes), bus.writes)
	}
	for i, want := range expected {
		if bus.writes[i] != want {
			t.Errorf("write %d: expected reg=0x%02X val=0x%02X, got reg=0x%02X val=0x%02X",
				i, want[0], want[1], bus.writes[i][0], bus.writes[i][1])
		}
	}
}

func TestConfigureCustomCalibration(t *testing.T) {
	bus := newRecordingBus()
	cfg := Config{MaxCurrent: 0x02, DotCurrent: [3]uint8{10, 20, 30}}
	dev := NewWithConfig(bus, DefaultAddress, cfg)

	if err := dev.Configure(); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	checks := map[uint8]uint8{
		RegMaxCurrent:  0x02,
		RegDotCurrent0: 10,
		RegDotCurrent1: 20,
		RegDotCurrent2: 30,
	}
	for _, w := range bus.writes {
		if want, ok := checks[w[0]]; ok {
			if w[1] != want {
				t.Errorf("reg 0x%02X: expected 0x%02X, got 0x%02X", w[0], want, w[1])
			}
			delete(checks, w[0])
		}
	}
	if len(checks) != 0 {
		t.Errorf("registers never written: %v", checks)
	}
}

func TestConfigureNilBus(t *testing.T) {
	dev := New(nil, DefaultAddress)
	if err := dev.Configure(); !errors.Is(err, ErrBusNotReady) {
		t.Errorf("expected ErrBusNotReady, got %v", err)
	}
}

func TestConfigureBestEffort(t *testing.T) {
	bus := newRecordingBus()
	failure := errors.New("nak")
	bus.failRegs[RegMaxCurrent] = failure

	dev := New(bus, DefaultAddress)
	err := dev.Configure()
	if err == nil {
		t.Fatal("expected aggregate error")
	}
	if !errors.Is(err, failure) {
		t.Errorf("aggregate error does not wrap the write failure: %v", err)
	}

	// The remaining steps must still have been attempted; the update commit
	// is the last write of the bring-up sequence.
	last := bus.writes[len(bus.writes)-1]
	if last[0] != RegUpdate || last[1] != cmdUpdate {
		t.Errorf("update commit not attempted after failure, last write %v", last)
	}
}

func TestSetColorWiringMap(t *testing.T) {
	bus := newRecordingBus()
	dev := New(bus, DefaultAddress)

	if err := dev.SetColor(color.RGBA{R: 11, G: 22, B: 33}); err != nil {
		t.Fatalf("SetColor failed: %v", err)
	}

	expected := [][2]byte{
		{RegIntensity2, 11}, // red
		{RegIntensity0, 22}, // green
		{RegIntensity1, 33}, // blue
	}
	if len(bus.writes) != 3 {
		t.Fatalf("expected exactly one write per channel, got %d", len(bus.writes))
	}
	for i, want := range expected {
		if bus.writes[i] != want {
			t.Errorf("write %d: expected %v, got %v", i, want, bus.writes[i])
		}
	}
}

func TestSetColorNoEarlyAbort(t *testing.T) {
	bus := newRecordingBus()
	failure := errors.New("nak")
	bus.failRegs[RegIntensity2] = failure // red write fails first

	dev := New(bus, DefaultAddress)
	err := dev.SetColor(color.RGBA{R: 1, G: 2, B: 3})
	if !errors.Is(err, failure) {
		t.Fatalf("expected wrapped write failure, got %v", err)
	}

	// Green and blue writes still happen after the red failure.
	if len(bus.writes) != 2 {
		t.Fatalf("expected 2 surviving writes, got %d", len(bus.writes))
	}
	if bus.writes[0][0] != RegIntensity0 || bus.writes[1][0] != RegIntensity1 {
		t.Errorf("remaining channels not attempted: %v", bus.writes)
	}
}

func TestOff(t *testing.T) {
	bus := newRecordingBus()
	dev := New(bus, DefaultAddress)

	if err := dev.Off(); err != nil {
		t.Fatalf("Off failed: %v", err)
	}
	for _, w := range bus.writes {
		if w[1] != 0 {
			t.Errorf("Off wrote non-zero intensity: %v", w)
		}
	}
}
