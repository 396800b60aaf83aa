package core

import (
	"errors"
	"testing"

	"tinygo.org/x/drivers"

	"rgbind/lp5817"
	"rgbind/protocol"
)

// mockI2CDriver hands out one recording bus for every bus ID.
type mockI2CDriver struct {
	bus        *mockBus
	configured []I2CBusID
	rates      []uint32
}

func (d *mockI2CDriver) ConfigureBus(bus I2CBusID, frequencyHz uint32) error {
	d.configured = append(d.configured, bus)
	d.rates = append(d.rates, frequencyHz)
	return nil
}

func (d *mockI2CDriver) Bus(bus I2CBusID) (drivers.I2C, error) {
	if d.bus == nil {
		return nil, errors.New("bus not configured")
	}
	return d.bus, nil
}

// encodeArgs packs values the way they arrive inside a command frame.
func encodeArgs(values ...uint32) []byte {
	scratch := protocol.NewScratchOutput()
	for _, v := range values {
		protocol.EncodeVLQUint(scratch, v)
	}
	out := make([]byte, len(scratch.Result()))
	copy(out, scratch.Result())
	return out
}

// resetRGBState clears the oid table along with the scheduler globals.
func resetRGBState() {
	resetCoreState()
	rgbIndicators = make(map[uint8]*Indicator)
	globalTransport = nil
}

// configTestIndicator runs config_rgb_indicator for oid 1 on a fresh mock
// driver and returns the recording bus behind it.
func configTestIndicator(t *testing.T) *mockBus {
	t.Helper()
	resetRGBState()

	driver := &mockI2CDriver{bus: &mockBus{}}
	SetI2CDriver(driver)

	data := encodeArgs(1, 0, 100000, uint32(lp5817.DefaultAddress))
	if err := handleConfigRGBIndicator(&data); err != nil {
		t.Fatalf("config_rgb_indicator failed: %v", err)
	}

	if len(driver.configured) != 1 || driver.rates[0] != 100000 {
		t.Fatalf("bus not configured as requested: %v @ %v", driver.configured, driver.rates)
	}

	driver.bus.reset() // drop the bring-up writes
	return driver.bus
}

func TestConfigRGBIndicatorBringsUpController(t *testing.T) {
	resetRGBState()

	driver := &mockI2CDriver{bus: &mockBus{}}
	SetI2CDriver(driver)

	data := encodeArgs(2, 1, 400000, uint32(lp5817.DefaultAddress))
	if err := handleConfigRGBIndicator(&data); err != nil {
		t.Fatalf("config_rgb_indicator failed: %v", err)
	}

	if _, ok := rgbIndicators[2]; !ok {
		t.Fatal("indicator not registered under its oid")
	}

	// Bring-up must have touched the enable register
	found := false
	for _, w := range driver.bus.writes {
		if w.Reg == lp5817.RegChipEnable {
			found = true
		}
	}
	if !found {
		t.Error("bring-up never enabled the chip")
	}
}

func TestRGBSetColorCommand(t *testing.T) {
	bus := configTestIndicator(t)

	data := encodeArgs(1, 10, 20, 30)
	if err := handleRGBSetColor(&data); err != nil {
		t.Fatalf("rgb_set_color failed: %v", err)
	}

	writes := bus.colorWrites()
	if len(writes) != 3 {
		t.Fatalf("got %d intensity writes, want 3", len(writes))
	}

	// Channel wiring: red lands on intensity 2, green on 0, blue on 1
	expect := map[uint8]uint8{
		lp5817.RegIntensity2: 10,
		lp5817.RegIntensity0: 20,
		lp5817.RegIntensity1: 30,
	}
	for _, w := range writes {
		if expect[w.Reg] != w.Val {
			t.Errorf("register 0x%02x = %d, want %d", w.Reg, w.Val, expect[w.Reg])
		}
	}
}

func TestRGBCommandsIgnoreUnknownOID(t *testing.T) {
	configTestIndicator(t)

	data := encodeArgs(99, 1, 2, 3)
	if err := handleRGBSetColor(&data); err != nil {
		t.Errorf("unknown oid should be ignored, got %v", err)
	}

	data = encodeArgs(99)
	if err := handleRGBCancel(&data); err != nil {
		t.Errorf("unknown oid should be ignored, got %v", err)
	}
}

func TestRGBFlashAndCancelCommands(t *testing.T) {
	bus := configTestIndicator(t)

	// rgb_flash oid red green blue on_ticks off_ticks count (continuous)
	data := encodeArgs(1, 255, 0, 0, 100, 50, 0)
	if err := handleRGBFlash(&data); err != nil {
		t.Fatalf("rgb_flash failed: %v", err)
	}

	if !rgbIndicators[1].IsBusy() {
		t.Fatal("indicator should be busy after rgb_flash")
	}

	on, _ := countPulses(bus.colorWrites())
	if on != 1 {
		t.Errorf("first ON pulse not written: %d", on)
	}

	data = encodeArgs(1)
	if err := handleRGBCancel(&data); err != nil {
		t.Fatalf("rgb_cancel failed: %v", err)
	}
	if rgbIndicators[1].IsBusy() {
		t.Error("indicator still busy after rgb_cancel")
	}
}

func TestRGBOffCommandGuardedWhileFlashing(t *testing.T) {
	bus := configTestIndicator(t)

	data := encodeArgs(1, 0, 255, 0, 100, 50, 3)
	if err := handleRGBFlash(&data); err != nil {
		t.Fatalf("rgb_flash failed: %v", err)
	}
	bus.reset()

	data = encodeArgs(1)
	if err := handleRGBOff(&data); err != nil {
		t.Fatalf("rgb_off failed: %v", err)
	}

	if len(bus.colorWrites()) != 0 {
		t.Error("rgb_off wrote to the display while a sequence was running")
	}
}

func TestRGBQueryStateResponse(t *testing.T) {
	configTestIndicator(t)

	// Responses need a registered name and a transport to travel on
	if _, ok := globalRegistry.GetCommandByName("rgb_state"); !ok {
		RegisterResponse("rgb_state", "oid=%c busy=%c")
	}
	output := protocol.NewScratchOutput()
	SetGlobalTransport(protocol.NewTransport(output, nil))
	defer SetGlobalTransport(nil)

	data := encodeArgs(1)
	if err := handleRGBQueryState(&data); err != nil {
		t.Fatalf("rgb_query_state failed: %v", err)
	}

	frame := output.Result()
	if len(frame) < protocol.MessageLengthMin {
		t.Fatal("no response frame emitted")
	}

	// Decode the payload: cmdID, oid, busy
	payload := frame[protocol.MessageHeaderSize : len(frame)-protocol.MessageTrailerSize]
	stateCmd, _ := globalRegistry.GetCommandByName("rgb_state")

	cmdID, err := protocol.DecodeVLQUint(&payload)
	if err != nil || uint16(cmdID) != stateCmd.ID {
		t.Fatalf("response cmdID = %d (err %v), want %d", cmdID, err, stateCmd.ID)
	}
	oid, _ := protocol.DecodeVLQUint(&payload)
	busy, _ := protocol.DecodeVLQUint(&payload)
	if oid != 1 || busy != 0 {
		t.Errorf("rgb_state oid=%d busy=%d, want oid=1 busy=0", oid, busy)
	}
}
