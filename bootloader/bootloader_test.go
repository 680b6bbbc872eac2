package bootloader_test

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/janch32/arduino-serial/bootloader"
	"github.com/janch32/arduino-serial/fault"
	"github.com/janch32/arduino-serial/memory"
	"github.com/janch32/arduino-serial/profile"
	"github.com/janch32/arduino-serial/reset"
	"github.com/janch32/arduino-serial/transport"
	"github.com/janch32/arduino-serial/transport/transporttest"
	"github.com/rs/zerolog"
)

const pageSize = 16

var testMemory = profile.Memory{Type: profile.Flash, Size: 8 * pageSize, PageSize: pageSize}

// fakeProgrammer - Records lifecycle calls and keeps a flash array
type fakeProgrammer struct {
	calls    []string
	flash    []byte
	addr     int
	failAt   string
	corrupt  int
	trailing []byte
	closeErr error
}

func newFake() *fakeProgrammer {
	flash := make([]byte, testMemory.Size)
	for i := range flash {
		flash[i] = 0xFF
	}
	return &fakeProgrammer{flash: flash, corrupt: -1}
}

func (f *fakeProgrammer) call(name string) error {
	f.calls = append(f.calls, name)
	if name == f.failAt {
		return fault.New(fault.SignatureMismatch, "%s failed", name)
	}
	return nil
}

func (f *fakeProgrammer) Open() error                  { return f.call("Open") }
func (f *fakeProgrammer) EstablishSync() error         { return f.call("EstablishSync") }
func (f *fakeProgrammer) CheckDeviceSignature() error  { return f.call("CheckDeviceSignature") }
func (f *fakeProgrammer) InitializeDevice() error      { return f.call("InitializeDevice") }
func (f *fakeProgrammer) EnableProgrammingMode() error { return f.call("EnableProgrammingMode") }
func (f *fakeProgrammer) LeaveProgrammingMode() error  { return f.call("LeaveProgrammingMode") }

func (f *fakeProgrammer) Close() error {
	f.calls = append(f.calls, "Close")
	return f.closeErr
}

func (f *fakeProgrammer) LoadAddress(mem profile.Memory, offset int) error {
	f.addr = offset
	return f.call(fmt.Sprintf("LoadAddress %d", offset))
}

func (f *fakeProgrammer) ExecuteWritePage(mem profile.Memory, offset int, data []byte) error {
	copy(f.flash[offset:], data)
	return f.call(fmt.Sprintf("WritePage %d", offset))
}

func (f *fakeProgrammer) ExecuteReadPage(mem profile.Memory) ([]byte, error) {
	page := append([]byte(nil), f.flash[f.addr:f.addr+mem.PageSize]...)
	if f.corrupt >= f.addr && f.corrupt < f.addr+mem.PageSize {
		page[f.corrupt-f.addr] ^= 0x01
	}
	page = append(page, f.trailing...)
	return page, f.call(fmt.Sprintf("ReadPage %d", f.addr))
}

// imageWithPages - Image with cells modified in pages 2 and 5 only
func imageWithPages(t *testing.T) *memory.Image {
	t.Helper()

	img := memory.NewImage(testMemory.Size, memory.Fill)
	if err := img.Set(2*pageSize+3, 0x11, 0x22); err != nil {
		t.Fatal(err)
	}
	if err := img.Set(5*pageSize, 0x33); err != nil {
		t.Fatal(err)
	}
	return img
}

func TestProgramSkipsCleanPages(t *testing.T) {
	f := newFake()
	img := imageWithPages(t)

	if err := bootloader.ProgramDevice(f, img, testMemory, nil, zerolog.Nop()); err != nil {
		t.Fatal(err)
	}

	want := []string{"LoadAddress 32", "WritePage 32", "LoadAddress 80", "WritePage 80"}
	if !reflect.DeepEqual(f.calls, want) {
		t.Fatalf("calls %v, want %v", f.calls, want)
	}
	if f.flash[35] != 0x11 || f.flash[36] != 0x22 || f.flash[80] != 0x33 {
		t.Errorf("flash not written: % X", f.flash[32:96])
	}
}

func TestVerifyStopsAtFirstMismatch(t *testing.T) {
	f := newFake()
	img := imageWithPages(t)
	if err := bootloader.ProgramDevice(f, img, testMemory, nil, zerolog.Nop()); err != nil {
		t.Fatal(err)
	}

	f.calls = nil
	f.corrupt = 2*pageSize + 7

	err := bootloader.VerifyProgram(f, img, testMemory, nil, zerolog.Nop())
	if !errors.Is(err, fault.VerificationMismatch) {
		t.Fatalf("err = %v, want verification mismatch", err)
	}

	want := []string{
		"LoadAddress 0", "ReadPage 0",
		"LoadAddress 16", "ReadPage 16",
		"LoadAddress 32", "ReadPage 32",
	}
	if !reflect.DeepEqual(f.calls, want) {
		t.Fatalf("calls %v, want %v", f.calls, want)
	}
}

func TestVerifyRejectsLongerPage(t *testing.T) {
	f := newFake()
	img := imageWithPages(t)
	if err := bootloader.ProgramDevice(f, img, testMemory, nil, zerolog.Nop()); err != nil {
		t.Fatal(err)
	}

	f.calls = nil
	f.trailing = []byte{0xFF}

	err := bootloader.VerifyProgram(f, img, testMemory, nil, zerolog.Nop())
	if !errors.Is(err, fault.VerificationMismatch) {
		t.Fatalf("err = %v, want verification mismatch", err)
	}
	if want := []string{"LoadAddress 0", "ReadPage 0"}; !reflect.DeepEqual(f.calls, want) {
		t.Fatalf("calls %v, want %v", f.calls, want)
	}
}

func TestVerifyReadsEveryPage(t *testing.T) {
	f := newFake()
	img := imageWithPages(t)
	if err := bootloader.ProgramDevice(f, img, testMemory, nil, zerolog.Nop()); err != nil {
		t.Fatal(err)
	}

	f.calls = nil
	if err := bootloader.VerifyProgram(f, img, testMemory, nil, zerolog.Nop()); err != nil {
		t.Fatal(err)
	}
	if len(f.calls) != 12 {
		t.Errorf("verify made %d calls, want 12: %v", len(f.calls), f.calls)
	}
}

func TestRunOrderAndProgress(t *testing.T) {
	f := newFake()
	var fractions []float64
	var states []bootloader.State

	err := bootloader.Run(f, bootloader.Upload{
		Image:    imageWithPages(t),
		Memory:   testMemory,
		Progress: func(p float64) { fractions = append(fractions, p) },
		OnState:  func(s bootloader.State) { states = append(states, s) },
		Log:      zerolog.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		"Open", "EstablishSync", "CheckDeviceSignature", "InitializeDevice", "EnableProgrammingMode",
		"LoadAddress 32", "WritePage 32", "LoadAddress 80", "WritePage 80",
	}
	for page := 0; page < 6; page++ {
		want = append(want, fmt.Sprintf("LoadAddress %d", page*pageSize), fmt.Sprintf("ReadPage %d", page*pageSize))
	}
	want = append(want, "LeaveProgrammingMode", "Close")

	if !reflect.DeepEqual(f.calls, want) {
		t.Fatalf("calls\n%v\nwant\n%v", f.calls, want)
	}

	wantStates := []bootloader.State{
		bootloader.Opened, bootloader.Synced, bootloader.SignatureVerified, bootloader.Initialized,
		bootloader.ProgrammingModeEnabled, bootloader.Programmed, bootloader.Verified,
		bootloader.ProgrammingModeLeft, bootloader.Closed,
	}
	if !reflect.DeepEqual(states, wantStates) {
		t.Errorf("states %v, want %v", states, wantStates)
	}

	for i := 1; i < len(fractions); i++ {
		if fractions[i] < fractions[i-1] {
			t.Fatalf("progress went back: %v", fractions)
		}
	}
	if last := fractions[len(fractions)-1]; last != 1 {
		t.Errorf("final progress %v, want 1", last)
	}
	if fractions[0] < 0 || fractions[0] >= 0.5 {
		t.Errorf("first progress %v not in program half", fractions[0])
	}
}

func TestRunClosesAfterFailure(t *testing.T) {
	f := newFake()
	f.failAt = "CheckDeviceSignature"
	f.closeErr = errors.New("close failed")

	err := bootloader.Run(f, bootloader.Upload{Image: imageWithPages(t), Memory: testMemory, Log: zerolog.Nop()})
	if !errors.Is(err, fault.SignatureMismatch) {
		t.Fatalf("err = %v, want the signature failure", err)
	}

	want := []string{"Open", "EstablishSync", "CheckDeviceSignature", "Close"}
	if !reflect.DeepEqual(f.calls, want) {
		t.Fatalf("calls %v, want %v", f.calls, want)
	}
}

func TestRunReturnsCloseError(t *testing.T) {
	f := newFake()
	f.closeErr = errors.New("close failed")

	err := bootloader.Run(f, bootloader.Upload{Image: imageWithPages(t), Memory: testMemory, Log: zerolog.Nop()})
	if err != f.closeErr {
		t.Fatalf("err = %v, want close error", err)
	}
}

func TestStateString(t *testing.T) {
	if s := bootloader.ProgrammingModeEnabled.String(); s != "programming mode enabled" {
		t.Errorf("got %q", s)
	}
	if s := bootloader.State(42).String(); s != "unknown" {
		t.Errorf("got %q", s)
	}
}

func TestConnHooks(t *testing.T) {
	port := &transporttest.Port{Name: "COM4"}
	d := transporttest.NewDialer(port)
	var slept []time.Duration

	hooks := reset.Hooks{
		PostOpen: &reset.DTR{Value: true},
		PreClose: &reset.DTRRTS{Wait1: 5 * time.Millisecond, Wait2: 7 * time.Millisecond, Sleep: func(d time.Duration) { slept = append(slept, d) }},
	}
	conn := bootloader.NewConn(d, transport.Config{Name: "COM4", BaudRate: 115200}, hooks, 50*time.Millisecond, zerolog.Nop())
	conn.SetSleep(func(d time.Duration) { slept = append(slept, d) })

	if err := conn.Open(); err != nil {
		t.Fatal(err)
	}
	if !conn.IsOpen() || len(d.Opened) != 1 || d.Opened[0].BaudRate != 115200 {
		t.Fatalf("port not opened once: %+v", d.Opened)
	}
	if !reflect.DeepEqual(port.DTR, []bool{true}) {
		t.Errorf("DTR after open %v", port.DTR)
	}

	if err := conn.Close(); err != nil {
		t.Fatal(err)
	}
	if !port.Closed || conn.IsOpen() {
		t.Error("port left open")
	}
	if !reflect.DeepEqual(port.DTR, []bool{true, false, true, false}) {
		t.Errorf("DTR %v", port.DTR)
	}
	if !reflect.DeepEqual(port.RTS, []bool{false, true, false}) {
		t.Errorf("RTS %v", port.RTS)
	}
	wantSleeps := []time.Duration{50 * time.Millisecond, 5 * time.Millisecond, 7 * time.Millisecond}
	if !reflect.DeepEqual(slept, wantSleeps) {
		t.Errorf("sleeps %v, want %v", slept, wantSleeps)
	}

	// second close is a no-op
	if err := conn.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestConnOpenUnknownPort(t *testing.T) {
	d := transporttest.NewDialer()
	conn := bootloader.NewConn(d, transport.Config{Name: "COM9"}, reset.Hooks{}, 0, zerolog.Nop())

	if err := conn.Open(); !errors.Is(err, fault.ConfigurationError) {
		t.Fatalf("err = %v, want configuration error", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close of unopened conn: %v", err)
	}
}
