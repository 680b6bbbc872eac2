package uploader

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/janch32/arduino-serial/bootloader"
	"github.com/janch32/arduino-serial/bootloader/avr109"
	"github.com/janch32/arduino-serial/bootloader/bootloadertest"
	"github.com/janch32/arduino-serial/bootloader/stk500v1"
	"github.com/janch32/arduino-serial/bootloader/stk500v2"
	"github.com/janch32/arduino-serial/fault"
	"github.com/janch32/arduino-serial/memory"
	"github.com/janch32/arduino-serial/profile"
	"github.com/janch32/arduino-serial/transport/transporttest"
)

func noSleep(time.Duration) {}

func testImage(t *testing.T, size int) *memory.Image {
	t.Helper()

	img := memory.NewImage(size, memory.Fill)
	if err := img.Set(0, 0x0C, 0x94, 0x34, 0x00); err != nil {
		t.Fatal(err)
	}
	return img
}

func TestUploadUno(t *testing.T) {
	dev := bootloadertest.NewOptiboot(profile.ATmega328P)
	port := &transporttest.Port{Name: "COM3", Respond: dev.Respond}
	d := transporttest.NewDialer(port)

	var progress []float64
	var states []bootloader.State
	u, err := New("UNO", "com3",
		WithDialer(d),
		WithSleep(noSleep),
		WithProgress(func(p float64) { progress = append(progress, p) }),
		WithStateHook(func(s bootloader.State) { states = append(states, s) }),
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := u.Upload(testImage(t, profile.ATmega328P.Flash.Size)); err != nil {
		t.Fatal(err)
	}

	if dev.Memory[1] != 0x94 || dev.Memory[3] != 0x00 {
		t.Errorf("flash % X", dev.Memory[:4])
	}
	if len(d.Opened) != 1 || d.Opened[0].Name != "COM3" || d.Opened[0].BaudRate != 115200 {
		t.Errorf("opened %+v", d.Opened)
	}
	// post-open pulse, then the lines are dropped on close
	if !reflect.DeepEqual(port.DTR, []bool{false, true, false}) {
		t.Errorf("DTR %v", port.DTR)
	}
	if !port.Closed {
		t.Error("port not closed")
	}
	if len(progress) == 0 || progress[len(progress)-1] != 1 {
		t.Errorf("progress %v", progress)
	}
	if states[len(states)-1] != bootloader.Closed {
		t.Errorf("states %v", states)
	}
}

func TestUploadLeonardoReenumerates(t *testing.T) {
	sketch := &transporttest.Port{Name: "COM3"}
	dev := bootloadertest.NewCaterina(profile.ATmega32U4)
	boot := &transporttest.Port{Name: "COM8", Respond: dev.Respond}

	d := transporttest.NewDialer(sketch, boot)
	d.Listings = [][]string{{"COM3"}, {"COM3"}, {"COM3", "COM8"}}

	u, err := New("leonardo", "COM3", WithDialer(d), WithSleep(noSleep))
	if err != nil {
		t.Fatal(err)
	}
	if err := u.Upload(testImage(t, profile.ATmega32U4.Flash.Size)); err != nil {
		t.Fatal(err)
	}

	if len(d.Opened) != 2 {
		t.Fatalf("opened %+v", d.Opened)
	}
	if touch := d.Opened[0]; touch.Name != "COM3" || touch.BaudRate != 1200 || !touch.Handshake {
		t.Errorf("touch %+v", touch)
	}
	if opened := d.Opened[1]; opened.Name != "COM8" || opened.BaudRate != 57600 {
		t.Errorf("bootloader port %+v", opened)
	}
	if dev.Memory[0] != 0x0C || dev.Count('E') != 1 {
		t.Errorf("flash % X, commands %q", dev.Memory[:4], dev.Commands)
	}
	if !sketch.Closed || !boot.Closed {
		t.Error("ports left open")
	}
}

func TestProgrammerForBoard(t *testing.T) {
	tests := []struct {
		model string
		want  interface{}
	}{
		{"uno", &stk500v1.Programmer{}},
		{"nano", &stk500v1.Programmer{}},
		{"mega2560", &stk500v2.Programmer{}},
		{"micro", &avr109.Programmer{}},
	}

	for _, tt := range tests {
		d := transporttest.NewDialer(&transporttest.Port{Name: "COM1"})
		u, err := New(tt.model, "", WithDialer(d))
		if err != nil {
			t.Fatal(err)
		}

		p, err := u.Programmer()
		if err != nil {
			t.Fatalf("%s: %v", tt.model, err)
		}
		if reflect.TypeOf(p) != reflect.TypeOf(tt.want) {
			t.Errorf("%s: programmer %T, want %T", tt.model, p, tt.want)
		}
	}
}

func TestConfigurationErrors(t *testing.T) {
	if _, err := New("teensy", "COM1"); !errors.Is(err, fault.ConfigurationError) {
		t.Errorf("unknown board: %v", err)
	}

	d := transporttest.NewDialer(&transporttest.Port{Name: "COM1"}, &transporttest.Port{Name: "COM2"})

	u, _ := New("uno", "COM9", WithDialer(d))
	if _, err := u.Programmer(); !errors.Is(err, fault.ConfigurationError) {
		t.Errorf("missing port: %v", err)
	}

	u, _ = New("uno", "", WithDialer(d))
	if _, err := u.Programmer(); !errors.Is(err, fault.ConfigurationError) {
		t.Errorf("ambiguous port: %v", err)
	}
}

func TestUploadFileMissing(t *testing.T) {
	d := transporttest.NewDialer(&transporttest.Port{Name: "COM1"})
	u, _ := New("uno", "COM1", WithDialer(d))

	if err := u.UploadFile("does-not-exist.hex"); err == nil {
		t.Fatal("upload of missing file succeeded")
	}
	if len(d.Opened) != 0 {
		t.Error("port opened for a missing file")
	}
}
