package reset

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/janch32/arduino-serial/fault"
	"github.com/janch32/arduino-serial/transport"
	"github.com/janch32/arduino-serial/transport/transporttest"
	"github.com/rs/zerolog"
)

func TestParse(t *testing.T) {
	tests := []struct {
		spec string
		want Strategy
	}{
		{"", nil},
		{"1200bps", &Baud1200{}},
		{" 1200BPS ", &Baud1200{}},
		{"DTR;true", &DTR{Value: true}},
		{"dtr;false", &DTR{Value: false}},
		{"DTR-RTS;250;50", &DTRRTS{Wait1: 250 * time.Millisecond, Wait2: 50 * time.Millisecond}},
		{"DTR-RTS;50;100;true", &DTRRTS{Wait1: 50 * time.Millisecond, Wait2: 100 * time.Millisecond, Inverted: true}},
	}

	for _, tt := range tests {
		got, err := Parse(tt.spec)
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.spec, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Parse(%q) = %#v, want %#v", tt.spec, got, tt.want)
		}
	}
}

func TestParseMalformed(t *testing.T) {
	for _, spec := range []string{
		"DTR-RTS;50",
		"DTR-RTS;a;50",
		"DTR-RTS;50;b",
		"DTR-RTS;50;100;maybe",
		"DTR-RTS;1;2;3;4",
		"RTS;50;100",
		"DTR;sometimes",
		"2400bps",
	} {
		if _, err := Parse(spec); !errors.Is(err, fault.ConfigurationError) {
			t.Errorf("Parse(%q): expected ConfigurationError, got %v", spec, err)
		}
	}
}

func TestParseHooks(t *testing.T) {
	h, err := ParseHooks("1200bps", "", "DTR;false")
	if err != nil {
		t.Fatal(err)
	}
	if h.PostOpen != nil || h.PreOpen.String() != "1200bps" || h.PreClose.String() != "DTR;false" {
		t.Errorf("unexpected hooks %+v", h)
	}

	if _, err := ParseHooks("", "DTR-RTS;x;1", ""); !errors.Is(err, fault.ConfigurationError) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}

func TestDTRRTSToggle(t *testing.T) {
	port := &transporttest.Port{Name: "ttyUSB0"}
	s := transport.NewSession(transporttest.NewDialer(port), transport.Config{Name: "ttyUSB0"}, zerolog.Nop())

	var slept []time.Duration
	r := &DTRRTS{Wait1: 50 * time.Millisecond, Wait2: 100 * time.Millisecond, Inverted: true,
		Sleep: func(d time.Duration) { slept = append(slept, d) }}

	got, err := r.Reset(s)
	if err != nil {
		t.Fatal(err)
	}
	if got != s {
		t.Errorf("DTR-RTS must keep the session")
	}
	if !reflect.DeepEqual(port.DTR, []bool{true, false}) || !reflect.DeepEqual(port.RTS, []bool{true, false}) {
		t.Errorf("DTR %v RTS %v", port.DTR, port.RTS)
	}
	if !reflect.DeepEqual(slept, []time.Duration{50 * time.Millisecond, 100 * time.Millisecond}) {
		t.Errorf("slept %v", slept)
	}
}

func TestDTR(t *testing.T) {
	port := &transporttest.Port{Name: "ttyUSB0"}
	s := transport.NewSession(transporttest.NewDialer(port), transport.Config{Name: "ttyUSB0"}, zerolog.Nop())

	if _, err := (&DTR{Value: true}).Reset(s); err != nil {
		t.Fatal(err)
	}
	if !s.IsOpen() || !reflect.DeepEqual(port.DTR, []bool{true}) || len(port.RTS) != 0 {
		t.Errorf("open %v DTR %v RTS %v", s.IsOpen(), port.DTR, port.RTS)
	}
}

func TestBaud1200FindsNewPort(t *testing.T) {
	app := &transporttest.Port{Name: "COM3"}
	d := transporttest.NewDialer(app)
	d.Listings = [][]string{
		{"COM3"},
		{},
		{"COM7"},
	}

	s := transport.NewSession(d, transport.Config{Name: "COM3", BaudRate: 57600, ReadTimeout: time.Second}, zerolog.Nop())
	if err := s.Open(); err != nil {
		t.Fatal(err)
	}

	r := &Baud1200{Timeout: time.Second, Interval: time.Millisecond}
	next, err := r.Reset(s)
	if err != nil {
		t.Fatal(err)
	}

	if s.IsOpen() {
		t.Errorf("old session must be closed")
	}
	if next.IsOpen() {
		t.Errorf("new session must not be opened yet")
	}

	cfg := next.Config()
	if cfg.Name != "COM7" || cfg.BaudRate != 57600 || !cfg.Handshake {
		t.Errorf("unexpected config %+v", cfg)
	}

	touch := d.Opened[1]
	if touch.Name != "COM3" || touch.BaudRate != 1200 || !touch.Handshake {
		t.Errorf("unexpected touch config %+v", touch)
	}
	if !app.Closed {
		t.Errorf("touch port left open")
	}
}

func TestBaud1200Ambiguous(t *testing.T) {
	app := &transporttest.Port{Name: "COM3"}
	d := transporttest.NewDialer(app)
	d.Listings = [][]string{
		{"COM3"},
		{"COM3", "COM7", "COM8"},
	}

	s := transport.NewSession(d, transport.Config{Name: "COM3", BaudRate: 57600}, zerolog.Nop())
	r := &Baud1200{Timeout: 20 * time.Millisecond, Interval: 5 * time.Millisecond}

	if _, err := r.Reset(s); !errors.Is(err, fault.PortDiscoveryTimeout) {
		t.Fatalf("expected PortDiscoveryTimeout, got %v", err)
	}
}
