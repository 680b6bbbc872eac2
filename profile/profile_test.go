package profile

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/janch32/arduino-serial/fault"
)

func TestLookup(t *testing.T) {
	b, err := Lookup("Mega2560")
	if err != nil {
		t.Fatal(err)
	}
	if b.Protocol != Stk500v2 || b.MCU != ATmega2560 {
		t.Errorf("unexpected board %+v", b)
	}
	if b.RebootGrace != 4*time.Second {
		t.Errorf("grace = %v", b.RebootGrace)
	}

	uno, _ := Lookup("uno")
	if uno.RebootGrace != DefaultRebootGrace || uno.ReadTimeout != time.Second {
		t.Errorf("defaults not applied: %+v", uno)
	}

	if _, err := Lookup("due"); !errors.Is(err, fault.ConfigurationError) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}

func TestSignatureBytes(t *testing.T) {
	sig, err := ATmega328P.SignatureBytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(sig, []byte{0x1E, 0x95, 0x0F}) {
		t.Errorf("got % X", sig)
	}
	if s := FormatSignature(sig); s != "1E-95-0F" {
		t.Errorf("FormatSignature = %q", s)
	}

	bad := &MCU{Name: "x", Signature: "zz"}
	if _, err := bad.SignatureBytes(); !errors.Is(err, fault.ConfigurationError) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}

func TestParseProtocol(t *testing.T) {
	p, err := ParseProtocol(" AVR109 ")
	if err != nil || p != Avr109 {
		t.Fatalf("got %v, %v", p, err)
	}
	if _, err := ParseProtocol("stk600"); !errors.Is(err, fault.ConfigurationError) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}

func TestEveryPageSizeDividesFlash(t *testing.T) {
	for _, model := range Models() {
		b, _ := Lookup(model)
		if b.MCU.Flash.Size%b.MCU.Flash.PageSize != 0 {
			t.Errorf("%s: flash %d not a multiple of page %d", model, b.MCU.Flash.Size, b.MCU.Flash.PageSize)
		}
	}
}
