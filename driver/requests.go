package driver

import (
	"github.com/janch32/arduino-serial/fault"
	"github.com/janch32/arduino-serial/listener"
)

// Send - Sends a raw request and returns whatever the listener answered
func (d *Driver) Send(req listener.Request) (listener.Response, error) {
	if err := d.ch.Open(); err != nil {
		return nil, err
	}
	return d.ch.Send(req)
}

func expect[T listener.Response](d *Driver, req listener.Request) (T, error) {
	var zero T

	resp, err := d.Send(req)
	if err != nil {
		return zero, err
	}
	if e, ok := resp.(*listener.ErrorResponse); ok {
		return zero, fault.New(fault.DeviceNak, "listener rejected %s: % X", req, []byte{e.Byte1, e.Byte2, e.Byte3})
	}

	typed, ok := resp.(T)
	if !ok {
		return zero, fault.New(fault.FramingMismatch, "unexpected answer 0x%02X to %s", resp.Ack(), req)
	}
	return typed, nil
}

func (d *Driver) DigitalRead(pin byte) (listener.DigitalValue, error) {
	resp, err := expect[*listener.DigitalReadResponse](d, listener.DigitalReadRequest(pin))
	if err != nil {
		return listener.Low, err
	}
	return resp.Value, nil
}

func (d *Driver) DigitalWrite(pin byte, value listener.DigitalValue) error {
	_, err := expect[*listener.DigitalWriteResponse](d, listener.DigitalWriteRequest(pin, value))
	return err
}

func (d *Driver) PinMode(pin byte, mode listener.PinMode) error {
	_, err := expect[*listener.PinModeResponse](d, listener.PinModeRequest(pin, mode))
	return err
}

func (d *Driver) AnalogRead(pin byte) (int, error) {
	resp, err := expect[*listener.AnalogReadResponse](d, listener.AnalogReadRequest(pin))
	if err != nil {
		return 0, err
	}
	return resp.Value, nil
}

func (d *Driver) AnalogWrite(pin byte, value byte) error {
	_, err := expect[*listener.AnalogWriteResponse](d, listener.AnalogWriteRequest(pin, value))
	return err
}

// Tone - frequency in Hz, duration in ms (0 plays until NoTone)
func (d *Driver) Tone(pin byte, frequency uint16, duration uint32) error {
	_, err := expect[*listener.ToneResponse](d, listener.ToneRequest(pin, frequency, duration))
	return err
}

func (d *Driver) NoTone(pin byte) error {
	_, err := expect[*listener.NoToneResponse](d, listener.NoToneRequest(pin))
	return err
}

func (d *Driver) AnalogReference(ref listener.AnalogReferenceType) error {
	_, err := expect[*listener.AnalogReferenceResponse](d, listener.AnalogReferenceRequest(ref))
	return err
}

func (d *Driver) ShiftOut(dataPin, clockPin byte, order listener.BitOrder, value byte) error {
	_, err := expect[*listener.ShiftOutResponse](d, listener.ShiftOutRequest(dataPin, clockPin, order, value))
	return err
}

func (d *Driver) ShiftIn(dataPin, clockPin byte, order listener.BitOrder) (byte, error) {
	resp, err := expect[*listener.ShiftInResponse](d, listener.ShiftInRequest(dataPin, clockPin, order))
	if err != nil {
		return 0, err
	}
	return resp.Incoming, nil
}
