// Package transporttest provides an in-memory serial port and dialer for
// exercising protocol code without hardware.
package transporttest

import (
	"errors"

	"github.com/janch32/arduino-serial/transport"
)

// Responder - Reacts to bytes written by the host. The returned bytes are
// queued for the host to read.
type Responder func(written []byte) []byte

// Port - Scripted serial port. A read with nothing queued behaves like a
// read timeout and returns (0, nil).
type Port struct {
	Name     string
	Respond  Responder
	MaxChunk int
	ReadErr  error
	WriteErr error
	Writes   [][]byte
	DTR      []bool
	RTS      []bool
	Discards int
	Timeouts int
	Closed   bool
	CloseErr error
	input    []byte
}

// Queue - Appends bytes for the host to read
func (p *Port) Queue(b ...byte) {
	p.input = append(p.input, b...)
}

// Pending - Number of queued bytes not yet read
func (p *Port) Pending() int {
	return len(p.input)
}

func (p *Port) Read(buf []byte) (int, error) {
	if p.ReadErr != nil {
		return 0, p.ReadErr
	}
	if len(p.input) == 0 {
		p.Timeouts++
		return 0, nil
	}

	n := len(buf)
	if p.MaxChunk > 0 && n > p.MaxChunk {
		n = p.MaxChunk
	}
	n = copy(buf[:n], p.input)
	p.input = p.input[n:]
	return n, nil
}

func (p *Port) Write(buf []byte) (int, error) {
	if p.WriteErr != nil {
		return 0, p.WriteErr
	}

	written := append([]byte(nil), buf...)
	p.Writes = append(p.Writes, written)
	if p.Respond != nil {
		p.input = append(p.input, p.Respond(written)...)
	}
	return len(buf), nil
}

// Written - All bytes written so far, concatenated
func (p *Port) Written() []byte {
	var all []byte
	for _, w := range p.Writes {
		all = append(all, w...)
	}
	return all
}

func (p *Port) Close() error {
	p.Closed = true
	return p.CloseErr
}

func (p *Port) ResetInputBuffer() error {
	p.Discards++
	p.input = nil
	return nil
}

func (p *Port) SetDTR(level bool) error {
	p.DTR = append(p.DTR, level)
	return nil
}

func (p *Port) SetRTS(level bool) error {
	p.RTS = append(p.RTS, level)
	return nil
}

// ErrNoSuchPort is returned by Dialer.Open for names without a port.
var ErrNoSuchPort = errors.New("no such port")

// Dialer - Hands out registered ports by name. Listings are returned in
// order; the last listing repeats once the script is exhausted.
type Dialer struct {
	Registry map[string]*Port
	Listings [][]string
	Opened   []transport.Config
	listed   int
}

// NewDialer - Dialer serving the given ports
func NewDialer(ports ...*Port) *Dialer {
	d := &Dialer{Registry: map[string]*Port{}}
	for _, p := range ports {
		d.Registry[p.Name] = p
	}
	return d
}

func (d *Dialer) Open(cfg transport.Config) (transport.Port, error) {
	d.Opened = append(d.Opened, cfg)

	p, ok := d.Registry[cfg.Name]
	if !ok {
		return nil, ErrNoSuchPort
	}
	p.Closed = false
	return p, nil
}

func (d *Dialer) Ports() ([]string, error) {
	if len(d.Listings) == 0 {
		d.listed++
		names := []string{}
		for name := range d.Registry {
			names = append(names, name)
		}
		return names, nil
	}

	i := d.listed
	if i >= len(d.Listings) {
		i = len(d.Listings) - 1
	}
	d.listed++
	return d.Listings[i], nil
}

// ListCalls - How many times Ports was called
func (d *Dialer) ListCalls() int {
	return d.listed
}
