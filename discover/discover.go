// Package discover enumerates serial ports, recognises attached Arduino boards
// and waits for ports that appear after a board re-enumerates.
package discover

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/albenik/go-serial/v2/enumerator"
	"github.com/janch32/arduino-serial/fault"
)

// Lister - Anything able to list present port names (transport.Dialer is one)
type Lister interface {
	Ports() ([]string, error)
}

// Device - Serial port found on the host
type Device struct {
	Port    string // Port name
	USB     bool
	VID     string
	PID     string
	Serial  string
	Arduino bool // VID belongs to a known Arduino or clone USB bridge
}

// USB vendor IDs of Arduino boards and the usual clone bridges
var arduinoVIDs = map[string]bool{
	"2341": true, // Arduino LLC
	"2A03": true, // Arduino SRL
	"1B4F": true, // SparkFun
	"1A86": true, // QinHeng CH340
	"0403": true, // FTDI
	"10C4": true, // Silicon Labs CP210x
}

// Devices - Lists every serial port with its USB details
func Devices() ([]Device, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	found := []Device{}
	for _, port := range ports {
		found = append(found, Device{
			Port:    port.Name,
			USB:     port.IsUSB,
			VID:     port.VID,
			PID:     port.PID,
			Serial:  port.SerialNumber,
			Arduino: port.IsUSB && arduinoVIDs[strings.ToUpper(port.VID)],
		})
	}

	return found, nil
}

// FirstArduino - First port that looks like an Arduino board
func FirstArduino() (*Device, error) {
	devices, err := Devices()
	if err != nil {
		return nil, err
	}

	for _, d := range devices {
		if d.Arduino {
			dev := d
			return &dev, nil
		}
	}

	return nil, fault.New(fault.ConfigurationError, "no Arduino board found")
}

// Distinct - Sorted port names without duplicates
func Distinct(names []string) []string {
	seen := map[string]bool{}
	res := []string{}
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			res = append(res, n)
		}
	}
	sort.Strings(res)
	return res
}

// SinglePort - The only port present on the host. Zero or several ports is
// a configuration error.
func SinglePort(l Lister) (string, error) {
	names, err := l.Ports()
	if err != nil {
		return "", fault.Wrap(fault.ConfigurationError, err, "unable to list serial ports")
	}

	names = Distinct(names)
	if len(names) != 1 {
		return "", fault.New(fault.ConfigurationError,
			"unable to pick a serial port automatically, %d ports present %v", len(names), names)
	}
	return names[0], nil
}

// Resolve - Validates name against the present ports (case-insensitively).
// An empty name selects the only present port.
func Resolve(l Lister, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return SinglePort(l)
	}

	names, err := l.Ports()
	if err != nil {
		return "", fault.Wrap(fault.ConfigurationError, err, "unable to list serial ports")
	}

	for _, n := range Distinct(names) {
		if strings.EqualFold(n, name) {
			return n, nil
		}
	}
	return "", fault.New(fault.ConfigurationError, "serial port %q is not present", name)
}

// Added - Names present in after but not in before
func Added(before, after []string) []string {
	old := map[string]bool{}
	for _, n := range before {
		old[n] = true
	}

	added := []string{}
	for _, n := range Distinct(after) {
		if !old[n] {
			added = append(added, n)
		}
	}
	return added
}

// WaitForNewPort - Polls the port list every interval until exactly one port
// not present in before shows up. Fails with PortDiscoveryTimeout when ctx
// ends first.
func WaitForNewPort(ctx context.Context, l Lister, before []string, interval time.Duration, onPoll func(elapsed time.Duration, found []string)) (string, error) {
	start := time.Now()
	var last []string

	for {
		names, err := l.Ports()
		if err == nil {
			last = Added(before, names)
			if onPoll != nil {
				onPoll(time.Since(start), last)
			}
			if len(last) == 1 {
				return last[0], nil
			}
		}

		select {
		case <-ctx.Done():
			return "", fault.New(fault.PortDiscoveryTimeout,
				"no unambiguous new serial port after %v (candidates %v)", time.Since(start).Round(time.Millisecond), last)
		case <-time.After(interval):
		}
	}
}
