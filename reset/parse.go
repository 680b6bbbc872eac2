package reset

import (
	"strconv"
	"strings"
	"time"

	"github.com/janch32/arduino-serial/fault"
)

// Parse - Strategy from its reset-spec:
//
//	1200bps
//	DTR;<true|false>
//	DTR-RTS;<wait1_ms>;<wait2_ms>[;<inverted>]
//
// An empty spec yields a nil Strategy.
func Parse(spec string) (Strategy, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	if strings.EqualFold(spec, "1200bps") {
		return &Baud1200{}, nil
	}

	parts := strings.Split(spec, ";")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	if len(parts) == 2 && strings.EqualFold(parts[0], "DTR") {
		value, err := strconv.ParseBool(parts[1])
		if err != nil {
			return nil, fault.New(fault.ConfigurationError, "unrecognized DTR level in %q", spec)
		}
		return &DTR{Value: value}, nil
	}

	if len(parts) < 3 || len(parts) > 4 {
		return nil, fault.New(fault.ConfigurationError, "unexpected format (%d parts to %q)", len(parts), spec)
	}

	if !strings.EqualFold(parts[0], "DTR-RTS") {
		return nil, fault.New(fault.ConfigurationError, "unrecognized reset behavior %q", spec)
	}

	wait1, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fault.New(fault.ConfigurationError, "unrecognized wait (1) in DTR-RTS: %q", parts[1])
	}

	wait2, err := strconv.Atoi(parts[2])
	if err != nil {
		return nil, fault.New(fault.ConfigurationError, "unrecognized wait (2) in DTR-RTS: %q", parts[2])
	}

	inverted := false
	if len(parts) == 4 {
		inverted, err = strconv.ParseBool(parts[3])
		if err != nil {
			return nil, fault.New(fault.ConfigurationError, "unrecognized inversion flag in DTR-RTS: %q", parts[3])
		}
	}

	return &DTRRTS{
		Wait1:    time.Duration(wait1) * time.Millisecond,
		Wait2:    time.Duration(wait2) * time.Millisecond,
		Inverted: inverted,
	}, nil
}

// ParseHooks - Parses the three hook specs of a board
func ParseHooks(preOpen, postOpen, preClose string) (Hooks, error) {
	var h Hooks
	var err error

	h.PreOpen, err = Parse(preOpen)
	if err == nil {
		h.PostOpen, err = Parse(postOpen)
	}
	if err == nil {
		h.PreClose, err = Parse(preClose)
	}
	return h, err
}
