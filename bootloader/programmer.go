// Package bootloader holds what every bootloader protocol shares: the
// programming lifecycle, the port handling around it and the page-wise
// program and verify passes over a memory image.
package bootloader

import (
	"github.com/janch32/arduino-serial/memory"
	"github.com/janch32/arduino-serial/profile"
	"github.com/rs/zerolog"
)

// Programmer - One bootloader protocol. The methods are called by Run in
// the order they are declared here.
type Programmer interface {
	Open() error
	EstablishSync() error
	CheckDeviceSignature() error
	InitializeDevice() error
	EnableProgrammingMode() error
	LoadAddress(mem profile.Memory, offset int) error
	ExecuteWritePage(mem profile.Memory, offset int, data []byte) error
	ExecuteReadPage(mem profile.Memory) ([]byte, error)
	LeaveProgrammingMode() error
	Close() error
}

// Progress - Receives the upload progress as a fraction in [0, 1]
type Progress func(fraction float64)

// State - Lifecycle position of a programmer
type State int

const (
	Closed State = iota
	Opened
	Synced
	SignatureVerified
	Initialized
	ProgrammingModeEnabled
	Programmed
	Verified
	ProgrammingModeLeft
)

var stateNames = [...]string{
	Closed:                 "closed",
	Opened:                 "opened",
	Synced:                 "synced",
	SignatureVerified:      "signature verified",
	Initialized:            "initialized",
	ProgrammingModeEnabled: "programming mode enabled",
	Programmed:             "programmed",
	Verified:               "verified",
	ProgrammingModeLeft:    "programming mode left",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Upload - What Run writes and how it reports back
type Upload struct {
	Image    *memory.Image
	Memory   profile.Memory
	Progress Progress
	// OnState is called after every state the programmer reaches
	OnState func(State)
	Log     zerolog.Logger
}

// Run - Takes p through the whole lifecycle. The programmer is closed on
// every path; a close error is returned only when nothing failed before it.
func Run(p Programmer, u Upload) (err error) {
	log := u.Log
	reached := func(s State) {
		log.Info().Stringer("state", s).Msg("bootloader")
		if u.OnState != nil {
			u.OnState(s)
		}
	}

	defer func() {
		cerr := p.Close()
		if err == nil {
			err = cerr
		} else if cerr != nil {
			log.Warn().Err(cerr).Msg("closing programmer after failure")
		}
		if cerr == nil {
			reached(Closed)
		}
	}()

	steps := []struct {
		state State
		run   func() error
	}{
		{Opened, p.Open},
		{Synced, p.EstablishSync},
		{SignatureVerified, p.CheckDeviceSignature},
		{Initialized, p.InitializeDevice},
		{ProgrammingModeEnabled, p.EnableProgrammingMode},
		{Programmed, func() error { return ProgramDevice(p, u.Image, u.Memory, u.Progress, log) }},
		{Verified, func() error { return VerifyProgram(p, u.Image, u.Memory, u.Progress, log) }},
		{ProgrammingModeLeft, p.LeaveProgrammingMode},
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			log.Error().Err(err).Stringer("state", step.state).Msg("bootloader step failed")
			return err
		}
		reached(step.state)
	}
	return nil
}
