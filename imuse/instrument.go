package imuse

import "go-imuse/midi"

// Instrument is an abstract instrument definition: either a plain
// program/bank pair or a raw sysex patch dump, whichever the score (or
// the host) supplied.
type Instrument struct {
	Program byte   `json:"program"`
	Bank    byte   `json:"bank"`
	Data    []byte `json:"data,omitempty"` // sysex patch, wins over Program when set
	valid   bool
}

// ProgramInstrument returns an instrument selecting a plain program.
func ProgramInstrument(program byte) Instrument {
	return Instrument{Program: program, valid: true}
}

// SysexInstrument returns an instrument defined by a raw patch dump.
func SysexInstrument(data []byte) Instrument {
	return Instrument{Data: append([]byte(nil), data...), valid: true}
}

func (in *Instrument) isValid() bool { return in.valid }

func (in *Instrument) clear() { *in = Instrument{} }

// send programs a bound channel with this instrument.
func (in *Instrument) send(mc midi.Channel) {
	if !in.valid || mc == nil {
		return
	}
	if len(in.Data) > 0 {
		mc.SysEx(in.Data)
		return
	}
	if in.Bank != 0 {
		mc.ControlChange(0, in.Bank)
	}
	mc.ProgramChange(in.Program)
}
