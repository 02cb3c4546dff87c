package midi

// NumChannels is the number of MIDI channels a driver exposes.
const NumChannels = 16

// PercussionChannel is the conventional GM rhythm channel (10 in 1-based terms).
const PercussionChannel = 9

// Driver is an output backend: it hands out channels and delivers
// channel-level messages to wherever sound actually happens. The engine
// never talks to a port directly, only through this interface.
type Driver interface {
	// AllocChannel returns a free melodic channel, or nil if the
	// driver's pool is exhausted.
	AllocChannel() Channel

	// Percussion returns the fixed rhythm channel. It is shared, never
	// allocated, and never released.
	Percussion() Channel

	Close() error
}

// Channel is one physical output channel claimed from a Driver.
type Channel interface {
	// Number returns the MIDI channel number (0-15).
	Number() int

	NoteOn(note, velocity uint8)
	NoteOff(note uint8)
	ProgramChange(program uint8)
	// PitchBend takes a signed bend in the range -8192..8191.
	PitchBend(value int16)
	ControlChange(controller, value uint8)
	SysEx(data []byte)
	AllNotesOff()

	// Release returns the channel to the driver's pool. The channel
	// must not be used afterwards.
	Release()
}
