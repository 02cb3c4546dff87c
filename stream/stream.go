// Package stream turns score data into a seekable sequence of discrete
// musical events. The engine core only ever pulls events through the
// Reader interface; the SMF implementation lives in smf.go.
package stream

// TicksPerBeat is the engine's fixed tick resolution. Score files with
// a different resolution are rescaled to this at load time.
const TicksPerBeat = 480

// Kind identifies the type of a musical event.
type Kind int

const (
	KindNoteOn Kind = iota
	KindNoteOff
	KindController
	KindProgram
	KindPitchBend
	KindMarker
	KindTempo
	KindSysEx
	KindEndOfTrack
)

// Event is one discrete musical event. Only the fields relevant to the
// Kind are populated.
type Event struct {
	Kind    Kind
	Channel uint8

	Note     uint8 // NoteOn, NoteOff
	Velocity uint8 // NoteOn

	Controller uint8 // Controller
	Value      uint8 // Controller

	Program uint8 // Program

	Bend int16 // PitchBend, -8192..8191

	Marker byte // Marker id

	BPM float64 // Tempo

	Data []byte // SysEx payload
}

// Pos is a playback position: track index, 1-based beat, tick within
// the beat.
type Pos struct {
	Track int
	Beat  int
	Tick  int
}

// PosTick converts a beat:tick pair to an absolute tick.
func PosTick(beat, tick int) int {
	if beat < 1 {
		beat = 1
	}
	return (beat-1)*TicksPerBeat + tick
}

// TickPos converts an absolute tick back to a 1-based beat and tick.
func TickPos(abs int) (beat, tick int) {
	if abs < 0 {
		abs = 0
	}
	return abs/TicksPerBeat + 1, abs % TicksPerBeat
}

// Reader is a sequential pull interface over one sound's events.
// Implementations keep a cursor; Next consumes the event under it.
type Reader interface {
	// Next returns the next event and its absolute tick, consuming it.
	// ok is false once the current track is exhausted.
	Next() (ev Event, tick int, ok bool)

	// Peek is Next without consuming.
	Peek() (ev Event, tick int, ok bool)

	// Seek positions the cursor so that the next event returned is the
	// first one at or after track/beat/tick. It also re-derives the
	// tempo in effect at that point. Returns false if the target is out
	// of range, leaving the cursor unchanged.
	Seek(track, beat, tick int) bool

	// Track returns the current track index.
	Track() int

	// TicksPerSecond returns the tick rate implied by the tempo in
	// effect at the cursor.
	TicksPerSecond() float64

	// EndTick returns the absolute tick of the current track's end.
	EndTick() int
}
