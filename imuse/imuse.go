// Package imuse is an interactive multi-track MIDI sequencing engine.
// It plays up to eight scores at once, routing their virtual instrument
// parts onto the limited channel pool of an output backend with
// priority-based preemption, and stays in sync with a host application
// through triggers, deferred commands and parameter fades.
//
// The engine does not parse score files (package stream does), does not
// talk to hardware (package midi does) and does not locate score data
// (the Catalog does). It owns the timing, allocation and volume logic
// in between.
package imuse

import "go-imuse/stream"

// Pool sizes. These are fixed: all engine state lives in flat arrays so
// the timer path never allocates.
const (
	NumPlayers           = 8
	NumParts             = 32
	NumGlobalInstruments = 32
	NumVolumeChannels    = 8

	queueSize    = 64
	numDeferred  = 4
	numTriggers  = 16
	numFaders    = 4
)

// TicksPerBeat is re-exported from stream so callers of the engine
// rarely need both packages.
const TicksPerBeat = stream.TicksPerBeat

// Catalog resolves a sound id to its score data. "Not found" is an
// error; the engine treats it as a silent no-op start.
type Catalog interface {
	FindSound(id int) (*stream.Sound, error)
}

func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// transposeClamp folds a transposition into [min, max] by whole
// octaves, so the pitch class is preserved.
func transposeClamp(val, min, max int) int {
	if min > val {
		val += (min - val + 11) / 12 * 12
	}
	if max < val {
		val -= (val - max + 11) / 12 * 12
	}
	return val
}
