package stream

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"gitlab.com/gomidi/midi/v2/smf"
)

// Flags describe what a score was authored for. They come from the
// resource lookup, not from the score data itself.
type Flags uint8

const (
	// FlagMIDI marks a score targeting a General MIDI device.
	FlagMIDI Flags = 1 << iota
	// FlagMT32 marks a score authored for Roland MT-32 patches.
	FlagMT32
	// FlagPercussion marks a score that may use the rhythm channel.
	FlagPercussion
)

// StartParams are optional transport defaults attached to a sound by
// whoever looked it up (the original container format carried them in a
// header chunk next to the score data).
type StartParams struct {
	Priority  int `json:"priority"`
	Volume    int `json:"volume"`
	Pan       int `json:"pan"`
	Transpose int `json:"transpose"`
}

// Sound is one loaded score: per-track event lists, already rescaled to
// the engine's 480 ticks per beat and sorted by time.
type Sound struct {
	ID    int
	Flags Flags
	Start *StartParams // nil when the lookup supplied none

	tracks [][]timedEvent
	ends   []int // absolute end tick per track
}

type timedEvent struct {
	tick int
	ev   Event
}

// LoadSMF parses Standard MIDI File data into a Sound.
func LoadSMF(id int, data []byte, flags Flags) (*Sound, error) {
	sm, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("sound %d: %w", id, err)
	}

	resolution := TicksPerBeat
	if mt, ok := sm.TimeFormat.(smf.MetricTicks); ok && int(mt) > 0 {
		resolution = int(mt)
	}

	s := &Sound{ID: id, Flags: flags}
	for _, track := range sm.Tracks {
		var events []timedEvent
		fileTick := 0
		for _, te := range track {
			fileTick += int(te.Delta)
			tick := fileTick * TicksPerBeat / resolution
			if ev, ok := decodeMessage(te.Message); ok {
				events = append(events, timedEvent{tick: tick, ev: ev})
			}
		}
		end := 0
		if n := len(events); n > 0 {
			end = events[n-1].tick
		}
		// Terminate every track with an explicit end marker so readers
		// never run off the slice.
		if n := len(events); n == 0 || events[n-1].ev.Kind != KindEndOfTrack {
			events = append(events, timedEvent{tick: end, ev: Event{Kind: KindEndOfTrack}})
		}
		s.tracks = append(s.tracks, events)
		s.ends = append(s.ends, end)
	}
	if len(s.tracks) == 0 {
		return nil, fmt.Errorf("sound %d: no tracks", id)
	}
	return s, nil
}

// LoadSMFFile reads and parses a Standard MIDI File from disk.
func LoadSMFFile(id int, path string, flags Flags) (*Sound, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadSMF(id, data, flags)
}

// NumTracks returns the number of tracks in the score.
func (s *Sound) NumTracks() int { return len(s.tracks) }

// NewReader returns a Reader positioned at the start of track 0.
func (s *Sound) NewReader() *SoundReader {
	r := &SoundReader{sound: s, bpm: 120}
	r.Seek(0, 1, 0)
	return r
}

func decodeMessage(msg smf.Message) (Event, bool) {
	var (
		channel, key, velocity    uint8
		controller, value         uint8
		program                   uint8
		relBend                   int16
		absBend                   uint16
		text                      string
		bpm                       float64
		data                      []byte
	)
	switch {
	case msg.GetNoteStart(&channel, &key, &velocity):
		return Event{Kind: KindNoteOn, Channel: channel, Note: key, Velocity: velocity}, true
	case msg.GetNoteEnd(&channel, &key):
		return Event{Kind: KindNoteOff, Channel: channel, Note: key}, true
	case msg.GetControlChange(&channel, &controller, &value):
		return Event{Kind: KindController, Channel: channel, Controller: controller, Value: value}, true
	case msg.GetProgramChange(&channel, &program):
		return Event{Kind: KindProgram, Channel: channel, Program: program}, true
	case msg.GetPitchBend(&channel, &relBend, &absBend):
		return Event{Kind: KindPitchBend, Channel: channel, Bend: relBend}, true
	case msg.GetMetaTempo(&bpm):
		return Event{Kind: KindTempo, BPM: bpm}, true
	case msg.GetMetaMarker(&text):
		return Event{Kind: KindMarker, Marker: markerID(text)}, true
	case msg.GetSysEx(&data):
		return Event{Kind: KindSysEx, Data: data}, true
	case msg.Is(smf.MetaEndOfTrackMsg):
		return Event{Kind: KindEndOfTrack}, true
	}
	return Event{}, false
}

// markerID maps a marker's text to its numeric id: a decimal number if
// it parses as one, otherwise the first byte of the text.
func markerID(text string) byte {
	if n, err := strconv.Atoi(text); err == nil && n >= 0 && n <= 255 {
		return byte(n)
	}
	if len(text) > 0 {
		return text[0]
	}
	return 0
}

// SoundReader is the SMF-backed Reader implementation.
type SoundReader struct {
	sound *Sound
	track int
	idx   int
	bpm   float64
}

var _ Reader = (*SoundReader)(nil)

func (r *SoundReader) Next() (Event, int, bool) {
	events := r.sound.tracks[r.track]
	if r.idx >= len(events) {
		return Event{}, 0, false
	}
	te := events[r.idx]
	r.idx++
	if te.ev.Kind == KindTempo {
		r.bpm = te.ev.BPM
	}
	return te.ev, te.tick, true
}

func (r *SoundReader) Peek() (Event, int, bool) {
	events := r.sound.tracks[r.track]
	if r.idx >= len(events) {
		return Event{}, 0, false
	}
	te := events[r.idx]
	return te.ev, te.tick, true
}

func (r *SoundReader) Seek(track, beat, tick int) bool {
	if track < 0 || track >= len(r.sound.tracks) {
		return false
	}
	target := PosTick(beat, tick)
	if target > r.sound.ends[track] {
		return false
	}
	events := r.sound.tracks[track]
	idx := 0
	bpm := 120.0
	for idx < len(events) && events[idx].tick < target {
		if events[idx].ev.Kind == KindTempo {
			bpm = events[idx].ev.BPM
		}
		idx++
	}
	r.track = track
	r.idx = idx
	r.bpm = bpm
	return true
}

func (r *SoundReader) Track() int { return r.track }

func (r *SoundReader) TicksPerSecond() float64 {
	return TicksPerBeat * r.bpm / 60
}

func (r *SoundReader) EndTick() int {
	return r.sound.ends[r.track]
}
