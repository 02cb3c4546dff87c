package stream

import (
	"bytes"
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// writeSMF serializes tracks at the given resolution.
func writeSMF(t *testing.T, resolution int, tracks ...smf.Track) []byte {
	t.Helper()
	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(resolution)
	for _, tr := range tracks {
		if err := sm.Add(tr); err != nil {
			t.Fatalf("add track: %v", err)
		}
	}
	var buf bytes.Buffer
	if _, err := sm.WriteTo(&buf); err != nil {
		t.Fatalf("write smf: %v", err)
	}
	return buf.Bytes()
}

func simpleScore(t *testing.T) *Sound {
	t.Helper()
	var tr smf.Track
	tr.Add(0, smf.MetaTempo(120))
	tr.Add(0, gomidi.ProgramChange(0, 42))
	tr.Add(0, gomidi.NoteOn(0, 60, 100))
	tr.Add(480, gomidi.NoteOff(0, 60))
	tr.Add(0, smf.MetaMarker("7"))
	tr.Add(480, gomidi.NoteOn(1, 64, 90))
	tr.Add(480, gomidi.NoteOff(1, 64))
	tr.Close(0)

	s, err := LoadSMF(1, writeSMF(t, 480, tr), FlagMIDI)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return s
}

func TestLoadSMF(t *testing.T) {
	s := simpleScore(t)
	if s.NumTracks() != 1 {
		t.Fatalf("tracks = %d, want 1", s.NumTracks())
	}

	r := s.NewReader()
	want := []struct {
		kind Kind
		tick int
	}{
		{KindTempo, 0},
		{KindProgram, 0},
		{KindNoteOn, 0},
		{KindNoteOff, 480},
		{KindMarker, 480},
		{KindNoteOn, 960},
		{KindNoteOff, 1440},
		{KindEndOfTrack, 1440},
	}
	for i, w := range want {
		ev, tick, ok := r.Next()
		if !ok {
			t.Fatalf("event %d: stream ended early", i)
		}
		if ev.Kind != w.kind || tick != w.tick {
			t.Errorf("event %d = %v at %d, want %v at %d", i, ev.Kind, tick, w.kind, w.tick)
		}
	}
	if _, _, ok := r.Next(); ok {
		t.Error("expected end of stream")
	}
}

func TestLoadSMFRescalesResolution(t *testing.T) {
	// 96 ticks per beat in the file must become 480 in the score.
	var tr smf.Track
	tr.Add(0, gomidi.NoteOn(0, 60, 100))
	tr.Add(96, gomidi.NoteOff(0, 60))
	tr.Close(0)

	s, err := LoadSMF(2, writeSMF(t, 96, tr), FlagMIDI)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	r := s.NewReader()
	r.Next() // note on at 0
	_, tick, ok := r.Next()
	if !ok || tick != 480 {
		t.Fatalf("note off at %d, want 480", tick)
	}
}

func TestSeek(t *testing.T) {
	s := simpleScore(t)
	r := s.NewReader()

	if !r.Seek(0, 2, 0) {
		t.Fatal("seek to beat 2 failed")
	}
	ev, tick, ok := r.Peek()
	if !ok || tick != 480 {
		t.Fatalf("after seek: tick %d, want 480", tick)
	}
	if ev.Kind != KindNoteOff {
		t.Fatalf("after seek: kind %v, want %v", ev.Kind, KindNoteOff)
	}

	if r.Seek(0, 99, 0) {
		t.Error("seek past end must fail")
	}
	if r.Seek(3, 1, 0) {
		t.Error("seek to missing track must fail")
	}
	// A failed seek leaves the position alone.
	_, tick, _ = r.Peek()
	if tick != 480 {
		t.Errorf("position moved to %d after failed seek", tick)
	}
}

func TestSeekRestoresTempo(t *testing.T) {
	var tr smf.Track
	tr.Add(0, smf.MetaTempo(60))
	tr.Add(0, gomidi.NoteOn(0, 60, 100))
	tr.Add(480, smf.MetaTempo(180))
	tr.Add(480, gomidi.NoteOff(0, 60))
	tr.Close(0)

	s, err := LoadSMF(3, writeSMF(t, 480, tr), FlagMIDI)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	r := s.NewReader()

	// At the start the first tempo has not been read yet: default 120.
	if got := r.TicksPerSecond(); got != 480*120.0/60 {
		t.Errorf("initial rate %v", got)
	}
	r.Next() // tempo 60
	if got := r.TicksPerSecond(); got != 480*60.0/60 {
		t.Errorf("rate after tempo event %v", got)
	}

	// Seeking past the second tempo change must pick it up.
	if !r.Seek(0, 3, 0) {
		t.Fatal("seek failed")
	}
	if got := r.TicksPerSecond(); got != 480*180.0/60 {
		t.Errorf("rate after seek %v", got)
	}
}

func TestMarkerID(t *testing.T) {
	tests := []struct {
		text string
		want byte
	}{
		{"0", 0},
		{"17", 17},
		{"255", 255},
		{"256", '2'},
		{"start", 's'},
		{"", 0},
	}
	for _, tt := range tests {
		if got := markerID(tt.text); got != tt.want {
			t.Errorf("markerID(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestPosTick(t *testing.T) {
	tests := []struct {
		beat, tick, abs int
	}{
		{1, 0, 0},
		{1, 479, 479},
		{2, 0, 480},
		{5, 213, 4*480 + 213},
	}
	for _, tt := range tests {
		if got := PosTick(tt.beat, tt.tick); got != tt.abs {
			t.Errorf("PosTick(%d, %d) = %d, want %d", tt.beat, tt.tick, got, tt.abs)
		}
		beat, tick := TickPos(tt.abs)
		if beat != tt.beat || tick != tt.tick {
			t.Errorf("TickPos(%d) = %d, %d, want %d, %d", tt.abs, beat, tick, tt.beat, tt.tick)
		}
	}
}

func TestEmptyTrackGetsTerminator(t *testing.T) {
	var tr smf.Track
	tr.Close(0)
	s, err := LoadSMF(4, writeSMF(t, 480, tr), FlagMIDI)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	r := s.NewReader()
	ev, tick, ok := r.Next()
	if !ok || ev.Kind != KindEndOfTrack || tick != 0 {
		t.Fatalf("got %v at %d ok=%v, want end of track at 0", ev.Kind, tick, ok)
	}
}
