package imuse

import (
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"go-imuse/stream"
)

func TestLoopRepeatsSection(t *testing.T) {
	cat := fakeCatalog{1: fourBeatScore(t, 1)}
	e, _ := newTestEngine(t, 4, cat)

	e.StartSound(1)
	advance(e, 1)
	ch := boundChannel(t, e, 1, 0)

	p := e.findActivePlayer(1)
	if !p.SetLoop(2, 1, 0, 2, 0) {
		t.Fatal("SetLoop failed")
	}

	// Two loop passes over beat 1, then play out to the end.
	advance(e, 7*timerTicksPerBeat)
	if got := e.GetSoundStatus(1); got != SoundInactive {
		t.Fatalf("status = %d, want inactive after loop exhausted", got)
	}
	if got := ch.count("noteOn 60 100"); got != 3 {
		t.Errorf("first note sounded %d times, want 3", got)
	}
	if got := ch.count("noteOn 63 100"); got != 1 {
		t.Errorf("last note sounded %d times, want 1", got)
	}
}

func TestLoopForeverUntilCleared(t *testing.T) {
	cat := fakeCatalog{1: fourBeatScore(t, 1)}
	e, _ := newTestEngine(t, 4, cat)

	e.StartSound(1)
	p := e.findActivePlayer(1)
	p.SetLoop(LoopForever, 1, 0, 2, 0)

	advance(e, 10*timerTicksPerBeat)
	if e.GetSoundStatus(1) != SoundPlaying {
		t.Fatal("endless loop ended")
	}
	if p.loopCounter != LoopForever {
		t.Errorf("loop counter = %d, want %d", p.loopCounter, LoopForever)
	}

	p.ClearLoop()
	advance(e, 5*timerTicksPerBeat)
	if e.GetSoundStatus(1) != SoundInactive {
		t.Error("sound kept playing after loop cleared")
	}
}

func TestSetLoopValidation(t *testing.T) {
	cat := fakeCatalog{1: fourBeatScore(t, 1)}
	e, _ := newTestEngine(t, 4, cat)
	e.StartSound(1)
	p := e.findActivePlayer(1)

	if p.SetLoop(0, 1, 0, 2, 0) {
		t.Error("count 0 accepted")
	}
	if p.SetLoop(1, 3, 0, 2, 0) {
		t.Error("inverted bounds accepted")
	}
	if p.SetLoop(1, 2, 0, 2, 0) {
		t.Error("empty loop accepted")
	}
	if p.SetLoop(1, 1, 0, 9, 0) {
		t.Error("loop past end of track accepted")
	}
	if p.loopCounter != 0 {
		t.Errorf("failed SetLoop left counter %d", p.loopCounter)
	}
}

func TestJumpForward(t *testing.T) {
	cat := fakeCatalog{1: fourBeatScore(t, 1)}
	e, _ := newTestEngine(t, 4, cat)

	e.StartSound(1)
	advance(e, 1)
	p := e.findActivePlayer(1)

	if !p.Jump(0, 3, 0) {
		t.Fatal("jump failed")
	}
	if p.musicTick != 2*stream.TicksPerBeat {
		t.Errorf("musicTick = %d after jump", p.musicTick)
	}
	if got := p.GetParam(ParamBeatIndex, 0); got != 3 {
		t.Errorf("beat index = %d, want 3", got)
	}

	advance(e, 1)
	ch := boundChannel(t, e, 1, 0)
	if !ch.has("noteOn 62 100") {
		t.Errorf("note after jump target not played: %v", ch.log)
	}
	// Notes between old and new position were skipped.
	if ch.has("noteOn 61 100") {
		t.Errorf("skipped note sounded: %v", ch.log)
	}
}

func TestJumpInvalidTargetLeavesStateAlone(t *testing.T) {
	cat := fakeCatalog{1: fourBeatScore(t, 1)}
	e, _ := newTestEngine(t, 4, cat)

	e.StartSound(1)
	advance(e, timerTicksPerBeat)
	p := e.findActivePlayer(1)
	tick := p.musicTick

	if p.Jump(0, 99, 0) {
		t.Error("jump past end accepted")
	}
	if p.Jump(5, 1, 0) {
		t.Error("jump to missing track accepted")
	}
	if p.musicTick != tick {
		t.Errorf("failed jump moved position to %d", p.musicTick)
	}
}

func TestScanReplaysHeldNotes(t *testing.T) {
	cat := fakeCatalog{1: markerScore(t, 1)}
	e, _ := newTestEngine(t, 4, cat)

	e.StartSound(1)
	p := e.findActivePlayer(1)

	// Note 60 is held from beat 1 through beat 4.
	if !p.Scan(0, 2, 0) {
		t.Fatal("scan failed")
	}
	advance(e, 1)
	ch := boundChannel(t, e, 1, 0)
	if !ch.has("noteOn 60 80") {
		t.Errorf("held note not replayed: %v", ch.log)
	}
}

func TestScanDoesNotFireMarkers(t *testing.T) {
	cat := fakeCatalog{1: markerScore(t, 1)}
	e, _ := newTestEngine(t, 4, cat)

	e.StartSound(1)
	e.SetTrigger(1, 1, 0, CmdSetMasterVolume, 99)

	p := e.findActivePlayer(1)
	if !p.Jump(0, 3, 0) { // crosses marker 1
		t.Fatal("jump failed")
	}
	if e.MasterVolume() == 99 {
		t.Error("marker fired during scan")
	}
	// The trigger is still armed and fires on real playback.
	if !e.triggers[0].active {
		t.Error("trigger consumed during scan")
	}
}

func TestPlayerTransposeBounds(t *testing.T) {
	cat := fakeCatalog{1: fourBeatScore(t, 1)}
	e, _ := newTestEngine(t, 4, cat)
	e.StartSound(1)
	advance(e, 1)
	p := e.findActivePlayer(1)
	ch := boundChannel(t, e, 1, 0)

	if got := p.SetTranspose(false, 30); got != -1 {
		t.Errorf("out-of-range transpose = %d, want -1", got)
	}
	if got := p.SetTranspose(false, 12); got != 0 {
		t.Errorf("transpose = %d, want 0", got)
	}
	// One octave up saturates the bend range.
	if !ch.has("bend 8191") {
		t.Errorf("transpose not sent as pitch bend: %v", ch.log)
	}
}

func TestGetParam(t *testing.T) {
	cat := fakeCatalog{1: fourBeatScore(t, 1)}
	e, _ := newTestEngine(t, 4, cat)
	e.StartSound(1)
	p := e.findActivePlayer(1)
	p.SetVolume(200)
	p.SetPan(-10)
	p.SetSpeed(64)
	advance(e, timerTicksPerBeat+timerTicksPerBeat/2) // half speed

	tests := []struct {
		param int
		want  int
	}{
		{ParamPriority, 128},
		{ParamVolume, 200},
		{ParamPan, -10},
		{ParamTranspose, 0},
		{ParamSpeed, 64},
		{ParamTrackIndex, 0},
		{ParamBeatIndex, 1},
		{ParamLoopCounter, 0},
		{-1, -1},
	}
	for _, tt := range tests {
		if got := p.GetParam(tt.param, 0); got != tt.want {
			t.Errorf("GetParam(%d) = %d, want %d", tt.param, got, tt.want)
		}
	}
}

func TestStreamControllersReachTheWire(t *testing.T) {
	var tr smf.Track
	tr.Add(0, gomidi.NoteOn(0, 60, 100))
	tr.Add(10, gomidi.ControlChange(0, 7, 100))
	tr.Add(0, gomidi.ControlChange(0, 10, 32))
	tr.Add(0, gomidi.ControlChange(0, 64, 127))
	tr.Add(0, gomidi.ControlChange(0, 91, 40))
	tr.Add(0, gomidi.Pitchbend(0, 1000))
	tr.Add(470, gomidi.NoteOff(0, 60))
	tr.Close(0)
	cat := fakeCatalog{1: loadScore(t, 1, tr)}
	e, _ := newTestEngine(t, 4, cat)

	e.StartSound(1)
	advance(e, 2)
	ch := boundChannel(t, e, 1, 0)

	p := e.findActivePlayer(1)
	pt := p.getActivePart(0)
	if int(pt.vol) != 100*255/127 {
		t.Errorf("part volume = %d, want %d", pt.vol, 100*255/127)
	}
	if pt.pan != 32-64 {
		t.Errorf("part pan = %d, want %d", pt.pan, 32-64)
	}
	if !pt.pedal {
		t.Error("sustain not latched")
	}
	if pt.effectLevel != 40 {
		t.Errorf("effect level = %d", pt.effectLevel)
	}
	if !ch.has("cc 10 32") {
		t.Errorf("pan not transmitted: %v", ch.log)
	}
	if !ch.has("bend 1000") {
		t.Errorf("pitch bend not transmitted: %v", ch.log)
	}
}

func TestSysExJumpHook(t *testing.T) {
	// An unconditional jump event at beat 2 back to beat 1 makes a
	// primitive loop; an armed id must be matched to fire.
	var tr smf.Track
	tr.Add(0, gomidi.NoteOn(0, 60, 100))
	tr.Add(480, gomidi.SysEx([]byte{sysExVendor, HookJump, 3, 0, 0, 3, 0, 0}))
	tr.Add(480, gomidi.NoteOff(0, 60))
	tr.Add(480, gomidi.NoteOn(0, 64, 100)) // beat 4
	tr.Add(240, gomidi.NoteOff(0, 64))
	tr.Close(240)
	cat := fakeCatalog{1: loadScore(t, 1, tr)}
	e, _ := newTestEngine(t, 4, cat)

	// Unarmed: the conditional jump is skipped.
	e.StartSound(1)
	p := e.findActivePlayer(1)
	advance(e, timerTicksPerBeat+5)
	if p.musicTick < 480 || p.musicTick > 600 {
		t.Errorf("conditional jump fired while unarmed, musicTick = %d", p.musicTick)
	}
	e.StopSound(1)

	// Armed with the matching id: the jump fires and disarms.
	e.StartSound(1)
	p = e.findActivePlayer(1)
	p.SetHook(HookJump, 3, 0)
	advance(e, timerTicksPerBeat+1)
	if p.musicTick < 2*480 {
		t.Errorf("armed jump did not fire, musicTick = %d", p.musicTick)
	}
	if p.hook.jump[0] != 0 {
		t.Error("jump hook not consumed")
	}
}

func TestJumpAcrossInScoreLoop(t *testing.T) {
	// An unconditional jump event at beat 2 back to beat 1 loops the
	// opening section. Jumping over it must terminate and land on the
	// target, not follow the loop back.
	var tr smf.Track
	tr.Add(0, gomidi.NoteOn(0, 60, 100))
	tr.Add(400, gomidi.NoteOff(0, 60))
	tr.Add(80, gomidi.SysEx([]byte{sysExVendor, HookJump, 0, 0, 0, 1, 0, 0}))
	tr.Add(480, gomidi.NoteOn(0, 62, 100)) // beat 3
	tr.Add(240, gomidi.NoteOff(0, 62))
	tr.Close(240)
	cat := fakeCatalog{1: loadScore(t, 1, tr)}
	e, _ := newTestEngine(t, 4, cat)

	e.StartSound(1)
	p := e.findActivePlayer(1)
	advance(e, 1)
	if !p.Jump(0, 3, 0) {
		t.Fatal("Jump(0,3,0) failed")
	}
	if p.musicTick != 2*480 {
		t.Errorf("musicTick after jump = %d, want %d", p.musicTick, 2*480)
	}
	ch := boundChannel(t, e, 1, 0)
	advance(e, 1)
	if !ch.has("noteOn 62 100") {
		t.Errorf("note past the loop point not played: %v", ch.log)
	}
	e.StopSound(1)

	// Left to play on its own, the loop wraps playback forever.
	e.StartSound(1)
	p = e.findActivePlayer(1)
	advance(e, 3*timerTicksPerBeat)
	if !p.active {
		t.Fatal("looping sound ended")
	}
	if p.musicTick > 480 {
		t.Errorf("loop did not wrap, musicTick = %d", p.musicTick)
	}
}

func TestSysExPartVolumeHook(t *testing.T) {
	var tr smf.Track
	tr.Add(0, gomidi.NoteOn(0, 60, 100))
	tr.Add(96, gomidi.SysEx([]byte{sysExVendor, HookPartVolume, 0, 0, 50}))
	tr.Add(384, gomidi.NoteOff(0, 60))
	tr.Close(0)
	cat := fakeCatalog{1: loadScore(t, 1, tr)}
	e, _ := newTestEngine(t, 4, cat)

	e.StartSound(1)
	advance(e, 10)
	p := e.findActivePlayer(1)
	pt := p.getActivePart(0)
	if pt.vol != 100 {
		t.Errorf("part volume = %d, want 100", pt.vol)
	}
}

func TestSysExGlobalInstrument(t *testing.T) {
	var tr smf.Track
	tr.Add(0, gomidi.SysEx([]byte{sysExVendor, sysExGlobalInstrument, 0, 5}))
	tr.Add(16, gomidi.NoteOn(0, 60, 100))
	tr.Add(464, gomidi.NoteOff(0, 60))
	tr.Close(0)
	cat := fakeCatalog{1: loadScore(t, 1, tr)}
	e, _ := newTestEngine(t, 4, cat)
	e.SetGlobalInstrument(5, ProgramInstrument(33))

	e.StartSound(1)
	advance(e, 2)
	p := e.findActivePlayer(1)
	pt := p.getActivePart(0)
	if !pt.instrument.isValid() || pt.instrument.Program != 33 {
		t.Errorf("instrument = %+v, want program 33", pt.instrument)
	}
}
