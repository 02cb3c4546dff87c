package imuse

import (
	"go-imuse/debug"
	"go-imuse/stream"
)

// LoopForever is the loop counter sentinel for an endless loop.
const LoopForever = -1

// Queryable player parameters for GetParam / the command surface.
const (
	ParamPriority = iota
	ParamVolume
	ParamPan
	ParamTranspose
	ParamDetune
	ParamSpeed
	ParamTrackIndex
	ParamBeatIndex
	ParamTickIndex
	ParamLoopCounter
	ParamHook
)

// sysExVendor is the private-use manufacturer id the engine listens to
// for hook events embedded in a score.
const sysExVendor = 0x7D

// Score sysex types beyond the hook classes: part setup messages.
const (
	sysExInstrument       = 16 // chan, sysex payload...
	sysExGlobalInstrument = 17 // chan, template slot
	sysExPolyphony        = 18 // chan, voice count
)

// Player is one active sequencing context: it walks a sound's event
// stream, owns the parts it has spawned, applies hooks, loops and
// transposition, and exposes transport controls. Players are allocated
// from the engine's fixed pool and must only be touched under the
// engine lock.
type Player struct {
	se   *Engine
	slot int

	active   bool
	scanning bool

	id       int
	priority uint8
	volume   uint8
	volEff   uint8
	pan      int8
	transpose int8
	detune   int16
	speed    uint8 // 128 = nominal
	volChan  int   // volume bus index

	noteOffset int

	sound  *stream.Sound
	reader stream.Reader

	trackIndex int
	musicTick  int
	tickAcc    float64
	abort      bool

	loopCounter  int
	loopFromBeat int
	loopFromTick int
	loopToBeat   int
	loopToTick   int

	hook   hookData
	faders [numFaders]parameterFader

	partsHead int // arena index of first owned part, -1 = none
}

func (p *Player) init(se *Engine, slot int) {
	p.se = se
	p.slot = slot
	p.partsHead = -1
}

// startSound initializes the player's transport for a freshly
// allocated slot. Defaults apply first, then whatever start parameters
// the catalog attached to the sound.
func (p *Player) startSound(sound *stream.Sound, id, noteOffset int) {
	p.sound = sound
	p.reader = sound.NewReader()
	p.id = id
	p.active = true
	p.scanning = false
	// abort stays as clear() left it. A marker-fired command can
	// restart this slot from inside its own onTimer loop; the flag is
	// what stops that loop from draining the new reader against its
	// stale target. The next timer tick resets it.

	p.priority = 128
	p.volume = 255
	p.pan = 0
	p.transpose = 0
	p.detune = 0
	p.speed = 128
	p.volChan = 0
	p.noteOffset = noteOffset

	p.trackIndex = 0
	p.musicTick = 0
	p.tickAcc = 0
	p.clearLoopState()
	p.hook.reset()
	for i := range p.faders {
		p.faders[i] = parameterFader{}
	}
	p.partsHead = -1

	if sp := sound.Start; sp != nil {
		p.priority = uint8(clamp(sp.Priority, 0, 255))
		p.volume = uint8(clamp(sp.Volume, 0, 255))
		p.pan = int8(clamp(sp.Pan, -64, 63))
		p.transpose = int8(clamp(sp.Transpose, -24, 24))
	}
	p.updateVolume()
}

// clear stops the player and returns everything it owns to the pools.
func (p *Player) clear() {
	if !p.active {
		return
	}
	p.uninitParts()
	p.active = false
	p.abort = true
	p.sound = nil
	p.reader = nil
	p.hook.reset()
	p.clearLoopState()
	for i := range p.faders {
		p.faders[i] = parameterFader{}
	}
	debug.Log("player", "slot=%d sound=%d cleared", p.slot, p.id)
}

// IsActive reports whether the slot is playing a sound.
func (p *Player) IsActive() bool { return p.active }

// ID returns the sound id the player was started with.
func (p *Player) ID() int { return p.id }

// Priority returns the player's allocation priority.
func (p *Player) Priority() uint8 { return p.priority }

// part arena list management

func (p *Player) linkPart(pt *Part) {
	pt.prev = -1
	pt.next = p.partsHead
	if p.partsHead >= 0 {
		p.se.parts[p.partsHead].prev = pt.slot
	}
	p.partsHead = pt.slot
}

func (p *Player) unlinkPart(pt *Part) {
	if pt.prev >= 0 {
		p.se.parts[pt.prev].next = pt.next
	} else if p.partsHead == pt.slot {
		p.partsHead = pt.next
	}
	if pt.next >= 0 {
		p.se.parts[pt.next].prev = pt.prev
	}
	pt.prev = -1
	pt.next = -1
}

// forEachPart visits every owned part. The callback may unlink the
// part it is given.
func (p *Player) forEachPart(fn func(*Part)) {
	idx := p.partsHead
	for idx >= 0 {
		pt := &p.se.parts[idx]
		idx = pt.next
		fn(pt)
	}
}

func (p *Player) uninitParts() {
	for p.partsHead >= 0 {
		p.se.parts[p.partsHead].uninit()
	}
}

// getActivePart returns the owned part serving a stream channel, nil
// if none exists yet.
func (p *Player) getActivePart(chanNum uint8) *Part {
	var found *Part
	p.forEachPart(func(pt *Part) {
		if pt.chanNum == chanNum {
			found = pt
		}
	})
	return found
}

// getPart returns the part for a stream channel, allocating one from
// the pool on first use. Returns nil when the pool is exhausted and no
// lower-priority part can be stolen.
func (p *Player) getPart(chanNum uint8) *Part {
	if pt := p.getActivePart(chanNum); pt != nil {
		return pt
	}
	pt := p.se.allocatePart(p.priority)
	if pt == nil {
		debug.Log("alloc", "sound=%d chan=%d no part available", p.id, chanNum)
		return nil
	}
	pt.setup(p, chanNum)
	return pt
}

// onTimer advances playback by one timer tick: faders first, then all
// stream events that have come due, then the loop boundary check.
func (p *Player) onTimer() {
	if !p.active {
		return
	}
	p.transitionParameters()
	if !p.active {
		return // a fade to silence finished us
	}

	rate := p.reader.TicksPerSecond() * float64(p.speed) / 128 * float64(p.se.tempoFactor) / 128
	p.tickAcc += rate / timerHz
	target := int(p.tickAcc)

	p.abort = false
	for {
		ev, tick, ok := p.reader.Peek()
		if !ok || tick > target {
			break
		}
		p.reader.Next()
		p.musicTick = tick
		p.handleEvent(ev)
		if !p.active || p.abort {
			return // stopped, or a jump moved the cursor
		}
	}
	p.musicTick = target
	p.checkLoop()
}

func (p *Player) handleEvent(ev stream.Event) {
	switch ev.Kind {
	case stream.KindNoteOn:
		if pt := p.getPart(ev.Channel); pt != nil {
			pt.noteOn(p.offsetNote(ev.Note), ev.Velocity)
		}
	case stream.KindNoteOff:
		if pt := p.getActivePart(ev.Channel); pt != nil {
			pt.noteOff(p.offsetNote(ev.Note))
		}
	case stream.KindProgram:
		if pt := p.getPart(ev.Channel); pt != nil {
			pt.setProgram(ev.Program)
		}
	case stream.KindPitchBend:
		if pt := p.getPart(ev.Channel); pt != nil {
			pt.setPitchBend(int(ev.Bend))
		}
	case stream.KindController:
		p.handleController(ev)
	case stream.KindMarker:
		if !p.scanning {
			p.se.handleMarker(p.id, ev.Marker)
		}
	case stream.KindSysEx:
		p.handleSysEx(ev.Data)
	case stream.KindTempo:
		// The reader already updated its tick rate.
	case stream.KindEndOfTrack:
		if !p.scanning {
			p.clear()
		}
	}
}

func (p *Player) handleController(ev stream.Event) {
	pt := p.getPart(ev.Channel)
	if pt == nil {
		return
	}
	switch ev.Controller {
	case 1:
		pt.setModwheel(ev.Value)
	case 7:
		// Stream volume is 7-bit, the engine's domain is 0..255.
		pt.setVolume(int(ev.Value) * 255 / 127)
	case 10:
		pt.setPan(int(ev.Value) - 64)
	case 64:
		pt.setSustain(ev.Value >= 64)
	case 91:
		pt.setEffectLevel(ev.Value)
	case 93:
		pt.setChorus(ev.Value)
	default:
		if pt.mc != nil {
			pt.mc.ControlChange(ev.Controller, ev.Value)
		}
	}
}

// handleSysEx interprets engine-private hook events embedded in the
// score. Anything under another manufacturer id is ignored.
func (p *Player) handleSysEx(data []byte) {
	if len(data) < 3 || data[0] != sysExVendor {
		return
	}
	typ := int(data[1])
	args := data[2:]
	switch typ {
	case HookJump:
		// A scan replays the score's sysex to rebuild derived state,
		// but following a jump here would recurse into the scan loop.
		// The hook is neither followed nor consumed.
		if p.scanning {
			return
		}
		if len(args) >= 6 && p.hook.matchJump(args[0]) {
			track := int(args[1])
			beat := int(args[2])<<8 | int(args[3])
			tick := int(args[4])<<8 | int(args[5])
			p.Jump(track, beat, tick)
		}
	case HookTranspose:
		if len(args) >= 3 && matchByte(&p.hook.transpose, args[0]) {
			p.SetTranspose(args[1] != 0, int(int8(args[2])))
		}
	case HookPartOnOff:
		if len(args) >= 3 {
			ch := args[1] & 15
			if matchByte(&p.hook.partOnOff[ch], args[0]) {
				if pt := p.getPart(ch); pt != nil {
					pt.setOnOff(args[2] != 0)
				}
			}
		}
	case HookPartVolume:
		if len(args) >= 3 {
			ch := args[1] & 15
			if matchByte(&p.hook.partVolume[ch], args[0]) {
				if pt := p.getPart(ch); pt != nil {
					pt.setVolume(int(args[2]) * 2)
				}
			}
		}
	case HookPartProgram:
		if len(args) >= 3 {
			ch := args[1] & 15
			if matchByte(&p.hook.partProgram[ch], args[0]) {
				if pt := p.getPart(ch); pt != nil {
					pt.setProgram(args[2])
				}
			}
		}
	case HookPartTranspose:
		if len(args) >= 4 {
			ch := args[1] & 15
			if matchByte(&p.hook.partTranspose[ch], args[0]) {
				if pt := p.getPart(ch); pt != nil {
					val := int(int8(args[3]))
					if args[2] != 0 {
						val += int(pt.transpose)
					}
					pt.setTranspose(val, -24, 24)
				}
			}
		}
	case sysExInstrument:
		if len(args) >= 2 {
			if pt := p.getPart(args[0] & 15); pt != nil {
				pt.setInstrumentData(args[1:])
			}
		}
	case sysExGlobalInstrument:
		if len(args) >= 2 {
			if pt := p.getPart(args[0] & 15); pt != nil {
				pt.loadGlobalInstrument(args[1])
			}
		}
	case sysExPolyphony:
		if len(args) >= 2 {
			if pt := p.getPart(args[0] & 15); pt != nil {
				pt.setPolyphony(args[1])
			}
		}
	}
}

func (p *Player) offsetNote(note uint8) uint8 {
	return uint8(clamp(int(note)+p.noteOffset, 0, 127))
}

// Jump repositions playback. It fails without touching state if the
// target is out of range; otherwise derived state (hooks consumed,
// tempo, controllers) ends up exactly as if playback had reached the
// target directly.
func (p *Player) Jump(track, beat, tick int) bool {
	if !p.active {
		return false
	}
	return p.scanTo(track, beat, tick)
}

// Scan dry-runs playback from the start of a track to the target
// position without audible note output, then replays the notes that
// would be sounding there.
func (p *Player) Scan(track, beat, tick int) bool {
	if !p.active {
		return false
	}
	return p.scanTo(track, beat, tick)
}

func (p *Player) scanTo(track, beat, tick int) bool {
	target := stream.PosTick(beat, tick)
	// Validate the target before disturbing anything.
	if !p.reader.Seek(track, beat, tick) {
		return false
	}
	if !p.reader.Seek(track, 1, 0) {
		return false
	}

	p.forEachPart(func(pt *Part) { pt.allNotesOff() })

	// Notes sounding at the target, one channel bit per note. Local to
	// this call; nothing else ever sees it.
	var activeNotes [128]uint16

	p.scanning = true
	for {
		ev, tk, ok := p.reader.Peek()
		if !ok || tk >= target {
			break
		}
		p.reader.Next()
		switch ev.Kind {
		case stream.KindNoteOn:
			activeNotes[ev.Note&127] |= 1 << (ev.Channel & 15)
		case stream.KindNoteOff:
			activeNotes[ev.Note&127] &^= 1 << (ev.Channel & 15)
		default:
			p.handleEvent(ev)
		}
	}
	p.scanning = false

	p.trackIndex = track
	p.musicTick = target
	p.tickAcc = float64(target)
	p.abort = true

	// Bring back the notes held across the seek.
	for note := 0; note < 128; note++ {
		bits := activeNotes[note]
		if bits == 0 {
			continue
		}
		for ch := uint8(0); ch < 16; ch++ {
			if bits&(1<<ch) == 0 {
				continue
			}
			if pt := p.getPart(ch); pt != nil {
				pt.noteOn(p.offsetNote(uint8(note)), 80)
			}
		}
	}
	debug.Log("player", "sound=%d scanned to track=%d beat=%d tick=%d", p.id, track, beat, tick)
	return true
}

// SetLoop arms a loop: when playback crosses toBeat:toTick it jumps
// back to fromBeat:fromTick, count times (LoopForever for endless).
// Fails if the bounds are inverted or past the end of the track.
func (p *Player) SetLoop(count, fromBeat, fromTick, toBeat, toTick int) bool {
	if !p.active {
		return false
	}
	start := stream.PosTick(fromBeat, fromTick)
	end := stream.PosTick(toBeat, toTick)
	if count == 0 || end <= start || end > p.reader.EndTick() {
		return false
	}
	p.loopCounter = count
	p.loopFromBeat = fromBeat
	p.loopFromTick = fromTick
	p.loopToBeat = toBeat
	p.loopToTick = toTick
	return true
}

// ClearLoop disarms any loop.
func (p *Player) ClearLoop() {
	p.clearLoopState()
}

func (p *Player) clearLoopState() {
	p.loopCounter = 0
	p.loopFromBeat = 0
	p.loopFromTick = 0
	p.loopToBeat = 0
	p.loopToTick = 0
}

func (p *Player) checkLoop() {
	if p.loopCounter == 0 {
		return
	}
	if p.musicTick < stream.PosTick(p.loopToBeat, p.loopToTick) {
		return
	}
	if p.loopCounter > 0 {
		p.loopCounter--
	}
	from, fromTick := p.loopFromBeat, p.loopFromTick
	exhausted := p.loopCounter == 0
	p.Jump(p.trackIndex, from, fromTick)
	if exhausted {
		p.clearLoopState()
	}
}

// Setters. All clamp to the valid domain and propagate to every owned
// part so effective values stay consistent.

func (p *Player) SetVolume(vol int) {
	p.volume = uint8(clamp(vol, 0, 255))
	p.updateVolume()
}

func (p *Player) updateVolume() {
	p.volEff = uint8(int(p.volume) * p.se.channelVolumeEff(p.volChan) / 255)
	p.forEachPart(func(pt *Part) { pt.updateVolume() })
}

func (p *Player) SetPan(pan int) {
	p.pan = int8(clamp(pan, -64, 63))
	p.forEachPart(func(pt *Part) { pt.updatePan() })
}

func (p *Player) SetTranspose(relative bool, val int) int {
	if val < -24 || val > 24 {
		return -1
	}
	if relative {
		val += int(p.transpose)
	}
	p.transpose = int8(transposeClamp(val, -24, 24))
	p.forEachPart(func(pt *Part) { pt.updateTranspose(-24, 24) })
	return 0
}

func (p *Player) SetDetune(detune int) {
	p.detune = int16(clamp(detune, -128, 127))
	p.forEachPart(func(pt *Part) { pt.updateDetune() })
}

func (p *Player) SetPriority(pri int) {
	p.priority = uint8(clamp(pri, 0, 255))
	p.forEachPart(func(pt *Part) { pt.updatePriority() })
}

func (p *Player) SetSpeed(speed int) {
	p.speed = uint8(clamp(speed, 0, 255))
}

// SetHook arms a hook; see the hook class constants.
func (p *Player) SetHook(class int, value byte, chanNum int) int {
	return p.hook.set(class, value, chanNum)
}

// GetParam answers the query surface of the command interface. Unknown
// params return -1.
func (p *Player) GetParam(param, chanNum int) int {
	switch param {
	case ParamPriority:
		return int(p.priority)
	case ParamVolume:
		return int(p.volume)
	case ParamPan:
		return int(p.pan)
	case ParamTranspose:
		return int(p.transpose)
	case ParamDetune:
		return int(p.detune)
	case ParamSpeed:
		return int(p.speed)
	case ParamTrackIndex:
		return p.trackIndex
	case ParamBeatIndex:
		return p.getBeatIndex()
	case ParamTickIndex:
		return p.musicTick % TicksPerBeat
	case ParamLoopCounter:
		return p.loopCounter
	case ParamHook:
		return p.hook.query(HookJump, chanNum)
	}
	return -1
}

func (p *Player) getBeatIndex() int {
	return p.musicTick/TicksPerBeat + 1
}
