package imuse

import "go-imuse/midi"

// Part is a virtual instrument channel: the musical state of one event
// stream channel within a Player. A Part may exist without a physical
// channel; state changes then mutate it silently, and everything is
// retransmitted in one burst when a channel is (re)acquired.
//
// Parts live in the engine's fixed arena; list membership inside a
// player uses slot indices, not pointers.
type Part struct {
	se   *Engine
	slot int
	next int // arena link within owning player, -1 = none
	prev int

	mc     midi.Channel // nil while unbound
	player *Player      // nil while free

	chanNum uint8 // event stream channel this part serves

	on         bool
	percussion bool

	vol    uint8 // 0..255
	volEff uint8

	pan    int8 // -64..63
	panEff int8

	transpose    int8
	transposeEff int8

	detune    int8
	detuneEff int16

	pri    int8
	priEff uint8

	pitchbend       int16
	pitchbendFactor uint8

	polyphony   uint8
	modwheel    uint8
	pedal       bool
	effectLevel uint8
	chorus      uint8

	program    uint8
	bank       uint8
	instrument Instrument

	notes [2]uint64 // ringing notes, one bit per note number
}

func (pt *Part) init(se *Engine, slot int) {
	pt.se = se
	pt.slot = slot
	pt.next = -1
	pt.prev = -1
	pt.player = nil
	pt.mc = nil
}

// setup attaches a free part to a player for one stream channel and
// resets its musical state to the player's defaults. It does not claim
// a physical channel; that happens lazily in sendAll/clearToTransmit.
func (pt *Part) setup(player *Player, chanNum uint8) {
	pt.player = player
	pt.chanNum = chanNum
	pt.percussion = chanNum == midi.PercussionChannel
	pt.on = true
	pt.vol = 255
	pt.volEff = uint8(int(player.volEff))
	pt.pan = 0
	pt.panEff = player.pan
	pt.transpose = 0
	pt.transposeEff = int8(player.transpose)
	pt.detune = 0
	pt.detuneEff = int16(player.detune)
	pt.pri = 0
	pt.priEff = player.priority
	pt.pitchbend = 0
	pt.pitchbendFactor = 2
	pt.polyphony = 1
	pt.modwheel = 0
	pt.pedal = false
	pt.effectLevel = 64
	pt.chorus = 0
	pt.program = 0
	pt.bank = 0
	pt.instrument.clear()
	pt.notes = [2]uint64{}
	pt.updateVolume()
	player.linkPart(pt)
}

// uninit detaches the part from its player and returns it to the pool,
// silencing the physical channel first.
func (pt *Part) uninit() {
	if pt.player == nil {
		return
	}
	pt.off()
	pt.player.unlinkPart(pt)
	pt.player = nil
}

// off gives up the physical channel (if any), always sending all notes
// off first so nothing is left ringing.
func (pt *Part) off() {
	pt.se.removeSuspendedPart(pt)
	if pt.mc == nil {
		return
	}
	pt.allNotesOff()
	mc := pt.mc
	pt.mc = nil
	if pt.pedal {
		mc.ControlChange(64, 0)
	}
	if pt.percussion {
		return // shared rhythm channel, never released
	}
	// Hand the freed channel to a waiting part before returning it to
	// the driver.
	if !pt.se.reassignChannelAndResumePart(mc) {
		mc.Release()
	}
}

// clearToTransmit reports whether the part can send right now. An
// unbound part with something to play asks the engine for a channel as
// a side effect.
func (pt *Part) clearToTransmit() bool {
	if pt.mc != nil {
		return true
	}
	if pt.percussion {
		pt.mc = pt.se.driver.Percussion()
		return true
	}
	pt.se.reallocateChannels()
	return pt.mc != nil
}

// sendAll transmits the full current state to the physical channel so
// audible state matches logical state after (re)binding.
func (pt *Part) sendAll() {
	if !pt.clearToTransmit() {
		return
	}
	pt.instrument.send(pt.mc)
	pt.sendPitchBend()
	pt.sendVolume()
	pt.sendPan()
	pt.mc.ControlChange(1, pt.modwheel)
	pt.mc.ControlChange(91, pt.effectLevel)
	pt.mc.ControlChange(93, pt.chorus)
	if pt.pedal {
		pt.mc.ControlChange(64, 127)
	}
}

func (pt *Part) noteOn(note, velocity uint8) {
	if !pt.on || !pt.clearToTransmit() {
		return
	}
	pt.notes[note>>6] |= 1 << (note & 63)
	pt.mc.NoteOn(note, velocity)
}

func (pt *Part) noteOff(note uint8) {
	if !pt.on || pt.mc == nil {
		return
	}
	pt.notes[note>>6] &^= 1 << (note & 63)
	pt.mc.NoteOff(note)
}

// allNotesOff silences the part. The percussion channel is shared with
// every other percussion part, so there only this part's ringing notes
// are released, one note off each; a dedicated channel gets the blanket
// message.
func (pt *Part) allNotesOff() {
	if pt.mc == nil {
		return
	}
	if pt.percussion {
		for word, bits := range pt.notes {
			for bit := 0; bits != 0; bit++ {
				if bits&1 != 0 {
					pt.mc.NoteOff(uint8(word<<6 | bit))
				}
				bits >>= 1
			}
		}
	} else {
		pt.mc.AllNotesOff()
	}
	pt.notes = [2]uint64{}
}

// updateVolume recomputes the effective volume from the raw value and
// every scaling layer above it, and transmits it if bound.
func (pt *Part) updateVolume() {
	if pt.player == nil {
		return
	}
	pt.volEff = uint8(int(pt.vol) * int(pt.player.volEff) / 255)
	pt.sendVolume()
}

func (pt *Part) sendVolume() {
	if pt.mc == nil {
		return
	}
	// Wire volume is 7-bit; the engine's 0..255 domain scales down at
	// the last moment, after the master volume.
	v := int(pt.volEff) * int(pt.se.masterVolume) / 255
	pt.mc.ControlChange(7, uint8(v>>1))
}

func (pt *Part) setVolume(vol int) {
	pt.vol = uint8(clamp(vol, 0, 255))
	pt.updateVolume()
}

func (pt *Part) setPan(pan int) {
	pt.pan = int8(clamp(pan, -64, 63))
	pt.updatePan()
}

func (pt *Part) updatePan() {
	if pt.player == nil {
		return
	}
	pt.panEff = int8(clamp(int(pt.pan)+int(pt.player.pan), -64, 63))
	pt.sendPan()
}

func (pt *Part) sendPan() {
	if pt.mc == nil {
		return
	}
	pt.mc.ControlChange(10, uint8(int(pt.panEff)+64))
}

// setTranspose folds the part and player transpositions together,
// clamped by octave shifting so extreme combinations stay musical.
func (pt *Part) setTranspose(transpose, clipLo, clipHi int) {
	pt.transpose = int8(clamp(transpose, -24, 24))
	pt.updateTranspose(clipLo, clipHi)
}

func (pt *Part) updateTranspose(clipLo, clipHi int) {
	if pt.player == nil {
		return
	}
	pt.transposeEff = int8(transposeClamp(int(pt.transpose)+int(pt.player.transpose), clipLo, clipHi))
	pt.sendPitchBend()
}

func (pt *Part) setDetune(detune int) {
	pt.detune = int8(clamp(detune, -128, 127))
	pt.updateDetune()
}

func (pt *Part) updateDetune() {
	if pt.player == nil {
		return
	}
	pt.detuneEff = int16(clamp(int(pt.detune)+int(pt.player.detune), -128, 127))
	pt.sendPitchBend()
}

func (pt *Part) setPitchBend(value int) {
	pt.pitchbend = int16(clamp(value, -8192, 8191))
	pt.sendPitchBend()
}

func (pt *Part) sendPitchBend() {
	if pt.mc == nil {
		return
	}
	bend := int(pt.pitchbend)
	// RPN-set bend range does not exist on an MT-32, so scale here.
	if pt.se.nativeMT32 {
		bend = bend * int(pt.pitchbendFactor) / 12
	}
	pt.mc.PitchBend(int16(clamp(bend+int(pt.detuneEff)*64/12+int(pt.transposeEff)*8192/12, -8192, 8191)))
}

func (pt *Part) setPriority(pri int) {
	pt.pri = int8(clamp(pri, -128, 127))
	pt.updatePriority()
}

func (pt *Part) updatePriority() {
	if pt.player == nil {
		return
	}
	pt.priEff = uint8(clamp(int(pt.pri)+int(pt.player.priority), 0, 255))
}

func (pt *Part) setOnOff(on bool) {
	if pt.on == on {
		return
	}
	pt.on = on
	if !on {
		pt.off()
	}
}

func (pt *Part) setModwheel(value uint8) {
	pt.modwheel = value
	if pt.mc != nil {
		pt.mc.ControlChange(1, value)
	}
}

func (pt *Part) setSustain(on bool) {
	pt.pedal = on
	if pt.mc != nil {
		v := uint8(0)
		if on {
			v = 127
		}
		pt.mc.ControlChange(64, v)
	}
}

func (pt *Part) setEffectLevel(value uint8) {
	pt.effectLevel = value
	if pt.mc != nil {
		pt.mc.ControlChange(91, value)
	}
}

func (pt *Part) setChorus(value uint8) {
	pt.chorus = value
	if pt.mc != nil {
		pt.mc.ControlChange(93, value)
	}
}

func (pt *Part) setPolyphony(value uint8) {
	pt.polyphony = value
}

// setProgram selects a plain program change as the instrument.
func (pt *Part) setProgram(program uint8) {
	pt.program = program
	pt.instrument = ProgramInstrument(program)
	pt.instrument.Bank = pt.bank
	if pt.mc != nil {
		pt.instrument.send(pt.mc)
	}
}

// setInstrumentData installs an inline sysex instrument definition.
func (pt *Part) setInstrumentData(data []byte) {
	pt.instrument = SysexInstrument(data)
	if pt.mc != nil {
		pt.instrument.send(pt.mc)
	}
}

// loadGlobalInstrument copies one of the engine's instrument templates.
func (pt *Part) loadGlobalInstrument(slot byte) {
	pt.se.copyGlobalInstrument(slot, &pt.instrument)
	if pt.mc != nil {
		pt.instrument.send(pt.mc)
	}
}

// fixAfterLoad re-derives every effective value after a restore; the
// caller is responsible for channel reallocation and sendAll.
func (pt *Part) fixAfterLoad() {
	pt.updatePriority()
	pt.updateVolume()
	pt.updatePan()
	pt.updateTranspose(-24, 24)
	pt.updateDetune()
}
