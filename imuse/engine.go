package imuse

import (
	"sync"

	"go-imuse/debug"
	"go-imuse/midi"
)

// timerHz is the nominal rate of the external timer callback.
const timerHz = 60

// Engine properties for Property().
const (
	PropPlayerLimit = iota
	PropRecyclePlayers
	PropTempoFactor
	PropNativeMT32
)

// Engine is the central coordinator: it owns the player and part pools,
// the physical channel pool of the output backend, the trigger/queue
// tables and the volume hierarchy. One coarse lock guards all of it;
// the host's synchronous commands and the backend's timer callback both
// serialize on it, which also makes the tick handler non-reentrant.
type Engine struct {
	mu sync.Mutex

	driver  midi.Driver
	catalog Catalog

	players [NumPlayers]Player
	parts   [NumParts]Part

	globalInstruments [NumGlobalInstruments]Instrument

	cmdQueue    [queueSize]queueEntry
	queueLen    int
	queueAdding bool
	queueSound  int

	triggers [numTriggers]trigger
	deferred [numDeferred]deferredCommand

	// Parts that want a physical channel but could not get one, in
	// suspension order (part slot indices).
	suspended []int

	masterVolume uint8
	musicVolume  uint8

	// Ducking: a transient reduction of the effective music volume,
	// decaying back to zero once the hold expires.
	duck      int
	duckHold  int
	duckTimer int

	channelVolume    [NumVolumeChannels]int
	channelVolumeTbl [NumVolumeChannels]int // effective, derived
	volchanTable     [NumVolumeChannels]int // player limit per bus, 0 = unlimited

	paused         bool
	playerLimit    int
	recyclePlayers bool
	tempoFactor    int // 128 = nominal
	nativeMT32     bool
}

// NewEngine creates an engine sequencing onto the given output backend,
// resolving sound ids through the given catalog.
func NewEngine(driver midi.Driver, catalog Catalog) *Engine {
	e := &Engine{
		driver:         driver,
		catalog:        catalog,
		masterVolume:   255,
		musicVolume:    255,
		playerLimit:    NumPlayers,
		recyclePlayers: true,
		tempoFactor:    128,
		queueSound:     -1,
	}
	for i := range e.players {
		e.players[i].init(e, i)
	}
	for i := range e.parts {
		e.parts[i].init(e, i)
	}
	for i := range e.channelVolume {
		e.channelVolume[i] = 255
	}
	e.recomputeVolumes()
	return e
}

// OnTimer is the engine's tick handler, to be invoked by the output
// backend's periodic callback at 60 Hz. It advances every active
// player, counts down deferred commands and trigger expiries, and
// decays the music volume reduction.
func (e *Engine) OnTimer() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused {
		return
	}
	for i := range e.players {
		e.players[i].onTimer()
	}
	e.handleDeferredCommands()
	e.expireTriggers()
	e.musicVolumeReduction()
}

// StartSound begins sequencing a sound. It reports false (never an
// error) if the sound cannot be found or no player can be allocated.
func (e *Engine) StartSound(id int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startSoundInternal(id, 0)
}

// StartSoundWithNoteOffset starts a sound with every note shifted by
// offset semitones.
func (e *Engine) StartSoundWithNoteOffset(id, offset int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startSoundInternal(id, offset)
}

func (e *Engine) startSoundInternal(id, offset int) bool {
	sound, err := e.catalog.FindSound(id)
	if err != nil || sound == nil {
		debug.Log("player", "sound=%d not found: %v", id, err)
		return false
	}
	// Restarting a sound that is already playing replaces it.
	if p := e.findActivePlayer(id); p != nil {
		p.clear()
	}
	priority := 128
	if sound.Start != nil {
		priority = clamp(sound.Start.Priority, 0, 255)
	}
	p := e.allocatePlayer(uint8(priority))
	if p == nil {
		debug.Log("alloc", "sound=%d no player (limit=%d recycle=%v)", id, e.playerLimit, e.recyclePlayers)
		return false
	}
	p.startSound(sound, id, offset)
	debug.Log("player", "sound=%d started on slot %d prio=%d", id, p.slot, priority)
	return true
}

// StopSound releases the player for a sound. Idempotent.
func (e *Engine) StopSound(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p := e.findActivePlayer(id); p != nil {
		p.clear()
	}
}

// StopAllSounds releases every player and flushes the command queue.
func (e *Engine) StopAllSounds() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopAllInternal()
}

func (e *Engine) stopAllInternal() {
	e.clearQueueInternal()
	for i := range e.players {
		e.players[i].clear()
	}
}

// Sound status values returned by GetSoundStatus.
const (
	SoundInactive = 0
	SoundPlaying  = 1
	SoundQueued   = 2
)

// GetSoundStatus reports whether a sound is playing, pending in the
// command queue, or inactive.
func (e *Engine) GetSoundStatus(id int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.findActivePlayer(id) != nil {
		return SoundPlaying
	}
	if e.queuedSoundStatus(id) {
		return SoundQueued
	}
	return SoundInactive
}

// GetMusicTimer returns the beat index of the first active player, 0
// when nothing plays. Game scripts poll this to stay in step with the
// music.
func (e *Engine) GetMusicTimer() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.players {
		if e.players[i].active {
			return e.players[i].getBeatIndex()
		}
	}
	return 0
}

// Pause suspends or resumes the tick handler. Pausing silences every
// bound part so nothing rings while time stands still.
func (e *Engine) Pause(paused bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused == paused {
		return
	}
	e.paused = paused
	if paused {
		for i := range e.parts {
			e.parts[i].allNotesOff()
		}
	}
}

// Property sets an engine property and returns the previous value.
// Unknown properties return -1 and change nothing.
func (e *Engine) Property(prop, value int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch prop {
	case PropPlayerLimit:
		old := e.playerLimit
		if value >= 1 && value <= NumPlayers {
			e.playerLimit = value
		}
		return old
	case PropRecyclePlayers:
		old := 0
		if e.recyclePlayers {
			old = 1
		}
		e.recyclePlayers = value != 0
		return old
	case PropTempoFactor:
		old := e.tempoFactor
		if value > 0 && value <= 512 {
			e.tempoFactor = value
		}
		return old
	case PropNativeMT32:
		old := 0
		if e.nativeMT32 {
			old = 1
		}
		e.nativeMT32 = value != 0
		return old
	}
	return -1
}

// player pool

func (e *Engine) findActivePlayer(id int) *Player {
	for i := range e.players {
		if e.players[i].active && e.players[i].id == id {
			return &e.players[i]
		}
	}
	return nil
}

// allocatePlayer returns a free player slot within the player limit.
// With recycling enabled, the lowest-priority active player of equal or
// lower priority is stopped to make room; the tie-break keeps the
// earliest slot of equal candidates.
func (e *Engine) allocatePlayer(priority uint8) *Player {
	var lowest *Player
	for i := 0; i < e.playerLimit; i++ {
		p := &e.players[i]
		if !p.active {
			return p
		}
		if lowest == nil || p.priority < lowest.priority {
			lowest = p
		}
	}
	if e.recyclePlayers && lowest != nil && lowest.priority <= priority {
		debug.Log("alloc", "recycling slot %d (sound=%d prio=%d) for prio=%d",
			lowest.slot, lowest.id, lowest.priority, priority)
		lowest.clear()
		return lowest
	}
	return nil
}

// part pool

// allocatePart returns a free part, or steals the lowest-priority part
// strictly below the requested priority. Nil when neither is possible.
func (e *Engine) allocatePart(priority uint8) *Part {
	var victim *Part
	for i := range e.parts {
		pt := &e.parts[i]
		if pt.player == nil {
			return pt
		}
		if pt.priEff < priority && (victim == nil || pt.priEff < victim.priEff) {
			victim = pt
		}
	}
	if victim == nil {
		return nil
	}
	victim.uninit()
	return victim
}

// channel pool

// allocateChannel claims a channel from the driver, evicting the
// lowest-priority bound part strictly below the requested priority when
// the pool is exhausted. Equal-priority candidates break the tie by
// slot index: the earliest-bound part is evicted. The evicted part
// keeps its state and joins the suspended queue.
func (e *Engine) allocateChannel(priority uint8) midi.Channel {
	if mc := e.driver.AllocChannel(); mc != nil {
		return mc
	}
	var victim *Part
	for i := range e.parts {
		pt := &e.parts[i]
		if pt.mc == nil || pt.percussion || pt.player == nil {
			continue
		}
		if pt.priEff < priority && (victim == nil || pt.priEff < victim.priEff) {
			victim = pt
		}
	}
	if victim == nil {
		return nil
	}
	mc := victim.mc
	victim.mc = nil
	mc.AllNotesOff()
	e.suspendPart(victim)
	debug.Log("alloc", "channel %d stolen from part %d (prio=%d) for prio=%d",
		mc.Number(), victim.slot, victim.priEff, priority)
	return mc
}

// reallocateChannels binds channels to the unbound parts that want
// one, highest priority first, until the pool (including eviction
// candidates) is dry.
func (e *Engine) reallocateChannels() {
	for {
		var best *Part
		for i := range e.parts {
			pt := &e.parts[i]
			if pt.player == nil || !pt.on || pt.mc != nil || pt.percussion {
				continue
			}
			if best == nil || pt.priEff > best.priEff {
				best = pt
			}
		}
		if best == nil {
			return
		}
		mc := e.allocateChannel(best.priEff)
		if mc == nil {
			e.suspendPart(best)
			return
		}
		e.removeSuspendedPart(best)
		best.mc = mc
		best.sendAll()
	}
}

// suspendPart queues an unbound part for rebinding when a channel
// frees up. Joining twice is a no-op; order is preserved.
func (e *Engine) suspendPart(pt *Part) {
	for _, slot := range e.suspended {
		if slot == pt.slot {
			return
		}
	}
	e.suspended = append(e.suspended, pt.slot)
}

func (e *Engine) removeSuspendedPart(pt *Part) {
	for i, slot := range e.suspended {
		if slot == pt.slot {
			e.suspended = append(e.suspended[:i], e.suspended[i+1:]...)
			return
		}
	}
}

// reassignChannelAndResumePart hands a freed channel to the
// highest-priority waiting part (FIFO among equals). Reports whether
// the channel found a taker.
func (e *Engine) reassignChannelAndResumePart(mc midi.Channel) bool {
	best := -1
	for i, slot := range e.suspended {
		pt := &e.parts[slot]
		if pt.player == nil || !pt.on || pt.mc != nil || pt.percussion {
			continue
		}
		if best < 0 || pt.priEff > e.parts[e.suspended[best]].priEff {
			best = i
		}
	}
	if best < 0 {
		return false
	}
	slot := e.suspended[best]
	e.suspended = append(e.suspended[:best], e.suspended[best+1:]...)
	pt := &e.parts[slot]
	pt.mc = mc
	pt.sendAll()
	debug.Log("alloc", "channel %d resumed part %d (prio=%d)", mc.Number(), slot, pt.priEff)
	return true
}

// global instrument templates

// SetGlobalInstrument stores an instrument template in one of the 32
// global slots.
func (e *Engine) SetGlobalInstrument(slot byte, in Instrument) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if int(slot) >= NumGlobalInstruments {
		return
	}
	in.valid = true
	e.globalInstruments[slot] = in
}

func (e *Engine) copyGlobalInstrument(slot byte, dest *Instrument) {
	if int(slot) >= NumGlobalInstruments || !e.globalInstruments[slot].isValid() {
		return
	}
	*dest = e.globalInstruments[slot]
	if len(dest.Data) > 0 {
		dest.Data = append([]byte(nil), dest.Data...)
	}
}

// SoundInfo is a read-only snapshot of one active player, for status
// displays.
type SoundInfo struct {
	Sound    int
	Slot     int
	Priority int
	Volume   int
	Beat     int
	Tick     int
	Parts    int
}

// ActiveSounds lists the currently playing sounds.
func (e *Engine) ActiveSounds() []SoundInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	var infos []SoundInfo
	for i := range e.players {
		p := &e.players[i]
		if !p.active {
			continue
		}
		n := 0
		p.forEachPart(func(*Part) { n++ })
		infos = append(infos, SoundInfo{
			Sound:    p.id,
			Slot:     p.slot,
			Priority: int(p.priority),
			Volume:   int(p.volume),
			Beat:     p.getBeatIndex(),
			Tick:     p.musicTick % TicksPerBeat,
			Parts:    n,
		})
	}
	return infos
}
