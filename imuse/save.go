package imuse

import (
	"encoding/json"
	"fmt"

	"go-imuse/debug"
	"go-imuse/stream"
)

// saveVersion is bumped whenever the snapshot layout changes.
const saveVersion = 1

// The snapshot types mirror live state field by field, but only the
// logical part of it: physical channel handles are never persisted,
// they are re-acquired in the fix-up pass after restore. Cross-links
// are stored as slot indices.

type engineSnapshot struct {
	Version int `json:"version"`

	MasterVolume  int                     `json:"masterVolume"`
	MusicVolume   int                     `json:"musicVolume"`
	Duck          int                     `json:"duck"`
	DuckHold      int                     `json:"duckHold"`
	ChannelVolume [NumVolumeChannels]int  `json:"channelVolume"`
	VolchanTable  [NumVolumeChannels]int  `json:"volchanTable"`

	TempoFactor    int  `json:"tempoFactor"`
	PlayerLimit    int  `json:"playerLimit"`
	RecyclePlayers bool `json:"recyclePlayers"`

	Players [NumPlayers]playerSnapshot `json:"players"`
	Parts   [NumParts]partSnapshot     `json:"parts"`

	Triggers []triggerSnapshot  `json:"triggers,omitempty"`
	Deferred []deferredSnapshot `json:"deferred,omitempty"`
	Queue    []queueSnapshot    `json:"queue,omitempty"`

	QueueAdding bool `json:"queueAdding"`
	QueueSound  int  `json:"queueSound"`

	GlobalInstruments []globalInstrumentSnapshot `json:"globalInstruments,omitempty"`
}

type playerSnapshot struct {
	Active     bool `json:"active"`
	Sound      int  `json:"sound"`
	Priority   int  `json:"priority"`
	Volume     int  `json:"volume"`
	Pan        int  `json:"pan"`
	Transpose  int  `json:"transpose"`
	Detune     int  `json:"detune"`
	Speed      int  `json:"speed"`
	VolChan    int  `json:"volChan"`
	NoteOffset int  `json:"noteOffset"`

	Track     int `json:"track"`
	MusicTick int `json:"musicTick"`

	LoopCounter  int `json:"loopCounter"`
	LoopFromBeat int `json:"loopFromBeat"`
	LoopFromTick int `json:"loopFromTick"`
	LoopToBeat   int `json:"loopToBeat"`
	LoopToTick   int `json:"loopToTick"`

	Hook   hookSnapshot              `json:"hook"`
	Faders [numFaders]faderSnapshot  `json:"faders"`
}

type hookSnapshot struct {
	Jump          [2]byte  `json:"jump"`
	Transpose     byte     `json:"transpose"`
	PartOnOff     [16]byte `json:"partOnOff"`
	PartVolume    [16]byte `json:"partVolume"`
	PartProgram   [16]byte `json:"partProgram"`
	PartTranspose [16]byte `json:"partTranspose"`
}

type faderSnapshot struct {
	Param   int `json:"param"`
	Start   int `json:"start"`
	Target  int `json:"target"`
	Ticks   int `json:"ticks"`
	Elapsed int `json:"elapsed"`
}

type partSnapshot struct {
	Owner int `json:"owner"` // player slot, -1 = free

	Chan       int  `json:"chan"`
	On         bool `json:"on"`
	Percussion bool `json:"percussion"`

	Vol             int  `json:"vol"`
	Pan             int  `json:"pan"`
	Transpose       int  `json:"transpose"`
	Detune          int  `json:"detune"`
	Pri             int  `json:"pri"`
	Pitchbend       int  `json:"pitchbend"`
	PitchbendFactor int  `json:"pitchbendFactor"`
	Polyphony       int  `json:"polyphony"`
	Modwheel        int  `json:"modwheel"`
	Pedal           bool `json:"pedal"`
	EffectLevel     int  `json:"effectLevel"`
	Chorus          int  `json:"chorus"`
	Program         int  `json:"program"`
	Bank            int  `json:"bank"`

	Instrument      Instrument `json:"instrument"`
	InstrumentValid bool       `json:"instrumentValid"`
}

type triggerSnapshot struct {
	Sound  int   `json:"sound"`
	ID     byte  `json:"id"`
	Expire int   `json:"expire"`
	Cmd    []int `json:"cmd"`
}

type deferredSnapshot struct {
	TimeLeft int   `json:"timeLeft"`
	Cmd      []int `json:"cmd"`
}

type queueSnapshot struct {
	Boundary bool  `json:"boundary"`
	Sound    int   `json:"sound"`
	Marker   byte  `json:"marker"`
	Cmd      []int `json:"cmd,omitempty"`
}

type globalInstrumentSnapshot struct {
	Slot       int        `json:"slot"`
	Instrument Instrument `json:"instrument"`
}

// Save serializes the whole engine state into a versioned blob.
func (e *Engine) Save() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := engineSnapshot{
		Version:        saveVersion,
		MasterVolume:   int(e.masterVolume),
		MusicVolume:    int(e.musicVolume),
		Duck:           e.duck,
		DuckHold:       e.duckHold,
		ChannelVolume:  e.channelVolume,
		VolchanTable:   e.volchanTable,
		TempoFactor:    e.tempoFactor,
		PlayerLimit:    e.playerLimit,
		RecyclePlayers: e.recyclePlayers,
		QueueAdding:    e.queueAdding,
		QueueSound:     e.queueSound,
	}

	for i := range e.players {
		p := &e.players[i]
		ps := playerSnapshot{
			Active:       p.active,
			Sound:        p.id,
			Priority:     int(p.priority),
			Volume:       int(p.volume),
			Pan:          int(p.pan),
			Transpose:    int(p.transpose),
			Detune:       int(p.detune),
			Speed:        int(p.speed),
			VolChan:      p.volChan,
			NoteOffset:   p.noteOffset,
			Track:        p.trackIndex,
			MusicTick:    p.musicTick,
			LoopCounter:  p.loopCounter,
			LoopFromBeat: p.loopFromBeat,
			LoopFromTick: p.loopFromTick,
			LoopToBeat:   p.loopToBeat,
			LoopToTick:   p.loopToTick,
			Hook: hookSnapshot{
				Jump:          p.hook.jump,
				Transpose:     p.hook.transpose,
				PartOnOff:     p.hook.partOnOff,
				PartVolume:    p.hook.partVolume,
				PartProgram:   p.hook.partProgram,
				PartTranspose: p.hook.partTranspose,
			},
		}
		for j := range p.faders {
			f := &p.faders[j]
			ps.Faders[j] = faderSnapshot{
				Param: f.param, Start: f.start, Target: f.target,
				Ticks: f.ticks, Elapsed: f.elapsed,
			}
		}
		snap.Players[i] = ps
	}

	for i := range e.parts {
		pt := &e.parts[i]
		owner := -1
		if pt.player != nil {
			owner = pt.player.slot
		}
		snap.Parts[i] = partSnapshot{
			Owner:           owner,
			Chan:            int(pt.chanNum),
			On:              pt.on,
			Percussion:      pt.percussion,
			Vol:             int(pt.vol),
			Pan:             int(pt.pan),
			Transpose:       int(pt.transpose),
			Detune:          int(pt.detune),
			Pri:             int(pt.pri),
			Pitchbend:       int(pt.pitchbend),
			PitchbendFactor: int(pt.pitchbendFactor),
			Polyphony:       int(pt.polyphony),
			Modwheel:        int(pt.modwheel),
			Pedal:           pt.pedal,
			EffectLevel:     int(pt.effectLevel),
			Chorus:          int(pt.chorus),
			Program:         int(pt.program),
			Bank:            int(pt.bank),
			Instrument:      pt.instrument,
			InstrumentValid: pt.instrument.isValid(),
		}
	}

	for i := range e.triggers {
		t := &e.triggers[i]
		if t.active {
			snap.Triggers = append(snap.Triggers, triggerSnapshot{
				Sound: t.sound, ID: t.id, Expire: t.expire,
				Cmd: append([]int(nil), t.cmd[:t.n]...),
			})
		}
	}
	for i := range e.deferred {
		d := &e.deferred[i]
		if d.active {
			snap.Deferred = append(snap.Deferred, deferredSnapshot{
				TimeLeft: d.timeLeft,
				Cmd:      append([]int(nil), d.cmd[:d.n]...),
			})
		}
	}
	for i := 0; i < e.queueLen; i++ {
		en := &e.cmdQueue[i]
		snap.Queue = append(snap.Queue, queueSnapshot{
			Boundary: en.boundary, Sound: en.sound, Marker: en.marker,
			Cmd: append([]int(nil), en.cmd[:en.n]...),
		})
	}
	for i := range e.globalInstruments {
		if e.globalInstruments[i].isValid() {
			snap.GlobalInstruments = append(snap.GlobalInstruments, globalInstrumentSnapshot{
				Slot: i, Instrument: e.globalInstruments[i],
			})
		}
	}

	return json.Marshal(snap)
}

// Restore rebuilds the engine from a Save blob. Physical channel
// bindings are not trusted from the blob: the fix-up pass re-acquires
// channels from the driver by priority. Unresolvable references
// (missing sounds, bad slots) are dropped with the affected player or
// part reset, never fatal.
func (e *Engine) Restore(data []byte) error {
	var snap engineSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	if snap.Version != saveVersion {
		return fmt.Errorf("restore: unsupported version %d", snap.Version)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopAllInternal()
	e.suspended = nil

	e.masterVolume = uint8(clamp(snap.MasterVolume, 0, 255))
	e.musicVolume = uint8(clamp(snap.MusicVolume, 0, 255))
	e.duck = clamp(snap.Duck, 0, 255)
	e.duckHold = snap.DuckHold
	e.duckTimer = 0
	e.channelVolume = snap.ChannelVolume
	e.volchanTable = snap.VolchanTable
	if snap.TempoFactor > 0 {
		e.tempoFactor = snap.TempoFactor
	}
	if snap.PlayerLimit >= 1 && snap.PlayerLimit <= NumPlayers {
		e.playerLimit = snap.PlayerLimit
	}
	e.recyclePlayers = snap.RecyclePlayers

	for i := range e.globalInstruments {
		e.globalInstruments[i].clear()
	}
	for _, gi := range snap.GlobalInstruments {
		if gi.Slot >= 0 && gi.Slot < NumGlobalInstruments {
			in := gi.Instrument
			in.valid = true
			e.globalInstruments[gi.Slot] = in
		}
	}

	for i := range snap.Players {
		e.restorePlayer(&e.players[i], &snap.Players[i])
	}
	for i := range snap.Parts {
		e.restorePart(&e.parts[i], &snap.Parts[i])
	}

	e.triggers = [numTriggers]trigger{}
	for i, ts := range snap.Triggers {
		if i >= numTriggers {
			break
		}
		t := &e.triggers[i]
		*t = trigger{active: true, sound: ts.Sound, id: ts.ID, expire: ts.Expire}
		t.n = copy(t.cmd[:], ts.Cmd)
	}
	e.deferred = [numDeferred]deferredCommand{}
	for i, ds := range snap.Deferred {
		if i >= numDeferred {
			break
		}
		d := &e.deferred[i]
		*d = deferredCommand{active: true, timeLeft: ds.TimeLeft}
		d.n = copy(d.cmd[:], ds.Cmd)
	}
	e.queueLen = 0
	for _, qs := range snap.Queue {
		if e.queueLen >= queueSize {
			break
		}
		en := queueEntry{boundary: qs.Boundary, sound: qs.Sound, marker: qs.Marker}
		en.n = copy(en.cmd[:], qs.Cmd)
		e.cmdQueue[e.queueLen] = en
		e.queueLen++
	}
	e.queueAdding = snap.QueueAdding && e.queueLen > 0
	e.queueSound = snap.QueueSound

	// Fix-up: effective values first, then channels by priority.
	e.recomputeVolumes()
	for i := range e.parts {
		if e.parts[i].player != nil {
			e.parts[i].fixAfterLoad()
		}
	}
	e.reallocateChannels()
	return nil
}

func (e *Engine) restorePlayer(p *Player, ps *playerSnapshot) {
	p.active = false
	p.partsHead = -1
	p.sound = nil
	p.reader = nil
	if !ps.Active {
		return
	}

	sound, err := e.catalog.FindSound(ps.Sound)
	if err != nil || sound == nil {
		debug.Log("save", "restore: sound %d gone, dropping player %d", ps.Sound, p.slot)
		return
	}
	reader := sound.NewReader()
	beat, tick := stream.TickPos(ps.MusicTick)
	if !reader.Seek(ps.Track, beat, tick) {
		debug.Log("save", "restore: position out of range, dropping player %d", p.slot)
		return
	}
	// The cursor sits at the first event at or after the saved tick;
	// events exactly on it were already dispatched before the save.
	for {
		_, tk, ok := reader.Peek()
		if !ok || tk > ps.MusicTick {
			break
		}
		reader.Next()
	}

	p.active = true
	p.scanning = false
	p.abort = false
	p.id = ps.Sound
	p.sound = sound
	p.reader = reader
	p.priority = uint8(clamp(ps.Priority, 0, 255))
	p.volume = uint8(clamp(ps.Volume, 0, 255))
	p.pan = int8(clamp(ps.Pan, -64, 63))
	p.transpose = int8(clamp(ps.Transpose, -24, 24))
	p.detune = int16(clamp(ps.Detune, -128, 127))
	p.speed = uint8(clamp(ps.Speed, 0, 255))
	p.volChan = clamp(ps.VolChan, 0, NumVolumeChannels-1)
	p.noteOffset = ps.NoteOffset
	p.trackIndex = ps.Track
	p.musicTick = ps.MusicTick
	p.tickAcc = float64(ps.MusicTick)
	p.loopCounter = ps.LoopCounter
	p.loopFromBeat = ps.LoopFromBeat
	p.loopFromTick = ps.LoopFromTick
	p.loopToBeat = ps.LoopToBeat
	p.loopToTick = ps.LoopToTick

	p.hook.jump = ps.Hook.Jump
	p.hook.transpose = ps.Hook.Transpose
	p.hook.partOnOff = ps.Hook.PartOnOff
	p.hook.partVolume = ps.Hook.PartVolume
	p.hook.partProgram = ps.Hook.PartProgram
	p.hook.partTranspose = ps.Hook.PartTranspose

	for j := range p.faders {
		fs := ps.Faders[j]
		p.faders[j] = parameterFader{
			param: fs.Param, start: fs.Start, target: fs.Target,
			ticks: fs.Ticks, elapsed: fs.Elapsed,
		}
	}
}

func (e *Engine) restorePart(pt *Part, ps *partSnapshot) {
	pt.init(e, pt.slot)
	if ps.Owner < 0 {
		return
	}
	if ps.Owner >= NumPlayers || !e.players[ps.Owner].active {
		debug.Log("save", "restore: part %d owner %d unresolvable, reset", pt.slot, ps.Owner)
		return
	}
	player := &e.players[ps.Owner]

	pt.player = player
	pt.chanNum = uint8(ps.Chan & 15)
	pt.on = ps.On
	pt.percussion = ps.Percussion
	pt.vol = uint8(clamp(ps.Vol, 0, 255))
	pt.pan = int8(clamp(ps.Pan, -64, 63))
	pt.transpose = int8(clamp(ps.Transpose, -24, 24))
	pt.detune = int8(clamp(ps.Detune, -128, 127))
	pt.pri = int8(clamp(ps.Pri, -128, 127))
	pt.pitchbend = int16(clamp(ps.Pitchbend, -8192, 8191))
	pt.pitchbendFactor = uint8(clamp(ps.PitchbendFactor, 0, 24))
	pt.polyphony = uint8(clamp(ps.Polyphony, 0, 255))
	pt.modwheel = uint8(clamp(ps.Modwheel, 0, 127))
	pt.pedal = ps.Pedal
	pt.effectLevel = uint8(clamp(ps.EffectLevel, 0, 127))
	pt.chorus = uint8(clamp(ps.Chorus, 0, 127))
	pt.program = uint8(clamp(ps.Program, 0, 127))
	pt.bank = uint8(clamp(ps.Bank, 0, 127))
	pt.instrument = ps.Instrument
	pt.instrument.valid = ps.InstrumentValid

	player.linkPart(pt)
}
