package imuse

import "go-imuse/debug"

// Ducking decay: every duckDecayInterval ticks the reduction shrinks by
// duckDecayStep until it is gone. Any monotonic ramp would do; this one
// restores full volume from a full duck in about half a second.
const (
	duckDecayInterval = 6
	duckDecayStep     = 8
)

// musicVolumeEff is the effective music volume: the explicit setting
// capped by the transient ducking reduction.
func (e *Engine) musicVolumeEff() int {
	v := int(e.musicVolume)
	if ceil := 255 - e.duck; ceil < v {
		v = ceil
	}
	return v
}

// recomputeVolumes rebuilds the derived per-bus table and pushes the
// result down through every active player and its parts. Always a full
// pass, never partial: callers hold the lock, so no one can observe a
// half-updated hierarchy.
func (e *Engine) recomputeVolumes() {
	eff := e.musicVolumeEff()
	for i := range e.channelVolume {
		e.channelVolumeTbl[i] = e.channelVolume[i] * eff / 255
	}
	for i := range e.players {
		if e.players[i].active {
			e.players[i].updateVolume()
		}
	}
}

func (e *Engine) channelVolumeEff(bus int) int {
	if bus < 0 || bus >= NumVolumeChannels {
		return 0
	}
	return e.channelVolumeTbl[bus]
}

// SetMasterVolume sets the master volume (0..255). Parts apply it at
// transmit time, so a full recompute pushes it to the wire.
func (e *Engine) SetMasterVolume(vol int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.masterVolume = uint8(clamp(vol, 0, 255))
	e.recomputeVolumes()
}

// MasterVolume returns the current master volume.
func (e *Engine) MasterVolume() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return int(e.masterVolume)
}

// SetMusicVolume sets the explicit music volume (0..255).
func (e *Engine) SetMusicVolume(vol int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.musicVolume = uint8(clamp(vol, 0, 255))
	e.recomputeVolumes()
}

// MusicVolume returns the explicit music volume setting.
func (e *Engine) MusicVolume() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return int(e.musicVolume)
}

// ReduceMusicVolume ducks the music by amount (0..255) and holds the
// reduction for holdTicks timer ticks before it starts decaying back.
// Typical use: duck under speech, hold for its expected duration.
func (e *Engine) ReduceMusicVolume(amount, holdTicks int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.duck = clamp(amount, 0, 255)
	e.duckHold = holdTicks
	e.duckTimer = 0
	e.recomputeVolumes()
	debug.Log("volume", "ducking by %d, hold %d ticks", e.duck, holdTicks)
}

// musicVolumeReduction runs once per tick and decays the ducking
// reduction back toward zero after the hold expires.
func (e *Engine) musicVolumeReduction() {
	if e.duck == 0 {
		return
	}
	if e.duckHold > 0 {
		e.duckHold--
		return
	}
	e.duckTimer++
	if e.duckTimer < duckDecayInterval {
		return
	}
	e.duckTimer = 0
	e.duck -= duckDecayStep
	if e.duck < 0 {
		e.duck = 0
	}
	e.recomputeVolumes()
}

// SetChannelVolume sets the raw volume of one of the 8 logical channel
// buses. Returns -1 for a bad bus index.
func (e *Engine) SetChannelVolume(bus, vol int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if bus < 0 || bus >= NumVolumeChannels {
		return -1
	}
	e.channelVolume[bus] = clamp(vol, 0, 255)
	e.recomputeVolumes()
	return 0
}

// ChannelVolume returns the raw volume of a bus, -1 for a bad index.
func (e *Engine) ChannelVolume(bus int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if bus < 0 || bus >= NumVolumeChannels {
		return -1
	}
	return e.channelVolume[bus]
}

// SetVolchanEntry sets the player limit of a bus (0 = unlimited).
func (e *Engine) SetVolchanEntry(bus, limit int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if bus < 0 || bus >= NumVolumeChannels || limit < 0 {
		return -1
	}
	e.volchanTable[bus] = limit
	return 0
}

// VolchanEntry returns the player limit of a bus.
func (e *Engine) VolchanEntry(bus int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if bus < 0 || bus >= NumVolumeChannels {
		return -1
	}
	return e.volchanTable[bus]
}

// setVolchan assigns a playing sound to a volume bus. When the bus has
// a player limit and is full, the lowest-priority occupant yields if it
// does not outrank the newcomer; otherwise the assignment fails.
func (e *Engine) setVolchan(sound, bus int) int {
	if bus < 0 || bus >= NumVolumeChannels {
		return -1
	}
	p := e.findActivePlayer(sound)
	if p == nil {
		return -1
	}
	if limit := e.volchanTable[bus]; limit > 0 {
		count := 0
		var lowest *Player
		for i := range e.players {
			q := &e.players[i]
			if !q.active || q == p || q.volChan != bus {
				continue
			}
			count++
			if lowest == nil || q.priority < lowest.priority {
				lowest = q
			}
		}
		if count >= limit {
			if lowest == nil || lowest.priority > p.priority {
				return -1
			}
			lowest.clear()
		}
	}
	p.volChan = bus
	p.updateVolume()
	return 0
}
