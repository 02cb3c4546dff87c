package imuse

import "go-imuse/debug"

// trigger is a one-shot command bound to a (sound, marker id) pair,
// optionally expiring after a tick countdown. Whichever happens first
// fires it, exactly once.
type trigger struct {
	active bool
	sound  int
	id     byte
	expire int // ticks until auto-fire, 0 = marker only
	n      int
	cmd    [8]int
}

// deferredCommand runs once after a tick countdown, independent of any
// player.
type deferredCommand struct {
	active   bool
	timeLeft int
	n        int
	cmd      [7]int
}

// queueEntry is one slot of the command queue: either a marker boundary
// or a command vector belonging to the preceding boundary.
type queueEntry struct {
	boundary bool
	sound    int
	marker   byte
	n        int
	cmd      [7]int
}

// SetTrigger installs a one-shot trigger. expire > 0 arms the tick
// countdown as well. Returns the trigger slot, or -1 when the table is
// full.
func (e *Engine) SetTrigger(sound int, id byte, expire int, cmd ...int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setTriggerInternal(sound, id, expire, cmd...)
}

func (e *Engine) setTriggerInternal(sound int, id byte, expire int, cmd ...int) int {
	for i := range e.triggers {
		t := &e.triggers[i]
		if t.active {
			continue
		}
		*t = trigger{active: true, sound: sound, id: id, expire: expire}
		t.n = copy(t.cmd[:], cmd)
		return i
	}
	return -1
}

// ClearTrigger removes all triggers matching (sound, id). Returns how
// many were removed.
func (e *Engine) ClearTrigger(sound int, id byte) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clearTriggerInternal(sound, id)
}

func (e *Engine) clearTriggerInternal(sound int, id byte) int {
	n := 0
	for i := range e.triggers {
		t := &e.triggers[i]
		if t.active && t.sound == sound && t.id == id {
			t.active = false
			n++
		}
	}
	return n
}

// FireAllTriggers fires every trigger for a sound immediately.
func (e *Engine) FireAllTriggers(sound int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fireAllTriggersInternal(sound)
}

func (e *Engine) fireAllTriggersInternal(sound int) int {
	n := 0
	for i := range e.triggers {
		if e.triggers[i].active && e.triggers[i].sound == sound {
			e.fireTrigger(&e.triggers[i])
			n++
		}
	}
	return n
}

// fireTrigger deactivates the slot before dispatch, so a command that
// re-arms triggers cannot double-fire this one.
func (e *Engine) fireTrigger(t *trigger) {
	cmd := t.cmd
	n := t.n
	t.active = false
	debug.Log("trigger", "sound=%d id=%d firing", t.sound, t.id)
	if n > 0 {
		e.doCommandInternal(cmd[:n]...)
	}
}

func (e *Engine) expireTriggers() {
	for i := range e.triggers {
		t := &e.triggers[i]
		if !t.active || t.expire == 0 {
			continue
		}
		t.expire--
		if t.expire == 0 {
			e.fireTrigger(t)
		}
	}
}

// AddDeferredCommand schedules a command vector to run once after a
// tick delay. Fails with -1 when the table is full; it never evicts.
func (e *Engine) AddDeferredCommand(ticks int, cmd ...int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addDeferredInternal(ticks, cmd...)
}

func (e *Engine) addDeferredInternal(ticks int, cmd ...int) int {
	if ticks <= 0 {
		return e.doCommandInternal(cmd...)
	}
	for i := range e.deferred {
		d := &e.deferred[i]
		if d.active {
			continue
		}
		*d = deferredCommand{active: true, timeLeft: ticks}
		d.n = copy(d.cmd[:], cmd)
		return i
	}
	return -1
}

func (e *Engine) handleDeferredCommands() {
	for i := range e.deferred {
		d := &e.deferred[i]
		if !d.active {
			continue
		}
		d.timeLeft--
		if d.timeLeft > 0 {
			continue
		}
		cmd := d.cmd
		n := d.n
		d.active = false
		if n > 0 {
			e.doCommandInternal(cmd[:n]...)
		}
	}
}

// command queue

// EnqueueTrigger opens a new group in the command queue: commands
// enqueued after it run when the sound reaches the marker.
func (e *Engine) EnqueueTrigger(sound int, marker byte) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enqueueTriggerInternal(sound, marker)
}

func (e *Engine) enqueueTriggerInternal(sound int, marker byte) int {
	if e.queueLen >= queueSize {
		return -1
	}
	e.cmdQueue[e.queueLen] = queueEntry{boundary: true, sound: sound, marker: marker}
	e.queueLen++
	e.queueAdding = true
	e.queueSound = sound
	return 0
}

// EnqueueCommand appends a command vector to the group opened by the
// last EnqueueTrigger. Fails when no group is open or the queue is
// full.
func (e *Engine) EnqueueCommand(cmd ...int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enqueueCommandInternal(cmd...)
}

func (e *Engine) enqueueCommandInternal(cmd ...int) int {
	if !e.queueAdding || e.queueLen >= queueSize {
		return -1
	}
	entry := queueEntry{sound: e.queueSound}
	entry.n = copy(entry.cmd[:], cmd)
	e.cmdQueue[e.queueLen] = entry
	e.queueLen++
	return 0
}

// ClearQueue drops every pending entry.
func (e *Engine) ClearQueue() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clearQueueInternal()
}

func (e *Engine) clearQueueInternal() {
	e.queueLen = 0
	e.queueAdding = false
	e.queueSound = -1
}

// ClearQueueBefore drops every entry enqueued before the boundary for
// (sound, marker), keeping that boundary and everything after it. This
// is how a track change invalidates stale commands without losing the
// groups armed for the new track. Returns -1 when no such boundary is
// queued.
func (e *Engine) ClearQueueBefore(sound int, marker byte) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := 0; i < e.queueLen; i++ {
		en := &e.cmdQueue[i]
		if en.boundary && en.sound == sound && en.marker == marker {
			copy(e.cmdQueue[:], e.cmdQueue[i:e.queueLen])
			e.queueLen -= i
			return 0
		}
	}
	return -1
}

// QueryQueue answers queue introspection queries: 0 = pending entry
// count, 1 = sound of the open group, 2 = whether a group is open.
func (e *Engine) QueryQueue(param int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch param {
	case 0:
		return e.queueLen
	case 1:
		return e.queueSound
	case 2:
		if e.queueAdding {
			return 1
		}
		return 0
	}
	return -1
}

func (e *Engine) queuedSoundStatus(id int) bool {
	for i := 0; i < e.queueLen; i++ {
		en := &e.cmdQueue[i]
		if en.boundary && en.sound == id {
			return true
		}
		if !en.boundary && en.n >= 2 && en.cmd[0] == CmdStartSound && en.cmd[1] == id {
			return true
		}
	}
	return false
}

// handleMarker is called from a player's event path when it reaches a
// marker: queued groups waiting on that marker run, then matching
// triggers fire.
func (e *Engine) handleMarker(sound int, marker byte) {
	// Only the group at the head of the queue is eligible; later
	// groups keep their order.
	if e.queueLen > 0 && e.cmdQueue[0].boundary &&
		e.cmdQueue[0].sound == sound && e.cmdQueue[0].marker == marker {
		// pop the boundary
		copy(e.cmdQueue[:], e.cmdQueue[1:e.queueLen])
		e.queueLen--
		for e.queueLen > 0 && !e.cmdQueue[0].boundary {
			en := e.cmdQueue[0]
			copy(e.cmdQueue[:], e.cmdQueue[1:e.queueLen])
			e.queueLen--
			if en.n > 0 {
				e.doCommandInternal(en.cmd[:en.n]...)
			}
		}
		if e.queueLen == 0 {
			e.queueAdding = false
			e.queueSound = -1
		}
	}

	for i := range e.triggers {
		t := &e.triggers[i]
		if t.active && t.sound == sound && t.id == marker {
			e.fireTrigger(t)
		}
	}
}
