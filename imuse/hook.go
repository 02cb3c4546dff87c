package imuse

// Hook classes. A score carries conditional events tagged with a hook
// id; the host arms a hook by storing that id, and the event fires (and
// disarms the hook) when the ids match. Id 0 in the score means
// unconditional.
const (
	HookJump          = 0
	HookTranspose     = 1
	HookPartOnOff     = 2
	HookPartVolume    = 3
	HookPartProgram   = 4
	HookPartTranspose = 5
)

// hookData is the per-player table of armed hooks. Jump has two slots
// so a second jump can be armed while the first is still pending; the
// per-part classes are keyed by the event stream's channel number.
type hookData struct {
	jump          [2]byte
	transpose     byte
	partOnOff     [16]byte
	partVolume    [16]byte
	partProgram   [16]byte
	partTranspose [16]byte
}

func (h *hookData) reset() {
	*h = hookData{}
}

// set arms a hook. Returns 0 on success, -1 for a bad class or channel.
func (h *hookData) set(class int, value byte, chan_ int) int {
	switch class {
	case HookJump:
		if h.jump[0] == 0 {
			h.jump[0] = value
		} else {
			h.jump[1] = value
		}
		return 0
	case HookTranspose:
		h.transpose = value
		return 0
	case HookPartOnOff, HookPartVolume, HookPartProgram, HookPartTranspose:
		if chan_ < 0 || chan_ > 15 {
			return -1
		}
		switch class {
		case HookPartOnOff:
			h.partOnOff[chan_] = value
		case HookPartVolume:
			h.partVolume[chan_] = value
		case HookPartProgram:
			h.partProgram[chan_] = value
		case HookPartTranspose:
			h.partTranspose[chan_] = value
		}
		return 0
	}
	return -1
}

// query returns the armed value for a class, -1 for a bad class.
func (h *hookData) query(class int, chan_ int) int {
	switch class {
	case HookJump:
		return int(h.jump[0])
	case HookTranspose:
		return int(h.transpose)
	case HookPartOnOff:
		return int(h.partOnOff[chan_&15])
	case HookPartVolume:
		return int(h.partVolume[chan_&15])
	case HookPartProgram:
		return int(h.partProgram[chan_&15])
	case HookPartTranspose:
		return int(h.partTranspose[chan_&15])
	}
	return -1
}

// matchJump reports whether a jump event with the given id fires. A
// match consumes the armed slot; the second slot shifts down.
func (h *hookData) matchJump(id byte) bool {
	if id == 0 {
		return true
	}
	if h.jump[0] != id {
		return false
	}
	h.jump[0] = h.jump[1]
	h.jump[1] = 0
	return true
}

// matchByte implements the fire-and-disarm rule for single-value hooks.
func matchByte(armed *byte, id byte) bool {
	if id == 0 {
		return true
	}
	if *armed != id {
		return false
	}
	*armed = 0
	return true
}
