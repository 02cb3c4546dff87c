package imuse

// Op-codes for the generic command surface. The low byte selects the
// command, the high byte selects the page: page 0 addresses the engine,
// page 1 addresses the player for the sound id in the second argument.
// The numbering leaves gaps where the surface grew over time.
const (
	CmdSetMasterVolume   = 6
	CmdGetMasterVolume   = 7
	CmdStartSound        = 8
	CmdStopSound         = 9
	CmdStopAllSounds     = 10
	CmdGetSoundStatus    = 13
	CmdFadeOutSound      = 14
	CmdEnqueueTrigger    = 15
	CmdEnqueueCommand    = 16
	CmdClearQueue        = 17
	CmdQueryQueue        = 18
	CmdDeferCommand      = 19
	CmdSetTrigger        = 20
	CmdClearTrigger      = 21
	CmdFireAllTriggers   = 22
	CmdSetVolchan        = 23
	CmdSetChannelVolume  = 24
	CmdGetChannelVolume  = 25
	CmdReduceMusicVolume = 26

	CmdGetParam          = 0x100
	CmdSetPriority       = 0x101
	CmdSetVolume         = 0x102
	CmdSetPan            = 0x103
	CmdSetTranspose      = 0x104
	CmdSetDetune         = 0x105
	CmdSetSpeed          = 0x106
	CmdJump              = 0x107
	CmdScan              = 0x108
	CmdSetLoop           = 0x109
	CmdClearLoop         = 0x10A
	CmdSetPartOnOff      = 0x10B
	CmdSetHook           = 0x10C
	CmdAddParameterFader = 0x10D
)

// doCommandErr is the sentinel failure value: every failing or unknown
// command returns it, query ops return the queried value instead.
const doCommandErr = -1

// DoCommand is the generic command dispatch surface. The first
// argument is the op-code; its arity depends on the op. Missing
// arguments read as zero, unknown op-codes return -1 and change
// nothing.
func (e *Engine) DoCommand(args ...int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doCommandInternal(args...)
}

func (e *Engine) doCommandInternal(args ...int) int {
	if len(args) == 0 {
		return doCommandErr
	}
	arg := func(i int) int {
		if i < len(args) {
			return args[i]
		}
		return 0
	}
	op := args[0]

	if op>>8 == 1 {
		return e.playerCommand(op, args, arg)
	}

	switch op {
	case CmdSetMasterVolume:
		e.masterVolume = uint8(clamp(arg(1), 0, 255))
		e.recomputeVolumes()
		return 0
	case CmdGetMasterVolume:
		return int(e.masterVolume)
	case CmdStartSound:
		if e.startSoundInternal(arg(1), 0) {
			return 0
		}
		return doCommandErr
	case CmdStopSound:
		if p := e.findActivePlayer(arg(1)); p != nil {
			p.clear()
		}
		return 0
	case CmdStopAllSounds:
		e.stopAllInternal()
		return 0
	case CmdGetSoundStatus:
		if e.findActivePlayer(arg(1)) != nil {
			return SoundPlaying
		}
		if e.queuedSoundStatus(arg(1)) {
			return SoundQueued
		}
		return SoundInactive
	case CmdFadeOutSound:
		p := e.findActivePlayer(arg(1))
		if p == nil {
			return doCommandErr
		}
		if !p.AddParameterFader(FadeVolume, 0, arg(2)) {
			return doCommandErr
		}
		return 0
	case CmdEnqueueTrigger:
		return e.enqueueTriggerInternal(arg(1), byte(arg(2)))
	case CmdEnqueueCommand:
		return e.enqueueCommandInternal(args[1:]...)
	case CmdClearQueue:
		e.clearQueueInternal()
		return 0
	case CmdQueryQueue:
		switch arg(1) {
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
		return doCommandErr
	case CmdDeferCommand:
		return e.addDeferredInternal(arg(1), args[2:]...)
	case CmdSetTrigger:
		return e.setTriggerInternal(arg(1), byte(arg(2)), arg(3), args[4:]...)
	case CmdClearTrigger:
		return e.clearTriggerInternal(arg(1), byte(arg(2)))
	case CmdFireAllTriggers:
		return e.fireAllTriggersInternal(arg(1))
	case CmdSetVolchan:
		return e.setVolchan(arg(1), arg(2))
	case CmdSetChannelVolume:
		bus := arg(1)
		if bus < 0 || bus >= NumVolumeChannels {
			return doCommandErr
		}
		e.channelVolume[bus] = clamp(arg(2), 0, 255)
		e.recomputeVolumes()
		return 0
	case CmdGetChannelVolume:
		bus := arg(1)
		if bus < 0 || bus >= NumVolumeChannels {
			return doCommandErr
		}
		return e.channelVolume[bus]
	case CmdReduceMusicVolume:
		e.duck = clamp(arg(1), 0, 255)
		e.duckHold = arg(2)
		e.duckTimer = 0
		e.recomputeVolumes()
		return 0
	}
	return doCommandErr
}

func (e *Engine) playerCommand(op int, args []int, arg func(int) int) int {
	p := e.findActivePlayer(arg(1))
	if p == nil {
		return doCommandErr
	}
	switch op {
	case CmdGetParam:
		return p.GetParam(arg(2), arg(3))
	case CmdSetPriority:
		p.SetPriority(arg(2))
		return 0
	case CmdSetVolume:
		p.SetVolume(arg(2))
		return 0
	case CmdSetPan:
		p.SetPan(arg(2))
		return 0
	case CmdSetTranspose:
		return p.SetTranspose(arg(2) != 0, arg(3))
	case CmdSetDetune:
		p.SetDetune(arg(2))
		return 0
	case CmdSetSpeed:
		p.SetSpeed(arg(2))
		return 0
	case CmdJump:
		if p.Jump(arg(2), arg(3), arg(4)) {
			return 0
		}
		return doCommandErr
	case CmdScan:
		if p.Scan(arg(2), arg(3), arg(4)) {
			return 0
		}
		return doCommandErr
	case CmdSetLoop:
		if p.SetLoop(arg(2), arg(3), arg(4), arg(5), arg(6)) {
			return 0
		}
		return doCommandErr
	case CmdClearLoop:
		p.ClearLoop()
		return 0
	case CmdSetPartOnOff:
		pt := p.getPart(uint8(arg(2) & 15))
		if pt == nil {
			return doCommandErr
		}
		pt.setOnOff(arg(3) != 0)
		return 0
	case CmdSetHook:
		return p.SetHook(arg(2), byte(arg(3)), arg(4))
	case CmdAddParameterFader:
		if p.AddParameterFader(arg(2), arg(3), arg(4)) {
			return 0
		}
		return doCommandErr
	}
	return doCommandErr
}
