package imuse

// Fadeable parameters.
const (
	FadeNone      = 0
	FadeVolume    = 1
	FadeTranspose = 3
	FadeSpeed     = 4
)

// parameterFader interpolates one player parameter linearly over a
// fixed number of timer ticks. Integer math on start/target keeps it
// exact: after ticks steps the value is the target, nothing else.
type parameterFader struct {
	param   int // FadeNone when the slot is free
	start   int
	target  int
	ticks   int // total duration
	elapsed int
}

func (f *parameterFader) active() bool { return f.param != FadeNone }

// step advances the fader by one tick and returns the new value. done
// reports that the target has been reached and the slot freed.
func (f *parameterFader) step() (value int, done bool) {
	f.elapsed++
	if f.elapsed >= f.ticks {
		value = f.target
		f.param = FadeNone
		return value, true
	}
	value = f.start + (f.target-f.start)*f.elapsed/f.ticks
	return value, false
}

// transitionParameters advances every active fader by one tick,
// applying the interpolated value through the normal setter so bound
// parts pick the change up.
func (p *Player) transitionParameters() {
	for i := range p.faders {
		f := &p.faders[i]
		if !f.active() {
			continue
		}
		param := f.param
		value, done := f.step()
		p.applyFadeValue(param, value)
		if done && param == FadeVolume && value == 0 {
			// A volume fade to silence ends the sound.
			p.clear()
		}
	}
}

func (p *Player) applyFadeValue(param, value int) {
	switch param {
	case FadeVolume:
		p.SetVolume(value)
	case FadeTranspose:
		p.SetTranspose(false, value)
	case FadeSpeed:
		p.SetSpeed(value)
	}
}

// AddParameterFader installs (or replaces) a fade of one parameter over
// time timer ticks. time 0 applies the target immediately. Returns
// false if the parameter is not fadeable or no fader slot is free.
func (p *Player) AddParameterFader(param, target, time int) bool {
	var current int
	switch param {
	case FadeVolume:
		current = int(p.volume)
	case FadeTranspose:
		current = int(p.transpose)
	case FadeSpeed:
		current = int(p.speed)
	default:
		return false
	}

	if time == 0 {
		p.applyFadeValue(param, target)
		// Drop any running fade of the same parameter.
		for i := range p.faders {
			if p.faders[i].param == param {
				p.faders[i].param = FadeNone
			}
		}
		if param == FadeVolume && target == 0 {
			p.clear()
		}
		return true
	}

	// Reuse a fader already working on this parameter, else a free one.
	slot := -1
	for i := range p.faders {
		if p.faders[i].param == param {
			slot = i
			break
		}
		if slot < 0 && !p.faders[i].active() {
			slot = i
		}
	}
	if slot < 0 {
		return false
	}
	p.faders[slot] = parameterFader{
		param:  param,
		start:  current,
		target: target,
		ticks:  time,
	}
	return true
}

// isFadingOut reports whether a volume fade towards silence is running.
func (p *Player) isFadingOut() bool {
	for i := range p.faders {
		f := &p.faders[i]
		if f.param == FadeVolume && f.target == 0 && f.ticks > 0 {
			return true
		}
	}
	return false
}
