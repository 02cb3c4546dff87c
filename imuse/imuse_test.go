package imuse

import (
	"bytes"
	"fmt"
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"go-imuse/midi"
	"go-imuse/stream"
)

// recDriver is an in-memory output backend with a configurable channel
// pool. Every channel records what was sent to it.
type recDriver struct {
	capacity int
	channels []*recChannel
	perc     *recChannel
}

func newRecDriver(capacity int) *recDriver {
	return &recDriver{
		capacity: capacity,
		perc:     &recChannel{number: midi.PercussionChannel},
	}
}

func (d *recDriver) AllocChannel() midi.Channel {
	for _, c := range d.channels {
		if c.free {
			c.free = false
			return c
		}
	}
	if len(d.channels) >= d.capacity {
		return nil
	}
	c := &recChannel{number: len(d.channels)}
	d.channels = append(d.channels, c)
	return c
}

func (d *recDriver) Percussion() midi.Channel { return d.perc }
func (d *recDriver) Close() error             { return nil }

// allocated counts channels currently claimed.
func (d *recDriver) allocated() int {
	n := 0
	for _, c := range d.channels {
		if !c.free {
			n++
		}
	}
	return n
}

type recChannel struct {
	number int
	free   bool
	log    []string
}

func (c *recChannel) Number() int { return c.number }

func (c *recChannel) NoteOn(note, velocity uint8) {
	c.log = append(c.log, fmt.Sprintf("noteOn %d %d", note, velocity))
}

func (c *recChannel) NoteOff(note uint8) {
	c.log = append(c.log, fmt.Sprintf("noteOff %d", note))
}

func (c *recChannel) ProgramChange(program uint8) {
	c.log = append(c.log, fmt.Sprintf("program %d", program))
}

func (c *recChannel) PitchBend(value int16) {
	c.log = append(c.log, fmt.Sprintf("bend %d", value))
}

func (c *recChannel) ControlChange(controller, value uint8) {
	c.log = append(c.log, fmt.Sprintf("cc %d %d", controller, value))
}

func (c *recChannel) SysEx(data []byte) {
	c.log = append(c.log, fmt.Sprintf("sysex %x", data))
}

func (c *recChannel) AllNotesOff() {
	c.log = append(c.log, "allNotesOff")
}

func (c *recChannel) Release() {
	c.log = append(c.log, "release")
	c.free = true
}

func (c *recChannel) count(entry string) int {
	n := 0
	for _, l := range c.log {
		if l == entry {
			n++
		}
	}
	return n
}

func (c *recChannel) has(entry string) bool { return c.count(entry) > 0 }

// fakeCatalog resolves sound ids from a map.
type fakeCatalog map[int]*stream.Sound

func (c fakeCatalog) FindSound(id int) (*stream.Sound, error) {
	s, ok := c[id]
	if !ok {
		return nil, fmt.Errorf("no sound %d", id)
	}
	return s, nil
}

// loadScore builds a Sound from SMF tracks at the engine resolution, so
// file ticks equal engine ticks.
func loadScore(t *testing.T, id int, tracks ...smf.Track) *stream.Sound {
	t.Helper()
	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(stream.TicksPerBeat)
	for _, tr := range tracks {
		if err := sm.Add(tr); err != nil {
			t.Fatalf("add track: %v", err)
		}
	}
	var buf bytes.Buffer
	if _, err := sm.WriteTo(&buf); err != nil {
		t.Fatalf("write smf: %v", err)
	}
	s, err := stream.LoadSMF(id, buf.Bytes(), stream.FlagMIDI)
	if err != nil {
		t.Fatalf("load smf: %v", err)
	}
	return s
}

// fourBeatScore is one note per beat on stream channel 0, four beats
// long. At the default 120 bpm a timer tick advances 16 stream ticks,
// so one beat is 30 timer ticks.
func fourBeatScore(t *testing.T, id int) *stream.Sound {
	t.Helper()
	var tr smf.Track
	tr.Add(0, gomidi.NoteOn(0, 60, 100))
	tr.Add(400, gomidi.NoteOff(0, 60))
	tr.Add(80, gomidi.NoteOn(0, 61, 100))
	tr.Add(400, gomidi.NoteOff(0, 61))
	tr.Add(80, gomidi.NoteOn(0, 62, 100))
	tr.Add(400, gomidi.NoteOff(0, 62))
	tr.Add(80, gomidi.NoteOn(0, 63, 100))
	tr.Add(400, gomidi.NoteOff(0, 63))
	tr.Close(80)
	return loadScore(t, id, tr)
}

// markerScore has markers 1 and 2 at beats 2 and 3, ending at beat 5.
func markerScore(t *testing.T, id int) *stream.Sound {
	t.Helper()
	var tr smf.Track
	tr.Add(0, gomidi.NoteOn(0, 60, 100))
	tr.Add(480, smf.MetaMarker("1"))
	tr.Add(480, smf.MetaMarker("2"))
	tr.Add(480, gomidi.NoteOff(0, 60))
	tr.Close(480)
	return loadScore(t, id, tr)
}

// timerTicksPerBeat is how many timer callbacks one beat takes at
// 120 bpm, nominal speed and tempo factor.
const timerTicksPerBeat = 30

func advance(e *Engine, ticks int) {
	for i := 0; i < ticks; i++ {
		e.OnTimer()
	}
}

func newTestEngine(t *testing.T, channels int, catalog fakeCatalog) (*Engine, *recDriver) {
	t.Helper()
	d := newRecDriver(channels)
	return NewEngine(d, catalog), d
}

// boundChannel returns the recording channel serving the part bound for
// the given sound's stream channel.
func boundChannel(t *testing.T, e *Engine, sound int, chanNum uint8) *recChannel {
	t.Helper()
	p := e.findActivePlayer(sound)
	if p == nil {
		t.Fatalf("sound %d not active", sound)
	}
	pt := p.getActivePart(chanNum)
	if pt == nil {
		t.Fatalf("sound %d has no part for channel %d", sound, chanNum)
	}
	if pt.mc == nil {
		t.Fatalf("sound %d channel %d part is unbound", sound, chanNum)
	}
	return pt.mc.(*recChannel)
}
