package midi

import "sync"

// NullDriver behaves like a 16-channel driver but sends nothing. Used
// when no MIDI port is available and as the silent backend for scans.
type NullDriver struct {
	mu    sync.Mutex
	inUse [NumChannels]bool

	percussion *nullChannel
}

func NewNullDriver() *NullDriver {
	d := &NullDriver{}
	d.inUse[PercussionChannel] = true
	d.percussion = &nullChannel{driver: d, number: PercussionChannel, shared: true}
	return d
}

func (d *NullDriver) AllocChannel() Channel {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < NumChannels; i++ {
		if !d.inUse[i] {
			d.inUse[i] = true
			return &nullChannel{driver: d, number: i}
		}
	}
	return nil
}

func (d *NullDriver) Percussion() Channel { return d.percussion }

func (d *NullDriver) Close() error { return nil }

type nullChannel struct {
	driver *NullDriver
	number int
	shared bool
}

func (c *nullChannel) Number() int                            { return c.number }
func (c *nullChannel) NoteOn(note, velocity uint8)            {}
func (c *nullChannel) NoteOff(note uint8)                     {}
func (c *nullChannel) ProgramChange(program uint8)            {}
func (c *nullChannel) PitchBend(value int16)                  {}
func (c *nullChannel) ControlChange(controller, value uint8)  {}
func (c *nullChannel) SysEx(data []byte)                      {}
func (c *nullChannel) AllNotesOff()                           {}

func (c *nullChannel) Release() {
	if c.shared {
		return
	}
	c.driver.mu.Lock()
	c.driver.inUse[c.number] = false
	c.driver.mu.Unlock()
}
