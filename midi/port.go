package midi

import (
	"fmt"
	"strings"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// PortDriver sends to a real MIDI output port. It owns the 16 channels
// of that port; channel 9 is reserved for percussion and never handed
// out by AllocChannel.
type PortDriver struct {
	port drivers.Out
	send func(gomidi.Message) error

	mu    sync.Mutex
	inUse [NumChannels]bool

	percussion *portChannel
}

// ListPorts returns the names of all available MIDI output ports.
func ListPorts() []string {
	outs := gomidi.GetOutPorts()
	names := make([]string, len(outs))
	for i, out := range outs {
		names[i] = out.String()
	}
	return names
}

// OpenPort opens the named output port, or the first available port if
// name is empty. Matching is case-insensitive on substring, same as
// picking a controller by port name.
func OpenPort(name string) (*PortDriver, error) {
	outs := gomidi.GetOutPorts()
	if len(outs) == 0 {
		return nil, fmt.Errorf("no MIDI output ports available")
	}

	var port drivers.Out
	if name == "" {
		port = outs[0]
	} else {
		want := strings.ToLower(name)
		for i, out := range outs {
			if strings.Contains(strings.ToLower(out.String()), want) {
				port = outs[i]
				break
			}
		}
	}
	if port == nil {
		return nil, fmt.Errorf("MIDI output port %q not found", name)
	}

	send, err := gomidi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("failed to open port %q: %w", port.String(), err)
	}

	d := &PortDriver{port: port, send: send}
	d.inUse[PercussionChannel] = true
	d.percussion = &portChannel{driver: d, number: PercussionChannel, shared: true}
	return d, nil
}

// PortName returns the name of the open port.
func (d *PortDriver) PortName() string {
	return d.port.String()
}

// AllocChannel claims a free melodic channel, or returns nil if all 15
// are taken.
func (d *PortDriver) AllocChannel() Channel {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < NumChannels; i++ {
		if !d.inUse[i] {
			d.inUse[i] = true
			return &portChannel{driver: d, number: i}
		}
	}
	return nil
}

// Percussion returns the shared rhythm channel.
func (d *PortDriver) Percussion() Channel {
	return d.percussion
}

// Close silences every channel and closes the underlying driver.
func (d *PortDriver) Close() error {
	for ch := 0; ch < NumChannels; ch++ {
		d.send(gomidi.ControlChange(uint8(ch), 123, 0)) // all notes off
	}
	gomidi.CloseDriver()
	return nil
}

// portChannel is one channel of a PortDriver.
type portChannel struct {
	driver *PortDriver
	number int
	shared bool // percussion channel: Release is a no-op
}

func (c *portChannel) Number() int { return c.number }

func (c *portChannel) NoteOn(note, velocity uint8) {
	c.driver.send(gomidi.NoteOn(uint8(c.number), note, velocity))
}

func (c *portChannel) NoteOff(note uint8) {
	c.driver.send(gomidi.NoteOff(uint8(c.number), note))
}

func (c *portChannel) ProgramChange(program uint8) {
	c.driver.send(gomidi.ProgramChange(uint8(c.number), program))
}

func (c *portChannel) PitchBend(value int16) {
	c.driver.send(gomidi.Pitchbend(uint8(c.number), value))
}

func (c *portChannel) ControlChange(controller, value uint8) {
	c.driver.send(gomidi.ControlChange(uint8(c.number), controller, value))
}

func (c *portChannel) SysEx(data []byte) {
	c.driver.send(gomidi.SysEx(data))
}

func (c *portChannel) AllNotesOff() {
	c.driver.send(gomidi.ControlChange(uint8(c.number), 123, 0))
}

func (c *portChannel) Release() {
	if c.shared {
		return
	}
	c.AllNotesOff()
	c.driver.mu.Lock()
	c.driver.inUse[c.number] = false
	c.driver.mu.Unlock()
}
