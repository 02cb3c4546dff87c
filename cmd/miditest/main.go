package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-imuse/midi"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "test":
		testOutput()
	case "poll":
		pollDevices()
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list         - List all MIDI output ports")
	fmt.Println("  test [port]  - Play a test scale on a port")
	fmt.Println("  poll         - Poll for device changes")
}

func listPorts() {
	fmt.Println("=== MIDI Output Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	ch := make(chan []string, 1)
	go func() {
		ch <- midi.ListPorts()
	}()

	select {
	case names := <-ch:
		if len(names) == 0 {
			fmt.Println("  (none)")
		}
		for i, name := range names {
			fmt.Printf("  %d: %s\n", i, name)
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
	}
}

func testOutput() {
	name := ""
	if len(os.Args) > 2 {
		name = os.Args[2]
	}

	d, err := midi.OpenPort(name)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer d.Close()

	fmt.Printf("Using output: %s\n", d.PortName())

	mc := d.AllocChannel()
	if mc == nil {
		fmt.Println("No free channel")
		return
	}
	defer mc.Release()

	fmt.Println("Playing C major scale...")
	mc.ProgramChange(0)
	for _, note := range []uint8{60, 62, 64, 65, 67, 69, 71, 72} {
		mc.NoteOn(note, 100)
		time.Sleep(200 * time.Millisecond)
		mc.NoteOff(note)
	}

	fmt.Println("Done!")
}

func pollDevices() {
	fmt.Println("Polling for device changes every 2 seconds...")
	fmt.Println("Connect/disconnect an output to test. Ctrl+C to exit.")

	lastIn := ""
	lastOut := ""

	for {
		ins := gomidi.GetInPorts()
		outs := gomidi.GetOutPorts()

		var inNames, outNames []string
		for _, p := range ins {
			inNames = append(inNames, p.String())
		}
		for _, p := range outs {
			outNames = append(outNames, p.String())
		}

		currentIn := strings.Join(inNames, ",")
		currentOut := strings.Join(outNames, ",")

		if currentIn != lastIn || currentOut != lastOut {
			fmt.Printf("\n[%s] Device change detected!\n", time.Now().Format("15:04:05"))
			fmt.Printf("  Inputs: %v\n", inNames)
			fmt.Printf("  Outputs: %v\n", outNames)

			lastIn = currentIn
			lastOut = currentOut
		}

		time.Sleep(2 * time.Second)
	}
}
