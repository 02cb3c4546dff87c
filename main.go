package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"go-imuse/config"
	"go-imuse/debug"
	"go-imuse/imuse"
	"go-imuse/midi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	if cfg.Debug {
		if err := debug.Enable(); err != nil {
			fmt.Printf("debug log unavailable: %v\n", err)
		}
		defer debug.Disable()
	}

	soundDir := cfg.SoundDir
	if len(os.Args) > 1 {
		soundDir = os.Args[1]
	}
	if soundDir == "" {
		fmt.Println("go-imuse")
		fmt.Println("")
		fmt.Println("Usage: go-imuse <sound-dir>")
		fmt.Println("  sound-dir holds MIDI files named <id>.mid")
		os.Exit(1)
	}

	catalog, err := NewDirCatalog(soundDir)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	// Open the configured MIDI output; fall back to silent playback so
	// transport and state still work without hardware.
	var driver midi.Driver
	if port, err := midi.OpenPort(cfg.Output.PortName); err == nil {
		fmt.Printf("Output: %s\n", port.PortName())
		driver = port
	} else {
		fmt.Printf("No MIDI output (%v), running silent\n", err)
		driver = midi.NewNullDriver()
	}

	eng := imuse.NewEngine(driver, catalog)
	defer eng.StopAllSounds()
	defer driver.Close()

	eng.SetMasterVolume(cfg.Engine.MasterVolume)
	eng.SetMusicVolume(cfg.Engine.MusicVolume)
	eng.Property(imuse.PropPlayerLimit, cfg.Engine.PlayerLimit)
	if !cfg.Engine.RecyclePlayers {
		eng.Property(imuse.PropRecyclePlayers, 0)
	}
	eng.Property(imuse.PropTempoFactor, cfg.Engine.TempoFactor)
	if cfg.Output.MT32 {
		eng.Property(imuse.PropNativeMT32, 1)
	}

	// Drive the engine clock from a wall-time ticker.
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second / 60)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				eng.OnTimer()
			case <-done:
				return
			}
		}
	}()
	defer close(done)

	m := newModel(eng, catalog)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
