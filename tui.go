package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-imuse/imuse"
)

var (
	// Orca-inspired minimal palette
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#fff"))
	cursorStyle = lipgloss.NewStyle().Background(lipgloss.Color("#444"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
	playStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5f5"))
)

type model struct {
	eng      *imuse.Engine
	catalog  *DirCatalog
	ids      []int
	cursor   int
	paused   bool
	saved    []byte
	flash    string
	quitting bool
}

type tickMsg time.Time

func newModel(eng *imuse.Engine, catalog *DirCatalog) model {
	return model{eng: eng, catalog: catalog, ids: catalog.IDs()}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/10, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "j", "down":
			if m.cursor < len(m.ids)-1 {
				m.cursor++
			}

		case "k", "up":
			if m.cursor > 0 {
				m.cursor--
			}

		case " ", "enter":
			if id, ok := m.selected(); ok {
				if !m.eng.StartSound(id) {
					m.flash = fmt.Sprintf("can't start %d", id)
				}
			}

		case "s":
			if id, ok := m.selected(); ok {
				m.eng.StopSound(id)
			}

		case "S":
			m.eng.StopAllSounds()

		case "p":
			m.paused = !m.paused
			m.eng.Pause(m.paused)

		case "+", "=":
			m.eng.SetMasterVolume(m.eng.MasterVolume() + 16)

		case "-", "_":
			m.eng.SetMasterVolume(m.eng.MasterVolume() - 16)

		case "d":
			// momentary duck, like dialogue over music
			m.eng.ReduceMusicVolume(128, 120)

		case "w":
			if data, err := m.eng.Save(); err == nil {
				m.saved = data
				m.flash = "state saved"
			}

		case "r":
			if m.saved == nil {
				m.flash = "nothing saved"
			} else if err := m.eng.Restore(m.saved); err != nil {
				m.flash = fmt.Sprintf("restore: %v", err)
			} else {
				m.flash = "state restored"
			}
		}

	case tickMsg:
		return m, tick()
	}

	return m, nil
}

func (m model) selected() (int, bool) {
	if len(m.ids) == 0 {
		return 0, false
	}
	return m.ids[m.cursor], true
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	active := m.eng.ActiveSounds()
	playing := make(map[int]imuse.SoundInfo)
	for _, info := range active {
		playing[info.Sound] = info
	}

	b.WriteString(activeStyle.Render("go-imuse"))
	b.WriteString("\n\n")

	for i, id := range m.ids {
		line := fmt.Sprintf(" %3d  %s", id, m.catalog.Name(id))
		style := dimStyle
		if info, ok := playing[id]; ok {
			style = playStyle
			line += fmt.Sprintf("  %d.%03d", info.Beat, info.Tick)
		}
		if i == m.cursor {
			style = style.Inherit(cursorStyle)
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}

	state := "play"
	if m.paused {
		state = "pause"
	}
	status := fmt.Sprintf("%s  vol %3d  sounds %d/%d  timer %d",
		state, m.eng.MasterVolume(), len(active), imuse.NumPlayers, m.eng.GetMusicTimer())
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(status))
	if m.flash != "" {
		b.WriteString(statusStyle.Render("  " + m.flash))
	}
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("j/k:move  enter:start  s:stop  S:stop all  p:pause  +/-:vol  d:duck  w/r:save/restore  q:quit"))
	b.WriteString("\n")

	return b.String()
}
