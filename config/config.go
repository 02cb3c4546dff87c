package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// OutputConfig defines the MIDI output port
type OutputConfig struct {
	PortName string `json:"portName,omitempty"`
	MT32     bool   `json:"mt32,omitempty"`
}

// EngineConfig stores playback engine preferences
type EngineConfig struct {
	MasterVolume   int  `json:"masterVolume,omitempty"`
	MusicVolume    int  `json:"musicVolume,omitempty"`
	PlayerLimit    int  `json:"playerLimit,omitempty"`
	RecyclePlayers bool `json:"recyclePlayers"`
	TempoFactor    int  `json:"tempoFactor,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Output   OutputConfig `json:"output,omitempty"`
	Engine   EngineConfig `json:"engine,omitempty"`
	SoundDir string       `json:"soundDir,omitempty"`
	Debug    bool         `json:"debug,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			MasterVolume:   255,
			MusicVolume:    255,
			PlayerLimit:    8,
			RecyclePlayers: true,
			TempoFactor:    128,
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-imuse"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
