// ABOUTME: YAML configuration for the mictroll application
// ABOUTME: Holds audio, background, remote and logging settings with defaults
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mictroll/mictroll-go/pkg/audio"
	"github.com/mictroll/mictroll-go/pkg/audio/device"
	"github.com/mictroll/mictroll-go/pkg/audio/source"
)

// Backends accepted in audio.backend
var Backends = []string{device.BackendMalgo, device.BackendPortAudio, "mock"}

// Config is the root of the YAML file
type Config struct {
	Audio      AudioConfig      `yaml:"audio"`
	Background BackgroundConfig `yaml:"background"`
	Remote     RemoteConfig     `yaml:"remote"`
	Log        LogConfig        `yaml:"log"`
}

// AudioConfig selects devices and the stream format
type AudioConfig struct {
	Backend    string `yaml:"backend"`
	SinkMatch  string `yaml:"sink_match"`
	SampleRate int    `yaml:"sample_rate"`
	FrameSize  int    `yaml:"frame_size"`
	Monitor    bool   `yaml:"monitor"`
}

// BackgroundConfig points at an optional looping bed
type BackgroundConfig struct {
	File string `yaml:"file"`
}

// RemoteConfig controls the WebSocket control server
type RemoteConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Name    string `yaml:"name"`
	MDNS    bool   `yaml:"mdns"`
}

// LogConfig controls log output
type LogConfig struct {
	File string `yaml:"file"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "mictroll"
	}
	return &Config{
		Audio: AudioConfig{
			Backend:    device.BackendMalgo,
			SinkMatch:  device.DefaultSinkMatch,
			SampleRate: audio.DefaultSampleRate,
			FrameSize:  audio.DefaultFrameSize,
		},
		Remote: RemoteConfig{
			Listen: ":8927",
			Name:   hostname + "-mictroll",
			MDNS:   true,
		},
		Log: LogConfig{
			File: "mictroll.log",
		},
	}
}

// Format returns the stream format described by the audio section
func (c *Config) Format() audio.Format {
	return audio.Format{
		SampleRate: c.Audio.SampleRate,
		Channels:   audio.DefaultChannels,
		FrameSize:  c.Audio.FrameSize,
	}
}

// Load reads and validates the YAML file at path
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML over the defaults and validates the result
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns every problem found, joined
func Validate(cfg *Config) error {
	var errs []error

	if !validBackend(cfg.Audio.Backend) {
		errs = append(errs, fmt.Errorf("audio.backend %q is invalid; valid values: %s",
			cfg.Audio.Backend, strings.Join(Backends, ", ")))
	}
	if cfg.Audio.SinkMatch == "" {
		errs = append(errs, fmt.Errorf("audio.sink_match must not be empty"))
	}
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be > 0, got %d", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size must be > 0, got %d", cfg.Audio.FrameSize))
	}

	if f := cfg.Background.File; f != "" {
		ext := source.Extension(f)
		if ext != ".mp3" && ext != ".flac" {
			errs = append(errs, fmt.Errorf("background.file %q must be .mp3 or .flac", f))
		}
	}

	if cfg.Remote.Enabled && cfg.Remote.Listen == "" {
		errs = append(errs, fmt.Errorf("remote.listen is required when remote is enabled"))
	}

	return errors.Join(errs...)
}

func validBackend(name string) bool {
	for _, b := range Backends {
		if b == name {
			return true
		}
	}
	return false
}
