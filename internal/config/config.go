package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

const DefaultPath = "config/speech.json"

type AppConfig struct {
	Logging LoggingConfig `json:"logging"`
	Voices  VoicesConfig  `json:"voices"`
	Synth   SynthConfig   `json:"synth"`
	Audio   AudioConfig   `json:"audio"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

type VoicesConfig struct {
	Dir     string `json:"dir"`
	Default string `json:"default"`
}

type SynthConfig struct {
	Backend     string  `json:"backend"`
	Command     string  `json:"command"`
	Endpoint    string  `json:"endpoint"`
	NoiseScale  float64 `json:"noise_scale"`
	NoiseWScale float64 `json:"noise_w_scale"`
	SentenceMax int     `json:"sentence_max"`
}

type AudioConfig struct {
	Output          string `json:"output"`
	WavPath         string `json:"wav_path"`
	FramesPerBuffer int    `json:"frames_per_buffer"`
	QueuePollMs     int    `json:"queue_poll_ms"`
	JoinTimeoutSec  int    `json:"join_timeout_sec"`
}

func DefaultConfig() *AppConfig {
	return &AppConfig{
		Logging: LoggingConfig{},
		Voices: VoicesConfig{
			Dir: "piper_voices",
		},
		Synth: SynthConfig{
			Backend:     "exec",
			Command:     "piper",
			NoiseScale:  0.667,
			NoiseWScale: 0.8,
			SentenceMax: 400,
		},
		Audio: AudioConfig{
			Output:          "portaudio",
			FramesPerBuffer: 1024,
			QueuePollMs:     100,
			JoinTimeoutSec:  2,
		},
	}
}

func Load(path string) (*AppConfig, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.ApplyEnv()
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

func (c *AppConfig) ApplyEnv() {
	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		c.Logging.Level = level
	}
	if format := strings.TrimSpace(os.Getenv("LOG_FORMAT")); format != "" {
		c.Logging.Format = format
	}

	if dir := strings.TrimSpace(os.Getenv("PIPER_VOICE_DIR")); dir != "" {
		c.Voices.Dir = dir
	}
	if cmd := strings.TrimSpace(os.Getenv("PIPER_COMMAND")); cmd != "" {
		c.Synth.Command = cmd
	}
	if endpoint := strings.TrimSpace(os.Getenv("PIPER_ENDPOINT")); endpoint != "" {
		c.Synth.Endpoint = endpoint
		if strings.TrimSpace(c.Synth.Backend) == "" {
			c.Synth.Backend = "remote"
		}
	}
}

func (c *AppConfig) Validate() error {
	backend := strings.TrimSpace(c.Synth.Backend)
	switch backend {
	case "exec", "remote":
	case "":
		c.Synth.Backend = "exec"
	default:
		return fmt.Errorf("invalid synth backend: %s (expected exec or remote)", backend)
	}

	if c.Synth.Backend == "remote" && strings.TrimSpace(c.Synth.Endpoint) == "" {
		return errors.New("synth endpoint is required for remote backend")
	}
	if c.Synth.NoiseScale < 0 {
		return fmt.Errorf("noise_scale must be >= 0, got %v", c.Synth.NoiseScale)
	}
	if c.Synth.NoiseWScale < 0 {
		return fmt.Errorf("noise_w_scale must be >= 0, got %v", c.Synth.NoiseWScale)
	}
	if c.Synth.SentenceMax <= 0 {
		c.Synth.SentenceMax = DefaultConfig().Synth.SentenceMax
	}

	output := strings.TrimSpace(c.Audio.Output)
	switch output {
	case "portaudio", "wav":
	case "":
		c.Audio.Output = "portaudio"
	default:
		return fmt.Errorf("invalid audio output: %s (expected portaudio or wav)", output)
	}
	if c.Audio.Output == "wav" && strings.TrimSpace(c.Audio.WavPath) == "" {
		return errors.New("wav_path is required for wav output")
	}
	if c.Audio.FramesPerBuffer <= 0 {
		c.Audio.FramesPerBuffer = DefaultConfig().Audio.FramesPerBuffer
	}
	if c.Audio.QueuePollMs <= 0 {
		c.Audio.QueuePollMs = DefaultConfig().Audio.QueuePollMs
	}
	if c.Audio.JoinTimeoutSec <= 0 {
		c.Audio.JoinTimeoutSec = DefaultConfig().Audio.JoinTimeoutSec
	}

	return nil
}
