package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/abreza/nvda/internal/config"
	"github.com/abreza/nvda/internal/driver"
	"github.com/abreza/nvda/internal/logging"
	"github.com/abreza/nvda/internal/speech"
	"github.com/abreza/nvda/internal/synth"
	"github.com/abreza/nvda/internal/voice"
	"github.com/abreza/nvda/internal/wave"
)

const finalIndex = 1

// doneNotifier 在最后一个索引回调后关闭 done
type doneNotifier struct {
	done chan struct{}
}

func (n *doneNotifier) IndexReached(index int) {
	logging.Debugf("speak: index %d reached", index)
	if index == finalIndex {
		close(n.done)
	}
}

func (n *doneNotifier) DoneSpeaking() {
	logging.Debugf("speak: utterance finished")
}

func main() {
	configPath := flag.String("config", config.DefaultPath, "Config file path")
	voiceID := flag.String("voice", "", "Voice ID (default: config, then first scanned)")
	variant := flag.String("variant", "", "Speaker variant ID for multi-speaker voices")
	rate := flag.Int("rate", 50, "Speech rate (0-100)")
	pitch := flag.Int("pitch", 50, "Pitch (0-100, no effect on piper voices)")
	volume := flag.Int("volume", 100, "Volume (0-100)")
	output := flag.String("output", "", "Write audio to a WAV file instead of playing")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if *output != "" {
		cfg.Audio.Output = "wav"
		cfg.Audio.WavPath = *output
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatalf("invalid config: %v", err)
	}

	text := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if text == "" {
		logging.Fatalf("nothing to speak, pass text as arguments")
	}

	registry := voice.NewRegistry(cfg.Voices.Dir)
	if err := registry.Scan(); err != nil {
		logging.Fatalf("scan voices: %v", err)
	}

	id := strings.TrimSpace(*voiceID)
	if id == "" {
		id = cfg.Voices.Default
	}
	if id == "" {
		voices := registry.Voices()
		if len(voices) == 0 {
			logging.Fatalf("no voices found in %s", cfg.Voices.Dir)
		}
		id = voices[0].ID
	}

	opener, cleanup, err := newOpener(cfg)
	if err != nil {
		logging.Fatalf("open audio output: %v", err)
	}
	defer cleanup()

	notifier := &doneNotifier{done: make(chan struct{})}
	worker := speech.NewWorker(opener, notifier, time.Duration(cfg.Audio.QueuePollMs)*time.Millisecond)
	worker.Start()

	d := driver.New(registry, worker, newFactory(cfg))
	d.SetNoise(cfg.Synth.NoiseScale, cfg.Synth.NoiseWScale)
	if err := d.SetVoice(id); err != nil {
		logging.Fatalf("set voice: %v", err)
	}
	if *variant != "" {
		if err := d.SetVariant(*variant); err != nil {
			logging.Fatalf("set variant: %v", err)
		}
	}
	d.SetRate(*rate)
	d.SetPitch(*pitch)
	d.SetVolume(*volume)

	d.Speak([]driver.SpeechCommand{
		driver.TextCommand{Text: text},
		driver.IndexCommand{Index: finalIndex},
	})

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	select {
	case <-notifier.done:
	case <-interrupt:
		logging.Infof("interrupted, cancelling")
		d.Cancel()
	}

	joinTimeout := time.Duration(cfg.Audio.JoinTimeoutSec) * time.Second
	if err := d.Terminate(joinTimeout); err != nil {
		logging.Errorf("terminate: %v", err)
	}
}

func newOpener(cfg *config.AppConfig) (wave.Opener, func(), error) {
	switch cfg.Audio.Output {
	case "wav":
		return wave.NewWavWriter(cfg.Audio.WavPath), func() {}, nil
	default:
		pa, err := wave.NewPortAudio(cfg.Audio.FramesPerBuffer)
		if err != nil {
			return nil, nil, err
		}
		return pa, pa.Terminate, nil
	}
}

func newFactory(cfg *config.AppConfig) driver.SynthesizerFactory {
	return func(v voice.Info) (synth.Synthesizer, error) {
		if cfg.Synth.Backend == "remote" {
			r, err := synth.NewRemote(cfg.Synth.Endpoint)
			if err != nil {
				return nil, err
			}
			return r, nil
		}
		e, err := synth.NewExec(cfg.Synth.Command, v.ModelPath, v.SampleRate, 1, cfg.Synth.SentenceMax)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
}
