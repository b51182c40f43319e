package driver

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/abreza/nvda/internal/synth"
	"github.com/abreza/nvda/internal/voice"
)

// fakeWorker 记录 Driver 下发的队列操作
type fakeWorker struct {
	mu          sync.Mutex
	speaks      []string
	params      []synth.Params
	indexes     []int
	cancels     int
	synthesizer synth.Synthesizer
	shutdowns   int
}

func (f *fakeWorker) EnqueueSpeak(text string, params synth.Params) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speaks = append(f.speaks, text)
	f.params = append(f.params, params)
}

func (f *fakeWorker) EnqueueIndex(index int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexes = append(f.indexes, index)
}

func (f *fakeWorker) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
}

func (f *fakeWorker) SetSynthesizer(s synth.Synthesizer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synthesizer = s
}

func (f *fakeWorker) Shutdown(timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
	return nil
}

type nopSynthesizer struct{}

func (nopSynthesizer) Synthesize(string, synth.Params, func() bool) (synth.ChunkStream, error) {
	return nil, synth.ErrBackend
}

func writeVoice(t *testing.T, dir, id, config string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, id+".onnx"), []byte{0}, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, id+".onnx.json"), []byte(config), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestDriver(t *testing.T) (*Driver, *fakeWorker) {
	t.Helper()
	dir := t.TempDir()
	writeVoice(t, dir, "en_US-amy", `{
		"audio": {"sample_rate": 22050},
		"espeak": {"voice": "en-us"},
		"num_speakers": 2,
		"speaker_id_map": {"amy": 0, "bob": 1}
	}`)

	registry := voice.NewRegistry(dir)
	if err := registry.Scan(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	worker := &fakeWorker{}
	factory := func(v voice.Info) (synth.Synthesizer, error) {
		return nopSynthesizer{}, nil
	}
	return New(registry, worker, factory), worker
}

func TestRateToLengthScale(t *testing.T) {
	cases := []struct {
		rate int
		want float64
	}{
		{0, 2.0},
		{50, 1.0},
		{100, 0.5},
		{-10, 2.0},
		{200, 0.5},
	}
	for _, tc := range cases {
		if got := RateToLengthScale(tc.rate); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("RateToLengthScale(%d) = %v, want %v", tc.rate, got, tc.want)
		}
	}
}

func TestSpeakFlushesTextAtIndexBoundaries(t *testing.T) {
	d, worker := newTestDriver(t)

	d.Speak([]SpeechCommand{
		TextCommand{Text: "hello"},
		IndexCommand{Index: 1},
		TextCommand{Text: "world"},
		IndexCommand{Index: 2},
	})

	if want := []string{"hello", "world"}; !reflect.DeepEqual(worker.speaks, want) {
		t.Fatalf("speaks = %v, want %v", worker.speaks, want)
	}
	if want := []int{1, 2}; !reflect.DeepEqual(worker.indexes, want) {
		t.Fatalf("indexes = %v, want %v", worker.indexes, want)
	}
}

func TestSpeakJoinsAdjacentText(t *testing.T) {
	d, worker := newTestDriver(t)

	d.Speak([]SpeechCommand{
		TextCommand{Text: "good"},
		CharacterModeCommand{State: true},
		TextCommand{Text: "morning"},
	})

	if want := []string{"good morning"}; !reflect.DeepEqual(worker.speaks, want) {
		t.Fatalf("speaks = %v, want %v", worker.speaks, want)
	}
}

func TestSpeakProsodyCommandsAreSequenceScoped(t *testing.T) {
	d, worker := newTestDriver(t)

	d.Speak([]SpeechCommand{
		TextCommand{Text: "loud"},
		VolumeCommand{Volume: 25},
		RateCommand{Rate: 100},
		TextCommand{Text: "quiet and fast"},
	})

	if len(worker.params) != 2 {
		t.Fatalf("expected 2 speaks, got %d", len(worker.params))
	}
	if worker.params[0].Volume != 1.0 {
		t.Fatalf("first segment volume = %v, want 1.0", worker.params[0].Volume)
	}
	if worker.params[1].Volume != 0.25 {
		t.Fatalf("second segment volume = %v, want 0.25", worker.params[1].Volume)
	}
	if got := worker.params[1].LengthScale; math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("second segment length scale = %v, want 0.5", got)
	}

	// 序列内的命令不改动持久设置
	if d.Volume() != 100 || d.Rate() != 50 {
		t.Fatalf("persistent settings changed: volume=%d rate=%d", d.Volume(), d.Rate())
	}
}

func TestSpeakBreakSplitsSegments(t *testing.T) {
	d, worker := newTestDriver(t)

	d.Speak([]SpeechCommand{
		TextCommand{Text: "one"},
		BreakCommand{TimeMs: 200},
		TextCommand{Text: "two"},
	})

	if want := []string{"one", "two"}; !reflect.DeepEqual(worker.speaks, want) {
		t.Fatalf("speaks = %v, want %v", worker.speaks, want)
	}
}

func TestSetVoiceAndVariant(t *testing.T) {
	d, worker := newTestDriver(t)

	if err := d.SetVoice("en_US-amy"); err != nil {
		t.Fatalf("set voice: %v", err)
	}
	if worker.synthesizer == nil {
		t.Fatal("synthesizer was not installed on the worker")
	}
	if v, ok := d.Voice(); !ok || v.ID != "en_US-amy" {
		t.Fatalf("voice = %+v ok=%v", v, ok)
	}

	if err := d.SetVariant("1"); err != nil {
		t.Fatalf("set variant: %v", err)
	}
	d.Speak([]SpeechCommand{TextCommand{Text: "hi"}})
	if worker.params[0].SpeakerID != 1 {
		t.Fatalf("speaker id = %d, want 1", worker.params[0].SpeakerID)
	}

	if err := d.SetVariant("9"); err == nil {
		t.Fatal("expected error for unknown variant")
	}
}

func TestSetVoiceUnknown(t *testing.T) {
	d, _ := newTestDriver(t)
	if err := d.SetVoice("no_such_voice"); err == nil {
		t.Fatal("expected error for unknown voice")
	}
}

func TestSettingsAreClamped(t *testing.T) {
	d, _ := newTestDriver(t)

	d.SetRate(300)
	d.SetVolume(-5)
	d.SetPitch(101)

	if d.Rate() != 100 || d.Volume() != 0 || d.Pitch() != 100 {
		t.Fatalf("clamping failed: rate=%d volume=%d pitch=%d", d.Rate(), d.Volume(), d.Pitch())
	}
}

func TestCancelAndTerminateForward(t *testing.T) {
	d, worker := newTestDriver(t)

	d.Cancel()
	if worker.cancels != 1 {
		t.Fatalf("cancels = %d, want 1", worker.cancels)
	}

	if err := d.Terminate(time.Second); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if worker.shutdowns != 1 {
		t.Fatalf("shutdowns = %d, want 1", worker.shutdowns)
	}
}
