package wave

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

func pcm16(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestWavWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	opener := NewWavWriter(path)

	sink, err := opener.Open(Format{Channels: 1, SampleRate: 22050, BitsPerSample: 16})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := sink.Feed(pcm16(100, -200, 300, -400)); err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if err := sink.Idle(); err != nil {
		t.Fatalf("Idle() error = %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open written file: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode wav: %v", err)
	}
	if dec.SampleRate != 22050 {
		t.Fatalf("expected sample rate 22050, got %d", dec.SampleRate)
	}
	want := []int{100, -200, 300, -400}
	if len(buf.Data) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(buf.Data))
	}
	for i, v := range want {
		if buf.Data[i] != v {
			t.Fatalf("sample %d = %d, want %d", i, buf.Data[i], v)
		}
	}
}

func TestWavWriterNumbersReopenedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "speech.wav")
	opener := NewWavWriter(path)

	first, err := opener.Open(Format{Channels: 1, SampleRate: 16000, BitsPerSample: 16})
	if err != nil {
		t.Fatalf("first Open() error = %v", err)
	}
	_ = first.Close()

	second, err := opener.Open(Format{Channels: 1, SampleRate: 22050, BitsPerSample: 16})
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	_ = second.Close()

	if _, err := os.Stat(filepath.Join(dir, "speech-2.wav")); err != nil {
		t.Fatalf("expected numbered second file: %v", err)
	}
}

func TestWavWriterRejectsUnsupportedFormat(t *testing.T) {
	opener := NewWavWriter(filepath.Join(t.TempDir(), "out.wav"))
	if _, err := opener.Open(Format{Channels: 1, SampleRate: 16000, BitsPerSample: 24}); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestFeedAfterCloseFails(t *testing.T) {
	opener := NewWavWriter(filepath.Join(t.TempDir(), "out.wav"))
	sink, err := opener.Open(Format{Channels: 1, SampleRate: 16000, BitsPerSample: 16})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	_ = sink.Close()
	if err := sink.Feed(pcm16(1)); err != ErrSinkClosed {
		t.Fatalf("expected ErrSinkClosed, got %v", err)
	}
}
