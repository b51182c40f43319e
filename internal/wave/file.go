package wave

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/abreza/nvda/internal/logging"
)

// WavWriter 把音频写入 WAV 文件的 Opener，用于离线渲染和测试
// 格式切换导致的重开会生成带序号的新文件
type WavWriter struct {
	mu    sync.Mutex
	path  string
	count int
}

func NewWavWriter(path string) *WavWriter {
	return &WavWriter{path: path}
}

func (w *WavWriter) Open(f Format) (Sink, error) {
	if !f.Valid() || f.BitsPerSample != 16 {
		return nil, ErrUnsupportedFormat
	}

	w.mu.Lock()
	w.count++
	path := w.path
	if w.count > 1 {
		ext := filepath.Ext(path)
		path = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(path, ext), w.count, ext)
	}
	w.mu.Unlock()

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav file: %w", err)
	}

	enc := wav.NewEncoder(file, f.SampleRate, f.BitsPerSample, f.Channels, 1)
	logging.Debugf("wave: writing %s (channels=%d rate=%d)", path, f.Channels, f.SampleRate)
	return &wavSink{
		file:   file,
		enc:    enc,
		format: f,
	}, nil
}

type wavSink struct {
	mu     sync.Mutex
	file   *os.File
	enc    *wav.Encoder
	format Format
	closed bool
}

func (s *wavSink) Feed(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	if len(data) < 2 {
		return nil
	}

	samples := make([]int, len(data)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: s.format.Channels,
			SampleRate:  s.format.SampleRate,
		},
		Data:           samples,
		SourceBitDepth: s.format.BitsPerSample,
	}
	return s.enc.Write(buf)
}

// Idle 文件写入没有播放缓冲，无需等待
func (s *wavSink) Idle() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	return nil
}

// Stop 文件模式下没有可丢弃的在播缓冲
func (s *wavSink) Stop() {}

func (s *wavSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.enc.Close(); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}
