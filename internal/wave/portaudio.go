package wave

import (
	"encoding/binary"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/abreza/nvda/internal/logging"
)

// PortAudio 基于 portaudio 默认输出设备的 Opener
type PortAudio struct {
	framesPerBuffer int
}

func NewPortAudio(framesPerBuffer int) (*PortAudio, error) {
	if framesPerBuffer <= 0 {
		framesPerBuffer = 1024
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	return &PortAudio{framesPerBuffer: framesPerBuffer}, nil
}

func (pa *PortAudio) Open(f Format) (Sink, error) {
	if !f.Valid() || f.BitsPerSample != 16 {
		return nil, ErrUnsupportedFormat
	}

	s := &paSink{
		buf:      make([]int16, pa.framesPerBuffer*f.Channels),
		channels: f.Channels,
	}
	stream, err := portaudio.OpenDefaultStream(0, f.Channels, float64(f.SampleRate), pa.framesPerBuffer, &s.buf)
	if err != nil {
		return nil, err
	}
	s.stream = stream
	logging.Debugf("wave: opened portaudio sink (channels=%d rate=%d bits=%d)", f.Channels, f.SampleRate, f.BitsPerSample)
	return s, nil
}

// Terminate 释放 portaudio，进程退出前调用一次
func (pa *PortAudio) Terminate() {
	_ = portaudio.Terminate()
}

type paSink struct {
	mu       sync.Mutex
	stream   *portaudio.Stream
	buf      []int16
	pending  []byte
	channels int
	started  bool
	aborted  bool
	closed   bool
}

func (s *paSink) Feed(data []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSinkClosed
	}
	s.aborted = false
	s.pending = append(s.pending, data...)

	bufBytes := len(s.buf) * 2
	for len(s.pending) >= bufBytes {
		for i := range s.buf {
			s.buf[i] = int16(binary.LittleEndian.Uint16(s.pending[i*2:]))
		}
		s.pending = s.pending[bufBytes:]

		if !s.started {
			if err := s.stream.Start(); err != nil {
				s.mu.Unlock()
				return err
			}
			s.started = true
		}

		stream := s.stream
		// Write 在设备缓冲写满时阻塞，不能持锁调用，否则 Stop 无法中断播放
		s.mu.Unlock()
		err := stream.Write()
		s.mu.Lock()
		if err != nil {
			if s.aborted || s.closed {
				// 被 Stop/Close 中断，数据按约定丢弃
				s.pending = nil
				s.mu.Unlock()
				return nil
			}
			s.mu.Unlock()
			return err
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *paSink) Idle() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSinkClosed
	}

	// 不足一个缓冲的尾巴补零后写出
	if len(s.pending) > 0 {
		for i := range s.buf {
			if i*2+1 < len(s.pending) {
				s.buf[i] = int16(binary.LittleEndian.Uint16(s.pending[i*2:]))
			} else {
				s.buf[i] = 0
			}
		}
		s.pending = nil
		if !s.started {
			if err := s.stream.Start(); err != nil {
				s.mu.Unlock()
				return err
			}
			s.started = true
		}
		stream := s.stream
		s.mu.Unlock()
		if err := stream.Write(); err != nil {
			return err
		}
		s.mu.Lock()
	}

	if !s.started {
		s.mu.Unlock()
		return nil
	}
	stream := s.stream
	s.started = false
	s.mu.Unlock()

	// portaudio 的 Stop 会等待缓冲播放完毕
	return stream.Stop()
}

func (s *paSink) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.aborted = true
	stream := s.stream
	started := s.started
	s.started = false
	s.mu.Unlock()

	if started && stream != nil {
		if err := stream.Abort(); err != nil {
			logging.Warnf("wave: abort portaudio stream: %v", err)
		}
	}
}

func (s *paSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stream := s.stream
	started := s.started
	s.started = false
	s.mu.Unlock()

	if stream == nil {
		return nil
	}
	if started {
		_ = stream.Abort()
	}
	return stream.Close()
}
