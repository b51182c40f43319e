package speech

import (
	"io"
	"strconv"
	"sync"

	"github.com/abreza/nvda/internal/synth"
	"github.com/abreza/nvda/internal/wave"
)

// mockSynthesizer 模拟合成服务
type mockSynthesizer struct {
	mu       sync.Mutex
	chunks   []synth.Chunk
	synthErr error
	nextErr  error
	block    chan struct{} // 非 nil 时每次 Next 先等一个令牌
	calls    int
	lastText string
}

func newMockSynthesizer(chunks ...synth.Chunk) *mockSynthesizer {
	return &mockSynthesizer{chunks: chunks}
}

func (m *mockSynthesizer) Synthesize(text string, params synth.Params, cancelled func() bool) (synth.ChunkStream, error) {
	m.mu.Lock()
	m.calls++
	m.lastText = text
	chunks := append([]synth.Chunk(nil), m.chunks...)
	synthErr := m.synthErr
	nextErr := m.nextErr
	block := m.block
	m.mu.Unlock()

	if synthErr != nil {
		return nil, synthErr
	}
	return &mockStream{
		chunks:    chunks,
		nextErr:   nextErr,
		block:     block,
		cancelled: cancelled,
	}, nil
}

func (m *mockSynthesizer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockStream struct {
	chunks    []synth.Chunk
	nextErr   error
	block     chan struct{}
	cancelled func() bool
	idx       int
	closed    bool
}

func (s *mockStream) Next() (synth.Chunk, error) {
	if s.block != nil {
		<-s.block
	}
	if s.cancelled != nil && s.cancelled() {
		return synth.Chunk{}, io.EOF
	}
	if s.idx >= len(s.chunks) {
		if s.nextErr != nil {
			return synth.Chunk{}, s.nextErr
		}
		return synth.Chunk{}, io.EOF
	}
	chunk := s.chunks[s.idx]
	s.idx++
	return chunk, nil
}

func (s *mockStream) Close() error {
	s.closed = true
	return nil
}

// mockOpener 模拟输出设备工厂，记录每次打开的格式
type mockOpener struct {
	mu      sync.Mutex
	openErr error
	sinks   []*mockSink
	fedCh   chan []byte
}

func newMockOpener() *mockOpener {
	return &mockOpener{fedCh: make(chan []byte, 64)}
}

func (o *mockOpener) Open(f wave.Format) (wave.Sink, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.openErr != nil {
		return nil, o.openErr
	}
	sink := &mockSink{format: f, fedCh: o.fedCh}
	o.sinks = append(o.sinks, sink)
	return sink, nil
}

func (o *mockOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sinks)
}

func (o *mockOpener) sink(i int) *mockSink {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sinks[i]
}

type mockSink struct {
	mu      sync.Mutex
	format  wave.Format
	fed     [][]byte
	fedCh   chan []byte
	stopped bool
	idled   int
	closed  bool
	feedErr error
}

func (s *mockSink) Feed(data []byte) error {
	s.mu.Lock()
	if s.feedErr != nil {
		err := s.feedErr
		s.mu.Unlock()
		return err
	}
	s.fed = append(s.fed, data)
	s.mu.Unlock()

	select {
	case s.fedCh <- data:
	default:
	}
	return nil
}

func (s *mockSink) Idle() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idled++
	return nil
}

func (s *mockSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

func (s *mockSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *mockSink) fedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fed)
}

func (s *mockSink) wasStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *mockSink) wasClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *mockSink) idleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idled
}

// recordingNotifier 记录回调顺序
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{}
}

func (n *recordingNotifier) IndexReached(index int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, "index:"+strconv.Itoa(index))
}

func (n *recordingNotifier) DoneSpeaking() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, "done")
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}
