package speech

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abreza/nvda/internal/logging"
	"github.com/abreza/nvda/internal/synth"
	"github.com/abreza/nvda/internal/text"
	"github.com/abreza/nvda/internal/wave"
)

const defaultPollInterval = 100 * time.Millisecond

// ErrJoinTimeout Worker 在宽限期内未退出
var ErrJoinTimeout = errors.New("speech: worker did not exit before timeout")

// Notifier 接收 Worker 的回调，对接宿主的通知系统
// IndexReached 在 Worker 线程上同步触发；DoneSpeaking 仅在未取消的
// Speak 项正常播完后触发
type Notifier interface {
	IndexReached(index int)
	DoneSpeaking()
}

// Stats Worker 统计信息，用于调试和监控
type Stats struct {
	Queued         int
	Speaking       bool
	TotalSpoken    int
	TotalCancelled int
	TotalDropped   int
}

// Worker 单条后台合成线程
// 独占消费 RequestQueue，驱动合成、喂音频设备、发回调；
// 取消经 gate 即时生效，不依赖队列顺序
type Worker struct {
	queue    *requestQueue
	gate     *gate
	opener   wave.Opener
	notifier Notifier
	poll     time.Duration

	synthMu     sync.Mutex
	synthesizer synth.Synthesizer

	speaking       atomic.Bool
	totalSpoken    int64
	totalCancelled int64
	totalDropped   int64

	startOnce sync.Once
	done      chan struct{}
}

func NewWorker(opener wave.Opener, notifier Notifier, poll time.Duration) *Worker {
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Worker{
		queue:    newRequestQueue(),
		gate:     &gate{},
		opener:   opener,
		notifier: notifier,
		poll:     poll,
		done:     make(chan struct{}),
	}
}

// Start 启动后台线程，重复调用无效果
func (w *Worker) Start() {
	w.startOnce.Do(func() {
		w.gate.running.Store(true)
		go w.run()
	})
}

// SetSynthesizer 切换当前语音的合成器，nil 表示没有已加载的语音
func (w *Worker) SetSynthesizer(s synth.Synthesizer) {
	w.synthMu.Lock()
	w.synthesizer = s
	w.synthMu.Unlock()
}

func (w *Worker) currentSynthesizer() synth.Synthesizer {
	w.synthMu.Lock()
	defer w.synthMu.Unlock()
	return w.synthesizer
}

// EnqueueSpeak 非阻塞入队一段文本
func (w *Worker) EnqueueSpeak(text string, params synth.Params) {
	w.queue.Enqueue(SpeakItem{Text: text, Params: params})
}

// EnqueueIndex 非阻塞入队一个位置标记
func (w *Worker) EnqueueIndex(index int) {
	w.queue.Enqueue(IndexItem{Index: index})
}

// Cancel 立即取消：先置标志，再清队列，最后停掉在播音频
// 可从任意线程调用；返回后不会再有取消前入队的项开始执行
func (w *Worker) Cancel() {
	w.gate.cancelled.Store(true)
	if dropped := w.queue.DrainAll(); dropped > 0 {
		logging.Debugf("speech: cancel dropped %d queued item(s)", dropped)
	}
	w.gate.stopPlayback()
}

// Shutdown 入队关停信号并等待线程退出，最多等待 timeout
// 关停排在既有工作之后，保证清空后干净退出
func (w *Worker) Shutdown(timeout time.Duration) error {
	w.queue.Enqueue(shutdownItem{})

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-w.done:
		return nil
	case <-timer.C:
		return ErrJoinTimeout
	}
}

// Done 线程退出信号
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) Stats() Stats {
	return Stats{
		Queued:         w.queue.Len(),
		Speaking:       w.speaking.Load(),
		TotalSpoken:    int(atomic.LoadInt64(&w.totalSpoken)),
		TotalCancelled: int(atomic.LoadInt64(&w.totalCancelled)),
		TotalDropped:   int(atomic.LoadInt64(&w.totalDropped)),
	}
}

func (w *Worker) run() {
	defer close(w.done)
	defer w.gate.closeSink()

	for w.gate.running.Load() {
		item, ok := w.queue.DequeueWithTimeout(w.poll)
		if !ok {
			continue
		}

		switch it := item.(type) {
		case SpeakItem:
			w.speak(it)
		case IndexItem:
			if w.notifier != nil {
				w.notifier.IndexReached(it.Index)
			}
		case shutdownItem:
			w.gate.running.Store(false)
		}
	}

	logging.Infof("speech: worker exited")
}

// speak 处理单个 Speak 项
// 任何合成或播放错误都只记日志并静默放弃本段，线程回到 Idle
func (w *Worker) speak(item SpeakItem) {
	if text.IsBlank(item.Text) {
		atomic.AddInt64(&w.totalDropped, 1)
		return
	}
	synthesizer := w.currentSynthesizer()
	if synthesizer == nil {
		atomic.AddInt64(&w.totalDropped, 1)
		return
	}

	// 新的一段开始前清掉取消标志
	// 与并发到来的 Cancel 存在窄竞态，由循环内的复查兜底
	w.gate.cancelled.Store(false)
	logging.StartUtterance()
	w.speaking.Store(true)
	defer w.speaking.Store(false)

	stream, err := synthesizer.Synthesize(item.Text, item.Params, w.gate.interrupted)
	if err != nil {
		logging.Errorf("speech: synthesis failed: %v", err)
		return
	}
	defer stream.Close()

	cancelledRun := false
	for {
		if w.gate.interrupted() {
			cancelledRun = true
			break
		}

		chunk, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			logging.Errorf("speech: pull chunk: %v", err)
			return
		}

		ok, err := w.feedChunk(chunk)
		if err != nil {
			logging.Errorf("speech: feed chunk: %v", err)
			return
		}
		if !ok {
			cancelledRun = true
			break
		}
	}

	if !cancelledRun {
		if err := w.waitDrained(); err != nil {
			logging.Errorf("speech: wait for drain: %v", err)
			return
		}
	}

	if cancelledRun || w.gate.interrupted() {
		atomic.AddInt64(&w.totalCancelled, 1)
		return
	}

	atomic.AddInt64(&w.totalSpoken, 1)
	if w.notifier != nil {
		w.notifier.DoneSpeaking()
	}
}

// feedChunk 在 gate 锁内复核取消、按需换设备、喂入数据
// 返回 false 表示取消在拿锁前后抵达，本段应立即结束
func (w *Worker) feedChunk(chunk synth.Chunk) (bool, error) {
	g := w.gate
	g.mu.Lock()
	defer g.mu.Unlock()

	// 拿锁后的权威复查：取消可能发生在锁外检查与拿锁之间
	if g.cancelled.Load() {
		return false, nil
	}

	format := wave.Format{
		Channels:      chunk.Channels,
		SampleRate:    chunk.SampleRate,
		BitsPerSample: chunk.SampleWidth * 8,
	}
	if err := g.ensureSinkLocked(w.opener, format); err != nil {
		return false, err
	}

	// 设备缓冲写满时在此阻塞，是整条线程的主要背压点
	if err := g.sink.Feed(chunk.Data); err != nil {
		return false, err
	}
	return true, nil
}

// waitDrained 正常播完后等设备排空，取消的段不等
func (w *Worker) waitDrained() error {
	g := w.gate
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancelled.Load() || !g.open {
		return nil
	}
	return g.sink.Idle()
}
