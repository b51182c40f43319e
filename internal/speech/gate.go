package speech

import (
	"sync"
	"sync/atomic"

	"github.com/abreza/nvda/internal/logging"
	"github.com/abreza/nvda/internal/wave"
)

// gate 跨线程共享的取消状态与当前输出设备
// running/cancelled 是热路径标志，用原子量避免锁竞争；
// sink 与其格式由 mu 保护，Worker 喂音频和外部 Stop 都要拿这把锁
type gate struct {
	running   atomic.Bool
	cancelled atomic.Bool

	mu     sync.Mutex
	sink   wave.Sink
	format wave.Format
	open   bool
}

// interrupted 合成取消谓词：已关停或已取消
func (g *gate) interrupted() bool {
	return !g.running.Load() || g.cancelled.Load()
}

// stopPlayback 在锁内立即中止在播音频，cancel 路径从任意线程调用
func (g *gate) stopPlayback() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.open {
		g.sink.Stop()
	}
}

// ensureSinkLocked 保证当前设备匹配 format，必要时关旧开新
// 调用方必须持有 g.mu
func (g *gate) ensureSinkLocked(opener wave.Opener, format wave.Format) error {
	if g.open && g.format == format {
		return nil
	}
	if g.open {
		if err := g.sink.Close(); err != nil {
			logging.Warnf("speech: close sink on format switch: %v", err)
		}
		g.open = false
		g.sink = nil
	}

	sink, err := opener.Open(format)
	if err != nil {
		return err
	}
	g.sink = sink
	g.format = format
	g.open = true
	return nil
}

// closeSink 无条件关闭设备，Worker 退出时调用
func (g *gate) closeSink() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.open {
		return
	}
	if err := g.sink.Close(); err != nil {
		logging.Warnf("speech: close sink: %v", err)
	}
	g.open = false
	g.sink = nil
}
