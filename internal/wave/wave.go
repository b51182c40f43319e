package wave

import "errors"

// Format 打开输出设备所需的参数三元组，任一项变化都需要重开设备
type Format struct {
	Channels      int
	SampleRate    int
	BitsPerSample int
}

func (f Format) Valid() bool {
	return f.Channels > 0 && f.SampleRate > 0 && (f.BitsPerSample == 8 || f.BitsPerSample == 16 || f.BitsPerSample == 32)
}

// Sink 流式音频输出设备
// Feed 在设备缓冲写满时阻塞（背压）；Stop 立即丢弃未播放的数据
type Sink interface {
	// Feed 写入原始 PCM 数据，可能阻塞直到缓冲有空间
	Feed(data []byte) error

	// Idle 阻塞直到已写入的数据全部播放完毕
	Idle() error

	// Stop 立即中止播放并丢弃缓冲，之后仍可继续 Feed
	Stop()

	Close() error
}

// Opener 按格式打开 Sink，同一时刻最多持有一个已打开设备由调用方保证
type Opener interface {
	Open(f Format) (Sink, error)
}

var (
	ErrUnsupportedFormat = errors.New("wave: unsupported sample format")
	ErrSinkClosed        = errors.New("wave: sink closed")
)
