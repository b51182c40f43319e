package speech

import "github.com/abreza/nvda/internal/synth"

// WorkItem 经 RequestQueue 送达 Worker 的一项工作
// 三种变体：SpeakItem、IndexItem、shutdownItem，入队后不可变
type WorkItem interface {
	workItem()
}

// SpeakItem 合成并播放一段文本
type SpeakItem struct {
	Text   string
	Params synth.Params
}

func (SpeakItem) workItem() {}

// IndexItem 输出序列中的位置标记，Worker 处理到时同步回调
type IndexItem struct {
	Index int
}

func (IndexItem) workItem() {}

// shutdownItem 关停信号，经队列排在既有工作之后，保证先清空再退出
type shutdownItem struct{}

func (shutdownItem) workItem() {}
