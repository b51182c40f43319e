package driver

// SpeechCommand 宿主下发的语音序列成员
// 文本与各类控制命令按顺序排列，由 Speak 一次性消费
type SpeechCommand interface {
	speechCommand()
}

// TextCommand 一段要朗读的文本
type TextCommand struct {
	Text string
}

func (TextCommand) speechCommand() {}

// IndexCommand 位置标记，Worker 处理到时回调 IndexReached
type IndexCommand struct {
	Index int
}

func (IndexCommand) speechCommand() {}

// RateCommand 调整序列中后续文本的语速，0-100，只在本序列内生效
type RateCommand struct {
	Rate int
}

func (RateCommand) speechCommand() {}

// VolumeCommand 调整序列中后续文本的音量，0-100，只在本序列内生效
type VolumeCommand struct {
	Volume int
}

func (VolumeCommand) speechCommand() {}

// PitchCommand 音高命令，piper 模型不支持音高调节，仅作边界处理
type PitchCommand struct {
	Pitch int
}

func (PitchCommand) speechCommand() {}

// BreakCommand 停顿命令，毫秒
type BreakCommand struct {
	TimeMs int
}

func (BreakCommand) speechCommand() {}

// CharacterModeCommand 字符模式开关，文本格式化由宿主完成，这里忽略
type CharacterModeCommand struct {
	State bool
}

func (CharacterModeCommand) speechCommand() {}

// LangChangeCommand 语言切换，单语言模型无法切换，这里忽略
type LangChangeCommand struct {
	Lang string
}

func (LangChangeCommand) speechCommand() {}
