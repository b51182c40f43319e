package driver

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/abreza/nvda/internal/logging"
	"github.com/abreza/nvda/internal/synth"
	"github.com/abreza/nvda/internal/voice"
)

// speechWorker Driver 对后台合成线程的依赖面
type speechWorker interface {
	EnqueueSpeak(text string, params synth.Params)
	EnqueueIndex(index int)
	Cancel()
	SetSynthesizer(s synth.Synthesizer)
	Shutdown(timeout time.Duration) error
}

// SynthesizerFactory 为选中的语音构造合成后端
type SynthesizerFactory func(v voice.Info) (synth.Synthesizer, error)

// Driver NVDA 风格的合成器门面
// 持有语音注册表与设置项，把语音命令序列翻译成 Worker 的队列项
type Driver struct {
	registry *voice.Registry
	worker   speechWorker
	factory  SynthesizerFactory

	mu       sync.Mutex
	voice    voice.Info
	hasVoice bool
	rate     int
	pitch    int
	volume   int
	speaker  int
	noise    float64
	noiseW   float64
}

func New(registry *voice.Registry, worker speechWorker, factory SynthesizerFactory) *Driver {
	defaults := synth.DefaultParams()
	return &Driver{
		registry: registry,
		worker:   worker,
		factory:  factory,
		rate:     50,
		pitch:    50,
		volume:   100,
		noise:    defaults.NoiseScale,
		noiseW:   defaults.NoiseWScale,
	}
}

// RateToLengthScale 把 0-100 的语速映射为 piper 的 length_scale
// 锚点：0→2.0、50→1.0、100→0.5
func RateToLengthScale(rate int) float64 {
	rate = clampSetting(rate)
	return math.Pow(2, float64(50-rate)/50.0)
}

func clampSetting(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// SetVoice 按 ID 切换语音并重建合成后端
func (d *Driver) SetVoice(id string) error {
	info, ok := d.registry.Get(id)
	if !ok {
		return fmt.Errorf("driver: unknown voice %q", id)
	}
	synthesizer, err := d.factory(info)
	if err != nil {
		return fmt.Errorf("driver: create synthesizer for %s: %w", id, err)
	}

	d.mu.Lock()
	d.voice = info
	d.hasVoice = true
	d.speaker = 0
	d.mu.Unlock()

	d.worker.SetSynthesizer(synthesizer)
	logging.SetSynthName(id)
	logging.Infof("driver: voice set to %s (%s)", id, info.Language)
	return nil
}

// Voice 当前语音，第二个返回值表示是否已加载
func (d *Driver) Voice() (voice.Info, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.voice, d.hasVoice
}

// SetVariant 切换当前语音的说话人变体，ID 取自 Variants
func (d *Driver) SetVariant(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.hasVoice {
		return fmt.Errorf("driver: no voice loaded")
	}
	for _, v := range d.voice.Variants() {
		if v.ID == id {
			speaker, err := strconv.Atoi(id)
			if err != nil {
				return fmt.Errorf("driver: bad variant id %q: %w", id, err)
			}
			d.speaker = speaker
			return nil
		}
	}
	return fmt.Errorf("driver: voice %s has no variant %q", d.voice.ID, id)
}

func (d *Driver) Variant() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strconv.Itoa(d.speaker)
}

func (d *Driver) SetRate(rate int) {
	d.mu.Lock()
	d.rate = clampSetting(rate)
	d.mu.Unlock()
}

func (d *Driver) Rate() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rate
}

// SetPitch 保存音高设置，piper 不支持音高，对声音无影响
func (d *Driver) SetPitch(pitch int) {
	d.mu.Lock()
	d.pitch = clampSetting(pitch)
	d.mu.Unlock()
}

func (d *Driver) Pitch() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pitch
}

func (d *Driver) SetVolume(volume int) {
	d.mu.Lock()
	d.volume = clampSetting(volume)
	d.mu.Unlock()
}

func (d *Driver) Volume() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volume
}

// SetNoise 覆盖合成噪声参数，来自配置文件
func (d *Driver) SetNoise(noiseScale, noiseWScale float64) {
	d.mu.Lock()
	d.noise = noiseScale
	d.noiseW = noiseWScale
	d.mu.Unlock()
}

// Speak 消费一条语音命令序列
// 文本在索引和停顿边界处合并成 Speak 项入队；
// 序列内的语速/音量命令只影响本序列的后续文本
func (d *Driver) Speak(sequence []SpeechCommand) {
	d.mu.Lock()
	rate := d.rate
	volume := d.volume
	params := d.paramsLocked(rate, volume)
	d.mu.Unlock()

	var buf strings.Builder
	flush := func() {
		if buf.Len() == 0 {
			return
		}
		d.worker.EnqueueSpeak(buf.String(), params)
		buf.Reset()
	}

	for _, cmd := range sequence {
		switch c := cmd.(type) {
		case TextCommand:
			if buf.Len() > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(c.Text)
		case IndexCommand:
			flush()
			d.worker.EnqueueIndex(c.Index)
		case RateCommand:
			flush()
			rate = clampSetting(c.Rate)
			params = d.params(rate, volume)
		case VolumeCommand:
			flush()
			volume = clampSetting(c.Volume)
			params = d.params(rate, volume)
		case BreakCommand:
			// 不支持插入静音，只保证前后文本不被并进同一段
			flush()
		case PitchCommand, CharacterModeCommand, LangChangeCommand:
			// 对 piper 无意义，照常朗读后续文本
		default:
			logging.Warnf("driver: unknown speech command %T", cmd)
		}
	}
	flush()
}

func (d *Driver) params(rate, volume int) synth.Params {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paramsLocked(rate, volume)
}

func (d *Driver) paramsLocked(rate, volume int) synth.Params {
	return synth.Params{
		SpeakerID:   d.speaker,
		LengthScale: RateToLengthScale(rate),
		NoiseScale:  d.noise,
		NoiseWScale: d.noiseW,
		Volume:      float64(volume) / 100.0,
	}
}

// Cancel 立即停止当前朗读并清空待办
func (d *Driver) Cancel() {
	d.worker.Cancel()
}

// Pause 暂停未实现，流式设备无法挂起后继续
func (d *Driver) Pause(paused bool) {}

// Terminate 关停后台线程，最多等待 timeout
func (d *Driver) Terminate(timeout time.Duration) error {
	return d.worker.Shutdown(timeout)
}
