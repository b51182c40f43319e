package synth

import (
	"encoding/binary"
	"errors"
)

// Params 单段语音的合成参数
type Params struct {
	SpeakerID   int     // 多说话人模型中的说话人编号，>= 0
	LengthScale float64 // 语速倒数，> 0，1.0 为正常语速
	NoiseScale  float64 // 音频变化噪声，>= 0
	NoiseWScale float64 // 音素时长噪声，>= 0
	Volume      float64 // 音量 [0, 1]
}

// DefaultParams piper 的默认合成参数
func DefaultParams() Params {
	return Params{
		LengthScale: 1.0,
		NoiseScale:  0.667,
		NoiseWScale: 0.8,
		Volume:      1.0,
	}
}

func (p Params) normalized() Params {
	if p.SpeakerID < 0 {
		p.SpeakerID = 0
	}
	if p.LengthScale <= 0 {
		p.LengthScale = 1.0
	}
	if p.NoiseScale < 0 {
		p.NoiseScale = 0
	}
	if p.NoiseWScale < 0 {
		p.NoiseWScale = 0
	}
	if p.Volume < 0 {
		p.Volume = 0
	}
	if p.Volume > 1 {
		p.Volume = 1
	}
	return p
}

// Chunk 一段合成好的音频，附带自身的采样格式
type Chunk struct {
	SampleRate  int
	Channels    int
	SampleWidth int // 每个采样的字节数
	Data        []byte
}

// ChunkStream 拉取式音频块序列
// Next 在序列耗尽时返回 io.EOF；取消谓词在块之间被轮询
type ChunkStream interface {
	Next() (Chunk, error)
	Close() error
}

// Synthesizer 把文本变成惰性音频块序列
// cancelled 在块与块之间被轮询，返回 true 时后端应尽快终止并结束序列
type Synthesizer interface {
	Synthesize(text string, params Params, cancelled func() bool) (ChunkStream, error)
}

var (
	ErrTransient = errors.New("synth: transient backend error")
	ErrBackend   = errors.New("synth: backend unavailable")
)

// applyVolume 对 16 位小端 PCM 应用增益，vol 接近 1 时跳过
func applyVolume(data []byte, vol float64) {
	if vol >= 0.999 {
		return
	}
	for i := 0; i+1 < len(data); i += 2 {
		s := float64(int16(binary.LittleEndian.Uint16(data[i:])))
		binary.LittleEndian.PutUint16(data[i:], uint16(int16(s*vol)))
	}
}
