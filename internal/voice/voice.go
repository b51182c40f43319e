package voice

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/abreza/nvda/internal/logging"
)

// Info 磁盘上的一个 piper 语音模型
type Info struct {
	ID           string
	Language     string
	ModelPath    string
	ConfigPath   string
	SampleRate   int
	NumSpeakers  int
	SpeakerIDMap map[string]int
}

// Variant 多说话人模型里的一个说话人
type Variant struct {
	ID   string
	Name string
}

// Variants 返回按说话人编号排序的变体列表
func (v Info) Variants() []Variant {
	if len(v.SpeakerIDMap) > 0 {
		type pair struct {
			name string
			id   int
		}
		pairs := make([]pair, 0, len(v.SpeakerIDMap))
		for name, id := range v.SpeakerIDMap {
			pairs = append(pairs, pair{name: name, id: id})
		}
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].id < pairs[j].id })

		variants := make([]Variant, 0, len(pairs))
		for _, p := range pairs {
			variants = append(variants, Variant{ID: fmt.Sprintf("%d", p.id), Name: p.name})
		}
		return variants
	}

	n := v.NumSpeakers
	if n <= 0 {
		n = 1
	}
	variants := make([]Variant, 0, n)
	for i := 0; i < n; i++ {
		variants = append(variants, Variant{ID: fmt.Sprintf("%d", i), Name: fmt.Sprintf("Speaker %d", i)})
	}
	return variants
}

// voiceConfig 是 *.onnx.json 文件里我们关心的字段
type voiceConfig struct {
	Audio struct {
		SampleRate int `json:"sample_rate"`
	} `json:"audio"`
	Espeak struct {
		Voice string `json:"voice"`
	} `json:"espeak"`
	NumSpeakers  int            `json:"num_speakers"`
	SpeakerIDMap map[string]int `json:"speaker_id_map"`
}

// Registry 扫描并缓存语音目录中的模型信息
type Registry struct {
	dir string

	mu     sync.Mutex
	voices map[string]Info
}

func NewRegistry(dir string) *Registry {
	return &Registry{
		dir:    dir,
		voices: make(map[string]Info),
	}
}

// Scan 重新扫描语音目录，模型为 *.onnx，配套配置为 *.onnx.json
func (r *Registry) Scan() error {
	if _, err := os.Stat(r.dir); err != nil {
		if os.IsNotExist(err) {
			logging.Warnf("voice: directory does not exist: %s", r.dir)
			if mkErr := os.MkdirAll(r.dir, 0o755); mkErr != nil {
				return fmt.Errorf("create voice directory: %w", mkErr)
			}
			r.mu.Lock()
			r.voices = make(map[string]Info)
			r.mu.Unlock()
			return nil
		}
		return fmt.Errorf("stat voice directory: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(r.dir, "*.onnx"))
	if err != nil {
		return fmt.Errorf("glob voices: %w", err)
	}

	found := make(map[string]Info)
	for _, modelPath := range matches {
		configPath := modelPath + ".json"
		data, err := os.ReadFile(configPath)
		if err != nil {
			// 没有配置文件的模型无法使用，跳过
			continue
		}

		var cfg voiceConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			logging.Warnf("voice: could not parse config %s: %v", configPath, err)
			continue
		}

		id := strings.TrimSuffix(filepath.Base(modelPath), ".onnx")
		sampleRate := cfg.Audio.SampleRate
		if sampleRate <= 0 {
			sampleRate = 22050
		}

		found[id] = Info{
			ID:           id,
			Language:     languageFromEspeak(cfg.Espeak.Voice),
			ModelPath:    modelPath,
			ConfigPath:   configPath,
			SampleRate:   sampleRate,
			NumSpeakers:  cfg.NumSpeakers,
			SpeakerIDMap: cfg.SpeakerIDMap,
		}
		logging.Debugf("voice: found %s (%s)", id, found[id].Language)
	}

	r.mu.Lock()
	r.voices = found
	r.mu.Unlock()

	logging.Infof("voice: found %d voice(s) in %s", len(found), r.dir)
	return nil
}

// Voices 返回按 ID 排序的全部语音
func (r *Registry) Voices() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Info, 0, len(r.voices))
	for _, v := range r.voices {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) Get(id string) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.voices[id]
	return v, ok
}

func languageFromEspeak(espeakVoice string) string {
	espeakVoice = strings.TrimSpace(espeakVoice)
	if espeakVoice == "" {
		return "en"
	}
	if idx := strings.Index(espeakVoice, "-"); idx > 0 {
		return espeakVoice[:idx]
	}
	return espeakVoice
}
