package synth

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/abreza/nvda/internal/logging"
)

const remoteHandshakeTimeout = 10 * time.Second

// Remote 通过 websocket 连接 piper 服务端合成
// 每段语音建立一条连接：先发 synthesize 指令，之后二进制帧即为 PCM 块，
// 文本帧携带 started/finished/failed 事件
type Remote struct {
	endpoint string
	dialer   *websocket.Dialer
}

func NewRemote(endpoint string) (*Remote, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("synth: remote endpoint is empty")
	}
	return &Remote{
		endpoint: endpoint,
		dialer: &websocket.Dialer{
			HandshakeTimeout: remoteHandshakeTimeout,
		},
	}, nil
}

type remoteCommand struct {
	Action string       `json:"action"`
	TaskID string       `json:"task_id"`
	Text   string       `json:"text"`
	Params remoteParams `json:"params"`
}

type remoteParams struct {
	SpeakerID   int     `json:"speaker_id"`
	LengthScale float64 `json:"length_scale"`
	NoiseScale  float64 `json:"noise_scale"`
	NoiseWScale float64 `json:"noise_w_scale"`
}

type remoteEvent struct {
	Event       string `json:"event"`
	TaskID      string `json:"task_id"`
	SampleRate  int    `json:"sample_rate"`
	Channels    int    `json:"channels"`
	SampleWidth int    `json:"sample_width"`
	Message     string `json:"message"`
}

func (r *Remote) Synthesize(text string, params Params, cancelled func() bool) (ChunkStream, error) {
	if cancelled == nil {
		cancelled = func() bool { return false }
	}
	params = params.normalized()

	conn, resp, err := r.dialer.Dial(r.endpoint, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: unauthorized", ErrBackend)
		}
		return nil, fmt.Errorf("%w: dial %s: %v", ErrBackend, r.endpoint, err)
	}

	cmd := remoteCommand{
		Action: "synthesize",
		TaskID: newTaskID(),
		Text:   text,
		Params: remoteParams{
			SpeakerID:   params.SpeakerID,
			LengthScale: params.LengthScale,
			NoiseScale:  params.NoiseScale,
			NoiseWScale: params.NoiseWScale,
		},
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: send synthesize: %v", ErrTransient, err)
	}

	started, err := readRemoteStart(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &remoteStream{
		conn:        conn,
		cancelled:   cancelled,
		sampleRate:  started.SampleRate,
		channels:    started.Channels,
		sampleWidth: started.SampleWidth,
		volume:      params.Volume,
	}, nil
}

func readRemoteStart(conn *websocket.Conn) (remoteEvent, error) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return remoteEvent{}, fmt.Errorf("%w: read start event: %v", ErrTransient, err)
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var event remoteEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return remoteEvent{}, fmt.Errorf("%w: parse start event: %v", ErrTransient, err)
		}
		switch event.Event {
		case "started":
			if event.SampleRate <= 0 {
				event.SampleRate = 22050
			}
			if event.Channels <= 0 {
				event.Channels = 1
			}
			if event.SampleWidth <= 0 {
				event.SampleWidth = 2
			}
			return event, nil
		case "failed":
			return remoteEvent{}, fmt.Errorf("%w: %s", ErrBackend, event.Message)
		default:
			// 忽略未知事件，等待 started
		}
	}
}

type remoteStream struct {
	conn        *websocket.Conn
	cancelled   func() bool
	sampleRate  int
	channels    int
	sampleWidth int
	volume      float64

	mu   sync.Mutex
	done bool
}

func (s *remoteStream) Next() (Chunk, error) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return Chunk{}, io.EOF
	}
	s.mu.Unlock()

	if s.cancelled() {
		s.shutdown()
		return Chunk{}, io.EOF
	}

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			s.shutdown()
			return Chunk{}, fmt.Errorf("%w: read audio frame: %v", ErrTransient, err)
		}

		switch messageType {
		case websocket.BinaryMessage:
			if len(data) == 0 {
				continue
			}
			applyVolume(data, s.volume)
			return Chunk{
				SampleRate:  s.sampleRate,
				Channels:    s.channels,
				SampleWidth: s.sampleWidth,
				Data:        data,
			}, nil
		case websocket.TextMessage:
			var event remoteEvent
			if err := json.Unmarshal(data, &event); err != nil {
				logging.Debugf("synth: malformed remote event: %v", err)
				continue
			}
			switch event.Event {
			case "finished":
				s.shutdown()
				return Chunk{}, io.EOF
			case "failed":
				s.shutdown()
				return Chunk{}, fmt.Errorf("%w: %s", ErrBackend, event.Message)
			}
		}
	}
}

func (s *remoteStream) Close() error {
	s.shutdown()
	return nil
}

func (s *remoteStream) shutdown() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	s.mu.Unlock()
	_ = s.conn.Close()
}

func newTaskID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "task-unknown"
	}
	return hex.EncodeToString(buf)
}
