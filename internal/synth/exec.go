package synth

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/abreza/nvda/internal/logging"
	"github.com/abreza/nvda/internal/text"
)

const execChunkBytes = 4096

// Exec 通过 piper 命令行进程合成，stdout 直出原始 PCM
type Exec struct {
	command     string
	modelPath   string
	sampleRate  int
	channels    int
	sentenceMax int
}

func NewExec(command, modelPath string, sampleRate, channels, sentenceMax int) (*Exec, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, errors.New("synth: piper command is empty")
	}
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("synth: model path is empty")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("synth: invalid sample rate %d", sampleRate)
	}
	if channels <= 0 {
		channels = 1
	}
	if sentenceMax <= 0 {
		sentenceMax = 400
	}
	return &Exec{
		command:     command,
		modelPath:   modelPath,
		sampleRate:  sampleRate,
		channels:    channels,
		sentenceMax: sentenceMax,
	}, nil
}

func (e *Exec) Synthesize(input string, params Params, cancelled func() bool) (ChunkStream, error) {
	if cancelled == nil {
		cancelled = func() bool { return false }
	}
	params = params.normalized()

	args := []string{
		"--model", e.modelPath,
		"--output-raw",
		"--length-scale", strconv.FormatFloat(params.LengthScale, 'f', -1, 64),
		"--noise-scale", strconv.FormatFloat(params.NoiseScale, 'f', -1, 64),
		"--noise-w", strconv.FormatFloat(params.NoiseWScale, 'f', -1, 64),
	}
	if params.SpeakerID > 0 {
		args = append(args, "--speaker", strconv.Itoa(params.SpeakerID))
	}

	cmd := exec.Command(e.command, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("synth: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("synth: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %v", ErrBackend, e.command, err)
	}

	// piper 按行消费文本，长文本先切句避免单行过长
	go func() {
		defer stdin.Close()
		for _, sentence := range text.Split(input, e.sentenceMax) {
			if _, err := io.WriteString(stdin, sentence+"\n"); err != nil {
				logging.Debugf("synth: write to piper stdin: %v", err)
				return
			}
		}
	}()

	return &execStream{
		cmd:        cmd,
		stdout:     stdout,
		cancelled:  cancelled,
		sampleRate: e.sampleRate,
		channels:   e.channels,
		volume:     params.Volume,
	}, nil
}

type execStream struct {
	cmd        *exec.Cmd
	stdout     io.ReadCloser
	cancelled  func() bool
	sampleRate int
	channels   int
	volume     float64

	mu   sync.Mutex
	done bool
}

func (s *execStream) Next() (Chunk, error) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return Chunk{}, io.EOF
	}
	s.mu.Unlock()

	if s.cancelled() {
		s.abort()
		return Chunk{}, io.EOF
	}

	buf := make([]byte, execChunkBytes)
	for {
		n, err := s.stdout.Read(buf)
		if n > 0 {
			data := buf[:n]
			applyVolume(data, s.volume)
			return Chunk{
				SampleRate:  s.sampleRate,
				Channels:    s.channels,
				SampleWidth: 2,
				Data:        data,
			}, nil
		}
		if err == io.EOF {
			s.finish()
			return Chunk{}, io.EOF
		}
		if err != nil {
			s.abort()
			return Chunk{}, fmt.Errorf("%w: read piper output: %v", ErrTransient, err)
		}
	}
}

func (s *execStream) Close() error {
	s.abort()
	return nil
}

func (s *execStream) finish() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	s.mu.Unlock()

	if err := s.cmd.Wait(); err != nil {
		logging.Debugf("synth: piper exited: %v", err)
	}
}

func (s *execStream) abort() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	s.mu.Unlock()

	_ = s.stdout.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
}
