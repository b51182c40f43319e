package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStartUtteranceAddsLogFields(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	baseLogger = zap.New(core)
	sugar = baseLogger.Sugar()
	synthName.Store("")
	utteranceID = 0

	SetSynthName("piper")
	StartUtterance()
	Infof("hello")

	logs := recorded.All()
	if len(logs) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(logs))
	}

	fields := map[string]interface{}{}
	for _, field := range logs[0].Context {
		fields[field.Key] = field.Interface
		if field.Type == zapcore.StringType {
			fields[field.Key] = field.String
		}
		if field.Type == zapcore.Uint64Type {
			fields[field.Key] = uint64(field.Integer)
		}
	}

	if fields["synth"] != "piper" {
		t.Fatalf("expected synth to be piper, got %v", fields["synth"])
	}
	if fields["utterance_id"] != uint64(1) {
		t.Fatalf("expected utterance_id to be 1, got %v", fields["utterance_id"])
	}
}

func TestSetSynthNameIgnoresBlank(t *testing.T) {
	synthName.Store("piper")
	SetSynthName("   ")
	name, _ := synthName.Load().(string)
	if name != "piper" {
		t.Fatalf("expected blank name to be ignored, got %q", name)
	}
}
