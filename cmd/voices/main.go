package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/abreza/nvda/internal/config"
	"github.com/abreza/nvda/internal/logging"
	"github.com/abreza/nvda/internal/voice"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Config file path")
	dir := flag.String("dir", "", "Voice directory (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	voiceDir := cfg.Voices.Dir
	if strings.TrimSpace(*dir) != "" {
		voiceDir = strings.TrimSpace(*dir)
	}

	registry := voice.NewRegistry(voiceDir)
	if err := registry.Scan(); err != nil {
		logging.Fatalf("scan voices: %v", err)
	}

	voices := registry.Voices()
	if len(voices) == 0 {
		fmt.Printf("No voices found in %s\n", voiceDir)
		fmt.Println("Place piper model pairs (*.onnx + *.onnx.json) there and rerun.")
		return
	}

	fmt.Printf("%-32s %-6s %-8s %s\n", "VOICE", "LANG", "RATE", "VARIANTS")
	for _, v := range voices {
		variants := v.Variants()
		names := make([]string, 0, len(variants))
		for _, variant := range variants {
			names = append(names, fmt.Sprintf("%s:%s", variant.ID, variant.Name))
		}
		fmt.Printf("%-32s %-6s %-8d %s\n", v.ID, v.Language, v.SampleRate, strings.Join(names, ", "))
	}
}
