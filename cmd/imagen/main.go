// Command imagen drives one generation from the terminal and keeps the same
// history as the service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"imagestudio/internal/catalog"
	"imagestudio/internal/history"
	"imagestudio/internal/infra"
	"imagestudio/internal/providers/genai"
	"imagestudio/internal/storage"
	"imagestudio/internal/studio"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		promptFlag    string
		styleFlag     string
		aspectFlag    string
		outFlag       string
		listFlag      bool
		selectFlag    string
		ephemeralFlag bool
		timeoutFlag   time.Duration
	)
	flag.StringVar(&promptFlag, "prompt", "", "Text describing the image")
	flag.StringVar(&styleFlag, "style", catalog.DefaultStyle().Label, "Style preset label ("+labels(catalog.StylePresets)+")")
	flag.StringVar(&aspectFlag, "aspect", catalog.DefaultAspectRatio().Value, "Aspect ratio ("+labels(catalog.AspectRatios)+")")
	flag.StringVar(&outFlag, "out", "", "Write the image to this path (defaults to the download name)")
	flag.BoolVar(&listFlag, "history", false, "List the stored history and exit")
	flag.StringVar(&selectFlag, "select", "", "Write the image of the history entry with this id and exit")
	flag.BoolVar(&ephemeralFlag, "ephemeral", false, "Keep history in memory only")
	flag.DurationVar(&timeoutFlag, "timeout", 2*time.Minute, "Give up on the generation after this long")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "imagen").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var kv storage.KV = storage.NewMemoryStore()
	if !ephemeralFlag {
		opened, closeKV, err := storage.Open(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("open history storage: %w", err)
		}
		defer closeKV()
		kv = opened
	}
	historyStore, err := history.NewStore(kv, history.Options{Key: cfg.HistoryKey, Logger: &logger})
	if err != nil {
		return err
	}

	client, err := genai.NewClient(ctx, genai.Options{APIKey: cfg.GeminiAPIKey, Model: cfg.ImagenModel, Logger: &logger})
	if err != nil {
		return err
	}
	ctrl, err := studio.New(ctx, client, historyStore, studio.WithLogger(&logger))
	if err != nil {
		return err
	}

	switch {
	case listFlag:
		printHistory(ctrl.View().History)
		return nil
	case selectFlag != "":
		if !ctrl.SelectHistory(selectFlag) {
			return fmt.Errorf("no history entry with id %q", selectFlag)
		}
		return writeImage(ctrl.View(), outFlag)
	}

	style, ok := catalog.StyleByLabel(styleFlag)
	if !ok {
		return fmt.Errorf("unknown style %q", styleFlag)
	}
	if err := ctrl.SetForm(promptFlag, style.Value, aspectFlag); err != nil {
		return err
	}
	if strings.TrimSpace(promptFlag) == "" {
		return errors.New("-prompt is required")
	}

	genCtx, cancel := context.WithTimeout(ctx, timeoutFlag)
	defer cancel()
	fmt.Fprintln(os.Stderr, "Generating...")
	ctrl.Generate(genCtx)

	v := ctrl.View()
	if v.Status == studio.StatusFailed {
		return fmt.Errorf("generation failed: %s", v.Error)
	}
	return writeImage(v, outFlag)
}

func writeImage(v studio.View, out string) error {
	data, _, err := studio.DecodeDataURL(v.ImageURL)
	if err != nil {
		return err
	}
	if out == "" {
		out = v.DownloadName
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	fmt.Println(out)
	return nil
}

func printHistory(entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Println("history is empty")
		return
	}
	for _, e := range entries {
		label := e.Style
		if preset, ok := catalog.StyleByValue(e.Style); ok {
			label = preset.Label
		}
		fmt.Printf("%s\t%s\t%s\t%s\n", e.ID, e.AspectRatio, label, e.Prompt)
	}
}

func labels(presets []catalog.Preset) string {
	out := make([]string, 0, len(presets))
	for _, p := range presets {
		out = append(out, p.Label)
	}
	return strings.Join(out, ", ")
}
