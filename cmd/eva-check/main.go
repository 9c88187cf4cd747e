package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/charmbracelet/lipgloss"
	cli "github.com/spf13/pflag"

	"eva/internal/audio/mic"
	"eva/internal/command"
	"eva/internal/config"
	"eva/internal/tts"
	"eva/internal/vision"
)

type check struct {
	name string
	run  func() error
	// optional checks warn instead of failing the run
	optional bool
}

var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

func main() {
	cfg, err := config.Parse("eva-check", os.Args[1:])
	if errors.Is(err, cli.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	config.SetupLogging(os.Stderr, cfg.LogLevel)

	failed := 0
	for _, c := range checks(cfg) {
		err := c.run()
		switch {
		case err == nil:
			fmt.Printf("%s %s\n", passStyle.Render("PASS"), c.name)
		case c.optional:
			fmt.Printf("%s %s: %v\n", warnStyle.Render("WARN"), c.name, err)
		default:
			fmt.Printf("%s %s: %v\n", failStyle.Render("FAIL"), c.name, err)
			failed++
		}
	}

	if failed > 0 {
		fmt.Printf("\n%d check(s) failed\n", failed)
		os.Exit(1)
	}
	fmt.Println("\nAll checks passed")
}

func checks(cfg *config.Config) []check {
	cs := []check{
		{name: "camera", run: func() error {
			vcfg := vision.DefaultConfig()
			vcfg.Camera = cfg.Camera
			rig := vision.NewRig(vcfg)
			if err := rig.Open(); err != nil {
				return err
			}
			return rig.Close()
		}},
		{name: "microphone", run: mic.Probe},
		{name: "hand model", run: fileCheck(cfg.HandModel)},
		{name: "object model", run: fileCheck(cfg.YoloModel)},
		{name: "whisper model", run: fileCheck(cfg.WhisperModel)},
		{name: "rules", run: func() error {
			t := command.DefaultTable()
			if cfg.Rules != "" {
				var err error
				if t, err = command.LoadTable(cfg.Rules); err != nil {
					return err
				}
			}
			return t.Validate()
		}},
	}

	if cfg.WhisperBin != "" {
		cs = append(cs, check{name: "whisper binary", run: toolCheck(cfg.WhisperBin)})
	}
	if runtime.GOOS == "linux" {
		for _, tool := range []string{"pactl", "brightnessctl", "notify-send"} {
			cs = append(cs, check{name: tool, run: toolCheck(tool), optional: true})
		}
	}
	if cfg.TTS == "espeak" {
		cs = append(cs, check{name: "espeak-ng library", run: func() error {
			return tts.Probe(cfg.Voice)
		}, optional: true})
	}
	if cfg.OpenAIKey == "" {
		cs = append(cs, check{name: "OPENAI_API_KEY", run: func() error {
			return errors.New("not set, intent fallback disabled")
		}, optional: true})
	}

	return cs
}

func fileCheck(path string) func() error {
	return func() error {
		st, err := os.Stat(path)
		if err != nil {
			return err
		}
		if st.IsDir() {
			return fmt.Errorf("%s is a directory", path)
		}
		return nil
	}
}

func toolCheck(name string) func() error {
	return func() error {
		_, err := exec.LookPath(name)
		return err
	}
}
