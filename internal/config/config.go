// Package config gathers daemon settings from flags, an env file and the
// selected profile.
package config

import (
	"fmt"
	"io"
	log "log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"

	"eva/internal/audio"
	"eva/internal/ipc"
)

type Profile string

const (
	// ProfileMain listens for whole phrases and uses the full gesture set.
	ProfileMain Profile = "main"
	// ProfileEva listens in fixed chunks, uses the compact gesture set and
	// speaks its replies.
	ProfileEva Profile = "eva"
)

// Speech defaults. EvaVoice is espeak's female English variant.
const (
	EvaVoice    = "en+f3"
	DefaultRate = 170
)

type Config struct {
	Profile  Profile
	LogLevel string
	EnvFile  string
	Socket   string

	Camera    int
	HandModel string
	YoloModel string

	WhisperModel string
	WhisperBin   string
	Language     string

	Rules       string
	Screenshots string
	Chime       string
	BusURL      string
	HubURL      string
	Node        string
	Forward     string
	Proxy       string

	TTS   string
	Voice string
	Rate  int

	NoHotkey    bool
	MediaKeys   bool
	GesturesAct bool
	Workers     int

	OpenAIKey string

	// Set by the profile.
	ListenMode      audio.Mode
	Gestures        string
	EnergyGate      float64
	Echo            bool
	DispatchObjects bool
}

func (c *Config) applyProfile() error {
	switch c.Profile {
	case ProfileMain:
		c.ListenMode = audio.ModePhrase
		c.Gestures = "standard"
	case ProfileEva:
		c.ListenMode = audio.ModeChunk
		c.Gestures = "compact"
		c.EnergyGate = 0.001
		c.Echo = true
		c.DispatchObjects = true
		if c.Voice == "" {
			c.Voice = EvaVoice
		}
	default:
		return fmt.Errorf("unknown profile %q (want main or eva)", c.Profile)
	}
	return nil
}

// Parse reads args (without the program name). Values in the env file do
// not override variables already set in the environment.
func Parse(name string, args []string) (*Config, error) {
	fs := cli.NewFlagSet(name, cli.ContinueOnError)

	var c Config
	var profile string
	fs.StringVarP(&profile, "profile", "P", string(ProfileMain), "Behaviour profile: main or eva")
	fs.StringVarP(&c.LogLevel, "log", "l", "info", "Log level")
	fs.StringVarP(&c.EnvFile, "env", "e", ".env", "Env file path")
	fs.StringVarP(&c.Socket, "socket", "s", ipc.SocketPath, "Control socket path")
	fs.IntVarP(&c.Camera, "camera", "c", 0, "Camera device index")
	fs.StringVar(&c.HandModel, "hand-model", "models/hand_landmark.onnx", "Hand landmark ONNX model")
	fs.StringVar(&c.YoloModel, "yolo-model", "models/yolov8n.onnx", "YOLOv8 ONNX model")
	fs.StringVar(&c.WhisperModel, "whisper-model", "models/ggml-base.en.bin", "Whisper ggml model")
	fs.StringVar(&c.WhisperBin, "whisper-bin", "", "Use this whisper.cpp executable instead of the bindings")
	fs.StringVar(&c.Language, "language", "en", "Speech language")
	fs.StringVarP(&c.Rules, "rules", "r", "", "YAML command rules (default: built-in table)")
	fs.StringVar(&c.Screenshots, "screenshots", ".", "Screenshot directory")
	fs.StringVar(&c.Chime, "chime", "beep.mp3", "mp3 played when the assistant starts listening (empty disables)")
	fs.StringVarP(&c.BusURL, "bus", "u", "", "Websocket hub URL for the display bus")
	fs.StringVar(&c.HubURL, "hub", "", "Websocket hub URL for the frame protocol")
	fs.StringVar(&c.Node, "node", "EVA", "Node name on the hub")
	fs.StringVar(&c.Forward, "forward", "", "Hub node that executes OS actions instead of this machine")
	fs.StringVarP(&c.Proxy, "proxy", "p", "", "SOCKS5 proxy for the intent fallback")
	fs.StringVar(&c.TTS, "tts", "espeak", "Speech output: espeak, console or off")
	fs.StringVar(&c.Voice, "voice", "", "espeak voice name")
	fs.IntVar(&c.Rate, "rate", DefaultRate, "Speech rate in words per minute")
	fs.BoolVar(&c.MediaKeys, "media-keys", runtime.GOOS != "linux", "Change volume with media key taps instead of pactl")
	fs.BoolVar(&c.NoHotkey, "no-hotkey", false, "Do not register the global hotkey")
	fs.BoolVar(&c.GesturesAct, "gestures-act", true, "Run commands for recognised gestures")
	fs.IntVarP(&c.Workers, "workers", "w", 4, "Blocking-call worker pool size")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	c.Profile = Profile(strings.ToLower(profile))
	if err := c.applyProfile(); err != nil {
		return nil, err
	}
	if c.Workers < 1 {
		return nil, fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	switch c.TTS {
	case "espeak", "console", "off":
	default:
		return nil, fmt.Errorf("unknown tts backend %q", c.TTS)
	}

	if err := godotenv.Load(c.EnvFile); err != nil && !os.IsNotExist(err) {
		log.Warn("Failed to read env file", "path", c.EnvFile, "err", err)
	}
	c.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	if c.BusURL == "" {
		c.BusURL = os.Getenv("EVA_BUS_URL")
	}
	if c.HubURL == "" {
		c.HubURL = os.Getenv("EVA_HUB_URL")
	}
	if c.Forward != "" && c.HubURL == "" {
		return nil, fmt.Errorf("--forward %s needs a hub (--hub or EVA_HUB_URL)", c.Forward)
	}

	return &c, nil
}

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

// SetupLogging installs a tint handler as the default logger.
func SetupLogging(w io.Writer, level string) {
	lvl, ok := logLevelMap[strings.ToLower(level)]
	if !ok {
		lvl = log.LevelInfo
	}
	log.SetDefault(log.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: "15:04:05",
	})))
}
