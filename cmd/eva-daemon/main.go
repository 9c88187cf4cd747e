package main

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/spf13/pflag"

	"eva/internal/assistant"
	"eva/internal/audio"
	"eva/internal/audio/mic"
	"eva/internal/command"
	"eva/internal/config"
	"eva/internal/display"
	"eva/internal/gesture"
	"eva/internal/hotkey"
	"eva/internal/ipc"
	"eva/internal/nlu"
	"eva/internal/notify"
	"eva/internal/osctl"
	"eva/internal/proxy"
	"eva/internal/tts"
	"eva/internal/vision"
	"eva/pkg/protocol"
	"eva/pkg/stt"
)

func main() {
	cfg, err := config.Parse("eva-daemon", os.Args[1:])
	if errors.Is(err, cli.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	config.SetupLogging(os.Stdout, cfg.LogLevel)
	log.Info("Booting up", "profile", cfg.Profile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	alert := notify.NewAlerter(nil)
	fail := func(title string, err error) {
		alert.Error(ctx, title, err)
		os.Exit(1)
	}

	table := command.DefaultTable()
	if cfg.Rules != "" {
		if table, err = command.LoadTable(cfg.Rules); err != nil {
			fail("Rules Error", err)
		}
		log.Debug("Loaded rules", "path", cfg.Rules, "rules", len(table))
	}

	ctl := osctl.New(osctl.Config{
		ScreenshotDir: cfg.Screenshots,
		UseMediaKeys:  cfg.MediaKeys,
	})
	var exec command.Executor = ctl

	frames := make(chan *protocol.Message, 8)
	var hub *protocol.Protocol
	if cfg.HubURL != "" {
		hub, err = protocol.Dial(ctx, protocol.Config{
			Node:      cfg.Node,
			Url:       cfg.HubURL,
			Reconnect: 2 * time.Second,
			OnUnsolicited: func(m *protocol.Message) {
				select {
				case frames <- m:
				default:
					log.Warn("Dropped hub frame", "msg", m.String())
				}
			},
		})
		if err != nil {
			fail("Hub Error", err)
		}
		defer hub.Close()
		log.Debug("Connected to hub", "url", cfg.HubURL, "node", cfg.Node)

		if cfg.Forward != "" {
			exec = osctl.Split{Local: ctl, Remote: osctl.NewRemote(hub, cfg.Forward)}
			log.Info("Forwarding OS actions", "node", cfg.Forward)
		}
	}

	interp := command.NewInterpreter(table, exec)
	if cfg.OpenAIKey != "" {
		httpClient, err := proxy.NewClient(cfg.Proxy, 0)
		if err != nil {
			fail("Proxy Error", err)
		}
		interp.WithFallback(nlu.NewClassifier(cfg.OpenAIKey, httpClient))
		log.Debug("Loaded intent fallback")
	}

	classifier, err := gesture.ClassifierFor(cfg.Gestures)
	if err != nil {
		fail("Config Error", err)
	}

	vcfg := vision.DefaultConfig()
	vcfg.Camera = cfg.Camera
	vcfg.HandModel = cfg.HandModel
	vcfg.YoloModel = cfg.YoloModel
	rig := vision.NewRig(vcfg)
	if err := rig.LoadModels(); err != nil {
		alert.Error(ctx, "Model Error", err)
	}
	defer rig.Shutdown()

	deps := assistant.Deps{
		Camera:      rig,
		Interpreter: interp,
		Pointer:     osctl.DesktopPointer{},
	}
	if rig.HasHands() {
		deps.Hands = rig
	}
	if rig.HasObjects() {
		deps.Objects = rig
	}

	if recog, closer, err := recognizer(cfg); err != nil {
		alert.Error(ctx, "Speech Model Error", err)
	} else {
		defer closer()
		deps.Recognizer = recog
	}

	acfg := audio.DefaultConfig()
	acfg.Mode = cfg.ListenMode
	rec := mic.NewRecorder(acfg)
	if err := rec.Init(); err != nil {
		alert.Error(ctx, "Microphone Error", err)
	} else {
		defer rec.Close()
		deps.Listener = rec
	}
	log.Debug("Loaded recorder", "mode", rec.Mode())

	if cfg.TTS != "off" {
		deps.Speaker = tts.New(cfg.TTS, cfg.Voice, cfg.Rate)
		deps.Ducker = osctl.NewDucker(osctl.ExecRunner{}, []string{"espeak", "eva"}, 0.3, 10, 300*time.Millisecond)
	}

	sinks := display.Multi{display.NewConsole(os.Stdout)}
	if cfg.BusURL != "" {
		bus, err := display.DialBus(ctx, cfg.BusURL, cfg.Node)
		if err != nil {
			log.Warn("Display bus unavailable", "err", err)
		} else {
			defer bus.Close()
			sinks = append(sinks, bus)
		}
	}
	deps.Sink = sinks

	opts := assistant.DefaultOptions()
	opts.Gestures = classifier
	opts.GesturesAct = cfg.GesturesAct
	opts.Workers = cfg.Workers
	opts.EnergyGate = cfg.EnergyGate
	opts.Echo = cfg.Echo
	opts.DispatchObjects = cfg.DispatchObjects

	a := assistant.New(opts, deps)

	ctl.OnExit(func() {
		log.Info("Exit requested, shutting down")
		time.AfterFunc(time.Second, stop)
	})

	handle := control(a, alert, chime(cfg.Chime), stop)
	if err := ipc.StartServer(ctx, cfg.Socket, handle); err != nil {
		fail("Control Socket Error", err)
	}
	log.Debug("Listening for control messages", "socket", cfg.Socket)

	if hub != nil {
		go hub.Run(ctx)
		go serveFrames(ctx, hub, frames, handle)
	}

	if !cfg.NoHotkey {
		err := hotkey.Listen(ctx, func() {
			handle(ctx, ipc.ControlMessage{Cmd: ipc.CmdToggle})
		})
		if err != nil {
			log.Warn("Hotkey unavailable", "err", err)
		}
	}

	log.Info("Boot up - successful", "toggle", hotkey.Description, "socket", cfg.Socket)

	<-ctx.Done()

	if a.Running() {
		a.Stop()
	}
	log.Info("Bye")
}

// chime returns a non-blocking cue that plays path, or a no-op when the
// file is not there.
func chime(path string) func() {
	if path == "" {
		return func() {}
	}
	if _, err := os.Stat(path); err != nil {
		log.Debug("Chime disabled", "path", path, "err", err)
		return func() {}
	}

	return func() {
		go func() {
			if err := notify.Chime(path); err != nil {
				log.Warn("Failed to play chime", "err", err)
			}
		}()
	}
}

func recognizer(cfg *config.Config) (stt.Recognizer, func(), error) {
	if cfg.WhisperBin != "" {
		return stt.NewCLI(cfg.WhisperBin, cfg.WhisperModel, cfg.Language), func() {}, nil
	}

	tr, err := stt.NewTranscriber(cfg.WhisperModel, stt.Options{Language: cfg.Language})
	if err != nil {
		return nil, nil, err
	}
	log.Debug("Loaded whisper", "model", cfg.WhisperModel)
	return tr, func() { tr.Close() }, nil
}
