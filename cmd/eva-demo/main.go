package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/spf13/pflag"

	"eva/internal/assistant"
	"eva/internal/command"
	"eva/internal/config"
	"eva/internal/demo"
	"eva/internal/display"
	"eva/internal/osctl"
	"eva/internal/tts"

	log "log/slog"
)

func main() {
	logLevel := cli.StringP("log", "l", "info", "Log level")
	seed := cli.Uint64("seed", uint64(time.Now().UnixNano()), "Random seed for the simulated sources")
	duration := cli.DurationP("duration", "d", 0, "Stop after this long (0 = until interrupted)")
	busURL := cli.StringP("bus", "u", "", "Websocket hub URL for the display bus")
	cli.Parse()

	config.SetupLogging(os.Stdout, *logLevel)
	log.Info("Starting demo mode", "seed", *seed)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	sinks := display.Multi{display.NewConsole(os.Stdout)}
	if *busURL != "" {
		if bus, err := display.DialBus(ctx, *busURL, "EVA-DEMO"); err != nil {
			log.Warn("Display bus unavailable", "err", err)
		} else {
			defer bus.Close()
			sinks = append(sinks, bus)
		}
	}

	voice := demo.NewVoice(demo.SpeechEvery, *seed+1)
	a := assistant.New(assistant.DefaultOptions(), assistant.Deps{
		Camera:      &demo.Camera{},
		Hands:       demo.NewHands(demo.GestureEvery, *seed),
		Objects:     demo.NewDetector(demo.ObjectEvery, *seed+2),
		Listener:    voice,
		Recognizer:  voice,
		Interpreter: command.NewInterpreter(command.DefaultTable(), osctl.DryRun{}),
		Speaker:     tts.Console{},
		Sink:        sinks,
	})

	if err := a.Start(ctx); err != nil {
		log.Error("Failed to start", "err", err)
		os.Exit(1)
	}

	<-ctx.Done()
	a.Stop()
}
