// Package hotkey binds the global Ctrl+Shift+E shortcut.
package hotkey

import (
	"context"
	"fmt"
	log "log/slog"
	"runtime"

	"golang.design/x/hotkey"
)

const Description = "Ctrl+Shift+E"

// Listen registers the shortcut and calls fn on every key press until ctx
// is done. On macOS registration is skipped: the library needs the main
// thread there, which the daemon does not give up.
func Listen(ctx context.Context, fn func()) error {
	if runtime.GOOS == "darwin" {
		log.Info("Hotkey disabled on macOS")
		return nil
	}

	hk := hotkey.New([]hotkey.Modifier{hotkey.ModCtrl, hotkey.ModShift}, hotkey.KeyE)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("register %s: %w", Description, err)
	}

	go func() {
		defer hk.Unregister()
		for {
			select {
			case <-ctx.Done():
				return
			case <-hk.Keydown():
				log.Debug("Hotkey pressed", "shortcut", Description)
				fn()
			}
		}
	}()

	log.Info("Hotkey registered", "shortcut", Description)
	return nil
}
