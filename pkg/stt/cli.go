package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"eva/pkg/audioconv"
)

// CLI shells out to a whisper.cpp binary with a temporary WAV file.
type CLI struct {
	Bin      string
	Model    string
	Language string
}

func NewCLI(bin, model, language string) *CLI {
	return &CLI{Bin: bin, Model: model, Language: language}
}

func (c *CLI) args(wav string) []string {
	args := []string{"-m", c.Model, "-f", wav, "-nt", "-np"}
	if c.Language != "" {
		args = append(args, "-l", c.Language)
	}
	return args
}

func (c *CLI) Recognize(ctx context.Context, pcm []float32) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}

	path, err := audioconv.WriteTempWAV(pcm, audioconv.TargetRate)
	if err != nil {
		return "", fmt.Errorf("write temp wav: %w", err)
	}
	defer os.Remove(path)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Bin, c.args(path)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		msg := bytes.TrimSpace(stderr.Bytes())
		if len(msg) > 200 {
			msg = msg[len(msg)-200:]
		}
		return "", errors.Join(fmt.Errorf("%s failed: %w", c.Bin, err), errors.New(string(msg)))
	}

	return Clean(stdout.String()), nil
}
