package display

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type Sink interface {
	Render(v View) error
}

type Multi []Sink

func (m Multi) Render(v View) error {
	var errs []error
	for _, s := range m {
		if err := s.Render(v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle   = lipgloss.NewStyle().Width(15).Foreground(lipgloss.Color("8"))
	runningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	stoppedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Console prints the board whenever it changes.
type Console struct {
	w    io.Writer
	last View
	seen bool
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Render(v View) error {
	if c.seen && v == c.last {
		return nil
	}
	c.last, c.seen = v, true

	_, err := fmt.Fprintln(c.w, format(v))
	return err
}

func format(v View) string {
	status := stoppedStyle.Render(v.Status.String())
	if v.Status.Running {
		status = runningStyle.Render(v.Status.String())
	}

	rows := []string{
		titleStyle.Render("EVA"),
		row("Status", status),
		row("Gesture", v.Gesture),
		row("Speech", v.Speech),
		row("Transcription", v.Transcription),
		row("Object", v.Object),
	}
	return boxStyle.Render(strings.Join(rows, "\n"))
}

func row(name, value string) string {
	return labelStyle.Render(name) + value
}
