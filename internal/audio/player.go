package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"
)

var ErrNoOutput = errors.New("audio: no output available")

type Player interface {
	Play(ctx context.Context) error
}

// CommandPlayer runs an external player such as paplay or afplay.
type CommandPlayer struct {
	Command []string
	Timeout time.Duration
	Run     func(ctx context.Context, name string, args ...string) error
}

func NewCommandPlayer(command []string) *CommandPlayer {
	return &CommandPlayer{
		Command: command,
		Timeout: 10 * time.Second,
		Run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

func (p *CommandPlayer) Play(ctx context.Context) error {
	if len(p.Command) == 0 {
		return ErrNoOutput
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	if err := p.Run(ctx, p.Command[0], p.Command[1:]...); err != nil {
		return fmt.Errorf("audio: %s: %w", p.Command[0], err)
	}
	return nil
}

// BellPlayer rings the terminal bell.
type BellPlayer struct {
	W io.Writer
}

func (b BellPlayer) Play(context.Context) error {
	if b.W == nil {
		return ErrNoOutput
	}
	_, err := io.WriteString(b.W, "\a")
	return err
}

// Fallback tries each player in order until one succeeds.
type Fallback []Player

func (f Fallback) Play(ctx context.Context) error {
	errs := make([]error, 0, len(f))
	for _, p := range f {
		if p == nil {
			continue
		}
		err := p.Play(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return ErrNoOutput
	}
	return errors.Join(errs...)
}
