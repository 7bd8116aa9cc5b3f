package delivery

import (
	"context"
	"errors"
	"os/exec"
	"strings"
)

var ErrNoLauncher = errors.New("delivery: no surface launch command configured")

// Launcher opens a new foreground surface at url.
type Launcher interface {
	Launch(ctx context.Context, url string) error
}

const URLPlaceholder = "{url}"

// CommandLauncher starts Command with {url} substituted, or with the url
// appended when no argument carries the placeholder. The child outlives
// the caller's context.
type CommandLauncher struct {
	Command []string
	Start   func(name string, args ...string) error
}

func NewCommandLauncher(command []string) *CommandLauncher {
	return &CommandLauncher{
		Command: command,
		Start: func(name string, args ...string) error {
			cmd := exec.Command(name, args...)
			if err := cmd.Start(); err != nil {
				return err
			}
			go func() { _ = cmd.Wait() }()
			return nil
		},
	}
}

func (l *CommandLauncher) Launch(ctx context.Context, url string) error {
	if len(l.Command) == 0 {
		return ErrNoLauncher
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	args := make([]string, 0, len(l.Command))
	substituted := false
	for _, arg := range l.Command[1:] {
		if strings.Contains(arg, URLPlaceholder) {
			arg = strings.ReplaceAll(arg, URLPlaceholder, url)
			substituted = true
		}
		args = append(args, arg)
	}
	if !substituted {
		args = append(args, url)
	}
	return l.Start(l.Command[0], args...)
}
