package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/sandeepkv93/medremind/internal/message"
	"github.com/sandeepkv93/medremind/internal/model"
)

type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

var ErrUnsupportedPlatform = errors.New("delivery: desktop notifications unsupported on this platform")

// Notification action ids.
const (
	ActionTaken = "taken"
	ActionLater = "later"
)

const defaultActionTimeout = time.Hour

type Action struct {
	ID    string
	Title string
}

type Notification struct {
	Title              string
	Body               string
	Tag                string
	RequireInteraction bool
	Actions            []Action
}

// Notifier displays system notifications. Showing a notification with a
// tag that is already visible replaces it.
type Notifier interface {
	Permission() Permission
	Show(ctx context.Context, n Notification) error
}

func ReminderNotification(s model.Schedule) Notification {
	return Notification{
		Title:              "Time for your medicine",
		Body:               fmt.Sprintf("Take %s (%s)", displayName(s.Name, s.ID), s.Time),
		Tag:                model.Tag(s.ID),
		RequireInteraction: true,
		Actions: []Action{
			{ID: ActionTaken, Title: "Taken"},
			{ID: ActionLater, Title: "Remind me later"},
		},
	}
}

func FollowUpNotification(m model.Medicine) Notification {
	return Notification{
		Title:              "Missed dose?",
		Body:               fmt.Sprintf("You have not marked %s as taken yet", displayName(m.Name, m.ID)),
		Tag:                model.ReminderTag(m.ID),
		RequireInteraction: true,
		Actions:            []Action{{ID: ActionTaken, Title: "Taken"}},
	}
}

func displayName(name, id string) string {
	if strings.TrimSpace(name) == "" {
		return id
	}
	return name
}

type NoopNotifier struct{}

func (NoopNotifier) Permission() Permission                   { return PermissionDenied }
func (NoopNotifier) Show(context.Context, Notification) error { return nil }

// DesktopNotifier shells out to notify-send on Linux and osascript on
// macOS. On Linux, when OnAction is set, notifications carry their
// actions and the choice the user makes is passed to OnAction with the
// notification tag. osascript notifications have no actions.
type DesktopNotifier struct {
	GOOS     string
	LookPath func(string) (string, error)
	Run      func(ctx context.Context, name string, args ...string) error
	// Output runs a notifier that blocks until the user picks an action
	// and returns what it printed.
	Output        func(ctx context.Context, name string, args ...string) ([]byte, error)
	OnAction      func(action, tag string)
	ActionTimeout time.Duration
	Logger        *slog.Logger
}

func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{
		GOOS:     runtime.GOOS,
		LookPath: exec.LookPath,
		Run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
		Output: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

func (d *DesktopNotifier) binary() string {
	switch d.GOOS {
	case "linux", "freebsd", "openbsd":
		return "notify-send"
	case "darwin":
		return "osascript"
	default:
		return ""
	}
}

func (d *DesktopNotifier) Permission() Permission {
	bin := d.binary()
	if bin == "" {
		return PermissionDenied
	}
	if _, err := d.LookPath(bin); err != nil {
		return PermissionDenied
	}
	return PermissionGranted
}

func (d *DesktopNotifier) Show(ctx context.Context, n Notification) error {
	switch d.binary() {
	case "notify-send":
		args := []string{"--app-name=medremind"}
		if n.RequireInteraction {
			args = append(args, "--urgency=critical")
		}
		if n.Tag != "" {
			args = append(args, "--hint=string:x-canonical-private-synchronous:"+n.Tag)
		}
		if d.waitsForAction(n) {
			for _, a := range n.Actions {
				args = append(args, "--action="+a.ID+"="+a.Title)
			}
			args = append(args, "--wait", n.Title, n.Body)
			go d.awaitAction(ctx, n.Tag, args)
			return nil
		}
		args = append(args, n.Title, n.Body)
		return d.Run(ctx, "notify-send", args...)
	case "osascript":
		script := fmt.Sprintf(`display notification "%s" with title "%s" sound name "default"`,
			escapeAppleScript(n.Body), escapeAppleScript(n.Title))
		return d.Run(ctx, "osascript", "-e", script)
	default:
		return ErrUnsupportedPlatform
	}
}

func (d *DesktopNotifier) waitsForAction(n Notification) bool {
	return len(n.Actions) > 0 && d.OnAction != nil && d.Output != nil
}

// awaitAction blocks on notify-send until the user picks an action or the
// notification is dismissed.
func (d *DesktopNotifier) awaitAction(ctx context.Context, tag string, args []string) {
	timeout := d.ActionTimeout
	if timeout <= 0 {
		timeout = defaultActionTimeout
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	out, err := d.Output(wctx, "notify-send", args...)
	if err != nil {
		d.logger().Debug("notification closed without action", "tag", tag, "err", err)
		return
	}
	action := strings.TrimSpace(string(out))
	if action == "" {
		return
	}
	d.OnAction(action, tag)
}

func (d *DesktopNotifier) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// LaunchOnTaken returns an action handler that opens a surface asking it
// to mark the notification's medicine as taken.
func LaunchOnTaken(l Launcher, logger *slog.Logger) func(action, tag string) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(action, tag string) {
		if action != ActionTaken || l == nil {
			logger.Debug("notification action ignored", "action", action, "tag", tag)
			return
		}
		url := message.TakenURL(tag)
		if err := l.Launch(context.Background(), url); err != nil {
			logger.Warn("taken launch failed", "tag", tag, "url", url, "err", err)
			return
		}
		logger.Info("dose taken from notification", "tag", tag)
	}
}

func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
