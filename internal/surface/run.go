package surface

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/medremind/internal/medicines"
	"github.com/sandeepkv93/medremind/internal/message"
	"github.com/sandeepkv93/medremind/internal/update"
)

const dayCheckInterval = time.Minute

// Run replays the launch URL (if any), arms every medicine, starts the
// foreground loop and blocks in the TUI until the user quits or ctx ends.
func (s *Surface) Run(ctx context.Context, launchURL string, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.Sync(ctx); err != nil {
		s.log.Warn("initial schedule sync incomplete", "err", err)
	}
	if launchURL != "" {
		intent, err := message.ParseLaunchURL(launchURL)
		if err != nil {
			s.log.Warn("ignoring launch url", "url", launchURL, "err", err)
		} else if err := s.bridge.Replay(ctx, intent); err != nil {
			s.log.Warn("launch replay failed", "err", err)
		}
	}
	s.loop.Start(ctx)

	program := tea.NewProgram(update.NewModel(s, s.bridge.Alerts(), s.mode), append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)...)

	watcher, err := medicines.Watch(ctx, s.book.Path(), 0, s.log)
	if err != nil {
		s.log.Warn("medicine file not watched; edits from other processes need a reload", "err", err)
	} else {
		defer watcher.Close()
		go s.followChanges(ctx, watcher.Changes(), program)
	}
	go s.watchDay(ctx, program)

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("surface: %w", err)
	}
	return nil
}

// followChanges re-arms schedules whenever another process rewrites the
// medicine file.
func (s *Surface) followChanges(ctx context.Context, changes <-chan struct{}, program *tea.Program) {
	for range changes {
		if err := s.Sync(ctx); err != nil {
			s.log.Warn("schedule sync after medicine change failed", "err", err)
		}
		program.Send(update.MedicinesChangedMsg{})
	}
}

// watchDay clears taken flags and re-arms reminders after midnight.
func (s *Surface) watchDay(ctx context.Context, program *tea.Program) {
	ticker := time.NewTicker(dayCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reset, err := s.book.ResetIfNewDay(s.clock.Now())
			if err != nil {
				s.log.Warn("daily reset failed", "err", err)
				continue
			}
			if !reset {
				continue
			}
			s.log.Info("new day; medicines reset")
			if err := s.Sync(ctx); err != nil {
				s.log.Warn("schedule sync after reset failed", "err", err)
			}
			program.Send(update.MedicinesChangedMsg{})
		}
	}
}
