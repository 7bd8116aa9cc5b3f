package update

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/medremind/internal/commands"
)

func (m Model) handlePaletteKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closePalette()
		m.Status = StatusBar{Text: "command palette closed"}
		return m, nil
	case "enter":
		m.Palette.Input = m.commandInput.Value()
		return m.executePaletteCommand()
	default:
		if msg.Type == tea.KeyRunes {
			m.commandInput.SetValue(m.commandInput.Value() + string(msg.Runes))
			m.Palette.Input = m.commandInput.Value()
			return m, nil
		}
		var cmd tea.Cmd
		m.commandInput, cmd = m.commandInput.Update(msg)
		m.Palette.Input = m.commandInput.Value()
		return m, cmd
	}
}

func (m *Model) closePalette() {
	m.Palette.Active = false
	m.Palette.Input = ""
	m.commandInput.SetValue("")
	m.commandInput.Blur()
}

// executePaletteCommand parses the palette input and returns the command
// that carries it out. Commands that touch storage or the network run
// off the update loop.
func (m Model) executePaletteCommand() (Model, tea.Cmd) {
	raw := strings.TrimSpace(m.Palette.Input)
	m.closePalette()

	cmd, err := commands.Parse(raw)
	if err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		return m, nil
	}

	var next tea.Cmd
	res, err := commands.Execute(cmd, commands.Handlers{
		Add: func(a commands.AddArgs) (commands.Result, error) {
			next = m.addCmd(a)
			return commands.Result{Message: fmt.Sprintf("adding %s at %s", a.Name, a.Time)}, nil
		},
		Take: func(a commands.TargetArgs) (commands.Result, error) {
			id := a.Target
			if id == "" {
				id = m.alertOrSelectedID()
			}
			if id == "" {
				return commands.Result{}, &commands.CommandError{Code: commands.ErrCodeInvalidArgument, Message: "no medicine selected"}
			}
			next = m.takeCmd(id)
			return commands.Result{Message: "marking " + id + " as taken"}, nil
		},
		Later: func(a commands.TargetArgs) (commands.Result, error) {
			id := a.Target
			if id == "" && m.Alert != nil {
				id = m.Alert.Medicine.ID
			}
			if id == "" {
				return commands.Result{}, &commands.CommandError{Code: commands.ErrCodeInvalidArgument, Message: "no reminder to postpone"}
			}
			m.actions.Later(id)
			if m.Alert != nil && m.Alert.Medicine.ID == id {
				m.Alert = nil
			}
			return commands.Result{Message: "will remind again"}, nil
		},
		Remove: func(a commands.TargetArgs) (commands.Result, error) {
			next = m.removeCmd(a.Target)
			return commands.Result{Message: "removing " + a.Target}, nil
		},
		Test: func(a commands.TargetArgs) (commands.Result, error) {
			next = m.testCmd(a.Target)
			return commands.Result{Message: "testing reminder for " + a.Target}, nil
		},
		Check: func() (commands.Result, error) {
			next = m.checkCmd()
			return commands.Result{Message: "checking schedules"}, nil
		},
		Ping: func() (commands.Result, error) {
			next = m.pingCmd()
			return commands.Result{Message: "pinging scheduler"}, nil
		},
	})
	if err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		return m, nil
	}
	m.Status = StatusBar{Text: res.Message}
	return m, next
}

func (m Model) addCmd(a commands.AddArgs) tea.Cmd {
	actions := m.actions
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		med, err := actions.Add(ctx, a.Name, a.Time, a.Daily)
		if err != nil {
			return AppErrorMsg{Err: fmt.Errorf("add medicine: %w", err)}
		}
		return MedicineAddedMsg{Medicine: med}
	}
}

func (m Model) removeCmd(id string) tea.Cmd {
	actions := m.actions
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if err := actions.Remove(ctx, id); err != nil {
			return AppErrorMsg{Err: fmt.Errorf("remove %s: %w", id, err)}
		}
		return MedicinesChangedMsg{}
	}
}
