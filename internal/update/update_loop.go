package update

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/medremind/internal/bridge"
	"github.com/sandeepkv93/medremind/internal/model"
	"github.com/sandeepkv93/medremind/internal/views"
)

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadMedicinesCmd()}
	if m.alerts != nil {
		cmds = append(cmds, waitForAlertCmd(m.alerts))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		gesture := m.gestureCmd()
		next, cmd := m.handleKey(typed)
		return next, tea.Batch(gesture, cmd)
	case SetStatusMsg:
		m.Status = StatusBar{Text: typed.Text, IsError: typed.IsError}
		return m, nil
	case ClearStatusMsg:
		m.Status = StatusBar{}
		return m, nil
	case AppErrorMsg:
		m.LastError = typed.Err
		if typed.Err != nil {
			m.Status = StatusBar{Text: typed.Err.Error(), IsError: true}
		}
		return m, nil
	case AlertMsg:
		alert := typed.Alert
		m.Alert = &alert
		if alert.FollowUp {
			m.Status = StatusBar{Text: fmt.Sprintf("still waiting on %s", alert.Medicine.Name)}
		} else {
			m.Status = StatusBar{Text: fmt.Sprintf("time to take %s", alert.Medicine.Name)}
		}
		return m, waitForAlertCmd(m.alerts)
	case alertsClosedMsg:
		m.alerts = nil
		return m, nil
	case MedicinesChangedMsg:
		return m, m.loadMedicinesCmd()
	case MedicinesLoadedMsg:
		m.Medicines = typed.Items
		sortMedicines(m.Medicines)
		m.syncBubbleData()
		if m.Alert != nil && isTaken(m.Medicines, m.Alert.Medicine.ID) {
			m.Alert = nil
		}
		return m, nil
	case CheckDoneMsg:
		res := typed.Result
		m.LastCheck = &res
		text := fmt.Sprintf("checked %d schedule(s); reminder shown: %t", res.Schedules, res.NotificationShown)
		if res.Skipped {
			text = "check skipped; a reminder was just shown"
		}
		m.Status = StatusBar{Text: text}
		return m, nil
	case MedicineAddedMsg:
		m.Status = StatusBar{Text: fmt.Sprintf("added %s at %s", typed.Medicine.Name, typed.Medicine.Time)}
		return m, m.loadMedicinesCmd()
	case DoseTakenMsg:
		if m.Alert != nil && m.Alert.Medicine.ID == typed.Medicine.ID {
			m.Alert = nil
		}
		m.Status = StatusBar{Text: fmt.Sprintf("marked %s as taken", typed.Medicine.Name)}
		return m, m.loadMedicinesCmd()
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.Palette.Active {
		if msg.String() == m.Keys.Help {
			m.HelpVisible = !m.HelpVisible
			return m, nil
		}
		return m.handlePaletteKey(msg)
	}

	switch msg.String() {
	case "/":
		m.Palette.Active = true
		m.Palette.Input = ""
		m.commandInput.Focus()
		m.commandInput.SetValue("")
		m.Status = StatusBar{Text: "command palette active"}
		return m, nil
	case m.Keys.Help:
		m.HelpVisible = !m.HelpVisible
		return m, nil
	case m.Keys.Take:
		id := m.alertOrSelectedID()
		if id == "" {
			return m, statusCmd("nothing to mark as taken", true)
		}
		return m, m.takeCmd(id)
	case m.Keys.Later:
		if m.Alert == nil {
			return m, nil
		}
		m.actions.Later(m.Alert.Medicine.ID)
		m.Status = StatusBar{Text: fmt.Sprintf("will remind about %s again", m.Alert.Medicine.Name)}
		m.Alert = nil
		return m, nil
	case m.Keys.Test:
		med, ok := m.selected()
		if !ok {
			return m, statusCmd("select a medicine to test", true)
		}
		return m, m.testCmd(med.ID)
	case m.Keys.Check:
		return m, m.checkCmd()
	case m.Keys.Ping:
		return m, m.pingCmd()
	case "r":
		return m, m.loadMedicinesCmd()
	case "ctrl+c", m.Keys.Quit:
		m.Quitting = true
		return m, tea.Quit
	case "up", "down", "j", "k", "home", "end":
		var cmd tea.Cmd
		m.medTable, cmd = m.medTable.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	status := ""
	if m.Status.Text != "" {
		if m.Status.IsError {
			status = fmt.Sprintf("status: error: %s", m.Status.Text)
		} else {
			status = fmt.Sprintf("status: %s", m.Status.Text)
		}
	}

	alert := ""
	if m.Alert != nil {
		alert = views.RenderAlert(views.AlertData{
			Name:     m.Alert.Medicine.Name,
			Time:     m.Alert.Medicine.Time,
			At:       m.Alert.At.Format("15:04:05"),
			FollowUp: m.Alert.FollowUp,
		})
	}

	right := m.renderBackendPanel()
	if p := views.RenderCommandPalette(m.Palette.Active, m.commandInput.Value()); p != "" {
		right = strings.TrimSpace(right + "\n\n" + p)
	}
	right += m.renderHelpIfVisible()

	selectedID := ""
	if med, ok := m.selected(); ok {
		selectedID = med.ID
	}
	return views.RenderApp(views.AppData{
		Header: fmt.Sprintf("medremind | %s | selected: %s", m.Mode, selectedID),
		LeftPane: views.RenderMedicinePanel(views.MedicinePanelData{
			TableView:  m.medTable.View(),
			Medicines:  medicineRows(m.Medicines),
			SelectedID: selectedID,
		}),
		RightPane:  right,
		StatusLine: status,
		IsError:    m.Status.IsError,
		Alert:      alert,
		Footer: fmt.Sprintf("keys: %s taken | %s later | %s test | %s check | %s ping | / cmd | %s help | %s quit",
			m.Keys.Take, m.Keys.Later, m.Keys.Test, m.Keys.Check, m.Keys.Ping, m.Keys.Help, m.Keys.Quit),
	})
}

func (m Model) renderBackendPanel() string {
	data := views.BackendPanelData{Mode: m.Mode}
	if m.actions != nil {
		data.SoundPending = m.actions.SoundPending()
	}
	if m.LastCheck != nil {
		data.LastCheck = formatMillis(m.LastCheck.Time)
		data.Shown = m.LastCheck.NotificationShown
		data.Schedules = m.LastCheck.Schedules
	}
	return views.RenderBackendPanel(data)
}

func (m Model) alertOrSelectedID() string {
	if m.Alert != nil {
		return m.Alert.Medicine.ID
	}
	if med, ok := m.selected(); ok {
		return med.ID
	}
	return ""
}

func waitForAlertCmd(ch <-chan bridge.Alert) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		alert, ok := <-ch
		if !ok {
			return alertsClosedMsg{}
		}
		return AlertMsg{Alert: alert}
	}
}

func (m Model) gestureCmd() tea.Cmd {
	if m.actions == nil || !m.actions.SoundPending() {
		return nil
	}
	actions := m.actions
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if actions.Gesture(ctx) {
			return SetStatusMsg{Text: "played pending reminder sound"}
		}
		return nil
	}
}

func (m Model) loadMedicinesCmd() tea.Cmd {
	if m.actions == nil {
		return nil
	}
	actions := m.actions
	return func() tea.Msg {
		items, err := actions.Medicines()
		if err != nil {
			return AppErrorMsg{Err: fmt.Errorf("load medicines: %w", err)}
		}
		return MedicinesLoadedMsg{Items: items}
	}
}

func (m Model) takeCmd(id string) tea.Cmd {
	actions := m.actions
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		med, err := actions.Take(ctx, id)
		if err != nil {
			return AppErrorMsg{Err: fmt.Errorf("take %s: %w", id, err)}
		}
		return DoseTakenMsg{Medicine: med}
	}
}

func (m Model) testCmd(id string) tea.Cmd {
	actions := m.actions
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if err := actions.Test(ctx, id); err != nil {
			return AppErrorMsg{Err: fmt.Errorf("test reminder: %w", err)}
		}
		return SetStatusMsg{Text: "test reminder sent"}
	}
}

func (m Model) checkCmd() tea.Cmd {
	actions := m.actions
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		res, err := actions.Check(ctx)
		if err != nil {
			return AppErrorMsg{Err: fmt.Errorf("check schedules: %w", err)}
		}
		return CheckDoneMsg{Result: res}
	}
}

func (m Model) pingCmd() tea.Cmd {
	actions := m.actions
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		res, err := actions.Ping(ctx)
		if err != nil {
			return AppErrorMsg{Err: fmt.Errorf("ping: %w", err)}
		}
		return SetStatusMsg{Text: fmt.Sprintf("%s (%d schedule(s))", res.Message, res.Schedules)}
	}
}

func statusCmd(text string, isErr bool) tea.Cmd {
	return func() tea.Msg { return SetStatusMsg{Text: text, IsError: isErr} }
}

func isTaken(meds []model.Medicine, id string) bool {
	for _, med := range meds {
		if med.ID == id {
			return med.Taken
		}
	}
	return false
}

func medicineRows(meds []model.Medicine) []views.MedicineRowData {
	out := make([]views.MedicineRowData, 0, len(meds))
	for _, med := range meds {
		out = append(out, views.MedicineRowData{ID: med.ID, Name: med.Name, Time: med.Time, Daily: med.Daily, Taken: med.Taken})
	}
	return out
}
