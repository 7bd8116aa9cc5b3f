package views

import (
	"fmt"
	"strings"
)

type MedicineRowData struct {
	ID    string
	Name  string
	Time  string
	Daily bool
	Taken bool
}

type MedicinePanelData struct {
	TableView  string
	Medicines  []MedicineRowData
	SelectedID string
}

type AlertData struct {
	Name     string
	Time     string
	At       string
	FollowUp bool
}

type BackendPanelData struct {
	Mode         string
	LastCheck    string
	Shown        bool
	Schedules    int
	SoundPending bool
}

type HelpPanelData struct {
	Bindings []string
	HelpView string
	Commands string
}

func RenderMedicinePanel(data MedicinePanelData) string {
	var b strings.Builder
	b.WriteString("medicines:\n")
	if len(data.Medicines) == 0 {
		b.WriteString("(none yet; add one with /add <name> <HH:MM> [daily])")
		return b.String()
	}
	if data.TableView != "" {
		b.WriteString(data.TableView + "\n")
		return strings.TrimSpace(b.String())
	}
	for _, med := range data.Medicines {
		cursor := " "
		if med.ID == data.SelectedID {
			cursor = ">"
		}
		b.WriteString(fmt.Sprintf("%s %s %s %s\n", cursor, StatusBadge(med), med.Time, med.Name))
	}
	return strings.TrimSpace(b.String())
}

func RenderAlert(data AlertData) string {
	if data.Name == "" {
		return ""
	}
	title := "Time for your medicine"
	if data.FollowUp {
		title = "Reminder: dose still not taken"
	}
	return fmt.Sprintf("%s\n%s (%s) since %s\n[t] taken  [l] later", title, data.Name, data.Time, data.At)
}

func RenderBackendPanel(data BackendPanelData) string {
	var b strings.Builder
	b.WriteString("scheduler:\n")
	b.WriteString(fmt.Sprintf("mode: %s\n", data.Mode))
	if data.LastCheck != "" {
		b.WriteString(fmt.Sprintf("last check: %s shown=%t schedules=%d\n", data.LastCheck, data.Shown, data.Schedules))
	}
	if data.SoundPending {
		b.WriteString("sound: blocked, press any key to play\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func RenderCommandPalette(active bool, input string) string {
	if !active {
		return ""
	}
	return fmt.Sprintf("command: /%s", input)
}

func RenderHelpPanel(data HelpPanelData) string {
	return fmt.Sprintf("help:\n%s\n%s\n%s",
		strings.Join(data.Bindings, "\n"),
		data.HelpView,
		RenderMarkdown(data.Commands),
	)
}

// StatusBadge labels a row by dose state.
func StatusBadge(med MedicineRowData) string {
	switch {
	case med.Taken:
		return "[TAKEN]"
	case med.Daily:
		return "[DAILY]"
	default:
		return "[ONCE]"
	}
}
