package update

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"

	"github.com/sandeepkv93/medremind/internal/views"
)

type KeyBinding struct {
	Key    string
	Action string
}

type helpKeyMap struct {
	short []key.Binding
	full  [][]key.Binding
}

func (k helpKeyMap) ShortHelp() []key.Binding  { return k.short }
func (k helpKeyMap) FullHelp() [][]key.Binding { return k.full }

const paletteHelp = `### Commands

| command | effect |
| --- | --- |
| ` + "`/add <name> <HH:MM> [daily]`" + ` | add a medicine and arm its reminder |
| ` + "`/take [id]`" + ` | mark the alert or selection taken |
| ` + "`/later [id]`" + ` | dismiss the alert; the follow-up stays armed |
| ` + "`/remove <id>`" + ` | delete a medicine and its schedule |
| ` + "`/test <id>`" + ` | show a reminder right now |
| ` + "`/check`" + ` | run a scheduler pass |
| ` + "`/ping`" + ` | ask the scheduler for its status |
`

func (m Model) renderHelpIfVisible() string {
	if !m.HelpVisible {
		return ""
	}
	return "\n\n" + m.renderHelpView()
}

func (m Model) renderHelpView() string {
	bindings := m.helpBindings()
	var plain []string
	for _, kb := range m.globalBindings() {
		plain = append(plain, fmt.Sprintf("- %s: %s", kb.Key, kb.Action))
	}
	return views.RenderHelpPanel(views.HelpPanelData{
		Bindings: plain,
		HelpView: m.helpModel.View(helpKeyMap{
			short: bindings,
			full:  [][]key.Binding{bindings},
		}),
		Commands: paletteHelp,
	})
}

func (m Model) globalBindings() []KeyBinding {
	return []KeyBinding{
		{Key: "j/k", Action: "move selection"},
		{Key: m.Keys.Take, Action: "mark taken"},
		{Key: m.Keys.Later, Action: "remind me later"},
		{Key: m.Keys.Test, Action: "test reminder for selection"},
		{Key: m.Keys.Check, Action: "check schedules now"},
		{Key: m.Keys.Ping, Action: "ping scheduler"},
		{Key: "r", Action: "reload medicines"},
		{Key: "/", Action: "open command palette"},
		{Key: m.Keys.Help, Action: "toggle help panel"},
		{Key: m.Keys.Quit, Action: "quit"},
	}
}

func (m Model) helpBindings() []key.Binding {
	out := make([]key.Binding, 0, len(m.globalBindings()))
	for _, kb := range m.globalBindings() {
		out = append(out, key.NewBinding(key.WithKeys(kb.Key), key.WithHelp(kb.Key, kb.Action)))
	}
	return out
}
