package update

import (
	"context"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"

	"github.com/sandeepkv93/medremind/internal/bridge"
	"github.com/sandeepkv93/medremind/internal/message"
	"github.com/sandeepkv93/medremind/internal/model"
)

const actionTimeout = 10 * time.Second

// Actions is what the surface does on the user's behalf.
type Actions interface {
	Medicines() ([]model.Medicine, error)
	Add(ctx context.Context, name, clock string, daily bool) (model.Medicine, error)
	Take(ctx context.Context, idOrTag string) (model.Medicine, error)
	Later(id string)
	Remove(ctx context.Context, id string) error
	Test(ctx context.Context, id string) error
	Check(ctx context.Context) (message.CheckResult, error)
	Ping(ctx context.Context) (message.DebugResponse, error)
	Gesture(ctx context.Context) bool
	SoundPending() bool
}

type StatusBar struct {
	Text    string
	IsError bool
}

type GlobalKeyMap struct {
	Take  string
	Later string
	Test  string
	Check string
	Ping  string
	Help  string
	Quit  string
}

type CommandPaletteState struct {
	Active bool
	Input  string
}

type Model struct {
	Medicines   []model.Medicine
	Alert       *bridge.Alert
	LastCheck   *message.CheckResult
	Mode        string
	Palette     CommandPaletteState
	HelpVisible bool
	Status      StatusBar
	Keys        GlobalKeyMap
	Quitting    bool
	LastError   error

	actions      Actions
	alerts       <-chan bridge.Alert
	medTable     table.Model
	commandInput textinput.Model
	helpModel    help.Model
}

type SetStatusMsg struct {
	Text    string
	IsError bool
}

type ClearStatusMsg struct{}

type AppErrorMsg struct {
	Err error
}

// AlertMsg raises the in-page reminder.
type AlertMsg struct {
	Alert bridge.Alert
}

// MedicinesChangedMsg asks the model to reload the medicine list.
type MedicinesChangedMsg struct{}

type MedicinesLoadedMsg struct {
	Items []model.Medicine
}

type CheckDoneMsg struct {
	Result message.CheckResult
}

type DoseTakenMsg struct {
	Medicine model.Medicine
}

type MedicineAddedMsg struct {
	Medicine model.Medicine
}

type alertsClosedMsg struct{}

// NewModel builds the surface model. alerts may be nil when the surface
// runs without a bridge.
func NewModel(actions Actions, alerts <-chan bridge.Alert, mode string) Model {
	m := Model{
		Mode: mode,
		Keys: GlobalKeyMap{
			Take:  "t",
			Later: "l",
			Test:  "x",
			Check: "c",
			Ping:  "p",
			Help:  "?",
			Quit:  "q",
		},
		actions: actions,
		alerts:  alerts,
	}
	m.initBubbleComponents()
	m.syncBubbleData()
	return m
}

func (m *Model) initBubbleComponents() {
	cols := []table.Column{
		{Title: "Time", Width: 6},
		{Title: "Medicine", Width: 24},
		{Title: "Repeat", Width: 7},
		{Title: "Status", Width: 8},
	}
	m.medTable = table.New(table.WithColumns(cols), table.WithRows([]table.Row{}), table.WithFocused(true), table.WithHeight(10))

	m.commandInput = textinput.New()
	m.commandInput.Prompt = "/"
	m.commandInput.CharLimit = 256
	m.commandInput.Width = 48

	m.helpModel = help.New()
}

func (m *Model) syncBubbleData() {
	rows := make([]table.Row, 0, len(m.Medicines))
	for _, med := range m.Medicines {
		repeat := "once"
		if med.Daily {
			repeat = "daily"
		}
		status := "pending"
		if med.Taken {
			status = "taken"
		}
		rows = append(rows, table.Row{med.Time, med.Name, repeat, status})
	}
	m.medTable.SetRows(rows)
	if c := m.medTable.Cursor(); c >= len(rows) && len(rows) > 0 {
		m.medTable.SetCursor(len(rows) - 1)
	}
}

func (m Model) selected() (model.Medicine, bool) {
	c := m.medTable.Cursor()
	if c < 0 || c >= len(m.Medicines) {
		return model.Medicine{}, false
	}
	return m.Medicines[c], true
}

func sortMedicines(meds []model.Medicine) {
	sort.SliceStable(meds, func(i, j int) bool {
		if meds[i].Time != meds[j].Time {
			return meds[i].Time < meds[j].Time
		}
		return meds[i].Name < meds[j].Name
	})
}
