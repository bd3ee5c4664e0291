package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/shelfx/internal/formatter"
	"github.com/desertthunder/shelfx/internal/services"
	"github.com/desertthunder/shelfx/internal/shared"
	"github.com/desertthunder/shelfx/internal/tasks"
)

const updateBuffer = 64

// Model represents the TUI application state.
type Model struct {
	ctx         context.Context
	orch        *tasks.Orchestrator
	updates     <-chan tasks.Update
	unsubscribe func()
	snap        tasks.Snapshot
	width       int
	height      int
	list        list.Model
	spinner     spinner.Model
	status      string
	err         error
	help        help.Model
	keys        keyMap
	copy        func(string) error
}

// NewModel creates a new TUI model subscribed to orch.
//
// The caller owns the orchestrator's lifecycle (polling, Close).
func NewModel(ctx context.Context, orch *tasks.Orchestrator) *Model {
	updates, unsubscribe := orch.Subscribe(updateBuffer)

	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Enrichment review queue"
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)

	return &Model{
		ctx:         ctx,
		orch:        orch,
		updates:     updates,
		unsubscribe: unsubscribe,
		list:        l,
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:        help.New(),
		keys:        newKeyMap(),
		copy:        clipboard.WriteAll,
	}
}

// Init loads the task list and starts listening for orchestrator updates.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForUpdate(), m.spinner.Tick, m.run("refresh", func(ctx context.Context) error {
		return m.orch.Refresh(ctx, false)
	}))
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.FocusMsg:
		m.orch.SetVisible(true)
		return m, nil

	case tea.BlurMsg:
		m.orch.SetVisible(false)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgUpdate:
		u := msg.data.(tasks.Update)
		if u.Phase == tasks.PhaseError {
			m.err = u.Err
			m.status = u.Message
		} else if u.Message != "" {
			m.err = nil
			m.status = u.Message
		}
		m.sync()
		return m, m.waitForUpdate()

	case MsgUpdatesClosed:
		return m, tea.Quit

	case MsgCommandDone:
		res := msg.data.(commandResult)
		switch {
		case res.err == nil:
		case errors.Is(res.err, shared.ErrBusy):
			m.status = fmt.Sprintf("%s skipped: %s", res.label, res.err)
		default:
			m.err = res.err
			m.status = fmt.Sprintf("%s failed: %s", res.label, services.MessageOf(res.err))
		}
		m.sync()
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.unsubscribe()
		return m, tea.Quit

	case key.Matches(msg, m.keys.toggle):
		if task, ok := m.current(); ok && !task.locked {
			m.orch.Store().ToggleSelected(task.task.ID)
			m.sync()
		}
		return m, nil

	case key.Matches(msg, m.keys.selectAll):
		if !m.snap.BulkBusy {
			m.orch.Store().SelectAll()
			m.sync()
		}
		return m, nil

	case key.Matches(msg, m.keys.apply):
		return m, m.run("apply selected", func(ctx context.Context) error {
			_, err := m.orch.ApplySelected(ctx)
			return err
		})

	case key.Matches(msg, m.keys.retry):
		return m, m.run("retry selected", func(ctx context.Context) error {
			_, err := m.orch.RetrySelected(ctx)
			return err
		})

	case key.Matches(msg, m.keys.process):
		return m, m.run("process batch", func(ctx context.Context) error {
			_, err := m.orch.ProcessBatch(ctx, 0, tasks.EagerRefresh)
			return err
		})

	case key.Matches(msg, m.keys.approve):
		return m, m.taskCommand("approve", func(ctx context.Context, id string) error {
			_, err := m.orch.ApproveSuggested(ctx, id)
			return err
		})

	case key.Matches(msg, m.keys.dismiss):
		return m, m.taskCommand("dismiss", func(ctx context.Context, id string) error {
			_, err := m.orch.Dismiss(ctx, id)
			return err
		})

	case key.Matches(msg, m.keys.refresh):
		return m, m.run("refresh", func(ctx context.Context) error {
			return m.orch.Refresh(ctx, false)
		})

	case key.Matches(msg, m.keys.copyID):
		if task, ok := m.current(); ok {
			if err := m.copy(task.task.ID); err != nil {
				m.status = fmt.Sprintf("copy failed: %v", err)
			} else {
				m.status = fmt.Sprintf("copied %s", task.task.ID)
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// taskCommand runs fn on the highlighted task unless a bulk action owns it.
func (m *Model) taskCommand(label string, fn func(ctx context.Context, id string) error) tea.Cmd {
	task, ok := m.current()
	if !ok {
		return nil
	}
	if task.locked {
		m.status = fmt.Sprintf("%s is locked while a bulk action runs", task.task.ID)
		return nil
	}
	id := task.task.ID
	return m.run(label, func(ctx context.Context) error { return fn(ctx, id) })
}

func (m *Model) run(label string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return commandDoneMsg(label, fn(m.ctx))
	}
}

func (m *Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		u, ok := <-m.updates
		if !ok {
			return updatesClosedMsg()
		}
		return updateMsg(u)
	}
}

func (m *Model) current() (taskItem, bool) {
	item, ok := m.list.SelectedItem().(taskItem)
	return item, ok
}

// sync copies the orchestrator state into the model and rebuilds the list items.
func (m *Model) sync() {
	m.snap = m.orch.Snapshot()
	m.list.SetItems(taskItems(m.snap))
}

// View renders the queue with its counts, activity line and help.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(formatter.FormatCounts(m.snap.Counts))
	b.WriteString("\n")
	if activity := m.activity(); activity != "" {
		b.WriteString(m.spinner.View() + " " + activity)
	}
	b.WriteString("\n\n")
	b.WriteString(m.list.View())
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(styles.err.Render(m.status))
	case m.status != "":
		b.WriteString(styles.ok.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(styles.help.Render(fmt.Sprintf("%d selected", len(m.snap.Selected))))
	b.WriteString("  ")
	b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

func (m *Model) activity() string {
	var parts []string
	if m.snap.Loading {
		parts = append(parts, "loading")
	} else if m.snap.Refreshing {
		parts = append(parts, "syncing")
	}
	if m.snap.Processing {
		parts = append(parts, "processing batch")
	}
	if m.snap.BulkBusy {
		parts = append(parts, fmt.Sprintf("bulk action on %d tasks", len(m.snap.BulkTaskIDs)))
	}
	if m.snap.UpdatesPending {
		parts = append(parts, styles.warn.Render("updates pending"))
	}
	return strings.Join(parts, " · ")
}
