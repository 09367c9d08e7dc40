package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kmeans-viz/kmeans-viz/internal/client"
	"github.com/kmeans-viz/kmeans-viz/internal/lifecycle"
	"github.com/kmeans-viz/kmeans-viz/internal/notify"
	"github.com/kmeans-viz/kmeans-viz/internal/theme"
	"github.com/kmeans-viz/kmeans-viz/internal/views/canvas"
	"github.com/kmeans-viz/kmeans-viz/internal/views/debug"
	"github.com/kmeans-viz/kmeans-viz/internal/views/help"
	"github.com/kmeans-viz/kmeans-viz/internal/views/status"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayHelp
	OverlayDebug
)

// resultMsg carries a finished service request back to the update loop.
type resultMsg struct{ res lifecycle.Result }

type statusTickMsg struct{}

type statusMsg struct {
	status *client.Status
	err    error
}

// Deps are the collaborators the root model drives. Feed and Status may be
// nil to run without the live feed or diagnostics polling.
type Deps struct {
	Controller  *lifecycle.Controller
	Notes       *notify.Channel
	Surface     *canvas.Surface
	Feed        *client.FeedClient
	Status      *client.StatusClient
	StatusEvery time.Duration
}

// Model is the root Bubble Tea model.
type Model struct {
	ctrl   *lifecycle.Controller
	notes  *notify.Channel
	feed   *client.FeedClient
	status *client.StatusClient
	ctx    context.Context
	cancel context.CancelFunc

	statusEvery time.Duration

	keys    KeyMap
	width   int
	height  int
	overlay Overlay

	canvas    canvas.Model
	statusBar status.Model
	debug     debug.Model
	help      *help.Model
	spinner   spinner.Model

	spinning bool
}

// New creates the root model.
func New(d Deps) Model {
	ctx, cancel := context.WithCancel(context.Background())
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorWarning)
	h := help.New()

	m := Model{
		ctrl:        d.Controller,
		notes:       d.Notes,
		feed:        d.Feed,
		status:      d.Status,
		ctx:         ctx,
		cancel:      cancel,
		statusEvery: d.StatusEvery,
		keys:        DefaultKeyMap(),
		canvas:      canvas.New(d.Surface),
		statusBar:   status.New(),
		debug:       debug.New(),
		help:        &h,
		spinner:     sp,
	}
	m.statusBar.Spinner = sp.View()
	m.syncStatus()
	return m
}

// Init starts the live feed and status polling.
func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	if m.feed != nil {
		cmds = append(cmds, m.feed.Listen(m.ctx))
	}
	if m.status != nil {
		cmds = append(cmds, m.fetchStatus())
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.canvas.Resize(msg.Width, msg.Height-m.chromeHeight())
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case resultMsg:
		m.ctrl.Finish(msg.res)
		m.debug.Result(msg.res)
		m.syncStatus()
		return m, nil

	case spinner.TickMsg:
		if !m.ctrl.Busy() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.statusBar.Spinner = m.spinner.View()
		return m, cmd

	case canvas.FrameMsg:
		var cmd tea.Cmd
		m.canvas, cmd = m.canvas.Update(msg)
		return m, cmd

	case statusTickMsg:
		return m, m.fetchStatus()

	case statusMsg:
		if msg.err != nil {
			m.debug.Link("status", false, msg.err)
		} else {
			m.statusBar.Server = msg.status
		}
		return m, m.scheduleStatus()

	case client.FeedConnectedMsg:
		m.statusBar.Connected = true
		m.debug.Link("feed", true, nil)
		return m, m.feed.ReadLoop(m.ctx)

	case client.FeedDisconnectedMsg:
		m.statusBar.Connected = false
		m.debug.Link("feed", false, msg.Err)
		return m, m.feed.Listen(m.ctx)

	case client.FeedEventMsg:
		m.statusBar.Iteration = msg.Event.Iteration
		m.debug.Feed(msg)
		return m, m.feed.ReadLoop(m.ctx)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Help) && m.overlay == OverlayHelp,
			key.Matches(msg, m.keys.Debug) && m.overlay == OverlayDebug:
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Quit):
			return m.quit()
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Up):
			m.debug.ScrollUp(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Down):
			m.debug.ScrollDown(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Filter):
			m.debug.CycleFilter()
		}
		return m, nil
	}

	session := m.ctrl.Session()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
		return m, nil

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		return m, nil

	case key.Matches(msg, m.keys.Generate):
		return m.dispatch(lifecycle.Event{Action: lifecycle.ActionGenerate})

	case key.Matches(msg, m.keys.Initialize):
		return m.dispatch(lifecycle.Event{Action: lifecycle.ActionInitialize})

	case key.Matches(msg, m.keys.Step):
		return m.dispatch(lifecycle.Event{Action: lifecycle.ActionStep})

	case key.Matches(msg, m.keys.Converge):
		return m.dispatch(lifecycle.Event{Action: lifecycle.ActionConverge})

	case key.Matches(msg, m.keys.Reset):
		return m.dispatch(lifecycle.Event{Action: lifecycle.ActionReset})

	case key.Matches(msg, m.keys.Method):
		return m.dispatch(lifecycle.Event{Action: lifecycle.ActionSelectMethod, Method: session.InitMethod.Next()})

	case key.Matches(msg, m.keys.MoreK):
		return m.dispatch(lifecycle.Event{Action: lifecycle.ActionSetClusterCount, K: session.ClusterCount + 1})

	case key.Matches(msg, m.keys.FewerK):
		return m.dispatch(lifecycle.Event{Action: lifecycle.ActionSetClusterCount, K: session.ClusterCount - 1})

	case key.Matches(msg, m.keys.Up):
		return m, m.canvas.MoveCursor(0, -1)

	case key.Matches(msg, m.keys.Down):
		return m, m.canvas.MoveCursor(0, 1)

	case key.Matches(msg, m.keys.Left):
		return m, m.canvas.MoveCursor(-1, 0)

	case key.Matches(msg, m.keys.Right):
		return m, m.canvas.MoveCursor(1, 0)

	case key.Matches(msg, m.keys.Place):
		return m.dispatch(lifecycle.Event{Action: lifecycle.ActionCanvasClick, Point: m.canvas.CursorPoint()})
	}

	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.cancel()
	if m.feed != nil {
		m.feed.Close()
	}
	return m, tea.Quit
}

// handleMouse turns a left click inside the canvas into a canvas click at
// the clicked cell.
func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.overlay != OverlayNone || msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}
	col, row, ok := m.canvasCell(msg.X, msg.Y)
	if !ok {
		return m, nil
	}
	cmd := m.canvas.SetCursor(col, row)
	next, dispatchCmd := m.dispatch(lifecycle.Event{Action: lifecycle.ActionCanvasClick, Point: m.canvas.CellPoint(col, row)})
	return next, tea.Batch(cmd, dispatchCmd)
}

// canvasCell maps a screen position to a canvas grid cell.
func (m Model) canvasCell(x, y int) (col, row int, ok bool) {
	top := lipgloss.Height(m.statusBar.View()) + 1 // border
	left := 1
	col, row = x-left, y-top
	if col < 0 || row < 0 || col >= m.canvas.Cols || row >= m.canvas.Rows {
		return 0, 0, false
	}
	return col, row, true
}

// dispatch hands an event to the controller. A produced request runs in a
// command and comes back as a resultMsg.
func (m Model) dispatch(ev lifecycle.Event) (tea.Model, tea.Cmd) {
	req, err := m.ctrl.Dispatch(ev)
	if err != nil {
		if !errors.Is(err, lifecycle.ErrActionDisabled) && !errors.Is(err, lifecycle.ErrBusy) {
			m.notes.Set(err.Error())
		}
		m.debug.Rejected(ev.Action, err)
		return m, nil
	}
	m.syncStatus()
	if req == nil {
		return m, nil
	}

	m.debug.Sent(req.Action)
	ctx := m.ctx
	cmds := []tea.Cmd{func() tea.Msg {
		return resultMsg{res: req.Run(ctx)}
	}}
	if !m.spinning {
		m.spinning = true
		cmds = append(cmds, m.spinner.Tick)
	}
	return m, tea.Batch(cmds...)
}

// syncStatus copies controller state into the status bar and canvas.
func (m *Model) syncStatus() {
	s := m.ctrl.Session()
	m.statusBar.Phase = s.Phase.String()
	m.statusBar.K = s.ClusterCount
	m.statusBar.Method = string(s.InitMethod)
	m.statusBar.Busy = m.ctrl.Busy()
	m.canvas.ShowCrosshair(s.Phase == lifecycle.AwaitingManualCentroids ||
		(s.Phase == lifecycle.DatasetReady && s.InitMethod == lifecycle.MethodManual))
	if s.Phase == lifecycle.NoDataset || s.Phase == lifecycle.DatasetReady || s.Phase == lifecycle.AwaitingManualCentroids {
		m.statusBar.Iteration = 0
	}
}

func (m Model) fetchStatus() tea.Cmd {
	if m.status == nil {
		return nil
	}
	st, ctx := m.status, m.ctx
	return func() tea.Msg {
		s, err := st.GetStatus(ctx)
		return statusMsg{status: s, err: err}
	}
}

func (m Model) scheduleStatus() tea.Cmd {
	if m.status == nil || m.statusEvery <= 0 {
		return nil
	}
	return tea.Tick(m.statusEvery, func(time.Time) tea.Msg { return statusTickMsg{} })
}

// chromeHeight is the number of rows used by everything but the canvas.
func (m Model) chromeHeight() int {
	// status bar, canvas border, notification, controls
	return lipgloss.Height(m.statusBar.View()) + 2 + 1 + 1
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	switch m.overlay {
	case OverlayHelp:
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.help.View(m.width))
	case OverlayDebug:
		return m.debug.View(m.width, m.height)
	}

	sections := []string{
		m.statusBar.View(),
		m.canvas.View(m.ctrl.Placed()),
		m.renderNotice(),
		m.renderControls(),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderNotice() string {
	text := m.notes.Text()
	if text == "" {
		return ""
	}
	if strings.HasPrefix(text, "Error:") {
		return " " + theme.StyleError.Render(text)
	}
	return " " + theme.StyleNotice.Render(text)
}

// renderControls lists the action keys, dimming the ones that would be
// rejected right now.
func (m Model) renderControls() string {
	actions := []struct {
		binding key.Binding
		action  lifecycle.Action
	}{
		{m.keys.Generate, lifecycle.ActionGenerate},
		{m.keys.Initialize, lifecycle.ActionInitialize},
		{m.keys.Step, lifecycle.ActionStep},
		{m.keys.Converge, lifecycle.ActionConverge},
		{m.keys.Reset, lifecycle.ActionReset},
		{m.keys.Place, lifecycle.ActionCanvasClick},
		{m.keys.Method, lifecycle.ActionSelectMethod},
	}

	parts := make([]string, 0, len(actions)+3)
	for _, a := range actions {
		h := a.binding.Help()
		label := fmt.Sprintf("%s:%s", h.Key, h.Desc)
		if m.ctrl.Enabled(a.action) {
			parts = append(parts, theme.StyleEnabled.Render(label))
		} else {
			parts = append(parts, theme.StyleDimmed.Render(label))
		}
	}
	parts = append(parts, theme.StyleDimmed.Render("+/-:k"), theme.StyleDimmed.Render("?:help"), theme.StyleDimmed.Render("q:quit"))
	return "  " + strings.Join(parts, "  ")
}
