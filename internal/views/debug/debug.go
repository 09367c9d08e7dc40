// Package debug keeps a bounded history of service exchanges and feed
// events and renders it as an overlay.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/kmeans-viz/kmeans-viz/internal/client"
	"github.com/kmeans-viz/kmeans-viz/internal/lifecycle"
	"github.com/kmeans-viz/kmeans-viz/internal/theme"
)

const maxEntries = 200

// Kind classifies an entry.
type Kind int

const (
	KindSent     Kind = iota // request handed to the service
	KindResult               // request came back
	KindRejected             // action refused before reaching the service
	KindModel                // event from the live feed
	KindLink                 // feed or status connectivity
)

var kindLabels = [...]string{"SEND", "DONE", "SKIP", "FEED", "LINK"}

func (k Kind) String() string {
	if int(k) < len(kindLabels) {
		return kindLabels[k]
	}
	return "????"
}

// Filter selects which entries are shown.
type Filter int

const (
	FilterAll Filter = iota
	FilterRequests
	FilterModel
	FilterErrors
)

var filterNames = [...]string{"all", "requests", "model", "errors"}

func (f Filter) String() string { return filterNames[f] }

// Next cycles to the following filter.
func (f Filter) Next() Filter { return (f + 1) % Filter(len(filterNames)) }

func (f Filter) match(e Entry) bool {
	switch f {
	case FilterRequests:
		return e.Kind == KindSent || e.Kind == KindResult || e.Kind == KindRejected
	case FilterModel:
		return e.Kind == KindModel
	case FilterErrors:
		return e.Err != nil
	}
	return true
}

// Entry is one recorded occurrence. Which fields are set depends on Kind.
type Entry struct {
	Time      time.Time
	Kind      Kind
	Action    lifecycle.Action
	Converged bool
	Err       error

	// Model entries.
	Seq      uint64
	Type     client.MessageType
	Event    client.ModelEvent
	Delta    float64
	HasDelta bool

	// Link entries.
	Source string
	Up     bool
}

// Model holds the log and the viewport over its filtered entries.
type Model struct {
	Entries []Entry
	Filter  Filter
	Offset  int // from the newest visible entry

	last *client.ModelEvent
	now  func() time.Time
}

// New creates an empty debug model.
func New() Model {
	return Model{now: time.Now}
}

func (m *Model) add(e Entry) {
	if m.now == nil {
		m.now = time.Now
	}
	e.Time = m.now()
	m.Entries = append(m.Entries, e)
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	m.Offset = 0
}

// Sent records a request leaving for the service.
func (m *Model) Sent(a lifecycle.Action) {
	m.add(Entry{Kind: KindSent, Action: a})
}

// Result records a finished request.
func (m *Model) Result(res lifecycle.Result) {
	m.add(Entry{
		Kind:      KindResult,
		Action:    res.Action,
		Converged: res.Err == nil && res.Outcome.Converged(),
		Err:       res.Err,
	})
}

// Rejected records an action the controller refused.
func (m *Model) Rejected(a lifecycle.Action, err error) {
	m.add(Entry{Kind: KindRejected, Action: a, Err: err})
}

// Feed records a model event. Inertia is compared against the previous
// event of the same run; dataset and reset events start a new run.
func (m *Model) Feed(msg client.FeedEventMsg) {
	e := Entry{Kind: KindModel, Seq: msg.Seq, Type: msg.Type, Event: msg.Event}
	switch msg.Type {
	case client.MsgDataset, client.MsgReset:
		m.last = nil
	default:
		if m.last != nil && m.last.K == msg.Event.K && m.last.Inertia > 0 {
			e.Delta = msg.Event.Inertia - m.last.Inertia
			e.HasDelta = true
		}
		ev := msg.Event
		m.last = &ev
	}
	m.add(e)
}

// Link records a connectivity change. err is nil when source came up.
func (m *Model) Link(source string, up bool, err error) {
	m.add(Entry{Kind: KindLink, Source: source, Up: up, Err: err})
}

// Visible returns the entries that pass the current filter, oldest first.
func (m Model) Visible() []Entry {
	var out []Entry
	for _, e := range m.Entries {
		if m.Filter.match(e) {
			out = append(out, e)
		}
	}
	return out
}

// CycleFilter moves to the next filter and jumps to the newest entry.
func (m *Model) CycleFilter() {
	m.Filter = m.Filter.Next()
	m.Offset = 0
}

// ScrollUp moves the viewport up.
func (m *Model) ScrollUp(n int) {
	m.Offset += n
	max := len(m.Visible()) - 1
	if max < 0 {
		max = 0
	}
	if m.Offset > max {
		m.Offset = max
	}
}

// ScrollDown moves the viewport down.
func (m *Model) ScrollDown(n int) {
	m.Offset -= n
	if m.Offset < 0 {
		m.Offset = 0
	}
}

// Describe renders the body of an entry without time or label.
func Describe(e Entry) string {
	switch e.Kind {
	case KindSent:
		return e.Action.String()
	case KindResult:
		switch {
		case e.Err != nil:
			return fmt.Sprintf("%s failed: %v", e.Action, e.Err)
		case e.Converged:
			return fmt.Sprintf("%s converged", e.Action)
		}
		return fmt.Sprintf("%s ok", e.Action)
	case KindRejected:
		return fmt.Sprintf("%s: %v", e.Action, e.Err)
	case KindModel:
		s := fmt.Sprintf("#%d %s n=%d", e.Seq, e.Type, e.Event.Points)
		if e.Type == client.MsgDataset || e.Type == client.MsgReset {
			return s
		}
		s += fmt.Sprintf(" k=%d iter=%d inertia=%.2f", e.Event.K, e.Event.Iteration, e.Event.Inertia)
		if e.HasDelta {
			s += fmt.Sprintf(" (%+.2f)", e.Delta)
		}
		return s
	case KindLink:
		if e.Up {
			return e.Source + " connected"
		}
		if e.Err != nil {
			return fmt.Sprintf("%s down: %v", e.Source, e.Err)
		}
		return e.Source + " down"
	}
	return ""
}

func entryColor(e Entry) lipgloss.Color {
	if e.Err != nil && e.Kind != KindRejected {
		return theme.ColorDanger
	}
	switch e.Kind {
	case KindModel:
		return theme.ColorInfo
	case KindResult:
		if e.Converged {
			return theme.ColorConverged
		}
		return theme.ColorHealthy
	case KindSent:
		return theme.ColorReady
	case KindLink:
		return theme.ColorWarning
	}
	return theme.ColorDimmed
}

// View renders the log as an overlay panel.
func (m Model) View(width, height int) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}
	visibleLines := height - 6
	if visibleLines < 3 {
		visibleLines = 3
	}

	entries := m.Visible()
	title := theme.StyleHeader.Render(fmt.Sprintf(" EVENT LOG · %s ", m.Filter))
	help := theme.StyleDimmed.Render(fmt.Sprintf("↑/↓:scroll  f:filter  esc:close  %d/%d entries", len(entries), len(m.Entries)))

	panel := lipgloss.NewStyle().
		Width(innerW).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)

	if len(entries) == 0 {
		body := theme.StyleDimmed.Render("  Nothing recorded for this filter.")
		return panel.Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help))
	}

	end := len(entries) - m.Offset
	if end < 0 {
		end = 0
	}
	start := end - visibleLines
	if start < 0 {
		start = 0
	}

	textW := innerW - 22
	lines := make([]string, 0, end-start)
	for _, e := range entries[start:end] {
		label := lipgloss.NewStyle().Foreground(entryColor(e)).Width(4).Render(e.Kind.String())
		text := Describe(e)
		if textW > 3 && len(text) > textW {
			text = text[:textW-3] + "..."
		}
		lines = append(lines, theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))+" "+label+" "+text)
	}

	more := ""
	if m.Offset > 0 {
		more = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset))
	}
	return panel.Render(lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"), more, help))
}
