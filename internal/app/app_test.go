package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kmeans-viz/kmeans-viz/internal/coords"
	"github.com/kmeans-viz/kmeans-viz/internal/gateway"
	"github.com/kmeans-viz/kmeans-viz/internal/lifecycle"
	"github.com/kmeans-viz/kmeans-viz/internal/notify"
	"github.com/kmeans-viz/kmeans-viz/internal/views/canvas"
	"github.com/kmeans-viz/kmeans-viz/internal/views/debug"
)

type fakeGateway struct {
	calls     []string
	centroids []coords.Point
	fail      map[string]error
}

func (f *fakeGateway) record(name string) error {
	f.calls = append(f.calls, name)
	return f.fail[name]
}

func (f *fakeGateway) GenerateDataset(context.Context) error   { return f.record("generate") }
func (f *fakeGateway) FetchCurrentImage(context.Context) error { return f.record("fetch") }
func (f *fakeGateway) Reset(context.Context) error             { return f.record("reset") }
func (f *fakeGateway) Converge(context.Context, int) error     { return f.record("converge") }

func (f *fakeGateway) Initialize(_ context.Context, _ int, _ string, centroids []coords.Point) error {
	f.centroids = centroids
	return f.record("initialize")
}

func (f *fakeGateway) Step(context.Context, int) (gateway.StepOutcome, error) {
	return gateway.StepOutcome{Kind: gateway.OutcomeImage}, f.record("step")
}

func newTestModel(k int, method lifecycle.InitMethod) (Model, *fakeGateway) {
	gw := &fakeGateway{fail: map[string]error{}}
	notes := notify.New()
	ctrl := lifecycle.New(lifecycle.NewSession(k, method), gw, notes)
	m := New(Deps{Controller: ctrl, Notes: notes, Surface: canvas.NewSurface()})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model), gw
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends a key and feeds any resulting service request back through
// Update, the way the Bubble Tea runtime would.
func press(t *testing.T, m Model, k tea.KeyMsg) Model {
	t.Helper()
	next, cmd := m.Update(k)
	return settle(t, next.(Model), cmd)
}

func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for _, msg := range collect(cmd) {
		if res, ok := msg.(resultMsg); ok {
			next, _ := m.Update(res)
			m = next.(Model)
		}
	}
	return m
}

// collect runs cmd and flattens batches.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func TestGenerateFromKeyboard(t *testing.T) {
	m, gw := newTestModel(3, lifecycle.MethodRandom)

	m = press(t, m, runes("g"))

	if got := m.ctrl.Session().Phase; got != lifecycle.DatasetReady {
		t.Errorf("phase = %s, want dataset ready", got)
	}
	if strings.Join(gw.calls, ",") != "reset,generate" {
		t.Errorf("calls = %v", gw.calls)
	}
	if m.ctrl.Busy() {
		t.Error("still busy after the result was applied")
	}
}

func TestDisabledKeyNeverReachesService(t *testing.T) {
	m, gw := newTestModel(3, lifecycle.MethodRandom)

	next, cmd := m.Update(runes("s"))
	if cmd != nil {
		t.Error("step in NoDataset produced a command")
	}
	if len(gw.calls) != 0 {
		t.Errorf("calls = %v, want none", gw.calls)
	}
	if next.(Model).notes.Text() != "" {
		t.Error("disabled action set a notification")
	}
}

func TestSecondActionWhileBusyIgnored(t *testing.T) {
	m, gw := newTestModel(3, lifecycle.MethodRandom)

	next, first := m.Update(runes("g"))
	m = next.(Model)
	if !m.ctrl.Busy() {
		t.Fatal("not busy after dispatching generate")
	}
	if _, cmd := m.Update(runes("g")); cmd != nil {
		t.Error("second generate while busy produced a command")
	}

	settle(t, m, first)
	if strings.Count(strings.Join(gw.calls, ","), "generate") != 1 {
		t.Errorf("calls = %v, want one generate", gw.calls)
	}
}

func TestManualPlacementWithCrosshair(t *testing.T) {
	m, gw := newTestModel(2, lifecycle.MethodManual)

	m = press(t, m, runes("g"))
	if got := m.ctrl.Session().Phase; got != lifecycle.AwaitingManualCentroids {
		t.Fatalf("phase = %s, want awaiting", got)
	}

	space := tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	m = press(t, m, space)
	if len(m.ctrl.Placed()) != 1 {
		t.Fatalf("placed = %v, want 1 point", m.ctrl.Placed())
	}
	if !strings.Contains(m.notes.Text(), "Placed 1 of 2") {
		t.Errorf("notice = %q", m.notes.Text())
	}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m = press(t, next.(Model), space)

	if got := m.ctrl.Session().Phase; got != lifecycle.Ready {
		t.Fatalf("phase = %s, want ready", got)
	}
	if len(gw.centroids) != 2 || gw.centroids[0] == gw.centroids[1] {
		t.Errorf("centroids = %v", gw.centroids)
	}
}

func TestMouseClickPlacesCentroid(t *testing.T) {
	m, _ := newTestModel(3, lifecycle.MethodManual)
	m = press(t, m, runes("g"))

	col, row := 4, 2
	y := -1
	for i := 0; i < 20; i++ {
		if c, r, ok := m.canvasCell(col+1, i); ok && c == col && r == row {
			y = i
			break
		}
	}
	if y < 0 {
		t.Fatal("no screen row maps to the target cell")
	}

	next, cmd := m.Update(tea.MouseMsg{X: col + 1, Y: y, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	m = settle(t, next.(Model), cmd)

	placed := m.ctrl.Placed()
	if len(placed) != 1 {
		t.Fatalf("placed = %v, want 1 point", placed)
	}
	want := m.canvas.CellPoint(col, row)
	if placed[0] != want {
		t.Errorf("placed %+v, want %+v", placed[0], want)
	}
}

func TestMouseOutsideCanvasIgnored(t *testing.T) {
	m, _ := newTestModel(3, lifecycle.MethodManual)
	m = press(t, m, runes("g"))

	next, _ := m.Update(tea.MouseMsg{X: 0, Y: 0, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	if len(next.(Model).ctrl.Placed()) != 0 {
		t.Error("click on the status bar placed a centroid")
	}
}

func TestClusterCountKeys(t *testing.T) {
	m, _ := newTestModel(3, lifecycle.MethodRandom)

	m = press(t, m, runes("+"))
	m = press(t, m, runes("+"))
	m = press(t, m, runes("-"))
	if k := m.ctrl.Session().ClusterCount; k != 4 {
		t.Errorf("k = %d, want 4", k)
	}
	if m.statusBar.K != 4 {
		t.Errorf("status bar k = %d, want 4", m.statusBar.K)
	}
}

func TestInvalidClusterCountNotified(t *testing.T) {
	m, _ := newTestModel(1, lifecycle.MethodRandom)

	m = press(t, m, runes("-"))
	if k := m.ctrl.Session().ClusterCount; k != 1 {
		t.Errorf("k = %d, want 1", k)
	}
	if m.notes.Text() == "" {
		t.Error("rejected k change was not reported")
	}
}

func TestMethodCycle(t *testing.T) {
	m, _ := newTestModel(3, lifecycle.MethodRandom)

	m = press(t, m, runes("m"))
	if got := m.ctrl.Session().InitMethod; got != lifecycle.MethodFarthestFirst {
		t.Errorf("method = %s, want farthest_first", got)
	}
}

func TestFailureShownInView(t *testing.T) {
	m, gw := newTestModel(3, lifecycle.MethodRandom)
	gw.fail["generate"] = errors.New("connection refused")

	m = press(t, m, runes("g"))
	if got := m.ctrl.Session().Phase; got != lifecycle.NoDataset {
		t.Errorf("phase = %s, want no dataset", got)
	}
	if v := m.View(); !strings.Contains(v, "connection refused") {
		t.Errorf("view does not show the failure:\n%s", v)
	}
}

func TestOverlays(t *testing.T) {
	m, _ := newTestModel(3, lifecycle.MethodRandom)

	m = press(t, m, runes("d"))
	if m.overlay != OverlayDebug {
		t.Fatalf("overlay = %d, want debug", m.overlay)
	}
	if !strings.Contains(m.View(), "EVENT LOG") {
		t.Error("debug overlay not rendered")
	}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.overlay != OverlayNone {
		t.Error("esc did not close the overlay")
	}

	// Action keys are swallowed while an overlay is open.
	m = press(t, m, runes("?"))
	m = press(t, m, runes("g"))
	if m.ctrl.Session().Phase != lifecycle.NoDataset {
		t.Error("generate ran behind the help overlay")
	}
}

func TestEventLogRecordsExchanges(t *testing.T) {
	m, _ := newTestModel(3, lifecycle.MethodRandom)

	m = press(t, m, runes("s"))
	m = press(t, m, runes("g"))
	m = press(t, m, runes("d"))
	m = press(t, m, runes("f"))

	if m.debug.Filter != debug.FilterRequests {
		t.Fatalf("filter = %s, want requests", m.debug.Filter)
	}
	var kinds []string
	for _, e := range m.debug.Visible() {
		kinds = append(kinds, e.Kind.String())
	}
	if got := strings.Join(kinds, ","); got != "SKIP,SEND,DONE" {
		t.Errorf("kinds = %s, want SKIP,SEND,DONE", got)
	}
}
