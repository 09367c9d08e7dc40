// Package lifecycle is the interaction state machine. It decides which user
// actions are legal in the current phase, turns legal ones into requests
// against the clustering service, and applies the results.
//
// Requests are split into Dispatch (validate, mark busy, build the request),
// Request.Run (the blocking exchange, safe to run off the UI goroutine) and
// Finish (apply the result). Only one request may be outstanding at a time.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/kmeans-viz/kmeans-viz/internal/collector"
	"github.com/kmeans-viz/kmeans-viz/internal/coords"
	"github.com/kmeans-viz/kmeans-viz/internal/gateway"
	"github.com/kmeans-viz/kmeans-viz/internal/notify"
)

var (
	ErrActionDisabled      = errors.New("action not enabled")
	ErrBusy                = errors.New("a request is already in flight")
	ErrInvalidClusterCount = errors.New("cluster count must be at least 1")
	ErrInvalidMethod       = errors.New("unknown init method")

	// ErrModelCleared marks a generate that reset the service's model but
	// failed to produce a new dataset.
	ErrModelCleared = errors.New("model cleared")
)

// ModelClearedHint is appended to the failure notice when the service lost
// its model behind a phase that still expects one.
const ModelClearedHint = " The model was cleared; press r to reset."

// ConvergedNotice is shown once the algorithm reaches its fixed point.
const ConvergedNotice = "The KMeans algorithm has converged."

// Gateway is the subset of the clustering service the controller drives.
type Gateway interface {
	GenerateDataset(ctx context.Context) error
	FetchCurrentImage(ctx context.Context) error
	Initialize(ctx context.Context, k int, method string, centroids []coords.Point) error
	Step(ctx context.Context, k int) (gateway.StepOutcome, error)
	Converge(ctx context.Context, k int) error
	Reset(ctx context.Context) error
}

// Session is the mutable interaction state. The controller is its only writer.
type Session struct {
	Phase        Phase
	ClusterCount int
	InitMethod   InitMethod
}

// NewSession starts a session with no dataset.
func NewSession(k int, method InitMethod) *Session {
	return &Session{Phase: NoDataset, ClusterCount: k, InitMethod: method}
}

// Event is one user input. Point, Method and K are read only by the actions
// that need them.
type Event struct {
	Action Action
	Point  coords.Point
	Method InitMethod
	K      int
}

// Request is an exchange with the service produced by Dispatch.
type Request struct {
	Action Action
	exec   func(ctx context.Context) (gateway.StepOutcome, error)
}

// Run performs the exchange. It does not touch controller state.
func (r *Request) Run(ctx context.Context) Result {
	out, err := r.exec(ctx)
	return Result{Action: r.Action, Outcome: out, Err: err}
}

// Result is handed back to Finish.
type Result struct {
	Action  Action
	Outcome gateway.StepOutcome
	Err     error
}

type handler func(c *Controller, ev Event) (*Request, error)

// Controller owns the session and serializes every exchange with the service.
type Controller struct {
	session  *Session
	gw       Gateway
	notes    *notify.Channel
	picks    *collector.Collector
	busy     bool
	handlers map[Action]handler
}

// New creates a controller over session. Results are reported through notes.
func New(session *Session, gw Gateway, notes *notify.Channel) *Controller {
	c := &Controller{
		session: session,
		gw:      gw,
		notes:   notes,
		picks:   collector.New(),
	}
	c.handlers = map[Action]handler{
		ActionGenerate:        (*Controller).generate,
		ActionInitialize:      (*Controller).initialize,
		ActionStep:            (*Controller).step,
		ActionConverge:        (*Controller).converge,
		ActionReset:           (*Controller).reset,
		ActionCanvasClick:     (*Controller).canvasClick,
		ActionSelectMethod:    (*Controller).selectMethod,
		ActionSetClusterCount: (*Controller).setClusterCount,
	}
	if session.Phase == AwaitingManualCentroids {
		c.picks.Arm()
	}
	return c
}

// Session returns the live session. Callers must not mutate it.
func (c *Controller) Session() *Session { return c.session }

// Busy reports whether a request is outstanding.
func (c *Controller) Busy() bool { return c.busy }

// Controls returns the enabled set for the current phase and method.
func (c *Controller) Controls() Controls {
	return ControlsFor(c.session.Phase, c.session.InitMethod)
}

// Enabled reports whether an action would currently be accepted.
func (c *Controller) Enabled(a Action) bool {
	if c.busy {
		return false
	}
	return !a.gated() || c.Controls().Has(a)
}

// Placed returns the manual centroids collected so far, in click order.
func (c *Controller) Placed() []coords.Point {
	return c.picks.Points()
}

// Dispatch validates ev against the current phase and runs its handler.
// Rejected actions have no side effects. A non-nil Request must be run and
// its Result passed to Finish before anything else is accepted.
func (c *Controller) Dispatch(ev Event) (*Request, error) {
	if c.busy {
		return nil, ErrBusy
	}
	h, ok := c.handlers[ev.Action]
	if !ok || !c.Enabled(ev.Action) {
		return nil, fmt.Errorf("%w: %s while %s", ErrActionDisabled, ev.Action, c.session.Phase)
	}

	req, err := h(c, ev)
	if err != nil {
		return nil, err
	}
	if req != nil {
		c.busy = true
	}
	return req, nil
}

// Finish applies the outcome of the outstanding request. Failures leave the
// phase untouched and are reported through the notification channel.
func (c *Controller) Finish(res Result) {
	if !c.busy {
		return
	}
	c.busy = false

	if res.Err != nil {
		log.Printf("%s failed: %v", res.Action, res.Err)
		notice := failureNotice(res.Action, res.Err)
		if errors.Is(res.Err, ErrModelCleared) && (c.session.Phase == Ready || c.session.Phase == Converged) {
			notice += ModelClearedHint
		}
		c.notes.Set(notice)
		if c.session.Phase == AwaitingManualCentroids {
			// The collector handed its points off; let the user place them again.
			c.picks.Arm()
		}
		return
	}

	switch res.Action {
	case ActionGenerate, ActionReset:
		c.land()
	case ActionInitialize:
		c.setPhase(Ready)
		c.notes.Clear()
	case ActionStep:
		if res.Outcome.Converged() {
			c.setPhase(Converged)
			c.notes.Set(ConvergedNotice)
		} else {
			c.notes.Clear()
		}
	case ActionConverge:
		c.setPhase(Converged)
		c.notes.Set(ConvergedNotice)
	}
}

// Do dispatches ev and, if it produced a request, runs it to completion on
// the calling goroutine.
func (c *Controller) Do(ctx context.Context, ev Event) error {
	req, err := c.Dispatch(ev)
	if err != nil || req == nil {
		return err
	}
	res := req.Run(ctx)
	c.Finish(res)
	return res.Err
}

func (c *Controller) generate(Event) (*Request, error) {
	return c.request(ActionGenerate, func(ctx context.Context) error {
		if err := c.gw.Reset(ctx); err != nil {
			return err
		}
		if err := c.gw.GenerateDataset(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrModelCleared, err)
		}
		return nil
	}), nil
}

func (c *Controller) initialize(Event) (*Request, error) {
	k, method := c.session.ClusterCount, string(c.session.InitMethod)
	return c.request(ActionInitialize, func(ctx context.Context) error {
		return c.gw.Initialize(ctx, k, method, nil)
	}), nil
}

func (c *Controller) step(Event) (*Request, error) {
	k := c.session.ClusterCount
	return &Request{Action: ActionStep, exec: func(ctx context.Context) (gateway.StepOutcome, error) {
		return c.gw.Step(ctx, k)
	}}, nil
}

func (c *Controller) converge(Event) (*Request, error) {
	k := c.session.ClusterCount
	return c.request(ActionConverge, func(ctx context.Context) error {
		return c.gw.Converge(ctx, k)
	}), nil
}

func (c *Controller) reset(Event) (*Request, error) {
	return c.request(ActionReset, func(ctx context.Context) error {
		if err := c.gw.Reset(ctx); err != nil {
			return err
		}
		return c.gw.FetchCurrentImage(ctx)
	}), nil
}

func (c *Controller) canvasClick(ev Event) (*Request, error) {
	if c.session.Phase == DatasetReady {
		c.enterAwaiting()
	}

	k := c.session.ClusterCount
	centroids, done := c.picks.Offer(ev.Point, k)
	if !done {
		c.notes.Set(c.prompt())
		return nil, nil
	}
	return c.request(ActionInitialize, func(ctx context.Context) error {
		return c.gw.Initialize(ctx, k, string(MethodManual), centroids)
	}), nil
}

func (c *Controller) selectMethod(ev Event) (*Request, error) {
	if _, err := ParseInitMethod(string(ev.Method)); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, ev.Method)
	}
	c.session.InitMethod = ev.Method

	switch {
	case c.session.Phase == DatasetReady && ev.Method == MethodManual:
		c.enterAwaiting()
	case c.session.Phase == AwaitingManualCentroids && ev.Method != MethodManual:
		c.setPhase(DatasetReady)
		c.notes.Clear()
	}
	return nil, nil
}

func (c *Controller) setClusterCount(ev Event) (*Request, error) {
	if ev.K < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidClusterCount, ev.K)
	}
	c.session.ClusterCount = ev.K
	if c.session.Phase == AwaitingManualCentroids {
		c.picks.Arm()
		c.notes.Set(c.prompt())
	}
	return nil, nil
}

func (c *Controller) request(a Action, fn func(ctx context.Context) error) *Request {
	return &Request{Action: a, exec: func(ctx context.Context) (gateway.StepOutcome, error) {
		return gateway.StepOutcome{}, fn(ctx)
	}}
}

// land moves to the post-dataset phase: awaiting clicks in manual mode,
// DatasetReady otherwise.
func (c *Controller) land() {
	if c.session.InitMethod == MethodManual {
		c.enterAwaiting()
		return
	}
	c.setPhase(DatasetReady)
	c.notes.Clear()
}

func (c *Controller) enterAwaiting() {
	c.setPhase(AwaitingManualCentroids)
	c.picks.Arm()
	c.notes.Set(c.prompt())
}

// setPhase keeps the collector armed exactly while centroids are awaited.
func (c *Controller) setPhase(p Phase) {
	prev := c.session.Phase
	c.session.Phase = p
	switch {
	case p != AwaitingManualCentroids:
		c.picks.Disarm()
	case prev != AwaitingManualCentroids:
		c.picks.Arm()
	}
}

func (c *Controller) prompt() string {
	k := c.session.ClusterCount
	if n := c.picks.Len(); n > 0 {
		return fmt.Sprintf("Placed %d of %d centroids. Keep clicking on the canvas.", n, k)
	}
	if k == 1 {
		return "Click on the canvas to place 1 centroid."
	}
	return fmt.Sprintf("Click on the canvas to place %d centroids.", k)
}

func failureNotice(a Action, err error) string {
	var serr *gateway.StatusError
	if errors.As(err, &serr) && serr.Message != "" {
		return fmt.Sprintf("Error: %s failed: %s", a, serr.Message)
	}
	return fmt.Sprintf("Error: %s failed: %v", a, err)
}
