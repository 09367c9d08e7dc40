package lifecycle

import "fmt"

// Phase is the controller's position in the clustering lifecycle.
type Phase int

const (
	NoDataset Phase = iota
	DatasetReady
	AwaitingManualCentroids
	Ready
	Converged
)

func (p Phase) String() string {
	switch p {
	case NoDataset:
		return "no dataset"
	case DatasetReady:
		return "dataset ready"
	case AwaitingManualCentroids:
		return "placing centroids"
	case Ready:
		return "ready"
	case Converged:
		return "converged"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// InitMethod selects how starting centroids are chosen.
type InitMethod string

const (
	MethodRandom        InitMethod = "random"
	MethodFarthestFirst InitMethod = "farthest_first"
	MethodKMeansPP      InitMethod = "kmeans++"
	MethodManual        InitMethod = "manual"
)

var methodCycle = []InitMethod{MethodRandom, MethodFarthestFirst, MethodKMeansPP, MethodManual}

// ParseInitMethod accepts the wire names plus "seeded", which picks k-means++.
func ParseInitMethod(s string) (InitMethod, error) {
	switch s {
	case "seeded":
		return MethodKMeansPP, nil
	case string(MethodRandom), string(MethodFarthestFirst), string(MethodKMeansPP), string(MethodManual):
		return InitMethod(s), nil
	}
	return "", fmt.Errorf("unknown init method %q", s)
}

// Seeded reports whether the method is one of the algorithmic seeding schemes.
func (m InitMethod) Seeded() bool {
	return m == MethodFarthestFirst || m == MethodKMeansPP
}

// Next returns the method after m in the UI cycle.
func (m InitMethod) Next() InitMethod {
	for i, c := range methodCycle {
		if c == m {
			return methodCycle[(i+1)%len(methodCycle)]
		}
	}
	return MethodRandom
}

// Action is a user intent routed through the dispatch table.
type Action int

const (
	ActionGenerate Action = iota
	ActionInitialize
	ActionStep
	ActionConverge
	ActionReset
	ActionCanvasClick
	ActionSelectMethod
	ActionSetClusterCount
)

func (a Action) String() string {
	switch a {
	case ActionGenerate:
		return "generate"
	case ActionInitialize:
		return "initialize"
	case ActionStep:
		return "step"
	case ActionConverge:
		return "converge"
	case ActionReset:
		return "reset"
	case ActionCanvasClick:
		return "canvas click"
	case ActionSelectMethod:
		return "select method"
	case ActionSetClusterCount:
		return "set k"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// gated reports whether the action is subject to the enabled-control set.
// Settings changes are always allowed while no request is pending.
func (a Action) gated() bool {
	return a <= ActionCanvasClick
}

// Controls is the set of enabled gated actions.
type Controls uint8

func controlBit(a Action) Controls { return 1 << uint(a) }

// Has reports whether a is enabled.
func (c Controls) Has(a Action) bool {
	return c&controlBit(a) != 0
}

func (c Controls) with(actions ...Action) Controls {
	for _, a := range actions {
		c |= controlBit(a)
	}
	return c
}

// ControlsFor is the single source of truth for which controls are enabled.
func ControlsFor(p Phase, m InitMethod) Controls {
	var c Controls
	switch p {
	case NoDataset:
		return c.with(ActionGenerate)
	case DatasetReady:
		c = c.with(ActionGenerate)
		if m == MethodManual {
			return c.with(ActionCanvasClick)
		}
		return c.with(ActionInitialize)
	case AwaitingManualCentroids:
		return c.with(ActionCanvasClick)
	case Ready:
		return c.with(ActionStep, ActionConverge, ActionGenerate, ActionReset)
	case Converged:
		return c.with(ActionGenerate, ActionReset)
	}
	return c
}
