// Package kmeans runs Lloyd's algorithm one iteration at a time so every
// intermediate state can be drawn.
package kmeans

import (
	"errors"
	"fmt"
	"sort"

	"github.com/muesli/clusters"
	"golang.org/x/exp/rand"
)

// Method names an initialization strategy.
type Method string

const (
	Random        Method = "random"
	FarthestFirst Method = "farthest_first"
	PlusPlus      Method = "kmeans++"
)

var ErrNotInitialized = errors.New("centers have not been initialized")

// ParseMethod accepts the wire names. "seeded" selects k-means++.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case Random, FarthestFirst, PlusPlus:
		return Method(s), nil
	case "seeded":
		return PlusPlus, nil
	}
	return "", fmt.Errorf("unknown initialization method %q", s)
}

// Model holds a dataset, k centers and the latest assignment of points to
// centers. It is not safe for concurrent use.
type Model struct {
	data      clusters.Observations
	k         int
	clusters  clusters.Clusters
	assign    []int
	iteration int
	rng       *rand.Rand
}

// New creates an uninitialized model of k clusters over data.
func New(data clusters.Observations, k int, src rand.Source) (*Model, error) {
	if len(data) == 0 {
		return nil, errors.New("dataset is empty")
	}
	if k < 1 {
		return nil, fmt.Errorf("k must be at least 1, got %d", k)
	}
	if k > len(data) {
		return nil, fmt.Errorf("k=%d exceeds the %d points in the dataset", k, len(data))
	}
	return &Model{data: data, k: k, rng: rand.New(src)}, nil
}

func (m *Model) K() int         { return m.k }
func (m *Model) Iteration() int { return m.iteration }

// Initialized reports whether centers have been placed.
func (m *Model) Initialized() bool { return m.clusters != nil }

// Data returns the dataset the model clusters.
func (m *Model) Data() clusters.Observations { return m.data }

// Assignment returns, per point, the index of its cluster, or nil before the
// first iteration.
func (m *Model) Assignment() []int { return m.assign }

// Centers returns a copy of the current centers.
func (m *Model) Centers() []clusters.Coordinates {
	out := make([]clusters.Coordinates, len(m.clusters))
	for i, c := range m.clusters {
		out[i] = append(clusters.Coordinates(nil), c.Center...)
	}
	return out
}

// Initialize places k centers using the given method.
func (m *Model) Initialize(method Method) error {
	var centers []clusters.Coordinates
	switch method {
	case Random:
		centers = m.randomCenters()
	case FarthestFirst:
		centers = m.farthestFirstCenters()
	case PlusPlus:
		centers = m.plusPlusCenters()
	default:
		return fmt.Errorf("unknown initialization method %q", method)
	}
	return m.SetCenters(centers)
}

// SetCenters installs caller-chosen centers. Their order fixes cluster labels.
func (m *Model) SetCenters(centers []clusters.Coordinates) error {
	if len(centers) != m.k {
		return fmt.Errorf("expected %d centers, got %d", m.k, len(centers))
	}
	dim := len(m.data[0].Coordinates())
	cs := make(clusters.Clusters, len(centers))
	for i, c := range centers {
		if len(c) != dim {
			return fmt.Errorf("center %d has %d dimensions, want %d", i, len(c), dim)
		}
		cs[i].Center = append(clusters.Coordinates(nil), c...)
	}
	m.clusters = cs
	m.assign = nil
	m.iteration = 0
	return nil
}

// Step assigns every point to its nearest center and moves each center to
// the mean of its points. An empty cluster is re-seeded from a random point.
// It reports whether any center moved.
func (m *Model) Step() (bool, error) {
	if !m.Initialized() {
		return false, ErrNotInitialized
	}

	old := m.Centers()
	m.clusters.Reset()
	assign := make([]int, len(m.data))
	for i, o := range m.data {
		ci := m.clusters.Nearest(o)
		m.clusters[ci].Append(o)
		assign[i] = ci
	}

	for i := range m.clusters {
		center, err := m.clusters[i].Observations.Center()
		if err != nil {
			center = m.pick().Coordinates()
		}
		m.clusters[i].Center = append(clusters.Coordinates(nil), center...)
	}

	m.assign = assign
	m.iteration++

	for i := range old {
		if old[i].Distance(m.clusters[i].Center) != 0 {
			return true, nil
		}
	}
	return false, nil
}

// Converge steps until no center moves or maxIter iterations have run. It
// returns the number of iterations performed and whether a fixed point was
// reached.
func (m *Model) Converge(maxIter int) (int, bool, error) {
	for n := 1; n <= maxIter; n++ {
		moved, err := m.Step()
		if err != nil {
			return n - 1, false, err
		}
		if !moved {
			return n, true, nil
		}
	}
	return maxIter, false, nil
}

// Inertia is the sum of squared distances from each point to its assigned
// center.
func (m *Model) Inertia() float64 {
	if m.assign == nil {
		return 0
	}
	var total float64
	for i, o := range m.data {
		total += o.Distance(m.clusters[m.assign[i]].Center)
	}
	return total
}

func (m *Model) pick() clusters.Observation {
	return m.data[m.rng.Intn(len(m.data))]
}

func (m *Model) randomCenters() []clusters.Coordinates {
	idx := m.rng.Perm(len(m.data))[:m.k]
	centers := make([]clusters.Coordinates, m.k)
	for i, j := range idx {
		centers[i] = m.data[j].Coordinates()
	}
	return centers
}

// nearestSq returns the squared distance from o to its closest center.
func nearestSq(o clusters.Observation, centers []clusters.Coordinates) float64 {
	best := -1.0
	for _, c := range centers {
		if d := o.Distance(c); best < 0 || d < best {
			best = d
		}
	}
	return best
}

func (m *Model) farthestFirstCenters() []clusters.Coordinates {
	centers := []clusters.Coordinates{m.pick().Coordinates()}
	for len(centers) < m.k {
		far, farDist := 0, -1.0
		for i, o := range m.data {
			if d := nearestSq(o, centers); d > farDist {
				far, farDist = i, d
			}
		}
		centers = append(centers, m.data[far].Coordinates())
	}
	return centers
}

func (m *Model) plusPlusCenters() []clusters.Coordinates {
	centers := []clusters.Coordinates{m.pick().Coordinates()}
	cumulative := make([]float64, len(m.data))
	for len(centers) < m.k {
		var sum float64
		for i, o := range m.data {
			sum += nearestSq(o, centers)
			cumulative[i] = sum
		}
		if sum == 0 {
			// Every point sits on a center already.
			centers = append(centers, m.pick().Coordinates())
			continue
		}
		r := m.rng.Float64() * sum
		i := sort.SearchFloat64s(cumulative, r)
		if i >= len(m.data) {
			i = len(m.data) - 1
		}
		centers = append(centers, m.data[i].Coordinates())
	}
	return centers
}
