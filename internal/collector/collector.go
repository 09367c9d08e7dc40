// Package collector gathers the centroids a user places by hand before a
// manual initialization is sent.
package collector

import "github.com/kmeans-viz/kmeans-viz/internal/coords"

// Collector accumulates points while armed. It disarms itself after handing
// off a full set, so late clicks cannot leak into the next round.
type Collector struct {
	points []coords.Point
	armed  bool
}

// New creates a disarmed collector.
func New() *Collector {
	return &Collector{}
}

// Arm starts a fresh round, dropping anything collected so far.
func (c *Collector) Arm() {
	c.points = nil
	c.armed = true
}

// Disarm stops accepting points and drops anything collected so far.
func (c *Collector) Disarm() {
	c.points = nil
	c.armed = false
}

// Armed reports whether Offer will accept points.
func (c *Collector) Armed() bool {
	return c.armed
}

func (c *Collector) Len() int {
	return len(c.points)
}

// Points returns a copy of the points collected in the current round.
func (c *Collector) Points() []coords.Point {
	return append([]coords.Point(nil), c.points...)
}

// Offer appends p if the collector is armed and holds fewer than k points.
// When the k-th point arrives the full ordered set is returned with done=true
// and the collector is cleared and disarmed.
func (c *Collector) Offer(p coords.Point, k int) (centroids []coords.Point, done bool) {
	if !c.armed || k < 1 || len(c.points) >= k {
		return nil, false
	}

	c.points = append(c.points, p)
	if len(c.points) < k {
		return nil, false
	}

	centroids = c.points
	c.points = nil
	c.armed = false
	return centroids, true
}
