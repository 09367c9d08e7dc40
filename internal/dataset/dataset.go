// Package dataset samples the synthetic blobs the visualizer clusters.
package dataset

import (
	"fmt"

	"github.com/muesli/clusters"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Params shapes a blob dataset.
type Params struct {
	Samples    int
	MinCenters int
	MaxCenters int
	// Centers are drawn uniformly from [-Spread, Spread]² .
	Spread float64
	StdDev float64
}

// Blobs draws Samples points spread evenly over a random number of isotropic
// Gaussian blobs. It returns the points and the blob centers.
func Blobs(p Params, src rand.Source) (clusters.Observations, []clusters.Coordinates, error) {
	if p.Samples <= 0 {
		return nil, nil, fmt.Errorf("samples must be positive, got %d", p.Samples)
	}
	if p.MinCenters < 1 || p.MaxCenters < p.MinCenters {
		return nil, nil, fmt.Errorf("invalid center range [%d, %d]", p.MinCenters, p.MaxCenters)
	}

	rng := rand.New(src)
	n := p.MinCenters + rng.Intn(p.MaxCenters-p.MinCenters+1)

	uniform := distuv.Uniform{Min: -p.Spread, Max: p.Spread, Src: src}
	centers := make([]clusters.Coordinates, n)
	for i := range centers {
		centers[i] = clusters.Coordinates{uniform.Rand(), uniform.Rand()}
	}

	noise := distuv.Normal{Mu: 0, Sigma: p.StdDev, Src: src}
	obs := make(clusters.Observations, 0, p.Samples)
	for i := 0; i < p.Samples; i++ {
		c := centers[i%n]
		obs = append(obs, clusters.Coordinates{c[0] + noise.Rand(), c[1] + noise.Rand()})
	}

	rng.Shuffle(len(obs), func(i, j int) { obs[i], obs[j] = obs[j], obs[i] })
	return obs, centers, nil
}
