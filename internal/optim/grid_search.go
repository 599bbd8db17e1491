// Package optim sweeps configuration parameters over a grid, running each
// candidate as an independent simulation.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/san-kum/leadsim/internal/config"
	"github.com/san-kum/leadsim/internal/experiment"
	"github.com/san-kum/leadsim/internal/monitoring"
	"github.com/san-kum/leadsim/internal/sim"
	"golang.org/x/sync/errgroup"
)

var ErrNoCandidates = errors.New("optim: no candidate completed")

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	workers    int
}

// NewGridSearch sweeps params[i] over ranges[i]. workers <= 0 uses one
// worker per CPU.
func NewGridSearch(params []string, ranges [][]float64, workers int) (*GridSearch, error) {
	if len(params) == 0 || len(params) != len(ranges) {
		return nil, fmt.Errorf("optim: %d parameters but %d ranges", len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("optim: empty range for %s", params[i])
		}
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &GridSearch{paramNames: params, ranges: ranges, workers: workers}, nil
}

type Candidate struct {
	Params  map[string]float64
	Metrics map[string]float64
	Err     error
}

// Search runs every grid point built on top of base and returns the
// candidate with the smallest finite value of metricName, along with all
// candidates in grid order. Candidates whose configuration is invalid are
// logged and kept with Err set.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, metricName string) (*Candidate, []Candidate, error) {
	points := g.points()
	for _, name := range g.paramNames {
		if err := base.Clone().Set(name, 0); err != nil {
			return nil, nil, err
		}
	}

	candidates := make([]Candidate, len(points))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)

	for i, params := range points {
		i, params := i, params
		eg.Go(func() error {
			candidates[i] = evaluate(ctx, base, params)
			if errors.Is(candidates[i].Err, context.Canceled) || errors.Is(candidates[i].Err, context.DeadlineExceeded) {
				return candidates[i].Err
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	var best *Candidate
	bestVal := math.Inf(1)
	for i := range candidates {
		c := &candidates[i]
		if c.Err != nil {
			monitoring.Logf("optim: candidate %v: %v", c.Params, c.Err)
			continue
		}
		val, ok := c.Metrics[metricName]
		if !ok {
			return nil, nil, fmt.Errorf("optim: unknown metric %q", metricName)
		}
		if math.IsNaN(val) {
			continue
		}
		if best == nil || val < bestVal {
			best, bestVal = c, val
		}
	}
	if best == nil {
		return nil, candidates, ErrNoCandidates
	}

	return best, candidates, nil
}

func evaluate(ctx context.Context, base *config.Config, params map[string]float64) Candidate {
	c := Candidate{Params: params}

	cfg := base.Clone()
	for name, v := range params {
		if err := cfg.Set(name, v); err != nil {
			c.Err = err
			return c
		}
	}

	exp, err := experiment.New(cfg)
	if err != nil {
		c.Err = err
		return c
	}
	result, err := exp.Run(ctx, sim.Discard)
	if err != nil {
		c.Err = err
		return c
	}

	c.Metrics = result.Metrics
	return c
}

// points enumerates the grid with the last parameter varying fastest.
func (g *GridSearch) points() []map[string]float64 {
	points := []map[string]float64{{}}
	for depth, name := range g.paramNames {
		next := make([]map[string]float64, 0, len(points)*len(g.ranges[depth]))
		for _, p := range points {
			for _, val := range g.ranges[depth] {
				np := make(map[string]float64, len(p)+1)
				for k, v := range p {
					np[k] = v
				}
				np[name] = val
				next = append(next, np)
			}
		}
		points = next
	}
	return points
}
