package solver

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// Config tunes the branch-and-bound search
type Config struct {
	MaxNodes             int     `json:"max_nodes"`             // 0 means unlimited
	IntegralityTolerance float64 `json:"integrality_tolerance"` // distance from 0/1 still treated as integral
	FeasibilityTolerance float64 `json:"feasibility_tolerance"` // slack allowed when checking constraints
	SimplexTolerance     float64 `json:"simplex_tolerance"`     // reduced cost tolerance relative to the largest LP cost
}

// DefaultConfig returns tolerances suited to squad-sized models
func DefaultConfig() Config {
	return Config{
		MaxNodes:             250000,
		IntegralityTolerance: 1e-6,
		FeasibilityTolerance: 1e-6,
		SimplexTolerance:     1e-12,
	}
}

// BranchAndBound solves binary models, bounding each node with an LP
// relaxation solved on a dense simplex tableau.
type BranchAndBound struct {
	config Config
	logger *logrus.Logger
}

// NewBranchAndBound creates a solver; zero tolerances fall back to the defaults
func NewBranchAndBound(config Config, logger *logrus.Logger) *BranchAndBound {
	defaults := DefaultConfig()
	if config.IntegralityTolerance <= 0 {
		config.IntegralityTolerance = defaults.IntegralityTolerance
	}
	if config.FeasibilityTolerance <= 0 {
		config.FeasibilityTolerance = defaults.FeasibilityTolerance
	}
	if config.SimplexTolerance <= 0 {
		config.SimplexTolerance = defaults.SimplexTolerance
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &BranchAndBound{config: config, logger: logger}
}

const (
	free int8 = -1
	off  int8 = 0
	on   int8 = 1
)

// search is the state shared by every node of one Solve call
type search struct {
	model    *Model
	config   Config
	bounded  []bool
	step     float64
	lpSolves int
	pivots   int
}

// Solve dives depth-first until it holds an incumbent and then expands the open
// node with the best parent bound. It stops when the tree is exhausted, the node
// limit is hit or ctx is done.
func (b *BranchAndBound) Solve(ctx context.Context, m *Model) (*Result, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	root := make([]int8, m.NumVars)
	for j := range root {
		root[j] = free
	}

	s := &search{
		model:   m,
		config:  b.config,
		bounded: make([]bool, m.NumVars),
		step:    objectiveStep(m.Objective),
	}
	open := &frontier{}
	open.push(node{fixed: root, bound: math.Inf(1)}, true)

	var (
		best      []bool
		bestValue = math.Inf(-1)
		nodes     int
		limitHit  bool
		tol       = b.config.IntegralityTolerance
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, ok := open.pop()
		if !ok {
			break
		}
		if best != nil && n.bound <= bestValue+tol {
			continue
		}
		if b.config.MaxNodes > 0 && nodes >= b.config.MaxNodes {
			limitHit = true
			break
		}
		nodes++

		relax, err := s.relax(ctx, n.fixed)
		if err != nil {
			return nil, err
		}
		if relax.infeasible {
			continue
		}
		bound := s.roundDown(relax.bound)
		if best != nil && bound <= bestValue+tol {
			continue
		}

		j := b.mostFractional(relax.x)
		if j < 0 {
			x := make([]bool, m.NumVars)
			for k, v := range relax.x {
				x[k] = v > 0.5
			}
			if !b.satisfies(m, x) {
				b.logger.WithField("node", nodes).Warn("Integral relaxation violates constraints after rounding, skipping node")
				continue
			}
			if value := m.Value(x); best == nil || value > bestValue+tol {
				if best == nil {
					open.settle()
				}
				best, bestValue = x, value
				b.logger.WithFields(logrus.Fields{
					"node":      nodes,
					"objective": value,
				}).Debug("New incumbent")
			}
			continue
		}

		down := append([]int8(nil), n.fixed...)
		down[j] = off
		up := append([]int8(nil), n.fixed...)
		up[j] = on

		// The branch nearer to the relaxed value is explored first
		near, far := down, up
		if relax.x[j] >= 0.5 {
			near, far = up, down
		}
		if best == nil {
			open.push(node{fixed: far, bound: bound}, true)
			open.push(node{fixed: near, bound: bound}, true)
		} else {
			open.push(node{fixed: near, bound: bound}, false)
			open.push(node{fixed: far, bound: bound}, false)
		}
	}

	result := &Result{Nodes: nodes}
	switch {
	case best == nil && limitHit:
		return nil, fmt.Errorf("%w after %d nodes", ErrNodeLimit, nodes)
	case best == nil:
		result.Status = StatusInfeasible
	case limitHit:
		result.Status = StatusFeasible
		result.X, result.Objective = best, bestValue
	default:
		result.Status = StatusOptimal
		result.X, result.Objective = best, bestValue
	}

	bounded := 0
	for _, v := range s.bounded {
		if v {
			bounded++
		}
	}
	b.logger.WithFields(logrus.Fields{
		"status":       result.Status,
		"objective":    result.Objective,
		"nodes":        nodes,
		"lp_solves":    s.lpSolves,
		"pivots":       s.pivots,
		"bounded_vars": bounded,
		"variables":    m.NumVars,
		"constraints":  len(m.Constraints),
		"duration_ms":  time.Since(start).Milliseconds(),
	}).Debug("Branch and bound finished")

	return result, nil
}

// objectiveStep returns the spacing of reachable objective values when every
// coefficient is a multiple of 1, 0.1 or 0.01, and 0 otherwise
func objectiveStep(objective []float64) float64 {
	for _, step := range []float64{1, 0.1, 0.01} {
		ok := true
		for _, c := range objective {
			q := c / step
			if math.Abs(q-math.Round(q)) > 1e-9*math.Max(1, math.Abs(q)) {
				ok = false
				break
			}
		}
		if ok {
			return step
		}
	}
	return 0
}

// roundDown snaps a relaxation bound to the objective grid. The slack keeps
// LP noise from dropping a bound below a reachable value.
func (s *search) roundDown(bound float64) float64 {
	if s.step == 0 || math.IsInf(bound, 0) {
		return bound
	}
	slack := s.config.IntegralityTolerance * (1 + math.Abs(bound))
	return math.Floor((bound+slack)/s.step) * s.step
}

// mostFractional returns the variable furthest from integrality, or -1
func (b *BranchAndBound) mostFractional(x []float64) int {
	best, bestDist := -1, b.config.IntegralityTolerance
	for j, v := range x {
		dist := math.Min(v, 1-v)
		if dist > bestDist {
			best, bestDist = j, dist
		}
	}
	return best
}

func (b *BranchAndBound) satisfies(m *Model, x []bool) bool {
	for _, c := range m.Constraints {
		if !c.Satisfied(x, b.config.FeasibilityTolerance) {
			return false
		}
	}
	return true
}
