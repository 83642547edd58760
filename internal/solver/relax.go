package solver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// penaltyScale multiplies the largest objective coefficient to price artificial columns
	penaltyScale   = 1e3
	penaltyRetries = 3
)

var errNodeInfeasible = errors.New("node relaxation is infeasible")

type relaxation struct {
	infeasible bool
	bound      float64
	x          []float64
}

// lpRow is one row of a node relaxation over its LP columns
type lpRow struct {
	coefs []float64
	sense Sense
	rhs   float64
}

// relax solves the LP relaxation of a node with the fixed variables substituted
// out. A free variable that no remaining row touches is set straight from the
// sign of its objective. Upper bounds become rows only for variables in the
// search's bound pool, which grows whenever a relaxation pushes a variable past one.
func (s *search) relax(ctx context.Context, fixed []int8) (relaxation, error) {
	m := s.model
	tol := s.config.FeasibilityTolerance
	values := make([]float64, m.NumVars)
	bound := 0.0

	column := make([]int, m.NumVars)
	var freeVars []int
	for j, f := range fixed {
		column[j] = -1
		switch f {
		case free:
			column[j] = len(freeVars)
			freeVars = append(freeVars, j)
		case on:
			values[j] = 1
			bound += m.Objective[j]
		}
	}

	rows := make([]lpRow, 0, len(m.Constraints))
	touched := make([]bool, len(freeVars))
	for _, c := range m.Constraints {
		coefs := make([]float64, len(freeVars))
		rhs := c.RHS
		for _, t := range c.Terms {
			switch fixed[t.Var] {
			case on:
				rhs -= t.Coef
			case free:
				coefs[column[t.Var]] += t.Coef
			}
		}

		active := false
		for k, v := range coefs {
			if v != 0 {
				active, touched[k] = true, true
			}
		}
		if !active {
			if !constantHolds(c.Sense, rhs, tol) {
				return relaxation{infeasible: true}, nil
			}
			continue
		}
		rows = append(rows, lpRow{coefs: coefs, sense: c.Sense, rhs: rhs})
	}

	var lpVars []int
	lpColumn := make([]int, len(freeVars))
	for k, j := range freeVars {
		lpColumn[k] = -1
		switch {
		case touched[k]:
			lpColumn[k] = len(lpVars)
			lpVars = append(lpVars, j)
		case m.Objective[j] > 0:
			values[j] = 1
			bound += m.Objective[j]
		}
	}
	if len(lpVars) == 0 {
		return relaxation{bound: bound, x: values}, nil
	}

	for i, r := range rows {
		coefs := make([]float64, len(lpVars))
		for k, v := range r.coefs {
			if v != 0 {
				coefs[lpColumn[k]] = v
			}
		}
		rows[i].coefs = coefs
	}
	obj := make([]float64, len(lpVars))
	for k, j := range lpVars {
		obj[k] = m.Objective[j]
	}

	for {
		if err := ctx.Err(); err != nil {
			return relaxation{}, err
		}

		all := append(make([]lpRow, 0, len(rows)+len(lpVars)), rows...)
		for k, j := range lpVars {
			if s.bounded[j] {
				coefs := make([]float64, len(lpVars))
				coefs[k] = 1
				all = append(all, lpRow{coefs: coefs, sense: LessEqual, rhs: 1})
			}
		}

		value, x, err := s.solveLP(ctx, obj, all)
		switch {
		case errors.Is(err, errNodeInfeasible):
			return relaxation{infeasible: true}, nil
		case errors.Is(err, errUnbounded):
			if !s.boundAll(lpVars) {
				return relaxation{}, fmt.Errorf("%w: unbounded with every variable bounded", ErrLPFailure)
			}
			continue
		case err != nil:
			return relaxation{}, err
		}

		grew := false
		for k, j := range lpVars {
			if x[k] > 1+tol && !s.bounded[j] {
				s.bounded[j], grew = true, true
			}
		}
		if grew {
			continue
		}

		for k, j := range lpVars {
			values[j] = math.Max(0, math.Min(1, x[k]))
		}
		return relaxation{bound: bound + value, x: values}, nil
	}
}

// boundAll adds every variable to the bound pool and reports whether any was new
func (s *search) boundAll(vars []int) bool {
	grew := false
	for _, j := range vars {
		if !s.bounded[j] {
			s.bounded[j], grew = true, true
		}
	}
	return grew
}

// solveLP maximizes obj'x over rows with x >= 0. Rows are flipped to a
// non-negative right-hand side; a <= row gets a basic slack, a >= row a surplus
// plus a basic artificial, and an equality a basic artificial. Artificials are
// priced with a big penalty and a phase one pass settles whether a node whose
// artificials stay positive is infeasible.
func (s *search) solveLP(ctx context.Context, obj []float64, rows []lpRow) (float64, []float64, error) {
	n := len(obj)
	senses := make([]Sense, len(rows))
	signs := make([]float64, len(rows))
	extra := 0
	for i, r := range rows {
		signs[i], senses[i] = 1, r.sense
		if r.rhs < 0 {
			signs[i], senses[i] = -1, flip(r.sense)
		}
		if senses[i] == GreaterEqual {
			extra += 2
		} else {
			extra++
		}
	}

	cols := n + extra
	a := mat.NewDense(len(rows), cols, nil)
	b := make([]float64, len(rows))
	basis := make([]int, len(rows))
	var artificial []int
	next := n
	for i, r := range rows {
		for k, v := range r.coefs {
			if v != 0 {
				a.Set(i, k, signs[i]*v)
			}
		}
		b[i] = math.Abs(r.rhs)
		switch senses[i] {
		case LessEqual:
			a.Set(i, next, 1)
			basis[i] = next
			next++
		case GreaterEqual:
			a.Set(i, next, -1)
			a.Set(i, next+1, 1)
			basis[i] = next + 1
			artificial = append(artificial, next+1)
			next += 2
		default:
			a.Set(i, next, 1)
			basis[i] = next
			artificial = append(artificial, next)
			next++
		}
	}

	scale := 1 + floats.Norm(obj, math.Inf(1))
	penalty := penaltyScale * scale
	cost := make([]float64, cols)
	for k, v := range obj {
		cost[k] = -v
	}

	t := newTableau(cost, a, b, basis)
	defer func() {
		s.lpSolves++
		s.pivots += t.pivots
	}()

	for attempt := 0; ; attempt++ {
		for _, c := range artificial {
			cost[c] = penalty
		}
		t.reprice(cost)
		if err := t.minimize(ctx, s.config.SimplexTolerance*(scale+penalty)); err != nil {
			return 0, nil, err
		}

		x := t.solution()
		if artificialSum(x, artificial) <= s.config.FeasibilityTolerance {
			return floats.Dot(obj, x[:n]), x[:n], nil
		}
		if attempt == penaltyRetries-1 {
			return 0, nil, fmt.Errorf("%w: artificial columns still basic after %d penalty increases", ErrLPFailure, attempt)
		}

		phaseOne := make([]float64, cols)
		for _, c := range artificial {
			phaseOne[c] = 1
		}
		t.reprice(phaseOne)
		if err := t.minimize(ctx, s.config.SimplexTolerance*penaltyScale); err != nil {
			return 0, nil, err
		}
		if artificialSum(t.solution(), artificial) > s.config.FeasibilityTolerance {
			return 0, nil, errNodeInfeasible
		}
		penalty *= penaltyScale
	}
}

func artificialSum(x []float64, artificial []int) float64 {
	sum := 0.0
	for _, c := range artificial {
		sum += x[c]
	}
	return sum
}

func flip(sense Sense) Sense {
	switch sense {
	case LessEqual:
		return GreaterEqual
	case GreaterEqual:
		return LessEqual
	}
	return sense
}

func constantHolds(sense Sense, rhs, tol float64) bool {
	switch sense {
	case LessEqual:
		return 0 <= rhs+tol
	case GreaterEqual:
		return 0 >= rhs-tol
	default:
		return math.Abs(rhs) <= tol
	}
}
