package solver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var errUnbounded = errors.New("lp relaxation is unbounded")

const (
	pivotTolerance   = 1e-9
	ratioTolerance   = 1e-12
	degenerateStreak = 50
	cancelCheckEvery = 256
)

// tableau is a dense simplex tableau for min c'x, Ax = b, x >= 0. The last
// column of rows holds the right-hand side and the basis starts as an identity.
type tableau struct {
	rows    *mat.Dense
	reduced []float64
	basis   []int
	n       int
	pivots  int
}

// newTableau copies a and b. The columns named in basis must form an identity
// matrix and b must be non-negative, so the starting point is feasible.
func newTableau(cost []float64, a *mat.Dense, b []float64, basis []int) *tableau {
	m, n := a.Dims()
	rows := mat.NewDense(m, n+1, nil)
	rows.Slice(0, m, 0, n).(*mat.Dense).Copy(a)
	rows.SetCol(n, b)

	reduced := make([]float64, n+1)
	copy(reduced, cost)
	for i, j := range basis {
		if cost[j] != 0 {
			floats.AddScaled(reduced, -cost[j], rows.RawRowView(i))
		}
	}
	return &tableau{rows: rows, reduced: reduced, basis: append([]int(nil), basis...), n: n}
}

// minimize pivots with Dantzig's rule, falling back to Bland's rule while the
// objective stalls on degenerate pivots.
func (t *tableau) minimize(ctx context.Context, tol float64) error {
	m, _ := t.rows.Dims()
	maxPivots := 50 * (m + t.n)
	stalled := 0

	for {
		if t.pivots%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if t.pivots > maxPivots {
			return fmt.Errorf("%w: no optimum after %d pivots", ErrLPFailure, t.pivots)
		}

		bland := stalled > degenerateStreak
		enter := t.entering(tol, bland)
		if enter < 0 {
			return nil
		}
		leave, step := t.leaving(enter, bland)
		if leave < 0 {
			return errUnbounded
		}
		if step <= ratioTolerance {
			stalled++
		} else {
			stalled = 0
		}
		t.pivot(leave, enter)
	}
}

func (t *tableau) entering(tol float64, bland bool) int {
	if bland {
		for j := 0; j < t.n; j++ {
			if t.reduced[j] < -tol {
				return j
			}
		}
		return -1
	}
	j := floats.MinIdx(t.reduced[:t.n])
	if t.reduced[j] < -tol {
		return j
	}
	return -1
}

// leaving runs the ratio test for the entering column
func (t *tableau) leaving(enter int, bland bool) (int, float64) {
	m, _ := t.rows.Dims()
	leave, best := -1, math.Inf(1)
	for i := 0; i < m; i++ {
		a := t.rows.At(i, enter)
		if a <= pivotTolerance {
			continue
		}
		q := math.Max(0, t.rows.At(i, t.n)) / a
		switch {
		case q < best-ratioTolerance:
			leave, best = i, q
		case bland && q <= best+ratioTolerance && t.basis[i] < t.basis[leave]:
			leave, best = i, q
		}
	}
	return leave, best
}

func (t *tableau) pivot(leave, enter int) {
	m, _ := t.rows.Dims()
	pr := t.rows.RawRowView(leave)
	floats.Scale(1/pr[enter], pr)
	for i := 0; i < m; i++ {
		if i == leave {
			continue
		}
		row := t.rows.RawRowView(i)
		if f := row[enter]; f != 0 {
			floats.AddScaled(row, -f, pr)
		}
	}
	if f := t.reduced[enter]; f != 0 {
		floats.AddScaled(t.reduced, -f, pr)
	}
	t.basis[leave] = enter
	t.pivots++
}

// solution returns the current basic solution over all columns
func (t *tableau) solution() []float64 {
	x := make([]float64, t.n)
	for i, j := range t.basis {
		x[j] = math.Max(0, t.rows.At(i, t.n))
	}
	return x
}

// reprice swaps in a new cost vector while keeping the current basis
func (t *tableau) reprice(cost []float64) {
	for j := range t.reduced {
		t.reduced[j] = 0
	}
	copy(t.reduced, cost)
	for i, j := range t.basis {
		if cost[j] != 0 {
			floats.AddScaled(t.reduced, -cost[j], t.rows.RawRowView(i))
		}
	}
}
