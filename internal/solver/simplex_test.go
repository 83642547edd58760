package solver

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// slackForm returns [g | I] with the slack columns as the starting basis
func slackForm(g *mat.Dense) (*mat.Dense, []int) {
	m, n := g.Dims()
	a := mat.NewDense(m, n+m, nil)
	basis := make([]int, m)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, g.At(i, j))
		}
		a.Set(i, n+i, 1)
		basis[i] = n + i
	}
	return a, basis
}

func TestTableau_MatchesGonumSimplex(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	for trial := 0; trial < 30; trial++ {
		m, n := 3+rng.Intn(5), 4+rng.Intn(8)
		g := mat.NewDense(m, n, nil)
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				g.Set(i, j, 0.5+rng.Float64()*5)
			}
		}
		a, basis := slackForm(g)
		b := make([]float64, m)
		for i := range b {
			b[i] = 1 + rng.Float64()*20
		}
		cost := make([]float64, n+m)
		for j := 0; j < n; j++ {
			cost[j] = -rng.Float64() * 10
		}

		want, _, err := lp.Simplex(cost, a, b, 1e-10, nil)
		require.NoError(t, err, "trial %d", trial)

		tab := newTableau(cost, a, b, basis)
		require.NoError(t, tab.minimize(context.Background(), 1e-10), "trial %d", trial)
		x := tab.solution()
		assert.InDelta(t, want, floats.Dot(cost, x), 1e-6, "trial %d", trial)

		var ax mat.VecDense
		ax.MulVec(a, mat.NewVecDense(len(x), x))
		for i := 0; i < m; i++ {
			assert.InDelta(t, b[i], ax.AtVec(i), 1e-6, "trial %d row %d", trial, i)
		}
	}
}

func TestTableau_Unbounded(t *testing.T) {
	// min -x0 subject to x0 - x1 + s = 1
	a := mat.NewDense(1, 3, []float64{1, -1, 1})
	tab := newTableau([]float64{-1, 0, 0}, a, []float64{1}, []int{2})

	assert.ErrorIs(t, tab.minimize(context.Background(), 1e-10), errUnbounded)
}

func TestTableau_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := mat.NewDense(1, 2, []float64{1, 1})
	tab := newTableau([]float64{-1, 0}, a, []float64{1}, []int{1})

	assert.ErrorIs(t, tab.minimize(ctx, 1e-10), context.Canceled)
	assert.Zero(t, tab.pivots)
}

func TestTableau_RepriceKeepsBasis(t *testing.T) {
	a := mat.NewDense(1, 3, []float64{1, 1, 1})
	tab := newTableau([]float64{-1, 0, 0}, a, []float64{1}, []int{2})
	require.NoError(t, tab.minimize(context.Background(), 1e-10))
	assert.Equal(t, []float64{1, 0, 0}, tab.solution())

	tab.reprice([]float64{0, -2, 0})
	require.NoError(t, tab.minimize(context.Background(), 1e-10))
	assert.Equal(t, []float64{0, 1, 0}, tab.solution())
	assert.Equal(t, 2, tab.pivots)
}

func TestSolveLP_InfeasibleRows(t *testing.T) {
	s := &search{config: DefaultConfig()}
	rows := []lpRow{
		{coefs: []float64{1, 1}, sense: GreaterEqual, rhs: 3},
		{coefs: []float64{1, 1}, sense: LessEqual, rhs: 1},
	}

	_, _, err := s.solveLP(context.Background(), []float64{1, 1}, rows)
	assert.ErrorIs(t, err, errNodeInfeasible)
	assert.Equal(t, 1, s.lpSolves)
}

func TestSolveLP_NegativeRightHandSide(t *testing.T) {
	// -x0 - x1 <= -1 is x0 + x1 >= 1
	s := &search{config: DefaultConfig()}
	rows := []lpRow{
		{coefs: []float64{-1, -1}, sense: LessEqual, rhs: -1},
		{coefs: []float64{1, 0}, sense: LessEqual, rhs: 1},
		{coefs: []float64{0, 1}, sense: LessEqual, rhs: 1},
	}

	value, x, err := s.solveLP(context.Background(), []float64{-2, -3}, rows)
	require.NoError(t, err)
	assert.InDelta(t, -2.0, value, 1e-9)
	assert.InDelta(t, 1.0, x[0], 1e-9)
	assert.InDelta(t, 0.0, x[1], 1e-9)
}

func TestFrontier_DivesThenOrdersByBound(t *testing.T) {
	f := &frontier{}
	f.push(node{bound: 5}, true)
	f.push(node{bound: 9}, true)
	f.push(node{bound: 7}, true)

	n, ok := f.pop()
	require.True(t, ok)
	assert.Equal(t, 7.0, n.bound)

	f.settle()
	f.push(node{bound: 9}, false)
	f.push(node{bound: 6}, false)

	var order []float64
	var seqs []int
	for {
		n, ok := f.pop()
		if !ok {
			break
		}
		order = append(order, n.bound)
		seqs = append(seqs, n.seq)
	}
	assert.Equal(t, []float64{9, 9, 6, 5}, order)
	assert.Less(t, seqs[0], seqs[1])
}
