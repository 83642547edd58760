package solver

import (
	"context"
	"errors"
	"fmt"
)

// Sense is the comparison of a linear constraint against its right-hand side
type Sense int

const (
	LessEqual Sense = iota
	Equal
	GreaterEqual
)

func (s Sense) String() string {
	switch s {
	case LessEqual:
		return "<="
	case Equal:
		return "="
	case GreaterEqual:
		return ">="
	}
	return fmt.Sprintf("Sense(%d)", int(s))
}

// Status is the outcome reported by a solver
type Status string

const (
	StatusOptimal    Status = "OPTIMAL"
	StatusFeasible   Status = "FEASIBLE"
	StatusInfeasible Status = "INFEASIBLE"
)

var (
	ErrNodeLimit  = errors.New("solver node limit reached without a feasible solution")
	ErrLPFailure  = errors.New("lp relaxation failed")
	ErrEmptyModel = errors.New("model has no variables")
)

// Term is one coefficient of a linear expression
type Term struct {
	Var  int
	Coef float64
}

// Constraint is sum(terms) <sense> RHS
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Satisfied checks the constraint against a 0/1 assignment within tol
func (c Constraint) Satisfied(x []bool, tol float64) bool {
	lhs := 0.0
	for _, t := range c.Terms {
		if x[t.Var] {
			lhs += t.Coef
		}
	}
	switch c.Sense {
	case LessEqual:
		return lhs <= c.RHS+tol
	case GreaterEqual:
		return lhs >= c.RHS-tol
	default:
		return lhs >= c.RHS-tol && lhs <= c.RHS+tol
	}
}

// Model is a maximization problem over binary variables
type Model struct {
	NumVars     int
	Objective   []float64
	Constraints []Constraint
}

// Validate checks that every term references a declared variable
func (m *Model) Validate() error {
	if m.NumVars == 0 {
		return ErrEmptyModel
	}
	if len(m.Objective) != m.NumVars {
		return fmt.Errorf("objective has %d coefficients for %d variables", len(m.Objective), m.NumVars)
	}
	for _, c := range m.Constraints {
		for _, t := range c.Terms {
			if t.Var < 0 || t.Var >= m.NumVars {
				return fmt.Errorf("constraint %q references variable %d outside [0,%d)", c.Name, t.Var, m.NumVars)
			}
		}
	}
	return nil
}

// Value evaluates the objective for a 0/1 assignment
func (m *Model) Value(x []bool) float64 {
	total := 0.0
	for j, on := range x {
		if on {
			total += m.Objective[j]
		}
	}
	return total
}

// Result is the outcome of a solve. X is nil when Status is StatusInfeasible.
type Result struct {
	Status    Status
	X         []bool
	Objective float64
	Nodes     int
}

// Solver solves binary maximization models. Implementations must return
// StatusInfeasible (not an error) when no assignment satisfies the model.
type Solver interface {
	Solve(ctx context.Context, m *Model) (*Result, error)
}
