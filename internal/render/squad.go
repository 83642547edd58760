package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/stitts-dev/fpl-squad-optimizer/internal/models"
	"github.com/stitts-dev/fpl-squad-optimizer/internal/optimizer"
)

// Printer writes solutions as plain-text tables
type Printer struct {
	out   io.Writer
	rules models.LeagueRules
}

func NewPrinter(out io.Writer, rules models.LeagueRules) *Printer {
	return &Printer{out: out, rules: rules}
}

// Solution prints the squad table, the totals and the validation block
func (p *Printer) Solution(sol *optimizer.Solution, report optimizer.ValidationReport) {
	if !sol.Feasible {
		fmt.Fprintf(p.out, "\nNo feasible squad (%s, %d candidates, %d nodes)\n",
			sol.SolverStatus, sol.CandidateCount, sol.NodesExplored)
		fmt.Fprintln(p.out, "  Try relaxing the starter, injury or club-position filters.")
		return
	}

	fmt.Fprintf(p.out, "\n[%s] %s squad, solver %s\n", sol.SolveID, sol.Mode, sol.SolverStatus)
	p.squadTable(sol)
	p.positionTable(sol)
	p.summary(sol)
	p.validation(report)
}

func (p *Printer) squadTable(sol *optimizer.Solution) {
	table := tablewriter.NewWriter(p.out)

	header := []any{"Pos", "Player", "Team", "Price", "Proj", "FDR5", "Next 5"}
	if sol.TotalFixtureAdjustedPoints != nil {
		header = append(header, "Fix Adj")
	}
	if sol.TotalLastSeasonAdjustedPoints != nil {
		header = append(header, "Hist Adj")
	}
	table.Header(header...)

	for _, sp := range sol.SelectedPlayers {
		name := sp.Name
		if sp.InjuryFlag {
			name += " (inj)"
		}
		row := []any{
			string(sp.Position),
			name,
			sp.Team,
			fmt.Sprintf("%.1f", sp.Price),
			fmt.Sprintf("%.1f", sp.ProjPoints),
			fmt.Sprintf("%.2f", sp.AvgFixtureDifficulty5),
			sp.Next5Fixtures,
		}
		if sol.TotalFixtureAdjustedPoints != nil {
			row = append(row, optionalPoints(sp.FixtureAdjustedPoints))
		}
		if sol.TotalLastSeasonAdjustedPoints != nil {
			row = append(row, optionalPoints(sp.LastSeasonAdjustedPoints))
		}
		table.Append(row...)
	}
	table.Render()
}

func (p *Printer) positionTable(sol *optimizer.Solution) {
	table := tablewriter.NewWriter(p.out)
	table.Header("Pos", "Count", "Cost", "Proj")
	for _, pos := range models.Positions {
		s := sol.PositionSummary[pos]
		table.Append(string(pos), strconv.Itoa(s.Count), fmt.Sprintf("%.1f", s.TotalCost), fmt.Sprintf("%.1f", s.TotalPoints))
	}
	table.Render()
}

func (p *Printer) summary(sol *optimizer.Solution) {
	fmt.Fprintf(p.out, "  Total price:      %.1f / %.1f (%.1f left)\n",
		sol.TotalPrice, p.rules.Budget(), sol.BudgetRemaining(p.rules))
	fmt.Fprintf(p.out, "  Projected points: %.1f\n", sol.TotalProjPoints)
	fmt.Fprintf(p.out, "  Avg FDR (next 5): %.2f\n", sol.AvgFixtureDifficulty)
	if sol.TotalFixtureAdjustedPoints != nil {
		fmt.Fprintf(p.out, "  Fixture adjusted: %.1f (weighting %.2f)\n", *sol.TotalFixtureAdjustedPoints, sol.FixtureWeighting)
	}
	if sol.TotalLastSeasonAdjustedPoints != nil {
		fmt.Fprintf(p.out, "  History adjusted: %.1f (weighting %.2f)\n", *sol.TotalLastSeasonAdjustedPoints, sol.LastSeasonWeighting)
	}
	fmt.Fprintf(p.out, "  Objective value:  %.2f\n", sol.ObjectiveValue)
	fmt.Fprintf(p.out, "  Player ids:       %s\n", IDList(sol))
}

func (p *Printer) validation(report optimizer.ValidationReport) {
	fmt.Fprintln(p.out, "  Checks:")
	fmt.Fprintf(p.out, "    squad size  %s\n", mark(report.SquadSize))
	fmt.Fprintf(p.out, "    budget      %s\n", mark(report.Budget))
	fmt.Fprintf(p.out, "    positions   %s\n", mark(report.Positions))
	fmt.Fprintf(p.out, "    club limits %s\n", mark(report.ClubLimits))
}

// IDList renders the selected ids comma separated, ready to paste elsewhere
func IDList(sol *optimizer.Solution) string {
	parts := make([]string, len(sol.SelectedIDs))
	for i, id := range sol.SelectedIDs {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func optionalPoints(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func mark(ok bool) string {
	if ok {
		return "OK"
	}
	return "FAIL"
}
