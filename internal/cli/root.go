package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/stitts-dev/fpl-squad-optimizer/internal/models"
	"github.com/stitts-dev/fpl-squad-optimizer/internal/optimizer"
	"github.com/stitts-dev/fpl-squad-optimizer/internal/render"
	"github.com/stitts-dev/fpl-squad-optimizer/internal/scoring"
	"github.com/stitts-dev/fpl-squad-optimizer/internal/solver"
	"github.com/stitts-dev/fpl-squad-optimizer/internal/store"
	"github.com/stitts-dev/fpl-squad-optimizer/pkg/config"
	"github.com/stitts-dev/fpl-squad-optimizer/pkg/database"
	"github.com/stitts-dev/fpl-squad-optimizer/pkg/logger"
)

type solveFlags struct {
	playersFile    string
	fromDatabase   bool
	gamesRemaining int
	objective      string
	fixtureWeight  float64
	lastSeason     float64
	allStarts      bool
	onePerPosition bool
	excludeInjured bool
	idsOnly        bool
	logLevel       string
}

// NewRootCmd builds the squad CLI; solving is the default action
func NewRootCmd() *cobra.Command {
	defaults := models.DefaultOptimizationConfig()
	f := &solveFlags{}

	root := &cobra.Command{
		Use:           "squad",
		Short:         "Pick the best 15-player FPL squad under the league rules",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(cmd, f)
		},
	}

	flags := root.Flags()
	flags.StringVar(&f.playersFile, "players", "", "player snapshot JSON (defaults to PLAYERS_FILE)")
	flags.BoolVar(&f.fromDatabase, "db", false, "load players from DATABASE_URL instead of a file")
	flags.IntVar(&f.gamesRemaining, "games-remaining", 0, "override gameweeks left in the season")
	flags.StringVar(&f.objective, "objective", string(defaults.Objective), "max_points or max_spend")
	flags.Float64Var(&f.fixtureWeight, "fixture-weighting", defaults.FixtureWeighting, "weight of fixture difficulty, 0 to 1")
	flags.Float64Var(&f.lastSeason, "last-season-weighting", defaults.LastSeasonWeighting, "weight of last season's points per game, 0 to 1")
	flags.BoolVar(&f.allStarts, "require-all-starts", defaults.RequireAllStarts, "only consider regular starters")
	flags.BoolVar(&f.onePerPosition, "max-one-per-team-per-position", defaults.MaxOnePerTeamPerPosition, "at most one player per club and position")
	flags.BoolVar(&f.excludeInjured, "exclude-injury-risk", defaults.ExcludeInjuryRisk, "drop flagged players")
	flags.BoolVar(&f.idsOnly, "ids", false, "print only the comma separated player ids")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "warn", "log level")

	root.AddCommand(newImportCmd(f))
	return root
}

func (f *solveFlags) config() models.OptimizationConfig {
	return models.OptimizationConfig{
		Objective:                models.Objective(f.objective),
		FixtureWeighting:         f.fixtureWeight,
		LastSeasonWeighting:      f.lastSeason,
		RequireAllStarts:         f.allStarts,
		MaxOnePerTeamPerPosition: f.onePerPosition,
		ExcludeInjuryRisk:        f.excludeInjured,
	}
}

func runSolve(cmd *cobra.Command, f *solveFlags) error {
	log := setupLogger(cmd.ErrOrStderr(), f.logLevel)

	cfg := f.config()
	if err := cfg.Validate(); err != nil {
		return err
	}

	appCfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	ds, err := loadDataset(cmd.Context(), f, appCfg, log)
	if err != nil {
		return err
	}
	if rejected := ds.Rejected(); len(rejected) > 0 {
		log.WithField("rejected", len(rejected)).Warn("Some player rows were rejected")
	}

	ctx := cmd.Context()
	if appCfg.SolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, appCfg.SolveTimeout)
		defer cancel()
	}

	rules := models.DefaultRules()
	bb := solver.NewBranchAndBound(solver.Config{MaxNodes: appCfg.SolverMaxNodes}, log)
	opt := optimizer.NewOptimizer(bb, scoring.DefaultModel(), rules)

	sol, err := opt.Optimize(ctx, ds, cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if f.idsOnly {
		if !sol.Feasible {
			return fmt.Errorf("no feasible squad (%s)", sol.SolverStatus)
		}
		fmt.Fprintln(out, render.IDList(sol))
		return nil
	}

	render.NewPrinter(out, rules).Solution(sol, optimizer.NewValidator(rules).Validate(sol))
	return nil
}

func loadDataset(ctx context.Context, f *solveFlags, appCfg *config.Config, log *logrus.Logger) (*models.PlayerDataset, error) {
	gamesRemaining := f.gamesRemaining
	if gamesRemaining <= 0 {
		gamesRemaining = appCfg.GamesRemaining
	}

	if f.fromDatabase {
		db, err := database.NewConnection(appCfg.DatabaseURL, false)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return store.NewPlayerRepository(db.DB, log).LoadDataset(ctx, gamesRemaining)
	}

	path := f.playersFile
	if path == "" {
		path = appCfg.PlayersFile
	}
	return store.LoadFile(path, gamesRemaining)
}

func newImportCmd(f *solveFlags) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "import <snapshot.json>",
		Short: "Replace the stored players with a JSON snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := setupLogger(cmd.ErrOrStderr(), f.logLevel)

			snap, err := store.ReadSnapshotFile(args[0])
			if err != nil {
				return err
			}
			// reject obviously broken snapshots before touching the table
			if _, err := snap.Dataset(snap.GamesRemaining); err != nil {
				return err
			}

			appCfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			db, err := database.NewConnection(appCfg.DatabaseURL, false)
			if err != nil {
				return err
			}
			defer db.Close()

			repo := store.NewPlayerRepository(db.DB, log)
			if migrate {
				if err := repo.Migrate(); err != nil {
					return err
				}
			}
			if err := repo.ReplaceAll(cmd.Context(), snap); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d players\n", len(snap.Players))
			return nil
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "create or update the player tables first")
	return cmd
}

func setupLogger(out io.Writer, level string) *logrus.Logger {
	return logger.Init(logger.Options{Level: level, Development: true, Output: out})
}
