package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/fpl-squad-optimizer/internal/models"
	"github.com/stitts-dev/fpl-squad-optimizer/internal/optimizer"
	"github.com/stitts-dev/fpl-squad-optimizer/pkg/cache"
	"github.com/stitts-dev/fpl-squad-optimizer/pkg/utils"
)

// SolutionStore is the subset of the solution cache the handlers use
type SolutionStore interface {
	Get(ctx context.Context, key string) (*optimizer.Solution, error)
	Set(ctx context.Context, key string, sol *optimizer.Solution, expiration time.Duration) error
	Flush(ctx context.Context) error
}

// DatasetLoader reads a fresh player snapshot from the configured source
type DatasetLoader func(ctx context.Context) (*models.PlayerDataset, error)

// Options tunes request handling
type Options struct {
	SolveTimeout time.Duration
	CacheTTL     time.Duration
}

// OptimizationHandler serves solves against the currently loaded snapshot.
// The snapshot is swapped atomically on reload so in-flight solves keep theirs.
type OptimizationHandler struct {
	optimizer *optimizer.Optimizer
	validator *optimizer.Validator
	dataset   atomic.Pointer[models.PlayerDataset]
	load      DatasetLoader
	cache     SolutionStore
	options   Options
	logger    *logrus.Logger
}

// NewOptimizationHandler creates a handler; cache may be nil to disable caching
func NewOptimizationHandler(
	opt *optimizer.Optimizer,
	initial *models.PlayerDataset,
	load DatasetLoader,
	cache SolutionStore,
	options Options,
	logger *logrus.Logger,
) *OptimizationHandler {
	h := &OptimizationHandler{
		optimizer: opt,
		validator: optimizer.NewValidator(opt.Rules()),
		load:      load,
		cache:     cache,
		options:   options,
		logger:    logger,
	}
	if initial != nil {
		h.dataset.Store(initial)
	}
	return h
}

// Dataset returns the snapshot currently served, nil before the first load
func (h *OptimizationHandler) Dataset() *models.PlayerDataset {
	return h.dataset.Load()
}

// OptimizeResponse is the payload of a solve request
type OptimizeResponse struct {
	Solution        *optimizer.Solution        `json:"solution"`
	Validation      optimizer.ValidationReport `json:"validation"`
	BudgetRemaining float64                    `json:"budget_remaining"`
	Cached          bool                       `json:"cached"`
}

// Optimize solves for the squad described by the request config.
// Fields missing from the body keep their default values.
func (h *OptimizationHandler) Optimize(c *gin.Context) {
	cfg := models.DefaultOptimizationConfig()
	if err := c.ShouldBindJSON(&cfg); err != nil && !errors.Is(err, io.EOF) {
		utils.SendValidationError(c, "Invalid request format", err.Error())
		return
	}
	if err := cfg.Validate(); err != nil {
		utils.SendSolveError(c, err)
		return
	}

	ds := h.dataset.Load()
	if ds == nil {
		utils.SendSolveError(c, models.ErrEmptyDataset)
		return
	}

	cacheKey := cache.Key(ds.Fingerprint(), cfg)
	if h.cache != nil {
		cached, err := h.cache.Get(c.Request.Context(), cacheKey)
		switch {
		case err == nil:
			h.logger.WithField("cache_key", cacheKey).Debug("Returning cached solution")
			h.respond(c, ds, cached, true)
			return
		case !errors.Is(err, cache.ErrCacheMiss):
			h.logger.WithError(err).Warn("Solution cache lookup failed")
		}
	}

	ctx := c.Request.Context()
	if h.options.SolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.options.SolveTimeout)
		defer cancel()
	}

	sol, err := h.optimizer.Optimize(ctx, ds, cfg)
	if err != nil {
		_ = c.Error(err)
		utils.SendSolveError(c, err)
		return
	}
	c.Set("solve_id", sol.SolveID)

	if h.cache != nil {
		if err := h.cache.Set(c.Request.Context(), cacheKey, sol, h.options.CacheTTL); err != nil {
			h.logger.WithError(err).Warn("Failed to cache solution")
		}
	}

	h.respond(c, ds, sol, false)
}

func (h *OptimizationHandler) respond(c *gin.Context, ds *models.PlayerDataset, sol *optimizer.Solution, cached bool) {
	resp := OptimizeResponse{
		Solution: sol,
		Cached:   cached,
	}
	if sol.Feasible {
		resp.Validation = h.validator.Validate(sol)
		resp.BudgetRemaining = sol.BudgetRemaining(h.optimizer.Rules())
	}
	utils.SendSuccessWithMeta(c, resp, utils.Meta{DatasetFingerprint: ds.Fingerprint(), SolveID: sol.SolveID})
}

// ValidateRequest carries either player ids from the loaded snapshot or full player records
type ValidateRequest struct {
	PlayerIDs       []int                      `json:"player_ids"`
	SelectedPlayers []optimizer.SelectedPlayer `json:"selected_players"`
}

// Validate re-checks a squad against the league rules
func (h *OptimizationHandler) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request format", err.Error())
		return
	}

	sol := &optimizer.Solution{SelectedPlayers: req.SelectedPlayers}
	if len(req.PlayerIDs) > 0 {
		ds := h.dataset.Load()
		if ds == nil {
			utils.SendSolveError(c, models.ErrEmptyDataset)
			return
		}
		players := make([]optimizer.SelectedPlayer, 0, len(req.PlayerIDs))
		for _, id := range req.PlayerIDs {
			p, ok := ds.Player(id)
			if !ok {
				utils.SendValidationError(c, "Unknown player id", fmt.Sprintf("player %d is not in the loaded snapshot", id))
				return
			}
			players = append(players, optimizer.SelectedPlayer{
				ID:       p.ID,
				Name:     p.Name,
				Position: p.Position,
				Team:     p.Team,
				TeamName: p.TeamName,
				Price:    p.Price,
			})
		}
		sol.SelectedPlayers = players
	}

	utils.SendSuccess(c, h.validator.Validate(sol))
}

// DatasetSummary describes the loaded snapshot
type DatasetSummary struct {
	Fingerprint    string                  `json:"fingerprint"`
	Players        int                     `json:"players"`
	GamesRemaining int                     `json:"games_remaining"`
	PositionCounts map[models.Position]int `json:"position_counts"`
	Rejected       []models.RejectedPlayer `json:"rejected"`
}

func summarize(ds *models.PlayerDataset) DatasetSummary {
	rejected := ds.Rejected()
	if rejected == nil {
		rejected = []models.RejectedPlayer{}
	}
	return DatasetSummary{
		Fingerprint:    ds.Fingerprint(),
		Players:        ds.Len(),
		GamesRemaining: ds.GamesRemaining(),
		PositionCounts: ds.PositionCounts(),
		Rejected:       rejected,
	}
}

// GetDataset returns a summary of the loaded snapshot
func (h *OptimizationHandler) GetDataset(c *gin.Context) {
	ds := h.dataset.Load()
	if ds == nil {
		utils.SendSolveError(c, models.ErrEmptyDataset)
		return
	}
	utils.SendSuccessWithMeta(c, summarize(ds), utils.Meta{DatasetFingerprint: ds.Fingerprint()})
}

// ErrReloadNotConfigured is returned by Reload when the handler has no loader
var ErrReloadNotConfigured = errors.New("dataset reload is not configured")

// Reload re-reads the snapshot source, swaps it in and drops cached solutions.
// On failure the previous snapshot keeps being served.
func (h *OptimizationHandler) Reload(ctx context.Context) (*models.PlayerDataset, error) {
	if h.load == nil {
		return nil, ErrReloadNotConfigured
	}

	ds, err := h.load(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to reload player snapshot")
		return nil, err
	}

	previous := h.dataset.Swap(ds)
	entry := h.logger.WithFields(logrus.Fields{
		"players":     ds.Len(),
		"rejected":    len(ds.Rejected()),
		"fingerprint": ds.Fingerprint(),
	})
	if previous != nil {
		entry = entry.WithField("previous_fingerprint", previous.Fingerprint())
	}
	entry.Info("Player snapshot reloaded")

	if h.cache != nil {
		if err := h.cache.Flush(ctx); err != nil {
			h.logger.WithError(err).Warn("Failed to flush solution cache after reload")
		}
	}
	return ds, nil
}

// ReloadDataset is the HTTP form of Reload
func (h *OptimizationHandler) ReloadDataset(c *gin.Context) {
	ds, err := h.Reload(c.Request.Context())
	switch {
	case errors.Is(err, ErrReloadNotConfigured):
		utils.SendError(c, http.StatusNotImplemented, utils.NewAppError(utils.ErrCodeDataSource, "Reload is not configured"))
		return
	case err != nil:
		utils.SendError(c, http.StatusBadGateway, utils.NewAppError(utils.ErrCodeDataSource, "Failed to reload player data", err.Error()))
		return
	}
	utils.SendSuccess(c, summarize(ds))
}
