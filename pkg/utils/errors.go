package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stitts-dev/fpl-squad-optimizer/internal/models"
	"github.com/stitts-dev/fpl-squad-optimizer/internal/optimizer"
)

type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func NewAppError(code string, message string, details ...string) *AppError {
	err := &AppError{
		Code:    code,
		Message: message,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeInvalidConfig = "INVALID_CONFIG"
	ErrCodeEmptyDataset  = "EMPTY_DATASET"
	ErrCodeSolverFailure = "SOLVER_FAILURE"
	ErrCodeSolveTimeout  = "SOLVE_TIMEOUT"
	ErrCodeDataSource    = "DATA_SOURCE_ERROR"
	ErrCodeInternal      = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
)

// ClassifySolveError maps an optimizer error to an HTTP status and AppError
func ClassifySolveError(err error) (int, *AppError) {
	switch {
	case errors.Is(err, models.ErrInvalidConfig):
		return http.StatusBadRequest, NewAppError(ErrCodeInvalidConfig, "Invalid optimization config", err.Error())
	case errors.Is(err, models.ErrEmptyDataset):
		return http.StatusServiceUnavailable, NewAppError(ErrCodeEmptyDataset, "No player data loaded", err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, NewAppError(ErrCodeSolveTimeout, "Solve did not finish in time", err.Error())
	case errors.Is(err, optimizer.ErrSolverFailure):
		return http.StatusInternalServerError, NewAppError(ErrCodeSolverFailure, "Solver failed", err.Error())
	}
	return http.StatusInternalServerError, NewAppError(ErrCodeInternal, "Optimization failed", err.Error())
}
