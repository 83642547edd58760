package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stitts-dev/fpl-squad-optimizer/internal/models"
	"github.com/stitts-dev/fpl-squad-optimizer/internal/optimizer"
)

func TestClassifySolveError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"config", fmt.Errorf("%w: bad weight", models.ErrInvalidConfig), http.StatusBadRequest, ErrCodeInvalidConfig},
		{"empty dataset", models.ErrEmptyDataset, http.StatusServiceUnavailable, ErrCodeEmptyDataset},
		{"timeout", fmt.Errorf("solve abc interrupted: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, ErrCodeSolveTimeout},
		{"solver", fmt.Errorf("%w: lp blew up", optimizer.ErrSolverFailure), http.StatusInternalServerError, ErrCodeSolverFailure},
		{"other", errors.New("boom"), http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, appErr := ClassifySolveError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, tt.err.Error(), appErr.Details)
		})
	}
}

func TestAppErrorMessage(t *testing.T) {
	assert.Equal(t, "X: msg", NewAppError("X", "msg").Error())
	assert.Equal(t, "X: msg - more", NewAppError("X", "msg", "more").Error())
}
