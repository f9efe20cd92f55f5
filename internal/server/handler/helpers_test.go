package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrNoMarket, http.StatusNotFound},
		{domain.ErrUnauthorized, http.StatusForbidden},
		{domain.ErrRateLimited, http.StatusTooManyRequests},
		{domain.ErrBetTooSmall, http.StatusBadRequest},
		{domain.ErrAlreadySettled, http.StatusConflict},
		{fmt.Errorf("lifecycle: claim: %w", domain.ErrAlreadyClaimed), http.StatusConflict},
		{domain.ErrOracleUnavailable, http.StatusServiceUnavailable},
		{domain.ErrInvariantViolation, http.StatusInternalServerError},
		{domain.ErrInsufficientAllowance, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
