package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/omni/root-bridge-syncer/presenter/http/render"
)

type ctxKey int

const (
	limitCtxKey ctxKey = iota
)

var ErrInvalidLimit = errors.New("invalid limit parameter")

// GetLimitMiddleware parses the optional ?limit= query parameter.
func GetLimitMiddleware(defaultLimit, maxLimit uint64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit := defaultLimit
			if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
				parsed, err := strconv.ParseUint(limitStr, 10, 32)
				if err != nil || parsed == 0 {
					render.Error(w, r, http.StatusBadRequest, fmt.Errorf("limit should be a positive integer: %w", ErrInvalidLimit))
					return
				}
				limit = parsed
			}
			if limit > maxLimit {
				limit = maxLimit
			}

			ctx := context.WithValue(r.Context(), limitCtxKey, limit)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func Limit(ctx context.Context) uint64 {
	if limit, ok := ctx.Value(limitCtxKey).(uint64); ok {
		return limit
	}
	return 0
}
