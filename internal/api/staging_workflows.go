package api

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ltpexport/internal/staging"
)

// ActiveDirectoryProvider surfaces directories still referenced by the queue.
type ActiveDirectoryProvider interface {
	ActiveDirectories(ctx context.Context) (map[string]struct{}, error)
}

type CleanStagingRequest struct {
	BaseURL  string
	MaxAge   time.Duration
	Orphaned bool
	Active   ActiveDirectoryProvider
	Logger   *slog.Logger
}

type CleanStagingResult struct {
	Configured bool
	Scope      string
	Cleanup    staging.CleanResult
}

// CleanStagingDirectories applies staging cleanup policy used by CLI commands.
// Orphaned cleanup removes units without a queue item; otherwise units older
// than MaxAge are removed. Locked units survive either way.
func CleanStagingDirectories(ctx context.Context, req CleanStagingRequest) (CleanStagingResult, error) {
	baseURL := strings.TrimSpace(req.BaseURL)
	if baseURL == "" {
		return CleanStagingResult{Configured: false}, nil
	}

	if !req.Orphaned {
		return CleanStagingResult{
			Configured: true,
			Scope:      "stale staging",
			Cleanup:    staging.CleanStale(ctx, baseURL, req.MaxAge, req.Logger),
		}, nil
	}

	if req.Active == nil {
		return CleanStagingResult{}, errors.New("active directory provider is required for orphaned cleanup")
	}
	active, err := req.Active.ActiveDirectories(ctx)
	if err != nil {
		return CleanStagingResult{}, err
	}
	return CleanStagingResult{
		Configured: true,
		Scope:      "orphaned staging",
		Cleanup:    staging.CleanOrphaned(ctx, baseURL, active, req.Logger),
	}, nil
}
