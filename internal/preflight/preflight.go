package preflight

import (
	"context"

	"ltpexport/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Entity directory", cfg.Paths.EntityDir),
		CheckDirectoryAccess("Export base path", cfg.BaseURL()),
		CheckFieldConfiguration(cfg.Export.FieldConfiguration),
	}

	switch cfg.Export.LTPSystem {
	case config.SystemARCLib:
		results = append(results, CheckHost(ctx, "ARCLib host", cfg.ARCLib.Host))
	default:
		results = append(results, CheckHost(ctx, "Archivematica host", cfg.Archivematica.Host))
	}

	if cfg.Queue.Backend == config.QueueBackendRedis {
		results = append(results, CheckRedis(ctx, cfg.Queue.RedisURL, cfg.Queue.RedisKey))
	}
	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
