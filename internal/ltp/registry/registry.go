// Package registry selects the LTP connector named by export.ltp_system.
package registry

import (
	"log/slog"
	"net/http"
	"time"

	"ltpexport/internal/config"
	"ltpexport/internal/ltp"
	"ltpexport/internal/ltp/arclib"
	"ltpexport/internal/ltp/archivematica"
	"ltpexport/internal/services"
)

// New builds a fresh connector for the configured system. doer may be nil, in
// which case an http.Client bounded by worker.request_timeout is used.
func New(cfg *config.Config, doer ltp.HTTPDoer, logger *slog.Logger) (ltp.Connector, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "registry", "new connector", "configuration unavailable", nil)
	}
	if doer == nil {
		doer = &http.Client{Timeout: time.Duration(cfg.Worker.RequestTimeout) * time.Second}
	}
	switch cfg.Export.LTPSystem {
	case config.SystemArchivematica:
		opts := archivematica.OptionsFromConfig(cfg)
		opts.HTTP = doer
		opts.Logger = logger
		return archivematica.New(opts), nil
	case config.SystemARCLib:
		opts := arclib.OptionsFromConfig(cfg)
		opts.HTTP = doer
		opts.Logger = logger
		return arclib.New(opts), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "registry", "new connector",
			"unknown ltp_system "+cfg.Export.LTPSystem, nil)
	}
}

// Factory returns a constructor bound to cfg, for callers that need one
// connector per export unit.
func Factory(cfg *config.Config, doer ltp.HTTPDoer, logger *slog.Logger) func() (ltp.Connector, error) {
	return func() (ltp.Connector, error) {
		return New(cfg, doer, logger)
	}
}
