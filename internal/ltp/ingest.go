package ltp

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ltpexport/internal/logging"
	"ltpexport/internal/services"
	"ltpexport/internal/staging"
)

// Lifecycle binds the pieces of one ingest run.
type Lifecycle struct {
	System    string
	Store     *staging.Store
	Directory string
	Protocol  Protocol
	Resolver  SIPResolver
	Poller    *Poller
	Logger    *slog.Logger
}

// Ingest packages the staged unit, deletes the staging tree, submits the
// archive, polls until the transfer is terminal and resolves the SIP id.
// Terminal backend states return services.ErrTerminalBackend; nothing is
// retried.
func Ingest(ctx context.Context, lc Lifecycle) (Result, error) {
	logger := logging.WithContext(services.WithStage(ctx, "ingest"), lc.Logger)
	poller := lc.Poller
	if poller == nil {
		poller = NewPoller(DefaultPollInterval)
	}

	layout, err := lc.Store.Layout(lc.Directory)
	if err != nil {
		return Result{}, err
	}
	metadataPath := filepath.Join(layout.Root, lc.Protocol.MetadataFile())
	if _, err := os.Stat(metadataPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{}, services.Wrap(services.ErrValidation, lc.System, "start ingest",
				fmt.Sprintf("no %s found, transfer aborted", lc.Protocol.MetadataFile()), nil)
		}
		return Result{}, services.Wrap(services.ErrTransport, lc.System, "start ingest", "stat metadata", err)
	}

	archivePath, err := Package(lc.Store.Root, lc.Directory, lc.Protocol.IncludeRoot())
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransport, lc.System, "package", lc.Directory, err)
	}
	if err := lc.Store.Purge(lc.Directory); err != nil {
		return Result{}, err
	}

	sum, err := DigestFile(archivePath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransport, lc.System, "digest", archivePath, err)
	}
	if lc.Protocol.WantsSums() {
		if err := WriteSums(lc.Store.SumsPath(lc.Directory), sum); err != nil {
			return Result{}, services.Wrap(services.ErrTransport, lc.System, "write sums", lc.Directory, err)
		}
	}
	archive := Archive{
		Directory: lc.Directory,
		Path:      archivePath,
		Name:      filepath.Base(archivePath),
		Digest:    sum,
	}
	logger.Debug("archive packaged",
		logging.String("archive", archive.Path),
		logging.String("digest", sum.String()),
	)

	transferID, err := lc.Protocol.Submit(ctx, archive)
	if err != nil {
		return Result{}, err
	}
	logger.Info("transfer started",
		logging.String("system", lc.System),
		logging.String("transfer_id", transferID),
		logging.String(logging.FieldEventType, "transfer_started"),
	)

	started := time.Now()
	var final Status
	err = poller.Until(ctx, func(ctx context.Context) (bool, error) {
		status, err := lc.Protocol.TransferStatus(ctx, transferID)
		if err != nil {
			return false, err
		}
		logger.Debug("transfer status", logging.String("transfer_id", transferID), logging.String("status", status.Label))
		switch status.State {
		case StateComplete:
			final = status
			return true, nil
		case StateFailed:
			return false, services.Wrap(services.ErrTerminalBackend, lc.System, "transfer status",
				terminalMessage(transferID, status), nil)
		default:
			return false, nil
		}
	})
	if err != nil {
		return Result{TransferID: transferID}, err
	}

	sipID, err := lc.Resolver.ResolveSIP(ctx, transferID, final)
	if err != nil {
		return Result{TransferID: transferID}, err
	}
	logger.Info("transfer completed",
		logging.String("system", lc.System),
		logging.String("transfer_id", transferID),
		logging.String("sip_id", sipID),
		logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
		logging.String(logging.FieldEventType, "transfer_completed"),
	)
	return Result{TransferID: transferID, SIPID: sipID}, nil
}

func terminalMessage(id string, status Status) string {
	msg := fmt.Sprintf("transfer %s ended in %s", id, status.Label)
	if status.Message != "" {
		msg += ": " + status.Message
	}
	return msg
}
