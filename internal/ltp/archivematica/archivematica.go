package archivematica

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ltpexport/internal/config"
	"ltpexport/internal/logging"
	"ltpexport/internal/ltp"
	"ltpexport/internal/metadata"
	"ltpexport/internal/services"
	"ltpexport/internal/textutil"
)

// Name is the display name of the backend.
const Name = "Archivematica"

// MetadataFile is the SIP-relative metadata path.
const MetadataFile = "metadata/metadata.json"

// Transfer and ingest status labels.
const (
	statusComplete  = "COMPLETE"
	statusFailed    = "FAILED"
	statusRejected  = "REJECTED"
	statusUserInput = "USER_INPUT"
	sipBacklog      = "BACKLOG"
)

// Options configures a connector.
type Options struct {
	Host             string
	Username         string
	Password         string
	BaseURL          string
	SharedPath       string
	ProcessingConfig string
	TransferField    string
	SIPField         string
	SIPStrategy      string
	PollInterval     time.Duration
	HTTP             ltp.HTTPDoer
	Logger           *slog.Logger
	Now              func() time.Time
}

// OptionsFromConfig maps the [archivematica] section onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	am := cfg.Archivematica
	return Options{
		Host:             am.Host,
		Username:         am.Username,
		Password:         am.Password,
		BaseURL:          am.BaseURL,
		SharedPath:       am.SharedPath,
		ProcessingConfig: am.ProcessingConfig,
		TransferField:    am.TransferField,
		SIPField:         am.SIPField,
		SIPStrategy:      am.SIPStrategy,
		PollInterval:     time.Duration(cfg.Worker.StatusPollInterval) * time.Second,
	}
}

// Connector talks to the Archivematica storage pipeline API.
type Connector struct {
	ltp.Base
	opts   Options
	client *ltp.Client
	poller *ltp.Poller
	logger *slog.Logger
	now    func() time.Time
}

// New returns an Archivematica connector.
func New(opts Options) *Connector {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SIPStrategy == "" {
		opts.SIPStrategy = config.SIPStrategyTransferStatus
	}
	return &Connector{
		Base: ltp.NewBase(Name, opts.BaseURL, ltp.BackendConfig{
			System:        config.SystemArchivematica,
			TransferField: opts.TransferField,
			SIPField:      opts.SIPField,
		}),
		opts:   opts,
		client: ltp.NewClient(config.SystemArchivematica, opts.Host, opts.HTTP),
		poller: ltp.NewPoller(opts.PollInterval),
		logger: logging.NewComponentLogger(opts.Logger, "archivematica"),
		now:    opts.Now,
	}
}

// WriteSIP writes metadata/metadata.json and the objects. Records without a
// payload reference get an empty objects/<language>.txt placeholder.
func (c *Connector) WriteSIP(ctx context.Context, ref ltp.EntityRef, records []metadata.Record, payload metadata.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	layout, err := c.Store().Prepare(c.Directory())
	if err != nil {
		return err
	}

	out, placeholders := ltp.ObjectRecords(records)

	file, err := os.Create(filepath.Join(layout.Root, MetadataFile))
	if err != nil {
		return services.Wrap(services.ErrTransport, config.SystemArchivematica, "write sip", "create metadata.json", err)
	}
	enc := json.NewEncoder(file)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		_ = file.Close()
		return services.Wrap(services.ErrTransport, config.SystemArchivematica, "write sip", "encode metadata.json", err)
	}
	if err := file.Close(); err != nil {
		return services.Wrap(services.ErrTransport, config.SystemArchivematica, "write sip", "close metadata.json", err)
	}

	if err := ltp.CopyPayload(layout, payload); err != nil {
		return services.Wrap(services.ErrTransport, config.SystemArchivematica, "write sip", "copy payload", err)
	}
	if err := ltp.WritePlaceholders(layout, placeholders); err != nil {
		return services.Wrap(services.ErrTransport, config.SystemArchivematica, "write sip", "write placeholders", err)
	}

	c.logger.Debug("sip written",
		logging.String(logging.FieldDirectory, c.Directory()),
		logging.String("entity_type", ref.Type),
		logging.String("uuid", ref.UUID),
		logging.Int("records", len(out)),
		logging.Int("placeholders", len(placeholders)),
	)
	return nil
}

// StartIngest runs the shared ingest lifecycle against Archivematica.
func (c *Connector) StartIngest(ctx context.Context) (ltp.Result, error) {
	ctx = services.WithDirectory(ctx, c.Directory())
	return ltp.Ingest(ctx, ltp.Lifecycle{
		System:    config.SystemArchivematica,
		Store:     c.Store(),
		Directory: c.Directory(),
		Protocol:  c,
		Resolver:  c.resolver(),
		Poller:    c.poller,
		Logger:    c.logger,
	})
}

func (c *Connector) MetadataFile() string { return MetadataFile }

func (c *Connector) IncludeRoot() bool { return false }

func (c *Connector) WantsSums() bool { return false }

type packageRequest struct {
	Path             string `json:"path"`
	Name             string `json:"name"`
	ProcessingConfig string `json:"processing_config"`
	Type             string `json:"type"`
}

// Submit starts a zipfile transfer from the shared path.
func (c *Connector) Submit(ctx context.Context, archive ltp.Archive) (string, error) {
	shared := strings.TrimRight(c.opts.SharedPath, "/") + "/" + archive.Name
	req := packageRequest{
		Path:             base64.StdEncoding.EncodeToString([]byte(shared)),
		Name:             TransferName(archive.Name, c.now()),
		ProcessingConfig: c.opts.ProcessingConfig,
		Type:             "zipfile",
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.client.JSON(ctx, http.MethodPost, "/api/v2beta/package", c.authHeaders(), req, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.ID) == "" {
		return "", services.Wrap(services.ErrTransport, config.SystemArchivematica, "submit", "response carried no transfer id", nil)
	}
	return resp.ID, nil
}

type statusResponse struct {
	Status  string `json:"status"`
	SIPUUID string `json:"sip_uuid"`
	Message string `json:"message"`
}

// TransferStatus reads /api/transfer/status/{uuid}.
func (c *Connector) TransferStatus(ctx context.Context, transferID string) (ltp.Status, error) {
	var resp statusResponse
	if err := c.client.JSON(ctx, http.MethodGet, "/api/transfer/status/"+transferID, c.authHeaders(), nil, &resp); err != nil {
		return ltp.Status{}, err
	}
	return toStatus(resp), nil
}

func (c *Connector) ingestStatus(ctx context.Context, sipID string) (ltp.Status, error) {
	var resp statusResponse
	if err := c.client.JSON(ctx, http.MethodGet, "/api/ingest/status/"+sipID, c.authHeaders(), nil, &resp); err != nil {
		return ltp.Status{}, err
	}
	return toStatus(resp), nil
}

func (c *Connector) authHeaders() map[string]string {
	return map[string]string{"Authorization": "ApiKey " + c.opts.Username + ":" + c.opts.Password}
}

func toStatus(resp statusResponse) ltp.Status {
	status := ltp.Status{Label: resp.Status, SIPID: resp.SIPUUID, Message: resp.Message}
	switch strings.ToUpper(strings.TrimSpace(resp.Status)) {
	case statusComplete:
		status.State = ltp.StateComplete
	case statusFailed, statusRejected, statusUserInput:
		status.State = ltp.StateFailed
	default:
		status.State = ltp.StateProcessing
	}
	return status
}

// TransferName builds the ASCII transfer name "<archive>_<unix seconds>".
func TransferName(archiveName string, now time.Time) string {
	return textutil.ASCIIFold(archiveName + "_" + strconv.FormatInt(now.Unix(), 10))
}

func sipKnown(id string) bool {
	id = strings.TrimSpace(id)
	return id != "" && id != sipBacklog
}

func (c *Connector) resolver() ltp.SIPResolver {
	switch c.opts.SIPStrategy {
	case config.SIPStrategyIngestStatus:
		return ltp.SIPResolverFunc(c.resolveViaIngestStatus)
	default:
		return ltp.SIPResolverFunc(c.resolveFromTransferStatus)
	}
}

// resolveFromTransferStatus re-polls the transfer status until the SIP uuid
// leaves the backlog.
func (c *Connector) resolveFromTransferStatus(ctx context.Context, transferID string, final ltp.Status) (string, error) {
	if sipKnown(final.SIPID) {
		return final.SIPID, nil
	}
	sipID := ""
	err := c.poller.Until(ctx, func(ctx context.Context) (bool, error) {
		status, err := c.TransferStatus(ctx, transferID)
		if err != nil {
			return false, err
		}
		if status.State == ltp.StateFailed {
			return false, services.Wrap(services.ErrTerminalBackend, config.SystemArchivematica, "resolve sip",
				fmt.Sprintf("transfer %s ended in %s", transferID, status.Label), nil)
		}
		if sipKnown(status.SIPID) {
			sipID = status.SIPID
			return true, nil
		}
		return false, nil
	})
	return sipID, err
}

// resolveViaIngestStatus waits for the SIP uuid and then for the ingest of
// that SIP to complete.
func (c *Connector) resolveViaIngestStatus(ctx context.Context, transferID string, final ltp.Status) (string, error) {
	sipID, err := c.resolveFromTransferStatus(ctx, transferID, final)
	if err != nil {
		return "", err
	}
	err = c.poller.Until(ctx, func(ctx context.Context) (bool, error) {
		status, err := c.ingestStatus(ctx, sipID)
		if err != nil {
			return false, err
		}
		switch status.State {
		case ltp.StateComplete:
			return true, nil
		case ltp.StateFailed:
			return false, services.Wrap(services.ErrTerminalBackend, config.SystemArchivematica, "ingest status",
				fmt.Sprintf("ingest of sip %s ended in %s", sipID, status.Label), nil)
		default:
			return false, nil
		}
	})
	if err != nil {
		return "", err
	}
	return sipID, nil
}
