package arclib

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ltpexport/internal/config"
	"ltpexport/internal/logging"
	"ltpexport/internal/ltp"
	"ltpexport/internal/metadata"
	"ltpexport/internal/services"
)

// Name is the display name of the backend.
const Name = "ARCLib"

// MetadataFile is the SIP-relative metadata path.
const MetadataFile = "metadata/metadata.xml"

// Batch states reported by /api/batch/{id}.
const (
	stateProcessing = "PROCESSING"
	stateProcessed  = "PROCESSED"
)

// tokenHeader is the login response header carrying the bearer token.
const tokenHeader = "Bearer"

// Options configures a connector.
type Options struct {
	Host              string
	Username          string
	Password          string
	BaseURL           string
	Workflow          string
	ProducerProfileID string
	TransferField     string
	SIPField          string
	PollInterval      time.Duration
	HTTP              ltp.HTTPDoer
	Logger            *slog.Logger
	Now               func() time.Time
}

// OptionsFromConfig maps the [arclib] section onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	arc := cfg.ARCLib
	return Options{
		Host:              arc.Host,
		Username:          arc.Username,
		Password:          arc.Password,
		BaseURL:           arc.BaseURL,
		Workflow:          arc.Workflow,
		ProducerProfileID: arc.ProducerProfileID,
		TransferField:     arc.TransferField,
		SIPField:          arc.SIPField,
		PollInterval:      time.Duration(cfg.Worker.StatusPollInterval) * time.Second,
	}
}

// Connector talks to the ARCLib batch API.
type Connector struct {
	ltp.Base
	opts   Options
	client *ltp.Client
	poller *ltp.Poller
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	token string
}

// New returns an ARCLib connector.
func New(opts Options) *Connector {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Connector{
		Base: ltp.NewBase(Name, opts.BaseURL, ltp.BackendConfig{
			System:        config.SystemARCLib,
			TransferField: opts.TransferField,
			SIPField:      opts.SIPField,
		}),
		opts:   opts,
		client: ltp.NewClient(config.SystemARCLib, opts.Host, opts.HTTP),
		poller: ltp.NewPoller(opts.PollInterval),
		logger: logging.NewComponentLogger(opts.Logger, "arclib"),
		now:    opts.Now,
	}
}

// WriteSIP writes metadata/metadata.xml and copies the payload. Records
// without a payload reference get an empty objects/<language>.txt placeholder.
func (c *Connector) WriteSIP(ctx context.Context, ref ltp.EntityRef, records []metadata.Record, payload metadata.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	layout, err := c.Store().Prepare(c.Directory())
	if err != nil {
		return err
	}

	out, placeholders := ltp.ObjectRecords(records)

	now := c.now()
	file, err := os.Create(filepath.Join(layout.Root, MetadataFile))
	if err != nil {
		return services.Wrap(services.ErrTransport, config.SystemARCLib, "write sip", "create metadata.xml", err)
	}
	if err := WriteMETS(file, AuthorialID(c.Directory(), now), out, now); err != nil {
		_ = file.Close()
		return services.Wrap(services.ErrTransport, config.SystemARCLib, "write sip", "encode metadata.xml", err)
	}
	if err := file.Close(); err != nil {
		return services.Wrap(services.ErrTransport, config.SystemARCLib, "write sip", "close metadata.xml", err)
	}

	if err := ltp.CopyPayload(layout, payload); err != nil {
		return services.Wrap(services.ErrTransport, config.SystemARCLib, "write sip", "copy payload", err)
	}
	if err := ltp.WritePlaceholders(layout, placeholders); err != nil {
		return services.Wrap(services.ErrTransport, config.SystemARCLib, "write sip", "write placeholders", err)
	}
	c.logger.Debug("sip written",
		logging.String(logging.FieldDirectory, c.Directory()),
		logging.String("entity_type", ref.Type),
		logging.String("uuid", ref.UUID),
		logging.Int("records", len(out)),
	)
	return nil
}

// StartIngest runs the shared ingest lifecycle against ARCLib.
func (c *Connector) StartIngest(ctx context.Context) (ltp.Result, error) {
	ctx = services.WithDirectory(ctx, c.Directory())
	return ltp.Ingest(ctx, ltp.Lifecycle{
		System:    config.SystemARCLib,
		Store:     c.Store(),
		Directory: c.Directory(),
		Protocol:  c,
		Resolver:  ltp.SIPResolverFunc(c.resolveSIP),
		Poller:    c.poller,
		Logger:    c.logger,
	})
}

func (c *Connector) MetadataFile() string { return MetadataFile }

func (c *Connector) IncludeRoot() bool { return true }

func (c *Connector) WantsSums() bool { return true }

// Login exchanges the configured credentials for a bearer token and keeps it
// for subsequent requests.
func (c *Connector) Login(ctx context.Context) (string, error) {
	creds := base64.StdEncoding.EncodeToString([]byte(c.opts.Username + ":" + c.opts.Password))
	resp, err := c.client.Do(ctx, ltp.Request{
		Method:  http.MethodPost,
		Path:    "/api/user/login",
		Headers: map[string]string{"Authorization": "Basic " + creds},
	})
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(resp.Header.Get(tokenHeader))
	if token == "" {
		return "", services.Wrap(services.ErrTransport, config.SystemARCLib, "login", "response carried no Bearer header", nil)
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return token, nil
}

func (c *Connector) authHeaders() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]string{"Authorization": "Bearer " + c.token}
}

// Submit logs in and uploads the archive to /api/batch/process_one. The
// response body is the batch id.
func (c *Connector) Submit(ctx context.Context, archive ltp.Archive) (string, error) {
	if _, err := c.Login(ctx); err != nil {
		return "", err
	}
	src, err := os.Open(archive.Path)
	if err != nil {
		return "", services.Wrap(services.ErrTransport, config.SystemARCLib, "submit", "open archive", err)
	}
	defer src.Close()

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(c.writeForm(mw, archive, src))
	}()

	resp, err := c.client.Do(ctx, ltp.Request{
		Method:      http.MethodPost,
		Path:        "/api/batch/process_one",
		Body:        pr,
		ContentType: mw.FormDataContentType(),
		Headers:     c.authHeaders(),
	})
	if err != nil {
		return "", err
	}
	id := strings.Trim(strings.TrimSpace(string(resp.Body)), `"`)
	if id == "" {
		return "", services.Wrap(services.ErrTransport, config.SystemARCLib, "submit", "response carried no batch id", nil)
	}
	return id, nil
}

func (c *Connector) writeForm(mw *multipart.Writer, archive ltp.Archive, src io.Reader) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     "sipContent",
		"filename": archive.Name,
	}))
	header.Set("Content-Type", "application/zip")
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return err
	}
	fields := [][2]string{
		{"workflowConfig", c.opts.Workflow},
		{"hashType", ltp.SumsAlgorithmLabel},
		{"hashValue", archive.Digest.Encoded()},
		{"producerProfileExternalId", c.opts.ProducerProfileID},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	return mw.Close()
}

type batchResponse struct {
	State           string `json:"state"`
	IngestWorkflows []struct {
		ExternalID string `json:"externalId"`
	} `json:"ingestWorkflows"`
}

// TransferStatus reads /api/batch/{id}. Any state other than PROCESSING or
// PROCESSED is terminal.
func (c *Connector) TransferStatus(ctx context.Context, batchID string) (ltp.Status, error) {
	var resp batchResponse
	if err := c.client.JSON(ctx, http.MethodGet, "/api/batch/"+batchID, c.authHeaders(), nil, &resp); err != nil {
		return ltp.Status{}, err
	}
	status := ltp.Status{Label: resp.State}
	switch strings.ToUpper(strings.TrimSpace(resp.State)) {
	case stateProcessing:
		status.State = ltp.StateProcessing
	case stateProcessed:
		status.State = ltp.StateComplete
		if len(resp.IngestWorkflows) > 0 {
			status.ExternalID = resp.IngestWorkflows[0].ExternalID
		}
	default:
		status.State = ltp.StateFailed
	}
	return status, nil
}

type ingestWorkflowResponse struct {
	IngestWorkflow struct {
		SIP struct {
			ID string `json:"id"`
		} `json:"sip"`
	} `json:"ingestWorkflow"`
}

// resolveSIP looks up the SIP id of the batch's first ingest workflow.
func (c *Connector) resolveSIP(ctx context.Context, batchID string, final ltp.Status) (string, error) {
	if final.ExternalID == "" {
		return "", services.Wrap(services.ErrTerminalBackend, config.SystemARCLib, "resolve sip",
			fmt.Sprintf("batch %s finished without an ingest workflow", batchID), nil)
	}
	var resp ingestWorkflowResponse
	if err := c.client.JSON(ctx, http.MethodGet, "/api/ingest_workflow/"+final.ExternalID, c.authHeaders(), nil, &resp); err != nil {
		return "", err
	}
	sipID := strings.TrimSpace(resp.IngestWorkflow.SIP.ID)
	if sipID == "" {
		return "", services.Wrap(services.ErrTransport, config.SystemARCLib, "resolve sip",
			"ingest workflow "+final.ExternalID+" carried no sip id", nil)
	}
	return sipID, nil
}
