package archivematica_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"ltpexport/internal/config"
	"ltpexport/internal/ltp"
	"ltpexport/internal/ltp/archivematica"
	"ltpexport/internal/metadata"
	"ltpexport/internal/services"
)

type fakeArchivematica struct {
	t             *testing.T
	mu            sync.Mutex
	transferPolls []string
	sipValues     []string
	ingestPolls   []string
	submitted     map[string]string
	auth          string
	ingestCalls   int
	transferCalls int
}

func (f *fakeArchivematica) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v2beta/package", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&f.submitted); err != nil {
			f.t.Errorf("decode submit body: %v", err)
		}
		_, _ = w.Write([]byte(`{"id":"transfer-uuid-1"}`))
	})
	mux.HandleFunc("GET /api/transfer/status/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		i := min(f.transferCalls, len(f.transferPolls)-1)
		f.transferCalls++
		sip := ""
		if i < len(f.sipValues) {
			sip = f.sipValues[i]
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": f.transferPolls[i], "sip_uuid": sip})
	})
	mux.HandleFunc("GET /api/ingest/status/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		i := min(f.ingestCalls, len(f.ingestPolls)-1)
		f.ingestCalls++
		_ = json.NewEncoder(w).Encode(map[string]string{"status": f.ingestPolls[i], "uuid": r.PathValue("id")})
	})
	return mux
}

func newConnector(t *testing.T, srv *httptest.Server, strategy string) (*archivematica.Connector, string) {
	t.Helper()
	base := t.TempDir()
	c := archivematica.New(archivematica.Options{
		Host:             srv.URL,
		Username:         "demo",
		Password:         "secret",
		BaseURL:          base,
		SharedPath:       "/var/archivematica/shared/",
		ProcessingConfig: "automated",
		TransferField:    "field_transfer_uuid",
		SIPField:         "field_sip_uuid",
		SIPStrategy:      strategy,
		PollInterval:     time.Millisecond,
		HTTP:             srv.Client(),
		Now:              func() time.Time { return time.Unix(1700000000, 0) },
	})
	c.SetDirectory("demo_nid_42")
	return c, base
}

func sampleRecords() []metadata.Record {
	return []metadata.Record{
		{ID: "42", UUID: "u-42", EntityType: "node", ExportLanguage: "cs", Status: "1",
			Fields: []metadata.Field{{Name: "title", Value: "Ahoj / <svět>"}}},
		{ID: "42", UUID: "u-42", EntityType: "node", ExportLanguage: "en", Status: "1",
			Fields: []metadata.Field{{Name: "title", Value: "Hello"}}},
	}
}

func TestWriteSIPWithPayload(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	c, base := newConnector(t, srv, "")

	src := filepath.Join(t.TempDir(), "scan.tif")
	if err := os.WriteFile(src, []byte("tiff"), 0o644); err != nil {
		t.Fatal(err)
	}
	records := []metadata.Record{{Filename: "scan.tif", ID: "42", UUID: "u", EntityType: "media", ExportLanguage: "en", Status: "1"}}
	payload := metadata.Payload{SourcePath: src, Filename: "scan.tif"}

	if err := c.WriteSIP(context.Background(), ltp.EntityRef{Type: "media", UUID: "u"}, records, payload); err != nil {
		t.Fatalf("WriteSIP: %v", err)
	}

	unit := filepath.Join(base, "demo_nid_42")
	if data, err := os.ReadFile(filepath.Join(unit, "objects", "scan.tif")); err != nil || string(data) != "tiff" {
		t.Fatalf("payload not copied: %v %q", err, data)
	}
	raw, err := os.ReadFile(filepath.Join(unit, "metadata", "metadata.json"))
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	if !strings.Contains(string(raw), `"filename":"objects/scan.tif"`) {
		t.Fatalf("slashes must not be escaped: %s", raw)
	}
	var decoded []map[string]string
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if len(decoded) != 1 || decoded[0]["export_language"] != "en" || decoded[0]["deleted"] != "false" {
		t.Fatalf("unexpected metadata %v", decoded)
	}
}

func TestWriteSIPPlaceholdersRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	c, base := newConnector(t, srv, "")

	records := sampleRecords()
	if err := c.WriteSIP(context.Background(), ltp.EntityRef{Type: "node"}, records, metadata.Payload{}); err != nil {
		t.Fatalf("WriteSIP: %v", err)
	}
	unit := filepath.Join(base, "demo_nid_42")
	for _, lang := range []string{"cs", "en"} {
		info, err := os.Stat(filepath.Join(unit, "objects", lang+".txt"))
		if err != nil || info.Size() != 0 {
			t.Fatalf("expected empty placeholder for %s: %v", lang, err)
		}
	}

	raw, err := os.ReadFile(filepath.Join(unit, "metadata", "metadata.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "<svět>") {
		t.Fatalf("html characters must not be escaped: %s", raw)
	}
	var decoded []map[string]string
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	for i, r := range records {
		got := decoded[i]
		for _, f := range r.Values() {
			want := f.Value
			if f.Name == metadata.KeyFilename {
				want = "objects/" + r.ExportLanguage + ".txt"
			}
			if got[f.Name] != want {
				t.Fatalf("record %d field %s = %q, want %q", i, f.Name, got[f.Name], want)
			}
		}
	}
}

func stage(t *testing.T, c *archivematica.Connector) {
	t.Helper()
	if err := c.WriteSIP(context.Background(), ltp.EntityRef{Type: "node"}, sampleRecords(), metadata.Payload{}); err != nil {
		t.Fatalf("WriteSIP: %v", err)
	}
}

func TestStartIngestTransferStatusStrategy(t *testing.T) {
	fake := &fakeArchivematica{t: t,
		transferPolls: []string{"PROCESSING", "COMPLETE", "COMPLETE", "COMPLETE"},
		sipValues:     []string{"", "BACKLOG", "BACKLOG", "sip-uuid-7"},
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()
	c, base := newConnector(t, srv, config.SIPStrategyTransferStatus)
	stage(t, c)

	result, err := c.StartIngest(context.Background())
	if err != nil {
		t.Fatalf("StartIngest: %v", err)
	}
	if result.TransferID != "transfer-uuid-1" || result.SIPID != "sip-uuid-7" {
		t.Fatalf("unexpected result %+v", result)
	}
	if fake.auth != "ApiKey demo:secret" {
		t.Fatalf("unexpected auth header %q", fake.auth)
	}
	path, _ := base64.StdEncoding.DecodeString(fake.submitted["path"])
	if string(path) != "/var/archivematica/shared/demo_nid_42.zip" {
		t.Fatalf("unexpected shared path %q", path)
	}
	if fake.submitted["name"] != "demo_nid_42.zip_1700000000" || fake.submitted["type"] != "zipfile" ||
		fake.submitted["processing_config"] != "automated" {
		t.Fatalf("unexpected submit body %v", fake.submitted)
	}
	if _, err := os.Stat(filepath.Join(base, "demo_nid_42")); !os.IsNotExist(err) {
		t.Fatal("staging directory should be removed after packaging")
	}
	if _, err := os.Stat(filepath.Join(base, "demo_nid_42.zip")); err != nil {
		t.Fatalf("archive should remain: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "demo_nid_42.sums")); !os.IsNotExist(err) {
		t.Fatal("archivematica does not write a sums sidecar")
	}
}

func TestStartIngestIngestStatusStrategy(t *testing.T) {
	fake := &fakeArchivematica{t: t,
		transferPolls: []string{"COMPLETE"},
		sipValues:     []string{"sip-uuid-3"},
		ingestPolls:   []string{"PROCESSING", "COMPLETE"},
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()
	c, _ := newConnector(t, srv, config.SIPStrategyIngestStatus)
	stage(t, c)

	result, err := c.StartIngest(context.Background())
	if err != nil {
		t.Fatalf("StartIngest: %v", err)
	}
	if result.SIPID != "sip-uuid-3" || fake.ingestCalls != 2 {
		t.Fatalf("unexpected result %+v after %d ingest polls", result, fake.ingestCalls)
	}
}

func TestStartIngestTerminalStates(t *testing.T) {
	for _, state := range []string{"FAILED", "REJECTED", "USER_INPUT"} {
		t.Run(state, func(t *testing.T) {
			fake := &fakeArchivematica{t: t, transferPolls: []string{state}}
			srv := httptest.NewServer(fake.handler())
			defer srv.Close()
			c, _ := newConnector(t, srv, "")
			stage(t, c)

			result, err := c.StartIngest(context.Background())
			if !errors.Is(err, services.ErrTerminalBackend) {
				t.Fatalf("expected terminal failure, got %v", err)
			}
			if result.SIPID != "" || fake.transferCalls != 1 {
				t.Fatalf("unexpected result %+v after %d polls", result, fake.transferCalls)
			}
		})
	}
}

func TestStartIngestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()
	c, _ := newConnector(t, srv, "")
	stage(t, c)

	if _, err := c.StartIngest(context.Background()); !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestTransferNameFoldsToASCII(t *testing.T) {
	got := archivematica.TransferName("Přehled.zip", time.Unix(42, 0))
	if got != "Prehled.zip_42" {
		t.Fatalf("unexpected transfer name %q", got)
	}
}

func TestConnectorIdentity(t *testing.T) {
	cfg := config.Default()
	cfg.Archivematica.BaseURL = "/srv/am"
	opts := archivematica.OptionsFromConfig(&cfg)
	c := archivematica.New(opts)
	var _ ltp.Connector = c
	if c.Name() != "Archivematica" || c.BaseURL() != "/srv/am" {
		t.Fatalf("unexpected identity %s %s", c.Name(), c.BaseURL())
	}
	if c.Config().TransferField != "field_transfer_uuid" || c.Config().System != config.SystemArchivematica {
		t.Fatalf("unexpected config %+v", c.Config())
	}
}
