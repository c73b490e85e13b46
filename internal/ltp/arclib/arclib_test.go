package arclib_test

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"ltpexport/internal/ltp"
	"ltpexport/internal/ltp/arclib"
	"ltpexport/internal/metadata"
	"ltpexport/internal/services"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type mets struct {
	XMLName xml.Name `xml:"http://www.loc.gov/METS/ mets"`
	Hdr     struct {
		Created  string `xml:"CREATEDATE,attr"`
		Modified string `xml:"LASTMODDATE,attr"`
	} `xml:"metsHdr"`
	Sections []dmdSec `xml:"dmdSec"`
}

type dmdSec struct {
	ID     string `xml:"ID,attr"`
	Status string `xml:"STATUS,attr"`
	Wrap   struct {
		MDType string `xml:"MDTYPE,attr"`
		Data   struct {
			Entries []entry `xml:",any"`
		} `xml:"xmlData"`
	} `xml:"mdWrap"`
}

type entry struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

func TestWriteMETSRoundTrip(t *testing.T) {
	records := []metadata.Record{
		{Filename: "objects/scan.tif", ID: "7", UUID: "u-7", EntityType: "media", ExportLanguage: "en", Status: "1",
			Fields: []metadata.Field{{Name: "title", Value: "Fish & <Chips>"}}},
		{ID: "7", UUID: "u-7", EntityType: "media", ExportLanguage: "cs", Status: "1", Deleted: true},
	}
	var buf bytes.Buffer
	if err := arclib.WriteMETS(&buf, "site_media_u-7_1709294400", records, fixedNow); err != nil {
		t.Fatalf("WriteMETS: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`xmlns:mets="http://www.loc.gov/METS/"`,
		`xsi:schemaLocation="http://www.loc.gov/METS/ http://www.loc.gov/standards/mets/version1121/mets.xsd"`,
		`<mets:metsHdr CREATEDATE="2024-03-01T12:00:00Z" LASTMODDATE="2024-03-01T12:00:00Z">`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in\n%s", want, out)
		}
	}

	var doc mets
	if err := xml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, out)
	}
	if len(doc.Sections) != 3 {
		t.Fatalf("expected 3 dmdSec, got %d", len(doc.Sections))
	}
	first := doc.Sections[0]
	if first.ID != "dmdSec_authorial_id" || first.Status != "original" || first.Wrap.MDType != "OTHER" {
		t.Fatalf("unexpected authorial section %+v", first)
	}
	if len(first.Wrap.Data.Entries) != 1 || first.Wrap.Data.Entries[0].Value != "site_media_u-7_1709294400" {
		t.Fatalf("unexpected authorial id %+v", first.Wrap.Data.Entries)
	}
	for i, r := range records {
		sec := doc.Sections[i+1]
		if want := "dmdSec_metadata_" + string(rune('0'+i)); sec.ID != want {
			t.Fatalf("section id = %s, want %s", sec.ID, want)
		}
		values := r.Values()
		if len(sec.Wrap.Data.Entries) != len(values) {
			t.Fatalf("section %d has %d entries, want %d", i, len(sec.Wrap.Data.Entries), len(values))
		}
		for j, f := range values {
			if sec.Wrap.Data.Entries[j].XMLName.Local != f.Name || sec.Wrap.Data.Entries[j].Value != f.Value {
				t.Fatalf("section %d entry %d = %s:%q, want %s:%q", i, j,
					sec.Wrap.Data.Entries[j].XMLName.Local, sec.Wrap.Data.Entries[j].Value, f.Name, f.Value)
			}
		}
	}
}

func TestWriteMETSRejectsInvalidElementName(t *testing.T) {
	records := []metadata.Record{
		{ID: "7", UUID: "u-7", EntityType: "media", ExportLanguage: "en",
			Fields: []metadata.Field{{Name: "dc title", Value: "x"}}},
	}
	var buf bytes.Buffer
	if err := arclib.WriteMETS(&buf, "site_media_u-7_1709294400", records, fixedNow); err == nil {
		t.Fatalf("expected error for invalid element name, wrote:\n%s", buf.String())
	}
}

func TestAuthorialID(t *testing.T) {
	if got := arclib.AuthorialID("demo_nid_1", time.Unix(99, 0)); got != "demo_nid_1_99" {
		t.Fatalf("unexpected authorial id %q", got)
	}
}

type fakeARCLib struct {
	t           *testing.T
	mu          sync.Mutex
	states      []string
	polls       int
	logins      int
	token       string
	form        map[string]string
	zipBytes    []byte
	zipType     string
	pollAuth    []string
	lookupAuth  string
	externalIDs []string
}

func (f *fakeARCLib) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/user/login", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		user, pass, ok := r.BasicAuth()
		if !ok || user != "producer" || pass != "secret" {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
			return
		}
		f.logins++
		if f.token != "" {
			w.Header().Set("Bearer", f.token)
		}
	})
	mux.HandleFunc("POST /api/batch/process_one", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer "+f.token {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			f.t.Errorf("parse multipart: %v", err)
			return
		}
		f.form = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			f.form[k] = v[0]
		}
		file, header, err := r.FormFile("sipContent")
		if err != nil {
			f.t.Errorf("sipContent: %v", err)
			return
		}
		defer file.Close()
		f.zipType = header.Header.Get("Content-Type")
		f.zipBytes, _ = io.ReadAll(file)
		_, _ = w.Write([]byte("\"batch-9\"\n"))
	})
	mux.HandleFunc("GET /api/batch/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.pollAuth = append(f.pollAuth, r.Header.Get("Authorization"))
		state := f.states[min(f.polls, len(f.states)-1)]
		f.polls++
		workflows := []map[string]string{}
		for _, id := range f.externalIDs {
			workflows = append(workflows, map[string]string{"externalId": id})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"state": state, "ingestWorkflows": workflows})
	})
	mux.HandleFunc("GET /api/ingest_workflow/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lookupAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ingestWorkflow": map[string]any{"sip": map[string]string{"id": "sip-for-" + r.PathValue("id")}},
		})
	})
	return mux
}

func newConnector(t *testing.T, srv *httptest.Server) (*arclib.Connector, string) {
	t.Helper()
	base := t.TempDir()
	c := arclib.New(arclib.Options{
		Host:              srv.URL,
		Username:          "producer",
		Password:          "secret",
		BaseURL:           base,
		Workflow:          `{"planner":{}}`,
		ProducerProfileID: "profile-1",
		TransferField:     "field_transfer_uuid",
		SIPField:          "field_sip_uuid",
		PollInterval:      time.Millisecond,
		HTTP:              srv.Client(),
		Now:               func() time.Time { return fixedNow },
	})
	c.SetDirectory("demo_media_u-7")
	return c, base
}

func stage(t *testing.T, c *arclib.Connector, payload metadata.Payload) {
	t.Helper()
	records := []metadata.Record{
		{Filename: payload.Filename, ID: "7", UUID: "u-7", EntityType: "media", ExportLanguage: "en", Status: "1"},
	}
	if err := c.WriteSIP(context.Background(), ltp.EntityRef{Type: "media", UUID: "u-7"}, records, payload); err != nil {
		t.Fatalf("WriteSIP: %v", err)
	}
}

func TestWriteSIPPlaceholdersForRecordsWithoutFile(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	c, base := newConnector(t, srv)

	records := []metadata.Record{
		{Filename: "doc.pdf", ID: "1", EntityType: "media", ExportLanguage: "en"},
		{ID: "1", EntityType: "media", ExportLanguage: "cs"},
	}
	if err := c.WriteSIP(context.Background(), ltp.EntityRef{Type: "media"}, records, metadata.Payload{}); err != nil {
		t.Fatalf("WriteSIP: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(base, "demo_media_u-7", "metadata", "metadata.xml"))
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, "<filename>objects/doc.pdf</filename>") {
		t.Fatalf("expected prefixed filename:\n%s", out)
	}
	if !strings.Contains(out, "<filename>objects/cs.txt</filename>") {
		t.Fatalf("expected placeholder filename:\n%s", out)
	}
	if !strings.Contains(out, "<authorial_id>demo_media_u-7_1709294400</authorial_id>") {
		t.Fatalf("expected authorial id:\n%s", out)
	}
	info, err := os.Stat(filepath.Join(base, "demo_media_u-7", "objects", "cs.txt"))
	if err != nil || info.Size() != 0 {
		t.Fatalf("expected empty placeholder objects/cs.txt: %v", err)
	}
}

func TestStartIngestHappyPath(t *testing.T) {
	fake := &fakeARCLib{t: t, token: "tok-1",
		states:      []string{"PROCESSING", "PROCESSING", "PROCESSED"},
		externalIDs: []string{"wf-1", "wf-2"},
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()
	c, base := newConnector(t, srv)

	src := filepath.Join(t.TempDir(), "scan.tif")
	if err := os.WriteFile(src, []byte("image bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	stage(t, c, metadata.Payload{SourcePath: src, Filename: "scan.tif"})

	result, err := c.StartIngest(context.Background())
	if err != nil {
		t.Fatalf("StartIngest: %v", err)
	}
	if result.TransferID != "batch-9" || result.SIPID != "sip-for-wf-1" {
		t.Fatalf("unexpected result %+v", result)
	}
	if fake.logins != 1 || fake.polls != 3 {
		t.Fatalf("logins=%d polls=%d", fake.logins, fake.polls)
	}
	for _, auth := range append(fake.pollAuth, fake.lookupAuth) {
		if auth != "Bearer tok-1" {
			t.Fatalf("unexpected auth header %q", auth)
		}
	}

	sum := sha512.Sum512(fake.zipBytes)
	hexSum := hex.EncodeToString(sum[:])
	if fake.form["hashType"] != "Sha512" || fake.form["hashValue"] != hexSum {
		t.Fatalf("unexpected hash fields %v", fake.form)
	}
	if fake.form["workflowConfig"] != `{"planner":{}}` || fake.form["producerProfileExternalId"] != "profile-1" {
		t.Fatalf("unexpected form %v", fake.form)
	}
	if fake.zipType != "application/zip" {
		t.Fatalf("unexpected sipContent content type %q", fake.zipType)
	}

	sums, err := os.ReadFile(filepath.Join(base, "demo_media_u-7.sums"))
	if err != nil {
		t.Fatalf("read sums: %v", err)
	}
	if string(sums) != "Sha512 "+hexSum {
		t.Fatalf("unexpected sums %q", sums)
	}

	zr, err := zip.NewReader(bytes.NewReader(fake.zipBytes), int64(len(fake.zipBytes)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	want := []string{
		"demo_media_u-7/",
		"demo_media_u-7/metadata/metadata.xml",
		"demo_media_u-7/objects/scan.tif",
	}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("zip entries = %v, want %v", names, want)
	}
}

func TestStartIngestTerminalState(t *testing.T) {
	fake := &fakeARCLib{t: t, token: "tok", states: []string{"PROCESSING", "FAILED"}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()
	c, _ := newConnector(t, srv)
	stage(t, c, metadata.Payload{})

	result, err := c.StartIngest(context.Background())
	if !errors.Is(err, services.ErrTerminalBackend) {
		t.Fatalf("expected terminal failure, got %v", err)
	}
	if result.TransferID != "batch-9" || result.SIPID != "" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestStartIngestWithoutTokenIsTransportError(t *testing.T) {
	fake := &fakeARCLib{t: t, states: []string{"PROCESSED"}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()
	c, _ := newConnector(t, srv)
	stage(t, c, metadata.Payload{})

	if _, err := c.StartIngest(context.Background()); !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if fake.form != nil {
		t.Fatal("nothing should be uploaded without a token")
	}
}

func TestStartIngestRequiresMetadata(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	c, base := newConnector(t, srv)
	if err := os.MkdirAll(filepath.Join(base, "demo_media_u-7", "objects"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := c.StartIngest(context.Background()); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "demo_media_u-7")); err != nil {
		t.Fatal("unit must be left in place when metadata is missing")
	}
}

func TestProcessedWithoutWorkflowIsTerminal(t *testing.T) {
	fake := &fakeARCLib{t: t, token: "tok", states: []string{"PROCESSED"}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()
	c, _ := newConnector(t, srv)
	stage(t, c, metadata.Payload{})

	if _, err := c.StartIngest(context.Background()); !errors.Is(err, services.ErrTerminalBackend) {
		t.Fatalf("expected terminal failure, got %v", err)
	}
}
