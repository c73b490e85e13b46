package testsupport

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"ltpexport/internal/ltp"
	"ltpexport/internal/metadata"
)

// FakeBackend records what fake connectors were asked to do and scripts the
// ingest outcome.
type FakeBackend struct {
	BaseURL string

	mu      sync.Mutex
	result  ltp.Result
	err     error
	writes  []string
	ingests []string
}

// NewFakeBackend stages units under baseURL.
func NewFakeBackend(baseURL string) *FakeBackend {
	return &FakeBackend{BaseURL: baseURL}
}

// SetIngest scripts the value StartIngest returns.
func (b *FakeBackend) SetIngest(result ltp.Result, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.result = result
	b.err = err
}

// Writes returns the directories WriteSIP was called for.
func (b *FakeBackend) Writes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.writes...)
}

// Ingests returns the directories StartIngest was called for.
func (b *FakeBackend) Ingests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.ingests...)
}

// Factory returns a constructor yielding a fresh connector per call.
func (b *FakeBackend) Factory() func() (ltp.Connector, error) {
	return func() (ltp.Connector, error) {
		return &fakeConnector{
			Base: ltp.NewBase("Fake", b.BaseURL, ltp.BackendConfig{
				System:        "fake",
				TransferField: "field_transfer_uuid",
				SIPField:      "field_sip_uuid",
			}),
			backend: b,
		}, nil
	}
}

// RecordsPath is where fake connectors serialize the records of a unit.
func RecordsPath(baseURL, directory string) string {
	return filepath.Join(baseURL, directory, "metadata", "records.json")
}

type fakeConnector struct {
	ltp.Base
	backend *FakeBackend
}

func (c *fakeConnector) WriteSIP(_ context.Context, _ ltp.EntityRef, records []metadata.Record, payload metadata.Payload) error {
	layout, err := c.Store().Prepare(c.Directory())
	if err != nil {
		return err
	}
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	if err := os.WriteFile(RecordsPath(c.BaseURL(), c.Directory()), data, 0o644); err != nil {
		return err
	}
	if err := ltp.CopyPayload(layout, payload); err != nil {
		return err
	}
	c.backend.mu.Lock()
	c.backend.writes = append(c.backend.writes, c.Directory())
	c.backend.mu.Unlock()
	return nil
}

func (c *fakeConnector) StartIngest(context.Context) (ltp.Result, error) {
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	c.backend.ingests = append(c.backend.ingests, c.Directory())
	return c.backend.result, c.backend.err
}
