package services_test

import (
	"errors"
	"strings"
	"testing"

	"ltpexport/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransport, "ingest", "submit", "post package", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"ingest", "submit", "post package", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := services.Wrap(services.ErrLockTimeout, "", "", "", nil)
	if !errors.Is(err, services.ErrLockTimeout) {
		t.Fatalf("expected lock timeout marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestKindMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrLockTimeout, "export", "lock", "", nil), "lock_timeout"},
		{services.Wrap(services.ErrConfiguration, "export", "fields", "", nil), "configuration"},
		{services.Wrap(services.ErrTerminalBackend, "ingest", "poll", "FAILED", nil), "terminal_backend_failure"},
		{services.Wrap(services.ErrNotFound, "worker", "load", "", nil), "entity_not_found"},
		{services.Wrap(services.ErrTransport, "ingest", "poll", "", errors.New("eof")), "transport"},
		{errors.New("plain"), "internal"},
	}
	for _, tc := range cases {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
