package trigger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestHTTP_WakeHitsEndpoint(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.ContentLength > 0 {
			t.Error("wake request must carry no payload")
		}
		hits.Add(1)
	}))
	defer srv.Close()

	if err := (HTTP{Endpoint: srv.URL + "/wake"}).Wake(context.Background()); err != nil {
		t.Fatalf("Wake: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}
}

func TestHTTP_WakeUnreachableConsumer(t *testing.T) {
	// A closed port: the error is reported but must be ignorable.
	err := HTTP{Endpoint: "http://127.0.0.1:1/wake"}.Wake(context.Background())
	if err == nil {
		t.Error("expected error for unreachable consumer")
	}
}

func TestHTTP_WakeRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if err := (HTTP{Endpoint: srv.URL}).Wake(context.Background()); err == nil {
		t.Error("expected error for 5xx status")
	}
}

func TestNoop_Wake(t *testing.T) {
	if err := (Noop{}).Wake(context.Background()); err != nil {
		t.Errorf("Wake: %v", err)
	}
}
