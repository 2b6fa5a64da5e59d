package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"subpilot/internal/shared/types"
)

func newTestFetcher() *Fetcher {
	return New(types.FetchConf{TimeoutSeconds: 2}, zerolog.Nop())
}

func TestFetchAll_IsolatesSourceFailures(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("1.2.3.4:8080\n"))
	}))
	defer good.Close()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer bad.Close()

	sources := []types.Source{
		{URL: good.URL, Format: "text"},
		{URL: bad.URL},
		{URL: "http://127.0.0.1:1/unreachable"},
	}

	payloads := newTestFetcher().FetchAll(context.Background(), sources)

	if len(payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(payloads))
	}
	if payloads[0].Source.URL != good.URL {
		t.Errorf("unexpected payload source %q", payloads[0].Source.URL)
	}
	if string(payloads[0].Body) != "1.2.3.4:8080\n" {
		t.Errorf("unexpected payload body %q", payloads[0].Body)
	}
}

func TestFetchAll_KeepsSourceTag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	src := types.Source{URL: srv.URL, Format: "json"}
	payloads := newTestFetcher().FetchAll(context.Background(), []types.Source{src})

	if len(payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(payloads))
	}
	if payloads[0].Source != src {
		t.Errorf("payload lost its source tag: %+v", payloads[0].Source)
	}
}

func TestFetchAll_EmptySourceList(t *testing.T) {
	if payloads := newTestFetcher().FetchAll(context.Background(), nil); len(payloads) != 0 {
		t.Fatalf("expected no payloads, got %d", len(payloads))
	}
}

func TestFetchAll_SetsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	newTestFetcher().FetchAll(context.Background(), []types.Source{{URL: srv.URL}})

	if gotUA != userAgent {
		t.Errorf("expected browser user agent, got %q", gotUA)
	}
}
