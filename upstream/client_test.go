package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestForwardStripsTransferEncodingAndAddsMarker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Transfer-Encoding", "chunked")
		w.Header().Set("X-Upstream", "couchdb")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "", 0)
	resp, err := client.Forward(context.Background(), http.MethodGet, "/mydb/doc1", url.Values{}, nil, http.Header{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Transfer-Encoding") != "" {
		t.Fatalf("expected Transfer-Encoding to be stripped")
	}
	if resp.Header.Get("X-Fake-CouchDb-Read-Through") != "true" {
		t.Fatalf("expected the read-through marker header to be set")
	}
	if resp.Header.Get("X-Upstream") != "couchdb" {
		t.Fatalf("expected unrelated headers to pass through")
	}
}

func TestForwardPreservesQueryAndMethod(t *testing.T) {
	var gotMethod, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "", 0)
	q := url.Values{"rev": {"1-abc"}}
	_, err := client.Forward(context.Background(), http.MethodDelete, "/mydb/doc1", q, nil, http.Header{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Fatalf("expected DELETE, got %s", gotMethod)
	}
	if gotQuery != "rev=1-abc" {
		t.Fatalf("expected rev query param to be preserved, got %q", gotQuery)
	}
}
