package cli

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/diagramforge/diagramforge/pkg/compile"
	"github.com/diagramforge/diagramforge/pkg/config"
	"github.com/diagramforge/diagramforge/pkg/errors"
	"github.com/diagramforge/diagramforge/pkg/store"
)

func newTestHandler() http.Handler {
	compiler := compile.New(compile.Options{})
	logger := log.NewWithOptions(io.Discard, log.Options{})
	return newServer(compiler, store.NewMemoryStore(), logger).routes()
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	w := doRequest(t, newTestHandler(), http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != "ok" {
		t.Errorf("body = %q, want ok", w.Body.String())
	}
}

func TestCompileEndpoint(t *testing.T) {
	w := doRequest(t, newTestHandler(), http.MethodPost, "/v1/compile", testDoc)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q, want image/svg+xml", ct)
	}
	if !strings.HasPrefix(w.Body.String(), "<svg") {
		t.Errorf("body should be SVG, got %.40q", w.Body.String())
	}
}

func TestCompileEndpointRejectsBadDocument(t *testing.T) {
	w := doRequest(t, newTestHandler(), http.MethodPost, "/v1/compile",
		`<svg xmlns="http://www.w3.org/2000/svg"/>`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Code != string(errors.CodeInvalidRoot) {
		t.Errorf("code = %q, want %q", resp.Code, errors.CodeInvalidRoot)
	}
	if resp.Message == "" {
		t.Error("error message should not be empty")
	}
}

func TestDocumentCRUD(t *testing.T) {
	h := newTestHandler()

	body, _ := json.Marshal(documentRequest{Name: "arch", Source: testDoc})
	w := doRequest(t, h, http.MethodPost, "/v1/documents", string(body))
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	var doc store.Document
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.ID == "" || doc.SVG == "" {
		t.Fatalf("created document missing ID or SVG: %+v", doc)
	}

	w = doRequest(t, h, http.MethodGet, "/v1/documents", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var docs []store.Document
	if err := json.Unmarshal(w.Body.Bytes(), &docs); err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].ID != doc.ID {
		t.Errorf("list = %+v, want one document %s", docs, doc.ID)
	}

	w = doRequest(t, h, http.MethodGet, "/v1/documents/"+doc.ID+"/svg", "")
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Body.String(), "<svg") {
		t.Errorf("svg fetch = %d %.40q", w.Code, w.Body.String())
	}

	update, _ := json.Marshal(documentRequest{Name: "renamed", Source: testDoc})
	w = doRequest(t, h, http.MethodPut, "/v1/documents/"+doc.ID, string(update))
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", w.Code, w.Body.String())
	}
	var updated store.Document
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatal(err)
	}
	if updated.Name != "renamed" {
		t.Errorf("Name = %q, want renamed", updated.Name)
	}

	w = doRequest(t, h, http.MethodDelete, "/v1/documents/"+doc.ID, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doRequest(t, h, http.MethodGet, "/v1/documents/"+doc.ID, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
}

func TestCreateDocumentRejectsBadSource(t *testing.T) {
	body, _ := json.Marshal(documentRequest{Name: "bad", Source: "<oops"})
	w := doRequest(t, newTestHandler(), http.MethodPost, "/v1/documents", string(body))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestNewStoreSelection(t *testing.T) {
	s, err := newStore(context.Background(), config.ServeConfig{Store: "memory"})
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	if _, ok := s.(*store.MemoryStore); !ok {
		t.Errorf("store = %T, want *store.MemoryStore", s)
	}

	if _, err := newStore(context.Background(), config.ServeConfig{Store: "redis"}); err == nil {
		t.Error("redis store without URL should fail")
	}
	if _, err := newStore(context.Background(), config.ServeConfig{Store: "mongo"}); err == nil {
		t.Error("mongo store without URI should fail")
	}
	if _, err := newStore(context.Background(), config.ServeConfig{Store: "bogus"}); err == nil {
		t.Error("unknown store should fail")
	}
}
