package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandleOpenAPI(t *testing.T) {
	h := handleOpenAPI()
	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	rec := httptest.NewRecorder()

	h(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "application/json") {
		t.Fatalf("content-type = %q, want application/json", got)
	}

	var doc struct {
		OpenAPI string                                `json:"openapi"`
		Paths   map[string]map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decoding document: %v", err)
	}
	if !strings.HasPrefix(doc.OpenAPI, "3.") {
		t.Errorf("openapi = %q, want 3.x", doc.OpenAPI)
	}

	ops := []struct{ method, path string }{
		{"get", "/healthz"},
		{"post", "/parties"},
		{"get", "/parties/{id}"},
		{"post", "/parties/{id}/join"},
		{"patch", "/parties/{id}/items"},
		{"post", "/parties/{id}/leave"},
		{"post", "/parties/{id}/remove"},
		{"post", "/parties/{id}/start"},
		{"post", "/parties/{id}/cancel"},
		{"post", "/parties/{id}/reveal"},
		{"post", "/parties/{id}/end"},
		{"get", "/parties/{id}/events"},
		{"get", "/parties/{id}/ws"},
		{"post", "/path-images/upload"},
		{"get", "/square-image"},
		{"get", "/square-preview"},
	}
	for _, op := range ops {
		if _, ok := doc.Paths[op.path][op.method]; !ok {
			t.Errorf("missing %s %s", strings.ToUpper(op.method), op.path)
		}
	}

	if img := string(doc.Paths["/square-image"]["get"]); !strings.Contains(img, "image/png") {
		t.Errorf("square image response should be documented as image/png")
	}
	if up := string(doc.Paths["/path-images/upload"]["post"]); !strings.Contains(up, "multipart/form-data") {
		t.Errorf("upload should be documented as a multipart form")
	}
}

func TestHandleSwaggerUI(t *testing.T) {
	h := handleSwaggerUI()
	req := httptest.NewRequest(http.MethodGet, "/docs", nil)
	rec := httptest.NewRecorder()

	h(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Expedition API") || !strings.Contains(body, "/openapi.json") {
		t.Fatalf("docs page does not point at the OpenAPI document")
	}
}
