package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"montant": "must_be_positive"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	want := `{"error":"validation_failed","details":{"montant":"must_be_positive"}}`
	if w.Body.String() != want {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		accept string
		want   bool
	}{
		{"application/json", true},
		{"text/html,application/json", false},
		{"", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Accept", tt.accept)
		if got := WantsJSON(r); got != tt.want {
			t.Fatalf("WantsJSON(%q) = %v, want %v", tt.accept, got, tt.want)
		}
	}
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := BearerToken(r); ok {
		t.Fatalf("expected no token")
	}
	r.Header.Set("Authorization", "Bearer tok")
	if tok, ok := BearerToken(r); !ok || tok != "tok" {
		t.Fatalf("expected tok, got %q", tok)
	}
}
