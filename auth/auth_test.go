package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mboacare/dashboard/session"
)

func deviceCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatalf("no device cookie")
	return nil
}

func TestIssueAndParse(t *testing.T) {
	d := NewDevices("s3cret", session.NewMemoryStorage(), false)
	rr := httptest.NewRecorder()
	id := d.Issue(rr)
	c := deviceCookie(t, rr)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	got, ok := d.Parse(req)
	if !ok || got != id {
		t.Fatalf("Parse = %q %v, want %q", got, ok, id)
	}
}

func TestParseRejectsTampering(t *testing.T) {
	d := NewDevices("s3cret", session.NewMemoryStorage(), false)
	rr := httptest.NewRecorder()
	d.Issue(rr)
	c := deviceCookie(t, rr)

	other := NewDevices("another", session.NewMemoryStorage(), false)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	if _, ok := other.Parse(req); ok {
		t.Fatalf("cookie signed with another secret must be rejected")
	}

	forged := *c
	forged.Value = "not-a-uuid." + d.sign("not-a-uuid")
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&forged)
	if _, ok := d.Parse(req); ok {
		t.Fatalf("non uuid device id must be rejected")
	}

	swapped := *c
	swapped.Value = strings.Replace(c.Value, ".", ".x", 1)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&swapped)
	if _, ok := d.Parse(req); ok {
		t.Fatalf("bad signature must be rejected")
	}
}

func TestMiddlewareBindsStore(t *testing.T) {
	kv := session.NewMemoryStorage()
	d := NewDevices("s3cret", kv, false)

	var seen string
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := DeviceFromContext(r.Context())
		if !ok {
			t.Fatalf("no device in context")
		}
		seen = id
		st, ok := StoreFromContext(r.Context())
		if !ok {
			t.Fatalf("no store in context")
		}
		if err := st.Save(r.Context(), "u1", "tok"); err != nil {
			t.Fatalf("save: %v", err)
		}
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	c := deviceCookie(t, rr)

	if !d.Store(seen).IsAuthenticated(context.Background()) {
		t.Fatalf("session should be stored under the device id")
	}

	// a returning browser keeps its device
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	rr = httptest.NewRecorder()
	first := seen
	h.ServeHTTP(rr, req)
	if seen != first {
		t.Fatalf("device changed for a returning browser")
	}
	if len(rr.Result().Cookies()) != 0 {
		t.Fatalf("no new cookie expected")
	}
}

func TestRotate(t *testing.T) {
	d := NewDevices("s3cret", session.NewMemoryStorage(), true)
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	rr := httptest.NewRecorder()
	req, id := d.Rotate(rr, req)
	if got, _ := DeviceFromContext(req.Context()); got != id {
		t.Fatalf("context device = %q, want %q", got, id)
	}
	if c := deviceCookie(t, rr); !c.Secure {
		t.Fatalf("secure flag expected")
	}
}
