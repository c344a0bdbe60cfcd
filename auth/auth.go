// Package auth identifies browsers with a signed device cookie and binds each
// request to the session store of its device.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mboacare/dashboard/session"
)

type ctxKey string

const (
	// CookieName names the device cookie.
	CookieName   = "mboa_device"
	deviceCtxKey = ctxKey("device")
	storeCtxKey  = ctxKey("session")
	cookieMaxAge = 180 * 24 * time.Hour
)

// Devices issues and verifies device cookies. The session entries of every
// device live in one shared storage under the device id.
type Devices struct {
	secret []byte
	kv     session.Storage
	secure bool
}

// NewDevices signs cookies with secret. secure marks cookies HTTPS-only.
func NewDevices(secret string, kv session.Storage, secure bool) *Devices {
	return &Devices{secret: []byte(secret), kv: kv, secure: secure}
}

func (d *Devices) sign(id string) string {
	mac := hmac.New(sha256.New, d.secret)
	mac.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Issue sets a cookie for a fresh device id and returns the id.
func (d *Devices) Issue(w http.ResponseWriter) string {
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id + "." + d.sign(id),
		Path:     "/",
		HttpOnly: true,
		Secure:   d.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(cookieMaxAge),
	})
	return id
}

// Clear deletes the device cookie.
func (d *Devices) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: CookieName, Value: "", Path: "/", Expires: time.Unix(0, 0), HttpOnly: true, Secure: d.secure, SameSite: http.SameSiteLaxMode})
}

// Parse validates the cookie and returns the device id.
func (d *Devices) Parse(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	id, sig, ok := strings.Cut(c.Value, ".")
	if !ok || !hmac.Equal([]byte(sig), []byte(d.sign(id))) {
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

// Store returns the session store of device id.
func (d *Devices) Store(id string) *session.Store {
	return session.NewStore(session.Namespace(d.kv, id))
}

// Rotate replaces the device id of the request, typically right before a
// login, and returns the new id with its store.
func (d *Devices) Rotate(w http.ResponseWriter, r *http.Request) (*http.Request, string) {
	id := d.Issue(w)
	ctx := context.WithValue(r.Context(), deviceCtxKey, id)
	ctx = context.WithValue(ctx, storeCtxKey, d.Store(id))
	return r.WithContext(ctx), id
}

// Middleware makes sure every request has a device and attaches the device
// id and its session store to the context.
func (d *Devices) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := d.Parse(r)
		if !ok {
			id = d.Issue(w)
		}
		ctx := context.WithValue(r.Context(), deviceCtxKey, id)
		ctx = context.WithValue(ctx, storeCtxKey, d.Store(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DeviceFromContext extracts the device id.
func DeviceFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(deviceCtxKey).(string)
	return id, ok && id != ""
}

// StoreFromContext extracts the session store of the request's device.
func StoreFromContext(ctx context.Context) (*session.Store, bool) {
	s, ok := ctx.Value(storeCtxKey).(*session.Store)
	return s, ok && s != nil
}
