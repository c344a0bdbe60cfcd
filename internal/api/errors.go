package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/mboacare/dashboard/i18n"
)

// Kind separates failures where no response arrived from those where the
// server answered with an error status.
type Kind int

const (
	KindTransport Kind = iota + 1
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	}
	return "unknown"
}

// Error is returned by every Client call that fails after building the
// request.
type Error struct {
	Kind     Kind
	Status   int
	Message  string // server-supplied message, may be empty
	Endpoint string
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindServer:
		if e.Message != "" {
			return fmt.Sprintf("%s: %d %s", e.Endpoint, e.Status, e.Message)
		}
		return fmt.Sprintf("%s: status %d", e.Endpoint, e.Status)
	default:
		return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) && ae.Kind == KindServer {
		return ae.Status
	}
	return 0
}

// IsUnauthorized reports a 401 answer.
func IsUnauthorized(err error) bool { return StatusOf(err) == 401 }

// Describe turns err into a user-facing message: the server message when
// the body carried one, else the phrase for the status, else the generic
// connectivity phrase.
func Describe(err error, lang string) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Kind == KindServer {
			if ae.Message != "" {
				return ae.Message
			}
			return i18n.StatusPhrase(lang, ae.Status)
		}
		return i18n.T(lang, "network_error")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return i18n.T(lang, "network_error")
	}
	return i18n.T(lang, "http_unknown")
}

// Describer binds Describe to a language.
func Describer(lang string) func(error) string {
	return func(err error) string { return Describe(err, lang) }
}

// messageFrom extracts a human message from an error body. The API uses
// "message" (a string or a list of strings), "error" or "msg".
func messageFrom(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	res := gjson.ParseBytes(body)
	for _, path := range []string{"message", "error", "msg"} {
		v := res.Get(path)
		switch {
		case !v.Exists():
			continue
		case v.IsArray():
			var parts []string
			for _, item := range v.Array() {
				if s := strings.TrimSpace(item.String()); s != "" {
					parts = append(parts, s)
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, ", ")
			}
		case v.Type == gjson.String:
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		case v.IsObject():
			if s := strings.TrimSpace(v.Get("message").String()); s != "" {
				return s
			}
		}
	}
	return ""
}
