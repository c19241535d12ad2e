package session

import (
	"strings"

	"github.com/pkg/errors"
)

// UserIDCookie carries the authenticated user id.
const UserIDCookie = "auth_id"

type Cookie struct {
	Name  string
	Value string
}

// Cookies keeps insertion order so the serialized header is stable.
type Cookies []Cookie

// ParseCookies reads a "name=value; name2=value2" string, as copied from a
// browser. Empty segments are skipped.
func ParseCookies(raw string) (Cookies, error) {
	var out Cookies
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errors.Errorf("session: malformed cookie %q", part)
		}
		out = out.With(name, strings.TrimSpace(value))
	}
	return out, nil
}

// Get returns the value of the named cookie, or "".
func (c Cookies) Get(name string) string {
	for _, ck := range c {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

// With returns a copy with name set, replacing an existing value in place.
func (c Cookies) With(name, value string) Cookies {
	out := make(Cookies, len(c), len(c)+1)
	copy(out, c)
	for i := range out {
		if out[i].Name == name {
			out[i].Value = value
			return out
		}
	}
	return append(out, Cookie{Name: name, Value: value})
}

// String serializes as name=value pairs joined by "; ".
func (c Cookies) String() string {
	parts := make([]string, 0, len(c))
	for _, ck := range c {
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	return strings.Join(parts, "; ")
}

// Session is the caller-supplied identity sent with each request.
type Session struct {
	Cookies   Cookies
	XBC       string
	UserAgent string
}

// UserID is the auth_id cookie, empty when unauthenticated.
func (s Session) UserID() string {
	return s.Cookies.Get(UserIDCookie)
}
