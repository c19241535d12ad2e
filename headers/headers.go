package headers

import (
	"net/http"
	"sort"

	"github.com/quantumauth-io/rulesign-go/session"
	"github.com/quantumauth-io/rulesign-go/signing"
)

type HeaderKey string

const (
	HeaderAccept         HeaderKey = "accept"
	HeaderAcceptLanguage HeaderKey = "accept-language"
	HeaderAppToken       HeaderKey = "app-token"
	HeaderSign           HeaderKey = "sign"
	HeaderTime           HeaderKey = "time"
	HeaderUserID         HeaderKey = "user-id"
	HeaderUserAgent      HeaderKey = "user-agent"
	HeaderXBC            HeaderKey = "x-bc"
	HeaderCookie         HeaderKey = "cookie"

	DefaultAccept         = "application/json, text/plain, */*"
	DefaultAcceptLanguage = "it-IT,it;q=0.9"
)

// Set is the flat header mapping for one signed request.
type Set map[HeaderKey]string

type Input struct {
	AppToken  string
	Signature signing.Signature
	Session   session.Session
	// AcceptLanguage overrides DefaultAcceptLanguage when set.
	AcceptLanguage string
}

// Assemble joins signature, session and token into a Set. The user-id
// header is always the session's auth_id cookie, the same value the digest
// was computed over.
func Assemble(in Input) Set {
	lang := in.AcceptLanguage
	if lang == "" {
		lang = DefaultAcceptLanguage
	}
	return Set{
		HeaderAccept:         DefaultAccept,
		HeaderAcceptLanguage: lang,
		HeaderAppToken:       in.AppToken,
		HeaderSign:           in.Signature.Value,
		HeaderTime:           in.Signature.Timestamp,
		HeaderUserID:         in.Session.UserID(),
		HeaderUserAgent:      in.Session.UserAgent,
		HeaderXBC:            in.Session.XBC,
		HeaderCookie:         in.Session.Cookies.String(),
	}
}

// Apply copies the set onto h, replacing existing values.
func (s Set) Apply(h http.Header) {
	for k, v := range s {
		h.Set(string(k), v)
	}
}

// Keys returns header names in lexical order.
func (s Set) Keys() []HeaderKey {
	keys := make([]HeaderKey, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
