package headers

import (
	"net/http"
	"testing"

	"github.com/quantumauth-io/rulesign-go/session"
	"github.com/quantumauth-io/rulesign-go/signing"
	"github.com/stretchr/testify/require"
)

func testInput() Input {
	return Input{
		AppToken: "33d57ade8c02dbc5a333db99ff9ae26a",
		Signature: signing.Signature{
			Value:     "abc:digest:1a:def",
			Timestamp: "1700000000000",
		},
		Session: session.Session{
			Cookies: session.Cookies{
				{Name: "sess", Value: "s1"},
				{Name: "auth_id", Value: "42"},
			},
			XBC:       "device-token",
			UserAgent: "Mozilla/5.0",
		},
	}
}

func TestAssemble(t *testing.T) {
	got := Assemble(testInput())

	require.Equal(t, Set{
		HeaderAccept:         DefaultAccept,
		HeaderAcceptLanguage: DefaultAcceptLanguage,
		HeaderAppToken:       "33d57ade8c02dbc5a333db99ff9ae26a",
		HeaderSign:           "abc:digest:1a:def",
		HeaderTime:           "1700000000000",
		HeaderUserID:         "42",
		HeaderUserAgent:      "Mozilla/5.0",
		HeaderXBC:            "device-token",
		HeaderCookie:         "sess=s1; auth_id=42",
	}, got)
}

func TestAssembleAcceptLanguageOverride(t *testing.T) {
	in := testInput()
	in.AcceptLanguage = "en-US"
	require.Equal(t, "en-US", Assemble(in)[HeaderAcceptLanguage])
}

func TestAssembleAnonymous(t *testing.T) {
	got := Assemble(Input{AppToken: "t"})
	require.Equal(t, "", got[HeaderUserID])
	require.Equal(t, "", got[HeaderCookie])
	require.Len(t, got, 9)
}

func TestApply(t *testing.T) {
	h := http.Header{}
	h.Set("Sign", "stale")

	Assemble(testInput()).Apply(h)

	require.Equal(t, "abc:digest:1a:def", h.Get("sign"))
	require.Len(t, h.Values("sign"), 1)
	require.Equal(t, "sess=s1; auth_id=42", h.Get("Cookie"))
	require.Equal(t, "device-token", h.Get("X-Bc"))
}

func TestKeysSorted(t *testing.T) {
	keys := Assemble(testInput()).Keys()
	require.Len(t, keys, 9)
	require.Equal(t, HeaderAccept, keys[0])
	require.Equal(t, HeaderXBC, keys[len(keys)-1])
}
