package signing

import (
	"regexp"
	"testing"
	"time"

	"github.com/quantumauth-io/rulesign-go/rules"
	"github.com/stretchr/testify/require"
)

var hexDigest = regexp.MustCompile(`^[0-9a-f]{40}$`)

func fixedRules() *rules.Rules {
	return &rules.Rules{
		AppToken:         "token",
		MessageSalt:      "msg",
		ChecksumConstant: 100,
		ChecksumIndexes:  []int{0, 5, 39},
		Prefix:           "abc",
		Suffix:           "def",
		Strategy:         rules.StrategyFixed,
	}
}

func templatedRules() *rules.Rules {
	return &rules.Rules{
		AppToken:         "token",
		MessageSalt:      "salt",
		ChecksumConstant: 7,
		ChecksumIndexes:  []int{3, 10, 20, 30, 39},
		SignFormat:       "51119:{sha}:{checksum}:67a5f1bc",
		Strategy:         rules.StrategyTemplated,
	}
}

func TestDigestReferenceVector(t *testing.T) {
	msg := Message("msg", "1700000000000", "/api2/v2/users/me", "")
	require.Equal(t, "msg\n1700000000000\n/api2/v2/users/me\n", msg)
	require.Equal(t, "e79e59958ef894ac1777ff080cdfc49024f0d906", Digest(msg))
}

func TestDeriveFixed(t *testing.T) {
	sig, err := DeriveAt(fixedRules(), RequestContext{
		Path:      "/api2/v2/users/me",
		Timestamp: time.UnixMilli(1700000000000),
	})
	require.NoError(t, err)

	require.Equal(t, "1700000000000", sig.Timestamp)
	require.Equal(t, "e79e59958ef894ac1777ff080cdfc49024f0d906", sig.Digest)
	// 'e' + '9' + '6' = 212, plus 100.
	require.Equal(t, 312, sig.Checksum)
	require.Equal(t, "abc:e79e59958ef894ac1777ff080cdfc49024f0d906:138:def", sig.Value)
}

func TestDeriveTemplated(t *testing.T) {
	sig, err := DeriveAt(templatedRules(), RequestContext{
		Path:      "/api2/v2/users/me",
		UserID:    "12345",
		Timestamp: time.UnixMilli(1700000000123),
	})
	require.NoError(t, err)

	require.Equal(t, "b5753d8c98461a2c86f8e9950f342be35f091dc9", sig.Digest)
	require.Equal(t, 371, sig.Checksum)
	require.Equal(t, "51119:b5753d8c98461a2c86f8e9950f342be35f091dc9:173:67a5f1bc", sig.Value)
}

func TestDeriveIsDeterministic(t *testing.T) {
	rc := RequestContext{Path: "/api2/v2/users/me", UserID: "1", Timestamp: time.UnixMilli(1700000000000)}

	a, err := DeriveAt(templatedRules(), rc)
	require.NoError(t, err)
	b, err := DeriveAt(templatedRules(), rc)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestDigestChangesWithEveryInput(t *testing.T) {
	base := Digest(Message("msg", "1700000000000", "/p", "u"))
	require.Regexp(t, hexDigest, base)

	variants := []string{
		Message("msg2", "1700000000000", "/p", "u"),
		Message("msg", "1700000000001", "/p", "u"),
		Message("msg", "1700000000000", "/q", "u"),
		Message("msg", "1700000000000", "/p", "v"),
	}
	for _, m := range variants {
		d := Digest(m)
		require.Regexp(t, hexDigest, d)
		require.NotEqual(t, base, d, m)
	}
}

func TestChecksum(t *testing.T) {
	digest := "b5753d8c98461a2c86f8e9950f342be35f091dc9"

	got, err := Checksum(digest, -500, []int{1, 2})
	require.NoError(t, err)
	require.Equal(t, -392, got)
	require.Equal(t, "-188", FormatChecksum(got))

	got, err = Checksum(digest, 42, nil)
	require.NoError(t, err)
	require.Equal(t, 42, got)
}

func TestChecksumOutOfRange(t *testing.T) {
	digest := Digest("x")
	for _, idx := range []int{40, -1, 1000} {
		_, err := Checksum(digest, 0, []int{0, idx})
		require.ErrorIs(t, err, ErrIndexOutOfRange, idx)
	}

	r := fixedRules()
	r.ChecksumIndexes = []int{0, 40}
	_, err := DeriveAt(r, RequestContext{Path: "/p", Timestamp: time.UnixMilli(1)})
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestFormatChecksum(t *testing.T) {
	require.Equal(t, "1a", FormatChecksum(26))
	require.Equal(t, "ff", FormatChecksum(255))
	require.Equal(t, "0", FormatChecksum(0))
}

func TestRenderTemplate(t *testing.T) {
	require.Equal(t, "abc:1a", RenderTemplate("{sha}:{checksum}", "abc", "1a"))
	require.Equal(t, "abc-abc:1a:{other}", RenderTemplate("{sha}-{sha}:{checksum}:{other}", "abc", "1a"))
	require.Equal(t, "static", RenderTemplate("static", "abc", "1a"))
}

func TestRenderUnknownStrategy(t *testing.T) {
	r := fixedRules()
	r.Strategy = 0
	_, err := Render(r, "d", "1")
	require.ErrorIs(t, err, rules.ErrUnknownStrategy)
}

func TestDeriveRejectsBadInput(t *testing.T) {
	_, err := DeriveAt(nil, RequestContext{Path: "/p"})
	require.ErrorIs(t, err, ErrMissingConfiguration)

	_, err = Derive(fixedRules(), "", "")
	require.ErrorIs(t, err, ErrInvalidPath)
}

func TestDeriveUsesWallClock(t *testing.T) {
	before := time.Now().UnixMilli()
	sig, err := Derive(fixedRules(), "/p", "")
	require.NoError(t, err)
	after := time.Now().UnixMilli()

	ts := sig.Timestamp
	require.Regexp(t, `^\d{13}$`, ts)
	require.GreaterOrEqual(t, ts, RequestContext{Timestamp: time.UnixMilli(before)}.Millis())
	require.LessOrEqual(t, ts, RequestContext{Timestamp: time.UnixMilli(after)}.Millis())
}

func TestSigner(t *testing.T) {
	clock := func() time.Time { return time.UnixMilli(1700000000000) }
	s, err := NewSigner(fixedRules(), clock)
	require.NoError(t, err)
	require.Equal(t, "msg", s.Rules().MessageSalt)

	sig, err := s.Sign("/api2/v2/users/me", "")
	require.NoError(t, err)
	require.Equal(t, "abc:e79e59958ef894ac1777ff080cdfc49024f0d906:138:def", sig.Value)

	bad := fixedRules()
	bad.AppToken = ""
	_, err = NewSigner(bad, clock)
	require.ErrorIs(t, err, ErrMissingConfiguration)
}

func TestDeriveRejectsIncompleteRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *rules.Rules)
		want   error
	}{
		{name: "zero value", mutate: func(r *rules.Rules) { *r = rules.Rules{} }, want: ErrMissingConfiguration},
		{name: "empty app token", mutate: func(r *rules.Rules) { r.AppToken = "" }, want: ErrMissingConfiguration},
		{name: "empty prefix", mutate: func(r *rules.Rules) { r.Prefix = "" }, want: ErrMissingConfiguration},
		{name: "empty suffix", mutate: func(r *rules.Rules) { r.Suffix = "" }, want: ErrMissingConfiguration},
		{name: "no strategy", mutate: func(r *rules.Rules) { r.Strategy = 0 }, want: ErrMissingConfiguration},
		{
			name: "templated without format",
			mutate: func(r *rules.Rules) {
				r.Strategy = rules.StrategyTemplated
				r.SignFormat = ""
			},
			want: ErrMissingConfiguration,
		},
		{
			name: "template without sha placeholder",
			mutate: func(r *rules.Rules) {
				r.Strategy = rules.StrategyTemplated
				r.SignFormat = "x"
			},
			want: ErrMissingConfiguration,
		},
		{name: "index past digest", mutate: func(r *rules.Rules) { r.ChecksumIndexes = []int{1, 40} }, want: ErrIndexOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := fixedRules()
			tt.mutate(r)

			sig, err := DeriveAt(r, RequestContext{Path: "/api2/v2/users/me", Timestamp: time.UnixMilli(1700000000000)})
			require.ErrorIs(t, err, tt.want)
			require.Equal(t, Signature{}, sig)
		})
	}
}
