// Package signing derives the per-request "sign" header from published
// rules.
//
// The digest is SHA-1 over salt, millisecond timestamp, path and user id
// joined by newlines, in that order. The checksum adds the byte values of
// selected digest characters to a constant. Both are then rendered either
// as prefix:digest:checksum:suffix or through a {sha}/{checksum} template.
package signing

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/quantumauth-io/rulesign-go/rules"
)

var (
	ErrMissingConfiguration = rules.ErrMissingConfiguration
	ErrIndexOutOfRange      = rules.ErrIndexOutOfRange
	ErrInvalidPath          = errors.New("signing: path must be non-empty")
)

// RequestContext is the per-call input to the digest.
type RequestContext struct {
	Path      string
	UserID    string
	Timestamp time.Time
}

// Millis is the decimal unix millisecond timestamp sent in the time header.
func (rc RequestContext) Millis() string {
	return strconv.FormatInt(rc.Timestamp.UnixMilli(), 10)
}

type Signature struct {
	// Value goes in the sign header.
	Value string
	// Timestamp must be sent verbatim in the time header.
	Timestamp string
	Digest    string
	Checksum  int
}

// Message builds the digest input.
func Message(salt, timestamp, path, userID string) string {
	return strings.Join([]string{salt, timestamp, path, userID}, "\n")
}

// Digest returns the lowercase hex SHA-1 of msg.
func Digest(msg string) string {
	sum := sha1.Sum([]byte(msg))
	return hex.EncodeToString(sum[:])
}

// Checksum adds the character codes at indexes of digest to constant.
func Checksum(digest string, constant int, indexes []int) (int, error) {
	sum := constant
	for pos, idx := range indexes {
		if idx < 0 || idx >= len(digest) {
			return 0, errors.Wrapf(ErrIndexOutOfRange, "index %d at position %d, digest length %d", idx, pos, len(digest))
		}
		sum += int(digest[idx])
	}
	return sum, nil
}

// FormatChecksum renders a checksum as lowercase hex without a 0x prefix.
// Negative values keep their sign.
func FormatChecksum(checksum int) string {
	return strconv.FormatInt(int64(checksum), 16)
}

// Render produces the sign header value for the rules' strategy.
func Render(r *rules.Rules, digest, checksumHex string) (string, error) {
	if r == nil {
		return "", errors.Wrap(ErrMissingConfiguration, "nil rules")
	}
	switch r.Strategy {
	case rules.StrategyFixed:
		return strings.Join([]string{r.Prefix, digest, checksumHex, r.Suffix}, ":"), nil
	case rules.StrategyTemplated:
		return RenderTemplate(r.SignFormat, digest, checksumHex), nil
	default:
		return "", errors.Wrapf(rules.ErrUnknownStrategy, "%d", int(r.Strategy))
	}
}

// RenderTemplate substitutes every {sha} and {checksum} literally. Other
// braces are left alone.
func RenderTemplate(template, digest, checksumHex string) string {
	return strings.NewReplacer(
		rules.PlaceholderSHA, digest,
		rules.PlaceholderChecksum, checksumHex,
	).Replace(template)
}

// DeriveAt signs rc with r. It is a pure function of its inputs. Rules are
// validated on every call, so hand-built rules fail the same way decoded
// ones do.
func DeriveAt(r *rules.Rules, rc RequestContext) (Signature, error) {
	if err := r.Validate(); err != nil {
		return Signature{}, err
	}
	if rc.Path == "" {
		return Signature{}, ErrInvalidPath
	}

	ts := rc.Millis()
	digest := Digest(Message(r.MessageSalt, ts, rc.Path, rc.UserID))

	checksum, err := Checksum(digest, r.ChecksumConstant, r.ChecksumIndexes)
	if err != nil {
		return Signature{}, err
	}

	value, err := Render(r, digest, FormatChecksum(checksum))
	if err != nil {
		return Signature{}, err
	}

	return Signature{
		Value:     value,
		Timestamp: ts,
		Digest:    digest,
		Checksum:  checksum,
	}, nil
}

// Derive signs path for userID at the current wall-clock time.
func Derive(r *rules.Rules, path, userID string) (Signature, error) {
	return DeriveAt(r, RequestContext{Path: path, UserID: userID, Timestamp: time.Now()})
}
