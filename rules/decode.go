package rules

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// wireRules mirrors the published JSON document. Pointers track presence so
// a missing field can be told apart from an empty one.
type wireRules struct {
	AppToken            *string    `json:"app_token"`
	Msg                 *string    `json:"msg"`
	ConstantChecksumSum *flexInt   `json:"constant_checksum_sum"`
	SHA1Index           *indexList `json:"sha1_index"`
	Prefix              *string    `json:"prefix"`
	Suffix              *string    `json:"suffix"`
	SignFormat          *string    `json:"sign_format"`

	RevDate          string    `json:"rev_date"`
	RevFull          string    `json:"rev_full"`
	ModuleName       string    `json:"module_name"`
	ModuleNumber     flexInt   `json:"module_number"`
	ConstantChecksum indexList `json:"constant_checksum"`
}

// Decode parses a rules document and validates it once, so later signing
// never fails on a late key lookup.
func Decode(data []byte) (*Rules, error) {
	var w wireRules
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errors.Wrap(err, "rules: decode")
	}

	switch {
	case w.AppToken == nil:
		return nil, errors.Wrap(ErrMissingConfiguration, "app_token")
	case w.Msg == nil:
		return nil, errors.Wrap(ErrMissingConfiguration, "msg")
	case w.ConstantChecksumSum == nil:
		return nil, errors.Wrap(ErrMissingConfiguration, "constant_checksum_sum")
	case w.SHA1Index == nil:
		return nil, errors.Wrap(ErrMissingConfiguration, "sha1_index")
	}

	r := &Rules{
		AppToken:         *w.AppToken,
		MessageSalt:      *w.Msg,
		ChecksumConstant: int(*w.ConstantChecksumSum),
		ChecksumIndexes:  []int(*w.SHA1Index),
		Revision: Revision{
			Date:         w.RevDate,
			Key:          w.RevFull,
			ModuleName:   w.ModuleName,
			ModuleNumber: int(w.ModuleNumber),
			Constants:    []int(w.ConstantChecksum),
		},
	}

	switch {
	case w.SignFormat != nil && *w.SignFormat != "":
		r.Strategy = StrategyTemplated
		r.SignFormat = *w.SignFormat
	case w.Prefix != nil || w.Suffix != nil:
		r.Strategy = StrategyFixed
	default:
		return nil, errors.Wrap(ErrMissingConfiguration, "sign_format or prefix/suffix")
	}
	if w.Prefix != nil {
		r.Prefix = *w.Prefix
	}
	if w.Suffix != nil {
		r.Suffix = *w.Suffix
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// flexInt accepts a JSON number or a numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return errors.Wrapf(err, "rules: not an integer: %s", b)
	}
	*f = flexInt(n)
	return nil
}

// indexList accepts either a native integer array or a comma separated
// string such as "3, 17, 22". Every segment of the string form must hold an
// integer; "1,,2", "1," and "" are rejected. Use [] for no indexes.
type indexList []int

func (l *indexList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		parts := strings.Split(s, ",")
		out := make([]int, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				return errors.Errorf("rules: empty index segment in %q", s)
			}
			n, err := strconv.Atoi(part)
			if err != nil {
				return errors.Wrapf(err, "rules: bad index %q", part)
			}
			out = append(out, n)
		}
		*l = out
		return nil
	case len(b) > 0 && b[0] == '[':
		var items []flexInt
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		out := make([]int, len(items))
		for i, v := range items {
			out[i] = int(v)
		}
		*l = out
		return nil
	default:
		return errors.Errorf("rules: unsupported index list %s", b)
	}
}
