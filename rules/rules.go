package rules

import (
	"strings"

	"github.com/pkg/errors"
)

// DigestLength is the length of a hex-encoded SHA-1 digest. Checksum indexes
// address characters of that string.
const DigestLength = 40

const (
	PlaceholderSHA      = "{sha}"
	PlaceholderChecksum = "{checksum}"
)

var (
	ErrMissingConfiguration = errors.New("rules: missing configuration")
	ErrIndexOutOfRange      = errors.New("rules: checksum index out of range")
	ErrUnknownStrategy      = errors.New("rules: unknown sign strategy")
)

// Strategy selects how digest and checksum are rendered into the sign header.
type Strategy int

const (
	// StrategyFixed renders prefix:digest:checksum:suffix.
	StrategyFixed Strategy = iota + 1
	// StrategyTemplated substitutes {sha} and {checksum} in SignFormat.
	StrategyTemplated
)

func (s Strategy) String() string {
	switch s {
	case StrategyFixed:
		return "fixed"
	case StrategyTemplated:
		return "templated"
	default:
		return "auto"
	}
}

// ParseStrategy maps a configured name to a Strategy. "auto" and "" yield
// zero, meaning the strategy is inferred from the rules themselves.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return 0, nil
	case "fixed":
		return StrategyFixed, nil
	case "templated", "template":
		return StrategyTemplated, nil
	default:
		return 0, errors.Wrapf(ErrUnknownStrategy, "%q", s)
	}
}

// Rules is the remote configuration used to sign requests. Values are
// immutable once validated.
type Rules struct {
	AppToken         string
	MessageSalt      string
	ChecksumConstant int
	ChecksumIndexes  []int
	Prefix           string
	Suffix           string
	SignFormat       string
	Strategy         Strategy

	Revision Revision
}

// Revision identifies the published rule set, when the publisher includes it.
type Revision struct {
	Date         string
	Key          string
	ModuleName   string
	ModuleNumber int
	Constants    []int
}

func (r Revision) String() string {
	switch {
	case r.Key != "" && r.Date != "":
		return r.Date + "/" + r.Key
	case r.Key != "":
		return r.Key
	default:
		return r.Date
	}
}

// Validate checks the fields needed to derive a signature. It does not
// inspect presence of optional wire fields; Decode does that.
func (r *Rules) Validate() error {
	if r == nil {
		return errors.Wrap(ErrMissingConfiguration, "nil rules")
	}
	if r.AppToken == "" {
		return errors.Wrap(ErrMissingConfiguration, "app_token")
	}
	if err := ValidateIndexes(r.ChecksumIndexes); err != nil {
		return err
	}

	switch r.Strategy {
	case StrategyTemplated:
		if r.SignFormat == "" {
			return errors.Wrap(ErrMissingConfiguration, "sign_format")
		}
		if !strings.Contains(r.SignFormat, PlaceholderSHA) {
			return errors.Wrapf(ErrMissingConfiguration, "sign_format %q has no %s placeholder", r.SignFormat, PlaceholderSHA)
		}
	case StrategyFixed:
		if r.Prefix == "" {
			return errors.Wrap(ErrMissingConfiguration, "prefix")
		}
		if r.Suffix == "" {
			return errors.Wrap(ErrMissingConfiguration, "suffix")
		}
	case 0:
		return errors.Wrap(ErrMissingConfiguration, "sign strategy")
	default:
		return errors.Wrapf(ErrUnknownStrategy, "%d", int(r.Strategy))
	}
	return nil
}

// ValidateIndexes rejects any index that does not address a digest character.
func ValidateIndexes(indexes []int) error {
	for pos, idx := range indexes {
		if idx < 0 || idx >= DigestLength {
			return errors.Wrapf(ErrIndexOutOfRange, "index %d at position %d", idx, pos)
		}
	}
	return nil
}

// WithStrategy returns a copy forced to the given strategy. A zero strategy
// leaves the inferred one in place.
func (r *Rules) WithStrategy(s Strategy) (*Rules, error) {
	if s == 0 || s == r.Strategy {
		return r, nil
	}
	out := *r
	out.ChecksumIndexes = append([]int(nil), r.ChecksumIndexes...)
	out.Strategy = s
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}
