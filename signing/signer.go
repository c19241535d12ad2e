package signing

import (
	"time"

	"github.com/quantumauth-io/rulesign-go/rules"
)

// Signer binds validated rules to a clock.
type Signer struct {
	rules *rules.Rules
	now   func() time.Time
}

// NewSigner validates r once so that Sign only fails on bad per-call input.
// A nil now uses time.Now.
func NewSigner(r *rules.Rules, now func() time.Time) (*Signer, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Signer{rules: r, now: now}, nil
}

func (s *Signer) Rules() *rules.Rules {
	return s.rules
}

func (s *Signer) Sign(path, userID string) (Signature, error) {
	return s.SignAt(path, userID, s.now())
}

func (s *Signer) SignAt(path, userID string, ts time.Time) (Signature, error) {
	return DeriveAt(s.rules, RequestContext{Path: path, UserID: userID, Timestamp: ts})
}
