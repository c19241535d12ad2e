package config

import (
	_ "embed"
	"time"

	"github.com/pkg/errors"
	"github.com/quantumauth-io/rulesign-go/log"
	"github.com/quantumauth-io/rulesign-go/redis"
	"github.com/quantumauth-io/rulesign-go/retry"
	"github.com/quantumauth-io/rulesign-go/rules"
	"github.com/quantumauth-io/rulesign-go/session"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Settings struct {
	Rules    RulesSettings    `mapstructure:"rules" structs:"rules"`
	Platform PlatformSettings `mapstructure:"platform" structs:"platform"`
	Session  SessionSettings  `mapstructure:"session" structs:"session"`
	Cache    CacheSettings    `mapstructure:"cache" structs:"cache"`
	Log      log.Config       `mapstructure:"log" structs:"log"`
}

type RulesSettings struct {
	URL        string        `mapstructure:"url" structs:"url"`
	Timeout    time.Duration `mapstructure:"timeout" structs:"timeout"`
	MaxRetries int32         `mapstructure:"max_retries" structs:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay" structs:"retry_delay"`
	// Strategy is auto, fixed or templated.
	Strategy string `mapstructure:"strategy" structs:"strategy"`
}

type PlatformSettings struct {
	BaseURL        string        `mapstructure:"base_url" structs:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout" structs:"timeout"`
	AcceptLanguage string        `mapstructure:"accept_language" structs:"accept_language"`
}

type SessionSettings struct {
	// Cookies is a browser style "name=value; name2=value2" string.
	Cookies   string `mapstructure:"cookies" structs:"cookies"`
	XBC       string `mapstructure:"xbc" structs:"xbc"`
	UserAgent string `mapstructure:"user_agent" structs:"user_agent"`
}

type CacheSettings struct {
	Enabled bool          `mapstructure:"enabled" structs:"enabled"`
	Key     string        `mapstructure:"key" structs:"key"`
	TTL     time.Duration `mapstructure:"ttl" structs:"ttl"`
	Redis   redis.Config  `mapstructure:"redis" structs:"redis"`
}

// Load reads settings from the first config.yaml found in paths, layered
// over the embedded defaults and under RULESIGN_* environment variables.
func Load(paths []string) (*Settings, error) {
	s, err := ParseConfigWithEmbedded[Settings](paths, defaultsYAML)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) Validate() error {
	if s.Rules.URL == "" {
		return errors.New("config: rules.url is required")
	}
	if s.Platform.BaseURL == "" {
		return errors.New("config: platform.base_url is required")
	}
	if s.Rules.MaxRetries < retry.InfiniteRetries {
		return errors.Errorf("config: rules.max_retries must be >= %d", retry.InfiniteRetries)
	}
	if _, err := rules.ParseStrategy(s.Rules.Strategy); err != nil {
		return errors.Wrap(err, "config: rules.strategy")
	}
	if _, err := session.ParseCookies(s.Session.Cookies); err != nil {
		return errors.Wrap(err, "config: session.cookies")
	}
	return nil
}

// RetryConfig is the retry policy for the rules download.
func (s *Settings) RetryConfig() *retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxNumRetries = s.Rules.MaxRetries
	if s.Rules.RetryDelay > 0 {
		cfg.InitialDelayBeforeRetrying = s.Rules.RetryDelay
		cfg.MaxDelayBeforeRetrying = s.Rules.RetryDelay
	}
	return cfg
}

// FetcherConfig maps the rules section onto rules.FetcherConfig. The cache
// is wired separately since it needs a live connection.
func (s *Settings) FetcherConfig() (rules.FetcherConfig, error) {
	strategy, err := rules.ParseStrategy(s.Rules.Strategy)
	if err != nil {
		return rules.FetcherConfig{}, err
	}
	return rules.FetcherConfig{
		URL:      s.Rules.URL,
		Timeout:  s.Rules.Timeout,
		Retry:    s.RetryConfig(),
		Strategy: strategy,
	}, nil
}

// SessionValue builds the explicit session from the session section.
func (s *Settings) SessionValue() (session.Session, error) {
	cookies, err := session.ParseCookies(s.Session.Cookies)
	if err != nil {
		return session.Session{}, err
	}
	return session.Session{
		Cookies:   cookies,
		XBC:       s.Session.XBC,
		UserAgent: s.Session.UserAgent,
	}, nil
}
