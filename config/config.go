package config

import (
	"bytes"
	"strings"

	"github.com/fatih/structs"
	"github.com/jeremywohl/flatten"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. RULESIGN_RULES_URL.
const EnvPrefix = "RULESIGN"

// ParseConfig loads config.yaml from the given paths, with no embedded
// fallback.
func ParseConfig[T interface{}](configFilePaths []string) (*T, error) {
	return ParseConfigWithEmbedded[T](configFilePaths, nil)
}

// ParseConfigWithEmbedded reads embeddedYAML first as the base layer, then
// merges config.yaml from the first path that has one. Environment
// variables override both.
func ParseConfigWithEmbedded[T interface{}](configFilePaths []string, embeddedYAML []byte) (*T, error) {
	v := viper.New()
	for _, p := range configFilePaths {
		v.AddConfigPath(p)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)

	if err := bindAllConfigKeys[T](v); err != nil {
		return nil, err
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if len(embeddedYAML) > 0 {
		if err := v.ReadConfig(bytes.NewReader(embeddedYAML)); err != nil {
			return nil, errors.Wrap(err, "failed to load embedded default config")
		}
	}

	if len(configFilePaths) > 0 {
		if err := v.MergeInConfig(); err != nil {
			var nfErr viper.ConfigFileNotFoundError
			if !errors.As(err, &nfErr) || len(embeddedYAML) == 0 {
				return nil, errors.Wrap(err, "failed to read config file")
			}
		}
	}

	var c *T
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "Unable to decode into struct")
	}
	if c == nil {
		c = new(T)
	}

	return c, nil
}

// Workaround for major viper issue with env variables, documented here
// https://github.com/spf13/viper/issues/761
func bindAllConfigKeys[T interface{}](v *viper.Viper) error {
	var cd T
	// Transform config struct to map
	confMap := structs.Map(cd)

	// Flatten nested conf map
	flat, err := flatten.Flatten(confMap, "", flatten.DotStyle)
	if err != nil {
		return errors.Wrap(err, "Unable to flatten config")
	}

	// Bind each conf field to environment vars
	for key := range flat {
		if err := v.BindEnv(key); err != nil {
			return errors.Wrapf(err, "Unable to bind env var: %s", key)
		}
	}
	return nil
}
