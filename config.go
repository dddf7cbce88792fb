/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package tokenguard

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/acronis/go-appkit/config"
	"github.com/mitchellh/mapstructure"

	"github.com/acronis/go-tokenguard/internal/authutil"
)

const cfgDefaultKeyPrefix = "auth"

const (
	cfgKeyAuthURL                   = "authUrl"
	cfgKeyClientID                  = "clientId"
	cfgKeyClientSecret              = "clientSecret" // nolint:gosec // false positive
	cfgKeyTokenCacheSeconds         = "tokenCacheSeconds"
	cfgKeyTokenCacheCleanSeconds    = "tokenCacheCleanSeconds"
	cfgKeyTokenCacheMaxEntries      = "tokenCacheMaxEntries"
	cfgKeyHTTPClientRequestTimeout  = "httpClient.requestTimeout"
	defaultTokenCacheSeconds        = 60
	defaultTokenCacheCleanSeconds   = 300
	defaultHTTPClientRequestTimeout = authutil.DefaultHTTPRequestTimeout
)

// Config represents a set of configuration parameters for access token validation.
type Config struct {
	// AuthURL is a base URL of the authorization server. Tokens are introspected at <AuthURL>/oauth/introspect.
	AuthURL string `mapstructure:"authUrl" yaml:"authUrl" json:"authUrl"`

	// ClientID and ClientSecret are credentials used for the Basic authentication at the introspection endpoint.
	ClientID     string `mapstructure:"clientId" yaml:"clientId" json:"clientId"`
	ClientSecret string `mapstructure:"clientSecret" yaml:"clientSecret" json:"clientSecret"`

	// TokenCacheSeconds is a time-to-live of the cached introspection result. 0 disables caching.
	TokenCacheSeconds int `mapstructure:"tokenCacheSeconds" yaml:"tokenCacheSeconds" json:"tokenCacheSeconds"`

	// TokenCacheCleanSeconds is an interval between sweeps of expired cache entries.
	TokenCacheCleanSeconds int `mapstructure:"tokenCacheCleanSeconds" yaml:"tokenCacheCleanSeconds" json:"tokenCacheCleanSeconds"`

	// TokenCacheMaxEntries limits the number of cached results. 0 means no limit.
	TokenCacheMaxEntries int `mapstructure:"tokenCacheMaxEntries" yaml:"tokenCacheMaxEntries" json:"tokenCacheMaxEntries"`

	HTTPClient HTTPClientConfig `mapstructure:"httpClient" yaml:"httpClient" json:"httpClient"`

	keyPrefix string
}

// HTTPClientConfig is a configuration of the HTTP client used for token introspection.
type HTTPClientConfig struct {
	// RequestTimeout is a hard timeout of the introspection request.
	RequestTimeout config.TimeDuration `mapstructure:"requestTimeout" yaml:"requestTimeout" json:"requestTimeout"`
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
// This prefix will be used by config.Loader.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

func makeConfigOptions(options []ConfigOption) configOptions {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return opts
}

// NewConfig creates a new instance of the Config with default values,
// so it can be either loaded by the config loader or filled in code and passed to NewGuard.
func NewConfig(options ...ConfigOption) *Config {
	return NewDefaultConfig(options...)
}

// NewDefaultConfig creates a new instance of the Config with default values.
// Required parameters (AuthURL, ClientID and ClientSecret) are left empty.
// Note that a Config literal has zero TokenCacheSeconds, i.e. caching is disabled.
func NewDefaultConfig(options ...ConfigOption) *Config {
	return &Config{
		keyPrefix:              makeConfigOptions(options).keyPrefix,
		TokenCacheSeconds:      defaultTokenCacheSeconds,
		TokenCacheCleanSeconds: defaultTokenCacheCleanSeconds,
		HTTPClient: HTTPClientConfig{
			RequestTimeout: config.TimeDuration(defaultHTTPClientRequestTimeout),
		},
	}
}

// NewConfigFromMap creates a new Config from a generic map of initialization options
// (e.g. decoded from JSON). Keys are matched case-insensitively, values are weakly typed,
// so "60" is accepted for tokenCacheSeconds. Missing keys keep their default values.
// The resulting config is validated.
func NewConfigFromMap(values map[string]interface{}, options ...ConfigOption) (*Config, error) {
	cfg := NewDefaultConfig(options...)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           cfg,
	})
	if err != nil {
		return nil, newConfigurationError(fmt.Errorf("%w: create decoder: %w", ErrConfigInvalid, err))
	}
	if err = decoder.Decode(values); err != nil {
		return nil, newConfigurationError(fmt.Errorf("%w: decode: %w", ErrConfigInvalid, err))
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for auth in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyTokenCacheSeconds, defaultTokenCacheSeconds)
	dp.SetDefault(cfgKeyTokenCacheCleanSeconds, defaultTokenCacheCleanSeconds)
	dp.SetDefault(cfgKeyTokenCacheMaxEntries, 0)
	dp.SetDefault(cfgKeyHTTPClientRequestTimeout, defaultHTTPClientRequestTimeout.String())
}

// Set sets auth configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.AuthURL, err = dp.GetString(cfgKeyAuthURL); err != nil {
		return err
	}
	if c.AuthURL == "" {
		return dp.WrapKeyErr(cfgKeyAuthURL, fmt.Errorf("cannot be empty"))
	}
	if _, err = url.ParseRequestURI(c.AuthURL); err != nil {
		return dp.WrapKeyErr(cfgKeyAuthURL, err)
	}
	if c.ClientID, err = dp.GetString(cfgKeyClientID); err != nil {
		return err
	}
	if c.ClientID == "" {
		return dp.WrapKeyErr(cfgKeyClientID, fmt.Errorf("cannot be empty"))
	}
	if c.ClientSecret, err = dp.GetString(cfgKeyClientSecret); err != nil {
		return err
	}
	if c.ClientSecret == "" {
		return dp.WrapKeyErr(cfgKeyClientSecret, fmt.Errorf("cannot be empty"))
	}

	if c.TokenCacheSeconds, err = dp.GetInt(cfgKeyTokenCacheSeconds); err != nil {
		return err
	}
	if c.TokenCacheSeconds < 0 {
		return dp.WrapKeyErr(cfgKeyTokenCacheSeconds, fmt.Errorf("should be non-negative"))
	}
	if c.TokenCacheCleanSeconds, err = dp.GetInt(cfgKeyTokenCacheCleanSeconds); err != nil {
		return err
	}
	if c.TokenCacheCleanSeconds <= 0 {
		return dp.WrapKeyErr(cfgKeyTokenCacheCleanSeconds, fmt.Errorf("should be positive"))
	}
	if c.TokenCacheMaxEntries, err = dp.GetInt(cfgKeyTokenCacheMaxEntries); err != nil {
		return err
	}
	if c.TokenCacheMaxEntries < 0 {
		return dp.WrapKeyErr(cfgKeyTokenCacheMaxEntries, fmt.Errorf("max entries should be non-negative"))
	}

	var reqTimeout time.Duration
	if reqTimeout, err = dp.GetDuration(cfgKeyHTTPClientRequestTimeout); err != nil {
		return err
	}
	if reqTimeout <= 0 {
		return dp.WrapKeyErr(cfgKeyHTTPClientRequestTimeout, fmt.Errorf("should be positive"))
	}
	c.HTTPClient.RequestTimeout = config.TimeDuration(reqTimeout)

	return nil
}

// Validate checks that all required parameters are set and all values are in the allowed ranges.
// The returned error is a configuration Error wrapping ErrConfigInvalid.
func (c *Config) Validate() error {
	var errs []error
	if c.AuthURL == "" {
		errs = append(errs, fmt.Errorf("%s is required", cfgKeyAuthURL))
	} else if _, err := url.ParseRequestURI(c.AuthURL); err != nil {
		errs = append(errs, fmt.Errorf("%s is not a valid URL: %w", cfgKeyAuthURL, err))
	}
	if c.ClientID == "" {
		errs = append(errs, fmt.Errorf("%s is required", cfgKeyClientID))
	}
	if c.ClientSecret == "" {
		errs = append(errs, fmt.Errorf("%s is required", cfgKeyClientSecret))
	}
	if c.TokenCacheSeconds < 0 {
		errs = append(errs, fmt.Errorf("%s should be non-negative", cfgKeyTokenCacheSeconds))
	}
	if c.TokenCacheCleanSeconds < 0 {
		errs = append(errs, fmt.Errorf("%s should be non-negative", cfgKeyTokenCacheCleanSeconds))
	}
	if c.TokenCacheMaxEntries < 0 {
		errs = append(errs, fmt.Errorf("%s should be non-negative", cfgKeyTokenCacheMaxEntries))
	}
	if c.HTTPClient.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("%s should be non-negative", cfgKeyHTTPClientRequestTimeout))
	}
	if len(errs) != 0 {
		return newConfigurationError(fmt.Errorf("%w: %w", ErrConfigInvalid, errors.Join(errs...)))
	}
	return nil
}

func (c *Config) tokenCacheTTL() time.Duration {
	return time.Duration(c.TokenCacheSeconds) * time.Second
}

func (c *Config) tokenCacheSweepInterval() time.Duration {
	return time.Duration(c.TokenCacheCleanSeconds) * time.Second
}

func (c *Config) requestTimeout() time.Duration {
	if c.HTTPClient.RequestTimeout <= 0 {
		return defaultHTTPClientRequestTimeout
	}
	return time.Duration(c.HTTPClient.RequestTimeout)
}
