package config

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// validate checks cross-field rules envconfig cannot express. All failures
// are returned together so an operator can fix the environment in one pass.
func (c *Config) validate() error {
	var errs error
	fail := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf(format, args...))
	}

	if c.Tax.Rate < 0 || c.Tax.Rate >= 1 {
		fail("%s must be in [0,1), got %v", EnvTaxRate, c.Tax.Rate)
	}

	switch strings.ToLower(strings.TrimSpace(c.DB.Driver)) {
	case "", DriverPostgres, DriverSQLite:
	default:
		fail("unsupported database driver %q", c.DB.Driver)
	}

	if strings.TrimSpace(c.Redis.URL) == "" && strings.TrimSpace(c.Redis.Address) == "" {
		fail("one of %s or %s is required", EnvRedisURL, EnvRedisAddr)
	}

	if c.JWT.ExpirationMinutes <= 0 {
		fail("%s must be positive", EnvJWTExpMins)
	} else if c.JWT.RefreshTokenTTL() <= minutes(c.JWT.ExpirationMinutes) {
		fail("%s must exceed %s", EnvRefreshTokenTTLMinutes, EnvJWTExpMins)
	}

	if c.RateLimit.LoginWindow <= 0 {
		fail("%s must be positive", EnvLoginWindow)
	}

	if err := c.Mpesa.check(); err != nil {
		errs = multierr.Append(errs, err)
	}

	if c.Cron.Interval <= 0 {
		fail("%s must be positive", EnvCronInterval)
	}
	if c.Outbox.BatchSize <= 0 {
		fail("%s must be positive", EnvOutboxBatchSize)
	}
	return errs
}

// check allows the gateway to be fully off or fully configured, never half.
func (m MpesaConfig) check() error {
	key := strings.TrimSpace(m.ConsumerKey) != ""
	secret := strings.TrimSpace(m.ConsumerSecret) != ""
	if !key && !secret {
		return nil
	}
	var errs error
	for env, v := range map[string]string{
		EnvMpesaConsumerKey:    m.ConsumerKey,
		EnvMpesaConsumerSecret: m.ConsumerSecret,
		EnvMpesaPasskey:        m.Passkey,
		EnvMpesaCallbackURL:    m.CallbackURL,
	} {
		if strings.TrimSpace(v) == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s is required once M-Pesa is configured", env))
		}
	}
	return errs
}
