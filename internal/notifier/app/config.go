package app

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/retrade/authmesh/pkg/jwtx"
	"github.com/retrade/authmesh/pkg/revocation"
)

type Config struct {
	HTTPAddr    string `env:"NOTIFIER_HTTP_ADDR" envDefault:":8081"`
	DatabaseDSN string `env:"NOTIFIER_DB_DSN"    envDefault:"file:notifier.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"`

	// ACCESS tokens verify against the auth service JWKS or a shared
	// secret; exactly one must be configured.
	AuthURL       string        `env:"NOTIFIER_AUTH_URL"`
	AccessSecrets []string      `env:"NOTIFIER_ACCESS_SECRET" envSeparator:","`
	JWKSRefresh   time.Duration `env:"NOTIFIER_JWKS_REFRESH"  envDefault:"5m"`
	Issuer        string        `env:"NOTIFIER_ISSUER"        envDefault:"authmesh"`
	Audience      []string      `env:"NOTIFIER_AUDIENCE"      envSeparator:","`
	Leeway        time.Duration `env:"NOTIFIER_LEEWAY"        envDefault:"30s"`

	// Without a DSN sessions are never denylisted here.
	RevocationDSN          string        `env:"NOTIFIER_REVOCATION_DSN"`
	RevocationPolicy       string        `env:"NOTIFIER_REVOCATION_POLICY"        envDefault:"fail_closed"`
	RevocationMaxStaleness time.Duration `env:"NOTIFIER_REVOCATION_MAX_STALENESS" envDefault:"5s"`

	// Identity sync is off when IdentityAddr is empty.
	IdentityAddr    string        `env:"NOTIFIER_IDENTITY_ADDR"`
	IdentityToken   string        `env:"NOTIFIER_IDENTITY_TOKEN"`
	SyncInterval    time.Duration `env:"NOTIFIER_SYNC_INTERVAL"     envDefault:"12h"`
	SyncConcurrency int           `env:"NOTIFIER_SYNC_CONCURRENCY"  envDefault:"8"`
	SyncItemTimeout time.Duration `env:"NOTIFIER_SYNC_ITEM_TIMEOUT" envDefault:"5s"`

	Env                 string        `env:"ENV"                   envDefault:"dev"`
	LogLevel            string        `env:"LOG_LEVEL"             envDefault:"info"`
	LogFormat           string        `env:"LOG_FORMAT"            envDefault:"json"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`

	policy  revocation.Policy
	secrets [][]byte
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch {
	case c.AuthURL != "" && len(c.AccessSecrets) > 0:
		errs = append(errs, errors.New("set NOTIFIER_AUTH_URL or NOTIFIER_ACCESS_SECRET, not both"))
	case c.AuthURL != "":
		if c.JWKSRefresh <= 0 {
			errs = append(errs, errors.New("NOTIFIER_JWKS_REFRESH must be positive"))
		}
	case len(c.AccessSecrets) > 0:
		for i, s := range c.AccessSecrets {
			b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
			if err != nil {
				errs = append(errs, fmt.Errorf("NOTIFIER_ACCESS_SECRET %d: not base64: %w", i+1, err))
				continue
			}
			if len(b) < jwtx.MinHMACSecretSize {
				errs = append(errs, fmt.Errorf("NOTIFIER_ACCESS_SECRET %d: need at least %d bytes", i+1, jwtx.MinHMACSecretSize))
				continue
			}
			c.secrets = append(c.secrets, b)
		}
	default:
		errs = append(errs, errors.New("NOTIFIER_AUTH_URL or NOTIFIER_ACCESS_SECRET is required"))
	}

	policy, err := revocation.ParsePolicy(c.RevocationPolicy)
	if err != nil {
		errs = append(errs, err)
	}
	c.policy = policy

	return errors.Join(errs...)
}
