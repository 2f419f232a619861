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

// Key modes.
const (
	KeyModeStatic     = "static"
	KeyModeEphemeral  = "ephemeral"
	KeyModePersistent = "persistent"
)

type Config struct {
	HTTPAddr string `env:"AUTH_HTTP_ADDR" envDefault:":8080"`
	GRPCAddr string `env:"AUTH_GRPC_ADDR" envDefault:":9090"`

	// GRPCRequireAuth makes LookupAccount demand an ACCESS bearer token.
	GRPCRequireAuth bool `env:"AUTH_GRPC_REQUIRE_AUTH" envDefault:"false"`

	DatabaseDSN string `env:"AUTH_DB_DSN" envDefault:"file:auth.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"`

	Issuer   string   `env:"AUTH_ISSUER"   envDefault:"authmesh"`
	Audience []string `env:"AUTH_AUDIENCE" envSeparator:","`

	KeyMode        string        `env:"AUTH_KEY_MODE"         envDefault:"static"`
	Algorithm      string        `env:"AUTH_ALGORITHM"        envDefault:"EdDSA"`
	RSABits        int           `env:"AUTH_RSA_BITS"`
	KeyGracePeriod time.Duration `env:"AUTH_KEY_GRACE_PERIOD" envDefault:"720h"`

	// Secrets are base64, newest first. Only read in static mode.
	AccessSecrets    []string `env:"AUTH_ACCESS_SECRET"     envSeparator:","`
	RefreshSecrets   []string `env:"AUTH_REFRESH_SECRET"    envSeparator:","`
	TwoFactorSecrets []string `env:"AUTH_TWO_FACTOR_SECRET" envSeparator:","`

	MasterKeyPath string `env:"AUTH_MASTER_KEY_PATH"`
	PepperPath    string `env:"AUTH_PEPPER_PATH" envDefault:"pepper"`

	AccessTTL    time.Duration `env:"AUTH_ACCESS_TTL"     envDefault:"15m"`
	RefreshTTL   time.Duration `env:"AUTH_REFRESH_TTL"    envDefault:"168h"`
	TwoFactorTTL time.Duration `env:"AUTH_TWO_FACTOR_TTL" envDefault:"5m"`
	Leeway       time.Duration `env:"AUTH_LEEWAY"         envDefault:"30s"`

	CookieDomain string `env:"AUTH_COOKIE_DOMAIN"`
	CookieSecure bool   `env:"AUTH_COOKIE_SECURE" envDefault:"true"`

	// RevocationDSN points at the PostgreSQL denylist shared with dependent
	// services. Empty keeps revocations in the local database, which only
	// this process consults.
	RevocationDSN          string        `env:"AUTH_REVOCATION_DSN"`
	RevocationPolicy       string        `env:"AUTH_REVOCATION_POLICY"        envDefault:"fail_closed"`
	RevocationMaxStaleness time.Duration `env:"AUTH_REVOCATION_MAX_STALENESS" envDefault:"0s"`

	HousekeepingInterval time.Duration `env:"AUTH_HOUSEKEEPING_INTERVAL" envDefault:"1h"`
	SessionRetention     time.Duration `env:"AUTH_SESSION_RETENTION"     envDefault:"720h"`

	// Creates the first ADMIN account on an empty database. Without a
	// password one is generated and logged once.
	BootstrapUsername string `env:"AUTH_BOOTSTRAP_USERNAME"`
	BootstrapPassword string `env:"AUTH_BOOTSTRAP_PASSWORD"`

	Env                 string        `env:"ENV"                   envDefault:"dev"`
	LogLevel            string        `env:"LOG_LEVEL"             envDefault:"info"`
	LogFormat           string        `env:"LOG_FORMAT"            envDefault:"json"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`

	policy  revocation.Policy
	secrets map[jwtx.Kind][][]byte
}

// LoadConfig reads the environment and validates the result.
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

// Validate checks cross-field rules and decodes the secrets.
func (c *Config) Validate() error {
	var errs []error

	switch c.KeyMode {
	case KeyModeStatic:
		c.secrets = make(map[jwtx.Kind][][]byte, 3)
		for kind, raw := range map[jwtx.Kind][]string{
			jwtx.KindAccess:           c.AccessSecrets,
			jwtx.KindRefresh:          c.RefreshSecrets,
			jwtx.KindTwoFactorPending: c.TwoFactorSecrets,
		} {
			secrets, err := decodeSecrets(raw)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s secret: %w", kind, err))
				continue
			}
			c.secrets[kind] = secrets
		}
	case KeyModeEphemeral, KeyModePersistent:
		switch c.Algorithm {
		case jwtx.AlgorithmRS256, jwtx.AlgorithmES256, jwtx.AlgorithmEdDSA:
		default:
			errs = append(errs, fmt.Errorf("AUTH_ALGORITHM %q is not an asymmetric algorithm", c.Algorithm))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_KEY_MODE %q: want static, ephemeral or persistent", c.KeyMode))
	}

	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 || c.TwoFactorTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	if c.RefreshTTL < c.AccessTTL {
		errs = append(errs, errors.New("AUTH_REFRESH_TTL must not be shorter than AUTH_ACCESS_TTL"))
	}
	if c.KeyMode == KeyModePersistent && c.KeyGracePeriod < c.RefreshTTL {
		errs = append(errs, errors.New("AUTH_KEY_GRACE_PERIOD must outlive AUTH_REFRESH_TTL"))
	}
	if c.SessionRetention > 0 && c.SessionRetention < c.RefreshTTL {
		errs = append(errs, errors.New("AUTH_SESSION_RETENTION must not be shorter than AUTH_REFRESH_TTL"))
	}
	if c.BootstrapUsername == "" && c.BootstrapPassword != "" {
		errs = append(errs, errors.New("AUTH_BOOTSTRAP_PASSWORD needs AUTH_BOOTSTRAP_USERNAME"))
	}

	policy, err := revocation.ParsePolicy(c.RevocationPolicy)
	if err != nil {
		errs = append(errs, err)
	}
	c.policy = policy

	return errors.Join(errs...)
}

func decodeSecrets(raw []string) ([][]byte, error) {
	var out [][]byte
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("not base64: %w", err)
		}
		if len(b) < jwtx.MinHMACSecretSize {
			return nil, fmt.Errorf("need at least %d bytes, got %d", jwtx.MinHMACSecretSize, len(b))
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return nil, errors.New("required in static key mode")
	}
	return out, nil
}
