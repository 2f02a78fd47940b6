package app

import (
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/refitt/refitt-api/internal/token"
)

const defaultAddr = "0.0.0.0:5000"

// Config holds the complete application configuration, loadable from
// environment variables (REFITT_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:5000" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (REFITT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	MaxPayload  int64  `default:"16777216" usage:"Maximum request body size in bytes" flag:"max-payload"`
	Token       TokenConfig
	Client      ClientConfig
	RateLimit   RateLimitConfig
	Graceful    GracefulConfig
}

// TokenConfig controls bearer token signing.
type TokenConfig struct {
	Secret   string        `usage:"HMAC key for signing tokens, at least 32 bytes (REFITT_TOKEN_SECRET)"`
	Lifetime time.Duration `default:"15m" usage:"Lifetime of issued tokens"`
}

// ClientConfig controls newly created API clients.
type ClientConfig struct {
	Level int `default:"10" usage:"Access level of new clients (0 is admin)"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"600" usage:"Max requests per window, 0 disables limiting"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
	// TrustedProxies are addresses or CIDRs of reverse proxies whose
	// X-Forwarded-For header identifies the client.
	TrustedProxies []string `usage:"Reverse proxy addresses or CIDRs trusted for X-Forwarded-For"`
}

// Proxies parses TrustedProxies. A bare address is a single-host prefix.
func (c RateLimitConfig) Proxies() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, s := range c.TrustedProxies {
		s = strings.TrimSpace(s)
		if !strings.Contains(s, "/") {
			addr, err := netip.ParseAddr(s)
			if err != nil {
				return nil, errors.Wrapf(err, "trusted proxy %q", s)
			}
			addr = addr.Unmap()
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, errors.Wrapf(err, "trusted proxy %q", s)
		}
		out = append(out, p.Masked())
	}
	return out, nil
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads the server configuration from the environment, flags and
// YAML files, then validates it.
func LoadConfig() (*Config, error) {
	return load(aconfig.Config{})
}

// LoadCLIConfig is LoadConfig without flag parsing, for commands that own
// their flags.
func LoadCLIConfig() (*Config, error) {
	return load(aconfig.Config{SkipFlags: true})
}

func load(base aconfig.Config) (*Config, error) {
	var cfg Config
	base.EnvPrefix = "REFITT"
	base.Files = []string{"config.yaml", "/etc/refitt/config.yaml"}
	base.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}
	if err := aconfig.LoaderFor(&cfg, base).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the platform-wide DATABASE_URL and PORT
// variables onto the REFITT_ configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set REFITT_DATABASE_URL or DATABASE_URL")
	case len(c.Token.Secret) < token.MinSecretLen:
		return errors.Errorf("token secret must be at least %d bytes: set REFITT_TOKEN_SECRET", token.MinSecretLen)
	case c.Token.Lifetime <= 0:
		return errors.New("token lifetime must be positive")
	case c.Client.Level < 1:
		return errors.New("client level must be positive: level 0 is reserved for admin clients")
	case c.MaxPayload <= 0:
		return errors.New("max payload must be positive")
	case c.RateLimit.Max > 0 && c.RateLimit.Window <= 0:
		return errors.New("rate limit window must be positive")
	}
	if _, err := c.RateLimit.Proxies(); err != nil {
		return err
	}
	return nil
}
