// Package serverconfig loads caseauth-server configuration from a YAML
// file, CASEAUTH_* environment variables, and command-line flags, in
// increasing order of precedence.
package serverconfig

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	caseAuth "github.com/MrEthical07/caseAuth"
	"github.com/MrEthical07/caseAuth/directory"
	caseJWT "github.com/MrEthical07/caseAuth/jwt"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "caseauth"

type Config struct {
	Server   Server   `mapstructure:"server"`
	Redis    Redis    `mapstructure:"redis"`
	Postgres Postgres `mapstructure:"postgres"`
	LDAP     LDAP     `mapstructure:"ldap"`
	External External `mapstructure:"external"`
	AMQP     AMQP     `mapstructure:"amqp"`
	Throttle Throttle `mapstructure:"throttle"`
	Engine   Engine   `mapstructure:"engine"`
	Log      Log      `mapstructure:"log"`
}

type Server struct {
	Listen              string        `mapstructure:"listen" validate:"required,hostname_port"`
	SessionSecret       string        `mapstructure:"session_secret" validate:"required,min=32"`
	SecureCookies       bool          `mapstructure:"secure_cookies"`
	TrustForwardedProto bool          `mapstructure:"trust_forwarded_proto"`
	TrustedProxies      []string      `mapstructure:"trusted_proxies" validate:"omitempty,dive,ip_addr|cidr"`
	ReadTimeout         time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout        time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	ShutdownTimeout     time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

type Redis struct {
	Addr     string `mapstructure:"addr" validate:"required,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0"`
}

type Postgres struct {
	DSN     string `mapstructure:"dsn" validate:"required"`
	Migrate bool   `mapstructure:"migrate"`
}

type LDAP struct {
	Enabled            bool          `mapstructure:"enabled"`
	LocalFallback      bool          `mapstructure:"local_fallback"`
	URL                string        `mapstructure:"url" validate:"required_if=Enabled true"`
	StartTLS           bool          `mapstructure:"start_tls"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	ServerName         string        `mapstructure:"server_name"`
	UserDNTemplate     string        `mapstructure:"user_dn_template"`
	BindDN             string        `mapstructure:"bind_dn"`
	BindPassword       string        `mapstructure:"bind_password"`
	BaseDN             string        `mapstructure:"base_dn"`
	UserFilter         string        `mapstructure:"user_filter"`
	Timeout            time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

type External struct {
	Enabled       bool          `mapstructure:"enabled"`
	SigningMethod string        `mapstructure:"signing_method" validate:"omitempty,oneof=ed25519 hs256"`
	Secret        string        `mapstructure:"secret"`
	PublicKeyFile string        `mapstructure:"public_key_file"`
	Issuer        string        `mapstructure:"issuer" validate:"required_if=Enabled true"`
	Audience      string        `mapstructure:"audience" validate:"required_if=Enabled true"`
	LoginClaim    string        `mapstructure:"login_claim" validate:"omitempty,oneof=preferred_username email sub"`
	Leeway        time.Duration `mapstructure:"leeway" validate:"gte=0,lte=2m"`
}

type AMQP struct {
	URL      string `mapstructure:"url" validate:"omitempty,url"`
	Exchange string `mapstructure:"exchange"`
}

type Throttle struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=0"`
	Window      time.Duration `mapstructure:"window" validate:"gte=0"`
	PerIP       bool          `mapstructure:"per_ip"`
}

type Engine struct {
	SessionPrefix    string              `mapstructure:"session_prefix" validate:"required"`
	SessionTTL       time.Duration       `mapstructure:"session_ttl" validate:"gt=0"`
	IndexPath        string              `mapstructure:"index_path" validate:"required,startswith=/"`
	MFAVerifyPath    string              `mapstructure:"mfa_verify_path" validate:"required,startswith=/"`
	SettingsCacheTTL time.Duration       `mapstructure:"settings_cache_ttl" validate:"gte=0"`
	RootPermission   string              `mapstructure:"root_permission" validate:"required"`
	Permissions      []string            `mapstructure:"permissions" validate:"required,min=1,dive,required"`
	Groups           map[string][]string `mapstructure:"groups"`
	AuditAsync       bool                `mapstructure:"audit_async"`
	AuditStdout      bool                `mapstructure:"audit_stdout"`
}

type Log struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

func setDefaults(v *viper.Viper) {
	def := caseAuth.DefaultConfig()

	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.session_secret", "")
	v.SetDefault("server.secure_cookies", true)
	v.SetDefault("server.trust_forwarded_proto", false)
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.migrate", true)

	v.SetDefault("ldap.enabled", false)
	v.SetDefault("ldap.local_fallback", false)
	v.SetDefault("ldap.url", "")
	v.SetDefault("ldap.start_tls", false)
	v.SetDefault("ldap.insecure_skip_verify", false)
	v.SetDefault("ldap.server_name", "")
	v.SetDefault("ldap.user_dn_template", "")
	v.SetDefault("ldap.bind_dn", "")
	v.SetDefault("ldap.bind_password", "")
	v.SetDefault("ldap.base_dn", "")
	v.SetDefault("ldap.user_filter", "")
	v.SetDefault("ldap.timeout", 10*time.Second)

	v.SetDefault("external.enabled", false)
	v.SetDefault("external.signing_method", string(caseJWT.MethodEd25519))
	v.SetDefault("external.secret", "")
	v.SetDefault("external.public_key_file", "")
	v.SetDefault("external.issuer", "")
	v.SetDefault("external.audience", "")
	v.SetDefault("external.login_claim", caseJWT.ClaimPreferredUsername)
	v.SetDefault("external.leeway", 30*time.Second)

	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "caseauth.audit")

	v.SetDefault("throttle.max_attempts", 10)
	v.SetDefault("throttle.window", 15*time.Minute)
	v.SetDefault("throttle.per_ip", true)

	v.SetDefault("engine.session_prefix", def.Session.RedisPrefix)
	v.SetDefault("engine.session_ttl", def.Session.TTL)
	v.SetDefault("engine.index_path", def.Redirect.IndexPath)
	v.SetDefault("engine.mfa_verify_path", def.Redirect.MFAVerifyPath)
	v.SetDefault("engine.settings_cache_ttl", def.Settings.CacheTTL)
	v.SetDefault("engine.root_permission", def.Permission.RootPermission)
	v.SetDefault("engine.permissions", []string{"server_administrator", "case_read", "case_write"})
	v.SetDefault("engine.groups", map[string][]string{})
	v.SetDefault("engine.audit_async", def.Audit.Async)
	v.SetDefault("engine.audit_stdout", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load parses args (without the program name) and returns the merged,
// validated configuration.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("caseauth-server", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configFile := fs.StringP("config", "c", "", "path to a YAML configuration file")
	fs.String("listen", "", "listen address, overrides server.listen")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", *configFile, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindFlag(v, fs, "server.listen", "listen"); err != nil {
		return nil, err
	}
	if err := bindFlag(v, fs, "log.level", "log-level"); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// bindFlag binds name only when the flag was set, so an empty default never
// masks a file or env value.
func bindFlag(v *viper.Viper, fs *pflag.FlagSet, key, name string) error {
	f := fs.Lookup(name)
	if f == nil || !f.Changed {
		return nil
	}
	return v.BindPFlag(key, f)
}

// Validate checks struct tags, then the rules that span sections.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.LDAP.LocalFallback && !c.LDAP.Enabled {
		return errors.New("invalid configuration: ldap.local_fallback requires ldap.enabled")
	}
	if c.LDAP.Enabled {
		if err := c.LDAP.DirectoryConfig().Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}
	if c.External.Enabled {
		switch caseJWT.SigningMethod(c.External.SigningMethod) {
		case caseJWT.MethodHS256:
			if c.External.Secret == "" {
				return errors.New("invalid configuration: external.secret required for hs256")
			}
		default:
			if c.External.PublicKeyFile == "" {
				return errors.New("invalid configuration: external.public_key_file required for ed25519")
			}
		}
	}

	engineCfg := c.EngineConfig()
	if err := engineCfg.Validate(); err != nil {
		return fmt.Errorf("invalid engine configuration: %w", err)
	}

	return nil
}

// EngineConfig maps the engine section onto [caseAuth.Config].
func (c *Config) EngineConfig() caseAuth.Config {
	cfg := caseAuth.DefaultConfig()
	cfg.Directory.Enabled = c.LDAP.Enabled
	cfg.Directory.LocalFallback = c.LDAP.LocalFallback
	cfg.Session.RedisPrefix = c.Engine.SessionPrefix
	cfg.Session.TTL = c.Engine.SessionTTL
	cfg.Redirect.IndexPath = c.Engine.IndexPath
	cfg.Redirect.MFAVerifyPath = c.Engine.MFAVerifyPath
	cfg.Settings.CacheTTL = c.Engine.SettingsCacheTTL
	cfg.Permission.RootPermission = c.Engine.RootPermission
	cfg.Audit.Async = c.Engine.AuditAsync
	return cfg
}

func (l LDAP) DirectoryConfig() directory.Config {
	return directory.Config{
		URL:                l.URL,
		StartTLS:           l.StartTLS,
		InsecureSkipVerify: l.InsecureSkipVerify,
		ServerName:         l.ServerName,
		UserDNTemplate:     l.UserDNTemplate,
		BindDN:             l.BindDN,
		BindPassword:       l.BindPassword,
		BaseDN:             l.BaseDN,
		UserFilter:         l.UserFilter,
		Timeout:            l.Timeout,
	}
}

// VerifierConfig builds the identity token verifier settings, reading the
// public key file for ed25519.
func (e External) VerifierConfig() (caseJWT.Config, error) {
	cfg := caseJWT.Config{
		SigningMethod: caseJWT.SigningMethod(e.SigningMethod),
		Issuer:        e.Issuer,
		Audience:      e.Audience,
		Leeway:        e.Leeway,
		LoginClaim:    e.LoginClaim,
	}
	if cfg.SigningMethod == caseJWT.MethodHS256 {
		cfg.Secret = []byte(e.Secret)
		return cfg, nil
	}

	key, err := os.ReadFile(e.PublicKeyFile)
	if err != nil {
		return caseJWT.Config{}, fmt.Errorf("read identity public key: %w", err)
	}
	cfg.PublicKey = key
	return cfg, nil
}

// Logger builds the process logger.
func (l Log) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch l.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
