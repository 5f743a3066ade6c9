// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads service configuration.
//
// Sources are layered, lowest precedence first:
//
//  1. flag defaults
//  2. an optional YAML file (--config, else $XDG_CONFIG_HOME/accounts/config.yaml)
//  3. a .env file
//  4. process environment variables
//  5. flags set explicitly on the command line
package config

import (
	"errors"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Mail transports.
const (
	TransportLog      = "log"
	TransportSMTP     = "smtp"
	TransportSendGrid = "sendgrid"
)

// Config is the effective service configuration.
type Config struct {
	Host        string        `koanf:"host" yaml:"host"`
	Port        int           `koanf:"port" yaml:"port" validate:"required,min=1,max=65535"`
	Environment string        `koanf:"environment" yaml:"environment" validate:"oneof=development production"`
	DatabaseURL string        `koanf:"database_url" yaml:"database_url" validate:"required"`
	JWTSecret   string        `koanf:"jwt_secret" yaml:"jwt_secret" validate:"required"`
	RedisURL    string        `koanf:"redis_url" yaml:"redis_url"`
	CORSOrigins []string      `koanf:"cors_origins" yaml:"cors_origins" validate:"dive,url"`
	LogFormat   string        `koanf:"log_format" yaml:"log_format" validate:"oneof=json text"`
	MetricsAddr string        `koanf:"metrics_addr" yaml:"metrics_addr"`
	AutoMigrate bool          `koanf:"auto_migrate" yaml:"auto_migrate"`
	OTPTTL      time.Duration `koanf:"otp_ttl" yaml:"otp_ttl" validate:"gt=0"`
	SessionTTL  time.Duration `koanf:"session_ttl" yaml:"session_ttl" validate:"gt=0"`
	BcryptCost  int           `koanf:"bcrypt_cost" yaml:"bcrypt_cost" validate:"min=4,max=31"`
	Mail        MailConfig    `koanf:"mail" yaml:"mail"`
}

// MailConfig selects and configures the email transport.
type MailConfig struct {
	Transport      string     `koanf:"transport" yaml:"transport" validate:"oneof=log smtp sendgrid"`
	Sender         string     `koanf:"sender" yaml:"sender" validate:"required_unless=Transport log,omitempty,email"`
	SendGridAPIKey string     `koanf:"sendgrid_api_key" yaml:"sendgrid_api_key" validate:"required_if=Transport sendgrid"`
	SMTP           SMTPConfig `koanf:"smtp" yaml:"smtp"`
}

// SMTPConfig holds SMTP relay settings.
type SMTPConfig struct {
	Host     string `koanf:"host" yaml:"host"`
	Port     int    `koanf:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
	Username string `koanf:"username" yaml:"username"`
	Password string `koanf:"password" yaml:"password"`
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// IsProduction reports whether the service runs hardened.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return oops.Code("CONFIG_INVALID").
				With("field", first.Namespace()).
				With("rule", first.Tag()).
				Wrapf(err, "invalid configuration")
		}
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if c.Mail.Transport == TransportSMTP && (c.Mail.SMTP.Host == "" || c.Mail.SMTP.Port == 0) {
		return oops.Code("CONFIG_INVALID").
			With("field", "Config.Mail.SMTP").
			Errorf("smtp transport requires SMTP_HOST and SMTP_PORT")
	}
	return nil
}

// Redacted returns a copy safe to print: secrets are masked and the
// database password is hidden.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "****"
	}
	c.JWTSecret = mask(c.JWTSecret)
	c.Mail.SendGridAPIKey = mask(c.Mail.SendGridAPIKey)
	c.Mail.SMTP.Password = mask(c.Mail.SMTP.Password)
	c.DatabaseURL = redactURL(c.DatabaseURL)
	c.RedisURL = redactURL(c.RedisURL)
	c.CORSOrigins = append([]string(nil), c.CORSOrigins...)
	return c
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "****"
	}
	return u.Redacted()
}

// Defaults.
const (
	DefaultPort        = 3001
	DefaultLogFormat   = "json"
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultCORSOrigin  = "http://localhost:5173"
	DefaultOTPTTL      = 10 * time.Minute
	DefaultSessionTTL  = 7 * 24 * time.Hour
	DefaultBcryptCost  = 12
	DefaultDotEnvFile  = ".env"
)

// flagKeys maps flag names to config keys. Flags not listed are not
// configuration (for example --config itself).
var flagKeys = map[string]string{
	"host":           "host",
	"port":           "port",
	"environment":    "environment",
	"database-url":   "database_url",
	"redis-url":      "redis_url",
	"cors-origins":   "cors_origins",
	"log-format":     "log_format",
	"metrics-addr":   "metrics_addr",
	"auto-migrate":   "auto_migrate",
	"otp-ttl":        "otp_ttl",
	"session-ttl":    "session_ttl",
	"bcrypt-cost":    "bcrypt_cost",
	"mail-transport": "mail.transport",
	"sender-email":   "mail.sender",
}

// RegisterFlags adds the configuration flags and their defaults to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("host", "", "HTTP listen host (empty = all interfaces)")
	fs.Int("port", DefaultPort, "HTTP listen port")
	fs.String("environment", EnvDevelopment, "deployment environment (development or production)")
	fs.String("database-url", "", "PostgreSQL connection string")
	fs.String("redis-url", "", "Redis URL for the logout denylist (empty = stateless logout)")
	fs.StringSlice("cors-origins", []string{DefaultCORSOrigin}, "allowed CORS origins")
	fs.String("log-format", DefaultLogFormat, "log format (json or text)")
	fs.String("metrics-addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.Bool("auto-migrate", false, "apply pending migrations on startup")
	fs.Duration("otp-ttl", DefaultOTPTTL, "lifetime of emailed one-time codes")
	fs.Duration("session-ttl", DefaultSessionTTL, "lifetime of session tokens")
	fs.Int("bcrypt-cost", DefaultBcryptCost, "bcrypt cost factor")
	fs.String("mail-transport", TransportLog, "email transport (log, smtp or sendgrid)")
	fs.String("sender-email", "", "From address for outgoing email")
}

// envKeys maps environment variables to config keys.
var envKeys = map[string]string{
	"HOST":             "host",
	"PORT":             "port",
	"APP_ENV":          "environment",
	"DATABASE_URL":     "database_url",
	"JWT_SECRET":       "jwt_secret",
	"REDIS_URL":        "redis_url",
	"CORS_ORIGINS":     "cors_origins",
	"LOG_FORMAT":       "log_format",
	"METRICS_ADDR":     "metrics_addr",
	"AUTO_MIGRATE":     "auto_migrate",
	"OTP_TTL":          "otp_ttl",
	"SESSION_TTL":      "session_ttl",
	"BCRYPT_COST":      "bcrypt_cost",
	"MAIL_TRANSPORT":   "mail.transport",
	"SENDER_EMAIL":     "mail.sender",
	"SENDGRID_API_KEY": "mail.sendgrid_api_key",
	"SMTP_HOST":        "mail.smtp.host",
	"SMTP_PORT":        "mail.smtp.port",
	"SMTP_USERNAME":    "mail.smtp.username",
	"SMTP_PASSWORD":    "mail.smtp.password",
}

// envAliases are legacy names, used only when the primary is unset.
var envAliases = map[string]string{
	"DB_URL":    "DATABASE_URL",
	"JWT_TOKEN": "JWT_SECRET",
	"NODE_ENV":  "APP_ENV",
}

// LoadOptions controls where Load reads from.
type LoadOptions struct {
	// ConfigFile is an optional YAML file. Empty falls back to
	// DefaultConfigFile.
	ConfigFile string
	// DotEnvFile defaults to ".env"; a missing file is ignored.
	DotEnvFile string
	// Flags must have been populated by RegisterFlags. Nil uses defaults only.
	Flags *pflag.FlagSet
	// Environ defaults to os.Environ.
	Environ func() []string
}

// Load builds and validates the effective configuration.
func Load(opts LoadOptions) (*Config, error) {
	cfg, err := LoadUnvalidated(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadUnvalidated merges the sources without checking constraints, for
// commands that need only part of the configuration.
func LoadUnvalidated(opts LoadOptions) (*Config, error) {
	if opts.Environ == nil {
		opts.Environ = os.Environ
	}
	if opts.DotEnvFile == "" {
		opts.DotEnvFile = DefaultDotEnvFile
	}
	if opts.Flags == nil {
		opts.Flags = pflag.NewFlagSet("config", pflag.ContinueOnError)
		RegisterFlags(opts.Flags)
	}

	k := koanf.New(".")
	processEnv := opts.Environ()

	if opts.ConfigFile == "" {
		opts.ConfigFile = DefaultConfigFile(processEnv)
	}
	if opts.ConfigFile != "" {
		if err := k.Load(file.Provider(opts.ConfigFile), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "read config file").
				With("path", opts.ConfigFile).
				Wrap(err)
		}
	}

	environ, err := mergedEnviron(opts.DotEnvFile, processEnv)
	if err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider(".", env.Opt{
		TransformFunc: envTransform(environ),
		EnvironFunc:   func() []string { return environ },
	}), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "read environment").Wrap(err)
	}

	// Unchanged flags only fill keys no other layer set; changed flags win.
	if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(opts.Flags, f)
	}), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "read flags").Wrap(err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "decode config").Wrap(err)
	}
	return &cfg, nil
}

// mergedEnviron prepends .env entries so real environment variables win.
func mergedEnviron(dotEnvFile string, environ []string) ([]string, error) {
	values, err := godotenv.Read(dotEnvFile)
	if errors.Is(err, fs.ErrNotExist) {
		return environ, nil
	}
	if err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").
			With("operation", "read dotenv file").
			With("path", dotEnvFile).
			Wrap(err)
	}

	merged := make([]string, 0, len(values)+len(environ))
	for name, value := range values {
		merged = append(merged, name+"="+value)
	}
	return append(merged, environ...), nil
}

func envTransform(environ []string) func(name, value string) (string, any) {
	present := make(map[string]bool, len(environ))
	for _, kv := range environ {
		if name, value, ok := strings.Cut(kv, "="); ok && value != "" {
			present[name] = true
		}
	}

	return func(name, value string) (string, any) {
		if primary, ok := envAliases[name]; ok {
			if present[primary] {
				return "", nil
			}
			name = primary
		}
		key, ok := envKeys[name]
		if !ok || value == "" {
			return "", nil
		}
		if key == "cors_origins" {
			return key, splitList(value)
		}
		return key, value
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
