package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	DefaultHealthPath     = "/healthz"
	DefaultServiceTimeout = "5s"
)

// reservedPrefixes are paths served by the gateway itself and therefore
// unavailable to route rules.
var reservedPrefixes = []string{"/services", "/metrics", "/healthz"}

type ServerConfig struct {
	Address       string `mapstructure:"address"`
	Environment   string `mapstructure:"environment"`
	ReadTimeout   string `mapstructure:"read_timeout"`
	WriteTimeout  string `mapstructure:"write_timeout"`
	IdleTimeout   string `mapstructure:"idle_timeout"`
	ShutdownGrace string `mapstructure:"shutdown_grace"`
	MaxBodyBytes  int64  `mapstructure:"max_body_bytes"`
}

type HealthCheckConfig struct {
	Interval     string `mapstructure:"interval"`
	ProbeTimeout string `mapstructure:"probe_timeout"`
}

type BreakerConfig struct {
	FailureThreshold int    `mapstructure:"failure_threshold"`
	ResetTimeout     string `mapstructure:"reset_timeout"`
}

type ServiceConfig struct {
	Name       string `mapstructure:"name"`
	BaseURL    string `mapstructure:"base_url"`
	HealthPath string `mapstructure:"health_path"`
	Timeout    string `mapstructure:"timeout"`
}

type RouteConfig struct {
	PathPrefix  string `mapstructure:"path_prefix"`
	ServiceName string `mapstructure:"service_name"`
	RewriteFrom string `mapstructure:"rewrite_from"`
	RewriteTo   string `mapstructure:"rewrite_to"`
	Description string `mapstructure:"description"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	HealthCheck HealthCheckConfig `mapstructure:"health_check"`
	Breaker     BreakerConfig     `mapstructure:"breaker"`
	Services    []ServiceConfig   `mapstructure:"services"`
	Routes      []RouteConfig     `mapstructure:"routes"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

func Load() (*Config, error) {
	viper.SetDefault("server.environment", EnvDev)
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.shutdown_grace", "10s")
	viper.SetDefault("server.max_body_bytes", 10<<20)
	viper.SetDefault("health_check.interval", "10s")
	viper.SetDefault("health_check.probe_timeout", "5s")
	viper.SetDefault("breaker.failure_threshold", 5)
	viper.SetDefault("breaker.reset_timeout", "30s")
	viper.SetDefault("logging.level", LogLevelInfo)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	applyServiceDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

// applyServiceDefaults fills per-service fields viper defaults cannot reach
// inside list elements.
func applyServiceDefaults(cfg *Config) {
	for i := range cfg.Services {
		if cfg.Services[i].HealthPath == "" {
			cfg.Services[i].HealthPath = DefaultHealthPath
		}
		if cfg.Services[i].Timeout == "" {
			cfg.Services[i].Timeout = DefaultServiceTimeout
		}
	}
}

func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
					validation.Field(&sc.ReadTimeout, validation.Required, validation.By(validateDuration)),
					validation.Field(&sc.WriteTimeout, validation.Required, validation.By(validateDuration)),
					validation.Field(&sc.IdleTimeout, validation.Required, validation.By(validateDuration)),
					validation.Field(&sc.ShutdownGrace, validation.Required, validation.By(validateDuration)),
					validation.Field(&sc.MaxBodyBytes, validation.Required, validation.Min(1)),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.HealthCheck,
			validation.Required,
			validation.By(func(value interface{}) error {
				hc, ok := value.(HealthCheckConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a HealthCheckConfig")
				}
				return validation.ValidateStruct(&hc,
					validation.Field(&hc.Interval, validation.Required, validation.By(validateDuration)),
					validation.Field(&hc.ProbeTimeout, validation.Required, validation.By(validateDuration)),
				)
			}),
		),
		validation.Field(&c.Breaker,
			validation.Required,
			validation.By(func(value interface{}) error {
				bc, ok := value.(BreakerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a BreakerConfig")
				}
				return validation.ValidateStruct(&bc,
					validation.Field(&bc.FailureThreshold, validation.Required, validation.Min(1)),
					validation.Field(&bc.ResetTimeout, validation.Required, validation.By(validateDuration)),
				)
			}),
		),
		validation.Field(&c.Services,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateServiceConfig)),
		),
		validation.Field(&c.Routes,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateRouteConfig)),
		),
	); err != nil {
		return err
	}

	return c.validateReferences()
}

// validateReferences enforces the cross-section rules a single field rule
// cannot see: unique service names, unique route prefixes, and every route
// pointing at a configured service.
func (c *Config) validateReferences() error {
	names := make(map[string]struct{}, len(c.Services))
	for _, svc := range c.Services {
		if _, dup := names[svc.Name]; dup {
			return validation.NewError("validation_duplicate_service",
				fmt.Sprintf("duplicate service name %q", svc.Name))
		}
		names[svc.Name] = struct{}{}
	}

	prefixes := make(map[string]struct{}, len(c.Routes))
	for _, route := range c.Routes {
		if _, dup := prefixes[route.PathPrefix]; dup {
			return validation.NewError("validation_duplicate_prefix",
				fmt.Sprintf("duplicate route prefix %q", route.PathPrefix))
		}
		prefixes[route.PathPrefix] = struct{}{}

		if _, ok := names[route.ServiceName]; !ok {
			return validation.NewError("validation_unknown_service",
				fmt.Sprintf("route %q references unknown service %q", route.PathPrefix, route.ServiceName))
		}
	}

	return nil
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if _, err := time.ParseDuration(durationStr); err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	return nil
}

func validateServerURL(value interface{}) error {
	serverURL, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if serverURL == "" {
		return validation.NewError("validation_empty_url", "server URL cannot be empty")
	}

	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}

func validateServiceConfig(value interface{}) error {
	svc, ok := value.(ServiceConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a ServiceConfig")
	}

	return validation.ValidateStruct(&svc,
		validation.Field(&svc.Name, validation.Required),
		validation.Field(&svc.BaseURL, validation.Required, validation.By(validateServerURL)),
		validation.Field(&svc.HealthPath, validation.Required, validation.By(validateAbsolutePath)),
		validation.Field(&svc.Timeout, validation.Required, validation.By(validateDuration)),
	)
}

func validateRouteConfig(value interface{}) error {
	route, ok := value.(RouteConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a RouteConfig")
	}

	if err := validation.ValidateStruct(&route,
		validation.Field(&route.PathPrefix, validation.Required, validation.By(validateAbsolutePath)),
		validation.Field(&route.ServiceName, validation.Required),
	); err != nil {
		return err
	}

	// Rewrite directives come as a pair or not at all.
	if (route.RewriteFrom == "") != (route.RewriteTo == "") {
		return validation.NewError("validation_incomplete_rewrite",
			"rewrite_from and rewrite_to must both be set or both be empty")
	}

	for _, reserved := range reservedPrefixes {
		if route.PathPrefix == reserved || strings.HasPrefix(route.PathPrefix, reserved+"/") {
			return validation.NewError("validation_reserved_prefix",
				fmt.Sprintf("path prefix %q shadows the gateway's own %s endpoint", route.PathPrefix, reserved))
		}
	}

	return nil
}

func validateAbsolutePath(value interface{}) error {
	path, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if !strings.HasPrefix(path, "/") {
		return validation.NewError("validation_relative_path", "must start with /")
	}

	return nil
}

// Duration accessors. Validate guarantees the underlying strings parse, so
// these are safe after a successful Load.

func (s ServerConfig) ReadTimeoutDuration() time.Duration   { return mustDuration(s.ReadTimeout) }
func (s ServerConfig) WriteTimeoutDuration() time.Duration  { return mustDuration(s.WriteTimeout) }
func (s ServerConfig) IdleTimeoutDuration() time.Duration   { return mustDuration(s.IdleTimeout) }
func (s ServerConfig) ShutdownGraceDuration() time.Duration { return mustDuration(s.ShutdownGrace) }

func (h HealthCheckConfig) IntervalDuration() time.Duration     { return mustDuration(h.Interval) }
func (h HealthCheckConfig) ProbeTimeoutDuration() time.Duration { return mustDuration(h.ProbeTimeout) }

func (b BreakerConfig) ResetTimeoutDuration() time.Duration { return mustDuration(b.ResetTimeout) }

func (s ServiceConfig) TimeoutDuration() time.Duration { return mustDuration(s.Timeout) }

func mustDuration(raw string) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}
