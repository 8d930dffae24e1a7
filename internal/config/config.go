package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	Environment   string `mapstructure:"environment"`
	DevModeBypass bool   `mapstructure:"dev_mode_bypass"`
	LogLevel      string `mapstructure:"log_level"`
	Server        struct {
		Addr         string        `mapstructure:"addr"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
		IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	} `mapstructure:"server"`
	DB struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
		MaxConns int32  `mapstructure:"max_conns"`
	} `mapstructure:"db"`
	Auth struct {
		OktaDomain      string `mapstructure:"okta_domain"`
		ClientID        string `mapstructure:"client_id"`
		ClientSecret    string `mapstructure:"client_secret"`
		RedirectURL     string `mapstructure:"redirect_url"`
		SwaggerClientID string `mapstructure:"swagger_client_id"`
	} `mapstructure:"auth"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
	WorkflowCache struct {
		TTL      time.Duration `mapstructure:"ttl"`
		Capacity uint64        `mapstructure:"capacity"`
	} `mapstructure:"workflow_cache"`
	Persistence struct {
		// MaxElapsed bounds the retries of a failed advancement write.
		MaxElapsed time.Duration `mapstructure:"max_elapsed"`
	} `mapstructure:"persistence"`
	Sweep struct {
		Schedule string `mapstructure:"schedule"`
	} `mapstructure:"sweep"`
}

// IsDev reports whether the service runs in the DEV environment.
func (c *Config) IsDev() bool {
	return strings.EqualFold(c.Environment, "dev")
}

// DatabaseURL renders the DB section as a postgres:// URL, accepted by
// both pgxpool and the migrator.
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DB.User, c.DB.Password),
		Host:   net.JoinHostPort(c.DB.Host, strconv.Itoa(c.DB.Port)),
		Path:   "/" + c.DB.Name,
	}
	q := url.Values{}
	if c.DB.SSLMode != "" {
		q.Set("sslmode", c.DB.SSLMode)
	}
	if c.DB.MaxConns > 0 {
		q.Set("pool_max_conns", strconv.Itoa(int(c.DB.MaxConns)))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "PROD")
	v.SetDefault("dev_mode_bypass", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "floorflow")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_conns", 0)
	// registered so AutomaticEnv can override them
	for _, key := range []string{
		"db.user", "db.password",
		"auth.okta_domain", "auth.client_id", "auth.client_secret", "auth.redirect_url", "auth.swagger_client_id",
		"tls.cert_file", "tls.key_file",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("tls.enable", false)
	v.SetDefault("workflow_cache.ttl", 10*time.Minute)
	v.SetDefault("workflow_cache.capacity", 512)
	v.SetDefault("persistence.max_elapsed", 5*time.Second)
	v.SetDefault("sweep.schedule", "@every 5m")
}

// LoadConfig loads the configuration from a file and the environment.
// An empty path searches for config.yaml in . and ./config; a missing
// file is fine when the search finds nothing.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix("FLOORFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// normalize OKTA issuer url (strip trailing slash if any)
	config.Auth.OktaDomain = normalizeOktaIssuer(config.Auth.OktaDomain)

	return &config, nil
}

// normalizeOktaIssuer ensures the provided Okta issuer string is in a
// predictable form. It removes any trailing slash and leaves the scheme and
// path intact.
func normalizeOktaIssuer(input string) string {
	return strings.TrimRight(strings.TrimSpace(input), "/")
}
