package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Security  SecurityConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Audit     AuditConfig
	JWT       JWTConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           string
	Env            string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// SecurityConfig holds CSRF, header and body-size settings
type SecurityConfig struct {
	CSRFCookieName     string
	CSRFHeaderName     string
	CSRFMaxAge         time.Duration
	CSRFExemptPrefixes []string
	HSTSMaxAge         time.Duration
	MaxBodyBytes       int64
	UploadMaxBodyBytes int64
}

// PolicyConfig describes one named rate-limit policy. Key names a key
// strategy: ip, ip_route or user.
type PolicyConfig struct {
	Name        string
	MaxRequests int
	Window      time.Duration
	Key         string
}

// RateLimitConfig selects the counter store and the named policies
type RateLimitConfig struct {
	Store           string // memory or redis
	CleanupInterval time.Duration
	Policies        []PolicyConfig
}

// RedisConfig holds the shared counter store connection
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// DatabaseConfig holds SurrealDB connection settings
type DatabaseConfig struct {
	Enabled   bool
	Host      string
	Port      string
	Namespace string
	Database  string
	User      string
	Password  string
	TLS       bool
}

// AuditConfig holds security event sink settings
type AuditConfig struct {
	FilePath       string
	FileMaxSizeMB  int
	FileMaxBackups int
	FileMaxAgeDays int
	FileCompress   bool
	Metrics        bool

	// Retention bounds how long persisted events are kept; zero disables the purge job.
	Retention         time.Duration
	RetentionInterval time.Duration
}

// JWTConfig holds JWT signing settings
type JWTConfig struct {
	PrivateKeyPath string
	PublicKeyPath  string
	ExpirationMins int
	Issuer         string
}

// DefaultPolicies are the policies every preset binds. Configuration may
// change their limits and add more.
var DefaultPolicies = []PolicyConfig{
	{Name: "api", MaxRequests: 100, Window: 15 * time.Minute, Key: "ip"},
	{Name: "auth", MaxRequests: 5, Window: 15 * time.Minute, Key: "ip_route"},
	{Name: "fileUpload", MaxRequests: 10, Window: time.Hour, Key: "ip"},
	{Name: "admin", MaxRequests: 60, Window: time.Minute, Key: "user"},
	{Name: "search", MaxRequests: 30, Window: time.Minute, Key: "ip"},
}

// ConfigName is the optional config file looked up in the working directory.
const ConfigName = "bastion"

// Load reads configuration from defaults, then the optional config file, then
// environment variables. Nested keys map to env vars by joining with "_":
// server.port is SERVER_PORT, ratelimit.policies.api.max_requests is
// RATELIMIT_POLICIES_API_MAX_REQUESTS. An empty path searches for
// bastion.yaml in the working directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return fromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000")

	v.SetDefault("csrf.cookie_name", "csrf_token")
	v.SetDefault("csrf.header_name", "X-CSRF-Token")
	v.SetDefault("csrf.max_age", 24*time.Hour)
	v.SetDefault("csrf.exempt_prefixes", "/v1/auth/callback/")
	v.SetDefault("security.hsts_max_age", 365*24*time.Hour)
	v.SetDefault("security.max_body_bytes", 1<<20)
	v.SetDefault("security.upload_max_body_bytes", 10<<20)

	v.SetDefault("ratelimit.store", "memory")
	v.SetDefault("ratelimit.cleanup_interval", time.Minute)
	for _, p := range DefaultPolicies {
		prefix := policyKey(p.Name)
		v.SetDefault(prefix+".max_requests", p.MaxRequests)
		v.SetDefault(prefix+".window", p.Window)
		v.SetDefault(prefix+".key", p.Key)
	}

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "bastion:rl")

	v.SetDefault("db.enabled", false)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "8000")
	v.SetDefault("db.namespace", "bastion")
	v.SetDefault("db.database", "security")
	v.SetDefault("db.user", "root")
	v.SetDefault("db.password", "root")
	v.SetDefault("db.tls", false)

	v.SetDefault("audit.file_path", "logs/security-events.log")
	v.SetDefault("audit.file_max_size_mb", 100)
	v.SetDefault("audit.file_max_backups", 10)
	v.SetDefault("audit.file_max_age_days", 90)
	v.SetDefault("audit.file_compress", true)
	v.SetDefault("audit.metrics", true)
	v.SetDefault("audit.retention", 90*24*time.Hour)
	v.SetDefault("audit.retention_interval", time.Hour)

	v.SetDefault("jwt.private_key_path", "./keys/private.pem")
	v.SetDefault("jwt.public_key_path", "./keys/public.pem")
	v.SetDefault("jwt.expiration_mins", 15)
	v.SetDefault("jwt.issuer", "bastion.forgo.software")
}

func policyKey(name string) string {
	return "ratelimit.policies." + strings.ToLower(name)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("server.port"),
			Env:            v.GetString("server.env"),
			ReadTimeout:    v.GetDuration("server.read_timeout"),
			WriteTimeout:   v.GetDuration("server.write_timeout"),
			AllowedOrigins: getList(v, "cors.allowed_origins"),
		},
		Security: SecurityConfig{
			CSRFCookieName:     v.GetString("csrf.cookie_name"),
			CSRFHeaderName:     v.GetString("csrf.header_name"),
			CSRFMaxAge:         v.GetDuration("csrf.max_age"),
			CSRFExemptPrefixes: getList(v, "csrf.exempt_prefixes"),
			HSTSMaxAge:         v.GetDuration("security.hsts_max_age"),
			MaxBodyBytes:       v.GetInt64("security.max_body_bytes"),
			UploadMaxBodyBytes: v.GetInt64("security.upload_max_body_bytes"),
		},
		RateLimit: RateLimitConfig{
			Store:           strings.ToLower(v.GetString("ratelimit.store")),
			CleanupInterval: v.GetDuration("ratelimit.cleanup_interval"),
			Policies:        loadPolicies(v),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Prefix:   v.GetString("redis.prefix"),
		},
		Database: DatabaseConfig{
			Enabled:   v.GetBool("db.enabled"),
			Host:      v.GetString("db.host"),
			Port:      v.GetString("db.port"),
			Namespace: v.GetString("db.namespace"),
			Database:  v.GetString("db.database"),
			User:      v.GetString("db.user"),
			Password:  v.GetString("db.password"),
			TLS:       v.GetBool("db.tls"),
		},
		Audit: AuditConfig{
			FilePath:       v.GetString("audit.file_path"),
			FileMaxSizeMB:  v.GetInt("audit.file_max_size_mb"),
			FileMaxBackups: v.GetInt("audit.file_max_backups"),
			FileMaxAgeDays: v.GetInt("audit.file_max_age_days"),
			FileCompress:   v.GetBool("audit.file_compress"),
			Metrics:        v.GetBool("audit.metrics"),

			Retention:         v.GetDuration("audit.retention"),
			RetentionInterval: v.GetDuration("audit.retention_interval"),
		},
		JWT: JWTConfig{
			PrivateKeyPath: v.GetString("jwt.private_key_path"),
			PublicKeyPath:  v.GetString("jwt.public_key_path"),
			ExpirationMins: v.GetInt("jwt.expiration_mins"),
			Issuer:         v.GetString("jwt.issuer"),
		},
	}
}

// loadPolicies returns the default policies, with configured overrides, then
// any extra policies from the config file in name order.
func loadPolicies(v *viper.Viper) []PolicyConfig {
	policies := make([]PolicyConfig, 0, len(DefaultPolicies))
	known := make(map[string]bool, len(DefaultPolicies))
	for _, p := range DefaultPolicies {
		known[strings.ToLower(p.Name)] = true
		policies = append(policies, readPolicy(v, p.Name))
	}

	var extra []string
	for name := range v.GetStringMap("ratelimit.policies") {
		if !known[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		p := readPolicy(v, name)
		if p.Key == "" {
			p.Key = "ip"
		}
		policies = append(policies, p)
	}
	return policies
}

func readPolicy(v *viper.Viper, name string) PolicyConfig {
	prefix := policyKey(name)
	return PolicyConfig{
		Name:        name,
		MaxRequests: v.GetInt(prefix + ".max_requests"),
		Window:      v.GetDuration(prefix + ".window"),
		Key:         v.GetString(prefix + ".key"),
	}
}

// getList accepts a YAML list or a comma-separated string (as env vars are).
func getList(v *viper.Viper, key string) []string {
	var raw []string
	switch val := v.Get(key).(type) {
	case string:
		raw = strings.Split(val, ",")
	default:
		raw = v.GetStringSlice(key)
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Policy returns the named policy.
func (c *Config) Policy(name string) (PolicyConfig, bool) {
	for _, p := range c.RateLimit.Policies {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return PolicyConfig{}, false
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

var validKeys = map[string]bool{"ip": true, "ip_route": true, "user": true}

// Validate checks that all required configuration values are present and valid.
// It returns an error describing all validation failures, or nil if valid.
func (c *Config) Validate() error {
	var errs []error

	// Server validation
	if c.Server.Port == "" {
		errs = append(errs, errors.New("SERVER_PORT is required"))
	}
	if c.Server.Env != "development" && c.Server.Env != "production" && c.Server.Env != "test" {
		errs = append(errs, fmt.Errorf("SERVER_ENV must be 'development', 'production', or 'test', got '%s'", c.Server.Env))
	}
	if len(c.Server.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must have at least one origin"))
	}

	// Security validation
	if c.Security.CSRFCookieName == "" {
		errs = append(errs, errors.New("CSRF_COOKIE_NAME is required"))
	}
	if c.Security.CSRFHeaderName == "" {
		errs = append(errs, errors.New("CSRF_HEADER_NAME is required"))
	}
	if c.Security.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("SECURITY_MAX_BODY_BYTES must be positive"))
	}
	if c.Security.UploadMaxBodyBytes < c.Security.MaxBodyBytes {
		errs = append(errs, errors.New("SECURITY_UPLOAD_MAX_BODY_BYTES must not be below SECURITY_MAX_BODY_BYTES"))
	}

	// Rate limit validation
	switch c.RateLimit.Store {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when RATELIMIT_STORE is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("RATELIMIT_STORE must be 'memory' or 'redis', got '%s'", c.RateLimit.Store))
	}
	for _, p := range c.RateLimit.Policies {
		if p.MaxRequests <= 0 {
			errs = append(errs, fmt.Errorf("rate limit policy %q: max_requests must be positive", p.Name))
		}
		if p.Window <= 0 {
			errs = append(errs, fmt.Errorf("rate limit policy %q: window must be positive", p.Name))
		}
		if !validKeys[p.Key] {
			errs = append(errs, fmt.Errorf("rate limit policy %q: key must be ip, ip_route or user, got '%s'", p.Name, p.Key))
		}
	}

	// Database validation
	if c.Database.Enabled {
		if c.Database.Host == "" {
			errs = append(errs, errors.New("DB_HOST is required"))
		}
		if c.Database.Port == "" {
			errs = append(errs, errors.New("DB_PORT is required"))
		}
		if c.Database.Namespace == "" {
			errs = append(errs, errors.New("DB_NAMESPACE is required"))
		}
		if c.Database.Database == "" {
			errs = append(errs, errors.New("DB_DATABASE is required"))
		}
		if c.Audit.Retention > 0 && c.Audit.RetentionInterval <= 0 {
			errs = append(errs, errors.New("AUDIT_RETENTION_INTERVAL must be positive when AUDIT_RETENTION is set"))
		}
	}

	// JWT validation - critical for production
	if c.IsProduction() {
		if c.JWT.PublicKeyPath == "" {
			errs = append(errs, errors.New("JWT_PUBLIC_KEY_PATH is required in production"))
		}
	}
	if c.JWT.ExpirationMins <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRATION_MINS must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
