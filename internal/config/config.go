package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig    `yaml:"server"`
	Database   DatabaseConfig  `yaml:"database"`
	Auth       AuthConfig      `yaml:"auth"`
	Email      EmailConfig     `yaml:"email"`
	Roblox     RobloxConfig    `yaml:"roblox"`
	Swipe      SwipeConfig     `yaml:"swipe"`
	Cache      CacheConfig     `yaml:"cache"`
	Admin      AdminConfig     `yaml:"admin"`
	Log        LogConfig       `yaml:"log"`
	RateLimits RateLimitConfig `yaml:"rate_limits"`
}

type ServerConfig struct {
	Name           string        `yaml:"name"`
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	BaseURL        string        `yaml:"base_url"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	TrustedProxies []string      `yaml:"trusted_proxies"`
	SecureCookies  bool          `yaml:"secure_cookies"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	ResetCodeTTL  time.Duration `yaml:"reset_code_ttl"`
}

type EmailConfig struct {
	SMTP SMTPConfig `yaml:"smtp"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Enabled reports whether outgoing mail is configured. Without it reset codes
// are written to the log.
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

type RobloxConfig struct {
	UsersURL           string        `yaml:"users_url"`
	ThumbnailsURL      string        `yaml:"thumbnails_url"`
	VerificationPhrase string        `yaml:"verification_phrase"`
	Timeout            time.Duration `yaml:"timeout"`
	OAuth              OAuthConfig   `yaml:"oauth"`
}

type OAuthConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url"`
	AuthURL      string   `yaml:"auth_url"`
	TokenURL     string   `yaml:"token_url"`
	UserInfoURL  string   `yaml:"userinfo_url"`
	Scopes       []string `yaml:"scopes"`
}

func (c OAuthConfig) Enabled() bool {
	return c.ClientID != ""
}

type SwipeConfig struct {
	DailyLimit     int    `yaml:"daily_limit"`
	Timezone       string `yaml:"timezone"`
	ExcludeDecided bool   `yaml:"exclude_decided"`
}

// Location returns the zone that defines the quota's calendar day.
func (c SwipeConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type CacheConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	AvatarTTL     time.Duration `yaml:"avatar_ttl"`
}

type AdminConfig struct {
	BootstrapUsername string `yaml:"bootstrap_username"`
	BootstrapPassword string `yaml:"bootstrap_password"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type RateLimitConfig struct {
	AuthPerMinute int `yaml:"auth_per_minute"`
	APIPerMinute  int `yaml:"api_per_minute"`
}

func Load(path string) (*Config, error) {
	// A missing .env is fine; the file only seeds the environment.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ANOMIDATE_SESSION_SECRET"); v != "" {
		c.Auth.SessionSecret = v
	}
	if v := os.Getenv("ANOMIDATE_DATABASE_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("ANOMIDATE_SMTP_PASSWORD"); v != "" {
		c.Email.SMTP.Password = v
	}
	if v := os.Getenv("ANOMIDATE_ROBLOX_CLIENT_SECRET"); v != "" {
		c.Roblox.OAuth.ClientSecret = v
	}
	if v := os.Getenv("ANOMIDATE_REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv("ANOMIDATE_REDIS_PASSWORD"); v != "" {
		c.Cache.RedisPassword = v
	}
	if v := os.Getenv("ANOMIDATE_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cache.RedisDB = n
		}
	}
	if v := os.Getenv("ANOMIDATE_ADMIN_USERNAME"); v != "" {
		c.Admin.BootstrapUsername = v
	}
	if v := os.Getenv("ANOMIDATE_ADMIN_PASSWORD"); v != "" {
		c.Admin.BootstrapPassword = v
	}
	if v := os.Getenv("ANOMIDATE_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("VERIFICATION_PHRASE"); v != "" {
		c.Roblox.VerificationPhrase = v
	}
}

func (c *Config) validate() error {
	if c.Auth.SessionSecret == "" {
		return fmt.Errorf("auth.session_secret is required")
	}
	if len(c.Auth.SessionSecret) < 32 {
		return fmt.Errorf("auth.session_secret must be at least 32 characters")
	}
	if c.Email.SMTP.Enabled() && c.Email.SMTP.From == "" {
		return fmt.Errorf("email.smtp.from is required when email.smtp.host is set")
	}
	if c.Roblox.OAuth.Enabled() {
		if c.Roblox.OAuth.ClientSecret == "" {
			return fmt.Errorf("roblox.oauth.client_secret is required when roblox.oauth.client_id is set")
		}
		if c.Roblox.OAuth.RedirectURL == "" {
			return fmt.Errorf("roblox.oauth.redirect_url is required when roblox.oauth.client_id is set")
		}
	}
	if c.Swipe.DailyLimit < 0 {
		return fmt.Errorf("swipe.daily_limit must not be negative")
	}
	if c.Swipe.Timezone != "" {
		if _, err := time.LoadLocation(c.Swipe.Timezone); err != nil {
			return fmt.Errorf("swipe.timezone: %w", err)
		}
	}
	if (c.Admin.BootstrapUsername == "") != (c.Admin.BootstrapPassword == "") {
		return fmt.Errorf("admin.bootstrap_username and admin.bootstrap_password must be set together")
	}
	if c.Admin.BootstrapPassword != "" && len(c.Admin.BootstrapPassword) < 12 {
		return fmt.Errorf("admin.bootstrap_password must be at least 12 characters")
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Name == "" {
		c.Server.Name = "anomidate"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/anomidate.db"
	}
	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = 7 * 24 * time.Hour
	}
	if c.Auth.ResetCodeTTL == 0 {
		c.Auth.ResetCodeTTL = 15 * time.Minute
	}
	if c.Email.SMTP.Port == 0 {
		c.Email.SMTP.Port = 587
	}
	if c.Roblox.UsersURL == "" {
		c.Roblox.UsersURL = "https://users.roblox.com"
	}
	if c.Roblox.ThumbnailsURL == "" {
		c.Roblox.ThumbnailsURL = "https://thumbnails.roblox.com"
	}
	if c.Roblox.VerificationPhrase == "" {
		c.Roblox.VerificationPhrase = "anomidate"
	}
	if c.Roblox.Timeout == 0 {
		c.Roblox.Timeout = 10 * time.Second
	}
	if c.Roblox.OAuth.AuthURL == "" {
		c.Roblox.OAuth.AuthURL = "https://apis.roblox.com/oauth/v1/authorize"
	}
	if c.Roblox.OAuth.TokenURL == "" {
		c.Roblox.OAuth.TokenURL = "https://apis.roblox.com/oauth/v1/token"
	}
	if c.Roblox.OAuth.UserInfoURL == "" {
		c.Roblox.OAuth.UserInfoURL = "https://apis.roblox.com/oauth/v1/userinfo"
	}
	if len(c.Roblox.OAuth.Scopes) == 0 {
		c.Roblox.OAuth.Scopes = []string{"openid", "profile"}
	}
	if c.Swipe.DailyLimit == 0 {
		c.Swipe.DailyLimit = 50
	}
	if c.Swipe.Timezone == "" {
		c.Swipe.Timezone = "UTC"
	}
	if c.Cache.AvatarTTL == 0 {
		c.Cache.AvatarTTL = time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.RateLimits.AuthPerMinute == 0 {
		c.RateLimits.AuthPerMinute = 10
	}
	if c.RateLimits.APIPerMinute == 0 {
		c.RateLimits.APIPerMinute = 120
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
