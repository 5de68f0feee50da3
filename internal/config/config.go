package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// App block (optional in YAML).
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
		// API key protecting the public-key passthrough endpoint.
		APIKey string `yaml:"api_key"`
	} `yaml:"server"`

	Keycloak struct {
		URL           string `yaml:"url"`
		Realm         string `yaml:"realm"`
		ClientID      string `yaml:"client_id"`
		ClientSecret  string `yaml:"client_secret"`
		AdminUsername string `yaml:"admin_username"`
		AdminPassword string `yaml:"admin_password"`
		// Audience expected in access tokens. Keycloak uses "account".
		Audience string `yaml:"audience"`
	} `yaml:"keycloak"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Providers struct {
		Google struct {
			ClientID     string `yaml:"client_id"`
			ClientSecret string `yaml:"client_secret"`
		} `yaml:"google"`
		Kakao struct {
			ClientID     string `yaml:"client_id"`
			ClientSecret string `yaml:"client_secret"`
		} `yaml:"kakao"`
		Naver struct {
			ClientID     string `yaml:"client_id"`
			ClientSecret string `yaml:"client_secret"`
		} `yaml:"naver"`
	} `yaml:"providers"`

	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
		// auto | starttls | ssl | none
		TLS                string `yaml:"tls"`
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // dev only
		// When true, codes are logged instead of emailed (dev).
		DebugEchoCodes bool `yaml:"debug_echo_codes"`
	} `yaml:"smtp"`

	RateLimit struct {
		// Requests admitted per window on the /auth endpoints. 0 disables
		// limiting.
		Max           int `yaml:"max"`
		WindowSeconds int `yaml:"window_seconds"`
	} `yaml:"rate_limit"`

	Session struct {
		CookieDomain string `yaml:"cookie_domain"`
		SameSite     string `yaml:"samesite"`
		Secure       bool   `yaml:"secure"`
	} `yaml:"session"`
}

// Load reads the YAML file at path (optional), applies env overrides and
// defaults, then validates the required Keycloak settings.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	c.applyEnvOverrides()

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Keycloak.Audience == "" {
		c.Keycloak.Audience = "account"
	}
	if c.Session.SameSite == "" {
		c.Session.SameSite = "lax"
	}
	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}
	if c.RateLimit.Max > 0 && c.RateLimit.WindowSeconds == 0 {
		c.RateLimit.WindowSeconds = 60
	}

	if c.Keycloak.URL == "" || c.Keycloak.Realm == "" || c.Keycloak.ClientID == "" {
		return nil, fmt.Errorf("config: keycloak url, realm and client_id are required")
	}
	c.Keycloak.URL = strings.TrimRight(c.Keycloak.URL, "/")

	return &c, nil
}

// RealmURL returns the base URL of the configured realm.
func (c *Config) RealmURL() string {
	return c.Keycloak.URL + "/realms/" + c.Keycloak.Realm
}

// applyEnvOverrides lets env vars win over config.yaml values.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("SERVER_API_KEY"); ok {
		c.Server.APIKey = v
	}

	if v, ok := getEnvStr("KEYCLOAK_URL"); ok {
		c.Keycloak.URL = v
	}
	if v, ok := getEnvStr("KEYCLOAK_REALM"); ok {
		c.Keycloak.Realm = v
	}
	if v, ok := getEnvStr("KEYCLOAK_CLIENT_ID"); ok {
		c.Keycloak.ClientID = v
	}
	if v, ok := getEnvStr("KEYCLOAK_CLIENT_SECRET"); ok {
		c.Keycloak.ClientSecret = v
	}
	if v, ok := getEnvStr("KEYCLOAK_ADMIN_USERNAME"); ok {
		c.Keycloak.AdminUsername = v
	}
	if v, ok := getEnvStr("KEYCLOAK_ADMIN_PASSWORD"); ok {
		c.Keycloak.AdminPassword = v
	}
	if v, ok := getEnvStr("KEYCLOAK_AUDIENCE"); ok {
		c.Keycloak.Audience = v
	}

	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}

	if v, ok := getEnvStr("GOOGLE_CLIENT_ID"); ok {
		c.Providers.Google.ClientID = v
	}
	if v, ok := getEnvStr("GOOGLE_CLIENT_SECRET"); ok {
		c.Providers.Google.ClientSecret = v
	}
	if v, ok := getEnvStr("KAKAO_CLIENT_ID"); ok {
		c.Providers.Kakao.ClientID = v
	}
	if v, ok := getEnvStr("KAKAO_CLIENT_SECRET"); ok {
		c.Providers.Kakao.ClientSecret = v
	}
	if v, ok := getEnvStr("NAVER_CLIENT_ID"); ok {
		c.Providers.Naver.ClientID = v
	}
	if v, ok := getEnvStr("NAVER_CLIENT_SECRET"); ok {
		c.Providers.Naver.ClientSecret = v
	}

	if v, ok := getEnvInt("RATE_LIMIT_MAX"); ok {
		c.RateLimit.Max = v
	}
	if v, ok := getEnvInt("RATE_LIMIT_WINDOW_SECONDS"); ok {
		c.RateLimit.WindowSeconds = v
	}

	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvBool("SMTP_DEBUG_ECHO_CODES"); ok {
		c.SMTP.DebugEchoCodes = v
	}

	// Never allow insecure TLS outside dev.
	if c.App.Env == "prod" {
		c.SMTP.InsecureSkipVerify = false
	}
}

// ---- env helpers ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
