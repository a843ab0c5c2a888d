package infra

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv        string
	Port          string
	DefaultLocale string
	GeoIPDBPath   string
	StoragePath   string

	RunComfyAPIKey       string
	DeploymentID         string
	RunComfyBaseURL      string
	RunComfyTimeout      time.Duration
	RunComfyPollInterval time.Duration
	// RunComfyMaxWait bounds one poll loop; negative disables the bound.
	RunComfyMaxWait  time.Duration
	FaceOutputNode   string
	SceneOutputNode  string
	EmbedFaceImage   bool
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	CORSOrigins      []string

	// TrustProxyHeaders lets X-Forwarded-For / X-Real-IP replace the peer
	// address. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. Credentials stay optional here: the API accepts them
// per request, and the job client rejects calls made without them.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:               getEnv("APP_ENV", "development"),
		Port:                 getEnv("PORT", "8080"),
		DefaultLocale:        getEnv("DEFAULT_LOCALE", "ko"),
		GeoIPDBPath:          os.Getenv("GEOIP_DB_PATH"),
		StoragePath:          getEnv("STORAGE_PATH", "./storyboard"),
		RunComfyAPIKey:       strings.TrimSpace(os.Getenv("RUNCOMFY_API_KEY")),
		DeploymentID:         strings.TrimSpace(os.Getenv("DEPLOYMENT_ID")),
		RunComfyBaseURL:      getEnv("RUNCOMFY_BASE_URL", "https://api.runcomfy.net/prod/v1"),
		RunComfyTimeout:      time.Second * time.Duration(getEnvInt("RUNCOMFY_REQUEST_TIMEOUT_SECONDS", 60)),
		RunComfyPollInterval: time.Second * time.Duration(getEnvInt("RUNCOMFY_POLL_INTERVAL_SECONDS", 2)),
		RunComfyMaxWait:      time.Second * time.Duration(getEnvInt("RUNCOMFY_MAX_WAIT_SECONDS", 600)),
		FaceOutputNode:       getEnv("RUNCOMFY_FACE_OUTPUT_NODE", "84"),
		SceneOutputNode:      getEnv("RUNCOMFY_SCENE_OUTPUT_NODE", "54"),
		EmbedFaceImage:       getEnvBool("RUNCOMFY_EMBED_FACE", true),
		HTTPReadTimeout:      time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPIdleTimeout:      time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:      getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSOrigins:          splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		TrustProxyHeaders:    getEnvBool("TRUST_PROXY_HEADERS", false),
	}
	cfg.HTTPWriteTimeout = time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", -1))
	if cfg.HTTPWriteTimeout < 0 {
		cfg.HTTPWriteTimeout = cfg.stepBudget()
	}
	return cfg, nil
}

// stepBudget is the longest a wizard step can run: submit, the poll bound,
// result fetch and the face download each get their own limit. Zero means no
// write timeout, used when polling is unbounded.
func (c *Config) stepBudget() time.Duration {
	if c.RunComfyMaxWait < 0 {
		return 0
	}
	maxWait := c.RunComfyMaxWait
	if maxWait == 0 {
		maxWait = 10 * time.Minute
	}
	timeout := c.RunComfyTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return maxWait + 3*timeout + 30*time.Second
}

// HasRunComfyCredentials reports whether both deployment credentials are set.
func (c *Config) HasRunComfyCredentials() bool {
	return c.RunComfyAPIKey != "" && c.DeploymentID != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
