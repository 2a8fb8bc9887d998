// Package config provides configuration for the run engine.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Starting URL modes.
const (
	ModeDemo      = "demo"
	ModePlan      = "plan"
	ModeAnyPublic = "any_public"
)

// Artifact backends.
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// Config holds the run engine configuration.
type Config struct {
	// Server settings
	HTTPPort     int
	InternalPort int
	CORSOrigins  []string

	// Database
	DatabaseURL string

	// Starting URL policy
	StartingURLMode      string
	DemoStartingURL      string
	AllowedStartingHosts []string
	SSRFProtection       bool
	DNSResolveTimeout    time.Duration

	// Browser
	Headless       bool
	ViewportWidth  int
	ViewportHeight int

	// Step execution timeouts
	ClickTimeout  time.Duration
	WaitTimeout   time.Duration
	AssertTimeout time.Duration
	NavTimeout    time.Duration
	SettleDelay   time.Duration
	LoadWait      time.Duration
	MaxWaitSleep  time.Duration

	// Plan limits
	MaxPlanSteps int

	// Session lifecycle
	SessionIdleTTL       time.Duration
	SessionSweepInterval time.Duration

	// Artifacts
	ArtifactBackend string
	ArtifactsDir    string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3UseSSL        bool

	// Planner and embeddings
	PlannerURL     string
	PlannerAPIKey  string
	PlannerModel   string
	PlannerTimeout time.Duration
	EmbeddingModel string

	// Ingress settings
	IngressURL string

	// Policy
	PolicyFile string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:     getEnvInt("HTTP_PORT", 8080),
		InternalPort: getEnvInt("INTERNAL_PORT", 8081),
		CORSOrigins:  getEnvList("CORS_ORIGINS", "*"),
		DatabaseURL:  getEnv("DATABASE_URL", "file:uirun.db?mode=rwc"),

		StartingURLMode:      getEnv("STARTING_URL_MODE", ModeDemo),
		DemoStartingURL:      getEnv("DEMO_STARTING_URL", "https://the-internet.herokuapp.com/"),
		AllowedStartingHosts: getEnvList("ALLOWED_STARTING_HOSTS", ""),
		SSRFProtection:       getEnvBool("DNS_SSRF_PROTECTION", true),
		DNSResolveTimeout:    getEnvMillis("DNS_RESOLVE_TIMEOUT_MS", 1500),

		Headless:       getEnvBool("HEADLESS", true),
		ViewportWidth:  getEnvInt("VIEWPORT_WIDTH", 1280),
		ViewportHeight: getEnvInt("VIEWPORT_HEIGHT", 720),

		ClickTimeout:  getEnvMillis("CLICK_TIMEOUT_MS", 20000),
		WaitTimeout:   getEnvMillis("WAIT_TIMEOUT_MS", 25000),
		AssertTimeout: getEnvMillis("ASSERT_TIMEOUT_MS", 8000),
		NavTimeout:    getEnvMillis("NAV_TIMEOUT_MS", 60000),
		SettleDelay:   getEnvMillis("SETTLE_DELAY_MS", 250),
		LoadWait:      getEnvMillis("LOAD_SETTLE_MS", 15000),
		MaxWaitSleep:  getEnvMillis("MAX_WAIT_SLEEP_MS", 15000),

		MaxPlanSteps: getEnvInt("MAX_PLAN_STEPS", 16),

		SessionIdleTTL:       getEnvMillis("SESSION_IDLE_TTL_MS", 300000),
		SessionSweepInterval: getEnvMillis("SESSION_SWEEP_INTERVAL_MS", 30000),

		ArtifactBackend: getEnv("ARTIFACT_BACKEND", BackendFS),
		ArtifactsDir:    getEnv("ARTIFACTS_DIR", "./artifacts"),
		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		S3AccessKey:     getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:     getEnv("S3_SECRET_KEY", ""),
		S3Bucket:        getEnv("S3_BUCKET", "uirun-artifacts"),
		S3UseSSL:        getEnvBool("S3_USE_SSL", false),

		PlannerURL:     getEnv("PLANNER_URL", "http://localhost:4000"),
		PlannerAPIKey:  getEnv("PLANNER_API_KEY", ""),
		PlannerModel:   getEnv("PLANNER_MODEL", "gpt-4o-mini"),
		PlannerTimeout: getEnvMillis("PLANNER_TIMEOUT_MS", 60000),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),

		IngressURL: getEnv("INGRESS_URL", ""),

		PolicyFile: getEnv("POLICY_FILE", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch c.StartingURLMode {
	case ModeDemo, ModePlan, ModeAnyPublic:
	default:
		return fmt.Errorf("invalid STARTING_URL_MODE %q", c.StartingURLMode)
	}
	if c.StartingURLMode == ModePlan && len(c.AllowedStartingHosts) == 0 {
		return fmt.Errorf("STARTING_URL_MODE=plan requires ALLOWED_STARTING_HOSTS")
	}

	switch c.ArtifactBackend {
	case BackendFS, BackendS3:
	default:
		return fmt.Errorf("invalid ARTIFACT_BACKEND %q", c.ArtifactBackend)
	}
	if c.ArtifactBackend == BackendS3 && (c.S3Endpoint == "" || c.S3AccessKey == "" || c.S3SecretKey == "") {
		return fmt.Errorf("ARTIFACT_BACKEND=s3 requires S3_ENDPOINT, S3_ACCESS_KEY and S3_SECRET_KEY")
	}

	if c.MaxPlanSteps <= 0 {
		return fmt.Errorf("MAX_PLAN_STEPS must be positive")
	}
	if c.ClickTimeout <= 0 || c.WaitTimeout <= 0 || c.AssertTimeout <= 0 || c.NavTimeout <= 0 {
		return fmt.Errorf("step timeouts must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvMillis(key string, defaultVal int) time.Duration {
	return time.Duration(getEnvInt(key, defaultVal)) * time.Millisecond
}

func getEnvList(key, defaultVal string) []string {
	val := os.Getenv(key)
	if val == "" {
		val = defaultVal
	}
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
