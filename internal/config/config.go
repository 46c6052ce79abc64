package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Host string
	Port string

	// Logging settings
	LogLevel  string
	LogFormat string

	// Query log database
	DatabasePath string

	// Document store (case cache)
	DocumentStore    string
	MongoURI         string
	MongoDatabase    string
	CollectionPrefix string

	// Object store (order archive)
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3UseSSL        bool
	BucketName      string
	RegionName      string
	S3PublicBaseURL string

	// Session transport
	UserAgent       string
	HTTPTimeout     time.Duration
	ArchiveTimeout  time.Duration
	PortalRateLimit float64

	// CAPTCHA settings
	CaptchaMaxAttempts  int
	CaptchaSolvers      []string
	CaptchaPollInterval time.Duration
	TesseractPath       string
	TwoCaptchaKey       string
	AntiCaptchaKey      string

	// Portal endpoints
	DistrictCourtBaseURL string
	HighCourtBaseURL     string
	ConsumerBaseURL      string
	SCIBaseURL           string
	NCLTBaseURL          string

	// Concurrency settings
	MaxConcurrentScrapes int

	// Browser settings (CNR lookups)
	BrowserEnabled bool
	HeadlessMode   bool
	BrowserPath    string

	// API settings
	APIRateLimit  int
	APIRateWindow time.Duration
}

// Load reads configuration from the environment, after merging a .env file
// when one is present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// Not an error if .env doesn't exist
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Host:             v.GetString("HOST"),
		Port:             v.GetString("PORT"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		LogFormat:        v.GetString("LOG_FORMAT"),
		DatabasePath:     v.GetString("DATABASE_PATH"),
		DocumentStore:    strings.ToLower(v.GetString("DOCUMENT_STORE")),
		MongoURI:         v.GetString("MONGO_URI"),
		MongoDatabase:    v.GetString("MONGO_DATABASE"),
		CollectionPrefix: v.GetString("COLLECTION_PREFIX"),

		S3Endpoint:      v.GetString("S3_ENDPOINT"),
		S3AccessKey:     v.GetString("S3_ACCESS_KEY"),
		S3SecretKey:     v.GetString("S3_SECRET_KEY"),
		S3UseSSL:        v.GetBool("S3_USE_SSL"),
		BucketName:      v.GetString("BUCKET_NAME"),
		RegionName:      v.GetString("REGION_NAME"),
		S3PublicBaseURL: v.GetString("S3_PUBLIC_BASE_URL"),

		UserAgent:       v.GetString("USER_AGENT"),
		HTTPTimeout:     v.GetDuration("HTTP_TIMEOUT"),
		ArchiveTimeout:  v.GetDuration("ARCHIVE_TIMEOUT"),
		PortalRateLimit: v.GetFloat64("PORTAL_RATE_LIMIT"),

		CaptchaMaxAttempts:  v.GetInt("CAPTCHA_MAX_ATTEMPTS"),
		CaptchaSolvers:      splitList(v.GetString("CAPTCHA_SOLVERS")),
		CaptchaPollInterval: v.GetDuration("CAPTCHA_POLL_INTERVAL"),
		TesseractPath:       v.GetString("TESSERACT_PATH"),
		TwoCaptchaKey:       v.GetString("TWOCAPTCHA_API_KEY"),
		AntiCaptchaKey:      v.GetString("ANTICAPTCHA_API_KEY"),

		DistrictCourtBaseURL: v.GetString("DISTRICT_COURT_BASE_URL"),
		HighCourtBaseURL:     v.GetString("HIGH_COURT_BASE_URL"),
		ConsumerBaseURL:      v.GetString("CONSUMER_BASE_URL"),
		SCIBaseURL:           v.GetString("SCI_BASE_URL"),
		NCLTBaseURL:          v.GetString("NCLT_BASE_URL"),

		MaxConcurrentScrapes: v.GetInt("MAX_CONCURRENT_SCRAPES"),

		BrowserEnabled: v.GetBool("BROWSER_ENABLED"),
		HeadlessMode:   v.GetBool("HEADLESS_MODE"),
		BrowserPath:    v.GetString("ROD_BROWSER_PATH"),

		APIRateLimit:  v.GetInt("API_RATE_LIMIT"),
		APIRateWindow: v.GetDuration("API_RATE_WINDOW"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DATABASE_PATH", "./data/query_log.db")

	v.SetDefault("DOCUMENT_STORE", "mongo")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "court_data")
	v.SetDefault("COLLECTION_PREFIX", "casedetails")

	v.SetDefault("S3_ENDPOINT", "s3.amazonaws.com")
	v.SetDefault("S3_USE_SSL", true)
	v.SetDefault("REGION_NAME", "ap-south-1")

	v.SetDefault("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36")
	v.SetDefault("HTTP_TIMEOUT", "15s")
	v.SetDefault("ARCHIVE_TIMEOUT", "15s")
	v.SetDefault("PORTAL_RATE_LIMIT", 0)

	v.SetDefault("CAPTCHA_MAX_ATTEMPTS", 20)
	v.SetDefault("CAPTCHA_SOLVERS", "tesseract")
	v.SetDefault("CAPTCHA_POLL_INTERVAL", "3s")
	v.SetDefault("TESSERACT_PATH", "tesseract")

	v.SetDefault("DISTRICT_COURT_BASE_URL", "https://services.ecourts.gov.in/ecourtindia_v6/")
	v.SetDefault("HIGH_COURT_BASE_URL", "https://hcservices.ecourts.gov.in/hcservices/")
	v.SetDefault("CONSUMER_BASE_URL", "https://e-jagriti.gov.in/")
	v.SetDefault("SCI_BASE_URL", "https://www.sci.gov.in/")
	v.SetDefault("NCLT_BASE_URL", "https://efiling.nclt.gov.in/")

	v.SetDefault("MAX_CONCURRENT_SCRAPES", 5)

	v.SetDefault("BROWSER_ENABLED", false)
	v.SetDefault("HEADLESS_MODE", true)

	v.SetDefault("API_RATE_LIMIT", 100)
	v.SetDefault("API_RATE_WINDOW", "60s")
}

func (c *Config) validate() error {
	switch c.DocumentStore {
	case "mongo", "memory":
	default:
		return fmt.Errorf("invalid DOCUMENT_STORE %q: want mongo or memory", c.DocumentStore)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("invalid HTTP_TIMEOUT: must be positive")
	}
	if c.ArchiveTimeout <= 0 {
		return fmt.Errorf("invalid ARCHIVE_TIMEOUT: must be positive")
	}
	if c.CaptchaMaxAttempts <= 0 {
		return fmt.Errorf("invalid CAPTCHA_MAX_ATTEMPTS: must be positive")
	}
	if c.MaxConcurrentScrapes <= 0 {
		return fmt.Errorf("invalid MAX_CONCURRENT_SCRAPES: must be positive")
	}
	if c.APIRateLimit < 0 || c.APIRateWindow <= 0 {
		return fmt.Errorf("invalid API_RATE_LIMIT/API_RATE_WINDOW")
	}
	if c.PortalRateLimit < 0 {
		return fmt.Errorf("invalid PORTAL_RATE_LIMIT: must not be negative")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
