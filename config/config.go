package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration
type Config struct {
	Log          LogConfig
	HTTP         HTTPConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	AlphaVantage AlphaVantageConfig
	Alpaca       AlpacaConfig
	Yahoo        YahooConfig
	Loader       LoaderConfig
	Forecast     ForecastConfig
	Report       ReportConfig
	Analysis     AnalysisConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `validate:"omitempty,oneof=trace debug info warn error"`
	Format string `validate:"oneof=json console"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Addr               string `validate:"required"`
	SecretKey          string `validate:"required,min=8"`
	CORSAllowedOrigins string
	RequestTimeout     time.Duration `validate:"gt=0"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds the shared cache tier configuration
type RedisConfig struct {
	URL      string
	CacheTTL time.Duration `validate:"gt=0"`
}

// AlphaVantageConfig holds Alpha Vantage API configuration
type AlphaVantageConfig struct {
	APIKey            string
	RequestsPerMinute int `validate:"gt=0"`
}

// AlpacaConfig holds Alpaca API configuration
type AlpacaConfig struct {
	APIKey    string
	APISecret string
}

// YahooConfig holds the primary source configuration
type YahooConfig struct {
	BaseURL string `validate:"required,url"`
}

// LoaderConfig holds price history loader configuration
type LoaderConfig struct {
	CacheDir          string `validate:"required"`
	SyntheticFallback bool
	SyntheticDays     int `validate:"gte=60"`
	DefaultStart      string
	MaxRetries        int           `validate:"gte=0,lte=10"`
	RetryBackoff      time.Duration `validate:"gt=0"`
	FetchTimeout      time.Duration `validate:"gt=0"`
}

// ForecastConfig holds forecast adapter configuration
type ForecastConfig struct {
	Backend    string `validate:"oneof=statistical learned"`
	ServiceURL string `validate:"omitempty,url"`
	Model      string `validate:"oneof=prophet lstm"`
	Lookback   int    `validate:"gte=2"`
	MaxHorizon int    `validate:"gte=1,lte=365"`
}

// ReportConfig holds report rendering configuration
type ReportConfig struct {
	WkhtmltopdfPath string
}

// AnalysisConfig holds request orchestration limits
type AnalysisConfig struct {
	ConcurrencyLimit int `validate:"gt=0"`
}

var validate = validator.New()

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Log: LogConfig{
			Level:  strings.ToLower(getEnvString("LOG_LEVEL", "info")),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		HTTP: HTTPConfig{
			Addr:               getEnvString("HTTP_ADDR", ":5000"),
			SecretKey:          getEnvString("SECRET_KEY", "development-secret-key"),
			CORSAllowedOrigins: getEnvString("CORS_ALLOWED_ORIGINS", "*"),
			RequestTimeout:     time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 120)) * time.Second,
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			URL:      os.Getenv("REDIS_URL"),
			CacheTTL: time.Duration(getEnvInt("CACHE_TTL_SECONDS", 3600)) * time.Second,
		},
		AlphaVantage: AlphaVantageConfig{
			APIKey:            os.Getenv("ALPHA_VANTAGE_API_KEY"),
			RequestsPerMinute: getEnvInt("ALPHA_VANTAGE_RPM", 5),
		},
		Alpaca: AlpacaConfig{
			APIKey:    os.Getenv("ALPACA_API_KEY"),
			APISecret: os.Getenv("ALPACA_API_SECRET"),
		},
		Yahoo: YahooConfig{
			BaseURL: getEnvString("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
		},
		Loader: LoaderConfig{
			CacheDir:          getEnvString("DATA_CACHE_DIR", "data_cache"),
			SyntheticFallback: getEnvBool("SYNTHETIC_FALLBACK", true),
			SyntheticDays:     getEnvInt("SYNTHETIC_DAYS", 730),
			DefaultStart:      getEnvString("LOADER_DEFAULT_START", "2020-01-01"),
			MaxRetries:        getEnvIntAllowZero("LOADER_MAX_RETRIES", 3),
			RetryBackoff:      time.Duration(getEnvInt("LOADER_RETRY_BACKOFF_MS", 2000)) * time.Millisecond,
			FetchTimeout:      time.Duration(getEnvInt("LOADER_FETCH_TIMEOUT_SECONDS", 5)) * time.Second,
		},
		Forecast: ForecastConfig{
			Backend:    getEnvString("FORECAST_BACKEND", "statistical"),
			ServiceURL: os.Getenv("FORECAST_SERVICE_URL"),
			Model:      getEnvString("FORECAST_MODEL", "prophet"),
			Lookback:   getEnvInt("FORECAST_LOOKBACK", 120),
			MaxHorizon: getEnvInt("FORECAST_MAX_HORIZON", 365),
		},
		Report: ReportConfig{
			WkhtmltopdfPath: os.Getenv("WKHTMLTOPDF_PATH"),
		},
		Analysis: AnalysisConfig{
			ConcurrencyLimit: getEnvInt("ANALYSIS_CONCURRENCY_LIMIT", 4),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Forecast.Backend == "learned" && c.Forecast.ServiceURL == "" {
		return fmt.Errorf("FORECAST_SERVICE_URL is required when FORECAST_BACKEND=learned")
	}
	if c.Loader.DefaultStart != "" {
		if _, err := time.Parse(time.DateOnly, c.Loader.DefaultStart); err != nil {
			return fmt.Errorf("LOADER_DEFAULT_START must be YYYY-MM-DD, got %q", c.Loader.DefaultStart)
		}
	}
	if worst := c.WorstCaseLoad(); worst > c.HTTP.RequestTimeout {
		return fmt.Errorf("REQUEST_TIMEOUT_SECONDS (%s) is shorter than the worst-case history load (%s); lower LOADER_MAX_RETRIES or LOADER_FETCH_TIMEOUT_SECONDS",
			c.HTTP.RequestTimeout, worst)
	}

	return nil
}

// RetryMaxBackoff caps the doubling backoff between source retries
func (c *Config) RetryMaxBackoff() time.Duration {
	return 4 * c.Loader.RetryBackoff
}

// WorstCaseLoad is the longest the loader can spend on upstreams when every
// attempt of every configured source times out
func (c *Config) WorstCaseLoad() time.Duration {
	retries := c.Loader.MaxRetries
	var backoff time.Duration
	step := c.Loader.RetryBackoff
	for i := 0; i < retries; i++ {
		backoff += min(step, c.RetryMaxBackoff())
		step *= 2
	}
	perSource := time.Duration(retries+1)*c.Loader.FetchTimeout + backoff

	// Yahoo always runs
	total := perSource
	if c.HasAlphaVantage() {
		total += perSource
	}
	if c.HasAlpaca() {
		// the Alpaca client retries with a fixed delay and at least once
		alpacaRetries := max(retries, 1)
		total += time.Duration(alpacaRetries+1)*c.Loader.FetchTimeout + time.Duration(alpacaRetries)*c.Loader.RetryBackoff
	}
	return total
}

// DefaultStart returns the loader start date, zero when unset
func (c *Config) DefaultStart() time.Time {
	t, err := time.Parse(time.DateOnly, c.Loader.DefaultStart)
	if err != nil {
		return time.Time{}
	}
	return t
}

// HasDatabase returns true if database configuration is available
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasRedis returns true if a shared cache is configured
func (c *Config) HasRedis() bool {
	return c.Redis.URL != ""
}

// HasAlpaca returns true if Alpaca configuration is available
func (c *Config) HasAlpaca() bool {
	return c.Alpaca.APIKey != "" && c.Alpaca.APISecret != ""
}

// HasAlphaVantage returns true if Alpha Vantage configuration is available
func (c *Config) HasAlphaVantage() bool {
	return c.AlphaVantage.APIKey != ""
}

// HasForecastService returns true if a learned-model service is reachable
func (c *Config) HasForecastService() bool {
	return c.Forecast.ServiceURL != ""
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvIntAllowZero(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// NewTestConfig creates a Config with default values for testing
func NewTestConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		HTTP: HTTPConfig{
			Addr:               ":0",
			SecretKey:          "test-secret-key",
			CORSAllowedOrigins: "*",
			RequestTimeout:     30 * time.Second,
		},
		Redis: RedisConfig{
			CacheTTL: time.Hour,
		},
		AlphaVantage: AlphaVantageConfig{
			RequestsPerMinute: 5,
		},
		Yahoo: YahooConfig{
			BaseURL: "https://query1.finance.yahoo.com",
		},
		Loader: LoaderConfig{
			CacheDir:          os.TempDir(),
			SyntheticFallback: true,
			SyntheticDays:     260,
			DefaultStart:      "2020-01-01",
			MaxRetries:        0,
			RetryBackoff:      time.Millisecond,
			FetchTimeout:      time.Second,
		},
		Forecast: ForecastConfig{
			Backend:    "statistical",
			Model:      "prophet",
			Lookback:   120,
			MaxHorizon: 365,
		},
		Analysis: AnalysisConfig{
			ConcurrencyLimit: 3,
		},
	}
}
