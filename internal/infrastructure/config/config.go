package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Log         LogConfig
	HTTP        HTTPConfig
	Scheduler   SchedulerConfig
	Telemetry   TelemetryConfig
	Marketplace MarketplaceConfig
	Sync        SyncConfig
	Tax         TaxConfig
	Storage     StorageConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings. With Enabled unset the run
// lock is held in process.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
}

// SchedulerConfig holds the periodic sync scheduler configuration
type SchedulerConfig struct {
	Enabled             bool
	OrderInterval       time.Duration
	TransactionInterval time.Duration
	PayoutInterval      time.Duration
	InitialDelay        time.Duration
	JobTimeout          time.Duration
	RetryAttempts       int
	RetryDelay          time.Duration
	MaxRetryDelay       time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	// Database tracing options
	DBTraceEnabled bool // Enable database query tracing (otelgorm)
	DBLogFullSQL   bool // Log full SQL statements (dev only)
}

// MarketplaceConfig holds the eBay REST API client settings
type MarketplaceConfig struct {
	BaseURL string
	// FinancesBaseURL hosts the Finances API, which eBay serves from its own domain
	FinancesBaseURL string
	// Token is a ready OAuth bearer token; its lifecycle is managed elsewhere
	Token            string
	MarketplaceID    string
	Timeout          time.Duration
	PageSize         int
	FetchConcurrency int
	MaxAttempts      int
	RetryDelay       time.Duration
	RetryMultiplier  float64
}

// SyncConfig holds the reconciliation policy
type SyncConfig struct {
	DefaultDays            int
	MaxDays                int
	ContinueOnError        bool
	SkipToday              bool
	HomeCurrency           string
	HomeCountry            string
	EUCountries            []string
	DeductCollectedHomeTax bool
	UseShippingName        bool
	MaxNameDuplicates      int
	ShippingItemCode       string
	ShippingDescription    string
	FeeItemCode            string
	FeeSupplier            string
	FeeExpenseAccount      string
	FeeTaxAccount          string
	FeeVATRate             string
	ClearingAccount        string
	PayoutAccount          string
	LockTTL                time.Duration
}

// TaxProfileConfig holds one territory's income accounts and VAT rate
type TaxProfileConfig struct {
	IncomeAccount         string
	ShippingIncomeAccount string
	TaxAccount            string
	VATRate               string
}

// TaxConfig holds per-territory tax profiles
type TaxConfig struct {
	Home        TaxProfileConfig
	EU          TaxProfileConfig
	RestOfWorld TaxProfileConfig
}

// StorageConfig holds the S3-compatible archive bucket settings. With Enabled
// unset archives are kept in memory.
type StorageConfig struct {
	Enabled      bool
	Endpoint     string
	Region       string
	Bucket       string
	Prefix       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UsePathStyle bool
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with MARKETSYNC_ prefix (e.g., MARKETSYNC_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("MARKETSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans that default to true must be told apart from "unset"
	v.SetDefault("sync.continue_on_error", true)
	v.SetDefault("sync.deduct_collected_home_tax", true)
	v.SetDefault("sync.use_shipping_name", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Scheduler: SchedulerConfig{
			Enabled:             v.GetBool("scheduler.enabled"),
			OrderInterval:       v.GetDuration("scheduler.order_interval"),
			TransactionInterval: v.GetDuration("scheduler.transaction_interval"),
			PayoutInterval:      v.GetDuration("scheduler.payout_interval"),
			InitialDelay:        v.GetDuration("scheduler.initial_delay"),
			JobTimeout:          v.GetDuration("scheduler.job_timeout"),
			RetryAttempts:       v.GetInt("scheduler.retry_attempts"),
			RetryDelay:          v.GetDuration("scheduler.retry_delay"),
			MaxRetryDelay:       v.GetDuration("scheduler.max_retry_delay"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
		},
		Marketplace: MarketplaceConfig{
			BaseURL:          v.GetString("marketplace.base_url"),
			FinancesBaseURL:  v.GetString("marketplace.finances_base_url"),
			Token:            v.GetString("marketplace.token"),
			MarketplaceID:    v.GetString("marketplace.marketplace_id"),
			Timeout:          v.GetDuration("marketplace.timeout"),
			PageSize:         v.GetInt("marketplace.page_size"),
			FetchConcurrency: v.GetInt("marketplace.fetch_concurrency"),
			MaxAttempts:      v.GetInt("marketplace.max_attempts"),
			RetryDelay:       v.GetDuration("marketplace.retry_delay"),
			RetryMultiplier:  v.GetFloat64("marketplace.retry_multiplier"),
		},
		Sync: SyncConfig{
			DefaultDays:            v.GetInt("sync.default_days"),
			MaxDays:                v.GetInt("sync.max_days"),
			ContinueOnError:        v.GetBool("sync.continue_on_error"),
			SkipToday:              v.GetBool("sync.skip_today"),
			HomeCurrency:           v.GetString("sync.home_currency"),
			HomeCountry:            v.GetString("sync.home_country"),
			EUCountries:            v.GetStringSlice("sync.eu_countries"),
			DeductCollectedHomeTax: v.GetBool("sync.deduct_collected_home_tax"),
			UseShippingName:        v.GetBool("sync.use_shipping_name"),
			MaxNameDuplicates:      v.GetInt("sync.max_name_duplicates"),
			ShippingItemCode:       v.GetString("sync.shipping_item_code"),
			ShippingDescription:    v.GetString("sync.shipping_description"),
			FeeItemCode:            v.GetString("sync.fee_item_code"),
			FeeSupplier:            v.GetString("sync.fee_supplier"),
			FeeExpenseAccount:      v.GetString("sync.fee_expense_account"),
			FeeTaxAccount:          v.GetString("sync.fee_tax_account"),
			FeeVATRate:             v.GetString("sync.fee_vat_rate"),
			ClearingAccount:        v.GetString("sync.clearing_account"),
			PayoutAccount:          v.GetString("sync.payout_account"),
			LockTTL:                v.GetDuration("sync.lock_ttl"),
		},
		Tax: TaxConfig{
			Home:        loadTaxProfile(v, "tax.home"),
			EU:          loadTaxProfile(v, "tax.eu"),
			RestOfWorld: loadTaxProfile(v, "tax.rest_of_world"),
		},
		Storage: StorageConfig{
			Enabled:      v.GetBool("storage.enabled"),
			Endpoint:     v.GetString("storage.endpoint"),
			Region:       v.GetString("storage.region"),
			Bucket:       v.GetString("storage.bucket"),
			Prefix:       v.GetString("storage.prefix"),
			AccessKey:    v.GetString("storage.access_key"),
			SecretKey:    v.GetString("storage.secret_key"),
			UseSSL:       v.GetBool("storage.use_ssl"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadTaxProfile(v *viper.Viper, prefix string) TaxProfileConfig {
	return TaxProfileConfig{
		IncomeAccount:         v.GetString(prefix + ".income_account"),
		ShippingIncomeAccount: v.GetString(prefix + ".shipping_income_account"),
		TaxAccount:            v.GetString(prefix + ".tax_account"),
		VATRate:               v.GetString(prefix + ".vat_rate"),
	}
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "marketsync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "marketsync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// A sync pass can take minutes; the trigger endpoints answer when it ends
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 10 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.Scheduler.OrderInterval == 0 {
		cfg.Scheduler.OrderInterval = time.Hour
	}
	if cfg.Scheduler.TransactionInterval == 0 {
		cfg.Scheduler.TransactionInterval = 6 * time.Hour
	}
	if cfg.Scheduler.PayoutInterval == 0 {
		cfg.Scheduler.PayoutInterval = 24 * time.Hour
	}
	if cfg.Scheduler.InitialDelay == 0 {
		cfg.Scheduler.InitialDelay = 30 * time.Second
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 30 * time.Minute
	}
	if cfg.Scheduler.RetryAttempts == 0 {
		cfg.Scheduler.RetryAttempts = 3
	}
	if cfg.Scheduler.RetryDelay == 0 {
		cfg.Scheduler.RetryDelay = 5 * time.Minute
	}
	if cfg.Scheduler.MaxRetryDelay == 0 {
		cfg.Scheduler.MaxRetryDelay = time.Hour
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "marketsync"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Marketplace.BaseURL == "" {
		cfg.Marketplace.BaseURL = "https://api.ebay.com"
	}
	if cfg.Marketplace.FinancesBaseURL == "" {
		cfg.Marketplace.FinancesBaseURL = "https://apiz.ebay.com"
	}
	if cfg.Marketplace.MarketplaceID == "" {
		cfg.Marketplace.MarketplaceID = "EBAY_GB"
	}
	if cfg.Marketplace.Timeout == 0 {
		cfg.Marketplace.Timeout = 30 * time.Second
	}
	if cfg.Marketplace.PageSize == 0 {
		cfg.Marketplace.PageSize = 200
	}
	if cfg.Marketplace.FetchConcurrency == 0 {
		cfg.Marketplace.FetchConcurrency = 4
	}
	if cfg.Marketplace.MaxAttempts == 0 {
		cfg.Marketplace.MaxAttempts = 5
	}
	if cfg.Marketplace.RetryDelay == 0 {
		cfg.Marketplace.RetryDelay = 3 * time.Second
	}
	if cfg.Marketplace.RetryMultiplier == 0 {
		cfg.Marketplace.RetryMultiplier = 1.5
	}
	applySyncDefaults(&cfg.Sync)
	applyTaxDefaults(&cfg.Tax)
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = "ebay-transactions"
	}
}

func applySyncDefaults(s *SyncConfig) {
	if s.DefaultDays == 0 {
		s.DefaultDays = 7
	}
	if s.MaxDays == 0 {
		s.MaxDays = 90
	}
	if s.HomeCurrency == "" {
		s.HomeCurrency = "GBP"
	}
	if s.HomeCountry == "" {
		s.HomeCountry = "United Kingdom"
	}
	if s.MaxNameDuplicates == 0 {
		s.MaxNameDuplicates = 4
	}
	if s.ShippingItemCode == "" {
		s.ShippingItemCode = "SHIPPING"
	}
	if s.ShippingDescription == "" {
		s.ShippingDescription = "Shipping costs (from eBay)"
	}
	if s.FeeItemCode == "" {
		s.FeeItemCode = "EBAY-FEE"
	}
	if s.FeeSupplier == "" {
		s.FeeSupplier = "eBay"
	}
	if s.FeeExpenseAccount == "" {
		s.FeeExpenseAccount = "eBay Managed Fees"
	}
	if s.FeeTaxAccount == "" {
		s.FeeTaxAccount = "VAT"
	}
	if s.FeeVATRate == "" {
		s.FeeVATRate = "0.2"
	}
	if s.ClearingAccount == "" {
		s.ClearingAccount = "eBay Managed " + s.HomeCurrency
	}
	if s.PayoutAccount == "" {
		s.PayoutAccount = "Bank Current Account"
	}
	if s.LockTTL == 0 {
		s.LockTTL = 30 * time.Minute
	}
}

func applyTaxDefaults(t *TaxConfig) {
	defaults := []struct {
		p                        *TaxProfileConfig
		income, shipping, rate string
	}{
		{&t.Home, "Sales", "Shipping (Sales)", "0.2"},
		{&t.EU, "Sales EU", "Shipping EU (Sales)", "0"},
		{&t.RestOfWorld, "Sales Non-EU", "Shipping Non-EU (Sales)", "0"},
	}
	for _, d := range defaults {
		if d.p.IncomeAccount == "" {
			d.p.IncomeAccount = d.income
		}
		if d.p.ShippingIncomeAccount == "" {
			d.p.ShippingIncomeAccount = d.shipping
		}
		if d.p.TaxAccount == "" {
			d.p.TaxAccount = "VAT"
		}
		if d.p.VATRate == "" {
			d.p.VATRate = d.rate
		}
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Sync.MaxDays <= 0 {
		return fmt.Errorf("sync.max_days must be positive")
	}
	if c.Sync.DefaultDays > c.Sync.MaxDays {
		return fmt.Errorf("sync.default_days (%d) cannot exceed sync.max_days (%d)", c.Sync.DefaultDays, c.Sync.MaxDays)
	}
	if len(c.Sync.HomeCurrency) != 3 {
		return fmt.Errorf("sync.home_currency must be an ISO 4217 code, got %q", c.Sync.HomeCurrency)
	}
	if c.Marketplace.FetchConcurrency < 1 {
		return fmt.Errorf("marketplace.fetch_concurrency must be at least 1")
	}
	if c.Marketplace.PageSize < 1 || c.Marketplace.PageSize > 1000 {
		return fmt.Errorf("marketplace.page_size must be between 1 and 1000")
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage is enabled")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Marketplace.Token == "" {
			return fmt.Errorf("marketplace.token is required in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
