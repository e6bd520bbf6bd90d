// File: internal/config/config.go
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Browser() BrowserConfig
	Timeouts() TimeoutConfig
	Selectors() SelectorsConfig
	Server() ServerConfig
	Checkout() CheckoutConfig
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	BrowserCfg   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	TimeoutsCfg  TimeoutConfig   `mapstructure:"timeouts" yaml:"timeouts"`
	SelectorsCfg SelectorsConfig `mapstructure:"selectors" yaml:"selectors"`
	ServerCfg    ServerConfig    `mapstructure:"server" yaml:"server"`
	CheckoutCfg  CheckoutConfig  `mapstructure:"checkout" yaml:"checkout"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig   { return c.DatabaseCfg }
func (c *Config) Browser() BrowserConfig     { return c.BrowserCfg }
func (c *Config) Timeouts() TimeoutConfig    { return c.TimeoutsCfg }
func (c *Config) Selectors() SelectorsConfig { return c.SelectorsCfg }
func (c *Config) Server() ServerConfig       { return c.ServerCfg }
func (c *Config) Checkout() CheckoutConfig   { return c.CheckoutCfg }

// LoggerConfig defines the configuration for the zap logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the Postgres connection settings for the persistence gateway.
type DatabaseConfig struct {
	URL            string `mapstructure:"url" yaml:"url"`
	MaxConns       int32  `mapstructure:"max_conns" yaml:"max_conns"`
	MigrateOnStart bool   `mapstructure:"migrate_on_start" yaml:"migrate_on_start"`
}

// BrowserConfig controls the shared headless browser process.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	// Concurrency caps how many browsing sessions may be open at once.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
	// SessionsPerSecond paces session creation against the shared process.
	SessionsPerSecond float64  `mapstructure:"sessions_per_second" yaml:"sessions_per_second"`
	LaunchAttempts    uint     `mapstructure:"launch_attempts" yaml:"launch_attempts"`
	UserAgent         string   `mapstructure:"user_agent" yaml:"user_agent"`
	Args              []string `mapstructure:"args" yaml:"args"`
	Viewport          Viewport `mapstructure:"viewport" yaml:"viewport"`
}

// Viewport is the window size applied to every new tab.
type Viewport struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// TimeoutConfig bounds every DOM interaction. No wait in the workflow is unbounded.
type TimeoutConfig struct {
	Navigation    time.Duration `mapstructure:"navigation" yaml:"navigation"`
	Action        time.Duration `mapstructure:"action" yaml:"action"`
	Modal         time.Duration `mapstructure:"modal" yaml:"modal"`
	// AgeGate is how long to wait for an age verification prompt, which renders late on some storefronts.
	AgeGate       time.Duration `mapstructure:"age_gate" yaml:"age_gate"`
	BlockingModal time.Duration `mapstructure:"blocking_modal" yaml:"blocking_modal"`
	StockCheck    time.Duration `mapstructure:"stock_check" yaml:"stock_check"`
	CartContainer time.Duration `mapstructure:"cart_container" yaml:"cart_container"`
	SuccessWait   time.Duration `mapstructure:"success_wait" yaml:"success_wait"`
	Captcha       time.Duration `mapstructure:"captcha" yaml:"captcha"`
	// Settle is the pause some storefronts need before a control reflects its real state.
	Settle       time.Duration `mapstructure:"settle" yaml:"settle"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// SelectorsConfig points at the directory of per-storefront selector files.
type SelectorsConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// CheckoutConfig holds checkout-time resources.
type CheckoutConfig struct {
	// UploadDir contains the identity documents some storefronts demand before revealing payment options.
	UploadDir string `mapstructure:"upload_dir" yaml:"upload_dir"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "cartwright")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Database --
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.migrate_on_start", false)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.concurrency", 4)
	v.SetDefault("browser.sessions_per_second", 2.0)
	v.SetDefault("browser.launch_attempts", 3)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.viewport.width", 1920)
	v.SetDefault("browser.viewport.height", 1080)

	// -- Timeouts --
	v.SetDefault("timeouts.navigation", "90s")
	v.SetDefault("timeouts.action", "30s")
	v.SetDefault("timeouts.modal", "1s")
	v.SetDefault("timeouts.age_gate", "3s")
	v.SetDefault("timeouts.blocking_modal", "2s")
	v.SetDefault("timeouts.stock_check", "2s")
	v.SetDefault("timeouts.cart_container", "5s")
	v.SetDefault("timeouts.success_wait", "50s")
	v.SetDefault("timeouts.captcha", "2s")
	v.SetDefault("timeouts.settle", "2s")
	v.SetDefault("timeouts.poll_interval", "100ms")

	// -- Selectors --
	v.SetDefault("selectors.path", "./selectors")

	// -- Server --
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	// Browser workflows routinely run for a minute or more.
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.shutdown_timeout", "30s")

	// -- Checkout --
	v.SetDefault("checkout.upload_dir", "./static_file")
}

// NewConfigFromViper unmarshals the viper state into a validated Config.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Older deployments export these unprefixed names.
	_ = v.BindEnv("database.url", "CARTWRIGHT_DATABASE_URL", "POSTGRES_CONN")
	_ = v.BindEnv("browser.headless", "CARTWRIGHT_BROWSER_HEADLESS", "HEADLESS")
	_ = v.BindEnv("selectors.path", "CARTWRIGHT_SELECTORS_PATH", "SELECTORS_PATH")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.BrowserCfg.Concurrency <= 0 {
		return fmt.Errorf("browser.concurrency must be a positive integer")
	}
	if c.BrowserCfg.SessionsPerSecond <= 0 {
		return fmt.Errorf("browser.sessions_per_second must be positive")
	}
	if strings.TrimSpace(c.SelectorsCfg.Path) == "" {
		return fmt.Errorf("selectors.path is a required configuration field")
	}
	if err := c.TimeoutsCfg.Validate(); err != nil {
		return fmt.Errorf("timeouts configuration invalid: %w", err)
	}
	if _, _, err := net.SplitHostPort(c.ServerCfg.Addr); err != nil {
		return fmt.Errorf("server.addr %q is not a valid listen address: %w", c.ServerCfg.Addr, err)
	}
	return nil
}

// Validate checks that every interaction bound is positive.
func (t TimeoutConfig) Validate() error {
	bounds := []struct {
		name string
		d    time.Duration
	}{
		{"navigation", t.Navigation},
		{"action", t.Action},
		{"modal", t.Modal},
		{"age_gate", t.AgeGate},
		{"blocking_modal", t.BlockingModal},
		{"stock_check", t.StockCheck},
		{"cart_container", t.CartContainer},
		{"success_wait", t.SuccessWait},
		{"captcha", t.Captcha},
		{"poll_interval", t.PollInterval},
	}
	for _, b := range bounds {
		if b.d <= 0 {
			return fmt.Errorf("%s must be a positive duration", b.name)
		}
	}
	if t.Settle < 0 {
		return fmt.Errorf("settle must not be negative")
	}
	return nil
}
