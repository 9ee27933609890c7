// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/cartwatch/internal/gate"
)

// Interface defines the contract for accessing application configuration.
// Components depend on this rather than on the concrete struct so tests can
// hand them a tailored config.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Engine() EngineConfig
	Resilience() ResilienceConfig
	Classifier() ClassifierConfig
	Price() PriceConfig
	Gate() GateConfig
	Notify() NotifyConfig
	Store() StoreConfig
	Metrics() MetricsConfig
	Tasks() TasksConfig

	// Engine Setters
	SetEngineWorkerConcurrency(int)
	SetEngineSessionMode(string)
	SetEngineTaskTimeout(time.Duration)

	// Browser Setters
	SetBrowserHeadless(bool)

	// Metrics Setters
	SetMetricsListenAddr(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	BrowserCfg    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	EngineCfg     EngineConfig     `mapstructure:"engine" yaml:"engine"`
	ResilienceCfg ResilienceConfig `mapstructure:"resilience" yaml:"resilience"`
	ClassifierCfg ClassifierConfig `mapstructure:"classifier" yaml:"classifier"`
	PriceCfg      PriceConfig      `mapstructure:"price" yaml:"price"`
	GateCfg       GateConfig       `mapstructure:"gate" yaml:"gate"`
	NotifyCfg     NotifyConfig     `mapstructure:"notify" yaml:"notify"`
	StoreCfg      StoreConfig      `mapstructure:"store" yaml:"store"`
	MetricsCfg    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	TasksCfg      TasksConfig      `mapstructure:"tasks" yaml:"tasks"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig         { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig       { return c.BrowserCfg }
func (c *Config) Engine() EngineConfig         { return c.EngineCfg }
func (c *Config) Resilience() ResilienceConfig { return c.ResilienceCfg }
func (c *Config) Classifier() ClassifierConfig { return c.ClassifierCfg }
func (c *Config) Price() PriceConfig           { return c.PriceCfg }
func (c *Config) Gate() GateConfig             { return c.GateCfg }
func (c *Config) Notify() NotifyConfig         { return c.NotifyCfg }
func (c *Config) Store() StoreConfig           { return c.StoreCfg }
func (c *Config) Metrics() MetricsConfig       { return c.MetricsCfg }
func (c *Config) Tasks() TasksConfig           { return c.TasksCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetEngineWorkerConcurrency(w int)     { c.EngineCfg.WorkerConcurrency = w }
func (c *Config) SetEngineSessionMode(m string)        { c.EngineCfg.SessionMode = m }
func (c *Config) SetEngineTaskTimeout(d time.Duration) { c.EngineCfg.TaskTimeout = d }
func (c *Config) SetBrowserHeadless(b bool)            { c.BrowserCfg.Headless = b }
func (c *Config) SetMetricsListenAddr(addr string)     { c.MetricsCfg.ListenAddr = addr }

// LoggerConfig controls the zap logger and its optional rotating file sink.
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

// ColorConfig maps log levels to terminal color names.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds the Chrome launch options.
type BrowserConfig struct {
	Headless     bool     `mapstructure:"headless" yaml:"headless"`
	DisableGPU   bool     `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	ExecPath     string   `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent    string   `mapstructure:"user_agent" yaml:"user_agent"`
	WindowWidth  int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight int      `mapstructure:"window_height" yaml:"window_height"`
	Args         []string `mapstructure:"args" yaml:"args"`
}

// EngineConfig controls task dispatch.
type EngineConfig struct {
	WorkerConcurrency int           `mapstructure:"worker_concurrency" yaml:"worker_concurrency"`
	TaskTimeout       time.Duration `mapstructure:"task_timeout" yaml:"task_timeout"`
	// SessionMode is "shared" (one page, serialized) or "isolated" (one tab per task).
	SessionMode string `mapstructure:"session_mode" yaml:"session_mode"`
}

// ResilienceConfig tunes the resolver, the action ladder and navigation waits.
type ResilienceConfig struct {
	ResolveTimeout    time.Duration `mapstructure:"resolve_timeout" yaml:"resolve_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	DirectAttempts    int           `mapstructure:"direct_attempts" yaml:"direct_attempts"`
	RetryPause        time.Duration `mapstructure:"retry_pause" yaml:"retry_pause"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	SettleDelay       time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
}

// ClassifierConfig holds the sponsorship vocabularies.
type ClassifierConfig struct {
	LabelSelectors []string `mapstructure:"label_selectors" yaml:"label_selectors"`
	Keywords       []string `mapstructure:"keywords" yaml:"keywords"`
	DataAttributes []string `mapstructure:"data_attributes" yaml:"data_attributes"`
	ClassFragments []string `mapstructure:"class_fragments" yaml:"class_fragments"`
}

// PriceConfig bounds what the extractor's scanning strategies accept.
type PriceConfig struct {
	MaxPlausible float64 `mapstructure:"max_plausible" yaml:"max_plausible"`
}

// GateConfig selects the clock used by time windows.
type GateConfig struct {
	// Location is an IANA zone name, or "Local".
	Location string `mapstructure:"location" yaml:"location"`
}

// NotifyConfig configures price alert delivery. Mail is sent when Enabled;
// alerts are also published to NATS when NATSURL is set.
type NotifyConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	SMTPHost    string        `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort    int           `mapstructure:"smtp_port" yaml:"smtp_port"`
	Username    string        `mapstructure:"username" yaml:"username"`
	Password    string        `mapstructure:"password" yaml:"-"`
	From        string        `mapstructure:"from" yaml:"from"`
	To          []string      `mapstructure:"to" yaml:"to"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MinInterval time.Duration `mapstructure:"min_interval" yaml:"min_interval"`
	NATSURL     string        `mapstructure:"nats_url" yaml:"nats_url"`
	NATSSubject string        `mapstructure:"nats_subject" yaml:"nats_subject"`
}

// StoreConfig points at the price history database. An empty URL keeps
// history in memory for the life of the process.
type StoreConfig struct {
	URL string `mapstructure:"url" yaml:"-"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
	Namespace  string `mapstructure:"namespace" yaml:"namespace"`
}

// WindowConfig is a daily run window in "15:04" notation. Both empty means
// the task may run at any time.
type WindowConfig struct {
	Start string `mapstructure:"start" yaml:"start"`
	End   string `mapstructure:"end" yaml:"end"`
}

// Parse converts the configured bounds into a gate.Window.
func (w WindowConfig) Parse() (*gate.Window, error) {
	return gate.ParseWindow(w.Start, w.End)
}

// TasksConfig holds per-task business policy.
type TasksConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// FXRates converts a detected currency into PolicyCurrency units.
	FXRates          map[string]float64     `mapstructure:"fx_rates" yaml:"fx_rates"`
	PolicyCurrency   string                 `mapstructure:"policy_currency" yaml:"policy_currency"`
	ProductSelection ProductSelectionConfig `mapstructure:"product_selection" yaml:"product_selection"`
	CartAutomation   CartAutomationConfig   `mapstructure:"cart_automation" yaml:"cart_automation"`
	LoginValidation  LoginValidationConfig  `mapstructure:"login_validation" yaml:"login_validation"`
	PriceMonitor     PriceMonitorConfig     `mapstructure:"price_monitor" yaml:"price_monitor"`
	CheckoutFlow     CheckoutFlowConfig     `mapstructure:"checkout_flow" yaml:"checkout_flow"`
	SearchFilters    SearchFiltersConfig    `mapstructure:"search_filters" yaml:"search_filters"`
}

type ProductSelectionConfig struct {
	Enabled               bool         `mapstructure:"enabled" yaml:"enabled"`
	Window                WindowConfig `mapstructure:"window" yaml:"window"`
	Query                 string       `mapstructure:"query" yaml:"query"`
	ForbiddenFirstLetters string       `mapstructure:"forbidden_first_letters" yaml:"forbidden_first_letters"`
	MaxCandidates         int          `mapstructure:"max_candidates" yaml:"max_candidates"`
}

type CartAutomationConfig struct {
	Enabled  bool         `mapstructure:"enabled" yaml:"enabled"`
	Window   WindowConfig `mapstructure:"window" yaml:"window"`
	Username string       `mapstructure:"username" yaml:"username"`
	Queries  []string     `mapstructure:"queries" yaml:"queries"`
	MinTotal float64      `mapstructure:"min_total" yaml:"min_total"`
}

type LoginValidationConfig struct {
	Enabled          bool         `mapstructure:"enabled" yaml:"enabled"`
	Window           WindowConfig `mapstructure:"window" yaml:"window"`
	Email            string       `mapstructure:"email" yaml:"email"`
	Password         string       `mapstructure:"password" yaml:"-"`
	ForbiddenLetters string       `mapstructure:"forbidden_letters" yaml:"forbidden_letters"`
}

type PriceMonitorConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	Window    WindowConfig  `mapstructure:"window" yaml:"window"`
	URL       string        `mapstructure:"url" yaml:"url"`
	Threshold float64       `mapstructure:"threshold" yaml:"threshold"`
	Interval  time.Duration `mapstructure:"interval" yaml:"interval"`
}

type CheckoutFlowConfig struct {
	Enabled           bool         `mapstructure:"enabled" yaml:"enabled"`
	Window            WindowConfig `mapstructure:"window" yaml:"window"`
	Query             string       `mapstructure:"query" yaml:"query"`
	MinTotal          float64      `mapstructure:"min_total" yaml:"min_total"`
	ProceedToCheckout bool         `mapstructure:"proceed_to_checkout" yaml:"proceed_to_checkout"`
}

type SearchFiltersConfig struct {
	Enabled        bool         `mapstructure:"enabled" yaml:"enabled"`
	Window         WindowConfig `mapstructure:"window" yaml:"window"`
	Query          string       `mapstructure:"query" yaml:"query"`
	MinPrice       float64      `mapstructure:"min_price" yaml:"min_price"`
	MinRating      int          `mapstructure:"min_rating" yaml:"min_rating"`
	BrandPrefix    string       `mapstructure:"brand_prefix" yaml:"brand_prefix"`
	InspectResults int          `mapstructure:"inspect_results" yaml:"inspect_results"`
}

// NewDefaultConfig creates a configuration populated only with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults registers every default value on the given viper instance.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "cartwatch")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_gpu", true)
	v.SetDefault("browser.window_width", 1366)
	v.SetDefault("browser.window_height", 900)
	v.SetDefault("browser.args", []string{})

	// -- Engine --
	v.SetDefault("engine.worker_concurrency", 6)
	v.SetDefault("engine.task_timeout", "5m")
	v.SetDefault("engine.session_mode", "shared")

	// -- Resilience --
	v.SetDefault("resilience.resolve_timeout", "10s")
	v.SetDefault("resilience.poll_interval", "250ms")
	v.SetDefault("resilience.direct_attempts", 3)
	v.SetDefault("resilience.retry_pause", "1s")
	v.SetDefault("resilience.navigation_timeout", "30s")
	v.SetDefault("resilience.settle_delay", "2s")

	// -- Classifier --
	v.SetDefault("classifier.label_selectors", DefaultLabelSelectors)
	v.SetDefault("classifier.keywords", DefaultKeywords)
	v.SetDefault("classifier.data_attributes", DefaultDataAttributes)
	v.SetDefault("classifier.class_fragments", DefaultClassFragments)

	// -- Price --
	v.SetDefault("price.max_plausible", 10000.0)

	// -- Gate --
	v.SetDefault("gate.location", "Local")

	// -- Notify --
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.smtp_host", "smtp.gmail.com")
	v.SetDefault("notify.smtp_port", 587)
	v.SetDefault("notify.timeout", "30s")
	v.SetDefault("notify.min_interval", "15m")
	v.SetDefault("notify.nats_subject", "cartwatch.price.alert")

	// -- Metrics --
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", "127.0.0.1:9464")
	v.SetDefault("metrics.namespace", "cartwatch")

	// -- Tasks --
	v.SetDefault("tasks.base_url", "https://www.amazon.com")
	v.SetDefault("tasks.fx_rates", map[string]float64{"USD": 83.0, "INR": 1.0})
	v.SetDefault("tasks.policy_currency", "INR")

	v.SetDefault("tasks.product_selection.enabled", true)
	v.SetDefault("tasks.product_selection.window.start", "15:00")
	v.SetDefault("tasks.product_selection.window.end", "18:00")
	v.SetDefault("tasks.product_selection.query", "furniture")
	v.SetDefault("tasks.product_selection.forbidden_first_letters", "ABCD")
	v.SetDefault("tasks.product_selection.max_candidates", 20)

	v.SetDefault("tasks.cart_automation.enabled", true)
	v.SetDefault("tasks.cart_automation.window.start", "18:00")
	v.SetDefault("tasks.cart_automation.window.end", "19:00")
	v.SetDefault("tasks.cart_automation.username", "TestUser12")
	v.SetDefault("tasks.cart_automation.queries", []string{"laptop", "keyboard", "monitor"})
	v.SetDefault("tasks.cart_automation.min_total", 2000.0)

	v.SetDefault("tasks.login_validation.enabled", true)
	v.SetDefault("tasks.login_validation.window.start", "12:00")
	v.SetDefault("tasks.login_validation.window.end", "15:00")
	v.SetDefault("tasks.login_validation.forbidden_letters", "ACGILK")

	v.SetDefault("tasks.price_monitor.enabled", true)
	v.SetDefault("tasks.price_monitor.url", "https://www.amazon.com/dp/B08N5WRWNW")
	v.SetDefault("tasks.price_monitor.threshold", 99.99)
	v.SetDefault("tasks.price_monitor.interval", "1h")

	v.SetDefault("tasks.checkout_flow.enabled", true)
	v.SetDefault("tasks.checkout_flow.window.start", "18:00")
	v.SetDefault("tasks.checkout_flow.window.end", "19:00")
	v.SetDefault("tasks.checkout_flow.query", "laptop")
	v.SetDefault("tasks.checkout_flow.min_total", 500.0)
	v.SetDefault("tasks.checkout_flow.proceed_to_checkout", false)

	v.SetDefault("tasks.search_filters.enabled", true)
	v.SetDefault("tasks.search_filters.window.start", "15:00")
	v.SetDefault("tasks.search_filters.window.end", "18:00")
	v.SetDefault("tasks.search_filters.query", "C laptop")
	v.SetDefault("tasks.search_filters.min_price", 2000.0)
	v.SetDefault("tasks.search_filters.min_rating", 4)
	v.SetDefault("tasks.search_filters.brand_prefix", "C")
	v.SetDefault("tasks.search_filters.inspect_results", 5)
}

// NewConfigFromViper unmarshals and validates configuration, binding secrets
// to their environment variables first.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	v.BindEnv("notify.password", "CARTWATCH_NOTIFY_PASSWORD")
	v.BindEnv("store.url", "CARTWATCH_STORE_URL")
	v.BindEnv("tasks.login_validation.email", "CARTWATCH_LOGIN_EMAIL")
	v.BindEnv("tasks.login_validation.password", "CARTWATCH_LOGIN_PASSWORD")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Manually load the password if Unmarshal didn't pick it up.
	if cfg.TasksCfg.LoginValidation.Password == "" {
		cfg.TasksCfg.LoginValidation.Password = os.Getenv("CARTWATCH_LOGIN_PASSWORD")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for values the runtime cannot work with.
func (c *Config) Validate() error {
	if c.EngineCfg.WorkerConcurrency <= 0 {
		return fmt.Errorf("engine.worker_concurrency must be a positive integer")
	}
	if c.EngineCfg.TaskTimeout <= 0 {
		return fmt.Errorf("engine.task_timeout must be a positive duration")
	}
	switch c.EngineCfg.SessionMode {
	case "shared", "isolated":
	default:
		return fmt.Errorf("engine.session_mode must be 'shared' or 'isolated', got %q", c.EngineCfg.SessionMode)
	}
	if err := c.ResilienceCfg.Validate(); err != nil {
		return fmt.Errorf("resilience configuration invalid: %w", err)
	}
	if c.PriceCfg.MaxPlausible <= 0 {
		return fmt.Errorf("price.max_plausible must be greater than 0")
	}
	if c.NotifyCfg.Enabled {
		if c.NotifyCfg.SMTPHost == "" || c.NotifyCfg.From == "" || len(c.NotifyCfg.To) == 0 {
			return fmt.Errorf("notify.smtp_host, notify.from and notify.to are required when notify is enabled")
		}
	}
	if c.NotifyCfg.NATSURL != "" && c.NotifyCfg.NATSSubject == "" {
		return fmt.Errorf("notify.nats_subject is required when notify.nats_url is set")
	}
	if err := c.TasksCfg.Validate(); err != nil {
		return fmt.Errorf("tasks configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the resilience tunables.
func (r ResilienceConfig) Validate() error {
	if r.ResolveTimeout <= 0 {
		return fmt.Errorf("resilience.resolve_timeout must be a positive duration")
	}
	if r.PollInterval <= 0 {
		return fmt.Errorf("resilience.poll_interval must be a positive duration")
	}
	if r.DirectAttempts < 1 {
		return fmt.Errorf("resilience.direct_attempts must be at least 1")
	}
	if r.RetryPause < 0 {
		return fmt.Errorf("resilience.retry_pause must not be negative")
	}
	return nil
}

// Validate checks every task's window and policy values.
func (t TasksConfig) Validate() error {
	windows := map[string]WindowConfig{
		"product_selection": t.ProductSelection.Window,
		"cart_automation":   t.CartAutomation.Window,
		"login_validation":  t.LoginValidation.Window,
		"price_monitor":     t.PriceMonitor.Window,
		"checkout_flow":     t.CheckoutFlow.Window,
		"search_filters":    t.SearchFilters.Window,
	}
	for name, w := range windows {
		if _, err := w.Parse(); err != nil {
			return fmt.Errorf("tasks.%s.window: %w", name, err)
		}
	}
	if t.PriceMonitor.Enabled && t.PriceMonitor.Threshold <= 0 {
		return fmt.Errorf("tasks.price_monitor.threshold must be greater than 0")
	}
	if t.SearchFilters.MinRating < 0 || t.SearchFilters.MinRating > 5 {
		return fmt.Errorf("tasks.search_filters.min_rating must be between 0 and 5")
	}
	for code, rate := range t.FXRates {
		if rate <= 0 {
			return fmt.Errorf("tasks.fx_rates.%s must be greater than 0", strings.ToUpper(code))
		}
	}
	return nil
}

// Rate returns the conversion factor from the given currency into the policy
// currency. Viper lowercases map keys, so lookups ignore case.
func (t TasksConfig) Rate(currency string) (float64, bool) {
	if currency == "" {
		return 0, false
	}
	if strings.EqualFold(currency, t.PolicyCurrency) {
		return 1, true
	}
	for code, rate := range t.FXRates {
		if strings.EqualFold(code, currency) {
			return rate, true
		}
	}
	return 0, false
}
