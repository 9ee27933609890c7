package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "cartwatch", cfg.Logger().ServiceName)
	assert.Equal(t, 6, cfg.Engine().WorkerConcurrency)
	assert.Equal(t, "shared", cfg.Engine().SessionMode)
	assert.Equal(t, 5*time.Minute, cfg.Engine().TaskTimeout)
	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, 10*time.Second, cfg.Resilience().ResolveTimeout)
	assert.Equal(t, 3, cfg.Resilience().DirectAttempts)
	assert.Equal(t, 10000.0, cfg.Price().MaxPlausible)
	assert.Equal(t, "cartwatch.price.alert", cfg.Notify().NATSSubject)
	assert.Equal(t, 15*time.Minute, cfg.Notify().MinInterval)
	assert.Empty(t, cfg.Store().URL)
	assert.NotEmpty(t, cfg.Classifier().Keywords)

	tasks := cfg.Tasks()
	assert.Equal(t, "INR", tasks.PolicyCurrency)
	assert.Equal(t, "ABCD", tasks.ProductSelection.ForbiddenFirstLetters)
	assert.Equal(t, "ACGILK", tasks.LoginValidation.ForbiddenLetters)
	assert.Equal(t, 99.99, tasks.PriceMonitor.Threshold)
	assert.Equal(t, time.Hour, tasks.PriceMonitor.Interval)
	assert.Equal(t, []string{"laptop", "keyboard", "monitor"}, tasks.CartAutomation.Queries)
	assert.Equal(t, WindowConfig{Start: "18:00", End: "19:00"}, tasks.CheckoutFlow.Window)

	require.NoError(t, cfg.Validate(), "defaults must validate")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"worker concurrency", func(c *Config) { c.EngineCfg.WorkerConcurrency = 0 }, "engine.worker_concurrency"},
		{"task timeout", func(c *Config) { c.EngineCfg.TaskTimeout = 0 }, "engine.task_timeout"},
		{"session mode", func(c *Config) { c.EngineCfg.SessionMode = "pooled" }, "engine.session_mode"},
		{"resolve timeout", func(c *Config) { c.ResilienceCfg.ResolveTimeout = 0 }, "resilience.resolve_timeout"},
		{"direct attempts", func(c *Config) { c.ResilienceCfg.DirectAttempts = 0 }, "resilience.direct_attempts"},
		{"retry pause", func(c *Config) { c.ResilienceCfg.RetryPause = -time.Second }, "resilience.retry_pause"},
		{"max plausible", func(c *Config) { c.PriceCfg.MaxPlausible = 0 }, "price.max_plausible"},
		{"smtp recipients", func(c *Config) {
			c.NotifyCfg.Enabled = true
			c.NotifyCfg.From = "alerts@example.com"
		}, "notify.to"},
		{"nats subject", func(c *Config) {
			c.NotifyCfg.NATSURL = "nats://127.0.0.1:4222"
			c.NotifyCfg.NATSSubject = ""
		}, "notify.nats_subject"},
		{"inverted window", func(c *Config) { c.TasksCfg.LoginValidation.Window = WindowConfig{Start: "15:00", End: "12:00"} }, "tasks.login_validation.window"},
		{"malformed window", func(c *Config) { c.TasksCfg.SearchFilters.Window.Start = "3pm" }, "tasks.search_filters.window"},
		{"threshold", func(c *Config) { c.TasksCfg.PriceMonitor.Threshold = 0 }, "tasks.price_monitor.threshold"},
		{"min rating", func(c *Config) { c.TasksCfg.SearchFilters.MinRating = 6 }, "tasks.search_filters.min_rating"},
		{"fx rate", func(c *Config) { c.TasksCfg.FXRates = map[string]float64{"eur": 0} }, "tasks.fx_rates.EUR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}

	t.Run("disabled monitor ignores threshold", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.TasksCfg.PriceMonitor.Enabled = false
		cfg.TasksCfg.PriceMonitor.Threshold = 0
		assert.NoError(t, cfg.Validate())
	})
}

func TestWindowParse(t *testing.T) {
	w, err := WindowConfig{}.Parse()
	require.NoError(t, err)
	assert.Nil(t, w, "no bounds means always")

	w, err = WindowConfig{Start: "15:00", End: "18:00"}.Parse()
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, "[15:00, 18:00)", w.String())
}

func TestRate(t *testing.T) {
	tasks := NewDefaultConfig().Tasks()

	rate, ok := tasks.Rate("USD")
	require.True(t, ok)
	assert.Equal(t, 83.0, rate)

	rate, ok = tasks.Rate("usd")
	require.True(t, ok, "lookups ignore case")
	assert.Equal(t, 83.0, rate)

	rate, ok = tasks.Rate("INR")
	require.True(t, ok)
	assert.Equal(t, 1.0, rate)

	_, ok = tasks.Rate("GBP")
	assert.False(t, ok)
	_, ok = tasks.Rate("")
	assert.False(t, ok)
}

// -- Viper Loading Tests --

func TestNewConfigFromViper(t *testing.T) {
	yaml := []byte(`
engine:
  worker_concurrency: 2
  session_mode: isolated
resilience:
  resolve_timeout: 4s
tasks:
  policy_currency: USD
  fx_rates:
    INR: 0.012
  cart_automation:
    queries: [desk, lamp]
    window:
      start: "08:00"
      end: "09:30"
notify:
  nats_url: nats://127.0.0.1:4222
`)
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewReader(yaml)))

	t.Setenv("CARTWATCH_LOGIN_EMAIL", "shopper@example.com")
	t.Setenv("CARTWATCH_LOGIN_PASSWORD", "s3cret")
	t.Setenv("CARTWATCH_STORE_URL", "sqlite:prices.db")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Engine().WorkerConcurrency)
	assert.Equal(t, "isolated", cfg.Engine().SessionMode)
	assert.Equal(t, 4*time.Second, cfg.Resilience().ResolveTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Resilience().PollInterval, "unset keys keep defaults")
	assert.Equal(t, []string{"desk", "lamp"}, cfg.Tasks().CartAutomation.Queries)
	assert.Equal(t, WindowConfig{Start: "08:00", End: "09:30"}, cfg.Tasks().CartAutomation.Window)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Notify().NATSURL)
	assert.Equal(t, "shopper@example.com", cfg.Tasks().LoginValidation.Email)
	assert.Equal(t, "s3cret", cfg.Tasks().LoginValidation.Password)
	assert.Equal(t, "sqlite:prices.db", cfg.Store().URL)

	rate, ok := cfg.Tasks().Rate("inr")
	require.True(t, ok)
	assert.Equal(t, 0.012, rate)
}

func TestNewConfigFromViperRejectsInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("engine.session_mode", "pooled")

	_, err := NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SetEngineWorkerConcurrency(1)
	cfg.SetEngineSessionMode("isolated")
	cfg.SetEngineTaskTimeout(time.Minute)
	cfg.SetBrowserHeadless(false)
	cfg.SetMetricsListenAddr(":9999")

	assert.Equal(t, 1, cfg.Engine().WorkerConcurrency)
	assert.Equal(t, "isolated", cfg.Engine().SessionMode)
	assert.Equal(t, time.Minute, cfg.Engine().TaskTimeout)
	assert.False(t, cfg.Browser().Headless)
	assert.Equal(t, ":9999", cfg.Metrics().ListenAddr)

	var _ Interface = cfg
}
