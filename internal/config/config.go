package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	PostgresURL string `mapstructure:"POSTGRES_URL"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"`
	ServerPort  string `mapstructure:"SERVER_PORT"`

	SourceBaseURL      string `mapstructure:"SOURCE_BASE_URL"`
	SourceStorePath    string `mapstructure:"SOURCE_STORE_PATH"`
	SelectorItemLinks  string `mapstructure:"SELECTOR_ITEM_LINKS"`
	SelectorPagination string `mapstructure:"SELECTOR_PAGINATION"`

	RetryCount        int  `mapstructure:"RETRY_COUNT"`
	RetryDelaySeconds int  `mapstructure:"RETRY_DELAY_SECONDS"`
	BatchSize         int  `mapstructure:"BATCH_SIZE"`
	SessionTTLMinutes int  `mapstructure:"SESSION_TTL_MINUTES"`
	FetchTimeout      int  `mapstructure:"FETCH_TIMEOUT_SECONDS"`
	DownloadImages    bool `mapstructure:"DOWNLOAD_IMAGES"`
}

// StoreURL is the full URL of the dealer's listing page.
func (c *Config) StoreURL() string {
	return c.SourceBaseURL + c.SourceStorePath
}

// RetryDelay returns the inter-attempt delay as a duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// SessionTTL returns how long cached session state survives between batches.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// Load reads configuration from file or environment variables.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// Attempt to read the .env file, but don't fail if it's not present.
	// This allows configuration purely through environment variables in production.
	_ = viper.ReadInConfig()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SOURCE_BASE_URL", "https://www.bytbil.com")
	viper.SetDefault("SOURCE_STORE_PATH", "/handlare/ekenbil-ab-9951")
	viper.SetDefault("SELECTOR_ITEM_LINKS", "ul.result-list li .uk-width-1-1 .car-list-header a")
	viper.SetDefault("SELECTOR_PAGINATION", "div.pagination-container a.pagination-page")
	viper.SetDefault("RETRY_COUNT", 2)
	viper.SetDefault("RETRY_DELAY_SECONDS", 1)
	viper.SetDefault("BATCH_SIZE", 5)
	viper.SetDefault("SESSION_TTL_MINUTES", 30)
	viper.SetDefault("FETCH_TIMEOUT_SECONDS", 30)
	viper.SetDefault("DOWNLOAD_IMAGES", false)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
