package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Server   ServerConfig   `mapstructure:"server"`
}

// SourceConfig describes the harvested site and crawl bounds
type SourceConfig struct {
	EntryURL   string `mapstructure:"entry_url"`
	MaxPages   int    `mapstructure:"max_pages"`
	BatchSize  int    `mapstructure:"batch_size"`
	TopicCount int    `mapstructure:"topic_count"`
}

// FetchConfig holds outbound HTTP settings
type FetchConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	DialTimeout       time.Duration `mapstructure:"dial_timeout"`
	SizeCap           int64         `mapstructure:"size_cap"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	UserAgent         string        `mapstructure:"user_agent"`
}

// ScheduleConfig holds the daily trigger time
type ScheduleConfig struct {
	Hour     int    `mapstructure:"hour"`
	Minute   int    `mapstructure:"minute"`
	Timezone string `mapstructure:"timezone"`
}

// StorageConfig holds dataset storage settings
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// Load reads configuration from an optional config.yaml and environment
// variables, falling back to defaults that match the production site.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetDefault("source.entry_url", "https://www.ddm.org.tw/xmnews?xsmsid=0K297379120077217595")
	viper.SetDefault("source.max_pages", 20)
	viper.SetDefault("source.batch_size", 5)
	viper.SetDefault("source.topic_count", 10)
	viper.SetDefault("fetch.timeout", "20s")
	viper.SetDefault("fetch.dial_timeout", "5s")
	viper.SetDefault("fetch.size_cap", 5*1024*1024)
	viper.SetDefault("fetch.requests_per_second", 4.0)
	viper.SetDefault("fetch.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	viper.SetDefault("schedule.hour", 3)
	viper.SetDefault("schedule.minute", 0)
	viper.SetDefault("schedule.timezone", "America/Los_Angeles")
	viper.SetDefault("storage.data_dir", "./data")
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")

	// HARVESTER_SOURCE_ENTRY_URL -> source.entry_url
	viper.SetEnvPrefix("harvester")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		log.Println("No config file found, using defaults and environment variables")
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
