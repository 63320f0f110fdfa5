package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	//Application config
	LogLevel string `mapstructure:"LogLevel"`

	//Kafka configs
	KafkaBootstrapServers string `mapstructure:"KAFKA_BOOTSTRAP_SERVERS"`
	KafkaConsumerGroupId  string `mapstructure:"KAFKA_CONSUMER_GROUP_ID"`
	KafkaAutoCommit       bool   `mapstructure:"KAFKA_AUTO_COMMIT"`
	UploadTopic           string `mapstructure:"UPLOAD_TOPIC"`
	ReportsTopic          string `mapstructure:"REPORTS_TOPIC"`
	KafkaUsername         string
	KafkaPassword         string
	KafkaSASLMechanism    string
	KafkaSecurityProtocol string
	KafkaCA               string

	// Database config
	DBName     string `mapstructure:"ADVISOR_DB_NAME"`
	DBUser     string `mapstructure:"ADVISOR_DB_USER"`
	DBPassword string `mapstructure:"ADVISOR_DB_PASSWORD"`
	DBHost     string `mapstructure:"ADVISOR_DB_HOST"`
	DBPort     string `mapstructure:"ADVISOR_DB_PORT"`
	DBssl      string `mapstructure:"ADVISOR_DB_SSL"`

	// Vendor advisory API config
	VendorAPIUrl      string `mapstructure:"VENDOR_API_URL"`
	VendorAPIToken    string `mapstructure:"VENDOR_API_TOKEN"`
	VendorAPIPageSize int    `mapstructure:"VENDOR_API_PAGE_SIZE"`

	// Ingestion config
	IngestBatchSize int `mapstructure:"INGEST_BATCH_SIZE"`

	// Aggregation cache config
	CacheTTLSeconds int `mapstructure:"CACHE_TTL_SECONDS"`

	// Default report window, in trailing days
	ReportWindowDays int `mapstructure:"REPORT_WINDOW_DAYS"`

	// How long finished render jobs and their artifacts are kept, in days
	DataRetentionDays int `mapstructure:"DATA_RETENTION_DAYS"`

	// Render pipeline config
	RenderWorkers            int    `mapstructure:"RENDER_WORKERS"`
	RenderMaxAttempts        int    `mapstructure:"RENDER_MAX_ATTEMPTS"`
	RenderSoftTimeoutSeconds int    `mapstructure:"RENDER_SOFT_TIMEOUT_SECONDS"`
	RenderHardMarginSeconds  int    `mapstructure:"RENDER_HARD_MARGIN_SECONDS"`
	RenderRetryBaseSeconds   int    `mapstructure:"RENDER_RETRY_BASE_SECONDS"`
	RenderRetryCapSeconds    int    `mapstructure:"RENDER_RETRY_CAP_SECONDS"`
	BrowserPoolSize          int    `mapstructure:"BROWSER_POOL_SIZE"`
	BrowserBinPath           string `mapstructure:"BROWSER_BIN_PATH"`
	BrowserHeadless          bool   `mapstructure:"BROWSER_HEADLESS"`
	ViewportWidth            int    `mapstructure:"VIEWPORT_WIDTH"`
	ViewportHeight           int    `mapstructure:"VIEWPORT_HEIGHT"`

	// Render wait phase config
	WaitNetworkIdleSeconds  int `mapstructure:"WAIT_NETWORK_IDLE_SECONDS"`
	WaitDocLoadSeconds      int `mapstructure:"WAIT_DOC_LOAD_SECONDS"`
	WaitSettleMillis        int `mapstructure:"WAIT_SETTLE_MILLIS"`
	WaitChartInitialMillis  int `mapstructure:"WAIT_CHART_INITIAL_MILLIS"`
	WaitChartIntervalMillis int `mapstructure:"WAIT_CHART_INTERVAL_MILLIS"`
	WaitChartMaxPolls       int `mapstructure:"WAIT_CHART_MAX_POLLS"`
	WaitImageSeconds        int `mapstructure:"WAIT_IMAGE_SECONDS"`
	WaitLayoutSeconds       int `mapstructure:"WAIT_LAYOUT_SECONDS"`
	WaitFinalSettleMillis   int `mapstructure:"WAIT_FINAL_SETTLE_MILLIS"`

	// Artifact storage config
	StorageBackend string `mapstructure:"STORAGE_BACKEND"`
	S3Bucket       string `mapstructure:"S3_BUCKET"`
	S3Region       string `mapstructure:"S3_REGION"`
	S3Endpoint     string `mapstructure:"S3_ENDPOINT"`
	S3AccessKey    string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey    string `mapstructure:"S3_SECRET_KEY"`
	S3PathStyle    bool   `mapstructure:"S3_PATH_STYLE"`

	API_PORT          string
	ReadHeaderTimeout int `mapstructure:"READ_HEADER_TIMEOUT_SECONDS"`
}

var cfg *Config = nil

func initConfig() {
	viper.AutomaticEnv()

	viper.SetDefault("KAFKA_BOOTSTRAP_SERVERS", "localhost:29092")
	viper.SetDefault("UPLOAD_TOPIC", "advisor.uploads")
	viper.SetDefault("REPORTS_TOPIC", "advisor.reports")
	viper.SetDefault("KAFKA_CONSUMER_GROUP_ID", "advisor-report")
	viper.SetDefault("KAFKA_AUTO_COMMIT", false)

	// default DB Config
	viper.SetDefault("ADVISOR_DB_NAME", "postgres")
	viper.SetDefault("ADVISOR_DB_USER", "postgres")
	viper.SetDefault("ADVISOR_DB_PASSWORD", "postgres")
	viper.SetDefault("ADVISOR_DB_HOST", "localhost")
	viper.SetDefault("ADVISOR_DB_PORT", "15432")
	viper.SetDefault("ADVISOR_DB_SSL", "disable")

	viper.SetDefault("VENDOR_API_URL", "")
	viper.SetDefault("VENDOR_API_TOKEN", "")
	viper.SetDefault("VENDOR_API_PAGE_SIZE", 200)

	viper.SetDefault("INGEST_BATCH_SIZE", 500)
	viper.SetDefault("CACHE_TTL_SECONDS", 300)
	viper.SetDefault("REPORT_WINDOW_DAYS", 90)
	viper.SetDefault("DATA_RETENTION_DAYS", 90)

	viper.SetDefault("RENDER_WORKERS", 2)
	viper.SetDefault("RENDER_MAX_ATTEMPTS", 3)
	viper.SetDefault("RENDER_SOFT_TIMEOUT_SECONDS", 90)
	viper.SetDefault("RENDER_HARD_MARGIN_SECONDS", 30)
	viper.SetDefault("RENDER_RETRY_BASE_SECONDS", 5)
	viper.SetDefault("RENDER_RETRY_CAP_SECONDS", 300)
	viper.SetDefault("BROWSER_POOL_SIZE", 2)
	viper.SetDefault("BROWSER_BIN_PATH", "")
	viper.SetDefault("BROWSER_HEADLESS", true)
	viper.SetDefault("VIEWPORT_WIDTH", 1280)
	viper.SetDefault("VIEWPORT_HEIGHT", 1696)

	viper.SetDefault("WAIT_NETWORK_IDLE_SECONDS", 10)
	viper.SetDefault("WAIT_DOC_LOAD_SECONDS", 15)
	viper.SetDefault("WAIT_SETTLE_MILLIS", 500)
	viper.SetDefault("WAIT_CHART_INITIAL_MILLIS", 300)
	viper.SetDefault("WAIT_CHART_INTERVAL_MILLIS", 250)
	viper.SetDefault("WAIT_CHART_MAX_POLLS", 20)
	viper.SetDefault("WAIT_IMAGE_SECONDS", 10)
	viper.SetDefault("WAIT_LAYOUT_SECONDS", 5)
	viper.SetDefault("WAIT_FINAL_SETTLE_MILLIS", 300)

	viper.SetDefault("STORAGE_BACKEND", "memory")
	viper.SetDefault("S3_BUCKET", "advisor-reports")
	viper.SetDefault("S3_REGION", "us-east-1")
	viper.SetDefault("S3_ENDPOINT", "")
	viper.SetDefault("S3_PATH_STYLE", false)

	viper.SetDefault("API_PORT", "8000")
	viper.SetDefault("READ_HEADER_TIMEOUT_SECONDS", 5)
	viper.SetDefault("LogLevel", "INFO")

	// Hack till viper issue get fix - https://github.com/spf13/viper/issues/761
	envKeysMap := &map[string]interface{}{}
	if err := mapstructure.Decode(cfg, &envKeysMap); err != nil {
		fmt.Println(err)
	}
	for k := range *envKeysMap {
		if bindErr := viper.BindEnv(k); bindErr != nil {
			fmt.Println(bindErr)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		fmt.Println("Can not unmarshal config. Exiting.. ", err)
		os.Exit(1)
	}

	// The hard timeout must stay strictly above the soft timeout so the
	// cooperative cancel always fires first.
	if cfg.RenderHardMarginSeconds < 5 {
		cfg.RenderHardMarginSeconds = 5
	}
}

func GetConfig() *Config {
	if cfg == nil {
		initConfig()
		fmt.Println("Config initialized")
	}
	return cfg
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c *Config) RenderSoftTimeout() time.Duration {
	return time.Duration(c.RenderSoftTimeoutSeconds) * time.Second
}

func (c *Config) RenderHardTimeout() time.Duration {
	return c.RenderSoftTimeout() + time.Duration(c.RenderHardMarginSeconds)*time.Second
}

func (c *Config) RenderRetryBase() time.Duration {
	return time.Duration(c.RenderRetryBaseSeconds) * time.Second
}

func (c *Config) RenderRetryCap() time.Duration {
	return time.Duration(c.RenderRetryCapSeconds) * time.Second
}
