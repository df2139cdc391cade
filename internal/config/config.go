// Package config loads pipeline settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"io/fs"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

const (
	CheckpointSQLite   = "sqlite"
	CheckpointArtifact = "artifact"

	WarehousePostgres = "postgres"
	WarehouseSQLite   = "sqlite"
)

// DBConfig holds one set of Postgres credentials.
type DBConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Name     string
}

// ConnString assembles a postgresql:// connection URL.
func (c DBConfig) ConnString() string {
	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   "/" + c.Name,
	}
	return u.String()
}

// WarehouseConfig selects and configures the load target.
type WarehouseConfig struct {
	Driver     string
	Postgres   DBConfig
	SQLitePath string
}

// ScrapingConfig configures the news crawl.
type ScrapingConfig struct {
	IndexURL    string
	Pages       int
	RawPath     string
	LogPath     string
	MinDelay    time.Duration
	MaxDelay    time.Duration
	HTTPTimeout time.Duration
}

// Config is the full pipeline configuration.
type Config struct {
	SalesDB           DBConfig
	SalesTable        string
	Warehouse         WarehouseConfig
	DataDir           string
	StateDBPath       string
	CheckpointBackend string
	MarketingCSVPath  string
	Scraping          ScrapingConfig
	ProfileEnabled    bool
	LogLevel          string
	HTTPAddr          string
	RunTimeout        time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_HOST_SALES_DATA", "localhost")
	v.SetDefault("DB_PORT_SALES_DATA", "5432")
	v.SetDefault("SALES_TABLE", "amazon_sales_data")
	v.SetDefault("DB_HOST_DWH", "localhost")
	v.SetDefault("DB_PORT_DWH", "5432")
	v.SetDefault("WAREHOUSE_DRIVER", WarehousePostgres)
	v.SetDefault("WAREHOUSE_SQLITE_PATH", "warehouse.db")
	v.SetDefault("DATA_DIR", "data")
	v.SetDefault("STATE_DB_PATH", "pipeline.db")
	v.SetDefault("CHECKPOINT_BACKEND", CheckpointSQLite)
	v.SetDefault("MARKETING_CSV_PATH", "data_source/marketing_data/ElectronicsProductsPricingData - ElectronicsProductsPricingData.csv")
	v.SetDefault("SCRAPING_INDEX_URL", "https://indeks.kompas.com/?site=all")
	v.SetDefault("SCRAPING_PAGES", 1)
	v.SetDefault("SCRAPING_RAW_PATH", "data_source/scraping_data/scraping_kompas.csv")
	v.SetDefault("SCRAPING_LOG_PATH", "data_source/scraping_data/scraping.log")
	v.SetDefault("SCRAPING_MIN_DELAY", 100*time.Millisecond)
	v.SetDefault("SCRAPING_MAX_DELAY", time.Second)
	v.SetDefault("SCRAPING_HTTP_TIMEOUT", 30*time.Second)
	v.SetDefault("PROFILE_ENABLED", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("RUN_TIMEOUT", time.Hour)
}

// Load reads configuration from the environment. When envFile names an
// existing file it is read first and environment variables override it.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, eris.Wrapf(err, "failed to read %s", envFile)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, eris.Wrapf(err, "failed to stat %s", envFile)
		}
	}

	cfg := &Config{
		SalesDB:    dbConfig(v, "SALES_DATA"),
		SalesTable: v.GetString("SALES_TABLE"),
		Warehouse: WarehouseConfig{
			Driver:     v.GetString("WAREHOUSE_DRIVER"),
			Postgres:   dbConfig(v, "DWH"),
			SQLitePath: v.GetString("WAREHOUSE_SQLITE_PATH"),
		},
		DataDir:           v.GetString("DATA_DIR"),
		StateDBPath:       v.GetString("STATE_DB_PATH"),
		CheckpointBackend: v.GetString("CHECKPOINT_BACKEND"),
		MarketingCSVPath:  v.GetString("MARKETING_CSV_PATH"),
		Scraping: ScrapingConfig{
			IndexURL:    v.GetString("SCRAPING_INDEX_URL"),
			Pages:       v.GetInt("SCRAPING_PAGES"),
			RawPath:     v.GetString("SCRAPING_RAW_PATH"),
			LogPath:     v.GetString("SCRAPING_LOG_PATH"),
			MinDelay:    v.GetDuration("SCRAPING_MIN_DELAY"),
			MaxDelay:    v.GetDuration("SCRAPING_MAX_DELAY"),
			HTTPTimeout: v.GetDuration("SCRAPING_HTTP_TIMEOUT"),
		},
		ProfileEnabled: v.GetBool("PROFILE_ENABLED"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		HTTPAddr:       v.GetString("HTTP_ADDR"),
		RunTimeout:     v.GetDuration("RUN_TIMEOUT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func dbConfig(v *viper.Viper, suffix string) DBConfig {
	return DBConfig{
		Host:     v.GetString("DB_HOST_" + suffix),
		Port:     v.GetString("DB_PORT_" + suffix),
		Username: v.GetString("DB_USERNAME_" + suffix),
		Password: v.GetString("DB_PASSWORD_" + suffix),
		Name:     v.GetString("DB_NAME_" + suffix),
	}
}

// Validate checks enumerated and numeric settings.
func (c *Config) Validate() error {
	switch c.CheckpointBackend {
	case CheckpointSQLite, CheckpointArtifact:
	default:
		return eris.Errorf("unknown checkpoint backend: %q", c.CheckpointBackend)
	}
	switch c.Warehouse.Driver {
	case WarehousePostgres, WarehouseSQLite:
	default:
		return eris.Errorf("unknown warehouse driver: %q", c.Warehouse.Driver)
	}
	if c.Scraping.Pages < 1 {
		return eris.Errorf("scraping pages must be at least 1, got %d", c.Scraping.Pages)
	}
	if c.Scraping.MinDelay < 0 || c.Scraping.MaxDelay < c.Scraping.MinDelay {
		return eris.Errorf("invalid scraping delay range [%s, %s]", c.Scraping.MinDelay, c.Scraping.MaxDelay)
	}
	if c.DataDir == "" {
		return eris.New("data dir must not be empty")
	}
	return nil
}
