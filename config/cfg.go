package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"github.com/winqerweb-code/winqerapp-insights/internal/ads/meta"
	"github.com/winqerweb-code/winqerapp-insights/internal/analytics/ga4"
	httpapi "github.com/winqerweb-code/winqerapp-insights/internal/api/http"
	"github.com/winqerweb-code/winqerapp-insights/internal/calendar"
	"github.com/winqerweb-code/winqerapp-insights/internal/demo"
	"github.com/winqerweb-code/winqerapp-insights/internal/reconcile"
	"github.com/winqerweb-code/winqerapp-insights/internal/store"
	"github.com/winqerweb-code/winqerapp-insights/log"
)

// Config represents the global configuration for the service.
type Config struct {
	DB        store.Config     `mapstructure:"mysql"`
	Logger    log.Config       `mapstructure:"logger"`
	HTTP      httpapi.Config   `mapstructure:"http"`
	Meta      meta.Config      `mapstructure:"meta"`
	GA4       ga4.Config       `mapstructure:"ga4"`
	Calendar  calendar.Config  `mapstructure:"calendar"`
	Reconcile reconcile.Config `mapstructure:"reconcile"`
	Demo      demo.Fixture     `mapstructure:"demo"`
}

// LoadConfig loads the configuration from a file and/or environment variables.
// Environment variables take precedence over config file values.
// Nested config keys use double underscore, e.g., MYSQL__DSN for mysql.dsn
func LoadConfig(cfgFile string) (*Config, error) {
	viper.SetConfigType("toml")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__", "-", "__"))

	bindEnvVars()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			// If config file doesn't exist, continue with env vars only
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %v", err)
			}
		}
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("$HOME/config/winqerapp-insights")
		viper.AddConfigPath("/etc/winqerapp-insights")
		_ = viper.ReadInConfig()
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config into struct: %v", err)
	}

	// Construct the MySQL DSN from individual env vars if none is set.
	if config.DB.DSN == "" {
		mysqlHost := os.Getenv("MYSQL_HOST")
		mysqlPort := os.Getenv("MYSQL_PORT")
		mysqlUser := os.Getenv("MYSQL_USER")
		mysqlPassword := os.Getenv("MYSQL_PASSWORD")
		mysqlDatabase := os.Getenv("MYSQL_DATABASE")

		if mysqlHost != "" {
			if mysqlPort == "" {
				mysqlPort = "3306"
			}
			if mysqlUser != "" && mysqlPassword != "" && mysqlDatabase != "" {
				config.DB.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8&parseTime=true",
					mysqlUser, mysqlPassword, mysqlHost, mysqlPort, mysqlDatabase)
			}
		}
	}

	return &config, nil
}

// bindEnvVars binds environment variables to config keys
// This allows using both nested keys (MYSQL__DSN) and flat keys (MYSQL_DSN)
func bindEnvVars() {
	// MySQL
	viper.BindEnv("mysql.dsn", "MYSQL_DSN")
	viper.BindEnv("mysql.automigrate", "MYSQL_AUTOMIGRATE")
	viper.BindEnv("mysql.max_open_connections", "MYSQL_MAX_OPEN_CONNECTIONS")
	viper.BindEnv("mysql.max_idle_connections", "MYSQL_MAX_IDLE_CONNECTIONS")
	viper.BindEnv("mysql.tls_ca_path", "MYSQL_TLS_CA_PATH")

	// Logger
	viper.BindEnv("logger.level", "LOG_LEVEL")
	viper.BindEnv("logger.add_source", "LOG_ADD_SOURCE")

	// HTTP
	viper.BindEnv("http.port", "HTTP_PORT")
	viper.BindEnv("http.address", "HTTP_ADDRESS")
	viper.BindEnv("http.allowed_origins", "HTTP_ALLOWED_ORIGINS")
	viper.BindEnv("http.rate_limit.window", "HTTP_RATE_LIMIT_WINDOW")
	viper.BindEnv("http.rate_limit.max", "HTTP_RATE_LIMIT_MAX")

	// Meta ads
	viper.BindEnv("meta.base_url", "META_BASE_URL")
	viper.BindEnv("meta.timeout", "META_TIMEOUT")
	viper.BindEnv("meta.conversion_action", "META_CONVERSION_ACTION")

	// GA4
	viper.BindEnv("ga4.enabled", "GA4_ENABLED")

	// Calendar
	viper.BindEnv("calendar.timezone", "CALENDAR_TIMEZONE")
	viper.BindEnv("calendar.volatile_window_days", "CALENDAR_VOLATILE_WINDOW_DAYS")

	// Reconcile
	viper.BindEnv("reconcile.volatile_refresh_ttl", "RECONCILE_VOLATILE_REFRESH_TTL")
	viper.BindEnv("reconcile.conversion_event", "RECONCILE_CONVERSION_EVENT")

	// Demo fixture
	viper.BindEnv("demo.monthly_spend", "DEMO_MONTHLY_SPEND")
	viper.BindEnv("demo.monthly_impressions", "DEMO_MONTHLY_IMPRESSIONS")
	viper.BindEnv("demo.monthly_reach", "DEMO_MONTHLY_REACH")
	viper.BindEnv("demo.monthly_clicks", "DEMO_MONTHLY_CLICKS")
	viper.BindEnv("demo.monthly_conversions", "DEMO_MONTHLY_CONVERSIONS")
	viper.BindEnv("demo.monthly_sessions", "DEMO_MONTHLY_SESSIONS")
}
