package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/eddielth/sdr-weather/display"
	"github.com/eddielth/sdr-weather/logger"
	"github.com/eddielth/sdr-weather/units"
)

// Config is the application configuration
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Decoder  DecoderConfig  `mapstructure:"decoder"`
	Display  DisplayConfig  `mapstructure:"display"`
	Throttle ThrottleConfig `mapstructure:"throttle"`
	Storage  StorageConfig  `mapstructure:"storage"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Script   ScriptConfig   `mapstructure:"script"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// Source types
const (
	SourceProcess = "process"
	SourceStdin   = "stdin"
)

// SourceConfig selects where decoder lines come from
type SourceConfig struct {
	// Type is "process" (run Command) or "stdin"
	Type    string   `mapstructure:"type"`
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
	// GracePeriod before the decoder is killed on shutdown
	GracePeriod time.Duration `mapstructure:"grace_period"`
}

// DecoderConfig controls how the "time" field is read
type DecoderConfig struct {
	TimeLayout string `mapstructure:"time_layout"`
	// Location is an IANA zone name or "Local"
	Location string `mapstructure:"location"`
}

// DisplayConfig controls terminal output
type DisplayConfig struct {
	// Unit is "", "C" or "F"
	Unit string `mapstructure:"unit"`
	// Mode is "terminal" or "silent"
	Mode string `mapstructure:"mode"`
}

// ThrottleConfig limits logging of retransmissions
type ThrottleConfig struct {
	// IntervalSeconds between accepted events per sensor, 0 accepts all
	IntervalSeconds int64 `mapstructure:"interval_seconds"`
}

// StorageConfig 表示存储配置
type StorageConfig struct {
	CSV      CSVStorageConfig      `mapstructure:"csv"`
	Database DatabaseStorageConfig `mapstructure:"database"`
}

// CSVStorageConfig is the per-sensor log; Enabled is the logging on/off switch
type CSVStorageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// DatabaseStorageConfig 表示数据库存储配置
type DatabaseStorageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Type    string `mapstructure:"type"`
	DSN     string `mapstructure:"dsn"`
}

// MQTTConfig is the reading publisher
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// Topic prefix, the sensor key is appended
	Topic  string `mapstructure:"topic"`
	QoS    byte   `mapstructure:"qos"`
	Retain bool   `mapstructure:"retain"`
}

// ScriptConfig is the JavaScript alert hook
type ScriptConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ScriptPath string `mapstructure:"script_path"`
	ScriptCode string `mapstructure:"script_code"`
}

// MetricsConfig is the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggerConfig 表示日志配置
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	Console    bool   `mapstructure:"console"`
}

// ConfigChangeCallback 是配置文件变更时的回调函数类型
type ConfigChangeCallback func(cfg *Config) error

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("source.type", SourceProcess)
	v.SetDefault("source.command", "rtl_433")
	v.SetDefault("source.args", []string{"-F", "json"})
	v.SetDefault("source.grace_period", 2*time.Second)
	v.SetDefault("decoder.time_layout", "2006-01-02 15:04:05")
	v.SetDefault("decoder.location", "Local")
	v.SetDefault("display.unit", "F")
	v.SetDefault("display.mode", "terminal")
	v.SetDefault("throttle.interval_seconds", 15*60)
	v.SetDefault("storage.csv.enabled", true)
	v.SetDefault("storage.csv.path", ".")
	v.SetDefault("storage.database.type", "mysql")
	v.SetDefault("mqtt.topic", "sdrweather/readings")
	v.SetDefault("metrics.addr", ":9433")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.console", true)

	v.SetEnvPrefix("SDRWEATHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig loads the configuration file at configPath. An empty path uses
// defaults and environment only.
func LoadConfig(configPath string) (*Config, error) {
	v := newViper()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks option values
func (c *Config) Validate() error {
	if _, err := units.ParseUnit(c.Display.Unit); err != nil {
		return fmt.Errorf("display.unit: %w", err)
	}
	if _, err := display.ParseMode(c.Display.Mode); err != nil {
		return fmt.Errorf("display.mode: %w", err)
	}
	if c.Throttle.IntervalSeconds < 0 {
		return fmt.Errorf("throttle.interval_seconds must not be negative, got %d", c.Throttle.IntervalSeconds)
	}
	if _, err := c.Decoder.TimeLocation(); err != nil {
		return fmt.Errorf("decoder.location: %w", err)
	}

	switch c.Source.Type {
	case SourceProcess:
		if c.Source.Command == "" {
			return fmt.Errorf("source.command is required for source type %q", SourceProcess)
		}
	case SourceStdin:
	default:
		return fmt.Errorf("source.type: unknown source %q", c.Source.Type)
	}

	if c.Storage.CSV.Enabled && c.Storage.CSV.Path == "" {
		return fmt.Errorf("storage.csv.path is required")
	}
	if db := c.Storage.Database; db.Enabled {
		if db.Type != "mysql" && db.Type != "postgresql" {
			return fmt.Errorf("storage.database.type: unsupported database %q", db.Type)
		}
		if db.DSN == "" {
			return fmt.Errorf("storage.database.dsn is required")
		}
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	if c.Script.Enabled && c.Script.ScriptPath == "" && c.Script.ScriptCode == "" {
		return fmt.Errorf("script needs script_path or script_code")
	}
	return nil
}

// TimeLocation resolves the configured zone
func (d DecoderConfig) TimeLocation() (*time.Location, error) {
	if d.Location == "" || strings.EqualFold(d.Location, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(d.Location)
}

// WatchConfig 监听配置文件变化并调用回调函数
func WatchConfig(configPath string, callback ConfigChangeCallback) error {
	// 获取配置文件的绝对路径
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return err
	}

	v := newViper()
	v.SetConfigFile(absPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", absPath, err)
	}

	// 防抖动处理，避免短时间内多次触发
	var lastChangeTime time.Time
	var debounceInterval = 2 * time.Second

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		now := time.Now()
		if now.Sub(lastChangeTime) < debounceInterval {
			return
		}
		lastChangeTime = now

		logger.Info("config file changed: %s", e.Name)

		newConfig, err := decode(v)
		if err != nil {
			logger.Error("reloaded config rejected: %v", err)
			return
		}

		if err := callback(newConfig); err != nil {
			logger.Error("failed to apply new config: %v", err)
			return
		}

		logger.Info("config reloaded")
	})
	v.WatchConfig()

	return nil
}
