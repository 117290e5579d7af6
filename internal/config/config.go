package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BrandonDHaskell/Portunus/unit/internal/hw"
)

// Config is the startup configuration of the unit. It is loaded once and
// threaded through constructors.
type Config struct {
	UnitID  string `yaml:"unit_id"`
	Version string `yaml:"-"`

	// DB
	Env    string `yaml:"env"`     // "dev" | "prod"
	DBPath string `yaml:"db_path"` // e.g. "./data/portunus-unit.db"

	Log      LogConfig     `yaml:"log"`
	Tasks    int           `yaml:"max_tasks"`
	Pins     hw.Pins       `yaml:"pins"`
	Wiegand  WiegandConfig `yaml:"wiegand"`
	OSDP     OSDPConfig    `yaml:"osdp"`
	MQTT     MQTTConfig    `yaml:"mqtt"`
	Online   OnlineConfig  `yaml:"online"`
	Timing   TimingConfig  `yaml:"timing"`
	HTTPAddr string        `yaml:"http_addr"`
	GRPCAddr string        `yaml:"grpc_addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type WiegandConfig struct {
	// DevicePrefix + reader id is the device file, e.g. /dev/wie1.
	DevicePrefix string        `yaml:"device_prefix"`
	Poll         time.Duration `yaml:"poll"`
}

type OSDPConfig struct {
	Port       string        `yaml:"port"`
	Baud       int           `yaml:"baud"`
	Settle     time.Duration `yaml:"settle"`
	BatchSize  int           `yaml:"batch_size"`
	MaxReaders int           `yaml:"max_readers"`
}

type MQTTConfig struct {
	Broker        string        `yaml:"broker"`
	ClientID      string        `yaml:"client_id"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	CommandTopic  string        `yaml:"command_topic"`
	ResponseTopic string        `yaml:"response_topic"`
	CardTopic     string        `yaml:"card_topic"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

type OnlineConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	CheckInterval time.Duration `yaml:"check_interval"`
}

type TimingConfig struct {
	ModeSleep        time.Duration `yaml:"mode_sleep"`
	MonitorPoll      time.Duration `yaml:"monitor_poll"`
	ButtonPoll       time.Duration `yaml:"button_poll"`
	LongPress        time.Duration `yaml:"long_press"`
	ConfigTimeout    time.Duration `yaml:"config_timeout"`
	RebootPoll       time.Duration `yaml:"reboot_poll"`
	ResyncInterval   time.Duration `yaml:"resync_interval"`
	SysPlanPoll      time.Duration `yaml:"sys_plan_poll"`
	ShutdownDeadline time.Duration `yaml:"shutdown_deadline"`
}

// Default returns the configuration of a stock unit.
func Default() Config {
	return Config{
		Env:    "prod",
		DBPath: "./data/portunus-unit.db",
		Log:    LogConfig{Level: "info", Format: "json"},
		Tasks:  20,
		Pins:   hw.DefaultPins(),
		Wiegand: WiegandConfig{
			DevicePrefix: "/dev/wie",
			Poll:         100 * time.Millisecond,
		},
		OSDP: OSDPConfig{
			Port:       "/dev/ttyS0",
			Baud:       9600,
			Settle:     time.Second,
			BatchSize:  16,
			MaxReaders: 2,
		},
		MQTT: MQTTConfig{
			ClientID:      "portunus-unit",
			CommandTopic:  "portunus/unit/cmd",
			ResponseTopic: "portunus/unit/resp",
			CardTopic:     "portunus/unit/card",
			RatePerSecond: 5,
			Burst:         10,
			RetryInterval: 5 * time.Second,
		},
		Online: OnlineConfig{
			Timeout:       3 * time.Second,
			CheckInterval: time.Second,
		},
		Timing: TimingConfig{
			ModeSleep:        50 * time.Millisecond,
			MonitorPoll:      100 * time.Millisecond,
			ButtonPoll:       50 * time.Millisecond,
			LongPress:        5 * time.Second,
			ConfigTimeout:    30 * time.Minute,
			RebootPoll:       2 * time.Second,
			ResyncInterval:   time.Second,
			SysPlanPoll:      time.Second,
			ShutdownDeadline: 30 * time.Second,
		},
		HTTPAddr: "127.0.0.1:8080",
		GRPCAddr: "",
	}
}

// Load reads path (if non-empty) over the defaults and then applies
// PORTUNUS_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.UnitID = getenvDefault("PORTUNUS_UNIT_ID", cfg.UnitID)
	env := strings.ToLower(getenvDefault("PORTUNUS_ENV", cfg.Env))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as prod
		env = "prod"
	}
	cfg.Env = env
	cfg.DBPath = getenvDefault("PORTUNUS_DB_PATH", cfg.DBPath)
	cfg.Log.Level = getenvDefault("PORTUNUS_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenvDefault("PORTUNUS_LOG_FORMAT", cfg.Log.Format)
	cfg.Tasks = getenvInt("PORTUNUS_MAX_TASKS", cfg.Tasks)
	cfg.MQTT.Broker = getenvDefault("PORTUNUS_MQTT_BROKER", cfg.MQTT.Broker)
	cfg.MQTT.Username = getenvDefault("PORTUNUS_MQTT_USERNAME", cfg.MQTT.Username)
	cfg.MQTT.Password = getenvDefault("PORTUNUS_MQTT_PASSWORD", cfg.MQTT.Password)
	cfg.HTTPAddr = getenvDefault("PORTUNUS_HTTP_ADDR", cfg.HTTPAddr)
	cfg.GRPCAddr = getenvDefault("PORTUNUS_GRPC_ADDR", cfg.GRPCAddr)
}

// Validate rejects settings the unit cannot run with.
func (c Config) Validate() error {
	if c.Tasks <= 0 {
		return fmt.Errorf("config: max_tasks must be positive")
	}
	if c.Timing.ModeSleep < 50*time.Millisecond {
		return fmt.Errorf("config: timing.mode_sleep must be at least 50ms")
	}
	if c.Online.Timeout <= 0 {
		return fmt.Errorf("config: online.timeout must be positive")
	}
	if c.MQTT.Broker != "" && c.MQTT.RetryInterval <= 0 {
		return fmt.Errorf("config: mqtt.retry_interval must be positive")
	}
	return nil
}

// WiegandDevice returns the device file of reader id.
func (c Config) WiegandDevice(id int) string {
	return c.Wiegand.DevicePrefix + strconv.Itoa(id)
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
