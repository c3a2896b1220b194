package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	WhatsApp   WhatsAppConfig
	CloudAPI   CloudAPIConfig
	Meta       MetaConfig
	WebChat    WebChatConfig
	WorkerPool WorkerPoolConfig
}

type AppConfig struct {
	Version  string
	Port     string
	Debug    bool
	BasePath string
}

type DatabaseConfig struct {
	Driver   string // sqlite | postgres
	Host     string
	Port     int
	User     string
	Password string
	Name     string // file path for SQLite, db name for Postgres

	ValkeyEnabled  bool
	ValkeyAddress  string
	ValkeyPassword string
	ValkeyDB       int
}

type WhatsAppConfig struct {
	StoreDir     string
	LogLevel     string
	MaxImageSize int64
	MaxVideoSize int64
	MaxFileSize  int64
	// RetryBackoff is the pause between a failed send and the single
	// reconnect-and-retry attempt.
	RetryBackoff time.Duration
}

type CloudAPIConfig struct {
	BaseURL    string
	APIVersion string
	// EditWindow / DeleteWindow are the channel-imposed validity windows for
	// editMessage / deleteMessage.
	EditWindow   time.Duration
	DeleteWindow time.Duration
}

type MetaConfig struct {
	GraphBaseURL string
	APIVersion   string
	// VerifyToken answers the hub.challenge handshake Meta performs when a
	// webhook callback URL is registered.
	VerifyToken string
}

type WebChatConfig struct {
	// SessionGraceWindow keeps a visitor session alive after its transport
	// drops, so reconnects keep the same recipient id.
	SessionGraceWindow time.Duration
}

type WorkerPoolConfig struct {
	Size      int
	QueueSize int
}

// Global is the process-wide configuration, populated by Load.
var Global *Config

// Load reads .env (when present) and the environment into a Config. Defaults
// match production behavior; everything is overridable via OMNI_* variables.
func Load(path string) *Config {
	if err := godotenv.Load(path + "/.env"); err != nil {
		logrus.Debugf("[CONFIG] No .env file loaded: %v", err)
	}

	v := viper.New()
	v.SetEnvPrefix("omni")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app_port", "3000")
	v.SetDefault("app_debug", false)
	v.SetDefault("app_base_path", "")

	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_user", "")
	v.SetDefault("db_password", "")
	v.SetDefault("db_name", "storages/omnibridge.db")
	v.SetDefault("valkey_enabled", false)
	v.SetDefault("valkey_address", "localhost:6379")
	v.SetDefault("valkey_password", "")
	v.SetDefault("valkey_db", 0)

	v.SetDefault("whatsapp_store_dir", "storages")
	v.SetDefault("whatsapp_log_level", "ERROR")
	v.SetDefault("whatsapp_max_image_size", int64(20_000_000))
	v.SetDefault("whatsapp_max_video_size", int64(100_000_000))
	v.SetDefault("whatsapp_max_file_size", int64(50_000_000))
	v.SetDefault("whatsapp_retry_backoff", time.Second)

	v.SetDefault("cloudapi_base_url", "https://graph.facebook.com")
	v.SetDefault("cloudapi_version", "v20.0")
	v.SetDefault("cloudapi_edit_window", 15*time.Minute)
	v.SetDefault("cloudapi_delete_window", 24*time.Hour)

	v.SetDefault("meta_graph_base_url", "https://graph.facebook.com")
	v.SetDefault("meta_api_version", "v20.0")
	v.SetDefault("meta_verify_token", "")

	v.SetDefault("webchat_session_grace", 5*time.Minute)

	v.SetDefault("worker_pool_size", 20)
	v.SetDefault("worker_queue_size", 1000)

	cfg := &Config{
		App: AppConfig{
			Version:  "v1.0.0",
			Port:     v.GetString("app_port"),
			Debug:    v.GetBool("app_debug"),
			BasePath: v.GetString("app_base_path"),
		},
		Database: DatabaseConfig{
			Driver:         v.GetString("db_driver"),
			Host:           v.GetString("db_host"),
			Port:           v.GetInt("db_port"),
			User:           v.GetString("db_user"),
			Password:       v.GetString("db_password"),
			Name:           v.GetString("db_name"),
			ValkeyEnabled:  v.GetBool("valkey_enabled"),
			ValkeyAddress:  v.GetString("valkey_address"),
			ValkeyPassword: v.GetString("valkey_password"),
			ValkeyDB:       v.GetInt("valkey_db"),
		},
		WhatsApp: WhatsAppConfig{
			StoreDir:     v.GetString("whatsapp_store_dir"),
			LogLevel:     v.GetString("whatsapp_log_level"),
			MaxImageSize: v.GetInt64("whatsapp_max_image_size"),
			MaxVideoSize: v.GetInt64("whatsapp_max_video_size"),
			MaxFileSize:  v.GetInt64("whatsapp_max_file_size"),
			RetryBackoff: v.GetDuration("whatsapp_retry_backoff"),
		},
		CloudAPI: CloudAPIConfig{
			BaseURL:      v.GetString("cloudapi_base_url"),
			APIVersion:   v.GetString("cloudapi_version"),
			EditWindow:   v.GetDuration("cloudapi_edit_window"),
			DeleteWindow: v.GetDuration("cloudapi_delete_window"),
		},
		Meta: MetaConfig{
			GraphBaseURL: v.GetString("meta_graph_base_url"),
			APIVersion:   v.GetString("meta_api_version"),
			VerifyToken:  v.GetString("meta_verify_token"),
		},
		WebChat: WebChatConfig{
			SessionGraceWindow: v.GetDuration("webchat_session_grace"),
		},
		WorkerPool: WorkerPoolConfig{
			Size:      v.GetInt("worker_pool_size"),
			QueueSize: v.GetInt("worker_queue_size"),
		},
	}

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	Global = cfg
	return cfg
}

// Default returns a Config with production defaults without touching the
// environment. Tests build isolated configs from it.
func Default() *Config {
	return &Config{
		App:      AppConfig{Version: "v1.0.0", Port: "3000"},
		Database: DatabaseConfig{Driver: "sqlite", Name: ":memory:"},
		WhatsApp: WhatsAppConfig{
			StoreDir:     "storages",
			LogLevel:     "ERROR",
			MaxImageSize: 20_000_000,
			MaxVideoSize: 100_000_000,
			MaxFileSize:  50_000_000,
			RetryBackoff: time.Second,
		},
		CloudAPI: CloudAPIConfig{
			BaseURL:      "https://graph.facebook.com",
			APIVersion:   "v20.0",
			EditWindow:   15 * time.Minute,
			DeleteWindow: 24 * time.Hour,
		},
		Meta:       MetaConfig{GraphBaseURL: "https://graph.facebook.com", APIVersion: "v20.0"},
		WebChat:    WebChatConfig{SessionGraceWindow: 5 * time.Minute},
		WorkerPool: WorkerPoolConfig{Size: 20, QueueSize: 1000},
	}
}
