package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerAddress = "localhost:8080"
	defaultLogLevel      = "info"
	defaultEnv           = "local"
	defaultConfigDir     = ".feedback-kiosk"
	defaultDeviceKeyFile = ".device.key"
)

type Config struct {
	Env           string `mapstructure:"app_env"`
	ServerAddress string `mapstructure:"server_address"`
	LogLevel      string `mapstructure:"log_level"`
	ConfigDir     string `mapstructure:"config_dir"`
	DataPath      string `mapstructure:"data_path"`
	DeviceKeyPath string `mapstructure:"device_key_path"`
	KioskID       string `mapstructure:"kiosk_id"`
	EnableTLS     bool   `mapstructure:"enable_tls"`

	// Параметры движка синхронизации
	SyncInterval      int `mapstructure:"sync_interval_seconds"`
	ProbeInterval     int `mapstructure:"probe_interval_seconds"`
	BatchSize         int `mapstructure:"sync_batch_size"`
	MaxRetries        int `mapstructure:"max_retries"`
	QueueMaxRetries   int `mapstructure:"queue_max_retries"`
	RetryBaseDelaySec int `mapstructure:"retry_base_delay_seconds"`
	RetryMaxDelaySec  int `mapstructure:"retry_max_delay_seconds"`
	GracePeriodHours  int `mapstructure:"grace_period_hours"`
}

// MustLoad загружает конфигурацию киоска
func MustLoad() *Config {
	// Определяем путь к .env файлу (относительно места запуска)
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		// Пробуем найти .env в родительской директории
		envPath = "../.env"
	}

	// Загружаем .env файл если существует
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Printf("Ошибка загрузки .env файла: %v\n", err)
		}
	}

	viper.AutomaticEnv()

	// Устанавливаем значения по умолчанию
	viper.SetDefault("APP_ENV", defaultEnv)
	viper.SetDefault("SERVER_ADDRESS", defaultServerAddress)
	viper.SetDefault("LOG_LEVEL", defaultLogLevel)
	viper.SetDefault("CONFIG_DIR", defaultConfigDir)
	viper.SetDefault("KIOSK_ID", "")
	viper.SetDefault("ENABLE_TLS", false)
	viper.SetDefault("SYNC_INTERVAL_SECONDS", 30)
	viper.SetDefault("PROBE_INTERVAL_SECONDS", 10)
	viper.SetDefault("SYNC_BATCH_SIZE", 5)
	viper.SetDefault("MAX_RETRIES", 3)
	viper.SetDefault("QUEUE_MAX_RETRIES", 5)
	viper.SetDefault("RETRY_BASE_DELAY_SECONDS", 2)
	viper.SetDefault("RETRY_MAX_DELAY_SECONDS", 300)
	viper.SetDefault("GRACE_PERIOD_HOURS", 24)

	// Получаем домашнюю директорию пользователя
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		configDir = filepath.Join(homeDir, configDir)
	}

	// Создаем директории если их нет
	if err := os.MkdirAll(configDir, 0700); err != nil {
		fmt.Printf("Ошибка создания директории конфигурации: %v\n", err)
	}

	kioskID := viper.GetString("KIOSK_ID")
	if kioskID == "" {
		if hostname, err := os.Hostname(); err == nil {
			kioskID = hostname
		} else {
			kioskID = "kiosk"
		}
	}

	config := &Config{
		Env:           viper.GetString("APP_ENV"),
		ServerAddress: viper.GetString("SERVER_ADDRESS"),
		LogLevel:      viper.GetString("LOG_LEVEL"),
		ConfigDir:     configDir,
		DataPath:      filepath.Join(configDir, "entries.db"),
		DeviceKeyPath: filepath.Join(configDir, defaultDeviceKeyFile),
		KioskID:       kioskID,
		EnableTLS:     viper.GetBool("ENABLE_TLS"),

		SyncInterval:      viper.GetInt("SYNC_INTERVAL_SECONDS"),
		ProbeInterval:     viper.GetInt("PROBE_INTERVAL_SECONDS"),
		BatchSize:         viper.GetInt("SYNC_BATCH_SIZE"),
		MaxRetries:        viper.GetInt("MAX_RETRIES"),
		QueueMaxRetries:   viper.GetInt("QUEUE_MAX_RETRIES"),
		RetryBaseDelaySec: viper.GetInt("RETRY_BASE_DELAY_SECONDS"),
		RetryMaxDelaySec:  viper.GetInt("RETRY_MAX_DELAY_SECONDS"),
		GracePeriodHours:  viper.GetInt("GRACE_PERIOD_HOURS"),
	}

	// Валидация конфигурации
	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации: %v", err))
	}

	return config
}

func (c *Config) validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server_address не может быть пустым")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("sync_batch_size должен быть положительным")
	}
	if c.MaxRetries < 0 || c.QueueMaxRetries < 0 {
		return fmt.Errorf("количество повторов не может быть отрицательным")
	}
	return nil
}

// IsProd проверяет, prod ли окружение
func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// IsLocal проверяет, local ли окружение
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == ""
}
