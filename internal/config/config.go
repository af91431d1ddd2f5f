package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	SMS      SMSConfig
	OTP      OTPConfig
	Email    EmailConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	// Настройки пула; нулевые значения заменяются умолчаниями при подключении
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: Режим работы Redis ("single", "sentinel", "cluster"). По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: Список адресов Redis (хост:порт). Используется для всех режимов.
	// Для 'single', если не пуст, используется первый адрес из списка.
	Addrs []string `mapstructure:"addrs"`

	// Addr: Альтернативный адрес для режима 'single' (для обратной совместимости).
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Имя мастер-сервера Redis (только для режима "sentinel")
	MasterName string `mapstructure:"master_name"`

	// MaxRetries: Максимальное количество попыток переподключения (-1 - бесконечно). По умолчанию 0.
	MaxRetries int `mapstructure:"max_retries"`

	// MinRetryBackoff: Минимальный интервал между попытками (в миллисекундах). По умолчанию 8ms.
	MinRetryBackoff int `mapstructure:"min_retry_backoff"`

	// MaxRetryBackoff: Максимальный интервал между попытками (в миллисекундах). По умолчанию 512ms.
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"`
}

// AuthConfig содержит настройки проверки userToken куки.
// Выпуск токенов — зона ответственности внешнего сервиса аутентификации.
type AuthConfig struct {
	// CookieName: имя куки с токеном пользователя. По умолчанию "userToken".
	CookieName string `mapstructure:"cookie_name"`

	// TokenSecret: HMAC-секрет для проверки подписи токена
	TokenSecret string `mapstructure:"token_secret"`
}

// SMSConfig содержит настройки SMS-провайдера (Twilio)
type SMSConfig struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	FromNumber string `mapstructure:"from_number"`

	// CountryPrefix: фиксированный префикс страны для исходящих номеров. По умолчанию "+91".
	CountryPrefix string `mapstructure:"country_prefix"`

	// TimeoutSec: дедлайн на один вызов провайдера. По умолчанию 10 секунд.
	TimeoutSec int `mapstructure:"timeout_sec"`
}

// OTPConfig содержит настройки выдачи и проверки одноразовых кодов
type OTPConfig struct {
	// TTL: время жизни челленджа. По умолчанию 5 минут.
	TTL time.Duration `mapstructure:"ttl"`

	// ResendCooldown: минимальный интервал между выдачами для одного номера. По умолчанию 60 секунд.
	ResendCooldown time.Duration `mapstructure:"resend_cooldown"`

	// MaxAttempts: максимум попыток проверки кода. По умолчанию 5.
	MaxAttempts int `mapstructure:"max_attempts"`

	// CodePepper: секрет, подмешиваемый в хеш кода
	CodePepper string `mapstructure:"code_pepper"`
}

// EmailConfig содержит настройки транзакционной почты (Resend)
type EmailConfig struct {
	APIKey string `mapstructure:"api_key"`
	From   string `mapstructure:"from"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load загружает конфигурацию из файла
func Load(configPath string) (*Config, error) {
	vip := viper.New() // Используем новый экземпляр Viper, чтобы избежать глобального состояния

	// 1. Значения по умолчанию
	vip.SetDefault("auth.cookie_name", "userToken")
	vip.SetDefault("sms.country_prefix", "+91")
	vip.SetDefault("sms.timeout_sec", 10)
	vip.SetDefault("otp.ttl", 5*time.Minute)
	vip.SetDefault("otp.resend_cooldown", 60*time.Second)
	vip.SetDefault("otp.max_attempts", 5)

	// 2. Привязываем переменные окружения ЯВНО
	// Привязка для секции Database
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")
	vip.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	vip.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	vip.BindEnv("database.conn_max_lifetime", "DATABASE_CONN_MAX_LIFETIME")

	// Привязка для секции Redis
	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS") // Для массива строк
	vip.BindEnv("redis.addr", "REDIS_ADDR")   // Для одиночной строки
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	// Привязка для секции Auth
	vip.BindEnv("auth.cookie_name", "AUTH_COOKIE_NAME")
	vip.BindEnv("auth.token_secret", "AUTH_TOKEN_SECRET")

	// Привязка для секции SMS (Twilio)
	vip.BindEnv("sms.account_sid", "TWILIO_ACCOUNT_SID")
	vip.BindEnv("sms.auth_token", "TWILIO_AUTH_TOKEN")
	vip.BindEnv("sms.from_number", "TWILIO_PHONE_NUMBER")
	vip.BindEnv("sms.country_prefix", "SMS_COUNTRY_PREFIX")
	vip.BindEnv("sms.timeout_sec", "SMS_TIMEOUT_SEC")

	// Привязка для секции OTP
	vip.BindEnv("otp.ttl", "OTP_TTL")
	vip.BindEnv("otp.resend_cooldown", "OTP_RESEND_COOLDOWN")
	vip.BindEnv("otp.max_attempts", "OTP_MAX_ATTEMPTS")
	vip.BindEnv("otp.code_pepper", "OTP_CODE_PEPPER")

	// Привязка для секции Email
	vip.BindEnv("email.api_key", "RESEND_API_KEY")
	vip.BindEnv("email.from", "EMAIL_FROM")

	// Привязка для Server
	vip.BindEnv("server.port", "SERVER_PORT")

	// 3. Устанавливаем путь к файлу конфигурации
	if configPath != "" {
		vip.SetConfigFile(configPath)
		// 4. Пытаемся прочитать файл конфигурации (не страшно, если его нет, т.к. есть BindEnv)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	// 5. Анмаршалим конфигурацию (Viper объединит значения из файла и привязанных env vars)
	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 6. Логирование конфигурации (только в debug режиме).
	// Секреты (пароли, auth token, pepper) не выводим никогда.
	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Port: %s", cfg.Database.Port)
		log.Printf("Database User: %s", cfg.Database.User)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Addr: %s", cfg.Redis.Addr)
		log.Printf("Redis Mode: %s", cfg.Redis.Mode)
		log.Printf("SMS Account SID Set: %t", cfg.SMS.AccountSID != "")
		log.Printf("SMS From Number: %s", cfg.SMS.FromNumber)
		log.Printf("OTP TTL: %s", cfg.OTP.TTL)
		log.Printf("OTP Max Attempts: %d", cfg.OTP.MaxAttempts)
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("-----------------------------------------")
	}

	// 7. Проверка обязательных параметров
	if cfg.Database.Host == "" || cfg.Database.DBName == "" || cfg.Database.User == "" {
		return nil, fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if cfg.Auth.TokenSecret == "" {
		return nil, fmt.Errorf("auth token secret is required in config (check AUTH_TOKEN_SECRET env var)")
	}
	if cfg.OTP.CodePepper == "" {
		return nil, fmt.Errorf("OTP code pepper is required in config (check OTP_CODE_PEPPER env var)")
	}

	// В production-режиме SMS-провайдер обязан быть сконфигурирован: без него
	// выдача OTP молча деградирует в noop, что недопустимо на проде.
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "release" {
		if cfg.SMS.AccountSID == "" || cfg.SMS.AuthToken == "" || cfg.SMS.FromNumber == "" {
			return nil, fmt.Errorf("SMS provider credentials are required in release mode (check TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_PHONE_NUMBER env vars)")
		}
		if cfg.Database.Password == "" {
			return nil, fmt.Errorf("database password is required in production mode (check DATABASE_PASSWORD env var)")
		}
	}

	return &cfg, nil
}
