package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server       ServerConfig
	Redis        RedisConfig
	Telegram     TelegramConfig
	Ton          TonConfig
	Scheduler    SchedulerConfig
	Distribution DistributionConfig
}

type ServerConfig struct {
	Port   int    `env:"PORT" envDefault:"8080"`
	Origin string `env:"ORIGIN" envDefault:"http://localhost:3000"`
}

type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type TelegramConfig struct {
	BotToken string   `env:"BOT_TOKEN,required"`
	Debug    bool     `env:"TELEGRAM_DEBUG" envDefault:"false"`
	AdminIDs []string `env:"ADMIN_IDS" envSeparator:","`
}

type TonConfig struct {
	ConfigURL  string `env:"TON_CONFIG_URL" envDefault:"https://ton.org/global.config.json"`
	WalletSeed string `env:"TON_WALLET_SEED"`
}

type SchedulerConfig struct {
	TickInterval     time.Duration `env:"SCHEDULER_TICK_INTERVAL" envDefault:"60s"`
	RecoveryInterval time.Duration `env:"SCHEDULER_RECOVERY_INTERVAL" envDefault:"30m"`
}

type DistributionConfig struct {
	SendDelay   time.Duration `env:"DISTRIBUTION_SEND_DELAY" envDefault:"1s"`
	SendTimeout time.Duration `env:"DISTRIBUTION_SEND_TIMEOUT" envDefault:"15s"`
}

func Load() *Config {
	// Missing .env is fine: in production the variables are set directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}

	return cfg
}
