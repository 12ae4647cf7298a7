package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Asia/Almaty"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Telegram struct {
		Token      string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL string `envconfig:"TG_WEBHOOK_URL"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	AMQPURL string `envconfig:"AMQP_URL"`

	OpenAI struct {
		APIKey  string        `envconfig:"OPENAI_API_KEY"`
		BaseURL string        `envconfig:"OPENAI_BASE_URL"`
		Model   string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
		Timeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"45s"`
	} `envconfig:""`

	Reminders struct {
		WaterEvery time.Duration `envconfig:"REMIND_WATER_EVERY" default:"3h"`
		WaterFrom  string        `envconfig:"REMIND_WATER_FROM" default:"07:00"`
		WaterUntil string        `envconfig:"REMIND_WATER_UNTIL" default:"22:00"`
		StepsAt    string        `envconfig:"REMIND_STEPS_AT" default:"22:00"`
		WeightAt   string        `envconfig:"REMIND_WEIGHT_AT" default:"10:00"`
		WeightDOW  string        `envconfig:"REMIND_WEIGHT_DOW" default:"sun"`
		FanOut     int           `envconfig:"REMIND_FANOUT" default:"8"`
	} `envconfig:""`

	Assess struct {
		ScoreMin    int           `envconfig:"SCORE_MIN" default:"1"`
		ScoreMax    int           `envconfig:"SCORE_MAX" default:"10"`
		MaxAttempts int           `envconfig:"ASSESS_MAX_ATTEMPTS" default:"3"`
		Backoff     time.Duration `envconfig:"ASSESS_BACKOFF" default:"2s"`
		AntiSpam    time.Duration `envconfig:"ANTI_SPAM_WINDOW" default:"90s"`
		Workers     int           `envconfig:"ASSESS_WORKERS" default:"4"`
	} `envconfig:""`

	Queues struct {
		Assess string `envconfig:"ASSESS_QUEUE_KEY" default:"assess_jobs"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
