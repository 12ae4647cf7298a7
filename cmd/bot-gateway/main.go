package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"tg-wellness-bot/internal/adapters/bot"
	"tg-wellness-bot/internal/adapters/repo"
	"tg-wellness-bot/internal/domain"
	"tg-wellness-bot/internal/infra/cache"
	"tg-wellness-bot/internal/infra/config"
	"tg-wellness-bot/internal/infra/db"
	applog "tg-wellness-bot/internal/infra/log"
	"tg-wellness-bot/internal/infra/metrics"
	"tg-wellness-bot/internal/infra/queue"
	"tg-wellness-bot/internal/usecase/schedule"
	"tg-wellness-bot/internal/usecase/stats"
	"tg-wellness-bot/internal/usecase/track"

	apphttp "tg-wellness-bot/internal/infra/http"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "bot-gateway")
	metrics.MustRegister(prometheus.DefaultRegisterer)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	assessQueue, err := newAssessQueue(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать очередь оценок")
	}

	sched, err := schedule.ParseSchedule(cfg.Reminders.WaterEvery, cfg.Reminders.WaterFrom, cfg.Reminders.WaterUntil, cfg.Reminders.StepsAt, cfg.Reminders.WeightAt, cfg.Reminders.WeightDOW)
	if err != nil {
		logger.Fatal().Err(err).Msg("некорректное расписание напоминаний")
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}

	repoAdapter := repo.NewPostgres(pool)
	sink := bot.NewSink(botAPI, logger)
	scheduleService := schedule.NewService(repoAdapter, repoAdapter, sink, sched, cfg.Reminders.FanOut, logger)
	trackService := track.NewService(repoAdapter)
	statsService := stats.NewService(repoAdapter, repoAdapter)
	gate := cache.NewRedisGate(redisClient)

	h := bot.NewHandler(botAPI, logger, scheduleService, trackService, statsService, assessQueue, gate, cfg.Assess.AntiSpam, cfg.TZ)

	srv := apphttp.NewServer(logger)
	srv.Router.Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Info().Msg("остановка бота")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

// newAssessQueue выбирает брокер: AMQP при заданном AMQP_URL, иначе Redis.
func newAssessQueue(cfg config.AppConfig, redisClient *redis.Client) (domain.AssessmentQueue, error) {
	if cfg.AMQPURL != "" {
		return queue.NewRabbitAssessQueue(cfg.AMQPURL, cfg.Queues.Assess)
	}
	return queue.NewRedisAssessQueue(redisClient, cfg.Queues.Assess), nil
}
